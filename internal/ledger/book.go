// Package ledger holds the token balance book: per-wallet balances, total
// supply and the pause switch. It enforces arithmetic safety only; admission
// decisions belong to the compliance evaluator.
package ledger

import (
	"math"

	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// Book is the balance ledger. The zero value is not usable; call NewBook.
type Book struct {
	Balances    map[id.Address]uint64 `json:"balances"`
	TotalSupply uint64                `json:"total_supply"`
	// TotalIssued never decreases; TotalIssued - TotalBurned == TotalSupply.
	TotalIssued uint64 `json:"total_issued"`
	TotalBurned uint64 `json:"total_burned"`
	Paused      bool   `json:"paused"`
}

// NewBook returns an empty, unpaused book.
func NewBook() Book {
	return Book{Balances: make(map[id.Address]uint64)}
}

// BalanceOf returns the wallet balance.
func (b *Book) BalanceOf(addr id.Address) uint64 {
	return b.Balances[addr]
}

// Mint credits a wallet and grows supply.
func (b *Book) Mint(to id.Address, value uint64) error {
	if to.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "cannot mint to the zero address")
	}
	if value > math.MaxUint64-b.TotalSupply || value > math.MaxUint64-b.TotalIssued {
		return dErrors.New(dErrors.CodeInvariantViolation, "supply overflow")
	}
	b.credit(to, value)
	b.TotalSupply += value
	b.TotalIssued += value
	return nil
}

// Move transfers value between wallets.
func (b *Book) Move(from, to id.Address, value uint64) error {
	if to.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "cannot transfer to the zero address")
	}
	if err := b.debit(from, value); err != nil {
		return err
	}
	b.credit(to, value)
	return nil
}

// Burn debits a wallet and shrinks supply.
func (b *Book) Burn(from id.Address, value uint64) error {
	if err := b.debit(from, value); err != nil {
		return err
	}
	b.TotalSupply -= value
	b.TotalBurned += value
	return nil
}

func (b *Book) credit(addr id.Address, value uint64) {
	if value == 0 {
		return
	}
	if b.Balances == nil {
		b.Balances = make(map[id.Address]uint64)
	}
	b.Balances[addr] += value
}

func (b *Book) debit(addr id.Address, value uint64) error {
	bal := b.Balances[addr]
	if bal < value {
		return dErrors.New(dErrors.CodeInvariantViolation, "insufficient balance")
	}
	if bal == value {
		delete(b.Balances, addr)
		return nil
	}
	b.Balances[addr] = bal - value
	return nil
}

// SumBalances adds every wallet balance; equal to TotalSupply when consistent.
func (b *Book) SumBalances() uint64 {
	var sum uint64
	for _, v := range b.Balances {
		sum += v
	}
	return sum
}

// Clone deep-copies the book.
func (b Book) Clone() Book {
	out := b
	out.Balances = make(map[id.Address]uint64, len(b.Balances))
	for k, v := range b.Balances {
		out.Balances[k] = v
	}
	return out
}
