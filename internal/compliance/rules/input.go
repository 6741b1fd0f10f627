package rules

import (
	"time"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
)

// Party is everything the evaluator needs to know about one side of a mutation.
// It is assembled by the service from registry facts and committed state.
type Party struct {
	Wallet   id.Address
	Investor id.InvestorID
	Special  models.SpecialKind

	// Class is the status-based classification used for counting.
	Class models.Classification
	// AccreditedNow also honours attribute expiry.
	AccreditedNow bool
	Flags         models.InvestorFlags

	// Balance is the wallet balance; Aggregate is the holder-level balance
	// (investor aggregate for registered wallets, wallet balance otherwise).
	Balance      uint64
	Aggregate    uint64
	Transferable uint64
	Issuances    []models.IssuanceRecord
}

// Registered reports whether the wallet belongs to a registry investor.
func (p Party) Registered() bool {
	return !p.Investor.IsNil()
}

// Regular reports whether the party is a registered non-special holder.
// Only regular parties are subject to investor-level rules.
func (p Party) Regular() bool {
	return p.Registered() && !p.Special.IsSpecial()
}

// TransferInput bundles a transfer decision's inputs.
type TransferInput struct {
	From     Party
	To       Party
	Amount   uint64
	Now      time.Time
	Paused   bool
	Config   models.Config
	Counters counters.Counters
}

// SameInvestor reports an intra-investor movement between two wallets.
func (in TransferInput) SameInvestor() bool {
	return in.From.Registered() && in.From.Investor == in.To.Investor
}

// IssuanceInput bundles an issuance decision's inputs.
type IssuanceInput struct {
	To       Party
	Amount   uint64
	Now      time.Time
	Config   models.Config
	Counters counters.Counters
}

// LockedUp sums issuances still inside the lock-up window at now.
func LockedUp(issuances []models.IssuanceRecord, period time.Duration, now time.Time) uint64 {
	if period <= 0 {
		return 0
	}
	var sum uint64
	for _, rec := range issuances {
		if rec.Time.Add(period).After(now) {
			sum += rec.Value
		}
	}
	return sum
}

// TransferDeltas computes the net category change a transfer would cause:
// the receiver joins when their aggregate is zero, the sender leaves when the
// amount drains their aggregate. Intra-investor movement never changes counts.
func TransferDeltas(in TransferInput) counters.Deltas {
	d := counters.Deltas{}
	if in.SameInvestor() {
		return d
	}
	if in.To.Regular() && in.To.Aggregate == 0 && in.Amount > 0 {
		d.Add(counters.Of(in.To.Class), 1)
	}
	if in.From.Regular() && in.From.Aggregate == in.Amount && in.Amount > 0 {
		d.Add(counters.Of(in.From.Class), -1)
	}
	return d
}

// IssuanceDeltas computes the category change for minting to a party.
func IssuanceDeltas(in IssuanceInput) counters.Deltas {
	d := counters.Deltas{}
	if in.To.Regular() && in.To.Aggregate == 0 && in.Amount > 0 {
		d.Add(counters.Of(in.To.Class), 1)
	}
	return d
}
