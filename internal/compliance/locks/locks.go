// Package locks implements the per-holder lock ledger.
//
// Each holder carries at most MaxPerHolder lock records in a fixed-size arena.
// Expired records stay in the arena until swept; transferable amounts always
// filter by release time so a missed sweep never changes a decision.
package locks

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// MaxPerHolder bounds live lock records per holder.
const MaxPerHolder = 30

// HolderKey identifies a lock owner: an investor for registered wallets,
// the wallet itself otherwise.
type HolderKey string

// ForInvestor keys locks by investor.
func ForInvestor(inv id.InvestorID) HolderKey {
	return HolderKey("investor:" + string(inv))
}

// ForWallet keys locks by wallet.
func ForWallet(addr id.Address) HolderKey {
	return HolderKey("wallet:" + string(addr))
}

// Investor returns the investor a key refers to, if any.
func (k HolderKey) Investor() (id.InvestorID, bool) {
	inv, ok := strings.CutPrefix(string(k), "investor:")
	return id.InvestorID(inv), ok
}

// Wallet returns the wallet a key refers to, if any.
func (k HolderKey) Wallet() (id.Address, bool) {
	w, ok := strings.CutPrefix(string(k), "wallet:")
	return id.Address(w), ok
}

// List is a bounded arena of lock records for one holder.
type List struct {
	items [MaxPerHolder]models.Lock
	n     int
}

// Len returns the number of stored records, expired ones included.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return l.n
}

// LiveCount returns the number of records still active at now.
func (l *List) LiveCount(now time.Time) int {
	if l == nil {
		return 0
	}
	count := 0
	for i := range l.n {
		if l.items[i].ActiveAt(now) {
			count++
		}
	}
	return count
}

// Locked sums the values of records active at now, saturating at
// math.MaxUint64 so an oversized record can never wrap the total below the
// balance it must stay under.
func (l *List) Locked(now time.Time) uint64 {
	if l == nil {
		return 0
	}
	var sum uint64
	for i := range l.n {
		if !l.items[i].ActiveAt(now) {
			continue
		}
		v := l.items[i].Value
		if v > math.MaxUint64-sum {
			return math.MaxUint64
		}
		sum += v
	}
	return sum
}

// All returns a copy of the stored records in arena order.
func (l *List) All() []models.Lock {
	if l == nil {
		return nil
	}
	out := make([]models.Lock, l.n)
	copy(out, l.items[:l.n])
	return out
}

// Add appends a lock, sweeping expired records first when the arena is full.
func (l *List) Add(lock models.Lock, now time.Time) error {
	if lock.Value == 0 {
		return dErrors.New(dErrors.CodeValidation, "lock value must be positive")
	}
	if !lock.ReleaseTime.IsZero() && !lock.ReleaseTime.After(now) {
		return dErrors.New(dErrors.CodeValidation, "lock release time must be in the future")
	}
	if l.n == MaxPerHolder {
		l.Sweep(now)
	}
	if l.n == MaxPerHolder {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("holder already has %d live locks", MaxPerHolder))
	}
	l.items[l.n] = lock
	l.n++
	return nil
}

// Remove deletes the record at index by swapping in the last record. The
// index addresses stored records, expired ones included; callers that expose
// live indexes must Sweep first.
func (l *List) Remove(index int) (models.Lock, error) {
	if index < 0 || index >= l.n {
		return models.Lock{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("lock index %d out of range", index))
	}
	removed := l.items[index]
	last := l.n - 1
	l.items[index] = l.items[last]
	l.items[last] = models.Lock{}
	l.n = last
	return removed, nil
}

// Sweep drops every record whose release time has passed and returns how many
// were removed. Sweeping twice at the same instant removes nothing the second time.
func (l *List) Sweep(now time.Time) int {
	if l == nil {
		return 0
	}
	removed := 0
	for i := 0; i < l.n; {
		if l.items[i].ActiveAt(now) {
			i++
			continue
		}
		_, _ = l.Remove(i)
		removed++
	}
	return removed
}

// Shrink lowers active locks so their sum does not exceed ceiling, reducing
// the most recently added records first. Used when a balance drops through
// burn, seizure or wallet reattribution.
func (l *List) Shrink(ceiling uint64, now time.Time) {
	if l == nil {
		return
	}
	locked := l.Locked(now)
	for i := l.n - 1; i >= 0 && locked > ceiling; i-- {
		if !l.items[i].ActiveAt(now) {
			continue
		}
		excess := locked - ceiling
		cut := min(excess, l.items[i].Value)
		l.items[i].Value -= cut
		locked -= cut
		if l.items[i].Value == 0 {
			_, _ = l.Remove(i)
		}
	}
}

func (l *List) clone() *List {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// MarshalJSON encodes the live arena as a plain array.
func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.All())
}

// UnmarshalJSON restores an arena from a plain array.
func (l *List) UnmarshalJSON(data []byte) error {
	var items []models.Lock
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if len(items) > MaxPerHolder {
		return fmt.Errorf("lock list holds %d records, limit is %d", len(items), MaxPerHolder)
	}
	*l = List{}
	l.n = copy(l.items[:], items)
	return nil
}

// Ledger maps holders to their lock lists.
type Ledger struct {
	holders map[HolderKey]*List
}

// NewLedger returns an empty ledger.
func NewLedger() Ledger {
	return Ledger{holders: make(map[HolderKey]*List)}
}

// Get returns the holder's list; nil when the holder has no records.
func (g *Ledger) Get(holder HolderKey) *List {
	return g.holders[holder]
}

func (g *Ledger) ensure(holder HolderKey) *List {
	if g.holders == nil {
		g.holders = make(map[HolderKey]*List)
	}
	l, ok := g.holders[holder]
	if !ok {
		l = &List{}
		g.holders[holder] = l
	}
	return l
}

// Add appends a lock for the holder.
func (g *Ledger) Add(holder HolderKey, lock models.Lock, now time.Time) error {
	if err := g.ensure(holder).Add(lock, now); err != nil {
		g.prune(holder)
		return err
	}
	return nil
}

// Remove deletes the holder's record at index.
func (g *Ledger) Remove(holder HolderKey, index int) (models.Lock, error) {
	l := g.holders[holder]
	if l == nil {
		return models.Lock{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("lock index %d out of range", index))
	}
	removed, err := l.Remove(index)
	if err != nil {
		return models.Lock{}, err
	}
	g.prune(holder)
	return removed, nil
}

// Sweep drops expired records for the holder.
func (g *Ledger) Sweep(holder HolderKey, now time.Time) int {
	removed := g.holders[holder].Sweep(now)
	g.prune(holder)
	return removed
}

// Locked sums the holder's active locks.
func (g *Ledger) Locked(holder HolderKey, now time.Time) uint64 {
	return g.holders[holder].Locked(now)
}

// Shrink caps the holder's active locks at ceiling.
func (g *Ledger) Shrink(holder HolderKey, ceiling uint64, now time.Time) {
	g.holders[holder].Shrink(ceiling, now)
	g.prune(holder)
}

// Holders lists every holder with at least one stored record, sorted.
func (g *Ledger) Holders() []HolderKey {
	out := make([]HolderKey, 0, len(g.holders))
	for k := range g.holders {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Ledger) prune(holder HolderKey) {
	if l, ok := g.holders[holder]; ok && l.Len() == 0 {
		delete(g.holders, holder)
	}
}

// Clone deep-copies the ledger.
func (g Ledger) Clone() Ledger {
	out := Ledger{holders: make(map[HolderKey]*List, len(g.holders))}
	for k, v := range g.holders {
		out.holders[k] = v.clone()
	}
	return out
}

// MarshalJSON encodes the ledger as holder -> records.
func (g Ledger) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.holders)
}

// UnmarshalJSON restores the ledger.
func (g *Ledger) UnmarshalJSON(data []byte) error {
	holders := make(map[HolderKey]*List)
	if err := json.Unmarshal(data, &holders); err != nil {
		return err
	}
	g.holders = holders
	return nil
}

// Transferable is balance minus active locks, floored at zero. A fully-locked
// investor can transfer nothing.
func Transferable(balance uint64, list *List, flags models.InvestorFlags, now time.Time) uint64 {
	if flags.FullyLocked {
		return 0
	}
	locked := list.Locked(now)
	if locked >= balance {
		return 0
	}
	return balance - locked
}
