// Package state holds the committed compliance state and the recorder
// operations that keep balances, locks and counters consistent.
//
// State is only ever mutated inside a store transaction on a private clone;
// a failed operation discards the clone so no partial effect is observable.
package state

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/locks"
	"secutoken/internal/compliance/models"
	"secutoken/internal/ledger"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// ErrPartitionsShort is returned when omnibus partitions cannot cover a debit.
var ErrPartitionsShort = dErrors.New(dErrors.CodeInvariantViolation, "Not enough tokens in partitions")

// State is the full compliance state.
type State struct {
	Config  models.Config    `json:"config"`
	Book    ledger.Book      `json:"book"`
	Locks   locks.Ledger     `json:"locks"`
	Tracker counters.Tracker `json:"tracker"`

	// Aggregates is each investor's balance summed over attributed wallets.
	Aggregates map[id.InvestorID]uint64 `json:"aggregates"`
	// Attribution records which investor a funded wallet's balance counts toward.
	Attribution map[id.Address]id.InvestorID              `json:"attribution"`
	Flags       map[id.InvestorID]models.InvestorFlags    `json:"flags"`
	Issuances   map[id.InvestorID][]models.IssuanceRecord `json:"issuances"`
	Partitions  map[id.Address][]models.Partition         `json:"partitions"`
	// Omnibus is the population each omnibus wallet contributes to the counters.
	Omnibus map[id.Address]counters.Counters `json:"omnibus"`
}

// New returns an empty state with the given configuration.
func New(cfg models.Config) *State {
	return &State{
		Config:      cfg.Normalize(),
		Book:        ledger.NewBook(),
		Locks:       locks.NewLedger(),
		Tracker:     counters.NewTracker(),
		Aggregates:  make(map[id.InvestorID]uint64),
		Attribution: make(map[id.Address]id.InvestorID),
		Flags:       make(map[id.InvestorID]models.InvestorFlags),
		Issuances:   make(map[id.InvestorID][]models.IssuanceRecord),
		Partitions:  make(map[id.Address][]models.Partition),
		Omnibus:     make(map[id.Address]counters.Counters),
	}
}

// Holder is one side of a mutation as resolved against the registry.
type Holder struct {
	Wallet id.Address
	// Investor is empty for special and unregistered wallets.
	Investor id.InvestorID
	Special  models.SpecialKind
	Class    models.Classification
}

// Key returns the lock-ledger key for the holder.
func (h Holder) Key() locks.HolderKey {
	if !h.Investor.IsNil() {
		return locks.ForInvestor(h.Investor)
	}
	return locks.ForWallet(h.Wallet)
}

// Aggregate returns the holder-level balance.
func (s *State) Aggregate(h Holder) uint64 {
	if !h.Investor.IsNil() {
		return s.Aggregates[h.Investor]
	}
	return s.Book.BalanceOf(h.Wallet)
}

// Transferable returns how much the holder may move now.
func (s *State) Transferable(h Holder, now time.Time) uint64 {
	return locks.Transferable(s.Aggregate(h), s.Locks.Get(h.Key()), s.Flags[h.Investor], now)
}

// Reconcile brings the holder's attribution and classification in line with
// the registry before a decision. A wallet reassigned to another investor moves
// its balance between aggregates; a reclassified investor moves counters.
func (s *State) Reconcile(h Holder, now time.Time) error {
	bal := s.Book.BalanceOf(h.Wallet)
	prev, attributed := s.Attribution[h.Wallet]

	if bal == 0 {
		delete(s.Attribution, h.Wallet)
	} else if !attributed || prev != h.Investor {
		if attributed {
			if err := s.debitAggregate(prev, bal); err != nil {
				return err
			}
			s.Locks.Shrink(locks.ForInvestor(prev), s.Aggregates[prev], now)
		}
		if h.Investor.IsNil() {
			delete(s.Attribution, h.Wallet)
		} else {
			if err := s.creditAggregate(h.Investor, bal, h.Class); err != nil {
				return err
			}
			s.Attribution[h.Wallet] = h.Investor
		}
	}

	if !h.Investor.IsNil() {
		return s.Tracker.Reclassify(h.Investor, h.Class)
	}
	return nil
}

// Sweep drops expired locks and stale issuance records for the holder.
func (s *State) Sweep(h Holder, now time.Time) int {
	removed := s.Locks.Sweep(h.Key(), now)
	if !h.Investor.IsNil() {
		s.sweepIssuances(h.Investor, now)
	}
	return removed
}

// Issue mints to the holder. at stamps omnibus partitions.
func (s *State) Issue(to Holder, value uint64, at time.Time) error {
	if err := s.Book.Mint(to.Wallet, value); err != nil {
		return err
	}
	return s.credit(to, value, at)
}

// Transfer moves value between holders. Locks are not consulted; the caller
// has already checked transferability.
func (s *State) Transfer(from, to Holder, value uint64, now time.Time) error {
	if err := s.Book.Move(from.Wallet, to.Wallet, value); err != nil {
		return err
	}
	sameInvestor := !from.Investor.IsNil() && from.Investor == to.Investor
	if sameInvestor {
		s.dropEmptyAttribution(from.Wallet)
		s.Attribution[to.Wallet] = to.Investor
		return nil
	}
	if err := s.debit(from, value, now); err != nil {
		return err
	}
	return s.credit(to, value, now)
}

// Burn destroys value held by the holder, consuming locked tokens last.
func (s *State) Burn(from Holder, value uint64, now time.Time) error {
	if err := s.Book.Burn(from.Wallet, value); err != nil {
		return err
	}
	return s.debit(from, value, now)
}

// Seize moves value to a special wallet regardless of locks.
func (s *State) Seize(from, to Holder, value uint64, now time.Time) error {
	return s.Transfer(from, to, value, now)
}

// RecordIssuance remembers a mint for lock-up accounting.
func (s *State) RecordIssuance(inv id.InvestorID, value uint64, at time.Time) {
	s.Issuances[inv] = append(s.Issuances[inv], models.IssuanceRecord{Value: value, Time: at})
}

func (s *State) sweepIssuances(inv id.InvestorID, now time.Time) {
	recs, ok := s.Issuances[inv]
	if !ok {
		return
	}
	keepFor := s.Config.LongestLockPeriod()
	kept := recs[:0]
	for _, r := range recs {
		if r.Time.Add(keepFor).After(now) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(s.Issuances, inv)
		return
	}
	s.Issuances[inv] = kept
}

func (s *State) credit(h Holder, value uint64, at time.Time) error {
	if value == 0 {
		return nil
	}
	if h.Special == models.SpecialOmnibus {
		s.AddPartition(h.Wallet, models.Partition{ID: uuid.NewString(), Value: value, IssuedAt: at})
	}
	if h.Investor.IsNil() {
		return nil
	}
	if err := s.creditAggregate(h.Investor, value, h.Class); err != nil {
		return err
	}
	s.Attribution[h.Wallet] = h.Investor
	return nil
}

func (s *State) debit(h Holder, value uint64, now time.Time) error {
	if value == 0 {
		return nil
	}
	if h.Special == models.SpecialOmnibus {
		if err := s.ConsumePartitions(h.Wallet, value); err != nil {
			return err
		}
	}
	if !h.Investor.IsNil() {
		if err := s.debitAggregate(h.Investor, value); err != nil {
			return err
		}
	}
	s.dropEmptyAttribution(h.Wallet)
	s.Locks.Shrink(h.Key(), s.Aggregate(h), now)
	return nil
}

func (s *State) creditAggregate(inv id.InvestorID, value uint64, class models.Classification) error {
	before := s.Aggregates[inv]
	after := before + value
	s.Aggregates[inv] = after
	return s.Tracker.Transition(inv, before, after, class)
}

func (s *State) debitAggregate(inv id.InvestorID, value uint64) error {
	before := s.Aggregates[inv]
	if before < value {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("investor %s aggregate %d below debit %d", inv, before, value))
	}
	after := before - value
	if after == 0 {
		delete(s.Aggregates, inv)
	} else {
		s.Aggregates[inv] = after
	}
	return s.Tracker.Transition(inv, before, after, models.Classification{})
}

func (s *State) dropEmptyAttribution(wallet id.Address) {
	if s.Book.BalanceOf(wallet) == 0 {
		delete(s.Attribution, wallet)
	}
}

// AddPartition inserts a partition keeping FIFO order by issuance time.
func (s *State) AddPartition(wallet id.Address, p models.Partition) {
	parts := append(s.Partitions[wallet], p)
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].IssuedAt.Before(parts[j].IssuedAt) })
	s.Partitions[wallet] = parts
}

// PartitionTotal sums unburned partitions for an omnibus wallet.
func (s *State) PartitionTotal(wallet id.Address) uint64 {
	var sum uint64
	for _, p := range s.Partitions[wallet] {
		sum += p.Value
	}
	return sum
}

// ConsumePartitions takes value from the earliest partitions first.
func (s *State) ConsumePartitions(wallet id.Address, value uint64) error {
	if s.PartitionTotal(wallet) < value {
		return ErrPartitionsShort
	}
	parts := s.Partitions[wallet]
	i := 0
	for value > 0 {
		take := min(value, parts[i].Value)
		parts[i].Value -= take
		value -= take
		if parts[i].Value == 0 {
			i++
		}
	}
	rest := parts[i:]
	if len(rest) == 0 {
		delete(s.Partitions, wallet)
		return nil
	}
	s.Partitions[wallet] = append([]models.Partition(nil), rest...)
	return nil
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := &State{
		Config:      s.Config.Clone(),
		Book:        s.Book.Clone(),
		Locks:       s.Locks.Clone(),
		Tracker:     s.Tracker.Clone(),
		Aggregates:  make(map[id.InvestorID]uint64, len(s.Aggregates)),
		Attribution: make(map[id.Address]id.InvestorID, len(s.Attribution)),
		Flags:       make(map[id.InvestorID]models.InvestorFlags, len(s.Flags)),
		Issuances:   make(map[id.InvestorID][]models.IssuanceRecord, len(s.Issuances)),
		Partitions:  make(map[id.Address][]models.Partition, len(s.Partitions)),
		Omnibus:     make(map[id.Address]counters.Counters, len(s.Omnibus)),
	}
	for k, v := range s.Aggregates {
		out.Aggregates[k] = v
	}
	for k, v := range s.Attribution {
		out.Attribution[k] = v
	}
	for k, v := range s.Flags {
		out.Flags[k] = v
	}
	for k, v := range s.Issuances {
		out.Issuances[k] = append([]models.IssuanceRecord(nil), v...)
	}
	for k, v := range s.Partitions {
		out.Partitions[k] = append([]models.Partition(nil), v...)
	}
	for k, v := range s.Omnibus {
		out.Omnibus[k] = v.Clone()
	}
	return out
}

// EnsureMaps initialises nil maps after decoding a snapshot.
func (s *State) EnsureMaps() {
	if s.Book.Balances == nil {
		s.Book.Balances = make(map[id.Address]uint64)
	}
	if s.Tracker.Members == nil {
		s.Tracker.Members = make(map[id.InvestorID]models.Classification)
	}
	if s.Tracker.Counters.Counts == nil {
		s.Tracker.Counters = counters.New()
	}
	if s.Aggregates == nil {
		s.Aggregates = make(map[id.InvestorID]uint64)
	}
	if s.Attribution == nil {
		s.Attribution = make(map[id.Address]id.InvestorID)
	}
	if s.Flags == nil {
		s.Flags = make(map[id.InvestorID]models.InvestorFlags)
	}
	if s.Issuances == nil {
		s.Issuances = make(map[id.InvestorID][]models.IssuanceRecord)
	}
	if s.Partitions == nil {
		s.Partitions = make(map[id.Address][]models.Partition)
	}
	if s.Omnibus == nil {
		s.Omnibus = make(map[id.Address]counters.Counters)
	}
	if s.Config.Countries == nil {
		s.Config.Countries = make(map[string]models.Region)
	}
}
