package state

import (
	"errors"
	"fmt"
	"time"

	"secutoken/internal/compliance/counters"
	id "secutoken/pkg/domain"
)

// Verify recomputes every derived quantity from ground truth and reports all
// mismatches. It is O(state) and meant for tests, the CLI and debug endpoints.
func (s *State) Verify(now time.Time) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	b := s.Book
	if sum := b.SumBalances(); sum != b.TotalSupply {
		fail("balances sum to %d, total supply is %d", sum, b.TotalSupply)
	}
	if b.TotalIssued-b.TotalBurned != b.TotalSupply {
		fail("issued %d minus burned %d differs from supply %d", b.TotalIssued, b.TotalBurned, b.TotalSupply)
	}

	sums := make(map[id.InvestorID]uint64)
	for wallet, inv := range s.Attribution {
		bal := b.BalanceOf(wallet)
		if bal == 0 {
			fail("wallet %s attributed to %s with zero balance", wallet, inv)
		}
		sums[inv] += bal
	}
	for inv, agg := range s.Aggregates {
		if sums[inv] != agg {
			fail("investor %s aggregate %d, attributed wallets hold %d", inv, agg, sums[inv])
		}
	}
	for inv, sum := range sums {
		if _, ok := s.Aggregates[inv]; !ok {
			fail("investor %s holds %d through wallets but has no aggregate", inv, sum)
		}
	}

	expected := counters.New()
	for inv := range s.Aggregates {
		class, ok := s.Tracker.Members[inv]
		if !ok {
			fail("investor %s holds tokens but is not counted", inv)
			continue
		}
		d := counters.Deltas{}
		d.Add(counters.Of(class), 1)
		_ = expected.Apply(d)
	}
	for inv := range s.Tracker.Members {
		if s.Aggregates[inv] == 0 {
			fail("investor %s counted with zero balance", inv)
		}
	}
	for _, c := range s.Omnibus {
		_ = expected.Apply(counters.Deltas(c.Snapshot()))
	}
	for cat, n := range s.Tracker.Counters.Counts {
		if expected.Get(cat) != n {
			fail("counter %s is %d, expected %d", cat, n, expected.Get(cat))
		}
	}
	for cat, n := range expected.Counts {
		if s.Tracker.Counters.Get(cat) != n {
			fail("counter %s is %d, expected %d", cat, s.Tracker.Counters.Get(cat), n)
		}
	}

	for _, key := range s.Locks.Holders() {
		var bal uint64
		if inv, ok := key.Investor(); ok {
			bal = s.Aggregates[inv]
		} else if wallet, ok := key.Wallet(); ok {
			bal = b.BalanceOf(wallet)
		}
		if locked := s.Locks.Locked(key, now); locked > bal {
			fail("holder %s has %d locked over a balance of %d", key, locked, bal)
		}
	}

	for wallet := range s.Partitions {
		if total, bal := s.PartitionTotal(wallet), b.BalanceOf(wallet); total > bal {
			fail("omnibus %s partitions %d exceed balance %d", wallet, total, bal)
		}
	}

	return errors.Join(errs...)
}
