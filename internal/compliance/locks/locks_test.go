package locks

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/models"
	dErrors "secutoken/pkg/domain-errors"
)

type LockLedgerSuite struct {
	suite.Suite
	now    time.Time
	ledger Ledger
	holder HolderKey
}

func TestLockLedgerSuite(t *testing.T) {
	suite.Run(t, new(LockLedgerSuite))
}

func (s *LockLedgerSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ledger = NewLedger()
	s.holder = ForInvestor("inv-a")
}

func (s *LockLedgerSuite) lock(value uint64, release time.Time) models.Lock {
	return models.Lock{ID: "l", Value: value, ReasonCode: 1, ReasonText: "vesting", ReleaseTime: release}
}

// =============================================================================
// Add
// =============================================================================

func (s *LockLedgerSuite) TestAdd() {
	s.Run("rejects zero value", func() {
		err := s.ledger.Add(s.holder, s.lock(0, time.Time{}), s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects release time at or before now", func() {
		err := s.ledger.Add(s.holder, s.lock(5, s.now), s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("zero release time locks indefinitely", func() {
		s.Require().NoError(s.ledger.Add(s.holder, s.lock(5, time.Time{}), s.now))
		s.Equal(uint64(5), s.ledger.Locked(s.holder, s.now.Add(100*365*24*time.Hour)))
	})
}

// Justification: the per-holder cap is what keeps evaluation bounded; expired
// records must not count against it.
func (s *LockLedgerSuite) TestCapacity() {
	s.Run("thirty-first live lock is rejected", func() {
		for range MaxPerHolder {
			s.Require().NoError(s.ledger.Add(s.holder, s.lock(1, s.now.Add(time.Hour)), s.now))
		}
		err := s.ledger.Add(s.holder, s.lock(1, s.now.Add(time.Hour)), s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("expired records are swept to make room", func() {
		later := s.now.Add(2 * time.Hour)
		s.Require().NoError(s.ledger.Add(s.holder, s.lock(7, later.Add(time.Hour)), later))
		s.Equal(1, s.ledger.Get(s.holder).Len())
		s.Equal(uint64(7), s.ledger.Locked(s.holder, later))
	})
}

// =============================================================================
// Remove and sweep
// =============================================================================

func (s *LockLedgerSuite) TestRemove() {
	s.Require().NoError(s.ledger.Add(s.holder, models.Lock{ID: "a", Value: 1}, s.now))
	s.Require().NoError(s.ledger.Add(s.holder, models.Lock{ID: "b", Value: 2}, s.now))
	s.Require().NoError(s.ledger.Add(s.holder, models.Lock{ID: "c", Value: 3}, s.now))

	s.Run("index past the live count fails", func() {
		_, err := s.ledger.Remove(s.holder, 3)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("swap-remove moves the last record into the hole", func() {
		removed, err := s.ledger.Remove(s.holder, 0)
		s.Require().NoError(err)
		s.Equal("a", removed.ID)
		ids := []string{}
		for _, l := range s.ledger.Get(s.holder).All() {
			ids = append(ids, l.ID)
		}
		s.Equal([]string{"c", "b"}, ids)
	})

	s.Run("removing the final record drops the holder", func() {
		_, err := s.ledger.Remove(s.holder, 0)
		s.Require().NoError(err)
		_, err = s.ledger.Remove(s.holder, 0)
		s.Require().NoError(err)
		s.Nil(s.ledger.Get(s.holder))
		s.Empty(s.ledger.Holders())
	})
}

func (s *LockLedgerSuite) TestSweepIsIdempotent() {
	s.Require().NoError(s.ledger.Add(s.holder, s.lock(5, s.now.Add(time.Minute)), s.now))
	s.Require().NoError(s.ledger.Add(s.holder, s.lock(6, s.now.Add(time.Hour)), s.now))
	at := s.now.Add(10 * time.Minute)

	before := Transferable(20, s.ledger.Get(s.holder), models.InvestorFlags{}, at)
	s.Equal(1, s.ledger.Sweep(s.holder, at))
	s.Equal(0, s.ledger.Sweep(s.holder, at))
	s.Equal(before, Transferable(20, s.ledger.Get(s.holder), models.InvestorFlags{}, at))
}

// =============================================================================
// Shrink
// =============================================================================

func (s *LockLedgerSuite) TestShrinkReducesNewestFirst() {
	s.Require().NoError(s.ledger.Add(s.holder, models.Lock{ID: "old", Value: 4}, s.now))
	s.Require().NoError(s.ledger.Add(s.holder, models.Lock{ID: "new", Value: 3}, s.now))

	s.ledger.Shrink(s.holder, 5, s.now)
	s.Equal(uint64(5), s.ledger.Locked(s.holder, s.now))
	all := s.ledger.Get(s.holder).All()
	s.Require().Len(all, 2)
	s.Equal(uint64(4), all[0].Value)
	s.Equal(uint64(1), all[1].Value)

	s.ledger.Shrink(s.holder, 2, s.now)
	all = s.ledger.Get(s.holder).All()
	s.Require().Len(all, 1)
	s.Equal("old", all[0].ID)
	s.Equal(uint64(2), all[0].Value)
}

func TestTransferable(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := &List{}
	require.NoError(t, l.Add(models.Lock{Value: 5, ReleaseTime: now.Add(time.Hour)}, now))

	assert.Equal(t, uint64(5), Transferable(10, l, models.InvestorFlags{}, now))
	assert.Equal(t, uint64(10), Transferable(10, l, models.InvestorFlags{}, now.Add(time.Hour)))
	assert.Equal(t, uint64(0), Transferable(3, l, models.InvestorFlags{}, now))
	assert.Equal(t, uint64(0), Transferable(10, l, models.InvestorFlags{FullyLocked: true}, now.Add(time.Hour)))
	assert.Equal(t, uint64(10), Transferable(10, nil, models.InvestorFlags{}, now))
}

// Justification: an oversized record must never wrap the locked total, or
// every other lock on the holder would vanish from transferable.
func TestLockedSaturatesInsteadOfWrapping(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := &List{}
	require.NoError(t, l.Add(models.Lock{Value: 50}, now))
	require.NoError(t, l.Add(models.Lock{Value: math.MaxUint64 - 49}, now))

	assert.Equal(t, uint64(math.MaxUint64), l.Locked(now))
	assert.Equal(t, uint64(0), Transferable(100, l, models.InvestorFlags{}, now))
}

func TestLedgerJSONRoundTripPreservesArena(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	g := NewLedger()
	require.NoError(t, g.Add(ForWallet("0xabc"), models.Lock{ID: "x", Value: 9}, now))

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var restored Ledger
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, uint64(9), restored.Locked(ForWallet("0xabc"), now))
	assert.Equal(t, 1, restored.Get(ForWallet("0xabc")).Len())
}
