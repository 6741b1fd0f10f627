package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/locks"
	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

const (
	walletA1 id.Address = "0x00000000000000000000000000000000000000a1"
	walletA2 id.Address = "0x00000000000000000000000000000000000000a2"
	walletB1 id.Address = "0x00000000000000000000000000000000000000b1"
	omnibus  id.Address = "0x00000000000000000000000000000000000000cc"
	issuer   id.Address = "0x00000000000000000000000000000000000000ee"
)

var (
	usClass = models.Classification{Country: "US", Region: models.RegionUS}
	frClass = models.Classification{Country: "FR", Region: models.RegionEU}
)

type RecorderSuite struct {
	suite.Suite
	st  *State
	now time.Time
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.st = New(models.DefaultConfig())
	s.now = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
}

func (s *RecorderSuite) TearDownTest() {
	s.NoError(s.st.Verify(s.now))
}

func holder(w id.Address, inv id.InvestorID, class models.Classification) Holder {
	return Holder{Wallet: w, Investor: inv, Class: class}
}

// =============================================================================
// Zero-crossing counters
// =============================================================================

func (s *RecorderSuite) TestIssueAndFullTransferMoveCounters() {
	a := holder(walletA1, "a", usClass)
	b := holder(walletB1, "b", frClass)

	s.Require().NoError(s.st.Issue(a, 100, s.now))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.US))

	s.Require().NoError(s.st.Transfer(a, b, 40, s.now))
	s.Equal(2, s.st.Tracker.Counters.Get(counters.Total))

	s.Require().NoError(s.st.Transfer(a, b, 60, s.now))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.Total))
	s.Equal(0, s.st.Tracker.Counters.Get(counters.US))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.EURetail("FR")))
}

// Justification: moving every token between two wallets of one investor must
// leave counters untouched.
func (s *RecorderSuite) TestIntraInvestorTransferKeepsCounters() {
	a1 := holder(walletA1, "a", usClass)
	a2 := holder(walletA2, "a", usClass)
	s.Require().NoError(s.st.Issue(a1, 50, s.now))

	s.Require().NoError(s.st.Transfer(a1, a2, 50, s.now))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.Total))
	s.Equal(uint64(50), s.st.Aggregates["a"])
	s.Equal(id.InvestorID("a"), s.st.Attribution[walletA2])
	_, stillAttributed := s.st.Attribution[walletA1]
	s.False(stillAttributed)
}

// =============================================================================
// Reattribution and reclassification
// =============================================================================

func (s *RecorderSuite) TestReconcileMovesBalanceBetweenInvestors() {
	s.Require().NoError(s.st.Issue(holder(walletA1, "a", usClass), 30, s.now))
	s.Require().NoError(s.st.Locks.Add(locks.ForInvestor("a"), models.Lock{Value: 20}, s.now))

	s.Require().NoError(s.st.Reconcile(holder(walletA1, "b", frClass), s.now))

	s.Equal(uint64(0), s.st.Aggregates["a"])
	s.Equal(uint64(30), s.st.Aggregates["b"])
	s.False(s.st.Tracker.IsMember("a"))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.EURetail("FR")))
	s.Equal(0, s.st.Tracker.Counters.Get(counters.US))
	s.Equal(uint64(0), s.st.Locks.Locked(locks.ForInvestor("a"), s.now))
}

func (s *RecorderSuite) TestReconcileReclassifiesCountedInvestor() {
	s.Require().NoError(s.st.Issue(holder(walletA1, "a", frClass), 30, s.now))
	qualified := frClass
	qualified.Qualified = true

	s.Require().NoError(s.st.Reconcile(holder(walletA1, "a", qualified), s.now))
	s.Equal(0, s.st.Tracker.Counters.Get(counters.EURetail("FR")))
	s.Equal(1, s.st.Tracker.Counters.Get(counters.Total))
}

// =============================================================================
// Burn and seize shrink locks
// =============================================================================

func (s *RecorderSuite) TestBurnConsumesUnlockedFirst() {
	a := holder(walletA1, "a", usClass)
	s.Require().NoError(s.st.Issue(a, 100, s.now))
	s.Require().NoError(s.st.Locks.Add(a.Key(), models.Lock{Value: 60}, s.now))

	s.Require().NoError(s.st.Burn(a, 30, s.now))
	s.Equal(uint64(60), s.st.Locks.Locked(a.Key(), s.now))

	s.Require().NoError(s.st.Burn(a, 30, s.now))
	s.Equal(uint64(40), s.st.Locks.Locked(a.Key(), s.now))
	s.Equal(uint64(0), s.st.Transferable(a, s.now))
}

func (s *RecorderSuite) TestSeizeToIssuer() {
	a := holder(walletA1, "a", usClass)
	s.Require().NoError(s.st.Issue(a, 10, s.now))
	s.Require().NoError(s.st.Locks.Add(a.Key(), models.Lock{Value: 10}, s.now))

	iss := Holder{Wallet: issuer, Special: models.SpecialIssuer}
	s.Require().NoError(s.st.Seize(a, iss, 10, s.now))
	s.Equal(uint64(10), s.st.Book.BalanceOf(issuer))
	s.Equal(0, s.st.Tracker.Counters.Get(counters.Total))
	s.Nil(s.st.Locks.Get(a.Key()))
}

// =============================================================================
// Issuance records and partitions
// =============================================================================

func (s *RecorderSuite) TestSweepDropsIssuancesPastLongestLock() {
	s.st.Config.USLockPeriod = time.Hour
	a := holder(walletA1, "a", usClass)
	s.st.RecordIssuance("a", 5, s.now.Add(-2*time.Hour))
	s.st.RecordIssuance("a", 7, s.now.Add(-time.Minute))

	s.st.Sweep(a, s.now)
	s.Equal([]models.IssuanceRecord{{Value: 7, Time: s.now.Add(-time.Minute)}}, s.st.Issuances["a"])
}

func (s *RecorderSuite) TestPartitionsAreConsumedFIFO() {
	o := Holder{Wallet: omnibus, Special: models.SpecialOmnibus}
	s.Require().NoError(s.st.Issue(o, 100, s.now.Add(time.Hour)))
	s.Require().NoError(s.st.Issue(o, 50, s.now))

	s.Require().NoError(s.st.Burn(o, 60, s.now))
	parts := s.st.Partitions[omnibus]
	s.Require().Len(parts, 1)
	s.Equal(uint64(90), parts[0].Value)
	s.Equal(s.now.Add(time.Hour), parts[0].IssuedAt)

	s.Run("insufficient partitions reject the debit", func() {
		err := s.st.ConsumePartitions(omnibus, 91)
		s.ErrorIs(err, ErrPartitionsShort)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(uint64(90), s.st.PartitionTotal(omnibus))
	})
}

// =============================================================================
// Clone and snapshot
// =============================================================================

func (s *RecorderSuite) TestCloneIsIndependent() {
	s.Require().NoError(s.st.Issue(holder(walletA1, "a", usClass), 10, s.now))
	c := s.st.Clone()
	s.Require().NoError(c.Burn(holder(walletA1, "a", usClass), 10, s.now))

	s.Equal(uint64(10), s.st.Book.TotalSupply)
	s.Equal(1, s.st.Tracker.Counters.Get(counters.Total))
	s.Equal(0, c.Tracker.Counters.Get(counters.Total))
}

func (s *RecorderSuite) TestSnapshotRoundTrip() {
	a := holder(walletA1, "a", usClass)
	s.Require().NoError(s.st.Issue(a, 10, s.now))
	s.Require().NoError(s.st.Locks.Add(a.Key(), models.Lock{ID: "l1", Value: 4}, s.now))

	data, err := json.Marshal(s.st)
	s.Require().NoError(err)
	restored := &State{}
	s.Require().NoError(json.Unmarshal(data, restored))
	restored.EnsureMaps()

	s.NoError(restored.Verify(s.now))
	s.Equal(uint64(6), restored.Transferable(a, s.now))
}

func (s *RecorderSuite) TestVerifyDetectsDrift() {
	s.Require().NoError(s.st.Issue(holder(walletA1, "a", usClass), 10, s.now))
	drifted := s.st.Clone()
	drifted.Tracker.Counters.Counts[counters.Total] = 2
	s.Error(drifted.Verify(s.now))
}
