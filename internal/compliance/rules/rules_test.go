package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func usParty(inv string, balance uint64) Party {
	return Party{
		Wallet:        id.Address("0x00000000000000000000000000000000000000" + inv + inv),
		Investor:      id.InvestorID("inv-" + inv),
		Class:         models.Classification{Country: "US", Region: models.RegionUS},
		Balance:       balance,
		Aggregate:     balance,
		Transferable:  balance,
		AccreditedNow: false,
	}
}

func euParty(inv string, balance uint64) Party {
	p := usParty(inv, balance)
	p.Class = models.Classification{Country: "FR", Region: models.RegionEU}
	return p
}

func baseConfig() models.Config {
	cfg := models.DefaultConfig()
	cfg.Countries = map[string]models.Region{"US": models.RegionUS, "FR": models.RegionEU, "KP": models.RegionForbidden}
	return cfg
}

type RegulatedSuite struct {
	suite.Suite
	in TransferInput
}

func TestRegulatedSuite(t *testing.T) {
	suite.Run(t, new(RegulatedSuite))
}

func (s *RegulatedSuite) SetupTest() {
	s.in = TransferInput{
		From:     usParty("a", 100),
		To:       usParty("b", 0),
		Amount:   60,
		Now:      now,
		Config:   baseConfig(),
		Counters: counters.New(),
	}
}

func (s *RegulatedSuite) check() models.Code {
	return Regulated{}.CheckTransfer(s.in).Code
}

// =============================================================================
// Rules 1 to 5
// =============================================================================

func (s *RegulatedSuite) TestValidTransfer() {
	s.Equal(models.CodeValid, s.check())
}

func (s *RegulatedSuite) TestPausedWinsOverEverything() {
	s.in.Paused = true
	s.in.Amount = 1000
	s.in.To.Investor = ""
	s.Equal(models.CodeTokenPaused, s.check())
}

func (s *RegulatedSuite) TestNotEnoughTokens() {
	s.in.Amount = 101
	s.Equal(models.CodeNotEnoughTokens, s.check())
}

func (s *RegulatedSuite) TestReceiverMustBeRegisteredOrSpecial() {
	s.in.To.Investor = ""
	s.Equal(models.CodeWalletNotInRegistry, s.check())

	s.in.To.Special = models.SpecialExchange
	s.Equal(models.CodeValid, s.check())
}

// Justification: the documented lock scenario. 100 held, 50 locked, 60 moved.
func (s *RegulatedSuite) TestTokensLocked() {
	s.in.From.Transferable = 50
	s.Equal(models.CodeTokensLocked, s.check())

	s.in.From.Transferable = 100
	s.Equal(models.CodeValid, s.check())
}

func (s *RegulatedSuite) TestFullyLockedSenderTransfersNothing() {
	s.in.From.Transferable = 0
	s.in.Amount = 1
	s.Equal(models.CodeTokensLocked, s.check())
}

func (s *RegulatedSuite) TestLiquidateOnlyReceiver() {
	s.in.To.Flags.LiquidateOnly = true
	s.Equal(models.CodeInvestorLiquidateOnly, s.check())
}

// =============================================================================
// Rules 6 to 12
// =============================================================================

func (s *RegulatedSuite) TestDestinationRestricted() {
	s.in.To.Class = models.Classification{Country: "KP", Region: models.RegionForbidden}
	s.Equal(models.CodeDestinationRestricted, s.check())
}

func (s *RegulatedSuite) TestLockUp() {
	s.in.Config.USLockPeriod = 24 * time.Hour
	s.in.From.Issuances = []models.IssuanceRecord{{Value: 50, Time: now.Add(-time.Hour)}}
	s.Equal(models.CodeHoldUp, s.check())

	s.in.Amount = 50
	s.Equal(models.CodeValid, s.check())

	s.Run("lock-up lapses after the period", func() {
		s.in.Amount = 60
		s.in.Now = now.Add(24 * time.Hour)
		s.Equal(models.CodeValid, s.check())
	})
}

func (s *RegulatedSuite) TestForceFullTransfer() {
	s.in.Config.ForceFullTransfer = true
	s.Equal(models.CodeOnlyFullTransfer, s.check())

	s.Run("non-US sender is unaffected by the targeted flag", func() {
		s.in.From = euParty("a", 100)
		s.Equal(models.CodeValid, s.check())
	})

	s.Run("world-wide flag catches everyone", func() {
		s.in.Config.WorldWideForceFullTransfer = true
		s.Equal(models.CodeOnlyFullTransfer, s.check())
		s.in.Amount = 100
		s.Equal(models.CodeValid, s.check())
	})
}

func (s *RegulatedSuite) TestFlowback() {
	s.in.From = euParty("a", 100)
	s.in.Config.BlockFlowbackEndTime = now.Add(time.Hour)
	s.Equal(models.CodeFlowback, s.check())

	s.in.Now = now.Add(time.Hour)
	s.Equal(models.CodeValid, s.check())
}

func (s *RegulatedSuite) TestAccreditation() {
	s.in.Config.ForceAccreditedUS = true
	s.Equal(models.CodeOnlyUSAccredited, s.check())

	s.in.Config.ForceAccredited = true
	s.Equal(models.CodeOnlyAccredited, s.check())

	s.in.To.AccreditedNow = true
	s.Equal(models.CodeValid, s.check())
}

func (s *RegulatedSuite) TestCategoryCap() {
	s.in.Config.Limits.US = 1
	s.Require().NoError(s.in.Counters.Apply(counters.Deltas{counters.Total: 1, counters.US: 1, counters.NonAccredited: 1}))
	s.Equal(models.CodeMaxInvestorsInCategory, s.check())

	s.Run("sender leaving frees its own slot", func() {
		s.in.Amount = 100
		s.Equal(models.CodeValid, s.check())
	})

	s.Run("existing holder never trips the cap", func() {
		s.in.Amount = 60
		s.in.To.Aggregate = 10
		s.in.To.Balance = 10
		s.Equal(models.CodeValid, s.check())
	})
}

func (s *RegulatedSuite) TestHoldingBounds() {
	s.in.Config.MinimumHoldingsPerInvestor = 70
	s.Equal(models.CodeAmountUnderMin, s.check())

	s.Run("sender remainder under minimum", func() {
		s.in.Config.MinimumHoldingsPerInvestor = 50
		s.in.Amount = 60
		s.Equal(models.CodeAmountUnderMin, s.check())
	})

	s.Run("full exit is allowed", func() {
		s.in.Amount = 100
		s.Equal(models.CodeValid, s.check())
	})

	s.Run("maximum", func() {
		s.in.Config.MinimumHoldingsPerInvestor = 0
		s.in.Config.MaximumHoldingsPerInvestor = 59
		s.in.Amount = 60
		s.Equal(models.CodeAmountAboveMax, s.check())
	})
}

// Justification: intra-investor moves must skip rules 6-12 but keep 2 and 4.
func (s *RegulatedSuite) TestSameInvestorBypass() {
	s.in.To.Investor = s.in.From.Investor
	s.in.To.Class = models.Classification{Country: "KP", Region: models.RegionForbidden}
	s.in.Config.WorldWideForceFullTransfer = true
	s.Equal(models.CodeValid, s.check())

	s.in.From.Transferable = 10
	s.Equal(models.CodeTokensLocked, s.check())
}

func (s *RegulatedSuite) TestSpecialSenderSkipsInvestorRules() {
	s.in.From.Special = models.SpecialIssuer
	s.in.From.Investor = ""
	s.in.Config.WorldWideForceFullTransfer = true
	s.in.Config.USLockPeriod = time.Hour
	s.in.From.Issuances = []models.IssuanceRecord{{Value: 100, Time: now}}
	s.Equal(models.CodeValid, s.check())
}

// =============================================================================
// Issuance and other strategies
// =============================================================================

func TestRegulatedIssuance(t *testing.T) {
	in := IssuanceInput{To: usParty("b", 0), Amount: 10, Now: now, Config: baseConfig(), Counters: counters.New()}
	assert.Equal(t, models.CodeValid, Regulated{}.CheckIssuance(in).Code)

	in.To.Investor = ""
	assert.Equal(t, models.CodeWalletNotInRegistry, Regulated{}.CheckIssuance(in).Code)

	in.To.Special = models.SpecialIssuer
	assert.Equal(t, models.CodeValid, Regulated{}.CheckIssuance(in).Code)

	in = IssuanceInput{To: usParty("b", 0), Amount: 10, Now: now, Config: baseConfig(), Counters: counters.New()}
	in.Config.Limits.Total = 1
	assert.NoError(t, in.Counters.Apply(counters.Deltas{counters.Total: 1}))
	assert.Equal(t, models.CodeMaxInvestorsInCategory, Regulated{}.CheckIssuance(in).Code)
}

func TestStrategySelection(t *testing.T) {
	in := TransferInput{From: usParty("a", 10), To: Party{}, Amount: 5, Now: now, Config: baseConfig(), Counters: counters.New()}

	assert.Equal(t, models.CodeValid, For(models.ServiceNotRegulated).CheckTransfer(in).Code)
	assert.Equal(t, models.CodeWalletNotInRegistry, For(models.ServiceWhitelisted).CheckTransfer(in).Code)
	assert.Equal(t, models.CodeWalletNotInRegistry, For(models.ServiceRegulated).CheckTransfer(in).Code)

	in.From.Transferable = 0
	assert.Equal(t, models.CodeTokensLocked, For(models.ServiceNotRegulated).CheckTransfer(in).Code)
}

func TestLockedUp(t *testing.T) {
	recs := []models.IssuanceRecord{
		{Value: 10, Time: now.Add(-48 * time.Hour)},
		{Value: 5, Time: now.Add(-time.Hour)},
	}
	assert.Equal(t, uint64(5), LockedUp(recs, 24*time.Hour, now))
	assert.Equal(t, uint64(0), LockedUp(recs, 0, now))
}

func TestCheckBurn(t *testing.T) {
	assert.Equal(t, models.CodeNotEnoughTokens, CheckBurn(Party{Balance: 3}, 4).Code)
	assert.True(t, CheckBurn(Party{Balance: 3}, 3).OK())
}
