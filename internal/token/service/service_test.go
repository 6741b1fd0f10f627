package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/omnibus"
	compliance "secutoken/internal/compliance/service"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	registrymodels "secutoken/internal/registry/models"
	registry "secutoken/internal/registry/service"
	registrystore "secutoken/internal/registry/store"
	trust "secutoken/internal/trust/service"
	truststore "secutoken/internal/trust/store"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/requestcontext"
)

// Justification for unit tests: the facade is the only place ownership and
// role checks meet the engine's only-token guard. These tests run the real
// engine, registry and trust services in memory.

const (
	token    id.Address = "0x00000000000000000000000000000000000000f0"
	master   id.Address = "0x0000000000000000000000000000000000000b0b"
	agent    id.Address = "0x0000000000000000000000000000000000000a0a"
	issuer   id.Address = "0x0000000000000000000000000000000000000e0e"
	alice    id.Address = "0x00000000000000000000000000000000000000a1"
	bob      id.Address = "0x00000000000000000000000000000000000000b1"
	omni     id.Address = "0x00000000000000000000000000000000000000cc"
	treasury id.Address = "0x00000000000000000000000000000000000000ee"
)

type TokenSuite struct {
	suite.Suite
	service *Service
	store   *store.Memory
	t0      time.Time
}

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

func (s *TokenSuite) as(caller id.Address, offset time.Duration) context.Context {
	ctx := requestcontext.WithTime(context.Background(), s.t0.Add(offset))
	return requestcontext.WithCaller(ctx, caller)
}

func (s *TokenSuite) SetupTest() {
	s.t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := s.as(master, 0)

	roles, err := trust.New(truststore.NewInMemoryStore())
	s.Require().NoError(err)
	s.Require().NoError(roles.Seed(ctx, master))
	s.Require().NoError(roles.Grant(ctx, agent, models.RoleTransferAgent))
	s.Require().NoError(roles.Grant(ctx, issuer, models.RoleIssuer))

	reg, err := registry.New(registrystore.NewInMemoryStore(), roles)
	s.Require().NoError(err)
	for inv, country := range map[string]string{"inv-alice": "US", "inv-bob": "DE"} {
		req := registrymodels.RegisterInvestorRequest{ID: inv, Country: country}
		s.Require().NoError(req.Validate())
		_, err := reg.RegisterInvestor(ctx, req)
		s.Require().NoError(err)
	}
	s.Require().NoError(reg.AddWallet(ctx, "inv-alice", alice))
	s.Require().NoError(reg.AddWallet(ctx, "inv-bob", bob))
	s.Require().NoError(reg.SetSpecialWallet(ctx, omni, models.SpecialOmnibus))
	s.Require().NoError(reg.SetSpecialWallet(ctx, treasury, models.SpecialIssuer))

	cfg := models.DefaultConfig()
	cfg.Countries = map[string]models.Region{"US": models.RegionUS, "DE": models.RegionEU}
	s.store = store.NewMemory(state.New(cfg))

	recorder, err := compliance.New(s.store, reg, reg, roles, compliance.WithTokenAddress(token))
	s.Require().NoError(err)
	reconciler, err := omnibus.New(s.store, reg, reg, omnibus.WithTokenAddress(token))
	s.Require().NoError(err)
	reg.SetListener(recorder)

	s.service, err = New(recorder, reconciler, roles)
	s.Require().NoError(err)
}

func (s *TokenSuite) TearDownTest() {
	s.NoError(s.store.View(context.Background(), func(st *state.State) error {
		return st.Verify(s.t0.Add(time.Hour))
	}))
}

func (s *TokenSuite) violationCode(err error) models.Code {
	var v *models.Violation
	s.Require().ErrorAs(err, &v)
	return v.Code
}

func (s *TokenSuite) TestNew() {
	_, err := New(nil, nil, nil)
	s.EqualError(err, "compliance recorder is required")
}

func (s *TokenSuite) TestLockedIssuanceReleasesOnTime() {
	_, err := s.service.Issue(s.as(issuer, 0), IssueRequest{
		To:     alice,
		Amount: 1000,
		Lock:   &compliance.LockSpec{Value: 1000, ReleaseTime: s.t0.Add(1000 * time.Second)},
	})
	s.Require().NoError(err)

	_, err = s.service.Transfer(s.as(alice, 0), alice, bob, 100)
	s.Equal(models.CodeTokensLocked, s.violationCode(err))

	receipt, err := s.service.Transfer(s.as(alice, 1001*time.Second), alice, bob, 100)
	s.Require().NoError(err)
	s.Equal(models.OpTransfer, receipt.Op)

	bal, err := s.service.BalanceOf(context.Background(), bob)
	s.Require().NoError(err)
	s.Equal(uint64(100), bal)
}

func (s *TokenSuite) TestTransferAuthorisation() {
	_, err := s.service.Issue(s.as(issuer, 0), IssueRequest{To: alice, Amount: 500})
	s.Require().NoError(err)

	s.Run("owner", func() {
		_, err := s.service.Transfer(s.as(alice, 0), alice, bob, 10)
		s.NoError(err)
	})
	s.Run("transfer agent", func() {
		_, err := s.service.Transfer(s.as(agent, 0), alice, bob, 10)
		s.NoError(err)
	})
	s.Run("someone else", func() {
		_, err := s.service.Transfer(s.as(bob, 0), alice, bob, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	bal, err := s.service.BalanceOf(context.Background(), bob)
	s.Require().NoError(err)
	s.Equal(uint64(20), bal)
}

func (s *TokenSuite) TestRoleGates() {
	_, err := s.service.Issue(s.as(agent, 0), IssueRequest{To: alice, Amount: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Issue(s.as("", 0), IssueRequest{To: alice, Amount: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Issue(s.as(master, 0), IssueRequest{To: alice, Amount: 100})
	s.Require().NoError(err)

	_, err = s.service.Burn(s.as(agent, 0), alice, 10, "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.Seize(s.as(agent, 0), alice, treasury, 40, "court order")
	s.Require().NoError(err)

	_, err = s.service.BulkIssue(s.as(agent, 0), omnibus.BulkRequest{Wallet: omni, Amount: 10})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	info, err := s.service.Info(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(100), info.TotalSupply)
}

func (s *TokenSuite) TestPauseBlocksTransfersNotIssuance() {
	_, err := s.service.Issue(s.as(issuer, 0), IssueRequest{To: alice, Amount: 100})
	s.Require().NoError(err)

	err = s.service.SetPaused(s.as(agent, 0), true)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Require().NoError(s.service.SetPaused(s.as(issuer, 0), true))

	_, err = s.service.Transfer(s.as(alice, 0), alice, bob, 10)
	s.Equal(models.CodeTokenPaused, s.violationCode(err))

	_, err = s.service.Issue(s.as(issuer, 0), IssueRequest{To: bob, Amount: 10})
	s.NoError(err)
}

func (s *TokenSuite) TestOmnibusFlow() {
	ctx := s.as(issuer, 0)
	_, err := s.service.BulkIssue(ctx, omnibus.BulkRequest{Wallet: omni, Amount: 1000, Deltas: map[string]int{"total": 2, "us": 2, "non_accredited": 2}})
	s.Require().NoError(err)

	_, err = s.service.BulkTransfer(ctx, omnibus.BulkRequest{Wallet: omni, Amount: 300, Deltas: map[string]int{"total": 1, "us": 1, "non_accredited": 1}}, alice)
	s.Require().NoError(err)

	_, err = s.service.AdjustCounters(ctx, omni, map[string]int{"non_accredited": -1, "accredited": 1})
	s.Require().NoError(err)

	_, err = s.service.BulkBurn(ctx, omnibus.BulkRequest{Wallet: omni, Amount: 1500})
	s.ErrorIs(err, state.ErrPartitionsShort)

	bal, err := s.service.BalanceOf(ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(300), bal)
}
