package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/compliance/ports/mocks"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// Justification for unit tests: the service glues registry facts, the rule
// evaluator and the state machine together inside one transaction. These tests
// pin the glue: only-token and role guards, rollback on rejection and audit
// failure, lazy reconciliation, and that committed state always verifies.

const (
	token        id.Address = "0x00000000000000000000000000000000000000f0"
	walletA      id.Address = "0x00000000000000000000000000000000000000a1"
	walletA2     id.Address = "0x00000000000000000000000000000000000000a2"
	walletB      id.Address = "0x00000000000000000000000000000000000000b1"
	walletC      id.Address = "0x00000000000000000000000000000000000000c1"
	walletIssuer id.Address = "0x00000000000000000000000000000000000000ee"
	walletStray  id.Address = "0x00000000000000000000000000000000000000dd"

	agent    id.Address = "0x0000000000000000000000000000000000000a0a"
	master   id.Address = "0x0000000000000000000000000000000000000b0b"
	stranger id.Address = "0x0000000000000000000000000000000000000c0c"

	invA id.InvestorID = "inv-a"
	invB id.InvestorID = "inv-b"
	invC id.InvestorID = "inv-c"
)

// world is the registry and trust truth the mocks answer from.
type world struct {
	mu       sync.Mutex
	owners   map[id.Address]id.InvestorID
	profiles map[id.InvestorID]*ports.InvestorProfile
	specials map[id.Address]models.SpecialKind
	roles    map[id.Address]models.Role
}

func newWorld() *world {
	return &world{
		owners: map[id.Address]id.InvestorID{
			walletA:  invA,
			walletA2: invA,
			walletB:  invB,
			walletC:  invC,
		},
		profiles: map[id.InvestorID]*ports.InvestorProfile{
			invA: {Investor: invA, Country: "US"},
			invB: {Investor: invB, Country: "DE"},
			invC: {Investor: invC, Country: "JP"},
		},
		specials: map[id.Address]models.SpecialKind{walletIssuer: models.SpecialIssuer},
		roles:    map[id.Address]models.Role{agent: models.RoleTransferAgent, master: models.RoleMaster},
	}
}

func (w *world) setCountry(inv id.InvestorID, country string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := *w.profiles[inv]
	p.Country = country
	w.profiles[inv] = &p
}

// link points wallet at inv in the registry; an empty inv unlinks it.
func (w *world) link(wallet id.Address, inv id.InvestorID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if inv.IsNil() {
		delete(w.owners, wallet)
		return
	}
	w.owners[wallet] = inv
}

// recorder captures emitted audit events.
type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Emit(_ context.Context, e audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	world   *world
	store   *store.Memory
	audit   *recorder
	service *Service
	t0      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func testConfig() models.Config {
	cfg := models.DefaultConfig()
	cfg.Countries = map[string]models.Region{
		"US": models.RegionUS,
		"DE": models.RegionEU,
		"JP": models.RegionJP,
		"KP": models.RegionForbidden,
	}
	return cfg
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.world = newWorld()
	s.store = store.NewMemory(state.New(testConfig()))
	s.audit = &recorder{}
	s.t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.service = s.newService(s.audit)
}

func (s *ServiceSuite) TearDownTest() {
	s.NoError(s.service.Verify(s.at(0)))
}

// newService wires mocks that answer from s.world.
func (s *ServiceSuite) newService(publisher ports.AuditPublisher) *Service {
	registry := mocks.NewMockRegistry(s.ctrl)
	registry.EXPECT().InvestorOf(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w id.Address) (id.InvestorID, error) {
			s.world.mu.Lock()
			defer s.world.mu.Unlock()
			return s.world.owners[w], nil
		}).AnyTimes()
	registry.EXPECT().Profile(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, inv id.InvestorID) (*ports.InvestorProfile, error) {
			s.world.mu.Lock()
			defer s.world.mu.Unlock()
			p, ok := s.world.profiles[inv]
			if !ok {
				return nil, dErrors.New(dErrors.CodeNotFound, "investor not found")
			}
			return p, nil
		}).AnyTimes()
	registry.EXPECT().AssignWallet(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w id.Address, inv id.InvestorID) error {
			s.world.mu.Lock()
			defer s.world.mu.Unlock()
			s.world.owners[w] = inv
			return nil
		}).AnyTimes()

	wallets := mocks.NewMockWalletClassifier(s.ctrl)
	wallets.EXPECT().SpecialKind(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, w id.Address) (models.SpecialKind, error) {
			s.world.mu.Lock()
			defer s.world.mu.Unlock()
			return s.world.specials[w], nil
		}).AnyTimes()

	trust := mocks.NewMockTrustService(s.ctrl)
	trust.EXPECT().HasRole(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, addr id.Address, role models.Role) (bool, error) {
			s.world.mu.Lock()
			defer s.world.mu.Unlock()
			return s.world.roles[addr] == role, nil
		}).AnyTimes()

	svc, err := New(s.store, registry, wallets, trust,
		WithAuditPublisher(publisher),
		WithTokenAddress(token),
	)
	s.Require().NoError(err)
	return svc
}

// at returns a context pinned to t0 plus offset seconds.
func (s *ServiceSuite) at(offset int) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(time.Duration(offset)*time.Second))
}

func (s *ServiceSuite) as(ctx context.Context, caller id.Address) context.Context {
	return requestcontext.WithCaller(ctx, caller)
}

func (s *ServiceSuite) issue(ctx context.Context, to id.Address, amount uint64, lock *LockSpec) {
	_, err := s.service.ValidateIssuance(ctx, token, IssuanceRequest{To: to, Amount: amount, Lock: lock})
	s.Require().NoError(err)
}

func (s *ServiceSuite) requireViolation(err error, code models.Code) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceViolation), "expected compliance violation, got %v", err)
	var v *models.Violation
	s.Require().ErrorAs(err, &v)
	s.Equal(code, v.Code)
}

func (s *ServiceSuite) balance(w id.Address) uint64 {
	bal, err := s.service.BalanceOf(context.Background(), w)
	s.Require().NoError(err)
	return bal
}

func (s *ServiceSuite) counts() map[counters.Category]int {
	snap, err := s.service.Counters(context.Background())
	s.Require().NoError(err)
	return snap
}

// =============================================================================
// Constructor
// =============================================================================

// Justification: constructor invariants prevent a service without collaborators.
func (s *ServiceSuite) TestNew() {
	registry := mocks.NewMockRegistry(s.ctrl)
	wallets := mocks.NewMockWalletClassifier(s.ctrl)
	trust := mocks.NewMockTrustService(s.ctrl)

	s.Run("nil store", func() {
		_, err := New(nil, registry, wallets, trust, WithTokenAddress(token))
		s.EqualError(err, "state store is required")
	})
	s.Run("nil registry", func() {
		_, err := New(s.store, nil, wallets, trust, WithTokenAddress(token))
		s.EqualError(err, "registry is required")
	})
	s.Run("nil wallet classifier", func() {
		_, err := New(s.store, registry, nil, trust, WithTokenAddress(token))
		s.EqualError(err, "wallet classifier is required")
	})
	s.Run("nil trust", func() {
		_, err := New(s.store, registry, wallets, nil, WithTokenAddress(token))
		s.EqualError(err, "trust service is required")
	})
	s.Run("missing token address", func() {
		_, err := New(s.store, registry, wallets, trust)
		s.EqualError(err, "token address is required")
	})
	s.Run("defaults", func() {
		svc, err := New(s.store, registry, wallets, trust, WithTokenAddress(token))
		s.Require().NoError(err)
		s.NotNil(svc.logger)
		s.NotNil(svc.tracer)
		s.Equal(token, svc.TokenAddress())
	})
}

// =============================================================================
// Lock scenario
// =============================================================================

func (s *ServiceSuite) TestTimedLockReleasesAndCountersFollowTheTransfer() {
	ctx := s.at(0)
	s.issue(ctx, walletA, 100, &LockSpec{Value: 50, ReasonCode: 1, ReasonText: "vesting", ReleaseTime: s.t0.Add(1000 * time.Second)})

	s.Run("locked portion blocks an oversized transfer", func() {
		res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 60)
		s.Equal(models.CodeTokensLocked, res.Code)
	})

	s.Run("check passes once the lock has released", func() {
		res := s.service.PreTransferCheck(s.at(1001), walletA, walletB, 60)
		s.Equal(models.CodeValid, res.Code)

		view, err := s.service.Locks(s.at(0), walletA)
		s.Require().NoError(err)
		s.Len(view.Locks, 1, "the advisory check must not commit the sweep")
	})

	s.Run("full transfer moves category membership", func() {
		before := s.counts()
		s.Equal(1, before[counters.US])
		s.Equal(1, before[counters.Total])

		receipt, err := s.service.ValidateTransfer(s.at(1001), token, walletA, walletB, 100)
		s.Require().NoError(err)
		s.Equal(models.OpTransfer, receipt.Op)
		s.Equal(uint64(100), receipt.Amount)

		after := s.counts()
		s.Zero(after[counters.US])
		s.Equal(1, after[counters.EURetail("DE")])
		s.Equal(1, after[counters.Total])
		s.Equal(1, after[counters.NonAccredited])
		s.Zero(s.balance(walletA))
		s.Equal(uint64(100), s.balance(walletB))
	})

	s.Contains(s.audit.actions(), string(audit.EventTokenIssued))
	s.Contains(s.audit.actions(), string(audit.EventTokenTransferred))
	s.Contains(s.audit.actions(), string(audit.EventTransferChecked))
}

func (s *ServiceSuite) TestLocksViewAfterRelease() {
	s.issue(s.at(0), walletA, 100, &LockSpec{Value: 50, ReleaseTime: s.t0.Add(time.Minute)})

	view, err := s.service.Locks(s.at(0), walletA)
	s.Require().NoError(err)
	s.Equal(uint64(50), view.Locked)
	s.Equal(uint64(50), view.Transferable)

	view, err = s.service.Locks(s.at(61), walletA)
	s.Require().NoError(err)
	s.Empty(view.Locks)
	s.Equal(uint64(100), view.Transferable)
}

// =============================================================================
// Enforcing tier
// =============================================================================

func (s *ServiceSuite) TestOnlyTokenMayRecord() {
	_, err := s.service.ValidateTransfer(s.at(0), stranger, walletA, walletB, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.ValidateIssuance(s.at(0), stranger, IssuanceRequest{To: walletA, Amount: 1})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.service.ValidateBurn(s.at(0), stranger, walletA, 1, "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestInputValidation() {
	s.Run("zero amount", func() {
		_, err := s.service.ValidateTransfer(s.at(0), token, walletA, walletB, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("self transfer", func() {
		_, err := s.service.ValidateTransfer(s.at(0), token, walletA, walletA, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("lock larger than issuance", func() {
		_, err := s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletA, Amount: 10, Lock: &LockSpec{Value: 11}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRejectionLeavesStateUntouched() {
	s.issue(s.at(0), walletA, 100, nil)

	_, err := s.service.ValidateTransfer(s.at(0), token, walletA, walletStray, 10)
	s.requireViolation(err, models.CodeWalletNotInRegistry)

	_, err = s.service.ValidateTransfer(s.at(0), token, walletA, walletB, 101)
	s.requireViolation(err, models.CodeNotEnoughTokens)

	s.Equal(uint64(100), s.balance(walletA))
	s.Zero(s.balance(walletStray))
	s.NotContains(s.audit.actions(), string(audit.EventTokenTransferred))
}

func (s *ServiceSuite) TestIssuanceRules() {
	s.Run("unregistered receiver", func() {
		_, err := s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletStray, Amount: 5})
		s.requireViolation(err, models.CodeWalletNotInRegistry)
	})
	s.Run("special wallets bypass the registry", func() {
		s.issue(s.at(0), walletIssuer, 5, nil)
		s.Equal(uint64(5), s.balance(walletIssuer))
		s.Zero(s.counts()[counters.Total])
	})
	s.Run("issuance ignores pause", func() {
		s.Require().NoError(s.service.SetPaused(s.as(s.at(0), master), true))
		s.issue(s.at(0), walletA, 10, nil)

		_, err := s.service.ValidateTransfer(s.at(0), token, walletA, walletB, 1)
		s.requireViolation(err, models.CodeTokenPaused)
		s.Require().NoError(s.service.SetPaused(s.as(s.at(0), master), false))
	})
}

func (s *ServiceSuite) TestAuthorizedSecuritiesCap() {
	cfg := testConfig()
	cfg.AuthorizedSecurities = 150
	_, err := s.service.UpdateConfig(s.as(s.at(0), master), cfg)
	s.Require().NoError(err)

	s.issue(s.at(0), walletA, 100, nil)
	_, err = s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletB, Amount: 51})
	s.True(dErrors.HasCode(err, dErrors.CodeComplianceViolation))
	s.ErrorContains(err, "Max authorized securities exceeded")

	s.issue(s.at(0), walletB, 50, nil)
	info, err := s.service.TokenInfo(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(150), info.TotalSupply)
}

func (s *ServiceSuite) TestBurnConsumesUnlockedTokensFirst() {
	s.issue(s.at(0), walletA, 100, &LockSpec{Value: 60})

	_, err := s.service.ValidateBurn(s.at(0), token, walletA, 30, "redemption")
	s.Require().NoError(err)
	view, err := s.service.Locks(s.at(0), walletA)
	s.Require().NoError(err)
	s.Equal(uint64(60), view.Locked)
	s.Equal(uint64(10), view.Transferable)

	_, err = s.service.ValidateBurn(s.at(0), token, walletA, 30, "redemption")
	s.Require().NoError(err)
	view, err = s.service.Locks(s.at(0), walletA)
	s.Require().NoError(err)
	s.Equal(uint64(40), view.Balance)
	s.Equal(uint64(40), view.Locked)

	_, err = s.service.ValidateBurn(s.at(0), token, walletA, 50, "redemption")
	s.requireViolation(err, models.CodeNotEnoughTokens)

	info, err := s.service.TokenInfo(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(100), info.TotalIssued)
	s.Equal(uint64(60), info.TotalBurned)
}

func (s *ServiceSuite) TestSeize() {
	s.issue(s.at(0), walletA, 100, &LockSpec{Value: 100})

	s.Run("target must be an issuer or platform wallet", func() {
		_, err := s.service.ValidateSeize(s.at(0), token, walletA, walletB, 10, "court order")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("locked tokens can be seized", func() {
		receipt, err := s.service.ValidateSeize(s.at(0), token, walletA, walletIssuer, 100, "court order")
		s.Require().NoError(err)
		s.Equal(models.OpSeize, receipt.Op)
		s.Equal(uint64(100), s.balance(walletIssuer))
		s.Zero(s.counts()[counters.Total])
	})
}

// =============================================================================
// Collaborator failures
// =============================================================================

// Justification: a failing audit sink must abort the mutation it describes.
func (s *ServiceSuite) TestAuditFailureRollsBack() {
	publisher := mocks.NewMockAuditPublisher(s.ctrl)
	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink unavailable"))
	svc := s.newService(publisher)

	_, err := svc.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletA, Amount: 10})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	info, err := svc.TokenInfo(context.Background())
	s.Require().NoError(err)
	s.Zero(info.TotalSupply)
	s.Zero(s.counts()[counters.Total])
}

// Justification: the advisory tier never errors; lookup failures map to 99.
func (s *ServiceSuite) TestLookupFailureIsCode99() {
	registry := mocks.NewMockRegistry(s.ctrl)
	registry.EXPECT().InvestorOf(gomock.Any(), gomock.Any()).Return(id.InvestorID(""), errors.New("registry down")).AnyTimes()
	wallets := mocks.NewMockWalletClassifier(s.ctrl)
	wallets.EXPECT().SpecialKind(gomock.Any(), gomock.Any()).Return(models.SpecialNone, nil).AnyTimes()
	trust := mocks.NewMockTrustService(s.ctrl)

	svc, err := New(s.store, registry, wallets, trust, WithTokenAddress(token))
	s.Require().NoError(err)

	res := svc.PreTransferCheck(s.at(0), walletA, walletB, 1)
	s.Equal(models.CodeLookupFailed, res.Code)

	_, err = svc.ValidateTransfer(s.at(0), token, walletA, walletB, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// =============================================================================
// Administrative operations
// =============================================================================

func (s *ServiceSuite) TestRoleGuards() {
	s.Run("anonymous caller", func() {
		err := s.service.SetPaused(s.at(0), true)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
	s.Run("caller without role is denied and audited", func() {
		err := s.service.SetFlags(s.as(s.at(0), stranger), invA, models.InvestorFlags{LiquidateOnly: true})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Contains(s.audit.actions(), string(audit.EventAccessDenied))
	})
	s.Run("transfer agent cannot pause", func() {
		err := s.service.SetPaused(s.as(s.at(0), agent), true)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
	s.Run("master satisfies every role", func() {
		s.NoError(s.service.SetFlags(s.as(s.at(0), master), invA, models.InvestorFlags{}))
	})
}

func (s *ServiceSuite) TestLiquidateOnlyBlocksInflows() {
	s.issue(s.at(0), walletA, 100, nil)
	s.Require().NoError(s.service.SetFlags(s.as(s.at(0), agent), invB, models.InvestorFlags{LiquidateOnly: true}))

	flags, err := s.service.Flags(context.Background(), invB)
	s.Require().NoError(err)
	s.True(flags.LiquidateOnly)

	_, err = s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletB, Amount: 10})
	s.requireViolation(err, models.CodeInvestorLiquidateOnly)

	res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 10)
	s.Equal(models.CodeInvestorLiquidateOnly, res.Code)
}

func (s *ServiceSuite) TestFullyLockedInvestorCannotSend() {
	s.issue(s.at(0), walletA, 100, nil)
	s.Require().NoError(s.service.SetFlags(s.as(s.at(0), agent), invA, models.InvestorFlags{FullyLocked: true}))

	res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 1)
	s.Equal(models.CodeTokensLocked, res.Code)
}

func (s *ServiceSuite) TestAddAndRemoveLock() {
	s.issue(s.at(0), walletA, 100, nil)
	ctx := s.as(s.at(0), agent)

	s.Run("lock beyond balance is rejected", func() {
		_, err := s.service.AddLock(ctx, walletA, LockSpec{Value: 101})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
	s.Run("lock whose sum with existing locks overflows is rejected", func() {
		_, err := s.service.AddLock(ctx, walletA, LockSpec{Value: 50})
		s.Require().NoError(err)
		_, err = s.service.AddLock(ctx, walletA, LockSpec{Value: math.MaxUint64 - 49})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 100)
		s.Equal(models.CodeTokensLocked, res.Code)

		_, err = s.service.RemoveLock(ctx, walletA, 0)
		s.Require().NoError(err)
	})
	s.Run("locks are per investor across wallets", func() {
		lock, err := s.service.AddLock(ctx, walletA, LockSpec{Value: 70, ReasonText: "pledge"})
		s.Require().NoError(err)
		s.NotEmpty(lock.ID)

		view, err := s.service.Locks(s.at(0), walletA2)
		s.Require().NoError(err)
		s.Equal(uint64(70), view.Locked)
		s.Equal(uint64(30), view.Transferable)
	})
	s.Run("out of range index", func() {
		_, err := s.service.RemoveLock(ctx, walletA, 5)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("remove restores transferability", func() {
		removed, err := s.service.RemoveLock(ctx, walletA, 0)
		s.Require().NoError(err)
		s.Equal(uint64(70), removed.Value)

		res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 100)
		s.Equal(models.CodeValid, res.Code)
	})
}

// Justification: removal indexes address live locks; an expired record still
// stored ahead of a live one must not shift or widen the valid range.
func (s *ServiceSuite) TestRemoveLockIndexesLiveLocks() {
	s.issue(s.at(0), walletA, 100, nil)
	ctx := s.as(s.at(0), agent)
	_, err := s.service.AddLock(ctx, walletA, LockSpec{Value: 10, ReleaseTime: s.t0.Add(time.Minute)})
	s.Require().NoError(err)
	_, err = s.service.AddLock(ctx, walletA, LockSpec{Value: 20})
	s.Require().NoError(err)

	later := s.as(s.at(120), agent)
	_, err = s.service.RemoveLock(later, walletA, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	removed, err := s.service.RemoveLock(later, walletA, 0)
	s.Require().NoError(err)
	s.Equal(uint64(20), removed.Value)
}

func (s *ServiceSuite) TestUpdateConfig() {
	cfg := testConfig()
	cfg.Service = models.ServiceWhitelisted

	_, err := s.service.UpdateConfig(s.as(s.at(0), agent), cfg)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	bad := testConfig()
	bad.Service = "loose"
	_, err = s.service.UpdateConfig(s.as(s.at(0), master), bad)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	out, err := s.service.UpdateConfig(s.as(s.at(0), master), cfg)
	s.Require().NoError(err)
	s.Equal(uint64(2), out.Version)

	receipt, err := s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletA, Amount: 1})
	s.Require().NoError(err)
	s.Equal(uint64(2), receipt.ConfigVersion)
}

// Justification: a country remap must move counted investors in the commit
// that bumps the version, not on their next transfer.
func (s *ServiceSuite) TestUpdateConfigReclassifiesMembers() {
	s.issue(s.at(0), walletB, 10, nil)
	s.issue(s.at(0), walletC, 10, nil)
	snap := s.counts()
	s.Equal(1, snap[counters.EURetail("DE")])
	s.Equal(1, snap[counters.JP])

	cfg := testConfig()
	cfg.Countries["DE"] = models.RegionNone
	cfg.Countries["JP"] = models.RegionEU
	cfg.Countries["SG"] = models.RegionJP
	cfg.Limits.JP = 1
	out, err := s.service.UpdateConfig(s.as(s.at(0), master), cfg)
	s.Require().NoError(err)
	s.Equal(uint64(2), out.Version)

	snap = s.counts()
	s.Zero(snap[counters.EURetail("DE")])
	s.Zero(snap[counters.JP])
	s.Equal(1, snap[counters.EURetail("JP")])
	s.Equal(2, snap[counters.Total])

	s.Run("freed category cap admits a new investor", func() {
		s.world.setCountry(invA, "SG")
		s.issue(s.at(0), walletA, 10, nil)
		s.Equal(1, s.counts()[counters.JP])
	})
}

// Justification: a back-dated issuance time only shortens the lock-up when
// the configuration allows it.
func (s *ServiceSuite) TestIssuanceLockUpBackDating() {
	cfg := testConfig()
	cfg.USLockPeriod = 24 * time.Hour
	cfg.NonUSLockPeriod = 24 * time.Hour
	_, err := s.service.UpdateConfig(s.as(s.at(0), master), cfg)
	s.Require().NoError(err)
	backDated := s.t0.Add(-48 * time.Hour)

	s.Run("back-dated time clears the lock-up", func() {
		_, err := s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletA, Amount: 100, IssuedAt: backDated})
		s.Require().NoError(err)

		res := s.service.PreTransferCheck(s.at(0), walletA, walletB, 100)
		s.Equal(models.CodeValid, res.Code)
	})
	s.Run("back-dated time is ignored when disallowed", func() {
		strict := cfg
		strict.DisallowBackDating = true
		_, err := s.service.UpdateConfig(s.as(s.at(0), master), strict)
		s.Require().NoError(err)

		_, err = s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletC, Amount: 40, IssuedAt: backDated})
		s.Require().NoError(err)

		res := s.service.PreTransferCheck(s.at(0), walletC, walletB, 40)
		s.Equal(models.CodeHoldUp, res.Code)

		res = s.service.PreTransferCheck(s.at(24*60*60+1), walletC, walletB, 40)
		s.Equal(models.CodeValid, res.Code)
	})
}

func (s *ServiceSuite) TestSyncInvestorMovesCategory() {
	s.issue(s.at(0), walletA, 100, nil)
	s.Equal(1, s.counts()[counters.US])

	s.world.setCountry(invA, "JP")
	s.Require().NoError(s.service.SyncInvestor(s.at(0), invA))

	snap := s.counts()
	s.Zero(snap[counters.US])
	s.Equal(1, snap[counters.JP])
	s.Equal(1, snap[counters.Total])

	s.Run("non members are left alone", func() {
		s.Require().NoError(s.service.SyncInvestor(s.at(0), invC))
		s.Equal(1, s.counts()[counters.Total])
	})
}

func (s *ServiceSuite) TestReassignWallet() {
	s.issue(s.at(0), walletA, 100, nil)
	s.issue(s.at(0), walletC, 10, nil)

	err := s.service.ReassignWallet(s.as(s.at(0), agent), walletIssuer, invC)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(s.service.ReassignWallet(s.as(s.at(0), agent), walletA, invC))

	snap := s.counts()
	s.Zero(snap[counters.US])
	s.Equal(1, snap[counters.JP])
	s.Equal(1, snap[counters.Total])

	view, err := s.service.Locks(s.at(0), walletC)
	s.Require().NoError(err)
	s.Equal(uint64(110), view.Balance)
}

// Justification: linking or unlinking a funded wallet in the registry must
// move its balance and counter membership before the next decision reads them.
func (s *ServiceSuite) TestReconcileWalletFollowsRegistry() {
	cfg := testConfig()
	cfg.Limits.Total = 2
	_, err := s.service.UpdateConfig(s.as(s.at(0), master), cfg)
	s.Require().NoError(err)

	s.issue(s.at(0), walletA, 100, nil)
	s.issue(s.at(0), walletB, 10, nil)
	_, err = s.service.ValidateIssuance(s.at(0), token, IssuanceRequest{To: walletC, Amount: 10})
	s.requireViolation(err, models.CodeMaxInvestorsInCategory)

	s.Run("unlinked wallet leaves the owner's aggregate", func() {
		s.world.link(walletA, "")
		s.Require().NoError(s.service.ReconcileWallet(s.at(0), walletA))

		snap := s.counts()
		s.Zero(snap[counters.US])
		s.Equal(1, snap[counters.Total])

		view, err := s.service.Locks(s.at(0), walletA2)
		s.Require().NoError(err)
		s.Zero(view.Balance)

		s.issue(s.at(0), walletC, 10, nil)
		s.Equal(2, s.counts()[counters.Total])
	})
	s.Run("linked wallet joins the new owner's aggregate", func() {
		s.world.link(walletA, invC)
		s.Require().NoError(s.service.ReconcileWallet(s.at(0), walletA))

		snap := s.counts()
		s.Equal(1, snap[counters.JP])
		s.Equal(2, snap[counters.Total])

		view, err := s.service.Locks(s.at(0), walletC)
		s.Require().NoError(err)
		s.Equal(uint64(110), view.Balance)
	})
	s.Contains(s.audit.actions(), string(audit.EventWalletReconciled))
}

// =============================================================================
// Invariants under random sequences
// =============================================================================

// Justification: the state machine's derived totals must survive any mix of
// accepted and rejected mutations.
func (s *ServiceSuite) TestRandomSequencesKeepStateConsistent() {
	wallets := []id.Address{walletA, walletA2, walletB, walletC, walletIssuer}
	seq := newSequence(7)
	var lastIssued uint64

	for step := range 300 {
		ctx := s.at(step * 30)
		from := wallets[seq.next(len(wallets))]
		to := wallets[seq.next(len(wallets))]
		amount := uint64(seq.next(80) + 1)

		switch seq.next(4) {
		case 0:
			var lock *LockSpec
			if seq.next(3) == 0 {
				lock = &LockSpec{Value: amount/2 + 1, ReleaseTime: s.t0.Add(time.Duration(step*30+600) * time.Second)}
			}
			_, _ = s.service.ValidateIssuance(ctx, token, IssuanceRequest{To: to, Amount: amount, Lock: lock})
		case 1:
			_, _ = s.service.ValidateBurn(ctx, token, from, amount, "")
		default:
			if from != to {
				_, _ = s.service.ValidateTransfer(ctx, token, from, to, amount)
			}
		}

		s.Require().NoError(s.service.Verify(ctx), "step %d", step)
		info, err := s.service.TokenInfo(ctx)
		s.Require().NoError(err)
		s.GreaterOrEqual(info.TotalIssued, lastIssued)
		lastIssued = info.TotalIssued
	}
}

// sequence is a small deterministic generator so failures replay.
type sequence struct{ state uint64 }

func newSequence(seed uint64) *sequence { return &sequence{state: seed} }

func (q *sequence) next(n int) int {
	q.state = q.state*6364136223846793005 + 1442695040888963407
	return int((q.state >> 33) % uint64(n)) //nolint:gosec // test generator
}
