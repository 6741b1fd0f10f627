// Package service is the token facade: the ERC-20 style entry points an
// operator calls. Each call is role-gated here and then recorded through the
// compliance engine with the token's own address as the caller, which is the
// only identity the engine accepts on its enforcing tier.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/omnibus"
	"secutoken/internal/compliance/ports"
	compliance "secutoken/internal/compliance/service"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// Recorder is the compliance surface the token drives.
type Recorder interface {
	TokenAddress() id.Address
	ValidateIssuance(ctx context.Context, caller id.Address, req compliance.IssuanceRequest) (*models.Receipt, error)
	ValidateTransfer(ctx context.Context, caller, from, to id.Address, amount uint64) (*models.Receipt, error)
	ValidateBurn(ctx context.Context, caller, from id.Address, amount uint64, reason string) (*models.Receipt, error)
	ValidateSeize(ctx context.Context, caller, from, to id.Address, amount uint64, reason string) (*models.Receipt, error)
	SetPaused(ctx context.Context, paused bool) error
	BalanceOf(ctx context.Context, wallet id.Address) (uint64, error)
	TokenInfo(ctx context.Context) (compliance.TokenInfo, error)
}

// Reconciler is the omnibus surface the token drives.
type Reconciler interface {
	BulkIssue(ctx context.Context, caller id.Address, req omnibus.BulkRequest) (*models.Receipt, error)
	BulkBurn(ctx context.Context, caller id.Address, req omnibus.BulkRequest) (*models.Receipt, error)
	BulkTransfer(ctx context.Context, caller id.Address, req omnibus.BulkRequest, to id.Address) (*models.Receipt, error)
	AdjustCounters(ctx context.Context, caller, wallet id.Address, deltas map[string]int) (*models.Receipt, error)
}

type Service struct {
	recorder       Recorder
	reconciler     Reconciler
	trust          ports.TrustService
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditPublisher records denied calls. Mutation events are emitted by
// the compliance engine.
func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(recorder Recorder, reconciler Reconciler, trust ports.TrustService, opts ...Option) (*Service, error) {
	if recorder == nil {
		return nil, errors.New("compliance recorder is required")
	}
	if reconciler == nil {
		return nil, errors.New("omnibus reconciler is required")
	}
	if trust == nil {
		return nil, errors.New("trust service is required")
	}
	s := &Service{recorder: recorder, reconciler: reconciler, trust: trust}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// IssueRequest mints to a wallet, optionally with an initial lock.
type IssueRequest struct {
	To       id.Address
	Amount   uint64
	IssuedAt time.Time
	Lock     *compliance.LockSpec
}

func (s *Service) Issue(ctx context.Context, req IssueRequest) (*models.Receipt, error) {
	if err := s.require(ctx, "issue", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.recorder.ValidateIssuance(ctx, s.recorder.TokenAddress(), compliance.IssuanceRequest{
		To:       req.To,
		Amount:   req.Amount,
		IssuedAt: req.IssuedAt,
		Lock:     req.Lock,
	})
}

// Transfer moves tokens. The caller must own from or be a transfer agent.
func (s *Service) Transfer(ctx context.Context, from, to id.Address, amount uint64) (*models.Receipt, error) {
	if requestcontext.Caller(ctx) != from || from.IsNil() {
		if err := s.require(ctx, "transfer", models.RoleTransferAgent); err != nil {
			return nil, err
		}
	}
	return s.recorder.ValidateTransfer(ctx, s.recorder.TokenAddress(), from, to, amount)
}

func (s *Service) Burn(ctx context.Context, from id.Address, amount uint64, reason string) (*models.Receipt, error) {
	if err := s.require(ctx, "burn", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.recorder.ValidateBurn(ctx, s.recorder.TokenAddress(), from, amount, reason)
}

func (s *Service) Seize(ctx context.Context, from, to id.Address, amount uint64, reason string) (*models.Receipt, error) {
	if err := s.require(ctx, "seize", models.RoleTransferAgent, models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.recorder.ValidateSeize(ctx, s.recorder.TokenAddress(), from, to, amount, reason)
}

// SetPaused is guarded by the compliance engine itself.
func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	return s.recorder.SetPaused(ctx, paused)
}

func (s *Service) BulkIssue(ctx context.Context, req omnibus.BulkRequest) (*models.Receipt, error) {
	if err := s.require(ctx, "bulk_issue", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.reconciler.BulkIssue(ctx, s.recorder.TokenAddress(), req)
}

func (s *Service) BulkBurn(ctx context.Context, req omnibus.BulkRequest) (*models.Receipt, error) {
	if err := s.require(ctx, "bulk_burn", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.reconciler.BulkBurn(ctx, s.recorder.TokenAddress(), req)
}

func (s *Service) BulkTransfer(ctx context.Context, req omnibus.BulkRequest, to id.Address) (*models.Receipt, error) {
	if err := s.require(ctx, "bulk_transfer", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.reconciler.BulkTransfer(ctx, s.recorder.TokenAddress(), req, to)
}

func (s *Service) AdjustCounters(ctx context.Context, wallet id.Address, deltas map[string]int) (*models.Receipt, error) {
	if err := s.require(ctx, "adjust_counters", models.RoleIssuer); err != nil {
		return nil, err
	}
	return s.reconciler.AdjustCounters(ctx, s.recorder.TokenAddress(), wallet, deltas)
}

func (s *Service) BalanceOf(ctx context.Context, wallet id.Address) (uint64, error) {
	return s.recorder.BalanceOf(ctx, wallet)
}

func (s *Service) Info(ctx context.Context) (compliance.TokenInfo, error) {
	return s.recorder.TokenInfo(ctx)
}

// require passes when the caller holds any of roles.
func (s *Service) require(ctx context.Context, action string, roles ...models.Role) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	for _, role := range roles {
		ok, err := s.trust.HasRole(ctx, caller, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
		}
		if ok {
			return nil
		}
	}
	s.logger.WarnContext(ctx, "token call denied",
		"caller", caller,
		"action", action,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			Action:    string(audit.EventAccessDenied),
			Subject:   caller.String(),
			Reason:    action,
			Timestamp: requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   caller.String(),
		})
	}
	return dErrors.New(dErrors.CodeForbidden, "caller lacks the required role")
}
