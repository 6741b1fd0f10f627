// Package service is the compliance engine's entry point: the advisory
// pre-transfer check, the only-token mutation recorder and the administrative
// operations on locks, flags and configuration.
//
// Registry facts are gathered before the state lock is taken; every decision
// and its effects then run inside a single store transaction so no caller can
// observe a balance change without the matching lock and counter updates.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"secutoken/internal/compliance/metrics"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

const tracerName = "secutoken/compliance"

// Service evaluates and records compliance-gated mutations.
type Service struct {
	store    ports.StateStore
	registry ports.Registry
	wallets  ports.WalletClassifier
	trust    ports.TrustService

	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer

	// tokenAddress is the only caller allowed on the Validate* entry points.
	tokenAddress id.Address
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTokenAddress sets the identity of the token ledger.
func WithTokenAddress(addr id.Address) Option {
	return func(s *Service) {
		s.tokenAddress = addr
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store ports.StateStore, registry ports.Registry, wallets ports.WalletClassifier, trust ports.TrustService, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if wallets == nil {
		return nil, errors.New("wallet classifier is required")
	}
	if trust == nil {
		return nil, errors.New("trust service is required")
	}
	s := &Service{
		store:    store,
		registry: registry,
		wallets:  wallets,
		trust:    trust,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.tokenAddress.IsNil() {
		return nil, errors.New("token address is required")
	}
	return s, nil
}

// TokenAddress returns the only-token identity.
func (s *Service) TokenAddress() id.Address {
	return s.tokenAddress
}

// requireToken enforces the only-token guard on enforcing entry points.
func (s *Service) requireToken(caller id.Address) error {
	if caller != s.tokenAddress {
		return dErrors.New(dErrors.CodeForbidden, "only the token may call this operation")
	}
	return nil
}

// requireRole passes when the request caller holds any of roles. Master
// satisfies every role.
func (s *Service) requireRole(ctx context.Context, action string, roles ...models.Role) (id.Address, error) {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	for _, role := range append([]models.Role{models.RoleMaster}, roles...) {
		ok, err := s.trust.HasRole(ctx, caller, role)
		if err != nil {
			return caller, dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
		}
		if ok {
			return caller, nil
		}
	}
	s.logger.WarnContext(ctx, "privileged call denied",
		"caller", caller,
		"action", action,
		"request_id", requestcontext.RequestID(ctx),
	)
	_ = s.emit(ctx, audit.Event{
		Action:  string(audit.EventAccessDenied),
		Subject: caller.String(),
		Reason:  action,
	})
	return caller, dErrors.New(dErrors.CodeForbidden, "caller lacks the required role")
}

// emit forwards an event to the audit publisher, stamping request metadata.
func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Caller(ctx).String()
	}
	return s.auditPublisher.Emit(ctx, event)
}

// emitInTx emits a compliance event inside a store transaction; a publisher
// failure aborts the transaction.
func (s *Service) emitInTx(ctx context.Context, event audit.Event) error {
	if err := s.emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit emission failed")
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "compliance."+name, trace.WithAttributes(attrs...))
}

// finish records metrics, logs and span status for a mutation.
func (s *Service) finish(ctx context.Context, span trace.Span, op models.Op, start time.Time, err error) {
	defer span.End()
	result := "ok"
	var v *models.Violation
	switch {
	case err == nil:
	case errors.As(err, &v):
		result = "rejected"
		s.metrics.IncCheck(int(v.Code))
		span.SetAttributes(attribute.Int("compliance.code", int(v.Code)))
		s.logger.InfoContext(ctx, "mutation rejected",
			"op", op,
			"code", int(v.Code),
			"reason", v.Reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	default:
		result = "error"
		span.RecordError(err)
		level := slog.LevelInfo
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "mutation failed",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if err != nil {
		span.SetStatus(codes.Error, result)
	} else {
		s.metrics.IncCheck(int(models.CodeValid))
	}
	s.metrics.ObserveMutation(string(op), result, time.Since(start))
}

// publishCounters refreshes the category gauges from committed state.
func (s *Service) publishCounters(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	_ = s.store.View(ctx, func(st *state.State) error {
		snap := make(map[string]int, len(st.Tracker.Counters.Counts))
		for cat, n := range st.Tracker.Counters.Snapshot() {
			snap[string(cat)] = n
		}
		s.metrics.SetCategoryCounts(snap)
		return nil
	})
}

// violation converts a rejecting result to the enforcing-tier error.
func violation(r models.Result) error {
	return dErrors.Wrap(r.Err(), dErrors.CodeComplianceViolation, r.Reason)
}

func requirePositive(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}
