// Package omnibus reconciles bulk balance changes on omnibus wallets.
//
// An omnibus wallet stands for an off-ledger population of beneficial owners.
// Its balance moves in bulk and the category counters move by externally
// computed deltas instead of per-investor zero crossings. Each bulk issuance
// is kept as a dated partition so burns and outbound transfers consume the
// oldest holdings first.
package omnibus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/metrics"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

const tracerName = "secutoken/omnibus"

// Reconciler applies bulk operations to omnibus wallets.
type Reconciler struct {
	store    ports.StateStore
	registry ports.Registry
	wallets  ports.WalletClassifier

	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	tokenAddress   id.Address
}

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(r *Reconciler) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

func WithTokenAddress(addr id.Address) Option {
	return func(r *Reconciler) {
		r.tokenAddress = addr
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Reconciler) {
		r.tracer = t
	}
}

func New(store ports.StateStore, registry ports.Registry, wallets ports.WalletClassifier, opts ...Option) (*Reconciler, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if wallets == nil {
		return nil, errors.New("wallet classifier is required")
	}
	r := &Reconciler{store: store, registry: registry, wallets: wallets}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.tokenAddress.IsNil() {
		return nil, errors.New("token address is required")
	}
	return r, nil
}

// ParseDeltas validates externally supplied category deltas. When
// nonNegative is set every value must be zero or positive.
func ParseDeltas(raw map[string]int, nonNegative bool) (counters.Deltas, error) {
	d := make(counters.Deltas, len(raw))
	for name, v := range raw {
		cat, err := counters.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		if nonNegative && v < 0 {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("delta for %s must not be negative", cat))
		}
		if v != 0 {
			d[cat] += v
		}
	}
	return d, nil
}

func negate(d counters.Deltas) counters.Deltas {
	out := make(counters.Deltas, len(d))
	for cat, v := range d {
		out[cat] = -v
	}
	return out
}

func (r *Reconciler) requireToken(caller id.Address) error {
	if caller != r.tokenAddress {
		return dErrors.New(dErrors.CodeForbidden, "only the token may call this operation")
	}
	return nil
}

// requireOmnibus checks the wallet is registered as an omnibus wallet.
func (r *Reconciler) requireOmnibus(ctx context.Context, wallet id.Address) error {
	kind, err := r.wallets.SpecialKind(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "wallet classification lookup failed")
	}
	if kind != models.SpecialOmnibus {
		return dErrors.New(dErrors.CodeValidation, "wallet is not an omnibus wallet")
	}
	return nil
}

func holder(wallet id.Address) state.Holder {
	return state.Holder{Wallet: wallet, Special: models.SpecialOmnibus}
}

// applyPopulation moves the omnibus wallet's own population and the global
// counters by d. The population may never go negative.
func applyPopulation(st *state.State, wallet id.Address, d counters.Deltas) error {
	if len(d) == 0 {
		return nil
	}
	pop := st.Omnibus[wallet].Clone()
	if err := pop.Apply(d); err != nil {
		return dErrors.New(dErrors.CodeValidation, "deltas exceed the omnibus population")
	}
	if err := st.Tracker.Counters.Apply(d); err != nil {
		return err
	}
	if len(pop.Counts) == 0 {
		delete(st.Omnibus, wallet)
	} else {
		st.Omnibus[wallet] = pop
	}
	return nil
}

// checkCaps rejects deltas that would grow a category past its limit.
func checkCaps(st *state.State, d counters.Deltas) error {
	if _, over := st.Tracker.Counters.Exceeds(st.Config.Limits, d); over {
		return violation(models.Reject(models.CodeMaxInvestorsInCategory))
	}
	return nil
}

func violation(res models.Result) error {
	return dErrors.Wrap(res.Err(), dErrors.CodeComplianceViolation, res.Reason)
}

func (r *Reconciler) emitInTx(ctx context.Context, event audit.Event) error {
	if r.auditPublisher == nil {
		return nil
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	event.ActorID = requestcontext.Caller(ctx).String()
	if err := r.auditPublisher.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit emission failed")
	}
	return nil
}

func (r *Reconciler) startSpan(ctx context.Context, name string, wallet id.Address, amount uint64) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "omnibus."+name, trace.WithAttributes(
		attribute.String("wallet", wallet.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec // attribute only
	))
}

func (r *Reconciler) finish(ctx context.Context, span trace.Span, op models.Op, start time.Time, err error) {
	defer span.End()
	result := "ok"
	if err != nil {
		result = "error"
		if dErrors.HasCode(err, dErrors.CodeComplianceViolation) {
			result = "rejected"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		r.logger.InfoContext(ctx, "bulk operation failed",
			"op", op,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	r.metrics.ObserveMutation(string(op), result, time.Since(start))
	if err == nil {
		r.publishCounters(ctx)
	}
}

func (r *Reconciler) publishCounters(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	_ = r.store.View(ctx, func(st *state.State) error {
		snap := make(map[string]int, len(st.Tracker.Counters.Counts))
		for cat, n := range st.Tracker.Counters.Counts {
			snap[string(cat)] = n
		}
		r.metrics.SetCategoryCounts(snap)
		return nil
	})
}

func deltaSummary(d counters.Deltas) string {
	if len(d) == 0 {
		return ""
	}
	return fmt.Sprint(map[counters.Category]int(d))
}
