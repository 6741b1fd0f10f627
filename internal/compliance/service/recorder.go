package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/rules"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// LockSpec describes a lock to create. A zero ReleaseTime never auto-releases.
type LockSpec struct {
	Value       uint64
	ReasonCode  int
	ReasonText  string
	ReleaseTime time.Time
}

func (l LockSpec) lock() models.Lock {
	return models.Lock{
		ID:          uuid.NewString(),
		Value:       l.Value,
		ReasonCode:  l.ReasonCode,
		ReasonText:  l.ReasonText,
		ReleaseTime: l.ReleaseTime,
	}
}

// IssuanceRequest is the input to ValidateIssuance.
type IssuanceRequest struct {
	To     id.Address
	Amount uint64
	// IssuedAt backdates the lock-up clock. Ignored when back-dating is
	// disallowed; zero means now.
	IssuedAt time.Time
	Lock     *LockSpec
}

func newReceipt(op models.Op, from, to id.Address, amount uint64, at time.Time, version uint64) *models.Receipt {
	return &models.Receipt{
		OperationID:   uuid.NewString(),
		Op:            op,
		From:          from,
		To:            to,
		Amount:        amount,
		At:            at,
		ConfigVersion: version,
	}
}

// ValidateTransfer evaluates and records a transfer. Only the token may call it.
func (s *Service) ValidateTransfer(ctx context.Context, caller, from, to id.Address, amount uint64) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ValidateTransfer",
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec // attribute only
	)
	defer func() { s.finish(ctx, span, models.OpTransfer, start, err) }()

	if err := s.requireToken(caller); err != nil {
		return nil, err
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeValidation, "sender and receiver must differ")
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	facts, err := s.gatherFacts(ctx, from, to)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	swept := 0
	err = s.store.Update(ctx, func(st *state.State) error {
		in, holders, n, err := transferInput(st, now, amount, facts[0], facts[1])
		if err != nil {
			return err
		}
		swept = n
		if res := rules.For(st.Config.Service).CheckTransfer(in); !res.OK() {
			return violation(res)
		}
		if err := st.Transfer(holders[0], holders[1], amount, now); err != nil {
			return err
		}
		receipt = newReceipt(models.OpTransfer, from, to, amount, now, st.Config.Version)
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventTokenTransferred),
			Subject:       from.String(),
			Counterparty:  to.String(),
			Amount:        amount,
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddSweeps(swept)
	s.publishCounters(ctx)
	return receipt, nil
}

// ValidateIssuance evaluates and records a mint, optionally with a lock.
func (s *Service) ValidateIssuance(ctx context.Context, caller id.Address, req IssuanceRequest) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ValidateIssuance",
		attribute.String("to", req.To.String()),
		attribute.Int64("amount", int64(req.Amount)), //nolint:gosec // attribute only
	)
	defer func() { s.finish(ctx, span, models.OpIssue, start, err) }()

	if err := s.requireToken(caller); err != nil {
		return nil, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}
	if req.Lock != nil && (req.Lock.Value == 0 || req.Lock.Value > req.Amount) {
		return nil, dErrors.New(dErrors.CodeValidation, "lock value must be positive and not exceed the issued amount")
	}
	facts, err := s.gatherFacts(ctx, req.To)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	swept := 0
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, n, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		swept = n
		to := holders[0]
		cfg := st.Config

		if limit := cfg.AuthorizedSecurities; limit > 0 && (req.Amount > limit || st.Book.TotalSupply > limit-req.Amount) {
			return dErrors.New(dErrors.CodeComplianceViolation, "Max authorized securities exceeded")
		}
		in := rules.IssuanceInput{
			To:       facts[0].party(st, to, now),
			Amount:   req.Amount,
			Now:      now,
			Config:   cfg,
			Counters: st.Tracker.Counters,
		}
		if res := rules.For(cfg.Service).CheckIssuance(in); !res.OK() {
			return violation(res)
		}
		if err := st.Issue(to, req.Amount, now); err != nil {
			return err
		}
		if !to.Investor.IsNil() {
			issuedAt := req.IssuedAt
			if cfg.DisallowBackDating || issuedAt.IsZero() {
				issuedAt = now
			}
			st.RecordIssuance(to.Investor, req.Amount, issuedAt)
		}
		if req.Lock != nil {
			if err := st.Locks.Add(to.Key(), req.Lock.lock(), now); err != nil {
				return err
			}
		}
		receipt = newReceipt(models.OpIssue, "", req.To, req.Amount, now, cfg.Version)
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventTokenIssued),
			Subject:       req.To.String(),
			Amount:        req.Amount,
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddSweeps(swept)
	s.publishCounters(ctx)
	return receipt, nil
}

// ValidateBurn records destruction of tokens held by from. Unlocked tokens are
// consumed first; locks are shrunk only when the burn reaches into them.
func (s *Service) ValidateBurn(ctx context.Context, caller, from id.Address, amount uint64, reason string) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ValidateBurn",
		attribute.String("from", from.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec // attribute only
	)
	defer func() { s.finish(ctx, span, models.OpBurn, start, err) }()

	if err := s.requireToken(caller); err != nil {
		return nil, err
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	facts, err := s.gatherFacts(ctx, from)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		if res := rules.CheckBurn(facts[0].party(st, holders[0], now), amount); !res.OK() {
			return violation(res)
		}
		if err := st.Burn(holders[0], amount, now); err != nil {
			return err
		}
		receipt = newReceipt(models.OpBurn, from, "", amount, now, st.Config.Version)
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventTokenBurned),
			Subject:       from.String(),
			Amount:        amount,
			Reason:        reason,
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishCounters(ctx)
	return receipt, nil
}

// ValidateSeize moves tokens from a holder to an issuer or platform wallet,
// bypassing transfer rules but not balance sufficiency.
func (s *Service) ValidateSeize(ctx context.Context, caller, from, to id.Address, amount uint64, reason string) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "ValidateSeize",
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec // attribute only
	)
	defer func() { s.finish(ctx, span, models.OpSeize, start, err) }()

	if err := s.requireToken(caller); err != nil {
		return nil, err
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeValidation, "sender and receiver must differ")
	}
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	facts, err := s.gatherFacts(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if !facts[1].special.CanReceiveSeized() {
		return nil, dErrors.New(dErrors.CodeValidation, "seized tokens may only go to an issuer or platform wallet")
	}

	now := requestcontext.Now(ctx)
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts...)
		if err != nil {
			return err
		}
		if res := rules.CheckBurn(facts[0].party(st, holders[0], now), amount); !res.OK() {
			return violation(res)
		}
		if err := st.Seize(holders[0], holders[1], amount, now); err != nil {
			return err
		}
		receipt = newReceipt(models.OpSeize, from, to, amount, now, st.Config.Version)
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventTokenSeized),
			Subject:       from.String(),
			Counterparty:  to.String(),
			Amount:        amount,
			Reason:        reason,
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishCounters(ctx)
	return receipt, nil
}
