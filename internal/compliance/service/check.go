package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/rules"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// PreTransferCheck is the advisory check. It never fails: collaborator errors
// surface as CodeLookupFailed and nothing is committed.
func (s *Service) PreTransferCheck(ctx context.Context, from, to id.Address, amount uint64) models.Result {
	ctx, span := s.startSpan(ctx, "PreTransferCheck",
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
		attribute.Int64("amount", int64(amount)), //nolint:gosec // attribute only
	)
	defer span.End()

	res := s.preTransferCheck(ctx, from, to, amount)
	span.SetAttributes(attribute.Int("compliance.code", int(res.Code)))
	s.metrics.IncCheck(int(res.Code))
	_ = s.emit(ctx, audit.Event{
		Action:       string(audit.EventTransferChecked),
		Subject:      from.String(),
		Counterparty: to.String(),
		Amount:       amount,
		Code:         int(res.Code),
		Reason:       res.Reason,
	})
	return res
}

func (s *Service) preTransferCheck(ctx context.Context, from, to id.Address, amount uint64) models.Result {
	now := requestcontext.Now(ctx)
	facts, err := s.gatherFacts(ctx, from, to)
	if err != nil {
		s.logger.WarnContext(ctx, "pre-transfer check lookup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Reject(models.CodeLookupFailed)
	}

	res := models.Reject(models.CodeLookupFailed)
	err = s.store.Simulate(ctx, func(st *state.State) error {
		in, _, _, err := transferInput(st, now, amount, facts[0], facts[1])
		if err != nil {
			return err
		}
		res = rules.For(st.Config.Service).CheckTransfer(in)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "pre-transfer check failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Reject(models.CodeLookupFailed)
	}
	return res
}

// transferInput reconciles both parties on st and builds the evaluator input.
func transferInput(st *state.State, now time.Time, amount uint64, from, to walletFacts) (rules.TransferInput, []state.Holder, int, error) {
	holders, swept, err := prepare(st, now, from, to)
	if err != nil {
		return rules.TransferInput{}, nil, 0, err
	}
	return rules.TransferInput{
		From:     from.party(st, holders[0], now),
		To:       to.party(st, holders[1], now),
		Amount:   amount,
		Now:      now,
		Paused:   st.Book.Paused,
		Config:   st.Config,
		Counters: st.Tracker.Counters,
	}, holders, swept, nil
}
