package omnibus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/rules"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// BulkRequest is a bulk balance change against one omnibus wallet. Deltas are
// category magnitudes: added on issuance, subtracted on burn and transfer out.
type BulkRequest struct {
	Wallet id.Address
	Amount uint64
	Deltas map[string]int
	// IssuedAt dates the partition created by a bulk issuance; zero means now.
	IssuedAt time.Time
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

func (r *Reconciler) validate(ctx context.Context, caller id.Address, req BulkRequest) (counters.Deltas, error) {
	if err := r.requireToken(caller); err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	d, err := ParseDeltas(req.Deltas, true)
	if err != nil {
		return nil, err
	}
	if err := r.requireOmnibus(ctx, req.Wallet); err != nil {
		return nil, err
	}
	return d, nil
}

// BulkIssue mints to an omnibus wallet, records one partition and adds the
// supplied deltas to the counters after checking category caps.
func (r *Reconciler) BulkIssue(ctx context.Context, caller id.Address, req BulkRequest) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := r.startSpan(ctx, "BulkIssue", req.Wallet, req.Amount)
	defer func() { r.finish(ctx, span, models.OpBulkIssue, start, err) }()

	d, err := r.validate(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	err = r.store.Update(ctx, func(st *state.State) error {
		cfg := st.Config
		if limit := cfg.AuthorizedSecurities; limit > 0 && (req.Amount > limit || st.Book.TotalSupply > limit-req.Amount) {
			return dErrors.New(dErrors.CodeComplianceViolation, "Max authorized securities exceeded")
		}
		if err := checkCaps(st, d); err != nil {
			return err
		}
		if cfg.DisallowBackDating {
			issuedAt = now
		}
		if err := st.Issue(holder(req.Wallet), req.Amount, issuedAt); err != nil {
			return err
		}
		if err := applyPopulation(st, req.Wallet, d); err != nil {
			return err
		}
		receipt = newReceipt(models.OpBulkIssue, "", req.Wallet, req.Amount, now, cfg.Version)
		return r.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventOmnibusBulkIssued),
			Subject:       req.Wallet.String(),
			Amount:        req.Amount,
			Reason:        deltaSummary(d),
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// BulkBurn burns from an omnibus wallet, consuming the oldest partitions
// first, and subtracts the supplied deltas from the counters.
func (r *Reconciler) BulkBurn(ctx context.Context, caller id.Address, req BulkRequest) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := r.startSpan(ctx, "BulkBurn", req.Wallet, req.Amount)
	defer func() { r.finish(ctx, span, models.OpBulkBurn, start, err) }()

	d, err := r.validate(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	err = r.store.Update(ctx, func(st *state.State) error {
		if st.PartitionTotal(req.Wallet) < req.Amount {
			return state.ErrPartitionsShort
		}
		if err := st.Burn(holder(req.Wallet), req.Amount, now); err != nil {
			return err
		}
		if err := applyPopulation(st, req.Wallet, negate(d)); err != nil {
			return err
		}
		receipt = newReceipt(models.OpBulkBurn, req.Wallet, "", req.Amount, now, st.Config.Version)
		return r.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventOmnibusBulkBurned),
			Subject:       req.Wallet.String(),
			Amount:        req.Amount,
			Reason:        deltaSummary(d),
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// BulkTransfer moves tokens from an omnibus wallet to a registered investor
// wallet. The beneficial owners leave the omnibus population by the supplied
// deltas and the receiver is then counted on the ledger like any issuance.
func (r *Reconciler) BulkTransfer(ctx context.Context, caller id.Address, req BulkRequest, to id.Address) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := r.startSpan(ctx, "BulkTransfer", req.Wallet, req.Amount)
	defer func() { r.finish(ctx, span, models.OpBulkTransfer, start, err) }()

	d, err := r.validate(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	if to == req.Wallet {
		return nil, dErrors.New(dErrors.CodeValidation, "sender and receiver must differ")
	}
	receiver, err := r.resolveInvestor(ctx, to)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	err = r.store.Update(ctx, func(st *state.State) error {
		if st.Book.Paused {
			return violation(models.Reject(models.CodeTokenPaused))
		}
		if st.PartitionTotal(req.Wallet) < req.Amount {
			return state.ErrPartitionsShort
		}
		toHolder := receiver.holder(st.Config)
		if err := st.Reconcile(toHolder, now); err != nil {
			return err
		}
		st.Sweep(toHolder, now)
		if err := applyPopulation(st, req.Wallet, negate(d)); err != nil {
			return err
		}

		in := rules.IssuanceInput{
			To:       receiver.party(st, toHolder, now),
			Amount:   req.Amount,
			Now:      now,
			Config:   st.Config,
			Counters: st.Tracker.Counters,
		}
		if res := rules.For(st.Config.Service).CheckIssuance(in); !res.OK() {
			return violation(res)
		}
		if err := st.Transfer(holder(req.Wallet), toHolder, req.Amount, now); err != nil {
			return err
		}
		receipt = newReceipt(models.OpBulkTransfer, req.Wallet, to, req.Amount, now, st.Config.Version)
		return r.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventOmnibusBulkTransferred),
			Subject:       req.Wallet.String(),
			Counterparty:  to.String(),
			Amount:        req.Amount,
			Reason:        deltaSummary(d),
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// AdjustCounters records movement inside the omnibus population that changes
// category membership without changing the wallet balance. Deltas are signed.
func (r *Reconciler) AdjustCounters(ctx context.Context, caller, wallet id.Address, raw map[string]int) (receipt *models.Receipt, err error) {
	start := time.Now()
	ctx, span := r.startSpan(ctx, "AdjustCounters", wallet, 0)
	defer func() { r.finish(ctx, span, models.OpAdjust, start, err) }()

	if err := r.requireToken(caller); err != nil {
		return nil, err
	}
	d, err := ParseDeltas(raw, false)
	if err != nil {
		return nil, err
	}
	if len(d) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one non-zero delta is required")
	}
	if err := r.requireOmnibus(ctx, wallet); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	err = r.store.Update(ctx, func(st *state.State) error {
		if err := checkCaps(st, d); err != nil {
			return err
		}
		if err := applyPopulation(st, wallet, d); err != nil {
			return err
		}
		receipt = newReceipt(models.OpAdjust, wallet, wallet, 0, now, st.Config.Version)
		return r.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventOmnibusCountersAdjusted),
			Subject:       wallet.String(),
			Reason:        deltaSummary(d),
			OperationID:   receipt.OperationID,
			ConfigVersion: receipt.ConfigVersion,
		})
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Population returns the counters an omnibus wallet currently contributes.
func (r *Reconciler) Population(ctx context.Context, wallet id.Address) (map[counters.Category]int, error) {
	var snap map[counters.Category]int
	err := r.store.View(ctx, func(st *state.State) error {
		snap = st.Omnibus[wallet].Snapshot()
		return nil
	})
	return snap, err
}

// Partitions returns the unburned partitions of an omnibus wallet, oldest first.
func (r *Reconciler) Partitions(ctx context.Context, wallet id.Address) ([]models.Partition, error) {
	var parts []models.Partition
	err := r.store.View(ctx, func(st *state.State) error {
		parts = append(parts, st.Partitions[wallet]...)
		return nil
	})
	return parts, err
}
