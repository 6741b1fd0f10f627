package service

import (
	"context"
	"fmt"
	"strconv"

	"secutoken/internal/compliance/counters"
	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/requestcontext"
)

// LockView is a holder's lock list with the balances it restricts.
type LockView struct {
	Holder       string        `json:"holder"`
	Locks        []models.Lock `json:"locks"`
	Balance      uint64        `json:"balance"`
	Locked       uint64        `json:"locked"`
	Transferable uint64        `json:"transferable"`
}

// TokenInfo summarises the ledger book.
type TokenInfo struct {
	TotalSupply   uint64 `json:"total_supply"`
	TotalIssued   uint64 `json:"total_issued"`
	TotalBurned   uint64 `json:"total_burned"`
	Paused        bool   `json:"paused"`
	ConfigVersion uint64 `json:"config_version"`
}

// AddLock places a manual lock on the holder owning wallet. The holder's live
// locks after the addition must not exceed its balance.
func (s *Service) AddLock(ctx context.Context, wallet id.Address, spec LockSpec) (models.Lock, error) {
	if _, err := s.requireRole(ctx, "add_lock", models.RoleTransferAgent, models.RoleIssuer); err != nil {
		return models.Lock{}, err
	}
	facts, err := s.gatherFacts(ctx, wallet)
	if err != nil {
		return models.Lock{}, err
	}
	now := requestcontext.Now(ctx)
	lock := spec.lock()
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		h := holders[0]
		locked, balance := st.Locks.Locked(h.Key(), now), st.Aggregate(h)
		if spec.Value > balance || locked > balance-spec.Value {
			return dErrors.New(dErrors.CodeValidation, "lock exceeds holder balance")
		}
		if err := st.Locks.Add(h.Key(), lock, now); err != nil {
			return err
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventLockAdded),
			Subject:       wallet.String(),
			Amount:        spec.Value,
			Code:          spec.ReasonCode,
			Reason:        spec.ReasonText,
			OperationID:   lock.ID,
			ConfigVersion: st.Config.Version,
		})
	})
	if err != nil {
		return models.Lock{}, err
	}
	return lock, nil
}

// RemoveLock removes the live lock at index from the holder owning wallet.
// Expired records are swept first so indexes address live locks only.
func (s *Service) RemoveLock(ctx context.Context, wallet id.Address, index int) (models.Lock, error) {
	if _, err := s.requireRole(ctx, "remove_lock", models.RoleTransferAgent, models.RoleIssuer); err != nil {
		return models.Lock{}, err
	}
	facts, err := s.gatherFacts(ctx, wallet)
	if err != nil {
		return models.Lock{}, err
	}
	now := requestcontext.Now(ctx)
	var removed models.Lock
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		removed, err = st.Locks.Remove(holders[0].Key(), index)
		if err != nil {
			return err
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventLockRemoved),
			Subject:       wallet.String(),
			Amount:        removed.Value,
			Reason:        "index " + strconv.Itoa(index),
			OperationID:   removed.ID,
			ConfigVersion: st.Config.Version,
		})
	})
	if err != nil {
		return models.Lock{}, err
	}
	return removed, nil
}

// Locks returns the holder's lock list as of now without committing anything.
func (s *Service) Locks(ctx context.Context, wallet id.Address) (*LockView, error) {
	facts, err := s.gatherFacts(ctx, wallet)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var view *LockView
	err = s.store.Simulate(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		h := holders[0]
		view = &LockView{
			Holder:       string(h.Key()),
			Locks:        st.Locks.Get(h.Key()).All(),
			Balance:      st.Aggregate(h),
			Locked:       st.Locks.Locked(h.Key(), now),
			Transferable: st.Transferable(h, now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SetFlags replaces an investor's administrative flags.
func (s *Service) SetFlags(ctx context.Context, investor id.InvestorID, flags models.InvestorFlags) error {
	if _, err := s.requireRole(ctx, "set_flags", models.RoleTransferAgent, models.RoleIssuer); err != nil {
		return err
	}
	if investor.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "investor id is required")
	}
	return s.store.Update(ctx, func(st *state.State) error {
		if flags.IsZero() {
			delete(st.Flags, investor)
		} else {
			st.Flags[investor] = flags
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventFlagsUpdated),
			Subject:       investor.String(),
			Reason:        fmt.Sprintf("liquidate_only=%t fully_locked=%t", flags.LiquidateOnly, flags.FullyLocked),
			ConfigVersion: st.Config.Version,
		})
	})
}

// Flags returns an investor's administrative flags.
func (s *Service) Flags(ctx context.Context, investor id.InvestorID) (models.InvestorFlags, error) {
	var flags models.InvestorFlags
	err := s.store.View(ctx, func(st *state.State) error {
		flags = st.Flags[investor]
		return nil
	})
	return flags, err
}

// SetPaused pauses or resumes transfers. Issuance is not affected by pause.
func (s *Service) SetPaused(ctx context.Context, paused bool) error {
	if _, err := s.requireRole(ctx, "set_paused", models.RoleIssuer); err != nil {
		return err
	}
	action := audit.EventTokenUnpaused
	if paused {
		action = audit.EventTokenPaused
	}
	return s.store.Update(ctx, func(st *state.State) error {
		st.Book.Paused = paused
		return s.emitInTx(ctx, audit.Event{
			Action:        string(action),
			Subject:       s.tokenAddress.String(),
			ConfigVersion: st.Config.Version,
		})
	})
}

// Config returns the active compliance configuration.
func (s *Service) Config(ctx context.Context) (models.Config, error) {
	var cfg models.Config
	err := s.store.View(ctx, func(st *state.State) error {
		cfg = st.Config.Clone()
		return nil
	})
	return cfg, err
}

// UpdateConfig replaces the compliance configuration and bumps its version.
// Counted investors are moved to their new categories lazily, the next time
// a mutation touches them.
func (s *Service) UpdateConfig(ctx context.Context, cfg models.Config) (models.Config, error) {
	if _, err := s.requireRole(ctx, "update_config"); err != nil {
		return models.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return models.Config{}, err
	}
	profiles, err := s.memberProfiles(ctx)
	if err != nil {
		return models.Config{}, err
	}
	var out models.Config
	err = s.store.Update(ctx, func(st *state.State) error {
		next := cfg.Normalize()
		next.Version = st.Config.Version + 1
		st.Config = next
		out = next.Clone()
		for inv, profile := range profiles {
			if !st.Tracker.IsMember(inv) {
				continue
			}
			if err := st.Tracker.Reclassify(inv, profile.Classify(next)); err != nil {
				return err
			}
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventConfigUpdated),
			Subject:       s.tokenAddress.String(),
			ConfigVersion: next.Version,
		})
	})
	if err != nil {
		return models.Config{}, err
	}
	s.publishCounters(ctx)
	s.logger.InfoContext(ctx, "compliance config updated",
		"version", out.Version,
		"service", out.Service,
		"reclassified", len(profiles),
		"request_id", requestcontext.RequestID(ctx),
	)
	return out, nil
}

// Counters returns the committed category counts.
func (s *Service) Counters(ctx context.Context) (map[counters.Category]int, error) {
	var snap map[counters.Category]int
	err := s.store.View(ctx, func(st *state.State) error {
		snap = st.Tracker.Counters.Snapshot()
		return nil
	})
	return snap, err
}

// SyncInvestor re-reads the investor's profile and moves their counter
// membership to the current classification. It reads registry truth only, so
// no role is required.
func (s *Service) SyncInvestor(ctx context.Context, investor id.InvestorID) error {
	profile, err := s.registry.Profile(ctx, investor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry profile lookup failed")
	}
	err = s.store.Update(ctx, func(st *state.State) error {
		if !st.Tracker.IsMember(investor) {
			return nil
		}
		return st.Tracker.Reclassify(investor, profile.Classify(st.Config))
	})
	if err != nil {
		return err
	}
	_ = s.emit(ctx, audit.Event{Action: string(audit.EventInvestorSynced), Subject: investor.String()})
	s.publishCounters(ctx)
	return nil
}

// ReconcileWallet re-reads the wallet's registry owner and moves its balance
// and counter membership to match. The registry calls it after linking or
// unlinking a wallet.
func (s *Service) ReconcileWallet(ctx context.Context, wallet id.Address) error {
	facts, err := s.gatherFacts(ctx, wallet)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	err = s.store.Update(ctx, func(st *state.State) error {
		holders, _, err := prepare(st, now, facts[0])
		if err != nil {
			return err
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventWalletReconciled),
			Subject:       wallet.String(),
			Counterparty:  holders[0].Investor.String(),
			ConfigVersion: st.Config.Version,
		})
	})
	if err != nil {
		return err
	}
	s.publishCounters(ctx)
	return nil
}

// ReassignWallet moves a wallet to another investor in the registry and moves
// its attributed balance between the investors' aggregates in the same unit.
func (s *Service) ReassignWallet(ctx context.Context, wallet id.Address, investor id.InvestorID) error {
	if _, err := s.requireRole(ctx, "reassign_wallet", models.RoleTransferAgent, models.RoleIssuer); err != nil {
		return err
	}
	kind, err := s.wallets.SpecialKind(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "wallet classification lookup failed")
	}
	if kind.IsSpecial() {
		return dErrors.New(dErrors.CodeValidation, "special wallets cannot be assigned to investors")
	}
	profile, err := s.registry.Profile(ctx, investor)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "investor not found")
	}
	facts := walletFacts{wallet: wallet, investor: investor, profile: profile}
	now := requestcontext.Now(ctx)

	err = s.store.Update(ctx, func(st *state.State) error {
		if _, _, err := prepare(st, now, facts); err != nil {
			return err
		}
		if err := s.registry.AssignWallet(ctx, wallet, investor); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet assignment failed")
		}
		return s.emitInTx(ctx, audit.Event{
			Action:        string(audit.EventWalletReassigned),
			Subject:       wallet.String(),
			Counterparty:  investor.String(),
			ConfigVersion: st.Config.Version,
		})
	})
	if err != nil {
		return err
	}
	s.publishCounters(ctx)
	return nil
}

// BalanceOf returns a wallet's balance.
func (s *Service) BalanceOf(ctx context.Context, wallet id.Address) (uint64, error) {
	var bal uint64
	err := s.store.View(ctx, func(st *state.State) error {
		bal = st.Book.BalanceOf(wallet)
		return nil
	})
	return bal, err
}

// TokenInfo returns supply totals and pause state.
func (s *Service) TokenInfo(ctx context.Context) (TokenInfo, error) {
	var info TokenInfo
	err := s.store.View(ctx, func(st *state.State) error {
		info = TokenInfo{
			TotalSupply:   st.Book.TotalSupply,
			TotalIssued:   st.Book.TotalIssued,
			TotalBurned:   st.Book.TotalBurned,
			Paused:        st.Book.Paused,
			ConfigVersion: st.Config.Version,
		}
		return nil
	})
	return info, err
}

// Verify recomputes every derived total from ground truth.
func (s *Service) Verify(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	return s.store.View(ctx, func(st *state.State) error {
		if err := st.Verify(now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "state verification failed")
		}
		return nil
	})
}
