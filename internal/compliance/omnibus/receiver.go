package omnibus

import (
	"context"
	"time"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/compliance/rules"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// receiver is the registry view of a bulk transfer's destination.
type receiver struct {
	wallet   id.Address
	investor id.InvestorID
	profile  *ports.InvestorProfile
}

// resolveInvestor requires a regular wallet owned by a registry investor.
func (r *Reconciler) resolveInvestor(ctx context.Context, wallet id.Address) (receiver, error) {
	kind, err := r.wallets.SpecialKind(ctx, wallet)
	if err != nil {
		return receiver{}, dErrors.Wrap(err, dErrors.CodeInternal, "wallet classification lookup failed")
	}
	if kind.IsSpecial() {
		return receiver{}, dErrors.New(dErrors.CodeValidation, "bulk transfers must go to an investor wallet")
	}
	inv, err := r.registry.InvestorOf(ctx, wallet)
	if err != nil {
		return receiver{}, dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet lookup failed")
	}
	if inv.IsNil() {
		return receiver{}, violation(models.Reject(models.CodeWalletNotInRegistry))
	}
	profile, err := r.registry.Profile(ctx, inv)
	if err != nil {
		return receiver{}, dErrors.Wrap(err, dErrors.CodeInternal, "registry profile lookup failed")
	}
	return receiver{wallet: wallet, investor: inv, profile: profile}, nil
}

func (rc receiver) holder(cfg models.Config) state.Holder {
	return state.Holder{Wallet: rc.wallet, Investor: rc.investor, Class: rc.profile.Classify(cfg)}
}

func (rc receiver) party(st *state.State, h state.Holder, now time.Time) rules.Party {
	return rules.Party{
		Wallet:        h.Wallet,
		Investor:      h.Investor,
		Class:         h.Class,
		AccreditedNow: rc.profile.AccreditedAt(now),
		Flags:         st.Flags[h.Investor],
		Balance:       st.Book.BalanceOf(h.Wallet),
		Aggregate:     st.Aggregate(h),
		Transferable:  st.Transferable(h, now),
		Issuances:     st.Issuances[h.Investor],
	}
}
