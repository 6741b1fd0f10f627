package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/compliance/rules"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// lookupTimeout bounds registry fact gathering for one mutation.
const lookupTimeout = 2 * time.Second

// walletFacts is what the collaborators say about one wallet.
type walletFacts struct {
	wallet   id.Address
	special  models.SpecialKind
	investor id.InvestorID
	profile  *ports.InvestorProfile
}

// holder classifies the wallet under cfg. Special wallets never carry an investor.
func (f walletFacts) holder(cfg models.Config) state.Holder {
	h := state.Holder{Wallet: f.wallet, Special: f.special}
	if f.special.IsSpecial() || f.investor.IsNil() {
		return h
	}
	h.Investor = f.investor
	h.Class = f.profile.Classify(cfg)
	return h
}

// party assembles the evaluator's view of the wallet from reconciled state.
func (f walletFacts) party(st *state.State, h state.Holder, now time.Time) rules.Party {
	p := rules.Party{
		Wallet:       h.Wallet,
		Investor:     h.Investor,
		Special:      h.Special,
		Class:        h.Class,
		Balance:      st.Book.BalanceOf(h.Wallet),
		Aggregate:    st.Aggregate(h),
		Transferable: st.Transferable(h, now),
	}
	if !h.Investor.IsNil() {
		p.AccreditedNow = f.profile.AccreditedAt(now)
		p.Flags = st.Flags[h.Investor]
		p.Issuances = st.Issuances[h.Investor]
	}
	return p
}

// gatherFacts resolves every wallet in parallel with shared cancellation.
func (s *Service) gatherFacts(ctx context.Context, wallets ...id.Address) ([]walletFacts, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	out := make([]walletFacts, len(wallets))
	for i, w := range wallets {
		g.Go(func() error {
			f, err := s.walletFacts(ctx, w)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) walletFacts(ctx context.Context, wallet id.Address) (walletFacts, error) {
	f := walletFacts{wallet: wallet}
	kind, err := s.wallets.SpecialKind(ctx, wallet)
	if err != nil {
		return f, dErrors.Wrap(err, dErrors.CodeInternal, "wallet classification lookup failed")
	}
	f.special = kind
	if kind.IsSpecial() {
		return f, nil
	}
	inv, err := s.registry.InvestorOf(ctx, wallet)
	if err != nil {
		return f, dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet lookup failed")
	}
	if inv.IsNil() {
		return f, nil
	}
	profile, err := s.registry.Profile(ctx, inv)
	if err != nil {
		return f, dErrors.Wrap(err, dErrors.CodeInternal, "registry profile lookup failed")
	}
	f.investor = inv
	f.profile = profile
	return f, nil
}

// memberProfiles loads the profile of every investor the counters hold so a
// config change can reclassify them together. Investors that join after the
// read are classified under the new config when first touched.
func (s *Service) memberProfiles(ctx context.Context) (map[id.InvestorID]*ports.InvestorProfile, error) {
	var members []id.InvestorID
	err := s.store.View(ctx, func(st *state.State) error {
		members = make([]id.InvestorID, 0, len(st.Tracker.Members))
		for inv := range st.Tracker.Members {
			members = append(members, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	out := make([]*ports.InvestorProfile, len(members))
	for i, inv := range members {
		g.Go(func() error {
			p, err := s.registry.Profile(ctx, inv)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "registry profile lookup failed")
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	profiles := make(map[id.InvestorID]*ports.InvestorProfile, len(members))
	for i, inv := range members {
		profiles[inv] = out[i]
	}
	return profiles, nil
}

// prepare reconciles and sweeps each holder before a decision. It returns the
// classified holders in the order given and the number of lock records swept.
func prepare(st *state.State, now time.Time, facts ...walletFacts) ([]state.Holder, int, error) {
	holders := make([]state.Holder, len(facts))
	swept := 0
	for i, f := range facts {
		h := f.holder(st.Config)
		if err := st.Reconcile(h, now); err != nil {
			return nil, 0, err
		}
		swept += st.Sweep(h, now)
		holders[i] = h
	}
	return holders, swept, nil
}
