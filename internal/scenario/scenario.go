// Package scenario replays a YAML description of investors, issuances and
// transfer checks against an in-memory compliance engine. It backs the
// offline "tokenctl check" command.
package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"secutoken/internal/compliance/models"
	compliance "secutoken/internal/compliance/service"
	"secutoken/internal/compliance/state"
	"secutoken/internal/compliance/store"
	"secutoken/internal/platform/config"
	registrymodels "secutoken/internal/registry/models"
	registry "secutoken/internal/registry/service"
	registrystore "secutoken/internal/registry/store"
	trust "secutoken/internal/trust/service"
	truststore "secutoken/internal/trust/store"
	id "secutoken/pkg/domain"
	"secutoken/pkg/requestcontext"
)

// operator holds the master role inside a replay.
const operator id.Address = "0x000000000000000000000000000000000000a11c"

type Scenario struct {
	Token  string    `yaml:"token"`
	Start  time.Time `yaml:"start"`
	Config yaml.Node `yaml:"config"`

	Investors  []Investor      `yaml:"investors"`
	Special    []SpecialWallet `yaml:"special_wallets"`
	Issuances  []Issuance      `yaml:"issuances"`
	Transfers  []Transfer      `yaml:"transfers"`
	Checks     []Check         `yaml:"checks"`
	configured models.Config
	token      id.Address
}

type Investor struct {
	ID         string                                   `yaml:"id"`
	Country    string                                   `yaml:"country"`
	Attributes map[string]registrymodels.AttributeInput `yaml:"attributes"`
	Wallets    []string                                 `yaml:"wallets"`
}

type SpecialWallet struct {
	Wallet string `yaml:"wallet"`
	Kind   string `yaml:"kind"`
}

type Issuance struct {
	To     string        `yaml:"to"`
	Amount uint64        `yaml:"amount"`
	After  time.Duration `yaml:"after"`
	Lock   *struct {
		Value        uint64        `yaml:"value"`
		Reason       string        `yaml:"reason"`
		ReleaseAfter time.Duration `yaml:"release_after"`
	} `yaml:"lock"`
}

// Transfer is a committed transfer applied before the checks run.
type Transfer struct {
	From   string        `yaml:"from"`
	To     string        `yaml:"to"`
	Amount uint64        `yaml:"amount"`
	After  time.Duration `yaml:"after"`
}

// Check is an advisory pre-transfer check. Expect, when set, is asserted.
type Check struct {
	Name   string        `yaml:"name"`
	From   string        `yaml:"from"`
	To     string        `yaml:"to"`
	Amount uint64        `yaml:"amount"`
	After  time.Duration `yaml:"after"`
	Expect *int          `yaml:"expect"`
}

// Outcome is the result of one check.
type Outcome struct {
	Name   string
	Result models.Result
	Expect *int
}

// Passed reports whether the outcome matches its expectation, if any.
func (o Outcome) Passed() bool {
	return o.Expect == nil || int(o.Result.Code) == *o.Expect
}

// Parse decodes and validates a scenario document.
func Parse(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	tok, err := id.ParseAddress(sc.Token)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	sc.token = tok
	if sc.Start.IsZero() {
		sc.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	sc.configured = models.DefaultConfig()
	if sc.Config.Kind != 0 {
		cfgRaw, err := yaml.Marshal(&sc.Config)
		if err != nil {
			return nil, fmt.Errorf("encode config: %w", err)
		}
		if sc.configured, err = config.ParseCompliance(cfgRaw); err != nil {
			return nil, err
		}
	}
	return &sc, nil
}

// Run builds a fresh engine, applies setup steps in order and evaluates every
// check. Setup failures abort the run; check results never do.
func Run(ctx context.Context, sc *Scenario) ([]Outcome, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	at := func(after time.Duration, caller id.Address) context.Context {
		return requestcontext.WithCaller(requestcontext.WithTime(ctx, sc.Start.Add(after)), caller)
	}
	setup := at(0, operator)

	roles, err := trust.New(truststore.NewInMemoryStore(), trust.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := roles.Seed(setup, operator); err != nil {
		return nil, err
	}
	reg, err := registry.New(registrystore.NewInMemoryStore(), roles, registry.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	engine, err := compliance.New(store.NewMemory(state.New(sc.configured)), reg, reg, roles,
		compliance.WithTokenAddress(sc.token),
		compliance.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	reg.SetListener(engine)

	for _, inv := range sc.Investors {
		if err := registerInvestor(setup, reg, inv); err != nil {
			return nil, fmt.Errorf("investor %s: %w", inv.ID, err)
		}
	}
	for _, sw := range sc.Special {
		req := registrymodels.SpecialWalletRequest{Wallet: sw.Wallet, Kind: sw.Kind}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("special wallet %s: %w", sw.Wallet, err)
		}
		if err := reg.SetSpecialWallet(setup, req.Address, req.SpecialKind); err != nil {
			return nil, fmt.Errorf("special wallet %s: %w", sw.Wallet, err)
		}
	}
	for i, is := range sc.Issuances {
		to, err := id.ParseAddress(is.To)
		if err != nil {
			return nil, fmt.Errorf("issuance %d: %w", i, err)
		}
		req := compliance.IssuanceRequest{To: to, Amount: is.Amount}
		if is.Lock != nil {
			req.Lock = &compliance.LockSpec{
				Value:       is.Lock.Value,
				ReasonText:  is.Lock.Reason,
				ReleaseTime: sc.Start.Add(is.After + is.Lock.ReleaseAfter),
			}
		}
		if _, err := engine.ValidateIssuance(at(is.After, sc.token), sc.token, req); err != nil {
			return nil, fmt.Errorf("issuance %d: %w", i, err)
		}
	}
	for i, tr := range sc.Transfers {
		from, to, err := parsePair(tr.From, tr.To)
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
		if _, err := engine.ValidateTransfer(at(tr.After, sc.token), sc.token, from, to, tr.Amount); err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
	}

	out := make([]Outcome, 0, len(sc.Checks))
	for i, c := range sc.Checks {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("check-%d", i+1)
		}
		from, to, err := parsePair(c.From, c.To)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		res := engine.PreTransferCheck(at(c.After, ""), from, to, c.Amount)
		out = append(out, Outcome{Name: name, Result: res, Expect: c.Expect})
	}
	return out, nil
}

func registerInvestor(ctx context.Context, reg *registry.Service, inv Investor) error {
	req := registrymodels.RegisterInvestorRequest{ID: inv.ID, Country: inv.Country}
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := reg.RegisterInvestor(ctx, req); err != nil {
		return err
	}
	if len(inv.Attributes) > 0 {
		upd := registrymodels.UpdateInvestorRequest{Attributes: inv.Attributes}
		if err := upd.Validate(); err != nil {
			return err
		}
		if _, err := reg.UpdateInvestor(ctx, req.InvestorID, upd); err != nil {
			return err
		}
	}
	for _, w := range inv.Wallets {
		addr, err := id.ParseAddress(w)
		if err != nil {
			return err
		}
		if err := reg.AddWallet(ctx, req.InvestorID, addr); err != nil {
			return err
		}
	}
	return nil
}

func parsePair(from, to string) (id.Address, id.Address, error) {
	f, err := id.ParseAddress(from)
	if err != nil {
		return "", "", fmt.Errorf("from: %w", err)
	}
	t, err := id.ParseAddress(to)
	if err != nil {
		return "", "", fmt.Errorf("to: %w", err)
	}
	return f, t, nil
}
