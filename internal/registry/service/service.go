// Package service manages the investor registry: investors, their reviewed
// attributes and wallet ownership. It is the registry port the compliance
// engine reads from.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	"secutoken/internal/registry/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
	"secutoken/pkg/platform/audit"
	"secutoken/pkg/platform/sentinel"
	"secutoken/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, inv *models.Investor) error
	FindByID(ctx context.Context, investorID id.InvestorID) (*models.Investor, error)
	Save(ctx context.Context, inv *models.Investor) error
	List(ctx context.Context) ([]*models.Investor, error)
	InvestorOf(ctx context.Context, wallet id.Address) (id.InvestorID, error)
	AssignWallet(ctx context.Context, wallet id.Address, investorID id.InvestorID) error
	RemoveWallet(ctx context.Context, wallet id.Address) error
	SpecialKind(ctx context.Context, wallet id.Address) (compliance.SpecialKind, error)
	SetSpecialKind(ctx context.Context, wallet id.Address, kind compliance.SpecialKind) error
}

// Authorizer answers role questions for registry writes.
type Authorizer interface {
	HasRole(ctx context.Context, addr id.Address, role compliance.Role) (bool, error)
}

// Listener is told when an investor's classification inputs or wallet
// ownership change so aggregates and category counters can follow.
type Listener interface {
	SyncInvestor(ctx context.Context, investor id.InvestorID) error
	ReconcileWallet(ctx context.Context, wallet id.Address) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	authorizer     Authorizer
	listener       Listener
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

var (
	_ ports.Registry         = (*Service)(nil)
	_ ports.WalletClassifier = (*Service)(nil)
)

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithListener registers the component notified after investor updates.
func WithListener(l Listener) Option {
	return func(s *Service) {
		s.listener = l
	}
}

func New(store Store, authorizer Authorizer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registry store is required")
	}
	if authorizer == nil {
		return nil, errors.New("authorizer is required")
	}
	s := &Service{store: store, authorizer: authorizer}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// SetListener wires the listener after construction; the compliance service
// depends on the registry, so the two are built in sequence.
func (s *Service) SetListener(l Listener) {
	s.listener = l
}

// RegisterInvestor creates an investor with no attributes and no wallets.
func (s *Service) RegisterInvestor(ctx context.Context, req models.RegisterInvestorRequest) (*models.Investor, error) {
	if err := s.requireWriter(ctx, "register_investor"); err != nil {
		return nil, err
	}
	inv, err := models.NewInvestor(req.InvestorID, req.Country, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.Create(ctx, inv); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "investor already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register investor")
	}
	s.emit(ctx, audit.EventInvestorRegistered, inv.ID.String(), "")
	s.logger.InfoContext(ctx, "investor registered",
		"investor_id", inv.ID,
		"country", inv.Country,
		"request_id", requestcontext.RequestID(ctx),
	)
	return inv, nil
}

// UpdateInvestor changes country and attributes, then asks the listener to
// move the investor's counter membership.
func (s *Service) UpdateInvestor(ctx context.Context, investorID id.InvestorID, req models.UpdateInvestorRequest) (*models.Investor, error) {
	if err := s.requireWriter(ctx, "update_investor"); err != nil {
		return nil, err
	}
	inv, err := s.load(ctx, investorID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if req.Country != nil {
		if err := inv.SetCountry(*req.Country, now); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
	}
	for t, attr := range req.ParsedAttributes() {
		if err := inv.SetAttribute(t, attr, now); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
	}
	if err := s.store.Save(ctx, inv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save investor")
	}
	s.emit(ctx, audit.EventInvestorUpdated, inv.ID.String(), "")

	if s.listener != nil {
		if err := s.listener.SyncInvestor(ctx, inv.ID); err != nil {
			s.logger.WarnContext(ctx, "investor sync failed",
				"investor_id", inv.ID,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return inv, nil
}

// GetInvestor returns the registry entry.
func (s *Service) GetInvestor(ctx context.Context, investorID id.InvestorID) (*models.Investor, error) {
	return s.load(ctx, investorID)
}

// ListInvestors returns every registered investor.
func (s *Service) ListInvestors(ctx context.Context) ([]*models.Investor, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list investors")
	}
	return list, nil
}

// AddWallet links an unowned wallet to an investor and tells the listener,
// which attributes any balance the wallet already holds. Moving a wallet that
// already belongs to someone else goes through the compliance engine so the
// attributed balance moves with it.
func (s *Service) AddWallet(ctx context.Context, investorID id.InvestorID, wallet id.Address) error {
	if err := s.requireWriter(ctx, "add_wallet"); err != nil {
		return err
	}
	if _, err := s.load(ctx, investorID); err != nil {
		return err
	}
	kind, err := s.store.SpecialKind(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "wallet classification lookup failed")
	}
	if kind.IsSpecial() {
		return dErrors.New(dErrors.CodeValidation, "special wallets cannot be assigned to investors")
	}
	owner, err := s.store.InvestorOf(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet lookup failed")
	}
	if owner == investorID {
		return nil
	}
	if !owner.IsNil() {
		return dErrors.New(dErrors.CodeConflict, "wallet belongs to another investor")
	}
	if err := s.store.AssignWallet(ctx, wallet, investorID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add wallet")
	}
	s.emit(ctx, audit.EventWalletAdded, wallet.String(), investorID.String())
	s.reconcileWallet(ctx, wallet)
	return nil
}

// RemoveWallet unlinks a wallet from its investor. The listener then takes the
// wallet's balance out of the former owner's aggregate.
func (s *Service) RemoveWallet(ctx context.Context, wallet id.Address) error {
	if err := s.requireWriter(ctx, "remove_wallet"); err != nil {
		return err
	}
	owner, err := s.store.InvestorOf(ctx, wallet)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet lookup failed")
	}
	if owner.IsNil() {
		return dErrors.New(dErrors.CodeNotFound, "wallet not registered")
	}
	if err := s.store.RemoveWallet(ctx, wallet); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "wallet not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove wallet")
	}
	s.emit(ctx, audit.EventWalletRemoved, wallet.String(), owner.String())
	s.reconcileWallet(ctx, wallet)
	return nil
}

// SetSpecialWallet designates or clears a special wallet. Wallets owned by
// an investor cannot be designated.
func (s *Service) SetSpecialWallet(ctx context.Context, wallet id.Address, kind compliance.SpecialKind) error {
	if err := s.requireWriter(ctx, "set_special_wallet"); err != nil {
		return err
	}
	if kind.IsSpecial() {
		owner, err := s.store.InvestorOf(ctx, wallet)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "registry wallet lookup failed")
		}
		if !owner.IsNil() {
			return dErrors.New(dErrors.CodeConflict, "wallet belongs to an investor")
		}
	}
	if err := s.store.SetSpecialKind(ctx, wallet, kind); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set special wallet")
	}
	s.emit(ctx, audit.EventSpecialWalletSet, wallet.String(), string(kind))
	return nil
}

// InvestorOf returns the owning investor, or "" for an unknown wallet.
func (s *Service) InvestorOf(ctx context.Context, wallet id.Address) (id.InvestorID, error) {
	return s.store.InvestorOf(ctx, wallet)
}

// Profile returns the compliance view of an investor.
func (s *Service) Profile(ctx context.Context, investorID id.InvestorID) (*ports.InvestorProfile, error) {
	inv, err := s.load(ctx, investorID)
	if err != nil {
		return nil, err
	}
	return inv.Profile(), nil
}

// AssignWallet moves a wallet to investorID without a role check. The
// compliance engine calls it inside its own guarded transaction.
func (s *Service) AssignWallet(ctx context.Context, wallet id.Address, investorID id.InvestorID) error {
	if err := s.store.AssignWallet(ctx, wallet, investorID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "investor not found")
		}
		return err
	}
	return nil
}

func (s *Service) SpecialKind(ctx context.Context, wallet id.Address) (compliance.SpecialKind, error) {
	return s.store.SpecialKind(ctx, wallet)
}

// reconcileWallet is best effort: the engine also reconciles lazily the next
// time the wallet is touched.
func (s *Service) reconcileWallet(ctx context.Context, wallet id.Address) {
	if s.listener == nil {
		return
	}
	if err := s.listener.ReconcileWallet(ctx, wallet); err != nil {
		s.logger.WarnContext(ctx, "wallet reconcile failed",
			"wallet", wallet,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) load(ctx context.Context, investorID id.InvestorID) (*models.Investor, error) {
	inv, err := s.store.FindByID(ctx, investorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "investor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load investor")
	}
	return inv, nil
}

// requireWriter passes for issuers and transfer agents; master holds both.
func (s *Service) requireWriter(ctx context.Context, action string) error {
	caller := requestcontext.Caller(ctx)
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	for _, role := range []compliance.Role{compliance.RoleMaster, compliance.RoleIssuer, compliance.RoleTransferAgent} {
		ok, err := s.authorizer.HasRole(ctx, caller, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "role lookup failed")
		}
		if ok {
			return nil
		}
	}
	s.emit(ctx, audit.EventAccessDenied, caller.String(), action)
	return dErrors.New(dErrors.CodeForbidden, "caller lacks the required role")
}

// emit is best effort: registry changes are not ledger mutations.
func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject, counterparty string) {
	if s.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Action:       string(action),
		Subject:      subject,
		Counterparty: counterparty,
		Timestamp:    requestcontext.Now(ctx),
		RequestID:    requestcontext.RequestID(ctx),
		ActorID:      requestcontext.Caller(ctx).String(),
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
		)
	}
}
