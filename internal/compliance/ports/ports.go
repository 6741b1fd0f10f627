// Package ports declares the collaborators the compliance engine consumes.
// Each interface is owned here so the engine does not import the registry,
// trust or audit implementations directly.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Registry,WalletClassifier,TrustService,AuditPublisher

import (
	"context"
	"time"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/audit"
)

// InvestorProfile is the registry's view of one investor (port model).
type InvestorProfile struct {
	Investor   id.InvestorID
	Country    string
	Attributes map[models.AttributeType]models.Attribute
}

// Attribute returns the attribute, or a zero (pending) value when absent.
func (p *InvestorProfile) Attribute(t models.AttributeType) models.Attribute {
	if p == nil {
		return models.Attribute{}
	}
	return p.Attributes[t]
}

// Classify derives the counting classification under cfg. Counting uses
// status only; expiry is applied by AccreditedAt.
func (p *InvestorProfile) Classify(cfg models.Config) models.Classification {
	if p == nil {
		return models.Classification{}
	}
	return models.Classification{
		Country:    models.NormalizeCountry(p.Country),
		Region:     cfg.RegionOf(p.Country),
		Accredited: p.Attribute(models.AttributeAccredited).Approved(),
		Qualified:  p.Attribute(models.AttributeQualified).Approved(),
	}
}

// AccreditedAt reports accreditation honouring expiry.
func (p *InvestorProfile) AccreditedAt(t time.Time) bool {
	return p.Attribute(models.AttributeAccredited).ApprovedAt(t)
}

// Registry resolves wallets to investors and investors to profiles.
type Registry interface {
	// InvestorOf returns the owning investor, or "" when the wallet is unknown.
	InvestorOf(ctx context.Context, wallet id.Address) (id.InvestorID, error)
	// Profile returns the investor's country and attributes.
	Profile(ctx context.Context, investor id.InvestorID) (*InvestorProfile, error)
	// AssignWallet moves a wallet to another investor.
	AssignWallet(ctx context.Context, wallet id.Address, investor id.InvestorID) error
}

// WalletClassifier identifies special wallets.
type WalletClassifier interface {
	SpecialKind(ctx context.Context, wallet id.Address) (models.SpecialKind, error)
}

// TrustService gates administrative entry points.
type TrustService interface {
	HasRole(ctx context.Context, addr id.Address, role models.Role) (bool, error)
}

// AuditPublisher defines the interface for publishing audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// StateStore is the transactional boundary around compliance state.
type StateStore interface {
	Update(ctx context.Context, fn func(*state.State) error) error
	View(ctx context.Context, fn func(*state.State) error) error
	Simulate(ctx context.Context, fn func(*state.State) error) error
}
