// Package models holds the investor registry's aggregate and request types.
package models

import (
	"slices"
	"time"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/compliance/ports"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// Investor is a registry entry: a beneficial owner with a country of
// residence, reviewed attributes and the wallets they control.
//
// Invariants:
//   - ID is non-empty
//   - Country is a two-letter ISO code, upper-cased
//   - Wallets holds no duplicates
type Investor struct {
	ID         id.InvestorID                                     `json:"id"`
	Country    string                                            `json:"country"`
	Attributes map[compliance.AttributeType]compliance.Attribute `json:"attributes"`
	Wallets    []id.Address                                      `json:"wallets"`
	CreatedAt  time.Time                                         `json:"created_at"`
	UpdatedAt  time.Time                                         `json:"updated_at"`
}

// NewInvestor validates and constructs an investor with no wallets.
func NewInvestor(investorID id.InvestorID, country string, now time.Time) (*Investor, error) {
	if investorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "investor id is required")
	}
	country = compliance.NormalizeCountry(country)
	if err := validateCountry(country); err != nil {
		return nil, err
	}
	return &Investor{
		ID:         investorID,
		Country:    country,
		Attributes: make(map[compliance.AttributeType]compliance.Attribute),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func validateCountry(country string) error {
	if len(country) != 2 {
		return dErrors.New(dErrors.CodeInvariantViolation, "country must be a two-letter code")
	}
	return nil
}

// SetCountry moves the investor to another country of residence.
func (i *Investor) SetCountry(country string, now time.Time) error {
	country = compliance.NormalizeCountry(country)
	if err := validateCountry(country); err != nil {
		return err
	}
	i.Country = country
	i.UpdatedAt = now
	return nil
}

// SetAttribute records a review outcome for one attribute.
func (i *Investor) SetAttribute(t compliance.AttributeType, attr compliance.Attribute, now time.Time) error {
	if !t.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown attribute type: "+string(t))
	}
	if !attr.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown attribute status: "+string(attr.Status))
	}
	if i.Attributes == nil {
		i.Attributes = make(map[compliance.AttributeType]compliance.Attribute)
	}
	i.Attributes[t] = attr
	i.UpdatedAt = now
	return nil
}

// HasWallet reports whether the wallet is listed on the investor.
func (i *Investor) HasWallet(w id.Address) bool {
	return slices.Contains(i.Wallets, w)
}

// AddWallet lists a wallet on the investor; adding twice is a no-op.
func (i *Investor) AddWallet(w id.Address, now time.Time) {
	if i.HasWallet(w) {
		return
	}
	i.Wallets = append(i.Wallets, w)
	i.UpdatedAt = now
}

// RemoveWallet drops a wallet from the investor.
func (i *Investor) RemoveWallet(w id.Address, now time.Time) {
	i.Wallets = slices.DeleteFunc(i.Wallets, func(x id.Address) bool { return x == w })
	i.UpdatedAt = now
}

// Profile is the view the compliance engine consumes.
func (i *Investor) Profile() *ports.InvestorProfile {
	attrs := make(map[compliance.AttributeType]compliance.Attribute, len(i.Attributes))
	for k, v := range i.Attributes {
		attrs[k] = v
	}
	return &ports.InvestorProfile{Investor: i.ID, Country: i.Country, Attributes: attrs}
}

// Clone deep-copies the investor so stores never share maps with callers.
func (i *Investor) Clone() *Investor {
	out := *i
	out.Attributes = make(map[compliance.AttributeType]compliance.Attribute, len(i.Attributes))
	for k, v := range i.Attributes {
		out.Attributes[k] = v
	}
	out.Wallets = slices.Clone(i.Wallets)
	return &out
}
