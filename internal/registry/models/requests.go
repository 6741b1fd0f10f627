package models

import (
	"strings"
	"time"

	compliance "secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// RegisterInvestorRequest creates an investor.
type RegisterInvestorRequest struct {
	ID      string `json:"id"`
	Country string `json:"country"`

	InvestorID id.InvestorID `json:"-"`
}

func (r *RegisterInvestorRequest) Validate() error {
	inv, err := id.ParseInvestorID(r.ID)
	if err != nil {
		return err
	}
	r.InvestorID = inv
	r.Country = compliance.NormalizeCountry(r.Country)
	if r.Country == "" {
		return dErrors.New(dErrors.CodeValidation, "country is required")
	}
	return nil
}

// AttributeInput is one attribute update.
type AttributeInput struct {
	Status string    `json:"status"`
	Expiry time.Time `json:"expiry,omitempty"`
}

// UpdateInvestorRequest changes country and/or attributes. Absent fields are
// left untouched.
type UpdateInvestorRequest struct {
	Country    *string                   `json:"country,omitempty"`
	Attributes map[string]AttributeInput `json:"attributes,omitempty"`

	parsed map[compliance.AttributeType]compliance.Attribute
}

func (r *UpdateInvestorRequest) Validate() error {
	if r.Country == nil && len(r.Attributes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	r.parsed = make(map[compliance.AttributeType]compliance.Attribute, len(r.Attributes))
	for name, in := range r.Attributes {
		t := compliance.AttributeType(strings.ToLower(strings.TrimSpace(name)))
		if !t.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown attribute: "+name)
		}
		status := compliance.AttributeStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !status.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "unknown attribute status: "+in.Status)
		}
		r.parsed[t] = compliance.Attribute{Status: status, Expiry: in.Expiry}
	}
	return nil
}

// ParsedAttributes returns the attributes validated by Validate.
func (r *UpdateInvestorRequest) ParsedAttributes() map[compliance.AttributeType]compliance.Attribute {
	return r.parsed
}

// WalletRequest names a wallet.
type WalletRequest struct {
	Wallet string `json:"wallet"`

	Address id.Address `json:"-"`
}

func (r *WalletRequest) Validate() error {
	addr, err := id.ParseAddress(r.Wallet)
	if err != nil {
		return err
	}
	r.Address = addr
	return nil
}

// SpecialWalletRequest marks or clears a special wallet. An empty kind clears.
type SpecialWalletRequest struct {
	Wallet string `json:"wallet"`
	Kind   string `json:"kind"`

	Address     id.Address             `json:"-"`
	SpecialKind compliance.SpecialKind `json:"-"`
}

func (r *SpecialWalletRequest) Validate() error {
	addr, err := id.ParseAddress(r.Wallet)
	if err != nil {
		return err
	}
	kind := compliance.SpecialKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	if !kind.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown special wallet kind: "+r.Kind)
	}
	r.Address = addr
	r.SpecialKind = kind
	return nil
}
