package models

import (
	"strings"
	"time"

	dErrors "secutoken/pkg/domain-errors"
)

// Region is the compliance class a country maps to.
type Region string

const (
	RegionNone      Region = "none"
	RegionUS        Region = "us"
	RegionEU        Region = "eu"
	RegionJP        Region = "jp"
	RegionForbidden Region = "forbidden"
)

// IsValid checks if the region is one of the supported values.
func (r Region) IsValid() bool {
	switch r {
	case RegionNone, RegionUS, RegionEU, RegionJP, RegionForbidden:
		return true
	}
	return false
}

// ParseRegion validates a region from external input.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid region: "+s)
	}
	return r, nil
}

// NormalizeCountry upper-cases and trims an ISO country code.
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// AttributeType names an investor attribute held by the registry.
type AttributeType string

const (
	AttributeKYC        AttributeType = "kyc"
	AttributeAccredited AttributeType = "accredited"
	AttributeQualified  AttributeType = "qualified"
)

// IsValid checks if the attribute type is known.
func (t AttributeType) IsValid() bool {
	switch t {
	case AttributeKYC, AttributeAccredited, AttributeQualified:
		return true
	}
	return false
}

// AttributeStatus is the review status of an attribute.
type AttributeStatus string

const (
	StatusPending  AttributeStatus = "pending"
	StatusApproved AttributeStatus = "approved"
	StatusRejected AttributeStatus = "rejected"
)

// IsValid checks if the status is known.
func (s AttributeStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Attribute is a status with an optional expiry. Zero expiry never expires.
type Attribute struct {
	Status AttributeStatus `json:"status"`
	Expiry time.Time       `json:"expiry,omitempty"`
}

// Approved reports whether the status is approved, ignoring expiry.
func (a Attribute) Approved() bool {
	return a.Status == StatusApproved
}

// ApprovedAt reports whether the attribute is approved and unexpired at t.
func (a Attribute) ApprovedAt(t time.Time) bool {
	if !a.Approved() {
		return false
	}
	return a.Expiry.IsZero() || a.Expiry.After(t)
}

// Classification is the category-relevant view of an investor. Counters store
// the classification an investor was counted under so a later decrement always
// undoes the matching increment.
type Classification struct {
	Country    string `json:"country"`
	Region     Region `json:"region"`
	Accredited bool   `json:"accredited"`
	Qualified  bool   `json:"qualified"`
}

// SpecialKind classifies wallets exempt from registry-membership rules.
type SpecialKind string

const (
	SpecialNone     SpecialKind = ""
	SpecialIssuer   SpecialKind = "issuer"
	SpecialPlatform SpecialKind = "platform"
	SpecialExchange SpecialKind = "exchange"
	SpecialOmnibus  SpecialKind = "omnibus"
)

// IsValid checks if the kind is a known special kind (including none).
func (k SpecialKind) IsValid() bool {
	switch k {
	case SpecialNone, SpecialIssuer, SpecialPlatform, SpecialExchange, SpecialOmnibus:
		return true
	}
	return false
}

// IsSpecial reports whether the wallet is exempt from investor rules.
func (k SpecialKind) IsSpecial() bool {
	return k != SpecialNone
}

// CanReceiveSeized reports whether seized tokens may be moved to this wallet.
func (k SpecialKind) CanReceiveSeized() bool {
	return k == SpecialIssuer || k == SpecialPlatform
}

// InvestorFlags are per-investor administrative overrides.
type InvestorFlags struct {
	LiquidateOnly bool `json:"liquidate_only"`
	FullyLocked   bool `json:"fully_locked"`
}

// IsZero reports whether no flag is set.
func (f InvestorFlags) IsZero() bool {
	return !f.LiquidateOnly && !f.FullyLocked
}

// Role is a trust role checked before administrative entry points.
type Role string

const (
	RoleMaster        Role = "master"
	RoleIssuer        Role = "issuer"
	RoleExchange      Role = "exchange"
	RoleTransferAgent Role = "transfer_agent"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleMaster, RoleIssuer, RoleExchange, RoleTransferAgent:
		return true
	}
	return false
}
