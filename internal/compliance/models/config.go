package models

import (
	"fmt"
	"time"

	dErrors "secutoken/pkg/domain-errors"
)

// ServiceKind selects which rule set the evaluator applies.
type ServiceKind string

const (
	ServiceNotRegulated ServiceKind = "not_regulated"
	ServiceWhitelisted  ServiceKind = "whitelisted"
	ServiceRegulated    ServiceKind = "regulated"
)

// IsValid checks if the service kind is known.
func (k ServiceKind) IsValid() bool {
	switch k {
	case ServiceNotRegulated, ServiceWhitelisted, ServiceRegulated:
		return true
	}
	return false
}

// Limits caps the number of investors per category. Zero means unlimited.
type Limits struct {
	Total         int `yaml:"total" json:"total"`
	US            int `yaml:"us" json:"us"`
	USAccredited  int `yaml:"us_accredited" json:"us_accredited"`
	JP            int `yaml:"jp" json:"jp"`
	EURetail      int `yaml:"eu_retail" json:"eu_retail"`
	Accredited    int `yaml:"accredited" json:"accredited"`
	NonAccredited int `yaml:"non_accredited" json:"non_accredited"`
}

// Config is the administrator-set parameter bundle read by the evaluator.
// Version is bumped on every update and echoed on receipts.
type Config struct {
	Version uint64      `yaml:"-" json:"version"`
	Service ServiceKind `yaml:"service" json:"service"`

	// Countries maps ISO country codes to regions. Unlisted countries are RegionNone.
	Countries map[string]Region `yaml:"countries" json:"countries"`

	ForceAccredited            bool `yaml:"force_accredited" json:"force_accredited"`
	ForceAccreditedUS          bool `yaml:"force_accredited_us" json:"force_accredited_us"`
	ForceFullTransfer          bool `yaml:"force_full_transfer" json:"force_full_transfer"`
	WorldWideForceFullTransfer bool `yaml:"world_wide_force_full_transfer" json:"world_wide_force_full_transfer"`

	MinimumHoldingsPerInvestor   uint64 `yaml:"minimum_holdings_per_investor" json:"minimum_holdings_per_investor"`
	MinimumUSHoldingsPerInvestor uint64 `yaml:"minimum_us_holdings_per_investor" json:"minimum_us_holdings_per_investor"`
	MaximumHoldingsPerInvestor   uint64 `yaml:"maximum_holdings_per_investor" json:"maximum_holdings_per_investor"`

	Limits Limits `yaml:"limits" json:"limits"`

	BlockFlowbackEndTime time.Time     `yaml:"block_flowback_end_time" json:"block_flowback_end_time"`
	USLockPeriod         time.Duration `yaml:"us_lock_period" json:"us_lock_period"`
	NonUSLockPeriod      time.Duration `yaml:"non_us_lock_period" json:"non_us_lock_period"`
	DisallowBackDating   bool          `yaml:"disallow_back_dating" json:"disallow_back_dating"`

	// AuthorizedSecurities caps total supply. Zero disables the cap.
	AuthorizedSecurities uint64 `yaml:"authorized_securities" json:"authorized_securities"`
}

// DefaultConfig returns a regulated configuration with no limits set.
func DefaultConfig() Config {
	return Config{
		Version:   1,
		Service:   ServiceRegulated,
		Countries: map[string]Region{},
	}
}

// Validate checks structural consistency of the configuration.
func (c Config) Validate() error {
	if !c.Service.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown service kind %q", c.Service))
	}
	for country, region := range c.Countries {
		if len(NormalizeCountry(country)) != 2 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("country code %q must be two letters", country))
		}
		if !region.IsValid() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("country %s has unknown region %q", country, region))
		}
	}
	if c.MaximumHoldingsPerInvestor > 0 {
		if c.MinimumHoldingsPerInvestor > c.MaximumHoldingsPerInvestor {
			return dErrors.New(dErrors.CodeValidation, "minimum holdings exceed maximum holdings")
		}
		if c.MinimumUSHoldingsPerInvestor > c.MaximumHoldingsPerInvestor {
			return dErrors.New(dErrors.CodeValidation, "minimum US holdings exceed maximum holdings")
		}
	}
	if c.USLockPeriod < 0 || c.NonUSLockPeriod < 0 {
		return dErrors.New(dErrors.CodeValidation, "lock periods must not be negative")
	}
	l := c.Limits
	for _, v := range []int{l.Total, l.US, l.USAccredited, l.JP, l.EURetail, l.Accredited, l.NonAccredited} {
		if v < 0 {
			return dErrors.New(dErrors.CodeValidation, "investor limits must not be negative")
		}
	}
	return nil
}

// Normalize upper-cases country keys so lookups are case-insensitive.
func (c Config) Normalize() Config {
	countries := make(map[string]Region, len(c.Countries))
	for k, v := range c.Countries {
		countries[NormalizeCountry(k)] = v
	}
	c.Countries = countries
	return c
}

// RegionOf maps a country code to its region.
func (c Config) RegionOf(country string) Region {
	if r, ok := c.Countries[NormalizeCountry(country)]; ok {
		return r
	}
	return RegionNone
}

// LockPeriodFor returns the issuance lock-up period for a region.
func (c Config) LockPeriodFor(r Region) time.Duration {
	if r == RegionUS {
		return c.USLockPeriod
	}
	return c.NonUSLockPeriod
}

// LongestLockPeriod bounds how long issuance records must be retained.
func (c Config) LongestLockPeriod() time.Duration {
	return max(c.USLockPeriod, c.NonUSLockPeriod)
}

// MinimumFor returns the minimum holdings applicable to a region.
func (c Config) MinimumFor(r Region) uint64 {
	if r == RegionUS && c.MinimumUSHoldingsPerInvestor > 0 {
		return c.MinimumUSHoldingsPerInvestor
	}
	return c.MinimumHoldingsPerInvestor
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	countries := make(map[string]Region, len(c.Countries))
	for k, v := range c.Countries {
		countries[k] = v
	}
	c.Countries = countries
	return c
}
