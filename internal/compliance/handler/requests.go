package handler

import (
	"time"

	"secutoken/internal/compliance/service"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

// CheckRequest is an advisory pre-transfer check.
type CheckRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`

	FromAddress id.Address `json:"-"`
	ToAddress   id.Address `json:"-"`
}

func (r *CheckRequest) Validate() error {
	from, err := id.ParseAddress(r.From)
	if err != nil {
		return err
	}
	to, err := id.ParseAddress(r.To)
	if err != nil {
		return err
	}
	r.FromAddress, r.ToAddress = from, to
	return nil
}

// LockRequest places a manual lock.
type LockRequest struct {
	Value       uint64    `json:"value"`
	ReasonCode  int       `json:"reason_code"`
	ReasonText  string    `json:"reason_text"`
	ReleaseTime time.Time `json:"release_time,omitempty"`
}

func (r *LockRequest) Validate() error {
	if r.Value == 0 {
		return dErrors.New(dErrors.CodeValidation, "lock value must be positive")
	}
	return nil
}

func (r *LockRequest) Spec() service.LockSpec {
	return service.LockSpec{
		Value:       r.Value,
		ReasonCode:  r.ReasonCode,
		ReasonText:  r.ReasonText,
		ReleaseTime: r.ReleaseTime,
	}
}

// FlagsRequest replaces an investor's liquidate-only and fully-locked flags.
type FlagsRequest struct {
	LiquidateOnly bool `json:"liquidate_only"`
	FullyLocked   bool `json:"fully_locked"`
}

func (r *FlagsRequest) Validate() error { return nil }

// ReassignRequest moves a wallet to another investor.
type ReassignRequest struct {
	InvestorID string `json:"investor_id"`

	Investor id.InvestorID `json:"-"`
}

func (r *ReassignRequest) Validate() error {
	inv, err := id.ParseInvestorID(r.InvestorID)
	if err != nil {
		return err
	}
	r.Investor = inv
	return nil
}
