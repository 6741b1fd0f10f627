package handler

import (
	"time"

	"secutoken/internal/compliance/omnibus"
	compliance "secutoken/internal/compliance/service"
	"secutoken/internal/token/service"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

func parseAmount(amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

type LockInput struct {
	Value       uint64    `json:"value"`
	ReasonCode  int       `json:"reason_code"`
	ReasonText  string    `json:"reason_text"`
	ReleaseTime time.Time `json:"release_time,omitempty"`
}

type IssueRequest struct {
	To       string     `json:"to"`
	Amount   uint64     `json:"amount"`
	IssuedAt time.Time  `json:"issued_at,omitempty"`
	Lock     *LockInput `json:"lock,omitempty"`

	parsed service.IssueRequest
}

func (r *IssueRequest) Validate() error {
	to, err := id.ParseAddress(r.To)
	if err != nil {
		return err
	}
	if err := parseAmount(r.Amount); err != nil {
		return err
	}
	r.parsed = service.IssueRequest{To: to, Amount: r.Amount, IssuedAt: r.IssuedAt}
	if r.Lock != nil {
		r.parsed.Lock = &compliance.LockSpec{
			Value:       r.Lock.Value,
			ReasonCode:  r.Lock.ReasonCode,
			ReasonText:  r.Lock.ReasonText,
			ReleaseTime: r.Lock.ReleaseTime,
		}
	}
	return nil
}

// MoveRequest covers transfer, burn and seize. To is unused by burn.
type MoveRequest struct {
	From   string `json:"from"`
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount"`
	Reason string `json:"reason,omitempty"`

	FromAddress id.Address `json:"-"`
	ToAddress   id.Address `json:"-"`
}

func (r *MoveRequest) Validate() error {
	from, err := id.ParseAddress(r.From)
	if err != nil {
		return err
	}
	r.FromAddress = from
	if r.To != "" {
		to, err := id.ParseAddress(r.To)
		if err != nil {
			return err
		}
		r.ToAddress = to
	}
	return parseAmount(r.Amount)
}

// requireTo is checked by the routes that need a receiver.
func (r *MoveRequest) requireTo() error {
	if r.ToAddress.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	return nil
}

type BulkRequest struct {
	Wallet   string         `json:"wallet"`
	Amount   uint64         `json:"amount"`
	Deltas   map[string]int `json:"deltas,omitempty"`
	IssuedAt time.Time      `json:"issued_at,omitempty"`
	To       string         `json:"to,omitempty"`

	parsed    omnibus.BulkRequest
	ToAddress id.Address `json:"-"`
}

func (r *BulkRequest) Validate() error {
	wallet, err := id.ParseAddress(r.Wallet)
	if err != nil {
		return err
	}
	if err := parseAmount(r.Amount); err != nil {
		return err
	}
	if r.To != "" {
		to, err := id.ParseAddress(r.To)
		if err != nil {
			return err
		}
		r.ToAddress = to
	}
	r.parsed = omnibus.BulkRequest{Wallet: wallet, Amount: r.Amount, Deltas: r.Deltas, IssuedAt: r.IssuedAt}
	return nil
}

type AdjustRequest struct {
	Wallet string         `json:"wallet"`
	Deltas map[string]int `json:"deltas"`

	Address id.Address `json:"-"`
}

func (r *AdjustRequest) Validate() error {
	wallet, err := id.ParseAddress(r.Wallet)
	if err != nil {
		return err
	}
	if len(r.Deltas) == 0 {
		return dErrors.New(dErrors.CodeValidation, "deltas are required")
	}
	r.Address = wallet
	return nil
}
