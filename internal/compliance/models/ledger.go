package models

import (
	"time"

	id "secutoken/pkg/domain"
)

// Lock is a time-bounded restriction on part of a holder's balance.
// A zero ReleaseTime locks indefinitely until removed.
type Lock struct {
	ID          string    `json:"id"`
	Value       uint64    `json:"value"`
	ReasonCode  int       `json:"reason_code"`
	ReasonText  string    `json:"reason_text"`
	ReleaseTime time.Time `json:"release_time,omitempty"`
}

// ActiveAt reports whether the lock still restricts tokens at t.
func (l Lock) ActiveAt(t time.Time) bool {
	return l.ReleaseTime.IsZero() || l.ReleaseTime.After(t)
}

// IssuanceRecord remembers when tokens were minted to an investor for lock-up.
type IssuanceRecord struct {
	Value uint64    `json:"value"`
	Time  time.Time `json:"time"`
}

// Partition is one bulk issuance held by an omnibus wallet, consumed FIFO.
type Partition struct {
	ID       string    `json:"id"`
	Value    uint64    `json:"value"`
	IssuedAt time.Time `json:"issued_at"`
}

// Op names a ledger mutation.
type Op string

const (
	OpIssue        Op = "issue"
	OpTransfer     Op = "transfer"
	OpBurn         Op = "burn"
	OpSeize        Op = "seize"
	OpBulkIssue    Op = "bulk_issue"
	OpBulkBurn     Op = "bulk_burn"
	OpBulkTransfer Op = "bulk_transfer"
	OpAdjust       Op = "adjust_counters"
)

// Receipt describes a committed mutation.
type Receipt struct {
	OperationID   string     `json:"operation_id"`
	Op            Op         `json:"op"`
	From          id.Address `json:"from,omitempty"`
	To            id.Address `json:"to,omitempty"`
	Amount        uint64     `json:"amount"`
	At            time.Time  `json:"at"`
	ConfigVersion uint64     `json:"config_version"`
}
