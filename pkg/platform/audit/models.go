package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every ledger mutation and every change to compliance parameters.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers role changes and denied privileged calls.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the primary wallet or investor affected.
	Subject      string `json:"subject"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       uint64 `json:"amount,omitempty"`
	// Code and Reason carry the compliance decision for rejected operations.
	Code          int    `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
	OperationID   string `json:"operation_id,omitempty"`
	ConfigVersion uint64 `json:"config_version,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	// ActorID is the authenticated caller that triggered the action.
	ActorID string `json:"actor_id,omitempty"`
}

type AuditEvent string

const (
	// Ledger mutations
	EventTokenIssued      AuditEvent = "token_issued"
	EventTokenTransferred AuditEvent = "token_transferred"
	EventTokenBurned      AuditEvent = "token_burned"
	EventTokenSeized      AuditEvent = "token_seized"

	// Omnibus reconciliation
	EventOmnibusBulkIssued       AuditEvent = "omnibus_bulk_issued"
	EventOmnibusBulkBurned       AuditEvent = "omnibus_bulk_burned"
	EventOmnibusBulkTransferred  AuditEvent = "omnibus_bulk_transferred"
	EventOmnibusCountersAdjusted AuditEvent = "omnibus_counters_adjusted"

	// Administrative state
	EventLockAdded        AuditEvent = "lock_added"
	EventLockRemoved      AuditEvent = "lock_removed"
	EventFlagsUpdated     AuditEvent = "investor_flags_updated"
	EventConfigUpdated    AuditEvent = "config_updated"
	EventTokenPaused      AuditEvent = "token_paused"
	EventTokenUnpaused    AuditEvent = "token_unpaused"
	EventWalletReassigned AuditEvent = "wallet_reassigned"
	EventInvestorSynced   AuditEvent = "investor_synced"
	EventWalletReconciled AuditEvent = "wallet_reconciled"

	// Registry
	EventInvestorRegistered AuditEvent = "investor_registered"
	EventInvestorUpdated    AuditEvent = "investor_updated"
	EventWalletAdded        AuditEvent = "wallet_added"
	EventWalletRemoved      AuditEvent = "wallet_removed"
	EventSpecialWalletSet   AuditEvent = "special_wallet_set"

	// Trust
	EventRoleGranted    AuditEvent = "role_granted"
	EventRoleRevoked    AuditEvent = "role_revoked"
	EventAccessDenied   AuditEvent = "access_denied"
	EventMutationDenied AuditEvent = "mutation_denied"

	// Advisory
	EventTransferChecked AuditEvent = "transfer_checked"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventTokenIssued:             CategoryCompliance,
	EventTokenTransferred:        CategoryCompliance,
	EventTokenBurned:             CategoryCompliance,
	EventTokenSeized:             CategoryCompliance,
	EventOmnibusBulkIssued:       CategoryCompliance,
	EventOmnibusBulkBurned:       CategoryCompliance,
	EventOmnibusBulkTransferred:  CategoryCompliance,
	EventOmnibusCountersAdjusted: CategoryCompliance,
	EventLockAdded:               CategoryCompliance,
	EventLockRemoved:             CategoryCompliance,
	EventFlagsUpdated:            CategoryCompliance,
	EventConfigUpdated:           CategoryCompliance,
	EventTokenPaused:             CategoryCompliance,
	EventTokenUnpaused:           CategoryCompliance,
	EventWalletReassigned:        CategoryCompliance,
	EventWalletReconciled:        CategoryCompliance,
	EventInvestorRegistered:      CategoryCompliance,
	EventInvestorUpdated:         CategoryCompliance,
	EventWalletAdded:             CategoryCompliance,
	EventWalletRemoved:           CategoryCompliance,
	EventSpecialWalletSet:        CategoryCompliance,

	EventRoleGranted:    CategorySecurity,
	EventRoleRevoked:    CategorySecurity,
	EventAccessDenied:   CategorySecurity,
	EventMutationDenied: CategorySecurity,

	EventInvestorSynced:  CategoryOperations,
	EventTransferChecked: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Emitter is the narrow interface domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
