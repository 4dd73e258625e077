package audit

import (
	"time"
)

// Event is emitted from domain logic to capture key credential actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Category  EventCategory
	Action    string
	// Subject is the identifier hash the action concerns. Raw student
	// identifiers never enter the audit trail.
	Subject   string
	IssuerID  string
	Token     string
	Outcome   string
	Reason    string
	RequestID string
}

// EventCategory groups events for retention and routing.
type EventCategory string

const (
	CategoryCompliance EventCategory = "compliance"
	CategorySecurity   EventCategory = "security"
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventCredentialIssued     AuditEvent = "credential_issued"
	EventCredentialRevoked    AuditEvent = "credential_revoked"
	EventCredentialVerified   AuditEvent = "credential_verified"
	EventVerificationRejected AuditEvent = "verification_rejected"
	EventIssuanceFailed       AuditEvent = "issuance_failed"
	EventOrphanDetected       AuditEvent = "ledger_orphan_detected"
)

// Category maps an event to its category. Unknown events are operational.
func (e AuditEvent) Category() EventCategory {
	switch e {
	case EventCredentialIssued, EventCredentialRevoked:
		return CategoryCompliance
	case EventVerificationRejected, EventIssuanceFailed:
		return CategorySecurity
	default:
		return CategoryOperations
	}
}
