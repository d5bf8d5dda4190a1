package domain

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the wire form pushed to webhook receivers. Payloads carry
// rule names and flags only, never the raw input values.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	TenantID   string          `json:"tenant_id"`
	Subject    string          `json:"subject"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// AuditEvent is one row of the audit trail: who did what to which subject.
// Subject is a rule name for rule mutations and the literal "validation" for
// validation requests.
type AuditEvent struct {
	ID         int64           `json:"id"`
	EventID    string          `json:"event_id"`
	TenantID   string          `json:"tenant_id"`
	Subject    string          `json:"subject"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	DetailJSON json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type AuditFilter struct {
	TenantID string
	Subject  string
	Action   string
	AfterID  int64
	Limit    int
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	TenantID      string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
