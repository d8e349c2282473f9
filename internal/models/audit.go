package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionAccessGrant   = "ACCESS_GRANT"
	AuditActionAccessExtend  = "ACCESS_EXTEND"
	AuditActionAccessRevoke  = "ACCESS_REVOKE"
	AuditActionAccessCleanup = "ACCESS_CLEANUP"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AccessEventType tags entries in the grant history.
type AccessEventType string

const (
	AccessEventCreated  AccessEventType = "CREATED"
	AccessEventExtended AccessEventType = "EXTENDED"
	AccessEventRevoked  AccessEventType = "REVOKED"
)

// AccessEvent is one append-only entry in a grant's lifecycle history.
type AccessEvent struct {
	ID                string          `db:"id" json:"id"`
	AccessID          string          `db:"access_id" json:"access_id"`
	Type              AccessEventType `db:"event_type" json:"event_type"`
	ActorID           string          `db:"actor_id" json:"actor_id"`
	Reason            string          `db:"reason" json:"reason"`
	PreviousExpiresAt *time.Time      `db:"previous_expires_at" json:"previous_expires_at,omitempty"`
	NewExpiresAt      *time.Time      `db:"new_expires_at" json:"new_expires_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}
