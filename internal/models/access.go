package models

import "time"

// ResourceType identifies the kind of resource a grant opens up.
type ResourceType string

const (
	ResourceTypeExam     ResourceType = "EXAM"
	ResourceTypeClass    ResourceType = "CLASS"
	ResourceTypeMaterial ResourceType = "MATERIAL"
)

// Valid reports whether the resource type belongs to the closed set.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceTypeExam, ResourceTypeClass, ResourceTypeMaterial:
		return true
	default:
		return false
	}
}

// AccessStatus is the derived classification of a grant at a point in time.
// It is computed from stored fields and never persisted.
type AccessStatus string

const (
	AccessStatusScheduled AccessStatus = "SCHEDULED"
	AccessStatusActive    AccessStatus = "ACTIVE"
	AccessStatusExpired   AccessStatus = "EXPIRED"
	AccessStatusRevoked   AccessStatus = "REVOKED"
)

// TemporaryAccess is a time-bounded grant of one resource to one user.
type TemporaryAccess struct {
	ID             string       `db:"id" json:"id"`
	UserID         string       `db:"user_id" json:"user_id"`
	ResourceType   ResourceType `db:"resource_type" json:"resource_type"`
	ResourceID     string       `db:"resource_id" json:"resource_id"`
	GrantedBy      string       `db:"granted_by" json:"granted_by"`
	StartDate      time.Time    `db:"start_date" json:"start_date"`
	ExpiresAt      time.Time    `db:"expires_at" json:"expires_at"`
	Reason         string       `db:"reason" json:"reason"`
	Active         bool         `db:"active" json:"active"`
	RevokedAt      *time.Time   `db:"revoked_at" json:"revoked_at,omitempty"`
	RevocationNote *string      `db:"revocation_note" json:"revocation_note,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`

	// Denormalized display fields joined from the users table.
	UserName    string `db:"user_name" json:"user_name,omitempty"`
	UserEmail   string `db:"user_email" json:"user_email,omitempty"`
	GrantorName string `db:"grantor_name" json:"grantor_name,omitempty"`

	// Status is computed via StatusAt before the record leaves the service.
	Status AccessStatus `db:"-" json:"status,omitempty"`
}

// StatusAt classifies the grant relative to now. Revocation is keyed on
// revoked_at so records the sweep deactivated still read as EXPIRED.
func (a *TemporaryAccess) StatusAt(now time.Time) AccessStatus {
	switch {
	case a.RevokedAt != nil:
		return AccessStatusRevoked
	case now.After(a.ExpiresAt):
		return AccessStatusExpired
	case !a.Active:
		return AccessStatusExpired
	case now.Before(a.StartDate):
		return AccessStatusScheduled
	default:
		return AccessStatusActive
	}
}

// AccessFilter captures filtering criteria for listing grants.
type AccessFilter struct {
	ResourceType ResourceType
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}

// AccessStatistics aggregates grant counts. Active and Expired are
// time-aware; a revoked grant is counted in neither.
type AccessStatistics struct {
	Total          int                  `json:"total"`
	Active         int                  `json:"active"`
	Expired        int                  `json:"expired"`
	Revoked        int                  `json:"revoked"`
	ByResourceType map[ResourceType]int `json:"by_resource_type"`
	GeneratedAt    time.Time            `json:"generated_at"`
}
