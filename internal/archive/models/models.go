// Package models defines the archival snapshots, the deletion audit log
// and the retention policy keyed by derived user type.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserType is derived from which role records the person held when they
// left the estate, plus whether an owned property was sold.
type UserType string

const (
	TenantOnly           UserType = "tenant_only"
	OwnerOnly            UserType = "owner_only"
	OwnerResidentSold    UserType = "owner_resident_sold"
	OwnerResidentRetains UserType = "owner_resident_retains"
)

// DeriveUserType classifies a departing user.
func DeriveUserType(hasResident, hasOwner, propertySold bool) UserType {
	switch {
	case hasResident && hasOwner && propertySold:
		return OwnerResidentSold
	case hasResident && hasOwner:
		return OwnerResidentRetains
	case hasOwner:
		return OwnerOnly
	default:
		return TenantOnly
	}
}

// Action is what archival does with the person's data.
type Action string

const (
	// ActionDelete archives a snapshot then permanently removes all rows.
	ActionDelete Action = "delete"
	// ActionArchive keeps the account archived with a retention window.
	ActionArchive Action = "archive"
	// ActionPartial archives the resident side only; ownership stays live.
	ActionPartial Action = "partial"
)

// Policy is the retention rule applied for a user type.
type Policy struct {
	Action    Action
	Retention time.Duration
}

const ownerRetention = 2 * 365 * 24 * time.Hour

// PolicyFor returns the retention policy for a derived user type. Tenants
// and sellers are removed outright; standing owners keep their ERF
// association for roughly two years.
func PolicyFor(t UserType) Policy {
	switch t {
	case OwnerOnly:
		return Policy{Action: ActionArchive, Retention: ownerRetention}
	case OwnerResidentRetains:
		return Policy{Action: ActionPartial, Retention: ownerRetention}
	default:
		return Policy{Action: ActionDelete}
	}
}

// Archive is one JSON snapshot of a person's rows taken before mutation.
type Archive struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Email          string          `json:"email"`
	UserType       UserType        `json:"user_type"`
	ArchiveReason  string          `json:"archive_reason"`
	ArchivedBy     string          `json:"archived_by"`
	ArchiveData    json.RawMessage `json:"archive_data"`
	RetentionUntil *time.Time      `json:"retention_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DeletionLogEntry records a permanent deletion for audit.
type DeletionLogEntry struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email"`
	UserType       UserType  `json:"user_type"`
	DeletionReason string    `json:"deletion_reason"`
	DeletedBy      string    `json:"deleted_by"`
	DeletedAt      time.Time `json:"deleted_at"`
}

// Complaint is the satellite record archival must remove before the user
// row can go.
type Complaint struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ErfNumber string    `json:"erf_number"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
