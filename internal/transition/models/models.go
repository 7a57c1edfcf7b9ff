// Package models defines property-transition requests, their lifecycle
// state machine and the migration classification algebra.
package models

import (
	"time"

	"github.com/google/uuid"

	identity "altona/internal/identity/models"
)

// RequestStatus is the admin-driven lifecycle state of a transition request.
type RequestStatus string

const (
	StatusPendingReview      RequestStatus = "pending_review"
	StatusInProgress         RequestStatus = "in_progress"
	StatusAwaitingDocs       RequestStatus = "awaiting_docs"
	StatusReadyForTransition RequestStatus = "ready_for_transition"
	StatusCompleted          RequestStatus = "completed"
	StatusCancelled          RequestStatus = "cancelled"
)

// Terminal reports whether no further state changes are allowed.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Priority is derived from the intended move-out date at creation.
type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityUrgent    Priority = "urgent"
	PriorityStandard  Priority = "standard"
)

// RequestType distinguishes a sale/move from a plain exit.
type RequestType string

const (
	RequestMoveOut RequestType = "moveout"
	RequestSale    RequestType = "sale"
	RequestExit    RequestType = "exit"
)

// OccupantType is the declared role of the incoming person, or terminated
// when nobody takes over.
type OccupantType string

const (
	OccupantResident      OccupantType = "resident"
	OccupantOwner         OccupantType = "owner"
	OccupantOwnerResident OccupantType = "owner_resident"
	OccupantTerminated    OccupantType = "terminated"
	OccupantUnknown       OccupantType = "unknown"
)

// Role projects an occupant type onto the identity role algebra.
func (t OccupantType) Role() identity.Role {
	switch t {
	case OccupantResident:
		return identity.RoleResident
	case OccupantOwner:
		return identity.RoleOwner
	case OccupantOwnerResident:
		return identity.RoleOwnerResident
	default:
		return identity.RoleNone
	}
}

// MigrationKind is the algorithm selected for a completed request.
type MigrationKind string

const (
	MigrationRoleChange          MigrationKind = "role_change"
	MigrationCompleteReplacement MigrationKind = "complete_replacement"
	MigrationPartialReplacement  MigrationKind = "partial_replacement"
	MigrationTermination         MigrationKind = "termination"
)

// Request is one property-transition request.
type Request struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	ErfNumber            string        `json:"erf_number"`
	RequestType          RequestType   `json:"request_type"`
	CurrentRole          identity.Role `json:"current_role"`
	NewOccupantType      OccupantType  `json:"new_occupant_type"`
	NewOccupantName      string        `json:"new_occupant_name,omitempty"`
	NewOccupantEmail     string        `json:"new_occupant_email,omitempty"`
	NewOccupantPhone     string        `json:"new_occupant_phone,omitempty"`
	NewOccupantIDNumber  string        `json:"new_occupant_id_number,omitempty"`
	IntendedMoveoutDate  *time.Time    `json:"intended_moveout_date,omitempty"`
	PropertySold         bool          `json:"property_sold"`
	EstateAgentNotified  bool          `json:"estate_agent_notified"`
	AccessHandoverAgreed bool          `json:"access_handover_agreed"`
	AdultsCount          int           `json:"adults_count"`
	ChildrenCount        int           `json:"children_count"`
	PetsCount            int           `json:"pets_count"`
	MoveoutReason        string        `json:"moveout_reason,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	Status               RequestStatus `json:"status"`
	Priority             Priority      `json:"priority"`
	AssignedAdmin        string        `json:"assigned_admin,omitempty"`
	AdminNotes           string        `json:"admin_notes,omitempty"`
	MigrationCompleted   bool          `json:"migration_completed"`
	MigrationDate        *time.Time    `json:"migration_date,omitempty"`
	CompletionDate       *time.Time    `json:"completion_date,omitempty"`
	NewUserID            *uuid.UUID    `json:"new_user_id,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// PrivacyCompliant reports whether the request withholds new-occupant
// identity, requiring the linked-handover path before completion.
func (r *Request) PrivacyCompliant() bool {
	return r.NewOccupantType != OccupantTerminated &&
		r.NewOccupantEmail == "" && r.NewOccupantName == "" && r.NewOccupantIDNumber == ""
}

// Update is one audit row on a request: status changes, comments,
// assignments.
type Update struct {
	ID         uuid.UUID     `json:"id"`
	RequestID  uuid.UUID     `json:"request_id"`
	UpdateType string        `json:"update_type"`
	OldStatus  RequestStatus `json:"old_status,omitempty"`
	NewStatus  RequestStatus `json:"new_status,omitempty"`
	Comment    string        `json:"comment,omitempty"`
	Author     string        `json:"author,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Vehicle is a vehicle declared by the incoming occupant on the request,
// created as a real vehicle row during migration.
type Vehicle struct {
	ID                 uuid.UUID `json:"id"`
	RequestID          uuid.UUID `json:"request_id"`
	RegistrationNumber string    `json:"registration_number"`
	Make               string    `json:"make,omitempty"`
	Model              string    `json:"model,omitempty"`
	Color              string    `json:"color,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Stats summarizes transition activity for the admin dashboard.
type Stats struct {
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	ByType     map[string]int `json:"by_type"`
}
