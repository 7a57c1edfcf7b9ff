// Package models holds the identity entities: users, per-ERF resident and
// owner records, and vehicles. The composite role of a user at an ERF is a
// projection of which role records exist; ComposeRole is the single place
// that projection is computed.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStatus is the account-level lifecycle state. The source vocabulary is
// collapsed to four values; "approved" is accepted as an input synonym for
// "active" by NormalizeUserStatus.
type UserStatus string

const (
	UserPending  UserStatus = "pending"
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserArchived UserStatus = "archived"
)

// NormalizeUserStatus maps legacy synonyms onto the collapsed vocabulary.
func NormalizeUserStatus(s string) UserStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "active":
		return UserActive
	case "inactive":
		return UserInactive
	case "archived":
		return UserArchived
	default:
		return UserPending
	}
}

// Role is the user-facing label projected from the role records.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleResident      Role = "resident"
	RoleOwner         Role = "owner"
	RoleOwnerResident Role = "owner_resident"
	RolePending       Role = "pending"
	RoleInactive      Role = "inactive"
	RoleNone          Role = "none"
)

// ComposeRole projects (has active resident record, has active owner record)
// onto the composite role.
func ComposeRole(hasResident, hasOwner bool) Role {
	switch {
	case hasResident && hasOwner:
		return RoleOwnerResident
	case hasResident:
		return RoleResident
	case hasOwner:
		return RoleOwner
	default:
		return RoleNone
	}
}

// RecordStatus is the role-record lifecycle state.
type RecordStatus string

const (
	RecordActive         RecordStatus = "active"
	RecordApproved       RecordStatus = "approved"
	RecordPending        RecordStatus = "pending"
	RecordInactive       RecordStatus = "inactive"
	RecordDeletedProfile RecordStatus = "deleted_profile"
	RecordMigrated       RecordStatus = "migrated"
	RecordArchived       RecordStatus = "archived"
)

// GateVisible reports whether a role record in this state counts towards the
// gate register.
func (s RecordStatus) GateVisible() bool {
	return s == RecordActive || s == RecordApproved
}

// VehicleStatus tracks the access state of a registered vehicle.
type VehicleStatus string

const (
	VehicleActive          VehicleStatus = "active"
	VehicleInactive        VehicleStatus = "inactive"
	VehicleTerminated      VehicleStatus = "terminated"
	VehicleTransferred     VehicleStatus = "transferred"
	VehicleOwnerAccessOnly VehicleStatus = "owner_access_only"
)

// IntercomCodePlaceholder marks role records created by a migration whose
// intercom code must be assigned by an admin before the person is
// operational at the gate.
const IntercomCodePlaceholder = "ADMIN_SET_REQUIRED"

// User is an authentication principal. Email is deliberately non-unique:
// one natural person may hold a separate account per ERF presence.
type User struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	Role                  Role       `json:"role"`
	Status                UserStatus `json:"status"`
	PasswordResetRequired bool       `json:"password_reset_required"`
	EmailNotifications    bool       `json:"email_notifications"`
	Archived              bool       `json:"archived"`
	ArchivedAt            *time.Time `json:"archived_at,omitempty"`
	ArchivedBy            string     `json:"archived_by,omitempty"`
	ArchiveReason         string     `json:"archive_reason,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// GateVisible reports whether this account may contribute rows to the gate
// register at all.
func (u *User) GateVisible() bool {
	return u.Status == UserActive && u.Role != RoleAdmin
}

// Resident is a per-ERF "person lives here" fact owned by one User.
type Resident struct {
	ID                     uuid.UUID    `json:"id"`
	UserID                 uuid.UUID    `json:"user_id"`
	FirstName              string       `json:"first_name"`
	LastName               string       `json:"last_name"`
	IDNumber               string       `json:"id_number,omitempty"`
	PhoneNumber            string       `json:"phone_number"`
	EmergencyContactName   string       `json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber string       `json:"emergency_contact_number,omitempty"`
	ErfNumber              string       `json:"erf_number"`
	StreetNumber           string       `json:"street_number"`
	StreetName             string       `json:"street_name"`
	FullAddress            string       `json:"full_address,omitempty"`
	IntercomCode           string       `json:"intercom_code,omitempty"`
	MovingInDate           *time.Time   `json:"moving_in_date,omitempty"`
	MovingOutDate          *time.Time   `json:"moving_out_date,omitempty"`
	Status                 RecordStatus `json:"status"`
	MigrationDate          *time.Time   `json:"migration_date,omitempty"`
	MigrationReason        string       `json:"migration_reason,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// PostalAddress is the structured postal address stored on owner records.
// The composed string is derived, never authoritative.
type PostalAddress struct {
	Street string `json:"street,omitempty"`
	Suburb string `json:"suburb,omitempty"`
	City   string `json:"city,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Compose renders the single-line postal address from the structured parts.
func (p PostalAddress) Compose() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.Street, p.Suburb, p.City, p.Code} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Owner is a per-ERF "person owns this" fact owned by one User.
type Owner struct {
	ID                     uuid.UUID     `json:"id"`
	UserID                 uuid.UUID     `json:"user_id"`
	FirstName              string        `json:"first_name"`
	LastName               string        `json:"last_name"`
	IDNumber               string        `json:"id_number,omitempty"`
	PhoneNumber            string        `json:"phone_number"`
	EmergencyContactName   string        `json:"emergency_contact_name,omitempty"`
	EmergencyContactNumber string        `json:"emergency_contact_number,omitempty"`
	ErfNumber              string        `json:"erf_number"`
	StreetNumber           string        `json:"street_number"`
	StreetName             string        `json:"street_name"`
	FullAddress            string        `json:"full_address,omitempty"`
	IntercomCode           string        `json:"intercom_code,omitempty"`
	TitleDeedNumber        string        `json:"title_deed_number,omitempty"`
	AcquisitionDate        *time.Time    `json:"acquisition_date,omitempty"`
	PostalAddress          PostalAddress `json:"postal_address"`
	MovingInDate           *time.Time    `json:"moving_in_date,omitempty"`
	MovingOutDate          *time.Time    `json:"moving_out_date,omitempty"`
	Status                 RecordStatus  `json:"status"`
	MigrationDate          *time.Time    `json:"migration_date,omitempty"`
	MigrationReason        string        `json:"migration_reason,omitempty"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// Vehicle is tied to exactly one of a Resident or Owner record; the
// (ResidentID XOR OwnerID) invariant is enforced by the store schema and
// revalidated by Validate.
type Vehicle struct {
	ID                 uuid.UUID     `json:"id"`
	ResidentID         *uuid.UUID    `json:"resident_id,omitempty"`
	OwnerID            *uuid.UUID    `json:"owner_id,omitempty"`
	RegistrationNumber string        `json:"registration_number"`
	Make               string        `json:"make,omitempty"`
	Model              string        `json:"model,omitempty"`
	Color              string        `json:"color,omitempty"`
	Status             VehicleStatus `json:"status"`
	MigrationDate      *time.Time    `json:"migration_date,omitempty"`
	MigrationReason    string        `json:"migration_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Validate checks the XOR parent invariant and required fields.
func (v *Vehicle) Validate() error {
	if (v.ResidentID == nil) == (v.OwnerID == nil) {
		return errExactlyOneParent
	}
	if strings.TrimSpace(v.RegistrationNumber) == "" {
		return errRegistrationRequired
	}
	return nil
}
