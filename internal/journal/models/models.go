// Package models defines the change-journal entry and the canonical
// field-name vocabulary. Criticality is derived from the canonical name at
// read time, never stored, so adjusting the critical set re-classifies
// historical rows consistently.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangeType labels the origin of a journal entry.
type ChangeType string

const (
	ChangeUserAdd               ChangeType = "user_add"
	ChangeAdminAdd              ChangeType = "admin_add"
	ChangeUserUpdate            ChangeType = "user_update"
	ChangeAdminUpdate           ChangeType = "admin_update"
	ChangeUserDelete            ChangeType = "user_delete"
	ChangeAdminDelete           ChangeType = "admin_delete"
	ChangeTransitionLinking     ChangeType = "transition_linking"
	ChangeTransitionReplacement ChangeType = "transition_replacement"
	ChangeTransitionTermination ChangeType = "transition_termination"
	ChangeTransitionRoleChange  ChangeType = "transition_role_change"
)

// Canonical field names. Every appended entry carries one of these; inputs
// are run through NormalizeFieldName before persistence.
const (
	FieldFirstName            = "first_name"
	FieldLastName             = "last_name"
	FieldFullName             = "full_name"
	FieldIDNumber             = "id_number"
	FieldEmail                = "email"
	FieldCellphoneNumber      = "cellphone_number"
	FieldIntercomCode         = "intercom_code"
	FieldErfNumber            = "erf_number"
	FieldStreetNumber         = "street_number"
	FieldStreetName           = "street_name"
	FieldPropertyAddress      = "property_address"
	FieldResidentStatus       = "resident_status"
	FieldVehicleRegistration  = "vehicle_registration"
	FieldVehicleRegistration2 = "vehicle_registration_2"
	FieldVehicleMake          = "vehicle_make"
	FieldVehicleModel         = "vehicle_model"
	FieldVehicleColor         = "vehicle_color"
	FieldUserStatus           = "user_status"
)

// fieldAliases folds the names used by older callers and imports onto the
// canonical vocabulary. Canonical names map to themselves so normalization
// is idempotent.
var fieldAliases = map[string]string{
	"phone":                  FieldCellphoneNumber,
	"phone_number":           FieldCellphoneNumber,
	"cell":                   FieldCellphoneNumber,
	"cell_number":            FieldCellphoneNumber,
	"cellphone":              FieldCellphoneNumber,
	"mobile":                 FieldCellphoneNumber,
	"mobile_number":          FieldCellphoneNumber,
	"vehicle_1":              FieldVehicleRegistration,
	"vehicle1":               FieldVehicleRegistration,
	"vehicle_2":              FieldVehicleRegistration2,
	"vehicle2":               FieldVehicleRegistration2,
	"registration_number":    FieldVehicleRegistration,
	"vehicle_registration_1": FieldVehicleRegistration,
	"intercom":               FieldIntercomCode,
	"intercom_number":        FieldIntercomCode,
	"name":                   FieldFirstName,
	"surname":                FieldLastName,
	"erf":                    FieldErfNumber,
	"address":                FieldPropertyAddress,
	"full_address":           FieldPropertyAddress,
	"status":                 FieldUserStatus,
	"make":                   FieldVehicleMake,
	"model":                  FieldVehicleModel,
	"color":                  FieldVehicleColor,
	"colour":                 FieldVehicleColor,
}

var canonicalFields = map[string]struct{}{
	FieldFirstName:            {},
	FieldLastName:             {},
	FieldFullName:             {},
	FieldIDNumber:             {},
	FieldEmail:                {},
	FieldCellphoneNumber:      {},
	FieldIntercomCode:         {},
	FieldErfNumber:            {},
	FieldStreetNumber:         {},
	FieldStreetName:           {},
	FieldPropertyAddress:      {},
	FieldResidentStatus:       {},
	FieldVehicleRegistration:  {},
	FieldVehicleRegistration2: {},
	FieldVehicleMake:          {},
	FieldVehicleModel:         {},
	FieldVehicleColor:         {},
	FieldUserStatus:           {},
}

// NormalizeFieldName maps a raw field name onto the canonical vocabulary.
// Unknown names pass through lowercased and trimmed, so new fields degrade
// gracefully instead of being dropped.
func NormalizeFieldName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := fieldAliases[name]; ok {
		return canonical
	}
	return name
}

// IsCanonicalField reports whether name belongs to the fixed vocabulary.
func IsCanonicalField(name string) bool {
	_, ok := canonicalFields[name]
	return ok
}

// criticalFields affect physical access decisions at the gate.
var criticalFields = map[string]struct{}{
	FieldCellphoneNumber:      {},
	FieldVehicleRegistration:  {},
	FieldVehicleRegistration2: {},
}

// IsCriticalField reports whether a field is critical irrespective of how it
// changed.
func IsCriticalField(field string) bool {
	_, ok := criticalFields[NormalizeFieldName(field)]
	return ok
}

// IsCriticalChange classifies a full (change type, field) pair. Vehicle
// additions are critical even though vehicle metadata edits are not.
func IsCriticalChange(changeType ChangeType, field string) bool {
	field = NormalizeFieldName(field)
	if IsCriticalField(field) {
		return true
	}
	if field == FieldVehicleRegistration && (changeType == ChangeUserAdd || changeType == ChangeAdminAdd) {
		return true
	}
	return false
}

// Change is one immutable journal row. Only the review and export
// bookkeeping fields may be updated after insertion.
type Change struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	UserName           string     `json:"user_name,omitempty"`
	ErfNumber          string     `json:"erf_number,omitempty"`
	ChangeType         ChangeType `json:"change_type"`
	FieldName          string     `json:"field_name"`
	OldValue           string     `json:"old_value,omitempty"`
	NewValue           string     `json:"new_value,omitempty"`
	ChangeTimestamp    time.Time  `json:"change_timestamp"`
	AdminReviewed      bool       `json:"admin_reviewed"`
	AdminReviewer      string     `json:"admin_reviewer,omitempty"`
	ReviewTimestamp    *time.Time `json:"review_timestamp,omitempty"`
	ExportedToExternal bool       `json:"exported_to_external"`
	ExportTimestamp    *time.Time `json:"export_timestamp,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// Critical reports the derived classification of this row.
func (c *Change) Critical() bool {
	return IsCriticalChange(c.ChangeType, c.FieldName)
}

// Entry is the append input accepted by the journal service.
type Entry struct {
	UserID     uuid.UUID
	UserName   string
	ErfNumber  string
	ChangeType ChangeType
	FieldName  string
	OldValue   string
	NewValue   string
	Notes      string
}

// Stats summarizes journal activity for the admin dashboard.
type Stats struct {
	Today              int            `json:"today"`
	LastSevenDays      int            `json:"last_seven_days"`
	CriticalPending    int            `json:"critical_pending"`
	NonCriticalPending int            `json:"non_critical_pending"`
	ByChangeType       map[string]int `json:"by_change_type"`
	ByFieldName        map[string]int `json:"by_field_name"`
}
