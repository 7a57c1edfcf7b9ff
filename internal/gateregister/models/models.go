// Package models defines the gate-register projection rows and their
// ordering, which mirrors how the gate guards read the printed list:
// street by street, then by house number.
package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Status labels as they appear on the printed register.
const (
	StatusOwner         = "Owner"
	StatusResident      = "Resident"
	StatusOwnerResident = "Owner-Resident"
)

// StatusLabel projects role-record presence onto the printed label.
func StatusLabel(hasResident, hasOwner bool) string {
	switch {
	case hasResident && hasOwner:
		return StatusOwnerResident
	case hasOwner:
		return StatusOwner
	default:
		return StatusResident
	}
}

// Row is one line of the plain gate register: a (user, ERF, vehicle)
// combination. Users without vehicles still get a row with a blank
// registration column.
type Row struct {
	UserID              uuid.UUID `json:"user_id"`
	ResidentStatus      string    `json:"resident_status"`
	Surname             string    `json:"surname"`
	FirstName           string    `json:"first_name"`
	StreetNumber        string    `json:"street_number"`
	StreetName          string    `json:"street_name"`
	VehicleRegistration string    `json:"vehicle_registration"`
	ErfNumber           string    `json:"erf_number"`
	IntercomCode        string    `json:"intercom_code"`
}

// ChangeDetail is one unreviewed journal row surfaced on the change view.
type ChangeDetail struct {
	FieldName string `json:"field_name"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	Critical  bool   `json:"critical"`
}

// ChangedRow is a register row for a user with unreviewed changes, with
// per-concern flags the guards scan for.
type ChangedRow struct {
	Row
	PhoneChanged    bool           `json:"phone_changed"`
	VehicleChanged  bool           `json:"vehicle_changed"`
	IntercomChanged bool           `json:"intercom_changed"`
	Changes         []ChangeDetail `json:"changes"`
}

// Sort orders rows by uppercased street name, then by numeric street
// number, then by surname for stability.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := strings.ToUpper(rows[i].StreetName), strings.ToUpper(rows[j].StreetName)
		if si != sj {
			return si < sj
		}
		ni, iOK := streetNumber(rows[i].StreetNumber)
		nj, jOK := streetNumber(rows[j].StreetNumber)
		switch {
		case iOK && jOK && ni != nj:
			return ni < nj
		case iOK != jOK:
			return iOK
		case rows[i].StreetNumber != rows[j].StreetNumber:
			return rows[i].StreetNumber < rows[j].StreetNumber
		}
		return rows[i].Surname < rows[j].Surname
	})
}

// streetNumber parses the leading digits of a street number like "12" or
// "3A".
func streetNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
