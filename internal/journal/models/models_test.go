package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFieldName(t *testing.T) {
	cases := map[string]string{
		"phone":            FieldCellphoneNumber,
		"Phone_Number":     FieldCellphoneNumber,
		"cell":             FieldCellphoneNumber,
		"cell_number":      FieldCellphoneNumber,
		"vehicle_1":        FieldVehicleRegistration,
		"vehicle_2":        FieldVehicleRegistration2,
		"  intercom  ":     FieldIntercomCode,
		"surname":          FieldLastName,
		"cellphone_number": FieldCellphoneNumber,
		"made_up_field":    "made_up_field",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeFieldName(raw), "raw=%q", raw)
	}
}

func TestNormalizeFieldNameIdempotent(t *testing.T) {
	inputs := []string{"phone", "vehicle_1", "vehicle_2", "intercom", "surname", "erf", "status"}
	for name := range canonicalFields {
		inputs = append(inputs, name)
	}
	for _, raw := range inputs {
		once := NormalizeFieldName(raw)
		assert.Equal(t, once, NormalizeFieldName(once), "raw=%q", raw)
	}
}

func TestIsCriticalChange(t *testing.T) {
	assert.True(t, IsCriticalChange(ChangeUserUpdate, "cellphone_number"))
	assert.True(t, IsCriticalChange(ChangeAdminUpdate, "phone"))
	assert.True(t, IsCriticalChange(ChangeUserUpdate, "vehicle_registration_2"))

	// Vehicle additions are critical, metadata edits are not.
	assert.True(t, IsCriticalChange(ChangeUserAdd, "vehicle_registration"))
	assert.True(t, IsCriticalChange(ChangeAdminAdd, "vehicle_registration"))
	assert.False(t, IsCriticalChange(ChangeUserUpdate, "vehicle_make"))

	// Intercom is journalled but non-critical for export.
	assert.False(t, IsCriticalChange(ChangeUserUpdate, "intercom_code"))
	assert.False(t, IsCriticalChange(ChangeAdminUpdate, "email"))
}
