package models

import dErrors "altona/pkg/domain-errors"

var (
	errExactlyOneParent     = dErrors.New(dErrors.CodeInvalidInput, "a vehicle must belong to exactly one of a resident or owner record")
	errRegistrationRequired = dErrors.New(dErrors.CodeInvalidInput, "vehicle registration number is required")
)
