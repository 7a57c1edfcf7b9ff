package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	dErrors "altona/pkg/domain-errors"
)

// UpdateInput is a partial profile update. Nil pointers leave the field
// untouched; empty strings clear it.
type UpdateInput struct {
	FirstName              *string
	LastName               *string
	Email                  *string
	PhoneNumber            *string
	EmergencyContactName   *string
	EmergencyContactNumber *string
	IntercomCode           *string
	PostalAddress          *models.PostalAddress
}

// fieldDiff is one changed tracked field destined for the journal.
type fieldDiff struct {
	field    string
	oldValue string
	newValue string
}

// UpdateProfile applies a self-service update and journals every changed
// tracked field with change_type user_update.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateInput) (*Profile, error) {
	return s.applyUpdate(ctx, userID, in, jmodels.ChangeUserUpdate)
}

// AdminUpdate applies the same update on behalf of an admin, journalled as
// admin_update.
func (s *Service) AdminUpdate(ctx context.Context, userID uuid.UUID, in UpdateInput) (*Profile, error) {
	return s.applyUpdate(ctx, userID, in, jmodels.ChangeAdminUpdate)
}

func (s *Service) applyUpdate(ctx context.Context, userID uuid.UUID, in UpdateInput, changeType jmodels.ChangeType) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	resident, _ := s.store.FindResidentByUserID(ctx, userID)
	owner, _ := s.store.FindOwnerByUserID(ctx, userID)
	if resident == nil && owner == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "user has no role records to update")
	}

	var diffs []fieldDiff
	now := s.now().UTC()

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "email cannot be cleared")
		}
		if email != user.Email {
			diffs = append(diffs, fieldDiff{jmodels.FieldEmail, user.Email, email})
			user.Email = email
			user.UpdatedAt = now
			if err := s.store.UpdateUser(ctx, user); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update user email")
			}
		}
	}

	if resident != nil {
		recordDiffs, changed := applyRecordUpdate(in,
			&resident.FirstName, &resident.LastName, &resident.PhoneNumber,
			&resident.EmergencyContactName, &resident.EmergencyContactNumber,
			&resident.IntercomCode)
		if changed {
			resident.UpdatedAt = now
			if err := s.store.UpdateResident(ctx, resident); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update resident record")
			}
			diffs = append(diffs, recordDiffs...)
		}
	}
	if owner != nil {
		recordDiffs, changed := applyRecordUpdate(in,
			&owner.FirstName, &owner.LastName, &owner.PhoneNumber,
			&owner.EmergencyContactName, &owner.EmergencyContactNumber,
			&owner.IntercomCode)
		if in.PostalAddress != nil && *in.PostalAddress != owner.PostalAddress {
			owner.PostalAddress = *in.PostalAddress
			changed = true
		}
		if changed {
			owner.UpdatedAt = now
			if err := s.store.UpdateOwner(ctx, owner); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update owner record")
			}
			// A user holding both records gets one journal row per field,
			// not one per record.
			if resident == nil {
				diffs = append(diffs, recordDiffs...)
			}
		}
	}

	s.journalDiffs(ctx, user, resident, owner, changeType, diffs)
	return s.GetProfile(ctx, userID)
}

// applyRecordUpdate mutates the shared person fields of a role record and
// returns the tracked-field diffs.
func applyRecordUpdate(in UpdateInput,
	firstName, lastName, phone, emName, emNumber, intercom *string) ([]fieldDiff, bool) {

	var diffs []fieldDiff
	changed := false

	if in.FirstName != nil && *in.FirstName != *firstName {
		oldFull := strings.TrimSpace(*firstName + " " + *lastName)
		*firstName = *in.FirstName
		newFull := strings.TrimSpace(*firstName + " " + *lastName)
		diffs = append(diffs, fieldDiff{jmodels.FieldFullName, oldFull, newFull})
		changed = true
	}
	if in.LastName != nil && *in.LastName != *lastName {
		oldFull := strings.TrimSpace(*firstName + " " + *lastName)
		*lastName = *in.LastName
		newFull := strings.TrimSpace(*firstName + " " + *lastName)
		diffs = append(diffs, fieldDiff{jmodels.FieldFullName, oldFull, newFull})
		changed = true
	}
	if in.PhoneNumber != nil && *in.PhoneNumber != *phone {
		diffs = append(diffs, fieldDiff{jmodels.FieldCellphoneNumber, *phone, *in.PhoneNumber})
		*phone = *in.PhoneNumber
		changed = true
	}
	if in.EmergencyContactName != nil && *in.EmergencyContactName != *emName {
		*emName = *in.EmergencyContactName
		changed = true
	}
	if in.EmergencyContactNumber != nil && *in.EmergencyContactNumber != *emNumber {
		*emNumber = *in.EmergencyContactNumber
		changed = true
	}
	if in.IntercomCode != nil && *in.IntercomCode != *intercom {
		diffs = append(diffs, fieldDiff{jmodels.FieldIntercomCode, *intercom, *in.IntercomCode})
		*intercom = *in.IntercomCode
		changed = true
	}
	return diffs, changed
}

func (s *Service) journalDiffs(ctx context.Context, user *models.User,
	resident *models.Resident, owner *models.Owner,
	changeType jmodels.ChangeType, diffs []fieldDiff) {

	if len(diffs) == 0 {
		return
	}
	userName, erf := displayName(resident, owner)
	for _, d := range diffs {
		s.record(ctx, jmodels.Entry{
			UserID:     user.ID,
			UserName:   userName,
			ErfNumber:  erf,
			ChangeType: changeType,
			FieldName:  d.field,
			OldValue:   d.oldValue,
			NewValue:   d.newValue,
		})
	}
	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", user.ID.String()),
		slog.String("change_type", string(changeType)),
		slog.Int("changed_fields", len(diffs)))
}

func displayName(resident *models.Resident, owner *models.Owner) (name, erf string) {
	switch {
	case resident != nil:
		return strings.TrimSpace(resident.FirstName + " " + resident.LastName), resident.ErfNumber
	case owner != nil:
		return strings.TrimSpace(owner.FirstName + " " + owner.LastName), owner.ErfNumber
	default:
		return "", ""
	}
}
