package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
)

// VehicleInput is the create/update payload for a vehicle.
type VehicleInput struct {
	RegistrationNumber string
	Make               string
	Model              string
	Color              string
}

// AddVehicle registers a vehicle under the target user's resident record,
// falling back to the owner record. Only the user themselves or an admin may
// add one; the registration must be unique among active vehicles.
func (s *Service) AddVehicle(ctx context.Context, actorID, targetUserID uuid.UUID, isAdmin bool, in VehicleInput) (*models.Vehicle, error) {
	if actorID != targetUserID && !isAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot add a vehicle for another user")
	}
	registration := strings.ToUpper(strings.TrimSpace(in.RegistrationNumber))
	if registration == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vehicle registration number is required")
	}

	if existing, err := s.store.FindActiveVehicleByRegistration(ctx, registration); err == nil && existing != nil {
		return nil, dErrors.Newf(dErrors.CodeConflict, "registration %s already active", registration)
	}

	resident, _ := s.store.FindResidentByUserID(ctx, targetUserID)
	owner, _ := s.store.FindOwnerByUserID(ctx, targetUserID)
	if resident == nil && owner == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "user has no role record to attach a vehicle to")
	}

	now := s.now().UTC()
	vehicle := &models.Vehicle{
		ID:                 uuid.New(),
		RegistrationNumber: registration,
		Make:               in.Make,
		Model:              in.Model,
		Color:              in.Color,
		Status:             models.VehicleActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if resident != nil {
		vehicle.ResidentID = &resident.ID
	} else {
		vehicle.OwnerID = &owner.ID
	}
	if err := vehicle.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateVehicle(ctx, vehicle); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "registration %s already active", registration)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create vehicle")
	}

	changeType := jmodels.ChangeUserAdd
	if isAdmin && actorID != targetUserID {
		changeType = jmodels.ChangeAdminAdd
	}
	userName, erf := displayName(resident, owner)
	s.record(ctx, jmodels.Entry{
		UserID:     targetUserID,
		UserName:   userName,
		ErfNumber:  erf,
		ChangeType: changeType,
		FieldName:  jmodels.FieldVehicleRegistration,
		NewValue:   registration,
	})

	s.logger.InfoContext(ctx, "vehicle added",
		slog.String("user_id", targetUserID.String()),
		slog.String("registration", registration))
	return vehicle, nil
}

// UpdateVehicle applies a partial update to a vehicle, journalling one entry
// per changed field.
func (s *Service) UpdateVehicle(ctx context.Context, actorID, vehicleID uuid.UUID, isAdmin bool, in VehicleInput) (*models.Vehicle, error) {
	vehicle, targetUserID, err := s.loadVehicleForActor(ctx, actorID, vehicleID, isAdmin)
	if err != nil {
		return nil, err
	}

	changeType := jmodels.ChangeUserUpdate
	if isAdmin && actorID != targetUserID {
		changeType = jmodels.ChangeAdminUpdate
	}

	var diffs []fieldDiff
	if reg := strings.ToUpper(strings.TrimSpace(in.RegistrationNumber)); reg != "" && reg != vehicle.RegistrationNumber {
		if existing, findErr := s.store.FindActiveVehicleByRegistration(ctx, reg); findErr == nil && existing != nil {
			return nil, dErrors.Newf(dErrors.CodeConflict, "registration %s already active", reg)
		}
		diffs = append(diffs, fieldDiff{jmodels.FieldVehicleRegistration, vehicle.RegistrationNumber, reg})
		vehicle.RegistrationNumber = reg
	}
	if in.Make != "" && in.Make != vehicle.Make {
		diffs = append(diffs, fieldDiff{jmodels.FieldVehicleMake, vehicle.Make, in.Make})
		vehicle.Make = in.Make
	}
	if in.Model != "" && in.Model != vehicle.Model {
		diffs = append(diffs, fieldDiff{jmodels.FieldVehicleModel, vehicle.Model, in.Model})
		vehicle.Model = in.Model
	}
	if in.Color != "" && in.Color != vehicle.Color {
		diffs = append(diffs, fieldDiff{jmodels.FieldVehicleColor, vehicle.Color, in.Color})
		vehicle.Color = in.Color
	}
	if len(diffs) == 0 {
		return vehicle, nil
	}

	vehicle.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateVehicle(ctx, vehicle); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "registration already active")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update vehicle")
	}

	for _, d := range diffs {
		s.record(ctx, jmodels.Entry{
			UserID:     targetUserID,
			ChangeType: changeType,
			FieldName:  d.field,
			OldValue:   d.oldValue,
			NewValue:   d.newValue,
		})
	}
	return vehicle, nil
}

// DeleteVehicle removes a vehicle and journals the removal.
func (s *Service) DeleteVehicle(ctx context.Context, actorID, vehicleID uuid.UUID, isAdmin bool) error {
	vehicle, targetUserID, err := s.loadVehicleForActor(ctx, actorID, vehicleID, isAdmin)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVehicle(ctx, vehicleID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete vehicle")
	}

	changeType := jmodels.ChangeUserDelete
	if isAdmin && actorID != targetUserID {
		changeType = jmodels.ChangeAdminDelete
	}
	s.record(ctx, jmodels.Entry{
		UserID:     targetUserID,
		ChangeType: changeType,
		FieldName:  jmodels.FieldVehicleRegistration,
		OldValue:   vehicle.RegistrationNumber,
	})
	s.logger.InfoContext(ctx, "vehicle removed",
		slog.String("user_id", targetUserID.String()),
		slog.String("registration", vehicle.RegistrationNumber))
	return nil
}

// loadVehicleForActor fetches a vehicle and enforces that the actor owns it
// or holds the admin role. It returns the user ID the vehicle belongs to.
func (s *Service) loadVehicleForActor(ctx context.Context, actorID, vehicleID uuid.UUID, isAdmin bool) (*models.Vehicle, uuid.UUID, error) {
	vehicle, err := s.store.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, uuid.Nil, dErrors.New(dErrors.CodeNotFound, "vehicle not found")
		}
		return nil, uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "find vehicle")
	}

	targetUserID, err := s.vehicleOwnerUserID(ctx, vehicle)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if targetUserID != actorID && !isAdmin {
		return nil, uuid.Nil, dErrors.New(dErrors.CodeForbidden, "vehicle belongs to another user")
	}
	return vehicle, targetUserID, nil
}

func (s *Service) vehicleOwnerUserID(ctx context.Context, vehicle *models.Vehicle) (uuid.UUID, error) {
	if vehicle.ResidentID != nil {
		resident, err := s.store.FindResidentByID(ctx, *vehicle.ResidentID)
		if err != nil {
			return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "find vehicle's resident record")
		}
		return resident.UserID, nil
	}
	if vehicle.OwnerID != nil {
		owner, err := s.store.FindOwnerByID(ctx, *vehicle.OwnerID)
		if err != nil {
			return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "find vehicle's owner record")
		}
		return owner.UserID, nil
	}
	return uuid.Nil, dErrors.New(dErrors.CodeInternal, "vehicle has no parent record")
}
