package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	identity "altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	"altona/internal/transition/models"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/email"
	"altona/pkg/secrets"
)

// note is an outbound notification deferred until after commit.
type note struct {
	to      string
	subject string
	body    string
}

// migrationResult collects side effects that must only fire once the
// transaction has committed.
type migrationResult struct {
	kind      models.MigrationKind
	newUserID *uuid.UUID
	entries   []jmodels.Entry
	notes     []note
}

// runMigration executes the migration for a request inside one serializable
// transaction. When finalize is set the completed status and completion date
// are written by the same in-transaction update as the migration bookkeeping,
// so a crash can never leave a committed migration on a request that is still
// in a pre-completion status. Re-running a completed migration is a no-op;
// two admins racing resolve to first-writer-wins because the inner re-read
// happens under the transaction.
func (s *Service) runMigration(ctx context.Context, req *models.Request, linked *identity.User, finalize bool) error {
	if req.MigrationCompleted && !finalize {
		return nil
	}

	var result *migrationResult
	err := s.runner.RunSerializable(ctx, func(txCtx context.Context) error {
		result = nil
		current, err := s.store.FindRequestByID(txCtx, req.ID)
		if err != nil {
			return err
		}
		if current.MigrationCompleted && (!finalize || current.Status == models.StatusCompleted) {
			*req = *current
			return nil
		}

		now := s.now().UTC()
		if !current.MigrationCompleted {
			r, err := s.migrate(txCtx, current, linked)
			if err != nil {
				return err
			}
			current.MigrationCompleted = true
			current.MigrationDate = &now
			current.NewUserID = r.newUserID
			result = r
		}
		if finalize {
			current.Status = models.StatusCompleted
			current.CompletionDate = &now
		}
		current.UpdatedAt = now
		if err := s.store.UpdateRequest(txCtx, current); err != nil {
			return err
		}
		*req = *current
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.MigrationFailures.Inc()
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) ||
			dErrors.HasCode(err, dErrors.CodeConflict) ||
			dErrors.HasCode(err, dErrors.CodePrivacyPolicyViolation) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeMigrationFailed, "migration rolled back")
	}
	if result == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.TransitionsCompleted.WithLabelValues(string(result.kind)).Inc()
	}
	for _, e := range result.entries {
		s.record(ctx, e)
	}
	for _, n := range result.notes {
		s.notify(ctx, n.to, n.subject, n.body)
	}
	return nil
}

// migrate dispatches on the migration classification.
func (s *Service) migrate(ctx context.Context, req *models.Request, linked *identity.User) (*migrationResult, error) {
	outgoing, err := s.identity.FindUserByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	samePerson := req.NewOccupantEmail != "" && req.NewOccupantEmail == outgoing.Email
	kind := models.Classify(req, samePerson, linked != nil)

	switch kind {
	case models.MigrationRoleChange:
		return s.migrateRoleChange(ctx, req, outgoing)
	case models.MigrationPartialReplacement:
		return s.migratePartialReplacement(ctx, req, outgoing, linked)
	case models.MigrationCompleteReplacement:
		return s.migrateCompleteReplacement(ctx, req, outgoing, linked)
	default:
		return s.migrateTermination(ctx, req, outgoing)
	}
}

// migrateRoleChange keeps the person and their password, rewriting only the
// role records and the composite role label.
func (s *Service) migrateRoleChange(ctx context.Context, req *models.Request, outgoing *identity.User) (*migrationResult, error) {
	targetRole := req.NewOccupantType.Role()
	if targetRole == identity.RoleNone {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role change requires a concrete new occupant type")
	}
	wantResident := targetRole == identity.RoleResident || targetRole == identity.RoleOwnerResident
	wantOwner := targetRole == identity.RoleOwner || targetRole == identity.RoleOwnerResident

	resident, _ := s.identity.FindResidentByUserID(ctx, outgoing.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, outgoing.ID)
	now := s.now().UTC()
	oldRole := identity.ComposeRole(resident != nil && resident.Status.GateVisible(),
		owner != nil && owner.Status.GateVisible())

	person := personFromRecords(resident, owner)

	if wantResident && (resident == nil || !resident.Status.GateVisible()) {
		if resident == nil {
			newRecord := person.resident(outgoing.ID, req.ErfNumber, now)
			if err := s.identity.CreateResident(ctx, newRecord); err != nil {
				return nil, err
			}
			resident = newRecord
		} else {
			resident.Status = identity.RecordActive
			resident.UpdatedAt = now
			if err := s.identity.UpdateResident(ctx, resident); err != nil {
				return nil, err
			}
		}
	}
	if wantOwner && (owner == nil || !owner.Status.GateVisible()) {
		if owner == nil {
			newRecord := person.owner(outgoing.ID, req.ErfNumber, now)
			if err := s.identity.CreateOwner(ctx, newRecord); err != nil {
				return nil, err
			}
			owner = newRecord
		} else {
			owner.Status = identity.RecordActive
			owner.UpdatedAt = now
			if err := s.identity.UpdateOwner(ctx, owner); err != nil {
				return nil, err
			}
		}
	}

	if !wantResident && resident != nil && resident.Status.GateVisible() {
		if err := s.relinquishResident(ctx, resident, owner, req, now); err != nil {
			return nil, err
		}
	}
	if !wantOwner && owner != nil && owner.Status.GateVisible() {
		if err := s.relinquishOwner(ctx, owner, resident, req, now); err != nil {
			return nil, err
		}
	}

	outgoing.Role = targetRole
	outgoing.UpdatedAt = now
	if err := s.identity.UpdateUser(ctx, outgoing); err != nil {
		return nil, err
	}

	id := outgoing.ID
	return &migrationResult{
		kind:      models.MigrationRoleChange,
		newUserID: &id,
		entries: []jmodels.Entry{{
			UserID:     outgoing.ID,
			UserName:   person.fullName(),
			ErfNumber:  req.ErfNumber,
			ChangeType: jmodels.ChangeTransitionRoleChange,
			FieldName:  jmodels.FieldUserStatus,
			OldValue:   string(oldRole),
			NewValue:   string(targetRole),
		}},
	}, nil
}

// relinquishResident retires a resident record and re-parents its vehicles
// onto the surviving owner record, or retires them with it.
func (s *Service) relinquishResident(ctx context.Context, resident *identity.Resident, owner *identity.Owner, req *models.Request, now time.Time) error {
	vehicles, err := s.identity.ListVehiclesByResidentID(ctx, resident.ID)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if owner != nil && owner.Status.GateVisible() {
			v.ResidentID = nil
			v.OwnerID = &owner.ID
		} else {
			v.Status = identity.VehicleInactive
			v.MigrationDate = &now
			v.MigrationReason = "role relinquished"
		}
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	resident.Status = identity.RecordInactive
	resident.MigrationDate = &now
	resident.MigrationReason = string(req.RequestType)
	resident.UpdatedAt = now
	return s.identity.UpdateResident(ctx, resident)
}

func (s *Service) relinquishOwner(ctx context.Context, owner *identity.Owner, resident *identity.Resident, req *models.Request, now time.Time) error {
	vehicles, err := s.identity.ListVehiclesByOwnerID(ctx, owner.ID)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if resident != nil && resident.Status.GateVisible() {
			v.OwnerID = nil
			v.ResidentID = &resident.ID
		} else {
			v.Status = identity.VehicleInactive
			v.MigrationDate = &now
			v.MigrationReason = "role relinquished"
		}
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	owner.Status = identity.RecordInactive
	owner.MigrationDate = &now
	owner.MigrationReason = string(req.RequestType)
	owner.UpdatedAt = now
	return s.identity.UpdateOwner(ctx, owner)
}

// migrateCompleteReplacement decommissions the outgoing person entirely and
// brings in the new occupant, either from a linked pending registration or
// from the identity data supplied on the request.
func (s *Service) migrateCompleteReplacement(ctx context.Context, req *models.Request, outgoing *identity.User, linked *identity.User) (*migrationResult, error) {
	now := s.now().UTC()
	result := &migrationResult{kind: models.MigrationCompleteReplacement}

	outName, err := s.decommissionOutgoing(ctx, req, outgoing, now)
	if err != nil {
		return nil, err
	}

	var incoming *identity.User
	if linked != nil {
		result.kind = models.MigrationCompleteReplacement
		incoming, err = s.activateLinkedUser(ctx, req, linked, now)
	} else {
		incoming, err = s.createIncomingUser(ctx, req, now, result)
	}
	if err != nil {
		return nil, err
	}
	if err := s.createRequestVehicles(ctx, req, incoming, now); err != nil {
		return nil, err
	}

	id := incoming.ID
	result.newUserID = &id
	changeType := jmodels.ChangeTransitionReplacement
	if linked != nil {
		changeType = jmodels.ChangeTransitionLinking
	}
	result.entries = append(result.entries, jmodels.Entry{
		UserID:     outgoing.ID,
		UserName:   outName,
		ErfNumber:  req.ErfNumber,
		ChangeType: changeType,
		FieldName:  jmodels.FieldUserStatus,
		OldValue:   string(identity.UserActive),
		NewValue:   string(identity.UserInactive),
	})
	return result, nil
}

// migratePartialReplacement keeps the outgoing person in one role and hands
// the other to the linked newcomer.
func (s *Service) migratePartialReplacement(ctx context.Context, req *models.Request, outgoing *identity.User, linked *identity.User) (*migrationResult, error) {
	if linked == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"partial replacement requires a linked registered user")
	}
	now := s.now().UTC()

	resident, _ := s.identity.FindResidentByUserID(ctx, outgoing.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, outgoing.ID)

	// The incoming person takes new_occupant_type; the outgoing keeps the
	// complementary role.
	var retained identity.Role
	switch req.NewOccupantType {
	case models.OccupantResident:
		retained = identity.RoleOwner
	case models.OccupantOwner:
		retained = identity.RoleResident
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"partial replacement requires new occupant type resident or owner")
	}

	if retained == identity.RoleOwner {
		if resident == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "outgoing user holds no resident record to hand over")
		}
		if err := s.retireResidentRecord(ctx, resident, req, now); err != nil {
			return nil, err
		}
	} else {
		if owner == nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "outgoing user holds no owner record to hand over")
		}
		if err := s.retireOwnerRecord(ctx, owner, req, now); err != nil {
			return nil, err
		}
	}

	outgoing.Role = retained
	outgoing.UpdatedAt = now
	if err := s.identity.UpdateUser(ctx, outgoing); err != nil {
		return nil, err
	}

	incoming, err := s.activateLinkedUser(ctx, req, linked, now)
	if err != nil {
		return nil, err
	}
	if err := s.createRequestVehicles(ctx, req, incoming, now); err != nil {
		return nil, err
	}

	id := incoming.ID
	return &migrationResult{
		kind:      models.MigrationPartialReplacement,
		newUserID: &id,
		entries: []jmodels.Entry{{
			UserID:     outgoing.ID,
			UserName:   personFromRecords(resident, owner).fullName(),
			ErfNumber:  req.ErfNumber,
			ChangeType: jmodels.ChangeTransitionLinking,
			FieldName:  jmodels.FieldResidentStatus,
			OldValue:   string(identity.RoleOwnerResident),
			NewValue:   string(retained),
		}},
	}, nil
}

// migrateTermination retires the whole presence with nobody taking over.
func (s *Service) migrateTermination(ctx context.Context, req *models.Request, outgoing *identity.User) (*migrationResult, error) {
	now := s.now().UTC()

	resident, _ := s.identity.FindResidentByUserID(ctx, outgoing.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, outgoing.ID)
	name := personFromRecords(resident, owner).fullName()

	if resident != nil {
		if err := s.terminateVehicles(ctx, s.identity.ListVehiclesByResidentID, resident.ID, now); err != nil {
			return nil, err
		}
		resident.Status = identity.RecordInactive
		resident.MigrationDate = &now
		resident.MigrationReason = "terminated"
		resident.UpdatedAt = now
		if err := s.identity.UpdateResident(ctx, resident); err != nil {
			return nil, err
		}
	}
	if owner != nil {
		if err := s.terminateVehicles(ctx, s.identity.ListVehiclesByOwnerID, owner.ID, now); err != nil {
			return nil, err
		}
		owner.Status = identity.RecordInactive
		owner.MigrationDate = &now
		owner.MigrationReason = "terminated"
		owner.UpdatedAt = now
		if err := s.identity.UpdateOwner(ctx, owner); err != nil {
			return nil, err
		}
	}

	outgoing.Status = identity.UserInactive
	outgoing.UpdatedAt = now
	if err := s.identity.UpdateUser(ctx, outgoing); err != nil {
		return nil, err
	}

	return &migrationResult{
		kind: models.MigrationTermination,
		entries: []jmodels.Entry{{
			UserID:     outgoing.ID,
			UserName:   name,
			ErfNumber:  req.ErfNumber,
			ChangeType: jmodels.ChangeTransitionTermination,
			FieldName:  jmodels.FieldUserStatus,
			OldValue:   string(identity.UserActive),
			NewValue:   string(identity.UserInactive),
		}},
	}, nil
}

func (s *Service) terminateVehicles(ctx context.Context, list func(context.Context, uuid.UUID) ([]*identity.Vehicle, error), recordID uuid.UUID, now time.Time) error {
	vehicles, err := list(ctx, recordID)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if v.Status != identity.VehicleActive {
			continue
		}
		v.Status = identity.VehicleTerminated
		v.MigrationDate = &now
		v.MigrationReason = "terminated"
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// decommissionOutgoing disables the outgoing account and retires its
// records and vehicles. Returns the person's display name.
func (s *Service) decommissionOutgoing(ctx context.Context, req *models.Request, outgoing *identity.User, now time.Time) (string, error) {
	resident, _ := s.identity.FindResidentByUserID(ctx, outgoing.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, outgoing.ID)
	name := personFromRecords(resident, owner).fullName()

	if resident != nil {
		if err := s.retireResidentRecord(ctx, resident, req, now); err != nil {
			return "", err
		}
	}
	if owner != nil {
		if err := s.retireOwnerRecord(ctx, owner, req, now); err != nil {
			return "", err
		}
	}

	outgoing.Status = identity.UserInactive
	outgoing.PasswordHash = secrets.DisabledHash
	outgoing.UpdatedAt = now
	if err := s.identity.UpdateUser(ctx, outgoing); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Service) retireResidentRecord(ctx context.Context, resident *identity.Resident, req *models.Request, now time.Time) error {
	vehicles, err := s.identity.ListVehiclesByResidentID(ctx, resident.ID)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if v.Status != identity.VehicleActive {
			continue
		}
		v.Status = identity.VehicleInactive
		v.MigrationDate = &now
		v.MigrationReason = string(req.RequestType)
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	resident.Status = identity.RecordDeletedProfile
	resident.MigrationDate = &now
	resident.MigrationReason = string(req.RequestType)
	resident.UpdatedAt = now
	return s.identity.UpdateResident(ctx, resident)
}

func (s *Service) retireOwnerRecord(ctx context.Context, owner *identity.Owner, req *models.Request, now time.Time) error {
	vehicles, err := s.identity.ListVehiclesByOwnerID(ctx, owner.ID)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		if v.Status != identity.VehicleActive {
			continue
		}
		v.Status = identity.VehicleInactive
		v.MigrationDate = &now
		v.MigrationReason = string(req.RequestType)
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	owner.Status = identity.RecordDeletedProfile
	owner.MigrationDate = &now
	owner.MigrationReason = string(req.RequestType)
	owner.UpdatedAt = now
	return s.identity.UpdateOwner(ctx, owner)
}

// activateLinkedUser flips a self-registered pending user live, making sure
// the role records required by the declared occupant type exist. Intercom
// codes are set to the placeholder until an admin assigns real ones.
func (s *Service) activateLinkedUser(ctx context.Context, req *models.Request, linked *identity.User, now time.Time) (*identity.User, error) {
	resident, _ := s.identity.FindResidentByUserID(ctx, linked.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, linked.ID)
	person := personFromRecords(resident, owner)
	if person.firstName == "" {
		person.firstName, person.lastName = email.DeriveNameFromEmail(linked.Email)
	}

	targetRole := req.NewOccupantType.Role()
	if targetRole == identity.RoleNone {
		targetRole = identity.ComposeRole(resident != nil, owner != nil)
	}
	wantResident := targetRole == identity.RoleResident || targetRole == identity.RoleOwnerResident
	wantOwner := targetRole == identity.RoleOwner || targetRole == identity.RoleOwnerResident

	if wantResident {
		if resident == nil {
			newRecord := person.resident(linked.ID, req.ErfNumber, now)
			if err := s.identity.CreateResident(ctx, newRecord); err != nil {
				return nil, err
			}
		} else {
			resident.Status = identity.RecordActive
			resident.IntercomCode = identity.IntercomCodePlaceholder
			resident.UpdatedAt = now
			if err := s.identity.UpdateResident(ctx, resident); err != nil {
				return nil, err
			}
		}
	}
	if wantOwner {
		if owner == nil {
			newRecord := person.owner(linked.ID, req.ErfNumber, now)
			if err := s.identity.CreateOwner(ctx, newRecord); err != nil {
				return nil, err
			}
		} else {
			owner.Status = identity.RecordActive
			owner.IntercomCode = identity.IntercomCodePlaceholder
			owner.UpdatedAt = now
			if err := s.identity.UpdateOwner(ctx, owner); err != nil {
				return nil, err
			}
		}
	}

	linked.Status = identity.UserActive
	linked.Role = targetRole
	linked.UpdatedAt = now
	if err := s.identity.UpdateUser(ctx, linked); err != nil {
		return nil, err
	}
	return linked, nil
}

// createIncomingUser builds a brand-new active account from the identity
// data supplied on the request, with a temporary password the person must
// change on first login.
func (s *Service) createIncomingUser(ctx context.Context, req *models.Request, now time.Time, result *migrationResult) (*identity.User, error) {
	if req.NewOccupantEmail == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"complete replacement requires the new occupant's email or a linked registration")
	}
	tempPassword, err := secrets.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(tempPassword)
	if err != nil {
		return nil, err
	}

	targetRole := req.NewOccupantType.Role()
	if targetRole == identity.RoleNone {
		targetRole = identity.RoleResident
	}
	user := &identity.User{
		ID:                    uuid.New(),
		Email:                 req.NewOccupantEmail,
		PasswordHash:          hash,
		Role:                  targetRole,
		Status:                identity.UserActive,
		PasswordResetRequired: true,
		EmailNotifications:    true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.identity.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	firstName, lastName := splitName(req.NewOccupantName)
	if firstName == "" {
		firstName, lastName = email.DeriveNameFromEmail(req.NewOccupantEmail)
	}
	person := personData{
		firstName:   firstName,
		lastName:    lastName,
		idNumber:    req.NewOccupantIDNumber,
		phoneNumber: req.NewOccupantPhone,
	}
	wantResident := targetRole == identity.RoleResident || targetRole == identity.RoleOwnerResident
	wantOwner := targetRole == identity.RoleOwner || targetRole == identity.RoleOwnerResident
	if wantResident {
		if err := s.identity.CreateResident(ctx, person.resident(user.ID, req.ErfNumber, now)); err != nil {
			return nil, err
		}
	}
	if wantOwner {
		if err := s.identity.CreateOwner(ctx, person.owner(user.ID, req.ErfNumber, now)); err != nil {
			return nil, err
		}
	}

	result.notes = append(result.notes, note{
		to:      user.Email,
		subject: "Your Altona Village account",
		body: "An account has been created for you at erf " + req.ErfNumber +
			". Temporary password: " + tempPassword + ". You must change it on first sign-in.",
	})
	return user, nil
}

// createRequestVehicles turns the vehicles declared on the request into
// live vehicle rows under the incoming user's records.
func (s *Service) createRequestVehicles(ctx context.Context, req *models.Request, incoming *identity.User, now time.Time) error {
	declared, err := s.store.ListVehicles(ctx, req.ID)
	if err != nil {
		return err
	}
	if len(declared) == 0 {
		return nil
	}

	resident, _ := s.identity.FindResidentByUserID(ctx, incoming.ID)
	owner, _ := s.identity.FindOwnerByUserID(ctx, incoming.ID)
	for _, d := range declared {
		v := &identity.Vehicle{
			ID:                 uuid.New(),
			RegistrationNumber: d.RegistrationNumber,
			Make:               d.Make,
			Model:              d.Model,
			Color:              d.Color,
			Status:             identity.VehicleActive,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if resident != nil {
			v.ResidentID = &resident.ID
		} else if owner != nil {
			v.OwnerID = &owner.ID
		} else {
			continue
		}
		if err := s.identity.CreateVehicle(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// personData carries the identity fields shared by resident and owner
// records.
type personData struct {
	firstName   string
	lastName    string
	idNumber    string
	phoneNumber string
}

func (p personData) fullName() string {
	return strings.TrimSpace(p.firstName + " " + p.lastName)
}

func (p personData) resident(userID uuid.UUID, erf string, now time.Time) *identity.Resident {
	return &identity.Resident{
		ID:           uuid.New(),
		UserID:       userID,
		FirstName:    p.firstName,
		LastName:     p.lastName,
		IDNumber:     p.idNumber,
		PhoneNumber:  p.phoneNumber,
		ErfNumber:    erf,
		IntercomCode: identity.IntercomCodePlaceholder,
		Status:       identity.RecordActive,
		MovingInDate: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p personData) owner(userID uuid.UUID, erf string, now time.Time) *identity.Owner {
	return &identity.Owner{
		ID:           uuid.New(),
		UserID:       userID,
		FirstName:    p.firstName,
		LastName:     p.lastName,
		IDNumber:     p.idNumber,
		PhoneNumber:  p.phoneNumber,
		ErfNumber:    erf,
		IntercomCode: identity.IntercomCodePlaceholder,
		Status:       identity.RecordActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func personFromRecords(resident *identity.Resident, owner *identity.Owner) personData {
	switch {
	case resident != nil:
		return personData{
			firstName:   resident.FirstName,
			lastName:    resident.LastName,
			idNumber:    resident.IDNumber,
			phoneNumber: resident.PhoneNumber,
		}
	case owner != nil:
		return personData{
			firstName:   owner.FirstName,
			lastName:    owner.LastName,
			idNumber:    owner.IDNumber,
			phoneNumber: owner.PhoneNumber,
		}
	default:
		return personData{}
	}
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
