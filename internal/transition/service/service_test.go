package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	identity "altona/internal/identity/models"
	istore "altona/internal/identity/store"
	jmodels "altona/internal/journal/models"
	"altona/internal/transition/models"
	"altona/internal/transition/store"
	dErrors "altona/pkg/domain-errors"
	txcontext "altona/pkg/platform/tx"
	"altona/pkg/secrets"
)

type captureRecorder struct {
	entries []jmodels.Entry
}

func (r *captureRecorder) Record(_ context.Context, e jmodels.Entry) {
	r.entries = append(r.entries, e)
}

type captureNotifier struct {
	bodies []string
}

func (n *captureNotifier) Send(_ context.Context, _, _, body string) error {
	n.bodies = append(n.bodies, body)
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *Service
	store    *store.Memory
	identity *istore.Memory
	recorder *captureRecorder
	notifier *captureNotifier
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.identity = istore.NewMemory()
	s.recorder = &captureRecorder{}
	s.notifier = &captureNotifier{}
	s.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	s.svc = NewService(s.store, s.identity, txcontext.NopRunner{},
		WithRecorder(s.recorder),
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) seedUser(email string, role identity.Role, status identity.UserStatus) *identity.User {
	u := &identity.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "$2a$10$existinghash",
		Role:         role,
		Status:       status,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.identity.CreateUser(s.ctx, u))
	return u
}

func (s *ServiceSuite) seedResident(userID uuid.UUID, erf string, status identity.RecordStatus) *identity.Resident {
	r := &identity.Resident{
		ID:           uuid.New(),
		UserID:       userID,
		FirstName:    "Jan",
		LastName:     "Smit",
		PhoneNumber:  "0821110000",
		ErfNumber:    erf,
		IntercomCode: "4321",
		Status:       status,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.identity.CreateResident(s.ctx, r))
	return r
}

func (s *ServiceSuite) seedOwner(userID uuid.UUID, erf string, status identity.RecordStatus) *identity.Owner {
	o := &identity.Owner{
		ID:        uuid.New(),
		UserID:    userID,
		FirstName: "Jan",
		LastName:  "Smit",
		ErfNumber: erf,
		Status:    status,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.identity.CreateOwner(s.ctx, o))
	return o
}

func (s *ServiceSuite) seedVehicle(residentID uuid.UUID, registration string) *identity.Vehicle {
	v := &identity.Vehicle{
		ID:                 uuid.New(),
		ResidentID:         &residentID,
		RegistrationNumber: registration,
		Make:               "Toyota",
		Status:             identity.VehicleActive,
		CreatedAt:          s.now,
		UpdatedAt:          s.now,
	}
	s.Require().NoError(s.identity.CreateVehicle(s.ctx, v))
	return v
}

// drive walks the request through the admin lifecycle to the given status.
func (s *ServiceSuite) drive(id uuid.UUID, target models.RequestStatus) *models.Request {
	path := []models.RequestStatus{
		models.StatusInProgress,
		models.StatusAwaitingDocs,
		models.StatusReadyForTransition,
		models.StatusCompleted,
	}
	var req *models.Request
	var err error
	for _, next := range path {
		req, err = s.svc.UpdateStatus(s.ctx, id, next, "admin@estate", "")
		s.Require().NoError(err)
		if next == target {
			break
		}
	}
	return req
}

func (s *ServiceSuite) TestCreateDerivesErfRoleAndPriority() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	moveout := s.now.Add(10 * 24 * time.Hour)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{
		NewOccupantType:     models.OccupantResident,
		IntendedMoveoutDate: &moveout,
		Vehicles:            []models.Vehicle{{RegistrationNumber: "cj 123 gp"}},
	})
	s.Require().NoError(err)
	s.Equal("1234", req.ErfNumber)
	s.Equal(identity.RoleResident, req.CurrentRole)
	s.Equal(models.StatusPendingReview, req.Status)
	s.Equal(models.PriorityUrgent, req.Priority)

	vehicles, err := s.store.ListVehicles(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(vehicles, 1)
	s.Equal("CJ 123 GP", vehicles[0].RegistrationNumber)
}

func (s *ServiceSuite) TestCreateWithoutRoleRecordsFails() {
	u := s.seedUser("nobody@example.com", identity.RoleNone, identity.UserActive)
	_, err := s.svc.Create(s.ctx, u.ID, CreateInput{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStatusCannotSkipStates() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantTerminated})
	s.Require().NoError(err)

	_, err = s.svc.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidRoleTransition))
}

func (s *ServiceSuite) TestRoleChangeKeepsAccountAndAddsRecord() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{
		RequestType:      models.RequestSale,
		NewOccupantType:  models.OccupantOwnerResident,
		NewOccupantEmail: "jan@example.com",
	})
	s.Require().NoError(err)
	completed := s.drive(req.ID, models.StatusCompleted)

	s.True(completed.MigrationCompleted)
	s.Require().NotNil(completed.NewUserID)
	s.Equal(u.ID, *completed.NewUserID)

	after, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserActive, after.Status)
	s.Equal(identity.RoleOwnerResident, after.Role)
	s.Equal("$2a$10$existinghash", after.PasswordHash)

	owner, err := s.identity.FindOwnerByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordActive, owner.Status)
	s.Equal(identity.IntercomCodePlaceholder, owner.IntercomCode)

	s.Require().Len(s.recorder.entries, 1)
	s.Equal(jmodels.ChangeTransitionRoleChange, s.recorder.entries[0].ChangeType)
	s.Equal(string(identity.RoleResident), s.recorder.entries[0].OldValue)
	s.Equal(string(identity.RoleOwnerResident), s.recorder.entries[0].NewValue)
}

func (s *ServiceSuite) TestCompleteReplacementCreatesIncomingUser() {
	u := s.seedUser("old@example.com", identity.RoleResident, identity.UserActive)
	res := s.seedResident(u.ID, "1234", identity.RecordActive)
	s.seedVehicle(res.ID, "CJ 123 GP")

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{
		RequestType:      models.RequestSale,
		NewOccupantType:  models.OccupantResident,
		NewOccupantName:  "Piet Botha",
		NewOccupantEmail: "piet@example.com",
		Vehicles:         []models.Vehicle{{RegistrationNumber: "ND 987 ZN"}},
	})
	s.Require().NoError(err)
	completed := s.drive(req.ID, models.StatusCompleted)
	s.True(completed.MigrationCompleted)
	s.Require().NotNil(completed.NewUserID)

	old, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserInactive, old.Status)
	s.Equal(secrets.DisabledHash, old.PasswordHash)

	oldRes, err := s.identity.FindResidentByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordDeletedProfile, oldRes.Status)

	oldVehicles, err := s.identity.ListVehiclesByResidentID(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Require().Len(oldVehicles, 1)
	s.Equal(identity.VehicleInactive, oldVehicles[0].Status)

	incoming, err := s.identity.FindUserByID(s.ctx, *completed.NewUserID)
	s.Require().NoError(err)
	s.Equal("piet@example.com", incoming.Email)
	s.Equal(identity.UserActive, incoming.Status)
	s.True(incoming.PasswordResetRequired)

	newRes, err := s.identity.FindResidentByUserID(s.ctx, incoming.ID)
	s.Require().NoError(err)
	s.Equal("Piet", newRes.FirstName)
	s.Equal("Botha", newRes.LastName)
	s.Equal(identity.IntercomCodePlaceholder, newRes.IntercomCode)

	newVehicles, err := s.identity.ListVehiclesByResidentID(s.ctx, newRes.ID)
	s.Require().NoError(err)
	s.Require().Len(newVehicles, 1)
	s.Equal("ND 987 ZN", newVehicles[0].RegistrationNumber)
	s.Equal(identity.VehicleActive, newVehicles[0].Status)

	s.Require().Len(s.notifier.bodies, 1)
	s.Contains(s.notifier.bodies[0], "Temporary password")
}

func (s *ServiceSuite) TestPrivacyRequestCannotCompleteUnlinked() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)
	s.True(req.PrivacyCompliant())
	s.drive(req.ID, models.StatusReadyForTransition)

	_, err = s.svc.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.True(dErrors.HasCode(err, dErrors.CodePrivacyPolicyViolation))
}

func (s *ServiceSuite) TestLinkRunsMigrationAndCompletionIsIdempotent() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)

	newcomer := s.seedUser("piet@example.com", identity.RolePending, identity.UserPending)
	s.seedResident(newcomer.ID, "1234", identity.RecordPending)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)
	s.drive(req.ID, models.StatusReadyForTransition)

	linked, err := s.svc.Link(s.ctx, req.ID, newcomer.ID, "admin@estate")
	s.Require().NoError(err)
	s.True(linked.MigrationCompleted)
	s.Require().NotNil(linked.NewUserID)
	s.Equal(newcomer.ID, *linked.NewUserID)

	activated, err := s.identity.FindUserByID(s.ctx, newcomer.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserActive, activated.Status)
	s.Equal(identity.RoleResident, activated.Role)

	newRes, err := s.identity.FindResidentByUserID(s.ctx, newcomer.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordActive, newRes.Status)
	s.Equal(identity.IntercomCodePlaceholder, newRes.IntercomCode)

	old, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserInactive, old.Status)

	// Completing after the link finalizes; completing again is a no-op.
	first, err := s.svc.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, first.Status)
	again, err := s.svc.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.Require().NoError(err)
	s.Equal(first.CompletionDate, again.CompletionDate)
}

func (s *ServiceSuite) TestLinkRejectsErfMismatch() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	newcomer := s.seedUser("piet@example.com", identity.RolePending, identity.UserPending)
	s.seedResident(newcomer.ID, "9999", identity.RecordPending)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)

	_, err = s.svc.Link(s.ctx, req.ID, newcomer.ID, "admin@estate")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.True(strings.Contains(err.Error(), "erf_mismatch"))
}

func (s *ServiceSuite) TestLinkRejectsNonPendingUser() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	other := s.seedUser("piet@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(other.ID, "1234", identity.RecordActive)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)

	_, err = s.svc.Link(s.ctx, req.ID, other.ID, "admin@estate")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestTerminationRetiresEverything() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	res := s.seedResident(u.ID, "1234", identity.RecordActive)
	s.seedVehicle(res.ID, "CJ 123 GP")

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{
		RequestType:     models.RequestExit,
		NewOccupantType: models.OccupantTerminated,
	})
	s.Require().NoError(err)
	completed := s.drive(req.ID, models.StatusCompleted)
	s.True(completed.MigrationCompleted)
	s.Nil(completed.NewUserID)

	after, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserInactive, after.Status)

	afterRes, err := s.identity.FindResidentByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordInactive, afterRes.Status)

	vehicles, err := s.identity.ListVehiclesByResidentID(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Require().Len(vehicles, 1)
	s.Equal(identity.VehicleTerminated, vehicles[0].Status)

	s.Require().Len(s.recorder.entries, 1)
	s.Equal(jmodels.ChangeTransitionTermination, s.recorder.entries[0].ChangeType)
	s.Equal(jmodels.FieldUserStatus, s.recorder.entries[0].FieldName)
}

func (s *ServiceSuite) TestPartialReplacementSplitsRoles() {
	u := s.seedUser("jan@example.com", identity.RoleOwnerResident, identity.UserActive)
	res := s.seedResident(u.ID, "1234", identity.RecordActive)
	s.seedOwner(u.ID, "1234", identity.RecordActive)
	s.seedVehicle(res.ID, "CJ 123 GP")

	newcomer := s.seedUser("piet@example.com", identity.RolePending, identity.UserPending)
	s.seedResident(newcomer.ID, "1234", identity.RecordPending)

	// Owner stays on as landlord, a new tenant moves in.
	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)
	s.drive(req.ID, models.StatusReadyForTransition)

	linked, err := s.svc.Link(s.ctx, req.ID, newcomer.ID, "admin@estate")
	s.Require().NoError(err)
	s.True(linked.MigrationCompleted)

	outgoing, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserActive, outgoing.Status)
	s.Equal(identity.RoleOwner, outgoing.Role)

	oldRes, err := s.identity.FindResidentByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordDeletedProfile, oldRes.Status)

	owner, err := s.identity.FindOwnerByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordActive, owner.Status)

	vehicles, err := s.identity.ListVehiclesByResidentID(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Require().Len(vehicles, 1)
	s.Equal(identity.VehicleInactive, vehicles[0].Status)

	incoming, err := s.identity.FindUserByID(s.ctx, newcomer.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserActive, incoming.Status)
	s.Equal(identity.RoleResident, incoming.Role)
}

// failOnCompleteStore rejects the request write that carries the completed
// status, simulating a crash at the final write of the completion
// transaction.
type failOnCompleteStore struct {
	*store.Memory
}

func (f *failOnCompleteStore) UpdateRequest(ctx context.Context, r *models.Request) error {
	if r.Status == models.StatusCompleted {
		return errors.New("connection reset")
	}
	return f.Memory.UpdateRequest(ctx, r)
}

func (s *ServiceSuite) TestCompletionWritesMigrationAndStatusTogether() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{
		RequestType:     models.RequestExit,
		NewOccupantType: models.OccupantTerminated,
	})
	s.Require().NoError(err)
	s.drive(req.ID, models.StatusReadyForTransition)

	failing := NewService(&failOnCompleteStore{Memory: s.store}, s.identity, txcontext.NopRunner{},
		WithClock(func() time.Time { return s.now }))
	_, err = failing.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.Require().Error(err)

	// The failed completion must not leave a committed migration on a
	// request that is still in a pre-completion status.
	stored, err := s.store.FindRequestByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.False(stored.MigrationCompleted)
	s.Equal(models.StatusReadyForTransition, stored.Status)
	s.Nil(stored.CompletionDate)

	// Retrying against a healthy store lands every completion field at once.
	completed, err := s.svc.UpdateStatus(s.ctx, req.ID, models.StatusCompleted, "admin@estate", "")
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, completed.Status)
	s.True(completed.MigrationCompleted)
	s.Require().NotNil(completed.MigrationDate)
	s.Require().NotNil(completed.CompletionDate)
}

// flakyIdentityStore fails role-record lookups with a transport error while
// delegating everything else to the in-memory store.
type flakyIdentityStore struct {
	*istore.Memory
}

func (f *flakyIdentityStore) FindResidentByUserID(context.Context, uuid.UUID) (*identity.Resident, error) {
	return nil, errors.New("connection reset")
}

func (s *ServiceSuite) TestCreateSurfacesRoleLookupFailure() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)

	svc := NewService(s.store, &flakyIdentityStore{Memory: s.identity}, txcontext.NopRunner{},
		WithClock(func() time.Time { return s.now }))
	_, err := svc.Create(s.ctx, u.ID, CreateInput{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLinkSurfacesErfLookupFailure() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	newcomer := s.seedUser("piet@example.com", identity.RolePending, identity.UserPending)
	s.seedResident(newcomer.ID, "1234", identity.RecordPending)

	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantResident})
	s.Require().NoError(err)

	svc := NewService(s.store, &flakyIdentityStore{Memory: s.identity}, txcontext.NopRunner{},
		WithClock(func() time.Time { return s.now }))
	_, err = svc.Link(s.ctx, req.ID, newcomer.ID, "admin@estate")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.False(strings.Contains(err.Error(), "erf_mismatch"))
}

func (s *ServiceSuite) TestAssignAndCommentOnClosedRequest() {
	u := s.seedUser("jan@example.com", identity.RoleResident, identity.UserActive)
	s.seedResident(u.ID, "1234", identity.RecordActive)
	req, err := s.svc.Create(s.ctx, u.ID, CreateInput{NewOccupantType: models.OccupantTerminated, RequestType: models.RequestExit})
	s.Require().NoError(err)
	s.drive(req.ID, models.StatusCompleted)

	_, err = s.svc.Assign(s.ctx, req.ID, "admin@estate")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.NoError(s.svc.Comment(s.ctx, req.ID, "admin@estate", "closing note"))
}
