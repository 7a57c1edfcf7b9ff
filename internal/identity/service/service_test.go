package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"altona/internal/identity/models"
	"altona/internal/identity/store"
	jmodels "altona/internal/journal/models"
	dErrors "altona/pkg/domain-errors"
)

type captureRecorder struct {
	entries []jmodels.Entry
}

func (r *captureRecorder) Record(_ context.Context, e jmodels.Entry) {
	r.entries = append(r.entries, e)
}

func (r *captureRecorder) fields() []string {
	var out []string
	for _, e := range r.entries {
		out = append(out, e.FieldName)
	}
	return out
}

type captureNotifier struct {
	subjects []string
}

func (n *captureNotifier) Send(_ context.Context, _, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return nil
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *Service
	store    *store.Memory
	recorder *captureRecorder
	notifier *captureNotifier
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.recorder = &captureRecorder{}
	s.notifier = &captureNotifier{}
	s.svc = NewService(s.store,
		WithRecorder(s.recorder),
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }),
	)
}

func (s *ServiceSuite) register(email string, isResident, isOwner bool, erf string) *Registration {
	reg, err := s.svc.Register(s.ctx, RegisterInput{
		Email:        email,
		Password:     "hunter2hunter2",
		FirstName:    "Jan",
		LastName:     "Smit",
		PhoneNumber:  "0821110000",
		ErfNumber:    erf,
		StreetNumber: "12",
		StreetName:   "Yellowwood Crescent",
		IsResident:   isResident,
		IsOwner:      isOwner,
	})
	s.Require().NoError(err)
	return reg
}

func (s *ServiceSuite) TestRegisterCreatesPendingUserWithRoleRecords() {
	reg := s.register("jan@example.com", true, true, "1234")

	s.Equal(models.UserPending, reg.User.Status)
	s.Equal(models.RolePending, reg.User.Role)
	s.Require().NotNil(reg.Resident)
	s.Require().NotNil(reg.Owner)
	s.Equal("1234", reg.Resident.ErfNumber)
	s.Equal(models.RecordPending, reg.Resident.Status)
	s.NotEqual("hunter2hunter2", reg.User.PasswordHash)
}

func (s *ServiceSuite) TestRegisterAllowsDuplicateEmail() {
	s.register("jan@example.com", true, false, "1234")
	second := s.register("jan@example.com", false, true, "5678")

	users, err := s.store.FindUsersByEmail(s.ctx, "jan@example.com")
	s.Require().NoError(err)
	s.Len(users, 2)
	s.Equal("5678", second.Owner.ErfNumber)
}

func (s *ServiceSuite) TestRegisterRequiresARole() {
	_, err := s.svc.Register(s.ctx, RegisterInput{
		Email: "x@example.com", Password: "pw", FirstName: "A", LastName: "B", ErfNumber: "1",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestApproveComposesRole() {
	reg := s.register("jan@example.com", true, true, "1234")

	user, err := s.svc.Approve(s.ctx, reg.User.ID)
	s.Require().NoError(err)
	s.Equal(models.UserActive, user.Status)
	s.Equal(models.RoleOwnerResident, user.Role)
	s.Equal([]string{"Registration approved"}, s.notifier.subjects)

	resident, err := s.store.FindResidentByUserID(s.ctx, reg.User.ID)
	s.Require().NoError(err)
	s.Equal(models.RecordActive, resident.Status)

	_, err = s.svc.Approve(s.ctx, reg.User.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRejectDeletesUserAndDependents() {
	reg := s.register("jan@example.com", true, false, "1234")
	_, err := s.svc.AddVehicle(s.ctx, reg.User.ID, reg.User.ID, false, VehicleInput{
		RegistrationNumber: "abc123gp",
	})
	s.Require().NoError(err)

	err = s.svc.Reject(s.ctx, reg.User.ID, "unverifiable erf")
	s.Require().NoError(err)
	s.Equal([]string{"Registration rejected"}, s.notifier.subjects)

	_, err = s.store.FindUserByID(s.ctx, reg.User.ID)
	s.Error(err)
	vehicles, err := s.store.ListActiveVehicles(s.ctx)
	s.Require().NoError(err)
	s.Empty(vehicles)
}

func (s *ServiceSuite) TestUpdateProfileJournalsTrackedFields() {
	reg := s.register("jan@example.com", true, false, "1234")
	newPhone := "0829998888"
	newIntercom := "4321"
	newContact := "Piet Smit"

	_, err := s.svc.UpdateProfile(s.ctx, reg.User.ID, UpdateInput{
		PhoneNumber:          &newPhone,
		IntercomCode:         &newIntercom,
		EmergencyContactName: &newContact,
	})
	s.Require().NoError(err)

	s.ElementsMatch([]string{jmodels.FieldCellphoneNumber, jmodels.FieldIntercomCode}, s.recorder.fields())
	for _, e := range s.recorder.entries {
		s.Equal(jmodels.ChangeUserUpdate, e.ChangeType)
		s.Equal("1234", e.ErfNumber)
	}
}

func (s *ServiceSuite) TestAdminUpdateUsesAdminChangeType() {
	reg := s.register("jan@example.com", true, false, "1234")
	newPhone := "0820001111"

	_, err := s.svc.AdminUpdate(s.ctx, reg.User.ID, UpdateInput{PhoneNumber: &newPhone})
	s.Require().NoError(err)
	s.Require().Len(s.recorder.entries, 1)
	s.Equal(jmodels.ChangeAdminUpdate, s.recorder.entries[0].ChangeType)
	s.Equal("0821110000", s.recorder.entries[0].OldValue)
	s.Equal(newPhone, s.recorder.entries[0].NewValue)
}

func (s *ServiceSuite) TestUpdateProfileNoChangesNoJournal() {
	reg := s.register("jan@example.com", true, false, "1234")
	samePhone := "0821110000"

	_, err := s.svc.UpdateProfile(s.ctx, reg.User.ID, UpdateInput{PhoneNumber: &samePhone})
	s.Require().NoError(err)
	s.Empty(s.recorder.entries)
}

func (s *ServiceSuite) TestAddVehicleIsCriticalJournalled() {
	reg := s.register("jan@example.com", true, false, "1234")

	vehicle, err := s.svc.AddVehicle(s.ctx, reg.User.ID, reg.User.ID, false, VehicleInput{
		RegistrationNumber: "abc123gp", Make: "Toyota", Model: "Hilux", Color: "White",
	})
	s.Require().NoError(err)
	s.Equal("ABC123GP", vehicle.RegistrationNumber)
	s.Require().NotNil(vehicle.ResidentID)
	s.Nil(vehicle.OwnerID)

	s.Require().Len(s.recorder.entries, 1)
	entry := s.recorder.entries[0]
	s.Equal(jmodels.ChangeUserAdd, entry.ChangeType)
	s.Equal(jmodels.FieldVehicleRegistration, entry.FieldName)
	s.True(jmodels.IsCriticalChange(entry.ChangeType, entry.FieldName))
}

func (s *ServiceSuite) TestAddVehicleDuplicateRegistrationConflicts() {
	reg := s.register("jan@example.com", true, false, "1234")
	other := s.register("piet@example.com", true, false, "5678")

	_, err := s.svc.AddVehicle(s.ctx, reg.User.ID, reg.User.ID, false, VehicleInput{RegistrationNumber: "ABC123GP"})
	s.Require().NoError(err)
	_, err = s.svc.AddVehicle(s.ctx, other.User.ID, other.User.ID, false, VehicleInput{RegistrationNumber: "abc123gp"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestAddVehicleForbiddenForOtherUser() {
	reg := s.register("jan@example.com", true, false, "1234")
	other := s.register("piet@example.com", true, false, "5678")

	_, err := s.svc.AddVehicle(s.ctx, other.User.ID, reg.User.ID, false, VehicleInput{RegistrationNumber: "XYZ999GP"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Admin may add on behalf of anyone; journalled as admin_add.
	_, err = s.svc.AddVehicle(s.ctx, other.User.ID, reg.User.ID, true, VehicleInput{RegistrationNumber: "XYZ999GP"})
	s.Require().NoError(err)
	s.Equal(jmodels.ChangeAdminAdd, s.recorder.entries[len(s.recorder.entries)-1].ChangeType)
}

func (s *ServiceSuite) TestUpdateVehicleJournalsPerField() {
	reg := s.register("jan@example.com", true, false, "1234")
	vehicle, err := s.svc.AddVehicle(s.ctx, reg.User.ID, reg.User.ID, false, VehicleInput{
		RegistrationNumber: "ABC123GP", Make: "Toyota", Color: "White",
	})
	s.Require().NoError(err)
	s.recorder.entries = nil

	_, err = s.svc.UpdateVehicle(s.ctx, reg.User.ID, vehicle.ID, false, VehicleInput{
		Make: "Ford", Color: "Blue",
	})
	s.Require().NoError(err)
	s.ElementsMatch([]string{jmodels.FieldVehicleMake, jmodels.FieldVehicleColor}, s.recorder.fields())
}

func (s *ServiceSuite) TestLogin() {
	reg := s.register("jan@example.com", true, false, "1234")

	issuer := stubIssuer{}
	_, err := s.svc.Login(s.ctx, issuer, "jan@example.com", "hunter2hunter2", "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "pending accounts cannot sign in")

	_, err = s.svc.Approve(s.ctx, reg.User.ID)
	s.Require().NoError(err)

	session, err := s.svc.Login(s.ctx, issuer, "jan@example.com", "hunter2hunter2", "")
	s.Require().NoError(err)
	s.Equal(reg.User.ID, session.UserID)
	s.Equal(models.RoleResident, session.Role)

	_, err = s.svc.Login(s.ctx, issuer, "jan@example.com", "wrong", "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLoginErfHintDisambiguates() {
	first := s.register("jan@example.com", true, false, "1234")
	second := s.register("jan@example.com", false, true, "5678")
	_, err := s.svc.Approve(s.ctx, first.User.ID)
	s.Require().NoError(err)
	_, err = s.svc.Approve(s.ctx, second.User.ID)
	s.Require().NoError(err)

	session, err := s.svc.Login(s.ctx, stubIssuer{}, "jan@example.com", "hunter2hunter2", "5678")
	s.Require().NoError(err)
	s.Equal(second.User.ID, session.UserID)
}

type stubIssuer struct{}

func (stubIssuer) Issue(string, bool) (string, time.Time, error) {
	return "token", time.Now().Add(time.Hour), nil
}

func (s *ServiceSuite) TestChangePassword() {
	reg := s.register("jan@example.com", true, false, "1234")

	err := s.svc.ChangePassword(s.ctx, reg.User.ID, "wrong", "newpassword99")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	err = s.svc.ChangePassword(s.ctx, reg.User.ID, "hunter2hunter2", "newpassword99")
	s.Require().NoError(err)

	user, err := s.store.FindUserByID(s.ctx, reg.User.ID)
	s.Require().NoError(err)
	s.False(user.PasswordResetRequired)
}

func (s *ServiceSuite) TestGetProfileNotFound() {
	_, err := s.svc.GetProfile(s.ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
