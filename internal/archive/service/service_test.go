package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"altona/internal/archive/models"
	"altona/internal/archive/store"
	identity "altona/internal/identity/models"
	istore "altona/internal/identity/store"
	tstore "altona/internal/transition/store"
	dErrors "altona/pkg/domain-errors"
	txcontext "altona/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	svc         *Service
	store       *store.Memory
	identity    *istore.Memory
	transitions *tstore.Memory
	now         time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.identity = istore.NewMemory()
	s.transitions = tstore.NewMemory()
	s.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	s.svc = NewService(s.store, s.identity, s.transitions, txcontext.NopRunner{},
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) seedUser(email string, role identity.Role) *identity.User {
	u := &identity.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Status:       identity.UserActive,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.identity.CreateUser(s.ctx, u))
	return u
}

func (s *ServiceSuite) seedResident(userID uuid.UUID, erf string) *identity.Resident {
	r := &identity.Resident{
		ID:           uuid.New(),
		UserID:       userID,
		FirstName:    "Jan",
		LastName:     "Smit",
		PhoneNumber:  "0821110000",
		ErfNumber:    erf,
		IntercomCode: "4321",
		Status:       identity.RecordActive,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.identity.CreateResident(s.ctx, r))
	return r
}

func (s *ServiceSuite) seedOwner(userID uuid.UUID, erf string) *identity.Owner {
	o := &identity.Owner{
		ID:              uuid.New(),
		UserID:          userID,
		FirstName:       "Jan",
		LastName:        "Smit",
		PhoneNumber:     "0821110000",
		ErfNumber:       erf,
		TitleDeedNumber: "T1234/2019",
		PostalAddress:   identity.PostalAddress{Street: "PO Box 5", City: "Cape Town"},
		Status:          identity.RecordActive,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.identity.CreateOwner(s.ctx, o))
	return o
}

func (s *ServiceSuite) seedVehicle(residentID uuid.UUID, registration string) *identity.Vehicle {
	v := &identity.Vehicle{
		ID:                 uuid.New(),
		ResidentID:         &residentID,
		RegistrationNumber: registration,
		Status:             identity.VehicleActive,
		CreatedAt:          s.now,
		UpdatedAt:          s.now,
	}
	s.Require().NoError(s.identity.CreateVehicle(s.ctx, v))
	return v
}

func (s *ServiceSuite) TestTenantOnlyIsDeletedWithSnapshot() {
	u := s.seedUser("jan@example.com", identity.RoleResident)
	res := s.seedResident(u.ID, "1234")
	s.seedVehicle(res.ID, "CJ 123 GP")
	s.store.AddComplaint(&models.Complaint{
		ID: uuid.New(), UserID: u.ID, Subject: "noise", Status: "open", CreatedAt: s.now,
	})

	archive, err := s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{Reason: "moved out", Actor: "admin@estate"})
	s.Require().NoError(err)
	s.Equal(models.TenantOnly, archive.UserType)
	s.Nil(archive.RetentionUntil)

	var snap snapshot
	s.Require().NoError(json.Unmarshal(archive.ArchiveData, &snap))
	s.Equal("jan@example.com", snap.User.Email)
	s.Require().NotNil(snap.Resident)
	s.Len(snap.Vehicles, 1)
	s.Len(snap.Complaints, 1)

	_, err = s.identity.FindUserByID(s.ctx, u.ID)
	s.Error(err)
	_, err = s.identity.FindResidentByUserID(s.ctx, u.ID)
	s.Error(err)
	complaints, err := s.store.ListComplaintsByUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Empty(complaints)

	log, err := s.svc.DeletionLog(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(log, 1)
	s.Equal(u.ID, log[0].UserID)
	s.Equal("moved out", log[0].DeletionReason)
}

func (s *ServiceSuite) TestOwnerOnlyIsArchivedWithRetention() {
	u := s.seedUser("owner@example.com", identity.RoleOwner)
	s.seedOwner(u.ID, "1234")

	archive, err := s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{Reason: "left estate", Actor: "admin@estate"})
	s.Require().NoError(err)
	s.Equal(models.OwnerOnly, archive.UserType)
	s.Require().NotNil(archive.RetentionUntil)
	s.True(archive.RetentionUntil.After(s.now.Add(700 * 24 * time.Hour)))

	after, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserArchived, after.Status)
	s.True(after.Archived)

	owner, err := s.identity.FindOwnerByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordArchived, owner.Status)
	s.Equal("1234", owner.ErfNumber)
	s.Equal("T1234/2019", owner.TitleDeedNumber)
	s.Empty(owner.PhoneNumber)
	s.Empty(owner.PostalAddress.Street)
}

func (s *ServiceSuite) TestOwnerResidentSoldIsDeleted() {
	u := s.seedUser("both@example.com", identity.RoleOwnerResident)
	s.seedResident(u.ID, "1234")
	s.seedOwner(u.ID, "1234")

	archive, err := s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{
		Reason: "sold", Actor: "admin@estate", PropertySold: true,
	})
	s.Require().NoError(err)
	s.Equal(models.OwnerResidentSold, archive.UserType)

	_, err = s.identity.FindUserByID(s.ctx, u.ID)
	s.Error(err)
	_, err = s.identity.FindOwnerByUserID(s.ctx, u.ID)
	s.Error(err)
}

func (s *ServiceSuite) TestOwnerResidentRetainingKeepsOwnership() {
	u := s.seedUser("both@example.com", identity.RoleOwnerResident)
	res := s.seedResident(u.ID, "1234")
	s.seedOwner(u.ID, "1234")
	s.seedVehicle(res.ID, "CJ 123 GP")

	archive, err := s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{Reason: "moved out", Actor: "admin@estate"})
	s.Require().NoError(err)
	s.Equal(models.OwnerResidentRetains, archive.UserType)

	after, err := s.identity.FindUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.UserActive, after.Status)
	s.Equal(identity.RoleOwner, after.Role)

	resident, err := s.identity.FindResidentByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordArchived, resident.Status)
	s.Empty(resident.PhoneNumber)
	s.Empty(resident.IntercomCode)

	owner, err := s.identity.FindOwnerByUserID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(identity.RecordActive, owner.Status)

	vehicles, err := s.identity.ListVehiclesByResidentID(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Require().Len(vehicles, 1)
	s.Equal(identity.VehicleOwnerAccessOnly, vehicles[0].Status)
}

func (s *ServiceSuite) TestArchiveUnknownUser() {
	_, err := s.svc.ArchiveUser(s.ctx, uuid.New(), ArchiveInput{Reason: "x", Actor: "admin@estate"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestArchiveTwiceConflicts() {
	u := s.seedUser("owner@example.com", identity.RoleOwner)
	s.seedOwner(u.ID, "1234")
	_, err := s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{Reason: "left", Actor: "admin@estate"})
	s.Require().NoError(err)

	_, err = s.svc.ArchiveUser(s.ctx, u.ID, ArchiveInput{Reason: "left", Actor: "admin@estate"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestPurgeExpiredRemovesOnlyPastRetention() {
	past := s.now.Add(-time.Hour)
	future := s.now.Add(time.Hour)
	expired := &models.Archive{
		ID: uuid.New(), UserID: uuid.New(), UserType: models.OwnerOnly,
		ArchiveData: json.RawMessage(`{}`), RetentionUntil: &past, CreatedAt: s.now,
	}
	kept := &models.Archive{
		ID: uuid.New(), UserID: uuid.New(), UserType: models.OwnerOnly,
		ArchiveData: json.RawMessage(`{}`), RetentionUntil: &future, CreatedAt: s.now,
	}
	forever := &models.Archive{
		ID: uuid.New(), UserID: uuid.New(), UserType: models.TenantOnly,
		ArchiveData: json.RawMessage(`{}`), CreatedAt: s.now,
	}
	s.Require().NoError(s.store.InsertArchive(s.ctx, expired))
	s.Require().NoError(s.store.InsertArchive(s.ctx, kept))
	s.Require().NoError(s.store.InsertArchive(s.ctx, forever))

	purged, err := s.svc.PurgeExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, purged)

	remaining, err := s.svc.ListArchives(s.ctx)
	s.Require().NoError(err)
	s.Len(remaining, 2)
}
