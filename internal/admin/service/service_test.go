package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	identity "altona/internal/identity/models"
	istore "altona/internal/identity/store"
	jservice "altona/internal/journal/service"
	jstore "altona/internal/journal/store"
	tservice "altona/internal/transition/service"
	tstore "altona/internal/transition/store"
	dErrors "altona/pkg/domain-errors"
	txcontext "altona/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *Service
	identity *istore.Memory
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.identity = istore.NewMemory()
	s.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	transitions := tservice.NewService(tstore.NewMemory(), s.identity, txcontext.NopRunner{})
	journal := jservice.NewService(jstore.NewMemory())
	s.svc = NewService(s.identity, transitions, journal, nil)
}

func (s *ServiceSuite) seedUser(email string, status identity.UserStatus, createdAt time.Time) *identity.User {
	u := &identity.User{
		ID:        uuid.New(),
		Email:     email,
		Role:      identity.RolePending,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if status == identity.UserActive {
		u.Role = identity.RoleResident
	}
	s.Require().NoError(s.identity.CreateUser(s.ctx, u))
	return u
}

func (s *ServiceSuite) seedResident(userID uuid.UUID, erf string, status identity.RecordStatus) {
	s.Require().NoError(s.identity.CreateResident(s.ctx, &identity.Resident{
		ID: uuid.New(), UserID: userID, FirstName: "Jan", LastName: "Smit",
		PhoneNumber: "0821110000", ErfNumber: erf, StreetNumber: "12",
		StreetName: "Yellowwood Crescent", Status: status,
		CreatedAt: s.now, UpdatedAt: s.now,
	}))
}

func (s *ServiceSuite) seedOwner(userID uuid.UUID, erf string, status identity.RecordStatus) {
	s.Require().NoError(s.identity.CreateOwner(s.ctx, &identity.Owner{
		ID: uuid.New(), UserID: userID, FirstName: "Piet", LastName: "Botha",
		ErfNumber: erf, Status: status, CreatedAt: s.now, UpdatedAt: s.now,
	}))
}

func (s *ServiceSuite) TestPendingRegistrationsFlattened() {
	older := s.seedUser("jan@example.com", identity.UserPending, s.now.Add(-time.Hour))
	s.seedResident(older.ID, "1234", identity.RecordPending)
	s.seedOwner(older.ID, "1234", identity.RecordPending)

	newer := s.seedUser("piet@example.com", identity.UserPending, s.now)
	s.seedOwner(newer.ID, "5678", identity.RecordPending)

	active := s.seedUser("active@example.com", identity.UserActive, s.now)
	s.seedResident(active.ID, "9", identity.RecordActive)

	pending, err := s.svc.PendingRegistrations(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)

	s.Equal("jan@example.com", pending[0].Email)
	s.True(pending[0].IsResident)
	s.True(pending[0].IsOwner)
	s.Equal("Jan", pending[0].FirstName)
	s.Equal("1234", pending[0].ErfNumber)

	s.Equal("piet@example.com", pending[1].Email)
	s.False(pending[1].IsResident)
	s.True(pending[1].IsOwner)
	s.Equal("Piet", pending[1].FirstName)
}

// flakyIdentityReader fails resident lookups with a transport error while
// delegating everything else to the in-memory store.
type flakyIdentityReader struct {
	*istore.Memory
}

func (f *flakyIdentityReader) FindResidentByUserID(context.Context, uuid.UUID) (*identity.Resident, error) {
	return nil, errors.New("connection reset")
}

func (s *ServiceSuite) TestPendingRegistrationsSurfacesLookupFailure() {
	u := s.seedUser("jan@example.com", identity.UserPending, s.now)
	s.seedResident(u.ID, "1234", identity.RecordPending)

	transitions := tservice.NewService(tstore.NewMemory(), s.identity, txcontext.NopRunner{})
	journal := jservice.NewService(jstore.NewMemory())
	svc := NewService(&flakyIdentityReader{Memory: s.identity}, transitions, journal, nil)

	_, err := svc.PendingRegistrations(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestMessagingGroupsSetAlgebra() {
	tenant := s.seedUser("tenant@example.com", identity.UserActive, s.now)
	s.seedResident(tenant.ID, "1", identity.RecordActive)

	landlord := s.seedUser("landlord@example.com", identity.UserActive, s.now)
	s.seedOwner(landlord.ID, "1", identity.RecordActive)

	both := s.seedUser("both@example.com", identity.UserActive, s.now)
	s.seedResident(both.ID, "2", identity.RecordActive)
	s.seedOwner(both.ID, "2", identity.RecordActive)

	groups, err := s.svc.MessagingGroups(s.ctx)
	s.Require().NoError(err)

	s.Len(groups.ResidentsGroup, 2)
	s.Len(groups.OwnersGroup, 2)
	s.Require().Len(groups.OwnerResidents, 1)
	s.Equal(both.ID, groups.OwnerResidents[0].UserID)
	s.Require().Len(groups.NonResidentOwners, 1)
	s.Equal(landlord.ID, groups.NonResidentOwners[0].UserID)
	s.Equal("landlord@example.com", groups.NonResidentOwners[0].Email)
}

func (s *ServiceSuite) TestDashboardBundlesStats() {
	stats, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(stats.Transitions)
	s.Require().NotNil(stats.Journal)
}
