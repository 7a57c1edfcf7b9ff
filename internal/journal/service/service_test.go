package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	imodels "altona/internal/identity/models"
	istore "altona/internal/identity/store"
	"altona/internal/journal/models"
	"altona/internal/journal/store"
	dErrors "altona/pkg/domain-errors"
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
	s.now = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s.svc = NewService(store.NewMemory(),
		WithIdentityReader(s.identity),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *ServiceSuite) seedResident(userID uuid.UUID, erf string) {
	err := s.identity.CreateUser(s.ctx, &imodels.User{
		ID: userID, Email: "r@example.com", Status: imodels.UserActive, Role: imodels.RoleResident,
	})
	s.Require().NoError(err)
	err = s.identity.CreateResident(s.ctx, &imodels.Resident{
		ID: uuid.New(), UserID: userID, ErfNumber: erf, Status: imodels.RecordActive,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestAppendNormalizesFieldName() {
	userID := uuid.New()
	change, err := s.svc.Append(s.ctx, models.Entry{
		UserID:     userID,
		ChangeType: models.ChangeUserUpdate,
		FieldName:  "phone_number",
		OldValue:   "0800",
		NewValue:   "0811",
		ErfNumber:  "1234",
	})
	s.Require().NoError(err)
	s.Equal(models.FieldCellphoneNumber, change.FieldName)
	s.True(change.Critical())
	s.False(change.AdminReviewed)
	s.Equal(s.now, change.ChangeTimestamp)
}

func (s *ServiceSuite) TestAppendResolvesErfFromResident() {
	userID := uuid.New()
	s.seedResident(userID, "5555")

	change, err := s.svc.Append(s.ctx, models.Entry{
		UserID:     userID,
		ChangeType: models.ChangeUserUpdate,
		FieldName:  "intercom_code",
		NewValue:   "4321",
	})
	s.Require().NoError(err)
	s.Equal("5555", change.ErfNumber)
	s.False(change.Critical())
}

func (s *ServiceSuite) TestAppendRejectsMissingUser() {
	_, err := s.svc.Append(s.ctx, models.Entry{
		ChangeType: models.ChangeUserUpdate,
		FieldName:  "email",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestAllPendingOrdersCriticalFirst() {
	userID := uuid.New()
	_, err := s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeUserUpdate, FieldName: "email",
		ErfNumber: "1", NewValue: "new@example.com",
	})
	s.Require().NoError(err)
	s.now = s.now.Add(time.Minute)
	_, err = s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeUserUpdate, FieldName: "cell",
		ErfNumber: "1", NewValue: "0811",
	})
	s.Require().NoError(err)

	page, err := s.svc.AllPending(s.ctx, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(page.Changes, 2)
	s.Equal(2, page.Total)
	s.Equal(models.FieldCellphoneNumber, page.Changes[0].FieldName)
	s.Equal(models.FieldEmail, page.Changes[1].FieldName)
}

func (s *ServiceSuite) TestMarkReviewedByFieldPicksMostRecent() {
	userID := uuid.New()
	first, err := s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeUserUpdate, FieldName: "phone",
		ErfNumber: "1", OldValue: "0800", NewValue: "0801",
	})
	s.Require().NoError(err)
	s.now = s.now.Add(time.Hour)
	second, err := s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeUserUpdate, FieldName: "phone",
		ErfNumber: "1", OldValue: "0801", NewValue: "0802",
	})
	s.Require().NoError(err)

	err = s.svc.MarkReviewedByField(s.ctx, userID, "phone_number", "admin@estate")
	s.Require().NoError(err)

	page, err := s.svc.CriticalPending(s.ctx, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(page.Changes, 1)
	s.Equal(first.ID, page.Changes[0].ID)
	s.NotEqual(second.ID, page.Changes[0].ID)
}

func (s *ServiceSuite) TestMarkReviewedByFieldNotFound() {
	err := s.svc.MarkReviewedByField(s.ctx, uuid.New(), "email", "admin@estate")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestStats() {
	userID := uuid.New()
	_, err := s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeUserUpdate, FieldName: "cell",
		ErfNumber: "1", NewValue: "0811",
	})
	s.Require().NoError(err)
	_, err = s.svc.Append(s.ctx, models.Entry{
		UserID: userID, ChangeType: models.ChangeAdminUpdate, FieldName: "email",
		ErfNumber: "1", NewValue: "a@b.c",
	})
	s.Require().NoError(err)

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, stats.Today)
	s.Equal(2, stats.LastSevenDays)
	s.Equal(1, stats.CriticalPending)
	s.Equal(1, stats.NonCriticalPending)
	s.Equal(1, stats.ByChangeType[string(models.ChangeUserUpdate)])
	s.Equal(1, stats.ByFieldName[models.FieldCellphoneNumber])
}
