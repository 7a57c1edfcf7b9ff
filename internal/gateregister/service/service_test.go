package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"altona/internal/gateregister/models"
	identity "altona/internal/identity/models"
	istore "altona/internal/identity/store"
	jmodels "altona/internal/journal/models"
	jservice "altona/internal/journal/service"
	jstore "altona/internal/journal/store"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *Service
	identity *istore.Memory
	journal  *jservice.Service
	jstore   *jstore.Memory
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.identity = istore.NewMemory()
	s.jstore = jstore.NewMemory()
	s.journal = jservice.NewService(s.jstore, jservice.WithIdentityReader(s.identity))
	s.now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	s.svc = NewService(s.identity, s.journal,
		WithClock(func() time.Time { return s.now }),
	)
}

type seedOpts struct {
	surname      string
	erf          string
	streetNumber string
	streetName   string
	intercom     string
	owner        bool
	resident     bool
}

func (s *ServiceSuite) seed(o seedOpts) (userID uuid.UUID, residentID uuid.UUID) {
	u := &identity.User{
		ID:     uuid.New(),
		Email:  strings.ToLower(o.surname) + "@example.com",
		Role:   identity.RoleResident,
		Status: identity.UserActive,
	}
	s.Require().NoError(s.identity.CreateUser(s.ctx, u))
	if o.resident {
		r := &identity.Resident{
			ID:           uuid.New(),
			UserID:       u.ID,
			FirstName:    "Jan",
			LastName:     o.surname,
			ErfNumber:    o.erf,
			StreetNumber: o.streetNumber,
			StreetName:   o.streetName,
			IntercomCode: o.intercom,
			Status:       identity.RecordActive,
		}
		s.Require().NoError(s.identity.CreateResident(s.ctx, r))
		residentID = r.ID
	}
	if o.owner {
		ow := &identity.Owner{
			ID:           uuid.New(),
			UserID:       u.ID,
			FirstName:    "Jan",
			LastName:     o.surname,
			ErfNumber:    o.erf,
			StreetNumber: o.streetNumber,
			StreetName:   o.streetName,
			Status:       identity.RecordActive,
		}
		s.Require().NoError(s.identity.CreateOwner(s.ctx, ow))
	}
	return u.ID, residentID
}

func (s *ServiceSuite) addVehicle(residentID uuid.UUID, reg string) {
	v := &identity.Vehicle{
		ID:                 uuid.New(),
		ResidentID:         &residentID,
		RegistrationNumber: reg,
		Status:             identity.VehicleActive,
	}
	s.Require().NoError(s.identity.CreateVehicle(s.ctx, v))
}

func (s *ServiceSuite) TestBuildSortsByStreetThenNumber() {
	s.seed(seedOpts{surname: "Coetzee", erf: "3", streetNumber: "12", streetName: "yellowwood crescent", resident: true})
	s.seed(seedOpts{surname: "Naidoo", erf: "2", streetNumber: "2", streetName: "Yellowwood Crescent", resident: true})
	s.seed(seedOpts{surname: "Botha", erf: "1", streetNumber: "3", streetName: "Protea Lane", resident: true})

	rows, err := s.svc.Build(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal("Botha", rows[0].Surname)
	s.Equal("Naidoo", rows[1].Surname)
	s.Equal("Coetzee", rows[2].Surname)
}

func (s *ServiceSuite) TestBuildLabelsAndVehicleRows() {
	_, residentID := s.seed(seedOpts{
		surname: "Smit", erf: "1234", streetNumber: "12", streetName: "Yellowwood Crescent",
		intercom: "4321", resident: true, owner: true,
	})
	s.addVehicle(residentID, "CJ 123 GP")
	s.addVehicle(residentID, "CJ 456 GP")
	s.seed(seedOpts{surname: "Venter", erf: "5678", streetNumber: "14", streetName: "Yellowwood Crescent", resident: true})

	rows, err := s.svc.Build(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 3)

	s.Equal(models.StatusOwnerResident, rows[0].ResidentStatus)
	s.Equal("Smit", rows[0].Surname)
	s.NotEmpty(rows[0].VehicleRegistration)
	s.NotEmpty(rows[1].VehicleRegistration)
	s.NotEqual(rows[0].VehicleRegistration, rows[1].VehicleRegistration)

	s.Equal(models.StatusResident, rows[2].ResidentStatus)
	s.Empty(rows[2].VehicleRegistration)
}

func (s *ServiceSuite) TestBuildExcludesNonVisibleUsers() {
	u := &identity.User{ID: uuid.New(), Email: "pending@example.com", Role: identity.RolePending, Status: identity.UserPending}
	s.Require().NoError(s.identity.CreateUser(s.ctx, u))
	r := &identity.Resident{
		ID: uuid.New(), UserID: u.ID, LastName: "Pending", ErfNumber: "9",
		StreetNumber: "1", StreetName: "Protea Lane", Status: identity.RecordPending,
	}
	s.Require().NoError(s.identity.CreateResident(s.ctx, r))

	rows, err := s.svc.Build(s.ctx)
	s.Require().NoError(err)
	s.Empty(rows)
}

func (s *ServiceSuite) TestExportCSVHeaderAndFilename() {
	_, residentID := s.seed(seedOpts{
		surname: "Smit", erf: "1234", streetNumber: "12", streetName: "Yellowwood Crescent",
		intercom: "4321", resident: true,
	})
	s.addVehicle(residentID, "CJ 123 GP")

	data, filename, err := s.svc.ExportCSV(s.ctx)
	s.Require().NoError(err)
	s.Equal("gate_register_20250615_090000.csv", filename)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	s.Require().Len(lines, 2)
	s.Equal("RESIDENT STATUS, SURNAME, STREET NR, STREET NAME, VEHICLE REGISTRATION NR, ERF NR, INTERCOM NR", lines[0])
	s.Equal("Resident,Smit,12,Yellowwood Crescent,CJ 123 GP,1234,4321", lines[1])
}

func (s *ServiceSuite) TestExportCSVEmptyRegister() {
	data, _, err := s.svc.ExportCSV(s.ctx)
	s.Require().NoError(err)
	s.Equal("RESIDENT STATUS, SURNAME, STREET NR, STREET NAME, VEHICLE REGISTRATION NR, ERF NR, INTERCOM NR\n", string(data))
}

func (s *ServiceSuite) TestChangedFlagsAndRestriction() {
	changedUser, _ := s.seed(seedOpts{
		surname: "Smit", erf: "1234", streetNumber: "12", streetName: "Yellowwood Crescent", resident: true,
	})
	s.seed(seedOpts{surname: "Venter", erf: "5678", streetNumber: "14", streetName: "Yellowwood Crescent", resident: true})

	_, err := s.journal.Append(s.ctx, jmodels.Entry{
		UserID:     changedUser,
		ChangeType: jmodels.ChangeUserUpdate,
		FieldName:  "phone",
		OldValue:   "0821110000",
		NewValue:   "0839998888",
	})
	s.Require().NoError(err)
	_, err = s.journal.Append(s.ctx, jmodels.Entry{
		UserID:     changedUser,
		ChangeType: jmodels.ChangeUserUpdate,
		FieldName:  jmodels.FieldIntercomCode,
		OldValue:   "4321",
		NewValue:   "8765",
	})
	s.Require().NoError(err)

	rows, changeIDs, err := s.svc.Changed(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Len(changeIDs, 2)
	s.Equal("Smit", rows[0].Surname)
	s.True(rows[0].PhoneChanged)
	s.True(rows[0].IntercomChanged)
	s.False(rows[0].VehicleChanged)

	s.Require().Len(rows[0].Changes, 2)
	byField := map[string]models.ChangeDetail{}
	for _, c := range rows[0].Changes {
		byField[c.FieldName] = c
	}
	s.True(byField[jmodels.FieldCellphoneNumber].Critical)
	s.False(byField[jmodels.FieldIntercomCode].Critical)
}

func (s *ServiceSuite) TestExportHTMLMarksExported() {
	changedUser, _ := s.seed(seedOpts{
		surname: "Smit", erf: "1234", streetNumber: "12", streetName: "Yellowwood Crescent", resident: true,
	})
	change, err := s.journal.Append(s.ctx, jmodels.Entry{
		UserID:     changedUser,
		ChangeType: jmodels.ChangeUserAdd,
		FieldName:  jmodels.FieldVehicleRegistration,
		NewValue:   "CJ 123 GP",
	})
	s.Require().NoError(err)

	data, filename, err := s.svc.ExportHTML(s.ctx)
	s.Require().NoError(err)
	s.Equal("gate_register_changes_20250615_090000.html", filename)

	html := string(data)
	s.Contains(html, `class="critical-changed"`)
	s.Contains(html, "CJ 123 GP")
	s.Contains(html, "vehicle_registration")

	exported, err := s.jstore.FindByID(s.ctx, change.ID)
	s.Require().NoError(err)
	s.True(exported.ExportedToExternal)
	s.Require().NotNil(exported.ExportTimestamp)
}
