// Package service implements registration, approval and profile management
// for estate users. Every tracked-field mutation is mirrored into the change
// journal; journal failures are logged, never fatal to the primary write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	"altona/internal/platform/metrics"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
	"altona/pkg/secrets"
)

// Store is the identity persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsersByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error)

	CreateResident(ctx context.Context, r *models.Resident) error
	FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*models.Resident, error)
	FindResidentByID(ctx context.Context, id uuid.UUID) (*models.Resident, error)
	UpdateResident(ctx context.Context, r *models.Resident) error
	DeleteResident(ctx context.Context, id uuid.UUID) error

	CreateOwner(ctx context.Context, o *models.Owner) error
	FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*models.Owner, error)
	FindOwnerByID(ctx context.Context, id uuid.UUID) (*models.Owner, error)
	UpdateOwner(ctx context.Context, o *models.Owner) error
	DeleteOwner(ctx context.Context, id uuid.UUID) error

	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	FindVehicleByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	FindActiveVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *models.Vehicle) error
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	ListVehiclesByResidentID(ctx context.Context, residentID uuid.UUID) ([]*models.Vehicle, error)
	ListVehiclesByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Vehicle, error)
}

// Recorder receives change-journal entries. The production implementation is
// the asynchronous journal worker; appends are best-effort by contract.
type Recorder interface {
	Record(ctx context.Context, e jmodels.Entry)
}

// Notifier delivers approval and rejection notices. Delivery failures are
// logged and never fail the triggering operation.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// AddressLookup resolves street details for an ERF from the address
// directory.
type AddressLookup interface {
	AddressForErf(ctx context.Context, erfNumber string) (streetNumber, streetName, fullAddress string, err error)
}

// Service implements the identity and role store.
type Service struct {
	store    Store
	recorder Recorder
	notifier Notifier
	lookup   AddressLookup
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRecorder sets the change-journal recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithNotifier sets the notification sender.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithAddressLookup enables address resolution from the ERF directory.
func WithAddressLookup(l AddressLookup) Option {
	return func(s *Service) { s.lookup = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the identity service.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, e jmodels.Entry) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, e)
}

func (s *Service) notify(ctx context.Context, to, subject, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Send(ctx, to, subject, body); err != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("to", to), slog.String("error", err.Error()))
	}
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Email                  string
	Password               string
	FirstName              string
	LastName               string
	IDNumber               string
	PhoneNumber            string
	EmergencyContactName   string
	EmergencyContactNumber string
	ErfNumber              string
	StreetNumber           string
	StreetName             string
	IsResident             bool
	IsOwner                bool
	TitleDeedNumber        string
	PostalAddress          models.PostalAddress
	MovingInDate           *time.Time
	IntercomCode           string
}

// Registration is the result of a successful self-registration.
type Registration struct {
	User     *models.User
	Resident *models.Resident
	Owner    *models.Owner
}

func (in *RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Email) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	case in.Password == "":
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	case strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "first and last name are required")
	case strings.TrimSpace(in.ErfNumber) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "erf number is required")
	case !in.IsResident && !in.IsOwner:
		return dErrors.New(dErrors.CodeInvalidInput, "at least one of is_resident or is_owner must be set")
	}
	return nil
}

// Register creates a pending user with its role records. The same email may
// already exist on another account; one natural person holds one account per
// ERF presence.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := secrets.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	streetNumber, streetName := in.StreetNumber, in.StreetName
	fullAddress := composeAddress(streetNumber, streetName)
	if streetName == "" && s.lookup != nil {
		if num, name, full, lookupErr := s.lookup.AddressForErf(ctx, in.ErfNumber); lookupErr == nil {
			streetNumber, streetName, fullAddress = num, name, full
		}
	}

	now := s.now().UTC()
	user := &models.User{
		ID:                 uuid.New(),
		Email:              strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:       hash,
		Role:               models.RolePending,
		Status:             models.UserPending,
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	reg := &Registration{User: user}
	if in.IsResident {
		resident := &models.Resident{
			ID:                     uuid.New(),
			UserID:                 user.ID,
			FirstName:              in.FirstName,
			LastName:               in.LastName,
			IDNumber:               in.IDNumber,
			PhoneNumber:            in.PhoneNumber,
			EmergencyContactName:   in.EmergencyContactName,
			EmergencyContactNumber: in.EmergencyContactNumber,
			ErfNumber:              in.ErfNumber,
			StreetNumber:           streetNumber,
			StreetName:             streetName,
			FullAddress:            fullAddress,
			IntercomCode:           in.IntercomCode,
			MovingInDate:           in.MovingInDate,
			Status:                 models.RecordPending,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := s.store.CreateResident(ctx, resident); err != nil {
			return nil, s.undoRegistration(ctx, user.ID, err, "create resident record")
		}
		reg.Resident = resident
	}
	if in.IsOwner {
		owner := &models.Owner{
			ID:                     uuid.New(),
			UserID:                 user.ID,
			FirstName:              in.FirstName,
			LastName:               in.LastName,
			IDNumber:               in.IDNumber,
			PhoneNumber:            in.PhoneNumber,
			EmergencyContactName:   in.EmergencyContactName,
			EmergencyContactNumber: in.EmergencyContactNumber,
			ErfNumber:              in.ErfNumber,
			StreetNumber:           streetNumber,
			StreetName:             streetName,
			FullAddress:            fullAddress,
			IntercomCode:           in.IntercomCode,
			TitleDeedNumber:        in.TitleDeedNumber,
			PostalAddress:          in.PostalAddress,
			MovingInDate:           in.MovingInDate,
			Status:                 models.RecordPending,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := s.store.CreateOwner(ctx, owner); err != nil {
			return nil, s.undoRegistration(ctx, user.ID, err, "create owner record")
		}
		reg.Owner = owner
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.logger.InfoContext(ctx, "registration received",
		slog.String("user_id", user.ID.String()),
		slog.String("erf_number", in.ErfNumber),
		slog.Bool("is_resident", in.IsResident),
		slog.Bool("is_owner", in.IsOwner))
	return reg, nil
}

// undoRegistration removes the half-created user when a role record insert
// fails mid-registration.
func (s *Service) undoRegistration(ctx context.Context, userID uuid.UUID, cause error, what string) error {
	if delErr := s.store.DeleteUser(ctx, userID); delErr != nil {
		s.logger.ErrorContext(ctx, "failed to undo partial registration",
			slog.String("user_id", userID.String()),
			slog.String("error", delErr.Error()))
	}
	if errors.Is(cause, sentinel.ErrConflict) {
		return dErrors.Wrap(cause, dErrors.CodeConflict, what)
	}
	return dErrors.Wrap(cause, dErrors.CodeInternal, what)
}

// Approve activates a pending user, composing its role from the role records
// present.
func (s *Service) Approve(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserPending {
		return nil, dErrors.Newf(dErrors.CodeConflict, "user is %s, not pending", user.Status)
	}

	resident, _ := s.store.FindResidentByUserID(ctx, userID)
	owner, _ := s.store.FindOwnerByUserID(ctx, userID)

	now := s.now().UTC()
	if resident != nil {
		resident.Status = models.RecordActive
		resident.UpdatedAt = now
		if err := s.store.UpdateResident(ctx, resident); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "activate resident record")
		}
	}
	if owner != nil {
		owner.Status = models.RecordActive
		owner.UpdatedAt = now
		if err := s.store.UpdateOwner(ctx, owner); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "activate owner record")
		}
	}

	user.Status = models.UserActive
	user.Role = models.ComposeRole(resident != nil, owner != nil)
	user.UpdatedAt = now
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "activate user")
	}

	if s.metrics != nil {
		s.metrics.ApprovalsTotal.Inc()
	}
	s.logger.InfoContext(ctx, "registration approved",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)))
	s.notify(ctx, user.Email, "Registration approved",
		"Your Altona Village registration has been approved. You can now sign in.")
	return user, nil
}

// Reject notifies the applicant, then deletes the user with its dependent
// role and vehicle rows.
func (s *Service) Reject(ctx context.Context, userID uuid.UUID, reason string) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status != models.UserPending {
		return dErrors.Newf(dErrors.CodeConflict, "user is %s, not pending", user.Status)
	}

	body := "Your Altona Village registration was not approved."
	if reason != "" {
		body += " Reason: " + reason
	}
	s.notify(ctx, user.Email, "Registration rejected", body)

	if resident, findErr := s.store.FindResidentByUserID(ctx, userID); findErr == nil {
		s.deleteVehiclesFor(ctx, resident.ID, uuid.Nil)
		if err := s.store.DeleteResident(ctx, resident.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete resident record")
		}
	}
	if owner, findErr := s.store.FindOwnerByUserID(ctx, userID); findErr == nil {
		s.deleteVehiclesFor(ctx, uuid.Nil, owner.ID)
		if err := s.store.DeleteOwner(ctx, owner.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "delete owner record")
		}
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete user")
	}

	s.logger.InfoContext(ctx, "registration rejected",
		slog.String("user_id", userID.String()),
		slog.String("reason", reason))
	return nil
}

func (s *Service) deleteVehiclesFor(ctx context.Context, residentID, ownerID uuid.UUID) {
	var vehicles []*models.Vehicle
	if residentID != uuid.Nil {
		vehicles, _ = s.store.ListVehiclesByResidentID(ctx, residentID)
	} else {
		vehicles, _ = s.store.ListVehiclesByOwnerID(ctx, ownerID)
	}
	for _, v := range vehicles {
		if err := s.store.DeleteVehicle(ctx, v.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete dependent vehicle",
				slog.String("vehicle_id", v.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}

// Profile bundles a user with its role records and vehicles.
type Profile struct {
	User     *models.User      `json:"user"`
	Resident *models.Resident  `json:"resident,omitempty"`
	Owner    *models.Owner     `json:"owner,omitempty"`
	Vehicles []*models.Vehicle `json:"vehicles"`
}

// GetProfile loads the full profile of a user.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: user}
	if resident, findErr := s.store.FindResidentByUserID(ctx, userID); findErr == nil {
		p.Resident = resident
		vehicles, _ := s.store.ListVehiclesByResidentID(ctx, resident.ID)
		p.Vehicles = append(p.Vehicles, vehicles...)
	}
	if owner, findErr := s.store.FindOwnerByUserID(ctx, userID); findErr == nil {
		p.Owner = owner
		vehicles, _ := s.store.ListVehiclesByOwnerID(ctx, owner.ID)
		p.Vehicles = append(p.Vehicles, vehicles...)
	}
	return p, nil
}

func (s *Service) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find user")
	}
	return user, nil
}

func composeAddress(streetNumber, streetName string) string {
	if streetNumber == "" && streetName == "" {
		return ""
	}
	return strings.TrimSpace(streetNumber + " " + streetName)
}
