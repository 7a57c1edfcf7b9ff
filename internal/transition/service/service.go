// Package service implements the transition engine: request lifecycle,
// linking of independently registered newcomers, and the migration
// algorithms that rewrite identity state when a property changes hands.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	identity "altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	"altona/internal/platform/metrics"
	"altona/internal/transition/models"
	"altona/internal/transition/store"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Store is the transition persistence the service needs.
type Store interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListRequests(ctx context.Context, f store.Filter) ([]*models.Request, error)
	UpdateRequest(ctx context.Context, r *models.Request) error
	InsertUpdate(ctx context.Context, u *models.Update) error
	ListUpdates(ctx context.Context, requestID uuid.UUID) ([]*models.Update, error)
	InsertVehicle(ctx context.Context, v *models.Vehicle) error
	ListVehicles(ctx context.Context, requestID uuid.UUID) ([]*models.Vehicle, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// IdentityStore is the slice of the identity store migrations mutate. All
// calls join the migration transaction through the context.
type IdentityStore interface {
	CreateUser(ctx context.Context, u *identity.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	FindUsersByEmail(ctx context.Context, email string) ([]*identity.User, error)
	UpdateUser(ctx context.Context, u *identity.User) error

	CreateResident(ctx context.Context, r *identity.Resident) error
	FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*identity.Resident, error)
	UpdateResident(ctx context.Context, r *identity.Resident) error

	CreateOwner(ctx context.Context, o *identity.Owner) error
	FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*identity.Owner, error)
	UpdateOwner(ctx context.Context, o *identity.Owner) error

	CreateVehicle(ctx context.Context, v *identity.Vehicle) error
	UpdateVehicle(ctx context.Context, v *identity.Vehicle) error
	ListVehiclesByResidentID(ctx context.Context, residentID uuid.UUID) ([]*identity.Vehicle, error)
	ListVehiclesByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*identity.Vehicle, error)
}

// Recorder receives change-journal entries after a migration commits.
type Recorder interface {
	Record(ctx context.Context, e jmodels.Entry)
}

// Notifier delivers the temporary credentials of migration-created users.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements the transition engine.
type Service struct {
	store    Store
	identity IdentityStore
	runner   txcontext.Runner
	recorder Recorder
	notifier Notifier
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

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the transition service.
func NewService(st Store, identityStore IdentityStore, runner txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		store:    st,
		identity: identityStore,
		runner:   runner,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the payload for opening a transition request.
type CreateInput struct {
	RequestType          models.RequestType
	NewOccupantType      models.OccupantType
	NewOccupantName      string
	NewOccupantEmail     string
	NewOccupantPhone     string
	NewOccupantIDNumber  string
	IntendedMoveoutDate  *time.Time
	PropertySold         bool
	EstateAgentNotified  bool
	AccessHandoverAgreed bool
	AdultsCount          int
	ChildrenCount        int
	PetsCount            int
	MoveoutReason        string
	Notes                string
	Vehicles             []models.Vehicle
}

// Create opens a transition request for the acting user. Current role and
// ERF are derived from the user's role records, priority from the intended
// move-out date.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.Request, error) {
	resident, err := s.identity.FindResidentByUserID(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find resident record")
	}
	owner, err := s.identity.FindOwnerByUserID(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find owner record")
	}
	if resident == nil && owner == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "user has no role records at any erf")
	}

	erf := ""
	if resident != nil {
		erf = resident.ErfNumber
	} else {
		erf = owner.ErfNumber
	}
	if in.RequestType == "" {
		in.RequestType = models.RequestMoveOut
	}
	if in.NewOccupantType == "" {
		in.NewOccupantType = models.OccupantUnknown
	}

	now := s.now().UTC()
	req := &models.Request{
		ID:                   uuid.New(),
		UserID:               userID,
		ErfNumber:            erf,
		RequestType:          in.RequestType,
		CurrentRole:          identity.ComposeRole(resident != nil, owner != nil),
		NewOccupantType:      in.NewOccupantType,
		NewOccupantName:      in.NewOccupantName,
		NewOccupantEmail:     strings.ToLower(strings.TrimSpace(in.NewOccupantEmail)),
		NewOccupantPhone:     in.NewOccupantPhone,
		NewOccupantIDNumber:  in.NewOccupantIDNumber,
		IntendedMoveoutDate:  in.IntendedMoveoutDate,
		PropertySold:         in.PropertySold,
		EstateAgentNotified:  in.EstateAgentNotified,
		AccessHandoverAgreed: in.AccessHandoverAgreed,
		AdultsCount:          in.AdultsCount,
		ChildrenCount:        in.ChildrenCount,
		PetsCount:            in.PetsCount,
		MoveoutReason:        in.MoveoutReason,
		Notes:                in.Notes,
		Status:               models.StatusPendingReview,
		Priority:             models.DerivePriority(in.IntendedMoveoutDate, now),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create transition request")
	}
	for _, v := range in.Vehicles {
		vehicle := &models.Vehicle{
			ID:                 uuid.New(),
			RequestID:          req.ID,
			RegistrationNumber: strings.ToUpper(strings.TrimSpace(v.RegistrationNumber)),
			Make:               v.Make,
			Model:              v.Model,
			Color:              v.Color,
			CreatedAt:          now,
		}
		if vehicle.RegistrationNumber == "" {
			continue
		}
		if err := s.store.InsertVehicle(ctx, vehicle); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record transition vehicle")
		}
	}
	s.addUpdate(ctx, req.ID, "created", "", req.Status, "", "request opened")

	s.logger.InfoContext(ctx, "transition request created",
		slog.String("request_id", req.ID.String()),
		slog.String("erf_number", req.ErfNumber),
		slog.String("priority", string(req.Priority)))
	return req, nil
}

// Detail is a request with its audit trail and declared vehicles.
type Detail struct {
	Request  *models.Request   `json:"request"`
	Updates  []*models.Update  `json:"updates"`
	Vehicles []*models.Vehicle `json:"vehicles"`
}

// Get loads a request with updates and vehicles.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	req, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	updates, err := s.store.ListUpdates(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list request updates")
	}
	vehicles, err := s.store.ListVehicles(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list request vehicles")
	}
	return &Detail{Request: req, Updates: updates, Vehicles: vehicles}, nil
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, f store.Filter) ([]*models.Request, error) {
	requests, err := s.store.ListRequests(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list transition requests")
	}
	return requests, nil
}

// Assign sets the handling admin.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, admin string) (*models.Request, error) {
	req, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, dErrors.New(dErrors.CodeConflict, "request is already closed")
	}
	req.AssignedAdmin = admin
	req.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "assign request")
	}
	s.addUpdate(ctx, id, "assigned", "", "", admin, "assigned to "+admin)
	return req, nil
}

// Comment appends a free-form note to the audit trail.
func (s *Service) Comment(ctx context.Context, id uuid.UUID, author, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "comment cannot be empty")
	}
	if _, err := s.findRequest(ctx, id); err != nil {
		return err
	}
	s.addUpdate(ctx, id, "comment", "", "", author, comment)
	return nil
}

// UpdateStatus drives the request state machine. Entering completed
// finalizes the migration atomically with the status change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next models.RequestStatus, author, comment string) (*models.Request, error) {
	req, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	// Re-completing a completed request is a no-op: first writer wins.
	if next == models.StatusCompleted && req.Status == models.StatusCompleted && req.MigrationCompleted {
		return req, nil
	}
	if !models.CanTransition(req.Status, next) {
		return nil, dErrors.Newf(dErrors.CodeInvalidRoleTransition,
			"cannot move request from %s to %s", req.Status, next)
	}

	if next != models.StatusCompleted {
		prev := req.Status
		req.Status = next
		req.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateRequest(ctx, req); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update request status")
		}
		s.addUpdate(ctx, id, "status_change", prev, next, author, comment)
		return req, nil
	}

	// Privacy-compliant requests must be linked before they can complete.
	if req.PrivacyCompliant() && !req.MigrationCompleted {
		return nil, dErrors.New(dErrors.CodePrivacyPolicyViolation,
			"request withholds new-occupant identity; link the registered user first")
	}

	completed, err := s.complete(ctx, req, nil, author, comment)
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// Link connects an independently registered pending user to a
// privacy-compliant request and runs the migration immediately.
func (s *Service) Link(ctx context.Context, requestID, newUserID uuid.UUID, author string) (*models.Request, error) {
	req, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.MigrationCompleted {
		return nil, dErrors.New(dErrors.CodeConflict, "request migration already completed")
	}
	if req.Status.Terminal() {
		return nil, dErrors.New(dErrors.CodeConflict, "request is already closed")
	}

	linked, err := s.identity.FindUserByID(ctx, newUserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "new user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find new user")
	}
	if linked.Status != identity.UserPending {
		return nil, dErrors.Newf(dErrors.CodeConflict, "new user is %s, not pending", linked.Status)
	}
	if err := s.checkErfMatch(ctx, req, linked.ID); err != nil {
		return nil, err
	}

	if err := s.runMigration(ctx, req, linked, false); err != nil {
		return nil, err
	}
	s.addUpdate(ctx, requestID, "linked", "", "", author, "linked to registered user "+newUserID.String())
	return s.findRequest(ctx, requestID)
}

// checkErfMatch rejects links where the newcomer registered for a different
// ERF than the one changing hands. Only a missing record falls through to
// the next lookup; a failing store surfaces as internal, never as a
// mismatch verdict.
func (s *Service) checkErfMatch(ctx context.Context, req *models.Request, linkedID uuid.UUID) error {
	r, err := s.identity.FindResidentByUserID(ctx, linkedID)
	switch {
	case err == nil:
		if r.ErfNumber == req.ErfNumber {
			return nil
		}
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"erf_mismatch: request is for erf %s but linked user registered at erf %s",
			req.ErfNumber, r.ErfNumber)
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "find linked resident record")
	}

	o, err := s.identity.FindOwnerByUserID(ctx, linkedID)
	switch {
	case err == nil:
		if o.ErfNumber == req.ErfNumber {
			return nil
		}
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"erf_mismatch: request is for erf %s but linked user registered at erf %s",
			req.ErfNumber, o.ErfNumber)
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeInternal, "find linked owner record")
	}
	return dErrors.New(dErrors.CodeInvalidInput, "linked user has no role records to match the erf against")
}

// complete finalizes the migration and the status change in one serializable
// transaction.
func (s *Service) complete(ctx context.Context, req *models.Request, linked *identity.User, author, comment string) (*models.Request, error) {
	prev := req.Status
	if err := s.runMigration(ctx, req, linked, true); err != nil {
		return nil, err
	}
	s.addUpdate(ctx, req.ID, "status_change", prev, models.StatusCompleted, author, comment)

	s.logger.InfoContext(ctx, "transition request completed",
		slog.String("request_id", req.ID.String()),
		slog.String("erf_number", req.ErfNumber))
	return req, nil
}

// Stats aggregates request counters for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transition stats")
	}
	return stats, nil
}

func (s *Service) findRequest(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	req, err := s.store.FindRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transition request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find transition request")
	}
	return req, nil
}

func (s *Service) addUpdate(ctx context.Context, requestID uuid.UUID, updateType string, oldStatus, newStatus models.RequestStatus, author, comment string) {
	u := &models.Update{
		ID:         uuid.New(),
		RequestID:  requestID,
		UpdateType: updateType,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Comment:    comment,
		Author:     author,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertUpdate(ctx, u); err != nil {
		s.logger.WarnContext(ctx, "failed to record request update",
			slog.String("request_id", requestID.String()),
			slog.String("error", err.Error()))
	}
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
