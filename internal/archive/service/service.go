// Package service implements archival and deletion of departed users: a
// JSON snapshot is taken before any mutation, deletions run in
// foreign-key-safe order inside one transaction, and expired snapshots are
// purged on a schedule.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"altona/internal/archive/models"
	identity "altona/internal/identity/models"
	"altona/internal/platform/metrics"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Store is the archive persistence the service needs.
type Store interface {
	InsertArchive(ctx context.Context, a *models.Archive) error
	FindArchiveByID(ctx context.Context, id uuid.UUID) (*models.Archive, error)
	ListArchives(ctx context.Context) ([]*models.Archive, error)
	ListExpiredArchives(ctx context.Context, before time.Time) ([]*models.Archive, error)
	DeleteArchive(ctx context.Context, id uuid.UUID) error
	InsertDeletionLog(ctx context.Context, e *models.DeletionLogEntry) error
	ListDeletionLog(ctx context.Context) ([]*models.DeletionLogEntry, error)
	ListComplaintsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Complaint, error)
	DeleteComplaintsByUser(ctx context.Context, userID uuid.UUID) error
}

// IdentityStore is the slice of the identity store archival reads and
// mutates. All calls join the archival transaction through the context.
type IdentityStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
	UpdateUser(ctx context.Context, u *identity.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*identity.Resident, error)
	UpdateResident(ctx context.Context, r *identity.Resident) error
	DeleteResident(ctx context.Context, id uuid.UUID) error

	FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*identity.Owner, error)
	UpdateOwner(ctx context.Context, o *identity.Owner) error
	DeleteOwner(ctx context.Context, id uuid.UUID) error

	ListVehiclesByResidentID(ctx context.Context, residentID uuid.UUID) ([]*identity.Vehicle, error)
	ListVehiclesByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*identity.Vehicle, error)
	UpdateVehicle(ctx context.Context, v *identity.Vehicle) error
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
}

// TransitionStore removes a user's transition requests during deletion.
type TransitionStore interface {
	DeleteRequestsByUser(ctx context.Context, userID uuid.UUID) error
}

// Service implements archival and deletion.
type Service struct {
	store       Store
	identity    IdentityStore
	transitions TransitionStore
	runner      txcontext.Runner
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
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

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the archive service.
func NewService(st Store, identityStore IdentityStore, transitions TransitionStore, runner txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		store:       st,
		identity:    identityStore,
		transitions: transitions,
		runner:      runner,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArchiveInput is the admin's archival request.
type ArchiveInput struct {
	Reason       string
	Actor        string
	PropertySold bool
}

// snapshot is the JSON shape stored in archive_data.
type snapshot struct {
	User       *identity.User      `json:"user"`
	Resident   *identity.Resident  `json:"resident,omitempty"`
	Owner      *identity.Owner     `json:"owner,omitempty"`
	Vehicles   []*identity.Vehicle `json:"vehicles,omitempty"`
	Complaints []*models.Complaint `json:"complaints,omitempty"`
}

// ArchiveUser snapshots a departed user and applies the retention policy
// for their derived user type. The snapshot is written before any row is
// touched; everything happens in one transaction.
func (s *Service) ArchiveUser(ctx context.Context, userID uuid.UUID, in ArchiveInput) (*models.Archive, error) {
	var archive *models.Archive
	err := s.runner.RunSerializable(ctx, func(txCtx context.Context) error {
		user, err := s.identity.FindUserByID(txCtx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return err
		}
		if user.Status == identity.UserArchived {
			return dErrors.New(dErrors.CodeConflict, "user is already archived")
		}

		resident, _ := s.identity.FindResidentByUserID(txCtx, userID)
		owner, _ := s.identity.FindOwnerByUserID(txCtx, userID)
		userType := models.DeriveUserType(resident != nil, owner != nil, in.PropertySold)
		policy := models.PolicyFor(userType)

		var vehicles []*identity.Vehicle
		if resident != nil {
			vs, err := s.identity.ListVehiclesByResidentID(txCtx, resident.ID)
			if err != nil {
				return err
			}
			vehicles = append(vehicles, vs...)
		}
		if owner != nil {
			vs, err := s.identity.ListVehiclesByOwnerID(txCtx, owner.ID)
			if err != nil {
				return err
			}
			vehicles = append(vehicles, vs...)
		}
		complaints, err := s.store.ListComplaintsByUser(txCtx, userID)
		if err != nil {
			return err
		}

		data, err := json.Marshal(snapshot{
			User: user, Resident: resident, Owner: owner,
			Vehicles: vehicles, Complaints: complaints,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode archive snapshot")
		}

		now := s.now().UTC()
		archive = &models.Archive{
			ID:            uuid.New(),
			UserID:        userID,
			Email:         user.Email,
			UserType:      userType,
			ArchiveReason: in.Reason,
			ArchivedBy:    in.Actor,
			ArchiveData:   data,
			CreatedAt:     now,
		}
		if policy.Retention > 0 {
			until := now.Add(policy.Retention)
			archive.RetentionUntil = &until
		}
		if err := s.store.InsertArchive(txCtx, archive); err != nil {
			return err
		}

		switch policy.Action {
		case models.ActionDelete:
			return s.deleteUser(txCtx, user, resident, owner, vehicles, userType, in, now)
		case models.ActionArchive:
			return s.archiveOwnerOnly(txCtx, user, owner, vehicles, in, now)
		default:
			return s.archiveResidentSide(txCtx, user, resident, now)
		}
	})
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "archive user")
	}

	s.logger.InfoContext(ctx, "user archived",
		slog.String("user_id", userID.String()),
		slog.String("user_type", string(archive.UserType)),
		slog.String("archived_by", in.Actor))
	return archive, nil
}

// deleteUser removes every row the user owns, in foreign-key-safe order:
// complaint updates, complaints, vehicles, transition requests, resident,
// owner, user. A deletion log entry records the removal.
func (s *Service) deleteUser(ctx context.Context, user *identity.User, resident *identity.Resident, owner *identity.Owner, vehicles []*identity.Vehicle, userType models.UserType, in ArchiveInput, now time.Time) error {
	if err := s.store.DeleteComplaintsByUser(ctx, user.ID); err != nil {
		return err
	}
	for _, v := range vehicles {
		if err := s.identity.DeleteVehicle(ctx, v.ID); err != nil {
			return err
		}
	}
	if err := s.transitions.DeleteRequestsByUser(ctx, user.ID); err != nil {
		return err
	}
	if resident != nil {
		if err := s.identity.DeleteResident(ctx, resident.ID); err != nil {
			return err
		}
	}
	if owner != nil {
		if err := s.identity.DeleteOwner(ctx, owner.ID); err != nil {
			return err
		}
	}
	if err := s.identity.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	return s.store.InsertDeletionLog(ctx, &models.DeletionLogEntry{
		ID:             uuid.New(),
		UserID:         user.ID,
		Email:          user.Email,
		UserType:       userType,
		DeletionReason: in.Reason,
		DeletedBy:      in.Actor,
		DeletedAt:      now,
	})
}

// archiveOwnerOnly keeps the ERF association and title metadata but strips
// contact details, postal address and vehicles.
func (s *Service) archiveOwnerOnly(ctx context.Context, user *identity.User, owner *identity.Owner, vehicles []*identity.Vehicle, in ArchiveInput, now time.Time) error {
	for _, v := range vehicles {
		if err := s.identity.DeleteVehicle(ctx, v.ID); err != nil {
			return err
		}
	}
	if owner != nil {
		owner.PhoneNumber = ""
		owner.EmergencyContactName = ""
		owner.EmergencyContactNumber = ""
		owner.IntercomCode = ""
		owner.PostalAddress = identity.PostalAddress{}
		owner.FullAddress = ""
		owner.Status = identity.RecordArchived
		owner.UpdatedAt = now
		if err := s.identity.UpdateOwner(ctx, owner); err != nil {
			return err
		}
	}
	user.Status = identity.UserArchived
	user.Archived = true
	user.ArchivedAt = &now
	user.ArchivedBy = in.Actor
	user.ArchiveReason = in.Reason
	user.UpdatedAt = now
	return s.identity.UpdateUser(ctx, user)
}

// archiveResidentSide handles the owner who moved out but still owns: the
// resident record is archived and scrubbed, vehicles drop to
// owner_access_only, the account and owner record stay live.
func (s *Service) archiveResidentSide(ctx context.Context, user *identity.User, resident *identity.Resident, now time.Time) error {
	if resident == nil {
		return dErrors.New(dErrors.CodeConflict, "no resident record to archive")
	}
	residentVehicles, err := s.identity.ListVehiclesByResidentID(ctx, resident.ID)
	if err != nil {
		return err
	}
	for _, v := range residentVehicles {
		v.Status = identity.VehicleOwnerAccessOnly
		v.UpdatedAt = now
		if err := s.identity.UpdateVehicle(ctx, v); err != nil {
			return err
		}
	}
	resident.PhoneNumber = ""
	resident.EmergencyContactName = ""
	resident.EmergencyContactNumber = ""
	resident.IntercomCode = ""
	resident.Status = identity.RecordArchived
	resident.MovingOutDate = &now
	resident.UpdatedAt = now
	if err := s.identity.UpdateResident(ctx, resident); err != nil {
		return err
	}

	user.Role = identity.RoleOwner
	user.UpdatedAt = now
	return s.identity.UpdateUser(ctx, user)
}

// PurgeExpired removes archives whose retention window has passed and
// returns how many were purged.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredArchives(ctx, s.now().UTC())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expired archives")
	}
	purged := 0
	for _, a := range expired {
		if err := s.store.DeleteArchive(ctx, a.ID); err != nil {
			return purged, dErrors.Wrap(err, dErrors.CodeInternal, "purge archive")
		}
		purged++
		if s.metrics != nil {
			s.metrics.ArchivePurgedTotal.Inc()
		}
	}
	if purged > 0 {
		s.logger.InfoContext(ctx, "purged expired archives", slog.Int("count", purged))
	}
	return purged, nil
}

// ListArchives returns all snapshots newest first.
func (s *Service) ListArchives(ctx context.Context) ([]*models.Archive, error) {
	archives, err := s.store.ListArchives(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list archives")
	}
	return archives, nil
}

// DeletionLog returns the permanent-deletion audit log.
func (s *Service) DeletionLog(ctx context.Context) ([]*models.DeletionLogEntry, error) {
	entries, err := s.store.ListDeletionLog(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list deletion log")
	}
	return entries, nil
}
