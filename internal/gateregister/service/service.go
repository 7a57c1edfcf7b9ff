// Package service builds the gate-register projection: the plain list the
// security gate works from, and the change-highlighted variant restricted
// to users with unreviewed journal rows.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"altona/internal/gateregister/models"
	identity "altona/internal/identity/models"
	jmodels "altona/internal/journal/models"
	"altona/internal/platform/metrics"
	dErrors "altona/pkg/domain-errors"
)

// IdentityReader is the slice of the identity store the projection reads.
// The gate listings already enforce the visibility rule: active non-admin
// users with at least one active role record.
type IdentityReader interface {
	ListGateResidents(ctx context.Context) ([]*identity.Resident, error)
	ListGateOwners(ctx context.Context) ([]*identity.Owner, error)
	ListActiveVehicles(ctx context.Context) ([]*identity.Vehicle, error)
}

// JournalReader supplies unreviewed changes for the change view and
// receives export bookkeeping afterwards.
type JournalReader interface {
	PendingByUser(ctx context.Context) (map[uuid.UUID][]*jmodels.Change, error)
	MarkExported(ctx context.Context, ids []uuid.UUID) error
}

const cacheKey = "gate:register:snapshot"

// Service builds gate-register projections.
type Service struct {
	identity IdentityReader
	journal  JournalReader
	cache    *redis.Client
	cacheTTL time.Duration
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

// WithCache enables the Redis snapshot cache. A nil client disables it.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = client
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the gate-register service.
func NewService(identityReader IdentityReader, journal JournalReader, opts ...Option) *Service {
	s := &Service{
		identity: identityReader,
		journal:  journal,
		cacheTTL: time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build returns the plain projection, sorted for the gate, from cache when
// fresh.
func (s *Service) Build(ctx context.Context) ([]models.Row, error) {
	if rows, ok := s.fromCache(ctx); ok {
		return rows, nil
	}
	rows, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, rows)
	return rows, nil
}

// presence is one (user, ERF) appearance on the register.
type presence struct {
	row      models.Row
	vehicles []string
}

func (s *Service) build(ctx context.Context) ([]models.Row, error) {
	residents, err := s.identity.ListGateResidents(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list gate residents")
	}
	owners, err := s.identity.ListGateOwners(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list gate owners")
	}
	vehicles, err := s.identity.ListActiveVehicles(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list active vehicles")
	}

	presences := make(map[string]*presence)
	byResidentID := make(map[uuid.UUID]*presence)
	byOwnerID := make(map[uuid.UUID]*presence)

	for _, r := range residents {
		key := r.UserID.String() + "|" + r.ErfNumber
		p := &presence{row: models.Row{
			UserID:         r.UserID,
			ResidentStatus: models.StatusResident,
			Surname:        r.LastName,
			FirstName:      r.FirstName,
			StreetNumber:   r.StreetNumber,
			StreetName:     r.StreetName,
			ErfNumber:      r.ErfNumber,
			IntercomCode:   r.IntercomCode,
		}}
		presences[key] = p
		byResidentID[r.ID] = p
	}
	for _, o := range owners {
		key := o.UserID.String() + "|" + o.ErfNumber
		if p, ok := presences[key]; ok {
			p.row.ResidentStatus = models.StatusOwnerResident
			if p.row.IntercomCode == "" {
				p.row.IntercomCode = o.IntercomCode
			}
			byOwnerID[o.ID] = p
			continue
		}
		p := &presence{row: models.Row{
			UserID:         o.UserID,
			ResidentStatus: models.StatusOwner,
			Surname:        o.LastName,
			FirstName:      o.FirstName,
			StreetNumber:   o.StreetNumber,
			StreetName:     o.StreetName,
			ErfNumber:      o.ErfNumber,
			IntercomCode:   o.IntercomCode,
		}}
		presences[key] = p
		byOwnerID[o.ID] = p
	}

	for _, v := range vehicles {
		var p *presence
		switch {
		case v.ResidentID != nil:
			p = byResidentID[*v.ResidentID]
		case v.OwnerID != nil:
			p = byOwnerID[*v.OwnerID]
		}
		if p != nil {
			p.vehicles = append(p.vehicles, v.RegistrationNumber)
		}
	}

	var rows []models.Row
	for _, p := range presences {
		if len(p.vehicles) == 0 {
			rows = append(rows, p.row)
			continue
		}
		for _, reg := range p.vehicles {
			row := p.row
			row.VehicleRegistration = reg
			rows = append(rows, row)
		}
	}
	models.Sort(rows)
	return rows, nil
}

// Changed returns the register restricted to users with unreviewed journal
// rows, flagged per concern, plus the change IDs included.
func (s *Service) Changed(ctx context.Context) ([]models.ChangedRow, []uuid.UUID, error) {
	pending, err := s.journal.PendingByUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(pending) == 0 {
		return nil, nil, nil
	}
	rows, err := s.build(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		changed   []models.ChangedRow
		changeIDs []uuid.UUID
	)
	seen := make(map[uuid.UUID]bool)
	for _, row := range rows {
		changes, ok := pending[row.UserID]
		if !ok {
			continue
		}
		cr := models.ChangedRow{Row: row}
		for _, c := range changes {
			cr.Changes = append(cr.Changes, models.ChangeDetail{
				FieldName: c.FieldName,
				OldValue:  c.OldValue,
				NewValue:  c.NewValue,
				Critical:  c.Critical(),
			})
			switch c.FieldName {
			case jmodels.FieldCellphoneNumber:
				cr.PhoneChanged = true
			case jmodels.FieldVehicleRegistration, jmodels.FieldVehicleRegistration2,
				jmodels.FieldVehicleMake, jmodels.FieldVehicleModel, jmodels.FieldVehicleColor:
				cr.VehicleChanged = true
			case jmodels.FieldIntercomCode:
				cr.IntercomChanged = true
			}
			if !seen[c.ID] {
				seen[c.ID] = true
				changeIDs = append(changeIDs, c.ID)
			}
		}
		changed = append(changed, cr)
	}
	return changed, changeIDs, nil
}

// InvalidateCache drops the snapshot; called after journal appends and
// identity mutations.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.WarnContext(ctx, "gate register cache invalidation failed",
			slog.String("error", err.Error()))
	}
}

func (s *Service) fromCache(ctx context.Context) ([]models.Row, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "gate register cache read failed",
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	var rows []models.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (s *Service) toCache(ctx context.Context, rows []models.Row) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "gate register cache write failed",
			slog.String("error", err.Error()))
	}
}
