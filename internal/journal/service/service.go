// Package service implements the change journal: append with field-name
// normalization and ERF resolution, review queues, and bookkeeping updates.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	imodels "altona/internal/identity/models"
	"altona/internal/journal/models"
	"altona/internal/journal/store"
	"altona/internal/platform/metrics"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
)

// Store is the journal persistence the service needs.
type Store interface {
	Insert(ctx context.Context, c *models.Change) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Change, error)
	List(ctx context.Context, f store.Filter) ([]*models.Change, int, error)
	MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string, at time.Time) (int, error)
	FindLatestUnreviewed(ctx context.Context, userID uuid.UUID, fieldName string) (*models.Change, error)
	MarkExported(ctx context.Context, ids []uuid.UUID, at time.Time) error
	ListUnreviewedByUser(ctx context.Context) (map[uuid.UUID][]*models.Change, error)
	Stats(ctx context.Context, now time.Time) (*models.Stats, error)
}

// IdentityReader resolves a user's role records when an append arrives
// without an ERF number.
type IdentityReader interface {
	FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*imodels.Resident, error)
	FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*imodels.Owner, error)
}

// Service implements the change journal.
type Service struct {
	store    Store
	identity IdentityReader
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	pageSize uint64
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

// WithIdentityReader enables ERF resolution for appends that omit it.
func WithIdentityReader(r IdentityReader) Option {
	return func(s *Service) { s.identity = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPageSize sets the default page size for listings.
func WithPageSize(n uint64) Option {
	return func(s *Service) { s.pageSize = n }
}

// NewService creates the journal service.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		logger:   slog.Default(),
		now:      time.Now,
		pageSize: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append normalizes and persists one journal row. Failures are coded
// journal_append_failed so callers can decide whether the failure is fatal;
// on the primary mutation path it never is.
func (s *Service) Append(ctx context.Context, e models.Entry) (*models.Change, error) {
	if e.UserID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "journal entry requires a user id")
	}
	if e.ChangeType == "" || e.FieldName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "journal entry requires change type and field name")
	}

	change := &models.Change{
		ID:              uuid.New(),
		UserID:          e.UserID,
		UserName:        e.UserName,
		ErfNumber:       e.ErfNumber,
		ChangeType:      e.ChangeType,
		FieldName:       models.NormalizeFieldName(e.FieldName),
		OldValue:        e.OldValue,
		NewValue:        e.NewValue,
		ChangeTimestamp: s.now().UTC(),
		Notes:           e.Notes,
	}
	if change.ErfNumber == "" {
		change.ErfNumber = s.resolveErf(ctx, e.UserID)
	}

	if err := s.store.Insert(ctx, change); err != nil {
		if s.metrics != nil {
			s.metrics.JournalAppendFailures.Inc()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeJournalAppendFailed, "append journal entry")
	}
	if s.metrics != nil {
		s.metrics.JournalAppendsTotal.WithLabelValues(string(change.ChangeType)).Inc()
	}
	return change, nil
}

// resolveErf prefers the resident record over the owner record, matching how
// the gate thinks about a person's primary presence.
func (s *Service) resolveErf(ctx context.Context, userID uuid.UUID) string {
	if s.identity == nil {
		return ""
	}
	if r, err := s.identity.FindResidentByUserID(ctx, userID); err == nil {
		return r.ErfNumber
	}
	if o, err := s.identity.FindOwnerByUserID(ctx, userID); err == nil {
		return o.ErfNumber
	}
	return ""
}

// Page is a paginated journal listing.
type Page struct {
	Changes []*models.Change `json:"changes"`
	Total   int              `json:"total"`
	Limit   uint64           `json:"limit"`
	Offset  uint64           `json:"offset"`
}

func (s *Service) page(limit, offset uint64) (uint64, uint64) {
	if limit == 0 {
		limit = s.pageSize
	}
	return limit, offset
}

// CriticalPending lists unreviewed rows on critical fields, newest first.
func (s *Service) CriticalPending(ctx context.Context, limit, offset uint64) (*Page, error) {
	limit, offset = s.page(limit, offset)
	unreviewed, critical := false, true
	changes, total, err := s.store.List(ctx, store.Filter{
		Reviewed: &unreviewed,
		Critical: &critical,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list critical pending changes")
	}
	return &Page{Changes: changes, Total: total, Limit: limit, Offset: offset}, nil
}

// NonCritical lists rows on non-critical fields, optionally restricted to
// unreviewed ones.
func (s *Service) NonCritical(ctx context.Context, onlyUnreviewed bool, limit, offset uint64) (*Page, error) {
	limit, offset = s.page(limit, offset)
	critical := false
	f := store.Filter{Critical: &critical, Limit: limit, Offset: offset}
	if onlyUnreviewed {
		unreviewed := false
		f.Reviewed = &unreviewed
	}
	changes, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list non-critical changes")
	}
	return &Page{Changes: changes, Total: total, Limit: limit, Offset: offset}, nil
}

// AllPending lists unreviewed rows, critical ones first.
func (s *Service) AllPending(ctx context.Context, limit, offset uint64) (*Page, error) {
	limit, offset = s.page(limit, offset)
	unreviewed := false
	changes, total, err := s.store.List(ctx, store.Filter{
		Reviewed:      &unreviewed,
		CriticalFirst: true,
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pending changes")
	}
	return &Page{Changes: changes, Total: total, Limit: limit, Offset: offset}, nil
}

// UserHistory lists every row for a user, newest first.
func (s *Service) UserHistory(ctx context.Context, userID uuid.UUID, limit, offset uint64) (*Page, error) {
	limit, offset = s.page(limit, offset)
	changes, total, err := s.store.List(ctx, store.Filter{
		UserID: &userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list user changes")
	}
	return &Page{Changes: changes, Total: total, Limit: limit, Offset: offset}, nil
}

// MarkReviewed flips review bookkeeping on the listed rows.
func (s *Service) MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string) (int, error) {
	if len(ids) == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "no change ids given")
	}
	n, err := s.store.MarkReviewed(ctx, ids, reviewer, s.now().UTC())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "mark changes reviewed")
	}
	s.logger.InfoContext(ctx, "journal changes reviewed",
		slog.Int("count", n), slog.String("reviewer", reviewer))
	return n, nil
}

// MarkReviewedByField reviews the most recent unreviewed row matching
// (user, field).
func (s *Service) MarkReviewedByField(ctx context.Context, userID uuid.UUID, fieldName, reviewer string) error {
	change, err := s.store.FindLatestUnreviewed(ctx, userID, models.NormalizeFieldName(fieldName))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no unreviewed change for that user and field")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "find unreviewed change")
	}
	if _, err := s.store.MarkReviewed(ctx, []uuid.UUID{change.ID}, reviewer, s.now().UTC()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark change reviewed")
	}
	return nil
}

// MarkExported stamps export bookkeeping; called by the gate register after
// a successful differential export.
func (s *Service) MarkExported(ctx context.Context, ids []uuid.UUID) error {
	if err := s.store.MarkExported(ctx, ids, s.now().UTC()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark changes exported")
	}
	return nil
}

// PendingByUser groups unreviewed rows per user for the change-highlighted
// gate projection.
func (s *Service) PendingByUser(ctx context.Context) (map[uuid.UUID][]*models.Change, error) {
	byUser, err := s.store.ListUnreviewedByUser(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list unreviewed changes by user")
	}
	return byUser, nil
}

// Stats aggregates journal counters for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx, s.now().UTC())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "journal stats")
	}
	return stats, nil
}
