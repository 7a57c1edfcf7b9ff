// Package store persists change-journal rows. Rows are append-only; the only
// UPDATE statements touch review and export bookkeeping columns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"altona/internal/journal/models"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Filter narrows journal listings. Nil pointer fields mean "no constraint".
type Filter struct {
	Reviewed      *bool
	Critical      *bool
	UserID        *uuid.UUID
	CriticalFirst bool
	Limit         uint64
	Offset        uint64
}

// criticalFieldNames is the SQL-side rendering of the derived critical set.
// Vehicle additions are critical through vehicle_registration being listed.
var criticalFieldNames = []string{
	models.FieldCellphoneNumber,
	models.FieldVehicleRegistration,
	models.FieldVehicleRegistration2,
}

// Postgres implements the journal store over database/sql.
type Postgres struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgres creates the PostgreSQL-backed journal store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const changeColumns = `id, user_id, user_name, erf_number, change_type, field_name,
	old_value, new_value, change_timestamp, admin_reviewed, admin_reviewer,
	review_timestamp, exported_to_external, export_timestamp, notes`

func (s *Postgres) Insert(ctx context.Context, c *models.Change) error {
	query := `
		INSERT INTO user_changes (` + changeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		c.ID, c.UserID, c.UserName, c.ErfNumber, c.ChangeType, c.FieldName,
		c.OldValue, c.NewValue, c.ChangeTimestamp, c.AdminReviewed, c.AdminReviewer,
		nullTime(c.ReviewTimestamp), c.ExportedToExternal, nullTime(c.ExportTimestamp),
		c.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Change, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+changeColumns+` FROM user_changes WHERE id = $1`, id)
	c, err := scanChangeRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("change %s: %w", id, sentinel.ErrNotFound)
	}
	return c, err
}

// List returns matching rows and the total count before pagination.
func (s *Postgres) List(ctx context.Context, f Filter) ([]*models.Change, int, error) {
	where := s.filterPredicates(f)

	countSQL, countArgs, err := s.sb.Select("COUNT(*)").From("user_changes").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.q(ctx).QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count changes: %w", err)
	}

	builder := s.sb.Select(changeColumns).From("user_changes").Where(where)
	if f.CriticalFirst {
		builder = builder.OrderByClause(
			"(field_name = ANY(?)) DESC, change_timestamp DESC", criticalArray())
	} else {
		builder = builder.OrderBy("change_timestamp DESC")
	}
	if f.Limit > 0 {
		builder = builder.Limit(f.Limit).Offset(f.Offset)
	}
	listSQL, listArgs, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()
	changes, err := scanChanges(rows)
	if err != nil {
		return nil, 0, err
	}
	return changes, total, nil
}

func (s *Postgres) filterPredicates(f Filter) sq.And {
	where := sq.And{}
	if f.Reviewed != nil {
		where = append(where, sq.Eq{"admin_reviewed": *f.Reviewed})
	}
	if f.UserID != nil {
		where = append(where, sq.Eq{"user_id": *f.UserID})
	}
	if f.Critical != nil {
		if *f.Critical {
			where = append(where, sq.Eq{"field_name": criticalFieldNames})
		} else {
			where = append(where, sq.NotEq{"field_name": criticalFieldNames})
		}
	}
	if len(where) == 0 {
		where = append(where, sq.Expr("TRUE"))
	}
	return where
}

// MarkReviewed flips review bookkeeping on the given rows and returns how
// many rows changed state.
func (s *Postgres) MarkReviewed(ctx context.Context, ids []uuid.UUID, reviewer string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := s.sb.Update("user_changes").
		Set("admin_reviewed", true).
		Set("admin_reviewer", reviewer).
		Set("review_timestamp", at).
		Where(sq.Eq{"id": ids, "admin_reviewed": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build review update: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// FindLatestUnreviewed resolves the (user, field) form of mark-reviewed.
func (s *Postgres) FindLatestUnreviewed(ctx context.Context, userID uuid.UUID, fieldName string) (*models.Change, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+changeColumns+`
		FROM user_changes
		WHERE user_id = $1 AND field_name = $2 AND admin_reviewed = FALSE
		ORDER BY change_timestamp DESC
		LIMIT 1
	`, userID, fieldName)
	c, err := scanChangeRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unreviewed change for user %s field %s: %w",
			userID, fieldName, sentinel.ErrNotFound)
	}
	return c, err
}

// MarkExported stamps export bookkeeping on the given rows.
func (s *Postgres) MarkExported(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := s.sb.Update("user_changes").
		Set("exported_to_external", true).
		Set("export_timestamp", at).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build export update: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

// ListUnreviewedByUser groups pending rows per user for the
// change-highlighted gate projection.
func (s *Postgres) ListUnreviewedByUser(ctx context.Context) (map[uuid.UUID][]*models.Change, error) {
	unreviewed := false
	changes, _, err := s.List(ctx, Filter{Reviewed: &unreviewed})
	if err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID][]*models.Change)
	for _, c := range changes {
		byUser[c.UserID] = append(byUser[c.UserID], c)
	}
	return byUser, nil
}

// Stats aggregates journal counters. Pending splits are computed in Go from
// one unreviewed scan so the critical classification lives in exactly one
// place.
func (s *Postgres) Stats(ctx context.Context, now time.Time) (*models.Stats, error) {
	stats := &models.Stats{
		ByChangeType: make(map[string]int),
		ByFieldName:  make(map[string]int),
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_changes WHERE change_timestamp >= $1`, dayStart).
		Scan(&stats.Today)
	if err != nil {
		return nil, fmt.Errorf("count today: %w", err)
	}
	err = s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_changes WHERE change_timestamp >= $1`, now.AddDate(0, 0, -7)).
		Scan(&stats.LastSevenDays)
	if err != nil {
		return nil, fmt.Errorf("count last seven days: %w", err)
	}

	unreviewed := false
	pending, _, err := s.List(ctx, Filter{Reviewed: &unreviewed})
	if err != nil {
		return nil, err
	}
	for _, c := range pending {
		if c.Critical() {
			stats.CriticalPending++
		} else {
			stats.NonCriticalPending++
		}
	}

	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT change_type, COUNT(*) FROM user_changes GROUP BY change_type`)
	if err != nil {
		return nil, fmt.Errorf("count by change type: %w", err)
	}
	defer rows.Close()
	if err := scanCounts(rows, stats.ByChangeType); err != nil {
		return nil, err
	}

	fieldRows, err := s.q(ctx).QueryContext(ctx,
		`SELECT field_name, COUNT(*) FROM user_changes GROUP BY field_name`)
	if err != nil {
		return nil, fmt.Errorf("count by field name: %w", err)
	}
	defer fieldRows.Close()
	if err := scanCounts(fieldRows, stats.ByFieldName); err != nil {
		return nil, err
	}
	return stats, nil
}

func scanCounts(rows *sql.Rows, into map[string]int) error {
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate counts: %w", err)
	}
	return nil
}

func scanChangeRow(row *sql.Row) (*models.Change, error) {
	var (
		c                  models.Change
		reviewAt, exportAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.UserName, &c.ErfNumber, &c.ChangeType,
		&c.FieldName, &c.OldValue, &c.NewValue, &c.ChangeTimestamp,
		&c.AdminReviewed, &c.AdminReviewer, &reviewAt,
		&c.ExportedToExternal, &exportAt, &c.Notes)
	if err != nil {
		return nil, err
	}
	c.ReviewTimestamp = nullTimePtr(reviewAt)
	c.ExportTimestamp = nullTimePtr(exportAt)
	return &c, nil
}

func scanChanges(rows *sql.Rows) ([]*models.Change, error) {
	var changes []*models.Change
	for rows.Next() {
		var (
			c                  models.Change
			reviewAt, exportAt sql.NullTime
		)
		err := rows.Scan(&c.ID, &c.UserID, &c.UserName, &c.ErfNumber, &c.ChangeType,
			&c.FieldName, &c.OldValue, &c.NewValue, &c.ChangeTimestamp,
			&c.AdminReviewed, &c.AdminReviewer, &reviewAt,
			&c.ExportedToExternal, &exportAt, &c.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.ReviewTimestamp = nullTimePtr(reviewAt)
		c.ExportTimestamp = nullTimePtr(exportAt)
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

func criticalArray() any {
	// pgx binds []string as a text array for = ANY(...).
	return criticalFieldNames
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
