// Package store persists archival snapshots, the deletion log and the
// complaint satellite rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"altona/internal/archive/models"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Postgres implements the archive store over database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the PostgreSQL-backed archive store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
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

// InsertArchive stores a snapshot.
func (s *Postgres) InsertArchive(ctx context.Context, a *models.Archive) error {
	query := `
		INSERT INTO user_archives
			(id, user_id, email, user_type, archive_reason, archived_by, archive_data, retention_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		a.ID, a.UserID, a.Email, a.UserType, a.ArchiveReason, a.ArchivedBy,
		a.ArchiveData, a.RetentionUntil, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user archive: %w", err)
	}
	return nil
}

// FindArchiveByID loads one snapshot.
func (s *Postgres) FindArchiveByID(ctx context.Context, id uuid.UUID) (*models.Archive, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, user_id, email, user_type, archive_reason, archived_by, archive_data, retention_until, created_at
		FROM user_archives WHERE id = $1
	`, id)
	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("archive %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user archive: %w", err)
	}
	return a, nil
}

// ListArchives returns snapshots newest first.
func (s *Postgres) ListArchives(ctx context.Context) ([]*models.Archive, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, email, user_type, archive_reason, archived_by, archive_data, retention_until, created_at
		FROM user_archives ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query user archives: %w", err)
	}
	defer rows.Close()
	var archives []*models.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user archive: %w", err)
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user archives: %w", err)
	}
	return archives, nil
}

// ListExpiredArchives returns snapshots whose retention window has passed.
func (s *Postgres) ListExpiredArchives(ctx context.Context, before time.Time) ([]*models.Archive, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, email, user_type, archive_reason, archived_by, archive_data, retention_until, created_at
		FROM user_archives
		WHERE retention_until IS NOT NULL AND retention_until < $1
	`, before)
	if err != nil {
		return nil, fmt.Errorf("query expired archives: %w", err)
	}
	defer rows.Close()
	var archives []*models.Archive
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired archive: %w", err)
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired archives: %w", err)
	}
	return archives, nil
}

// DeleteArchive removes a snapshot.
func (s *Postgres) DeleteArchive(ctx context.Context, id uuid.UUID) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM user_archives WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user archive: %w", err)
	}
	return nil
}

type archiveScanner interface {
	Scan(dest ...any) error
}

func scanArchive(row archiveScanner) (*models.Archive, error) {
	var (
		a         models.Archive
		retention sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Email, &a.UserType, &a.ArchiveReason,
		&a.ArchivedBy, &a.ArchiveData, &retention, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if retention.Valid {
		t := retention.Time
		a.RetentionUntil = &t
	}
	return &a, nil
}

// InsertDeletionLog records a permanent deletion.
func (s *Postgres) InsertDeletionLog(ctx context.Context, e *models.DeletionLogEntry) error {
	query := `
		INSERT INTO user_deletion_log
			(id, user_id, email, user_type, deletion_reason, deleted_by, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		e.ID, e.UserID, e.Email, e.UserType, e.DeletionReason, e.DeletedBy, e.DeletedAt)
	if err != nil {
		return fmt.Errorf("insert deletion log: %w", err)
	}
	return nil
}

// ListDeletionLog returns the audit log newest first.
func (s *Postgres) ListDeletionLog(ctx context.Context) ([]*models.DeletionLogEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, email, user_type, deletion_reason, deleted_by, deleted_at
		FROM user_deletion_log ORDER BY deleted_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query deletion log: %w", err)
	}
	defer rows.Close()
	var entries []*models.DeletionLogEntry
	for rows.Next() {
		var e models.DeletionLogEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Email, &e.UserType,
			&e.DeletionReason, &e.DeletedBy, &e.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan deletion log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deletion log: %w", err)
	}
	return entries, nil
}

// ListComplaintsByUser returns a user's complaints for snapshotting.
func (s *Postgres) ListComplaintsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Complaint, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, erf_number, subject, body, status, created_at
		FROM complaints WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()
	var complaints []*models.Complaint
	for rows.Next() {
		var c models.Complaint
		err := rows.Scan(&c.ID, &c.UserID, &c.ErfNumber, &c.Subject, &c.Body,
			&c.Status, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		complaints = append(complaints, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complaints: %w", err)
	}
	return complaints, nil
}

// DeleteComplaintsByUser removes the complaint updates then the complaints
// of a user.
func (s *Postgres) DeleteComplaintsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM complaint_updates
		WHERE complaint_id IN (SELECT id FROM complaints WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("delete complaint updates: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM complaints WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete complaints: %w", err)
	}
	return nil
}
