// Package store persists transition requests, their audit updates and
// declared vehicles.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"altona/internal/transition/models"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Filter narrows request listings.
type Filter struct {
	Status   *models.RequestStatus
	Priority *models.Priority
	UserID   *uuid.UUID
	Erf      string
}

// Postgres implements the transition store over database/sql.
type Postgres struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgres creates the PostgreSQL-backed transition store.
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

const requestColumns = `id, user_id, erf_number, request_type, current_role,
	new_occupant_type, new_occupant_name, new_occupant_email, new_occupant_phone,
	new_occupant_id_number, intended_moveout_date, property_sold,
	estate_agent_notified, access_handover_agreed, adults_count, children_count,
	pets_count, moveout_reason, notes, status, priority, assigned_admin,
	admin_notes, migration_completed, migration_date, completion_date,
	new_user_id, created_at, updated_at`

func (s *Postgres) CreateRequest(ctx context.Context, r *models.Request) error {
	query := `
		INSERT INTO user_transition_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID, r.UserID, r.ErfNumber, r.RequestType, r.CurrentRole,
		r.NewOccupantType, r.NewOccupantName, r.NewOccupantEmail, r.NewOccupantPhone,
		r.NewOccupantIDNumber, nullTime(r.IntendedMoveoutDate), r.PropertySold,
		r.EstateAgentNotified, r.AccessHandoverAgreed, r.AdultsCount, r.ChildrenCount,
		r.PetsCount, r.MoveoutReason, r.Notes, r.Status, r.Priority, r.AssignedAdmin,
		r.AdminNotes, r.MigrationCompleted, nullTime(r.MigrationDate),
		nullTime(r.CompletionDate), nullUUID(r.NewUserID), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition request: %w", err)
	}
	return nil
}

func (s *Postgres) FindRequestByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+requestColumns+` FROM user_transition_requests WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query transition request: %w", err)
	}
	defer rows.Close()
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("transition request %s: %w", id, sentinel.ErrNotFound)
	}
	return requests[0], nil
}

func (s *Postgres) ListRequests(ctx context.Context, f Filter) ([]*models.Request, error) {
	builder := s.sb.Select(requestColumns).
		From("user_transition_requests").
		OrderBy("created_at DESC")
	if f.Status != nil {
		builder = builder.Where(sq.Eq{"status": *f.Status})
	}
	if f.Priority != nil {
		builder = builder.Where(sq.Eq{"priority": *f.Priority})
	}
	if f.UserID != nil {
		builder = builder.Where(sq.Eq{"user_id": *f.UserID})
	}
	if f.Erf != "" {
		builder = builder.Where(sq.Eq{"erf_number": f.Erf})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build request query: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transition requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *Postgres) UpdateRequest(ctx context.Context, r *models.Request) error {
	query := `
		UPDATE user_transition_requests SET
			new_occupant_type = $2, new_occupant_name = $3, new_occupant_email = $4,
			new_occupant_phone = $5, new_occupant_id_number = $6,
			intended_moveout_date = $7, property_sold = $8, estate_agent_notified = $9,
			access_handover_agreed = $10, adults_count = $11, children_count = $12,
			pets_count = $13, moveout_reason = $14, notes = $15, status = $16,
			priority = $17, assigned_admin = $18, admin_notes = $19,
			migration_completed = $20, migration_date = $21, completion_date = $22,
			new_user_id = $23, updated_at = $24
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		r.ID, r.NewOccupantType, r.NewOccupantName, r.NewOccupantEmail,
		r.NewOccupantPhone, r.NewOccupantIDNumber,
		nullTime(r.IntendedMoveoutDate), r.PropertySold, r.EstateAgentNotified,
		r.AccessHandoverAgreed, r.AdultsCount, r.ChildrenCount,
		r.PetsCount, r.MoveoutReason, r.Notes, r.Status,
		r.Priority, r.AssignedAdmin, r.AdminNotes,
		r.MigrationCompleted, nullTime(r.MigrationDate), nullTime(r.CompletionDate),
		nullUUID(r.NewUserID), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transition request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transition request %s: %w", r.ID, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteRequestsByUser removes all requests a user opened; updates and
// declared vehicles go with them via cascade.
func (s *Postgres) DeleteRequestsByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM user_transition_requests WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete transition requests: %w", err)
	}
	return nil
}

func (s *Postgres) InsertUpdate(ctx context.Context, u *models.Update) error {
	query := `
		INSERT INTO transition_request_updates
			(id, request_id, update_type, old_status, new_status, comment, author, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		u.ID, u.RequestID, u.UpdateType, u.OldStatus, u.NewStatus,
		u.Comment, u.Author, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transition update: %w", err)
	}
	return nil
}

func (s *Postgres) ListUpdates(ctx context.Context, requestID uuid.UUID) ([]*models.Update, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, request_id, update_type, old_status, new_status, comment, author, created_at
		FROM transition_request_updates
		WHERE request_id = $1
		ORDER BY created_at
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query transition updates: %w", err)
	}
	defer rows.Close()
	var updates []*models.Update
	for rows.Next() {
		var u models.Update
		err := rows.Scan(&u.ID, &u.RequestID, &u.UpdateType, &u.OldStatus,
			&u.NewStatus, &u.Comment, &u.Author, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transition update: %w", err)
		}
		updates = append(updates, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition updates: %w", err)
	}
	return updates, nil
}

func (s *Postgres) InsertVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO transition_vehicles
			(id, request_id, registration_number, make, model, color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		v.ID, v.RequestID, v.RegistrationNumber, v.Make, v.Model, v.Color, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transition vehicle: %w", err)
	}
	return nil
}

func (s *Postgres) ListVehicles(ctx context.Context, requestID uuid.UUID) ([]*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, request_id, registration_number, make, model, color, created_at
		FROM transition_vehicles WHERE request_id = $1 ORDER BY created_at
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query transition vehicles: %w", err)
	}
	defer rows.Close()
	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		err := rows.Scan(&v.ID, &v.RequestID, &v.RegistrationNumber,
			&v.Make, &v.Model, &v.Color, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transition vehicle: %w", err)
		}
		vehicles = append(vehicles, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition vehicles: %w", err)
	}
	return vehicles, nil
}

// Stats aggregates request counters by status, priority and type.
func (s *Postgres) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for column, into := range map[string]map[string]int{
		"status":       stats.ByStatus,
		"priority":     stats.ByPriority,
		"request_type": stats.ByType,
	} {
		rows, err := s.q(ctx).QueryContext(ctx,
			`SELECT `+column+`, COUNT(*) FROM user_transition_requests GROUP BY `+column)
		if err != nil {
			return nil, fmt.Errorf("count by %s: %w", column, err)
		}
		for rows.Next() {
			var (
				key string
				n   int
			)
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan count: %w", err)
			}
			into[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate counts: %w", err)
		}
		rows.Close()
	}
	return stats, nil
}

func scanRequests(rows *sql.Rows) ([]*models.Request, error) {
	var requests []*models.Request
	for rows.Next() {
		var (
			r                             models.Request
			moveout, migDate, completedAt sql.NullTime
			newUserID                     uuid.NullUUID
		)
		err := rows.Scan(&r.ID, &r.UserID, &r.ErfNumber, &r.RequestType, &r.CurrentRole,
			&r.NewOccupantType, &r.NewOccupantName, &r.NewOccupantEmail, &r.NewOccupantPhone,
			&r.NewOccupantIDNumber, &moveout, &r.PropertySold,
			&r.EstateAgentNotified, &r.AccessHandoverAgreed, &r.AdultsCount, &r.ChildrenCount,
			&r.PetsCount, &r.MoveoutReason, &r.Notes, &r.Status, &r.Priority, &r.AssignedAdmin,
			&r.AdminNotes, &r.MigrationCompleted, &migDate, &completedAt,
			&newUserID, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transition request: %w", err)
		}
		r.IntendedMoveoutDate = timePtr(moveout)
		r.MigrationDate = timePtr(migDate)
		r.CompletionDate = timePtr(completedAt)
		r.NewUserID = uuidPtr(newUserID)
		requests = append(requests, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition requests: %w", err)
	}
	return requests, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
