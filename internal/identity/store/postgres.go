// Package store persists users, role records and vehicles. The Postgres
// implementation joins any transaction found in context so migration
// algorithms can span several entities atomically.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"altona/internal/identity/models"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Postgres implements the identity store over database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the PostgreSQL-backed identity store.
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

// mapError translates driver errors into store sentinels.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, sentinel.ErrConflict)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w", what, sentinel.ErrInvalidState)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

const userColumns = `id, email, password_hash, role, status, password_reset_required,
	email_notifications, archived, archived_at, archived_by, archive_reason,
	created_at, updated_at`

func (s *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Status, u.PasswordResetRequired,
		u.EmailNotifications, u.Archived, nullTime(u.ArchivedAt), u.ArchivedBy,
		u.ArchiveReason, u.CreatedAt, u.UpdatedAt,
	)
	return mapError(err, "insert user")
}

func (s *Postgres) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindUsersByEmail returns every account registered under an email, newest
// first. Email is non-unique so multi-ERF presences surface as separate rows.
func (s *Postgres) FindUsersByEmail(ctx context.Context, email string) ([]*models.User, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, mapError(err, "query users by email")
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users SET
			email = $2, password_hash = $3, role = $4, status = $5,
			password_reset_required = $6, email_notifications = $7,
			archived = $8, archived_at = $9, archived_by = $10, archive_reason = $11,
			updated_at = $12
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Status,
		u.PasswordResetRequired, u.EmailNotifications,
		u.Archived, nullTime(u.ArchivedAt), u.ArchivedBy, u.ArchiveReason,
		u.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update user")
	}
	return requireAffected(res, "user")
}

func (s *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete user")
	}
	return requireAffected(res, "user")
}

func (s *Postgres) ListUsersByStatus(ctx context.Context, status models.UserStatus) ([]*models.User, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, mapError(err, "query users by status")
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u          models.User
		archivedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.PasswordResetRequired, &u.EmailNotifications, &u.Archived,
		&archivedAt, &u.ArchivedBy, &u.ArchiveReason, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "scan user")
	}
	u.ArchivedAt = timePtr(archivedAt)
	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		var (
			u          models.User
			archivedAt sql.NullTime
		)
		err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
			&u.PasswordResetRequired, &u.EmailNotifications, &u.Archived,
			&archivedAt, &u.ArchivedBy, &u.ArchiveReason, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, mapError(err, "scan user")
		}
		u.ArchivedAt = timePtr(archivedAt)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate users")
	}
	return users, nil
}

// -----------------------------------------------------------------------------
// Residents
// -----------------------------------------------------------------------------

const residentColumns = `id, user_id, first_name, last_name, id_number, phone_number,
	emergency_contact_name, emergency_contact_number, erf_number, street_number,
	street_name, full_address, intercom_code, moving_in_date, moving_out_date,
	status, migration_date, migration_reason, created_at, updated_at`

func (s *Postgres) CreateResident(ctx context.Context, r *models.Resident) error {
	query := `
		INSERT INTO residents (` + residentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID, r.UserID, r.FirstName, r.LastName, r.IDNumber, r.PhoneNumber,
		r.EmergencyContactName, r.EmergencyContactNumber, r.ErfNumber, r.StreetNumber,
		r.StreetName, r.FullAddress, r.IntercomCode, nullTime(r.MovingInDate),
		nullTime(r.MovingOutDate), r.Status, nullTime(r.MigrationDate),
		r.MigrationReason, r.CreatedAt, r.UpdatedAt,
	)
	return mapError(err, "insert resident")
}

func (s *Postgres) FindResidentByUserID(ctx context.Context, userID uuid.UUID) (*models.Resident, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+residentColumns+` FROM residents WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err, "query resident")
	}
	defer rows.Close()
	residents, err := scanResidents(rows)
	if err != nil {
		return nil, err
	}
	if len(residents) == 0 {
		return nil, fmt.Errorf("resident: %w", sentinel.ErrNotFound)
	}
	return residents[0], nil
}

func (s *Postgres) FindResidentByID(ctx context.Context, id uuid.UUID) (*models.Resident, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+residentColumns+` FROM residents WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "query resident by id")
	}
	defer rows.Close()
	residents, err := scanResidents(rows)
	if err != nil {
		return nil, err
	}
	if len(residents) == 0 {
		return nil, fmt.Errorf("resident %s: %w", id, sentinel.ErrNotFound)
	}
	return residents[0], nil
}

func (s *Postgres) ListResidentsByErf(ctx context.Context, erfNumber string) ([]*models.Resident, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+residentColumns+` FROM residents WHERE erf_number = $1`, erfNumber)
	if err != nil {
		return nil, mapError(err, "query residents by erf")
	}
	defer rows.Close()
	return scanResidents(rows)
}

// ListGateResidents returns resident records visible at the gate: record and
// user both in an active state, owning user not an admin.
func (s *Postgres) ListGateResidents(ctx context.Context) ([]*models.Resident, error) {
	query := `
		SELECT ` + prefixColumns("r", residentColumns) + `
		FROM residents r
		JOIN users u ON u.id = r.user_id
		WHERE r.status IN ('active', 'approved')
		  AND u.status IN ('active', 'approved')
		  AND u.role <> 'admin'
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "query gate residents")
	}
	defer rows.Close()
	return scanResidents(rows)
}

func (s *Postgres) UpdateResident(ctx context.Context, r *models.Resident) error {
	query := `
		UPDATE residents SET
			first_name = $2, last_name = $3, id_number = $4, phone_number = $5,
			emergency_contact_name = $6, emergency_contact_number = $7,
			erf_number = $8, street_number = $9, street_name = $10, full_address = $11,
			intercom_code = $12, moving_in_date = $13, moving_out_date = $14,
			status = $15, migration_date = $16, migration_reason = $17, updated_at = $18
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		r.ID, r.FirstName, r.LastName, r.IDNumber, r.PhoneNumber,
		r.EmergencyContactName, r.EmergencyContactNumber,
		r.ErfNumber, r.StreetNumber, r.StreetName, r.FullAddress,
		r.IntercomCode, nullTime(r.MovingInDate), nullTime(r.MovingOutDate),
		r.Status, nullTime(r.MigrationDate), r.MigrationReason, r.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update resident")
	}
	return requireAffected(res, "resident")
}

func (s *Postgres) DeleteResident(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM residents WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete resident")
	}
	return requireAffected(res, "resident")
}

func scanResidents(rows *sql.Rows) ([]*models.Resident, error) {
	var residents []*models.Resident
	for rows.Next() {
		var (
			r                            models.Resident
			movingIn, movingOut, migDate sql.NullTime
		)
		err := rows.Scan(&r.ID, &r.UserID, &r.FirstName, &r.LastName, &r.IDNumber,
			&r.PhoneNumber, &r.EmergencyContactName, &r.EmergencyContactNumber,
			&r.ErfNumber, &r.StreetNumber, &r.StreetName, &r.FullAddress,
			&r.IntercomCode, &movingIn, &movingOut, &r.Status, &migDate,
			&r.MigrationReason, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, mapError(err, "scan resident")
		}
		r.MovingInDate = timePtr(movingIn)
		r.MovingOutDate = timePtr(movingOut)
		r.MigrationDate = timePtr(migDate)
		residents = append(residents, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate residents")
	}
	return residents, nil
}

// -----------------------------------------------------------------------------
// Owners
// -----------------------------------------------------------------------------

const ownerColumns = `id, user_id, first_name, last_name, id_number, phone_number,
	emergency_contact_name, emergency_contact_number, erf_number, street_number,
	street_name, full_address, intercom_code, title_deed_number, acquisition_date,
	postal_street, postal_suburb, postal_city, postal_code, full_postal_address,
	moving_in_date, moving_out_date, status, migration_date, migration_reason,
	created_at, updated_at`

func (s *Postgres) CreateOwner(ctx context.Context, o *models.Owner) error {
	query := `
		INSERT INTO owners (` + ownerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		o.ID, o.UserID, o.FirstName, o.LastName, o.IDNumber, o.PhoneNumber,
		o.EmergencyContactName, o.EmergencyContactNumber, o.ErfNumber, o.StreetNumber,
		o.StreetName, o.FullAddress, o.IntercomCode, o.TitleDeedNumber,
		nullTime(o.AcquisitionDate), o.PostalAddress.Street, o.PostalAddress.Suburb,
		o.PostalAddress.City, o.PostalAddress.Code, o.PostalAddress.Compose(),
		nullTime(o.MovingInDate), nullTime(o.MovingOutDate), o.Status,
		nullTime(o.MigrationDate), o.MigrationReason, o.CreatedAt, o.UpdatedAt,
	)
	return mapError(err, "insert owner")
}

func (s *Postgres) FindOwnerByUserID(ctx context.Context, userID uuid.UUID) (*models.Owner, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err, "query owner")
	}
	defer rows.Close()
	owners, err := scanOwners(rows)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("owner: %w", sentinel.ErrNotFound)
	}
	return owners[0], nil
}

func (s *Postgres) FindOwnerByID(ctx context.Context, id uuid.UUID) (*models.Owner, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "query owner by id")
	}
	defer rows.Close()
	owners, err := scanOwners(rows)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, fmt.Errorf("owner %s: %w", id, sentinel.ErrNotFound)
	}
	return owners[0], nil
}

func (s *Postgres) ListOwnersByErf(ctx context.Context, erfNumber string) ([]*models.Owner, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+ownerColumns+` FROM owners WHERE erf_number = $1`, erfNumber)
	if err != nil {
		return nil, mapError(err, "query owners by erf")
	}
	defer rows.Close()
	return scanOwners(rows)
}

// ListGateOwners returns owner records visible at the gate.
func (s *Postgres) ListGateOwners(ctx context.Context) ([]*models.Owner, error) {
	query := `
		SELECT ` + prefixColumns("o", ownerColumns) + `
		FROM owners o
		JOIN users u ON u.id = o.user_id
		WHERE o.status IN ('active', 'approved')
		  AND u.status IN ('active', 'approved')
		  AND u.role <> 'admin'
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err, "query gate owners")
	}
	defer rows.Close()
	return scanOwners(rows)
}

func (s *Postgres) UpdateOwner(ctx context.Context, o *models.Owner) error {
	query := `
		UPDATE owners SET
			first_name = $2, last_name = $3, id_number = $4, phone_number = $5,
			emergency_contact_name = $6, emergency_contact_number = $7,
			erf_number = $8, street_number = $9, street_name = $10, full_address = $11,
			intercom_code = $12, title_deed_number = $13, acquisition_date = $14,
			postal_street = $15, postal_suburb = $16, postal_city = $17,
			postal_code = $18, full_postal_address = $19,
			moving_in_date = $20, moving_out_date = $21, status = $22,
			migration_date = $23, migration_reason = $24, updated_at = $25
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		o.ID, o.FirstName, o.LastName, o.IDNumber, o.PhoneNumber,
		o.EmergencyContactName, o.EmergencyContactNumber,
		o.ErfNumber, o.StreetNumber, o.StreetName, o.FullAddress,
		o.IntercomCode, o.TitleDeedNumber, nullTime(o.AcquisitionDate),
		o.PostalAddress.Street, o.PostalAddress.Suburb, o.PostalAddress.City,
		o.PostalAddress.Code, o.PostalAddress.Compose(),
		nullTime(o.MovingInDate), nullTime(o.MovingOutDate), o.Status,
		nullTime(o.MigrationDate), o.MigrationReason, o.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update owner")
	}
	return requireAffected(res, "owner")
}

func (s *Postgres) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM owners WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete owner")
	}
	return requireAffected(res, "owner")
}

func scanOwners(rows *sql.Rows) ([]*models.Owner, error) {
	var owners []*models.Owner
	for rows.Next() {
		var (
			o                                         models.Owner
			acquisition, movingIn, movingOut, migDate sql.NullTime
			fullPostal                                string
		)
		err := rows.Scan(&o.ID, &o.UserID, &o.FirstName, &o.LastName, &o.IDNumber,
			&o.PhoneNumber, &o.EmergencyContactName, &o.EmergencyContactNumber,
			&o.ErfNumber, &o.StreetNumber, &o.StreetName, &o.FullAddress,
			&o.IntercomCode, &o.TitleDeedNumber, &acquisition,
			&o.PostalAddress.Street, &o.PostalAddress.Suburb, &o.PostalAddress.City,
			&o.PostalAddress.Code, &fullPostal,
			&movingIn, &movingOut, &o.Status, &migDate,
			&o.MigrationReason, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, mapError(err, "scan owner")
		}
		o.AcquisitionDate = timePtr(acquisition)
		o.MovingInDate = timePtr(movingIn)
		o.MovingOutDate = timePtr(movingOut)
		o.MigrationDate = timePtr(migDate)
		owners = append(owners, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate owners")
	}
	return owners, nil
}

// -----------------------------------------------------------------------------
// Vehicles
// -----------------------------------------------------------------------------

const vehicleColumns = `id, resident_id, owner_id, registration_number, make, model,
	color, status, migration_date, migration_reason, created_at, updated_at`

func (s *Postgres) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		v.ID, nullUUID(v.ResidentID), nullUUID(v.OwnerID), v.RegistrationNumber,
		v.Make, v.Model, v.Color, v.Status, nullTime(v.MigrationDate),
		v.MigrationReason, v.CreatedAt, v.UpdatedAt,
	)
	return mapError(err, "insert vehicle")
}

func (s *Postgres) FindVehicleByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "query vehicle")
	}
	defer rows.Close()
	vehicles, err := scanVehicles(rows)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("vehicle: %w", sentinel.ErrNotFound)
	}
	return vehicles[0], nil
}

// FindActiveVehicleByRegistration resolves the uniqueness probe used before
// inserting a vehicle.
func (s *Postgres) FindActiveVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE registration_number = $1 AND status = 'active'`,
		registration)
	if err != nil {
		return nil, mapError(err, "query vehicle by registration")
	}
	defer rows.Close()
	vehicles, err := scanVehicles(rows)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("vehicle: %w", sentinel.ErrNotFound)
	}
	return vehicles[0], nil
}

func (s *Postgres) ListVehiclesByResidentID(ctx context.Context, residentID uuid.UUID) ([]*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE resident_id = $1`, residentID)
	if err != nil {
		return nil, mapError(err, "query vehicles by resident")
	}
	defer rows.Close()
	return scanVehicles(rows)
}

func (s *Postgres) ListVehiclesByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, mapError(err, "query vehicles by owner")
	}
	defer rows.Close()
	return scanVehicles(rows)
}

func (s *Postgres) ListActiveVehicles(ctx context.Context) ([]*models.Vehicle, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE status = 'active'`)
	if err != nil {
		return nil, mapError(err, "query active vehicles")
	}
	defer rows.Close()
	return scanVehicles(rows)
}

func (s *Postgres) UpdateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		UPDATE vehicles SET
			resident_id = $2, owner_id = $3, registration_number = $4,
			make = $5, model = $6, color = $7, status = $8,
			migration_date = $9, migration_reason = $10, updated_at = $11
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		v.ID, nullUUID(v.ResidentID), nullUUID(v.OwnerID), v.RegistrationNumber,
		v.Make, v.Model, v.Color, v.Status, nullTime(v.MigrationDate),
		v.MigrationReason, v.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update vehicle")
	}
	return requireAffected(res, "vehicle")
}

func (s *Postgres) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete vehicle")
	}
	return requireAffected(res, "vehicle")
}

func scanVehicles(rows *sql.Rows) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	for rows.Next() {
		var (
			v                    models.Vehicle
			residentID, ownerID  uuid.NullUUID
			migDate              sql.NullTime
		)
		err := rows.Scan(&v.ID, &residentID, &ownerID, &v.RegistrationNumber,
			&v.Make, &v.Model, &v.Color, &v.Status, &migDate,
			&v.MigrationReason, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, mapError(err, "scan vehicle")
		}
		v.ResidentID = uuidPtr(residentID)
		v.OwnerID = uuidPtr(ownerID)
		v.MigrationDate = timePtr(migDate)
		vehicles = append(vehicles, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "iterate vehicles")
	}
	return vehicles, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
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

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	out := ""
	for i, col := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

func splitColumns(columns string) []string {
	var (
		cols []string
		cur  []rune
	)
	for _, r := range columns {
		switch r {
		case ',':
			cols = append(cols, string(cur))
			cur = cur[:0]
		case ' ', '\n', '\t':
			// skip whitespace between columns
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		cols = append(cols, string(cur))
	}
	return cols
}
