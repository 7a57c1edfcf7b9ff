// Package store persists the ERF address directory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"altona/internal/directory/models"
	"altona/pkg/platform/sentinel"
	txcontext "altona/pkg/platform/tx"
)

// Postgres implements the directory store over database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the PostgreSQL-backed directory store.
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

// Upsert inserts or replaces the mapping for its ERF number.
func (s *Postgres) Upsert(ctx context.Context, m *models.Mapping) error {
	query := `
		INSERT INTO erf_address_mappings
			(id, erf_number, street_number, street_name, suburb, postal_code, full_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (erf_number) DO UPDATE SET
			street_number = EXCLUDED.street_number,
			street_name   = EXCLUDED.street_name,
			suburb        = EXCLUDED.suburb,
			postal_code   = EXCLUDED.postal_code,
			full_address  = EXCLUDED.full_address,
			updated_at    = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		m.ID, m.ErfNumber, m.StreetNumber, m.StreetName, m.Suburb, m.PostalCode,
		m.FullAddress, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert erf mapping: %w", err)
	}
	return nil
}

// FindByErf looks up one mapping.
func (s *Postgres) FindByErf(ctx context.Context, erfNumber string) (*models.Mapping, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, erf_number, street_number, street_name, suburb, postal_code, full_address, created_at, updated_at
		FROM erf_address_mappings WHERE erf_number = $1
	`, erfNumber)
	var m models.Mapping
	err := row.Scan(&m.ID, &m.ErfNumber, &m.StreetNumber, &m.StreetName, &m.Suburb,
		&m.PostalCode, &m.FullAddress, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("erf %s: %w", erfNumber, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan erf mapping: %w", err)
	}
	return &m, nil
}

// List returns every mapping ordered by ERF number.
func (s *Postgres) List(ctx context.Context) ([]*models.Mapping, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, erf_number, street_number, street_name, suburb, postal_code, full_address, created_at, updated_at
		FROM erf_address_mappings ORDER BY erf_number
	`)
	if err != nil {
		return nil, fmt.Errorf("query erf mappings: %w", err)
	}
	defer rows.Close()
	var mappings []*models.Mapping
	for rows.Next() {
		var m models.Mapping
		err := rows.Scan(&m.ID, &m.ErfNumber, &m.StreetNumber, &m.StreetName, &m.Suburb,
			&m.PostalCode, &m.FullAddress, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan erf mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate erf mappings: %w", err)
	}
	return mappings, nil
}
