package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Runner executes a function within a transaction boundary. Stores joining
// the transaction read it back out of the context via From.
type Runner interface {
	RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs functions inside serializable database transactions.
type SQLRunner struct {
	db *sql.DB
}

// NewSQLRunner creates a Runner over a database handle.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunSerializable opens a serializable transaction, stores it in the context
// and commits if fn succeeds. Any error rolls the whole transaction back.
func (r *SQLRunner) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NopRunner executes the function directly with no transaction. Memory
// stores are already atomic per call; tests use this.
type NopRunner struct{}

// RunSerializable implements Runner.
func (NopRunner) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
