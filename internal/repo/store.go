package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bazarcheh/auth-service/internal/auth"
)

// DBTX is the subset of database/sql satisfied by both *sql.DB and
// *sql.Tx, so every query method works inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements auth.Datastore over PostgreSQL.
type Store struct {
	db *sql.DB // nil when the store is transaction-scoped
	q  DBTX
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithinTx runs fn against a transaction-scoped Store. Nested calls reuse
// the surrounding transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(auth.Datastore) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
