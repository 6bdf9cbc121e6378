// Package tx carries the transaction plumbing shared by both registries.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Querier is the query surface shared by *sql.DB and *sql.Tx. Stores resolve
// it through Resolve so statements join the ambient transaction when one is
// running.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Resolve returns the ambient transaction when the context carries one, and
// the fallback otherwise.
func Resolve(ctx context.Context, fallback Querier) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return fallback
}

// Serializer is the single serialization primitive for registry mutations.
// Both registries share one instance so every mutating operation, including
// a proof operation that reaches into the authority registry, executes as
// one atomic, non-interleaved unit. Operations never block inside the
// critical section; they validate, mutate, and return.
type Serializer struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSerializer builds a Serializer for memory-backed stores.
func NewSerializer() *Serializer { return &Serializer{} }

// NewSQLSerializer builds a Serializer that additionally opens one SQL
// transaction per critical section, so a mutation spanning both registries
// commits or rolls back as a unit.
func NewSQLSerializer(db *sql.DB) *Serializer { return &Serializer{db: db} }

// RunInTx executes fn while holding the mutation lock. When the Serializer
// is SQL-backed, fn runs inside a single transaction carried on the context;
// stores pick it up through Resolve. fn must not call back into a serialized
// entry point; cross-registry work goes through the ...InTx directory
// methods instead.
func (s *Serializer) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fn(ctx)
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if err := fn(WithTx(ctx, dbtx)); err != nil {
		return err
	}
	return dbtx.Commit()
}
