package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/znz-systems/leadbridge/internal/store"
)

// querier is the subset of *sql.DB and *sql.Tx the gateway needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Gateway implements store.Gateway on PostgreSQL. A Gateway created by
// NewGateway owns the pool; the one handed to a WithinTx callback is bound to
// the transaction.
type Gateway struct {
	db *sql.DB
	q  querier
}

var _ store.Gateway = (*Gateway)(nil)

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db, q: db}
}

func (g *Gateway) WithinTx(ctx context.Context, fn func(tx store.Gateway) error) error {
	if g.db == nil {
		return fn(g)
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Gateway{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	if g.db == nil {
		return nil
	}
	return g.db.PingContext(ctx)
}
