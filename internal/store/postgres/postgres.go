package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PoolOptions tunes the database/sql connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingAttempts    int
	PingInterval    time.Duration
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 5 * time.Minute
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = time.Minute
	}
	if o.PingAttempts <= 0 {
		o.PingAttempts = 5
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 2 * time.Second
	}
	return o
}

func NewDB(ctx context.Context, databaseURL string, opts PoolOptions) (*sql.DB, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pingWithRetry(ctx, db, opts); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	return db, nil
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// pingWithRetry waits for Postgres, which may still be starting when the
// service boots next to it.
func pingWithRetry(ctx context.Context, db pinger, opts PoolOptions) error {
	var pingErr error
	for attempt := 1; attempt <= opts.PingAttempts; attempt++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		if attempt == opts.PingAttempts {
			break
		}
		slog.Warn("database not ready, retrying", "attempt", attempt, "error", pingErr)
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database: %w", ctx.Err())
		case <-time.After(opts.PingInterval):
		}
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", opts.PingAttempts, pingErr)
}
