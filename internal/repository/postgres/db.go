// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS policies (
		policy_number  BIGINT PRIMARY KEY,
		customer_name  TEXT NOT NULL,
		start_date     TIMESTAMPTZ NOT NULL,
		end_date       TIMESTAMPTZ NOT NULL,
		is_cancelled   BOOLEAN NOT NULL DEFAULT FALSE,
		cancelled_date TIMESTAMPTZ NULL,
		version        BIGINT NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT policies_dates_check CHECK (end_date >= start_date),
		CONSTRAINT policies_cancel_check CHECK (is_cancelled = (cancelled_date IS NOT NULL))
	)
`

type DB struct {
	pool *pgxpool.Pool
}

func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

// EnsureSchema creates the policies table when it does not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
