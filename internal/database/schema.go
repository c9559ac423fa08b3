package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by the postgres price repository.
const Schema = `
CREATE TABLE IF NOT EXISTS price_points (
	ticker_id TEXT             NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	ts        TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (ticker_id, ts)
);
CREATE INDEX IF NOT EXISTS price_points_ticker_ts_desc
	ON price_points (ticker_id, ts DESC);
`

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
