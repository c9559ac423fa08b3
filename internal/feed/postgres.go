package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by PostgresRepository.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores prices in the price_points table.
type PostgresRepository struct {
	db     DB
	logger *slog.Logger
}

// NewPostgresRepository creates a repository backed by db.
func NewPostgresRepository(db DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger.With("component", "postgres_repository"),
	}
}

// AddPrices inserts prices using pgx.Batch. Duplicate (ticker, ts) rows are
// ignored.
func (r *PostgresRepository) AddPrices(ctx context.Context, prices []Price) error {
	if len(prices) == 0 {
		return nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(`
			INSERT INTO price_points (ticker_id, value, ts)
			VALUES ($1, $2, $3)
			ON CONFLICT (ticker_id, ts) DO NOTHING
		`, p.TickerID, p.Value, p.Timestamp)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	conflicts := 0
	for range prices {
		ct, err := results.Exec()
		if err != nil {
			return fmt.Errorf("insert price: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	r.logger.Debug("stored prices",
		"count", len(prices),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// History returns up to limit of the most recent prices, oldest first.
func (r *PostgresRepository) History(ctx context.Context, tickerID string, limit int) ([]Price, error) {
	// LIMIT NULL means no limit
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.Query(ctx, `
		SELECT ticker_id, value, ts FROM (
			SELECT ticker_id, value, ts
			FROM price_points
			WHERE ticker_id = $1
			ORDER BY ts DESC
			LIMIT $2
		) recent
		ORDER BY ts ASC
	`, tickerID, lim)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	prices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Price, error) {
		return scanPrice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return prices, nil
}

// Latest returns the most recent price.
func (r *PostgresRepository) Latest(ctx context.Context, tickerID string) (Price, bool, error) {
	row := r.db.QueryRow(ctx, `
		SELECT ticker_id, value, ts
		FROM price_points
		WHERE ticker_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, tickerID)

	p, err := scanPrice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Price{}, false, nil
	}
	if err != nil {
		return Price{}, false, fmt.Errorf("query latest: %w", err)
	}
	return p, true, nil
}

// Prune deletes everything but the newest keep prices per ticker.
func (r *PostgresRepository) Prune(ctx context.Context, keep int) (int64, error) {
	ct, err := r.db.Exec(ctx, `
		DELETE FROM price_points p
		USING (
			SELECT ticker_id, ts,
				row_number() OVER (PARTITION BY ticker_id ORDER BY ts DESC) AS rn
			FROM price_points
		) ranked
		WHERE p.ticker_id = ranked.ticker_id
			AND p.ts = ranked.ts
			AND ranked.rn > $1
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune prices: %w", err)
	}
	return ct.RowsAffected(), nil
}

func scanPrice(row pgx.Row) (Price, error) {
	var p Price
	err := row.Scan(&p.TickerID, &p.Value, &p.Timestamp)
	p.Timestamp = p.Timestamp.UTC()
	return p, err
}
