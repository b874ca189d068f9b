package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/ohlcv-gatherer/internal/config"
)

// Schema creates the mirror table keyed by (instrument, epoch).
const Schema = `
CREATE TABLE IF NOT EXISTS candles (
	instrument TEXT    NOT NULL,
	epoch      BIGINT  NOT NULL,
	low        NUMERIC,
	high       NUMERIC,
	open       NUMERIC,
	close      NUMERIC,
	volume     NUMERIC,
	PRIMARY KEY (instrument, epoch)
)`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the candles table if it is missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
