// Package db provides PostgreSQL connection, migration, and pgtype helpers.
package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heraldbot/herald/internal/config"
)

// Open creates a connection pool for the configured PostgreSQL database.
func Open(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, DSN(cfg))
}
