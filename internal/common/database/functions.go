package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logtools/caddyingester/internal/ingester/configuration"
)

// OpenPgxPool connects to postgres using the pgxpool driver and verifies the
// connection with a ping.
func OpenPgxPool(config configuration.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(config.Connection)
	if err != nil {
		return nil, err
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = int32(config.MaxConns)
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = int32(config.MinConns)
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	db, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	err = db.Ping(context.Background())
	return db, err
}
