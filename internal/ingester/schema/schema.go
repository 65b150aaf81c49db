package schema

import (
	"context"
	"embed"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logtools/caddyingester/internal/common/database"
)

//go:embed migrations/*.sql
var fs embed.FS

func LogsMigrations() ([]database.Migration, error) {
	migrations, err := database.ReadMigrations(fs, "migrations")
	if err != nil {
		return nil, err
	}
	return migrations, nil
}

func MigrateLogsDb(ctx context.Context, db *pgxpool.Pool) error {
	migrations, err := LogsMigrations()
	if err != nil {
		return err
	}
	return database.UpdateDatabase(ctx, db, migrations)
}

// WithLogsDb creates a fresh database with the logs schema applied and calls
// action with a pool connected to it. Intended for tests.
func WithLogsDb(action func(db *pgxpool.Pool) error) error {
	migrations, err := LogsMigrations()
	if err != nil {
		return err
	}
	return database.WithTestDb(migrations, nil, action)
}
