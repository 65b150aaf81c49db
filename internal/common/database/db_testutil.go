package database

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"

	"github.com/logtools/caddyingester/internal/ingester/configuration"
)

var (
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	entropyMu sync.Mutex
)

// newTestDbName returns a database name that is unique across concurrent test
// runs against the same postgres instance.
func newTestDbName() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return "test_" + strings.ToLower(ulid.MustNew(ulid.Now(), entropy).String())
}

// WithTestDb spins up a Postgres database for testing
//
//	migrations: perform the list of migrations before entering the action callback
//	configOverride: optional PostgresConfig to specify which instance to connect to. Defaults to localhost
//	                note: if an override is specified, the database will not be cleaned up after the test
//	action: callback for client code
func WithTestDb(migrations []Migration, configOverride *configuration.PostgresConfig, action func(db *pgxpool.Pool) error) error {
	ctx := context.Background()

	var testDbPool *pgxpool.Pool
	if configOverride != nil {
		db, err := OpenPgxPool(*configOverride)
		testDbPool = db
		if err != nil {
			return errors.WithStack(err)
		}

		defer testDbPool.Close()
	} else {
		// Connect and create a dedicated database for the test
		dbName := newTestDbName()
		connectionString := "host=localhost port=5432 user=postgres password=psw sslmode=disable"
		db, err := pgx.Connect(ctx, connectionString)
		if err != nil {
			return errors.WithStack(err)
		}
		defer db.Close(ctx)

		_, err = db.Exec(ctx, "CREATE DATABASE "+dbName)
		if err != nil {
			return errors.WithStack(err)
		}

		// Connect again: this time to the database we just created.  This is the database we use for tests
		testDbPool, err = pgxpool.New(ctx, connectionString+" dbname="+dbName)
		if err != nil {
			return errors.WithStack(err)
		}

		defer func() {
			// disconnect all db users before cleanup
			_, err = db.Exec(ctx,
				`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = '`+dbName+`';`)
			if err != nil {
				fmt.Println("Failed to disconnect users")
			}

			_, err = db.Exec(ctx, "DROP DATABASE "+dbName)
			if err != nil {
				fmt.Println("Failed to drop database")
			}
		}()
	}

	err := UpdateDatabase(ctx, testDbPool, migrations)
	if err != nil {
		return errors.WithStack(err)
	}

	return action(testDbPool)
}
