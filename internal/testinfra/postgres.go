// Package testinfra starts throwaway infrastructure for integration tests.
package testinfra

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/c21-japan/homemart-sub002/migrations"
	"github.com/c21-japan/homemart-sub002/pkg/database"
)

// Postgres returns a migrated database. TEST_DATABASE_URL reuses an existing
// database; otherwise a postgres:16 container is started. The test is skipped
// in -short mode or when no container runtime is reachable.
func Postgres(t *testing.T) *database.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("homemart"),
			postgres.WithUsername("homemart"),
			postgres.WithPassword("homemart"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() {
			_ = pgC.Terminate(context.Background())
		})

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("connection string: %v", err)
		}
	}

	db, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}
