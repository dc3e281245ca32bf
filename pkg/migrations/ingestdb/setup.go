package ingestdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
)

// Migrate initializes the migration table and applies all pending migrations.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer func() { _ = migrator.Unlock(ctx) }()

	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SetupTestDB starts a postgres testcontainer with the ingest schema applied.
// The container is removed when the test ends.
func SetupTestDB(t *testing.T) *bun.DB {
	t.Helper()
	pgutil.RequireDocker(t)

	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
