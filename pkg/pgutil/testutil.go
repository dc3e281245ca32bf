package pgutil

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/config"
)

// RequireDocker skips the test when no docker daemon socket is reachable.
func RequireDocker(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed tests")
}

const (
	testImage    = "postgres:15-alpine"
	testDatabase = "ingest_test"
	testUser     = "ingest"
	testPassword = "ingest"
	connectTries = 10
)

// SetupTestDB starts a disposable Postgres container and connects bun to it.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	db, _, cleanup := SetupTestDBWithConfig(t)
	return db, cleanup
}

// SetupTestDBWithConfig is SetupTestDB that also returns the DSN-based settings,
// for tests that open a second driver against the same container.
func SetupTestDBWithConfig(t *testing.T) (*bun.DB, *config.DatabaseConfig, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, testImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	terminate := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		t.Fatalf("resolve container dsn: %v", err)
	}
	cfg := &config.DatabaseConfig{URL: dsn, SSLMode: "disable"}

	db, err := connectWithRetry(cfg)
	if err != nil {
		terminate()
		t.Fatalf("connect to test database: %v", err)
	}

	return db, cfg, func() {
		_ = db.Close()
		terminate()
	}
}

// connectWithRetry covers the window where the container logs readiness
// before the mapped port accepts connections.
func connectWithRetry(cfg *config.DatabaseConfig) (*bun.DB, error) {
	delay := 100 * time.Millisecond
	var err error
	for attempt := 1; attempt <= connectTries; attempt++ {
		var db *bun.DB
		if db, err = ConnectDB(cfg); err == nil {
			return db, nil
		}
		time.Sleep(delay)
		delay *= 2
	}
	return nil, fmt.Errorf("after %d attempts: %w", connectTries, err)
}

// splitQualified turns "staging.farcaster_casts" into ("staging", "farcaster_casts").
// Unqualified names resolve to the public schema.
func splitQualified(name string) (string, string) {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return schema, table
	}
	return "public", name
}

// AssertTableExists checks if a table exists in the database
func AssertTableExists(t *testing.T, db *bun.DB, qualifiedName string) {
	t.Helper()
	if !tableExists(t, db, qualifiedName) {
		t.Errorf("table %s does not exist", qualifiedName)
	}
}

// AssertTableNotExists checks if a table does not exist in the database
func AssertTableNotExists(t *testing.T, db *bun.DB, qualifiedName string) {
	t.Helper()
	if tableExists(t, db, qualifiedName) {
		t.Errorf("table %s should not exist but it does", qualifiedName)
	}
}

func tableExists(t *testing.T, db *bun.DB, qualifiedName string) bool {
	t.Helper()
	schema, table := splitQualified(qualifiedName)

	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?)", schema, table).
		Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("failed to check if table %s exists: %v", qualifiedName, err)
	}
	return exists
}

// AssertIndexExists checks if an index exists in the given schema
func AssertIndexExists(t *testing.T, db *bun.DB, schema, indexName string) {
	t.Helper()

	var exists bool
	err := db.NewSelect().
		ColumnExpr("EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = ? AND indexname = ?)", schema, indexName).
		Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("failed to check if index %s exists: %v", indexName, err)
	}

	if !exists {
		t.Errorf("index %s.%s does not exist", schema, indexName)
	}
}

// AssertRowCount checks if a table has the expected number of rows
func AssertRowCount(t *testing.T, db *bun.DB, qualifiedName string, expected int) {
	t.Helper()
	if got := RowCount(t, db, qualifiedName); got != expected {
		t.Errorf("table %s: expected %d rows, got %d", qualifiedName, expected, got)
	}
}

// RowCount returns the number of rows in a table
func RowCount(t *testing.T, db *bun.DB, qualifiedName string) int {
	t.Helper()
	schema, table := splitQualified(qualifiedName)

	var count int
	err := db.NewSelect().
		TableExpr("?.?", bun.Ident(schema), bun.Ident(table)).
		ColumnExpr("COUNT(*)").
		Scan(context.Background(), &count)
	if err != nil {
		t.Fatalf("failed to count rows in table %s: %v", qualifiedName, err)
	}
	return count
}
