package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/rocketman-21/farcaster-cron/pkg/config"
)

// COPY from S3 can run for minutes on large parquet files.
const defaultStatementReadTimeout = 10 * time.Minute

// ConnectDB creates a connection to the specified database
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	ctx := context.Background()

	var opts []pgdriver.Option
	if cfg.URL != "" {
		// pgdriver panics on a malformed DSN
		if _, err := parseURL(cfg.URL); err != nil {
			return nil, err
		}
		opts = append(opts, pgdriver.WithDSN(cfg.URL))
	} else {
		// Build connector using functional options to properly escape special characters
		opts = append(opts,
			pgdriver.WithNetwork("tcp"),
			pgdriver.WithAddr(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
			pgdriver.WithUser(cfg.User),
			pgdriver.WithPassword(cfg.Password),
			pgdriver.WithDatabase(cfg.Database),
			pgdriver.WithInsecure(cfg.SSLMode == "disable"),
		)
	}
	opts = append(opts, pgdriver.WithReadTimeout(defaultStatementReadTimeout))

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))

	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", databaseName(cfg), err)
	}

	log.Printf("Successfully connected to database: %s", databaseName(cfg))
	return db, nil
}

func parseURL(dsn string) (*url.URL, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid database url: unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

func databaseName(cfg *config.DatabaseConfig) string {
	if cfg.Database != "" {
		return cfg.Database
	}
	if u, err := parseURL(cfg.URL); err == nil {
		return strings.TrimPrefix(u.Path, "/")
	}
	return "<unknown>"
}
