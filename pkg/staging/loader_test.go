package staging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/retry"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

type fakeSQLState string

func (f fakeSQLState) Error() string       { return "sqlstate " + string(f) }
func (f fakeSQLState) Field(k byte) string { return map[byte]string{'C': string(f)}[k] }

// generatedRows stands in for the parquet reader with n synthetic casts.
func generatedRows(n int) CopyStatement {
	return func(relation, _ string) (string, []any) {
		return `INSERT INTO ? (id, fid, hash, text)
			SELECT g, g, decode(lpad(to_hex(g), 40, '0'), 'hex'), 'cast ' || g
			FROM generate_series(1, ?) AS g`, []any{bun.Ident(relation), n}
	}
}

func castKey(end int64) string {
	d := source.MustDescribe(source.Casts)
	return source.FormatKey(d.Prefix, "casts", end-60, end)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadlock", fakeSQLState(pgutil.SQLStateDeadlock), true},
		{"lock not available", fmt.Errorf("copy: %w", fakeSQLState(pgutil.SQLStateLockNotAvailable)), true},
		{"undefined table", fakeSQLState("42P01"), false},
		{"not a postgres error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "staging.farcaster_casts")
			if apperrors.IsRetryable(got) != tt.retryable {
				t.Fatalf("IsRetryable(%v) = %v, want %v", got, !tt.retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("classified error lost its cause: %v", got)
			}
		})
	}
}

func TestParquetCopy(t *testing.T) {
	query, args := ParquetCopy("staging.farcaster_casts", "s3://bucket/key.parquet")
	if query != "COPY ? FROM ? WITH (format 'parquet')" {
		t.Fatalf("unexpected copy statement: %s", query)
	}
	if len(args) != 2 || args[1] != "s3://bucket/key.parquet" {
		t.Fatalf("unexpected copy args: %v", args)
	}
}

func TestLoader_RejectsForeignKey(t *testing.T) {
	loader := NewLoader(nil, "bucket")

	_, err := loader.Load(context.Background(), "x/farcaster-profile_with_addresses-1-2.parquet", source.Casts)
	if !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected data error for a profiles key, got %v", err)
	}
}

func TestLoader_RerunIsIdempotent(t *testing.T) {
	db := ingestdb.SetupTestDB(t)
	ctx := context.Background()
	loader := NewLoader(db, "bucket", WithCopyStatement(generatedRows(25)))

	for i := 0; i < 2; i++ {
		rows, err := loader.Load(ctx, castKey(1700000000), source.Casts)
		if err != nil {
			t.Fatalf("Load() run %d failed: %v", i+1, err)
		}
		if rows != 25 {
			t.Fatalf("Load() run %d: expected 25 rows, got %d", i+1, rows)
		}
		pgutil.AssertRowCount(t, db, "staging.farcaster_casts", 25)
	}
}

func TestLoader_FailedCopyLeavesStagingUntouched(t *testing.T) {
	db := ingestdb.SetupTestDB(t)
	ctx := context.Background()

	if _, err := NewLoader(db, "bucket", WithCopyStatement(generatedRows(5))).
		Load(ctx, castKey(1700000000), source.Casts); err != nil {
		t.Fatalf("seed Load() failed: %v", err)
	}

	broken := func(string, string) (string, []any) {
		return "SELECT * FROM staging.does_not_exist", nil
	}
	loader := NewLoader(db, "bucket",
		WithCopyStatement(broken),
		WithRetryPolicy(retry.Policy{Attempts: 3, Backoff: time.Millisecond}),
	)
	if _, err := loader.Load(ctx, castKey(1700000060), source.Casts); err == nil {
		t.Fatal("expected Load() to fail")
	}

	// the truncate rolled back with the failed copy
	pgutil.AssertRowCount(t, db, "staging.farcaster_casts", 5)
}
