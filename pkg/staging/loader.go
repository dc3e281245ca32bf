// Package staging bulk-loads parquet exports from S3 into the staging schema.
package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	"github.com/rocketman-21/farcaster-cron/pkg/objectstore"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/retry"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

// CopyStatement renders the statement that fills relation from the object at url.
type CopyStatement func(relation, url string) (query string, args []any)

// ParquetCopy uses the server-side parquet reader.
func ParquetCopy(relation, url string) (string, []any) {
	return "COPY ? FROM ? WITH (format 'parquet')", []any{bun.Ident(relation), url}
}

type settings struct {
	logger *zap.Logger
	policy retry.Policy
	copy   CopyStatement
}

// Option configures the Loader.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRetryPolicy overrides the contention retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithCopyStatement replaces the COPY statement, for databases without the parquet extension.
func WithCopyStatement(fn CopyStatement) Option {
	return func(s *settings) { s.copy = fn }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger: zap.NewNop(),
		policy: retry.DefaultPolicy,
		copy:   ParquetCopy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Loader copies one source file into its staging table per call.
type Loader struct {
	db     bun.IDB
	bucket string
	logger *zap.Logger
	policy retry.Policy
	copy   CopyStatement
}

// NewLoader creates a Loader reading from bucket.
func NewLoader(db bun.IDB, bucket string, opts ...Option) *Loader {
	s := applyOptions(opts)
	return &Loader{
		db:     db,
		bucket: bucket,
		logger: s.logger,
		policy: s.policy,
		copy:   s.copy,
	}
}

// Load truncates the staging table for t and copies key into it in one
// transaction, returning the number of rows copied. Lock contention is retried.
func (l *Loader) Load(ctx context.Context, key string, t source.Type) (int64, error) {
	desc, err := source.Describe(t)
	if err != nil {
		return 0, err
	}
	if parsed := source.ParseKey(key); parsed.Table != desc.StagingTable {
		return 0, apperrors.BadRequestError(
			fmt.Errorf("key %s targets %s, expected %s", key, parsed.Table, desc.StagingTable),
			"source file does not belong to ingestion type",
		)
	}

	relation := desc.StagingRelation()
	url := objectstore.URL(l.bucket, key)

	var rows int64
	start := time.Now()
	err = retry.Do(ctx, l.policy, func(ctx context.Context) error {
		n, err := l.loadOnce(ctx, relation, url)
		if err != nil {
			return classify(err, relation)
		}
		rows = n
		return nil
	}, retry.WithLogger(l.logger), retry.WithOperation("copy "+relation))
	if err != nil {
		return 0, err
	}

	metrics.RowsStaged.WithLabelValues(desc.StagingTable).Add(float64(rows))
	l.logger.Info("source file staged",
		zap.String("key", key),
		zap.String("table", relation),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rows, nil
}

func (l *Loader) loadOnce(ctx context.Context, relation, url string) (int64, error) {
	var rows int64
	err := l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "TRUNCATE ?", bun.Ident(relation)); err != nil {
			return fmt.Errorf("truncate %s: %w", relation, err)
		}

		query, args := l.copy(relation, url)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("copy %s into %s: %w", url, relation, err)
		}
		rows, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("copy %s row count: %w", relation, err)
		}
		return nil
	})
	return rows, err
}

// classify marks lock contention as recoverable and leaves everything else as is.
func classify(err error, relation string) error {
	if pgutil.IsLockContention(err) {
		return apperrors.RecoveringError(err, "lock contention on "+relation)
	}
	return err
}
