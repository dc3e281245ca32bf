// Package enrich runs the per-type processor over freshly staged rows, then
// promotes them to production and clears staging.
package enrich

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/retry"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
)

//go:embed sql/*.sql
var scripts embed.FS

// Script returns the embedded promotion script with the given file name.
func Script(name string) (string, error) {
	b, err := scripts.ReadFile("sql/" + name)
	if err != nil {
		return "", fmt.Errorf("promote script %s: %w", name, err)
	}
	return string(b), nil
}

// Processor consumes the staged rows of one ingestion type. It must be safe
// to run again over the same rows.
type Processor interface {
	Type() source.Type
	Process(ctx context.Context, ref *refdata.Data) error
}

type settings struct {
	logger     *zap.Logger
	processors []Processor
	policy     retry.Policy
}

// Option configures the Router.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRetryPolicy bounds how often a promotion hitting lock contention is retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithProcessors registers processors by the type they report.
func WithProcessors(ps ...Processor) Option {
	return func(s *settings) { s.processors = append(s.processors, ps...) }
}

// Router dispatches staged rows to their processor and promotes them.
type Router struct {
	db         bun.IDB
	logger     *zap.Logger
	processors map[source.Type]Processor
	policy     retry.Policy
}

// NewRouter creates a Router. Types without a processor are promoted directly.
func NewRouter(db bun.IDB, opts ...Option) *Router {
	s := settings{logger: zap.NewNop(), policy: retry.DefaultPolicy}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	processors := make(map[source.Type]Processor, len(s.processors))
	for _, p := range s.processors {
		processors[p.Type()] = p
	}
	return &Router{db: db, logger: s.logger, processors: processors, policy: s.policy}
}

// NeedsReference reports whether routing t consults reference data.
func (r *Router) NeedsReference(t source.Type) bool {
	_, ok := r.processors[t]
	return ok
}

// Route runs the processor for t and, only if it succeeds, promotes staging
// into production and truncates staging in one transaction.
func (r *Router) Route(ctx context.Context, t source.Type, ref *refdata.Data) error {
	desc, err := source.Describe(t)
	if err != nil {
		return err
	}

	if p, ok := r.processors[t]; ok {
		start := time.Now()
		if err := p.Process(ctx, ref); err != nil {
			return fmt.Errorf("process staged %s: %w", t, err)
		}
		r.logger.Debug("staged rows processed",
			zap.String("type", string(t)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	return r.Promote(ctx, desc)
}

// Promote upserts staged rows into production and clears the staging table.
// A deadlock or lock timeout rolls the transaction back and is retried.
func (r *Router) Promote(ctx context.Context, desc source.Descriptor) error {
	script, err := Script(desc.PromoteScript)
	if err != nil {
		return err
	}

	var promoted int64
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		n, err := r.promoteOnce(ctx, desc, script)
		if err != nil {
			if pgutil.IsLockContention(err) {
				return apperrors.RecoveringError(err, "lock contention promoting "+desc.StagingRelation())
			}
			return err
		}
		promoted = n
		return nil
	}, retry.WithLogger(r.logger), retry.WithOperation("promote "+desc.StagingRelation()))
	if err != nil {
		return err
	}

	r.logger.Info("staging promoted",
		zap.String("type", string(desc.Type)),
		zap.String("table", desc.ProductionRelation()),
		zap.Int64("rows", promoted),
	)
	return nil
}

func (r *Router) promoteOnce(ctx context.Context, desc source.Descriptor, script string) (int64, error) {
	var promoted int64
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.ExecContext(ctx, script)
		if err != nil {
			return fmt.Errorf("promote %s: %w", desc.StagingRelation(), err)
		}
		if promoted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("promote %s row count: %w", desc.StagingRelation(), err)
		}
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE ? CASCADE", bun.Ident(desc.StagingRelation())); err != nil {
			return fmt.Errorf("truncate %s: %w", desc.StagingRelation(), err)
		}
		return nil
	})
	return promoted, err
}
