// Package discovery finds new source files for an ingestion type and drives
// each one through load, enrichment and promotion before advancing the watermark.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
	"github.com/rocketman-21/farcaster-cron/pkg/objectstore"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
	"github.com/rocketman-21/farcaster-cron/pkg/watermark"
)

// Loader copies one source file into staging.
type Loader interface {
	Load(ctx context.Context, key string, t source.Type) (int64, error)
}

// Router processes and promotes the staged rows of a type.
type Router interface {
	NeedsReference(t source.Type) bool
	Route(ctx context.Context, t source.Type, ref *refdata.Data) error
}

// ReferenceSource provides the reference data for one pass.
type ReferenceSource interface {
	LoadReference(ctx context.Context) (*refdata.Data, error)
}

// Result summarizes one pass.
type Result struct {
	RunID     string
	Listed    int
	Qualified int
	Processed int
	Failed    int
	Watermark int64
}

type settings struct {
	logger    *zap.Logger
	now       func() time.Time
	minTimes  map[source.Type]int64
	lookbacks map[source.Type]time.Duration
}

// Option configures the Engine.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithClock sets the clock the min-time floors are derived from.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithLookback overrides how far back from start-up files of t are considered.
func WithLookback(t source.Type, d time.Duration) Option {
	return func(s *settings) { s.lookbacks[t] = d }
}

// WithMinTime pins the min-time floor of t, in epoch milliseconds.
func WithMinTime(t source.Type, ms int64) Option {
	return func(s *settings) { s.minTimes[t] = ms }
}

// Engine runs discovery passes.
type Engine struct {
	lister     objectstore.Lister
	watermarks watermark.Store
	loader     Loader
	router     Router
	reference  ReferenceSource
	logger     *zap.Logger
	minTimes   map[source.Type]int64
}

// NewEngine creates an Engine. Each type's min-time floor is fixed here as
// the start time minus the type's lookback.
func NewEngine(lister objectstore.Lister, watermarks watermark.Store, loader Loader, router Router, reference ReferenceSource, opts ...Option) *Engine {
	s := settings{
		logger:    zap.NewNop(),
		now:       time.Now,
		minTimes:  make(map[source.Type]int64),
		lookbacks: make(map[source.Type]time.Duration),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	start := s.now()
	for _, t := range source.All() {
		if _, ok := s.minTimes[t]; ok {
			continue
		}
		lookback, ok := s.lookbacks[t]
		if !ok {
			lookback = source.MustDescribe(t).Lookback
		}
		s.minTimes[t] = start.Add(-lookback).UnixMilli()
	}

	return &Engine{
		lister:     lister,
		watermarks: watermarks,
		loader:     loader,
		router:     router,
		reference:  reference,
		logger:     s.logger,
		minTimes:   s.minTimes,
	}
}

// MinTime returns the floor below which files of t are ignored.
func (e *Engine) MinTime(t source.Type) int64 {
	return e.minTimes[t]
}

// Run lists every key under the type's prefix and processes the new ones in
// listing order. A failed key is logged and skipped, and from then on the
// watermark stays where it was so the next pass retries it.
func (e *Engine) Run(ctx context.Context, t source.Type) (Result, error) {
	desc, err := source.Describe(t)
	if err != nil {
		return Result{}, err
	}
	res := Result{RunID: uuid.NewString()}
	log := e.logger.With(zap.String("type", string(t)), zap.String("run_id", res.RunID))

	current, err := e.watermarks.Get(ctx, t)
	if err != nil {
		return res, fmt.Errorf("read %s watermark: %w", t, err)
	}
	res.Watermark = current
	minTime := e.MinTime(t)
	log.Info("discovery pass starting",
		zap.String("min_time", FormatTimestamp(minTime)),
		zap.String("last_processed", FormatTimestamp(current)),
	)

	var (
		ref    *refdata.Data
		frozen bool
		token  string
		seen   = make(map[string]struct{})
	)
	for {
		page, err := e.lister.ListPage(ctx, desc.Prefix, token)
		if err != nil {
			return res, fmt.Errorf("list %s: %w", desc.Prefix, err)
		}

		for _, raw := range page.Keys {
			res.Listed++
			if !source.IsParquet(raw) {
				continue
			}
			key := source.ParseKey(raw)
			if key.Timestamp <= res.Watermark || key.Timestamp <= minTime {
				continue
			}
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			res.Qualified++
			metrics.FilesDiscovered.WithLabelValues(string(t)).Inc()

			if err := ctx.Err(); err != nil {
				return res, err
			}
			if ref == nil && e.router.NeedsReference(t) {
				if ref, err = e.reference.LoadReference(ctx); err != nil {
					return res, fmt.Errorf("load reference data: %w", err)
				}
			}

			if err := e.process(ctx, t, raw, ref); err != nil {
				res.Failed++
				frozen = true
				metrics.FilesProcessed.WithLabelValues(string(t), "failed").Inc()
				log.Error("source file failed, watermark frozen for this pass",
					zap.String("key", raw),
					zap.Int64("timestamp", key.Timestamp),
					zap.Error(err),
				)
				continue
			}
			res.Processed++
			metrics.FilesProcessed.WithLabelValues(string(t), "success").Inc()

			if frozen {
				continue
			}
			if err := e.watermarks.Set(ctx, t, key.Timestamp); err != nil {
				return res, fmt.Errorf("advance %s watermark to %d: %w", t, key.Timestamp, err)
			}
			res.Watermark = max(res.Watermark, key.Timestamp)
			metrics.Watermark.WithLabelValues(string(t)).Set(float64(res.Watermark))
		}

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	log.Info("discovery pass finished",
		zap.Int("listed", res.Listed),
		zap.Int("qualified", res.Qualified),
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.String("watermark", FormatTimestamp(res.Watermark)),
	)
	return res, nil
}

func (e *Engine) process(ctx context.Context, t source.Type, key string, ref *refdata.Data) error {
	start := time.Now()
	if _, err := e.loader.Load(ctx, key, t); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := e.router.Route(ctx, t, ref); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	metrics.FileDuration.WithLabelValues(string(t)).Observe(time.Since(start).Seconds())
	return nil
}

// FormatTimestamp renders an epoch-ms watermark for logs, "never" for zero.
func FormatTimestamp(ms int64) string {
	if ms <= 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
