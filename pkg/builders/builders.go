// Package builders queues builder-profile jobs for every grant recipient with a Farcaster account.
package builders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

// Sink accepts builder-profile jobs.
type Sink interface {
	BulkBuilderProfiles(ctx context.Context, jobs []queue.BuilderProfileJob) error
}

type settings struct {
	logger *zap.Logger
	batch  int
	pace   time.Duration
}

// Option configures the Dispatcher.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithBatchSize sets how many fids go into one request.
func WithBatchSize(n int) Option {
	return func(s *settings) { s.batch = n }
}

// WithPace sets the minimum spacing between requests. Zero disables pacing.
func WithPace(d time.Duration) Option {
	return func(s *settings) { s.pace = d }
}

// Dispatcher sends builder-profile jobs at a bounded rate.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	batch   int
	limiter *rate.Limiter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	s := settings{logger: zap.NewNop(), batch: 1, pace: 30 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	limit := rate.Inf
	if s.pace > 0 {
		limit = rate.Every(s.pace)
	}
	return &Dispatcher{
		sink:    sink,
		logger:  s.logger,
		batch:   max(s.batch, 1),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fids maps grant recipients to the fids that verified them, in grant order.
func Fids(ref *refdata.Data) []int64 {
	var fids []int64
	seen := make(map[int64]struct{})
	for _, g := range ref.Grants() {
		if !common.IsHexAddress(g.Recipient) {
			continue
		}
		fid, ok := ref.FidForAddress(g.Recipient)
		if !ok {
			continue
		}
		if _, dup := seen[fid]; dup {
			continue
		}
		seen[fid] = struct{}{}
		fids = append(fids, fid)
	}
	return fids
}

// Run queues a builder-profile job for every grant recipient known to ref.
func (d *Dispatcher) Run(ctx context.Context, ref *refdata.Data) error {
	fids := Fids(ref)
	jobs := make([]queue.BuilderProfileJob, len(fids))
	for i, fid := range fids {
		jobs[i] = queue.BuilderProfileJob{Fid: strconv.FormatInt(fid, 10)}
	}

	for i, batch := range queue.Batches(jobs, d.batch) {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for builder batch %d: %w", i, err)
		}
		if err := d.sink.BulkBuilderProfiles(ctx, batch); err != nil {
			return fmt.Errorf("dispatch builder batch %d: %w", i, err)
		}
	}
	d.logger.Info("builder profile jobs queued", zap.Int("builders", len(jobs)))
	return nil
}
