// Package scheduler runs periodic jobs, never overlapping two runs of the same job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
)

const (
	idle int32 = iota
	running
)

// State is a job's run token. The zero value is idle.
type State struct {
	v atomic.Int32
}

// TryStart moves the state from idle to running and reports whether it did.
func (s *State) TryStart() bool {
	return s.v.CompareAndSwap(idle, running)
}

// Done returns the state to idle.
func (s *State) Done() {
	s.v.Store(idle)
}

// Running reports whether a run is in progress.
func (s *State) Running() bool {
	return s.v.Load() == running
}

// Job is a unit of periodic work.
type Job struct {
	Name       string
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type entry struct {
	job   Job
	state State
}

// Scheduler owns a fixed set of jobs.
type Scheduler struct {
	entries []*entry
	logger  *zap.Logger
}

// New creates a Scheduler. Jobs without a positive interval are rejected.
func New(logger *zap.Logger, jobs ...Job) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{logger: logger}
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if j.Interval <= 0 {
			return nil, fmt.Errorf("job %s: interval must be positive", j.Name)
		}
		if j.Run == nil {
			return nil, fmt.Errorf("job %s: missing run function", j.Name)
		}
		if _, dup := seen[j.Name]; dup {
			return nil, fmt.Errorf("job %s registered twice", j.Name)
		}
		seen[j.Name] = struct{}{}
		s.entries = append(s.entries, &entry{job: j})
	}
	return s, nil
}

// Running reports which jobs are mid-run.
func (s *Scheduler) Running() map[string]bool {
	out := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		out[e.job.Name] = e.state.Running()
	}
	return out
}

// Run drives every job until ctx is done and in-flight runs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	var wg sync.WaitGroup
	defer wg.Wait()

	s.logger.Info("job scheduled",
		zap.String("job", e.job.Name),
		zap.Duration("interval", e.job.Interval),
	)
	if e.job.RunOnStart {
		s.tick(ctx, e, &wg)
	}

	ticker := time.NewTicker(e.job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job stopped", zap.String("job", e.job.Name))
			return
		case <-ticker.C:
			s.tick(ctx, e, &wg)
		}
	}
}

// tick starts a run unless the previous one is still going.
func (s *Scheduler) tick(ctx context.Context, e *entry, wg *sync.WaitGroup) bool {
	if !e.state.TryStart() {
		metrics.JobSkipped.WithLabelValues(e.job.Name).Inc()
		s.logger.Warn("previous run still in progress, skipping tick", zap.String("job", e.job.Name))
		return false
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer e.state.Done()
		s.execute(ctx, e.job)
	}()
	return true
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeRun(ctx, job.Run)
	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobRuns.WithLabelValues(job.Name, "failed").Inc()
		s.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name, "success").Inc()
	s.logger.Info("job finished", zap.String("job", job.Name), zap.Duration("elapsed", elapsed))
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
