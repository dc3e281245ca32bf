// Package retry repeats operations that fail with errors classified as retryable.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
)

// Policy bounds how often and how fast an operation is repeated.
type Policy struct {
	// Attempts is the total number of calls, including the first.
	Attempts int
	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
}

// DefaultPolicy is three attempts two seconds apart.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 2 * time.Second}

type settings struct {
	logger    *zap.Logger
	operation string
	sleep     func(context.Context, time.Duration) error
	classify  func(error) bool
}

// Option configures Do.
type Option func(*settings)

// WithLogger logs each retried failure.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithOperation names the operation in logs and the final error.
func WithOperation(name string) Option {
	return func(s *settings) { s.operation = name }
}

// WithClassifier overrides which errors are retried.
func WithClassifier(fn func(error) bool) Option {
	return func(s *settings) { s.classify = fn }
}

func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *settings) { s.sleep = fn }
}

func applyOptions(opts []Option) settings {
	s := settings{
		logger:    zap.NewNop(),
		operation: "operation",
		sleep:     sleepCtx,
		classify:  apperrors.IsRetryable,
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

// Do calls fn until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error, opts ...Option) error {
	s := applyOptions(opts)
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !s.classify(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		s.logger.Warn("retryable failure; retrying",
			zap.String("operation", s.operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", p.Backoff),
			zap.Error(err),
		)
		if sleepErr := s.sleep(ctx, p.Backoff); sleepErr != nil {
			return sleepErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", s.operation, attempts, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
