// Package snapshot writes the CSV files backing the reference data and
// loads them back, refreshing whatever is missing.
package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

// Service owns the snapshot directory.
type Service struct {
	dir     string
	sources map[string]Source
	logger  *zap.Logger
}

// NewService creates a Service writing to dir.
func NewService(dir string, logger *zap.Logger, sources ...Source) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.File()] = s
	}
	return &Service{dir: dir, sources: m, logger: logger}
}

// Dir returns the snapshot directory.
func (s *Service) Dir() string {
	return s.dir
}

// Refresh rewrites one snapshot file. Readers see either the old or the new file.
func (s *Service) Refresh(ctx context.Context, file string) error {
	src, ok := s.sources[file]
	if !ok {
		return fmt.Errorf("no snapshot source for %s", file)
	}
	return s.write(ctx, file, src)
}

func (s *Service) write(ctx context.Context, file string, src Source) error {
	header, ok := refdata.Headers[file]
	if !ok {
		return fmt.Errorf("no header defined for %s", file)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	start := time.Now()
	tmp, err := os.CreateTemp(s.dir, "."+file+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", file, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", file, err)
	}
	var rows int
	err = src.Rows(ctx, func(record []string) error {
		rows++
		return w.Write(record)
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", file, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, file)); err != nil {
		return fmt.Errorf("replace %s: %w", file, err)
	}
	committed = true

	metrics.SnapshotRows.WithLabelValues(file).Add(float64(rows))
	s.logger.Info("snapshot refreshed",
		zap.String("file", file),
		zap.Int("rows", rows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// RefreshAll rewrites every snapshot concurrently.
func (s *Service) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for file := range s.sources {
		g.Go(func() error {
			return s.Refresh(ctx, file)
		})
	}
	return g.Wait()
}

// EnsureFiles refreshes only the snapshots not yet on disk. A missing file
// without a registered source is written with its header only.
func (s *Service) EnsureFiles(ctx context.Context) error {
	missing, err := refdata.Missing(s.dir)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	s.logger.Info("downloading missing snapshots", zap.Strings("files", missing))

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range missing {
		src, ok := s.sources[file]
		if !ok {
			s.logger.Warn("no source configured for snapshot, writing it empty", zap.String("file", file))
			src = emptySource{file: file}
		}
		g.Go(func() error {
			return s.write(ctx, file, src)
		})
	}
	return g.Wait()
}

// emptySource stands in for a snapshot whose backing database is not configured.
type emptySource struct {
	file string
}

func (e emptySource) File() string { return e.file }

func (emptySource) Rows(context.Context, func([]string) error) error { return nil }

// LoadReference loads the reference data, downloading missing snapshots once.
func (s *Service) LoadReference(ctx context.Context) (*refdata.Data, error) {
	ref, err := refdata.Load(s.dir)
	if errors.Is(err, refdata.ErrSnapshotMissing) {
		s.logger.Warn("reference snapshot missing, refreshing", zap.Error(err))
		if err := s.EnsureFiles(ctx); err != nil {
			return nil, fmt.Errorf("ensure snapshots: %w", err)
		}
		ref, err = refdata.Load(s.dir)
	}
	if err != nil {
		return nil, err
	}

	if n := ref.Skipped(); n > 0 {
		s.logger.Warn("skipped snapshot rows without a valid fid", zap.Int("rows", n))
	}
	return ref, nil
}
