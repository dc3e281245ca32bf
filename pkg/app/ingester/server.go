// Package ingester implements app.Runner for the long-running ingestion service.
package ingester

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	apphttp "github.com/rocketman-21/farcaster-cron/pkg/app/http"
	"github.com/rocketman-21/farcaster-cron/pkg/app/httpserver"
	"github.com/rocketman-21/farcaster-cron/pkg/config"
	"github.com/rocketman-21/farcaster-cron/pkg/discovery"
	"github.com/rocketman-21/farcaster-cron/pkg/scheduler"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
	"github.com/rocketman-21/farcaster-cron/pkg/watermark"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second

	snapshotJobName = "snapshot-refresh"
	buildersJobName = "builder-profiles"
)

// Server holds configuration for the ingestion process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new ingestion Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run wires the pipeline, starts the scheduler and serves the operational
// HTTP endpoints. It blocks until an OS shutdown signal is received or the
// HTTP server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging, "farcaster-cron")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Farcaster ingestion service", zap.Bool("dev", cfg.Ingest.Dev))

	c, err := Build(ctx, cfg, logger)
	defer c.Close()
	if err != nil {
		return err
	}

	// A failure here is retried lazily by the first discovery pass that needs reference data.
	if _, err := c.Reference.LoadReference(ctx); err != nil {
		logger.Warn("initial reference data load failed", zap.Error(err))
	}

	jobs, err := s.jobs(c, logger)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(logger.Named("scheduler"), jobs...)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	httpServer := httpserver.New(cfg.Server, newRouter(cfg, c, sched, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return httpserver.ServeAndWait(gctx, logger, httpServer, cfg.Shutdown.Timeout)
	})
	return g.Wait()
}

func (s *Server) jobs(c *Components, logger *zap.Logger) ([]scheduler.Job, error) {
	cfg := s.cfg
	types, err := Types(&cfg.Ingest)
	if err != nil {
		return nil, err
	}

	jobs := make([]scheduler.Job, 0, len(types)+2)
	for _, t := range types {
		jobs = append(jobs, scheduler.Job{
			Name:       "ingest-" + string(t),
			Interval:   cfg.Ingest.PollInterval(),
			Timeout:    cfg.Ingest.TickTimeout,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := c.Discovery.Run(ctx, t)
				return err
			},
		})
	}

	jobs = append(jobs, scheduler.Job{
		Name:     snapshotJobName,
		Interval: cfg.Snapshot.RefreshInterval,
		Timeout:  cfg.Snapshot.RefreshTimeout,
		Run:      c.Snapshots.RefreshAll,
	})

	if cfg.Builders.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:     buildersJobName,
			Interval: cfg.Builders.Interval,
			Timeout:  cfg.Builders.Timeout,
			Run: func(ctx context.Context) error {
				ref, err := c.Reference.LoadReference(ctx)
				if err != nil {
					return fmt.Errorf("load reference data: %w", err)
				}
				return c.Builders.Run(ctx, ref)
			},
		})
	} else {
		logger.Info("builder profile job disabled")
	}
	return jobs, nil
}

// readiness is implemented by Reference.
type readiness interface {
	Ready() bool
}

// jobStates is implemented by the scheduler.
type jobStates interface {
	Running() map[string]bool
}

func newRouter(cfg *config.Config, c *Components, jobs jobStates, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(c.Reference))

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", apphttp.HandleError(handleStatus(c.Watermarks, c.Reference, jobs)))
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func handleReady(ready readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !ready.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}

// WatermarkStatus is one ingestion type in the status response.
type WatermarkStatus struct {
	Millis        int64  `json:"ms"`
	LastProcessed string `json:"last_processed"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Ready      bool                       `json:"ready"`
	Watermarks map[string]WatermarkStatus `json:"watermarks"`
	Jobs       map[string]bool            `json:"jobs_running"`
}

func handleStatus(store watermark.Store, ready readiness, jobs jobStates) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		all, err := store.All(r.Context())
		if err != nil {
			return apperrors.DependencyError(err, "failed to read watermarks")
		}

		resp := StatusResponse{
			Ready:      ready.Ready(),
			Watermarks: make(map[string]WatermarkStatus, len(source.All())),
			Jobs:       jobs.Running(),
		}
		for _, t := range source.All() {
			ms := all[t]
			resp.Watermarks[string(t)] = WatermarkStatus{
				Millis:        ms,
				LastProcessed: discovery.FormatTimestamp(ms),
			}
		}

		apphttp.WriteJSON(w, http.StatusOK, resp)
		return nil
	}
}
