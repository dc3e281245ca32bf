package ingester

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/pkg/builders"
	"github.com/rocketman-21/farcaster-cron/pkg/casts"
	"github.com/rocketman-21/farcaster-cron/pkg/config"
	"github.com/rocketman-21/farcaster-cron/pkg/discovery"
	"github.com/rocketman-21/farcaster-cron/pkg/enrich"
	"github.com/rocketman-21/farcaster-cron/pkg/members"
	"github.com/rocketman-21/farcaster-cron/pkg/objectstore"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/retry"
	"github.com/rocketman-21/farcaster-cron/pkg/snapshot"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
	"github.com/rocketman-21/farcaster-cron/pkg/staging"
	"github.com/rocketman-21/farcaster-cron/pkg/watermark"
)

// Components is the wired pipeline shared by the service and the operator CLI.
type Components struct {
	DB         *bun.DB
	Flows      *snapshot.FlowsStore
	Queue      *queue.Client
	Watermarks watermark.Store
	Snapshots  *snapshot.Service
	Reference  *Reference
	Casts      *casts.Engine
	Members    *members.Processor
	Router     *enrich.Router
	Discovery  *discovery.Engine
	Builders   *builders.Dispatcher
}

// Build connects every dependency and wires the pipeline. Close releases
// whatever was opened, also when Build fails half way.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return c, fmt.Errorf("connect ingest db: %w", err)
	}
	c.DB = db
	logger.Info("Database connection established")

	snapshotSources := []snapshot.Source{
		snapshot.NewProfilesSource(db, cfg.Snapshot.ProfilesBatchSize),
		snapshot.NewCitizensSource(db, cfg.Cohort.Channels, cfg.Snapshot.CitizensBatchSize),
	}
	if cfg.FlowsDatabase.Configured() {
		flows, err := snapshot.OpenFlowsStore(ctx, cfg.FlowsDatabase.GetConnectionString())
		if err != nil {
			return c, fmt.Errorf("connect flows db: %w", err)
		}
		c.Flows = flows
		snapshotSources = append(snapshotSources, snapshot.NewGrantsSource(flows, cfg.Snapshot.GrantsBatchSize))
		logger.Info("Flows database connection established")
	} else {
		logger.Warn("flows_database not configured, grants snapshot cannot be refreshed")
	}
	c.Snapshots = snapshot.NewService(cfg.Snapshot.Dir, logger.Named("snapshot"), snapshotSources...)
	c.Reference = NewReference(c.Snapshots)

	s3Client, err := objectstore.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return c, fmt.Errorf("create s3 client: %w", err)
	}
	lister := objectstore.NewS3Lister(s3Client, cfg.S3.Bucket, cfg.S3.MaxKeys)

	c.Queue = queue.NewClient(cfg.Queue, logger.Named("queue"))
	c.Watermarks = watermark.NewStore(db)

	c.Casts = casts.NewEngine(db, c.Queue,
		casts.WithLogger(logger.Named("casts")),
		casts.WithAllowList(cfg.Cohort.RootParentURLs),
		casts.WithPermalinkHost(cfg.Cohort.PermalinkHost),
		casts.WithPageSize(cfg.Ingest.StagingBatchSize),
		casts.WithBatchSizes(cfg.Queue.JobBatchSize, cfg.Queue.GrantCheckBatchSize),
	)
	c.Members = members.NewProcessor(db, c.Casts,
		members.WithLogger(logger.Named("members")),
		members.WithChannels(cfg.Cohort.Channels),
		members.WithPageSize(cfg.Ingest.StagingBatchSize),
		members.WithBackfill(cfg.Ingest.BackfillBatchSize, cfg.Ingest.BackfillFidsPerQuery),
	)
	contention := retry.Policy{
		Attempts: cfg.Ingest.LoadAttempts,
		Backoff:  cfg.Ingest.LoadBackoff,
	}
	c.Router = enrich.NewRouter(db,
		enrich.WithLogger(logger.Named("enrich")),
		enrich.WithProcessors(c.Casts, c.Members),
		enrich.WithRetryPolicy(contention),
	)

	loader := staging.NewLoader(db, lister.Bucket(),
		staging.WithLogger(logger.Named("staging")),
		staging.WithRetryPolicy(contention),
	)
	c.Discovery = discovery.NewEngine(lister, c.Watermarks, loader, c.Router, c.Reference,
		discovery.WithLogger(logger.Named("discovery")),
		discovery.WithLookback(source.Profiles, cfg.Ingest.ProfilesLookback),
		discovery.WithLookback(source.Casts, cfg.Ingest.CastsLookback),
		discovery.WithLookback(source.ChannelMembers, cfg.Ingest.ChannelMembersLookback),
	)

	c.Builders = builders.NewDispatcher(c.Queue,
		builders.WithLogger(logger.Named("builders")),
		builders.WithBatchSize(cfg.Builders.BatchSize),
		builders.WithPace(cfg.Builders.Pace),
	)
	return c, nil
}

// Close releases the database handles.
func (c *Components) Close() {
	if c.Flows != nil {
		_ = c.Flows.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// Types parses the configured ingestion types.
func Types(cfg *config.IngestConfig) ([]source.Type, error) {
	if len(cfg.Types) == 0 {
		return source.All(), nil
	}
	types := make([]source.Type, 0, len(cfg.Types))
	for _, name := range cfg.Types {
		t, err := source.Parse(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
