package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rocketman-21/farcaster-cron/pkg/app/ingester"
	"github.com/rocketman-21/farcaster-cron/pkg/config"
	"github.com/rocketman-21/farcaster-cron/pkg/discovery"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	"github.com/rocketman-21/farcaster-cron/pkg/queue"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
	"github.com/rocketman-21/farcaster-cron/pkg/source"
	"github.com/rocketman-21/farcaster-cron/pkg/watermark"
)

func snapshotCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Rewrite the reference data snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(func(ctx context.Context, c *ingester.Components, _ *zap.Logger) error {
				if file != "" {
					return c.Snapshots.Refresh(ctx, file)
				}
				return c.Snapshots.RefreshAll(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", fmt.Sprintf("refresh a single file (one of %v)", refdata.Files))
	return cmd
}

func backfillCmd() *cobra.Command {
	var belowFid int64

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed the top-level casts of every cohort member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(func(ctx context.Context, c *ingester.Components, _ *zap.Logger) error {
				ref, err := c.Reference.LoadReference(ctx)
				if err != nil {
					return fmt.Errorf("load reference data: %w", err)
				}
				return c.Members.BackfillCohort(ctx, ref, belowFid)
			})
		},
	}

	cmd.Flags().Int64Var(&belowFid, "below-fid", 0, "only backfill members with a smaller fid (0 for all)")
	return cmd
}

func ingestCmd() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one discovery pass for an ingestion type",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := source.Parse(typeName)
			if err != nil {
				return err
			}
			return withComponents(func(ctx context.Context, c *ingester.Components, logger *zap.Logger) error {
				res, err := c.Discovery.Run(ctx, t)
				if err != nil {
					return err
				}
				if res.Failed > 0 {
					return fmt.Errorf("%d of %d files failed, watermark held at %s",
						res.Failed, res.Qualified, discovery.FormatTimestamp(res.Watermark))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "ingestion type (profiles, casts, channel-members)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func deleteEmbeddingCmd() *cobra.Command {
	var (
		hash    string
		jobType string
	)

	cmd := &cobra.Command{
		Use:   "delete-embedding",
		Short: "Remove an embedding from the queue's store by content hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := queue.ParseJobType(jobType)
			if !ok {
				return fmt.Errorf("invalid type %q, expected one of %v", jobType, queue.ValidJobTypes)
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signalContext()
			defer stop()
			if err := queue.NewClient(cfg.Queue, logger).DeleteEmbedding(ctx, hash, t); err != nil {
				return err
			}
			logger.Info("embedding deleted", zap.String("hash", hash), zap.String("type", string(t)))
			return nil
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "content hash of the embedding")
	cmd.Flags().StringVar(&jobType, "type", "", "embedding type")
	_ = cmd.MarkFlagRequired("hash")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func watermarksCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "watermarks",
		Short: "Print the last processed file timestamp per ingestion type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := pgutil.ConnectDB(&cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signalContext()
			defer stop()
			all, err := watermark.NewStore(db).All(ctx)
			if err != nil {
				return err
			}
			return printWatermarks(cmd.OutOrStdout(), all, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

type watermarkRow struct {
	Type          string `json:"type" yaml:"type"`
	Millis        int64  `json:"ms" yaml:"ms"`
	LastProcessed string `json:"last_processed" yaml:"last_processed"`
}

func printWatermarks(w io.Writer, all map[source.Type]int64, jsonOutput bool) error {
	rows := make([]watermarkRow, 0, len(source.All()))
	for _, t := range source.All() {
		rows = append(rows, watermarkRow{
			Type:          string(t),
			Millis:        all[t],
			LastProcessed: discovery.FormatTimestamp(all[t]),
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return err
	}
	return enc.Close()
}

func setup() (*config.Config, *zap.Logger, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, nil, fmt.Errorf("load env file: %w", err)
			}
		}
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Logging, "farcasterctl")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func withComponents(fn func(ctx context.Context, c *ingester.Components, logger *zap.Logger) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	c, err := ingester.Build(ctx, cfg, logger)
	defer c.Close()
	if err != nil {
		return err
	}
	return fn(ctx, c, logger)
}
