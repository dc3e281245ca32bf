package ingestdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	mghelper "github.com/rocketman-21/farcaster-cron/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating ingest_watermarks table...")
		return mghelper.CreateSchema(ctx, db, &dao.IngestWatermarkDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping ingest_watermarks table...")
		return mghelper.DropTables(ctx, db, &dao.IngestWatermarkDao{})
	})
}
