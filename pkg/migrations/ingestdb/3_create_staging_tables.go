package ingestdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	mghelper "github.com/rocketman-21/farcaster-cron/pkg/pgutil/migrations"
)

func stagingModels() []any {
	return []any{
		&dao.StagingProfileDao{},
		&dao.StagingCastDao{},
		&dao.StagingChannelMemberDao{},
	}
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating staging tables...")
		return mghelper.CreateSchema(ctx, db, stagingModels()...)
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping staging tables...")
		return mghelper.DropTables(ctx, db, stagingModels()...)
	})
}
