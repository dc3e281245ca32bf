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
		log.Println("creating production tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&dao.ProfileDao{},
			&dao.CastDao{},
			&dao.ChannelMemberDao{},
		); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &dao.CastDao{}, "fid"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.ChannelMemberDao{}, "channel_id", "fid")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping production tables...")
		return mghelper.DropTables(ctx, db,
			&dao.ChannelMemberDao{},
			&dao.CastDao{},
			&dao.ProfileDao{},
		)
	})
}
