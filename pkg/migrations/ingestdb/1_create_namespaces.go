package ingestdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/rocketman-21/farcaster-cron/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating staging and production schemas...")
		return mghelper.CreateNamespaces(ctx, db, Namespaces...)
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping staging and production schemas...")
		return mghelper.DropNamespaces(ctx, db, Namespaces...)
	})
}
