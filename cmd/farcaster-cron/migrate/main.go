package main

import (
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/migrate"

	"github.com/rocketman-21/farcaster-cron/pkg/config"
	"github.com/rocketman-21/farcaster-cron/pkg/migrations/ingestdb"
	"github.com/rocketman-21/farcaster-cron/pkg/pgutil"
	mghelper "github.com/rocketman-21/farcaster-cron/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// .env is optional here
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Println("Running migrations for the ingest database...")

	migrator := migrate.NewMigrator(db, ingestdb.Migrations)
	if err := mghelper.RunMigrations(migrator, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
