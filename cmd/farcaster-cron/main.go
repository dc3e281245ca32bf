package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/rocketman-21/farcaster-cron/pkg/app"
	"github.com/rocketman-21/farcaster-cron/pkg/app/ingester"
	"github.com/rocketman-21/farcaster-cron/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file (empty for env only)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = ingester.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "farcaster-cron stopped: %v\n", err)
		os.Exit(1)
	}
}

// loadEnv loads path if it exists. Variables already set in the process win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
