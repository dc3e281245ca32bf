package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "farcasterctl",
		Short:         "Operate the Farcaster ingestion pipeline by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file (empty for env only)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(snapshotCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(deleteEmbeddingCmd())
	root.AddCommand(watermarksCmd())

	return root
}
