package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/vinyard/internal/config"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/schema"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vy",
		Short:         "Vinyard, a VIN-deduplicated used-car listing tracker",
		Long:          "Vinyard collects car listings scraped from multiple sales sites, deduplicates them by VIN, and ranks them by desirability.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newListingsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vy %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// loadEngine builds the schema engine and its dedicated migration logger
// from a config file. Shared by every command that touches the store.
func loadEngine(configPath string) (*config.Config, *schema.Engine, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	migLog, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Path:   cfg.Log.MigrationPath,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open migration log: %w", err)
	}
	engine, err := schema.NewEngine(cfg.DataDir, cfg.BackupDir, schema.Registry(), migLog)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, engine, migLog, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
