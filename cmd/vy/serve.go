package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/zulandar/vinyard/internal/config"
	"github.com/zulandar/vinyard/internal/logger"
	"github.com/zulandar/vinyard/internal/merge"
	"github.com/zulandar/vinyard/internal/notify"
	"github.com/zulandar/vinyard/internal/notify/discord"
	"github.com/zulandar/vinyard/internal/notify/slack"
	"github.com/zulandar/vinyard/internal/pidlock"
	"github.com/zulandar/vinyard/internal/score"
	"github.com/zulandar/vinyard/internal/sites"
	"github.com/zulandar/vinyard/internal/store"
	"github.com/zulandar/vinyard/internal/web"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the listing collection server",
		Long: `Starts the vinyard HTTP server.

Startup order:
  1. Acquire the PID lock (refuses to run a second instance)
  2. Run the preflight schema migration (backs up first if work is needed)
  3. Serve requests until SIGINT/SIGTERM`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "vinyard.yaml", "path to vinyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, engine, migLog, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}

	appLog, err := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Path:   cfg.Log.Path,
	})
	if err != nil {
		return fmt.Errorf("open application log: %w", err)
	}

	lock := pidlock.New(cfg.PIDFile, appLog)
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, pidlock.ErrAlreadyRunning) {
			return fmt.Errorf("vinyard is already running (lock file %s)", cfg.PIDFile)
		}
		return err
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preflight is a barrier: no request is served until the whole store is
	// at the current schema version.
	if err := engine.Preflight(); err != nil {
		return fmt.Errorf("preflight migration failed: %w", err)
	}
	migLog.Infof("preflight complete, store at v%d", engine.Current())

	st, err := store.Open(cfg.DataDir, engine, appLog)
	if err != nil {
		return err
	}

	settings, err := config.OpenSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg, appLog)
	if err != nil {
		return err
	}

	// Backup pruning is a process-lifecycle chore, kept out of the core.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Backup.Schedule, func() {
		removed, err := engine.PruneBackups(cfg.Backup.Retain)
		if err != nil {
			appLog.Errorf("backup prune: %v", err)
			return
		}
		if removed > 0 {
			appLog.Infof("pruned %d old backup(s)", removed)
		}
	}); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", cfg.Backup.Schedule, err)
	}
	sched.Start()
	defer sched.Stop()

	return web.Start(ctx, web.StartOpts{
		Store:    st,
		Merge:    merge.NewEngine(st, sites.Default(appLog), appLog),
		Scorer:   score.NewScorer(scoreWeights(cfg)),
		Settings: settings,
		Notifier: notifier,
		Log:      appLog,
		Port:     cfg.Port,
		Out:      cmd.OutOrStdout(),
	})
}

func scoreWeights(cfg *config.Config) score.Weights {
	return score.Weights{
		Price:    cfg.Score.PriceWeight,
		Mileage:  cfg.Score.MileageWeight,
		Year:     cfg.Score.YearWeight,
		Distance: cfg.Score.DistanceWeight,
	}
}

func buildNotifier(cfg *config.Config, log logger.Logger) (*notify.Notifier, error) {
	var adapters []notify.Adapter
	if cfg.Notify.Slack.Token != "" {
		adapters = append(adapters, slack.New(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel))
	}
	if cfg.Notify.Discord.Token != "" {
		a, err := discord.New(cfg.Notify.Discord.Token, cfg.Notify.Discord.Channel)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return notify.New(log, adapters...), nil
}
