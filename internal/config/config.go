// Package config provides YAML-based configuration loading for vinyard.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level vinyard configuration, loaded from vinyard.yaml.
type Config struct {
	DataDir      string       `yaml:"data_dir"`
	BackupDir    string       `yaml:"backup_dir"`
	PIDFile      string       `yaml:"pid_file"`
	SettingsPath string       `yaml:"settings_path"`
	Port         int          `yaml:"port"`
	Log          LogConfig    `yaml:"log"`
	Score        ScoreConfig  `yaml:"score"`
	Backup       BackupConfig `yaml:"backup"`
	Notify       NotifyConfig `yaml:"notify"`
}

// LogConfig holds application and migration log settings.
type LogConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Path          string `yaml:"path"`
	MigrationPath string `yaml:"migration_path"`
}

// ScoreConfig holds the desirability weights. They must sum to 1.
type ScoreConfig struct {
	PriceWeight    float64 `yaml:"price_weight"`
	MileageWeight  float64 `yaml:"mileage_weight"`
	YearWeight     float64 `yaml:"year_weight"`
	DistanceWeight float64 `yaml:"distance_weight"`
}

// BackupConfig controls backup retention and the prune schedule.
type BackupConfig struct {
	Retain   int    `yaml:"retain"`
	Schedule string `yaml:"schedule"`
}

// NotifyConfig holds optional notifier credentials. Empty sections disable
// the corresponding adapter.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack notifier adapter.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig configures the Discord notifier adapter.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.BackupDir == "" {
		c.BackupDir = "backups"
	}
	if c.PIDFile == "" {
		c.PIDFile = "vinyard.pid"
	}
	if c.SettingsPath == "" {
		c.SettingsPath = "settings.json"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Path == "" {
		c.Log.Path = "vinyard.log"
	}
	if c.Log.MigrationPath == "" {
		c.Log.MigrationPath = "migrations.log"
	}
	zero := ScoreConfig{}
	if c.Score == zero {
		c.Score = ScoreConfig{
			PriceWeight:    0.40,
			MileageWeight:  0.30,
			YearWeight:     0.20,
			DistanceWeight: 0.10,
		}
	}
	if c.Backup.Retain == 0 {
		c.Backup.Retain = 10
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
	}
	sum := c.Score.PriceWeight + c.Score.MileageWeight + c.Score.YearWeight + c.Score.DistanceWeight
	if math.Abs(sum-1.0) > 1e-9 {
		errs = append(errs, fmt.Sprintf("score weights sum to %.3f, want 1.0", sum))
	}
	for _, w := range []float64{c.Score.PriceWeight, c.Score.MileageWeight, c.Score.YearWeight, c.Score.DistanceWeight} {
		if w < 0 {
			errs = append(errs, "score weights must be non-negative")
			break
		}
	}
	if c.Backup.Retain < 1 {
		errs = append(errs, "backup.retain must be at least 1")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
