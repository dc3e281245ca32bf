package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig     `mapstructure:"server"`
	Database      DatabaseConfig   `mapstructure:"database"`
	FlowsDatabase DatabaseConfig   `mapstructure:"flows_database"`
	S3            S3Config         `mapstructure:"s3"`
	Queue         QueueConfig      `mapstructure:"queue"`
	Ingest        IngestConfig     `mapstructure:"ingest"`
	Snapshot      SnapshotConfig   `mapstructure:"snapshot"`
	Cohort        CohortConfig     `mapstructure:"cohort"`
	Builders      BuildersConfig   `mapstructure:"builders"`
	Monitoring    MonitoringConfig `mapstructure:"monitoring"`
	Logging       LoggingConfig    `mapstructure:"logging"`
	Shutdown      ShutdownConfig   `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host" default:"0.0.0.0"`
	Port int    `mapstructure:"port" default:"8080" validate:"gt=0,lt=65536"`
}

// DatabaseConfig contains database connection settings.
// URL takes precedence over the discrete fields when set.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" default:"5432"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode" default:"disable"`
}

// S3Config contains source bucket settings
type S3Config struct {
	Bucket          string `mapstructure:"bucket" default:"tf-premium-parquet" validate:"required"`
	Region          string `mapstructure:"region" default:"us-east-1" validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxKeys         int32  `mapstructure:"max_keys" default:"1000" validate:"gt=0,lte=1000"`
}

// QueueConfig contains embeddings queue settings
type QueueConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required,url"`
	APIKey              string        `mapstructure:"api_key" validate:"required"`
	Timeout             time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
	JobBatchSize        int           `mapstructure:"job_batch_size" default:"50" validate:"gt=0"`
	GrantCheckBatchSize int           `mapstructure:"grant_check_batch_size" default:"10" validate:"gt=0"`
}

// IngestConfig contains discovery, staging and enrichment settings
type IngestConfig struct {
	Dev                    bool          `mapstructure:"dev"`
	Types                  []string      `mapstructure:"types" default:"[\"profiles\",\"casts\",\"channel-members\"]" validate:"dive,oneof=profiles casts channel-members"`
	Interval               time.Duration `mapstructure:"interval" default:"2m" validate:"gt=0"`
	DevInterval            time.Duration `mapstructure:"dev_interval" default:"5s" validate:"gt=0"`
	TickTimeout            time.Duration `mapstructure:"tick_timeout" default:"15m" validate:"gt=0"`
	ProfilesLookback       time.Duration `mapstructure:"profiles_lookback" default:"168h"`
	CastsLookback          time.Duration `mapstructure:"casts_lookback" default:"10m"`
	ChannelMembersLookback time.Duration `mapstructure:"channel_members_lookback" default:"10m"`
	StagingBatchSize       int           `mapstructure:"staging_batch_size" default:"10000" validate:"gt=0"`
	BackfillBatchSize      int           `mapstructure:"backfill_batch_size" default:"1000" validate:"gt=0"`
	BackfillFidsPerQuery   int           `mapstructure:"backfill_fids_per_query" default:"2" validate:"gt=0"`
	LoadAttempts           int           `mapstructure:"load_attempts" default:"3" validate:"gt=0"`
	LoadBackoff            time.Duration `mapstructure:"load_backoff" default:"2s"`
}

// SnapshotConfig contains CSV snapshot settings
type SnapshotConfig struct {
	Dir               string        `mapstructure:"dir" default:"data" validate:"required"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval" default:"6h" validate:"gt=0"`
	RefreshTimeout    time.Duration `mapstructure:"refresh_timeout" default:"20m" validate:"gt=0"`
	ProfilesBatchSize int           `mapstructure:"profiles_batch_size" default:"10000" validate:"gt=0"`
	CitizensBatchSize int           `mapstructure:"citizens_batch_size" default:"10000" validate:"gt=0"`
	GrantsBatchSize   int           `mapstructure:"grants_batch_size" default:"1000" validate:"gt=0"`
}

// CohortConfig describes which channels and anchors count as nounish
type CohortConfig struct {
	Channels       []string `mapstructure:"channels" default:"[\"vrbs\",\"nouns\",\"gnars\",\"flows\",\"nouns-animators\",\"nouns-draws\",\"nouns-impact\",\"nouns-retro\"]" validate:"min=1"`
	RootParentURLs []string `mapstructure:"root_parent_urls" default:"[\"https://warpcast.com/~/channel/vrbs\",\"chain://eip155:1/erc721:0x9c8ff314c9bc7f6e59a9d9225fb22946427edc03\",\"chain://eip155:1/erc721:0x558bfff0d583416f7c4e380625c7865821b8e95c\",\"https://warpcast.com/~/channel/flows\"]"`
	PermalinkHost  string   `mapstructure:"permalink_host" default:"warpcast.com" validate:"required,hostname"`
}

// BuildersConfig contains builder-profile job settings
type BuildersConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval" default:"24h" validate:"gt=0"`
	Timeout   time.Duration `mapstructure:"timeout" default:"2h" validate:"gt=0"`
	BatchSize int           `mapstructure:"batch_size" default:"1" validate:"gt=0"`
	Pace      time.Duration `mapstructure:"pace" default:"30s"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout" default:"30s"`
}

// envBindings maps config keys to the environment variables the deployment already uses.
var envBindings = map[string][]string{
	"database.url":         {"DATABASE_URL", "DB_URL"},
	"flows_database.url":   {"FLOWS_DB_URL"},
	"queue.base_url":       {"EMBEDDINGS_QUEUE_URL"},
	"queue.api_key":        {"EMBEDDINGS_QUEUE_API_KEY"},
	"s3.access_key_id":     {"AWS_ACCESS_KEY", "AWS_ACCESS_KEY_ID"},
	"s3.secret_access_key": {"AWS_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"},
	"ingest.dev":           {"INGEST_DEV"},
}

// Load loads configuration from file and environment variables.
// An empty path skips the file and relies on defaults and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Struct tags cannot tell an explicit false from an unset bool.
	v.SetDefault("monitoring.enabled", true)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Only zero-valued fields are filled, so file and env values win.
	if err := defaults.Set(&config); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}
	if config.Database.URL == "" && config.Database.Host == "" {
		return errors.New("database.url or database.host is required")
	}
	if (config.S3.AccessKeyID == "") != (config.S3.SecretAccessKey == "") {
		return errors.New("s3.access_key_id and s3.secret_access_key must be set together")
	}
	return nil
}

// Configured reports whether any connection settings are present.
func (c *DatabaseConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// PollInterval returns the discovery tick interval for the current mode.
func (c *IngestConfig) PollInterval() time.Duration {
	if c.Dev {
		return c.DevInterval
	}
	return c.Interval
}
