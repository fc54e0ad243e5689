// Package config defines the configuration structure for the application.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of specsync.yml.
type Config struct {
	// Bucket is the destination S3 bucket.
	Bucket string `mapstructure:"bucket"`

	// Region overrides the AWS region from the default credential chain.
	Region string `mapstructure:"region"`

	// DatasetPath is the source CSV file enumerating items to migrate.
	DatasetPath string `mapstructure:"dataset_path"`

	// LedgerPath is the flat append-only file of committed ids.
	LedgerPath string `mapstructure:"ledger_path"`

	// RetryListPath is where the auditor writes ghost ids.
	RetryListPath string `mapstructure:"retry_list_path"`

	// Concurrency is the worker pool size.
	Concurrency int `mapstructure:"concurrency"`

	// RateLimitPerMinute bounds outbound fetches across all workers.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`

	// HTTPTimeoutSeconds is the per-request fetch timeout.
	HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`

	// IDColumn and URLColumn name the dataset columns holding the item id
	// and the image URL.
	IDColumn  string `mapstructure:"id_column"`
	URLColumn string `mapstructure:"url_column"`

	// ExcludeFields lists metadata fields dropped from the stored metadata
	// document (oversized or redundant columns).
	ExcludeFields []string `mapstructure:"exclude_fields"`
}

// Load reads configuration from specsync.yml in the current directory,
// with SPECSYNC_* environment variable overrides, and falls back to
// defaults for anything unset.
func Load() (*Config, error) {
	viper.SetConfigName("specsync")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")

	// SPECSYNC_LEDGER_PATH overrides ledger_path, and so on.
	viper.SetEnvPrefix("SPECSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Empty defaults register the keys so environment overrides reach
	// Unmarshal even when no config file sets them.
	viper.SetDefault("bucket", "")
	viper.SetDefault("region", "")
	viper.SetDefault("dataset_path", "")
	viper.SetDefault("ledger_path", "uploaded.txt")
	viper.SetDefault("retry_list_path", "needs_retry.txt")
	viper.SetDefault("concurrency", 10)
	viper.SetDefault("rate_limit_per_minute", 60)
	viper.SetDefault("http_timeout_seconds", 15)
	viper.SetDefault("id_column", "id")
	viper.SetDefault("url_column", "image_resized_60")
	viper.SetDefault("exclude_fields", []string{"image_resized_10"})

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "config: reading specsync.yml")
		}
		// No config file; defaults, flags, and env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshaling")
	}

	return &cfg, nil
}

// Validate checks the settings a migration or audit run cannot proceed
// without.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.DatasetPath == "" {
		return errors.New("config: dataset_path is required")
	}
	if c.Concurrency <= 0 {
		return errors.Newf("config: concurrency must be positive, got %d", c.Concurrency)
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.Newf("config: rate_limit_per_minute must be positive, got %d", c.RateLimitPerMinute)
	}
	return nil
}
