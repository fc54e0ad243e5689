// Package commands implements the specsync subcommands.
package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openherbarium/specsync/internal/config"
	"github.com/openherbarium/specsync/internal/logger"
)

// setup loads configuration, applies explicit flag overrides, and builds
// the logger from the root command's persistent flags.
func setup(cmd *cobra.Command) (*config.Config, *zap.SugaredLogger, error) {
	jsonLogs, _ := cmd.Root().PersistentFlags().GetBool("json-logs")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	log, err := logger.New(jsonLogs, verbose)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	// Flags set explicitly on the command line win over file and env.
	flags := cmd.Flags()
	if flags.Changed("bucket") {
		cfg.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("region") {
		cfg.Region, _ = flags.GetString("region")
	}
	if flags.Changed("dataset") {
		cfg.DatasetPath, _ = flags.GetString("dataset")
	}
	if flags.Changed("ledger") {
		cfg.LedgerPath, _ = flags.GetString("ledger")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimitPerMinute, _ = flags.GetInt("rate-limit")
	}

	return cfg, log, nil
}

// addCommonFlags registers the flags shared by migrate and audit.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("bucket", "", "Destination S3 bucket")
	cmd.Flags().String("region", "", "AWS region override")
	cmd.Flags().String("dataset", "", "Source dataset CSV path")
	cmd.Flags().String("ledger", "", "Progress ledger path")
}
