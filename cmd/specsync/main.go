package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openherbarium/specsync/cmd/specsync/commands"
)

var rootCmd = &cobra.Command{
	Use:   "specsync",
	Short: "specsync - resumable bulk image migration to S3",
	Long: `specsync migrates a dataset of remote-hosted images plus derived
metadata into an S3 bucket, and audits the result.

The migration is resumable: every completed item is committed to a durable
ledger, so a crash or restart never redoes finished work and never silently
drops an item. The audit independently reconciles the bucket's actual
contents against the ledger and the source dataset, and emits a retry list
for anything the ledger claims but the bucket is missing.

Commands:
  migrate  - run the migration over the source dataset
  audit    - reconcile bucket contents against the ledger and dataset
  dupes    - report duplicate dataset ids with image content hashes

Examples:
  specsync migrate --bucket my-bucket --dataset specimens.csv
  specsync migrate --bucket my-bucket --dataset specimens.csv --retry-list needs_retry.txt
  specsync audit --bucket my-bucket --dataset specimens.csv`,
}

func main() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit JSON structured logs instead of console output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.AuditCmd)
	rootCmd.AddCommand(commands.DupesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
