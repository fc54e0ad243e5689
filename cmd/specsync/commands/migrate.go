package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/ledger"
	"github.com/openherbarium/specsync/internal/migrate"
	"github.com/openherbarium/specsync/internal/ratelimit"
	"github.com/openherbarium/specsync/internal/store"
	"github.com/openherbarium/specsync/internal/transfer"
)

// MigrateCmd runs the migration over the source dataset.
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate dataset images and metadata into the bucket",
	Long: `Migrate fetches every image named by the dataset, uploads it together
with the record's metadata, and commits the id to the ledger. Items already
in the ledger are skipped, so re-running after a crash resumes where the
previous run left off. Per-item failures are logged and retried on the next
run; a credential failure aborts immediately.`,
	RunE: runMigrate,
}

func init() {
	addCommonFlags(MigrateCmd)
	MigrateCmd.Flags().Int("concurrency", 0, "Worker pool size")
	MigrateCmd.Flags().Int("rate-limit", 0, "Maximum fetches per minute")
	MigrateCmd.Flags().String("retry-list", "", "Only migrate ids listed in this file (one per line)")
	MigrateCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	items, err := dataset.NewCSVReader(cfg.DatasetPath, cfg.IDColumn, cfg.URLColumn).ReadAll()
	if err != nil {
		return err
	}

	if retryList, _ := cmd.Flags().GetString("retry-list"); retryList != "" {
		allow, err := dataset.LoadIDFilter(retryList)
		if err != nil {
			return err
		}
		items = dataset.FilterByID(items, allow)
		log.Infow("Restricting run to retry list", "path", retryList, "ids", len(allow))
	}

	led, err := ledger.Open(cfg.LedgerPath, log)
	if err != nil {
		return err
	}
	defer led.Close()

	objStore, err := store.New(ctx, cfg.Bucket, cfg.Region, log)
	if err != nil {
		return err
	}

	task := transfer.NewTask(
		led,
		ratelimit.PerMinute(cfg.RateLimitPerMinute),
		objStore,
		transfer.NewFetcher(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, log),
		cfg.ExcludeFields,
		log,
	)
	coordinator := migrate.NewCoordinator(task, cfg.Concurrency, log)

	noProgress, _ := cmd.Flags().GetBool("no-progress")
	if !noProgress {
		bar, barErr := pterm.DefaultProgressbar.
			WithTotal(len(items)).
			WithTitle("Migrating images").
			Start()
		if barErr == nil {
			coordinator.WithProgress(func(done, total int) {
				bar.Increment()
			})
			defer func() { _, _ = bar.Stop() }()
		}
	}

	summary, runErr := coordinator.Run(ctx, items)

	pterm.Println()
	pterm.Printf("Items in dataset:    %d\n", summary.Total)
	pterm.Printf("Migrated this run:   %d\n", summary.Migrated)
	pterm.Printf("Already done:        %d\n", summary.AlreadyDone)
	pterm.Printf("Invalid (skipped):   %d\n", summary.Invalid)
	pterm.Printf("Failed (will retry): %d\n", summary.Failed)
	if summary.Unscheduled > 0 {
		pterm.Printf("Never scheduled:     %d\n", summary.Unscheduled)
	}

	if runErr != nil {
		pterm.Error.Printf("Run aborted: %v\n", runErr)
		return runErr
	}
	pterm.Success.Println("Migration run complete")
	return nil
}
