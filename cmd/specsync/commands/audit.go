package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/openherbarium/specsync/internal/audit"
	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/ledger"
	"github.com/openherbarium/specsync/internal/store"
)

// AuditCmd reconciles the bucket's contents against ledger and dataset.
var AuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Reconcile bucket contents against the ledger and dataset",
	Long: `Audit lists every image actually present in the bucket and compares it
with the ledger's claimed-complete set and the dataset's id set. Ids the
ledger claims but the bucket is missing ("ghosts") are written to a retry
list that a subsequent migrate run can consume with --retry-list.`,
	RunE: runAudit,
}

func init() {
	addCommonFlags(AuditCmd)
	AuditCmd.Flags().String("output", "", "Retry list output path (default from config)")
}

func runAudit(cmd *cobra.Command, _ []string) error {
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
	sourceIDs := dataset.IDSet(items)

	led, err := ledger.Open(cfg.LedgerPath, log)
	if err != nil {
		return err
	}
	ledgerIDs := led.IDs()
	led.Close()

	objStore, err := store.New(ctx, cfg.Bucket, cfg.Region, log)
	if err != nil {
		return err
	}

	log.Infow("Listing bucket contents", "bucket", cfg.Bucket, "prefix", store.ImagePrefix)
	storeIDs, err := objStore.ListImageIDs(ctx)
	if err != nil {
		return err
	}

	result := audit.Audit(sourceIDs, ledgerIDs, storeIDs)

	pterm.Println()
	pterm.Printf("Source rows:                  %d\n", len(sourceIDs))
	pterm.Printf("Marked uploaded (ledger):     %d\n", len(ledgerIDs))
	pterm.Printf("Actually in bucket:           %d\n", len(storeIDs))
	pterm.Printf("OK (exists and marked):       %d\n", len(result.Confirmed))
	pterm.Printf("Ghosts (marked but gone):     %d\n", len(result.Ghosts))
	pterm.Printf("Orphans (in bucket only):     %d\n", len(result.Orphans))

	if len(result.Ghosts) == 0 {
		pterm.Success.Println("Everything marked uploaded exists - nothing to retry")
		return nil
	}

	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = cfg.RetryListPath
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := result.WriteRetryList(f); err != nil {
		return err
	}

	pterm.Info.Printf("Wrote %s with %d ids\n", outPath, len(result.Ghosts))
	return nil
}
