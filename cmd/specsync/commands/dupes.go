package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/dupes"
	"github.com/openherbarium/specsync/internal/transfer"
)

// DupesCmd reports on duplicated dataset ids.
var DupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Report duplicate dataset ids with image content hashes",
	Long: `Dupes finds ids that occur more than once in the dataset, fetches each
record's image, and compares content hashes. One unique hash per id means
the duplicates are re-listings of the same image; more than one means a
genuine conflict.`,
	RunE: runDupes,
}

func init() {
	DupesCmd.Flags().String("dataset", "", "Source dataset CSV path")
}

func runDupes(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	if cfg.DatasetPath == "" {
		return errors.New("dataset path is required")
	}
	ctx := cmd.Context()

	items, err := dataset.NewCSVReader(cfg.DatasetPath, cfg.IDColumn, cfg.URLColumn).ReadAll()
	if err != nil {
		return err
	}

	groups := dataset.DuplicateIDs(items)
	pterm.Printf("Duplicate ids: %d\n", len(groups))
	if len(groups) == 0 {
		return nil
	}

	fetcher := transfer.NewFetcher(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, log)
	entries := dupes.Report(ctx, groups, fetcher, log)

	rows := pterm.TableData{{"ID", "Images", "Unique hashes", "Content types", "Errors"}}
	for _, e := range entries {
		rows = append(rows, []string{
			e.ID,
			fmt.Sprintf("%d", e.ImageCount),
			fmt.Sprintf("%d", e.UniqueHashes),
			strings.Join(e.ContentTypes, ", "),
			fmt.Sprintf("%d", len(e.Errors)),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
