// Package audit reconciles three independent views of the migration: the
// source dataset's id set, the ledger's claimed-complete set, and the
// destination store's live listing.
//
// The ledger is write-side-only: a crash between "object stored" and
// "ledger written", or between the write and its fsync, leaves the two out
// of step. The audit is the read-side check that finds that divergence.
package audit

import (
	"bufio"
	"io"
	"sort"
)

// Result is the three-way diff over the id universe. Purely derived; the
// caller decides what to do with it.
type Result struct {
	// Confirmed ids are claimed by the ledger and present in the store.
	Confirmed map[string]struct{}

	// Ghosts are claimed by the ledger but absent from the store: lost or
	// never actually written. These are the actionable set.
	Ghosts map[string]struct{}

	// Orphans exist in the store but not in the current source dataset.
	// Informational only.
	Orphans map[string]struct{}
}

// Audit computes the reconciliation diff. It performs no I/O; callers pass
// in the fully enumerated sets.
func Audit(sourceIDs, ledgerIDs, storeIDs map[string]struct{}) *Result {
	result := &Result{
		Confirmed: make(map[string]struct{}),
		Ghosts:    make(map[string]struct{}),
		Orphans:   make(map[string]struct{}),
	}

	for id := range ledgerIDs {
		if _, ok := storeIDs[id]; ok {
			result.Confirmed[id] = struct{}{}
		} else {
			result.Ghosts[id] = struct{}{}
		}
	}

	for id := range storeIDs {
		if _, ok := sourceIDs[id]; !ok {
			result.Orphans[id] = struct{}{}
		}
	}

	return result
}

// GhostIDs returns the ghost set sorted, for deterministic output.
func (r *Result) GhostIDs() []string {
	return sortedIDs(r.Ghosts)
}

// WriteRetryList writes the ghost ids one per line, sorted. The output is
// directly consumable as an inclusion filter by a subsequent migration run.
func (r *Result) WriteRetryList(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, id := range r.GhostIDs() {
		if _, err := bw.WriteString(id + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
