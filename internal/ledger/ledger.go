// Package ledger implements the durable progress ledger: an append-only
// file of item ids whose migration has reached a terminal state.
//
// The ledger is the sole source of truth for "do not redo this item". An id
// is written only after the item's transfer has fully completed (record
// after effect, never before), and once written it is never rewritten or
// removed. The file format is one id per line with no header, so an
// existing `uploaded.txt` from a previous tool keeps working.
package ledger

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Ledger tracks committed item ids. All workers share one instance; reads
// hit an in-memory set while commits serialize through a mutex around the
// durable append.
type Ledger struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	file   *os.File
	logger *zap.SugaredLogger
}

// Open loads the ledger at path into memory and opens it for appending.
// A missing file is not an error: it is an empty ledger.
func Open(path string, logger *zap.SugaredLogger) (*Ledger, error) {
	ids := make(map[string]struct{})

	existing, err := os.Open(path)
	switch {
	case err == nil:
		scanner := bufio.NewScanner(existing)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id != "" {
				ids[id] = struct{}{}
			}
		}
		scanErr := scanner.Err()
		existing.Close()
		if scanErr != nil {
			return nil, errors.Wrapf(scanErr, "ledger: reading %s", path)
		}
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "ledger: opening %s", path)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "ledger: opening %s for append", path)
	}

	logger.Infow("Ledger loaded", "path", path, "committed", len(ids))

	return &Ledger{
		ids:    ids,
		file:   file,
		logger: logger,
	}, nil
}

// Contains reports whether id has already been committed.
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Commit durably records id as done. Committing an id that is already
// present is a no-op. The append is flushed to stable storage before Commit
// returns, so a commit observed by the caller survives an immediate crash.
// A failed commit leaves previously durable entries intact.
func (l *Ledger) Commit(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[id]; ok {
		return nil
	}

	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return errors.Wrapf(err, "ledger: appending %s", id)
	}
	if err := l.file.Sync(); err != nil {
		return errors.Wrapf(err, "ledger: syncing after %s", id)
	}

	l.ids[id] = struct{}{}
	return nil
}

// Len returns the number of committed ids.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids)
}

// IDs returns a copy of the committed id set, for use by the auditor.
func (l *Ledger) IDs() map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]struct{}, len(l.ids))
	for id := range l.ids {
		out[id] = struct{}{}
	}
	return out
}

// Close releases the underlying file handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return errors.Wrap(err, "ledger: close")
	}
	return nil
}
