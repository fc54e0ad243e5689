package transfer

import (
	"context"
	"io"
	"net/url"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/store"
)

// Limiter is the throughput gate a task passes through before any network
// operation.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// ObjectStore is the destination for fetched images and their metadata.
type ObjectStore interface {
	PutStream(ctx context.Context, key string, r io.Reader, contentType string) error
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
}

// Committer is the progress ledger as seen by a task.
type Committer interface {
	Contains(id string) bool
	Commit(id string) error
}

// fetchClient abstracts the HTTP fetcher for tests.
type fetchClient interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Task runs the per-item state machine:
//
//	skip-check -> validate -> throttle -> fetch -> store object
//	          -> store metadata -> commit
//
// Tasks are stateless between items and safe to share across workers.
type Task struct {
	ledger  Committer
	limiter Limiter
	store   ObjectStore
	fetcher fetchClient
	exclude []string
	logger  *zap.SugaredLogger
}

// NewTask wires a task over its collaborators. exclude lists metadata
// fields stripped before the metadata document is stored.
func NewTask(
	ledger Committer,
	limiter Limiter,
	objStore ObjectStore,
	fetcher *Fetcher,
	exclude []string,
	logger *zap.SugaredLogger,
) *Task {
	return &Task{
		ledger:  ledger,
		limiter: limiter,
		store:   objStore,
		fetcher: fetcher,
		exclude: exclude,
		logger:  logger,
	}
}

// Run executes the state machine for one item. It always returns a terminal
// Outcome; per-item failures are reported in the outcome, never panicked or
// propagated as run-level errors. Only credential failures produce
// StatusFatal.
func (t *Task) Run(ctx context.Context, item *dataset.Item) Outcome {
	if t.ledger.Contains(item.ID) {
		return Outcome{ID: item.ID, Status: StatusAlreadyDone}
	}

	if !validSourceURL(item.SourceURL) {
		t.logger.Warnw("Skipping item with invalid source URL", "id", item.ID, "url", item.SourceURL)
		// A permanently-invalid item is done by definition: commit it so
		// future runs do not retry it forever.
		if err := t.ledger.Commit(item.ID); err != nil {
			return Outcome{ID: item.ID, Status: StatusFailed, Err: err}
		}
		return Outcome{ID: item.ID, Status: StatusInvalid, Err: errors.Newf("invalid source URL %q", item.SourceURL)}
	}

	if err := t.limiter.Acquire(ctx); err != nil {
		return Outcome{ID: item.ID, Status: StatusFailed, Err: err}
	}

	body, err := t.fetcher.Fetch(ctx, item.SourceURL)
	if err != nil {
		return Outcome{ID: item.ID, Status: StatusFailed, Err: errors.Wrap(err, "fetch")}
	}
	defer body.Close()

	if err := t.store.PutStream(ctx, store.ImageKey(item.ID), body, "image/jpeg"); err != nil {
		return t.storeFailure(item.ID, "storing image", err)
	}

	metadata, err := item.MetadataJSON(t.exclude)
	if err != nil {
		return Outcome{ID: item.ID, Status: StatusFailed, Err: err}
	}
	if err := t.store.PutBytes(ctx, store.MetadataKey(item.ID), metadata, "application/json"); err != nil {
		return t.storeFailure(item.ID, "storing metadata", err)
	}

	if err := t.ledger.Commit(item.ID); err != nil {
		return Outcome{ID: item.ID, Status: StatusFailed, Err: errors.Wrap(err, "commit")}
	}

	return Outcome{ID: item.ID, Status: StatusMigrated}
}

// storeFailure classifies a destination-store error: credential failures
// doom the whole run, anything else is scoped to this item.
func (t *Task) storeFailure(id, op string, err error) Outcome {
	if store.IsInvalidCredentials(err) {
		return Outcome{ID: id, Status: StatusFatal, Err: errors.Wrap(err, op)}
	}
	return Outcome{ID: id, Status: StatusFailed, Err: errors.Wrap(err, op)}
}

// validSourceURL reports whether raw is fetchable: non-empty, not the "#"
// placeholder the dataset uses for missing images, and parseable with a
// scheme.
func validSourceURL(raw string) bool {
	if raw == "" || raw == "#" {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != ""
}
