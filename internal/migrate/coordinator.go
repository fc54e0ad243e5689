// Package migrate orchestrates the migration run: a bounded worker pool
// drains the item sequence, one transfer task per item, and aggregates the
// outcomes.
package migrate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/transfer"
)

// TaskRunner executes the per-item state machine. Satisfied by
// *transfer.Task.
type TaskRunner interface {
	Run(ctx context.Context, item *dataset.Item) transfer.Outcome
}

// Summary aggregates the outcomes of one run. The ledger does not
// distinguish migrated from invalid, but the summary does, so operators can
// see how much of the "done" count is real.
type Summary struct {
	Total       int
	Migrated    int
	AlreadyDone int
	Invalid     int
	Failed      int

	// Unscheduled counts items never started because a fatal failure
	// stopped scheduling.
	Unscheduled int
}

// Completed returns the number of items whose task reached a terminal state
// this run.
func (s *Summary) Completed() int {
	return s.Migrated + s.AlreadyDone + s.Invalid + s.Failed
}

// Coordinator runs transfer tasks over a fixed-size worker pool. No more
// than the configured number of tasks execute concurrently and no
// processing order is guaranteed.
type Coordinator struct {
	task        TaskRunner
	concurrency int
	logger      *zap.SugaredLogger

	// onProgress, when set, is called after each task reaches a terminal
	// state with the completed and total counts.
	onProgress func(done, total int)
}

// NewCoordinator creates a coordinator running at most concurrency tasks in
// parallel.
func NewCoordinator(task TaskRunner, concurrency int, logger *zap.SugaredLogger) *Coordinator {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Coordinator{
		task:        task,
		concurrency: concurrency,
		logger:      logger,
	}
}

// WithProgress sets the per-completion progress callback.
func (c *Coordinator) WithProgress(fn func(done, total int)) *Coordinator {
	c.onProgress = fn
	return c
}

// Run executes one task per item and blocks until every scheduled task has
// reached a terminal state. Per-item failures are logged and tallied but do
// not stop the run. A fatal outcome (credential failure) cancels the run
// context so no further tasks start; in-flight tasks finish or are
// abandoned, and the first fatal error is returned.
func (c *Coordinator) Run(ctx context.Context, items []*dataset.Item) (*Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := &Summary{Total: len(items)}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fatalErr error
		done     int
	)
	semaphore := make(chan struct{}, c.concurrency)

	scheduled := 0
	for _, item := range items {
		select {
		case semaphore <- struct{}{}:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}
		scheduled++

		wg.Add(1)
		go func(item *dataset.Item) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			outcome := c.task.Run(runCtx, item)

			mu.Lock()
			switch outcome.Status {
			case transfer.StatusMigrated:
				summary.Migrated++
			case transfer.StatusAlreadyDone:
				summary.AlreadyDone++
			case transfer.StatusInvalid:
				summary.Invalid++
			case transfer.StatusFailed:
				summary.Failed++
			case transfer.StatusFatal:
				summary.Failed++
				if fatalErr == nil {
					fatalErr = outcome.Err
				}
				cancel()
			}
			done++
			completed := done
			mu.Unlock()

			switch outcome.Status {
			case transfer.StatusFailed:
				c.logger.Warnw("Item not completed", "id", outcome.ID, "error", outcome.Err)
			case transfer.StatusFatal:
				c.logger.Errorw("Fatal failure, stopping run", "id", outcome.ID, "error", outcome.Err)
			}

			if c.onProgress != nil {
				c.onProgress(completed, len(items))
			}
		}(item)
	}

	wg.Wait()

	summary.Unscheduled = len(items) - scheduled

	if fatalErr != nil {
		return summary, fatalErr
	}
	return summary, nil
}
