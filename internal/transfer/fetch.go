// Package transfer implements the per-item migration: fetching the source
// image over HTTP (with the retry policy) and driving the
// validate-fetch-store-commit state machine.
package transfer

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrBadStatus indicates the source responded with a non-2xx status. This is
// a permanent failure for the attempt: the server answered, so retrying the
// same request is pointless.
var ErrBadStatus = errors.New("transfer: unexpected HTTP status")

const (
	// maxAttempts bounds the total tries per fetch, including the first.
	maxAttempts = 4

	defaultUserAgent = "Mozilla/5.0"
)

// Fetcher performs rate-limit-friendly HTTP GETs against source URLs,
// retrying transient network failures with exponential backoff. Only
// connection-establishment failures and timeouts are retried; any other
// failure surfaces immediately.
type Fetcher struct {
	client *http.Client
	logger *zap.SugaredLogger

	// backoff shape, overridable in tests
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, logger *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
		initialInterval: 2 * time.Second,
		maxInterval:     30 * time.Second,
	}
}

// Fetch GETs url and returns the unread response body on success. The
// caller owns the body and must close it on every path. On retry
// exhaustion the last observed error is returned unchanged in kind.
func (f *Fetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	attempt := 0
	operation := func() (io.ReadCloser, error) {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(errors.Wrap(err, "transfer: building request"))
		}
		req.Header.Set("User-Agent", defaultUserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if isTransient(err) {
				f.logger.Debugw("Transient fetch failure", "url", url, "attempt", attempt, "error", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, backoff.Permanent(errors.Wrapf(ErrBadStatus, "transfer: GET %s returned %d", url, resp.StatusCode))
		}

		return resp.Body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialInterval
	b.Multiplier = 2
	b.MaxInterval = f.maxInterval
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	return backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx))
}

// isTransient reports whether err is a retryable network failure: a timeout
// or a connection-establishment error. Anything else, including HTTP-level
// responses, is permanent for the purposes of the retry policy.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
