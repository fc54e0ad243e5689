// Package dupes reports on duplicate dataset ids: for each id that occurs
// more than once, it fetches every record's image and compares content
// hashes to tell re-listings of the same image apart from genuine
// conflicts.
package dupes

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/openherbarium/specsync/internal/dataset"
)

// Fetcher fetches an image body. Satisfied by *transfer.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Entry describes one duplicated id.
type Entry struct {
	ID           string
	ImageCount   int
	UniqueHashes int
	Hashes       []string
	ContentTypes []string
	Errors       []string
}

// Report fetches and hashes every record in each duplicate group. Fetch
// failures are recorded per URL and never abort the report.
func Report(ctx context.Context, groups map[string][]*dataset.Item, fetcher Fetcher, logger *zap.SugaredLogger) []Entry {
	entries := make([]Entry, 0, len(groups))

	for id, group := range groups {
		entry := Entry{
			ID:         id,
			ImageCount: len(group),
		}

		hashes := make(map[string]struct{})
		contentTypes := make(map[string]struct{})
		for _, item := range group {
			sum, contentType, err := hashURL(ctx, fetcher, item.SourceURL)
			if err != nil {
				logger.Warnw("Could not hash duplicate image", "id", id, "url", item.SourceURL, "error", err)
				entry.Errors = append(entry.Errors, fmt.Sprintf("%s: %v", item.SourceURL, err))
				continue
			}
			hashes[sum] = struct{}{}
			contentTypes[contentType] = struct{}{}
		}

		entry.UniqueHashes = len(hashes)
		entry.Hashes = sortedKeys(hashes)
		entry.ContentTypes = sortedKeys(contentTypes)
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// hashURL fetches url once and returns the body's MD5 hex digest and
// sniffed content type.
func hashURL(ctx context.Context, fetcher Fetcher, url string) (string, string, error) {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return "", "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", "", err
	}

	return fmt.Sprintf("%x", md5.Sum(data)), mimetype.Detect(data).String(), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
