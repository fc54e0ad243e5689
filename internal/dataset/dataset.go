// Package dataset is the boundary to the source dataset: it materializes
// migration items from a tabular file and provides the id-set helpers the
// coordinator and auditor consume.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Item is one unit of migration work: an id, the image URL to fetch, and
// the full source record as an ordered field mapping. Items are transient;
// only their outcome persists (in the ledger).
type Item struct {
	ID        string
	SourceURL string

	// Metadata preserves the source record's field order so the metadata
	// document written to the store round-trips deterministically.
	Metadata *orderedmap.OrderedMap[string, any]
}

// MetadataJSON serializes the item's metadata minus the excluded fields.
// Field order follows the source record.
func (it *Item) MetadataJSON(exclude []string) ([]byte, error) {
	pruned := orderedmap.New[string, any]()
	if it.Metadata != nil {
		for pair := it.Metadata.Oldest(); pair != nil; pair = pair.Next() {
			if contains(exclude, pair.Key) {
				continue
			}
			pruned.Set(pair.Key, pair.Value)
		}
	}

	data, err := json.Marshal(pruned)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: serializing metadata for %s", it.ID)
	}
	return data, nil
}

func contains(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// Reader enumerates the source dataset. The core only ever reads it.
type Reader interface {
	// ReadAll materializes every item in dataset order.
	ReadAll() ([]*Item, error)
}

// CSVReader reads items from a headered CSV file. The id and source-url
// columns are named in configuration; every column, in header order,
// becomes part of the item's metadata.
type CSVReader struct {
	path      string
	idColumn  string
	urlColumn string
}

// NewCSVReader creates a reader for the dataset at path.
func NewCSVReader(path, idColumn, urlColumn string) *CSVReader {
	return &CSVReader{
		path:      path,
		idColumn:  idColumn,
		urlColumn: urlColumn,
	}
}

// ReadAll implements Reader.
func (r *CSVReader) ReadAll() ([]*Item, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: opening %s", r.path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: reading header of %s", r.path)
	}

	idIdx, urlIdx := -1, -1
	for i, name := range header {
		switch name {
		case r.idColumn:
			idIdx = i
		case r.urlColumn:
			urlIdx = i
		}
	}
	if idIdx < 0 {
		return nil, errors.Newf("dataset: %s has no %q column", r.path, r.idColumn)
	}
	if urlIdx < 0 {
		return nil, errors.Newf("dataset: %s has no %q column", r.path, r.urlColumn)
	}

	var items []*Item
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: reading %s", r.path)
		}

		metadata := orderedmap.New[string, any]()
		for i, name := range header {
			if i < len(record) {
				metadata.Set(name, record[i])
			}
		}

		items = append(items, &Item{
			ID:        record[idIdx],
			SourceURL: record[urlIdx],
			Metadata:  metadata,
		})
	}

	return items, nil
}

// IDSet returns the set of item ids, for the auditor.
func IDSet(items []*Item) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}
	return ids
}

// DuplicateIDs groups items whose id occurs more than once in the dataset.
func DuplicateIDs(items []*Item) map[string][]*Item {
	byID := make(map[string][]*Item)
	for _, it := range items {
		byID[it.ID] = append(byID[it.ID], it)
	}
	for id, group := range byID {
		if len(group) < 2 {
			delete(byID, id)
		}
	}
	return byID
}

// LoadIDFilter reads an inclusion list (one id per line, the auditor's
// retry-list format) from path.
func LoadIDFilter(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: opening id filter %s", path)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "dataset: reading id filter %s", path)
	}
	return ids, nil
}

// FilterByID returns the items whose id is in allow. A nil allow set leaves
// the input untouched.
func FilterByID(items []*Item, allow map[string]struct{}) []*Item {
	if allow == nil {
		return items
	}
	filtered := make([]*Item, 0, len(allow))
	for _, it := range items {
		if _, ok := allow[it.ID]; ok {
			filtered = append(filtered, it)
		}
	}
	return filtered
}
