package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVReader_ReadAll(t *testing.T) {
	path := writeTempCSV(t,
		"id,scientific_name,image_resized_60,image_resized_10\n"+
			"item-1,Dryopteris filix-mas,http://example.com/1.jpg,http://example.com/1-thumb.jpg\n"+
			"item-2,Asplenium nidus,#,#\n")

	items, err := NewCSVReader(path, "id", "image_resized_60").ReadAll()
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "item-1", items[0].ID)
	assert.Equal(t, "http://example.com/1.jpg", items[0].SourceURL)
	assert.Equal(t, "item-2", items[1].ID)
	assert.Equal(t, "#", items[1].SourceURL)

	name, ok := items[0].Metadata.Get("scientific_name")
	require.True(t, ok)
	assert.Equal(t, "Dryopteris filix-mas", name)
}

func TestCSVReader_MissingColumns(t *testing.T) {
	tests := []struct {
		name      string
		idColumn  string
		urlColumn string
	}{
		{name: "missing id column", idColumn: "uuid", urlColumn: "image_resized_60"},
		{name: "missing url column", idColumn: "id", urlColumn: "image_full"},
	}

	path := writeTempCSV(t, "id,image_resized_60\nitem-1,http://example.com/1.jpg\n")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVReader(path, tt.idColumn, tt.urlColumn).ReadAll()
			assert.Error(t, err)
		})
	}
}

func TestCSVReader_MissingFile(t *testing.T) {
	_, err := NewCSVReader(filepath.Join(t.TempDir(), "nope.csv"), "id", "url").ReadAll()
	assert.Error(t, err)
}

func TestMetadataJSON_PreservesOrderAndExcludes(t *testing.T) {
	metadata := orderedmap.New[string, any]()
	metadata.Set("id", "item-1")
	metadata.Set("image_resized_60", "http://example.com/1.jpg")
	metadata.Set("image_resized_10", "http://example.com/1-thumb.jpg")
	metadata.Set("scientific_name", "Dryopteris filix-mas")
	item := &Item{ID: "item-1", Metadata: metadata}

	data, err := item.MetadataJSON([]string{"image_resized_10"})
	require.NoError(t, err)

	// Field order must follow the source record.
	assert.Equal(t,
		`{"id":"item-1","image_resized_60":"http://example.com/1.jpg","scientific_name":"Dryopteris filix-mas"}`,
		string(data))
}

func TestMetadataJSON_NilMetadata(t *testing.T) {
	item := &Item{ID: "item-1"}

	data, err := item.MetadataJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestIDSet(t *testing.T) {
	items := []*Item{{ID: "a"}, {ID: "b"}, {ID: "a"}}

	ids := IDSet(items)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "a")
	assert.Contains(t, ids, "b")
}

func TestDuplicateIDs(t *testing.T) {
	items := []*Item{
		{ID: "a", SourceURL: "http://example.com/a1.jpg"},
		{ID: "b", SourceURL: "http://example.com/b.jpg"},
		{ID: "a", SourceURL: "http://example.com/a2.jpg"},
	}

	dupes := DuplicateIDs(items)
	require.Len(t, dupes, 1)
	require.Len(t, dupes["a"], 2)
	assert.Equal(t, "http://example.com/a1.jpg", dupes["a"][0].SourceURL)
	assert.Equal(t, "http://example.com/a2.jpg", dupes["a"][1].SourceURL)
}

func TestDuplicateIDs_NoDuplicates(t *testing.T) {
	assert.Empty(t, DuplicateIDs([]*Item{{ID: "a"}, {ID: "b"}}))
}

func TestLoadIDFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry.txt")
	require.NoError(t, os.WriteFile(path, []byte("item-1\nitem-2\n\n  item-3  \n"), 0o644))

	ids, err := LoadIDFilter(path)
	require.NoError(t, err)

	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "item-3", "surrounding whitespace is trimmed")
}

func TestFilterByID(t *testing.T) {
	items := []*Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	filtered := FilterByID(items, map[string]struct{}{"a": {}, "c": {}})
	require.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].ID)
	assert.Equal(t, "c", filtered[1].ID)
}

func TestFilterByID_NilAllowsEverything(t *testing.T) {
	items := []*Item{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, items, FilterByID(items, nil))
}
