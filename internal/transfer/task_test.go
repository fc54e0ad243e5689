package transfer

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/openherbarium/specsync/internal/dataset"
	"github.com/openherbarium/specsync/internal/ledger"
	"github.com/openherbarium/specsync/internal/store"
)

type fakeLedger struct {
	ids       map[string]struct{}
	commitErr error
	commits   []string
}

func newFakeLedger(ids ...string) *fakeLedger {
	l := &fakeLedger{ids: make(map[string]struct{})}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

func (l *fakeLedger) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

func (l *fakeLedger) Commit(id string) error {
	if l.commitErr != nil {
		return l.commitErr
	}
	l.ids[id] = struct{}{}
	l.commits = append(l.commits, id)
	return nil
}

type fakeLimiter struct {
	calls int
	err   error
}

func (l *fakeLimiter) Acquire(context.Context) error {
	l.calls++
	return l.err
}

type recordedPut struct {
	key         string
	contentType string
	data        []byte
}

type fakeStore struct {
	puts         []recordedPut
	putStreamErr error
	putBytesErr  error
}

func (s *fakeStore) PutStream(_ context.Context, key string, r io.Reader, contentType string) error {
	if s.putStreamErr != nil {
		return s.putStreamErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.puts = append(s.puts, recordedPut{key: key, contentType: contentType, data: data})
	return nil
}

func (s *fakeStore) PutBytes(_ context.Context, key string, data []byte, contentType string) error {
	if s.putBytesErr != nil {
		return s.putBytesErr
	}
	s.puts = append(s.puts, recordedPut{key: key, contentType: contentType, data: data})
	return nil
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type fakeFetcher struct {
	body  *trackedBody
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func newTestItem(id, url string) *dataset.Item {
	metadata := orderedmap.New[string, any]()
	metadata.Set("id", id)
	metadata.Set("image_resized_60", url)
	metadata.Set("image_resized_10", "thumb-"+url)
	metadata.Set("scientific_name", "Dryopteris filix-mas")
	return &dataset.Item{ID: id, SourceURL: url, Metadata: metadata}
}

type taskFixture struct {
	ledger  *fakeLedger
	limiter *fakeLimiter
	store   *fakeStore
	fetcher *fakeFetcher
	task    *Task
}

func newTaskFixture() *taskFixture {
	f := &taskFixture{
		ledger:  newFakeLedger(),
		limiter: &fakeLimiter{},
		store:   &fakeStore{},
		fetcher: &fakeFetcher{body: &trackedBody{Reader: strings.NewReader("jpeg bytes")}},
	}
	f.task = &Task{
		ledger:  f.ledger,
		limiter: f.limiter,
		store:   f.store,
		fetcher: f.fetcher,
		exclude: []string{"image_resized_10"},
		logger:  testLogger(),
	}
	return f
}

func TestRun_HappyPath(t *testing.T) {
	f := newTaskFixture()
	item := newTestItem("item-1", "http://example.com/item-1.jpg")

	outcome := f.task.Run(context.Background(), item)

	assert.Equal(t, StatusMigrated, outcome.Status)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 1, f.limiter.calls)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.True(t, f.fetcher.body.closed)

	require.Len(t, f.store.puts, 2)
	assert.Equal(t, "images/item-1.jpg", f.store.puts[0].key)
	assert.Equal(t, "image/jpeg", f.store.puts[0].contentType)
	assert.Equal(t, "jpeg bytes", string(f.store.puts[0].data))

	assert.Equal(t, "metadata/item-1.json", f.store.puts[1].key)
	assert.Equal(t, "application/json", f.store.puts[1].contentType)
	assert.JSONEq(t,
		`{"id":"item-1","image_resized_60":"http://example.com/item-1.jpg","scientific_name":"Dryopteris filix-mas"}`,
		string(f.store.puts[1].data))
	assert.NotContains(t, string(f.store.puts[1].data), "image_resized_10")

	assert.Equal(t, []string{"item-1"}, f.ledger.commits)
}

func TestRun_AlreadyDoneSkipsAllIO(t *testing.T) {
	f := newTaskFixture()
	f.ledger.ids["item-1"] = struct{}{}

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusAlreadyDone, outcome.Status)
	assert.Zero(t, f.limiter.calls)
	assert.Zero(t, f.fetcher.calls)
	assert.Empty(t, f.store.puts)
	assert.Empty(t, f.ledger.commits)
}

func TestRun_InvalidURLIsCommittedAndSkipped(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: ""},
		{name: "placeholder", url: "#"},
		{name: "no scheme", url: "example.com/image.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTaskFixture()

			outcome := f.task.Run(context.Background(), newTestItem("item-1", tt.url))

			assert.Equal(t, StatusInvalid, outcome.Status)
			assert.Error(t, outcome.Err)
			assert.Equal(t, []string{"item-1"}, f.ledger.commits, "invalid items are committed so they are never retried")
			assert.Zero(t, f.fetcher.calls)
			assert.Empty(t, f.store.puts)
		})
	}
}

func TestRun_InvalidURLCommitFailure(t *testing.T) {
	f := newTaskFixture()
	f.ledger.commitErr = errors.New("disk full")

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "#"))

	assert.Equal(t, StatusFailed, outcome.Status)
}

func TestRun_FetchFailureDoesNotCommit(t *testing.T) {
	f := newTaskFixture()
	f.fetcher.err = errors.New("connection refused")

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Empty(t, f.store.puts)
	assert.Empty(t, f.ledger.commits)
}

func TestRun_ImagePutFailureDoesNotCommit(t *testing.T) {
	f := newTaskFixture()
	f.store.putStreamErr = errors.New("internal error")

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Empty(t, f.ledger.commits)
	assert.True(t, f.fetcher.body.closed)
}

func TestRun_MetadataPutFailureDoesNotCommit(t *testing.T) {
	f := newTaskFixture()
	f.store.putBytesErr = errors.New("internal error")

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFailed, outcome.Status)
	require.Len(t, f.store.puts, 1, "image upload succeeded before metadata failed")
	assert.Empty(t, f.ledger.commits)
}

func TestRun_CredentialFailureIsFatal(t *testing.T) {
	f := newTaskFixture()
	f.store.putStreamErr = store.NewError("put_stream", "herbarium", store.ErrInvalidCredentials)

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFatal, outcome.Status)
	assert.True(t, store.IsInvalidCredentials(outcome.Err))
	assert.Empty(t, f.ledger.commits)
}

func TestRun_LedgerCommitFailure(t *testing.T) {
	f := newTaskFixture()
	f.ledger.commitErr = errors.New("disk full")

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFailed, outcome.Status)
	require.Len(t, f.store.puts, 2, "uploads happened; only the commit failed")
}

func TestRun_LimiterFailure(t *testing.T) {
	f := newTaskFixture()
	f.limiter.err = context.Canceled

	outcome := f.task.Run(context.Background(), newTestItem("item-1", "http://example.com/item-1.jpg"))

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Zero(t, f.fetcher.calls)
}

// TestRun_SecondRunIsIdempotent drives the task over the same items twice
// with a real on-disk ledger: the second run must produce zero network or
// store traffic.
func TestRun_SecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "uploaded.txt"), testLogger())
	require.NoError(t, err)
	defer led.Close()

	objStore := &fakeStore{}
	fetcher := &fakeFetcher{}
	task := &Task{
		ledger:  led,
		limiter: &fakeLimiter{},
		store:   objStore,
		fetcher: fetcher,
		logger:  testLogger(),
	}

	items := []*dataset.Item{
		newTestItem("item-1", "http://example.com/item-1.jpg"),
		newTestItem("item-2", "http://example.com/item-2.jpg"),
	}

	for _, item := range items {
		fetcher.body = &trackedBody{Reader: strings.NewReader("jpeg bytes")}
		outcome := task.Run(ctx, item)
		require.Equal(t, StatusMigrated, outcome.Status)
	}
	assert.Equal(t, 2, fetcher.calls)
	assert.Len(t, objStore.puts, 4)

	for _, item := range items {
		outcome := task.Run(ctx, item)
		assert.Equal(t, StatusAlreadyDone, outcome.Status)
	}
	assert.Equal(t, 2, fetcher.calls, "no refetch on the second run")
	assert.Len(t, objStore.puts, 4, "no re-upload on the second run")
}
