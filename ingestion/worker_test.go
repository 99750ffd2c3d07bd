package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/extract"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/storage/memory"
	"github.com/poiesic/ragstream/textsplit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type fixture struct {
	queue    *queue.Memory
	embedder *mock.MockEmbedder
	store    *memory.Store
	catalog  *catalog.Memory
	splitter *textsplit.Splitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	splitter, err := textsplit.New(500, 50)
	require.NoError(t, err)
	f := &fixture{
		queue:    queue.NewMemory(),
		embedder: mock.NewMockEmbedder(testDim),
		store:    memory.NewStore(testDim),
		catalog:  catalog.NewMemory(),
		splitter: splitter,
	}
	t.Cleanup(func() { f.queue.Close() })
	return f
}

func (f *fixture) worker(t *testing.T, opts ...Option) *Worker {
	t.Helper()
	return f.workerWith(t, extract.NewDispatcher(), f.store, opts...)
}

func (f *fixture) workerWith(t *testing.T, ext Extractor, store storage.VectorStore, opts ...Option) *Worker {
	t.Helper()
	opts = append([]Option{WithCatalog(f.catalog), WithBackoff(5 * time.Millisecond)}, opts...)
	w, err := NewWorker("test", f.queue, ext, f.splitter, f.embedder, store, opts...)
	require.NoError(t, err)
	return w
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

type stubExtractor struct {
	result *extract.Result
	err    error
}

func (s stubExtractor) Extract(context.Context, string, string) (*extract.Result, error) {
	return s.result, s.err
}

type failingStore struct {
	*memory.Store
}

func (failingStore) AddChunks(context.Context, []*core.Chunk) error {
	return errors.New("disk full")
}

func TestNewWorkerRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	ext := extract.NewDispatcher()
	tests := []struct {
		name string
		make func() (*Worker, error)
		want error
	}{
		{"queue", func() (*Worker, error) { return NewWorker("w", nil, ext, f.splitter, f.embedder, f.store) }, ErrQueueRequired},
		{"extractor", func() (*Worker, error) { return NewWorker("w", f.queue, nil, f.splitter, f.embedder, f.store) }, ErrExtractorRequired},
		{"splitter", func() (*Worker, error) { return NewWorker("w", f.queue, ext, nil, f.embedder, f.store) }, ErrSplitterRequired},
		{"embedder", func() (*Worker, error) { return NewWorker("w", f.queue, ext, f.splitter, nil, f.store) }, ErrEmbedderRequired},
		{"store", func() (*Worker, error) { return NewWorker("w", f.queue, ext, f.splitter, f.embedder, nil) }, ErrStoreRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.make()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProcessShortTextStoresOneChunk(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	require.NoError(t, f.catalog.Put(ctx, &core.Document{ID: "doc-1", Filename: "notes.txt"}))
	job := core.IngestionJob{DocumentID: "doc-1", Filename: "notes.txt", FilePath: writeFile(t, "upload", "hello world")}
	require.NoError(t, w.Process(ctx, job))

	hits, err := f.store.Search(ctx, mock.HashVector("hello world", testDim), 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	c := hits[0].Chunk
	assert.Equal(t, "hello world", c.Content)
	assert.Equal(t, 0, c.ChunkIndex)
	assert.Equal(t, core.ChunkID("doc-1", 0), c.ID)
	assert.Equal(t, "notes.txt", c.Filename())
	assert.Equal(t, "0", c.Metadata[core.MetaChunkIndex])
	assert.NotContains(t, c.Metadata, core.MetaPage)

	doc, err := f.catalog.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, doc.Processed)
}

func TestProcessUnreadableSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	tests := []struct {
		name string
		job  core.IngestionJob
	}{
		{"missing file", core.IngestionJob{DocumentID: "d1", Filename: "gone.txt", FilePath: filepath.Join(t.TempDir(), "gone.txt")}},
		{"corrupt pdf", core.IngestionJob{DocumentID: "d2", Filename: "broken.pdf", FilePath: writeFile(t, "broken.pdf", "this is not a pdf")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Process(ctx, tt.job)
			assert.ErrorIs(t, err, core.ErrExtraction)
		})
	}

	assert.Zero(t, f.count(t))
	assert.Zero(t, f.embedder.CallCount())
	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	assert.Equal(t, "d1", dead[0].Job.DocumentID)
	assert.Contains(t, dead[0].Reason, "extraction failed")
}

func TestProcessEmptyContentIsAbandoned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	require.NoError(t, w.Process(ctx, core.IngestionJob{
		DocumentID: "d", Filename: "blank.txt", FilePath: writeFile(t, "blank.txt", " \n\t "),
	}))
	assert.Zero(t, f.count(t))
	assert.Zero(t, f.embedder.CallCount())
	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, dead)
}

func TestProcessInvalidJob(t *testing.T) {
	f := newFixture(t)
	w := f.worker(t)
	err := w.Process(context.Background(), core.IngestionJob{DocumentID: "d"})
	assert.ErrorIs(t, err, core.ErrInvalidJob)
}

func TestProcessEmbedsInOneBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	splitter, err := textsplit.New(16, 2)
	require.NoError(t, err)
	f.splitter = splitter
	w := f.worker(t)

	text := "aaaa bbbb.\n\ncccc dddd eeee ffff gggg"
	require.NoError(t, w.Process(ctx, core.IngestionJob{
		DocumentID: "doc", FilePath: writeFile(t, "long.txt", text),
	}))

	want := splitter.SplitText(text)
	require.Greater(t, len(want), 1)
	assert.Equal(t, []int{len(want)}, f.embedder.BatchSizes())
	assert.Equal(t, len(want), f.count(t))

	var got []*core.Chunk
	require.NoError(t, f.store.ScanChunks(ctx, 100, func(chunks []*core.Chunk) error {
		got = append(got, chunks...)
		return nil
	}))
	for _, c := range got {
		assert.Equal(t, want[c.ChunkIndex], c.Content)
		assert.Equal(t, "long.txt", c.Filename())
	}
}

func TestProcessRecordsPages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	splitter, err := textsplit.New(10, 0)
	require.NoError(t, err)
	f.splitter = splitter

	text := "page one. page two."
	ext := stubExtractor{result: &extract.Result{
		Text: text,
		Pages: []extract.PageSpan{
			{Number: 1, Start: 0, End: 10},
			{Number: 2, Start: 10, End: 19},
		},
	}}
	w := f.workerWith(t, ext, f.store)
	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "pdf", Filename: "a.pdf", FilePath: "/x/a.pdf"}))

	pages := map[int]int{}
	require.NoError(t, f.store.ScanChunks(ctx, 10, func(chunks []*core.Chunk) error {
		for _, c := range chunks {
			pages[c.ChunkIndex] = c.Page()
		}
		return nil
	}))
	assert.Equal(t, map[int]int{0: 1, 1: 2}, pages)
}

func TestProcessEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}
	w := f.worker(t)

	err := w.Process(ctx, core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "a.txt", "text")})
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.Zero(t, f.count(t))

	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].Reason, "provider down")
}

func TestProcessShortEmbeddingBatch(t *testing.T) {
	f := newFixture(t)
	f.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{}, nil
	}
	w := f.worker(t)
	err := w.Process(context.Background(), core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "a.txt", "text")})
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.ErrorIs(t, err, ErrEmbeddingCount)
}

func TestProcessStorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.workerWith(t, extract.NewDispatcher(), failingStore{f.store})

	require.NoError(t, f.catalog.Put(ctx, &core.Document{ID: "d", Filename: "a.txt"}))
	err := w.Process(ctx, core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "a.txt", "text")})
	assert.ErrorIs(t, err, core.ErrStorage)

	doc, err := f.catalog.Get(ctx, "d")
	require.NoError(t, err)
	assert.False(t, doc.Processed)
}

func TestProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	job := core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "a.txt", "same text")}
	require.NoError(t, w.Process(ctx, job))
	require.NoError(t, w.Process(ctx, job))
	assert.Equal(t, 1, f.count(t))
}

func TestProcessReplacesPreviousVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	long := strings.Repeat("The old version of the report talks about tides and harbours. ", 40)
	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "old.txt", long)}))
	require.Greater(t, f.count(t), 1)

	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "d", FilePath: writeFile(t, "new.txt", "new short text")}))
	assert.Equal(t, 1, f.count(t))

	var stored []*core.Chunk
	require.NoError(t, f.store.ScanChunks(ctx, 10, func(chunks []*core.Chunk) error {
		stored = append(stored, chunks...)
		return nil
	}))
	require.Len(t, stored, 1)
	assert.Equal(t, "new short text", stored[0].Content)
	assert.Equal(t, core.ChunkID("d", 0), stored[0].ID)

	hits, err := f.store.Search(ctx, mock.HashVector(long, testDim), 10)
	require.NoError(t, err)
	for _, h := range hits {
		assert.Equal(t, "new short text", h.Chunk.Content)
	}
}

func TestProcessReingestKeepsOtherDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "a", FilePath: writeFile(t, "a.txt", "alpha")}))
	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "b", FilePath: writeFile(t, "b.txt", "beta")}))
	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "a", FilePath: writeFile(t, "a2.txt", "alpha again")}))
	assert.Equal(t, 2, f.count(t))
}

func TestProcessStateTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var mu sync.Mutex
	var seen []State
	observe := func(_ string, _, to State) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	}
	w := f.worker(t, WithStateObserver(observe))

	require.NoError(t, w.Process(ctx, core.IngestionJob{DocumentID: "ok", FilePath: writeFile(t, "a.txt", "text")}))
	assert.Equal(t, []State{StateExtracting, StateChunking, StateEmbedding, StateStoring, StateDone}, seen)

	seen = nil
	_ = w.Process(ctx, core.IngestionJob{DocumentID: "bad", FilePath: filepath.Join(t.TempDir(), "gone")})
	assert.Equal(t, []State{StateExtracting, StateFailed}, seen)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "embedding", StateEmbedding.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateStoring.Terminal())
}

func TestRunContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w := f.worker(t)

	require.NoError(t, f.queue.Enqueue(ctx, core.IngestionJob{
		DocumentID: "bad", Filename: "gone.txt", FilePath: filepath.Join(t.TempDir(), "gone.txt"),
	}))
	require.NoError(t, f.queue.Enqueue(ctx, core.IngestionJob{
		DocumentID: "good", Filename: "notes.txt", FilePath: writeFile(t, "notes.txt", "hello world"),
	}))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return f.count(t) == 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, f.queue.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}

	dead, err := f.queue.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "bad", dead[0].Job.DocumentID)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture(t)
	w := f.worker(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

// flakyQueue fails the first n dequeues with err before delegating.
type flakyQueue struct {
	*queue.Memory
	mu    sync.Mutex
	fails int
	err   error
	calls int
}

func (q *flakyQueue) Dequeue(ctx context.Context) (core.IngestionJob, error) {
	q.mu.Lock()
	q.calls++
	if q.fails > 0 {
		q.fails--
		q.mu.Unlock()
		return core.IngestionJob{}, q.err
	}
	q.mu.Unlock()
	return q.Memory.Dequeue(ctx)
}

func TestRunRetriesQueueErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"connectivity", fmt.Errorf("%w: broker unreachable", core.ErrQueueConnectivity)},
		{"malformed payload", queue.ErrMalformedJob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			q := &flakyQueue{Memory: f.queue, fails: 3, err: tt.err}
			w, err := NewWorker("flaky", q, extract.NewDispatcher(), f.splitter, f.embedder, f.store,
				WithBackoff(time.Millisecond))
			require.NoError(t, err)

			require.NoError(t, q.Enqueue(ctx, core.IngestionJob{
				DocumentID: "d", FilePath: writeFile(t, "a.txt", "text"),
			}))

			done := make(chan error, 1)
			go func() { done <- w.Run(ctx) }()
			require.Eventually(t, func() bool { return f.count(t) == 1 }, 5*time.Second, 5*time.Millisecond)
			require.NoError(t, q.Close())
			require.NoError(t, <-done)

			q.mu.Lock()
			defer q.mu.Unlock()
			assert.GreaterOrEqual(t, q.calls, 4)
		})
	}
}

func TestWithBackoffRejectsNegative(t *testing.T) {
	f := newFixture(t)
	_, err := NewWorker("w", f.queue, extract.NewDispatcher(), f.splitter, f.embedder, f.store, WithBackoff(-time.Second))
	assert.Error(t, err)
}
