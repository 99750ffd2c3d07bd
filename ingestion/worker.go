package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/extract"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/textsplit"
)

// Extractor reads the text of a source file. *extract.Dispatcher
// satisfies it.
type Extractor interface {
	Extract(ctx context.Context, path, filename string) (*extract.Result, error)
}

// Splitter divides text into overlapping rune spans. *textsplit.Splitter
// satisfies it.
type Splitter interface {
	Split(text string) []textsplit.Span
}

// Worker consumes ingestion jobs from a queue and stores their chunks.
type Worker struct {
	id        string
	queue     queue.Queue
	extractor Extractor
	splitter  Splitter
	embedder  ai.Embedder
	store     storage.VectorStore
	catalog   catalog.Catalog
	backoff   time.Duration
	observer  func(string, State, State)
	logger    *slog.Logger
}

// NewWorker creates a worker. id only labels log lines.
func NewWorker(
	id string,
	q queue.Queue,
	extractor Extractor,
	splitter Splitter,
	embedder ai.Embedder,
	store storage.VectorStore,
	opts ...Option,
) (*Worker, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return newWorker(id, q, extractor, splitter, embedder, store, s)
}

func newWorker(
	id string,
	q queue.Queue,
	extractor Extractor,
	splitter Splitter,
	embedder ai.Embedder,
	store storage.VectorStore,
	s *settings,
) (*Worker, error) {
	switch {
	case q == nil:
		return nil, ErrQueueRequired
	case extractor == nil:
		return nil, ErrExtractorRequired
	case splitter == nil:
		return nil, ErrSplitterRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case store == nil:
		return nil, ErrStoreRequired
	}
	return &Worker{
		id:        id,
		queue:     q,
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		catalog:   s.catalog,
		backoff:   s.backoff,
		observer:  s.observer,
		logger:    s.logger.With("worker", id),
	}, nil
}

// Run dequeues and processes jobs until ctx is done or the queue is
// closed. Queue errors are logged and retried after the backoff; job
// failures never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	defer w.logger.Info("worker stopped")

	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, queue.ErrClosed):
				return nil
			case errors.Is(err, queue.ErrMalformedJob):
				w.logger.Warn("skipping malformed job", "err", err)
				continue
			}
			w.logger.Error("error dequeuing job", "err", err, "backoff", w.backoff)
			if !sleep(ctx, w.backoff) {
				return ctx.Err()
			}
			continue
		}
		// Failures are logged and dead-lettered inside Process.
		_ = w.Process(ctx, job)
	}
}

// Process runs one job through extraction, chunking, embedding and
// storage. Content that is empty after extraction ends the job without
// error. Any other failure is returned after being logged and, when the
// queue supports it, buried as a dead letter.
func (w *Worker) Process(ctx context.Context, job core.IngestionJob) error {
	if job.Filename == "" {
		job.Filename = filepath.Base(job.FilePath)
	}
	logger := w.logger.With("document_id", job.DocumentID, "filename", job.Filename)
	state := StateReceived
	advance := func(next State) {
		logger.Debug("job state", "from", state, "to", next)
		if w.observer != nil {
			w.observer(job.DocumentID, state, next)
		}
		state = next
	}
	fail := func(err error) error {
		advance(StateFailed)
		logger.Error("ingestion job failed", "err", err)
		w.bury(ctx, logger, job, err)
		return err
	}

	if err := core.ValidateJob(&job); err != nil {
		return fail(err)
	}

	advance(StateExtracting)
	result, err := w.extractor.Extract(ctx, job.FilePath, job.Filename)
	if err != nil {
		if !errors.Is(err, core.ErrExtraction) {
			err = fmt.Errorf("%w: %w", core.ErrExtraction, err)
		}
		return fail(err)
	}
	if strings.TrimSpace(result.Text) == "" {
		logger.Warn("no text extracted, abandoning job")
		advance(StateDone)
		return nil
	}

	advance(StateChunking)
	runes := []rune(result.Text)
	spans := w.splitter.Split(result.Text)
	contents := make([]string, len(spans))
	for i, span := range spans {
		contents[i] = string(runes[span.Start:span.End])
	}

	advance(StateEmbedding)
	vectors, err := w.embedder.EmbedTexts(ctx, contents)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", core.ErrEmbedding, err))
	}
	if len(vectors) != len(contents) {
		return fail(fmt.Errorf("%w: %w: got %d for %d chunks",
			core.ErrEmbedding, ErrEmbeddingCount, len(vectors), len(contents)))
	}

	advance(StateStoring)
	chunks := make([]*core.Chunk, len(spans))
	for i, span := range spans {
		metadata := map[string]string{
			core.MetaFilename:   job.Filename,
			core.MetaChunkIndex: strconv.Itoa(i),
		}
		if page := result.PageAt(span.Start); page > 0 {
			metadata[core.MetaPage] = strconv.Itoa(page)
		}
		chunks[i] = &core.Chunk{
			ID:         core.ChunkID(job.DocumentID, i),
			DocumentID: job.DocumentID,
			Content:    contents[i],
			Embedding:  vectors[i],
			Metadata:   metadata,
			ChunkIndex: i,
		}
	}
	// A previous version of the document may have had more chunks than
	// this one; those would not be overwritten by the upsert.
	if err := w.store.DeleteDocumentChunks(ctx, job.DocumentID); err != nil {
		return fail(fmt.Errorf("%w: %w", core.ErrStorage, err))
	}
	if err := w.store.AddChunks(ctx, chunks); err != nil {
		return fail(fmt.Errorf("%w: %w", core.ErrStorage, err))
	}

	if w.catalog != nil {
		if err := w.catalog.MarkProcessed(ctx, job.DocumentID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			logger.Warn("failed to mark document processed", "err", err)
		}
	}
	advance(StateDone)
	logger.Info("document ingested", "chunks", len(chunks))
	return nil
}

// bury records a failed job as a dead letter. Jobs interrupted by
// shutdown are not buried.
func (w *Worker) bury(ctx context.Context, logger *slog.Logger, job core.IngestionJob, cause error) {
	dl, ok := w.queue.(queue.DeadLetterer)
	if !ok || ctx.Err() != nil {
		return
	}
	if err := dl.Bury(ctx, job, cause.Error()); err != nil {
		logger.Error("failed to record dead letter", "err", err)
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
