package ingestion

import "errors"

var (
	// ErrQueueRequired is returned when a queue is not provided.
	ErrQueueRequired = errors.New("queue required")

	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrSplitterRequired is returned when a text splitter is not provided.
	ErrSplitterRequired = errors.New("text splitter required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrEmbeddingCount is returned when the embedder returns a different
	// number of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count does not match chunk count")
)
