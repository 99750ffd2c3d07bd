package query

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrLLMRequired is returned when an LLM provider is not provided.
	ErrLLMRequired = errors.New("LLM provider required")

	// ErrSinkRequired is returned when Stream is called without a sink.
	ErrSinkRequired = errors.New("event sink required")
)
