package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrNotScannable is returned when the store cannot enumerate its chunks.
	ErrNotScannable = errors.New("vector store does not support scanning")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
