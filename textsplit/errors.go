package textsplit

import "errors"

var (
	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrInvalidChunkOverlap is returned when the overlap is negative or not smaller than the chunk size.
	ErrInvalidChunkOverlap = errors.New("chunk overlap must be >= 0 and less than chunk size")
)
