package badger

import "errors"

var (
	// ErrBackendRequired is returned when a nil backend is supplied.
	ErrBackendRequired = errors.New("badger backend required")
)
