package ingestion

import (
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/poiesic/ragstream/catalog"
)

// DefaultBackoff is the pause after a queue error before dequeuing again.
const DefaultBackoff = time.Second

type settings struct {
	catalog  catalog.Catalog
	backoff  time.Duration
	poolSize int
	logger   *slog.Logger
	observer func(job string, from, to State)
}

func defaultSettings() *settings {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &settings{
		backoff:  DefaultBackoff,
		poolSize: poolSize,
		logger:   slog.Default(),
	}
}

// Option configures a Worker or Pipeline.
type Option func(*settings) error

// WithCatalog marks documents processed in c after their chunks are stored.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *settings) error {
		s.catalog = c
		return nil
	}
}

// WithBackoff sets the pause after a queue error.
// Default is DefaultBackoff.
func WithBackoff(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return errors.New("backoff cannot be negative")
		}
		s.backoff = d
		return nil
	}
}

// WithPoolSize sets the number of concurrent workers in a Pipeline.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *settings) error {
		if size < 1 {
			size = 1
		}
		s.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithStateObserver calls fn on every job state transition.
func WithStateObserver(fn func(documentID string, from, to State)) Option {
	return func(s *settings) error {
		s.observer = fn
		return nil
	}
}
