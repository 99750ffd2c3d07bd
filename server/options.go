package server

import (
	"log/slog"
	"time"

	"github.com/poiesic/ragstream/catalog"
)

// DefaultShutdownTimeout bounds how long ListenAndServe waits for open
// requests after its context is cancelled.
const DefaultShutdownTimeout = 10 * time.Second

type Option func(*Server)

// WithCatalog records enqueued documents and serves GET /v1/documents.
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}
