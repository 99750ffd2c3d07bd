package queue

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/ragstream/core"
)

var (
	// ErrClosed is returned by queue operations after Close.
	ErrClosed = errors.New("queue closed")

	// ErrMalformedJob is returned by Dequeue when a stored payload cannot be
	// decoded. The payload has already been removed.
	ErrMalformedJob = errors.New("malformed job payload")
)

// Queue is a FIFO of ingestion jobs. Implementations must be safe for
// concurrent producers and consumers.
type Queue interface {
	// Enqueue appends job.
	Enqueue(ctx context.Context, job core.IngestionJob) error

	// Dequeue removes and returns the oldest job, blocking until one is
	// available, ctx is done, or the queue is closed.
	Dequeue(ctx context.Context) (core.IngestionJob, error)

	// Len returns the number of pending jobs.
	Len(ctx context.Context) (int, error)

	// Close wakes blocked consumers with ErrClosed.
	Close() error
}

// DeadLetter records a job that failed permanently.
type DeadLetter struct {
	Job      core.IngestionJob `json:"job"`
	Reason   string            `json:"reason"`
	FailedAt time.Time         `json:"failed_at"`
}

// DeadLetterer is implemented by queues that retain failed jobs.
type DeadLetterer interface {
	// Bury records job as failed with reason. It never re-queues the job.
	Bury(ctx context.Context, job core.IngestionJob, reason string) error

	// DeadLetters returns the recorded failures, oldest first.
	DeadLetters(ctx context.Context) ([]DeadLetter, error)
}
