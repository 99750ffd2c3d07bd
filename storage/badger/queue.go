package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/queue"
)

// Queue is a durable queue.Queue stored in BadgerDB. Pending jobs survive
// a restart; a dequeued job is deleted in the same transaction that
// reads it, so each job is delivered at most once.
type Queue struct {
	backend   *Backend
	jobSeq    *badger.Sequence
	deadSeq   *badger.Sequence
	logger    *slog.Logger
	notify    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	// pending reports the number of queued jobs; Len unless replaced in tests.
	pending func(ctx context.Context) (int, error)
}

var (
	_ queue.Queue        = (*Queue)(nil)
	_ queue.DeadLetterer = (*Queue)(nil)
)

// NewQueue creates a queue on backend. The queue does not own the backend.
func NewQueue(backend *Backend) (*Queue, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	jobSeq, err := backend.GetSequence(jobSeq)
	if err != nil {
		return nil, err
	}
	deadSeq, err := backend.GetSequence(deadLetterSeq)
	if err != nil {
		jobSeq.Release()
		return nil, err
	}
	q := &Queue{
		backend: backend,
		jobSeq:  jobSeq,
		deadSeq: deadSeq,
		logger:  backend.logger.With("store", "queue"),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	q.pending = q.Len
	return q, nil
}

func (q *Queue) Enqueue(ctx context.Context, job core.IngestionJob) error {
	if q.isClosed() {
		return queue.ErrClosed
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	seq, err := nextSeq(q.jobSeq)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrQueueConnectivity, err)
	}
	err = q.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeSeqKey(jobPrefix, seq), payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrQueueConnectivity, err)
	}
	q.signal()
	return nil
}

func (q *Queue) Dequeue(ctx context.Context) (core.IngestionJob, error) {
	for {
		if q.isClosed() {
			return core.IngestionJob{}, queue.ErrClosed
		}
		job, found, err := q.pop(ctx)
		if errors.Is(err, badger.ErrConflict) {
			// Another consumer took the head job; look again.
			continue
		}
		if err != nil {
			return core.IngestionJob{}, err
		}
		if found {
			q.passWakeup(ctx)
			return job, nil
		}

		select {
		case <-ctx.Done():
			return core.IngestionJob{}, ctx.Err()
		case <-q.closed:
			return core.IngestionJob{}, queue.ErrClosed
		case <-q.notify:
		}
	}
}

// pop removes the oldest job. found is false when the queue is empty.
func (q *Queue) pop(ctx context.Context) (core.IngestionJob, bool, error) {
	var (
		job     core.IngestionJob
		found   bool
		payload []byte
		key     []byte
	)
	err := q.backend.Update(ctx, func(tx *badger.Txn) error {
		found = false
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		opts.PrefetchSize = 1
		iter := tx.NewIterator(opts)
		iter.Rewind()
		if !iter.Valid() {
			iter.Close()
			return nil
		}
		item := iter.Item()
		key = item.KeyCopy(nil)
		var err error
		payload, err = item.ValueCopy(nil)
		iter.Close()
		if err != nil {
			return err
		}
		found = true
		return tx.Delete(key)
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return job, false, err
		}
		return job, false, fmt.Errorf("%w: %w", core.ErrQueueConnectivity, err)
	}
	if !found {
		return job, false, nil
	}
	if err := json.Unmarshal(payload, &job); err != nil {
		q.logger.Warn("dropping malformed job", "key", fmt.Sprintf("%x", key), "err", err)
		return core.IngestionJob{}, false, fmt.Errorf("%w: %w", queue.ErrMalformedJob, err)
	}
	return job, true, nil
}

// passWakeup re-signals waiting consumers while jobs remain. When the
// length cannot be read it signals anyway; a spurious wakeup only costs
// one empty pop.
func (q *Queue) passWakeup(ctx context.Context) {
	n, err := q.pending(ctx)
	if err != nil {
		q.logger.Debug("queue length unavailable after dequeue", "err", err)
	}
	if err != nil || n > 0 {
		q.signal()
	}
}

func (q *Queue) Len(_ context.Context) (int, error) {
	return q.countPrefix(jobPrefix)
}

func (q *Queue) countPrefix(prefix string) (int, error) {
	n := 0
	err := q.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Bury records job in the dead-letter list.
func (q *Queue) Bury(ctx context.Context, job core.IngestionJob, reason string) error {
	payload, err := json.Marshal(queue.DeadLetter{
		Job:      job,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	seq, err := nextSeq(q.deadSeq)
	if err != nil {
		return err
	}
	return q.backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeSeqKey(deadLetterPrefix, seq), payload)
	})
}

// DeadLetters returns buried jobs, oldest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]queue.DeadLetter, error) {
	var letters []queue.DeadLetter
	err := q.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(deadLetterPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var dl queue.DeadLetter
			err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dl)
			})
			if err != nil {
				return err
			}
			letters = append(letters, dl)
		}
		return nil
	})
	return letters, err
}

// Close wakes blocked consumers and releases the sequences.
func (q *Queue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.closed)
		err = errors.Join(q.jobSeq.Release(), q.deadSeq.Release())
	})
	return err
}

// nextSeq returns the next non-zero sequence number.
func nextSeq(seq *badger.Sequence) (uint64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if n == 0 {
		return seq.Next()
	}
	return n, nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
