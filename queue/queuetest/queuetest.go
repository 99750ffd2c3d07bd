// Package queuetest holds the behavioral test suite for queue.Queue
// implementations.
package queuetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty queue. The suite closes it.
type Factory func(t *testing.T) queue.Queue

func job(i int) core.IngestionJob {
	return core.IngestionJob{
		DocumentID: fmt.Sprintf("doc-%d", i),
		Filename:   fmt.Sprintf("file-%d.txt", i),
		FilePath:   fmt.Sprintf("/uploads/file-%d.txt", i),
	}
}

// Run executes the suite against queues produced by newQueue.
func Run(t *testing.T, newQueue Factory) {
	open := func(t *testing.T) queue.Queue {
		t.Helper()
		q := newQueue(t)
		t.Cleanup(func() { _ = q.Close() })
		return q
	}

	t.Run("fifo order", func(t *testing.T) {
		ctx := context.Background()
		q := open(t)
		for i := range 3 {
			require.NoError(t, q.Enqueue(ctx, job(i)))
		}
		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		for i := range 3 {
			got, err := q.Dequeue(ctx)
			require.NoError(t, err)
			assert.Equal(t, job(i), got)
		}
		n, err = q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("dequeue blocks until enqueue", func(t *testing.T) {
		q := open(t)
		got := make(chan core.IngestionJob, 1)
		go func() {
			j, err := q.Dequeue(context.Background())
			if err == nil {
				got <- j
			}
		}()

		select {
		case <-got:
			t.Fatal("dequeue returned before any job was enqueued")
		case <-time.After(50 * time.Millisecond):
		}

		require.NoError(t, q.Enqueue(context.Background(), job(7)))
		select {
		case j := <-got:
			assert.Equal(t, job(7), j)
		case <-time.After(2 * time.Second):
			t.Fatal("dequeue did not wake up")
		}
	})

	t.Run("dequeue honors context", func(t *testing.T) {
		q := open(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := q.Dequeue(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("close wakes consumers", func(t *testing.T) {
		q := newQueue(t)
		errs := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, q.Close())

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, queue.ErrClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer still blocked after Close")
		}
		assert.ErrorIs(t, q.Enqueue(context.Background(), job(1)), queue.ErrClosed)
	})

	t.Run("each job is delivered once", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := open(t)

		const consumers, jobs = 4, 40
		var (
			mu   sync.Mutex
			seen = map[string]int{}
			wg   sync.WaitGroup
			once sync.Once
			done = make(chan struct{})
		)
		for range consumers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					j, err := q.Dequeue(ctx)
					if err != nil {
						return
					}
					mu.Lock()
					seen[j.DocumentID]++
					if len(seen) == jobs {
						once.Do(func() { close(done) })
					}
					mu.Unlock()
				}
			}()
		}
		for i := range jobs {
			require.NoError(t, q.Enqueue(ctx, job(i)))
		}

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("not every job was delivered")
		}
		cancel()
		wg.Wait()

		for id, n := range seen {
			assert.Equal(t, 1, n, "job %s delivered %d times", id, n)
		}
	})

	probe := newQueue(t)
	_, buries := probe.(queue.DeadLetterer)
	require.NoError(t, probe.Close())
	if buries {
		t.Run("dead letters", func(t *testing.T) {
			ctx := context.Background()
			q := open(t)
			dl := q.(queue.DeadLetterer)

			require.NoError(t, dl.Bury(ctx, job(1), "extraction failed"))
			require.NoError(t, dl.Bury(ctx, job(2), "embedding failed"))

			letters, err := dl.DeadLetters(ctx)
			require.NoError(t, err)
			require.Len(t, letters, 2)
			assert.Equal(t, job(1), letters[0].Job)
			assert.Equal(t, "extraction failed", letters[0].Reason)
			assert.False(t, letters[0].FailedAt.IsZero())
			assert.Equal(t, job(2), letters[1].Job)

			// Burying never re-queues.
			n, err := q.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}
