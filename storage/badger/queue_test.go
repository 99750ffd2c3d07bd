package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/queue/queuetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConformance(t *testing.T) {
	queuetest.Run(t, func(t *testing.T) queue.Queue {
		backend, err := OpenBackend("", true)
		require.NoError(t, err)
		q, err := NewQueue(backend)
		require.NoError(t, err)
		// Cleanups run in reverse order: the suite closes the queue first.
		t.Cleanup(func() { backend.Close() })
		return q
	})
}

func TestQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	job := core.IngestionJob{DocumentID: "d1", Filename: "a.txt", FilePath: "/tmp/a.txt"}

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	q, err := NewQueue(backend)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job))
	require.NoError(t, q.Bury(ctx, job, "boom"))
	require.NoError(t, q.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	q, err = NewQueue(backend)
	require.NoError(t, err)
	defer q.Close()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "boom", dead[0].Reason)
}

func TestQueueDropsMalformedPayload(t *testing.T) {
	ctx := context.Background()
	_, q, backend, err := NewMemoryStores(0)
	require.NoError(t, err)
	defer backend.Close()
	defer q.Close()

	require.NoError(t, backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeSeqKey(jobPrefix, 0), []byte("{not json"))
	}))
	good := core.IngestionJob{DocumentID: "d2", Filename: "b.txt", FilePath: "/tmp/b.txt"}
	require.NoError(t, q.Enqueue(ctx, good))

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, queue.ErrMalformedJob)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

func TestQueueEnqueueAfterClose(t *testing.T) {
	_, q, backend, err := NewMemoryStores(0)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, q.Close())
	err = q.Enqueue(context.Background(), core.IngestionJob{DocumentID: "d"})
	assert.True(t, errors.Is(err, queue.ErrClosed))
}

func TestQueuePassWakeup(t *testing.T) {
	tests := []struct {
		name       string
		pending    func(context.Context) (int, error)
		wantSignal bool
	}{
		{"jobs remain", func(context.Context) (int, error) { return 2, nil }, true},
		{"queue drained", func(context.Context) (int, error) { return 0, nil }, false},
		{"length unavailable", func(context.Context) (int, error) { return 0, errors.New("db closed") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, q, backend, err := NewMemoryStores(0)
			require.NoError(t, err)
			defer backend.Close()
			defer q.Close()

			q.pending = tt.pending
			q.passWakeup(context.Background())

			select {
			case <-q.notify:
				assert.True(t, tt.wantSignal, "unexpected wakeup")
			default:
				assert.False(t, tt.wantSignal, "missing wakeup")
			}
		})
	}
}
