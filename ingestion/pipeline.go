package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/storage"
)

// Pipeline runs a fixed number of Workers on an ants pool. All workers
// share the queue, embedder and store.
type Pipeline struct {
	pool    *ants.Pool
	workers []*Worker
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewPipeline creates a pipeline of WithPoolSize workers.
func NewPipeline(
	q queue.Queue,
	extractor Extractor,
	splitter Splitter,
	embedder ai.Embedder,
	store storage.VectorStore,
	opts ...Option,
) (*Pipeline, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	workers := make([]*Worker, s.poolSize)
	for i := range workers {
		w, err := newWorker(fmt.Sprintf("worker-%d", i), q, extractor, splitter, embedder, store, s)
		if err != nil {
			return nil, err
		}
		workers[i] = w
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		pool:    pool,
		workers: workers,
		logger:  s.logger.With("component", "ingestion"),
	}, nil
}

// Size returns the number of workers.
func (p *Pipeline) Size() int {
	return len(p.workers)
}

// Start launches every worker loop. The loops stop when ctx is done or
// the queue is closed; use Wait to block until they have.
func (p *Pipeline) Start(ctx context.Context) error {
	for _, w := range p.workers {
		p.wg.Add(1)
		err := p.pool.Submit(func() {
			defer p.wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("worker exited", "worker", w.id, "err", err)
			}
		})
		if err != nil {
			p.wg.Done()
			return err
		}
	}
	p.logger.Info("ingestion pipeline started", "workers", len(p.workers))
	return nil
}

// Wait blocks until every worker loop has returned.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
