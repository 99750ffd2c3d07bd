package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 3

// Sink receives events in order. An error means the client has gone away;
// the orchestrator stops and sends nothing further.
type Sink func(core.StreamEvent) error

// Orchestrator runs the retrieval-augmented query pipeline. It is safe for
// concurrent use; each Stream call is independent.
type Orchestrator struct {
	embedder ai.Embedder
	store    storage.VectorStore
	llm      ai.LLMProvider
	topK     int
	monitor  Monitor
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTopK sets how many chunks are retrieved per query.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		o.topK = k
		return nil
	}
}

// WithMonitor observes every query run by the orchestrator.
func WithMonitor(m Monitor) Option {
	return func(o *Orchestrator) error {
		if m == nil {
			m = &noopMonitor{}
		}
		o.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(embedder ai.Embedder, store storage.VectorStore, llm ai.LLMProvider, opts ...Option) (*Orchestrator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if llm == nil {
		return nil, ErrLLMRequired
	}

	o := &Orchestrator{
		embedder: embedder,
		store:    store,
		llm:      llm,
		topK:     DefaultTopK,
		monitor:  &noopMonitor{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "query", "llm", llm.Name())
	return o, nil
}

// TopK returns the retrieval depth.
func (o *Orchestrator) TopK() int {
	return o.topK
}

// Stream answers query, delivering events to send in this order: one
// citation per retrieved chunk, the answer tokens, at most one error, and
// a final done. Pipeline failures become error events and Stream returns
// nil. A non-nil error means send failed or ctx was cancelled, and no
// further events were sent.
func (o *Orchestrator) Stream(ctx context.Context, query string, send Sink) error {
	if send == nil {
		return ErrSinkRequired
	}
	started := time.Now()
	tokens := 0
	o.monitor.Start(query)
	defer func() { o.monitor.Finish(tokens, time.Since(started)) }()

	if err := o.generate(ctx, query, send, &tokens); err != nil {
		var se *sinkError
		if errors.As(err, &se) {
			o.logger.Debug("client went away", "err", se.err)
			return se.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Error("query failed", "err", err)
		if sendErr := send(core.ErrorEvent(err.Error())); sendErr != nil {
			return sendErr
		}
	}
	return send(core.DoneEvent())
}

// sinkError marks a failure of the client sink, as opposed to a pipeline
// failure that is reported to the client.
type sinkError struct {
	err error
}

func (e *sinkError) Error() string { return e.err.Error() }

func (o *Orchestrator) generate(ctx context.Context, query string, send Sink, tokens *int) error {
	emit := func(ev core.StreamEvent) error {
		if err := send(ev); err != nil {
			return &sinkError{err: err}
		}
		return nil
	}

	vector, err := o.embedder.EmbedText(ctx, query)
	if err != nil {
		o.monitor.Failed("embedding", err)
		return fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	o.monitor.AfterEmbedding(vector)

	hits, err := o.store.Search(ctx, vector, o.topK)
	if err != nil {
		o.monitor.Failed("retrieval", err)
		if !errors.Is(err, core.ErrStorage) {
			err = fmt.Errorf("%w: %w", core.ErrStorage, err)
		}
		return err
	}
	o.monitor.AfterRetrieval(hits)

	// Citations go out before any token.
	for _, hit := range hits {
		if err := emit(core.CitationEvent(NewCitation(hit.Chunk))); err != nil {
			return err
		}
	}

	systemPrompt := SystemPrompt(BuildContext(hits))
	o.monitor.BeforeGeneration(systemPrompt)

	stream, err := o.llm.GenerateStream(ctx, query, systemPrompt)
	if err != nil {
		o.monitor.Failed("generation", err)
		return generationError(err)
	}
	defer stream.Close()

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			o.monitor.Failed("generation", err)
			return generationError(err)
		}
		*tokens++
		o.monitor.Token(delta)
		if err := emit(core.TokenEvent(delta)); err != nil {
			return err
		}
	}
}

func generationError(err error) error {
	if errors.Is(err, core.ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrGeneration, err)
}
