package query

import (
	"log/slog"
	"time"

	"github.com/poiesic/ragstream/core"
)

// Monitor provides hooks to observe a query as it runs.
// Implement this interface to trace retrieval and generation.
type Monitor interface {
	Start(query string)
	AfterEmbedding(vector []float32)
	AfterRetrieval(hits []*core.ScoredChunk)
	BeforeGeneration(systemPrompt string)
	Token(delta string)
	Failed(stage string, err error)
	Finish(tokens int, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ []float32)          {}
func (n *noopMonitor) AfterRetrieval(_ []*core.ScoredChunk) {}
func (n *noopMonitor) BeforeGeneration(_ string)           {}
func (n *noopMonitor) Token(_ string)                      {}
func (n *noopMonitor) Failed(_ string, _ error)            {}
func (n *noopMonitor) Finish(_ int, _ time.Duration)       {}

// LogMonitor writes every stage to a logger at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ Monitor = (*LogMonitor)(nil)

// NewLogMonitor returns a monitor logging to logger, or slog.Default()
// when nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "query-monitor")}
}

func (m *LogMonitor) Start(query string) {
	m.logger.Debug("query started", "query", query)
}

func (m *LogMonitor) AfterEmbedding(vector []float32) {
	m.logger.Debug("query embedded", "dimension", len(vector))
}

func (m *LogMonitor) AfterRetrieval(hits []*core.ScoredChunk) {
	for i, hit := range hits {
		m.logger.Debug("retrieved chunk",
			"rank", i+1,
			"chunk_id", hit.Chunk.ID,
			"document_id", hit.Chunk.DocumentID,
			"score", hit.Score)
	}
}

func (m *LogMonitor) BeforeGeneration(systemPrompt string) {
	m.logger.Debug("generating answer", "prompt_chars", len(systemPrompt))
}

func (m *LogMonitor) Token(_ string) {}

func (m *LogMonitor) Failed(stage string, err error) {
	m.logger.Debug("query stage failed", "stage", stage, "err", err)
}

func (m *LogMonitor) Finish(tokens int, elapsed time.Duration) {
	m.logger.Debug("query finished", "tokens", tokens, "elapsed", elapsed)
}
