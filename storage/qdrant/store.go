package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

const (
	// DefaultCollection is used when Config.Collection is empty.
	DefaultCollection = "ragstream"

	defaultTimeout = 15 * time.Second
)

// pointNamespace derives stable point ids from chunk ids; Qdrant only
// accepts integers and UUIDs.
var pointNamespace = uuid.MustParse("6f1c2f0e-9a57-4c39-8a43-2b5d1c0e7a11")

// ErrStatus is returned when Qdrant answers with a non-2xx status.
var ErrStatus = errors.New("qdrant request failed")

// Config locates a Qdrant collection.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Store is a minimal REST client to one Qdrant collection using cosine
// distance.
type Store struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     *slog.Logger
}

var (
	_ storage.VectorStore  = (*Store)(nil)
	_ storage.ChunkScanner = (*Store)(nil)
)

type payload struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	ChunkIndex int               `json:"chunk_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload payload   `json:"payload"`
	Score   float32   `json:"score,omitempty"`
}

func (p point) chunk() *core.Chunk {
	return &core.Chunk{
		ID:         p.Payload.ChunkID,
		DocumentID: p.Payload.DocumentID,
		Content:    p.Payload.Content,
		Embedding:  p.Vector,
		Metadata:   p.Payload.Metadata,
		ChunkIndex: p.Payload.ChunkIndex,
	}
}

type documentFilter struct {
	Must []fieldMatch `json:"must"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

func byDocument(documentID string) documentFilter {
	m := fieldMatch{Key: "document_id"}
	m.Match.Value = documentID
	return documentFilter{Must: []fieldMatch{m}}
}

// New connects to Qdrant and creates the collection if it does not exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant collection needs a positive dimension")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("component", "qdrant", "collection", collection),
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// PointID returns the Qdrant point id for a chunk id.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func (s *Store) ensureCollection(ctx context.Context) error {
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if err == nil {
		return nil
	}
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	s.logger.Info("created collection", "dimension", s.dimension)
	return nil
}

func (s *Store) AddChunks(ctx context.Context, chunks []*core.Chunk) error {
	if err := storage.ValidateBatch(chunks, s.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	points := make([]point, len(chunks))
	for i, c := range chunks {
		points[i] = point{
			ID:     PointID(c.ID),
			Vector: c.Embedding,
			Payload: payload{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Content:    c.Content,
				ChunkIndex: c.ChunkIndex,
				Metadata:   c.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return nil
}

// Search asks Qdrant for the k nearest points and re-ranks them so equal
// scores are ordered by chunk id.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]*core.ScoredChunk, error) {
	if len(vector) != s.dimension {
		return nil, storage.ErrDimensionMismatch
	}
	if k <= 0 {
		return []*core.ScoredChunk{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	hits := make([]*core.ScoredChunk, 0, len(resp.Result))
	for _, p := range resp.Result {
		hits = append(hits, &core.ScoredChunk{Chunk: p.chunk(), Score: p.Score})
	}
	return storage.Rank(hits, k), nil
}

func (s *Store) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	body := map[string]any{"filter": byDocument(documentID)}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return resp.Result.Count, nil
}

// ScanChunks pages through the collection with the scroll API.
func (s *Store) ScanChunks(ctx context.Context, batchSize int, fn func([]*core.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	var offset any
	for {
		req := map[string]any{
			"limit":        batchSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []point `json:"points"`
				Next   any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStorage, err)
		}
		if len(resp.Result.Points) > 0 {
			chunks := make([]*core.Chunk, len(resp.Result.Points))
			for i, p := range resp.Result.Points {
				chunks[i] = p.chunk()
			}
			if err := fn(chunks); err != nil {
				return err
			}
		}
		if resp.Result.Next == nil {
			return nil
		}
		offset = resp.Result.Next
	}
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, url.PathEscape(s.collection), suffix)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	if e.body != "" {
		return fmt.Sprintf("qdrant %s %s failed: %s: %s", e.method, e.url, e.status, e.body)
	}
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (e *statusError) Unwrap() error { return ErrStatus }

func (s *Store) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{
			method: method,
			url:    target,
			code:   resp.StatusCode,
			status: resp.Status,
			body:   string(bytes.TrimSpace(msg)),
		}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
