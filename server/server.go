package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragstream/catalog"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/query"
	"github.com/poiesic/ragstream/queue"
	"github.com/poiesic/ragstream/storage"
)

// Server routes HTTP requests to the queue, store, catalog and orchestrator.
type Server struct {
	queue           queue.Queue
	store           storage.VectorStore
	catalog         catalog.Catalog
	orchestrator    *query.Orchestrator
	logger          *slog.Logger
	shutdownTimeout time.Duration
	mux             *http.ServeMux
}

// New creates a Server. The catalog is optional.
func New(q queue.Queue, store storage.VectorStore, orchestrator *query.Orchestrator, opts ...Option) (*Server, error) {
	if q == nil {
		return nil, ErrQueueRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if orchestrator == nil {
		return nil, ErrOrchestratorRequired
	}
	s := &Server{
		queue:           q,
		store:           store,
		orchestrator:    orchestrator,
		logger:          slog.Default(),
		shutdownTimeout: DefaultShutdownTimeout,
		mux:             http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	s.mux.HandleFunc("POST /v1/documents", s.handleEnqueue)
	s.mux.HandleFunc("GET /v1/documents", s.handleList)
	s.mux.HandleFunc("DELETE /v1/documents/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /v1/query", s.handleQuery)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s, nil
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type enqueueRequest struct {
	FilePath   string `json:"file_path"`
	Filename   string `json:"filename,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type enqueueResponse struct {
	DocumentID string `json:"document_id"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type documentResponse struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Processed   bool              `json:"processed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job := core.IngestionJob{
		DocumentID: req.DocumentID,
		Filename:   req.Filename,
		FilePath:   req.FilePath,
	}
	if job.DocumentID == "" {
		job.DocumentID = uuid.NewString()
	}
	if job.Filename == "" && job.FilePath != "" {
		job.Filename = filepath.Base(job.FilePath)
	}
	if err := core.ValidateJob(&job); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	// The catalog entry goes in before the job so a fast worker always
	// finds it to mark processed.
	if s.catalog != nil {
		doc := &core.Document{
			ID:          job.DocumentID,
			Filename:    job.Filename,
			ContentType: mime.TypeByExtension(filepath.Ext(job.Filename)),
			CreatedAt:   time.Now().UTC(),
		}
		if info, err := os.Stat(job.FilePath); err == nil {
			doc.Size = info.Size()
		}
		if err := s.catalog.Put(ctx, doc); err != nil {
			s.logger.Error("catalog put failed", "document_id", job.DocumentID, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to record document")
			return
		}
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("enqueue failed", "document_id", job.DocumentID, "err", err)
		if s.catalog != nil {
			if delErr := s.catalog.Delete(context.WithoutCancel(ctx), job.DocumentID); delErr != nil {
				s.logger.Error("catalog rollback failed", "document_id", job.DocumentID, "err", delErr)
			}
		}
		writeError(w, http.StatusServiceUnavailable, "ingestion queue unavailable")
		return
	}
	s.logger.Info("document enqueued", "document_id", job.DocumentID, "filename", job.Filename)
	writeJSON(w, http.StatusAccepted, enqueueResponse{DocumentID: job.DocumentID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotImplemented, "no document catalog configured")
		return
	}
	docs, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("catalog list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{
			ID:          d.ID,
			Filename:    d.Filename,
			ContentType: d.ContentType,
			Size:        d.Size,
			Metadata:    d.Metadata,
			CreatedAt:   d.CreatedAt,
			Processed:   d.Processed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, core.ErrEmptyDocumentID.Error())
		return
	}
	ctx := r.Context()
	if err := s.store.DeleteDocumentChunks(ctx, id); err != nil {
		s.logger.Error("delete chunks failed", "document_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document chunks")
		return
	}
	if s.catalog != nil {
		if err := s.catalog.Delete(ctx, id); err != nil {
			s.logger.Error("catalog delete failed", "document_id", id, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to delete document")
			return
		}
	}
	s.logger.Info("document deleted", "document_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	send := func(ev core.StreamEvent) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}
	if err := s.orchestrator.Stream(r.Context(), req.Query, send); err != nil {
		s.logger.Debug("query stream ended early", "err", err)
	}
}
