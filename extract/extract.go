package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/ragstream/core"
)

// PageSpan is a page's half-open rune range within Result.Text.
type PageSpan struct {
	Number int
	Start  int
	End    int
}

// Result is the text of one document.
type Result struct {
	Text  string
	Pages []PageSpan
}

// PageAt returns the page containing the rune at offset, or 0 when the
// document has no page structure.
func (r *Result) PageAt(offset int) int {
	for _, p := range r.Pages {
		if offset >= p.Start && offset < p.End {
			return p.Number
		}
	}
	// Chunks that start inside trailing empty pages belong to the last page with text.
	for i := len(r.Pages) - 1; i >= 0; i-- {
		if r.Pages[i].Start <= offset && r.Pages[i].End > r.Pages[i].Start {
			return r.Pages[i].Number
		}
	}
	return 0
}

// Extractor reads one file format.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// Dispatcher selects an Extractor by filename extension.
// It is safe for concurrent use once constructed.
type Dispatcher struct {
	byExt    map[string]Extractor
	fallback Extractor
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithExtractor registers ext (for example ".pdf") to be read by e.
func WithExtractor(ext string, e Extractor) Option {
	return func(d *Dispatcher) {
		d.byExt[strings.ToLower(ext)] = e
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a Dispatcher that reads PDFs page by page and
// everything else as text.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		byExt:    make(map[string]Extractor),
		fallback: TextExtractor{},
		logger:   slog.Default(),
	}
	d.byExt[".pdf"] = &PDFExtractor{}
	for _, opt := range opts {
		opt(d)
	}
	if pdf, ok := d.byExt[".pdf"].(*PDFExtractor); ok && pdf.logger == nil {
		pdf.logger = d.logger.With("extractor", "pdf")
	}
	return d
}

// Extract reads path using the extractor registered for filename's
// extension. An empty filename falls back to path. Failures are wrapped
// with core.ErrExtraction.
func (d *Dispatcher) Extract(ctx context.Context, path, filename string) (*Result, error) {
	if filename == "" {
		filename = path
	}
	e, ok := d.byExt[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		e = d.fallback
	}
	res, err := e.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExtraction, filename, err)
	}
	return res, nil
}
