package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads a PDF page by page. A page that cannot be decoded
// contributes an empty string instead of failing the document.
type PDFExtractor struct {
	logger *slog.Logger
}

var _ Extractor = (*PDFExtractor)(nil)

func (e *PDFExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	f, reader, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		sb    strings.Builder
		pages []PageSpan
		pos   int
	)
	total := reader.NumPage()
	for num := 1; num <= total; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(reader, num)
		if err != nil {
			logger.Warn("skipping unreadable page", "path", path, "page", num, "err", err)
			text = ""
		}
		text = strings.ToValidUTF8(text, "")
		n := utf8.RuneCountInString(text)
		pages = append(pages, PageSpan{Number: num, Start: pos, End: pos + n})
		sb.WriteString(text)
		pos += n
	}
	return &Result{Text: sb.String(), Pages: pages}, nil
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	reader, err := newPDFReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, reader, nil
}

// newPDFReader parses the trailer and xref table. The pdf package panics
// on some corrupt files, so the panic is turned into an error.
func newPDFReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			reader, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(r, size)
}

// pageText decodes one page. The pdf package panics on some malformed
// content streams, so the panic is turned into an error.
func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
