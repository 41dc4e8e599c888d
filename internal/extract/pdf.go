// Package extract converts raw uploaded files into per-page plain text for
// downstream chunking.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageText is the extracted text of one source page.
type PageText struct {
	Number int // 1-based page number
	Text   string
}

// Extractor produces the per-page text of a raw file.
//
// Implementations must honor the provided context and return an error for
// files they cannot parse; pages without text content may be omitted.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]PageText, error)
}

// PDFExtractor extracts plain text from PDF files, one entry per page.
type PDFExtractor struct{}

// NewPDFExtractor returns a PDFExtractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// Extract parses data as a PDF and returns the plain text of each page.
// Pages that contain no extractable text are skipped. A malformed file or a
// page that fails to decode returns an error.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]PageText, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	out := make([]PageText, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, PageText{Number: i, Text: text})
	}
	return out, nil
}

var _ Extractor = (*PDFExtractor)(nil)
