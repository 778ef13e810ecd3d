// Package pdf provides text-layer extraction and page rendering for PDF
// documents using go-fitz.
package pdf

import (
	"context"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/observability"
)

const (
	// shortPageThreshold is the per-page text length below which a page is
	// counted as having no usable text layer.
	shortPageThreshold = 50

	// baselineTolerance is the vertical distance, in layout points, beyond
	// which two fragments are considered to sit on different lines.
	baselineTolerance = 2.0
)

// Extractor pulls the embedded text layer from PDFs page by page.
type Extractor struct {
	logger             *observability.Logger
	shortPageThreshold int
}

// NewExtractor creates a PDF text extractor. threshold <= 0 selects the
// default short-page threshold.
func NewExtractor(threshold int, logger *observability.Logger) *Extractor {
	if threshold <= 0 {
		threshold = shortPageThreshold
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Extractor{
		logger:             logger.WithComponent("pdf"),
		shortPageThreshold: threshold,
	}
}

// Extract reads all page text layers. onPage, if non-nil, is called after
// each page with (current, total). The document handle is released on every
// exit path. IsImageBased is set when more than half of the pages carry
// less than the short-page threshold of text, which signals a scan that
// needs recognition instead of text-layer extraction.
func (e *Extractor) Extract(ctx context.Context, path string, onPage func(current, total int)) (*domain.PDFExtraction, error) {
	start := time.Now()

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.ExtractionError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ExtractionError("PDF has no pages", nil)
	}

	pageTexts := make([]string, 0, pageCount)
	shortPages := 0

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, domain.CancelledError("extraction interrupted")
		default:
		}

		text, pageErr := e.extractPage(doc, pageNum)
		if pageErr != nil {
			return nil, pageErr
		}

		if len(strings.TrimSpace(text)) < e.shortPageThreshold {
			shortPages++
		}
		pageTexts = append(pageTexts, text)

		if onPage != nil {
			onPage(pageNum+1, pageCount)
		}
	}

	result := &domain.PDFExtraction{
		Text:             strings.Join(pageTexts, "\n"),
		PageCount:        pageCount,
		IsImageBased:     isImageBased(shortPages, pageCount),
		PageTexts:        pageTexts,
		ExtractionTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
	}

	e.logger.Debug().
		Int("pages", pageCount).
		Int("short_pages", shortPages).
		Bool("image_based", result.IsImageBased).
		Msg("extracted text layer")

	return result, nil
}

// isImageBased reports whether a document is a scan: more than half of its
// pages carry less than the short-page threshold of text.
func isImageBased(shortPages, pageCount int) bool {
	return shortPages*2 > pageCount
}

// extractPage reads one page as positioned fragments and assembles lines.
// Falls back to the plain text device when structured output is unavailable.
func (e *Extractor) extractPage(doc *fitz.Document, pageNum int) (string, error) {
	html, err := doc.HTML(pageNum, false)
	if err == nil {
		if frags := fragmentsFromHTML(html); len(frags) > 0 {
			return JoinFragments(frags), nil
		}
	}

	text, err := doc.Text(pageNum)
	if err != nil {
		return "", domain.ExtractionError("failed to read page text", err)
	}
	return text, nil
}
