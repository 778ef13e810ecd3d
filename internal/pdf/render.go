package pdf

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"

	"github.com/ledgerlens/docindex/internal/domain"
)

// RenderPages rasterizes every page of a PDF and hands each image to fn in
// page order. Rendering stops on the first error from fn. The document
// handle is released on every exit path.
func RenderPages(ctx context.Context, path string, fn func(pageNum, total int, img image.Image) error) error {
	doc, err := fitz.New(path)
	if err != nil {
		return domain.ExtractionError("failed to open PDF for rendering", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total == 0 {
		return domain.ExtractionError("PDF has no pages", nil)
	}

	for pageNum := 0; pageNum < total; pageNum++ {
		select {
		case <-ctx.Done():
			return domain.CancelledError("rendering interrupted")
		default:
		}

		img, imgErr := doc.Image(pageNum)
		if imgErr != nil {
			return domain.ExtractionError(fmt.Sprintf("failed to render page %d", pageNum+1), imgErr)
		}

		if err := fn(pageNum+1, total, img); err != nil {
			return err
		}
	}

	return nil
}

// RenderFirstPage rasterizes only the first page, used for thumbnails.
func RenderFirstPage(path string) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.ExtractionError("failed to open PDF for rendering", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, domain.ExtractionError("PDF has no pages", nil)
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, domain.ExtractionError("failed to render first page", err)
	}
	return img, nil
}
