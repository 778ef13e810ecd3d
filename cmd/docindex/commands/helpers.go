package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	"github.com/ledgerlens/docindex/internal/config"
	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/index"
	"github.com/ledgerlens/docindex/internal/ocr"
	"github.com/ledgerlens/docindex/internal/pipeline"
)

func buildEmbedder(cfg *config.Config, mock bool) (embedding.Embedder, error) {
	if mock {
		return embedding.NewMockClient(cfg.Embedding.Dimension), nil
	}
	return embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
	})
}

func buildPipeline(cfg *config.Config, embedder embedding.Embedder) *pipeline.Pipeline {
	return pipeline.NewPipeline(pipeline.Config{
		MaxFileSizeBytes:   cfg.Pipeline.MaxFileSizeBytes,
		MinTextForNoOCR:    cfg.Pipeline.MinTextForNoOCR,
		ShortPageThreshold: cfg.Pipeline.ShortPageThreshold,
		ThumbnailMaxSide:   cfg.Pipeline.ThumbnailMaxSide,
		OCRDiscount:        cfg.Pipeline.OCRDiscount,
		NoEntitiesFloor:    cfg.Pipeline.NoEntitiesFloor,
		OCR: ocr.Config{
			Binary:        cfg.OCR.Binary,
			Language:      cfg.OCR.Language,
			DPI:           cfg.OCR.DPI,
			PSM:           cfg.OCR.PSM,
			TessdataDir:   cfg.OCR.TessdataDir,
			TSVConfidence: cfg.OCR.TSVConfidence,
		},
	}, embedder, logger)
}

// openIndex loads the persisted index from cfg.Index.Path, or returns an
// empty one when the file is missing or unreadable.
func openIndex(cfg *config.Config) *index.Index {
	ix := index.New(cfg.Index.Dimension)

	blob, err := os.ReadFile(cfg.Index.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", cfg.Index.Path).Msg("index file unreadable, starting empty")
		}
		return ix
	}
	if !ix.Load(blob) {
		logger.Warn().Str("path", cfg.Index.Path).Msg("index file malformed, starting empty")
	}
	return ix
}

// saveIndex persists the index atomically via a temp file rename.
func saveIndex(cfg *config.Config, ix *index.Index) error {
	blob, err := ix.Save()
	if err != nil {
		return fmt.Errorf("serialize index: %w", err)
	}

	dir := filepath.Dir(cfg.Index.Path)
	tmp, err := os.CreateTemp(dir, ".docindex-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmp.Name(), cfg.Index.Path)
}

// indexMetadata are the filterable facts stored alongside each vector.
func indexMetadata(doc *domain.ProcessedDocument) map[string]string {
	meta := map[string]string{
		"file_name": doc.FileMetadata.OriginalName,
		"currency":  doc.Entities.Currency,
		"ocr_used":  strconv.FormatBool(doc.OCRUsed),
	}
	if doc.Entities.Date != nil {
		meta["date"] = doc.Entities.Date.Value
	}
	if doc.Entities.Amount != nil {
		meta["amount"] = strconv.FormatFloat(doc.Entities.Amount.Value, 'f', 2, 64)
	}
	if doc.Entities.Vendor != nil {
		meta["vendor"] = doc.Entities.Vendor.Value
	}
	return meta
}

func successf(format string, args ...interface{}) {
	colored(color.FgGreen, "✓ "+format, args...)
}

func warnf(format string, args ...interface{}) {
	colored(color.FgYellow, "! "+format, args...)
}

func colored(attr color.Attribute, format string, args ...interface{}) {
	c := color.New(attr)
	if noColor {
		c.DisableColor()
	}
	c.Printf(format+"\n", args...)
}
