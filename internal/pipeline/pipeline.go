// Package pipeline orchestrates per-document processing: validation, text
// extraction, recognition fallback, entity extraction, embedding.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/extract"
	"github.com/ledgerlens/docindex/internal/imaging"
	"github.com/ledgerlens/docindex/internal/observability"
	"github.com/ledgerlens/docindex/internal/ocr"
	"github.com/ledgerlens/docindex/internal/pdf"
	"github.com/ledgerlens/docindex/internal/validate"
)

// Config holds pipeline configuration.
type Config struct {
	MaxFileSizeBytes   uint64
	MinTextForNoOCR    int
	ShortPageThreshold int
	ThumbnailMaxSide   int
	OCRDiscount        float64
	NoEntitiesFloor    float64
	OCR                ocr.Config
}

// Options control a single ProcessDocument invocation.
type Options struct {
	SkipEmbedding   bool
	SkipThumbnail   bool
	OCRLanguage     string // default "eng"
	ForceOCR        bool
	MinTextForNoOCR int // overrides Config when positive

	// Progress receives stage transition events; may be nil.
	Progress domain.ProgressSink

	// Cancel is checked at every stage boundary. The zero value never
	// cancels.
	Cancel CancelToken
}

// Pipeline processes one document at a time. The lazily-initialized
// recognition engine is the only shared mutable member, so a single
// Pipeline must not be used for two documents concurrently; run multiple
// Pipeline instances for parallelism.
type Pipeline struct {
	logger       *observability.Logger
	cfg          Config
	validator    *validate.Validator
	pdfExtractor *pdf.Extractor
	preprocessor *imaging.Preprocessor
	engine       *ocr.Engine
	normalizer   *ocr.Normalizer
	entities     *extract.Extractor
	aggregator   *extract.Aggregator
	embedder     embedding.Embedder
}

// NewPipeline creates a processing pipeline. embedder may be nil when the
// caller always skips embedding.
func NewPipeline(cfg Config, embedder embedding.Embedder, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.MinTextForNoOCR <= 0 {
		cfg.MinTextForNoOCR = 100
	}
	if cfg.ThumbnailMaxSide <= 0 {
		cfg.ThumbnailMaxSide = 256
	}

	return &Pipeline{
		logger:       logger.WithComponent("pipeline"),
		cfg:          cfg,
		validator:    validate.NewValidator(cfg.MaxFileSizeBytes),
		pdfExtractor: pdf.NewExtractor(cfg.ShortPageThreshold, logger),
		preprocessor: imaging.NewPreprocessor(),
		engine:       ocr.NewEngine(cfg.OCR, logger),
		normalizer:   ocr.NewNormalizer(),
		entities:     extract.NewExtractor(),
		aggregator:   extract.NewAggregator(cfg.OCRDiscount, cfg.NoEntitiesFloor),
		embedder:     embedder,
	}
}

// NewPipelineWithRunner creates a pipeline whose recognition engine uses a
// custom runner. Used in tests.
func NewPipelineWithRunner(cfg Config, runner ocr.Runner, embedder embedding.Embedder, logger *observability.Logger) *Pipeline {
	p := NewPipeline(cfg, embedder, logger)
	p.engine = ocr.NewEngineWithRunner(cfg.OCR, runner, logger)
	return p
}

// Validate runs only the pre-flight checks for path. Validation failures
// are data, not errors; err is non-nil only when the file cannot be
// inspected at all.
func (p *Pipeline) Validate(path string) (domain.ValidationResult, error) {
	f, err := validate.Describe(path)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return p.validator.Validate(f), nil
}

// ProcessDocument runs the full pipeline for one file. Intermediate state
// is reported only through opts.Progress; on failure a terminal
// error-stage event is emitted and the error is returned, never a
// degraded success result.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string, opts Options) (*domain.ProcessedDocument, error) {
	start := time.Now()
	id := uuid.New()
	name := filepath.Base(path)

	run := &docRun{
		pipeline: p,
		id:       id,
		name:     name,
		opts:     opts,
	}

	doc, err := run.process(ctx, path)
	if err != nil {
		de := domain.AsDomainError(err)
		p.logger.Error().
			Str("file_id", id.String()).
			Str("file_name", name).
			Str("mime_type", run.mimeType).
			Int64("size_bytes", int64(run.sizeBytes)).
			Str("code", de.Code()).
			Err(err).
			Msg("document processing failed")
		opts.Progress.Emit(domain.ProgressEvent{
			FileID:   id,
			FileName: name,
			Stage:    domain.StageError,
			Err: &domain.ErrorInfo{
				Code:        de.Code(),
				Message:     de.Message,
				Recoverable: de.Recoverable(),
			},
		})
		return nil, de
	}

	doc.ProcessingTimeMs = float64(time.Since(start)) / float64(time.Millisecond)

	p.logger.Info().
		Str("file_id", id.String()).
		Str("file_name", name).
		Bool("ocr_used", doc.OCRUsed).
		Float64("confidence", doc.Confidence).
		Dur("duration", time.Since(start)).
		Msg("document processed")

	return doc, nil
}

// Terminate releases the cached recognition engine. The pipeline remains
// usable; the engine re-initializes on the next document that needs it.
func (p *Pipeline) Terminate() {
	p.engine.Terminate()
}

// docRun carries the state of a single document through the stages.
type docRun struct {
	pipeline *Pipeline
	id       uuid.UUID
	name     string
	opts     Options

	mimeType  string
	sizeBytes uint64
}

func (r *docRun) emit(stage domain.Stage, progress, currentPage, totalPages int) {
	r.opts.Progress.Emit(domain.ProgressEvent{
		FileID:      r.id,
		FileName:    r.name,
		Stage:       stage,
		Progress:    progress,
		CurrentPage: currentPage,
		TotalPages:  totalPages,
	})
}

func (r *docRun) checkCancelled() error {
	if r.opts.Cancel.Cancelled() {
		return domain.CancelledError("document processing cancelled")
	}
	return nil
}

func (r *docRun) process(ctx context.Context, path string) (*domain.ProcessedDocument, error) {
	p := r.pipeline

	// Stage: validating.
	r.emit(domain.StageValidating, 0, 0, 0)

	described, err := validate.Describe(path)
	if err != nil {
		return nil, domain.ValidationError("cannot inspect file", err)
	}
	r.mimeType = described.MIMEType
	r.sizeBytes = described.SizeBytes

	validation := p.validator.Validate(described)
	if !validation.IsValid {
		return nil, domain.ValidationError(validation.Error, nil)
	}
	if err := r.checkCancelled(); err != nil {
		return nil, err
	}

	var (
		rawText   string
		ocrUsed   bool
		pageCount int
	)

	switch validation.Kind {
	case domain.KindPDF:
		rawText, ocrUsed, pageCount, err = r.processPDF(ctx, path)
	case domain.KindImage:
		rawText, err = r.processImage(ctx, path)
		ocrUsed = true
	default:
		err = domain.ProcessingError(fmt.Sprintf("unhandled file kind %q", validation.Kind), nil)
	}
	if err != nil {
		return nil, err
	}
	if err := r.checkCancelled(); err != nil {
		return nil, err
	}

	entities := p.entities.Extract(rawText)
	confidence := p.aggregator.Aggregate(entities, ocrUsed)

	thumbnail := ""
	if !r.opts.SkipThumbnail {
		thumbnail = r.makeThumbnail(path, validation.Kind)
	}

	// Stage: embedding.
	var vector []float32
	if !r.opts.SkipEmbedding && p.embedder != nil {
		r.emit(domain.StageEmbedding, 0, 0, 0)
		vector, err = p.embedder.EmbedSingle(ctx, rawText)
		if err != nil {
			return nil, domain.ProcessingError("embedding generation failed", err)
		}
		if err := r.checkCancelled(); err != nil {
			return nil, err
		}
	}

	r.emit(domain.StageComplete, 100, 0, 0)

	return &domain.ProcessedDocument{
		ID:               r.id,
		RawText:          rawText,
		Embedding:        vector,
		Entities:         entities,
		ThumbnailDataURL: thumbnail,
		FileMetadata: domain.FileMetadata{
			OriginalName: r.name,
			MIMEType:     validation.MIMEType,
			SizeBytes:    validation.SizeBytes,
			PageCount:    pageCount,
		},
		Confidence: confidence,
		OCRUsed:    ocrUsed,
	}, nil
}

// processPDF extracts the native text layer and falls back to recognition
// when the document is image-based, the layer is too short, or recognition
// is forced.
func (r *docRun) processPDF(ctx context.Context, path string) (text string, ocrUsed bool, pageCount int, err error) {
	p := r.pipeline

	if !r.opts.ForceOCR {
		r.emit(domain.StageExtracting, 0, 0, 0)
		extraction, exErr := p.pdfExtractor.Extract(ctx, path, func(current, total int) {
			r.emit(domain.StageExtracting, current*100/total, current, total)
		})
		if exErr != nil {
			return "", false, 0, exErr
		}
		if err := r.checkCancelled(); err != nil {
			return "", false, 0, err
		}

		pageCount = extraction.PageCount
		minText := r.opts.MinTextForNoOCR
		if minText <= 0 {
			minText = p.cfg.MinTextForNoOCR
		}

		if !extraction.IsImageBased && len(strings.TrimSpace(extraction.Text)) >= minText {
			return extraction.Text, false, pageCount, nil
		}

		p.logger.Debug().
			Str("file_name", r.name).
			Bool("image_based", extraction.IsImageBased).
			Int("text_len", len(extraction.Text)).
			Msg("text layer insufficient, falling back to recognition")
	}

	text, pageCount, err = r.recognizePDF(ctx, path)
	if err != nil {
		return "", false, 0, err
	}
	return text, true, pageCount, nil
}

// recognizePDF renders each page, preprocesses it, and runs recognition.
func (r *docRun) recognizePDF(ctx context.Context, path string) (string, int, error) {
	p := r.pipeline

	var pages []string
	total := 0

	err := pdf.RenderPages(ctx, path, func(pageNum, pageTotal int, img image.Image) error {
		total = pageTotal
		if err := r.checkCancelled(); err != nil {
			return err
		}

		prepared := p.preprocessor.Preprocess(img)

		result, err := p.engine.Recognize(ctx, ocr.Input{Image: prepared}, r.opts.OCRLanguage, func(pct int) {
			// Blend per-page engine progress into the document total.
			overall := ((pageNum-1)*100 + pct) / pageTotal
			r.emit(domain.StageOCR, overall, pageNum, pageTotal)
		})
		if err != nil {
			return err
		}

		pages = append(pages, result.Text)
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	text := p.normalizer.Normalize(strings.Join(pages, "\n"))
	return text, total, nil
}

// processImage runs recognition directly on an image file, preprocessing
// it first when the format is decodable in-process.
func (r *docRun) processImage(ctx context.Context, path string) (string, error) {
	p := r.pipeline

	r.emit(domain.StageOCR, 0, 1, 1)

	input := ocr.Input{Path: path}
	if img := decodeImage(path); img != nil {
		input = ocr.Input{Image: p.preprocessor.Preprocess(img)}
	}

	result, err := p.engine.Recognize(ctx, input, r.opts.OCRLanguage, func(pct int) {
		r.emit(domain.StageOCR, pct, 1, 1)
	})
	if err != nil {
		return "", err
	}

	return p.normalizer.Normalize(result.Text), nil
}

// makeThumbnail renders a bounded preview. Thumbnails are best-effort;
// failures are logged and the document proceeds without one.
func (r *docRun) makeThumbnail(path string, kind domain.FileKind) string {
	p := r.pipeline

	var img image.Image
	switch kind {
	case domain.KindPDF:
		rendered, err := pdf.RenderFirstPage(path)
		if err != nil {
			p.logger.Warn().Err(err).Str("file_name", r.name).Msg("thumbnail render failed")
			return ""
		}
		img = rendered
	case domain.KindImage:
		img = decodeImage(path)
	}
	if img == nil {
		return ""
	}

	url, err := imaging.ThumbnailDataURL(img, p.cfg.ThumbnailMaxSide)
	if err != nil {
		p.logger.Warn().Err(err).Str("file_name", r.name).Msg("thumbnail encode failed")
		return ""
	}
	return url
}

// decodeImage decodes JPEG/PNG files; formats the stdlib cannot decode
// (webp, heic) return nil and are handed to the engine as file paths.
func decodeImage(path string) image.Image {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil
	}
	return img
}
