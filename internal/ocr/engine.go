// Package ocr adapts an external recognition engine (tesseract) and repairs
// its systematic misreads on financial documents.
package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/observability"
)

// Config holds recognition engine settings.
type Config struct {
	Binary        string // binary name or absolute path; if empty -> "tesseract"
	Language      string // default "eng"
	DPI           int    // assumed resolution for images without DPI metadata
	PSM           int    // page segmentation mode; 3 = fully automatic layout
	TessdataDir   string
	TSVConfidence bool // run a second TSV pass for word-level confidence
}

// Input is a recognition input: either a file on disk or an in-memory
// pixel buffer. When Image is set it is encoded to an intermediate PNG,
// since the engine does not accept raw pixel buffers.
type Input struct {
	Path  string
	Image image.Image
}

// Engine wraps the external recognizer. The underlying binary is probed
// once on first use and the handle is reused for the adapter's lifetime.
// An Engine must not be used for two recognitions concurrently.
type Engine struct {
	cfg    Config
	runner Runner
	logger *observability.Logger

	mu       sync.Mutex
	initDone bool
	initErr  error
	binPath  string
	tempDir  string
}

// NewEngine creates a recognition engine adapter. Initialization of the
// underlying binary is deferred until the first Recognize call.
func NewEngine(cfg Config, logger *observability.Logger) *Engine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PSM == 0 {
		cfg.PSM = 3
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Engine{
		cfg:    cfg,
		runner: execRunner{},
		logger: logger.WithComponent("ocr"),
	}
}

// NewEngineWithRunner creates an engine with a custom runner. Used in tests.
func NewEngineWithRunner(cfg Config, runner Runner, logger *observability.Logger) *Engine {
	e := NewEngine(cfg, logger)
	e.runner = runner
	return e
}

// init resolves the binary and creates the working directory. Expensive
// relative to a single recognition, so the result is cached.
func (e *Engine) init() error {
	if e.initDone {
		return e.initErr
	}
	e.initDone = true

	// Custom runners resolve their own binaries.
	if _, ok := e.runner.(execRunner); ok {
		path, err := lookPath(e.cfg.Binary)
		if err != nil {
			e.initErr = domain.RecognitionError(
				fmt.Sprintf("recognition engine %q not found", e.cfg.Binary), err)
			return e.initErr
		}
		e.binPath = path
	} else {
		e.binPath = e.cfg.Binary
	}

	dir, err := os.MkdirTemp("", "docindex-ocr-*")
	if err != nil {
		e.initErr = domain.RecognitionError("create ocr working directory", err)
		return e.initErr
	}
	e.tempDir = dir

	e.logger.Debug().Str("binary", e.binPath).Msg("recognition engine initialized")
	return nil
}

// Recognize converts an image into text plus an overall confidence on the
// engine's 0-100 scale. onProgress receives values in [0,100]; it may be nil.
func (e *Engine) Recognize(ctx context.Context, in Input, language string, onProgress func(int)) (domain.OCRResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	if err := e.init(); err != nil {
		return domain.OCRResult{}, err
	}

	if language == "" {
		language = e.cfg.Language
	}

	report := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	report(0)

	path := in.Path
	if in.Image != nil {
		encoded, err := e.encodeImage(in.Image)
		if err != nil {
			return domain.OCRResult{}, err
		}
		defer os.Remove(encoded)
		path = encoded
	}
	if path == "" {
		return domain.OCRResult{}, domain.RecognitionError("no input image or path provided", nil)
	}
	report(10)

	text, err := e.recognizeText(ctx, path, language)
	if err != nil {
		return domain.OCRResult{}, err
	}
	report(70)

	confidence := 0.0
	if e.cfg.TSVConfidence {
		if c, confErr := e.tsvConfidence(ctx, path, language); confErr == nil {
			confidence = c
		} else {
			e.logger.Warn().Err(confErr).Msg("confidence pass failed, reporting zero confidence")
		}
	}
	report(100)

	return domain.OCRResult{
		Text:             text,
		Confidence:       confidence,
		ProcessingTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
	}, nil
}

// Terminate releases the cached engine state. The next Recognize call
// re-initializes from scratch.
func (e *Engine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tempDir != "" {
		if err := os.RemoveAll(e.tempDir); err != nil {
			e.logger.Warn().Err(err).Str("dir", e.tempDir).Msg("failed to remove ocr working directory")
		}
		e.tempDir = ""
	}
	e.initDone = false
	e.initErr = nil
	e.binPath = ""
}

func (e *Engine) baseArgs(path, language string) []string {
	args := []string{path, "stdout", "-l", language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(e.cfg.DPI))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// Downstream field extraction is regex-based; collapsed spacing would
	// destroy column alignment on receipts.
	args = append(args, "-c", "preserve_interword_spaces=1")
	return args
}

func (e *Engine) recognizeText(ctx context.Context, path, language string) (string, error) {
	out, errb, err := e.runner.Run(ctx, e.binPath, e.baseArgs(path, language)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.CancelledError("recognition interrupted")
		}
		e.logger.Error().
			Err(err).
			Str("stderr", truncate(string(errb), 8<<10)).
			Msg("recognition failed")
		return "", domain.RecognitionError("recognition engine failed", err)
	}
	return string(out), nil
}

// tsvConfidence runs the engine in TSV mode and returns the mean word
// confidence on the 0-100 scale.
func (e *Engine) tsvConfidence(ctx context.Context, path, language string) (float64, error) {
	args := append(e.baseArgs(path, language), "tsv")
	out, errb, err := e.runner.Run(ctx, e.binPath, args...)
	if err != nil {
		return 0, fmt.Errorf("tsv pass: %w (stderr: %s)", err, truncate(string(errb), 1<<10))
	}

	var sum float64
	var n int
	for i, line := range strings.Split(string(out), "\n") {
		if i == 0 || line == "" {
			continue // header
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-2]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, parseErr := strconv.ParseFloat(confStr, 64); parseErr == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// encodeImage writes a pixel buffer as PNG into the engine's working
// directory and returns the path.
func (e *Engine) encodeImage(img image.Image) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "frame-*.png")
	if err != nil {
		return "", domain.RecognitionError("create intermediate image", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		os.Remove(f.Name())
		return "", domain.RecognitionError("encode intermediate image", err)
	}
	return f.Name(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
