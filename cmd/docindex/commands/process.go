package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgerlens/docindex/internal/domain"
	"github.com/ledgerlens/docindex/internal/embedding"
	"github.com/ledgerlens/docindex/internal/pipeline"
)

var (
	processLanguage      string
	processForceOCR      bool
	processSkipEmbedding bool
	processSkipThumbnail bool
	processMockEmbedder  bool
)

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Process documents and add them to the index",
	Long: `Process one or more PDF or image files through the full pipeline:
validation, text extraction (OCR fallback for scans), entity extraction,
embedding, and indexing. The index is saved after the batch completes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processLanguage, "language", "", "recognition language (default from config)")
	processCmd.Flags().BoolVar(&processForceOCR, "force-ocr", false, "recognize even when a text layer exists")
	processCmd.Flags().BoolVar(&processSkipEmbedding, "skip-embedding", false, "process without generating embeddings")
	processCmd.Flags().BoolVar(&processSkipThumbnail, "skip-thumbnail", false, "process without generating thumbnails")
	processCmd.Flags().BoolVar(&processMockEmbedder, "mock-embedder", false, "use a deterministic local embedder")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var embedder embedding.Embedder
	if !processSkipEmbedding {
		var err error
		embedder, err = buildEmbedder(cfg, processMockEmbedder)
		if err != nil {
			return err
		}
	}
	p := buildPipeline(cfg, embedder)
	defer p.Terminate()

	ix := openIndex(cfg)

	token := pipeline.NewCancelToken()
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	processed := 0
	failed := 0

	for _, path := range args {
		doc, err := processOne(ctx, p, path, token)
		if err != nil {
			failed++
			warnf("%s: %v", path, err)
			if token.Cancelled() {
				break
			}
			continue
		}

		if len(doc.Embedding) > 0 {
			if err := ix.Add(doc.ID.String(), doc.Embedding, indexMetadata(doc)); err != nil {
				failed++
				warnf("%s: index: %v", path, err)
				continue
			}
		}
		processed++

		if jsonOutput {
			printDocumentJSON(doc)
		} else {
			printDocument(doc)
		}
	}

	if processed > 0 {
		if err := saveIndex(cfg, ix); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}

	if !jsonOutput {
		successf("processed %d of %d files", processed, len(args))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func processOne(ctx context.Context, p *pipeline.Pipeline, path string, token pipeline.CancelToken) (*domain.ProcessedDocument, error) {
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription(path),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}

	opts := pipeline.Options{
		SkipEmbedding: processSkipEmbedding,
		SkipThumbnail: processSkipThumbnail,
		OCRLanguage:   processLanguage,
		ForceOCR:      processForceOCR,
		Cancel:        token,
		Progress: func(evt domain.ProgressEvent) {
			if bar == nil {
				return
			}
			bar.Describe(fmt.Sprintf("%s [%s]", evt.FileName, evt.Stage))
			_ = bar.Set(evt.Progress)
		},
	}

	doc, err := p.ProcessDocument(ctx, path, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	return doc, err
}

func printDocument(doc *domain.ProcessedDocument) {
	fmt.Printf("  id:         %s\n", doc.ID)
	if doc.Entities.Vendor != nil {
		fmt.Printf("  vendor:     %s\n", doc.Entities.Vendor.Value)
	}
	if doc.Entities.Date != nil {
		fmt.Printf("  date:       %s\n", doc.Entities.Date.Value)
	}
	if doc.Entities.Amount != nil {
		fmt.Printf("  amount:     %.2f %s\n", doc.Entities.Amount.Value, doc.Entities.Currency)
	}
	fmt.Printf("  confidence: %.2f\n", doc.Confidence)
	fmt.Printf("  ocr used:   %v\n", doc.OCRUsed)
	fmt.Printf("  duration:   %.0fms\n", doc.ProcessingTimeMs)
}

// printDocumentJSON emits the privacy-safe projection, never raw text or
// embeddings.
func printDocumentJSON(doc *domain.ProcessedDocument) {
	rec := domain.NewSyncRecord(doc, "")
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rec)
}
