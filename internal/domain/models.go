// Package domain holds the shared data model for the ingestion pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileKind is the tagged file variant produced once by validation and
// matched exhaustively in the orchestrator.
type FileKind string

const (
	KindPDF   FileKind = "pdf"
	KindImage FileKind = "image"
)

// ValidationResult is the outcome of pre-flight file validation. It is
// returned as data, never raised.
type ValidationResult struct {
	IsValid   bool
	Error     string
	Kind      FileKind
	MIMEType  string
	SizeBytes uint64
}

// PDFExtraction is the result of pulling the embedded text layer from a PDF.
type PDFExtraction struct {
	Text             string
	PageCount        int
	IsImageBased     bool
	PageTexts        []string
	ExtractionTimeMs float64
}

// OCRResult is the raw output of the recognition engine. Confidence is on
// the engine's 0-100 scale; consumers normalize to [0,1].
type OCRResult struct {
	Text             string
	Confidence       float64
	ProcessingTimeMs float64
}

// ScoredDate is a date candidate with extraction confidence.
type ScoredDate struct {
	Value      string // ISO-8601 (YYYY-MM-DD)
	Confidence float64
}

// ScoredAmount is an amount candidate with extraction confidence.
type ScoredAmount struct {
	Value      float64
	Confidence float64
}

// ScoredText is a string field candidate with extraction confidence.
type ScoredText struct {
	Value      string
	Confidence float64
}

// Entities holds the structured fields extracted from raw document text.
// Date, Amount and Vendor, when present, are the primary candidates of
// their AllDates/AllAmounts lists.
type Entities struct {
	Date        *ScoredDate
	Amount      *ScoredAmount
	Vendor      *ScoredText
	Description string
	Currency    string
	AllAmounts  []ScoredAmount
	AllDates    []ScoredDate
}

// FileMetadata describes the input file as it was submitted.
type FileMetadata struct {
	OriginalName string
	MIMEType     string
	SizeBytes    uint64
	PageCount    int // 0 when not applicable (images)
}

// ProcessedDocument is the pipeline's terminal artifact. RawText and
// Embedding are privacy-sensitive and must never cross into a sync payload;
// use NewSyncRecord for the exportable projection.
type ProcessedDocument struct {
	ID               uuid.UUID
	RawText          string
	Embedding        []float32
	Entities         Entities
	ThumbnailDataURL string
	FileMetadata     FileMetadata
	Confidence       float64
	ProcessingTimeMs float64
	OCRUsed          bool
}

// Stage identifies a pipeline processing stage.
type Stage string

const (
	StageValidating Stage = "validating"
	StageExtracting Stage = "extracting"
	StageOCR        Stage = "ocr"
	StageEmbedding  Stage = "embedding"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// ErrorInfo is the machine-readable error payload carried by a terminal
// error-stage progress event.
type ErrorInfo struct {
	Code        string
	Message     string
	Recoverable bool
}

// ProgressEvent reports intermediate pipeline state to the caller.
type ProgressEvent struct {
	FileID      uuid.UUID
	FileName    string
	Stage       Stage
	Progress    int // 0-100
	CurrentPage int
	TotalPages  int
	Err         *ErrorInfo
}

// ProgressSink receives progress events. A nil sink is valid and discards
// all events.
type ProgressSink func(ProgressEvent)

// Emit sends an event through the sink if one is set.
func (s ProgressSink) Emit(evt ProgressEvent) {
	if s != nil {
		s(evt)
	}
}

// SyncRecord is the only projection of a processed document allowed to
// leave the device. It carries structured facts and identifiers, never raw
// text, embeddings, file details or confidence.
type SyncRecord struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Currency  string    `json:"currency"`
	Vendor    string    `json:"vendor,omitempty"`
	Category  string    `json:"category,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSyncRecord builds the exportable projection of a processed document.
func NewSyncRecord(doc *ProcessedDocument, category string) SyncRecord {
	rec := SyncRecord{
		ID:        doc.ID,
		Currency:  doc.Entities.Currency,
		Category:  category,
		Note:      doc.Entities.Description,
		CreatedAt: time.Now().UTC(),
	}
	if doc.Entities.Date != nil {
		rec.Date = doc.Entities.Date.Value
	}
	if doc.Entities.Amount != nil {
		rec.Amount = doc.Entities.Amount.Value
	}
	if doc.Entities.Vendor != nil {
		rec.Vendor = doc.Entities.Vendor.Value
	}
	return rec
}
