package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *ProcessedDocument {
	return &ProcessedDocument{
		ID:      uuid.New(),
		RawText: "ACME STORE\nTotal: $82.06\ncardholder name and number",
		Embedding: []float32{0.1, 0.2, 0.3},
		Entities: Entities{
			Date:        &ScoredDate{Value: "2024-01-15", Confidence: 0.75},
			Amount:      &ScoredAmount{Value: 82.06, Confidence: 0.95},
			Vendor:      &ScoredText{Value: "ACME STORE", Confidence: 0.7},
			Currency:    "USD",
			Description: "ACME STORE | Total: $82.06",
		},
		ThumbnailDataURL: "data:image/jpeg;base64,xxxx",
		FileMetadata: FileMetadata{
			OriginalName: "receipt.pdf",
			MIMEType:     "application/pdf",
			SizeBytes:    12345,
		},
		Confidence: 0.72,
		OCRUsed:    true,
	}
}

func TestNewSyncRecord_CarriesStructuredFacts(t *testing.T) {
	doc := sampleDocument()

	rec := NewSyncRecord(doc, "groceries")

	assert.Equal(t, doc.ID, rec.ID)
	assert.Equal(t, "2024-01-15", rec.Date)
	assert.InDelta(t, 82.06, rec.Amount, 0.001)
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "ACME STORE", rec.Vendor)
	assert.Equal(t, "groceries", rec.Category)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestNewSyncRecord_NeverLeaksRawContent(t *testing.T) {
	doc := sampleDocument()

	rec := NewSyncRecord(doc, "")
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	// The exported payload must not contain raw text, embeddings,
	// thumbnails, file details or confidence values.
	s := string(payload)
	assert.NotContains(t, s, "cardholder")
	assert.NotContains(t, s, "embedding")
	assert.NotContains(t, s, "base64")
	assert.NotContains(t, s, "receipt.pdf")
	assert.NotContains(t, s, "confidence")
}

func TestNewSyncRecord_MissingFieldsOmitted(t *testing.T) {
	doc := &ProcessedDocument{ID: uuid.New(), Entities: Entities{Currency: "USD"}}

	rec := NewSyncRecord(doc, "")
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	s := string(payload)
	assert.NotContains(t, s, `"date"`)
	assert.NotContains(t, s, `"amount"`)
	assert.NotContains(t, s, `"vendor"`)
	assert.Contains(t, s, `"currency":"USD"`)
}

func TestProgressSink_NilSafe(t *testing.T) {
	var sink ProgressSink

	assert.NotPanics(t, func() {
		sink.Emit(ProgressEvent{Stage: StageValidating})
	})
}

func TestProgressSink_Delivers(t *testing.T) {
	var got []ProgressEvent
	sink := ProgressSink(func(evt ProgressEvent) { got = append(got, evt) })

	sink.Emit(ProgressEvent{Stage: StageOCR, Progress: 40})

	require.Len(t, got, 1)
	assert.Equal(t, StageOCR, got[0].Stage)
	assert.Equal(t, 40, got[0].Progress)
}
