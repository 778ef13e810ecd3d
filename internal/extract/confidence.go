package extract

import "github.com/ledgerlens/docindex/internal/domain"

// Default aggregation constants. Tunable because neither value is derived
// from a measured accuracy baseline.
const (
	DefaultOCRDiscount     = 0.9
	DefaultNoEntitiesFloor = 0.3
)

// Aggregator combines per-field confidences into one document-level score.
type Aggregator struct {
	ocrDiscount     float64
	noEntitiesFloor float64
}

// NewAggregator creates an aggregator. Zero values select the defaults.
func NewAggregator(ocrDiscount, noEntitiesFloor float64) *Aggregator {
	if ocrDiscount <= 0 {
		ocrDiscount = DefaultOCRDiscount
	}
	if noEntitiesFloor <= 0 {
		noEntitiesFloor = DefaultNoEntitiesFloor
	}
	return &Aggregator{
		ocrDiscount:     ocrDiscount,
		noEntitiesFloor: noEntitiesFloor,
	}
}

// Aggregate averages whichever field confidences are present. With no
// fields at all it returns the floor rather than zero, so "nothing
// extracted" stays distinguishable from an explicit zero confidence.
// When recognition was used anywhere for the document the average is
// discounted to reflect the added uncertainty over a native text layer.
func (a *Aggregator) Aggregate(entities domain.Entities, ocrUsed bool) float64 {
	var sum float64
	var n int

	if entities.Date != nil {
		sum += entities.Date.Confidence
		n++
	}
	if entities.Amount != nil {
		sum += entities.Amount.Confidence
		n++
	}
	if entities.Vendor != nil {
		sum += entities.Vendor.Confidence
		n++
	}

	if n == 0 {
		return a.noEntitiesFloor
	}

	confidence := sum / float64(n)
	if ocrUsed {
		confidence *= a.ocrDiscount
	}
	return confidence
}
