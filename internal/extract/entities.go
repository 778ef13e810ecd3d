// Package extract derives structured financial fields from raw document
// text via pattern matching, each with a confidence score.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledgerlens/docindex/internal/domain"
)

// Extraction confidences per pattern family. Keyword-anchored amounts and
// ISO dates are the most reliable signals on receipts.
const (
	confISODate       = 0.95
	confSlashDate     = 0.75
	confGlyphAmount   = 0.85
	confKeywordAmount = 0.95
	confLabeledVendor = 0.9
	confUppercaseLine = 0.7
)

var (
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reSlashDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)

	reGlyphAmount   = regexp.MustCompile(`[$€£¥₹]\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)
	reKeywordAmount = regexp.MustCompile(`(?i)\b(?:total|amount|due)\b\s*(?:is\s*)?:?\s*[$€£¥₹]?\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)

	reLabeledVendor = regexp.MustCompile(`(?im)^\s*(?:from|merchant|vendor|store)\s*:\s*([A-Z][A-Za-z0-9 .,&'-]*)\s*$`)
	reUppercaseLine = regexp.MustCompile(`^[A-Z0-9 .,&'-]{3,40}$`)
	reHasLetter     = regexp.MustCompile(`[A-Z]`)

	reCurrencyCode = regexp.MustCompile(`\b(USD|EUR|GBP|JPY|INR|CAD|AUD|CHF)\b`)
)

// currencyGlyphs are checked in priority order; the first glyph present in
// the text decides the currency.
var currencyGlyphs = []struct {
	glyph string
	code  string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

const (
	maxDescriptionLineLen = 100
	maxDescriptionLen     = 200
	vendorScanLines       = 5
)

// Extractor pulls dates, amounts, vendor, currency and a short description
// out of raw text. Pure; no state beyond compiled patterns.
type Extractor struct{}

// NewExtractor creates an entity extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives structured entities from text. Date, Amount and Vendor
// are nil when no candidate is found; the all-candidate lists preserve the
// documented ranking (ISO dates before slash dates, amounts by confidence
// descending).
func (x *Extractor) Extract(text string) domain.Entities {
	entities := domain.Entities{
		AllDates:    x.extractDates(text),
		AllAmounts:  x.extractAmounts(text),
		Currency:    x.detectCurrency(text),
		Description: x.buildDescription(text),
	}

	if len(entities.AllDates) > 0 {
		d := entities.AllDates[0]
		entities.Date = &d
	}
	if len(entities.AllAmounts) > 0 {
		a := entities.AllAmounts[0]
		entities.Amount = &a
	}
	entities.Vendor = x.extractVendor(text)

	return entities
}

// extractDates collects ISO matches before slash matches so ISO dates rank
// first, deduplicating by normalized value with first occurrence winning.
func (x *Extractor) extractDates(text string) []domain.ScoredDate {
	var dates []domain.ScoredDate
	seen := make(map[string]bool)

	add := func(iso string, confidence float64) {
		if !seen[iso] {
			seen[iso] = true
			dates = append(dates, domain.ScoredDate{Value: iso, Confidence: confidence})
		}
	}

	for _, m := range reISODate.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		add(m[0], confISODate)
	}

	for _, m := range reSlashDate.FindAllStringSubmatch(text, -1) {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		if year < 100 {
			// Two-digit years pivot at 50.
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
		}
		add(fmt.Sprintf("%04d-%02d-%02d", year, month, day), confSlashDate)
	}

	return dates
}

// extractAmounts collects keyword-anchored candidates before glyph-prefixed
// ones so the higher-confidence reading of a duplicated value survives
// deduplication, then sorts by confidence descending (stable, so collection
// order breaks ties).
func (x *Extractor) extractAmounts(text string) []domain.ScoredAmount {
	var amounts []domain.ScoredAmount
	seen := make(map[float64]bool)

	add := func(raw string, confidence float64) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || seen[v] {
			return
		}
		seen[v] = true
		amounts = append(amounts, domain.ScoredAmount{Value: v, Confidence: confidence})
	}

	for _, m := range reKeywordAmount.FindAllStringSubmatch(text, -1) {
		add(m[1], confKeywordAmount)
	}
	for _, m := range reGlyphAmount.FindAllStringSubmatch(text, -1) {
		add(m[1], confGlyphAmount)
	}

	sort.SliceStable(amounts, func(i, j int) bool {
		return amounts[i].Confidence > amounts[j].Confidence
	})

	return amounts
}

// extractVendor prefers an explicit From:/Merchant:/Vendor:/Store: label;
// failing that it scans the first few lines for an all-uppercase letterhead.
func (x *Extractor) extractVendor(text string) *domain.ScoredText {
	if m := reLabeledVendor.FindStringSubmatch(text); m != nil {
		return &domain.ScoredText{
			Value:      strings.TrimSpace(m[1]),
			Confidence: confLabeledVendor,
		}
	}

	scanned := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		scanned++
		if scanned > vendorScanLines {
			break
		}
		if reUppercaseLine.MatchString(line) && reHasLetter.MatchString(line) {
			return &domain.ScoredText{Value: line, Confidence: confUppercaseLine}
		}
	}

	return nil
}

// detectCurrency checks glyphs in priority order, then a bare ISO code
// token, then defaults to USD.
func (x *Extractor) detectCurrency(text string) string {
	for _, c := range currencyGlyphs {
		if strings.Contains(text, c.glyph) {
			return c.code
		}
	}
	if m := reCurrencyCode.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "USD"
}

// buildDescription joins the first three short non-empty lines.
func (x *Extractor) buildDescription(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= maxDescriptionLineLen {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			break
		}
	}

	if len(lines) == 0 {
		return "No description available"
	}

	desc := strings.Join(lines, " | ")
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	return desc
}
