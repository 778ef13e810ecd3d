package ocr

import (
	"regexp"
)

// The recognition engine systematically misreads the "$" glyph as the digit
// 3, the letters z/Z, or %, depending on font and scan quality. Normalizer
// repairs those misreads in raw recognition output before field extraction.
type Normalizer struct{}

// NewNormalizer creates a text normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// price is a price-shaped number: digits with optional thousands groups and
// exactly two decimal places.
const price = `\d{1,3}(?:,\d{3})*\.\d{2}|\d+\.\d{2}`

var (
	// A "3" starting a price where no digit (and no real "$") precedes it.
	// A leading "-" still matches, so negative amounts are repaired too.
	reMisreadThree = regexp.MustCompile(`(^|[^0-9$])3(` + price + `)\b`)

	// The same misread directly after a financial keyword. A single stray
	// digit-3-before-a-price is common, so outside of the document-wide
	// mode the repair stays anchored to these labels.
	reKeywordThree = regexp.MustCompile(`(?i)((?:grand\s+total|bill\s+total|item\s+total|total|amount|paid|payable|net|due|bill)\s*(?:is\s*)?:?\s*)3(` + price + `)\b`)

	// z/Z/% directly before a price. These characters essentially never
	// prefix numbers in financial documents, so this repair is unconditional.
	reMisreadZ = regexp.MustCompile(`[zZ%](` + price + `)\b`)

	// Loose "USD" variants with trailing punctuation collapse to one form.
	reLooseUSD = regexp.MustCompile(`(?i)\bUSD\b[\s.:,]+`)
)

// systematicThreshold is the occurrence count at which the digit-3 misread
// is treated as systematic for the whole document rather than coincidental.
const systematicThreshold = 2

// Normalize repairs recognition misreads in text. Pure string transform.
//
// The digit-3 repair is two-tier: with systematicThreshold or more
// occurrences the misread is judged a font/engine artifact and corrected
// everywhere, including amounts no keyword rule would reach; below the
// threshold only keyword-anchored occurrences are touched, to avoid
// corrupting unrelated numerals.
func (n *Normalizer) Normalize(text string) string {
	matches := reMisreadThree.FindAllStringIndex(text, -1)
	if len(matches) >= systematicThreshold {
		text = reMisreadThree.ReplaceAllString(text, `${1}$$${2}`)
	} else {
		text = reKeywordThree.ReplaceAllString(text, `${1}$$${2}`)
	}

	text = reMisreadZ.ReplaceAllString(text, `$$${1}`)
	text = reLooseUSD.ReplaceAllString(text, "USD ")

	return text
}
