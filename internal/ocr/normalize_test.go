package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Normalize_SystematicThreeMisread(t *testing.T) {
	n := NewNormalizer()

	// Two digit-3 misreads cross the systematic threshold, so both are
	// repaired document-wide, including the one no keyword precedes.
	in := "Coffee 34.50\nMuffin 33.25\nhave a nice day"
	out := n.Normalize(in)

	assert.Equal(t, "Coffee $4.50\nMuffin $3.25\nhave a nice day", out)
}

func TestNormalizer_Normalize_SingleMisreadOnlyAfterKeyword(t *testing.T) {
	n := NewNormalizer()

	// One occurrence stays below the threshold; only the keyword-anchored
	// form is repaired.
	out := n.Normalize("Total: 382.06")
	assert.Equal(t, "Total: $82.06", out)

	// The same single misread without a keyword is left alone.
	out = n.Normalize("Ref 382.06")
	assert.Equal(t, "Ref 382.06", out)
}

func TestNormalizer_Normalize_KeywordVariants(t *testing.T) {
	n := NewNormalizer()

	cases := map[string]string{
		"Grand Total: 312.00":  "Grand Total: $12.00",
		"amount is 35.99":      "amount is $5.99",
		"Paid 3100.00":         "Paid $100.00",
		"Bill Total 31,234.56": "Bill Total $1,234.56",
	}
	for in, want := range cases {
		assert.Equal(t, want, n.Normalize(in), "input %q", in)
	}
}

func TestNormalizer_Normalize_GenuinePricesUntouched(t *testing.T) {
	n := NewNormalizer()

	// A real "$3..." amount must survive: the preceding "$" blocks the
	// misread pattern.
	in := "Total: $3125.50\nSubtotal: $3003.00"
	assert.Equal(t, in, n.Normalize(in))
}

func TestNormalizer_Normalize_NonPriceNumbersUntouched(t *testing.T) {
	n := NewNormalizer()

	// Integers and three-decimal numbers are not price-shaped.
	in := "Order 38234\nWeight 3.141 kg\nQty 3"
	assert.Equal(t, in, n.Normalize(in))
}

func TestNormalizer_Normalize_ZMisread(t *testing.T) {
	n := NewNormalizer()

	// z/Z/% before a price are unconditional repairs.
	assert.Equal(t, "Total: $5.00", n.Normalize("Total: z5.00"))
	assert.Equal(t, "Total: $5.00", n.Normalize("Total: Z5.00"))
	assert.Equal(t, "Total: $5.00", n.Normalize("Total: %5.00"))
}

func TestNormalizer_Normalize_LooseUSD(t *testing.T) {
	n := NewNormalizer()

	assert.Equal(t, "USD 100.00", n.Normalize("usd. 100.00"))
	assert.Equal(t, "USD 100.00", n.Normalize("USD: 100.00"))
	assert.Equal(t, "USD 100.00", n.Normalize("Usd , 100.00"))
}

func TestNormalizer_Normalize_NegativeAmountRepair(t *testing.T) {
	n := NewNormalizer()

	// Refund lines with two misreads trip the systematic mode; the "-"
	// prefix does not block the repair.
	out := n.Normalize("Refund -34.00\nCredit -32.50")
	assert.Equal(t, "Refund -$4.00\nCredit -$2.50", out)
}

func TestNormalizer_Normalize_EmptyInput(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "", n.Normalize(""))
}
