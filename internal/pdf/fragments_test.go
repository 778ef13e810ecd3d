package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinFragments_SameBaselineJoinsWithSpace(t *testing.T) {
	frags := []TextFragment{
		{Text: "Total:", Baseline: 100.0},
		{Text: "$12.50", Baseline: 101.5}, // |101.5-100.0| = 1.5 <= 2.0 tolerance
	}

	assert.Equal(t, "Total: $12.50", JoinFragments(frags))
}

func TestJoinFragments_BaselineJumpBreaksLine(t *testing.T) {
	frags := []TextFragment{
		{Text: "ACME STORE", Baseline: 50.0},
		{Text: "123 Main St", Baseline: 64.0}, // |64-50| = 14 > 2.0
	}

	assert.Equal(t, "ACME STORE\n123 Main St", JoinFragments(frags))
}

func TestJoinFragments_ExplicitEndOfLine(t *testing.T) {
	// Same baseline, but the first fragment terminates its line.
	frags := []TextFragment{
		{Text: "Item", Baseline: 10.0, EndOfLine: true},
		{Text: "Price", Baseline: 10.0},
	}

	assert.Equal(t, "Item\nPrice", JoinFragments(frags))
}

func TestJoinFragments_SkipsBlankFragments(t *testing.T) {
	frags := []TextFragment{
		{Text: "Hello", Baseline: 10.0},
		{Text: "   ", Baseline: 10.0},
		{Text: "World", Baseline: 10.0},
	}

	assert.Equal(t, "Hello World", JoinFragments(frags))
}

func TestJoinFragments_BlankFragmentDoesNotDecideBreak(t *testing.T) {
	// The skipped blank sits on a wildly different baseline and even claims
	// end-of-line; the join must still compare against the last emitted
	// fragment, keeping Hello and World on one line.
	frags := []TextFragment{
		{Text: "Hello", Baseline: 10.0},
		{Text: "   ", Baseline: 95.0, EndOfLine: true},
		{Text: "World", Baseline: 10.5}, // |10.5-10.0| = 0.5 <= 2.0
	}

	assert.Equal(t, "Hello World", JoinFragments(frags))
}

func TestJoinFragments_Empty(t *testing.T) {
	assert.Equal(t, "", JoinFragments(nil))
	assert.Equal(t, "", JoinFragments([]TextFragment{{Text: "  "}}))
}

func TestFragmentsFromHTML_ParsesBaselines(t *testing.T) {
	page := `<div>
<p style="position:absolute;top:72.5pt;left:36pt">ACME STORE</p>
<p style="top:90pt"><b>Total:</b> <span>$82.06</span></p>
</div>`

	frags := fragmentsFromHTML(page)
	require.Len(t, frags, 2)

	assert.Equal(t, "ACME STORE", frags[0].Text)
	assert.InDelta(t, 72.5, frags[0].Baseline, 0.001)

	// Nested tags collapse to spaces, entities are unescaped.
	assert.Equal(t, "Total: $82.06", frags[1].Text)
	assert.InDelta(t, 90.0, frags[1].Baseline, 0.001)
}

func TestFragmentsFromHTML_UnescapesEntities(t *testing.T) {
	page := `<p style="top:10pt">Smith &amp; Sons &lt;Ltd&gt;</p>`

	frags := fragmentsFromHTML(page)
	require.Len(t, frags, 1)
	assert.Equal(t, "Smith & Sons <Ltd>", frags[0].Text)
}

func TestFragmentsFromHTML_SkipsEmptyBlocks(t *testing.T) {
	page := `<p style="top:10pt">   </p><p style="top:20pt">real text</p>`

	frags := fragmentsFromHTML(page)
	require.Len(t, frags, 1)
	assert.Equal(t, "real text", frags[0].Text)
}

func TestFragmentsFromHTML_NoBlocks(t *testing.T) {
	assert.Empty(t, fragmentsFromHTML("plain text without markup"))
}

func TestFragmentsFromHTML_ThenJoin(t *testing.T) {
	// Receipt-shaped page: label and value on one visual line, next line
	// far below.
	page := `<p style="top:100pt">Total:</p>` +
		`<p style="top:101pt">$82.06</p>` +
		`<p style="top:130pt">Thank you</p>`

	got := JoinFragments(fragmentsFromHTML(page))
	assert.Equal(t, "Total: $82.06\nThank you", got)
}
