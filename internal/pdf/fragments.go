package pdf

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// TextFragment is a positioned run of page text. Baseline is the vertical
// position in layout points; EndOfLine marks fragments the layout engine
// explicitly terminates.
type TextFragment struct {
	Text      string
	Baseline  float64
	EndOfLine bool
}

// JoinFragments assembles fragments into lines. A line break is inserted
// when a fragment signals end-of-line or when the next fragment's baseline
// differs by more than the tolerance (a wrapped line); otherwise fragments
// are joined with a single space.
func JoinFragments(frags []TextFragment) string {
	var b strings.Builder
	var prev *TextFragment

	for i := range frags {
		frag := frags[i]
		text := strings.TrimSpace(frag.Text)
		if text == "" {
			continue
		}

		if prev != nil {
			if prev.EndOfLine || math.Abs(frag.Baseline-prev.Baseline) > baselineTolerance {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(text)
		prev = &frags[i]
	}

	return b.String()
}

var (
	reBlock = regexp.MustCompile(`(?s)<p[^>]*style="([^"]*)"[^>]*>(.*?)</p>`)
	reTop   = regexp.MustCompile(`top:([0-9.]+)pt`)
	reTag   = regexp.MustCompile(`<[^>]+>`)
)

// fragmentsFromHTML parses the structured-text HTML emitted by the layout
// engine into positioned fragments. Each paragraph block carries its
// vertical offset in its inline style.
func fragmentsFromHTML(page string) []TextFragment {
	blocks := reBlock.FindAllStringSubmatch(page, -1)
	frags := make([]TextFragment, 0, len(blocks))

	for _, block := range blocks {
		style, inner := block[1], block[2]

		baseline := 0.0
		if m := reTop.FindStringSubmatch(style); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				baseline = v
			}
		}

		text := html.UnescapeString(reTag.ReplaceAllString(inner, " "))
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}

		frags = append(frags, TextFragment{
			Text:     text,
			Baseline: baseline,
		})
	}

	return frags
}
