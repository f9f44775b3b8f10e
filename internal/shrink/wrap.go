package shrink

import (
	"go/token"
	"strings"

	"github.com/gnolang/scrunch/internal/textedit"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Rewrap breaks lines longer than Width. A break is only placed after a
// token that does not end a statement, so adding it changes nothing.
// Lines that offer no such position stay long.
type Rewrap struct {
	Width int
}

func (Rewrap) Name() string { return "rewrap" }

func (r Rewrap) Apply(c tt.Composition) (tt.Composition, error) {
	p, err := parse(c.Source)
	if err != nil {
		return c, err
	}
	items, err := lex(p.src)
	if err != nil {
		return c, err
	}
	width := r.Width
	if width <= 0 {
		width = DefaultWidth
	}
	return c.WithSource(rewrap(p.src, items, p.preserved, width)), nil
}

func rewrap(src string, items []item, keep []span, width int) string {
	var (
		edits     []textedit.Edit
		lineStart int
		prevEnd   int
		prev      *item
		// candidate is the last gap of the current line a break may replace
		candidate *span
	)
	for i := range items {
		it := &items[i]
		if it.auto {
			continue
		}
		if nl := strings.LastIndexByte(src[prevEnd:it.start], '\n'); nl >= 0 {
			lineStart = prevEnd + nl + 1
			candidate = nil
		}
		if prev != nil && breakable(src, *prev, *it, keep) {
			candidate = &span{start: prev.end, end: it.start}
		}
		if it.end-lineStart > width && candidate != nil {
			edits = append(edits, textedit.Edit{Start: candidate.start, End: candidate.end, Text: "\n"})
			lineStart = candidate.end
			candidate = nil
		}
		if nl := strings.LastIndexByte(it.text, '\n'); nl >= 0 {
			lineStart = it.start + nl + 1
			candidate = nil
		}
		prev, prevEnd = it, it.end
	}
	return textedit.Apply(src, edits)
}

// breakable reports whether a newline may replace the text between two
// adjacent tokens.
func breakable(src string, before, after item, keep []span) bool {
	if insertsSemicolon(before.tok) || before.tok == token.COMMENT || after.tok == token.COMMENT {
		return false
	}
	if strings.TrimSpace(src[before.end:after.start]) != "" {
		return false
	}
	return !overlaps(keep, before.start, after.end)
}
