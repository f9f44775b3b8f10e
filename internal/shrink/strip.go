package shrink

import (
	"go/token"
	"strings"

	"github.com/gnolang/scrunch/internal/textedit"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Strip removes every comment outside preserve spans except compiler
// directives. Where the removal would let two tokens lex as one, a single
// space is left between them.
type Strip struct{}

func (Strip) Name() string { return "strip-comments" }

func (Strip) Apply(c tt.Composition) (tt.Composition, error) {
	p, err := parse(c.Source)
	if err != nil {
		return c, err
	}
	items, err := lex(p.src)
	if err != nil {
		return c, err
	}
	return c.WithSource(stripComments(p.src, items, p.preserved)), nil
}

func stripComments(src string, items []item, keep []span) string {
	var (
		edits []textedit.Edit
		prev  = -1
	)
	for i := 0; i < len(items); i++ {
		if items[i].tok != token.COMMENT {
			if !items[i].auto {
				prev = i
			}
			continue
		}

		// collect the run of comments up to the next real token
		j := i
		for j < len(items) && (items[j].tok == token.COMMENT || items[j].auto) {
			j++
		}

		gapStart := 0
		if prev >= 0 {
			gapStart = items[prev].end
		}
		gapEnd := len(src)
		if j < len(items) {
			gapEnd = items[j].start
		}

		gap, changed := stripGap(src, gapStart, gapEnd, items[i:j], keep)
		if changed {
			if gap == "" && prev >= 0 && j < len(items) && collides(items[prev].text, items[j].text) {
				gap = " "
			}
			edits = append(edits, textedit.Edit{Start: gapStart, End: gapEnd, Text: gap})
		}
		i = j - 1
	}
	return textedit.Apply(src, edits)
}

// stripGap rebuilds src[start:end] without its removable comments.
func stripGap(src string, start, end int, run []item, keep []span) (string, bool) {
	var (
		b       strings.Builder
		pos     = start
		changed bool
	)
	for _, it := range run {
		if it.auto {
			continue
		}
		b.WriteString(src[pos:it.start])
		pos = it.end
		if overlaps(keep, it.start, it.end) || isDirective(it.text) {
			b.WriteString(it.text)
			continue
		}
		changed = true
		if strings.Contains(it.text, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString(src[pos:end])
	return b.String(), changed
}
