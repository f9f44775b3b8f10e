package textedit

import (
	"sort"
	"strings"
)

// Edit replaces src[Start:End] with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply applies edits to src. Edits are applied from the end of the text to
// the start so earlier offsets stay valid. When two edits overlap, the one
// starting first wins and the other is dropped.
func Apply(src string, edits []Edit) string {
	if len(edits) == 0 {
		return src
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	kept := sorted[:0]
	last := -1
	for _, e := range sorted {
		if e.Start < last || e.Start > e.End || e.End > len(src) {
			continue
		}
		kept = append(kept, e)
		if e.End > last {
			last = e.End
		}
	}

	var b strings.Builder
	b.Grow(len(src))
	prev := 0
	for _, e := range kept {
		b.WriteString(src[prev:e.Start])
		b.WriteString(e.Text)
		prev = e.End
	}
	b.WriteString(src[prev:])
	return b.String()
}

// Delete is shorthand for an edit removing src[start:end].
func Delete(start, end int) Edit {
	return Edit{Start: start, End: end}
}

// ExpandLines widens [start, end) to whole lines when the text around it on
// its first and last lines is only whitespace, or, after end, a line comment
// for which keepComment returns false. The trailing newline is included.
func ExpandLines(src string, start, end int, keepComment func(string) bool) (int, int) {
	lineStart := strings.LastIndexByte(src[:start], '\n') + 1
	if strings.TrimSpace(src[lineStart:start]) == "" {
		start = lineStart
	}

	rest := src[end:]
	nl := strings.IndexByte(rest, '\n')
	line := rest
	if nl >= 0 {
		line = rest[:nl]
	}
	trailing := strings.TrimSpace(line)
	if trailing != "" && (!strings.HasPrefix(trailing, "//") || keepComment != nil && keepComment(trailing)) {
		return start, end
	}
	if nl < 0 {
		return start, len(src)
	}
	return start, end + nl + 1
}
