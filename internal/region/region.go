package region

import (
	"go/ast"
	"go/token"
	"strings"
)

// Tag is a set of annotations attached to a region of source.
type Tag uint8

const (
	// Preserve marks text that must survive every shrink pass byte for byte.
	Preserve Tag = 1 << iota
	// MacroTag enables macro substitution in strings and comments.
	MacroTag
)

const (
	regionMarker    = "#region"
	endRegionMarker = "#endregion"
	toolName        = "scrunch"
)

func (t Tag) String() string {
	var parts []string
	if t&Preserve != 0 {
		parts = append(parts, "preserve")
	}
	if t&MacroTag != 0 {
		parts = append(parts, "macros")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Span is a contiguous annotated range. Start is the position of the
// opening marker and End the end of the closing marker, so a span covers
// its own markers.
type Span struct {
	Start token.Pos
	End   token.Pos
	Tags  Tag
	// Closed is false when the region runs to the end of the file.
	Closed bool
}

// Contains reports whether pos lies inside the span.
func (s Span) Contains(pos token.Pos) bool {
	return pos >= s.Start && pos < s.End
}

// Map is an immutable view of every region of one file. It is computed
// from the comments of a parsed file and never changes afterwards; a pass
// that rewrites the text scans the new tree again.
type Map struct {
	spans []Span
}

// Scan builds the region map of f. Regions nest: a nested region inherits
// the tags of its parent and may add its own. An #endregion without an open
// region is ignored. A region left open runs to the end of the file.
func Scan(f *ast.File, fset *token.FileSet) Map {
	type open struct {
		start token.Pos
		tags  Tag
	}

	var (
		stack []open
		spans []Span
	)
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			marker, tags, ok := ParseMarker(c.Text)
			if !ok {
				continue
			}
			switch marker {
			case regionMarker:
				var parent Tag
				if len(stack) > 0 {
					parent = stack[len(stack)-1].tags
				}
				stack = append(stack, open{start: c.Slash, tags: parent | tags})
			case endRegionMarker:
				if len(stack) == 0 {
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				spans = append(spans, Span{Start: top.start, End: c.End(), Tags: top.tags, Closed: true})
			}
		}
	}

	end := fileEnd(f, fset)
	for i := len(stack) - 1; i >= 0; i-- {
		spans = append(spans, Span{Start: stack[i].start, End: end, Tags: stack[i].tags})
	}

	sortSpans(spans)
	return Map{spans: spans}
}

// ParseMarker recognizes region marker comments. It returns the marker
// keyword and the tags the marker introduces.
func ParseMarker(text string) (marker string, tags Tag, ok bool) {
	body := commentBody(text)
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return "", 0, false
	}

	switch fields[0] {
	case endRegionMarker:
		return endRegionMarker, 0, true
	case regionMarker:
		if len(fields) > 1 && fields[1] == toolName {
			for _, f := range fields[2:] {
				switch strings.ToLower(f) {
				case "preserve":
					tags |= Preserve
				case "macros":
					tags |= MacroTag
				}
			}
		}
		return regionMarker, tags, true
	}
	return "", 0, false
}

// IsEndMarker reports whether a comment text closes a region.
func IsEndMarker(text string) bool {
	marker, _, ok := ParseMarker(text)
	return ok && marker == endRegionMarker
}

// IsMarker reports whether a comment text is a region marker.
func IsMarker(text string) bool {
	_, _, ok := ParseMarker(text)
	return ok
}

func commentBody(text string) string {
	switch {
	case strings.HasPrefix(text, "//"):
		return text[2:]
	case strings.HasPrefix(text, "/*"):
		return strings.TrimSuffix(text[2:], "*/")
	}
	return text
}

// Spans returns every region, ordered by start position.
func (m Map) Spans() []Span {
	out := make([]Span, len(m.spans))
	copy(out, m.spans)
	return out
}

// Tags returns the tags in effect at pos. Because nested regions already
// carry their parents' tags, the innermost region decides.
func (m Map) Tags(pos token.Pos) Tag {
	var (
		tags  Tag
		inner token.Pos = token.NoPos
	)
	for _, s := range m.spans {
		if s.Start > pos {
			break
		}
		if s.Contains(pos) && s.Start >= inner {
			inner = s.Start
			tags = s.Tags
		}
	}
	return tags
}

// Has reports whether pos carries tag.
func (m Map) Has(pos token.Pos, tag Tag) bool {
	return m.Tags(pos)&tag != 0
}

// Overlaps reports whether any region carrying tag intersects [start, end).
func (m Map) Overlaps(start, end token.Pos, tag Tag) bool {
	for _, s := range m.spans {
		if s.Tags&tag == 0 {
			continue
		}
		if s.Start < end && start < s.End {
			return true
		}
	}
	return false
}

// Outermost returns the maximal non-overlapping spans carrying tag. These
// are the ranges a pass must copy through untouched.
func (m Map) Outermost(tag Tag) []Span {
	var out []Span
	for _, s := range m.spans {
		if s.Tags&tag == 0 {
			continue
		}
		if n := len(out); n > 0 && s.Start < out[n-1].End {
			if s.End > out[n-1].End {
				out[n-1].End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func fileEnd(f *ast.File, fset *token.FileSet) token.Pos {
	if tf := fset.File(f.Package); tf != nil {
		return token.Pos(tf.Base() + tf.Size())
	}
	return f.End()
}

func sortSpans(spans []Span) {
	// insertion sort; files rarely carry more than a handful of regions
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Start < spans[j-1].Start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}
}
