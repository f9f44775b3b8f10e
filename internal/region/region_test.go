package region

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*token.FileSet, Map, func(string) token.Pos) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)
	tf := fset.File(f.Package)
	posOf := func(needle string) token.Pos {
		idx := strings.Index(src, needle)
		require.GreaterOrEqual(t, idx, 0, "needle %q not found", needle)
		return tf.Pos(idx)
	}
	return fset, Scan(f, fset), posOf
}

func TestParseMarker(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text   string
		marker string
		tags   Tag
		ok     bool
	}{
		{"// #region scrunch preserve", regionMarker, Preserve, true},
		{"// #region scrunch macros", regionMarker, MacroTag, true},
		{"//#region scrunch preserve macros", regionMarker, Preserve | MacroTag, true},
		{"/* #region scrunch PRESERVE */", regionMarker, Preserve, true},
		{"// #region helpers", regionMarker, 0, true},
		{"// #endregion", endRegionMarker, 0, true},
		{"// regular comment", "", 0, false},
		{"// #regionx", "", 0, false},
	}

	for _, tt := range tests {
		marker, tags, ok := ParseMarker(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.marker, marker, tt.text)
		assert.Equal(t, tt.tags, tags, tt.text)
	}
}

func TestScanNestedRegions(t *testing.T) {
	t.Parallel()
	src := `package main

// #region scrunch macros
var a = "outer"

// #region scrunch preserve
var b = "inner"
// #endregion

var c = "after inner"
// #endregion

var d = "outside"
`
	_, m, posOf := parse(t, src)

	assert.Equal(t, MacroTag, m.Tags(posOf(`"outer"`)))
	assert.Equal(t, MacroTag|Preserve, m.Tags(posOf(`"inner"`)))
	assert.Equal(t, MacroTag, m.Tags(posOf(`"after inner"`)))
	assert.Equal(t, Tag(0), m.Tags(posOf(`"outside"`)))

	spans := m.Spans()
	require.Len(t, spans, 2)
	assert.True(t, spans[0].Closed)
	assert.True(t, spans[0].Start < spans[1].Start)
}

func TestScanUnbalanced(t *testing.T) {
	t.Parallel()
	src := `package main

// #endregion
var a = 1

// #region scrunch preserve
var b = 2
`
	_, m, posOf := parse(t, src)

	assert.Equal(t, Tag(0), m.Tags(posOf("a = 1")))
	assert.True(t, m.Has(posOf("b = 2"), Preserve))

	spans := m.Spans()
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Closed)
}

func TestOutermost(t *testing.T) {
	t.Parallel()
	src := `package main

// #region scrunch preserve
var a = 1
// #region scrunch macros
var b = 2
// #endregion
// #endregion

// #region scrunch preserve
var c = 3
// #endregion
`
	_, m, posOf := parse(t, src)

	spans := m.Outermost(Preserve)
	require.Len(t, spans, 2)
	assert.True(t, spans[0].Contains(posOf("b = 2")))
	assert.True(t, spans[1].Contains(posOf("c = 3")))
	assert.True(t, m.Overlaps(posOf("a = 1"), posOf("b = 2"), Preserve))
	assert.False(t, m.Overlaps(posOf("package"), posOf("// #region"), Preserve))
}

func TestExpandMacros(t *testing.T) {
	t.Parallel()
	src := `package main

// built $SCRUNCH_DATE$
var before = "$SCRUNCH_DATE$"

// #region scrunch macros
// built $SCRUNCH_DATE$ for $SCRUNCH_PROJECT$
var version = "$VERSION$"
var quoted = "$QUOTE$"
var missing = "[$NOT_DEFINED$]"
var raw = ` + "`$VERSION$`" + `
// #endregion
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)

	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	macros := Builtin("demo", now).Merge(Macros{"VERSION": "1.2", "$QUOTE$": `say "hi"`})

	out := ExpandMacros(src, f, fset, Scan(f, fset), macros)

	assert.Contains(t, out, "// built $SCRUNCH_DATE$\nvar before = \"$SCRUNCH_DATE$\"")
	assert.Contains(t, out, "// built 2024-03-09 for demo")
	assert.Contains(t, out, `var version = "1.2"`)
	assert.Contains(t, out, `var quoted = "say \"hi\""`)
	assert.Contains(t, out, "var raw = `1.2`")
	assert.Contains(t, out, "// #region scrunch macros")
}

// Unknown macro tokens expand to nothing rather than staying literal.
func TestExpandMacrosUnknownTokenIsEmpty(t *testing.T) {
	t.Parallel()
	src := `package main

// #region scrunch macros
var missing = "[$NOT_DEFINED$]"
// #endregion
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)

	out := ExpandMacros(src, f, fset, Scan(f, fset), Macros{})
	assert.Contains(t, out, `var missing = "[]"`)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "$A$", NormalizeName("A"))
	assert.Equal(t, "$A$", NormalizeName("$A$"))
	assert.Equal(t, "$A$", NormalizeName(" $A "))
}
