package shrink

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/scrunch/internal/resolve"
	"github.com/gnolang/scrunch/internal/trim"
	tt "github.com/gnolang/scrunch/internal/types"
)

const preservedBlock = `// #region scrunch preserve
// keep   this    exactly
type keptVerbatim   struct {
	someLongFieldName    int // trailing note
}
// #endregion`

const pipelineSrc = `package main

import (
	"strings"
)

// Program is the entry type.
type Program struct {
	greeting string
}

` + preservedBlock + `

/* helper
   doc */
func shout(message string) string {
	return strings.ToUpper(message) + "!"
}

func (p *Program) Main(argument string) {
	values := []int{1, 2, 3}
	for index, _ := range values {
		_ = index
	}
	p.greeting = shout(argument)
	_ = keptVerbatim{}
}
`

func mustParse(t *testing.T, src string) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "", src, parser.ParseComments)
	require.NoError(t, err, src)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"", None, false},
		{"none", None, false},
		{"StripComments", StripComments, false},
		{" lite ", Lite, false},
		{"full", Full, false},
		{"extreme", None, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipelinePasses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level Level
		want  []string
	}{
		{None, []string{"cleanup"}},
		{StripComments, []string{"strip-comments", "cleanup"}},
		{Lite, []string{"simplify", "compact", "rewrap", "cleanup"}},
		{Full, []string{"strip-comments", "simplify", "minify", "compact", "rewrap", "cleanup"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.level.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(Options{Level: tt.level}).Passes())
		})
	}
}

func TestPreserveSurvivesEveryLevel(t *testing.T) {
	t.Parallel()
	fe := resolve.New()
	for _, level := range []Level{None, StripComments, Lite, Full} {
		level := level
		t.Run(level.String(), func(t *testing.T) {
			t.Parallel()
			p := New(Options{Level: level, Frontend: fe, Protection: trim.DefaultProtection})
			out, err := p.Run(tt.Composition{Package: "main", Source: pipelineSrc})
			require.NoError(t, err)

			assert.Contains(t, out.Source, preservedBlock)
			mustParse(t, out.Source)
			if level > None {
				assert.Less(t, len(out.Source), len(pipelineSrc))
			}
		})
	}
}

func TestFullLevel(t *testing.T) {
	t.Parallel()
	p := New(Options{Level: Full, Frontend: resolve.New(), Protection: trim.DefaultProtection})
	out, err := p.Run(tt.Composition{Package: "main", Source: pipelineSrc})
	require.NoError(t, err)

	assert.NotContains(t, out.Source, "helper")
	assert.NotContains(t, out.Source, "is the entry type")
	assert.NotContains(t, out.Source, "argument")
	assert.NotContains(t, out.Source, "greeting")
	assert.Contains(t, out.Source, "Program")
	assert.Contains(t, out.Source, "Main(")
	assert.Contains(t, out.Source, "strings.ToUpper")
	assert.NotContains(t, out.Source, ", _")
}

func TestCleanupIdempotent(t *testing.T) {
	t.Parallel()
	src := "\n\npackage main   \n\n\n\nvar a = 1\t\n\nvar raw = `line  \n\n\nend`\n\n\n"

	once, err := Cleanup{}.Apply(tt.Composition{Source: src})
	require.NoError(t, err)
	twice, err := Cleanup{}.Apply(once)
	require.NoError(t, err)

	assert.Equal(t, "package main\n\nvar a = 1\n\nvar raw = `line  \n\n\nend`\n", once.Source)
	assert.Equal(t, once.Source, twice.Source)
}

func TestStripCollisions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "operators would merge",
			src:  "package p\n\nvar x = 1 +/**/+2\n",
			want: "package p\n\nvar x = 1 + +2\n",
		},
		{
			name: "words would merge",
			src:  "package p\n\nfunc f() int { return/* x */7 }\n",
			want: "package p\n\nfunc f() int { return 7 }\n",
		},
		{
			name: "existing space is enough",
			src:  "package p\n\nvar y = 1 /* a */ + 2\n",
			want: "package p\n\nvar y = 1  + 2\n",
		},
		{
			name: "line comment keeps its newline",
			src:  "package p\n\nvar z = 1 // one\n\nvar w = 2\n",
			want: "package p\n\nvar z = 1 \n\nvar w = 2\n",
		},
		{
			name: "multi-line comment becomes a newline",
			src:  "package p\n\nvar a = 1/*\n*/var b = 2\n",
			want: "package p\n\nvar a = 1\nvar b = 2\n",
		},
		{
			name: "directives stay",
			src:  "package p\n\n//go:noinline\nfunc f() {}\n",
			want: "package p\n\n//go:noinline\nfunc f() {}\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, err := lex(tt.src)
			require.NoError(t, err)
			got := stripComments(tt.src, items, nil)
			assert.Equal(t, tt.want, got)
			mustParse(t, got)
		})
	}
}

func TestCollides(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want bool
	}{
		{"return", "x", true},
		{"x", "1", true},
		{"+", "+", true},
		{"-", "-1", true},
		{"<", "-", true},
		{"&", "^", true},
		{"/", "/", true},
		{"/", "*", true},
		{"=", "=", true},
		{"1", ".", true},
		{".", "5", true},
		{"x", "(", false},
		{")", "{", false},
		{"+", "-", false},
		{"", "x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collides(tt.a, tt.b), "%q %q", tt.a, tt.b)
	}
}

func TestSimplify(t *testing.T) {
	t.Parallel()
	src := `package p

import strings "strings"

type point struct{ x, y int }

var points = []point{point{1, 2}, point{3, 4}}

var refs = []*point{&point{5, 6}}

var byName = map[string]point{"a": point{7, 8}}

func f(s []int) {
	_ = s[1:len(s)]
	for i, _ := range s {
		_ = i
	}
	for _ = range s {
	}
	_ = strings.ToUpper("")
}
`
	want := `package p

import "strings"

type point struct{ x, y int }

var points = []point{{1, 2}, {3, 4}}

var refs = []*point{{5, 6}}

var byName = map[string]point{"a": {7, 8}}

func f(s []int) {
	_ = s[1:]
	for i := range s {
		_ = i
	}
	for range s {
	}
	_ = strings.ToUpper("")
}
`
	out, err := Simplify{}.Apply(tt.Composition{Source: src})
	require.NoError(t, err)
	assert.Equal(t, want, out.Source)
}

func TestCompact(t *testing.T) {
	t.Parallel()
	src := `package main

import (
	"strings"
)

type Program struct {
	name string
}

func (p *Program) Main(arg string) {
	if arg != "" {
		p.name = strings.ToUpper(arg)
	}
}
`
	out, err := Compact{}.Apply(tt.Composition{Source: src})
	require.NoError(t, err)
	assert.Equal(t,
		`package main;import("strings");type Program struct{name string};func(p*Program)Main(arg string){if arg!=""{p.name=strings.ToUpper(arg)}}`+"\n",
		out.Source)
}

func TestCompactKeepsLineComments(t *testing.T) {
	t.Parallel()
	src := "package main\n\nvar a = 1 // one\nvar b = 2\n"
	out, err := Compact{}.Apply(tt.Composition{Source: src})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Source, "package main;var a=1"), out.Source)
	assert.True(t, strings.HasSuffix(out.Source, "// one\nvar b=2\n"), out.Source)
	mustParse(t, out.Source)
}

func TestCompactKeepsBuildConstraint(t *testing.T) {
	t.Parallel()
	src := "//go:build linux\n\n// Package main is a script.\npackage main\n\n//go:noinline\nfunc f() {}\n"
	out, err := Compact{}.Apply(tt.Composition{Source: src})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Source, "//go:build linux\n\n"), out.Source)
	assert.NotContains(t, out.Source, "//go:noinline\n\n")
	mustParse(t, out.Source)
}

func TestRewrap(t *testing.T) {
	t.Parallel()
	compacted, err := Compact{}.Apply(tt.Composition{Source: pipelineSrc})
	require.NoError(t, err)

	const width = 40
	out, err := Rewrap{Width: width}.Apply(compacted)
	require.NoError(t, err)
	mustParse(t, out.Source)

	before, err := lex(compacted.Source)
	require.NoError(t, err)
	after, err := lex(out.Source)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after), "no statement boundary added")
	for i := range before {
		assert.Equal(t, before[i].text, after[i].text)
	}

	preserved := strings.Count(preservedBlock, "\n") + 1
	long := 0
	for _, line := range strings.Split(out.Source, "\n") {
		if len(line) > width {
			long++
		}
	}
	assert.LessOrEqual(t, long, preserved)
	assert.Contains(t, out.Source, preservedBlock)
}
