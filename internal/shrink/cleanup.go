package shrink

import (
	"go/ast"
	"go/token"
	"strings"

	tt "github.com/gnolang/scrunch/internal/types"
)

// Cleanup removes trailing whitespace and redundant blank lines. Lines
// inside preserve spans or multi-line raw strings are left as they are.
// Running it twice gives the same result as running it once.
type Cleanup struct{}

func (Cleanup) Name() string { return "cleanup" }

func (Cleanup) Apply(c tt.Composition) (tt.Composition, error) {
	p, err := parse(c.Source)
	if err != nil {
		return c, err
	}
	return c.WithSource(cleanup(p.src, frozen(p))), nil
}

// frozen returns the ranges whose line structure must not change.
func frozen(p *parsed) []span {
	spans := append([]span(nil), p.preserved...)
	ast.Inspect(p.file, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING || !strings.HasPrefix(lit.Value, "`") {
			return true
		}
		if strings.Contains(lit.Value, "\n") {
			spans = append(spans, span{start: p.offset(lit.Pos()), end: p.offset(lit.End())})
		}
		return true
	})
	return spans
}

func cleanup(src string, keep []span) string {
	var (
		b       strings.Builder
		blank   int
		started bool
	)
	b.Grow(len(src))

	for ls := 0; ls < len(src); {
		le := strings.IndexByte(src[ls:], '\n')
		next := len(src)
		if le < 0 {
			le = len(src)
		} else {
			le += ls
			next = le + 1
		}
		line := src[ls:le]

		if overlaps(keep, ls, le+1) {
			for ; blank > 0 && started; blank-- {
				b.WriteByte('\n')
			}
			blank = 0
			b.WriteString(line)
			b.WriteByte('\n')
			started = true
			ls = next
			continue
		}

		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			blank = 1
			ls = next
			continue
		}
		if blank > 0 && started {
			b.WriteByte('\n')
		}
		blank = 0
		b.WriteString(line)
		b.WriteByte('\n')
		started = true
		ls = next
	}
	return b.String()
}
