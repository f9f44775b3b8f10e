package region

import (
	"go/ast"
	"go/token"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gnolang/scrunch/internal/textedit"
)

var macroPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*\$`)

// Built-in macro names.
const (
	MacroDate     = "$SCRUNCH_DATE$"
	MacroTime     = "$SCRUNCH_TIME$"
	MacroDateTime = "$SCRUNCH_DATETIME$"
	MacroProject  = "$SCRUNCH_PROJECT$"
)

// Macros maps a full macro token, dollars included, to its replacement.
type Macros map[string]string

// Builtin returns the macros every project gets, evaluated at now.
func Builtin(project string, now time.Time) Macros {
	return Macros{
		MacroDate:     now.Format("2006-01-02"),
		MacroTime:     now.Format("15:04"),
		MacroDateTime: now.Format("2006-01-02 15:04"),
		MacroProject:  project,
	}
}

// Merge returns a table holding m overridden by each of others in turn.
func (m Macros) Merge(others ...Macros) Macros {
	out := make(Macros, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[NormalizeName(k)] = v
		}
	}
	return out
}

// NormalizeName wraps a bare macro name in dollars.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "$") && strings.HasSuffix(name, "$") && len(name) > 1 {
		return name
	}
	return "$" + strings.Trim(name, "$") + "$"
}

// Substitute replaces every macro token in text. Tokens missing from the
// table are replaced by the empty string.
func (m Macros) Substitute(text string) string {
	return macroPattern.ReplaceAllStringFunc(text, func(tok string) string {
		return m[tok]
	})
}

// ExpandMacros substitutes macro tokens in the string literals and comments
// of f that lie in a macro-enabled region. Region markers are left alone.
// src must be the text f was parsed from.
func ExpandMacros(src string, f *ast.File, fset *token.FileSet, regions Map, macros Macros) string {
	if !hasTag(regions, MacroTag) {
		return src
	}

	tf := fset.File(f.Package)
	offset := func(p token.Pos) int { return tf.Offset(p) }

	var edits []textedit.Edit
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			if !regions.Has(c.Slash, MacroTag) || IsMarker(c.Text) {
				continue
			}
			if !macroPattern.MatchString(c.Text) {
				continue
			}
			edits = append(edits, textedit.Edit{
				Start: offset(c.Slash),
				End:   offset(c.End()),
				Text:  macros.Substitute(c.Text),
			})
		}
	}

	ast.Inspect(f, func(n ast.Node) bool {
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		if !regions.Has(lit.ValuePos, MacroTag) || !macroPattern.MatchString(lit.Value) {
			return true
		}
		edits = append(edits, textedit.Edit{
			Start: offset(lit.ValuePos),
			End:   offset(lit.End()),
			Text:  expandLiteral(lit.Value, macros),
		})
		return true
	})

	return textedit.Apply(src, edits)
}

func expandLiteral(value string, macros Macros) string {
	if strings.HasPrefix(value, "`") {
		return macroPattern.ReplaceAllStringFunc(value, func(tok string) string {
			return strings.ReplaceAll(macros[tok], "`", "")
		})
	}
	return macroPattern.ReplaceAllStringFunc(value, func(tok string) string {
		quoted := strconv.Quote(macros[tok])
		return quoted[1 : len(quoted)-1]
	})
}

func hasTag(m Map, tag Tag) bool {
	for _, s := range m.spans {
		if s.Tags&tag != 0 {
			return true
		}
	}
	return false
}
