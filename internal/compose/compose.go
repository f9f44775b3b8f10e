package compose

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gnolang/scrunch/internal/part"
	"github.com/gnolang/scrunch/internal/region"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Options controls how a project is composed.
type Options struct {
	// Package overrides the package clause of the composed unit.
	Package string
	Macros  region.Macros
	// Less orders script parts. It must be a strict total order; ByWeight
	// is used when nil.
	Less func(a, b tt.ScriptPart) bool
}

// ByWeight orders parts by ascending weight, unweighted parts last, ties
// broken by encounter order.
func ByWeight(a, b tt.ScriptPart) bool {
	switch {
	case a.Weight == nil && b.Weight == nil:
		return a.Seq < b.Seq
	case a.Weight == nil:
		return false
	case b.Weight == nil:
		return true
	case *a.Weight != *b.Weight:
		return *a.Weight < *b.Weight
	}
	return a.Seq < b.Seq
}

// Compose merges the given files into a single unit: one import block, one
// entry type holding every entry-body member, then the auxiliary
// declarations. Macro regions are expanded on the assembled text. A missing
// entry type is reported through Composition.HasEntry, not as an error.
func Compose(files []tt.SourceFile, opts Options) (tt.Composition, error) {
	less := opts.Less
	if less == nil {
		less = ByWeight
	}

	var (
		pkg     = opts.Package
		imports = newImportSet()
		parts   []tt.ScriptPart
	)
	for _, file := range files {
		res := part.Extract(file)
		if pkg == "" {
			pkg = res.Package
		}
		imports.add(res.Imports...)
		for _, p := range res.Parts {
			p.Seq = len(parts)
			parts = append(parts, p)
		}
	}
	if pkg == "" {
		pkg = "main"
	}

	sort.SliceStable(parts, func(i, j int) bool { return less(parts[i], parts[j]) })

	var bodies, methods, aux []string
	for _, p := range parts {
		switch {
		case p.Kind == tt.Auxiliary:
			aux = append(aux, p.Text)
		case p.Method:
			methods = append(methods, p.Text)
		default:
			bodies = append(bodies, p.Text)
		}
	}

	src := assemble(pkg, imports.list(), bodies, methods, aux)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "composed.go", src, parser.ParseComments)
	if err != nil {
		return tt.Composition{}, fmt.Errorf("composed unit does not parse: %w", err)
	}
	src = region.ExpandMacros(src, f, fset, region.Scan(f, fset), opts.Macros)

	return tt.Composition{
		Package:  pkg,
		Source:   src,
		HasEntry: len(bodies)+len(methods) > 0,
	}, nil
}

func assemble(pkg string, imports []tt.Import, bodies, methods, aux []string) string {
	var b strings.Builder
	b.WriteString("package " + pkg + "\n")

	switch len(imports) {
	case 0:
	case 1:
		b.WriteString("\nimport " + imports[0].Text + "\n")
	default:
		b.WriteString("\nimport (\n")
		for _, imp := range imports {
			b.WriteString("\t" + imp.Text + "\n")
		}
		b.WriteString(")\n")
	}

	b.WriteString("\ntype " + tt.EntryTypeName + " struct {\n")
	for _, body := range bodies {
		b.WriteString(body)
	}
	b.WriteString("}\n")

	for _, m := range methods {
		b.WriteString("\n" + m + "\n")
	}
	for _, a := range aux {
		b.WriteString("\n" + a + "\n")
	}
	return b.String()
}

type importSet struct {
	seen  map[string]bool
	order []tt.Import
}

func newImportSet() *importSet {
	return &importSet{seen: make(map[string]bool)}
}

func (s *importSet) add(imports ...tt.Import) {
	for _, imp := range imports {
		if s.seen[imp.Key()] {
			continue
		}
		s.seen[imp.Key()] = true
		s.order = append(s.order, imp)
	}
}

func (s *importSet) list() []tt.Import {
	return s.order
}

var readmeNames = map[string]bool{
	"readme":     true,
	"readme.md":  true,
	"readme.txt": true,
}

// FindReadme returns the README of a project directory, newline-normalized
// and ending in a newline. It returns "" when there is none.
func FindReadme(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read project directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !readmeNames[strings.ToLower(e.Name())] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read readme: %w", err)
		}
		return NormalizeReadme(string(data)), nil
	}
	return "", nil
}

// NormalizeReadme converts line endings to \n and guarantees a trailing newline.
func NormalizeReadme(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}
