package trim

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/scrunch/internal/region"
	"github.com/gnolang/scrunch/internal/resolve"
	"github.com/gnolang/scrunch/internal/textedit"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Report describes what a trim removed.
type Report struct {
	Removed []string
	Imports []string
}

// Trimmer removes type declarations that cannot be reached from the entry
// type. Members of a kept type are never removed individually.
type Trimmer struct {
	frontend   resolve.Frontend
	protection Protection
}

// New returns a Trimmer resolving compositions through fe.
func New(fe resolve.Frontend, p Protection) *Trimmer {
	return &Trimmer{frontend: fe, protection: p}
}

// Trim returns c without its unreachable, unprotected type declarations.
// It fails with ErrNoEntryType or ErrNoMainMethod when the unit has no
// valid entry point.
func (t *Trimmer) Trim(c tt.Composition) (tt.Composition, Report, error) {
	u, err := t.frontend.Load(c)
	if err != nil {
		return c, Report{}, err
	}
	g, err := Build(u, t.protection)
	if err != nil {
		return c, Report{}, err
	}

	reached := g.Reachable()
	dead := make(map[*ast.TypeSpec]bool)
	var report Report
	for _, d := range g.Decls[rootID+1:] {
		if reached[d.ID] || d.Protected {
			continue
		}
		dead[d.Spec] = true
		report.Removed = append(report.Removed, d.Qualified)
	}
	if len(dead) == 0 {
		return c, report, nil
	}
	sort.Strings(report.Removed)

	var edits []textedit.Edit
	for _, decl := range u.File.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			var gone []ast.Spec
			for _, s := range d.Specs {
				if dead[s.(*ast.TypeSpec)] {
					gone = append(gone, s)
				}
			}
			switch {
			case len(gone) == 0:
			case len(gone) == len(d.Specs):
				edits = append(edits, deletion(u, d.Doc, d.Pos(), d.End()))
			default:
				for _, s := range gone {
					ts := s.(*ast.TypeSpec)
					edits = append(edits, deletion(u, ts.Doc, ts.Pos(), ts.End()))
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				continue
			}
			for _, dd := range g.Decls[rootID+1:] {
				if dead[dd.Spec] && containsFunc(dd.Methods, d) {
					edits = append(edits, deletion(u, d.Doc, d.Pos(), d.End()))
				}
			}
		}
	}

	src := textedit.Apply(c.Source, edits)
	src, report.Imports, err = pruneImports(c.Source, src)
	if err != nil {
		return c, report, err
	}
	return c.WithSource(src), report, nil
}

func containsFunc(fns []*ast.FuncDecl, fn *ast.FuncDecl) bool {
	for _, f := range fns {
		if f == fn {
			return true
		}
	}
	return false
}

// deletion removes a declaration with its doc comment. Region markers in
// the doc comment are kept so regions stay balanced where possible.
func deletion(u *resolve.Unit, doc *ast.CommentGroup, pos, end token.Pos) textedit.Edit {
	start := pos
	if doc != nil && !hasMarker(doc) {
		start = doc.Pos()
	}
	s, e := textedit.ExpandLines(u.Src, u.Offset(start), u.Offset(end), region.IsMarker)
	return textedit.Delete(s, e)
}

func hasMarker(cg *ast.CommentGroup) bool {
	for _, c := range cg.List {
		if region.IsMarker(c.Text) {
			return true
		}
	}
	return false
}

// pruneImports drops imports that were used before the trim and are not
// used anymore. Imports that were already unused are left for the
// compiler to report.
func pruneImports(before, after string) (string, []string, error) {
	fset := token.NewFileSet()
	old, err := parser.ParseFile(fset, "", before, parser.ParseComments)
	if err != nil {
		return after, nil, fmt.Errorf("failed to parse untrimmed unit: %w", err)
	}
	nfset := token.NewFileSet()
	f, err := parser.ParseFile(nfset, "", after, parser.ParseComments)
	if err != nil {
		return after, nil, fmt.Errorf("failed to parse trimmed unit: %w", err)
	}
	tf := nfset.File(f.Package)

	var (
		edits   []textedit.Edit
		removed []string
	)
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		var gone []*ast.ImportSpec
		for _, s := range gd.Specs {
			spec := s.(*ast.ImportSpec)
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			if astutil.UsesImport(old, path) && !astutil.UsesImport(f, path) {
				gone = append(gone, spec)
				removed = append(removed, path)
			}
		}
		if len(gone) == 0 {
			continue
		}
		if len(gone) == len(gd.Specs) {
			s, e := textedit.ExpandLines(after, tf.Offset(gd.Pos()), tf.Offset(gd.End()), nil)
			edits = append(edits, textedit.Delete(s, e))
			continue
		}
		for _, spec := range gone {
			s, e := textedit.ExpandLines(after, tf.Offset(spec.Pos()), tf.Offset(spec.End()), nil)
			edits = append(edits, textedit.Delete(s, e))
		}
	}
	return textedit.Apply(after, edits), removed, nil
}
