package shrink

import (
	"go/ast"
	"go/token"
	"path"
	"strconv"
	"strings"

	"github.com/gnolang/scrunch/internal/textedit"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Simplify applies the rewrites of gofmt -s as text deletions:
//
//	[]T{T{}, T{}}          => []T{{}, {}}
//	s[a:len(s)]            => s[a:]
//	for x, _ = range v     => for x = range v
//	for _ = range v        => for range v
//	import fmt "fmt"       => import "fmt"
type Simplify struct{}

func (Simplify) Name() string { return "simplify" }

func (Simplify) Apply(c tt.Composition) (tt.Composition, error) {
	p, err := parse(c.Source)
	if err != nil {
		return c, err
	}
	return c.WithSource(textedit.Apply(p.src, simplifyEdits(p))), nil
}

func simplifyEdits(p *parsed) []textedit.Edit {
	var edits []textedit.Edit
	del := func(from, to token.Pos) {
		start, end := p.offset(from), p.offset(to)
		if start >= end || p.touchesPreserved(start, end) {
			return
		}
		edits = append(edits, textedit.Delete(start, end))
	}

	for _, imp := range p.file.Imports {
		if imp.Name == nil || imp.Name.Name == "_" || imp.Name.Name == "." {
			continue
		}
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err == nil && path.Base(importPath) == imp.Name.Name {
			del(imp.Name.Pos(), imp.Path.Pos())
		}
	}

	ast.Inspect(p.file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.CompositeLit:
			if elem := elementType(n.Type); elem != nil {
				for _, elt := range n.Elts {
					simplifyElement(p, elt, elem, del)
				}
			}
			if key := mapKeyType(n.Type); key != nil {
				for _, elt := range n.Elts {
					if kv, ok := elt.(*ast.KeyValueExpr); ok {
						simplifyLit(p, kv.Key, key, del)
					}
				}
			}
		case *ast.SliceExpr:
			simplifySlice(n, del)
		case *ast.RangeStmt:
			simplifyRange(n, del)
		}
		return true
	})
	return edits
}

func elementType(typ ast.Expr) ast.Expr {
	switch t := typ.(type) {
	case *ast.ArrayType:
		return t.Elt
	case *ast.MapType:
		return t.Value
	}
	return nil
}

func mapKeyType(typ ast.Expr) ast.Expr {
	if t, ok := typ.(*ast.MapType); ok {
		return t.Key
	}
	return nil
}

func simplifyElement(p *parsed, elt, typ ast.Expr, del func(from, to token.Pos)) {
	if kv, ok := elt.(*ast.KeyValueExpr); ok {
		elt = kv.Value
	}
	simplifyLit(p, elt, typ, del)
}

// simplifyLit drops the type of lit when it repeats typ, or the &T of
// &T{...} when typ is *T.
func simplifyLit(p *parsed, x, typ ast.Expr, del func(from, to token.Pos)) {
	switch x := x.(type) {
	case *ast.CompositeLit:
		if x.Type != nil && sameExpr(p, x.Type, typ) {
			del(x.Type.Pos(), x.Lbrace)
		}
	case *ast.UnaryExpr:
		star, ok := typ.(*ast.StarExpr)
		if !ok || x.Op != token.AND {
			return
		}
		if lit, ok := x.X.(*ast.CompositeLit); ok && lit.Type != nil && sameExpr(p, lit.Type, star.X) {
			del(x.OpPos, lit.Lbrace)
		}
	}
}

func sameExpr(p *parsed, a, b ast.Expr) bool {
	return strings.Join(strings.Fields(p.text(a)), "") == strings.Join(strings.Fields(p.text(b)), "")
}

func simplifySlice(s *ast.SliceExpr, del func(from, to token.Pos)) {
	if s.Slice3 || s.High == nil {
		return
	}
	x, ok := s.X.(*ast.Ident)
	if !ok {
		return
	}
	call, ok := s.High.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return
	}
	fn, ok := call.Fun.(*ast.Ident)
	if !ok || fn.Name != "len" || fn.Obj != nil {
		return
	}
	if arg, ok := call.Args[0].(*ast.Ident); ok && arg.Name == x.Name && arg.Obj == x.Obj {
		del(s.High.Pos(), s.High.End())
	}
}

func simplifyRange(r *ast.RangeStmt, del func(from, to token.Pos)) {
	if r.Key == nil || r.Tok == token.ILLEGAL {
		return
	}
	if isBlank(r.Key) && (r.Value == nil || isBlank(r.Value)) {
		del(r.Key.Pos(), r.Range)
		return
	}
	if r.Value != nil && isBlank(r.Value) {
		del(r.Key.End(), r.Value.End())
	}
}

func isBlank(x ast.Expr) bool {
	id, ok := x.(*ast.Ident)
	return ok && id.Name == "_"
}
