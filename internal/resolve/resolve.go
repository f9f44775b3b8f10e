package resolve

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"sync"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/scrunch/internal/region"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Frontend turns a composition into a resolved unit.
type Frontend interface {
	Load(c tt.Composition) (*Unit, error)
}

// Checker is the default Frontend, backed by go/types. Imported packages
// are type checked from source once and shared between loads.
type Checker struct {
	fset     *token.FileSet
	importer types.ImporterFrom
}

// New returns a Checker using the standard source importer.
func New() *Checker {
	fset := token.NewFileSet()
	imp, _ := importer.ForCompiler(fset, "source", nil).(types.ImporterFrom)
	return NewWithImporter(fset, imp)
}

// NewWithImporter returns a Checker resolving imports through imp. fset
// must be the file set imp reports positions in.
func NewWithImporter(fset *token.FileSet, imp types.ImporterFrom) *Checker {
	return &Checker{fset: fset, importer: &lockedImporter{imp: imp}}
}

// Unit is a parsed and type checked composition. Resolution is tolerant:
// type errors are collected, not returned, and identifiers that could not
// be resolved are reported through Unresolved.
type Unit struct {
	Src     string
	Fset    *token.FileSet
	File    *ast.File
	Pkg     *types.Package
	Info    *types.Info
	Regions region.Map
	Errors  []error

	refs       map[types.Object][]*ast.Ident
	unresolved map[string][]*ast.Ident
	ifaces     []*types.Interface
	external   []*types.Interface
}

// Load parses and type checks a composition.
func (c *Checker) Load(comp tt.Composition) (*Unit, error) {
	f, err := parser.ParseFile(c.fset, "script.go", comp.Source, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse composition: %w", err)
	}

	u := &Unit{
		Src:  comp.Source,
		Fset: c.fset,
		File: f,
		Info: &types.Info{
			Types:      make(map[ast.Expr]types.TypeAndValue),
			Defs:       make(map[*ast.Ident]types.Object),
			Uses:       make(map[*ast.Ident]types.Object),
			Implicits:  make(map[ast.Node]types.Object),
			Selections: make(map[*ast.SelectorExpr]*types.Selection),
		},
		Regions: region.Scan(f, c.fset),
	}

	conf := types.Config{
		Importer: c.importer,
		Error:    func(err error) { u.Errors = append(u.Errors, err) },
	}
	// errors are already collected through conf.Error
	u.Pkg, _ = conf.Check(f.Name.Name, c.fset, []*ast.File{f}, u.Info)

	u.index()
	return u, nil
}

func (u *Unit) index() {
	u.refs = make(map[types.Object][]*ast.Ident)
	u.unresolved = make(map[string][]*ast.Ident)

	switchVars := make(map[*ast.Ident]bool)
	ast.Inspect(u.File, func(n ast.Node) bool {
		if ts, ok := n.(*ast.TypeSwitchStmt); ok {
			if as, ok := ts.Assign.(*ast.AssignStmt); ok && len(as.Lhs) == 1 {
				if id, ok := as.Lhs[0].(*ast.Ident); ok {
					switchVars[id] = true
				}
			}
		}
		return true
	})

	ast.Inspect(u.File, func(n ast.Node) bool {
		id, ok := n.(*ast.Ident)
		if !ok || id == u.File.Name || id.Name == "_" {
			return true
		}
		if obj := u.Info.Uses[id]; obj != nil {
			u.refs[obj] = append(u.refs[obj], id)
			return true
		}
		if obj, ok := u.Info.Defs[id]; ok && (obj != nil || switchVars[id]) {
			return true
		}
		u.unresolved[id.Name] = append(u.unresolved[id.Name], id)
		return true
	})

	u.ifaces = append(u.ifaces, types.Universe.Lookup("error").Type().Underlying().(*types.Interface))
	u.external = append(u.external, u.ifaces[0])
	if u.Pkg != nil {
		for _, imp := range u.Pkg.Imports() {
			scope := imp.Scope()
			for _, name := range scope.Names() {
				if it := interfaceOf(scope.Lookup(name)); it != nil {
					u.ifaces = append(u.ifaces, it)
					u.external = append(u.external, it)
				}
			}
		}
	}
	for _, tv := range u.Info.Types {
		if tv.Type == nil {
			continue
		}
		if it, ok := tv.Type.Underlying().(*types.Interface); ok && it.NumMethods() > 0 {
			u.ifaces = append(u.ifaces, it)
		}
	}
	for _, obj := range u.Info.Defs {
		if it := interfaceOf(obj); it != nil {
			u.ifaces = append(u.ifaces, it)
		}
	}
}

func interfaceOf(obj types.Object) *types.Interface {
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil
	}
	if named, ok := tn.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
		return nil
	}
	it, ok := tn.Type().Underlying().(*types.Interface)
	if !ok || it.NumMethods() == 0 {
		return nil
	}
	return it
}

// Offset converts a position of the unit into a byte offset of Src.
func (u *Unit) Offset(pos token.Pos) int {
	return u.Fset.File(u.File.Package).Offset(pos)
}

// References returns every identifier referring to obj, declaration excluded.
func (u *Unit) References(obj types.Object) []*ast.Ident {
	return u.refs[obj]
}

// Unresolved returns identifiers named name that resolve to nothing.
func (u *Unit) Unresolved(name string) []*ast.Ident {
	return u.unresolved[name]
}

// Local reports whether obj is declared in the unit itself.
func (u *Unit) Local(obj types.Object) bool {
	return obj != nil && u.Pkg != nil && obj.Pkg() == u.Pkg && obj.Pos().IsValid()
}

// Enclosing returns the top-level declaration containing pos and, for a
// grouped declaration, the spec containing it.
func (u *Unit) Enclosing(pos token.Pos) (ast.Decl, ast.Spec) {
	path, _ := astutil.PathEnclosingInterval(u.File, pos, pos)
	if len(path) < 2 {
		return nil, nil
	}
	decl, ok := path[len(path)-2].(ast.Decl)
	if !ok {
		return nil, nil
	}
	if len(path) >= 3 {
		if spec, ok := path[len(path)-3].(ast.Spec); ok {
			return decl, spec
		}
	}
	return decl, nil
}

// IsImplementation reports whether a method implements, or itself is, a
// method of an interface visible to the unit. Renaming such a method would
// change which interfaces its type satisfies.
func (u *Unit) IsImplementation(obj types.Object) bool {
	fn, ok := obj.(*types.Func)
	if !ok {
		return false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return false
	}
	recv := sig.Recv().Type()
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = ptr.Elem()
	}
	if _, ok := recv.Underlying().(*types.Interface); ok {
		return true
	}
	for _, it := range u.ifaces {
		if !hasMethod(it, fn.Name()) {
			continue
		}
		if types.Implements(recv, it) || types.Implements(types.NewPointer(recv), it) {
			return true
		}
	}
	return false
}

// ImplementsExternal reports whether a named type satisfies a non-empty
// interface declared outside the unit, such as error or fmt.Stringer.
func (u *Unit) ImplementsExternal(obj types.Object) bool {
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return false
	}
	t := tn.Type()
	if _, ok := t.Underlying().(*types.Interface); ok {
		return false
	}
	for _, it := range u.external {
		if types.Implements(t, it) || types.Implements(types.NewPointer(t), it) {
			return true
		}
	}
	return false
}

func hasMethod(it *types.Interface, name string) bool {
	for i := 0; i < it.NumMethods(); i++ {
		if it.Method(i).Name() == name {
			return true
		}
	}
	return false
}

type lockedImporter struct {
	mu  sync.Mutex
	imp types.ImporterFrom
}

func (l *lockedImporter) Import(path string) (*types.Package, error) {
	return l.ImportFrom(path, "", 0)
}

func (l *lockedImporter) ImportFrom(path, dir string, mode types.ImportMode) (*types.Package, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.imp == nil {
		return nil, fmt.Errorf("no importer available for %q", path)
	}
	return l.imp.ImportFrom(path, dir, mode)
}
