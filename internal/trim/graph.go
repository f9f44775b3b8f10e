package trim

import (
	"errors"
	"go/ast"
	"go/token"
	"go/types"
	"sort"

	"github.com/gnolang/scrunch/internal/part"
	"github.com/gnolang/scrunch/internal/region"
	"github.com/gnolang/scrunch/internal/resolve"
	tt "github.com/gnolang/scrunch/internal/types"
)

var (
	// ErrNoEntryType is returned when the unit declares no entry type.
	ErrNoEntryType = errors.New("no entry type found")
	// ErrNoMainMethod is returned when the entry type lacks its Main method.
	ErrNoMainMethod = errors.New("entry type has no Main method")
)

// rootID is the pseudo declaration standing for everything that is not a
// type: free functions, variables and constants are never removed, so what
// they reference is live.
const rootID = 0

// Decl is one node of the declaration graph.
type Decl struct {
	ID        int
	Name      string
	Qualified string
	Gen       *ast.GenDecl
	Spec      *ast.TypeSpec
	Obj       types.Object
	Methods   []*ast.FuncDecl
	Protected bool
	Refs      []token.Pos
}

// Graph holds declarations in an arena indexed by ID, with adjacency lists
// running from a referencing declaration to the referenced one.
type Graph struct {
	Decls  []*Decl
	edges  [][]int
	byName map[string]int
	roots  []int
}

// Build creates the declaration graph of a resolved unit.
func Build(u *resolve.Unit, p Protection) (*Graph, error) {
	g := &Graph{byName: make(map[string]int)}
	g.add(&Decl{Name: "<package>", Qualified: "<package>", Protected: true})

	for _, d := range u.File.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			ts := s.(*ast.TypeSpec)
			if _, dup := g.byName[ts.Name.Name]; dup || ts.Name.Name == "_" {
				continue
			}
			g.add(&Decl{
				Name:      ts.Name.Name,
				Qualified: ts.Name.Name,
				Gen:       gd,
				Spec:      ts,
				Obj:       u.Info.Defs[ts.Name],
			})
		}
	}

	for _, d := range u.File.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if !ok || fn.Recv == nil {
			continue
		}
		if id, ok := g.byName[part.ReceiverName(fn)]; ok {
			g.Decls[id].Methods = append(g.Decls[id].Methods, fn)
		}
	}

	for _, d := range g.Decls[rootID+1:] {
		d.Protected = p.Protects(d.Name, d.Qualified) ||
			preserved(u, d) ||
			u.ImplementsExternal(d.Obj)
	}

	for _, d := range g.Decls[rootID+1:] {
		var refs []*ast.Ident
		if d.Obj != nil {
			refs = append(refs, u.References(d.Obj)...)
		}
		refs = append(refs, u.Unresolved(d.Name)...)
		for _, id := range refs {
			d.Refs = append(d.Refs, id.Pos())
			g.addEdge(g.enclosing(u, id.Pos()), d.ID)
		}
	}

	entry, ok := g.byName[tt.EntryTypeName]
	if !ok {
		return nil, ErrNoEntryType
	}
	if !hasMain(g.Decls[entry]) {
		return nil, ErrNoMainMethod
	}

	g.roots = []int{rootID, entry}
	for _, d := range g.Decls[rootID+1:] {
		if d.Protected && d.ID != entry {
			g.roots = append(g.roots, d.ID)
		}
	}
	return g, nil
}

func (g *Graph) add(d *Decl) {
	d.ID = len(g.Decls)
	g.Decls = append(g.Decls, d)
	g.edges = append(g.edges, nil)
	if d.ID != rootID {
		g.byName[d.Name] = d.ID
	}
}

func (g *Graph) addEdge(from, to int) {
	if from == to {
		return
	}
	for _, e := range g.edges[from] {
		if e == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// enclosing maps a position to the declaration that owns it. Methods
// belong to their receiver type; anything outside a type belongs to the root.
func (g *Graph) enclosing(u *resolve.Unit, pos token.Pos) int {
	decl, spec := u.Enclosing(pos)
	switch d := decl.(type) {
	case *ast.GenDecl:
		if ts, ok := spec.(*ast.TypeSpec); ok && d.Tok == token.TYPE {
			if id, ok := g.byName[ts.Name.Name]; ok {
				return id
			}
		}
	case *ast.FuncDecl:
		if d.Recv != nil {
			if id, ok := g.byName[part.ReceiverName(d)]; ok {
				return id
			}
		}
	}
	return rootID
}

// Reachable returns the IDs reachable from the roots, breadth first.
func (g *Graph) Reachable() map[int]bool {
	seen := make(map[int]bool, len(g.Decls))
	queue := append([]int(nil), g.roots...)
	for _, r := range g.roots {
		seen[r] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// Edges returns the graph keyed by qualified name, targets sorted.
func (g *Graph) Edges() map[string][]string {
	out := make(map[string][]string)
	for from, targets := range g.edges {
		if len(targets) == 0 {
			continue
		}
		names := make([]string, 0, len(targets))
		for _, to := range targets {
			names = append(names, g.Decls[to].Qualified)
		}
		sort.Strings(names)
		out[g.Decls[from].Qualified] = names
	}
	return out
}

// Lookup returns the declaration with the given simple name.
func (g *Graph) Lookup(name string) (*Decl, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Decls[id], true
}

func hasMain(d *Decl) bool {
	for _, m := range d.Methods {
		if m.Name.Name == tt.EntryMainMethod {
			return true
		}
	}
	return false
}

// preserved reports whether removing d would touch a preserve region.
func preserved(u *resolve.Unit, d *Decl) bool {
	start, end := d.Spec.Pos(), d.Spec.End()
	if len(d.Gen.Specs) == 1 {
		start, end = d.Gen.Pos(), d.Gen.End()
	}
	if d.Gen.Doc != nil && len(d.Gen.Specs) == 1 {
		start = d.Gen.Doc.Pos()
	}
	if u.Regions.Overlaps(start, end, region.Preserve) {
		return true
	}
	for _, m := range d.Methods {
		if u.Regions.Overlaps(m.Pos(), m.End(), region.Preserve) {
			return true
		}
	}
	return false
}
