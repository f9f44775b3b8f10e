package shrink

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"sort"

	"go.uber.org/zap"

	"github.com/gnolang/scrunch/internal/region"
	"github.com/gnolang/scrunch/internal/resolve"
	"github.com/gnolang/scrunch/internal/textedit"
	"github.com/gnolang/scrunch/internal/trim"
	tt "github.com/gnolang/scrunch/internal/types"
)

const (
	lowerAlphabet = "abcdefghijklmnopqrstuvwxyz"
	upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	aliasAlphabet = lowerAlphabet + upperAlphabet
)

// Minify renames identifiers declared in the unit to the shortest free
// names. Renaming works on names rather than objects: every identifier
// spelled the same way gets the same alias, so scoping and shadowing stay
// exactly as they were.
type Minify struct {
	Frontend   resolve.Frontend
	Protection trim.Protection
	Logger     *zap.Logger
}

func (*Minify) Name() string { return "minify" }

func (m *Minify) Apply(c tt.Composition) (tt.Composition, error) {
	u, err := m.Frontend.Load(c)
	if err != nil {
		return c, err
	}
	table := BuildTable(u, m.Protection)
	if err := table.Validate(); err != nil {
		return c, err
	}
	src, skipped := table.Apply(u)
	if len(skipped) > 0 && m.Logger != nil {
		m.Logger.Debug("names left unrenamed", zap.Strings("names", skipped))
	}
	return c.WithSource(src), nil
}

// Table maps original names to their aliases. It is computed once over the
// whole unit before anything is renamed.
type Table struct {
	Entries map[string]string

	sites      map[string][]*ast.Ident
	reserved   map[string]bool
	protection trim.Protection
}

// BuildTable computes the rename table of u. A name is renamed only if
// every identifier spelled that way resolves to an object declared in the
// unit that may be renamed.
func BuildTable(u *resolve.Unit, p trim.Protection) *Table {
	t := &Table{
		Entries:    make(map[string]string),
		sites:      make(map[string][]*ast.Ident),
		reserved:   make(map[string]bool),
		protection: p,
	}
	blocked := make(map[string]bool)

	ast.Inspect(u.File, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Field:
			if n.Tag != nil {
				for _, name := range n.Names {
					blocked[name.Name] = true
				}
			}
		case *ast.Ident:
			if n == u.File.Name {
				return true
			}
			t.sites[n.Name] = append(t.sites[n.Name], n)
			if !renamable(u, n, p) {
				blocked[n.Name] = true
			}
		}
		return true
	})

	for _, kw := range keywords() {
		t.reserved[kw] = true
	}
	for _, name := range types.Universe.Names() {
		t.reserved[name] = true
	}
	for name := range t.sites {
		t.reserved[name] = true
	}
	for _, name := range p.Names {
		t.reserved[name] = true
	}

	// An alias keeps the export status of the name it replaces.
	var unexported, exported []string
	for name := range t.sites {
		switch {
		case blocked[name]:
		case ast.IsExported(name):
			exported = append(exported, name)
		default:
			unexported = append(unexported, name)
		}
	}
	t.assign(unexported, lowerAlphabet)
	t.assign(exported, upperAlphabet)
	return t
}

func (t *Table) assign(names []string, first string) {
	sort.Strings(names)
	gen := newAliases(first, aliasLength(len(names), len(first)))
	for _, name := range names {
		alias := gen.peek(t.reserved)
		if len(alias) < len(name) {
			t.Entries[name] = alias
			gen.next()
		}
	}
}

func renamable(u *resolve.Unit, id *ast.Ident, p trim.Protection) bool {
	if id.Name == "_" {
		return false
	}
	obj := u.Info.Uses[id]
	if obj == nil {
		obj = u.Info.Defs[id]
	}
	if obj == nil || !u.Local(obj) {
		return false
	}
	if u.Regions.Has(id.Pos(), region.Preserve) {
		return false
	}
	if p.Protects(obj.Name(), qualified(obj)) {
		return false
	}
	switch obj := obj.(type) {
	case *types.PkgName:
		return false
	case *types.Var:
		if obj.Embedded() || obj.IsField() && obj.Exported() {
			return false
		}
	case *types.Func:
		if u.IsImplementation(obj) {
			return false
		}
	}
	return true
}

func qualified(obj types.Object) string {
	fn, ok := obj.(*types.Func)
	if !ok {
		return obj.Name()
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return obj.Name()
	}
	recv := sig.Recv().Type()
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = ptr.Elem()
	}
	if named, ok := recv.(*types.Named); ok {
		return named.Obj().Name() + "." + obj.Name()
	}
	return obj.Name()
}

// Validate checks that applying the table cannot merge two names or touch
// a protected one.
func (t *Table) Validate() error {
	var errs []error
	seen := make(map[string]string, len(t.Entries))
	for _, name := range t.Names() {
		alias := t.Entries[name]
		switch {
		case alias == "" || len(alias) >= len(name):
			errs = append(errs, fmt.Errorf("alias %q for %q is not shorter", alias, name))
		case t.reserved[alias]:
			errs = append(errs, fmt.Errorf("alias %q for %q is already in use", alias, name))
		case ast.IsExported(alias) != ast.IsExported(name):
			errs = append(errs, fmt.Errorf("alias %q for %q changes whether it is exported", alias, name))
		case t.protection.Protects(name, name):
			errs = append(errs, fmt.Errorf("protected name %q is renamed", name))
		}
		if other, dup := seen[alias]; dup {
			errs = append(errs, fmt.Errorf("alias %q is shared by %q and %q", alias, other, name))
		}
		seen[alias] = name
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid rename table: %w", errors.Join(errs...))
	}
	return nil
}

// Names returns the renamed names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.Entries))
	for name := range t.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply rewrites every identifier site of the table's names in a single
// pass. A name with a site that does not resolve is left as it is and
// returned in skipped.
func (t *Table) Apply(u *resolve.Unit) (src string, skipped []string) {
	var edits []textedit.Edit
	for _, name := range t.Names() {
		if len(u.Unresolved(name)) > 0 {
			skipped = append(skipped, name)
			continue
		}
		for _, id := range t.sites[name] {
			start := u.Offset(id.Pos())
			edits = append(edits, textedit.Edit{Start: start, End: start + len(name), Text: t.Entries[name]})
		}
	}
	return textedit.Apply(u.Src, edits), skipped
}

// aliasLength is the shortest length L with enough aliases for n names
// when the first letter comes from an alphabet of firstLen letters.
func aliasLength(n, firstLen int) int {
	length, capacity := 1, firstLen
	for capacity < n {
		length++
		capacity *= len(aliasAlphabet)
	}
	return length
}

// aliases enumerates letter-only names of a fixed length in order, moving
// on to longer names when a length is exhausted. The first letter is
// always taken from first.
type aliases struct {
	first  string
	digits []int
}

func newAliases(first string, length int) *aliases {
	return &aliases{first: first, digits: make([]int, length)}
}

func (a *aliases) current() string {
	b := make([]byte, len(a.digits))
	for i, d := range a.digits {
		if i == 0 {
			b[i] = a.first[d]
		} else {
			b[i] = aliasAlphabet[d]
		}
	}
	return string(b)
}

// peek returns the next alias that is not reserved, skipping reserved ones.
func (a *aliases) peek(reserved map[string]bool) string {
	for reserved[a.current()] {
		a.next()
	}
	return a.current()
}

func (a *aliases) next() {
	for i := len(a.digits) - 1; i >= 0; i-- {
		a.digits[i]++
		limit := len(aliasAlphabet)
		if i == 0 {
			limit = len(a.first)
		}
		if a.digits[i] < limit {
			return
		}
		a.digits[i] = 0
	}
	a.digits = make([]int, len(a.digits)+1)
}

func keywords() []string {
	var out []string
	for tok := token.BREAK; tok <= token.VAR; tok++ {
		if tok.IsKeyword() {
			out = append(out, tok.String())
		}
	}
	return out
}
