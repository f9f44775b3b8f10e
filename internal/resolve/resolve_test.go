package resolve

import (
	"go/ast"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnolang/scrunch/internal/types"
)

const unitSrc = `package main

type Program struct{ s shape }

func (p *Program) Main(string) { _ = p.s.area() }

type shape interface{ area() int }

type square struct{ side int }

func (q square) area() int  { return q.side * q.side }
func (q square) twice() int { return 2 * q.area() }

type failure struct{}

func (failure) Error() string { return "failure" }

var _ = undefinedThing
`

func load(t *testing.T) *Unit {
	t.Helper()
	u, err := New().Load(tt.Composition{Source: unitSrc})
	require.NoError(t, err)
	return u
}

func lookup(t *testing.T, u *Unit, name string) types.Object {
	t.Helper()
	obj := u.Pkg.Scope().Lookup(name)
	require.NotNil(t, obj, name)
	return obj
}

func method(t *testing.T, u *Unit, typ, name string) types.Object {
	t.Helper()
	obj, _, _ := types.LookupFieldOrMethod(lookup(t, u, typ).Type(), true, u.Pkg, name)
	require.NotNil(t, obj, typ+"."+name)
	return obj
}

func TestLoadCollectsErrorsAndUnresolved(t *testing.T) {
	t.Parallel()
	u := load(t)

	assert.NotEmpty(t, u.Errors)
	assert.Len(t, u.Unresolved("undefinedThing"), 1)
	assert.Empty(t, u.Unresolved("square"))
}

func TestReferences(t *testing.T) {
	t.Parallel()
	u := load(t)

	refs := u.References(lookup(t, u, "shape"))
	require.Len(t, refs, 1)

	decl, spec := u.Enclosing(refs[0].Pos())
	gd, ok := decl.(*ast.GenDecl)
	require.True(t, ok)
	assert.Equal(t, "Program", spec.(*ast.TypeSpec).Name.Name)
	assert.Len(t, gd.Specs, 1)

	areaRefs := u.References(method(t, u, "square", "area"))
	require.Len(t, areaRefs, 1)
	decl, spec = u.Enclosing(areaRefs[0].Pos())
	assert.Nil(t, spec)
	assert.Equal(t, "twice", decl.(*ast.FuncDecl).Name.Name)
}

func TestIsImplementation(t *testing.T) {
	t.Parallel()
	u := load(t)

	assert.True(t, u.IsImplementation(method(t, u, "square", "area")))
	assert.False(t, u.IsImplementation(method(t, u, "square", "twice")))
	assert.True(t, u.IsImplementation(method(t, u, "shape", "area")), "interface methods count")
	assert.True(t, u.IsImplementation(method(t, u, "failure", "Error")))
	assert.False(t, u.IsImplementation(lookup(t, u, "square")))
}

func TestImplementsExternal(t *testing.T) {
	t.Parallel()
	u := load(t)

	assert.True(t, u.ImplementsExternal(lookup(t, u, "failure")))
	assert.False(t, u.ImplementsExternal(lookup(t, u, "square")))
	assert.False(t, u.ImplementsExternal(lookup(t, u, "shape")))
}
