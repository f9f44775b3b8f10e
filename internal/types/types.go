package types

import (
	"go/ast"
	"go/token"
)

// EntryTypeName is the name of the synthesized entry type every project must declare.
const EntryTypeName = "Program"

// EntryMainMethod is the method the host invokes on the entry type.
const EntryMainMethod = "Main"

// SourceFile is one loaded project file. It is never modified after loading.
type SourceFile struct {
	Path   string
	Source []byte
	File   *ast.File
	Fset   *token.FileSet
}

// PartKind tells the composer where a script part ends up.
type PartKind int

const (
	// EntryBody parts are merged into the synthesized entry type.
	EntryBody PartKind = iota
	// Auxiliary parts stay sibling top-level declarations.
	Auxiliary
)

func (k PartKind) String() string {
	switch k {
	case EntryBody:
		return "entry-body"
	case Auxiliary:
		return "auxiliary"
	default:
		return "unknown"
	}
}

// ScriptPart is a top-level declaration extracted from a single file.
type ScriptPart struct {
	Origin string
	Decl   ast.Decl
	// Text is the verbatim declaration source, leading comments included.
	// For the entry struct it holds only the field list body.
	Text string
	// Weight is nil when the file carries no valid ordering directive.
	Weight *int
	// Seq is the global encounter order, used to break ties.
	Seq  int
	Kind PartKind
	// Method is set for entry-body parts that are methods rather than struct bodies.
	Method bool
}

// Import is a single import directive. Two imports are the same when
// their Key is the same, whatever their formatting was.
type Import struct {
	Name string
	Path string
	Text string
}

// Key returns the formatting-insensitive identity of the import.
func (i Import) Key() string {
	return i.Name + " " + i.Path
}

// Composition is the value handed from one pipeline stage to the next.
// Stages never modify a Composition; they return a new one.
type Composition struct {
	Package  string
	Source   string
	Readme   string
	HasEntry bool
}

// WithSource returns a copy of c holding src.
func (c Composition) WithSource(src string) Composition {
	c.Source = src
	return c
}
