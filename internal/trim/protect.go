package trim

import tt "github.com/gnolang/scrunch/internal/types"

// Protection lists the declarations that must survive regardless of
// whether anything references them.
type Protection struct {
	// Names are simple names, protected wherever they are declared.
	Names []string
	// Symbols are qualified names such as "Program.Main".
	Symbols []string
}

// DefaultProtection protects the entry surface the host calls into and the
// functions the Go runtime calls by name.
var DefaultProtection = Protection{
	Names: []string{"init", "main", "_"},
	Symbols: []string{
		tt.EntryTypeName,
		tt.EntryTypeName + "." + tt.EntryMainMethod,
		tt.EntryTypeName + ".Save",
		"New" + tt.EntryTypeName,
	},
}

// Protects reports whether a declaration is protected by name.
func (p Protection) Protects(name, qualified string) bool {
	for _, n := range p.Names {
		if n == name {
			return true
		}
	}
	for _, s := range p.Symbols {
		if s == qualified {
			return true
		}
	}
	return false
}
