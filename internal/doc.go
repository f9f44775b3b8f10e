// Package internal bundles a multi-file Go script project into one file.
//
// A project is a directory of Go files that together declare a Program
// type with a Main method. Building it goes through these stages:
//
// Scan: the scanner lists the project's .go files, leaving out debug files
// (*_test.go, *_debug.go), hidden directories and ignored patterns.
//
// Compose: each file is parsed once through an LRU Cache and split into
// script parts. Parts are ordered by their file's //scrunch:order weight,
// the Program struct bodies and methods are merged into a single
// declaration, imports are deduplicated and macros are expanded inside
// "// #region scrunch macros" blocks.
//
// Trim: when enabled, type declarations the entry point can never reach are
// removed, along with the imports only they used.
//
// Shrink: the shrink pipeline strips comments, simplifies expressions,
// renames local identifiers, compacts whitespace and rewraps long lines,
// depending on the configured level. Text inside
// "// #region scrunch preserve" blocks is never altered.
//
// Assemble: the project README, if any, is prepended as a comment block and
// line endings are normalized.
//
// Usage:
//
//	engine, err := internal.NewEngine(logger)
//	if err != nil {
//	    // handle error
//	}
//
//	res, err := engine.Build(ctx, "path/to/project", internal.Config{Trim: true}, nil)
//	if err != nil {
//	    // handle error
//	}
//	fmt.Print(res.Script)
//
// A Watcher rebuilds projects when their files change.
package internal
