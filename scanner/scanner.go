package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
)

type FileInfo struct {
	Path string
	Size int64
}

// Scanner enumerates the script files of one project directory.
type Scanner struct {
	rootDir    string
	extensions []string
	ignore     []string
	skipDirs   map[string]bool
}

// New returns a Scanner for the files below rootDir with one of the given
// extensions. With no extension every file matches.
func New(rootDir string, extensions ...string) *Scanner {
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
		skipDirs:   make(map[string]bool),
	}
}

// Ignore adds doublestar patterns, relative to the root directory, for
// files that never take part in a build.
func (s *Scanner) Ignore(patterns ...string) *Scanner {
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			s.ignore = append(s.ignore, filepath.ToSlash(p))
		}
	}
	return s
}

// SkipDir excludes a directory and everything below it.
func (s *Scanner) SkipDir(dir string) *Scanner {
	if abs, err := filepath.Abs(dir); err == nil {
		s.skipDirs[abs] = true
	}
	return s
}

// Scan returns the matching files sorted by path.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != s.rootDir && (ignoredDir(d.Name()) || s.skipped(path)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isTargetFile(path) {
			return nil
		}
		excluded, err := s.Excluded(path)
		if err != nil {
			return err
		}
		if excluded {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.rootDir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Excluded reports whether path is a debug file or matches an ignore
// pattern. Excluded files are never parsed.
func (s *Scanner) Excluded(path string) (bool, error) {
	if IsDebugFile(path) {
		return true, nil
	}
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.ignore {
		ok, err := doublestar.PathMatch(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// IsDebugFile reports whether path only serves local testing: Go test
// files and files ending in _debug.go.
func IsDebugFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, "_test.go") || strings.HasSuffix(base, "_debug.go")
}

// ignoredDir reports directories the go tool ignores too.
func ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata"
}

func (s *Scanner) skipped(dir string) bool {
	if len(s.skipDirs) == 0 {
		return false
	}
	abs, err := filepath.Abs(dir)
	return err == nil && s.skipDirs[abs]
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := filepath.Ext(path)
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}
