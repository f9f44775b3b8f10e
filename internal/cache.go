package internal

import (
	"crypto/md5"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	tt "github.com/gnolang/scrunch/internal/types"
)

// DefaultCacheSize is the number of parsed files kept by default.
const DefaultCacheSize = 1024

// Cache keeps parsed source files keyed by path and content hash, so
// rebuilding a project in watch mode only parses the files that changed.
// Cached files are never modified, so they can be shared between builds.
type Cache struct {
	entries *lru.Cache[string, tt.SourceFile]
}

// NewCache returns a cache holding at most size files.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, tt.SourceFile](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Load reads and parses path, reusing an earlier parse of the same content.
func (c *Cache) Load(path string) (tt.SourceFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return tt.SourceFile{}, fmt.Errorf("failed to read file: %w", err)
	}
	return c.Parse(path, content)
}

// Parse parses content as the file at path. Line endings are normalized to
// "\n" first.
func (c *Cache) Parse(path string, content []byte) (tt.SourceFile, error) {
	content = normalizeNewlines(content)
	key := cacheKey(path, content)
	if file, ok := c.entries.Get(key); ok {
		return file, nil
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return tt.SourceFile{}, fmt.Errorf("error parsing file: %w", err)
	}

	file := tt.SourceFile{Path: path, Source: content, File: f, Fset: fset}
	c.entries.Add(key, file)
	return file, nil
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached file.
func (c *Cache) Purge() {
	c.entries.Purge()
}

func cacheKey(path string, content []byte) string {
	return fmt.Sprintf("%s:%x", path, md5.Sum(content))
}

func normalizeNewlines(content []byte) []byte {
	if !strings.ContainsRune(string(content), '\r') {
		return content
	}
	s := strings.ReplaceAll(string(content), "\r\n", "\n")
	return []byte(strings.ReplaceAll(s, "\r", "\n"))
}
