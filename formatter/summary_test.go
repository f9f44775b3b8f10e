package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/scrunch/pack"
)

func init() {
	color.NoColor = true
}

func TestFormatSummary(t *testing.T) {
	t.Parallel()
	project := filepath.Join("work", "alpha")

	tests := []struct {
		name     string
		summary  pack.Summary
		expected string
	}{
		{
			name: "built",
			summary: pack.Summary{
				Project:     project,
				Name:        "alpha",
				Output:      filepath.Join(project, "dist", "script.go"),
				Files:       2,
				InputBytes:  2000,
				OutputBytes: 1500,
			},
			expected: fmt.Sprintf("built alpha -> %s (2 files, 2.0 kB -> 1.5 kB, -25.0%%)\n", filepath.Join("dist", "script.go")),
		},
		{
			name: "built with trimmed types",
			summary: pack.Summary{
				Project:     project,
				Name:        "alpha",
				Output:      filepath.Join(project, "out.go"),
				Files:       1,
				InputBytes:  100,
				OutputBytes: 100,
				Removed:     []string{"leftover", "unused"},
			},
			expected: "built alpha -> out.go (1 files, 100 B -> 100 B, +0.0%)\n  | trimmed: leftover, unused\n",
		},
		{
			name: "failed",
			summary: pack.Summary{
				Project: project,
				Name:    "alpha",
				Err:     errors.New("no entry type"),
			},
			expected: "error alpha\n  | no entry type\n",
		},
		{
			name: "skipped uses directory name",
			summary: pack.Summary{
				Project: project,
				Skipped: true,
				Reason:  "excluded",
			},
			expected: "skip  alpha (excluded)\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, FormatSummary(tt.summary))
		})
	}
}

func TestFormatSummaries(t *testing.T) {
	t.Parallel()
	out := FormatSummaries([]pack.Summary{
		{Project: "a", Name: "a", Output: "a/s.go"},
		{Project: "b", Skipped: true, Reason: "excluded"},
		{Project: "c", Err: errors.New("boom")},
	})
	assert.Contains(t, out, "error c\n  | boom\n")
	assert.Contains(t, out, "skip  b (excluded)\n")
	assert.True(t, bytes.HasSuffix([]byte(out), []byte("1 built, 1 failed, 1 skipped\n")), out)
}

func TestFormatSummarySyntaxError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.go")
	src := "package main\n\nfunc broken( {\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, perr := parser.ParseFile(token.NewFileSet(), path, src, 0)
	require.Error(t, perr)

	out := FormatSummary(pack.Summary{
		Project: dir,
		Name:    "broken",
		Err:     fmt.Errorf("%s: %w", path, perr),
	})
	assert.Contains(t, out, "3 | func broken( {\n")
	assert.Contains(t, out, "--> "+path+":3:")
	assert.Contains(t, out, "^")
}

func TestChange(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "n/a", Change(0, 10))
	assert.Equal(t, "-50.0%", Change(200, 100))
	assert.Equal(t, "+10.0%", Change(100, 110))
}

func TestCalculateVisualColumn(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, calculateVisualColumn("abc", 1))
	assert.Equal(t, 2, calculateVisualColumn("abc", 3))
	assert.Equal(t, 5, calculateVisualColumn("\tx y", 3))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []pack.Summary{
		{Project: "a", Name: "a", Files: 2, InputBytes: 10, OutputBytes: 5},
		{Project: "b", Err: errors.New("boom"), Error: "boom"},
	}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "a", decoded[0]["project"])
	assert.EqualValues(t, 5, decoded[0]["output_bytes"])
	assert.Equal(t, "boom", decoded[1]["error"])
	assert.NotContains(t, decoded[0], "error")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}
