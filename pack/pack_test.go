package pack

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/scrunch/internal"
	"github.com/gnolang/scrunch/internal/shrink"
)

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(ctx context.Context, dir string, cfg internal.Config, progress internal.Progress) (internal.Result, error) {
	args := m.Called(dir, cfg.Level)
	res := args.Get(0).(internal.Result)
	if args.Error(1) == nil {
		progress(internal.StepCompose)
		progress(internal.StepProcess)
	}
	return res, args.Error(1)
}

const programSource = `package main

type Program struct {
	counter counter
}

func (p *Program) Main(argument string) {
	p.counter.add(len(argument))
}
`

const counterSource = `package main

// counter sums what it is given.
type counter struct {
	total int
}

func (c *counter) add(n int) { c.total += n }

type leftover struct{}
`

func TestBuildProjects(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeFiles(t, root, map[string]string{
		"alpha/" + ConfigFile:    "trim: true\nlevel: full\n",
		"alpha/program.go":       programSource,
		"alpha/counter.go":       counterSource,
		"beta/" + ConfigFile:     "output: beta.go\nlevel: none\n",
		"beta/program.go":        programSource,
		"beta/counter.go":        counterSource,
		"broken/" + ConfigFile:   "level: lite\n",
		"broken/counter.go":      counterSource,
		"skipped/counter.go":     counterSource,
		"excluded/" + ConfigFile: "exclude: true\n",
	})
	paths := []string{
		filepath.Join(root, "alpha"),
		filepath.Join(root, "beta"),
		filepath.Join(root, "broken"),
		filepath.Join(root, "skipped"),
		filepath.Join(root, "excluded"),
	}

	engine, err := internal.NewEngine(nil)
	require.NoError(t, err)

	var progress bytes.Buffer
	summaries, err := BuildProjects(context.Background(), nil, engine, paths, Options{Progress: &progress})
	require.NoError(t, err)
	require.Len(t, summaries, len(paths))
	assert.NotEmpty(t, progress.String())

	alpha := summaries[0]
	require.NoError(t, alpha.Err)
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, filepath.Join(root, "alpha", "dist", "script.go"), alpha.Output)
	assert.Equal(t, 2, alpha.Files)
	assert.Equal(t, []string{"leftover"}, alpha.Removed)
	written, err := os.ReadFile(alpha.Output)
	require.NoError(t, err)
	assert.Equal(t, int64(len(written)), alpha.OutputBytes)
	assert.Less(t, alpha.OutputBytes, alpha.InputBytes)
	assert.NotContains(t, string(written), "leftover")

	beta := summaries[1]
	require.NoError(t, beta.Err)
	assert.Equal(t, filepath.Join(root, "beta", "beta.go"), beta.Output)
	written, err = os.ReadFile(beta.Output)
	require.NoError(t, err)
	assert.Contains(t, string(written), "// counter sums what it is given.")
	assert.Contains(t, string(written), "type leftover struct{}", "trim is off by default")

	broken := summaries[2]
	assert.True(t, broken.Failed())
	assert.True(t, errors.Is(broken.Err, internal.ErrNoEntryType))
	assert.NotEmpty(t, broken.Error)
	assert.NoFileExists(t, filepath.Join(root, "broken", DefaultOutput))

	assert.True(t, summaries[3].Skipped)
	assert.Contains(t, summaries[3].Reason, ConfigFile)
	assert.True(t, summaries[4].Skipped)
	assert.Equal(t, "excluded", summaries[4].Reason)
}

func TestBuildProjectsRebuildIgnoresOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		ConfigFile:   "output: script.go\n",
		"program.go": programSource,
		"counter.go": counterSource,
	})

	engine, err := internal.NewEngine(nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		summaries, err := BuildProjects(context.Background(), nil, engine, []string{dir}, Options{})
		require.NoError(t, err)
		require.NoError(t, summaries[0].Err)
		assert.Equal(t, 2, summaries[0].Files, "the written script is never an input")
	}
}

func TestBuildProjectsOverrides(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{ConfigFile: "level: lite\n"})

	builder := new(mockBuilder)
	builder.On("Build", dir, shrink.Full).Return(internal.Result{Script: "package main\n", Files: 1}, nil)

	full := shrink.Full
	var steps []internal.Step
	summary := BuildProject(context.Background(), nil, builder, dir, Options{Level: &full}, func(s internal.Step) {
		steps = append(steps, s)
	})
	require.NoError(t, summary.Err)
	builder.AssertExpectations(t)

	assert.Equal(t, []internal.Step{internal.StepCompose, internal.StepProcess, internal.StepWrite}, steps)
	content, err := os.ReadFile(filepath.Join(dir, DefaultOutput))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}

func TestBuildProjectFailureKeepsPreviousOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		ConfigFile:    "level: none\n",
		DefaultOutput: "previous\n",
	})

	builder := new(mockBuilder)
	builder.On("Build", dir, shrink.None).Return(internal.Result{}, errors.New("boom"))

	var steps []internal.Step
	summary := BuildProject(context.Background(), nil, builder, dir, Options{}, func(s internal.Step) {
		steps = append(steps, s)
	})
	assert.EqualError(t, summary.Err, "boom")
	assert.Empty(t, steps)

	content, err := os.ReadFile(filepath.Join(dir, DefaultOutput))
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(content))
}

func TestBuildProjectsCanceled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	var paths []string
	for _, name := range []string{"a", "b", "c"} {
		writeFiles(t, root, map[string]string{
			name + "/" + ConfigFile: "level: none\n",
			name + "/program.go":    programSource,
		})
		paths = append(paths, filepath.Join(root, name))
	}

	engine, err := internal.NewEngine(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summaries, err := BuildProjects(ctx, nil, engine, paths, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summaries, len(paths))
	for i, s := range summaries {
		assert.True(t, s.Failed(), paths[i])
		assert.NoFileExists(t, filepath.Join(paths[i], DefaultOutput))
	}
}

func TestWriteFileReplaces(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "script.go")

	require.NoError(t, writeFile(path, "one\n"))
	require.NoError(t, writeFile(path, "two\n"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two\n", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"script.go"}, names, strings.Join(names, ","))
}
