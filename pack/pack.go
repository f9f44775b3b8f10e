package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/scrunch/internal"
	"github.com/gnolang/scrunch/internal/shrink"
)

// stepsPerProject is the number of steps a project reports on success.
const stepsPerProject = 3

// Builder builds one project. *internal.Engine implements it.
type Builder interface {
	Build(ctx context.Context, dir string, cfg internal.Config, progress internal.Progress) (internal.Result, error)
}

// Options override the configuration of every project of a batch.
type Options struct {
	// Level, when set, replaces the configured shrink level.
	Level *shrink.Level
	// Trim, when set, replaces the configured trim setting.
	Trim *bool
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	// Workers bounds concurrent builds. Zero means one per CPU.
	Workers int
}

// Summary is the outcome of one project.
type Summary struct {
	Project     string   `json:"project"`
	Name        string   `json:"name,omitempty"`
	Output      string   `json:"output,omitempty"`
	Files       int      `json:"files"`
	InputBytes  int64    `json:"input_bytes"`
	OutputBytes int64    `json:"output_bytes"`
	Removed     []string `json:"removed,omitempty"`
	Skipped     bool     `json:"skipped,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	Error       string   `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the project was attempted and did not build.
func (s Summary) Failed() bool {
	return s.Err != nil
}

// BuildProjects builds every project directory in paths concurrently and
// returns one summary per path, in order. A failing project does not stop
// the others; the returned error is only set when ctx ends the batch.
func BuildProjects(
	ctx context.Context,
	logger *zap.Logger,
	builder Builder,
	paths []string,
	opts Options,
) ([]Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && len(paths) > 0 {
		bar = newProgressBar(opts.Progress, len(paths)*stepsPerProject)
	}
	var barMu sync.Mutex
	advance := func(n int) {
		if bar == nil || n <= 0 {
			return
		}
		barMu.Lock()
		defer barMu.Unlock()
		_ = bar.Add(n)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	summaries := make([]Summary, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			steps := 0
			summaries[i] = BuildProject(gctx, logger, builder, path, opts, func(internal.Step) {
				steps++
				advance(1)
			})
			advance(stepsPerProject - steps)
			if errors.Is(summaries[i].Err, context.Canceled) || errors.Is(summaries[i].Err, context.DeadlineExceeded) {
				return summaries[i].Err
			}
			return nil
		})
	}

	err := g.Wait()
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(opts.Progress)
	}
	if err == nil {
		err = ctx.Err()
	}
	for i, path := range paths {
		if summaries[i].Project == "" {
			summaries[i] = Summary{Project: path, Err: err}
			if err != nil {
				summaries[i].Error = err.Error()
			}
		}
	}
	return summaries, err
}

// BuildProject loads the configuration of dir, builds it and writes the
// script. progress sees each step that completed.
func BuildProject(
	ctx context.Context,
	logger *zap.Logger,
	builder Builder,
	dir string,
	opts Options,
	progress internal.Progress,
) Summary {
	if logger == nil {
		logger = zap.NewNop()
	}
	if progress == nil {
		progress = func(internal.Step) {}
	}
	summary := Summary{Project: dir}

	cfg, err := LoadConfig(dir)
	switch {
	case err != nil:
		logger.Info("skipping project", zap.String("project", dir), zap.Error(err))
		summary.Skipped, summary.Reason = true, err.Error()
		return summary
	case cfg.Exclude:
		logger.Info("skipping excluded project", zap.String("project", dir))
		summary.Skipped, summary.Reason = true, "excluded"
		return summary
	}
	if opts.Level != nil {
		cfg.Level = *opts.Level
	}
	if opts.Trim != nil {
		cfg.Trim = *opts.Trim
	}
	summary.Name = cfg.Name
	summary.Output = cfg.OutputPath(dir)

	fail := func(err error) Summary {
		logger.Error("build failed", zap.String("project", dir), zap.Error(err))
		summary.Err, summary.Error = err, err.Error()
		return summary
	}

	ecfg, err := cfg.Engine(dir)
	if err != nil {
		return fail(err)
	}
	res, err := builder.Build(ctx, dir, ecfg, progress)
	summary.Files, summary.InputBytes = res.Files, res.InputBytes
	if err != nil {
		return fail(err)
	}
	summary.Removed = res.Removed

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := writeFile(summary.Output, res.Script); err != nil {
		return fail(err)
	}
	summary.OutputBytes = int64(len(res.Script))
	progress(internal.StepWrite)

	logger.Debug("project built",
		zap.String("project", dir),
		zap.String("output", summary.Output),
		zap.Int("files", summary.Files),
		zap.Int64("bytes", summary.OutputBytes),
	)
	return summary
}

// writeFile replaces path with content, leaving the previous file intact
// when writing fails.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func newProgressBar(w io.Writer, steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("building"),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
