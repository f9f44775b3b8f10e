package internal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gnolang/scrunch/internal/compose"
	"github.com/gnolang/scrunch/internal/region"
	"github.com/gnolang/scrunch/internal/resolve"
	"github.com/gnolang/scrunch/internal/shrink"
	"github.com/gnolang/scrunch/internal/trim"
	tt "github.com/gnolang/scrunch/internal/types"
	"github.com/gnolang/scrunch/scanner"
)

// ErrNoEntryType is returned when no file of a project declares the entry type.
var ErrNoEntryType = trim.ErrNoEntryType

// Line ending styles of the final script.
const (
	LineEndingsLF   = "lf"
	LineEndingsCRLF = "crlf"
)

// Step is a stage of a project build, reported in order.
type Step int

const (
	StepCompose Step = iota + 1
	StepProcess
	StepWrite
)

func (s Step) String() string {
	switch s {
	case StepCompose:
		return "compose"
	case StepProcess:
		return "process"
	case StepWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Progress receives the build steps of one project as they complete.
type Progress func(Step)

// Config is the build configuration of one project.
type Config struct {
	// Name is the project name used by the $SCRUNCH_PROJECT$ macro.
	Name string
	// Package overrides the package clause of the script.
	Package     string
	Trim        bool
	Level       shrink.Level
	Width       int
	LineEndings string
	Macros      region.Macros
	// Ignore holds doublestar patterns of files left out of the build.
	Ignore []string
	// SkipDirs are directories never scanned, such as the output directory.
	SkipDirs []string
}

// Result is a built project.
type Result struct {
	Project string
	Script  string
	Readme  string
	Files   int
	// InputBytes is the size of every script file that went into the build.
	InputBytes int64
	// Removed lists the type declarations the trimmer dropped.
	Removed []string
}

// Engine builds projects. It is safe for concurrent use: builds share
// only the parse cache and the resolver, both synchronized.
type Engine struct {
	logger   *zap.Logger
	cache    *Cache
	frontend resolve.Frontend
	now      func() time.Time
}

// NewEngine returns an Engine logging to logger, which may be nil.
func NewEngine(logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := NewCache(DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		logger:   logger,
		cache:    cache,
		frontend: resolve.New(),
		now:      time.Now,
	}, nil
}

// Build runs the whole pipeline for the project in dir.
func (e *Engine) Build(ctx context.Context, dir string, cfg Config, progress Progress) (Result, error) {
	if progress == nil {
		progress = func(Step) {}
	}
	res := Result{Project: dir}

	sc := scanner.New(dir, ".go").Ignore(cfg.Ignore...)
	for _, skip := range cfg.SkipDirs {
		sc.SkipDir(skip)
	}
	infos, err := sc.Scan()
	if err != nil {
		return res, err
	}

	files := make([]tt.SourceFile, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		file, err := e.cache.Load(info.Path)
		if err != nil {
			return res, fmt.Errorf("%s: %w", info.Path, err)
		}
		files = append(files, file)
		res.InputBytes += int64(len(file.Source))
	}
	res.Files = len(files)

	if cfg.Name == "" {
		cfg.Name = filepath.Base(dir)
	}
	c, err := e.compose(files, cfg)
	if err != nil {
		return res, fmt.Errorf("%s: %w", dir, err)
	}
	progress(StepCompose)

	if c.Readme, err = compose.FindReadme(dir); err != nil {
		return res, err
	}

	c, removed, err := e.process(c, cfg)
	if err != nil {
		return res, fmt.Errorf("%s: %w", dir, err)
	}
	progress(StepProcess)

	res.Script = Assemble(c, cfg.LineEndings)
	res.Readme = c.Readme
	res.Removed = removed
	return res, nil
}

// Compose builds a script from already loaded files. The README is looked
// up next to the first file. It fails only when no file declares the
// entry type, or when a later stage cannot process the composed unit.
func (e *Engine) Compose(files []tt.SourceFile, cfg Config) (script, readme string, err error) {
	c, err := e.compose(files, cfg)
	if err != nil {
		return "", "", err
	}
	if len(files) > 0 {
		if c.Readme, err = compose.FindReadme(filepath.Dir(files[0].Path)); err != nil {
			return "", "", err
		}
	}
	c, _, err = e.process(c, cfg)
	if err != nil {
		return "", "", err
	}
	return Assemble(c, cfg.LineEndings), c.Readme, nil
}

func (e *Engine) compose(files []tt.SourceFile, cfg Config) (tt.Composition, error) {
	macros := region.Builtin(cfg.Name, e.now()).Merge(cfg.Macros)
	c, err := compose.Compose(files, compose.Options{Package: cfg.Package, Macros: macros})
	if err != nil {
		return c, err
	}
	if !c.HasEntry {
		return c, ErrNoEntryType
	}
	return c, nil
}

func (e *Engine) process(c tt.Composition, cfg Config) (tt.Composition, []string, error) {
	var removed []string
	if cfg.Trim {
		trimmed, report, err := trim.New(e.frontend, trim.DefaultProtection).Trim(c)
		if err != nil {
			return c, nil, fmt.Errorf("trim: %w", err)
		}
		if len(report.Removed) > 0 {
			e.logger.Debug("trimmed unreachable types",
				zap.Strings("types", report.Removed),
				zap.Strings("imports", report.Imports),
			)
		}
		c, removed = trimmed, report.Removed
	}

	pipeline := shrink.New(shrink.Options{
		Level:      cfg.Level,
		Width:      cfg.Width,
		Frontend:   e.frontend,
		Protection: trim.DefaultProtection,
		Logger:     e.logger,
	})
	shrunk, err := pipeline.Run(c)
	if err != nil {
		return c, nil, err
	}
	return shrunk, removed, nil
}

// Assemble returns the final text of a processed composition: the README
// as a comment block, a blank line and the script, with the requested
// line endings.
func Assemble(c tt.Composition, lineEndings string) string {
	var b strings.Builder
	if c.Readme != "" {
		for _, line := range strings.Split(strings.TrimSuffix(c.Readme, "\n"), "\n") {
			line = strings.TrimRight(line, " \t")
			if line == "" {
				b.WriteString("//\n")
				continue
			}
			b.WriteString("// " + line + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(c.Source)

	out := b.String()
	if strings.EqualFold(lineEndings, LineEndingsCRLF) {
		out = strings.ReplaceAll(out, "\n", "\r\n")
	}
	return out
}

// IsFatal reports whether err means the project has no valid entry point.
func IsFatal(err error) bool {
	return errors.Is(err, trim.ErrNoEntryType) || errors.Is(err, trim.ErrNoMainMethod)
}
