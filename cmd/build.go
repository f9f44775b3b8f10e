package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/scrunch/formatter"
	"github.com/gnolang/scrunch/internal"
	"github.com/gnolang/scrunch/internal/shrink"
	"github.com/gnolang/scrunch/pack"
)

var (
	buildLevel    string
	buildTrim     bool
	buildWatch    bool
	buildJSON     bool
	buildJSONPath string
	buildQuiet    bool
)

var buildCmd = &cobra.Command{
	Use:   "build [projects...]",
	Short: "Build every project directory into a single script",
	Long: `Builds each project directory that holds a ` + pack.ConfigFile + ` file.
Without arguments the current directory is built.
Example) scrunch build --level full ./miner ./rover`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			args = []string{"."}
		}

		opts, err := buildOptions(cmd)
		if err != nil {
			logger.Error("Invalid flags", zap.Error(err))
			os.Exit(1)
		}

		engine, err := internal.NewEngine(logger)
		if err != nil {
			logger.Fatal("Failed to initialize build engine", zap.Error(err))
		}

		if buildWatch {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if err := runWatch(ctx, logger, engine, args, opts, os.Stdout); err != nil && ctx.Err() == nil {
				logger.Error("Watch stopped", zap.Error(err))
				os.Exit(1)
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		failed, err := runBuild(ctx, logger, engine, args, opts, buildJSON, buildJSONPath, os.Stdout)
		if err != nil {
			logger.Error("Error building projects", zap.Error(err))
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildLevel, "level", "", "Shrink level for every project: none, stripcomments, lite or full")
	buildCmd.Flags().BoolVar(&buildTrim, "trim", false, "Remove types the entry point never reaches")
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "Rebuild projects when their files change")
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "Print the build summary as JSON")
	buildCmd.Flags().StringVarP(&buildJSONPath, "output", "o", "", "Output path (when using JSON)")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "Hide the progress bar")
}

// buildOptions turns the flags that were set into per-batch overrides.
func buildOptions(cmd *cobra.Command) (pack.Options, error) {
	var opts pack.Options
	if cmd.Flags().Changed("level") {
		level, err := shrink.ParseLevel(buildLevel)
		if err != nil {
			return opts, err
		}
		opts.Level = &level
	}
	if cmd.Flags().Changed("trim") {
		trim := buildTrim
		opts.Trim = &trim
	}
	if !buildQuiet && !buildJSON && !buildWatch {
		opts.Progress = os.Stderr
	}
	return opts, nil
}

// runBuild builds every project once, reports the outcome and returns the
// number of projects that failed.
func runBuild(
	ctx context.Context,
	logger *zap.Logger,
	builder pack.Builder,
	paths []string,
	opts pack.Options,
	isJSON bool,
	jsonOutput string,
	out io.Writer,
) (int, error) {
	summaries, err := pack.BuildProjects(ctx, logger, builder, paths, opts)
	if err != nil {
		return 0, err
	}

	if err := printSummaries(summaries, isJSON, jsonOutput, out); err != nil {
		return 0, err
	}

	failed := 0
	for _, s := range summaries {
		if s.Failed() {
			failed++
		}
	}
	return failed, nil
}

func printSummaries(summaries []pack.Summary, isJSON bool, jsonOutput string, out io.Writer) error {
	if !isJSON {
		_, err := fmt.Fprint(out, formatter.FormatSummaries(summaries))
		return err
	}
	if jsonOutput == "" {
		return formatter.WriteJSON(out, summaries)
	}

	f, err := os.Create(jsonOutput)
	if err != nil {
		return fmt.Errorf("error creating JSON output file: %w", err)
	}
	defer f.Close()
	return formatter.WriteJSON(f, summaries)
}

// runWatch builds every project, then rebuilds a project each time one of
// its files changes until ctx is done.
func runWatch(
	ctx context.Context,
	logger *zap.Logger,
	builder pack.Builder,
	paths []string,
	opts pack.Options,
	out io.Writer,
) error {
	outputs := newOutputSet(paths)

	summaries, err := pack.BuildProjects(ctx, logger, builder, paths, opts)
	if err != nil {
		return err
	}
	fmt.Fprint(out, formatter.FormatSummaries(summaries))

	w, err := internal.NewWatcher(logger, paths, outputs.contains)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "watching %d project(s), press Ctrl+C to stop\n", len(paths))

	return w.Run(ctx, func(project string) {
		outputs.refresh(project)
		s := pack.BuildProject(ctx, logger, builder, project, opts, nil)
		fmt.Fprint(out, formatter.FormatSummary(s))
	})
}

// outputSet tracks the script path of every watched project so writing a
// script never triggers another build. It is only used from the watch
// loop goroutine.
type outputSet map[string]string

func newOutputSet(paths []string) outputSet {
	s := make(outputSet)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		s.refresh(abs)
	}
	return s
}

func (s outputSet) refresh(project string) {
	cfg, err := pack.LoadConfig(project)
	if err != nil {
		delete(s, project)
		return
	}
	if out, err := filepath.Abs(cfg.OutputPath(project)); err == nil {
		s[project] = out
	}
}

func (s outputSet) contains(path string) bool {
	for project, out := range s {
		if path == out {
			return true
		}
		if dir := filepath.Dir(out); dir != project && isUnder(path, dir) {
			return true
		}
	}
	return false
}

func isUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
