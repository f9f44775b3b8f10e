package pack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/scrunch/internal"
	"github.com/gnolang/scrunch/internal/region"
	"github.com/gnolang/scrunch/internal/shrink"
)

const (
	// ConfigFile is the per-project configuration file name.
	ConfigFile = "scrunch.yaml"
	// EnvFile holds extra macro values, one KEY=value per line.
	EnvFile = ".env"
	// DefaultOutput is where the script is written, relative to the project.
	DefaultOutput = "dist/script.go"
)

// ErrNoConfig is returned for directories without a configuration file.
var ErrNoConfig = errors.New("no " + ConfigFile + " found")

// Config is the content of a project's scrunch.yaml.
type Config struct {
	Name        string            `yaml:"name,omitempty"`
	Package     string            `yaml:"package,omitempty"`
	Output      string            `yaml:"output"`
	Trim        bool              `yaml:"trim"`
	Level       shrink.Level      `yaml:"level"`
	Width       int               `yaml:"width,omitempty"`
	LineEndings string            `yaml:"line_endings"`
	Macros      map[string]string `yaml:"macros,omitempty"`
	Ignore      []string          `yaml:"ignore,omitempty"`
	// Exclude keeps a configured project out of batch builds.
	Exclude bool `yaml:"exclude,omitempty"`
}

// DefaultConfig returns the configuration written by "scrunch init".
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		Output:      DefaultOutput,
		Trim:        true,
		Level:       shrink.Lite,
		Width:       shrink.DefaultWidth,
		LineEndings: internal.LineEndingsLF,
	}
}

// LoadConfig reads the configuration of the project in dir. It returns
// ErrNoConfig when the file does not exist.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	path := filepath.Join(dir, ConfigFile)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, ErrNoConfig
		}
		return cfg, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if cfg.Name == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			cfg.Name = filepath.Base(abs)
		}
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports settings the pipeline cannot honor.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LineEndings) {
	case "", internal.LineEndingsLF, internal.LineEndingsCRLF:
	default:
		errs = append(errs, fmt.Errorf("line_endings must be %q or %q, got %q",
			internal.LineEndingsLF, internal.LineEndingsCRLF, c.LineEndings))
	}
	if c.Width < 0 {
		errs = append(errs, fmt.Errorf("width must not be negative, got %d", c.Width))
	}
	if filepath.IsAbs(c.Output) {
		errs = append(errs, fmt.Errorf("output must be relative to the project, got %q", c.Output))
	}
	return errors.Join(errs...)
}

// WriteDefault writes a default configuration into dir. An existing file
// is left untouched unless force is set.
func WriteDefault(dir string, force bool) (string, error) {
	path := filepath.Join(dir, ConfigFile)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists", path)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return path, err
	}
	d, err := yaml.Marshal(DefaultConfig(filepath.Base(abs)))
	if err != nil {
		return path, err
	}
	return path, os.WriteFile(path, d, 0o644)
}

// EnvMacros reads the project's .env file, if any. A key K becomes the
// macro $ENV_K$.
func EnvMacros(dir string) (region.Macros, error) {
	env, err := godotenv.Read(filepath.Join(dir, EnvFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	macros := make(region.Macros, len(env))
	for k, v := range env {
		macros[region.NormalizeName("ENV_"+k)] = v
	}
	return macros, nil
}

// OutputPath returns the path of the script for the project in dir.
func (c Config) OutputPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(c.Output))
}

// Engine translates the configuration of the project in dir into the
// settings of one build. Macros from .env are overridden by those of the
// configuration file, and the output never feeds back into the build.
func (c Config) Engine(dir string) (internal.Config, error) {
	env, err := EnvMacros(dir)
	if err != nil {
		return internal.Config{}, fmt.Errorf("%s: %w", EnvFile, err)
	}

	out := c.OutputPath(dir)
	ignore := append([]string{filepath.ToSlash(c.Output)}, c.Ignore...)
	var skip []string
	if outDir := filepath.Dir(out); filepath.Clean(outDir) != filepath.Clean(dir) {
		skip = append(skip, outDir)
	}

	return internal.Config{
		Name:        c.Name,
		Package:     c.Package,
		Trim:        c.Trim,
		Level:       c.Level,
		Width:       c.Width,
		LineEndings: c.LineEndings,
		Macros:      env.Merge(c.Macros),
		Ignore:      ignore,
		SkipDirs:    skip,
	}, nil
}
