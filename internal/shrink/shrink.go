package shrink

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/scrunch/internal/resolve"
	"github.com/gnolang/scrunch/internal/trim"
	tt "github.com/gnolang/scrunch/internal/types"
)

// Level selects which size reduction passes run.
type Level int

const (
	None Level = iota
	StripComments
	Lite
	Full
)

// DefaultWidth is the line width rewrap breaks at when none is configured.
const DefaultWidth = 200

var levelNames = map[Level]string{
	None:          "none",
	StripComments: "stripcomments",
	Lite:          "lite",
	Full:          "full",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel parses a level name. The empty string means None.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return None, nil
	}
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return None, fmt.Errorf("unknown shrink level %q", s)
}

// UnmarshalText lets a Level be read from configuration files.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Pass is one step of the shrink pipeline. A pass never modifies its input.
type Pass interface {
	Name() string
	Apply(c tt.Composition) (tt.Composition, error)
}

// Options configures a Pipeline.
type Options struct {
	Level Level
	// Width is the rewrap limit; zero means DefaultWidth.
	Width int
	// Frontend resolves the composition for minification. Nil means
	// a fresh resolve.Checker.
	Frontend   resolve.Frontend
	Protection trim.Protection
	Logger     *zap.Logger
}

// Pipeline runs the passes of one level in order.
type Pipeline struct {
	level  Level
	passes []Pass
	logger *zap.Logger
}

// New builds the pipeline for opts.Level.
func New(opts Options) *Pipeline {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Frontend == nil && opts.Level == Full {
		opts.Frontend = resolve.New()
	}

	var passes []Pass
	switch opts.Level {
	case StripComments:
		passes = append(passes, Strip{})
	case Lite:
		passes = append(passes, Simplify{}, Compact{}, Rewrap{Width: opts.Width})
	case Full:
		passes = append(passes,
			Strip{},
			Simplify{},
			&Minify{Frontend: opts.Frontend, Protection: opts.Protection, Logger: opts.Logger},
			Compact{},
			Rewrap{Width: opts.Width},
		)
	}
	passes = append(passes, Cleanup{})

	return &Pipeline{level: opts.Level, passes: passes, logger: opts.Logger}
}

// Passes returns the names of the passes in the order they run.
func (p *Pipeline) Passes() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name()
	}
	return names
}

// Run applies every pass to c.
func (p *Pipeline) Run(c tt.Composition) (tt.Composition, error) {
	for _, pass := range p.passes {
		next, err := pass.Apply(c)
		if err != nil {
			return c, fmt.Errorf("%s: %w", pass.Name(), err)
		}
		p.logger.Debug("shrink pass done",
			zap.String("pass", pass.Name()),
			zap.Int("before", len(c.Source)),
			zap.Int("after", len(next.Source)),
		)
		c = next
	}
	return c, nil
}
