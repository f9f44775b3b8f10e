package shrink

import (
	"go/token"
	"strings"

	tt "github.com/gnolang/scrunch/internal/types"
)

// Compact re-emits the token stream with the fewest separators that keep
// its meaning. Statement-ending newlines become semicolons, which are
// dropped before a closing parenthesis or brace. Preserve spans are
// copied through verbatim.
type Compact struct{}

func (Compact) Name() string { return "compact" }

func (Compact) Apply(c tt.Composition) (tt.Composition, error) {
	p, err := parse(c.Source)
	if err != nil {
		return c, err
	}
	items, err := lex(p.src)
	if err != nil {
		return c, err
	}
	return c.WithSource(compact(p.src, items, p.preserved)), nil
}

type emitter struct {
	b    strings.Builder
	last string
	// lastTok is the kind of the last token written, used to decide
	// whether a newline may be added without ending a statement.
	lastTok token.Token
	semis   int
	// broken is set once a newline follows the last token, which already
	// ends the statement.
	broken bool
	// header is true until the package clause is written.
	header bool
}

func (e *emitter) write(text string, tok token.Token) {
	if collides(e.last, text) {
		e.b.WriteByte(' ')
	}
	e.b.WriteString(text)
	e.last = text
	e.lastTok = tok
	if tok != token.COMMENT {
		e.broken = false
	}
	if strings.Contains(text, "\n") {
		e.broken = true
	}
}

// flush writes the pending semicolons unless next closes a list or
// the file.
func (e *emitter) flush(next token.Token) {
	if e.semis == 0 {
		return
	}
	if next != token.RPAREN && next != token.RBRACE && next != token.EOF {
		e.b.WriteString(strings.Repeat(";", e.semis))
		e.last = ";"
		e.lastTok = token.SEMICOLON
	}
	e.semis = 0
}

func (e *emitter) newline() {
	e.b.WriteByte('\n')
	e.last = "\n"
	e.lastTok = token.ILLEGAL
	e.broken = true
}

func (e *emitter) atLineStart() bool {
	return e.b.Len() == 0 || e.last == "\n"
}

func compact(src string, items []item, keep []span) string {
	e := &emitter{header: true}
	for i := 0; i < len(items); i++ {
		it := items[i]

		if s, ok := spanAt(keep, it.start); ok && !it.auto {
			e.flush(token.ILLEGAL)
			text := src[s.start:s.end]
			if !e.atLineStart() && !insertsSemicolon(e.lastTok) {
				e.newline()
			}
			e.b.WriteString(text)
			e.last = text[len(text)-1:]
			e.lastTok = token.ILLEGAL
			e.broken = strings.Contains(text, "\n")
			if lineComment(text) {
				e.newline()
			}
			for i+1 < len(items) && items[i+1].start < s.end {
				i++
			}
			continue
		}

		switch {
		case it.tok == token.SEMICOLON:
			if !it.auto || !e.broken {
				e.semis++
			}
		case it.tok == token.COMMENT:
			e.flush(token.COMMENT)
			if isDirective(it.text) && !e.atLineStart() && !insertsSemicolon(e.lastTok) {
				e.newline()
			}
			if strings.HasPrefix(it.text, "//") {
				e.write(it.text, token.COMMENT)
				e.newline()
				// A build constraint must be followed by a blank line.
				if e.header && isBuildConstraint(it.text) {
					e.newline()
				}
				continue
			}
			e.write(it.text, token.COMMENT)
		default:
			e.flush(it.tok)
			e.write(it.text, it.tok)
			if it.tok == token.PACKAGE {
				e.header = false
			}
		}
	}
	e.flush(token.EOF)
	out := e.b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// lineComment reports whether text ends in a // comment.
func lineComment(text string) bool {
	nl := strings.LastIndexByte(text, '\n')
	return strings.Contains(text[nl+1:], "//")
}
