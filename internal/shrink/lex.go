package shrink

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gnolang/scrunch/internal/region"
)

// item is one lexical token of a source text. Automatic semicolons are
// reported with an empty range at the newline that produced them.
type item struct {
	tok   token.Token
	text  string
	start int
	end   int
	auto  bool
}

// span is a byte range [start, end) of a source text.
type span struct {
	start int
	end   int
}

// lex scans src. Sources are expected to use "\n" line endings so token
// texts and byte ranges agree.
func lex(src string) ([]item, error) {
	fset := token.NewFileSet()
	tf := fset.AddFile("", fset.Base(), len(src))

	var (
		s    scanner.Scanner
		errs scanner.ErrorList
	)
	s.Init(tf, []byte(src), func(pos token.Position, msg string) {
		errs.Add(pos, msg)
	}, scanner.ScanComments)

	var items []item
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		off := tf.Offset(pos)
		if tok == token.SEMICOLON && lit == "\n" {
			items = append(items, item{tok: tok, text: ";", start: off, end: off, auto: true})
			continue
		}
		if lit == "" {
			lit = tok.String()
		}
		items = append(items, item{tok: tok, text: lit, start: off, end: off + len(lit)})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to scan source: %w", errs.Err())
	}
	return items, nil
}

// parsed is a source text with its syntax tree and the byte ranges no
// pass may touch.
type parsed struct {
	src       string
	fset      *token.FileSet
	file      *ast.File
	tf        *token.File
	preserved []span
}

func parse(src string) (*parsed, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse composition: %w", err)
	}
	p := &parsed{src: src, fset: fset, file: f, tf: fset.File(f.Package)}
	for _, s := range region.Scan(f, fset).Outermost(region.Preserve) {
		p.preserved = append(p.preserved, span{start: p.offset(s.Start), end: p.offset(s.End)})
	}
	return p, nil
}

func (p *parsed) offset(pos token.Pos) int {
	return p.tf.Offset(pos)
}

func (p *parsed) text(n ast.Node) string {
	return p.src[p.offset(n.Pos()):p.offset(n.End())]
}

// touchesPreserved reports whether [start, end) overlaps a preserve span.
func (p *parsed) touchesPreserved(start, end int) bool {
	return overlaps(p.preserved, start, end)
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if s.start < end && start < s.end {
			return true
		}
	}
	return false
}

// spanAt returns the span containing off.
func spanAt(spans []span, off int) (span, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > off })
	if i < len(spans) && spans[i].start <= off {
		return spans[i], true
	}
	return span{}, false
}

// unsafePairs are the operator characters that lex as a longer token when
// they touch.
var unsafePairs = map[string]bool{
	"++": true, "--": true, "&&": true, "&^": true, "||": true,
	"<-": true, "<<": true, ">>": true, "//": true, "/*": true,
	"==": true, "!=": true, "<=": true, ">=": true, ":=": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "..": true,
}

// collides reports whether the texts a and b, written without anything
// between them, would lex differently from a followed by b.
func collides(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if isWord(last) && isWord(first) {
		return true
	}
	if isNumber(a) && (first == '.' || isWord(first)) {
		return true
	}
	if last == '.' && unicode.IsDigit(first) {
		return true
	}
	return unsafePairs[string(last)+string(first)]
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isNumber(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if r == '.' && len(s) > 1 {
		r, _ = utf8.DecodeRuneInString(s[1:])
	}
	return unicode.IsDigit(r)
}

// insertsSemicolon reports whether a newline after tok ends the statement.
func insertsSemicolon(tok token.Token) bool {
	switch tok {
	case token.IDENT, token.INT, token.FLOAT, token.IMAG, token.CHAR, token.STRING,
		token.BREAK, token.CONTINUE, token.FALLTHROUGH, token.RETURN,
		token.INC, token.DEC, token.RPAREN, token.RBRACK, token.RBRACE:
		return true
	}
	return false
}

func isDirective(comment string) bool {
	return strings.HasPrefix(comment, "//go:")
}

func isBuildConstraint(comment string) bool {
	return strings.HasPrefix(comment, "//go:build") || strings.HasPrefix(comment, "// +build")
}
