package part

import (
	"go/ast"
	"go/token"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/gnolang/scrunch/internal/region"
	tt "github.com/gnolang/scrunch/internal/types"
)

// orderDirective is the only shape accepted for an ordering directive.
var orderDirective = regexp.MustCompile(`^//scrunch:order\s+(\S+)\s*$`)

// Result is everything extracted from a single file.
type Result struct {
	Package string
	Imports []tt.Import
	Parts   []tt.ScriptPart
	// Weight is the ordering weight shared by every part of the file.
	Weight *int
}

// Extract splits a file into ordered script parts and import directives.
// It only reads the file. Parts are numbered from zero in encounter order;
// callers merging several files renumber them.
func Extract(file tt.SourceFile) Result {
	f := file.File
	tf := file.Fset.File(f.Package)
	src := string(file.Source)
	offset := func(p token.Pos) int { return tf.Offset(p) }

	res := Result{
		Package: f.Name.Name,
		Weight:  ParseOrder(f),
	}

	prevEnd := offset(f.Name.End())
	for i, decl := range f.Decls {
		declStart, declEnd := offset(decl.Pos()), offset(decl.End())
		start := nextLine(src, prevEnd, declStart)
		end := lineEnd(src, declEnd, f.Decls, i, offset)
		if i == len(f.Decls)-1 {
			end = len(src)
		} else {
			end = closeRegions(src, start, end, offset(f.Decls[i+1].Pos()))
		}
		prevEnd = end

		if gd, ok := decl.(*ast.GenDecl); ok && gd.Tok == token.IMPORT {
			res.Imports = append(res.Imports, importsOf(gd)...)
			continue
		}

		p := tt.ScriptPart{
			Origin: file.Path,
			Decl:   decl,
			Weight: res.Weight,
			Seq:    len(res.Parts),
			Kind:   Classify(decl),
		}

		switch {
		case p.Kind == tt.EntryBody && isMethod(decl):
			p.Method = true
			p.Text = trimPart(src[start:end])
		case p.Kind == tt.EntryBody:
			st := decl.(*ast.GenDecl).Specs[0].(*ast.TypeSpec).Type.(*ast.StructType)
			leading := src[start:declStart]
			body := src[offset(st.Fields.Opening)+1 : offset(st.Fields.Closing)]
			p.Text = structBody(leading, body, src[declEnd:end])
		default:
			p.Text = trimPart(src[start:end])
		}
		res.Parts = append(res.Parts, p)
	}
	return res
}

// ParseOrder returns the weight declared by an ordering directive in the
// comments preceding the package clause. A malformed directive is ignored.
func ParseOrder(f *ast.File) *int {
	for _, cg := range f.Comments {
		if cg.Pos() >= f.Package {
			break
		}
		for _, c := range cg.List {
			m := orderDirective.FindStringSubmatch(c.Text)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return nil
			}
			return &n
		}
	}
	return nil
}

// Classify decides whether a declaration belongs to the entry type.
func Classify(decl ast.Decl) tt.PartKind {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		if d.Recv != nil && ReceiverName(d) == tt.EntryTypeName {
			return tt.EntryBody
		}
	case *ast.GenDecl:
		if d.Tok != token.TYPE || len(d.Specs) != 1 || d.Lparen.IsValid() {
			return tt.Auxiliary
		}
		ts := d.Specs[0].(*ast.TypeSpec)
		if _, ok := ts.Type.(*ast.StructType); ok && ts.Name.Name == tt.EntryTypeName && !ts.Assign.IsValid() {
			return tt.EntryBody
		}
	}
	return tt.Auxiliary
}

// ReceiverName returns the base type name of a method receiver.
func ReceiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

func isMethod(decl ast.Decl) bool {
	fn, ok := decl.(*ast.FuncDecl)
	return ok && fn.Recv != nil
}

func importsOf(gd *ast.GenDecl) []tt.Import {
	out := make([]tt.Import, 0, len(gd.Specs))
	for _, s := range gd.Specs {
		spec := s.(*ast.ImportSpec)
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		out = append(out, NewImport(nameOf(spec), p))
	}
	return out
}

func nameOf(spec *ast.ImportSpec) string {
	if spec.Name == nil {
		return ""
	}
	return spec.Name.Name
}

// NewImport builds a canonical import. A name equal to the last path
// element is redundant and dropped so both spellings compare equal.
func NewImport(name, importPath string) tt.Import {
	if name == path.Base(importPath) {
		name = ""
	}
	text := strconv.Quote(importPath)
	if name != "" {
		text = name + " " + text
	}
	return tt.Import{Name: name, Path: importPath, Text: text}
}

// nextLine returns where a part starting after prevEnd begins: the line
// after prevEnd, unless the declaration shares that line.
func nextLine(src string, prevEnd, declStart int) int {
	nl := strings.IndexByte(src[prevEnd:], '\n')
	if nl < 0 || prevEnd+nl >= declStart {
		return prevEnd
	}
	return prevEnd + nl + 1
}

// lineEnd extends a declaration to the end of its last line so trailing
// comments stay with it, unless the next declaration starts on that line.
func lineEnd(src string, declEnd int, decls []ast.Decl, i int, offset func(token.Pos) int) int {
	nl := strings.IndexByte(src[declEnd:], '\n')
	if nl < 0 {
		return len(src)
	}
	end := declEnd + nl
	if i+1 < len(decls) && offset(decls[i+1].Pos()) < end {
		return declEnd
	}
	return end
}

func trimPart(text string) string {
	if strings.HasPrefix(strings.TrimLeft(text, " \t"), ";") {
		text = strings.TrimLeft(text, "; \t")
	}
	return strings.TrimRight(trimBlankLines(text), " \t\r\n")
}

// trimBlankLines drops whole blank lines at the start of text, keeping the
// indentation of the first non-blank line.
func trimBlankLines(text string) string {
	for {
		nl := strings.IndexByte(text, '\n')
		if nl < 0 || strings.TrimSpace(text[:nl]) != "" {
			return text
		}
		text = text[nl+1:]
	}
}

// structBody turns a partial entry struct into the text of its members.
// Comments above the declaration and after its closing brace move inside,
// onto the first and last member.
func structBody(leading, body, trailing string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(leading), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("\t" + line + "\n")
		}
	}
	body = strings.TrimRight(trimBlankLines(body), " \t\r\n")
	if strings.TrimSpace(body) != "" {
		b.WriteString(body + "\n")
	}
	for _, line := range strings.Split(strings.TrimSpace(trailing), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("\t" + line + "\n")
		}
	}
	return b.String()
}

// closeRegions extends a part ending at end over the #endregion lines that
// follow it, up to limit, when they close regions the part opened.
func closeRegions(src string, start, end, limit int) int {
	open := 0
	for _, line := range strings.Split(src[start:end], "\n") {
		text := lineComment(line)
		switch {
		case region.IsEndMarker(text):
			if open > 0 {
				open--
			}
		case region.IsMarker(text):
			open++
		}
	}

	pos := end
	for open > 0 && pos < limit {
		nl := strings.IndexByte(src[pos+1:limit], '\n')
		if src[pos] != '\n' || nl < 0 {
			break
		}
		line := src[pos+1 : pos+1+nl]
		switch {
		case strings.TrimSpace(line) == "":
		case region.IsEndMarker(strings.TrimSpace(line)):
			open--
			end = pos + 1 + nl
		default:
			return end
		}
		pos += 1 + nl
	}
	return end
}

// lineComment returns the // comment that makes up a whole line, if any.
func lineComment(line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "//") {
		return ""
	}
	return line
}
