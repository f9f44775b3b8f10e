package formatter

import (
	"bytes"
	"errors"
	"fmt"
	"go/scanner"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/gnolang/scrunch/pack"
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	skipStyle    = color.New(color.FgHiYellow, color.Bold)
	builtStyle   = color.New(color.FgGreen, color.Bold)
	projectStyle = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	noteStyle    = color.New(color.FgWhite)
)

// summaryFormatter picks the template for one kind of project outcome.
type summaryFormatter interface {
	SummaryTemplate() string
}

type builtFormatter struct{}

func (builtFormatter) SummaryTemplate() string {
	return `{{built "built"}} {{project .Name}} {{arrow}} {{.Output}}
{{- note (printf " (%d files, %s -> %s, %s)" .Files .Input .Written .Change)}}
{{- if .Removed}}
{{pipe}}{{note (printf "trimmed: %s" .Removed)}}
{{- end}}
`
}

type failedFormatter struct{}

func (failedFormatter) SummaryTemplate() string {
	return `{{failed "error"}} {{project .Name}}
{{pipe}}{{failed .Message}}
{{- if .Snippet}}
{{.Snippet}}
{{- end}}
`
}

type skippedFormatter struct{}

func (skippedFormatter) SummaryTemplate() string {
	return `{{skipped "skip "}} {{project .Name}}{{note (printf " (%s)" .Message)}}
`
}

func getSummaryFormatter(s pack.Summary) summaryFormatter {
	switch {
	case s.Failed():
		return failedFormatter{}
	case s.Skipped:
		return skippedFormatter{}
	default:
		return builtFormatter{}
	}
}

// SummaryData is what a summary template sees of one project.
type SummaryData struct {
	Name    string
	Output  string
	Files   int
	Input   string
	Written string
	Change  string
	Removed string
	Message string
	Snippet string
}

var summaryFuncs = template.FuncMap{
	"built":   func(s string) string { return builtStyle.Sprint(s) },
	"failed":  func(s string) string { return errorStyle.Sprint(s) },
	"skipped": func(s string) string { return skipStyle.Sprint(s) },
	"project": func(s string) string { return projectStyle.Sprint(s) },
	"note":    func(s string) string { return noteStyle.Sprint(s) },
	"arrow":   func() string { return lineStyle.Sprint("->") },
	"pipe":    func() string { return lineStyle.Sprint("  | ") },
}

// FormatSummaries renders the outcome of a batch, one block per project,
// followed by a totals line.
func FormatSummaries(summaries []pack.Summary) string {
	var b strings.Builder
	var built, failed, skipped int
	for _, s := range summaries {
		switch {
		case s.Failed():
			failed++
		case s.Skipped:
			skipped++
		default:
			built++
		}
		b.WriteString(FormatSummary(s))
	}

	totals := fmt.Sprintf("%d built, %d failed, %d skipped", built, failed, skipped)
	if failed > 0 {
		b.WriteString(errorStyle.Sprint(totals))
	} else {
		b.WriteString(builtStyle.Sprint(totals))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatSummary renders the outcome of a single project.
func FormatSummary(s pack.Summary) string {
	data := SummaryData{
		Name:    s.Name,
		Output:  s.Output,
		Files:   s.Files,
		Input:   humanize.Bytes(uint64(s.InputBytes)),
		Written: humanize.Bytes(uint64(s.OutputBytes)),
		Change:  Change(s.InputBytes, s.OutputBytes),
		Removed: strings.Join(s.Removed, ", "),
		Message: s.Reason,
	}
	if data.Name == "" {
		data.Name = filepath.Base(s.Project)
	}
	if rel, err := filepath.Rel(s.Project, s.Output); err == nil && s.Output != "" {
		data.Output = rel
	}
	if s.Err != nil {
		data.Message = s.Err.Error()
		data.Snippet = errorSnippet(s.Err)
	}

	tmpl := template.Must(template.New("summary").Funcs(summaryFuncs).Parse(getSummaryFormatter(s).SummaryTemplate()))
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting summary: %v\n", err)
	}
	return buf.String()
}

// Change describes the size difference between input and output as a
// signed percentage of the input.
func Change(input, output int64) string {
	if input == 0 {
		return "n/a"
	}
	pct := float64(output-input) * 100 / float64(input)
	return fmt.Sprintf("%+.1f%%", pct)
}

// errorSnippet shows the source line of the first syntax error in err,
// with a caret under the offending column.
func errorSnippet(err error) string {
	var list scanner.ErrorList
	if !errors.As(err, &list) || len(list) == 0 {
		return ""
	}
	pos := list[0].Pos
	if pos.Filename == "" || pos.Line <= 0 {
		return ""
	}
	content, rerr := os.ReadFile(pos.Filename)
	if rerr != nil {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	if pos.Line > len(lines) {
		return ""
	}

	line := strings.ReplaceAll(lines[pos.Line-1], "\t", "    ")
	col := calculateVisualColumn(lines[pos.Line-1], pos.Column)
	num := fmt.Sprintf("%d", pos.Line)
	padding := strings.Repeat(" ", len(num)+1)

	var b strings.Builder
	b.WriteString(lineStyle.Sprintf("%s--> ", padding[1:]) + fmt.Sprintf("%s:%d:%d\n", pos.Filename, pos.Line, pos.Column))
	b.WriteString(lineStyle.Sprintf("%s |", num) + " " + line + "\n")
	b.WriteString(lineStyle.Sprintf("%s|", padding) + " " + strings.Repeat(" ", col) + errorStyle.Sprint("^"))
	return b.String()
}

// calculateVisualColumn returns the zero based display column of the
// one based byte column, expanding tabs to four spaces.
func calculateVisualColumn(line string, column int) int {
	visual := 0
	for i, r := range line {
		if i >= column-1 {
			break
		}
		if r == '\t' {
			visual += 4
		} else {
			visual++
		}
	}
	return visual
}
