package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// TextOptions controls the text report.
type TextOptions struct {
	// ShowSource quotes the offending source line under each
	// diagnostic. Files are read relative to Root.
	ShowSource bool

	// Root is the analyzed directory. Defaults to the result's
	// metadata root.
	Root string

	// ShowTest appends the qualified test or fixture name.
	ShowTest bool
}

// WriteText writes an analysis result as human-readable styled text
// to the writer. Output uses lipgloss for color and formatting when
// the output is a TTY; degrades gracefully for pipes and CI.
func WriteText(w io.Writer, result *taxonomy.Result) error {
	return WriteTextOptions(w, result, TextOptions{})
}

// WriteTextOptions writes result with the given options.
func WriteTextOptions(w io.Writer, result *taxonomy.Result, opts TextOptions) error {
	s := DefaultStyles()
	if result == nil {
		result = &taxonomy.Result{}
	}
	if opts.Root == "" {
		opts.Root = result.Metadata.Root
	}
	src := sourceCache{root: opts.Root, files: map[string][]string{}}

	files := 0
	for i, group := range groupByFile(result.Diagnostics) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		files++
		fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", group[0].Location.File)))
		for _, d := range group {
			fmt.Fprintln(w, formatDiagnostic(d, s, opts.ShowTest))
			if opts.ShowSource {
				if line, ok := src.line(d.Location.File, d.Location.Line); ok {
					fmt.Fprintln(w, s.Source.Render("    "+line))
					fmt.Fprintln(w, "    "+s.Caret.Render(caret(line, d.Location.Column)))
				}
			}
		}
	}

	for _, warn := range result.Metadata.Warnings {
		fmt.Fprintln(w, s.Muted.Render("warning: "+warn))
	}

	fmt.Fprintln(w)
	if len(result.Diagnostics) > 0 {
		fmt.Fprintln(w, codeTable(result.Summary, s))
	}
	fmt.Fprintln(w, summaryLine(result, files, s))
	return nil
}

// groupByFile splits diagnostics, already sorted by file, into runs of
// the same file.
func groupByFile(diags []taxonomy.Diagnostic) [][]taxonomy.Diagnostic {
	var out [][]taxonomy.Diagnostic
	for i, d := range diags {
		if i == 0 || d.Location.File != diags[i-1].Location.File {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], d)
	}
	return out
}

// FormatDiagnostic renders one diagnostic as a single unstyled line:
// "file:line:col: severity: message [code]".
func FormatDiagnostic(d taxonomy.Diagnostic) string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Severity, d.Message, d.Code)
}

func formatDiagnostic(d taxonomy.Diagnostic, s Styles, showTest bool) string {
	line := fmt.Sprintf("  %s %s %s %s",
		s.Position.Render(fmt.Sprintf("%d:%d", d.Location.Line, d.Location.Column)),
		s.SeverityStyle(d.Severity).Render(string(d.Severity)+":"),
		d.Message,
		s.Code.Render("["+string(d.Code)+"]"))
	if showTest && d.Test != "" {
		line += " " + s.Test.Render("("+d.Test+")")
	}
	return line
}

// caret places a marker under byte column col (1-based) of line,
// keeping tabs so the marker lines up.
func caret(line string, col int) string {
	var b strings.Builder
	for i := 0; i < col-1 && i < len(line); i++ {
		if line[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('^')
	return b.String()
}

func codeTable(sum taxonomy.Summary, s Styles) *table.Table {
	rows := make([][]string, 0, len(sum.ByCode))
	for _, info := range taxonomy.Codes() {
		if n := sum.ByCode[info.Code]; n > 0 {
			rows = append(rows, []string{string(info.Code), string(info.Severity), fmt.Sprint(n)})
		}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return s.SeverityStyle(taxonomy.Severity(rows[row][1]))
			}
			return s.TableCell
		}).
		Headers("CODE", "SEVERITY", "COUNT").
		Rows(rows...)
}

func summaryLine(result *taxonomy.Result, files int, s Styles) string {
	m := result.Metadata
	if len(result.Diagnostics) == 0 {
		return s.Pass.Render(fmt.Sprintf("No problems found: %d test(s) in %d file(s) analyzed", m.TestsAnalyzed, m.FilesAnalyzed))
	}
	text := fmt.Sprintf("%d error(s), %d warning(s) in %d file(s); %d test(s) in %d file(s) analyzed",
		result.Summary.Errors, result.Summary.Warnings, files, m.TestsAnalyzed, m.FilesAnalyzed)
	if result.Summary.Errors > 0 {
		return s.Fail.Render(text)
	}
	return s.Header.Render(text)
}

// WriteCodes writes the table of diagnostic codes.
func WriteCodes(w io.Writer) error {
	s := DefaultStyles()
	codes := taxonomy.Codes()
	rows := make([][]string, 0, len(codes))
	for _, info := range codes {
		rows = append(rows, []string{string(info.Code), string(info.Category), info.Description})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			return s.TableCell
		}).
		Headers("CODE", "CATEGORY", "DESCRIPTION").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t)
	return err
}

// sourceCache reads source files lazily for quoting.
type sourceCache struct {
	root  string
	files map[string][]string
}

func (c sourceCache) line(file string, n int) (string, bool) {
	lines, ok := c.files[file]
	if !ok {
		data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(file)))
		if err == nil {
			sc := bufio.NewScanner(bytes.NewReader(data))
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
			}
		}
		c.files[file] = lines
	}
	if n < 1 || n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}
