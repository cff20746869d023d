package main

import (
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

func sampleResult() *taxonomy.Result {
	diags := []taxonomy.Diagnostic{
		{
			Code: taxonomy.ArgType, Severity: taxonomy.SeverityError,
			Message:  `Argument 1 to "test_f" has incompatible type "str"; expected "int | ParameterSet[int]"`,
			Location: taxonomy.Location{File: "tests/test_a.py", Line: 3, Column: 35},
			Test:     "tests.test_a.test_f",
		},
		{
			Code: taxonomy.MissingArgname, Severity: taxonomy.SeverityError,
			Message:  `Argname "bar" is not parametrized and no fixture provides it`,
			Location: taxonomy.Location{File: "tests/test_a.py", Line: 8, Column: 12},
			Test:     "tests.test_a.test_g",
		},
		{
			Code: taxonomy.SyntaxError, Severity: taxonomy.SeverityWarning,
			Message:  "Syntax error: analysis continues on the partial tree",
			Location: taxonomy.Location{File: "tests/test_b.py", Line: 1, Column: 5},
		},
	}
	return &taxonomy.Result{
		Diagnostics: diags,
		Summary:     taxonomy.Summarize(diags),
		Metadata:    taxonomy.Metadata{TestsAnalyzed: 2, FilesAnalyzed: 2},
	}
}

// TestRenderCheckContent_Empty verifies a clean run says so.
func TestRenderCheckContent_Empty(t *testing.T) {
	output, fileLines := renderCheckContent(&taxonomy.Result{})

	if !strings.Contains(output, "0 error(s), 0 warning(s) in 0 test(s)") {
		t.Errorf("expected zero counts in title, got:\n%s", output)
	}
	if !strings.Contains(output, "No problems found.") {
		t.Errorf("expected 'No problems found.', got:\n%s", output)
	}
	if len(fileLines) != 0 {
		t.Errorf("expected no file headers, got %v", fileLines)
	}
}

// TestRenderCheckContent_GroupsByFile verifies diagnostics appear
// under one header per file with code, message and test name.
func TestRenderCheckContent_GroupsByFile(t *testing.T) {
	output, fileLines := renderCheckContent(sampleResult())

	for _, want := range []string{
		"2 error(s), 1 warning(s) in 2 test(s)",
		"=== tests/test_a.py ===",
		"=== tests/test_b.py ===",
		"3:35", "[arg-type]", "[missing-argname]", "[syntax-error]",
		`Argname "bar" is not parametrized`,
		"in tests.test_a.test_g",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, output)
		}
	}
	if strings.Count(output, "=== tests/test_a.py ===") != 1 {
		t.Error("expected a single header for tests/test_a.py")
	}

	lines := strings.Split(output, "\n")
	if len(fileLines) != 2 {
		t.Fatalf("expected 2 file headers, got %v", fileLines)
	}
	for _, l := range fileLines {
		if !strings.Contains(lines[l], "===") {
			t.Errorf("line %d is not a file header: %q", l, lines[l])
		}
	}
}

// TestRenderCheckContent_Warnings verifies analysis warnings are shown.
func TestRenderCheckContent_Warnings(t *testing.T) {
	r := sampleResult()
	r.Metadata.Warnings = []string{"test_mod.test_h: analysis still deferred in the final pass"}
	output, _ := renderCheckContent(r)
	if !strings.Contains(output, "warning: test_mod.test_h") {
		t.Errorf("expected analysis warning, got:\n%s", output)
	}
}

func TestNextFileLine(t *testing.T) {
	fileLines := []int{2, 9, 20}
	tests := []struct {
		offset  int
		forward bool
		want    int
		ok      bool
	}{
		{0, true, 2, true},
		{2, true, 9, true},
		{20, true, 0, false},
		{20, false, 9, true},
		{9, false, 2, true},
		{2, false, 0, false},
	}
	for _, tt := range tests {
		got, ok := nextFileLine(fileLines, tt.offset, tt.forward)
		if got != tt.want || ok != tt.ok {
			t.Errorf("nextFileLine(%d, %v) = %d, %v; want %d, %v", tt.offset, tt.forward, got, ok, tt.want, tt.ok)
		}
	}
}

// TestCheckModel_Update exercises sizing, help toggling and quitting.
func TestCheckModel_Update(t *testing.T) {
	m := newCheckModel(sampleResult())
	if m.View() != "Initializing..." {
		t.Errorf("expected placeholder before sizing, got %q", m.View())
	}

	model, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	m = model.(checkModel)
	if !m.ready {
		t.Fatal("expected model to be ready after WindowSizeMsg")
	}
	if !strings.Contains(m.View(), "paramcheck:") {
		t.Errorf("expected title in view, got:\n%s", m.View())
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = model.(checkModel)
	if !m.help.ShowAll {
		t.Error("expected '?' to toggle full help")
	}

	model, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = model.(checkModel)
	if m.viewport.YOffset != m.fileLines[0] {
		t.Errorf("expected 'n' to jump to line %d, got offset %d", m.fileLines[0], m.viewport.YOffset)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !reflect.DeepEqual(cmd(), tea.Quit()) {
		t.Error("expected 'q' to quit")
	}
}
