package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

func diagnostic(code taxonomy.Code, file string, line, col int, msg, test string) taxonomy.Diagnostic {
	loc := taxonomy.Location{File: file, Line: line, Column: col}
	return taxonomy.Diagnostic{
		ID:       taxonomy.GenerateID(test, code, loc.String(), msg),
		Code:     code,
		Category: taxonomy.CategoryOf(code),
		Severity: taxonomy.SeverityOf(code),
		Message:  msg,
		Location: loc,
		Test:     test,
	}
}

func sampleResult() *taxonomy.Result {
	diags := []taxonomy.Diagnostic{
		diagnostic(taxonomy.ArgType, "tests/test_app.py", 3, 35,
			`Argument 1 to "test_f" has incompatible type "str"; expected "int | ParameterSet[int]"`, "tests.test_app.test_f"),
		diagnostic(taxonomy.MissingArgname, "tests/test_app.py", 8, 12,
			`Argname "bar" is not parametrized and no fixture provides it`, "tests.test_app.test_g"),
		diagnostic(taxonomy.SyntaxError, "tests/test_broken.py", 1, 5,
			"Syntax error: analysis continues on the partial tree", ""),
	}
	return &taxonomy.Result{
		Diagnostics: diags,
		Summary:     taxonomy.Summarize(diags),
		Metadata: taxonomy.Metadata{
			RunID:         "3f1c0e1e-5b8f-4a55-9d64-0d9f0f3e4a11",
			Version:       "test",
			Root:          "/project",
			FilesAnalyzed: 4,
			TestsAnalyzed: 2,
			Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Duration:      120 * time.Millisecond,
		},
	}
}

func compileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	sch, err := jsonschema.UnmarshalJSON(strings.NewReader(Schema))
	if err != nil {
		t.Fatalf("failed to parse schema JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", sch); err != nil {
		t.Fatalf("failed to add schema resource: %v", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		t.Fatalf("failed to compile schema: %v", err)
	}
	return compiled
}

func TestWriteJSON_ValidJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput:\n%s", err, buf.String())
	}
}

func TestWriteJSON_HasVersionAndDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	var report JSONReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Version != FormatVersion {
		t.Errorf("expected version %q, got %q", FormatVersion, report.Version)
	}
	if len(report.Diagnostics) != 3 {
		t.Errorf("expected 3 diagnostics, got %d", len(report.Diagnostics))
	}
	if report.Summary.Errors != 2 || report.Summary.Warnings != 1 {
		t.Errorf("expected 2 errors and 1 warning, got %+v", report.Summary)
	}
}

func TestWriteJSON_ContainsAllFields(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	output := buf.String()
	requiredFields := []string{
		`"version"`, `"diagnostics"`, `"summary"`, `"metadata"`,
		`"id"`, `"code"`, `"category"`, `"severity"`, `"message"`,
		`"location"`, `"file"`, `"line"`, `"column"`, `"test"`,
		`"by_code"`, `"run_id"`, `"paramcheck_version"`,
		`"tests_analyzed"`, `"duration_ms"`, `"timestamp"`,
	}
	for _, field := range requiredFields {
		if !strings.Contains(output, field) {
			t.Errorf("JSON output missing field %s", field)
		}
	}
}

func TestWriteJSON_ValidAgainstSchema(t *testing.T) {
	compiled := compileSchema(t)

	tests := []struct {
		name   string
		result *taxonomy.Result
	}{
		{"sample", sampleResult()},
		{"empty", &taxonomy.Result{}},
		{"nil", nil},
		{"warnings", func() *taxonomy.Result {
			r := sampleResult()
			r.Metadata.Warnings = []string{"test_mod.test_f: analysis still deferred in the final pass"}
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteJSON(&buf, tt.result); err != nil {
				t.Fatalf("WriteJSON failed: %v", err)
			}
			inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("failed to parse JSON output: %v", err)
			}
			if err := compiled.Validate(inst); err != nil {
				t.Errorf("JSON output does not conform to schema:\n%v", err)
			}
		})
	}
}

// TestSchema_CoversEveryCode keeps the code enum in step with the
// taxonomy.
func TestSchema_CoversEveryCode(t *testing.T) {
	for _, info := range taxonomy.Codes() {
		if !strings.Contains(Schema, `"`+string(info.Code)+`"`) {
			t.Errorf("schema enum missing code %q", info.Code)
		}
	}
}

func TestWriteCodesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCodesJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var codes []taxonomy.CodeInfo
	if err := json.Unmarshal(buf.Bytes(), &codes); err != nil {
		t.Fatal(err)
	}
	if len(codes) != len(taxonomy.Codes()) {
		t.Errorf("expected %d codes, got %d", len(taxonomy.Codes()), len(codes))
	}
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestWriteText_GroupsByFile(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	for _, want := range []string{
		"=== tests/test_app.py ===",
		"=== tests/test_broken.py ===",
		`3:35 error: Argument 1 to "test_f" has incompatible type "str"`,
		"[arg-type]",
		"8:12 error: Argname \"bar\"",
		"1:5 warning: Syntax error",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("text output missing %q\noutput:\n%s", want, output)
		}
	}
	if strings.Count(output, "=== tests/test_app.py ===") != 1 {
		t.Error("expected one header per file")
	}
}

func TestWriteText_HasSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	if !strings.Contains(output, "2 error(s), 1 warning(s) in 2 file(s); 2 test(s) in 4 file(s) analyzed") {
		t.Errorf("text output missing summary line\noutput:\n%s", output)
	}
	for _, code := range []string{"CODE", "missing-argname", "syntax-error"} {
		if !strings.Contains(output, code) {
			t.Errorf("code table missing %q", code)
		}
	}
}

func TestWriteText_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, nil); err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	if !strings.Contains(output, "No problems found: 0 test(s) in 0 file(s) analyzed") {
		t.Errorf("unexpected output for empty result:\n%s", output)
	}
	if strings.Contains(output, "CODE") {
		t.Error("code table should be omitted when there are no diagnostics")
	}
}

func TestWriteText_ShowsWarnings(t *testing.T) {
	r := sampleResult()
	r.Metadata.Warnings = []string{"tests.test_app.test_h: analysis still deferred in the final pass"}

	var buf bytes.Buffer
	if err := WriteText(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stripANSI(buf.String()), "warning: tests.test_app.test_h") {
		t.Error("text output missing analysis warning")
	}
}

func TestWriteTextOptions_ShowSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	src := "import pytest\n\n@pytest.mark.parametrize(\"x\", [1, 2, \"s\"])\n"
	if err := os.WriteFile(filepath.Join(dir, "tests", "test_app.py"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err := WriteTextOptions(&buf, sampleResult(), TextOptions{ShowSource: true, Root: dir, ShowTest: true})
	if err != nil {
		t.Fatal(err)
	}

	output := stripANSI(buf.String())
	if !strings.Contains(output, `    @pytest.mark.parametrize("x", [1, 2, "s"])`) {
		t.Errorf("expected quoted source line\noutput:\n%s", output)
	}
	if !strings.Contains(output, "    "+strings.Repeat(" ", 34)+"^") {
		t.Errorf("expected caret under column 35\noutput:\n%s", output)
	}
	if !strings.Contains(output, "(tests.test_app.test_f)") {
		t.Error("expected qualified test name")
	}
}

func TestCaret(t *testing.T) {
	tests := []struct {
		line string
		col  int
		want string
	}{
		{"abc", 1, "^"},
		{"abc", 3, "  ^"},
		{"\tx = 1", 2, "\t^"},
		{"ab", 10, "  ^"},
	}
	for _, tt := range tests {
		if got := caret(tt.line, tt.col); got != tt.want {
			t.Errorf("caret(%q, %d) = %q, want %q", tt.line, tt.col, got, tt.want)
		}
	}
}

func TestFormatDiagnostic(t *testing.T) {
	d := sampleResult().Diagnostics[1]
	want := `tests/test_app.py:8:12: error: Argname "bar" is not parametrized and no fixture provides it [missing-argname]`
	if got := FormatDiagnostic(d); got != want {
		t.Errorf("FormatDiagnostic() = %q, want %q", got, want)
	}
}

func TestWriteCodes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCodes(&buf); err != nil {
		t.Fatal(err)
	}
	output := stripANSI(buf.String())
	for _, info := range taxonomy.Codes() {
		if !strings.Contains(output, string(info.Code)) {
			t.Errorf("codes table missing %q", info.Code)
		}
	}
}

func TestSeverityStyle(_ *testing.T) {
	s := DefaultStyles()
	for _, sev := range []taxonomy.Severity{taxonomy.SeverityError, taxonomy.SeverityWarning, ""} {
		_ = s.SeverityStyle(sev).Render("test")
	}
}
