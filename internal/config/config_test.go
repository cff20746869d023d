package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesAndKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, FileName, `
format: json
disable: [unknown-mark, test-return-type]
markers: [integration]
checks:
  fixture_types: false
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []taxonomy.Code{taxonomy.UnknownMark, taxonomy.TestReturnType}, cfg.DisabledCodes())
	assert.Equal(t, []string{"integration"}, cfg.Markers)
	assert.False(t, cfg.Checks.FixtureTypes)
	assert.True(t, cfg.Checks.FixtureScopes)
	assert.Equal(t, DefaultConfig().Exclude, cfg.Exclude)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad format", "format: html\n", "Config.Format"},
		{"unknown code", "disable: [no-such-code]\n", "Config.Disable[0]"},
		{"empty marker", "markers: ['']\n", "Config.Markers[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), FileName, tt.content)
			_, err := Load(p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewValidator_DiagnosticCodes(t *testing.T) {
	var v *validator.Validate
	require.NotPanics(t, func() { v = newValidator() })

	cfg := DefaultConfig()
	for _, info := range taxonomy.Codes() {
		cfg.Disable = append(cfg.Disable, string(info.Code))
	}
	assert.NoError(t, v.Struct(cfg))

	cfg.Disable = []string{"no-such-code"}
	assert.Error(t, v.Struct(cfg))
}

func TestLoad_Malformed(t *testing.T) {
	p := writeFile(t, t.TempDir(), FileName, "format: [\n")
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestFind_ExplicitMissing(t *testing.T) {
	_, err := Find(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFramework_Defaults(t *testing.T) {
	fw, err := ReadFramework(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, fw.Source)
	assert.True(t, fw.IsTestModule("pkg/test_app.py"))
	assert.True(t, fw.IsTestModule("app_test.py"))
	assert.False(t, fw.IsTestModule("pkg/app.py"))
	assert.True(t, fw.IsTestFunction("test_x"))
	assert.False(t, fw.IsTestFunction("helper"))
	assert.True(t, fw.IsTestClass("TestApp"))
	assert.True(t, fw.HasMarker("parametrize"))
	assert.False(t, fw.HasMarker("slow"))
	assert.True(t, fw.HasMarker("slow", "slow"))
}

func TestReadFramework_Sources(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		markers []string
		files   []string
	}{
		{
			name: "pytest.ini",
			file: "pytest.ini",
			content: `[pytest]
python_files = check_*.py
markers =
    slow: marks tests as slow
    env(name): run on an environment
`,
			markers: []string{"slow", "env"},
			files:   []string{"check_*.py"},
		},
		{
			name: "setup.cfg",
			file: "setup.cfg",
			content: `[metadata]
name = demo

[tool:pytest]
markers =
    db
`,
			markers: []string{"db"},
			files:   []string{"test_*.py", "*_test.py"},
		},
		{
			name: "tox.ini",
			file: "tox.ini",
			content: `[pytest]
python_files = test_*.py spec_*.py
`,
			files: []string{"test_*.py", "spec_*.py"},
		},
		{
			name: "pyproject.toml",
			file: "pyproject.toml",
			content: `[project]
name = "demo"

[tool.pytest.ini_options]
python_files = ["t_*.py"]
markers = ["network: needs the network", "gpu"]
`,
			markers: []string{"network", "gpu"},
			files:   []string{"t_*.py"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := writeFile(t, dir, tt.file, tt.content)
			fw, err := ReadFramework(dir)
			require.NoError(t, err)
			assert.Equal(t, p, fw.Source)
			assert.Equal(t, tt.markers, fw.Markers)
			assert.Equal(t, tt.files, fw.PythonFiles)
		})
	}
}

func TestReadFramework_SkipsFilesWithoutSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tox.ini", "[tox]\nenvlist = py312\n")
	p := writeFile(t, dir, "setup.cfg", "[tool:pytest]\nmarkers = slow\n")
	fw, err := ReadFramework(dir)
	require.NoError(t, err)
	assert.Equal(t, p, fw.Source)
	assert.Equal(t, []string{"slow"}, fw.Markers)
}

func TestLoadFramework_Memoized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pytest.ini", "[pytest]\nmarkers = one\n")
	first, err := LoadFramework(dir)
	require.NoError(t, err)
	writeFile(t, dir, "pytest.ini", "[pytest]\nmarkers = two\n")
	second, err := LoadFramework(dir)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"one"}, second.Markers)
}

func TestIsConftest(t *testing.T) {
	assert.True(t, IsConftest("a/b/conftest.py"))
	assert.False(t, IsConftest("a/b/conftest_helpers.py"))
}
