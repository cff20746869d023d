package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/unbound-force/paramcheck/internal/config"
)

// newProject returns a temp dir with a pytest.ini so no warning is
// printed.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pytest.ini"), []byte("[pytest]\n"), 0o644); err != nil {
		t.Fatalf("creating pytest.ini: %v", err)
	}
	return dir
}

// TestRun_CreatesFiles verifies that init writes the configuration
// file in an empty project.
func TestRun_CreatesFiles(t *testing.T) {
	dir := newProject(t)

	var buf bytes.Buffer
	result, err := Run(Options{
		TargetDir: dir,
		Version:   "1.2.3",
		Stdout:    &buf,
	})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(result.Created) != 1 {
		t.Errorf("expected 1 created file, got %d: %v", len(result.Created), result.Created)
	}
	if len(result.Skipped) != 0 {
		t.Errorf("expected 0 skipped files, got %d: %v", len(result.Skipped), result.Skipped)
	}
	if len(result.Overwritten) != 0 {
		t.Errorf("expected 0 overwritten files, got %d: %v", len(result.Overwritten), result.Overwritten)
	}

	if _, err := os.Stat(filepath.Join(dir, config.FileName)); os.IsNotExist(err) {
		t.Errorf("expected file %s to exist", config.FileName)
	}

	output := buf.String()
	if !strings.Contains(output, "created: "+config.FileName) {
		t.Errorf("summary should mention 'created:', got:\n%s", output)
	}
	if !strings.Contains(output, "Run paramcheck check") {
		t.Errorf("summary should contain hint, got:\n%s", output)
	}
	if strings.Contains(output, "Warning:") {
		t.Errorf("no warning expected with a pytest.ini, got:\n%s", output)
	}
}

// TestRun_SkipsExisting verifies that init skips existing files and
// reports them when --force is not set.
func TestRun_SkipsExisting(t *testing.T) {
	dir := newProject(t)

	var buf1 bytes.Buffer
	if _, err := Run(Options{TargetDir: dir, Version: "1.0.0", Stdout: &buf1}); err != nil {
		t.Fatalf("first Run() returned error: %v", err)
	}

	var buf2 bytes.Buffer
	result, err := Run(Options{TargetDir: dir, Version: "1.0.0", Stdout: &buf2})
	if err != nil {
		t.Fatalf("second Run() returned error: %v", err)
	}

	if len(result.Created) != 0 {
		t.Errorf("expected 0 created, got %d: %v", len(result.Created), result.Created)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped, got %d: %v", len(result.Skipped), result.Skipped)
	}

	output := buf2.String()
	if !strings.Contains(output, "skipped:") {
		t.Errorf("summary should mention 'skipped:', got:\n%s", output)
	}
	if !strings.Contains(output, "use --force to overwrite") {
		t.Errorf("summary should suggest --force, got:\n%s", output)
	}
}

// TestRun_ForceOverwrites verifies that init --force overwrites
// existing files and reports the overwrites.
func TestRun_ForceOverwrites(t *testing.T) {
	dir := newProject(t)
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte("format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	result, err := Run(Options{
		TargetDir: dir,
		Force:     true,
		Version:   "2.0.0",
		Stdout:    &buf,
	})
	if err != nil {
		t.Fatalf("Run() with force returned error: %v", err)
	}

	if len(result.Overwritten) != 1 {
		t.Errorf("expected 1 overwritten, got %d: %v", len(result.Overwritten), result.Overwritten)
	}
	if !strings.Contains(buf.String(), "overwritten:") {
		t.Errorf("summary should mention 'overwritten:', got:\n%s", buf.String())
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format != "text" {
		t.Errorf("expected overwritten config to use format text, got %q", cfg.Format)
	}
}

// TestRun_VersionMarker verifies every scaffolded file starts with
// the version marker.
func TestRun_VersionMarker(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0", "# scaffolded by paramcheck 0.1.0"},
		{"", "# scaffolded by paramcheck dev"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			dir := newProject(t)
			var buf bytes.Buffer
			if _, err := Run(Options{TargetDir: dir, Version: tt.version, Stdout: &buf}); err != nil {
				t.Fatalf("Run() returned error: %v", err)
			}

			paths, err := AssetPaths()
			if err != nil {
				t.Fatalf("AssetPaths() returned error: %v", err)
			}
			for _, relPath := range paths {
				content, err := os.ReadFile(filepath.Join(dir, outputName(relPath)))
				if err != nil {
					t.Fatalf("reading %s: %v", relPath, err)
				}
				firstLine := strings.SplitN(string(content), "\n", 2)[0]
				if firstLine != tt.want {
					t.Errorf("file %s: expected first line %q, got %q", relPath, tt.want, firstLine)
				}
			}
		})
	}
}

// TestRun_NoPytestConfig_PrintsWarning verifies init in a directory
// without pytest configuration prints a warning but still creates
// files.
func TestRun_NoPytestConfig_PrintsWarning(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	result, err := Run(Options{TargetDir: dir, Version: "1.0.0", Stdout: &buf})
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if len(result.Created) != 1 {
		t.Errorf("expected 1 created file, got %d", len(result.Created))
	}
	if !strings.Contains(buf.String(), "Warning: no pytest configuration found") {
		t.Errorf("expected pytest configuration warning, got:\n%s", buf.String())
	}
}

// TestEmbeddedConfigMatchesDefaults keeps the scaffolded file in step
// with config.DefaultConfig.
func TestEmbeddedConfigMatchesDefaults(t *testing.T) {
	dir := newProject(t)
	var buf bytes.Buffer
	if _, err := Run(Options{TargetDir: dir, Stdout: &buf}); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("scaffolded config does not load: %v", err)
	}
	if want := config.DefaultConfig(); !reflect.DeepEqual(cfg, want) {
		t.Errorf("scaffolded config drifted from defaults:\ngot:  %+v\nwant: %+v", cfg, want)
	}
}

// TestAssetPaths lists the embedded asset manifest.
func TestAssetPaths(t *testing.T) {
	paths, err := AssetPaths()
	if err != nil {
		t.Fatalf("AssetPaths() returned error: %v", err)
	}
	if !reflect.DeepEqual(paths, []string{"paramcheck.yaml"}) {
		t.Fatalf("unexpected assets: %v", paths)
	}
	if outputName(paths[0]) != config.FileName {
		t.Errorf("asset %s maps to %s, want %s", paths[0], outputName(paths[0]), config.FileName)
	}
	if _, err := AssetContent(paths[0]); err != nil {
		t.Errorf("AssetContent(%q) returned error: %v", paths[0], err)
	}
}
