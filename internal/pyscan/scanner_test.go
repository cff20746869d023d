package pyscan_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/pyscan"
)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating dir for %s: %v", f, err)
		}
		if err := os.WriteFile(p, []byte("\n"), 0o644); err != nil {
			t.Fatalf("writing %s: %v", f, err)
		}
	}
	return root
}

func rels(files []pyscan.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Rel
	}
	return out
}

func TestScan_FindsPythonFiles(t *testing.T) {
	root := makeTree(t,
		"conftest.py",
		"tests/test_b.py",
		"tests/__init__.py",
		"app/models.py",
		"README.md",
		".venv/lib/site.py",
		".hidden/test_x.py",
		"pkg/__pycache__/test_c.py",
		"node_modules/x.py",
	)

	files, err := pyscan.Scan(context.Background(), root, pyscan.Options{})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	want := []string{"app/models.py", "conftest.py", "tests/__init__.py", "tests/test_b.py"}
	if got := rels(files); !reflect.DeepEqual(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Errorf("path %q is not absolute", f.Path)
		}
	}
}

func TestScan_AppliesConfig(t *testing.T) {
	root := makeTree(t, "tests/test_a.py", "tests/legacy/test_b.py", "src/app.py")
	cfg := &config.Config{Include: []string{"tests/**"}, Exclude: []string{"tests/legacy/**"}}

	files, err := pyscan.Scan(context.Background(), root, pyscan.Options{Config: cfg})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if got := rels(files); !reflect.DeepEqual(got, []string{"tests/test_a.py"}) {
		t.Errorf("Scan() = %v", got)
	}
}

func TestScan_Cancelled(t *testing.T) {
	root := makeTree(t, "test_a.py")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pyscan.Scan(ctx, root, pyscan.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSkipDir(t *testing.T) {
	tests := map[string]bool{
		".git":          true,
		".venv":         true,
		"__pycache__":   true,
		"site-packages": true,
		"tests":         false,
		"src":           false,
	}
	for name, want := range tests {
		if got := pyscan.SkipDir(name); got != want {
			t.Errorf("SkipDir(%q) = %v, want %v", name, got, want)
		}
	}
}
