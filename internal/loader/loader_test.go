package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbound-force/paramcheck/internal/loader"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestModuleName(t *testing.T) {
	tests := []struct {
		rel  string
		name string
		pkg  bool
	}{
		{"test_a.py", "test_a", false},
		{"conftest.py", "conftest", false},
		{"pkg/sub/test_b.py", "pkg.sub.test_b", false},
		{"pkg/__init__.py", "pkg", true},
		{"pkg/sub/__init__.py", "pkg.sub", true},
	}
	for _, tt := range tests {
		name, pkg := loader.ModuleName(tt.rel)
		assert.Equal(t, tt.name, name, tt.rel)
		assert.Equal(t, tt.pkg, pkg, tt.rel)
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "conftest.py", "import pytest\n")
	write(t, root, "tests/__init__.py", "")
	write(t, root, "tests/test_a.py", "def test_a() -> None: ...\n")
	write(t, root, "tests/test_bad.py", "def test_b(:\n")

	p, err := loader.Load(context.Background(), root, loader.Options{})
	require.NoError(t, err)
	require.Len(t, p.Files, 4)

	byName := map[string]loader.File{}
	for _, f := range p.Files {
		byName[f.Name] = f
	}
	assert.True(t, byName["tests"].Package)
	assert.Equal(t, "tests/test_a.py", byName["tests.test_a"].Module.Path)
	assert.Equal(t, "tests.test_a", byName["tests.test_a"].Module.Name)
	assert.NotEmpty(t, byName["tests.test_bad"].Module.SyntaxErrors)
	assert.Equal(t, 4, p.Reparsed)
}

func TestLoad_NoPythonFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "README.md", "# nothing\n")
	_, err := loader.Load(context.Background(), root, loader.Options{})
	assert.True(t, errors.Is(err, loader.ErrNoPythonFiles), "got %v", err)
}

func TestLoad_Cache(t *testing.T) {
	root := t.TempDir()
	write(t, root, "test_a.py", "def test_a() -> None: ...\n")
	write(t, root, "test_b.py", "def test_b() -> None: ...\n")
	cache := loader.NewCache()

	first, err := loader.Load(context.Background(), root, loader.Options{Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Reparsed)

	write(t, root, "test_b.py", "def test_b2() -> None: ...\n")
	second, err := loader.Load(context.Background(), root, loader.Options{Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reparsed)
	assert.Same(t, first.Files[0].Module, second.Files[0].Module)
	assert.NotEqual(t, first.Files[1].Hash, second.Files[1].Hash)
}
