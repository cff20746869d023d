// Package pyscan discovers the Python source files of a project.
package pyscan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unbound-force/paramcheck/internal/config"
)

// ignoredDirs are directory names never descended into.
var ignoredDirs = map[string]bool{
	"__pycache__": true, ".eggs": true, ".git": true, ".hg": true,
	".mypy_cache": true, ".nox": true, ".pytest_cache": true,
	".ruff_cache": true, ".svn": true, ".tox": true, ".venv": true,
	"node_modules": true, "site-packages": true, "venv": true,
}

// SkipDir reports whether a directory named name is never scanned:
// hidden directories and well-known environment directories.
func SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || ignoredDirs[name]
}

// File is one discovered source file.
type File struct {
	// Path is the absolute path.
	Path string

	// Rel is the slash-separated path relative to the scan root.
	Rel string
}

// Options configures a Scan invocation.
type Options struct {
	// Config provides include/exclude patterns. If nil,
	// DefaultConfig() is used.
	Config *config.Config
}

// Scan walks the tree rooted at root and returns every .py file that
// passes the filters, sorted by relative path. Hidden and well-known
// environment directories are skipped.
func Scan(ctx context.Context, root string, opts Options) ([]File, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		if !Filter(rel, opts.Config) {
			return nil
		}
		files = append(files, File{Path: path, Rel: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}
