// Package scaffold embeds the default paramcheck configuration and
// writes it to a target project directory.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/unbound-force/paramcheck/internal/config"
)

//go:embed assets/*
var assets embed.FS

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the root directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// Force overwrites existing files when true.
	// When false, existing files are skipped.
	Force bool

	// Version is the paramcheck version string to embed in the
	// version marker comment. Set by ldflags at build time.
	// Defaults to "dev" for development builds.
	Version string

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Created lists files that were written for the first time.
	Created []string

	// Skipped lists files that already existed and were not
	// overwritten (Force was false).
	Skipped []string

	// Overwritten lists files that existed and were replaced
	// (Force was true).
	Overwritten []string
}

// versionMarker returns the version marker comment to prepend to
// each scaffolded file.
func versionMarker(version string) string {
	if version == "" {
		version = "dev"
	}
	return fmt.Sprintf("# scaffolded by paramcheck %s\n", version)
}

// outputName maps an embedded asset to its name in the project. Assets
// are stored without the leading dot that go:embed would skip.
func outputName(relPath string) string {
	return "." + relPath
}

// Run writes the embedded configuration files into the target
// directory. Each file is prepended with a version marker comment:
//
//	# scaffolded by paramcheck vX.Y.Z
//
// If a file already exists and opts.Force is false, the file is
// skipped. If opts.Force is true, the file is overwritten.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	fw, err := config.ReadFramework(opts.TargetDir)
	if err != nil {
		return nil, err
	}
	if fw.Source == "" {
		fmt.Fprintln(opts.Stdout, "Warning: no pytest configuration found (pytest.ini, pyproject.toml, tox.ini or setup.cfg).")
		fmt.Fprintln(opts.Stdout, "paramcheck will use pytest's default collection rules and builtin marks only.")
		fmt.Fprintln(opts.Stdout)
	}

	result := &Result{}
	marker := versionMarker(opts.Version)

	err = fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := outputName(strings.TrimPrefix(path, "assets/"))
		outPath := filepath.Join(opts.TargetDir, name)

		_, statErr := os.Stat(outPath)
		exists := statErr == nil

		if exists && !opts.Force {
			result.Skipped = append(result.Skipped, name)
			return nil
		}

		content, err := assets.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded asset %s: %w", path, err)
		}

		dir := filepath.Dir(outPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}

		out := append([]byte(marker), content...)
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}

		if exists {
			result.Overwritten = append(result.Overwritten, name)
		} else {
			result.Created = append(result.Created, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	printSummary(opts.Stdout, result)

	return result, nil
}

// printSummary writes a human-readable summary of the scaffold
// operation to w.
func printSummary(w io.Writer, r *Result) {
	fmt.Fprintln(w, "paramcheck configuration initialized:")

	for _, f := range r.Created {
		fmt.Fprintf(w, "  created: %s\n", f)
	}
	for _, f := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s (already exists)\n", f)
	}
	for _, f := range r.Overwritten {
		fmt.Fprintf(w, "  overwritten: %s\n", f)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run paramcheck check to analyze your tests.")

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "%d file(s) skipped (use --force to overwrite).\n", len(r.Skipped))
	}
}

// AssetPaths returns the relative paths of all embedded assets.
func AssetPaths() ([]string, error) {
	var paths []string
	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, strings.TrimPrefix(path, "assets/"))
		return nil
	})
	return paths, err
}

// AssetContent returns the raw content of an embedded asset by
// its relative path (e.g., "paramcheck.yaml").
func AssetContent(relPath string) ([]byte, error) {
	return assets.ReadFile("assets/" + relPath)
}
