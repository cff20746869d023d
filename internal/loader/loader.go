// Package loader discovers and parses the Python modules of a project.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/pyscan"
)

// ErrNoPythonFiles is returned when the root holds no Python file that
// passes the filters.
var ErrNoPythonFiles = errors.New("no Python files found")

// File is one parsed module.
type File struct {
	// Rel is the slash-separated path relative to the project root.
	Rel string

	// Name is the dotted module name.
	Name string

	// Package is set for __init__.py files.
	Package bool

	Module *pyast.Module
	Hash   uint64
}

// Project is the result of Load.
type Project struct {
	Root  string
	Files []File

	// Reparsed counts files that missed the cache.
	Reparsed int
}

// Options configures Load.
type Options struct {
	// Config provides include/exclude patterns. If nil,
	// DefaultConfig() is used.
	Config *config.Config

	// Cache, when set, skips parsing files whose content is unchanged
	// since the previous Load with the same cache.
	Cache *Cache

	// Logger receives parse warnings. Nil disables logging.
	Logger *log.Logger
}

// Load scans root and parses every discovered file concurrently.
func Load(ctx context.Context, root string, opts Options) (*Project, error) {
	files, err := pyscan.Scan(ctx, root, pyscan.Options{Config: opts.Config})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoPythonFiles)
	}

	out := make([]File, len(files))
	reparsed := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, f := range files {
		g.Go(func() error {
			src, err := os.ReadFile(f.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", f.Rel, err)
			}
			hash := xxh3.Hash(src)
			name, pkg := ModuleName(f.Rel)
			if mod, ok := opts.Cache.get(f.Rel, hash); ok {
				out[i] = File{Rel: f.Rel, Name: name, Package: pkg, Module: mod, Hash: hash}
				return nil
			}
			mod, err := pyast.Parse(gctx, f.Rel, src)
			if err != nil {
				return err
			}
			mod.Name = name
			if len(mod.SyntaxErrors) > 0 && opts.Logger != nil {
				opts.Logger.Warn("syntax errors in file", "file", f.Rel, "count", len(mod.SyntaxErrors))
			}
			opts.Cache.put(f.Rel, hash, mod)
			out[i] = File{Rel: f.Rel, Name: name, Package: pkg, Module: mod, Hash: hash}
			reparsed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &Project{Root: root, Files: out}
	for _, r := range reparsed {
		if r {
			p.Reparsed++
		}
	}
	opts.Cache.retain(out)
	return p, nil
}

// ModuleName maps a relative .py path to its dotted module name. An
// __init__.py names its package.
func ModuleName(rel string) (name string, pkg bool) {
	parts := strings.Split(strings.TrimSuffix(rel, ".py"), "/")
	if len(parts) > 1 && parts[len(parts)-1] == "__init__" {
		parts, pkg = parts[:len(parts)-1], true
	} else if len(parts) == 1 && parts[0] == "__init__" {
		return "__init__", false
	}
	return strings.Join(parts, "."), pkg
}

// Cache remembers parsed modules by path and content hash. It is safe
// for concurrent use. A nil *Cache caches nothing.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	hash uint64
	mod  *pyast.Module
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: map[string]cacheEntry{}}
}

func (c *Cache) get(rel string, hash uint64) (*pyast.Module, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[rel]
	if !ok || e.hash != hash {
		return nil, false
	}
	return e.mod, true
}

func (c *Cache) put(rel string, hash uint64, mod *pyast.Module) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rel] = cacheEntry{hash: hash, mod: mod}
}

// retain drops entries for files that no longer exist.
func (c *Cache) retain(files []File) {
	if c == nil {
		return
	}
	keep := make(map[string]bool, len(files))
	for _, f := range files {
		keep[f.Rel] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for rel := range c.entries {
		if !keep[rel] {
			delete(c.entries, rel)
		}
	}
}
