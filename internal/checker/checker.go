// Package checker is the host type checker the pytest analysis runs
// inside: a module table populated from project sources and embedded
// stubs, per-module symbol tables, annotation analysis, expression
// typing with analysis deferral, and a synthetic call-check.
package checker

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

//go:embed all:stubs
var stubFS embed.FS

// ErrNotReady is returned when an expression depends on a module
// variable whose definition has not been analyzed yet in the current
// pass.
var ErrNotReady = errors.New("type not yet resolved")

// Module is one entry of the module table.
type Module struct {
	Name string
	Path string
	AST  *pyast.Module

	// Package is set for __init__ modules.
	Package bool

	// Stub is set for modules loaded from the embedded stubs.
	Stub bool

	Scope *Scope
}

// Options configures a Checker.
type Options struct {
	// Logger receives warnings. Nil disables logging.
	Logger *log.Logger
}

// Checker owns the module table and every type computed from it. It is
// not safe for concurrent use.
type Checker struct {
	modules   map[string]*Module
	classSyms map[*types.ClassInfo]*Symbol
	logger    *log.Logger

	// Deferral state: the module and top-level statement index being
	// analyzed, and whether this is the final pass.
	current string
	index   int
	final   bool
}

// New creates a checker with the embedded stub modules loaded.
func New(opts Options) (*Checker, error) {
	c := &Checker{
		modules: map[string]*Module{},
		logger:  opts.Logger,
		index:   -1,
	}
	stubs, err := parsedStubs()
	if err != nil {
		return nil, err
	}
	for _, s := range stubs {
		c.add(&Module{Name: s.name, Path: s.path, AST: s.mod, Package: s.pkg, Stub: true})
	}
	return c, nil
}

// AddModule registers a parsed project module. A project module with
// the same name as a stub replaces it.
func (c *Checker) AddModule(mod *pyast.Module, pkg bool) *Module {
	m := &Module{Name: mod.Name, Path: mod.Path, AST: mod, Package: pkg}
	c.add(m)
	return m
}

func (c *Checker) add(m *Module) {
	m.AST.Name = m.Name
	m.Scope = buildScope(m.Name, m.Package, m.AST.Body, nil)
	m.Scope.module = m
	c.modules[m.Name] = m
}

// Module returns the module with the given dotted name, or nil.
func (c *Checker) Module(name string) *Module {
	return c.modules[name]
}

// ProjectModules returns the non-stub modules sorted by name.
func (c *Checker) ProjectModules() []*Module {
	var out []*Module
	for _, m := range c.modules {
		if !m.Stub {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enter records the module and top-level statement being analyzed.
// Unannotated module variables defined after that statement are not
// ready until the final pass.
func (c *Checker) Enter(module string, index int) {
	c.current, c.index = module, index
}

// SetFinalPass switches the checker into the final pass, where every
// lookup resolves.
func (c *Checker) SetFinalPass(final bool) {
	c.final = final
}

// FinalPass reports whether the checker is in the final pass.
func (c *Checker) FinalPass() bool {
	return c.final
}

func (c *Checker) warn(msg string, keyvals ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keyvals...)
	}
}

// ---------------------------------------------------------------------------
// Embedded stubs
// ---------------------------------------------------------------------------

type stubModule struct {
	name string
	path string
	pkg  bool
	mod  *pyast.Module
}

var (
	stubOnce  sync.Once
	stubCache []stubModule
	stubErr   error
)

// parsedStubs parses the embedded stubs once per process. The ASTs are
// immutable and shared between checkers.
func parsedStubs() ([]stubModule, error) {
	stubOnce.Do(func() {
		stubErr = fs.WalkDir(stubFS, "stubs", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".pyi" {
				return nil
			}
			src, err := stubFS.ReadFile(p)
			if err != nil {
				return fmt.Errorf("reading stub %s: %w", p, err)
			}
			mod, err := pyast.Parse(context.Background(), p, src)
			if err != nil {
				return fmt.Errorf("parsing stub %s: %w", p, err)
			}
			if len(mod.SyntaxErrors) > 0 {
				return fmt.Errorf("stub %s has syntax errors at %v", p, mod.SyntaxErrors[0])
			}
			name, pkg := StubModuleName(p)
			stubCache = append(stubCache, stubModule{name: name, path: p, pkg: pkg, mod: mod})
			return nil
		})
	})
	return stubCache, stubErr
}

// StubModuleName converts an embedded stub path such as
// "stubs/_pytest/mark/__init__.pyi" into "_pytest.mark".
func StubModuleName(p string) (string, bool) {
	p = strings.TrimPrefix(p, "stubs/")
	p = strings.TrimSuffix(p, ".pyi")
	pkg := false
	if p == "__init__" || strings.HasSuffix(p, "/__init__") {
		pkg = true
		p = strings.TrimSuffix(strings.TrimSuffix(p, "__init__"), "/")
	}
	return strings.ReplaceAll(p, "/", "."), pkg
}

// ---------------------------------------------------------------------------
// Named types
// ---------------------------------------------------------------------------

// LookupClass returns the class with the given full name.
func (c *Checker) LookupClass(fullname string) (*types.ClassInfo, bool) {
	sym := c.lookupQualified(fullname)
	if sym == nil {
		return nil, false
	}
	sym = c.resolveImport(sym)
	if sym == nil || sym.Kind != SymClass {
		return nil, false
	}
	return c.classInfo(sym), true
}

// NamedType builds an instance of a class from the module table. The
// class must exist; the stubs guarantee the ones the analysis uses.
func (c *Checker) NamedType(fullname string, args ...types.Type) *types.Instance {
	cls, ok := c.LookupClass(fullname)
	if !ok {
		panic(fmt.Sprintf("checker: class %s not in module table", fullname))
	}
	if len(args) == 0 && len(cls.TypeVars) > 0 {
		args = make([]types.Type, len(cls.TypeVars))
		for i := range args {
			args[i] = types.Any
		}
	}
	return types.NewInstance(cls, args...)
}

// Tuple builds a fixed tuple type.
func (c *Checker) Tuple(items ...types.Type) *types.TupleType {
	cls, _ := c.LookupClass("builtins.tuple")
	return types.NewTuple(items, cls)
}

func (c *Checker) builtin(name string, args ...types.Type) *types.Instance {
	return c.NamedType("builtins."+name, args...)
}

// lookupQualified finds a dotted name by taking the longest module
// prefix and walking the remaining parts through class scopes.
func (c *Checker) lookupQualified(fullname string) *Symbol {
	parts := strings.Split(fullname, ".")
	for i := len(parts) - 1; i >= 1; i-- {
		m := c.modules[strings.Join(parts[:i], ".")]
		if m == nil {
			continue
		}
		sym := m.Scope.Names[parts[i]]
		for _, part := range parts[i+1:] {
			sym = c.resolveImport(sym)
			if sym == nil || sym.Kind != SymClass {
				return nil
			}
			sym = c.classScope(sym).Names[part]
		}
		return sym
	}
	return nil
}
