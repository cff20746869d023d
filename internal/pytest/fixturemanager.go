package pytest

import (
	"strings"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
)

// FixtureManager resolves fixture names. For a test it searches, in
// order: the test's class, the test's module, the conftest module of
// every ancestor package from the nearest up to the root, the plugin
// modules those list in pytest_plugins, and the default fixture modules.
type FixtureManager struct {
	checker  *checker.Checker
	defaults []string
	tables   map[tableKey]*fixtureTable
}

type tableKey struct {
	module string
	class  *pyast.ClassDef
}

type fixtureTable struct {
	byName map[string]*Fixture
	order  []*Fixture
}

// NewFixtureManager creates a manager that falls back to the given
// default fixture modules.
func NewFixtureManager(c *checker.Checker, defaults []string) *FixtureManager {
	return &FixtureManager{
		checker:  c,
		defaults: defaults,
		tables:   map[tableKey]*fixtureTable{},
	}
}

// Fixtures returns the fixtures defined directly at site, in source
// order. Definition problems are not reported here; the definition's
// own visit reports them.
func (m *FixtureManager) Fixtures(site Site) ([]*Fixture, error) {
	t, err := m.table(site)
	if err != nil {
		return nil, err
	}
	return t.order, nil
}

func (m *FixtureManager) table(site Site) (*fixtureTable, error) {
	key := tableKey{module: site.Module.Name, class: site.Class}
	if t, ok := m.tables[key]; ok {
		return t, nil
	}
	body := site.Module.AST.Body
	if site.Class != nil {
		body = site.Class.Body
	}
	env := &Env{Checker: m.checker, Fixtures: m}
	t := &fixtureTable{byName: map[string]*Fixture{}}
	for _, st := range body {
		fn, ok := st.(*pyast.FuncDef)
		if !ok || len(fn.Decorators) == 0 {
			continue
		}
		fx, err := env.FixtureFromFunc(fn, site, diag.Reporter{})
		if err != nil {
			return nil, err
		}
		if fx == nil {
			continue
		}
		// A later definition replaces an earlier one of the same name.
		if prev, ok := t.byName[fx.Name]; ok {
			for i, o := range t.order {
				if o == prev {
					t.order = append(t.order[:i], t.order[i+1:]...)
					break
				}
			}
		}
		t.byName[fx.Name] = fx
		t.order = append(t.order, fx)
	}
	m.tables[key] = t
	return t, nil
}

// Chain returns the sites searched for a test at site, nearest first.
func (m *FixtureManager) Chain(site Site) []Site {
	var out []Site
	seen := map[string]bool{}
	addModule := func(name string) {
		if seen[name] {
			return
		}
		if mod := m.checker.Module(name); mod != nil {
			seen[name] = true
			out = append(out, Site{Module: mod})
		}
	}

	if site.Class != nil {
		out = append(out, site)
	}
	addModule(site.Module.Name)
	for _, name := range ConftestChain(site.Module.Name, site.Module.Package) {
		addModule(name)
	}
	// Plugins named by the modules found so far.
	for _, s := range append([]Site(nil), out...) {
		for _, plugin := range PytestPlugins(s.Module) {
			addModule(plugin)
		}
	}
	for _, name := range m.defaults {
		addModule(name)
	}
	return out
}

// ConftestChain lists the conftest modules that apply to module, from
// the nearest package up to the root conftest.
func ConftestChain(module string, pkg bool) []string {
	parts := strings.Split(module, ".")
	if !pkg {
		parts = parts[:len(parts)-1]
	}
	var out []string
	for i := len(parts); i >= 0; i-- {
		prefix := strings.Join(parts[:i], ".")
		if prefix == "" {
			out = append(out, "conftest")
			continue
		}
		out = append(out, prefix+".conftest")
	}
	return out
}

// PytestPlugins reads a module-level pytest_plugins assignment: a
// string or a list or tuple of strings.
func PytestPlugins(m *checker.Module) []string {
	sym := m.Scope.Lookup("pytest_plugins")
	if sym == nil || sym.Value == nil {
		return nil
	}
	var out []string
	var add func(e pyast.Expr)
	add = func(e pyast.Expr) {
		switch x := e.(type) {
		case *pyast.StrLit:
			if !x.IsBytes && !x.IsFString {
				out = append(out, x.Value)
			}
		case *pyast.TupleExpr, *pyast.ListExpr:
			for _, elt := range sequenceElements(x) {
				add(elt)
			}
		}
	}
	add(sym.Value)
	return out
}

// Resolve finds the fixture that provides name to code at site, or nil.
func (m *FixtureManager) Resolve(name string, site Site) (*Fixture, error) {
	for _, s := range m.Chain(site) {
		t, err := m.table(s)
		if err != nil {
			return nil, err
		}
		if fx, ok := t.byName[name]; ok {
			return fx, nil
		}
	}
	return nil, nil
}

// Autouse returns the autouse fixtures visible at site that are not
// overridden by a nearer definition of the same name.
func (m *FixtureManager) Autouse(site Site) ([]*Fixture, error) {
	var out []*Fixture
	seen := map[string]bool{}
	for _, s := range m.Chain(site) {
		t, err := m.table(s)
		if err != nil {
			return nil, err
		}
		for _, fx := range t.order {
			if !fx.Autouse || seen[fx.Name] {
				continue
			}
			seen[fx.Name] = true
			visible, err := m.Resolve(fx.Name, site)
			if err != nil {
				return nil, err
			}
			if visible == fx {
				out = append(out, fx)
			}
		}
	}
	return out, nil
}

// ResolveRequests seeds the request set with seeds, then resolves
// each requested name to a fixture whose own arguments become new
// requests, until nothing new is requested. The first request for a
// name wins. Cycles stop at names already requested.
func (m *FixtureManager) ResolveRequests(seeds []TestArgument, site Site) (map[string]*Request, map[string]*Fixture, error) {
	requests := map[string]*Request{}
	fixtures := map[string]*Fixture{}
	queue := append([]TestArgument(nil), seeds...)
	for len(queue) > 0 {
		arg := queue[0]
		queue = queue[1:]
		if _, ok := requests[arg.Name]; ok {
			continue
		}
		requests[arg.Name] = &Request{Arg: arg}
		fx, err := m.Resolve(arg.Name, site)
		if err != nil {
			return nil, nil, err
		}
		if fx == nil {
			continue
		}
		fixtures[arg.Name] = fx
		queue = append(queue, fx.Arguments...)
	}
	return requests, fixtures, nil
}
