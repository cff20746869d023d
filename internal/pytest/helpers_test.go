package pytest_test

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/pytest"
)

var defaultFixtureModules = []string{"_pytest.fixtures", "_pytest.tmpdir", "_pytest.capture", "_pytest.monkeypatch"}

type project struct {
	env     *pytest.Env
	checker *checker.Checker
}

// newProject loads files, keyed by slash path, into a fresh checker.
func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	c, err := checker.New(checker.Options{})
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for p := range files {
		names = append(names, p)
	}
	sort.Strings(names)
	for _, p := range names {
		mod, err := pyast.Parse(context.Background(), p, []byte(files[p]))
		require.NoError(t, err)
		require.Empty(t, mod.SyntaxErrors, p)
		name, pkg := moduleName(p)
		mod.Name = name
		c.AddModule(mod, pkg)
	}
	return &project{
		env:     pytest.NewEnv(c, pytest.Options{FixtureModules: defaultFixtureModules}),
		checker: c,
	}
}

func moduleName(p string) (string, bool) {
	p = strings.TrimSuffix(p, ".py")
	if path.Base(p) == "__init__" {
		return strings.ReplaceAll(path.Dir(p), "/", "."), true
	}
	return strings.ReplaceAll(p, "/", "."), false
}

// check runs the fixture and test callbacks over the top-level
// functions and test-class methods of module, in final-pass mode, and
// renders what was reported as "line code: message".
func (p *project) check(t *testing.T, module string) []string {
	t.Helper()
	p.checker.SetFinalPass(true)
	var buf diag.Buffer
	rep := diag.Reporter{Sink: &buf}
	m := p.checker.Module(module)
	require.NotNil(t, m, module)

	visit := func(fn *pyast.FuncDef, site pytest.Site) {
		fx, err := p.env.CheckFixture(fn, site, rep)
		require.NoError(t, err)
		if fx == nil && strings.HasPrefix(fn.Name, "test") {
			_, err := p.env.CheckTest(fn, site, rep)
			require.NoError(t, err)
		}
	}
	for _, st := range m.AST.Body {
		switch st := st.(type) {
		case *pyast.FuncDef:
			visit(st, pytest.Site{Module: m})
		case *pyast.ClassDef:
			for _, inner := range st.Body {
				if fn, ok := inner.(*pyast.FuncDef); ok {
					visit(fn, pytest.Site{Module: m, Class: st})
				}
			}
		}
	}
	var out []string
	for _, d := range buf.Items() {
		out = append(out, fmt.Sprintf("%d %s: %s", d.Location.Line, d.Code, d.Message))
	}
	return out
}
