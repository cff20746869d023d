package pytest_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/pytest"
)

func TestCheckTest_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "well typed values",
			src: `import pytest

@pytest.mark.parametrize("x", [1, 2, 3])
def test_f(x: int) -> None: ...
`,
		},
		{
			name: "value of the wrong type",
			src: `import pytest

@pytest.mark.parametrize("x", [1, 2, "s"])
def test_f(x: int) -> None: ...
`,
			want: []string{
				`3 arg-type: Argument 1 to "test_f" has incompatible type "str"; expected "int | ParameterSet[int]"`,
			},
		},
		{
			name: "unknown argname",
			src: `import pytest

@pytest.mark.parametrize("foo", [1])
def test_f(bar: int) -> None: ...
`,
			want: []string{
				`3 unknown-argname: Unknown argname "foo": not an argument of "test_f" or of any fixture it requests`,
				`4 missing-argname: Argname "bar" is not parametrized and no fixture provides it`,
			},
		},
		{
			name: "argname parametrized twice",
			src: `import pytest

@pytest.mark.parametrize("x", [1])
@pytest.mark.parametrize("x", [2])
def test_f(x: int) -> None: ...
`,
			want: []string{
				`4 repeated-argname: Argname "x" is parametrized more than once`,
			},
		},
		{
			name: "inverted scope and fixture type",
			src: `import pytest

@pytest.fixture(scope="session")
def a(b: int) -> int: ...

@pytest.fixture
def b() -> str: ...

def test_f(a: int) -> None: ...
`,
			want: []string{
				`4 inverted-fixture-scope: Fixture "a" with scope "session" requests fixture "b" with narrower scope "function"`,
				`4 fixture-arg-type: Argument "b" of "a" expects "int", but fixture "b" provides "str"`,
			},
		},
		{
			name: "unpacked parametrize arguments",
			src: `import pytest

spread = ("x", [1])

@pytest.mark.parametrize(*spread, [1, 2, 3])
def test_f(x: int) -> None: ...
`,
			want: []string{
				`5 variadic-argnames-argvals: Unable to identify argnames and argvalues: parametrize was called with unpacked arguments`,
				`6 missing-argname: Argname "x" is not parametrized and no fixture provides it`,
			},
		},
		{
			name: "no parametrization and no fixtures",
			src: `def test_f(a: int, b: str) -> None: ...
`,
			want: []string{
				`1 missing-argname: Argname "a" is not parametrized and no fixture provides it`,
				`1 missing-argname: Argname "b" is not parametrized and no fixture provides it`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t, map[string]string{"test_mod.py": tt.src})
			assert.Equal(t, tt.want, p.check(t, "test_mod"))
		})
	}
}

func TestCheckTest_ManyItems(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

@pytest.mark.parametrize(
    "x, y",
    [
        (1, "a"),
        (2, 3),
        pytest.param(3, "b", id="ok"),
        pytest.param(4, 5),
        (5,),
    ],
)
def test_g(x: int, y: str) -> None: ...
`})
	assert.Equal(t, []string{
		`7 arg-type: Argument 2 to "test_g" has incompatible type "int"; expected "str"`,
		`9 arg-type: Argument 2 to "test_g" has incompatible type "int"; expected "str"`,
		`10 call-arg: Missing positional argument "y" in call to "test_g"`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_NonLiteralArgvalues(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

CASES = [1, 2]

@pytest.mark.parametrize("x", CASES)
def test_h(x: str) -> None: ...

@pytest.mark.parametrize("x", CASES)
def test_ok(x: int) -> None: ...
`})
	assert.Equal(t, []string{
		`5 arg-type: Argument 1 to "test_h" has incompatible type "list[int]"; expected "Iterable[str | ParameterSet[str]]"`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_Defers(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

@pytest.mark.parametrize("x", CASES)
def test_h(x: int) -> None: ...

CASES = [1, 2]
`})
	m := p.checker.Module("test_mod")
	fn := m.AST.Body[1].(*pyast.FuncDef)
	p.checker.Enter("test_mod", 1)

	var buf diag.Buffer
	_, err := p.env.CheckTest(fn, pytest.Site{Module: m}, diag.Reporter{Sink: &buf})
	var deferral *pytest.DeferralError
	require.True(t, errors.As(err, &deferral), "got %v", err)
	assert.Equal(t, pytest.SpeculativeWait, deferral.Reason)

	p.checker.SetFinalPass(true)
	buf.Reset()
	_, err = p.env.CheckTest(fn, pytest.Site{Module: m}, diag.Reporter{Sink: &buf})
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
}

// A decorator that is not a fixture must not have its arguments typed
// while fixtures are being identified; only the callee decides.
func TestIsFixture_TypesArgumentsOnlyForFixtureCalls(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

@pytest.mark.parametrize("x", CASES)
def test_h(x: int) -> None: ...

@pytest.fixture(scope=SCOPE)
def db() -> int: ...

CASES = [1, 2]
SCOPE = "session"
`})
	m := p.checker.Module("test_mod")
	site := pytest.Site{Module: m}

	p.checker.Enter("test_mod", 1)
	ok, err := p.env.IsFixture(m.AST.Body[1].(*pyast.FuncDef), site)
	require.NoError(t, err)
	assert.False(t, ok)

	p.checker.Enter("test_mod", 2)
	_, err = p.env.IsFixture(m.AST.Body[2].(*pyast.FuncDef), site)
	var deferral *pytest.DeferralError
	require.True(t, errors.As(err, &deferral), "got %v", err)
	assert.Equal(t, pytest.RequiredWait, deferral.Reason)

	p.checker.SetFinalPass(true)
	ok, err = p.env.IsFixture(m.AST.Body[2].(*pyast.FuncDef), site)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckTest_KeywordsAfterUnpackedMapping(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

EXTRA = {"ids": None}

@pytest.mark.parametrize(**EXTRA, argnames="x", argvalues=[1, "s"])
def test_f(x: int) -> None: ...
`})
	assert.Equal(t, []string{
		`5 arg-type: Argument 1 to "test_f" has incompatible type "str"; expected "int | ParameterSet[int]"`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_Shadowing(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

@pytest.fixture
def a(x: int) -> int: ...

@pytest.mark.parametrize("a, x", [(1, 2)])
def test_s(a: int) -> None: ...
`})
	assert.Equal(t, []string{
		`7 repeated-fixture-argname: Argname "x" is parametrized, but the fixture that requests it is itself replaced by a parametrization`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_FixtureMissingDependency(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

@pytest.fixture
def a(zz: int) -> int: ...

def test_m(a: int) -> None: ...

def test_n(a: int) -> None: ...
`})
	assert.Equal(t, []string{
		`6 missing-argname: Argname "zz" requested by fixture "a" is not parametrized and no fixture provides it`,
		`8 missing-argname: Argname "zz" requested by fixture "a" is not parametrized and no fixture provides it`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_BuiltinFixtures(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `from pathlib import Path
import pytest

def test_t(tmp_path: Path, request: pytest.FixtureRequest) -> None: ...

def test_u(tmp_path: int) -> None: ...
`})
	assert.Equal(t, []string{
		`6 fixture-arg-type: Argument "tmp_path" of "test_u" expects "int", but fixture "tmp_path" provides "Path"`,
	}, p.check(t, "test_mod"))
}

func TestCheckTest_ConftestChainAndClasses(t *testing.T) {
	p := newProject(t, map[string]string{
		"conftest.py": `import pytest

@pytest.fixture(scope="session")
def db() -> str: ...

@pytest.fixture(name="client")
def make_client(db: bytes) -> int: ...
`,
		"tests/__init__.py": "",
		"tests/conftest.py": `from typing import Iterator
import pytest

@pytest.fixture
def db() -> Iterator[bytes]:
    yield b""
`,
		"tests/test_app.py": `import pytest

class TestApp:
    @pytest.fixture
    def local(self) -> float: ...

    def test_local(self, local: float, client: int) -> None: ...

def test_db(db: bytes) -> None: ...

def test_db_wrong(db: str) -> None: ...
`,
	})
	assert.Equal(t, []string{
		`11 fixture-arg-type: Argument "db" of "test_db_wrong" expects "str", but fixture "db" provides "bytes"`,
	}, p.check(t, "tests.test_app"))
}

func TestCheckTest_UsefixturesAutouseAndPlugins(t *testing.T) {
	p := newProject(t, map[string]string{
		"conftest.py":         `pytest_plugins = ["plugins.extra"]` + "\n",
		"plugins/__init__.py": "",
		"plugins/extra.py": `import pytest

@pytest.fixture(autouse=True)
def setup_env(missing_dep) -> None: ...

@pytest.fixture
def extra() -> int: ...
`,
		"test_use.py": `import pytest

@pytest.mark.usefixtures("extra", "nothing")
def test_use() -> None: ...
`,
	})
	assert.Equal(t, []string{
		`3 missing-argname: No fixture provides "nothing"`,
		`4 missing-argname: Argname "missing_dep" requested by fixture "setup_env" is not parametrized and no fixture provides it`,
	}, p.check(t, "test_use"))
}

func TestCheckTest_RejectedParameters(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `def test_kinds(a, /, b=1, *args, **kwargs) -> None: ...
`})
	assert.Equal(t, []string{
		`1 pos-only-arg: Argument "a" of "test_kinds" is positional-only`,
		`1 opt-arg: Argument "b" of "test_kinds" has a default value`,
		`1 var-pos-arg: "test_kinds" accepts variadic positional arguments "*args"`,
		`1 var-keyword-arg: "test_kinds" accepts variadic keyword arguments "**kwargs"`,
	}, p.check(t, "test_mod"))
}

func TestCheckFixture_Definitions(t *testing.T) {
	p := newProject(t, map[string]string{"conftest.py": `import pytest

SCOPE = "module"

@pytest.fixture(scope="sesion")
def typo() -> int: ...

@pytest.fixture(scope=SCOPE)
def indirect() -> int: ...

@pytest.fixture
@pytest.fixture
def twice() -> int: ...

@pytest.fixture
def defaulted(x: int = 1) -> int: ...
`})
	assert.Equal(t, []string{
		`5 invalid-fixture-scope: Unable to resolve fixture scope: expected one of "function", "class", "module", "package", "session"`,
		`12 duplicate-fixture: "twice" has more than one fixture decorator`,
		`16 opt-arg: Argument "x" of "defaulted" has a default value`,
	}, p.check(t, "conftest"))

	m := p.checker.Module("conftest")
	fixtures, err := p.env.Fixtures.Fixtures(pytest.Site{Module: m})
	require.NoError(t, err)
	scopes := map[string]pytest.Scope{}
	for _, fx := range fixtures {
		scopes[fx.Name] = fx.Scope
	}
	assert.Equal(t, map[string]pytest.Scope{
		"typo":      pytest.ScopeUnknown,
		"indirect":  pytest.ScopeModule,
		"twice":     pytest.ScopeFunction,
		"defaulted": pytest.ScopeFunction,
	}, scopes)
}

func TestCheckTest_UnknownScopeSuppressesOrdering(t *testing.T) {
	p := newProject(t, map[string]string{"test_mod.py": `import pytest

def pick() -> str: ...

@pytest.fixture(scope=pick())
def a(b: int) -> int: ...

@pytest.fixture
def b() -> int: ...

def test_f(a: int) -> None: ...
`})
	assert.Equal(t, []string{
		`5 invalid-fixture-scope: Unable to resolve fixture scope: expected one of "function", "class", "module", "package", "session"`,
	}, p.check(t, "test_mod"))
}
