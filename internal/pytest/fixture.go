package pytest

import (
	"fmt"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/fullname"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

// Scope is a fixture scope. The known scopes are ordered from the
// shortest lived to the longest lived.
type Scope int

// Scopes.
const (
	ScopeFunction Scope = iota
	ScopeClass
	ScopeModule
	ScopePackage
	ScopeSession
	ScopeUnknown
)

var scopeNames = map[string]Scope{
	"function": ScopeFunction,
	"class":    ScopeClass,
	"module":   ScopeModule,
	"package":  ScopePackage,
	"session":  ScopeSession,
}

var scopeOrder = [...]string{"function", "class", "module", "package", "session", "unknown"}

func (s Scope) String() string {
	if s < 0 || int(s) >= len(scopeOrder) {
		return "unknown"
	}
	return scopeOrder[s]
}

// Known reports whether s is one of the five scopes.
func (s Scope) Known() bool {
	return s != ScopeUnknown
}

// Fixture is one fixture definition.
type Fixture struct {
	FullName fullname.FullName

	// Name is the name tests request, which differs from the function
	// name when the decorator passes name=.
	Name       string
	ReturnType types.Type
	Arguments  []TestArgument
	Scope      Scope
	Autouse    bool
	Pos        pyast.Pos
	File       string
}

// FixtureFromFunc extracts a fixture from a function definition. It
// returns nil when fn carries no fixture decorator. Problems with the
// definition are reported to rep.
func (e *Env) FixtureFromFunc(fn *pyast.FuncDef, site Site, rep diag.Reporter) (*Fixture, error) {
	ctx := site.Context(e.Checker)

	var marker pyast.Expr
	for _, d := range fn.Decorators {
		ok, err := e.isFixtureDecorator(ctx, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if marker != nil {
			rep.Fail(taxonomy.DuplicateFixture, fmt.Sprintf("%q has more than one fixture decorator", fn.Name), d.Pos())
			continue
		}
		marker = d
	}
	if marker == nil {
		return nil, nil
	}

	qualified := fullname.Parse(site.Module.Name)
	if site.Class != nil {
		qualified = qualified.PushBack(site.Class.Name)
	}
	fx := &Fixture{
		FullName:   qualified.PushBack(fn.Name),
		Name:       fn.Name,
		ReturnType: e.fixtureReturnType(ctx, fn, site.Module.Stub),
		Scope:      ScopeFunction,
		Pos:        fn.Pos(),
		File:       site.File(),
	}
	fx.Arguments = e.TestArguments(fn, site, rep)

	call, ok := marker.(*pyast.Call)
	if !ok {
		return fx, nil
	}
	callee, err := e.typeOf(ctx, call.Func, RequiredWait)
	if err != nil {
		return nil, err
	}
	args := MapArguments(call.Args, e.Checker.CallSignatures(callee))
	if scope, ok := args["scope"]; ok {
		fx.Scope, err = e.fixtureScope(ctx, scope, rep)
		if err != nil {
			return nil, err
		}
	}
	if autouse, ok := args["autouse"]; ok {
		t, err := e.typeOf(ctx, autouse, RequiredWait)
		if err != nil {
			return nil, err
		}
		if lit, ok := t.(*types.LiteralType); ok && lit.Kind == types.LitBool {
			fx.Autouse = lit.Value.(bool)
		}
	}
	if alias, ok := args["name"]; ok {
		if _, isNone := alias.(*pyast.NoneLit); !isNone {
			name, ok, err := e.ParseName(ctx, alias, rep)
			if err != nil {
				return nil, err
			}
			if ok {
				fx.Name = name
			}
		}
	}
	return fx, nil
}

// isFixtureDecorator reports whether d's static type is the fixture
// marker, or a callable whose overloads may return it. For a call the
// callee is typed first; the arguments are only typed when the callee
// can produce the marker.
func (e *Env) isFixtureDecorator(ctx checker.Context, d pyast.Expr) (bool, error) {
	if call, ok := d.(*pyast.Call); ok {
		callee, err := e.typeOf(ctx, call.Func, RequiredWait)
		if err != nil {
			return false, err
		}
		if !returnsMarker(e.Checker.CallSignatures(callee)) {
			return false, nil
		}
	}
	t, err := e.typeOf(ctx, d, RequiredWait)
	if err != nil {
		return false, err
	}
	if inst, ok := t.(*types.Instance); ok {
		return inst.Is(fixtureMarkerType), nil
	}
	return returnsMarker(types.Signatures(t)), nil
}

func returnsMarker(sigs []*types.Callable) bool {
	for _, sig := range sigs {
		if inst, ok := sig.Ret.(*types.Instance); ok && inst.Is(fixtureMarkerType) {
			return true
		}
	}
	return false
}

func (e *Env) fixtureScope(ctx checker.Context, expr pyast.Expr, rep diag.Reporter) (Scope, error) {
	t, err := e.typeOf(ctx, expr, RequiredWait)
	if err != nil {
		return ScopeUnknown, err
	}
	if lit, ok := t.(*types.LiteralType); ok && lit.Kind == types.LitStr {
		if s, ok := scopeNames[lit.Value.(string)]; ok {
			return s, nil
		}
	}
	rep.Fail(taxonomy.InvalidFixtureScope,
		`Unable to resolve fixture scope: expected one of "function", "class", "module", "package", "session"`,
		expr.Pos())
	return ScopeUnknown, nil
}

// fixtureReturnType is the value a fixture provides. Generator fixtures
// provide what they yield. Stub bodies have no yield, so there a
// Generator annotation marks a generator fixture.
func (e *Env) fixtureReturnType(ctx checker.Context, fn *pyast.FuncDef, stub bool) types.Type {
	if fn.Returns == nil {
		return types.Any
	}
	ret := e.Checker.AnalyzeAnnotation(ctx, fn.Returns)
	inst, ok := ret.(*types.Instance)
	generator := fn.HasYield
	if stub && ok {
		generator = inst.Is("typing.Generator") || inst.Is("typing.AsyncGenerator")
	}
	if !generator {
		return ret
	}
	if !ok {
		return types.Any
	}
	for _, base := range []string{"typing.Iterator", "typing.AsyncIterator", "typing.Iterable", "typing.AsyncIterable"} {
		cls, ok := e.Checker.LookupClass(base)
		if !ok {
			continue
		}
		if mapped := types.MapToBase(inst, cls); mapped != nil {
			return mapped.Arg(0)
		}
	}
	return types.Any
}
