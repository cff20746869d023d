package pytest

import (
	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// Argvalues wraps the argvalues expression of a parametrize call.
type Argvalues struct {
	Expr pyast.Expr
}

// IsLiteral reports whether the expression is a tuple, list or set
// display without unpacking, whose items are individual test cases.
func (a Argvalues) IsLiteral() bool {
	switch a.Expr.(type) {
	case *pyast.TupleExpr, *pyast.ListExpr, *pyast.SetExpr:
		return !pyast.HasStarred(sequenceElements(a.Expr))
	}
	return false
}

// Items returns the test cases of a literal argvalues expression.
func (a Argvalues) Items() []TestCase {
	if !a.IsLiteral() {
		panic("pytest: Argvalues.Items on a non-literal expression")
	}
	elts := sequenceElements(a.Expr)
	out := make([]TestCase, len(elts))
	for i, elt := range elts {
		out[i] = TestCase{Expr: elt}
	}
	return out
}

// CheckAgainst checks every test case against sig: item by item for a
// literal sequence, as a whole otherwise.
func (a Argvalues) CheckAgainst(e *Env, ctx checker.Context, sig TestSignature) error {
	if !a.IsLiteral() {
		return sig.CheckSequence(a.Expr)
	}
	for _, tc := range a.Items() {
		if err := tc.CheckAgainst(e, ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

// TestCase wraps one element of a literal argvalues sequence.
type TestCase struct {
	Expr pyast.Expr
}

// CheckAgainst dispatches the test case to the matching shape of sig.
// A param(...) call without unpacking has its positional values checked
// one per argname; a single-argname signature takes the item whole; a
// tuple or list display is checked item-wise; anything else is checked
// whole as a test case.
func (tc TestCase) CheckAgainst(e *Env, ctx checker.Context, sig TestSignature) error {
	if call, ok := tc.Expr.(*pyast.Call); ok {
		values, isParam, err := tc.paramValues(e, ctx, call)
		if err != nil {
			return err
		}
		if isParam {
			return sig.CheckItems(values, call)
		}
	}
	if sig.Single() {
		return sig.CheckTestCase(tc.Expr)
	}
	switch x := tc.Expr.(type) {
	case *pyast.TupleExpr, *pyast.ListExpr:
		elts := sequenceElements(x)
		args := make([]*pyast.Arg, len(elts))
		for i, elt := range elts {
			kind := pyast.ArgPositional
			value := elt
			if st, ok := elt.(*pyast.Starred); ok {
				kind, value = pyast.ArgStar, st.Value
			}
			args[i] = &pyast.Arg{Loc: pyast.Loc{Start: elt.Pos()}, Kind: kind, Value: value}
		}
		return sig.CheckItems(args, tc.Expr)
	}
	return sig.CheckTestCase(tc.Expr)
}

// paramValues returns the positional arguments of a param(...) call
// that passes only positional and named arguments.
func (tc TestCase) paramValues(e *Env, ctx checker.Context, call *pyast.Call) ([]*pyast.Arg, bool, error) {
	callee, err := e.typeOf(ctx, call.Func, RequiredWait)
	if err != nil {
		return nil, false, err
	}
	fn, ok := callee.(*types.Callable)
	if !ok || fn.FullName != paramFunction {
		return nil, false, nil
	}
	var values []*pyast.Arg
	for _, arg := range call.Args {
		switch arg.Kind {
		case pyast.ArgPositional:
			values = append(values, arg)
		case pyast.ArgNamed:
		default:
			return nil, false, nil
		}
	}
	return values, true, nil
}
