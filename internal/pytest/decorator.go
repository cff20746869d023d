package pytest

import (
	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

// DecoratorWrapper is a recognized parametrize decorator call.
type DecoratorWrapper struct {
	Call *pyast.Call

	sigs     []*types.Callable
	resolved bool
	names    pyast.Expr
	values   pyast.Expr
}

// ParametrizeDecorator recognizes d as a call of the parametrize mark.
// It returns nil for any other decorator.
func (e *Env) ParametrizeDecorator(ctx checker.Context, d pyast.Expr) (*DecoratorWrapper, error) {
	call, ok := d.(*pyast.Call)
	if !ok {
		return nil, nil
	}
	callee, err := e.typeOf(ctx, call.Func, RequiredWait)
	if err != nil {
		return nil, err
	}
	inst, ok := callee.(*types.Instance)
	if !ok || !inst.Is(parametrizeMarkerType) {
		return nil, nil
	}
	return &DecoratorWrapper{Call: call, sigs: e.Checker.CallSignatures(inst)}, nil
}

// Pair returns the argnames and argvalues expressions. When either
// cannot be identified, because the call spreads its arguments, it is
// reported once and ok is false.
func (w *DecoratorWrapper) Pair(rep diag.Reporter) (argnames, argvalues pyast.Expr, ok bool) {
	if !w.resolved {
		w.resolved = true
		args := MapArguments(w.Call.Args, w.sigs)
		w.names, w.values = args["argnames"], args["argvalues"]
		if w.names == nil || w.values == nil {
			rep.Fail(taxonomy.VariadicArgnamesArgvalues,
				"Unable to identify argnames and argvalues: parametrize was called with unpacked arguments",
				w.Call.Pos())
		}
	}
	if w.names == nil || w.values == nil {
		return nil, nil, false
	}
	return w.names, w.values, true
}

// UsefixturesDecorator recognizes d as a call of the usefixtures mark
// and returns its arguments.
func (e *Env) UsefixturesDecorator(ctx checker.Context, d pyast.Expr) ([]*pyast.Arg, bool, error) {
	call, ok := d.(*pyast.Call)
	if !ok {
		return nil, false, nil
	}
	callee, err := e.typeOf(ctx, call.Func, RequiredWait)
	if err != nil {
		return nil, false, err
	}
	inst, ok := callee.(*types.Instance)
	if !ok || !inst.Is(usefixturesMarkerType) {
		return nil, false, nil
	}
	return call.Args, true, nil
}
