package pytest

import (
	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// MapArguments returns formal name to actual expression for the
// arguments of a call that bind unambiguously: a positional or named
// actual bound to exactly one named formal that accepts positional or
// keyword passing. With several signatures (an overload set) a name is
// kept only when every signature maps it to the same expression.
func MapArguments(args []*pyast.Arg, sigs []*types.Callable) map[string]pyast.Expr {
	var out map[string]pyast.Expr
	for i, sig := range sigs {
		m := mapSignature(args, sig)
		if i == 0 {
			out = m
			continue
		}
		for name, expr := range out {
			if m[name] != expr {
				delete(out, name)
			}
		}
	}
	if out == nil {
		out = map[string]pyast.Expr{}
	}
	return out
}

func mapSignature(args []*pyast.Arg, sig *types.Callable) map[string]pyast.Expr {
	out := map[string]pyast.Expr{}
	if sig.AnyParams {
		return out
	}
	formalToActual := checker.MapActualsToFormals(args, sig)
	actualToFormal := make([][]int, len(args))
	for fi, actuals := range formalToActual {
		for _, ai := range actuals {
			actualToFormal[ai] = append(actualToFormal[ai], fi)
		}
	}
	for ai, formals := range actualToFormal {
		if len(formals) != 1 {
			continue
		}
		switch args[ai].Kind {
		case pyast.ArgPositional, pyast.ArgNamed:
		default:
			continue
		}
		fi := formals[0]
		p := sig.Params[fi]
		if p.Name == "" {
			continue
		}
		switch p.Kind {
		case types.ArgPos, types.ArgOpt, types.ArgNamed, types.ArgNamedOpt:
			out[p.Name] = args[ai].Value
		}
	}
	return out
}
