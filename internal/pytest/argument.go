package pytest

import (
	"fmt"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

// TestArgument is a validated formal parameter of a test or fixture.
type TestArgument struct {
	Name     string
	Type     types.Type
	TypeVars []*types.TypeVar
	Pos      pyast.Pos
	File     string
}

// TestArguments validates the parameters of fn. Positional-only,
// defaulted and variadic parameters are reported and left out. For
// methods the leading self or cls parameter is skipped.
func (e *Env) TestArguments(fn *pyast.FuncDef, site Site, rep diag.Reporter) []TestArgument {
	ctx := site.Context(e.Checker)
	params := fn.Params
	if site.Class != nil && len(params) > 0 && !isStatic(fn) {
		if k := params[0].Kind; k == pyast.ParamPosOnly || k == pyast.ParamPosOrKw {
			params = params[1:]
		}
	}
	var out []TestArgument
	for _, p := range params {
		switch {
		case p.Kind == pyast.ParamPosOnly:
			rep.Fail(taxonomy.PosOnlyArg, fmt.Sprintf("Argument %q of %q is positional-only", p.Name, fn.Name), p.Pos())
		case p.Kind == pyast.ParamVarPos:
			rep.Fail(taxonomy.VarPosArg, fmt.Sprintf("%q accepts variadic positional arguments \"*%s\"", fn.Name, p.Name), p.Pos())
		case p.Kind == pyast.ParamVarKw:
			rep.Fail(taxonomy.VarKeywordArg, fmt.Sprintf("%q accepts variadic keyword arguments \"**%s\"", fn.Name, p.Name), p.Pos())
		case p.Default != nil:
			rep.Fail(taxonomy.OptArg, fmt.Sprintf("Argument %q of %q has a default value", p.Name, fn.Name), p.Pos())
		default:
			out = append(out, e.testArgument(ctx, p, site.File()))
		}
	}
	return out
}

func (e *Env) testArgument(ctx checker.Context, p *pyast.Param, file string) TestArgument {
	t := types.Any
	if p.Annotation != nil {
		t = e.Checker.AnalyzeAnnotation(ctx, p.Annotation)
	}
	return TestArgument{
		Name:     p.Name,
		Type:     t,
		TypeVars: types.CollectTypeVars(t),
		Pos:      p.Pos(),
		File:     file,
	}
}

func isStatic(fn *pyast.FuncDef) bool {
	for _, d := range fn.Decorators {
		if pyast.DottedName(d) == "staticmethod" {
			return true
		}
	}
	return false
}
