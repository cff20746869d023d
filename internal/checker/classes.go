package checker

import (
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// classInfo builds the ClassInfo of a class symbol on first use. The
// info is registered before its bases are analyzed so self-referencing
// bases such as "class str(Sequence[str])" resolve.
func (c *Checker) classInfo(sym *Symbol) *types.ClassInfo {
	if sym.info != nil {
		return sym.info
	}
	info := types.NewClassInfo(sym.FullName())
	sym.info = info
	if c.classSyms == nil {
		c.classSyms = map[*types.ClassInfo]*Symbol{}
	}
	c.classSyms[info] = sym

	scope := c.classScope(sym)
	for name := range scope.Names {
		info.Members[name] = true
	}

	ctx := Context{Module: c.modules[sym.Module]}
	var explicit, implicit []*types.TypeVar
	haveExplicit := false
	for _, arg := range sym.Class.Bases {
		if arg.Kind != pyast.ArgPositional {
			continue
		}
		head, index := arg.Value, []pyast.Expr(nil)
		if sub, ok := arg.Value.(*pyast.Subscript); ok {
			head, index = sub.Value, flattenIndex(sub.Index)
		}
		target := c.resolveExprSymbol(ctx, head, false)
		if target == nil {
			continue
		}
		switch target.FullName() {
		case "typing.Protocol", "typing.Generic":
			if target.FullName() == "typing.Protocol" {
				info.IsProtocol = true
			}
			if len(index) > 0 {
				haveExplicit = true
				for _, e := range index {
					if tv, ok := c.annotation(ctx, e).(*types.TypeVar); ok {
						explicit = append(explicit, tv)
					}
				}
			}
			continue
		}
		if target.Kind != SymClass {
			continue
		}
		inst, ok := c.annotation(ctx, arg.Value).(*types.Instance)
		if !ok {
			continue
		}
		info.Bases = append(info.Bases, inst)
		implicit = append(implicit, types.CollectTypeVars(inst)...)
	}

	if haveExplicit {
		info.TypeVars = explicit
	} else {
		seen := map[*types.TypeVar]bool{}
		for _, tv := range implicit {
			if !seen[tv] {
				seen[tv] = true
				info.TypeVars = append(info.TypeVars, tv)
			}
		}
	}
	if len(info.Bases) == 0 && info.FullName != "builtins.object" {
		if obj := c.lookupQualified("builtins.object"); obj != nil && obj.Kind == SymClass {
			info.Bases = []*types.Instance{types.NewInstance(c.classInfo(obj))}
		}
	}
	return info
}

func (c *Checker) classSymbol(info *types.ClassInfo) *Symbol {
	return c.classSyms[info]
}

// selfInstance is the class instantiated with its own type variables.
func (c *Checker) selfInstance(sym *Symbol) *types.Instance {
	info := c.classInfo(sym)
	args := make([]types.Type, len(info.TypeVars))
	for i, tv := range info.TypeVars {
		args[i] = tv
	}
	return types.NewInstance(info, args...)
}

// anyInstance is the class instantiated with Any arguments.
func anyInstance(info *types.ClassInfo) *types.Instance {
	args := make([]types.Type, len(info.TypeVars))
	for i := range args {
		args[i] = types.Any
	}
	return types.NewInstance(info, args...)
}

// typeVarOf decodes a "T = TypeVar('T', bound=..., covariant=True)"
// declaration.
func (c *Checker) typeVarOf(sym *Symbol) *types.TypeVar {
	if sym.typeVar != nil {
		return sym.typeVar
	}
	tv := &types.TypeVar{Name: sym.Name, FullName: sym.FullName()}
	sym.typeVar = tv

	call, ok := sym.Value.(*pyast.Call)
	if !ok {
		return tv
	}
	ctx := Context{Module: c.modules[sym.Module]}
	var constraints []types.Type
	for i, arg := range call.Args {
		switch arg.Kind {
		case pyast.ArgPositional:
			if i == 0 {
				if s, ok := arg.Value.(*pyast.StrLit); ok {
					tv.Name = s.Value
				}
				continue
			}
			constraints = append(constraints, c.annotation(ctx, arg.Value))
		case pyast.ArgNamed:
			switch arg.Name {
			case "bound":
				tv.Bound = c.annotation(ctx, arg.Value)
			case "covariant":
				if b, ok := arg.Value.(*pyast.BoolLit); ok && b.Value {
					tv.Variance = types.Covariant
				}
			case "contravariant":
				if b, ok := arg.Value.(*pyast.BoolLit); ok && b.Value {
					tv.Variance = types.Contravariant
				}
			}
		}
	}
	if tv.Bound == nil && len(constraints) > 0 {
		tv.Bound = types.MakeUnion(constraints...)
	}
	return tv
}

func flattenIndex(index []pyast.Expr) []pyast.Expr {
	if len(index) == 1 {
		if tup, ok := index[0].(*pyast.TupleExpr); ok {
			return tup.Elts
		}
	}
	return index
}
