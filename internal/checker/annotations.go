package checker

import (
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// AnalyzeAnnotation converts a type expression into a type. Anything
// it cannot interpret becomes Any.
func (c *Checker) AnalyzeAnnotation(ctx Context, e pyast.Expr) types.Type {
	return c.annotation(ctx, e)
}

func (c *Checker) annotation(ctx Context, e pyast.Expr) types.Type {
	switch e := e.(type) {
	case nil:
		return types.Any
	case *pyast.NoneLit:
		return types.None
	case *pyast.StrLit:
		inner, err := pyast.ParseExpr(e.Value)
		if err != nil {
			return types.Any
		}
		return c.annotation(ctx, inner)
	case *pyast.BinOp:
		if e.Op == "|" {
			return types.MakeUnion(c.annotation(ctx, e.Left), c.annotation(ctx, e.Right))
		}
	case *pyast.Name, *pyast.Attribute:
		sym := c.resolveExprSymbol(ctx, e, true)
		if sym == nil {
			return types.Any
		}
		return c.symbolAsType(sym)
	case *pyast.Subscript:
		return c.subscriptAnnotation(ctx, e)
	}
	return types.Any
}

func (c *Checker) subscriptAnnotation(ctx Context, e *pyast.Subscript) types.Type {
	sym := c.resolveExprSymbol(ctx, e.Value, true)
	if sym == nil {
		return types.Any
	}
	index := flattenIndex(e.Index)
	if len(e.Index) == 0 {
		return c.symbolAsType(sym)
	}

	switch sym.FullName() {
	case "typing.Tuple", "builtins.tuple":
		return c.tupleAnnotation(ctx, e.Index)
	}
	if len(index) == 0 {
		return c.symbolAsType(sym)
	}

	switch sym.FullName() {
	case "typing.Optional":
		return types.Optional(c.annotation(ctx, index[0]))
	case "typing.Union":
		items := make([]types.Type, len(index))
		for i, x := range index {
			items[i] = c.annotation(ctx, x)
		}
		return types.MakeUnion(items...)
	case "typing.Literal":
		return c.literalAnnotation(ctx, index)
	case "typing.Callable":
		return c.callableAnnotation(ctx, index)
	case "typing.Type", "builtins.type":
		if inst, ok := c.annotation(ctx, index[0]).(*types.Instance); ok {
			return &types.TypeType{Item: inst}
		}
		return c.builtin("type")
	case "typing.Final", "typing.ClassVar", "typing.Annotated":
		return c.annotation(ctx, index[0])
	}

	inst, ok := c.symbolAsType(sym).(*types.Instance)
	if !ok {
		return types.Any
	}
	args := make([]types.Type, len(inst.Class.TypeVars))
	for i := range args {
		if i < len(index) {
			args[i] = c.annotation(ctx, index[i])
		} else {
			args[i] = types.Any
		}
	}
	return types.NewInstance(inst.Class, args...)
}

// symbolAsType interprets a symbol used in a type position.
func (c *Checker) symbolAsType(sym *Symbol) types.Type {
	switch sym.FullName() {
	case "typing.Any":
		return types.Any
	case "typing.NoReturn", "typing.Never":
		return types.Never
	case "typing.Callable":
		return &types.Callable{AnyParams: true, Ret: types.Any}
	case "typing.Tuple":
		return c.builtin("tuple", types.Any)
	case "typing.Type":
		return c.builtin("type")
	case "typing.Final", "typing.ClassVar", "typing.TypeAlias", "typing.Self",
		"typing.Optional", "typing.Union", "typing.Literal", "typing.Annotated",
		"typing.Generic", "typing.Protocol":
		return types.Any
	}

	switch sym.Kind {
	case SymClass:
		return anyInstance(c.classInfo(sym))
	case SymTypeVar:
		return c.typeVarOf(sym)
	case SymVar:
		return c.aliasTarget(sym)
	}
	return types.Any
}

// aliasTarget treats "Alias = list[int]" and "Alias: TypeAlias = ..." as
// type aliases.
func (c *Checker) aliasTarget(sym *Symbol) types.Type {
	if sym.Value == nil || sym.busy {
		return types.Any
	}
	ctx := c.symbolContext(sym)
	if sym.Annotation != nil {
		ann := c.resolveExprSymbol(ctx, sym.Annotation, true)
		if ann == nil || ann.FullName() != "typing.TypeAlias" {
			return types.Any
		}
	}
	sym.busy = true
	defer func() { sym.busy = false }()
	return c.annotation(ctx, sym.Value)
}

func (c *Checker) symbolContext(sym *Symbol) Context {
	ctx := Context{Module: c.modules[sym.Module]}
	if sym.Owner != nil {
		ctx.Class = c.classScope(sym.Owner)
	}
	return ctx
}

func (c *Checker) literalAnnotation(ctx Context, index []pyast.Expr) types.Type {
	items := make([]types.Type, 0, len(index))
	for _, e := range index {
		switch e := e.(type) {
		case *pyast.StrLit:
			items = append(items, c.strLiteral(e))
		case *pyast.IntLit:
			items = append(items, c.intLiteral(e.Value))
		case *pyast.UnaryOp:
			if lit, ok := e.Operand.(*pyast.IntLit); ok && e.Op == "-" {
				items = append(items, c.intLiteral(-lit.Value))
			} else {
				items = append(items, types.Any)
			}
		case *pyast.BoolLit:
			items = append(items, types.NewLiteral(types.LitBool, e.Value, c.builtin("bool")))
		case *pyast.NoneLit:
			items = append(items, types.None)
		case *pyast.Subscript, *pyast.Name, *pyast.Attribute:
			items = append(items, c.annotation(ctx, e))
		default:
			items = append(items, types.Any)
		}
	}
	return types.MakeUnion(items...)
}

func (c *Checker) callableAnnotation(ctx Context, index []pyast.Expr) types.Type {
	if len(index) != 2 {
		return &types.Callable{AnyParams: true, Ret: types.Any}
	}
	out := &types.Callable{Ret: c.annotation(ctx, index[1])}
	switch params := index[0].(type) {
	case *pyast.EllipsisLit:
		out.AnyParams = true
	case *pyast.ListExpr:
		for _, p := range params.Elts {
			out.Params = append(out.Params, types.Param{Kind: types.ArgPos, Type: c.annotation(ctx, p)})
		}
	default:
		out.AnyParams = true
	}
	out.TypeVars = types.CollectTypeVars(out)
	return out
}

func (c *Checker) tupleAnnotation(ctx Context, raw []pyast.Expr) types.Type {
	index := raw
	if len(raw) == 1 {
		if tup, ok := raw[0].(*pyast.TupleExpr); ok {
			if len(tup.Elts) == 0 {
				return c.Tuple()
			}
			index = tup.Elts
		}
	}
	if len(index) == 2 {
		if _, ok := index[1].(*pyast.EllipsisLit); ok {
			return c.builtin("tuple", c.annotation(ctx, index[0]))
		}
	}
	items := make([]types.Type, len(index))
	for i, x := range index {
		items[i] = c.annotation(ctx, x)
	}
	return c.Tuple(items...)
}

func (c *Checker) strLiteral(e *pyast.StrLit) types.Type {
	if e.IsBytes {
		return types.NewLiteral(types.LitBytes, e.Value, c.builtin("bytes"))
	}
	return types.NewLiteral(types.LitStr, e.Value, c.builtin("str"))
}

func (c *Checker) intLiteral(v int64) types.Type {
	return types.NewLiteral(types.LitInt, v, c.builtin("int"))
}
