package checker

import (
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// TypeOf computes the static type of an expression. It returns
// ErrNotReady when the expression depends on a module variable whose
// definition comes after the statement being analyzed, outside the
// final pass.
func (c *Checker) TypeOf(ctx Context, e pyast.Expr) (types.Type, error) {
	switch e := e.(type) {
	case nil:
		return types.Any, nil
	case *pyast.StrLit:
		if e.IsFString {
			return c.builtin("str"), nil
		}
		return c.strLiteral(e), nil
	case *pyast.IntLit:
		if e.Big {
			return c.builtin("int"), nil
		}
		return c.intLiteral(e.Value), nil
	case *pyast.FloatLit:
		if e.Complex {
			return c.builtin("complex"), nil
		}
		return c.builtin("float"), nil
	case *pyast.BoolLit:
		return types.NewLiteral(types.LitBool, e.Value, c.builtin("bool")), nil
	case *pyast.NoneLit:
		return types.None, nil
	case *pyast.EllipsisLit:
		return c.builtin("ellipsis"), nil
	case *pyast.TupleExpr:
		return c.tupleType(ctx, e)
	case *pyast.ListExpr:
		elem, err := c.joinElements(ctx, e.Elts)
		if err != nil {
			return nil, err
		}
		return c.builtin("list", elem), nil
	case *pyast.SetExpr:
		elem, err := c.joinElements(ctx, e.Elts)
		if err != nil {
			return nil, err
		}
		return c.builtin("set", elem), nil
	case *pyast.DictExpr:
		return c.dictType(ctx, e)
	case *pyast.Name:
		sym := c.lookupName(ctx, e.ID, false)
		if sym == nil {
			return types.Any, nil
		}
		return c.symbolType(sym)
	case *pyast.Attribute:
		return c.attributeType(ctx, e)
	case *pyast.Call:
		return c.callType(ctx, e)
	case *pyast.Subscript:
		return c.subscriptType(ctx, e)
	case *pyast.UnaryOp:
		return c.unaryType(ctx, e)
	case *pyast.BinOp:
		return c.binaryType(ctx, e)
	case *pyast.Starred:
		return c.TypeOf(ctx, e.Value)
	case *pyast.Other:
		switch e.Kind {
		case "comparison_operator", "not_operator":
			return c.builtin("bool"), nil
		case "list_comprehension":
			return c.builtin("list", types.Any), nil
		case "set_comprehension":
			return c.builtin("set", types.Any), nil
		case "dictionary_comprehension":
			return c.builtin("dict", types.Any, types.Any), nil
		case "generator_expression":
			return c.NamedType("typing.Generator", types.Any, types.None, types.None), nil
		case "lambda":
			return &types.Callable{AnyParams: true, Ret: types.Any}, nil
		}
	}
	return types.Any, nil
}

func (c *Checker) tupleType(ctx Context, e *pyast.TupleExpr) (types.Type, error) {
	if pyast.HasStarred(e.Elts) {
		elem, err := c.joinElements(ctx, e.Elts)
		if err != nil {
			return nil, err
		}
		return c.builtin("tuple", elem), nil
	}
	items := make([]types.Type, len(e.Elts))
	for i, elt := range e.Elts {
		t, err := c.TypeOf(ctx, elt)
		if err != nil {
			return nil, err
		}
		items[i] = t
	}
	return c.Tuple(items...), nil
}

// joinElements is the element type of a display: the union of the
// widened item types, with spreads contributing their element type.
// An empty display is Any.
func (c *Checker) joinElements(ctx Context, elts []pyast.Expr) (types.Type, error) {
	if len(elts) == 0 {
		return types.Any, nil
	}
	items := make([]types.Type, 0, len(elts))
	for _, elt := range elts {
		if st, ok := elt.(*pyast.Starred); ok {
			t, err := c.TypeOf(ctx, st.Value)
			if err != nil {
				return nil, err
			}
			items = append(items, c.ElementType(t))
			continue
		}
		t, err := c.TypeOf(ctx, elt)
		if err != nil {
			return nil, err
		}
		items = append(items, Widen(t))
	}
	return types.MakeUnion(items...), nil
}

func (c *Checker) dictType(ctx Context, e *pyast.DictExpr) (types.Type, error) {
	if len(e.Keys) == 0 {
		return c.builtin("dict", types.Any, types.Any), nil
	}
	var keys, values []types.Type
	for i := range e.Keys {
		if e.Keys[i] == nil {
			t, err := c.TypeOf(ctx, e.Values[i])
			if err != nil {
				return nil, err
			}
			if inst, ok := t.(*types.Instance); ok {
				if m, ok := c.LookupClass("typing.Mapping"); ok {
					if mapped := types.MapToBase(inst, m); mapped != nil {
						keys = append(keys, mapped.Arg(0))
						values = append(values, mapped.Arg(1))
						continue
					}
				}
			}
			keys, values = append(keys, types.Any), append(values, types.Any)
			continue
		}
		k, err := c.TypeOf(ctx, e.Keys[i])
		if err != nil {
			return nil, err
		}
		v, err := c.TypeOf(ctx, e.Values[i])
		if err != nil {
			return nil, err
		}
		keys, values = append(keys, Widen(k)), append(values, Widen(v))
	}
	return c.builtin("dict", types.MakeUnion(keys...), types.MakeUnion(values...)), nil
}

func (c *Checker) unaryType(ctx Context, e *pyast.UnaryOp) (types.Type, error) {
	if lit, ok := e.Operand.(*pyast.IntLit); ok && !lit.Big {
		switch e.Op {
		case "-":
			return c.intLiteral(-lit.Value), nil
		case "+":
			return c.intLiteral(lit.Value), nil
		}
	}
	t, err := c.TypeOf(ctx, e.Operand)
	if err != nil {
		return nil, err
	}
	return Widen(t), nil
}

func (c *Checker) binaryType(ctx Context, e *pyast.BinOp) (types.Type, error) {
	l, err := c.TypeOf(ctx, e.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.TypeOf(ctx, e.Right)
	if err != nil {
		return nil, err
	}
	l, r = Widen(l), Widen(r)
	li, lok := l.(*types.Instance)
	ri, rok := r.(*types.Instance)
	if !lok || !rok {
		return types.Any, nil
	}
	switch {
	case li.Class == ri.Class && len(li.Args) == 0:
		if e.Op == "/" && li.Is("builtins.int") {
			return c.builtin("float"), nil
		}
		return li, nil
	case li.Is("builtins.int") && ri.Is("builtins.float"), li.Is("builtins.float") && ri.Is("builtins.int"):
		return c.builtin("float"), nil
	}
	return types.Any, nil
}

func (c *Checker) subscriptType(ctx Context, e *pyast.Subscript) (types.Type, error) {
	base, err := c.TypeOf(ctx, e.Value)
	if err != nil {
		return nil, err
	}
	if tup, ok := base.(*types.TupleType); ok && len(e.Index) == 1 {
		if lit, ok := e.Index[0].(*pyast.IntLit); ok && !lit.Big {
			i := int(lit.Value)
			if i < 0 {
				i += len(tup.Items)
			}
			if i >= 0 && i < len(tup.Items) {
				return tup.Items[i], nil
			}
		}
		base = tup.Fallback
	}
	inst, ok := base.(*types.Instance)
	if !ok {
		return types.Any, nil
	}
	getitem, found := c.memberType(inst, "__getitem__")
	if !found {
		return types.Any, nil
	}
	if sigs := types.Signatures(getitem); len(sigs) > 0 {
		return types.Erase(sigs[0].Ret), nil
	}
	return types.Any, nil
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// symbolType is the type of a name used as a value.
func (c *Checker) symbolType(sym *Symbol) (types.Type, error) {
	switch sym.Kind {
	case SymModule:
		return &types.ModuleType{Name: sym.Target}, nil
	case SymClass:
		return &types.TypeType{Item: anyInstance(c.classInfo(sym))}, nil
	case SymFunc:
		return c.funcType(sym), nil
	case SymVar:
		return c.varType(sym)
	}
	return types.Any, nil
}

func (c *Checker) varType(sym *Symbol) (types.Type, error) {
	ctx := c.symbolContext(sym)
	if sym.Annotation != nil && !c.isBareQualifier(ctx, sym.Annotation) {
		if sym.typ == nil {
			sym.typ = c.annotation(ctx, sym.Annotation)
		}
		return sym.typ, nil
	}
	if sym.typ != nil {
		return sym.typ, nil
	}
	if !c.final && sym.Owner == nil && sym.Module == c.current && sym.Index > c.index {
		return nil, ErrNotReady
	}
	if sym.Value == nil || sym.busy {
		return types.Any, nil
	}
	sym.busy = true
	t, err := c.TypeOf(ctx, sym.Value)
	sym.busy = false
	if err != nil {
		return nil, err
	}
	sym.typ = t
	return t, nil
}

// isBareQualifier reports annotations such as a bare Final whose type
// is inferred from the value.
func (c *Checker) isBareQualifier(ctx Context, ann pyast.Expr) bool {
	sym := c.resolveExprSymbol(ctx, ann, true)
	if sym == nil {
		return false
	}
	switch sym.FullName() {
	case "typing.Final", "typing.TypeAlias":
		return true
	}
	return false
}

func (c *Checker) funcType(sym *Symbol) types.Type {
	if sym.typ != nil {
		return sym.typ
	}
	ctx := c.symbolContext(sym)
	var classVars map[*types.TypeVar]bool
	if sym.Owner != nil {
		classVars = map[*types.TypeVar]bool{}
		for _, tv := range c.classInfo(sym.Owner).TypeVars {
			classVars[tv] = true
		}
	}
	items := make([]*types.Callable, 0, len(sym.Funcs))
	for _, fn := range sym.Funcs {
		items = append(items, c.callableOf(ctx, fn, sym.FullName(), classVars))
	}
	if len(items) == 1 {
		sym.typ = items[0]
	} else {
		sym.typ = &types.Overloaded{Items: items}
	}
	return sym.typ
}

// FuncType returns the signature of a function definition.
func (c *Checker) FuncType(ctx Context, fn *pyast.FuncDef) *types.Callable {
	fullname := fn.Name
	if ctx.Module != nil {
		fullname = ctx.Module.Name + "." + fn.Name
	}
	return c.callableOf(ctx, fn, fullname, nil)
}

func (c *Checker) callableOf(ctx Context, fn *pyast.FuncDef, fullname string, classVars map[*types.TypeVar]bool) *types.Callable {
	out := &types.Callable{Name: fn.Name, FullName: fullname}
	for _, p := range fn.Params {
		t := types.Any
		if p.Annotation != nil {
			t = c.annotation(ctx, p.Annotation)
		}
		param := types.Param{Name: p.Name, Type: t}
		hasDefault := p.Default != nil
		switch p.Kind {
		case pyast.ParamPosOnly:
			param.Name = ""
			param.Kind = pick(hasDefault, types.ArgOpt, types.ArgPos)
		case pyast.ParamPosOrKw:
			param.Kind = pick(hasDefault, types.ArgOpt, types.ArgPos)
		case pyast.ParamKwOnly:
			param.Kind = pick(hasDefault, types.ArgNamedOpt, types.ArgNamed)
		case pyast.ParamVarPos:
			param.Kind = types.ArgStar
		case pyast.ParamVarKw:
			param.Kind = types.ArgStar2
		}
		out.Params = append(out.Params, param)
	}
	out.Ret = types.Any
	if fn.Returns != nil {
		out.Ret = c.annotation(ctx, fn.Returns)
	}
	if fn.IsAsync {
		out.Ret = c.NamedType("typing.Coroutine", types.Any, types.Any, out.Ret)
	}
	for _, tv := range types.CollectTypeVars(out) {
		if !classVars[tv] {
			out.TypeVars = append(out.TypeVars, tv)
		}
	}
	return out
}

func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// ---------------------------------------------------------------------------
// Attributes
// ---------------------------------------------------------------------------

func (c *Checker) attributeType(ctx Context, e *pyast.Attribute) (types.Type, error) {
	// Module and class members resolve through the symbol table so
	// that submodules and nested classes work without values.
	if owner := c.resolveExprSymbol(ctx, e.Value, false); owner != nil && (owner.Kind == SymModule || owner.Kind == SymClass) {
		if owner.Kind == SymClass {
			return c.classAttribute(c.classInfo(owner), e.Attr), nil
		}
		member := c.memberSymbol(owner, e.Attr)
		if member == nil {
			return types.Any, nil
		}
		return c.symbolType(member)
	}

	base, err := c.TypeOf(ctx, e.Value)
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case *types.LiteralType:
		base = b.Fallback
	case *types.TupleType:
		base = b.Fallback
	}
	inst, ok := base.(*types.Instance)
	if !ok {
		return types.Any, nil
	}
	t, _ := c.memberType(inst, e.Attr)
	return t, nil
}

// memberType looks up an attribute of an instance through the MRO,
// binding methods and substituting class type arguments. A class
// __getattr__ answers for unknown names.
func (c *Checker) memberType(inst *types.Instance, name string) (types.Type, bool) {
	for _, k := range inst.Class.MRO() {
		ks := c.classSymbol(k)
		if ks == nil {
			continue
		}
		member := c.resolveImport(c.classScope(ks).Names[name])
		if member == nil {
			continue
		}
		env := map[*types.TypeVar]types.Type{}
		if mapped := types.MapToBase(inst, k); mapped != nil {
			env = types.Bindings(mapped)
		}
		switch member.Kind {
		case SymFunc:
			ft := c.funcType(member)
			if member.HasDecorator("property") {
				if sigs := types.Signatures(ft); len(sigs) > 0 {
					return types.Substitute(sigs[0].Ret, env), true
				}
				return types.Any, true
			}
			if member.HasDecorator("staticmethod") {
				return types.Substitute(ft, env), true
			}
			return types.Substitute(bind(ft), env), true
		case SymVar:
			t, err := c.varType(member)
			if err != nil {
				return types.Any, true
			}
			return types.Substitute(t, env), true
		case SymClass:
			return &types.TypeType{Item: anyInstance(c.classInfo(member))}, true
		}
		return types.Any, true
	}
	if name != "__getattr__" {
		if getattr, ok := c.memberType(inst, "__getattr__"); ok {
			if sigs := types.Signatures(getattr); len(sigs) > 0 {
				return sigs[0].Ret, true
			}
		}
	}
	return types.Any, false
}

// classAttribute is an attribute read from the class object itself.
func (c *Checker) classAttribute(info *types.ClassInfo, name string) types.Type {
	for _, k := range info.MRO() {
		ks := c.classSymbol(k)
		if ks == nil {
			continue
		}
		member := c.resolveImport(c.classScope(ks).Names[name])
		if member == nil {
			continue
		}
		switch member.Kind {
		case SymFunc:
			ft := c.funcType(member)
			if member.HasDecorator("classmethod") {
				return bind(ft)
			}
			return ft
		case SymVar:
			t, err := c.varType(member)
			if err != nil {
				return types.Any
			}
			return t
		case SymClass:
			return &types.TypeType{Item: anyInstance(c.classInfo(member))}
		}
	}
	return types.Any
}

func bind(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.Callable:
		return t.Bind()
	case *types.Overloaded:
		items := make([]*types.Callable, len(t.Items))
		for i, item := range t.Items {
			items[i] = item.Bind()
		}
		return &types.Overloaded{Items: items}
	}
	return t
}

// ElementType is the iteration element type of t, or Any.
func (c *Checker) ElementType(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.TupleType:
		return t.Fallback.Arg(0)
	case *types.Instance:
		if it, ok := c.LookupClass("typing.Iterable"); ok {
			if mapped := types.MapToBase(t, it); mapped != nil {
				return mapped.Arg(0)
			}
		}
	}
	return types.Any
}

// Widen replaces literal types by their fallbacks, recursively through
// tuples and unions.
func Widen(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.LiteralType:
		return t.Fallback
	case *types.TupleType:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = Widen(item)
		}
		return types.NewTuple(items, t.Fallback.Class)
	case *types.UnionType:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = Widen(item)
		}
		return types.MakeUnion(items...)
	}
	return t
}
