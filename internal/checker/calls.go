package checker

import (
	"fmt"
	"strings"

	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

const paramFullName = "_pytest.mark.structures.param"

// MapActualsToFormals binds call arguments to the formals of sig. The
// result has one entry per formal listing the indices of the actuals
// bound to it. A "*" actual binds every remaining positional formal and
// a "**" actual every named formal not yet bound.
func MapActualsToFormals(args []*pyast.Arg, sig *types.Callable) [][]int {
	out := make([][]int, len(sig.Params))
	fi := 0
	for ai, arg := range args {
		switch arg.Kind {
		case pyast.ArgPositional:
			for fi < len(sig.Params) && !isPositionalFormal(sig.Params[fi].Kind) {
				fi++
			}
			if fi >= len(sig.Params) {
				continue
			}
			out[fi] = append(out[fi], ai)
			if sig.Params[fi].Kind != types.ArgStar {
				fi++
			}
		case pyast.ArgStar:
			for fi < len(sig.Params) && isPositionalFormal(sig.Params[fi].Kind) {
				out[fi] = append(out[fi], ai)
				if sig.Params[fi].Kind == types.ArgStar {
					break
				}
				fi++
			}
		case pyast.ArgNamed:
			if i := formalByName(sig, arg.Name); i >= 0 {
				out[i] = append(out[i], ai)
			} else if i := formalOfKind(sig, types.ArgStar2); i >= 0 {
				out[i] = append(out[i], ai)
			}
		case pyast.ArgStarStar:
			for i, p := range sig.Params {
				switch p.Kind {
				case types.ArgPos, types.ArgOpt, types.ArgNamed, types.ArgNamedOpt:
					if p.Name != "" && len(out[i]) == 0 {
						out[i] = append(out[i], ai)
					}
				case types.ArgStar2:
					out[i] = append(out[i], ai)
				}
			}
		}
	}
	return out
}

func isPositionalFormal(k types.ParamKind) bool {
	return k == types.ArgPos || k == types.ArgOpt || k == types.ArgStar
}

func formalByName(sig *types.Callable, name string) int {
	for i, p := range sig.Params {
		if p.Name != name || p.Name == "" {
			continue
		}
		switch p.Kind {
		case types.ArgPos, types.ArgOpt, types.ArgNamed, types.ArgNamedOpt:
			return i
		}
	}
	return -1
}

func formalOfKind(sig *types.Callable, kind types.ParamKind) int {
	for i, p := range sig.Params {
		if p.Kind == kind {
			return i
		}
	}
	return -1
}

// CallSignatures returns the signatures used when t is called:
// callables directly, instances through a bound __call__, class
// objects through their bound __init__ returning the instance.
func (c *Checker) CallSignatures(t types.Type) []*types.Callable {
	switch t := t.(type) {
	case *types.Callable, *types.Overloaded:
		return types.Signatures(t)
	case *types.Instance:
		call, ok := c.memberType(t, "__call__")
		if !ok {
			return nil
		}
		return types.Signatures(call)
	case *types.TypeType:
		return c.constructorSignatures(t.Item)
	}
	return nil
}

func (c *Checker) constructorSignatures(item *types.Instance) []*types.Callable {
	sym := c.classSymbol(item.Class)
	if sym == nil {
		return nil
	}
	self := c.selfInstance(sym)
	var init types.Type
	for _, k := range item.Class.MRO() {
		ks := c.classSymbol(k)
		if ks == nil || k.FullName == "builtins.object" {
			continue
		}
		member := c.resolveImport(c.classScope(ks).Names["__init__"])
		if member == nil || member.Kind != SymFunc {
			continue
		}
		env := map[*types.TypeVar]types.Type{}
		if mapped := types.MapToBase(self, k); mapped != nil {
			env = types.Bindings(mapped)
		}
		init = types.Substitute(bind(c.funcType(member)), env)
		break
	}
	sigs := types.Signatures(init)
	if len(sigs) == 0 {
		sigs = []*types.Callable{{}}
	}
	out := make([]*types.Callable, len(sigs))
	for i, s := range sigs {
		ctor := *s
		ctor.Name = item.Class.Name
		ctor.FullName = item.Class.FullName
		ctor.Ret = self
		ctor.TypeVars = append(append([]*types.TypeVar{}, item.Class.TypeVars...), s.TypeVars...)
		out[i] = &ctor
	}
	return out
}

// CheckCall checks a call of callee with args and reports arity and
// argument type errors to rep. Errors that concern the call as a whole
// are attributed to callCtx. It returns the inferred result type.
func (c *Checker) CheckCall(ctx Context, callee types.Type, args []*pyast.Arg, callCtx pyast.Node, rep diag.Reporter) (types.Type, error) {
	argTypes, err := c.argTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return c.checkCallTypes(callee, args, argTypes, callCtx, rep), nil
}

func (c *Checker) argTypes(ctx Context, args []*pyast.Arg) ([]types.Type, error) {
	out := make([]types.Type, len(args))
	for i, arg := range args {
		t, err := c.TypeOf(ctx, arg.Value)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (c *Checker) callType(ctx Context, e *pyast.Call) (types.Type, error) {
	callee, err := c.TypeOf(ctx, e.Func)
	if err != nil {
		return nil, err
	}
	argTypes, err := c.argTypes(ctx, e.Args)
	if err != nil {
		return nil, err
	}
	if fn, ok := callee.(*types.Callable); ok && fn.FullName == paramFullName {
		return c.parameterSet(e.Args, argTypes), nil
	}
	return c.checkCallTypes(callee, e.Args, argTypes, e, diag.Reporter{}), nil
}

// parameterSet types a pytest.param(...) call: one positional value
// gives ParameterSet[T], several give ParameterSet[tuple[...]].
func (c *Checker) parameterSet(args []*pyast.Arg, argTypes []types.Type) types.Type {
	var items []types.Type
	for i, arg := range args {
		switch arg.Kind {
		case pyast.ArgPositional:
			items = append(items, argTypes[i])
		case pyast.ArgStar:
			return c.NamedType("_pytest.mark.structures.ParameterSet", types.Any)
		}
	}
	if len(items) == 1 {
		return c.NamedType("_pytest.mark.structures.ParameterSet", items[0])
	}
	return c.NamedType("_pytest.mark.structures.ParameterSet", c.Tuple(items...))
}

// checkCallTypes picks the signature to check against. Among overloads
// the first that accepts the arguments wins; failing that, the first
// whose arity matches gives the result type and no errors are reported
// for it.
func (c *Checker) checkCallTypes(callee types.Type, args []*pyast.Arg, argTypes []types.Type, callCtx pyast.Node, rep diag.Reporter) types.Type {
	if types.IsAny(callee) {
		return types.Any
	}
	sigs := c.CallSignatures(callee)
	switch len(sigs) {
	case 0:
		return types.Any
	case 1:
		res := c.checkSignature(sigs[0], args, argTypes, callCtx, rep)
		return res.ret
	}
	var arityMatch *callResult
	for _, sig := range sigs {
		res := c.checkSignature(sig, args, argTypes, callCtx, diag.Reporter{})
		if res.arityOK && res.typesOK {
			return res.ret
		}
		if res.arityOK && arityMatch == nil {
			arityMatch = &res
		}
	}
	name := sigs[0].Name
	if name == "" {
		name = "function"
	}
	var shown []string
	for _, t := range argTypes {
		shown = append(shown, Display(t))
	}
	noun := "type"
	if len(shown) != 1 {
		noun = "types"
	}
	rep.Fail(taxonomy.ArgType,
		fmt.Sprintf("No overload variant of %q matches argument %s %s", name, noun, quoteJoin(shown)),
		callCtx.Pos())
	if arityMatch != nil {
		return arityMatch.ret
	}
	return types.Any
}

type callResult struct {
	ret     types.Type
	arityOK bool
	typesOK bool
}

func (c *Checker) checkSignature(sig *types.Callable, args []*pyast.Arg, argTypes []types.Type, callCtx pyast.Node, rep diag.Reporter) callResult {
	res := callResult{ret: sig.Ret, arityOK: true, typesOK: true}
	if res.ret == nil {
		res.ret = types.Any
	}
	if sig.AnyParams {
		return res
	}
	name := sig.Name
	if name == "" {
		name = "function"
	}
	pos := callCtx.Pos()
	f2a := MapActualsToFormals(args, sig)

	fail := func(code taxonomy.Code, msg string, at pyast.Pos) {
		if code == taxonomy.CallArg {
			res.arityOK = false
		} else {
			res.typesOK = false
		}
		rep.Fail(code, msg, at)
	}

	// Arity.
	mapped := make([]bool, len(args))
	for _, actuals := range f2a {
		for _, ai := range actuals {
			mapped[ai] = true
		}
	}
	tooMany := false
	for ai, arg := range args {
		if mapped[ai] {
			continue
		}
		switch arg.Kind {
		case pyast.ArgPositional:
			tooMany = true
		case pyast.ArgNamed:
			fail(taxonomy.CallArg, fmt.Sprintf("Unexpected keyword argument %q for %q", arg.Name, name), pos)
		}
	}
	if tooMany {
		fail(taxonomy.CallArg, fmt.Sprintf("Too many arguments for %q", name), pos)
	}

	var missingPos, missingNamed []string
	tooFew := false
	for fi, p := range sig.Params {
		if len(f2a[fi]) > 0 {
			continue
		}
		switch {
		case p.Kind == types.ArgPos && p.Name == "":
			tooFew = true
		case p.Kind == types.ArgPos:
			missingPos = append(missingPos, p.Name)
		case p.Kind == types.ArgNamed:
			missingNamed = append(missingNamed, p.Name)
		}
	}
	switch {
	case tooFew:
		fail(taxonomy.CallArg, fmt.Sprintf("Too few arguments for %q", name), pos)
	case len(missingPos) == 1:
		fail(taxonomy.CallArg, fmt.Sprintf("Missing positional argument %q in call to %q", missingPos[0], name), pos)
	case len(missingPos) > 1:
		fail(taxonomy.CallArg, fmt.Sprintf("Missing positional arguments %s in call to %q", quoteJoin(missingPos), name), pos)
	}
	for _, n := range missingNamed {
		fail(taxonomy.CallArg, fmt.Sprintf("Missing named argument %q for %q", n, name), pos)
	}

	for fi, p := range sig.Params {
		if p.Kind == types.ArgStar || p.Kind == types.ArgStar2 {
			continue
		}
		direct := 0
		for _, ai := range f2a[fi] {
			if args[ai].Kind == pyast.ArgPositional || args[ai].Kind == pyast.ArgNamed {
				direct++
			}
		}
		if direct > 1 && p.Name != "" {
			fail(taxonomy.CallArg, fmt.Sprintf("%q gets multiple values for keyword argument %q", name, p.Name), pos)
		}
	}

	// Type variables are solved from the actuals before checking.
	if len(sig.TypeVars) > 0 {
		env := map[*types.TypeVar][]types.Type{}
		for fi, actuals := range f2a {
			for _, ai := range actuals {
				c.unify(sig.Params[fi].Type, c.actualType(args[ai], argTypes[ai]), env)
			}
		}
		solved := map[*types.TypeVar]types.Type{}
		for _, tv := range sig.TypeVars {
			candidates, ok := env[tv]
			if !ok {
				continue
			}
			t := Widen(types.MakeUnion(candidates...))
			if tv.Bound != nil && !types.IsSubtype(t, tv.Bound) {
				t = tv.Bound
			}
			solved[tv] = t
		}
		if inst, ok := types.Erase(types.Substitute(sig, solved)).(*types.Callable); ok {
			sig = inst
		}
		res.ret = sig.Ret
	}

	// Argument types. Each actual is reported at most once.
	reported := make([]bool, len(args))
	for fi, actuals := range f2a {
		formal := sig.Params[fi]
		for _, ai := range actuals {
			if reported[ai] {
				continue
			}
			actual := c.actualType(args[ai], argTypes[ai])
			if types.IsSubtype(actual, formal.Type) {
				continue
			}
			reported[ai] = true
			fail(taxonomy.ArgType, incompatibleMessage(ai, args[ai], argTypes[ai], formal.Type, name), args[ai].Pos())
		}
	}
	return res
}

// actualType is the type an actual contributes to one formal: the
// element type for "*" and the value type for "**".
func (c *Checker) actualType(arg *pyast.Arg, t types.Type) types.Type {
	switch arg.Kind {
	case pyast.ArgStar:
		return c.ElementType(t)
	case pyast.ArgStarStar:
		if inst, ok := t.(*types.Instance); ok {
			if m, ok := c.LookupClass("typing.Mapping"); ok {
				if mapped := types.MapToBase(inst, m); mapped != nil {
					return mapped.Arg(1)
				}
			}
		}
		return types.Any
	}
	return t
}

func incompatibleMessage(ai int, arg *pyast.Arg, actual, expected types.Type, name string) string {
	shown := Display(actual)
	switch arg.Kind {
	case pyast.ArgStar:
		shown = "*" + shown
	case pyast.ArgStarStar:
		shown = "**" + shown
	}
	which := fmt.Sprint(ai + 1)
	if arg.Kind == pyast.ArgNamed {
		which = fmt.Sprintf("%q", arg.Name)
	}
	return fmt.Sprintf("Argument %s to %q has incompatible type %q; expected %q", which, name, shown, Display(expected))
}

// unify collects candidate solutions for the type variables of formal
// from the matching parts of actual.
func (c *Checker) unify(formal, actual types.Type, env map[*types.TypeVar][]types.Type) {
	if types.IsAny(actual) {
		return
	}
	switch f := formal.(type) {
	case *types.TypeVar:
		env[f] = append(env[f], actual)
	case *types.UnionType:
		for _, item := range f.Items {
			if !types.ContainsTypeVars(item) && types.IsSubtype(actual, item) {
				return
			}
		}
		for _, item := range f.Items {
			if types.ContainsTypeVars(item) {
				c.unify(item, actual, env)
			}
		}
	case *types.TupleType:
		if a, ok := actual.(*types.TupleType); ok && len(a.Items) == len(f.Items) {
			for i := range f.Items {
				c.unify(f.Items[i], a.Items[i], env)
			}
		}
	case *types.Instance:
		var inst *types.Instance
		switch a := actual.(type) {
		case *types.Instance:
			inst = a
		case *types.TupleType:
			inst = a.Fallback
		case *types.LiteralType:
			inst = a.Fallback
		}
		if inst == nil {
			return
		}
		if mapped := types.MapToBase(inst, f.Class); mapped != nil {
			for i := range f.Args {
				c.unify(f.Args[i], mapped.Arg(i), env)
			}
		}
	case *types.Callable:
		if a, ok := actual.(*types.Callable); ok {
			c.unify(f.Ret, a.Ret, env)
		}
	case *types.TypeType:
		if a, ok := actual.(*types.TypeType); ok {
			c.unify(f.Item, a.Item, env)
		}
	}
}

// Display renders a type for messages. Literal types show as their
// fallback, matching how values are described to users.
func Display(t types.Type) string {
	return displayType(t).String()
}

func displayType(t types.Type) types.Type {
	switch t := t.(type) {
	case *types.LiteralType:
		return t.Fallback
	case *types.TupleType:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = displayType(item)
		}
		return types.NewTuple(items, t.Fallback.Class)
	case *types.UnionType:
		items := make([]types.Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = displayType(item)
		}
		return types.MakeUnion(items...)
	case *types.Instance:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]types.Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = displayType(a)
		}
		return types.NewInstance(t.Class, args...)
	case *types.Callable:
		out := *t
		out.Params = make([]types.Param, len(t.Params))
		for i, p := range t.Params {
			p.Type = displayType(p.Type)
			out.Params[i] = p
		}
		out.Ret = displayType(t.Ret)
		return &out
	}
	return t
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
