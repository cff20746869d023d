package types

// promotions lists the implicit numeric widenings.
var promotions = map[string][]string{
	"builtins.int":        {"builtins.float", "builtins.complex"},
	"builtins.float":      {"builtins.complex"},
	"builtins.bytearray":  {"builtins.bytes"},
	"builtins.memoryview": {"builtins.bytes"},
}

// IsSubtype reports whether a value of type left may be used where right
// is expected. Any is compatible in both directions.
func IsSubtype(left, right Type) bool {
	if left == nil || right == nil {
		return true
	}
	if IsAny(left) || IsAny(right) {
		return true
	}
	if _, ok := left.(*NeverType); ok {
		return true
	}

	if lu, ok := left.(*UnionType); ok {
		for _, item := range lu.Items {
			if !IsSubtype(item, right) {
				return false
			}
		}
		return true
	}
	if ru, ok := right.(*UnionType); ok {
		for _, item := range ru.Items {
			if IsSubtype(left, item) {
				return true
			}
		}
		return false
	}

	if lv, ok := left.(*TypeVar); ok {
		if rv, ok := right.(*TypeVar); ok && rv == lv {
			return true
		}
		if lv.Bound == nil {
			return isObject(right)
		}
		return IsSubtype(lv.Bound, right)
	}
	if rv, ok := right.(*TypeVar); ok {
		if rv.Bound == nil {
			return true
		}
		return IsSubtype(left, rv.Bound)
	}

	switch l := left.(type) {
	case *NoneType:
		switch r := right.(type) {
		case *NoneType:
			return true
		case *Instance:
			return isObject(r) || (r.Class.IsProtocol && r.Class.FullName == "typing.Hashable")
		}
		return false

	case *LiteralType:
		if r, ok := right.(*LiteralType); ok {
			return l.Kind == r.Kind && l.Value == r.Value
		}
		return IsSubtype(l.Fallback, right)

	case *TupleType:
		switch r := right.(type) {
		case *TupleType:
			if len(l.Items) != len(r.Items) {
				return false
			}
			for i := range l.Items {
				if !IsSubtype(l.Items[i], r.Items[i]) {
					return false
				}
			}
			return true
		case *Instance:
			return IsSubtype(l.Fallback, r)
		}
		return false

	case *Instance:
		switch r := right.(type) {
		case *Instance:
			return instanceSubtype(l, r)
		case *TupleType:
			// tuple[Any, ...] is compatible with every fixed tuple.
			return l.Is("builtins.tuple") && IsAny(l.Arg(0))
		case *LiteralType, *NoneType:
			return false
		case *Callable, *Overloaded:
			return l.Class.HasMember("__call__")
		}
		return false

	case *Callable:
		switch r := right.(type) {
		case *Callable:
			return callableSubtype(l, r)
		case *Overloaded:
			for _, item := range r.Items {
				if !callableSubtype(l, item) {
					return false
				}
			}
			return true
		case *Instance:
			return isObject(r) || r.Is("builtins.function") ||
				(r.Class.IsProtocol && onlyCallMember(r.Class))
		}
		return false

	case *Overloaded:
		switch r := right.(type) {
		case *Callable:
			for _, item := range l.Items {
				if callableSubtype(item, r) {
					return true
				}
			}
			return false
		case *Overloaded:
			for _, ri := range r.Items {
				if !IsSubtype(l, ri) {
					return false
				}
			}
			return true
		case *Instance:
			return isObject(r) || r.Is("builtins.function")
		}
		return false

	case *TypeType:
		switch r := right.(type) {
		case *TypeType:
			return IsSubtype(l.Item, r.Item)
		case *Instance:
			return isObject(r) || r.Is("builtins.type")
		case *Callable:
			return IsSubtype(l.Item, r.Ret)
		}
		return false

	case *ModuleType:
		if r, ok := right.(*Instance); ok {
			return isObject(r) || r.Is("types.ModuleType")
		}
		return false
	}
	return false
}

// IsSameType reports mutual subtyping, which with Any present is
// gradual compatibility.
func IsSameType(a, b Type) bool {
	return IsSubtype(a, b) && IsSubtype(b, a)
}

func isObject(t Type) bool {
	inst, ok := t.(*Instance)
	return ok && inst.Is("builtins.object")
}

func onlyCallMember(c *ClassInfo) bool {
	return len(c.Members) == 1 && c.Members["__call__"]
}

func instanceSubtype(l, r *Instance) bool {
	if r.Is("builtins.object") {
		return true
	}
	for _, target := range promotions[l.Class.FullName] {
		if r.Is(target) {
			return true
		}
	}
	for _, k := range l.Class.MRO() {
		for _, target := range promotions[k.FullName] {
			if r.Is(target) {
				return true
			}
		}
	}

	mapped := MapToBase(l, r.Class)
	if mapped == nil {
		if r.Class.IsProtocol {
			return structural(l.Class, r.Class)
		}
		return false
	}
	for i, tv := range r.Class.TypeVars {
		la, ra := mapped.Arg(i), r.Arg(i)
		switch tv.Variance {
		case Covariant:
			if !IsSubtype(la, ra) {
				return false
			}
		case Contravariant:
			if !IsSubtype(ra, la) {
				return false
			}
		default:
			if !IsSameType(la, ra) {
				return false
			}
		}
	}
	return true
}

// structural is the minimal protocol check: every member the protocol
// declares must exist somewhere in the class hierarchy.
func structural(c, proto *ClassInfo) bool {
	for _, k := range proto.MRO() {
		if !k.IsProtocol {
			continue
		}
		for name := range k.Members {
			if !c.HasMember(name) {
				return false
			}
		}
	}
	return true
}

func callableSubtype(l, r *Callable) bool {
	if !IsSubtype(l.Ret, r.Ret) {
		return false
	}
	if l.AnyParams || r.AnyParams {
		return true
	}

	var lpos, rpos []Param
	var lstar *Param
	for i, p := range l.Params {
		switch p.Kind {
		case ArgPos, ArgOpt:
			lpos = append(lpos, p)
		case ArgStar:
			lstar = &l.Params[i]
		}
	}
	for _, p := range r.Params {
		if p.Kind.IsPositional() {
			rpos = append(rpos, p)
		}
	}

	for i, rp := range rpos {
		var lt Type
		switch {
		case i < len(lpos):
			lt = lpos[i].Type
		case lstar != nil:
			lt = lstar.Type
		default:
			return false
		}
		if !IsSubtype(rp.Type, lt) {
			return false
		}
	}
	for _, lp := range lpos[min(len(rpos), len(lpos)):] {
		if lp.Kind == ArgPos {
			return false
		}
	}
	return true
}
