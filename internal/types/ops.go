package types

// MakeUnion flattens, deduplicates and normalizes items into a union.
// Never items vanish; an Any item absorbs the union.
func MakeUnion(items ...Type) Type {
	var flat []Type
	var add func(t Type)
	add = func(t Type) {
		switch t := t.(type) {
		case nil, *NeverType:
		case *UnionType:
			for _, item := range t.Items {
				add(item)
			}
		default:
			for _, seen := range flat {
				if seen.String() == t.String() {
					return
				}
			}
			flat = append(flat, t)
		}
	}
	for _, t := range items {
		if IsAny(t) {
			return Any
		}
		add(t)
	}
	switch len(flat) {
	case 0:
		return Never
	case 1:
		return flat[0]
	}
	return &UnionType{Items: flat}
}

// Optional returns t | None.
func Optional(t Type) Type {
	return MakeUnion(t, None)
}

// Bindings maps the class type variables of inst to its arguments.
func Bindings(inst *Instance) map[*TypeVar]Type {
	env := make(map[*TypeVar]Type, len(inst.Class.TypeVars))
	for i, tv := range inst.Class.TypeVars {
		env[tv] = inst.Arg(i)
	}
	return env
}

// Substitute replaces the type variables in env throughout t.
func Substitute(t Type, env map[*TypeVar]Type) Type {
	if len(env) == 0 {
		return t
	}
	return mapTypeVars(t, func(tv *TypeVar) Type {
		if r, ok := env[tv]; ok {
			return r
		}
		return tv
	})
}

// Erase replaces every type variable by its bound, or Any.
func Erase(t Type) Type {
	return mapTypeVars(t, func(tv *TypeVar) Type {
		if tv.Bound != nil {
			return tv.Bound
		}
		return Any
	})
}

// ContainsTypeVars reports whether t mentions any type variable.
func ContainsTypeVars(t Type) bool {
	found := false
	mapTypeVars(t, func(tv *TypeVar) Type {
		found = true
		return tv
	})
	return found
}

// CollectTypeVars returns the distinct type variables in t in order of
// first appearance.
func CollectTypeVars(t Type) []*TypeVar {
	var out []*TypeVar
	seen := map[*TypeVar]bool{}
	mapTypeVars(t, func(tv *TypeVar) Type {
		if !seen[tv] {
			seen[tv] = true
			out = append(out, tv)
		}
		return tv
	})
	return out
}

func mapTypeVars(t Type, fn func(*TypeVar) Type) Type {
	switch t := t.(type) {
	case *TypeVar:
		return fn(t)
	case *Instance:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = mapTypeVars(a, fn)
		}
		return &Instance{Class: t.Class, Args: args}
	case *TupleType:
		items := make([]Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = mapTypeVars(item, fn)
		}
		return NewTuple(items, t.Fallback.Class)
	case *UnionType:
		items := make([]Type, len(t.Items))
		for i, item := range t.Items {
			items[i] = mapTypeVars(item, fn)
		}
		return MakeUnion(items...)
	case *Callable:
		out := *t
		out.Params = make([]Param, len(t.Params))
		for i, p := range t.Params {
			p.Type = mapTypeVars(p.Type, fn)
			out.Params[i] = p
		}
		out.Ret = mapTypeVars(t.Ret, fn)
		return &out
	case *Overloaded:
		items := make([]*Callable, len(t.Items))
		for i, item := range t.Items {
			items[i] = mapTypeVars(item, fn).(*Callable)
		}
		return &Overloaded{Items: items}
	case *TypeType:
		if inst, ok := mapTypeVars(t.Item, fn).(*Instance); ok {
			return &TypeType{Item: inst}
		}
		return t
	}
	return t
}

// MapToBase views inst as an instance of base by walking the class
// hierarchy and substituting type arguments along the way. It returns
// nil when base is not an ancestor.
func MapToBase(inst *Instance, base *ClassInfo) *Instance {
	return mapToBase(inst, base, map[*ClassInfo]bool{})
}

func mapToBase(inst *Instance, base *ClassInfo, seen map[*ClassInfo]bool) *Instance {
	if inst.Class == base || inst.Class.FullName == base.FullName {
		return inst
	}
	if seen[inst.Class] {
		return nil
	}
	seen[inst.Class] = true
	env := Bindings(inst)
	for _, b := range inst.Class.Bases {
		sub, ok := Substitute(b, env).(*Instance)
		if !ok {
			continue
		}
		if r := mapToBase(sub, base, seen); r != nil {
			return r
		}
	}
	return nil
}

// MRO returns the C3 linearization of c, starting with c itself. An
// inconsistent hierarchy falls back to depth-first order.
func (c *ClassInfo) MRO() []*ClassInfo {
	return linearize(c, map[*ClassInfo]bool{})
}

func linearize(c *ClassInfo, visiting map[*ClassInfo]bool) []*ClassInfo {
	if visiting[c] {
		return []*ClassInfo{c}
	}
	visiting[c] = true
	defer delete(visiting, c)

	var seqs [][]*ClassInfo
	var direct []*ClassInfo
	for _, b := range c.Bases {
		seqs = append(seqs, linearize(b.Class, visiting))
		direct = append(direct, b.Class)
	}
	seqs = append(seqs, direct)

	merged, ok := c3merge(seqs)
	if !ok {
		merged = depthFirst(c, map[*ClassInfo]bool{c: true})
	}
	return append([]*ClassInfo{c}, merged...)
}

func c3merge(seqs [][]*ClassInfo) ([]*ClassInfo, bool) {
	var out []*ClassInfo
	for {
		nonEmpty := seqs[:0:0]
		for _, s := range seqs {
			if len(s) > 0 {
				nonEmpty = append(nonEmpty, s)
			}
		}
		seqs = nonEmpty
		if len(seqs) == 0 {
			return out, true
		}

		var head *ClassInfo
		for _, s := range seqs {
			candidate := s[0]
			if !inTail(candidate, seqs) {
				head = candidate
				break
			}
		}
		if head == nil {
			return nil, false
		}
		out = append(out, head)
		for i, s := range seqs {
			if s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(c *ClassInfo, seqs [][]*ClassInfo) bool {
	for _, s := range seqs {
		for _, k := range s[1:] {
			if k == c {
				return true
			}
		}
	}
	return false
}

func depthFirst(c *ClassInfo, seen map[*ClassInfo]bool) []*ClassInfo {
	var out []*ClassInfo
	for _, b := range c.Bases {
		if seen[b.Class] {
			continue
		}
		seen[b.Class] = true
		out = append(out, b.Class)
		out = append(out, depthFirst(b.Class, seen)...)
	}
	return out
}
