// Package types is the gradual type model used by the checker: a small
// set of type variants, class metadata with MRO linearization, and the
// subtype oracle the pytest analysis relies on.
package types

import (
	"fmt"
	"strings"
)

// Type is any type in the model.
type Type interface {
	String() string
	isType()
}

// AnyType is the gradual dynamic type. It is compatible in both
// directions with every other type.
type AnyType struct{}

// NoneType is the type of None.
type NoneType struct{}

// NeverType is the bottom type.
type NeverType struct{}

// Shared singletons.
var (
	Any   Type = &AnyType{}
	None  Type = &NoneType{}
	Never Type = &NeverType{}
)

// Variance of a type variable.
type Variance int

// Variances.
const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

// TypeVar is a declared type variable.
type TypeVar struct {
	Name     string
	FullName string
	Variance Variance
	// Bound is nil for an unbounded variable.
	Bound Type
}

// ClassInfo describes a class definition.
type ClassInfo struct {
	FullName   string
	Name       string
	TypeVars   []*TypeVar
	Bases      []*Instance
	IsProtocol bool

	// Members holds the names defined directly in the class body.
	Members map[string]bool
}

// NewClassInfo creates a ClassInfo for fullname with an empty member set.
func NewClassInfo(fullname string) *ClassInfo {
	name := fullname
	if i := strings.LastIndex(fullname, "."); i >= 0 {
		name = fullname[i+1:]
	}
	return &ClassInfo{FullName: fullname, Name: name, Members: map[string]bool{}}
}

// Instance is an instance of a class with type arguments.
type Instance struct {
	Class *ClassInfo
	Args  []Type
}

// LitKind classifies literal values.
type LitKind int

// Literal kinds.
const (
	LitStr LitKind = iota
	LitBytes
	LitInt
	LitBool
)

// LiteralType is a Literal[...] type. Value holds a string for str and
// bytes literals, an int64 for ints and a bool for bools.
type LiteralType struct {
	Kind     LitKind
	Value    any
	Fallback *Instance
}

// TupleType is a fixed-length tuple. Fallback is tuple[join of items].
type TupleType struct {
	Items    []Type
	Fallback *Instance
}

// UnionType is a normalized union of at least two items.
type UnionType struct {
	Items []Type
}

// ParamKind classifies a callable parameter.
type ParamKind int

// Callable parameter kinds.
const (
	ArgPos ParamKind = iota
	ArgOpt
	ArgStar
	ArgNamed
	ArgNamedOpt
	ArgStar2
)

// IsPositional reports whether the kind can bind a positional actual.
func (k ParamKind) IsPositional() bool {
	return k == ArgPos || k == ArgOpt
}

// IsRequired reports whether the parameter must be supplied.
func (k ParamKind) IsRequired() bool {
	return k == ArgPos || k == ArgNamed
}

// Param is one callable parameter. Positional-only parameters have an
// empty Name.
type Param struct {
	Name string
	Kind ParamKind
	Type Type
}

// Callable is a function signature.
type Callable struct {
	Params   []Param
	Ret      Type
	Name     string
	FullName string
	TypeVars []*TypeVar

	// AnyParams marks Callable[..., R].
	AnyParams bool
}

// Overloaded is a set of overload signatures, in declaration order.
type Overloaded struct {
	Items []*Callable
}

// TypeType is type[C], the type of a class object.
type TypeType struct {
	Item *Instance
}

// ModuleType is the type of a module reference.
type ModuleType struct {
	Name string
}

func (*AnyType) isType()     {}
func (*NoneType) isType()    {}
func (*NeverType) isType()   {}
func (*TypeVar) isType()     {}
func (*Instance) isType()    {}
func (*LiteralType) isType() {}
func (*TupleType) isType()   {}
func (*UnionType) isType()   {}
func (*Callable) isType()    {}
func (*Overloaded) isType()  {}
func (*TypeType) isType()    {}
func (*ModuleType) isType()  {}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewInstance creates an instance of class with args.
func NewInstance(class *ClassInfo, args ...Type) *Instance {
	return &Instance{Class: class, Args: args}
}

// NewLiteral creates a literal type with the given fallback.
func NewLiteral(kind LitKind, value any, fallback *Instance) *LiteralType {
	return &LiteralType{Kind: kind, Value: value, Fallback: fallback}
}

// NewTuple creates a fixed tuple whose fallback is tupleClass[join].
func NewTuple(items []Type, tupleClass *ClassInfo) *TupleType {
	join := Never
	if len(items) > 0 {
		join = MakeUnion(Simplify(items)...)
	}
	return &TupleType{Items: items, Fallback: NewInstance(tupleClass, join)}
}

// Simplify replaces literal items by their fallbacks.
func Simplify(items []Type) []Type {
	out := make([]Type, len(items))
	for i, t := range items {
		out[i] = StripLiteral(t)
	}
	return out
}

// StripLiteral returns the fallback of a literal, or t unchanged.
func StripLiteral(t Type) Type {
	if lit, ok := t.(*LiteralType); ok && lit.Fallback != nil {
		return lit.Fallback
	}
	return t
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Arg returns the i-th type argument or Any when absent.
func (i *Instance) Arg(n int) Type {
	if n < len(i.Args) {
		return i.Args[n]
	}
	return Any
}

// Is reports whether the instance's class has the given full name.
func (i *Instance) Is(fullname string) bool {
	return i.Class != nil && i.Class.FullName == fullname
}

// HasMember reports whether name is defined in the class or any base.
func (c *ClassInfo) HasMember(name string) bool {
	for _, k := range c.MRO() {
		if k.Members[name] {
			return true
		}
	}
	return false
}

// IsSubclass reports whether other appears in c's MRO.
func (c *ClassInfo) IsSubclass(other *ClassInfo) bool {
	for _, k := range c.MRO() {
		if k == other || k.FullName == other.FullName {
			return true
		}
	}
	return false
}

// Bind drops the first parameter of a method signature.
func (c *Callable) Bind() *Callable {
	out := *c
	if len(c.Params) > 0 && c.Params[0].Kind.IsPositional() {
		out.Params = c.Params[1:]
	}
	return &out
}

// Signatures returns the callable signatures of a Callable or Overloaded,
// or nil for any other type.
func Signatures(t Type) []*Callable {
	switch t := t.(type) {
	case *Callable:
		return []*Callable{t}
	case *Overloaded:
		return t.Items
	}
	return nil
}

// IsNone reports whether t is the None type.
func IsNone(t Type) bool {
	_, ok := t.(*NoneType)
	return ok
}

// IsAny reports whether t is Any.
func IsAny(t Type) bool {
	_, ok := t.(*AnyType)
	return ok
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func (*AnyType) String() string   { return "Any" }
func (*NoneType) String() string  { return "None" }
func (*NeverType) String() string { return "Never" }
func (t *TypeVar) String() string { return t.Name }

func (i *Instance) String() string {
	if i.Class == nil {
		return "<unknown>"
	}
	if len(i.Args) == 0 {
		return i.Class.Name
	}
	if i.Is("builtins.tuple") && len(i.Args) == 1 {
		return fmt.Sprintf("tuple[%s, ...]", i.Args[0])
	}
	return i.Class.Name + "[" + joinTypes(i.Args, ", ") + "]"
}

func (l *LiteralType) String() string {
	switch l.Kind {
	case LitStr:
		return fmt.Sprintf("Literal['%s']", l.Value)
	case LitBytes:
		return fmt.Sprintf("Literal[b'%s']", l.Value)
	case LitBool:
		if v, _ := l.Value.(bool); v {
			return "Literal[True]"
		}
		return "Literal[False]"
	}
	return fmt.Sprintf("Literal[%v]", l.Value)
}

func (t *TupleType) String() string {
	if len(t.Items) == 0 {
		return "tuple[()]"
	}
	return "tuple[" + joinTypes(t.Items, ", ") + "]"
}

func (u *UnionType) String() string {
	return joinTypes(u.Items, " | ")
}

func (c *Callable) String() string {
	if c.AnyParams {
		return fmt.Sprintf("Callable[..., %s]", c.Ret)
	}
	params := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		switch p.Kind {
		case ArgStar:
			params = append(params, "*"+p.Type.String())
		case ArgStar2:
			params = append(params, "**"+p.Type.String())
		case ArgNamed, ArgNamedOpt:
			params = append(params, p.Name+": "+p.Type.String())
		default:
			params = append(params, p.Type.String())
		}
	}
	return fmt.Sprintf("Callable[[%s], %s]", strings.Join(params, ", "), c.Ret)
}

func (o *Overloaded) String() string {
	parts := make([]string, len(o.Items))
	for i, item := range o.Items {
		parts[i] = item.String()
	}
	return "Overload(" + strings.Join(parts, ", ") + ")"
}

func (t *TypeType) String() string { return "type[" + t.Item.String() + "]" }

func (*ModuleType) String() string { return "ModuleType" }

func joinTypes(items []Type, sep string) string {
	parts := make([]string, len(items))
	for i, t := range items {
		if t == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}
