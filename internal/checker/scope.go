package checker

import (
	"strings"

	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// SymbolKind classifies a symbol table entry.
type SymbolKind int

// Symbol kinds.
const (
	SymVar SymbolKind = iota
	SymFunc
	SymClass
	SymTypeVar
	SymModule
	SymImport
)

// Symbol is one name bound in a module or class body.
type Symbol struct {
	Name   string
	Kind   SymbolKind
	Module string

	// Owner is the enclosing class, nil at module level.
	Owner *Symbol

	// Index is the top-level statement that binds the name.
	Index int
	Pos   pyast.Pos

	// Funcs holds a single definition, or every @overload item.
	Funcs      []*pyast.FuncDef
	Overloaded bool

	Class *pyast.ClassDef

	Annotation pyast.Expr
	Value      pyast.Expr

	// Target is the module an import refers to; TargetName the member.
	Target     string
	TargetName string

	info     *types.ClassInfo
	scope    *Scope
	typ      types.Type
	typeVar  *types.TypeVar
	resolved *Symbol
	busy     bool
}

// FullName is the dotted name of the definition.
func (s *Symbol) FullName() string {
	switch {
	case s.Kind == SymModule:
		return s.Target
	case s.Owner != nil:
		return s.Owner.FullName() + "." + s.Name
	}
	return s.Module + "." + s.Name
}

// HasDecorator reports whether the first definition carries a decorator
// whose dotted name ends with name.
func (s *Symbol) HasDecorator(name string) bool {
	if len(s.Funcs) == 0 {
		return false
	}
	for _, d := range s.Funcs[0].Decorators {
		if dn := pyast.DottedName(d); dn == name || strings.HasSuffix(dn, "."+name) {
			return true
		}
	}
	return false
}

// Scope is a symbol table for a module or class body.
type Scope struct {
	Names map[string]*Symbol
	Order []string

	// Stars lists modules imported with "from m import *".
	Stars []string

	module *Module
	owner  *Symbol
}

func (s *Scope) define(sym *Symbol) {
	if _, ok := s.Names[sym.Name]; !ok {
		s.Order = append(s.Order, sym.Name)
	}
	s.Names[sym.Name] = sym
}

// Lookup returns the symbol bound to name directly in this scope.
func (s *Scope) Lookup(name string) *Symbol {
	return s.Names[name]
}

// Context is where an expression is evaluated: a module, optionally
// inside a class body.
type Context struct {
	Module *Module
	Class  *Scope
}

// ModuleContext returns the context for top-level code of m.
func ModuleContext(m *Module) Context {
	return Context{Module: m}
}

type scopeBuilder struct {
	module string
	pkg    bool
	owner  *Symbol
	scope  *Scope
}

func buildScope(module string, pkg bool, body []pyast.Stmt, owner *Symbol) *Scope {
	b := &scopeBuilder{
		module: module,
		pkg:    pkg,
		owner:  owner,
		scope:  &Scope{Names: map[string]*Symbol{}, owner: owner},
	}
	for i, st := range body {
		b.stmt(i, st)
	}
	return b.scope
}

func (b *scopeBuilder) newSymbol(name string, kind SymbolKind, index int, pos pyast.Pos) *Symbol {
	return &Symbol{Name: name, Kind: kind, Module: b.module, Owner: b.owner, Index: index, Pos: pos}
}

func isOverload(fn *pyast.FuncDef) bool {
	for _, d := range fn.Decorators {
		if dn := pyast.DottedName(d); dn == "overload" || strings.HasSuffix(dn, ".overload") {
			return true
		}
	}
	return false
}

func isTypeVarCall(e pyast.Expr) bool {
	call, ok := e.(*pyast.Call)
	if !ok {
		return false
	}
	dn := pyast.DottedName(call.Func)
	return dn == "TypeVar" || strings.HasSuffix(dn, ".TypeVar")
}

func (b *scopeBuilder) stmt(index int, st pyast.Stmt) {
	s := b.scope
	switch st := st.(type) {
	case *pyast.FuncDef:
		overload := isOverload(st)
		if prev := s.Names[st.Name]; prev != nil && prev.Kind == SymFunc {
			if prev.Overloaded && overload {
				prev.Funcs = append(prev.Funcs, st)
			}
			return
		}
		sym := b.newSymbol(st.Name, SymFunc, index, st.Pos())
		sym.Funcs = []*pyast.FuncDef{st}
		sym.Overloaded = overload
		s.define(sym)

	case *pyast.ClassDef:
		if prev := s.Names[st.Name]; prev != nil && prev.Kind == SymClass {
			return
		}
		sym := b.newSymbol(st.Name, SymClass, index, st.Pos())
		sym.Class = st
		s.define(sym)

	case *pyast.Assign:
		for _, target := range st.Targets {
			b.assignTarget(index, st, target, len(st.Targets) == 1)
		}

	case *pyast.Import:
		for _, a := range st.Names {
			if a.AsName != "" {
				sym := b.newSymbol(a.AsName, SymModule, index, st.Pos())
				sym.Target = a.Name
				s.define(sym)
				continue
			}
			head, _, _ := strings.Cut(a.Name, ".")
			if _, ok := s.Names[head]; ok {
				continue
			}
			sym := b.newSymbol(head, SymModule, index, st.Pos())
			sym.Target = head
			s.define(sym)
		}

	case *pyast.ImportFrom:
		target := ResolveRelative(b.module, b.pkg, st.Level, st.Module)
		if st.Star {
			s.Stars = append(s.Stars, target)
			return
		}
		for _, a := range st.Names {
			name := a.AsName
			if name == "" {
				name = a.Name
			}
			sym := b.newSymbol(name, SymImport, index, st.Pos())
			sym.Target = target
			sym.TargetName = a.Name
			s.define(sym)
		}

	case *pyast.If:
		for _, inner := range st.Body {
			b.stmt(index, inner)
		}
		for _, inner := range st.Else {
			b.stmt(index, inner)
		}
	}
}

func (b *scopeBuilder) assignTarget(index int, st *pyast.Assign, target pyast.Expr, single bool) {
	s := b.scope
	switch t := target.(type) {
	case *pyast.Name:
		if prev := s.Names[t.ID]; prev != nil {
			if prev.Kind == SymVar && prev.Annotation == nil && st.Annotation != nil {
				prev.Annotation = st.Annotation
			}
			return
		}
		kind := SymVar
		if single && isTypeVarCall(st.Value) {
			kind = SymTypeVar
		}
		sym := b.newSymbol(t.ID, kind, index, t.Pos())
		sym.Annotation = st.Annotation
		if single {
			sym.Value = st.Value
		}
		s.define(sym)
	case *pyast.TupleExpr:
		for _, elt := range t.Elts {
			b.assignTarget(index, &pyast.Assign{Loc: st.Loc}, elt, false)
		}
	case *pyast.ListExpr:
		for _, elt := range t.Elts {
			b.assignTarget(index, &pyast.Assign{Loc: st.Loc}, elt, false)
		}
	}
}

// ResolveRelative turns a possibly relative import into an absolute
// module name. pkg reports whether module is a package __init__.
func ResolveRelative(module string, pkg bool, level int, name string) string {
	if level == 0 {
		return name
	}
	parts := strings.Split(module, ".")
	if !pkg {
		parts = parts[:len(parts)-1]
	}
	drop := level - 1
	if drop > len(parts) {
		drop = len(parts)
	}
	parts = parts[:len(parts)-drop]
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, ".")
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// resolveImport follows import aliases to the defining symbol. It
// returns nil when the target cannot be found.
func (c *Checker) resolveImport(sym *Symbol) *Symbol {
	for depth := 0; sym != nil && sym.Kind == SymImport; depth++ {
		if depth > 32 {
			return nil
		}
		if sym.resolved != nil {
			sym = sym.resolved
			continue
		}
		next := c.importTarget(sym)
		if next == nil {
			return nil
		}
		sym.resolved = next
		sym = next
	}
	return sym
}

func (c *Checker) importTarget(sym *Symbol) *Symbol {
	if m := c.modules[sym.Target]; m != nil {
		if member := c.moduleMember(m, sym.TargetName, map[string]bool{}); member != nil {
			return member
		}
	}
	sub := sym.Target + "." + sym.TargetName
	if sym.Target == "" {
		sub = sym.TargetName
	}
	if _, ok := c.modules[sub]; ok {
		return &Symbol{Name: sym.TargetName, Kind: SymModule, Module: sym.Module, Target: sub}
	}
	return nil
}

// moduleMember looks name up in a module's own bindings, then its star
// imports.
func (c *Checker) moduleMember(m *Module, name string, seen map[string]bool) *Symbol {
	if sym := m.Scope.Names[name]; sym != nil {
		return sym
	}
	if seen[m.Name] || strings.HasPrefix(name, "_") {
		return nil
	}
	seen[m.Name] = true
	for _, star := range m.Scope.Stars {
		if sm := c.modules[star]; sm != nil {
			if sym := c.moduleMember(sm, name, seen); sym != nil {
				return sym
			}
		}
	}
	return nil
}

// lookupName resolves a bare name: class body, module, builtins. When
// classesOnly is set, class-body entries other than nested classes are
// skipped, which is how annotations see class scopes.
func (c *Checker) lookupName(ctx Context, name string, classesOnly bool) *Symbol {
	if ctx.Class != nil {
		if sym := c.resolveImport(ctx.Class.Names[name]); sym != nil {
			if !classesOnly || sym.Kind == SymClass {
				return sym
			}
		}
	}
	if ctx.Module != nil {
		if sym := c.resolveImport(c.moduleMember(ctx.Module, name, map[string]bool{})); sym != nil {
			return sym
		}
	}
	if b := c.modules["builtins"]; b != nil {
		return c.resolveImport(b.Scope.Names[name])
	}
	return nil
}

// memberSymbol resolves attribute name on a module or class symbol.
func (c *Checker) memberSymbol(owner *Symbol, name string) *Symbol {
	switch owner.Kind {
	case SymModule:
		if m := c.modules[owner.Target]; m != nil {
			if sym := c.resolveImport(c.moduleMember(m, name, map[string]bool{})); sym != nil {
				return sym
			}
		}
		sub := owner.Target + "." + name
		if _, ok := c.modules[sub]; ok {
			return &Symbol{Name: name, Kind: SymModule, Module: owner.Module, Target: sub}
		}
	case SymClass:
		for _, k := range c.classInfo(owner).MRO() {
			ks := c.classSymbol(k)
			if ks == nil {
				continue
			}
			if sym := c.resolveImport(c.classScope(ks).Names[name]); sym != nil {
				return sym
			}
		}
	}
	return nil
}

// resolveExprSymbol resolves Name and Attribute chains to symbols.
func (c *Checker) resolveExprSymbol(ctx Context, e pyast.Expr, classesOnly bool) *Symbol {
	switch e := e.(type) {
	case *pyast.Name:
		return c.lookupName(ctx, e.ID, classesOnly)
	case *pyast.Attribute:
		owner := c.resolveExprSymbol(ctx, e.Value, classesOnly)
		if owner == nil {
			return nil
		}
		return c.memberSymbol(owner, e.Attr)
	}
	return nil
}

// ResolveFullName returns the full name of the definition a Name or
// Attribute expression refers to, or "".
func (c *Checker) ResolveFullName(ctx Context, e pyast.Expr) string {
	if sym := c.resolveExprSymbol(ctx, e, false); sym != nil {
		return sym.FullName()
	}
	return ""
}

// ClassScope returns the symbol table of a class defined at the top
// level of m.
func (c *Checker) ClassScope(m *Module, def *pyast.ClassDef) *Scope {
	sym := m.Scope.Names[def.Name]
	if sym == nil || sym.Kind != SymClass || sym.Class != def {
		return buildScope(m.Name, m.Package, def.Body, nil)
	}
	return c.classScope(sym)
}

func (c *Checker) classScope(sym *Symbol) *Scope {
	if sym.scope == nil {
		m := c.modules[sym.Module]
		pkg := m != nil && m.Package
		sym.scope = buildScope(sym.Module, pkg, sym.Class.Body, sym)
		sym.scope.module = m
	}
	return sym.scope
}
