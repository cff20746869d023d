package pytest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// IsIdentifier reports whether s is a valid Python identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)):
		default:
			return false
		}
	}
	return true
}

// Names is a parsed argnames value. A single-name string gives a
// scalar; anything else gives an ordered sequence.
type Names struct {
	Items  []string
	Single bool
	Pos    pyast.Pos
}

// namesParser holds the shared identifier validation. Each variant
// reports with its own codes.
type namesParser struct {
	env        *Env
	ctx        checker.Context
	rep        diag.Reporter
	invalid    taxonomy.Code
	unreadable taxonomy.Code
	noun       string
	// allowRequest accepts the reserved name.
	allowRequest bool
}

func (p namesParser) validate(name string, pos pyast.Pos) bool {
	switch {
	case pythonKeywords[name]:
		p.rep.Fail(p.invalid, fmt.Sprintf("Invalid %s %q: it is a Python keyword", p.noun, name), pos)
		return false
	case !IsIdentifier(name):
		p.rep.Fail(p.invalid, fmt.Sprintf("Invalid %s %q: not a valid identifier", p.noun, name), pos)
		return false
	case name == requestName && !p.allowRequest:
		p.rep.Fail(taxonomy.RequestKeyword, fmt.Sprintf("%q is a reserved fixture name and cannot be used as an argname", requestName), pos)
		return false
	}
	return true
}

// stringValue extracts a str literal from a literal node or from the
// static type of any other expression.
func (p namesParser) stringValue(expr pyast.Expr) (string, bool, error) {
	if s, ok := expr.(*pyast.StrLit); ok {
		if s.IsBytes || s.IsFString {
			return "", false, nil
		}
		return s.Value, true, nil
	}
	t, err := p.env.typeOf(p.ctx, expr, RequiredWait)
	if err != nil {
		return "", false, err
	}
	if lit, ok := t.(*types.LiteralType); ok && lit.Kind == types.LitStr {
		return lit.Value.(string), true, nil
	}
	return "", false, nil
}

// parseName is the generic single-name parser.
func (p namesParser) parseName(expr pyast.Expr) (string, bool, error) {
	s, ok, err := p.stringValue(expr)
	if err != nil {
		return "", false, err
	}
	if !ok {
		p.rep.Fail(p.unreadable, fmt.Sprintf("Unable to read %s: expected a string literal", p.noun), expr.Pos())
		return "", false, nil
	}
	if !p.validate(s, expr.Pos()) {
		return "", false, nil
	}
	return s, true, nil
}

// ParseName reads a single name from a string literal or an expression
// whose static type is a string literal type.
func (e *Env) ParseName(ctx checker.Context, expr pyast.Expr, rep diag.Reporter) (string, bool, error) {
	p := namesParser{env: e, ctx: ctx, rep: rep, invalid: taxonomy.InvalidFixtureName, unreadable: taxonomy.UnreadableFixtureName, noun: "name", allowRequest: true}
	return p.parseName(expr)
}

// ParseArgnames reads the argnames argument of a parametrize call. ok
// is false when anything was reported; parsing continues past bad
// names so that every problem surfaces.
func (e *Env) ParseArgnames(ctx checker.Context, expr pyast.Expr, rep diag.Reporter) (Names, bool, error) {
	p := namesParser{env: e, ctx: ctx, rep: rep, invalid: taxonomy.InvalidArgname, unreadable: taxonomy.UnreadableArgname, noun: "argname"}
	out := Names{Pos: expr.Pos()}

	var raw []string
	var positions []pyast.Pos
	switch x := expr.(type) {
	case *pyast.TupleExpr, *pyast.ListExpr:
		elts := sequenceElements(x)
		ok := true
		for _, elt := range elts {
			if _, starred := elt.(*pyast.Starred); starred {
				rep.Fail(taxonomy.UnreadableArgname, "Unable to read argname: unpacking is not supported", elt.Pos())
				ok = false
				continue
			}
			s, good, err := p.stringValue(elt)
			if err != nil {
				return out, false, err
			}
			if !good {
				rep.Fail(taxonomy.UnreadableArgname, "Unable to read argname: expected a string literal", elt.Pos())
				ok = false
				continue
			}
			raw = append(raw, s)
			positions = append(positions, elt.Pos())
		}
		out.Items = raw
		if !p.checkAll(raw, positions) || !ok {
			return out, false, nil
		}
		return out, true, nil
	}

	s, good, err := p.stringValue(expr)
	if err != nil {
		return out, false, err
	}
	if !good {
		items, ok, err := p.literalSequence(expr)
		if err != nil {
			return out, false, err
		}
		if !ok {
			rep.Fail(taxonomy.UnreadableArgnames, "Unable to read argnames: expected a string or a sequence of strings", expr.Pos())
			return out, false, nil
		}
		out.Items = items
		positions = make([]pyast.Pos, len(items))
		for i := range positions {
			positions[i] = expr.Pos()
		}
		return out, p.checkAll(items, positions), nil
	}

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			raw = append(raw, part)
			positions = append(positions, expr.Pos())
		}
	}
	if len(raw) == 0 {
		rep.Fail(taxonomy.UnreadableArgnames, "Unable to read argnames: the string names no arguments", expr.Pos())
		return out, false, nil
	}
	out.Items = raw
	out.Single = len(raw) == 1
	return out, p.checkAll(raw, positions), nil
}

// literalSequence reads a tuple of string literal types from the static
// type of a non-literal argnames expression.
func (p namesParser) literalSequence(expr pyast.Expr) ([]string, bool, error) {
	t, err := p.env.typeOf(p.ctx, expr, RequiredWait)
	if err != nil {
		return nil, false, err
	}
	tup, ok := t.(*types.TupleType)
	if !ok {
		return nil, false, nil
	}
	out := make([]string, 0, len(tup.Items))
	for _, item := range tup.Items {
		lit, ok := item.(*types.LiteralType)
		if !ok || lit.Kind != types.LitStr {
			return nil, false, nil
		}
		out = append(out, lit.Value.(string))
	}
	return out, true, nil
}

func (p namesParser) checkAll(names []string, positions []pyast.Pos) bool {
	ok := true
	seen := map[string]bool{}
	for i, name := range names {
		if !p.validate(name, positions[i]) {
			ok = false
			continue
		}
		if seen[name] {
			p.rep.Fail(taxonomy.DuplicateArgname, fmt.Sprintf("Argname %q is repeated", name), positions[i])
			ok = false
			continue
		}
		seen[name] = true
	}
	return ok
}

// ParseUsefixtures reads the arguments of a usefixtures mark. Every
// argument is parsed on its own; bad ones are reported and skipped.
func (e *Env) ParseUsefixtures(ctx checker.Context, args []*pyast.Arg, rep diag.Reporter) ([]UseFixture, error) {
	p := namesParser{env: e, ctx: ctx, rep: rep, invalid: taxonomy.InvalidFixtureName, unreadable: taxonomy.UnreadableFixtureName, noun: "fixture name", allowRequest: true}
	var out []UseFixture
	for _, arg := range args {
		if arg.Kind != pyast.ArgPositional {
			rep.Fail(taxonomy.UnreadableFixtureName, "Unable to read fixture name: expected a string literal", arg.Pos())
			continue
		}
		name, ok, err := p.parseName(arg.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, UseFixture{Name: name, Pos: arg.Value.Pos()})
		}
	}
	return out, nil
}

// UseFixture is one name requested through a usefixtures mark.
type UseFixture struct {
	Name string
	Pos  pyast.Pos
}

func sequenceElements(e pyast.Expr) []pyast.Expr {
	switch x := e.(type) {
	case *pyast.TupleExpr:
		return x.Elts
	case *pyast.ListExpr:
		return x.Elts
	case *pyast.SetExpr:
		return x.Elts
	}
	return nil
}
