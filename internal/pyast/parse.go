package pyast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrNotExpression is returned by ParseExpr when the source is not a
// single expression.
var ErrNotExpression = errors.New("source is not a single expression")

// Parse parses Python source into a Module. Syntax errors do not fail
// the parse; the partial tree is converted and the error positions are
// recorded on the module.
func Parse(ctx context.Context, path string, src []byte) (*Module, error) {
	// A new parser per call keeps Parse safe for concurrent use.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("parsing %s: tree-sitter returned no root node", path)
	}

	c := &converter{src: src}
	mod := &Module{
		Loc:  Loc{Start: Pos{Line: 1, Col: 1}},
		Path: path,
		Body: c.block(root),
	}
	if root.HasError() {
		mod.SyntaxErrors = collectErrors(root, nil)
		if len(mod.SyntaxErrors) == 0 {
			mod.SyntaxErrors = []Pos{position(root)}
		}
	}
	return mod, nil
}

// ParseExpr parses a standalone expression, such as the body of a
// string forward reference. Positions are relative to the snippet.
func ParseExpr(src string) (Expr, error) {
	mod, err := Parse(context.Background(), "<expr>", []byte(strings.TrimSpace(src)))
	if err != nil {
		return nil, err
	}
	if len(mod.SyntaxErrors) > 0 || len(mod.Body) != 1 {
		return nil, fmt.Errorf("%q: %w", src, ErrNotExpression)
	}
	stmt, ok := mod.Body[0].(*ExprStmt)
	if !ok {
		return nil, fmt.Errorf("%q: %w", src, ErrNotExpression)
	}
	return stmt.Value, nil
}

func collectErrors(n *sitter.Node, acc []Pos) []Pos {
	if n.Type() == "ERROR" || n.IsMissing() {
		return append(acc, position(n))
	}
	if !n.HasError() {
		return acc
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		acc = collectErrors(n.Child(i), acc)
	}
	return acc
}

func position(n *sitter.Node) Pos {
	p := n.StartPoint()
	return Pos{Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

func loc(n *sitter.Node) Loc {
	return Loc{Start: position(n)}
}

type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *converter) block(n *sitter.Node) []Stmt {
	if n == nil {
		return nil
	}
	var out []Stmt
	for _, child := range namedChildren(n) {
		out = append(out, c.stmt(child)...)
	}
	return out
}

func (c *converter) stmt(n *sitter.Node) []Stmt {
	switch n.Type() {
	case "expression_statement":
		var out []Stmt
		children := namedChildren(n)
		if len(children) > 1 {
			return []Stmt{&ExprStmt{Loc: loc(n), Value: c.tuple(n, children)}}
		}
		for _, child := range children {
			switch child.Type() {
			case "assignment":
				out = append(out, c.assign(child))
			case "augmented_assignment":
				out = append(out, &OtherStmt{Loc: loc(child), Kind: child.Type()})
			default:
				out = append(out, &ExprStmt{Loc: loc(child), Value: c.expr(child)})
			}
		}
		return out
	case "decorated_definition":
		var decorators []Expr
		for _, child := range namedChildren(n) {
			if child.Type() != "decorator" {
				continue
			}
			if inner := namedChildren(child); len(inner) > 0 {
				decorators = append(decorators, c.expr(inner[0]))
			}
		}
		def := n.ChildByFieldName("definition")
		if def == nil {
			return []Stmt{&OtherStmt{Loc: loc(n), Kind: n.Type()}}
		}
		switch def.Type() {
		case "function_definition":
			fn := c.funcDef(def)
			fn.Decorators = decorators
			return []Stmt{fn}
		case "class_definition":
			cls := c.classDef(def)
			cls.Decorators = decorators
			return []Stmt{cls}
		}
		return []Stmt{&OtherStmt{Loc: loc(def), Kind: def.Type()}}
	case "function_definition":
		return []Stmt{c.funcDef(n)}
	case "class_definition":
		return []Stmt{c.classDef(n)}
	case "import_statement":
		return []Stmt{c.importStmt(n)}
	case "import_from_statement":
		return []Stmt{c.importFrom(n)}
	case "if_statement":
		return []Stmt{c.ifStmt(n)}
	case "return_statement":
		ret := &Return{Loc: loc(n)}
		if children := namedChildren(n); len(children) > 0 {
			ret.Value = c.expr(children[0])
		}
		return []Stmt{ret}
	case "block":
		return c.block(n)
	}
	return []Stmt{&OtherStmt{Loc: loc(n), Kind: n.Type()}}
}

func (c *converter) assign(n *sitter.Node) *Assign {
	a := &Assign{Loc: loc(n)}
	for cur := n; cur != nil; {
		if left := cur.ChildByFieldName("left"); left != nil {
			a.Targets = append(a.Targets, c.expr(left))
		}
		if typ := cur.ChildByFieldName("type"); typ != nil && a.Annotation == nil {
			a.Annotation = c.expr(typ)
		}
		right := cur.ChildByFieldName("right")
		if right == nil {
			break
		}
		if right.Type() == "assignment" {
			cur = right
			continue
		}
		a.Value = c.expr(right)
		break
	}
	return a
}

func (c *converter) funcDef(n *sitter.Node) *FuncDef {
	fn := &FuncDef{Loc: loc(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = c.text(name)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); !child.IsNamed() && child.Type() == "async" {
			fn.IsAsync = true
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		fn.Params = c.params(params)
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		fn.Returns = c.expr(ret)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		fn.Body = c.block(body)
		fn.HasYield = containsYield(body)
	}
	return fn
}

// containsYield reports whether n yields, ignoring nested scopes.
func containsYield(n *sitter.Node) bool {
	switch n.Type() {
	case "yield":
		return true
	case "function_definition", "class_definition", "lambda":
		return false
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if containsYield(n.NamedChild(i)) {
			return true
		}
	}
	return false
}

func (c *converter) params(n *sitter.Node) []*Param {
	var out []*Param
	kwOnly := false
	kind := func() ParamKind {
		if kwOnly {
			return ParamKwOnly
		}
		return ParamPosOrKw
	}

	for _, child := range namedChildren(n) {
		p := &Param{Loc: loc(child)}
		switch child.Type() {
		case "identifier":
			p.Name, p.Kind = c.text(child), kind()
		case "typed_parameter":
			inner := namedChildren(child)
			if len(inner) == 0 {
				continue
			}
			p.Name, p.Kind = c.text(inner[0]), kind()
			switch inner[0].Type() {
			case "list_splat_pattern":
				p.Name, p.Kind = c.splatName(inner[0]), ParamVarPos
				kwOnly = true
			case "dictionary_splat_pattern":
				p.Name, p.Kind = c.splatName(inner[0]), ParamVarKw
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.Annotation = c.expr(typ)
			}
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				p.Name = c.text(name)
			}
			p.Kind = kind()
			if typ := child.ChildByFieldName("type"); typ != nil {
				p.Annotation = c.expr(typ)
			}
			if value := child.ChildByFieldName("value"); value != nil {
				p.Default = c.expr(value)
			}
		case "list_splat_pattern":
			p.Name, p.Kind = c.splatName(child), ParamVarPos
			kwOnly = true
		case "dictionary_splat_pattern":
			p.Name, p.Kind = c.splatName(child), ParamVarKw
		case "keyword_separator":
			kwOnly = true
			continue
		case "positional_separator":
			for _, prev := range out {
				if prev.Kind == ParamPosOrKw {
					prev.Kind = ParamPosOnly
				}
			}
			continue
		default:
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *converter) splatName(n *sitter.Node) string {
	if inner := namedChildren(n); len(inner) > 0 {
		return c.text(inner[0])
	}
	return strings.TrimLeft(c.text(n), "*")
}

func (c *converter) classDef(n *sitter.Node) *ClassDef {
	cls := &ClassDef{Loc: loc(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = c.text(name)
	}
	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		cls.Bases = c.args(supers)
	}
	cls.Body = c.block(n.ChildByFieldName("body"))
	return cls
}

func (c *converter) alias(n *sitter.Node) (Alias, bool) {
	switch n.Type() {
	case "dotted_name", "identifier":
		return Alias{Name: c.text(n)}, true
	case "aliased_import":
		var a Alias
		if name := n.ChildByFieldName("name"); name != nil {
			a.Name = c.text(name)
		}
		if as := n.ChildByFieldName("alias"); as != nil {
			a.AsName = c.text(as)
		}
		return a, a.Name != ""
	}
	return Alias{}, false
}

func (c *converter) importStmt(n *sitter.Node) *Import {
	imp := &Import{Loc: loc(n)}
	for _, child := range namedChildren(n) {
		if a, ok := c.alias(child); ok {
			imp.Names = append(imp.Names, a)
		}
	}
	return imp
}

func (c *converter) importFrom(n *sitter.Node) *ImportFrom {
	imp := &ImportFrom{Loc: loc(n)}
	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			for _, part := range namedChildren(child) {
				switch part.Type() {
				case "import_prefix":
					imp.Level = strings.Count(c.text(part), ".")
				case "dotted_name":
					imp.Module = c.text(part)
				}
			}
		case "wildcard_import":
			imp.Star = true
		case "dotted_name", "aliased_import", "identifier":
			if !sawImport {
				imp.Module = c.text(child)
				continue
			}
			if a, ok := c.alias(child); ok {
				imp.Names = append(imp.Names, a)
			}
		}
	}
	return imp
}

func (c *converter) ifStmt(n *sitter.Node) *If {
	st := &If{Loc: loc(n)}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		st.Test = c.expr(cond)
	}
	st.Body = c.block(n.ChildByFieldName("consequence"))

	// Fold elif clauses into nested If statements.
	tail := st
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "elif_clause":
			next := &If{Loc: loc(child)}
			if cond := child.ChildByFieldName("condition"); cond != nil {
				next.Test = c.expr(cond)
			}
			next.Body = c.block(child.ChildByFieldName("consequence"))
			tail.Else = []Stmt{next}
			tail = next
		case "else_clause":
			tail.Else = c.block(child.ChildByFieldName("body"))
		}
	}
	return st
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *converter) expr(n *sitter.Node) Expr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return &Name{Loc: loc(n), ID: c.text(n)}
	case "attribute":
		attr := &Attribute{Loc: loc(n), Value: c.expr(n.ChildByFieldName("object"))}
		if name := n.ChildByFieldName("attribute"); name != nil {
			attr.Attr = c.text(name)
		}
		return attr
	case "member_type":
		children := namedChildren(n)
		if len(children) == 2 {
			return &Attribute{Loc: loc(n), Value: c.expr(children[0]), Attr: c.text(children[1])}
		}
	case "call":
		call := &Call{Loc: loc(n), Func: c.expr(n.ChildByFieldName("function"))}
		if args := n.ChildByFieldName("arguments"); args != nil {
			if args.Type() == "argument_list" {
				call.Args = c.args(args)
			} else {
				call.Args = []*Arg{{Loc: loc(args), Kind: ArgPositional, Value: &Other{Loc: loc(args), Kind: args.Type()}}}
			}
		}
		return call
	case "string":
		return c.str(n)
	case "concatenated_string":
		lit := &StrLit{Loc: loc(n)}
		var sb strings.Builder
		for _, part := range namedChildren(n) {
			if part.Type() != "string" {
				continue
			}
			s := c.str(part)
			sb.WriteString(s.Value)
			lit.IsBytes = lit.IsBytes || s.IsBytes
			lit.IsFString = lit.IsFString || s.IsFString
		}
		lit.Value = sb.String()
		return lit
	case "integer":
		return c.integer(n)
	case "float":
		raw := c.text(n)
		return &FloatLit{Loc: loc(n), Raw: raw, Complex: strings.HasSuffix(strings.ToLower(raw), "j")}
	case "true":
		return &BoolLit{Loc: loc(n), Value: true}
	case "false":
		return &BoolLit{Loc: loc(n), Value: false}
	case "none":
		return &NoneLit{Loc: loc(n)}
	case "ellipsis":
		return &EllipsisLit{Loc: loc(n)}
	case "tuple", "expression_list", "pattern_list":
		return c.tuple(n, namedChildren(n))
	case "list":
		return &ListExpr{Loc: loc(n), Elts: c.exprs(namedChildren(n))}
	case "set":
		return &SetExpr{Loc: loc(n), Elts: c.exprs(namedChildren(n))}
	case "dictionary":
		d := &DictExpr{Loc: loc(n)}
		for _, child := range namedChildren(n) {
			switch child.Type() {
			case "pair":
				d.Keys = append(d.Keys, c.expr(child.ChildByFieldName("key")))
				d.Values = append(d.Values, c.expr(child.ChildByFieldName("value")))
			case "dictionary_splat":
				d.Keys = append(d.Keys, nil)
				d.Values = append(d.Values, c.firstNamed(child))
			}
		}
		return d
	case "parenthesized_expression", "type", "constrained_type":
		if inner := c.firstNamed(n); inner != nil {
			return inner
		}
	case "list_splat", "splat_type", "list_splat_pattern":
		return &Starred{Loc: loc(n), Value: c.firstNamed(n)}
	case "subscript":
		value := n.ChildByFieldName("value")
		sub := &Subscript{Loc: loc(n), Value: c.expr(value)}
		for _, child := range namedChildren(n) {
			if sameNode(child, value) {
				continue
			}
			sub.Index = append(sub.Index, c.expr(child))
		}
		return sub
	case "generic_type":
		children := namedChildren(n)
		if len(children) == 2 && children[1].Type() == "type_parameter" {
			return &Subscript{Loc: loc(n), Value: c.expr(children[0]), Index: c.exprs(namedChildren(children[1]))}
		}
	case "union_type":
		children := namedChildren(n)
		if len(children) == 2 {
			return &BinOp{Loc: loc(n), Op: "|", Left: c.expr(children[0]), Right: c.expr(children[1])}
		}
	case "binary_operator":
		op := n.ChildByFieldName("operator")
		b := &BinOp{
			Loc:   loc(n),
			Left:  c.expr(n.ChildByFieldName("left")),
			Right: c.expr(n.ChildByFieldName("right")),
		}
		if op != nil {
			b.Op = op.Type()
		}
		return b
	case "unary_operator":
		u := &UnaryOp{Loc: loc(n), Operand: c.expr(n.ChildByFieldName("argument"))}
		if op := n.ChildByFieldName("operator"); op != nil {
			u.Op = op.Type()
		}
		return u
	}
	return &Other{Loc: loc(n), Kind: n.Type()}
}

func (c *converter) firstNamed(n *sitter.Node) Expr {
	children := namedChildren(n)
	if len(children) == 0 {
		return nil
	}
	return c.expr(children[0])
}

func (c *converter) exprs(nodes []*sitter.Node) []Expr {
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.expr(n))
	}
	return out
}

func (c *converter) tuple(n *sitter.Node, children []*sitter.Node) *TupleExpr {
	return &TupleExpr{Loc: loc(n), Elts: c.exprs(children)}
}

func (c *converter) args(n *sitter.Node) []*Arg {
	var out []*Arg
	for _, child := range namedChildren(n) {
		arg := &Arg{Loc: loc(child), Kind: ArgPositional}
		switch child.Type() {
		case "keyword_argument":
			arg.Kind = ArgNamed
			if name := child.ChildByFieldName("name"); name != nil {
				arg.Name = c.text(name)
			}
			arg.Value = c.expr(child.ChildByFieldName("value"))
		case "list_splat":
			arg.Kind = ArgStar
			arg.Value = c.firstNamed(child)
		case "dictionary_splat":
			arg.Kind = ArgStarStar
			arg.Value = c.firstNamed(child)
		default:
			arg.Value = c.expr(child)
		}
		out = append(out, arg)
	}
	return out
}

func (c *converter) integer(n *sitter.Node) Expr {
	raw := c.text(n)
	lower := strings.ToLower(raw)
	if strings.HasSuffix(lower, "j") {
		return &FloatLit{Loc: loc(n), Raw: raw, Complex: true}
	}
	lit := &IntLit{Loc: loc(n), Raw: raw}
	clean := strings.ReplaceAll(lower, "_", "")
	if len(clean) > 1 && clean[0] == '0' && clean[1] >= '0' && clean[1] <= '9' {
		clean = strings.TrimLeft(clean, "0")
		if clean == "" {
			clean = "0"
		}
	}
	v, err := strconv.ParseInt(clean, 0, 64)
	if err != nil {
		lit.Big = true
		return lit
	}
	lit.Value = v
	return lit
}

func (c *converter) str(n *sitter.Node) *StrLit {
	raw := c.text(n)
	lit := &StrLit{Loc: loc(n)}

	i := 0
	for i < len(raw) && raw[i] != '\'' && raw[i] != '"' {
		i++
	}
	prefix := strings.ToLower(raw[:i])
	body := raw[i:]
	lit.IsBytes = strings.Contains(prefix, "b")
	lit.IsFString = strings.Contains(prefix, "f")
	for _, child := range namedChildren(n) {
		if child.Type() == "interpolation" {
			lit.IsFString = true
		}
	}

	quote := 1
	if strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`) {
		quote = 3
	}
	if len(body) >= 2*quote {
		body = body[quote : len(body)-quote]
	} else {
		body = ""
	}
	if !strings.Contains(prefix, "r") {
		body = unescape(body)
	}
	lit.Value = body
	return lit
}

var escapes = strings.NewReplacer(
	`\\`, `\`,
	`\'`, `'`,
	`\"`, `"`,
	`\n`, "\n",
	`\t`, "\t",
	`\r`, "\r",
	`\0`, "\x00",
	"\\\n", "",
)

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return escapes.Replace(s)
}
