// Package pyast converts tree-sitter Python syntax trees into a small
// typed AST. Only the shapes the analyzer reasons about get their own
// variants; everything else collapses into Other nodes that keep their
// tree-sitter kind and position.
package pyast

import "fmt"

// Pos is a 1-based line and column.
type Pos struct {
	Line int
	Col  int
}

// String renders "line:col".
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Loc is embedded in every node to carry its start position.
type Loc struct {
	Start Pos
}

// Pos returns the node's start position.
func (l Loc) Pos() Pos { return l.Start }

// Node is any AST node.
type Node interface {
	Pos() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Module is one parsed source file.
type Module struct {
	Loc

	// Name is the dotted module name, filled in by the loader.
	Name string

	// Path is the file path relative to the project root.
	Path string

	Body []Stmt

	// SyntaxErrors lists the positions of ERROR nodes in the tree.
	SyntaxErrors []Pos
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParamKind classifies a formal parameter.
type ParamKind int

// Parameter kinds in declaration order.
const (
	ParamPosOnly ParamKind = iota
	ParamPosOrKw
	ParamKwOnly
	ParamVarPos
	ParamVarKw
)

func (k ParamKind) String() string {
	switch k {
	case ParamPosOnly:
		return "positional-only"
	case ParamPosOrKw:
		return "positional-or-keyword"
	case ParamKwOnly:
		return "keyword-only"
	case ParamVarPos:
		return "var-positional"
	case ParamVarKw:
		return "var-keyword"
	}
	return "unknown"
}

// Param is a formal parameter of a function definition.
type Param struct {
	Loc
	Name       string
	Kind       ParamKind
	Annotation Expr
	Default    Expr
}

// FuncDef is a (possibly decorated, possibly async) function definition.
type FuncDef struct {
	Loc
	Name       string
	Params     []*Param
	Returns    Expr
	Decorators []Expr
	Body       []Stmt
	IsAsync    bool

	// HasYield is set when the body (excluding nested scopes) yields.
	HasYield bool
}

// ClassDef is a class definition.
type ClassDef struct {
	Loc
	Name       string
	Bases      []*Arg
	Decorators []Expr
	Body       []Stmt
}

// Assign is a plain or annotated assignment. Value is nil for a bare
// annotation such as "x: int".
type Assign struct {
	Loc
	Targets    []Expr
	Annotation Expr
	Value      Expr
}

// Alias is one "name as asname" clause of an import.
type Alias struct {
	Name   string
	AsName string
}

// Import is "import a.b as c".
type Import struct {
	Loc
	Names []Alias
}

// ImportFrom is "from .mod import x as y" or "from mod import *".
type ImportFrom struct {
	Loc
	Module string
	Level  int
	Names  []Alias
	Star   bool
}

// If is an if statement; elif chains nest in Else.
type If struct {
	Loc
	Test Expr
	Body []Stmt
	Else []Stmt
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Loc
	Value Expr
}

// Return is a return statement.
type Return struct {
	Loc
	Value Expr
}

// OtherStmt is any statement the analyzer does not inspect.
type OtherStmt struct {
	Loc
	Kind string
}

func (*FuncDef) stmtNode()    {}
func (*ClassDef) stmtNode()   {}
func (*Assign) stmtNode()     {}
func (*Import) stmtNode()     {}
func (*ImportFrom) stmtNode() {}
func (*If) stmtNode()         {}
func (*ExprStmt) stmtNode()   {}
func (*Return) stmtNode()     {}
func (*OtherStmt) stmtNode()  {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ArgKind classifies an actual argument of a call.
type ArgKind int

// Actual argument kinds.
const (
	ArgPositional ArgKind = iota
	ArgNamed
	ArgStar
	ArgStarStar
)

// Arg is one actual argument of a call or class base list.
type Arg struct {
	Loc
	Kind  ArgKind
	Name  string
	Value Expr
}

// Name is an identifier reference.
type Name struct {
	Loc
	ID string
}

// Attribute is "value.attr".
type Attribute struct {
	Loc
	Value Expr
	Attr  string
}

// Call is "fn(args...)".
type Call struct {
	Loc
	Func Expr
	Args []*Arg
}

// StrLit is a string or bytes literal; adjacent literals are joined.
type StrLit struct {
	Loc
	Value     string
	IsBytes   bool
	IsFString bool
}

// IntLit is an integer literal. Overflow leaves Value zero and sets Big.
type IntLit struct {
	Loc
	Value int64
	Raw   string
	Big   bool
}

// FloatLit is a float or imaginary literal.
type FloatLit struct {
	Loc
	Raw     string
	Complex bool
}

// BoolLit is True or False.
type BoolLit struct {
	Loc
	Value bool
}

// NoneLit is None.
type NoneLit struct {
	Loc
}

// EllipsisLit is "...".
type EllipsisLit struct {
	Loc
}

// TupleExpr is a tuple display, parenthesized or not.
type TupleExpr struct {
	Loc
	Elts []Expr
}

// ListExpr is a list display.
type ListExpr struct {
	Loc
	Elts []Expr
}

// SetExpr is a set display.
type SetExpr struct {
	Loc
	Elts []Expr
}

// DictExpr is a dict display. A nil key marks a "**spread" entry.
type DictExpr struct {
	Loc
	Keys   []Expr
	Values []Expr
}

// Starred is "*value" inside a display.
type Starred struct {
	Loc
	Value Expr
}

// Subscript is "value[index, ...]".
type Subscript struct {
	Loc
	Value Expr
	Index []Expr
}

// BinOp is a binary operator expression.
type BinOp struct {
	Loc
	Op    string
	Left  Expr
	Right Expr
}

// UnaryOp is a unary operator expression.
type UnaryOp struct {
	Loc
	Op      string
	Operand Expr
}

// Other is an expression kind the analyzer treats opaquely.
type Other struct {
	Loc
	Kind string
}

func (*Name) exprNode()        {}
func (*Attribute) exprNode()   {}
func (*Call) exprNode()        {}
func (*StrLit) exprNode()      {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*BoolLit) exprNode()     {}
func (*NoneLit) exprNode()     {}
func (*EllipsisLit) exprNode() {}
func (*TupleExpr) exprNode()   {}
func (*ListExpr) exprNode()    {}
func (*SetExpr) exprNode()     {}
func (*DictExpr) exprNode()    {}
func (*Starred) exprNode()     {}
func (*Subscript) exprNode()   {}
func (*BinOp) exprNode()       {}
func (*UnaryOp) exprNode()     {}
func (*Other) exprNode()       {}

// DottedName renders Name and Attribute chains such as "pytest.mark.x".
// It returns "" for any other expression.
func DottedName(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.ID
	case *Attribute:
		if base := DottedName(e.Value); base != "" {
			return base + "." + e.Attr
		}
	}
	return ""
}

// HasStarred reports whether any element of a display is a spread.
func HasStarred(elts []Expr) bool {
	for _, e := range elts {
		if _, ok := e.(*Starred); ok {
			return true
		}
	}
	return false
}
