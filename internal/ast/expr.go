package ast

import (
	"fmt"

	"smatchgo/internal/ctype"
	"smatchgo/internal/symbol"
)

// Expr is any expression node. Every Expr carries its static type once
// the external parser has resolved it.
type Expr interface {
	Node
	ExprType() ctype.Type
}

// UnaryOp enumerates prefix/postfix unary operators.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
	UnaryNot     // !
	UnaryBitNot  // ~
	UnaryPreInc  // ++x
	UnaryPreDec  // --x
	UnaryPostInc // x++
	UnaryPostDec // x--
)

// BinaryOp enumerates C binary operators, including the logical
// short-circuit operators (handled specially by the condition engine).
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd // &
	BinOr  // |
	BinXor // ^
	BinShl
	BinShr
	BinLt
	BinLe
	BinGt
	BinGe
	BinEq
	BinNe
	BinLAnd // &&
	BinLOr  // ||
)

// IntLit is an integer constant.
type IntLit struct {
	base
	Type  ctype.Type
	Value int64
}

func (e *IntLit) NodeType() NodeType      { return INT_LIT }
func (e *IntLit) ExprType() ctype.Type    { return e.Type }
func (e *IntLit) String() string          { return fmt.Sprintf("%d", e.Value) }

// StringLit is a string literal.
type StringLit struct {
	base
	Value string
}

func (e *StringLit) NodeType() NodeType   { return STRING_LIT }
func (e *StringLit) ExprType() ctype.Type { return &ctype.PointerType{Elem: ctype.Char} }
func (e *StringLit) String() string       { return fmt.Sprintf("%q", e.Value) }

// Ident references a bound symbol.
type Ident struct {
	base
	Name string
	Sym  *symbol.Symbol
}

func (e *Ident) NodeType() NodeType { return IDENT }
func (e *Ident) ExprType() ctype.Type {
	if e.Sym != nil {
		return e.Sym.Type
	}
	return ctype.Int
}
func (e *Ident) String() string { return e.Name }

// UnaryExpr is a unary operator applied to X.
type UnaryExpr struct {
	base
	Op   UnaryOp
	X    Expr
	Type ctype.Type
}

func (e *UnaryExpr) NodeType() NodeType   { return UNARY_EXPR }
func (e *UnaryExpr) ExprType() ctype.Type { return e.Type }
func (e *UnaryExpr) String() string       { return fmt.Sprintf("unary(%v)", e.X) }

// BinaryExpr is a binary operator applied to X and Y, including && and ||.
type BinaryExpr struct {
	base
	Op   BinaryOp
	X, Y Expr
	Type ctype.Type
}

func (e *BinaryExpr) NodeType() NodeType   { return BINARY_EXPR }
func (e *BinaryExpr) ExprType() ctype.Type { return e.Type }
func (e *BinaryExpr) String() string       { return fmt.Sprintf("binary(%v, %v)", e.X, e.Y) }

// AssignExpr covers both `=` and compound assignment. CompoundOp is
// nil for plain `=`.
type AssignExpr struct {
	base
	LHS        Expr
	RHS        Expr
	CompoundOp *BinaryOp
	Type       ctype.Type
}

func (e *AssignExpr) NodeType() NodeType   { return ASSIGN_EXPR }
func (e *AssignExpr) ExprType() ctype.Type { return e.Type }
func (e *AssignExpr) String() string       { return fmt.Sprintf("assign(%v = %v)", e.LHS, e.RHS) }

// CondExpr is the ternary `cond ? then : els`.
type CondExpr struct {
	base
	Cond, Then, Else Expr
	Type             ctype.Type
}

func (e *CondExpr) NodeType() NodeType   { return COND_EXPR }
func (e *CondExpr) ExprType() ctype.Type { return e.Type }
func (e *CondExpr) String() string       { return fmt.Sprintf("cond(%v ? %v : %v)", e.Cond, e.Then, e.Else) }

// CommaExpr is `X, Y`; its value and type are Y's.
type CommaExpr struct {
	base
	X, Y Expr
}

func (e *CommaExpr) NodeType() NodeType   { return COMMA_EXPR }
func (e *CommaExpr) ExprType() ctype.Type { return e.Y.ExprType() }
func (e *CommaExpr) String() string       { return fmt.Sprintf("(%v, %v)", e.X, e.Y) }

// CastExpr is an explicit `(T) X` cast.
type CastExpr struct {
	base
	Type ctype.Type
	X    Expr
}

func (e *CastExpr) NodeType() NodeType   { return CAST_EXPR }
func (e *CastExpr) ExprType() ctype.Type { return e.Type }
func (e *CastExpr) String() string       { return fmt.Sprintf("(%s)%v", e.Type, e.X) }

// MemberExpr is `base.field` (Arrow==false) or `base->field` (Arrow==true).
type MemberExpr struct {
	base
	X     Expr
	Field string
	Arrow bool
	Type  ctype.Type
}

func (e *MemberExpr) NodeType() NodeType { return MEMBER_EXPR }
func (e *MemberExpr) ExprType() ctype.Type { return e.Type }
func (e *MemberExpr) String() string {
	if e.Arrow {
		return fmt.Sprintf("%v->%s", e.X, e.Field)
	}
	return fmt.Sprintf("%v.%s", e.X, e.Field)
}

// IndexExpr is `X[Index]`.
type IndexExpr struct {
	base
	X, Index Expr
	Type     ctype.Type
}

func (e *IndexExpr) NodeType() NodeType   { return INDEX_EXPR }
func (e *IndexExpr) ExprType() ctype.Type { return e.Type }
func (e *IndexExpr) String() string       { return fmt.Sprintf("%v[%v]", e.X, e.Index) }

// AddrExpr is `&X`.
type AddrExpr struct {
	base
	X    Expr
	Type ctype.Type
}

func (e *AddrExpr) NodeType() NodeType   { return ADDR_EXPR }
func (e *AddrExpr) ExprType() ctype.Type { return e.Type }
func (e *AddrExpr) String() string       { return fmt.Sprintf("&%v", e.X) }

// DerefExpr is `*X`.
type DerefExpr struct {
	base
	X    Expr
	Type ctype.Type
}

func (e *DerefExpr) NodeType() NodeType   { return DEREF_EXPR }
func (e *DerefExpr) ExprType() ctype.Type { return e.Type }
func (e *DerefExpr) String() string       { return fmt.Sprintf("*%v", e.X) }

// CallExpr is a function call, `Callee(Args...)`. Callee is usually an
// *Ident naming the function, but may be any expression (a call through a
// function pointer).
type CallExpr struct {
	base
	Callee Expr
	Args   []Expr
	Type   ctype.Type
}

func (e *CallExpr) NodeType() NodeType   { return CALL_EXPR }
func (e *CallExpr) ExprType() ctype.Type { return e.Type }
func (e *CallExpr) String() string       { return fmt.Sprintf("%v(...)", e.Callee) }

// CalleeName returns the called function's name when Callee is a plain
// identifier, used for per-function-name hook matching.
func (e *CallExpr) CalleeName() (string, bool) {
	if id, ok := e.Callee.(*Ident); ok {
		return id.Name, true
	}
	return "", false
}

// BuiltinCall is a `__builtin_*` call with dedicated evaluator
// semantics.
type BuiltinCall struct {
	base
	Name string
	Args []Expr
	Type ctype.Type
}

func (e *BuiltinCall) NodeType() NodeType   { return BUILTIN_CALL }
func (e *BuiltinCall) ExprType() ctype.Type { return e.Type }
func (e *BuiltinCall) String() string       { return fmt.Sprintf("%s(...)", e.Name) }

// SizeofExpr is `sizeof(X)` or `sizeof(T)`; exactly one of X/OfType is set.
type SizeofExpr struct {
	base
	X      Expr
	OfType ctype.Type
}

func (e *SizeofExpr) NodeType() NodeType   { return SIZEOF_EXPR }
func (e *SizeofExpr) ExprType() ctype.Type { return ctype.UnsignedLong }
func (e *SizeofExpr) String() string       { return "sizeof(...)" }

// CompoundLiteral is `(T){ .field = expr, ... }`.
type CompoundLiteral struct {
	base
	Type   ctype.Type
	Fields []CompoundLiteralField
}

// CompoundLiteralField is one designated (or positional, Field=="") entry of
// a compound literal initializer.
type CompoundLiteralField struct {
	Field string
	Value Expr
}

func (e *CompoundLiteral) NodeType() NodeType   { return COMPOUND_LITERAL }
func (e *CompoundLiteral) ExprType() ctype.Type { return e.Type }
func (e *CompoundLiteral) String() string       { return fmt.Sprintf("(%s){...}", e.Type) }

// StmtExpr is a GNU statement expression `({ ...; last_expr; })`. The
// evaluator drives the Walker into Body and its value is Body's tail
// expression.
type StmtExpr struct {
	base
	Body *CompoundStmt
	Type ctype.Type
}

func (e *StmtExpr) NodeType() NodeType   { return STMT_EXPR }
func (e *StmtExpr) ExprType() ctype.Type { return e.Type }
func (e *StmtExpr) String() string       { return "({...})" }
