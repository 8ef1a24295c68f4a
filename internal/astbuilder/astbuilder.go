// Package astbuilder is an internal, explicitly non-production
// test-fixture helper: it builds small *ast.FunctionDef trees
// programmatically (Call, If, Free, Return, ...) so engine and checker
// tests can exercise the control-flow walker without a real C parser.
package astbuilder

import (
	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/symbol"
)

// Func starts building a function named name returning retType.
func Func(name string, retType ctype.Type) *FuncBuilder {
	return &FuncBuilder{
		def: &ast.FunctionDef{
			Name:       name,
			ReturnType: retType,
		},
	}
}

// FuncBuilder accumulates a function's parameters and body statements.
type FuncBuilder struct {
	def   *ast.FunctionDef
	stmts []ast.Stmt
}

// Param appends a parameter of the given name and type, binding a fresh
// *symbol.Symbol the same way the (external, out-of-scope) parser would.
func (b *FuncBuilder) Param(name string, t ctype.Type) *FuncBuilder {
	sym := &symbol.Symbol{Name: name, Kind: symbol.KindParameter, Type: t}
	b.def.Params = append(b.def.Params, ast.Param{Name: name, Type: t, Sym: sym})
	return b
}

// Static marks the function `static`.
func (b *FuncBuilder) Static() *FuncBuilder {
	b.def.Static = true
	return b
}

// Inline marks the function as an inline definition the evaluator may walk
// in place at its call sites.
func (b *FuncBuilder) Inline() *FuncBuilder {
	b.def.Inline = true
	return b
}

// At sets the function's declaration position (tests asserting on
// diagnostic lines use this for distinct per-fixture file names).
func (b *FuncBuilder) At(file string, line int) *FuncBuilder {
	b.def.Pos = ast.Position{File: file, Line: line}
	b.def.EndPos = ast.Position{File: file, Line: line}
	return b
}

// Stmt appends one statement to the function body.
func (b *FuncBuilder) Stmt(s ast.Stmt) *FuncBuilder {
	b.stmts = append(b.stmts, s)
	return b
}

// Build finalizes the function, wrapping the accumulated statements in a
// CompoundStmt body.
func (b *FuncBuilder) Build() *ast.FunctionDef {
	b.def.Body = &ast.CompoundStmt{Stmts: b.stmts}
	return b.def
}

// --- expression helpers ---

// Ident references sym by name.
func Ident(name string, sym *symbol.Symbol) *ast.Ident {
	return &ast.Ident{Name: name, Sym: sym}
}

// ParamRef resolves to the symbol bound to a parameter previously added via
// FuncBuilder.Param, for use in the body's statements.
func ParamRef(fn *ast.FunctionDef, name string) *ast.Ident {
	for _, p := range fn.Params {
		if p.Name == name {
			return &ast.Ident{Name: name, Sym: p.Sym}
		}
	}
	return &ast.Ident{Name: name}
}

// Int builds an integer literal of the given type.
func Int(t ctype.Type, v int64) *ast.IntLit {
	return &ast.IntLit{Type: t, Value: v}
}

// Call builds a call expression to a named function (the common case: the
// callee resolves to a plain identifier, matching *ast.CallExpr.CalleeName).
func Call(name string, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Callee: &ast.Ident{Name: name}, Args: args, Type: &ctype.PointerType{}}
}

// CallAs is Call with an explicit result type (for non-pointer-returning
// calls, e.g. an int-returning lock function).
func CallAs(name string, t ctype.Type, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Callee: &ast.Ident{Name: name}, Args: args, Type: t}
}

// Deref builds `*x`.
func Deref(x ast.Expr) *ast.DerefExpr {
	t := x.ExprType()
	var elem ctype.Type = ctype.Int
	if pt, ok := t.(*ctype.PointerType); ok && pt.Elem != nil {
		elem = pt.Elem
	}
	return &ast.DerefExpr{X: x, Type: elem}
}

// Addr builds `&x`.
func Addr(x ast.Expr) *ast.AddrExpr {
	return &ast.AddrExpr{X: x, Type: &ctype.PointerType{Elem: x.ExprType()}}
}

// Index builds `x[i]`.
func Index(x ast.Expr, i int64) *ast.IndexExpr {
	t := x.ExprType()
	var elem ctype.Type = ctype.Int
	if at, ok := t.(*ctype.ArrayType); ok {
		elem = at.Elem
	} else if pt, ok := t.(*ctype.PointerType); ok && pt.Elem != nil {
		elem = pt.Elem
	}
	return &ast.IndexExpr{X: x, Index: Int(ctype.Int, i), Type: elem}
}

// Assign builds `lhs = rhs`.
func Assign(lhs, rhs ast.Expr) *ast.AssignExpr {
	return &ast.AssignExpr{LHS: lhs, RHS: rhs, Type: lhs.ExprType()}
}

// Binary builds a binary-operator expression.
func Binary(x ast.Expr, op ast.BinaryOp, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{X: x, Y: y, Op: op, Type: ctype.Int}
}

// --- statement helpers ---

// ExprStmt wraps e as a bare expression statement.
func ExprStmt(e ast.Expr) *ast.ExprStmt { return &ast.ExprStmt{X: e} }

// Free is shorthand for ExprStmt(Call("free", Ident(...))), the single most
// common fixture shape across the reference checkers' tests.
func Free(name string, sym *symbol.Symbol) *ast.ExprStmt {
	return ExprStmt(Call("free", Ident(name, sym)))
}

// Decl declares a local variable, optionally initialized.
func Decl(name string, t ctype.Type, init ast.Expr) *ast.DeclStmt {
	return &ast.DeclStmt{Decls: []*ast.VarDecl{{Name: name, Type: t, Init: init}}}
}

// If builds `if (cond) then [else els]`. els may be nil.
func If(cond ast.Expr, then ast.Stmt, els ast.Stmt) *ast.IfStmt {
	return &ast.IfStmt{Cond: cond, Then: then, Else: els}
}

// Block wraps stmts in a CompoundStmt.
func Block(stmts ...ast.Stmt) *ast.CompoundStmt {
	return &ast.CompoundStmt{Stmts: stmts}
}

// Return builds `return value;` (value may be nil for `return;`).
func Return(value ast.Expr) *ast.ReturnStmt { return &ast.ReturnStmt{Value: value} }

// While builds `while (cond) body`.
func While(cond ast.Expr, body ast.Stmt) *ast.WhileStmt {
	return &ast.WhileStmt{Cond: cond, Body: body}
}

// For builds `for (init; cond; post) body`.
func For(init ast.Stmt, cond ast.Expr, post ast.Expr, body ast.Stmt) *ast.ForStmt {
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body}
}

// Do builds `do body while (cond);`.
func Do(body ast.Stmt, cond ast.Expr) *ast.DoStmt {
	return &ast.DoStmt{Body: body, Cond: cond}
}

// Switch builds `switch (tag) { stmts... }`.
func Switch(tag ast.Expr, stmts ...ast.Stmt) *ast.SwitchStmt {
	return &ast.SwitchStmt{Tag: tag, Body: Block(stmts...)}
}

// Case builds `case value: body`.
func Case(value ast.Expr, body ast.Stmt) *ast.CaseStmt {
	return &ast.CaseStmt{Value: value, Body: body}
}

// Default builds `default: body`.
func Default(body ast.Stmt) *ast.DefaultStmt {
	return &ast.DefaultStmt{Body: body}
}

// Break and Continue build the corresponding jump statements.
func Break() *ast.BreakStmt       { return &ast.BreakStmt{} }
func Continue() *ast.ContinueStmt { return &ast.ContinueStmt{} }

// Goto builds `goto label;`; Label builds `label: body`.
func Goto(label string) *ast.GotoStmt            { return &ast.GotoStmt{Label: label} }
func Label(name string, body ast.Stmt) *ast.LabelStmt { return &ast.LabelStmt{Name: name, Body: body} }

// Member builds `x->field` (arrow) or `x.field`.
func Member(x ast.Expr, field string, arrow bool, t ctype.Type) *ast.MemberExpr {
	return &ast.MemberExpr{X: x, Field: field, Arrow: arrow, Type: t}
}

// Unary builds a unary-operator expression of x's type.
func Unary(op ast.UnaryOp, x ast.Expr) *ast.UnaryExpr {
	return &ast.UnaryExpr{Op: op, X: x, Type: x.ExprType()}
}

// CompoundAssign builds `lhs op= rhs`.
func CompoundAssign(lhs ast.Expr, op ast.BinaryOp, rhs ast.Expr) *ast.AssignExpr {
	o := op
	return &ast.AssignExpr{LHS: lhs, RHS: rhs, CompoundOp: &o, Type: lhs.ExprType()}
}

// StmtExpr builds a GNU statement expression whose value is tail, walked
// after stmts.
func StmtExpr(t ctype.Type, tail ast.Expr, stmts ...ast.Stmt) *ast.StmtExpr {
	body := Block(stmts...)
	body.TailExpr = tail
	return &ast.StmtExpr{Body: body, Type: t}
}
