package ast

import "smatchgo/internal/ctype"

// Stmt is any statement node.
type Stmt interface {
	Node
}

// CompoundStmt is `{ ... }`: a scope-introducing sequence of statements.
type CompoundStmt struct {
	base
	Stmts []Stmt
	// TailExpr is set only when this compound is the body of a statement
	// expression and its last element is an expression whose value
	// becomes the statement expression's value.
	TailExpr Expr
}

func (s *CompoundStmt) NodeType() NodeType { return COMPOUND_STMT }
func (s *CompoundStmt) String() string     { return "{...}" }

// ExprStmt is a bare expression statement; its value is evaluated and
// discarded.
type ExprStmt struct {
	base
	X Expr
}

func (s *ExprStmt) NodeType() NodeType { return EXPR_STMT }
func (s *ExprStmt) String() string     { return s.X.String() + ";" }

// DeclStmt declares one or more local variables, each with an optional
// initializer.
type DeclStmt struct {
	base
	Decls []*VarDecl
}

func (s *DeclStmt) NodeType() NodeType { return DECL_STMT }
func (s *DeclStmt) String() string     { return "decl" }

// VarDecl is one declared variable (used both at file scope as a top-level
// declaration and inside a DeclStmt).
type VarDecl struct {
	base
	Name string
	Type ctype.Type
	Init Expr // nil when uninitialized
}

func (d *VarDecl) NodeType() NodeType { return VAR_DECL }
func (d *VarDecl) String() string     { return d.Name }

// IfStmt is `if (Cond) Then [else Else]`.
type IfStmt struct {
	base
	Cond       Expr
	Then, Else Stmt // Else is nil when absent
}

func (s *IfStmt) NodeType() NodeType { return IF_STMT }
func (s *IfStmt) String() string     { return "if (...) ..." }

// WhileStmt is `while (Cond) Body`.
type WhileStmt struct {
	base
	Cond Expr
	Body Stmt
}

func (s *WhileStmt) NodeType() NodeType { return WHILE_STMT }
func (s *WhileStmt) String() string     { return "while (...) ..." }

// DoStmt is `do Body while (Cond);`.
type DoStmt struct {
	base
	Body Stmt
	Cond Expr
}

func (s *DoStmt) NodeType() NodeType { return DO_STMT }
func (s *DoStmt) String() string     { return "do ... while (...)" }

// ForStmt is `for (Init; Cond; Post) Body`. Any of Init/Cond/Post may be
// nil.
type ForStmt struct {
	base
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
}

func (s *ForStmt) NodeType() NodeType { return FOR_STMT }
func (s *ForStmt) String() string     { return "for (...) ..." }

// SwitchStmt is `switch (Tag) Body`, where Body is typically a
// CompoundStmt containing CaseStmt/DefaultStmt labels.
type SwitchStmt struct {
	base
	Tag  Expr
	Body Stmt
}

func (s *SwitchStmt) NodeType() NodeType { return SWITCH_STMT }
func (s *SwitchStmt) String() string     { return "switch (...) ..." }

// CaseStmt is a `case Value:` label attached to the statement that follows.
type CaseStmt struct {
	base
	Value Expr
	Body  Stmt
}

func (s *CaseStmt) NodeType() NodeType { return CASE_STMT }
func (s *CaseStmt) String() string     { return "case ...:" }

// DefaultStmt is the `default:` label.
type DefaultStmt struct {
	base
	Body Stmt
}

func (s *DefaultStmt) NodeType() NodeType { return DEFAULT_STMT }
func (s *DefaultStmt) String() string     { return "default:" }

// ReturnStmt snapshots the current state tree into the function's
// all_return_states list and marks the path unreachable.
type ReturnStmt struct {
	base
	Value Expr // nil for `return;`
}

func (s *ReturnStmt) NodeType() NodeType { return RETURN_STMT }
func (s *ReturnStmt) String() string     { return "return ...;" }

// BreakStmt merges the current stree into the enclosing construct's break
// collector and marks the path unreachable.
type BreakStmt struct{ base }

func (s *BreakStmt) NodeType() NodeType { return BREAK_STMT }
func (s *BreakStmt) String() string     { return "break;" }

// ContinueStmt merges the current stree into the enclosing construct's
// continue collector and marks the path unreachable.
type ContinueStmt struct{ base }

func (s *ContinueStmt) NodeType() NodeType { return CONTINUE_STMT }
func (s *ContinueStmt) String() string     { return "continue;" }

// GotoStmt jumps to Label.
type GotoStmt struct {
	base
	Label string
}

func (s *GotoStmt) NodeType() NodeType { return GOTO_STMT }
func (s *GotoStmt) String() string     { return "goto " + s.Label + ";" }

// LabelStmt declares a label attached to the statement that follows.
type LabelStmt struct {
	base
	Name string
	Body Stmt
}

func (s *LabelStmt) NodeType() NodeType { return LABEL_STMT }
func (s *LabelStmt) String() string     { return s.Name + ":" }
