package ast

import (
	"smatchgo/internal/ctype"
	"smatchgo/internal/symbol"
)

// TranslationUnit is the root node the external parser hands the engine:
// one preprocessed C source file's top-level declarations.
type TranslationUnit struct {
	base
	File  string
	Decls []Node // *FunctionDef, *VarDecl, or *StructDecl
}

func (u *TranslationUnit) NodeType() NodeType { return TRANSLATION_UNIT }
func (u *TranslationUnit) String() string     { return u.File }

// Param is one function parameter; Sym is bound by the parser.
type Param struct {
	Name string
	Type ctype.Type
	Sym  *symbol.Symbol
}

// FunctionDef is a function definition with a body (the walker runs one
// per function, in the order the parser hands them over). Inline marks a
// definition the evaluator may walk in place at a call site, firing the
// INLINE_FN_START/INLINE_FN_END events around the inlined body.
type FunctionDef struct {
	base
	Name       string
	Params     []Param
	ReturnType ctype.Type
	Variadic   bool
	Body       *CompoundStmt
	Static     bool
	Inline     bool
}

func (f *FunctionDef) NodeType() NodeType { return FUNCTION_DEF }
func (f *FunctionDef) String() string     { return f.Name + "(...)" }

// StructDecl is a top-level struct or union declaration.
type StructDecl struct {
	base
	Type *ctype.StructType
}

func (d *StructDecl) NodeType() NodeType { return STRUCT_DECL }
func (d *StructDecl) String() string {
	if d.Type == nil {
		return "struct"
	}
	return d.Type.String()
}
