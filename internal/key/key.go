// Package key implements the symbol and key resolver: the small canonical
// key mini-language ("$", "*$", "$->a.b[2]") and the conversions between a
// key string, an AST lvalue expression, and a (name, sym) pair. The
// grammar is parsed with participle over a five-token lexer.
package key

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"smatchgo/internal/ast"
	"smatchgo/internal/symbol"
)

// MaxDepth bounds how many member/index steps a key may chain, guarding
// against runaway recursive types.
const MaxDepth = 12

// Step is one `->name`, `.name`, or `[index]` hop after the base.
type Step struct {
	// Member is true when this step is a "->"/"." field access; false when
	// it is a "[...]" subscript.
	Member bool
	Arrow  bool // "->" vs "." ; only meaningful when Member
	Name   string

	// Index fields; only meaningful when !Member.
	IndexStar bool // non-constant index: the whole array is considered accessed
	Index     int64
}

func (s Step) String() string {
	if s.Member {
		if s.Arrow {
			return "->" + s.Name
		}
		return "." + s.Name
	}
	if s.IndexStar {
		return "[*]"
	}
	return fmt.Sprintf("[%d]", s.Index)
}

// Key is the canonical printable accessor string for an observable
// relative to a base: `$` denotes the base itself; a leading Deref means
// `*$`; Steps walk named members and indices from there.
type Key struct {
	Deref bool
	Steps []Step
}

func (k Key) String() string {
	var b strings.Builder
	if k.Deref {
		b.WriteByte('*')
	}
	b.WriteByte('$')
	for _, s := range k.Steps {
		b.WriteString(s.String())
	}
	return b.String()
}

// --- grammar ---

var keyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Arrow", Pattern: `->`},
	{Name: "Punct", Pattern: `[$.\[\]*]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type keyAST struct {
	Deref   bool       `@"*"?`
	BaseIdx *indexAST  `"$" ("[" @@ "]")?`
	Steps   []*stepAST `@@*`
}

type stepAST struct {
	Arrow string    `@("->" | ".")`
	Name  string    `@Ident`
	Index *indexAST `("[" @@ "]")?`
}

type indexAST struct {
	Star bool   `( @"*"`
	Num  *int64 `| @Int )`
}

var keyParser = participle.MustBuild[keyAST](
	participle.Lexer(keyLexer),
	participle.Elide("Whitespace"),
)

func indexStep(idx *indexAST) Step {
	if idx == nil {
		return Step{}
	}
	if idx.Star {
		return Step{Member: false, IndexStar: true}
	}
	return Step{Member: false, Index: *idx.Num}
}

// Parse reads a canonical key string into a Key, rejecting malformed syntax
// or chains deeper than MaxDepth.
func Parse(s string) (*Key, error) {
	a, err := keyParser.ParseString("", s)
	if err != nil {
		return nil, err
	}
	k := &Key{Deref: a.Deref}
	if a.BaseIdx != nil {
		k.Steps = append(k.Steps, indexStep(a.BaseIdx))
	}
	for _, st := range a.Steps {
		k.Steps = append(k.Steps, Step{Member: true, Arrow: st.Arrow == "->", Name: st.Name})
		if st.Index != nil {
			k.Steps = append(k.Steps, indexStep(st.Index))
		}
	}
	if len(k.Steps) > MaxDepth {
		return nil, fmt.Errorf("key: chain too deep (%d steps, max %d): %q", len(k.Steps), MaxDepth, s)
	}
	return k, nil
}

// --- expr <-> key ---

// sameExpr reports whether a and b denote the same storage for the purpose
// of recognizing "this is the base expression again" at the bottom of a
// recursive walk. Pointer identity covers the common case (the parser hands
// the walker the very same *ast.Ident node); as a fallback, two Idents with
// the same bound symbol are considered the same storage too.
func sameExpr(a, b ast.Expr) bool {
	if a == b {
		return true
	}
	ai, aok := a.(*ast.Ident)
	bi, bok := b.(*ast.Ident)
	if aok && bok && ai.Sym != nil && ai.Sym == bi.Sym {
		return true
	}
	return false
}

// ExprToKey computes the canonical key of target relative to base.
// Returns ok=false when target is not an lvalue chain rooted at base, or
// when the chain exceeds MaxDepth.
func ExprToKey(base, target ast.Expr) (*Key, bool) {
	steps, deref, ok := walkToBase(base, target, 0)
	if !ok {
		return nil, false
	}
	return &Key{Deref: deref, Steps: steps}, true
}

func walkToBase(base, target ast.Expr, depth int) (steps []Step, deref bool, ok bool) {
	if depth > MaxDepth {
		return nil, false, false
	}
	if sameExpr(base, target) {
		return nil, false, true
	}
	switch t := target.(type) {
	case *ast.DerefExpr:
		// "*$" only arises when dereferencing the base directly; a deeper
		// dereference (*(p->next)) is expressed as a MEMBER step on a
		// DerefExpr whose X is handled below via the member case, not here.
		if sameExpr(base, t.X) {
			return nil, true, true
		}
		return nil, false, false
	case *ast.AddrExpr:
		// "&x" cancels a leading "*": &*p denotes the same storage as p.
		if dr, isDeref := t.X.(*ast.DerefExpr); isDeref {
			return walkToBase(base, dr.X, depth+1)
		}
		return nil, false, false
	case *ast.MemberExpr:
		inner, deref, ok := walkToBase(base, t.X, depth+1)
		if !ok {
			return nil, false, false
		}
		return append(inner, Step{Member: true, Arrow: t.Arrow, Name: t.Field}), deref, true
	case *ast.IndexExpr:
		inner, deref, ok := walkToBase(base, t.X, depth+1)
		if !ok {
			return nil, false, false
		}
		if lit, isLit := t.Index.(*ast.IntLit); isLit {
			return append(inner, Step{Member: false, Index: lit.Value}), deref, true
		}
		// Non-constant index: the whole array is considered accessed.
		return append(inner, Step{Member: false, IndexStar: true}), deref, true
	default:
		return nil, false, false
	}
}

// KeyToExpr reconstructs an lvalue expression denoting key relative to
// base. Returns ok=false for keys containing a non-constant ("*") index
// step, since those denote "the whole array" rather than a single storage
// location and so have no unique expression to reconstruct.
func KeyToExpr(base ast.Expr, k *Key) (ast.Expr, bool) {
	if len(k.Steps) > MaxDepth {
		return nil, false
	}
	cur := base
	if k.Deref {
		cur = &ast.DerefExpr{X: cur}
	}
	for _, s := range k.Steps {
		if s.Member {
			cur = &ast.MemberExpr{X: cur, Field: s.Name, Arrow: s.Arrow}
			continue
		}
		if s.IndexStar {
			return nil, false
		}
		cur = &ast.IndexExpr{X: cur, Index: &ast.IntLit{Type: nil, Value: s.Index}}
	}
	return cur, true
}

// ExprToVarSym returns the (name, sym) pair an expression resolves to when
// it is a bare identifier reference; ok=false
// for any other expression shape (those need a base+key pair instead).
func ExprToVarSym(expr ast.Expr) (string, *symbol.Symbol, bool) {
	id, ok := expr.(*ast.Ident)
	if !ok || id.Sym == nil {
		return "", nil, false
	}
	return id.Name, id.Sym, true
}

// ParseInt is a small helper used by tests/checkers building keys from
// literal text without going through the full grammar.
func ParseInt(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

// Named substitutes varName for the leading "$" in k's canonical string,
// producing the storage-tree name an SM for this observable is filed
// under (e.g. base "p", key "$->next" -> "p->next"). This is the bridge
// between the base-relative Key grammar and the flat name string
// internal/state.Key.Name and internal/modtrack's prefix matching expect.
func (k Key) Named(varName string) string {
	s := k.String()
	return strings.Replace(s, "$", varName, 1)
}
