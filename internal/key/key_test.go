package key

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/symbol"
)

func TestParseBase(t *testing.T) {
	k, err := Parse("$")
	require.NoError(t, err)
	assert.False(t, k.Deref)
	assert.Empty(t, k.Steps)
	assert.Equal(t, "$", k.String())
}

func TestParseDerefBase(t *testing.T) {
	k, err := Parse("*$")
	require.NoError(t, err)
	assert.True(t, k.Deref)
	assert.Equal(t, "*$", k.String())
}

func TestParseChain(t *testing.T) {
	k, err := Parse("$->a.b[2]")
	require.NoError(t, err)
	require.Len(t, k.Steps, 3)
	assert.Equal(t, "$->a.b[2]", k.String())
}

func TestParseStarIndex(t *testing.T) {
	k, err := Parse("$->buf[*]")
	require.NoError(t, err)
	assert.Equal(t, "$->buf[*]", k.String())
}

func TestParseRejectsDeepChain(t *testing.T) {
	s := "$" + strings.Repeat("->x", MaxDepth+1)
	_, err := Parse(s)
	assert.Error(t, err)
}

func sym(name string, typ ctype.Type) *symbol.Symbol {
	return &symbol.Symbol{Name: name, Type: typ}
}

func TestExprToKeyBaseItself(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	k, ok := ExprToKey(p, p)
	require.True(t, ok)
	assert.Equal(t, "$", k.String())
}

func TestExprToKeyDeref(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	k, ok := ExprToKey(p, &ast.DerefExpr{X: p})
	require.True(t, ok)
	assert.Equal(t, "*$", k.String())
}

func TestExprToKeyMemberChain(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	e := &ast.MemberExpr{
		X:     &ast.MemberExpr{X: p, Field: "a", Arrow: true},
		Field: "b",
	}
	k, ok := ExprToKey(p, e)
	require.True(t, ok)
	assert.Equal(t, "$->a.b", k.String())
}

func TestExprToKeyNonConstantIndexRendersStar(t *testing.T) {
	a := &ast.Ident{Name: "a", Sym: sym("a", &ctype.ArrayType{Elem: ctype.Int, Len: 4})}
	i := &ast.Ident{Name: "i", Sym: sym("i", ctype.Int)}
	k, ok := ExprToKey(a, &ast.IndexExpr{X: a, Index: i})
	require.True(t, ok)
	assert.Equal(t, "$[*]", k.String())
}

func TestAddrCancelsDeref(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	e := &ast.AddrExpr{X: &ast.DerefExpr{X: p}}
	k, ok := ExprToKey(p, e)
	require.True(t, ok)
	assert.Equal(t, "$", k.String())
}

// Round-trip property: for a pure lvalue, KeyToExpr of ExprToKey denotes
// the same storage (same canonical key again).
func TestKeyRoundTrip(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	for _, src := range []string{"$", "*$", "$->a.b", "$->a[3]", "$.x"} {
		k, err := Parse(src)
		require.NoError(t, err, src)
		e, ok := KeyToExpr(p, k)
		require.True(t, ok, src)
		back, ok := ExprToKey(p, e)
		require.True(t, ok, src)
		assert.Equal(t, src, back.String())
	}
}

func TestKeyToExprRejectsStarIndex(t *testing.T) {
	p := &ast.Ident{Name: "p", Sym: sym("p", &ctype.PointerType{})}
	k, err := Parse("$->buf[*]")
	require.NoError(t, err)
	_, ok := KeyToExpr(p, k)
	assert.False(t, ok)
}

func TestExprToVarSym(t *testing.T) {
	s := sym("x", ctype.Int)
	name, got, ok := ExprToVarSym(&ast.Ident{Name: "x", Sym: s})
	require.True(t, ok)
	assert.Equal(t, "x", name)
	assert.Same(t, s, got)

	_, _, ok = ExprToVarSym(&ast.IntLit{Value: 3})
	assert.False(t, ok)
}

func TestNamedSubstitutesBase(t *testing.T) {
	k, err := Parse("$->next.prev")
	require.NoError(t, err)
	assert.Equal(t, "node->next.prev", k.Named("node"))
}
