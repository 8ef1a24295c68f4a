package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/hooks"
	"smatchgo/internal/merge"
	"smatchgo/internal/modtrack"
	"smatchgo/internal/state"
	"smatchgo/internal/sval"
	"smatchgo/internal/symbol"
)

func newEval() *Evaluator {
	return New(hooks.NewRegistry(), modtrack.NewRegistry(), merge.NewRegistry())
}

func intLit(v int64) *ast.IntLit { return &ast.IntLit{Type: ctype.Int, Value: v} }

func local(name string) *ast.Ident {
	return &ast.Ident{Name: name, Sym: &symbol.Symbol{Name: name, Type: ctype.Int}}
}

func TestConstantIsSingletonRange(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), intLit(42))
	mn, ok := rl.Min()
	require.True(t, ok)
	mx, _ := rl.Max()
	assert.Equal(t, int64(42), mn.Int64())
	assert.Equal(t, int64(42), mx.Int64())
}

func TestBinopFoldsConstants(t *testing.T) {
	ev := newEval()
	e := &ast.BinaryExpr{X: intLit(6), Op: ast.BinMul, Y: intLit(7), Type: ctype.Int}
	rl, _ := ev.Eval(state.New(), e)
	mn, _ := rl.Min()
	mx, _ := rl.Max()
	assert.Equal(t, int64(42), mn.Int64())
	assert.Equal(t, int64(42), mx.Int64())
}

func TestBinopOverflowYieldsWholeRange(t *testing.T) {
	ev := newEval()
	big := &ast.IntLit{Type: ctype.Int, Value: 1 << 30}
	e := &ast.BinaryExpr{X: big, Op: ast.BinMul, Y: big, Type: ctype.Int}
	rl, _ := ev.Eval(state.New(), e)
	assert.True(t, rl.IsWhole())
}

func TestAssignmentStoresRange(t *testing.T) {
	ev := newEval()
	x := local("x")
	e := &ast.AssignExpr{LHS: x, RHS: intLit(5), Type: ctype.Int}
	_, tree := ev.Eval(state.New(), e)

	rl, _ := ev.Eval(tree, x)
	mn, _ := rl.Min()
	mx, _ := rl.Max()
	assert.Equal(t, int64(5), mn.Int64())
	assert.Equal(t, int64(5), mx.Int64())
}

func TestCompoundAssignmentReadsOldValue(t *testing.T) {
	ev := newEval()
	x := local("x")
	op := ast.BinAdd
	set := &ast.AssignExpr{LHS: x, RHS: intLit(5), Type: ctype.Int}
	add := &ast.AssignExpr{LHS: x, RHS: intLit(3), CompoundOp: &op, Type: ctype.Int}
	_, tree := ev.Eval(state.New(), set)
	rl, _ := ev.Eval(tree, add)
	mn, _ := rl.Min()
	assert.Equal(t, int64(8), mn.Int64())
}

func TestPreIncrementWritesBack(t *testing.T) {
	ev := newEval()
	x := local("x")
	set := &ast.AssignExpr{LHS: x, RHS: intLit(1), Type: ctype.Int}
	_, tree := ev.Eval(state.New(), set)
	inc := &ast.UnaryExpr{Op: ast.UnaryPreInc, X: x, Type: ctype.Int}
	rl, tree2 := ev.Eval(tree, inc)
	mn, _ := rl.Min()
	assert.Equal(t, int64(2), mn.Int64())

	stored, _ := ev.Eval(tree2, x)
	smn, _ := stored.Min()
	assert.Equal(t, int64(2), smn.Int64())
}

func TestPostIncrementYieldsOldValue(t *testing.T) {
	ev := newEval()
	x := local("x")
	set := &ast.AssignExpr{LHS: x, RHS: intLit(1), Type: ctype.Int}
	_, tree := ev.Eval(state.New(), set)
	inc := &ast.UnaryExpr{Op: ast.UnaryPostInc, X: x, Type: ctype.Int}
	rl, tree2 := ev.Eval(tree, inc)
	mn, _ := rl.Min()
	assert.Equal(t, int64(1), mn.Int64())

	stored, _ := ev.Eval(tree2, x)
	smn, _ := stored.Min()
	assert.Equal(t, int64(2), smn.Int64())
}

func TestUnknownVariableFallsBackToTypeRange(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), local("y"))
	assert.True(t, rl.IsWhole())
}

func TestLogicalNotOfConstant(t *testing.T) {
	ev := newEval()
	e := &ast.UnaryExpr{Op: ast.UnaryNot, X: intLit(0), Type: ctype.Int}
	rl, _ := ev.Eval(state.New(), e)
	mn, _ := rl.Min()
	assert.Equal(t, int64(1), mn.Int64())

	e2 := &ast.UnaryExpr{Op: ast.UnaryNot, X: intLit(7), Type: ctype.Int}
	rl2, _ := ev.Eval(state.New(), e2)
	mn2, _ := rl2.Min()
	assert.Equal(t, int64(0), mn2.Int64())
}

func TestCommaYieldsSecondOperand(t *testing.T) {
	ev := newEval()
	e := &ast.CommaExpr{X: intLit(1), Y: intLit(9)}
	rl, _ := ev.Eval(state.New(), e)
	mn, _ := rl.Min()
	assert.Equal(t, int64(9), mn.Int64())
}

func TestSizeofConstants(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), &ast.SizeofExpr{OfType: ctype.Int})
	mn, _ := rl.Min()
	assert.Equal(t, uint64(4), mn.Uint64())

	arr := &ctype.ArrayType{Elem: ctype.Int, Len: 4}
	rl2, _ := ev.Eval(state.New(), &ast.SizeofExpr{OfType: arr})
	mn2, _ := rl2.Min()
	assert.Equal(t, uint64(16), mn2.Uint64())
}

func TestBuiltinConstantP(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), &ast.BuiltinCall{Name: "__builtin_constant_p", Args: []ast.Expr{intLit(3)}, Type: ctype.Int})
	mn, _ := rl.Min()
	assert.Equal(t, int64(1), mn.Int64())

	rl2, _ := ev.Eval(state.New(), &ast.BuiltinCall{Name: "__builtin_constant_p", Args: []ast.Expr{local("v")}, Type: ctype.Int})
	mn2, _ := rl2.Min()
	assert.Equal(t, int64(0), mn2.Int64())
}

func TestBuiltinPopcountConstant(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), &ast.BuiltinCall{Name: "__builtin_popcount", Args: []ast.Expr{intLit(7)}, Type: ctype.Int})
	mn, _ := rl.Min()
	assert.Equal(t, int64(3), mn.Int64())
}

func TestBuiltinUnreachableIsEmpty(t *testing.T) {
	ev := newEval()
	rl, _ := ev.Eval(state.New(), &ast.BuiltinCall{Name: "__builtin_unreachable", Type: ctype.Void})
	assert.True(t, rl.IsEmpty())
}

func TestCallDispatchesFnHooksOnce(t *testing.T) {
	ev := newEval()
	fired := 0
	ev.Hooks.RegisterFnHook("kfree", func(payload any, cookie any) { fired++ }, nil)
	call := &ast.CallExpr{Callee: &ast.Ident{Name: "kfree"}, Args: []ast.Expr{local("p")}, Type: ctype.Void}
	ev.Eval(state.New(), call)
	assert.Equal(t, 1, fired)
}

func TestCallPayloadCarriesArgRanges(t *testing.T) {
	ev := newEval()
	var got []sval.RangeList
	ev.Hooks.Register(hooks.FunctionCall, func(payload any) {
		got = payload.(*FunctionCallPayload).ArgRLs
	})
	call := &ast.CallExpr{Callee: &ast.Ident{Name: "g"}, Args: []ast.Expr{intLit(3), intLit(4)}, Type: ctype.Int}
	ev.Eval(state.New(), call)
	require.Len(t, got, 2)
	mn, _ := got[1].Min()
	assert.Equal(t, int64(4), mn.Int64())
}

func TestMemberAssignmentTracksChainKey(t *testing.T) {
	ev := newEval()
	st := &ctype.StructType{Name: "foo", Fields: []ctype.Field{{Name: "len", Type: ctype.Int}}}
	p := &ast.Ident{Name: "p", Sym: &symbol.Symbol{Name: "p", Type: &ctype.PointerType{Elem: st}}}
	lhs := &ast.MemberExpr{X: p, Field: "len", Arrow: true, Type: ctype.Int}
	e := &ast.AssignExpr{LHS: lhs, RHS: intLit(12), Type: ctype.Int}
	_, tree := ev.Eval(state.New(), e)

	sm, ok := tree.Get(state.Key{Owner: state.OwnerExtra, Name: "p->len", Sym: p.Sym})
	require.True(t, ok)
	rs := sm.Cur.(RLState)
	mn, _ := rs.RL.Min()
	assert.Equal(t, int64(12), mn.Int64())
}

func TestMemberPath(t *testing.T) {
	st := &ctype.StructType{Name: "file_ops", Fields: []ctype.Field{{Name: "open", Type: &ctype.FuncType{}}}}
	p := &ast.Ident{Name: "ops", Sym: &symbol.Symbol{Name: "ops", Type: &ctype.PointerType{Elem: st}}}
	path, ok := MemberPath(&ast.MemberExpr{X: p, Field: "open", Arrow: true, Type: &ctype.FuncType{}})
	require.True(t, ok)
	assert.Equal(t, "struct file_ops->open", path)
}
