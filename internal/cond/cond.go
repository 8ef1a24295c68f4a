// Package cond implements the condition engine: splitting a
// boolean-context expression's stree into the true/false successor strees
// a branch walk needs, narrowing comparisons against a range-list operand,
// treating pointer expressions as implicitly compared against NULL, and
// recursively forking && / || so each side's narrowing composes correctly.
// Narrowing works by intersect/remove on the operand's existing range-list
// rather than re-deriving it from scratch.
package cond

import (
	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/state"
	"smatchgo/internal/sval"
)

// ConditionPayload is the payload dispatched on hooks.Condition: fired once
// per condition expression evaluated, carrying the trees for both
// outcomes.
type ConditionPayload struct {
	Expr      ast.Expr
	TrueTree  *state.Stree
	FalseTree *state.Stree
}

// Engine implements eval.CondEngine by delegating leaf/operand evaluation
// to an underlying *eval.Evaluator and handling the boolean connectives and
// comparison narrowing itself.
type Engine struct {
	Eval  *eval.Evaluator
	Hooks *hooks.Registry
}

// New returns a condition engine wrapping ev. Callers (internal/engine)
// must also set ev.Cond = this Engine so nested &&/|| encountered outside
// statement-condition context route back through the same narrowing logic.
func New(ev *eval.Evaluator, h *hooks.Registry) *Engine {
	return &Engine{Eval: ev, Hooks: h}
}

// Split evaluates e against tree in boolean context, returning the stree
// that results when e is true and the stree that results when e is
// false. The two returned trees are independent forks of tree; callers
// join them with internal/state.Merge once both arms of the branch finish.
func (eg *Engine) Split(tree *state.Stree, e ast.Expr) (trueTree, falseTree *state.Stree) {
	t, f := eg.splitExpr(tree, e)
	if eg.Hooks != nil {
		pld := &ConditionPayload{Expr: e, TrueTree: t, FalseTree: f}
		eg.Hooks.Dispatch(hooks.Condition, pld)
		t, f = pld.TrueTree, pld.FalseTree
	}
	return t, f
}

func (eg *Engine) splitExpr(tree *state.Stree, e ast.Expr) (*state.Stree, *state.Stree) {
	switch n := e.(type) {
	case *ast.BinaryExpr:
		switch n.Op {
		case ast.BinLAnd:
			return eg.splitAnd(tree, n.X, n.Y)
		case ast.BinLOr:
			return eg.splitOr(tree, n.X, n.Y)
		case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe:
			return eg.splitComparison(tree, n)
		case ast.BinAnd:
			return eg.splitBitTest(tree, n)
		}
	case *ast.UnaryExpr:
		if n.Op == ast.UnaryNot {
			t, f := eg.splitExpr(tree, n.X)
			return f, t
		}
	}
	// Generic fallback: plain truthiness of e's evaluated range against 0.
	// splitTruthy does the single evaluation itself; evaluating here too
	// would run e's side effects (and its call hooks) twice.
	return eg.splitTruthy(tree, e)
}

// splitAnd implements `X && Y`: the true side requires both X and Y true,
// so it narrows through X's true tree then Y's true tree. The false side
// is X-false union'd with (Y-false within X-true).
func (eg *Engine) splitAnd(tree *state.Stree, x, y ast.Expr) (*state.Stree, *state.Stree) {
	xt, xf := eg.splitExpr(tree, x)
	yt, yf := eg.splitExpr(xt, y)
	merged := xf
	if eg.Eval.Merge != nil {
		merged = state.Merge(eg.Eval.Merge, xf, yf)
	}
	return yt, merged
}

// splitOr implements `X || Y`: the false side requires both X and Y false.
// The true side is X-true union'd with (X-false narrowed through Y-true).
func (eg *Engine) splitOr(tree *state.Stree, x, y ast.Expr) (*state.Stree, *state.Stree) {
	xt, xf := eg.splitExpr(tree, x)
	yt, yf := eg.splitExpr(xf, y)
	merged := xt
	if eg.Eval.Merge != nil {
		merged = state.Merge(eg.Eval.Merge, xt, yt)
	}
	return merged, yf
}

// splitComparison narrows a typed state's range-list on each side of `X op
// Y`: when the other operand is determinable, the narrowed
// operand's stored range-list is written back into the resulting tree. A
// compared call expression additionally activates any stored
// return_implies facts whose range intersects the branch's narrowed return
// range.
func (eg *Engine) splitComparison(tree *state.Stree, n *ast.BinaryExpr) (*state.Stree, *state.Stree) {
	rlX, tree1 := eg.Eval.Eval(tree, n.X)
	rlY, tree2 := eg.Eval.Eval(tree1, n.Y)

	trueRLx, falseRLx := narrowByComparison(rlX, n.Op, rlY)
	trueRLy, falseRLy := narrowByComparison(rlY, flip(n.Op), rlX)

	trueTree := eg.writeNarrowed(tree2, n.X, trueRLx)
	trueTree = eg.writeNarrowed(trueTree, n.Y, trueRLy)
	falseTree := eg.writeNarrowed(tree2, n.X, falseRLx)
	falseTree = eg.writeNarrowed(falseTree, n.Y, falseRLy)
	trueTree = eg.applyCallImplies(trueTree, n.X, trueRLx)
	trueTree = eg.applyCallImplies(trueTree, n.Y, trueRLy)
	falseTree = eg.applyCallImplies(falseTree, n.X, falseRLx)
	falseTree = eg.applyCallImplies(falseTree, n.Y, falseRLy)
	return trueTree, falseTree
}

func (eg *Engine) applyCallImplies(tree *state.Stree, e ast.Expr, retRL sval.RangeList) *state.Stree {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return tree
	}
	return eg.Eval.ApplyReturnImplies(tree, call, retRL)
}

func flip(op ast.BinaryOp) ast.BinaryOp {
	switch op {
	case ast.BinLt:
		return ast.BinGt
	case ast.BinLe:
		return ast.BinGe
	case ast.BinGt:
		return ast.BinLt
	case ast.BinGe:
		return ast.BinLe
	default:
		return op
	}
}

// narrowByComparison returns the range-list a's side of `a op b` has when
// the comparison is true, and when it is false. b is taken as the
// (possibly non-constant) other side's range-list: narrowing still applies
// when b is a single value, and degrades to a's own unmodified range when b
// is not determinable enough to narrow against.
func narrowByComparison(a sval.RangeList, op ast.BinaryOp, b sval.RangeList) (trueRL, falseRL sval.RangeList) {
	if a.IsEmpty() || b.IsEmpty() {
		return a, a
	}
	bMin, _ := b.Min()
	bMax, _ := b.Max()
	switch op {
	case ast.BinEq:
		return sval.Intersect(a, b), removeIfSingle(a, b)
	case ast.BinNe:
		return removeIfSingle(a, b), sval.Intersect(a, b)
	case ast.BinLt:
		return clampAbove(a, bMax, true), clampBelow(a, bMin, false)
	case ast.BinLe:
		return clampAbove(a, bMax, false), clampBelow(a, bMin, true)
	case ast.BinGt:
		return clampBelow(a, bMin, true), clampAbove(a, bMax, false)
	case ast.BinGe:
		return clampBelow(a, bMin, false), clampAbove(a, bMax, true)
	default:
		return a, a
	}
}

func removeIfSingle(a, b sval.RangeList) sval.RangeList {
	bMin, ok := b.Min()
	bMax, _ := b.Max()
	if !ok || bMin.Cmp(bMax) != 0 {
		return a
	}
	return sval.Remove(a, sval.Single(bMin))
}

// clampAbove narrows a to values <= bound (strict when exclusive).
func clampAbove(a sval.RangeList, bound sval.Sval, exclusive bool) sval.RangeList {
	hi := bound
	if exclusive {
		hi = decOne(bound)
	}
	lo, _ := a.Min()
	return sval.Intersect(a, sval.Alloc(lo, hi))
}

// clampBelow narrows a to values >= bound (strict when exclusive).
func clampBelow(a sval.RangeList, bound sval.Sval, exclusive bool) sval.RangeList {
	lo := bound
	if exclusive {
		lo = incOne(bound)
	}
	hi, _ := a.Max()
	return sval.Intersect(a, sval.Alloc(lo, hi))
}

func decOne(v sval.Sval) sval.Sval {
	if v.Signed() {
		return sval.Int(v.Type, v.Int64()-1)
	}
	return sval.Uint(v.Type, v.Uint64()-1)
}

func incOne(v sval.Sval) sval.Sval {
	if v.Signed() {
		return sval.Int(v.Type, v.Int64()+1)
	}
	return sval.Uint(v.Type, v.Uint64()+1)
}

// enumLimit bounds how many concrete values a range may hold before bit
// refinement gives up: intervals can't represent "bit k set" in general,
// so the set/clear halves are computed by enumeration and that only pays
// off for small ranges.
const enumLimit = 64

// splitBitTest narrows `x & mask` in condition context when mask is a
// single-bit constant (a single-bit test splits x's range into its bit-set
// and bit-clear halves). x's range is refined by enumerating
// its values when small enough; a wide range or a multi-bit mask falls
// back to the plain truthiness split of the whole expression.
func (eg *Engine) splitBitTest(tree *state.Stree, n *ast.BinaryExpr) (*state.Stree, *state.Stree) {
	rlX, tree1 := eg.Eval.Eval(tree, n.X)
	rlMask, tree2 := eg.Eval.Eval(tree1, n.Y)
	maskV, ok := singleBitMask(rlMask)
	if !ok {
		return eg.splitTruthy(tree2, n)
	}
	setRL, clearRL, ok := partitionByBit(rlX, maskV.Uint64())
	if !ok {
		return eg.splitTruthy(tree2, n)
	}
	trueTree := eg.writeNarrowed(tree2, n.X, setRL)
	falseTree := eg.writeNarrowed(tree2, n.X, clearRL)
	return trueTree, falseTree
}

// partitionByBit enumerates rl's values (when at most enumLimit of them)
// into those with bit set and those with it clear.
func partitionByBit(rl sval.RangeList, bit uint64) (setRL, clearRL sval.RangeList, ok bool) {
	if rl.IsEmpty() {
		return rl, rl, false
	}
	total := uint64(0)
	for _, iv := range rl.Interval {
		span := iv.Max.Uint64() - iv.Min.Uint64() + 1
		total += span
		if total > enumLimit {
			return sval.RangeList{}, sval.RangeList{}, false
		}
	}
	t := rl.Type
	if t == nil {
		t = ctype.Int
	}
	setRL, clearRL = sval.Empty(t), sval.Empty(t)
	for _, iv := range rl.Interval {
		for v := iv.Min.Uint64(); ; v++ {
			one := sval.Single(sval.Uint(t, v))
			if v&bit != 0 {
				setRL = sval.Union(setRL, one)
			} else {
				clearRL = sval.Union(clearRL, one)
			}
			if v == iv.Max.Uint64() {
				break
			}
		}
	}
	return setRL, clearRL, true
}

func singleBitMask(rl sval.RangeList) (sval.Sval, bool) {
	v, ok := rl.Min()
	max, _ := rl.Max()
	if !ok || v.Cmp(max) != 0 {
		return sval.Sval{}, false
	}
	u := v.Uint64()
	if u != 0 && u&(u-1) == 0 {
		return v, true
	}
	return sval.Sval{}, false
}

// writeNarrowed stores rl back as e's observable range-list in tree, if e
// resolves to a trackable lvalue; otherwise returns tree unchanged.
func (eg *Engine) writeNarrowed(tree *state.Stree, e ast.Expr, rl sval.RangeList) *state.Stree {
	name, sym, ok := eg.Eval.ResolveLValueForCond(e)
	if !ok {
		return tree
	}
	return tree.Set(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}, eval.RLState{RL: rl})
}

// splitTruthy is the generic boolean split for any expression the engine
// doesn't have a dedicated narrowing rule for: pointers are compared
// against NULL, and
// plain scalars are compared against zero.
func (eg *Engine) splitTruthy(tree *state.Stree, e ast.Expr) (*state.Stree, *state.Stree) {
	rl, tree2 := eg.Eval.Eval(tree, e)
	t := e.ExprType()
	if t == nil {
		t = ctype.Int
	}
	zero := sval.Int(t, 0)
	if ctype.IsPointerish(t) {
		zero = sval.Uint(t, 0)
	}
	trueRL := sval.Remove(rl, sval.Single(zero))
	falseRL := sval.Intersect(rl, sval.Single(zero))
	trueTree := eg.writeNarrowed(tree2, e, trueRL)
	falseTree := eg.writeNarrowed(tree2, e, falseRL)
	trueTree = eg.applyCallImplies(trueTree, e, trueRL)
	falseTree = eg.applyCallImplies(falseTree, e, falseRL)
	return trueTree, falseTree
}
