// Package eval implements the expression evaluator: symbolic evaluation
// of a C expression tree producing a range-list for its value, side
// effects on the state tree, and hook dispatches. Dispatch is a switch
// over expression node kinds, one method per kind, plus a flat name table
// for the `__builtin_*` catalog.
package eval

import (
	"math/bits"

	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/facts"
	"smatchgo/internal/hooks"
	"smatchgo/internal/key"
	"smatchgo/internal/merge"
	"smatchgo/internal/modtrack"
	"smatchgo/internal/state"
	"smatchgo/internal/sval"
	"smatchgo/internal/symbol"
)

// RLState wraps a range-list as a state.State, the lattice value the
// engine's own "extra" owner (state.OwnerExtra) stores for every tracked
// scalar/pointer observable.
type RLState struct{ RL sval.RangeList }

func (s RLState) String() string { return s.RL.String() }

// CondEngine is the subset of internal/cond.Engine the evaluator needs:
// splitting a boolean expression's incoming stree into its true/false
// successors.
// Defined here (not imported from internal/cond) so internal/cond can
// depend on internal/eval without a cycle; internal/engine wires the two
// together after constructing both.
type CondEngine interface {
	Split(tree *state.Stree, e ast.Expr) (trueTree, falseTree *state.Stree)
}

// BlockWalker is the subset of internal/walk.Walker the evaluator needs
// to re-enter the control-flow walker for a GNU statement expression: the
// evaluator drives the walker into the block and picks up the value from
// the yielded stree. Defined here for the same reason as CondEngine.
type BlockWalker interface {
	WalkBlock(tree *state.Stree, body *ast.CompoundStmt) (sval.RangeList, *state.Stree)
}

// BuiltinFn implements one `__builtin_*` form.
type BuiltinFn func(ev *Evaluator, tree *state.Stree, call *ast.BuiltinCall) (sval.RangeList, *state.Stree)

// InlineFn walks an inline-marked callee's body in place at the call
// site, returning the call's value range and the post-call stree;
// ok=false when the callee is not an inline definition known to the
// driver. Wired by internal/engine.
type InlineFn func(tree *state.Stree, call *ast.CallExpr, name string, argRLs []sval.RangeList) (sval.RangeList, *state.Stree, bool)

// Evaluator is the Expression Evaluator. Its dependencies are injected so
// internal/engine can wire the full cyclic component graph (walker <->
// evaluator <-> condition engine) without a Go import cycle.
type Evaluator struct {
	Hooks    *hooks.Registry
	Mod      *modtrack.Registry
	Merge    *merge.Registry
	Cond     CondEngine
	Walker   BlockWalker
	Facts    FactsLookup
	Inline   InlineFn
	Builtins map[string]BuiltinFn
}

// FactsLookup is the subset of internal/facts.DB the evaluator needs at a
// call site to resolve cross-function summaries. A nil
// FactsLookup degrades gracefully to --no-db behavior: every function is
// analyzed in isolation. internal/facts.DB
// satisfies this directly.
type FactsLookup interface {
	SelectReturnStates(file, function string, static bool, cb func(facts.ReturnStateFact)) error
	SelectReturnImplies(file, function string, static bool, cb func(facts.ReturnImpliesFact)) error
	SelectFunctionPtr(memberPath string) (string, bool, error)
}

// New returns an Evaluator with the standard `__builtin_*` catalog
// installed. Cond and Walker are nil until internal/engine sets them.
func New(h *hooks.Registry, mod *modtrack.Registry, mrg *merge.Registry) *Evaluator {
	ev := &Evaluator{Hooks: h, Mod: mod, Merge: mrg}
	ev.Builtins = defaultBuiltins()
	return ev
}

// --- hook payloads (documented here per internal/hooks.Fn's contract) ---

type SymPayload struct {
	Tree *state.Stree
	Expr *ast.Ident
}
type DerefPayload struct {
	Tree *state.Stree
	X    ast.Expr
	Pos  ast.Position // the dereference site itself, for diagnostics
	// Index is non-nil when this dereference arose from an array subscript
	// (x[i]), carrying i's evaluated range-list; nil for a plain pointer
	// dereference or struct-member access.
	Index *sval.RangeList
}
type OpPayload struct {
	Tree *state.Stree
	Expr *ast.UnaryExpr
}
type BinopPayload struct {
	Tree *state.Stree
	Expr *ast.BinaryExpr
}
type AssignmentPayload struct {
	Tree       *state.Stree
	Expr       *ast.AssignExpr
	Name       string
	Sym        *symbol.Symbol
}
type FunctionCallPayload struct {
	Tree *state.Stree
	Call *ast.CallExpr
	Name string
	// ArgRLs holds each argument's evaluated range-list, index-aligned with
	// Call.Args, so hooks (e.g. the driver's caller_info collector) don't
	// re-evaluate arguments and double-apply their side effects.
	ArgRLs []sval.RangeList
}
type CallAssignmentPayload struct {
	Tree *state.Stree
	Call *ast.CallExpr
	LHS  ast.Expr
}
type ReturnStatesPayload struct {
	Tree     *state.Stree
	Call     *ast.CallExpr
	Param    int
	Key      string
	Value    string
	ReturnID int
}

// Eval evaluates e against tree, returning its range-list value and the
// (possibly modified) resulting stree. When it cannot determine a value it
// returns the whole range for the expression's type rather than guessing.
func (ev *Evaluator) Eval(tree *state.Stree, e ast.Expr) (sval.RangeList, *state.Stree) {
	if e == nil {
		return sval.Empty(ctype.Int), tree
	}
	switch n := e.(type) {
	case *ast.IntLit:
		t := n.Type
		if t == nil {
			t = ctype.Int
		}
		return sval.Single(sval.Int(t, n.Value)), tree

	case *ast.StringLit:
		return nonZeroPointer(), tree

	case *ast.Ident:
		return ev.evalIdent(tree, n)

	case *ast.UnaryExpr:
		return ev.evalUnary(tree, n)

	case *ast.BinaryExpr:
		return ev.evalBinary(tree, n)

	case *ast.AssignExpr:
		return ev.evalAssign(tree, n)

	case *ast.CondExpr:
		return ev.evalCond(tree, n)

	case *ast.CommaExpr:
		_, tree = ev.Eval(tree, n.X)
		return ev.Eval(tree, n.Y)

	case *ast.CastExpr:
		rl, tree := ev.Eval(tree, n.X)
		return sval.Cast(n.Type, rl), tree

	case *ast.MemberExpr:
		return ev.evalLValue(tree, n, n.Type, n.Arrow, nil)

	case *ast.IndexExpr:
		idxRL, tree2 := ev.Eval(tree, n.Index)
		tree = tree2
		return ev.evalLValue(tree, n, n.Type, isPointerIndexBase(n.X), &idxRL)

	case *ast.AddrExpr:
		_, tree = ev.Eval(tree, n.X)
		return nonZeroPointer(), tree

	case *ast.DerefExpr:
		return ev.evalDeref(tree, n)

	case *ast.CallExpr:
		return ev.evalCall(tree, n)

	case *ast.BuiltinCall:
		return ev.evalBuiltin(tree, n)

	case *ast.SizeofExpr:
		return ev.evalSizeof(tree, n)

	case *ast.CompoundLiteral:
		for _, f := range n.Fields {
			_, tree = ev.Eval(tree, f.Value)
		}
		return sval.Whole(n.Type), tree

	case *ast.StmtExpr:
		if ev.Walker != nil {
			return ev.Walker.WalkBlock(tree, n.Body)
		}
		return sval.Whole(n.Type), tree

	default:
		return sval.Whole(e.ExprType()), tree
	}
}

func isPointerIndexBase(x ast.Expr) bool {
	return ctype.IsPointerish(x.ExprType())
}

func nonZeroPointer() sval.RangeList {
	whole := sval.Whole(&ctype.PointerType{})
	zero := sval.Single(sval.Uint(&ctype.PointerType{}, 0))
	return sval.Remove(whole, zero)
}

func (ev *Evaluator) evalIdent(tree *state.Stree, id *ast.Ident) (sval.RangeList, *state.Stree) {
	if ev.Hooks != nil {
		pld := &SymPayload{Tree: tree, Expr: id}
		ev.Hooks.Dispatch(hooks.Sym, pld)
		tree = pld.Tree
	}
	if sm, ok := tree.Get(state.Key{Owner: state.OwnerExtra, Name: id.Name, Sym: id.Sym}); ok {
		if rs, ok := sm.Cur.(RLState); ok {
			return rs.RL, tree
		}
	}
	return sval.Whole(id.ExprType()), tree
}

func (ev *Evaluator) evalUnary(tree *state.Stree, n *ast.UnaryExpr) (sval.RangeList, *state.Stree) {
	switch n.Op {
	case ast.UnaryPreInc, ast.UnaryPreDec, ast.UnaryPostInc, ast.UnaryPostDec:
		old, tree2 := ev.Eval(tree, n.X)
		delta := int64(1)
		if n.Op == ast.UnaryPreDec || n.Op == ast.UnaryPostDec {
			delta = -1
		}
		t := n.Type
		if t == nil {
			t = n.X.ExprType()
		}
		newRL := binopRL(old, ast.BinAdd, sval.Single(sval.Int(t, delta)), t)
		tree3 := ev.writeLValue(tree2, n.X, newRL)
		if ev.Hooks != nil {
			ev.Hooks.Dispatch(hooks.Op, OpPayload{Tree: tree3, Expr: n})
		}
		if n.Op == ast.UnaryPreInc || n.Op == ast.UnaryPreDec {
			return newRL, tree3
		}
		return old, tree3
	case ast.UnaryNot:
		rl, tree2 := ev.Eval(tree, n.X)
		return logicalNot(rl, n.X.ExprType()), tree2
	case ast.UnaryMinus:
		rl, tree2 := ev.Eval(tree, n.X)
		t := n.Type
		if t == nil {
			t = n.X.ExprType()
		}
		return negateRL(rl, t), tree2
	default:
		rl, tree2 := ev.Eval(tree, n.X)
		if n.Type != nil {
			return sval.Whole(n.Type), tree2
		}
		return rl, tree2
	}
}

func logicalNot(rl sval.RangeList, t ctype.Type) sval.RangeList {
	zero := sval.Int(t, 0)
	if rl.IsEmpty() {
		return rl
	}
	if rl.Contains(zero) && len(rl.Interval) == 1 && rl.Interval[0].Min.Cmp(zero) == 0 && rl.Interval[0].Max.Cmp(zero) == 0 {
		return sval.Single(sval.Int(ctype.Int, 1))
	}
	if !rl.Contains(zero) {
		return sval.Single(sval.Int(ctype.Int, 0))
	}
	return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, 1))
}

func negateRL(rl sval.RangeList, t ctype.Type) sval.RangeList {
	if rl.IsEmpty() {
		return rl
	}
	var out sval.RangeList
	first := true
	for _, iv := range rl.Interval {
		neg := sval.Alloc(negSval(iv.Max, t), negSval(iv.Min, t))
		if first {
			out = neg
			first = false
		} else {
			out = sval.Union(out, neg)
		}
	}
	return out
}

func negSval(v sval.Sval, t ctype.Type) sval.Sval {
	if v.Signed() {
		return sval.Int(t, -v.Int64())
	}
	return sval.Uint(t, -v.Uint64())
}

func binopRL(a sval.RangeList, op ast.BinaryOp, b sval.RangeList, t ctype.Type) sval.RangeList {
	if a.IsEmpty() || b.IsEmpty() {
		return sval.Empty(t)
	}
	bop, ok := toSvalOp(op)
	if !ok {
		return sval.Whole(t)
	}
	var out sval.RangeList
	first := true
	overflowed := false
	for _, x := range a.Interval {
		for _, y := range b.Interval {
			corners := [][2]sval.Sval{{x.Min, y.Min}, {x.Min, y.Max}, {x.Max, y.Min}, {x.Max, y.Max}}
			for _, c := range corners {
				res := sval.Binop(c[0], bop, c[1], t)
				if res.Overflow {
					overflowed = true
					continue
				}
				one := sval.Single(res.Value)
				if first {
					out = one
					first = false
				} else {
					out = sval.Union(out, one)
				}
			}
		}
	}
	if overflowed || first {
		return sval.Whole(t)
	}
	return out
}

func toSvalOp(op ast.BinaryOp) (sval.BinOp, bool) {
	switch op {
	case ast.BinAdd:
		return sval.OpAdd, true
	case ast.BinSub:
		return sval.OpSub, true
	case ast.BinMul:
		return sval.OpMul, true
	case ast.BinDiv:
		return sval.OpDiv, true
	case ast.BinMod:
		return sval.OpMod, true
	case ast.BinAnd:
		return sval.OpAnd, true
	case ast.BinOr:
		return sval.OpOr, true
	case ast.BinXor:
		return sval.OpXor, true
	case ast.BinShl:
		return sval.OpShl, true
	case ast.BinShr:
		return sval.OpShr, true
	default:
		return 0, false
	}
}

func (ev *Evaluator) evalBinary(tree *state.Stree, n *ast.BinaryExpr) (sval.RangeList, *state.Stree) {
	if n.Op == ast.BinLAnd || n.Op == ast.BinLOr {
		if ev.Cond != nil {
			t, f := ev.Cond.Split(tree, n)
			var policy state.Policy
			if ev.Merge != nil {
				policy = ev.Merge
			}
			merged := state.Merge(policy, t, f)
			return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, 1)), merged
		}
		_, tree2 := ev.Eval(tree, n.X)
		_, tree3 := ev.Eval(tree2, n.Y)
		return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, 1)), tree3
	}

	rlX, tree2 := ev.Eval(tree, n.X)
	rlY, tree3 := ev.Eval(tree2, n.Y)
	if ev.Hooks != nil {
		ev.Hooks.Dispatch(hooks.Binop, BinopPayload{Tree: tree3, Expr: n})
	}
	t := n.Type
	if t == nil {
		t = ctype.Int
	}
	if isCompare(n.Op) {
		return compareRL(rlX, n.Op, rlY), tree3
	}
	return binopRL(rlX, n.Op, rlY, t), tree3
}

func isCompare(op ast.BinaryOp) bool {
	switch op {
	case ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe, ast.BinEq, ast.BinNe:
		return true
	default:
		return false
	}
}

// compareRL evaluates a comparison as a plain value (not in condition
// context, where internal/cond does precise narrowing instead): exact when
// both sides are single constants, otherwise the whole {0,1} range.
func compareRL(a sval.RangeList, op ast.BinaryOp, b sval.RangeList) sval.RangeList {
	av, aok := a.Min()
	bv, bok := b.Min()
	aMax, _ := a.Max()
	bMax, _ := b.Max()
	if aok && bok && av.Cmp(aMax) == 0 && bv.Cmp(bMax) == 0 {
		c := av.Cmp(bv)
		var result bool
		switch op {
		case ast.BinLt:
			result = c < 0
		case ast.BinLe:
			result = c <= 0
		case ast.BinGt:
			result = c > 0
		case ast.BinGe:
			result = c >= 0
		case ast.BinEq:
			result = c == 0
		case ast.BinNe:
			result = c != 0
		}
		if result {
			return sval.Single(sval.Int(ctype.Int, 1))
		}
		return sval.Single(sval.Int(ctype.Int, 0))
	}
	return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, 1))
}

func (ev *Evaluator) evalAssign(tree *state.Stree, n *ast.AssignExpr) (sval.RangeList, *state.Stree) {
	rhsRL, tree2 := ev.Eval(tree, n.RHS)
	t := n.Type
	if t == nil {
		t = n.LHS.ExprType()
	}
	newRL := rhsRL
	if n.CompoundOp != nil {
		oldRL, _ := ev.Eval(tree2, n.LHS)
		newRL = binopRL(oldRL, *n.CompoundOp, rhsRL, t)
	}
	name, sym, ok := ev.resolveLValue(n.LHS)
	if ev.Hooks != nil {
		pld := &AssignmentPayload{Tree: tree2, Expr: n, Name: name, Sym: sym}
		ev.Hooks.Dispatch(hooks.Assignment, pld)
		tree2 = pld.Tree
	}
	tree3 := tree2
	if ok {
		if ev.Mod != nil {
			ev.Mod.Notify(tree2, name, sym)
		}
		tree3 = tree2.Set(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}, RLState{RL: newRL})
	}
	if ev.Hooks != nil {
		pld := &AssignmentPayload{Tree: tree3, Expr: n, Name: name, Sym: sym}
		ev.Hooks.Dispatch(hooks.AssignmentAfter, pld)
		tree3 = pld.Tree
		if call, isCall := n.RHS.(*ast.CallExpr); isCall {
			pld := &CallAssignmentPayload{Tree: tree3, Call: call, LHS: n.LHS}
			ev.Hooks.Dispatch(hooks.CallAssignment, pld)
			tree3 = pld.Tree
		}
	}
	return newRL, tree3
}

func (ev *Evaluator) writeLValue(tree *state.Stree, lhs ast.Expr, rl sval.RangeList) *state.Stree {
	name, sym, ok := ev.resolveLValue(lhs)
	if !ok {
		return tree
	}
	if ev.Mod != nil {
		ev.Mod.Notify(tree, name, sym)
	}
	return tree.Set(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}, RLState{RL: rl})
}

// ResolveLValueForCond exposes resolveLValue to internal/cond, which needs
// it to file a narrowed range-list back under the same key the evaluator
// itself reads on the next Ident/MemberExpr/IndexExpr lookup.
func (ev *Evaluator) ResolveLValueForCond(e ast.Expr) (string, *symbol.Symbol, bool) {
	return ev.resolveLValue(e)
}

// resolveLValue reduces any lvalue expression to the flat (name, sym) pair
// its own-owned extra state is filed under, via internal/key's base+chain
// resolution.
func (ev *Evaluator) resolveLValue(e ast.Expr) (string, *symbol.Symbol, bool) {
	root, ok := rootIdent(e)
	if !ok {
		return "", nil, false
	}
	if root == e {
		return root.Name, root.Sym, true
	}
	k, ok := key.ExprToKey(root, e)
	if !ok {
		return "", nil, false
	}
	return k.Named(root.Name), root.Sym, true
}

func rootIdent(e ast.Expr) (*ast.Ident, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n, true
	case *ast.MemberExpr:
		return rootIdent(n.X)
	case *ast.IndexExpr:
		return rootIdent(n.X)
	case *ast.DerefExpr:
		return rootIdent(n.X)
	default:
		return nil, false
	}
}

func (ev *Evaluator) evalCond(tree *state.Stree, n *ast.CondExpr) (sval.RangeList, *state.Stree) {
	if ev.Cond != nil {
		t, f := ev.Cond.Split(tree, n.Cond)
		thenRL, thenTree := ev.Eval(t, n.Then)
		elseRL, elseTree := ev.Eval(f, n.Else)
		merged := thenTree
		if ev.Merge != nil {
			merged = state.Merge(ev.Merge, thenTree, elseTree)
		}
		return sval.Union(thenRL, elseRL), merged
	}
	_, tree2 := ev.Eval(tree, n.Cond)
	thenRL, tree3 := ev.Eval(tree2, n.Then)
	elseRL, tree4 := ev.Eval(tree3, n.Else)
	return sval.Union(thenRL, elseRL), tree4
}

func (ev *Evaluator) evalLValue(tree *state.Stree, e ast.Expr, t ctype.Type, derefs bool, index *sval.RangeList) (sval.RangeList, *state.Stree) {
	if derefs {
		if mx, ok := memberBase(e); ok {
			if ev.Hooks != nil {
				pld := &DerefPayload{Tree: tree, X: mx, Pos: e.NodePos(), Index: index}
				ev.Hooks.Dispatch(hooks.Deref, pld)
				tree = pld.Tree
			}
		}
	}
	name, sym, ok := ev.resolveLValue(e)
	if ok {
		if sm, ok := tree.Get(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}); ok {
			if rs, ok := sm.Cur.(RLState); ok {
				return rs.RL, tree
			}
		}
	}
	return sval.Whole(t), tree
}

func memberBase(e ast.Expr) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.MemberExpr:
		return n.X, true
	case *ast.IndexExpr:
		return n.X, true
	default:
		return nil, false
	}
}

func (ev *Evaluator) evalDeref(tree *state.Stree, n *ast.DerefExpr) (sval.RangeList, *state.Stree) {
	_, tree2 := ev.Eval(tree, n.X)
	if ev.Hooks != nil {
		pld := &DerefPayload{Tree: tree2, X: n.X, Pos: n.NodePos()}
		ev.Hooks.Dispatch(hooks.Deref, pld)
		tree2 = pld.Tree
	}
	name, sym, ok := ev.resolveLValue(n)
	if ok {
		if sm, ok := tree2.Get(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}); ok {
			if rs, ok := sm.Cur.(RLState); ok {
				return rs.RL, tree2
			}
		}
	}
	t := n.Type
	if t == nil {
		t = ctype.Int
	}
	return sval.Whole(t), tree2
}

func (ev *Evaluator) evalCall(tree *state.Stree, n *ast.CallExpr) (sval.RangeList, *state.Stree) {
	argRLs := make([]sval.RangeList, 0, len(n.Args))
	for _, a := range n.Args {
		var rl sval.RangeList
		rl, tree = ev.Eval(tree, a)
		argRLs = append(argRLs, rl)
	}
	name, named := n.CalleeName()
	if !named {
		name, named = ev.resolveFnPtrCallee(n)
	}
	if !named {
		// Call through an unknown/unresolved callee: conservatively mark
		// every address-taken argument modified.
		if ev.Mod != nil {
			var args []modtrack.NameSym
			for _, a := range n.Args {
				if addr, ok := a.(*ast.AddrExpr); ok {
					if nm, sym, ok := ev.resolveLValue(addr.X); ok {
						args = append(args, modtrack.NameSym{Name: nm, Sym: sym})
					}
				}
			}
			ev.Mod.NotifyAll(tree, args)
		}
		if ev.Hooks != nil {
			pld := &FunctionCallPayload{Tree: tree, Call: n, ArgRLs: argRLs}
			ev.Hooks.Dispatch(hooks.FunctionCall, pld)
			tree = pld.Tree
		}
		return sval.Whole(n.Type), tree
	}

	if ev.Hooks != nil {
		pld := &FunctionCallPayload{Tree: tree, Call: n, Name: name, ArgRLs: argRLs}
		ev.Hooks.Dispatch(hooks.FunctionCall, pld)
		tree = pld.Tree
		pld = &FunctionCallPayload{Tree: tree, Call: n, Name: name, ArgRLs: argRLs}
		ev.Hooks.DispatchFnHooks(name, pld)
		tree = pld.Tree
		for i := range n.Args {
			pld = &FunctionCallPayload{Tree: tree, Call: n, Name: name, ArgRLs: argRLs}
			ev.Hooks.DispatchParamKeyHooks(name, i, "$", pld)
			tree = pld.Tree
		}
	}

	if ev.Inline != nil {
		if rl, out, ok := ev.Inline(tree, n, name, argRLs); ok {
			return rl, out
		}
	}

	retRL := sval.Whole(n.Type)
	if ev.Facts != nil {
		var fromDB sval.RangeList
		sawRanges := false
		ev.Facts.SelectReturnStates("", name, false, func(f facts.ReturnStateFact) {
			if f.Type == facts.ReturnValue {
				if rl, err := sval.ParseRL(n.Type, f.ReturnRanges); err == nil {
					if sawRanges {
						fromDB = sval.Union(fromDB, rl)
					} else {
						fromDB = rl
						sawRanges = true
					}
				}
				return
			}
			if ev.Hooks != nil {
				pld := &ReturnStatesPayload{Tree: tree, Call: n, Param: f.Param, Key: f.Key, Value: f.Value, ReturnID: f.ReturnID}
				ev.Hooks.DispatchReturnStates(string(f.Type), pld)
				tree = pld.Tree
			}
		})
		if sawRanges && !fromDB.IsEmpty() {
			retRL = fromDB
		}
	}
	if ev.Hooks != nil {
		pld := &FunctionCallPayload{Tree: tree, Call: n, Name: name, ArgRLs: argRLs}
		ev.Hooks.Dispatch(hooks.FunctionCallAfterDB, pld)
		tree = pld.Tree
	}
	return retRL, tree
}

// resolveFnPtrCallee resolves a call through a struct-member function
// pointer (`dev->ops->open(...)`) to a concrete function name using the
// function_ptr table: the member chain is rendered as
// "struct <name>-><member chain>" the same way the binding side records it.
func (ev *Evaluator) resolveFnPtrCallee(n *ast.CallExpr) (string, bool) {
	if ev.Facts == nil {
		return "", false
	}
	path, ok := MemberPath(n.Callee)
	if !ok {
		return "", false
	}
	name, found, err := ev.Facts.SelectFunctionPtr(path)
	if err != nil || !found {
		return "", false
	}
	return name, true
}

// MemberPath renders a struct-member chain as the canonical member_path
// string the function_ptr table is keyed by: the innermost struct type's
// printed name followed by the member step. Keying by type means every
// instance of the struct shares its bindings.
func MemberPath(e ast.Expr) (string, bool) {
	m, ok := e.(*ast.MemberExpr)
	if !ok {
		return "", false
	}
	baseT := m.X.ExprType()
	if pt, isPtr := baseT.(*ctype.PointerType); isPtr {
		baseT = pt.Elem
	}
	st, ok := baseT.(*ctype.StructType)
	if !ok {
		return "", false
	}
	return st.String() + "->" + m.Field, true
}

// ReturnImpliesPayload is dispatched (via the hooks registry's stored-fact
// return-implies table) when a call's return value is known to fall inside
// a stored return_implies row's range.
type ReturnImpliesPayload struct {
	Tree  *state.Stree
	Call  *ast.CallExpr
	Param int
	Key   string
	Value string
}

// ApplyReturnImplies activates every stored return_implies fact for call
// whose range intersects retRL — conditional facts activated by a concrete
// return value at the call site. The condition engine calls this once per
// branch with that branch's narrowed return range.
func (ev *Evaluator) ApplyReturnImplies(tree *state.Stree, call *ast.CallExpr, retRL sval.RangeList) *state.Stree {
	if ev.Facts == nil || ev.Hooks == nil {
		return tree
	}
	name, ok := call.CalleeName()
	if !ok {
		return tree
	}
	t := call.Type
	if t == nil {
		t = ctype.Int
	}
	ev.Facts.SelectReturnImplies("", name, false, func(f facts.ReturnImpliesFact) {
		lo, errLo := sval.ParseRL(t, f.RangeStart)
		hi, errHi := sval.ParseRL(t, f.RangeEnd)
		if errLo != nil || errHi != nil {
			return
		}
		loV, okLo := lo.Min()
		hiV, okHi := hi.Max()
		if !okLo || !okHi {
			return
		}
		if sval.Intersect(retRL, sval.Alloc(loV, hiV)).IsEmpty() {
			return
		}
		pld := &ReturnImpliesPayload{Tree: tree, Call: call, Param: f.Param, Key: f.Key, Value: f.Value}
		ev.Hooks.DispatchReturnImpliesFact(string(f.Type), pld)
		tree = pld.Tree
	})
	return tree
}

func (ev *Evaluator) evalSizeof(tree *state.Stree, n *ast.SizeofExpr) (sval.RangeList, *state.Stree) {
	t := n.OfType
	if t == nil && n.X != nil {
		t = n.X.ExprType()
	}
	if t == nil {
		return sval.Whole(ctype.UnsignedLong), tree
	}
	return sval.Single(sval.Uint(ctype.UnsignedLong, uint64(ctype.ByteSize(t)))), tree
}

func (ev *Evaluator) evalBuiltin(tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
	if fn, ok := ev.Builtins[n.Name]; ok {
		return fn(ev, tree, n)
	}
	for _, a := range n.Args {
		_, tree = ev.Eval(tree, a)
	}
	return sval.Whole(n.Type), tree
}

func defaultBuiltins() map[string]BuiltinFn {
	return map[string]BuiltinFn{
		"__builtin_constant_p": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			if len(n.Args) == 0 {
				return sval.Single(sval.Int(ctype.Int, 0)), tree
			}
			rl, tree2 := ev.Eval(tree, n.Args[0])
			mn, okMn := rl.Min()
			mx, _ := rl.Max()
			if okMn && mn.Cmp(mx) == 0 {
				return sval.Single(sval.Int(ctype.Int, 1)), tree2
			}
			return sval.Single(sval.Int(ctype.Int, 0)), tree2
		},
		"__builtin_object_size": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			for _, a := range n.Args {
				_, tree = ev.Eval(tree, a)
			}
			// Unknown object size: the real builtin's documented fallback
			// is (size_t)-1 when the type/flags don't let it be computed.
			return sval.Single(sval.Uint(ctype.UnsignedLong, ^uint64(0))), tree
		},
		"__builtin_types_compatible_p": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			// The evaluator only sees Args (no separate type operands in
			// this AST), so real type-compatibility can't be decided here;
			// conservatively returns whole {0,1}.
			return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, 1)), tree
		},
		"__builtin_popcount": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			if len(n.Args) == 0 {
				return sval.Whole(ctype.Int), tree
			}
			rl, tree2 := ev.Eval(tree, n.Args[0])
			mn, ok := rl.Min()
			mx, _ := rl.Max()
			if ok && mn.Cmp(mx) == 0 {
				return sval.Single(sval.Int(ctype.Int, int64(bits.OnesCount64(mn.Uint64())))), tree2
			}
			w := n.Args[0].ExprType().Bits()
			if w <= 0 {
				w = 32
			}
			return sval.Alloc(sval.Int(ctype.Int, 0), sval.Int(ctype.Int, int64(w))), tree2
		},
		"__builtin_fma": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			for _, a := range n.Args {
				_, tree = ev.Eval(tree, a)
			}
			return sval.Whole(n.Type), tree
		},
		"__builtin_unreachable": func(ev *Evaluator, tree *state.Stree, n *ast.BuiltinCall) (sval.RangeList, *state.Stree) {
			return sval.Empty(ctype.Int), tree
		},
	}
}
