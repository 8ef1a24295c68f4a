// Package walk implements the control-flow walker: the per-function
// abstract interpreter that drives the expression evaluator and condition
// engine statement by statement, threading the state tree through compound
// blocks, branches, and bounded-unrolled loops, and collecting every
// reachable return point's final stree.
package walk

import (
	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/merge"
	"smatchgo/internal/state"
	"smatchgo/internal/sval"
)

// Walker is the control-flow walker. A nil tree anywhere in this package
// means "this path is unreachable": the path ended in a
// return/break/continue/goto, so dead code after the jump is never walked.
type Walker struct {
	Eval  *eval.Evaluator
	Hooks *hooks.Registry
	Merge *merge.Registry
	// Bail, when set, is consulted at every statement boundary: once it
	// reports true the remainder of the function body is skipped, though
	// return states collected so far still flow to the summary database.
	Bail func() bool
}

// New returns a Walker driving ev, which must already have its Cond field
// set by the caller (internal/engine) to get branch-aware narrowing;
// without it, conditions degrade to plain truthiness splits.
func New(ev *eval.Evaluator, h *hooks.Registry, mrg *merge.Registry) *Walker {
	return &Walker{Eval: ev, Hooks: h, Merge: mrg}
}

// --- hook payloads ---

type StmtPayload struct {
	Tree *state.Stree
	Stmt ast.Stmt
}
type DeclarationPayload struct {
	Tree *state.Stree
	Decl *ast.VarDecl
}
type ReturnPayload struct {
	Tree  *state.Stree
	Value ast.Expr
	RL    sval.RangeList // the returned value's evaluated range; empty for `return;`
	Pos   ast.Position
}
type FuncDefPayload struct {
	Fn *ast.FunctionDef
}

type loopCtx struct {
	breaks    []*state.Stree
	continues []*state.Stree
}

type funcCtx struct {
	returns     []*state.Stree
	returnRLs   []sval.RangeList
	loops       []*loopCtx
	gotoPending map[string]*state.Stree
}

func newFuncCtx() *funcCtx {
	return &funcCtx{gotoPending: make(map[string]*state.Stree)}
}

func (f *funcCtx) currentLoop() *loopCtx {
	if len(f.loops) == 0 {
		return nil
	}
	return f.loops[len(f.loops)-1]
}

// WalkFunction runs the Walker over fn's body starting from initial,
// returning every reachable return point's final stree (these feed the
// summary database once the function pass completes) plus the merged
// fall-off-the-end stree for functions lacking an explicit return on every
// path.
func (w *Walker) WalkFunction(fn *ast.FunctionDef, initial *state.Stree) []*state.Stree {
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.FuncDef, FuncDefPayload{Fn: fn})
	}
	fctx := newFuncCtx()
	tree := w.seedParams(initial, fn)
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.AfterDef, FuncDefPayload{Fn: fn})
	}
	tree = w.walkCompound(fctx, tree, fn.Body)
	if tree != nil {
		// Fell off the end of the function with no explicit return: this is
		// itself a return point, with no return value.
		pld := ReturnPayload{Tree: tree, Value: nil, Pos: fn.NodeEndPos()}
		if w.Hooks != nil {
			w.Hooks.Dispatch(hooks.Return, pld)
			w.Hooks.DispatchSplitReturn(pld)
		}
		fctx.returns = append(fctx.returns, tree)
		fctx.returnRLs = append(fctx.returnRLs, sval.Empty(fn.ReturnType))
	}
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.EndFunc, FuncDefPayload{Fn: fn})
		w.Hooks.Dispatch(hooks.AfterFunc, FuncDefPayload{Fn: fn})
	}
	return fctx.returns
}

// seedParams gives every parameter its declared-type whole range unless
// the initial stree (derived from caller_info facts) already holds a
// sharper one for it.
func (w *Walker) seedParams(tree *state.Stree, fn *ast.FunctionDef) *state.Stree {
	for _, p := range fn.Params {
		k := state.Key{Owner: state.OwnerExtra, Name: p.Name, Sym: p.Sym}
		if _, seeded := tree.Get(k); seeded {
			continue
		}
		tree = tree.Set(k, eval.RLState{RL: sval.Whole(p.Type)})
	}
	return tree
}

// WalkInline walks an inline-marked callee's body at a call site, framed
// by INLINE_FN_START/INLINE_FN_END: no FUNC_DEF/END_FUNC events fire (the
// caller's walk is still the active function), and the result is the union
// of every return value's range plus the merge of every return-point
// stree.
func (w *Walker) WalkInline(fn *ast.FunctionDef, initial *state.Stree) (sval.RangeList, *state.Stree) {
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.InlineFnStart, FuncDefPayload{Fn: fn})
	}
	fctx := newFuncCtx()
	tree := w.seedParams(initial, fn)
	tree = w.walkCompound(fctx, tree, fn.Body)
	out := tree
	for _, rt := range fctx.returns {
		out = w.unionNilable(out, rt)
	}
	rl := sval.Empty(fn.ReturnType)
	for _, rrl := range fctx.returnRLs {
		rl = sval.Union(rl, rrl)
	}
	if rl.IsEmpty() {
		rl = sval.Whole(fn.ReturnType)
	}
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.InlineFnEnd, FuncDefPayload{Fn: fn})
	}
	return rl, out
}

// WalkBlock implements eval.BlockWalker, re-entering the walker for a GNU
// statement expression body; its value is body's TailExpr, evaluated in the
// stree reached after walking every preceding statement.
func (w *Walker) WalkBlock(tree *state.Stree, body *ast.CompoundStmt) (sval.RangeList, *state.Stree) {
	fctx := newFuncCtx()
	out := w.walkCompound(fctx, tree, body)
	if out == nil {
		return sval.Empty(ctype.Int), tree
	}
	if body.TailExpr != nil {
		return w.Eval.Eval(out, body.TailExpr)
	}
	return sval.Whole(ctype.Int), out
}

func (w *Walker) walkCompound(fctx *funcCtx, tree *state.Stree, body *ast.CompoundStmt) *state.Stree {
	for _, s := range body.Stmts {
		if tree == nil {
			break
		}
		tree = w.walkStmt(fctx, tree, s)
	}
	return tree
}

func (w *Walker) walkStmt(fctx *funcCtx, tree *state.Stree, s ast.Stmt) *state.Stree {
	if tree == nil {
		return nil
	}
	if w.Bail != nil && w.Bail() {
		return nil
	}
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.Stmt, StmtPayload{Tree: tree, Stmt: s})
	}
	out := w.dispatchStmt(fctx, tree, s)
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.StmtAfter, StmtPayload{Tree: out, Stmt: s})
	}
	return out
}

func (w *Walker) dispatchStmt(fctx *funcCtx, tree *state.Stree, s ast.Stmt) *state.Stree {
	switch n := s.(type) {
	case *ast.CompoundStmt:
		return w.walkCompound(fctx, tree, n)

	case *ast.ExprStmt:
		_, out := w.Eval.Eval(tree, n.X)
		return out

	case *ast.DeclStmt:
		out := tree
		for _, d := range n.Decls {
			out = w.walkVarDecl(fctx, out, d)
		}
		return out

	case *ast.IfStmt:
		return w.walkIf(fctx, tree, n)

	case *ast.WhileStmt:
		if w.Hooks != nil {
			w.Hooks.Dispatch(hooks.Preloop, StmtPayload{Tree: tree, Stmt: n})
		}
		return w.walkConditionalLoop(fctx, tree, n.Cond, false, func(t *state.Stree) *state.Stree {
			return w.walkStmt(fctx, t, n.Body)
		})

	case *ast.DoStmt:
		if w.Hooks != nil {
			w.Hooks.Dispatch(hooks.Preloop, StmtPayload{Tree: tree, Stmt: n})
		}
		return w.walkConditionalLoop(fctx, tree, n.Cond, true, func(t *state.Stree) *state.Stree {
			return w.walkStmt(fctx, t, n.Body)
		})

	case *ast.ForStmt:
		return w.walkFor(fctx, tree, n)

	case *ast.SwitchStmt:
		return w.walkSwitch(fctx, tree, n)

	case *ast.CaseStmt:
		return w.walkStmt(fctx, tree, n.Body)

	case *ast.DefaultStmt:
		return w.walkStmt(fctx, tree, n.Body)

	case *ast.ReturnStmt:
		out := tree
		var rl sval.RangeList
		if n.Value != nil {
			rl, out = w.Eval.Eval(tree, n.Value)
		}
		pld := ReturnPayload{Tree: out, Value: n.Value, RL: rl, Pos: n.NodePos()}
		if w.Hooks != nil {
			w.Hooks.Dispatch(hooks.Return, pld)
			w.Hooks.DispatchSplitReturn(pld)
		}
		fctx.returns = append(fctx.returns, out)
		fctx.returnRLs = append(fctx.returnRLs, rl)
		return nil

	case *ast.BreakStmt:
		if lc := fctx.currentLoop(); lc != nil {
			lc.breaks = append(lc.breaks, tree)
		}
		return nil

	case *ast.ContinueStmt:
		if lc := fctx.currentLoop(); lc != nil {
			lc.continues = append(lc.continues, tree)
		}
		return nil

	case *ast.GotoStmt:
		fctx.gotoPending[n.Label] = w.unionNilable(fctx.gotoPending[n.Label], tree)
		return nil

	case *ast.LabelStmt:
		merged := w.unionNilable(tree, fctx.gotoPending[n.Name])
		delete(fctx.gotoPending, n.Name)
		return w.walkStmt(fctx, merged, n.Body)

	default:
		return tree
	}
}

func (w *Walker) walkVarDecl(fctx *funcCtx, tree *state.Stree, d *ast.VarDecl) *state.Stree {
	var rl sval.RangeList
	out := tree
	if d.Init != nil {
		rl, out = w.Eval.Eval(tree, d.Init)
	} else {
		rl = sval.Whole(d.Type)
	}
	if w.Hooks != nil {
		if call, isCall := d.Init.(*ast.CallExpr); isCall {
			lhs := &ast.Ident{Name: d.Name}
			pld := &eval.CallAssignmentPayload{Tree: out, Call: call, LHS: lhs}
			w.Hooks.Dispatch(hooks.CallAssignment, pld)
			out = pld.Tree
		}
		w.Hooks.Dispatch(hooks.Declaration, DeclarationPayload{Tree: out, Decl: d})
	}
	return out.Set(state.Key{Owner: state.OwnerExtra, Name: d.Name, Sym: nil}, eval.RLState{RL: rl})
}

func (w *Walker) walkIf(fctx *funcCtx, tree *state.Stree, n *ast.IfStmt) *state.Stree {
	t, f := w.splitCond(tree, n.Cond)
	thenOut := w.walkStmt(fctx, t, n.Then)
	elseOut := f
	if n.Else != nil {
		elseOut = w.walkStmt(fctx, f, n.Else)
	}
	return w.unionNilable(thenOut, elseOut)
}

// walkConditionalLoop implements bounded loop unrolling rather than a
// fixpoint: the body is walked for up to two iterations (the first catches
// the common "executes at least once" shape, the second lets a checker's
// merge_func see a value has stabilized or is still changing), after which
// the loop is assumed to exit. The exit stree is the union of every
// condition-false branch encountered plus every collected break.
func (w *Walker) walkConditionalLoop(fctx *funcCtx, tree *state.Stree, cond ast.Expr, doWhile bool, runBody func(*state.Stree) *state.Stree) *state.Stree {
	lc := &loopCtx{}
	fctx.loops = append(fctx.loops, lc)
	defer func() { fctx.loops = fctx.loops[:len(fctx.loops)-1] }()

	iterIn := tree
	var exitTree *state.Stree
	for i := 0; i < 2; i++ {
		if iterIn == nil {
			break
		}
		var bodyIn *state.Stree
		if doWhile && i == 0 {
			bodyIn = iterIn
		} else {
			t, f := w.splitCond(iterIn, cond)
			exitTree = w.unionNilable(exitTree, f)
			bodyIn = t
		}
		bodyOut := runBody(bodyIn)
		bodyOut = w.unionNilable(bodyOut, w.drain(&lc.continues))
		iterIn = bodyOut
	}
	if iterIn != nil {
		_, f := w.splitCond(iterIn, cond)
		exitTree = w.unionNilable(exitTree, f)
	}
	exitTree = w.unionNilable(exitTree, w.drain(&lc.breaks))
	return exitTree
}

func (w *Walker) walkFor(fctx *funcCtx, tree *state.Stree, n *ast.ForStmt) *state.Stree {
	out := tree
	if n.Init != nil {
		out = w.walkStmt(fctx, out, n.Init)
	}
	if w.Hooks != nil {
		w.Hooks.Dispatch(hooks.Preloop, StmtPayload{Tree: out, Stmt: n})
	}
	cond := n.Cond
	if cond == nil {
		cond = &ast.IntLit{Type: ctype.Int, Value: 1}
	}
	return w.walkConditionalLoop(fctx, out, cond, false, func(t *state.Stree) *state.Stree {
		bodyOut := w.walkStmt(fctx, t, n.Body)
		if bodyOut == nil || n.Post == nil {
			return bodyOut
		}
		_, bodyOut = w.Eval.Eval(bodyOut, n.Post)
		return bodyOut
	})
}

// walkSwitch walks the selector's body with per-case narrowing:
// each `case` reachable by the selector's range-list enters with the
// selector narrowed to that case's value (union'd with any fall-through
// stree from the case above), and `default` receives the residual range
// after every case value has been removed. An unreachable case (value not
// in the selector's range, no fall-through into it) is skipped entirely.
func (w *Walker) walkSwitch(fctx *funcCtx, tree *state.Stree, n *ast.SwitchStmt) *state.Stree {
	tagRL, entry := w.Eval.Eval(tree, n.Tag)
	lc := &loopCtx{}
	fctx.loops = append(fctx.loops, lc)
	defer func() { fctx.loops = fctx.loops[:len(fctx.loops)-1] }()

	body, ok := n.Body.(*ast.CompoundStmt)
	if !ok {
		fall := w.walkStmt(fctx, entry, n.Body)
		return w.unionNilable(fall, w.drain(&lc.breaks))
	}

	residual := tagRL
	var fall *state.Stree
	sawDefault := false
	for _, s := range body.Stmts {
		if entry == nil && fall == nil {
			break
		}
		inner := s
		var caseIn *state.Stree
		// A run of labels (`case 1: case 2: default: stmt`) nests each
		// label inside the previous one's Body; peel them all off so every
		// label's narrowed entry reaches the shared statement.
		for {
			switch lbl := inner.(type) {
			case *ast.CaseStmt:
				caseRL, _ := w.Eval.Eval(entry, lbl.Value)
				matched := sval.Intersect(residual, caseRL)
				residual = sval.Remove(residual, caseRL)
				if !matched.IsEmpty() {
					caseIn = w.unionNilable(caseIn, w.narrowTag(entry, n.Tag, matched))
				}
				inner = lbl.Body
				continue
			case *ast.DefaultStmt:
				sawDefault = true
				if !residual.IsEmpty() {
					caseIn = w.unionNilable(caseIn, w.narrowTag(entry, n.Tag, residual))
				}
				residual = sval.Empty(tagRL.Type)
				inner = lbl.Body
				continue
			}
			break
		}
		if inner != s {
			fall = w.unionNilable(fall, caseIn)
		}
		fall = w.walkStmt(fctx, fall, inner)
	}

	out := w.unionNilable(fall, w.drain(&lc.breaks))
	if !sawDefault && !residual.IsEmpty() {
		// Selector values no case covers flow straight past the switch.
		out = w.unionNilable(out, w.narrowTag(entry, n.Tag, residual))
	}
	return out
}

// narrowTag writes rl back as the selector's tracked range when the
// selector is a trackable lvalue; a non-lvalue selector (a call, an
// arithmetic expression) still gets correct per-case body walks, just
// without a narrowed state for later reads.
func (w *Walker) narrowTag(tree *state.Stree, tag ast.Expr, rl sval.RangeList) *state.Stree {
	if tree == nil {
		return nil
	}
	name, sym, ok := w.Eval.ResolveLValueForCond(tag)
	if !ok {
		return tree
	}
	return tree.Set(state.Key{Owner: state.OwnerExtra, Name: name, Sym: sym}, eval.RLState{RL: rl})
}

// splitCond delegates to the Condition Engine when wired, otherwise falls
// back to a naive full evaluation with no narrowing.
func (w *Walker) splitCond(tree *state.Stree, cond ast.Expr) (*state.Stree, *state.Stree) {
	if tree == nil {
		return nil, nil
	}
	if w.Eval.Cond != nil {
		return w.Eval.Cond.Split(tree, cond)
	}
	_, out := w.Eval.Eval(tree, cond)
	return out, out
}

func (w *Walker) unionNilable(a, b *state.Stree) *state.Stree {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	var policy state.Policy
	if w.Merge != nil {
		policy = w.Merge
	}
	return state.Merge(policy, a, b)
}

func (w *Walker) drain(trees *[]*state.Stree) *state.Stree {
	var out *state.Stree
	for _, t := range *trees {
		out = w.unionNilable(out, t)
	}
	*trees = nil
	return out
}
