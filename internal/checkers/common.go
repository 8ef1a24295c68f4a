// Package checkers implements a handful of reference checkers that
// exercise the hook registry end to end: use-after-free and double-free
// (freedptr), lock pairing across return paths (locking), allocation
// leaks (leak), out-of-bounds element addresses (overflow), redundant
// pointer tests (doublecheck), and cross-function reference-count release
// (refcount). They are deliberately small — illustrative consumers of the
// engine's contract, not a complete checker corpus.
package checkers

import (
	"smatchgo/internal/ast"
	"smatchgo/internal/engine"
	"smatchgo/internal/merge"
	"smatchgo/internal/state"
	"smatchgo/internal/symbol"
)

// funcCursor tracks which function is currently being walked, the
// information every checker needs to position its diagnostics and to key
// cross-function facts. Each checker keeps its own cursor, updated by a
// FUNC_DEF hook.
type funcCursor struct {
	fn   *ast.FunctionDef
	file string
}

func (c *funcCursor) onFuncDef(fn *ast.FunctionDef) {
	c.fn = fn
	c.file = fn.NodePos().File
}

func (c *funcCursor) name() string {
	if c.fn == nil {
		return ""
	}
	return c.fn.Name
}

func (c *funcCursor) static() bool {
	return c.fn != nil && c.fn.Static
}

// paramIndex returns the index of the parameter bound to sym, or -1.
func (c *funcCursor) paramIndex(sym *symbol.Symbol) int {
	if c.fn == nil || sym == nil {
		return -1
	}
	for i, p := range c.fn.Params {
		if p.Sym == sym {
			return i
		}
	}
	return -1
}

// rootIdentName walks down to the identifier at the root of an lvalue
// expression, the way internal/eval's own (private) rootIdent does; checkers
// that need the *containing object* rather than the full field/index chain
// (e.g. refcount's container_of-style reduction) use this instead of
// Eval.ResolveLValueForCond, which keys on the whole chain.
func rootIdentName(e ast.Expr) (string, *symbol.Symbol, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name, n.Sym, true
	case *ast.MemberExpr:
		return rootIdentName(n.X)
	case *ast.IndexExpr:
		return rootIdentName(n.X)
	case *ast.DerefExpr:
		return rootIdentName(n.X)
	case *ast.AddrExpr:
		return rootIdentName(n.X)
	default:
		return "", nil, false
	}
}

// registerKeepEqualMerge wires owner's merge policy so a marker set on only
// one side of an if/loop branch survives the join unchanged, and a marker
// both sides agree on survives too; only a genuine disagreement between the
// two sides collapses to merge.Merged. Every reference checker here tracks
// its state as a simple marker (allocated/freed, locked/unlocked, tested),
// so the engine's "&merged"/"&undefined" defaults would otherwise
// erase them at the first branch the tracked variable crosses.
func registerKeepEqualMerge(e *engine.Engine, owner state.Owner) {
	e.Merge.RegisterMergeFunc(owner, func(a, b state.State) state.State {
		if a == b {
			return a
		}
		return merge.Merged
	})
	e.Merge.RegisterUnmatchedState(owner, func(sm *state.SM) (state.State, bool) {
		return sm.Cur, true
	})
}

// RegisterAll installs every reference checker against e. The leak checker
// only registers under --spammy: without escape analysis its
// possible-memory-leak warnings are the noisiest diagnostics this set
// produces. Registration order does not matter: refcount stores its
// RELEASED facts at END_FUNC and consumes them through its own
// return-states hook, which internal/eval dispatches per call; freedptr
// does no cross-function lookup.
func RegisterAll(e *engine.Engine) {
	cs := []engine.Checker{
		{Name: "freedptr", Init: initFreedPtr},
		{Name: "locking", Init: initLocking},
	}
	if e.Spammy {
		cs = append(cs, engine.Checker{Name: "leak", Init: initLeak})
	}
	cs = append(cs,
		engine.Checker{Name: "overflow", Init: initOverflow},
		engine.Checker{Name: "doublecheck", Init: initDoubleCheck},
		engine.Checker{Name: "refcount", Init: initRefcount},
	)
	e.RegisterCheckers(cs...)
}
