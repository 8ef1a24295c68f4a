// Lock-pairing checker: each lock/unlock call updates the named lock's
// state, every return snapshots the states it can see, and at function end
// a lock held on one return path but not another is reported as an
// inconsistent return.
package checkers

import (
	"fmt"

	"smatchgo/internal/ast"
	"smatchgo/internal/diag"
	"smatchgo/internal/engine"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/state"
	"smatchgo/internal/walk"
)

// lockOwner is this checker's private owner id in the state tree.
const lockOwner state.Owner = 2

type lockState string

func (s lockState) String() string { return string(s) }

const (
	locked   lockState = "locked"
	unlocked lockState = "unlocked"
)

type lockReturn struct {
	pos   ast.Position
	locks map[string]lockState
}

// initLocking registers the lock-imbalance-on-return checker.
func initLocking(e *engine.Engine) {
	registerKeepEqualMerge(e, lockOwner)
	cur := &funcCursor{}
	var returns []lockReturn

	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		cur.onFuncDef(payload.(walk.FuncDefPayload).Fn)
		returns = nil
	})

	e.Hooks.Register(hooks.FunctionCall, func(payload any) {
		pld := payload.(*eval.FunctionCallPayload)
		if len(pld.Call.Args) == 0 {
			return
		}
		name, _, ok := rootIdentName(pld.Call.Args[0])
		if !ok {
			return
		}
		switch {
		case e.Profile.IsLock(pld.Name):
			pld.Tree = pld.Tree.Set(state.Key{Owner: lockOwner, Name: name}, locked)
		case e.Profile.IsUnlock(pld.Name):
			pld.Tree = pld.Tree.Set(state.Key{Owner: lockOwner, Name: name}, unlocked)
		}
	})

	e.Hooks.Register(hooks.Return, func(payload any) {
		pld := payload.(walk.ReturnPayload)
		snap := lockReturn{pos: pld.Pos, locks: map[string]lockState{}}
		pld.Tree.ForEachOwner(lockOwner, func(sm *state.SM) {
			if ls, ok := sm.Cur.(lockState); ok {
				snap.locks[sm.Key.Name] = ls
			}
		})
		returns = append(returns, snap)
	})

	e.Hooks.Register(hooks.EndFunc, func(payload any) {
		if len(returns) < 2 {
			return
		}
		// A return with no recorded state for a lock is at the function's
		// starting state, unlocked; only comparing paths that both touched
		// the lock would miss the common "locked on the early-error path
		// only" imbalance.
		names := map[string]bool{}
		for _, r := range returns {
			for name := range r.locks {
				names[name] = true
			}
		}
		stateAt := func(r lockReturn, name string) lockState {
			if s, ok := r.locks[name]; ok {
				return s
			}
			return unlocked
		}
		for name := range names {
			first := returns[0]
			firstState := stateAt(first, name)
			for _, other := range returns[1:] {
				otherState := stateAt(other, name)
				if otherState == firstState {
					continue
				}
				e.Diag.Emit(diag.Diagnostic{
					Pos:         first.pos,
					Function:    cur.name(),
					ReturnIndex: -1,
					Severity:    diag.Warn,
					Message: fmt.Sprintf("inconsistent returns %s: %s (%d) %s (%d)",
						name, firstState, first.pos.Line, otherState, other.pos.Line),
				})
				break
			}
		}
	})
}
