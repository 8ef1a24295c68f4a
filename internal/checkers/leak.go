// Allocation-leak checker: an allocator result is tracked as unreleased
// until freed, and a return that neither frees it nor returns it is
// reported as a possible leak. Deliberately simple — no escape analysis
// for pointers stored into out-parameters or globals, trading soundness
// for a low false-positive rate.
package checkers

import (
	"smatchgo/internal/diag"
	"smatchgo/internal/engine"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/state"
	"smatchgo/internal/symbol"
	"smatchgo/internal/walk"
)

// leakOwner is this checker's private owner id in the state tree.
const leakOwner state.Owner = 3

type leakState string

func (s leakState) String() string { return string(s) }

const unreleased leakState = "unreleased"

func leakKey(name string, sym *symbol.Symbol) state.Key {
	return state.Key{Owner: leakOwner, Name: name, Sym: sym}
}

// initLeak registers the memory-leak-on-return checker.
func initLeak(e *engine.Engine) {
	registerKeepEqualMerge(e, leakOwner)
	cur := &funcCursor{}
	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		cur.onFuncDef(payload.(walk.FuncDefPayload).Fn)
	})

	e.Hooks.Register(hooks.CallAssignment, func(payload any) {
		pld := payload.(*eval.CallAssignmentPayload)
		name, ok := pld.Call.CalleeName()
		if !ok || !e.Profile.IsAllocator(name) {
			return
		}
		lname, lsym, ok := e.Eval.ResolveLValueForCond(pld.LHS)
		if !ok {
			return
		}
		pld.Tree = pld.Tree.Set(leakKey(lname, lsym), unreleased)
	})

	e.Hooks.Register(hooks.FunctionCall, func(payload any) {
		pld := payload.(*eval.FunctionCallPayload)
		if !e.Profile.IsFree(pld.Name) || len(pld.Call.Args) == 0 {
			return
		}
		name, sym, ok := e.Eval.ResolveLValueForCond(pld.Call.Args[0])
		if !ok {
			return
		}
		pld.Tree = pld.Tree.Delete(leakKey(name, sym))
	})

	e.Hooks.Register(hooks.Return, func(payload any) {
		pld := payload.(walk.ReturnPayload)
		returnedName, returnedSym := "", (*symbol.Symbol)(nil)
		if pld.Value != nil {
			returnedName, returnedSym, _ = e.Eval.ResolveLValueForCond(pld.Value)
		}
		pld.Tree.ForEachOwner(leakOwner, func(sm *state.SM) {
			ls, ok := sm.Cur.(leakState)
			if !ok || ls != unreleased {
				return
			}
			if sm.Key.Name == returnedName && sm.Key.Sym == returnedSym {
				return
			}
			e.Diag.Emit(diag.Diagnostic{
				Pos:         pld.Pos,
				Function:    cur.name(),
				ReturnIndex: -1,
				Severity:    diag.Warn,
				Message:     "possible memory leak of '" + sm.Key.Name + "'",
			})
		})
	})
}
