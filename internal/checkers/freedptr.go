// Use-after-free and double-free detection: an allocator result is marked
// allocated, a free call flips it to freed (an error if already freed), and
// a dereference of a freed pointer is an error.
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

// freedOwner is this checker's private owner id in the state tree.
const freedOwner state.Owner = 1

type freedState string

func (s freedState) String() string { return string(s) }

const (
	ptrAllocated freedState = "allocated"
	ptrFreed     freedState = "freed"
)

func freedKey(name string, sym *symbol.Symbol) state.Key {
	return state.Key{Owner: freedOwner, Name: name, Sym: sym}
}

// initFreedPtr registers the use-after-free / double-free checker.
func initFreedPtr(e *engine.Engine) {
	registerKeepEqualMerge(e, freedOwner)
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
		pld.Tree = pld.Tree.Set(freedKey(lname, lsym), ptrAllocated)
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
		k := freedKey(name, sym)
		if sm, ok := pld.Tree.Get(k); ok {
			if fs, ok := sm.Cur.(freedState); ok && fs == ptrFreed {
				e.Diag.Emit(diag.Diagnostic{
					Pos:         pld.Call.NodePos(),
					Function:    cur.name(),
					ReturnIndex: -1,
					Severity:    diag.Error,
					Message:     "double free of '" + name + "'",
				})
			}
		}
		pld.Tree = pld.Tree.Set(k, ptrFreed)
	})

	e.Hooks.Register(hooks.Deref, func(payload any) {
		pld := payload.(*eval.DerefPayload)
		name, sym, ok := e.Eval.ResolveLValueForCond(pld.X)
		if !ok {
			return
		}
		sm, ok := pld.Tree.Get(freedKey(name, sym))
		if !ok {
			return
		}
		if fs, ok := sm.Cur.(freedState); ok && fs == ptrFreed {
			e.Diag.Emit(diag.Diagnostic{
				Pos:         pld.Pos,
				Function:    cur.name(),
				ReturnIndex: -1,
				Severity:    diag.Error,
				Message:     "dereferencing freed memory '" + name + "'",
			})
		}
	})
}
