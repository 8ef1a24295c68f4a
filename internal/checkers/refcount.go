// Reference-count release checker: a kref_put() call is treated as
// releasing the object its first argument's root identifier resolves to.
// The release is persisted as a RELEASED return_states fact so a later
// pass's call sites know the argument may no longer be valid, exercising
// the driver's two-pass cross-function wiring end to end.
package checkers

import (
	"smatchgo/internal/diag"
	"smatchgo/internal/engine"
	"smatchgo/internal/eval"
	"smatchgo/internal/facts"
	"smatchgo/internal/hooks"
	"smatchgo/internal/state"
	"smatchgo/internal/symbol"
	"smatchgo/internal/walk"
)

// refcountOwner is this checker's private owner id in the state tree.
const refcountOwner state.Owner = 5

type refcountState string

func (s refcountState) String() string { return string(s) }

const released refcountState = "released"

func refcountKey(name string, sym *symbol.Symbol) state.Key {
	return state.Key{Owner: refcountOwner, Name: name, Sym: sym}
}

type refcountReturn struct {
	params []int
}

// initRefcount registers the kref_put release checker: parameters released
// on a return path are stored as RELEASED facts, and dereferencing an
// argument after a call whose facts release it is reported as an error.
// Release callbacks (container_of) are not inspected.
func initRefcount(e *engine.Engine) {
	registerKeepEqualMerge(e, refcountOwner)
	cur := &funcCursor{}
	var returns []refcountReturn

	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		cur.onFuncDef(payload.(walk.FuncDefPayload).Fn)
		returns = nil
	})

	e.Hooks.Register(hooks.FunctionCall, func(payload any) {
		pld := payload.(*eval.FunctionCallPayload)
		if pld.Name != "kref_put" || len(pld.Call.Args) == 0 {
			return
		}
		name, sym, ok := rootIdentName(pld.Call.Args[0])
		if !ok {
			return
		}
		pld.Tree = pld.Tree.Set(refcountKey(name, sym), released)
	})

	e.Hooks.Register(hooks.Return, func(payload any) {
		pld := payload.(walk.ReturnPayload)
		var rr refcountReturn
		pld.Tree.ForEachOwner(refcountOwner, func(sm *state.SM) {
			rs, ok := sm.Cur.(refcountState)
			if !ok || rs != released {
				return
			}
			if idx := cur.paramIndex(sm.Key.Sym); idx >= 0 {
				rr.params = append(rr.params, idx)
			}
		})
		returns = append(returns, rr)
	})

	e.Hooks.Register(hooks.EndFunc, func(payload any) {
		if e.Facts == nil {
			return
		}
		for returnID, rr := range returns {
			for _, paramIdx := range rr.params {
				e.Facts.InsertReturnState(cur.file, cur.name(), cur.static(), facts.ReturnStateFact{
					ReturnID: returnID,
					Type:     facts.Released,
					Param:    paramIdx,
					Key:      "$",
					Value:    "released",
				})
			}
		}
	})

	// On the caller side, a RELEASED fact recorded for the callee's param i
	// means argument i's root object should be treated as released here too.
	e.Hooks.RegisterReturnStatesHook(string(facts.Released), func(payload any) {
		pld := payload.(*eval.ReturnStatesPayload)
		if pld.Param < 0 || pld.Param >= len(pld.Call.Args) {
			return
		}
		name, sym, ok := rootIdentName(pld.Call.Args[pld.Param])
		if !ok {
			return
		}
		pld.Tree = pld.Tree.Set(refcountKey(name, sym), released)
	})

	e.Hooks.Register(hooks.Deref, func(payload any) {
		pld := payload.(*eval.DerefPayload)
		name, sym, ok := rootIdentName(pld.X)
		if !ok {
			return
		}
		sm, ok := pld.Tree.Get(refcountKey(name, sym))
		if !ok {
			return
		}
		if rs, ok := sm.Cur.(refcountState); ok && rs == released {
			e.Diag.Emit(diag.Diagnostic{
				Pos:         pld.Pos,
				Function:    cur.name(),
				ReturnIndex: -1,
				Severity:    diag.Error,
				Message:     "dereferencing released object '" + name + "'",
			})
		}
	})
}
