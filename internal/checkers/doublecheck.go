// Redundant-test checker: a pointer tested truthy once and tested truthy
// again before being reassigned, outside any loop, is almost always
// redundant.
package checkers

import (
	"smatchgo/internal/ast"
	"smatchgo/internal/cond"
	"smatchgo/internal/diag"
	"smatchgo/internal/engine"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/state"
	"smatchgo/internal/walk"
)

// doubleCheckOwner is this checker's private owner id in the state tree.
const doubleCheckOwner state.Owner = 4

type doubleCheckState string

func (s doubleCheckState) String() string { return string(s) }

const testedTrue doubleCheckState = "tested-true"

func isLoopStmt(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.WhileStmt, *ast.DoStmt, *ast.ForStmt:
		return true
	default:
		return false
	}
}

// initDoubleCheck registers the tested-before-redundantly checker.
func initDoubleCheck(e *engine.Engine) {
	registerKeepEqualMerge(e, doubleCheckOwner)
	cur := &funcCursor{}
	loopDepth := 0

	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		cur.onFuncDef(payload.(walk.FuncDefPayload).Fn)
		loopDepth = 0
	})

	e.Hooks.Register(hooks.Stmt, func(payload any) {
		pld := payload.(walk.StmtPayload)
		if isLoopStmt(pld.Stmt) {
			loopDepth++
		}
	})

	e.Hooks.Register(hooks.StmtAfter, func(payload any) {
		pld := payload.(walk.StmtPayload)
		if isLoopStmt(pld.Stmt) {
			loopDepth--
		}
	})

	// A plain reassignment clears whatever "tested true" marker the old
	// value earned; otherwise a loop-free sequence like `p = q; if (p) ...;
	// p = other(); if (p) ...;` would be (wrongly) flagged as redundant.
	e.Hooks.Register(hooks.AssignmentAfter, func(payload any) {
		pld := payload.(*eval.AssignmentPayload)
		if pld.Name == "" && pld.Sym == nil {
			return
		}
		k := state.Key{Owner: doubleCheckOwner, Name: pld.Name, Sym: pld.Sym}
		if _, ok := pld.Tree.Get(k); ok {
			pld.Tree = pld.Tree.Delete(k)
		}
	})

	e.Hooks.Register(hooks.Condition, func(payload any) {
		pld := payload.(*cond.ConditionPayload)
		if loopDepth > 0 {
			return
		}
		id, ok := pld.Expr.(*ast.Ident)
		if !ok {
			return
		}
		name, sym, ok := e.Eval.ResolveLValueForCond(id)
		if !ok {
			return
		}
		k := state.Key{Owner: doubleCheckOwner, Name: name, Sym: sym}
		if sm, ok := pld.TrueTree.Get(k); ok {
			if ds, ok2 := sm.Cur.(doubleCheckState); ok2 && ds == testedTrue {
				e.Diag.Emit(diag.Diagnostic{
					Pos:         id.NodePos(),
					Function:    cur.name(),
					ReturnIndex: -1,
					Severity:    diag.Warn,
					Message:     "we tested '" + name + "' before and it was 'true'",
				})
			}
		}
		pld.TrueTree = pld.TrueTree.Set(k, testedTrue)
	})
}
