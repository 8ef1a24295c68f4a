// Buffer-overflow checker: a constant element index compared against the
// array's declared extent flags a known out-of-bounds element address. It
// fires off the ASSIGNMENT hook, since the event catalog has no dedicated
// array-access event.
package checkers

import (
	"fmt"

	"smatchgo/internal/ast"
	"smatchgo/internal/ctype"
	"smatchgo/internal/diag"
	"smatchgo/internal/engine"
	"smatchgo/internal/eval"
	"smatchgo/internal/hooks"
	"smatchgo/internal/walk"
)

// initOverflow registers the buffer-overflow checker:
// it watches for `p = &arr[k]` where k is a compile-time constant at or
// past arr's declared length.
func initOverflow(e *engine.Engine) {
	cur := &funcCursor{}
	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		cur.onFuncDef(payload.(walk.FuncDefPayload).Fn)
	})

	e.Hooks.Register(hooks.Assignment, func(payload any) {
		pld := payload.(*eval.AssignmentPayload)
		addr, ok := pld.Expr.RHS.(*ast.AddrExpr)
		if !ok {
			return
		}
		idx, ok := addr.X.(*ast.IndexExpr)
		if !ok {
			return
		}
		lit, ok := idx.Index.(*ast.IntLit)
		if !ok {
			return
		}
		arrType, ok := idx.X.ExprType().(*ctype.ArrayType)
		if !ok || arrType.Len < 0 {
			return
		}
		arrName, _, ok := rootIdentName(idx.X)
		if !ok || lit.Value < int64(arrType.Len) {
			return
		}
		e.Diag.Emit(diag.Diagnostic{
			Pos:         addr.NodePos(),
			Function:    cur.name(),
			ReturnIndex: -1,
			Severity:    diag.Warn,
			Message:     fmt.Sprintf("buffer overflow '%s' %d <= %d", arrName, arrType.Len, lit.Value),
		})
	})
}
