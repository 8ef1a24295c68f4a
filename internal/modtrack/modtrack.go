// Package modtrack implements the modification tracker: when any component
// mutates an SM, the owning checker's modification hook (if any) fires
// with the previous SM, plus indirect-modification hooks for
// parent/ancestor keys — a stored key matches exactly when it equals the
// modified name, and indirectly when it is a struct-member or pointed-to
// extension of it (a "->"/"."/"[" suffix, or the same chain behind a
// leading "*"). Function calls through an unknown callee conservatively
// mark every addressable argument modified.
package modtrack

import (
	"strings"

	"smatchgo/internal/state"
	"smatchgo/internal/symbol"
)

// Hook is called with the SM as it stood immediately before the
// modification that triggered this notification.
type Hook func(prev *state.SM)

// Registry is the process-wide per-owner modification hook table. The
// engine is single-threaded, so no locking is needed.
type Registry struct {
	direct   map[state.Owner]Hook
	indirect map[state.Owner]Hook
}

// NewRegistry returns an empty modification-hook table.
func NewRegistry() *Registry {
	return &Registry{direct: make(map[state.Owner]Hook), indirect: make(map[state.Owner]Hook)}
}

// AddHook registers owner's direct modification hook, replacing any
// previous one (mirrors add_modification_hook).
func (r *Registry) AddHook(owner state.Owner, fn Hook) { r.direct[owner] = fn }

// AddIndirectHook registers owner's indirect modification hook (mirrors
// add_indirect_modification_hook): fired when a member/dereference of a
// key owner tracks is overwritten, not the key itself.
func (r *Registry) AddIndirectHook(owner state.Owner, fn Hook) { r.indirect[owner] = fn }

// matchKind classifies how a stored key relates to a modified name.
type matchKind int

const (
	matchNone matchKind = iota
	matchExact
	matchIndirect
)

// matches requires the stored key to share sym, and its name to be name
// itself (exact) or name extended by a "-", "." or "[" separator — directly, or
// behind one leading "*" (indirect; e.g. modifying "p" indirectly modifies
// any tracked "*p->x").
func matches(name string, sym *symbol.Symbol, smName string, smSym *symbol.Symbol) matchKind {
	if sym != smSym {
		return matchNone
	}
	if k := prefixMatch(name, smName); k != matchNone {
		return k
	}
	if strings.HasPrefix(smName, "*") {
		if k := prefixMatch(name, smName[1:]); k != matchNone {
			if k == matchExact {
				return matchIndirect
			}
			return k
		}
	}
	return matchNone
}

func prefixMatch(name, smName string) matchKind {
	if !strings.HasPrefix(smName, name) {
		return matchNone
	}
	rest := smName[len(name):]
	if rest == "" {
		return matchExact
	}
	if rest[0] == '-' || rest[0] == '.' || rest[0] == '[' {
		return matchIndirect
	}
	return matchNone
}

// Notify walks every SM in tree and fires direct/indirect hooks for any
// key that matches(name, sym, ...) reports as modified. tree is the stree
// as it stood just before the write that prompted this call.
func (r *Registry) Notify(tree *state.Stree, name string, sym *symbol.Symbol) {
	tree.ForEach(func(sm *state.SM) {
		switch matches(name, sym, sm.Key.Name, sm.Key.Sym) {
		case matchExact:
			if h, ok := r.direct[sm.Key.Owner]; ok {
				h(sm)
			}
		case matchIndirect:
			if h, ok := r.indirect[sm.Key.Owner]; ok {
				h(sm)
			}
		}
	})
}

// NotifyAll fires modification hooks for each of args, used when a call's
// callee cannot be resolved and every address-taken argument must
// conservatively count as modified. Callers pass the argument expressions
// already reduced to their (name, sym) form.
func (r *Registry) NotifyAll(tree *state.Stree, args []NameSym) {
	for _, a := range args {
		r.Notify(tree, a.Name, a.Sym)
	}
}

// NameSym is a resolved (name, sym) pair, the shape internal/key's
// ExprToVarSym produces.
type NameSym struct {
	Name string
	Sym  *symbol.Symbol
}
