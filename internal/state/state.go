// Package state implements the state tree store: a persistent map from
// (owner, name, sym) to a checker-owned lattice state. The walker forks a
// tree at every branch and joins the forks afterwards, so Set/Delete never
// mutate the receiver.
//
// Persistence is implemented as copy-on-write over a plain Go map rather
// than a balanced persistent tree: trees in practice hold at most a few
// hundred entries per function walk, so an O(n) Set dominated by map-copy
// cost is not a bottleneck.
package state

import "smatchgo/internal/symbol"

// Owner identifies which checker (or the built-in "extra" value-range
// tracker) a key belongs to.
type Owner int

// OwnerExtra is the reserved owner id for the engine's own value-range
// tracking. Checkers register under other Owner values of their own
// choosing.
const OwnerExtra Owner = 0

// Key is the (owner, name, sym) triple every SM is filed under.
type Key struct {
	Owner Owner
	Name  string
	Sym   *symbol.Symbol
}

// State is a checker-defined lattice value. Checkers supply their own
// concrete types (e.g. a freed/allocated enum, a range-list wrapper); the
// store itself never inspects State, only compares/copies the interface
// value.
type State interface {
	String() string
}

// SM is one binding recorded in a stree: a key, its current state, the set
// of states merged into it so far (possible), and the stree it was most
// recently set in (pool), used to tell which branch of a later merge a
// value arrived from.
type SM struct {
	Key      Key
	Cur      State
	Possible []State
	Pool     *Stree
	Merged   bool
}

func (sm *SM) String() string { return sm.Cur.String() }

// addPossible appends st to possible, deduplicating by state name
// (String()).
func addPossible(possible []State, st State) []State {
	for _, p := range possible {
		if p.String() == st.String() {
			return possible
		}
	}
	return append(possible, st)
}

// Stree is a persistent map of Key to *SM. The zero value is not usable;
// obtain one from New.
type Stree struct {
	m map[Key]*SM
}

// New returns an empty stree.
func New() *Stree {
	return &Stree{m: make(map[Key]*SM)}
}

// Get looks up the SM bound to k, if any.
func (t *Stree) Get(k Key) (*SM, bool) {
	if t == nil {
		return nil, false
	}
	sm, ok := t.m[k]
	return sm, ok
}

// Set returns a new stree with k bound to state st, leaving t unmodified.
func (t *Stree) Set(k Key, st State) *Stree {
	nt := t.clone()
	prev, existed := t.m[k]
	possible := []State{st}
	if existed {
		possible = addPossible(append([]State{}, prev.Possible...), st)
	}
	sm := &SM{Key: k, Cur: st, Possible: possible, Pool: nt}
	nt.m[k] = sm
	return nt
}

// Delete returns a new stree with k unbound, leaving t unmodified.
func (t *Stree) Delete(k Key) *Stree {
	nt := t.clone()
	delete(nt.m, k)
	return nt
}

// Clone returns a shallow independent copy of t; since SMs themselves are
// treated as immutable once stored, this is cheap and safe to fork at
// branch points.
func (t *Stree) Clone() *Stree { return t.clone() }

func (t *Stree) clone() *Stree {
	if t == nil {
		return New()
	}
	nm := make(map[Key]*SM, len(t.m))
	for k, v := range t.m {
		nm[k] = v
	}
	return &Stree{m: nm}
}

// Len reports how many keys t holds.
func (t *Stree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.m)
}

// ForEachOwner calls fn for every SM whose key belongs to owner. Iteration
// order is unspecified; callers must not rely on ordering across owners.
func (t *Stree) ForEachOwner(owner Owner, fn func(*SM)) {
	if t == nil {
		return
	}
	for _, sm := range t.m {
		if sm.Key.Owner == owner {
			fn(sm)
		}
	}
}

// ForEach calls fn for every SM in the tree.
func (t *Stree) ForEach(fn func(*SM)) {
	if t == nil {
		return
	}
	for _, sm := range t.m {
		fn(sm)
	}
}

// Policy supplies the checker-specific merge and unmatched-state behavior
// Merge needs; implemented by internal/merge.
type Policy interface {
	// MergeFunc returns the function owner uses to join two states seen
	// on both sides of a branch. A nil return means "keep either side
	// arbitrarily" (used by owners with no custom join, e.g. plain
	// control-flow bookkeeping).
	MergeFunc(owner Owner) func(a, b State) State
	// UnmatchedFunc returns the function owner uses to decide what
	// happens to a key present on only one side of a merge. A nil
	// return means "drop the key" (the default &undefined semantics,
	// realized here by omitting the key rather than pointing a
	// sentinel).
	UnmatchedFunc(owner Owner) func(sm *SM) (State, bool)
}

// Merge performs the stree-level join of two branch forks: every key
// present on both sides is combined through policy's merge_func for its
// owner; a key present on only one side goes through unmatched_state for
// its owner, and is dropped if that hook declines to produce a state.
func Merge(policy Policy, a, b *Stree) *Stree {
	out := New()
	seen := make(map[Key]bool)
	a.ForEach(func(smA *SM) {
		seen[smA.Key] = true
		if smB, ok := b.Get(smA.Key); ok {
			merged := joinOne(policy, smA.Key.Owner, smA.Cur, smB.Cur)
			sm := &SM{
				Key:      smA.Key,
				Cur:      merged,
				Possible: mergePossible(smA.Possible, smB.Possible),
				Pool:     out,
				Merged:   true,
			}
			out.m[smA.Key] = sm
			return
		}
		if st, ok := unmatchedOne(policy, smA.Key.Owner, smA); ok {
			out.m[smA.Key] = &SM{Key: smA.Key, Cur: st, Possible: smA.Possible, Pool: out}
		}
	})
	b.ForEach(func(smB *SM) {
		if seen[smB.Key] {
			return
		}
		if st, ok := unmatchedOne(policy, smB.Key.Owner, smB); ok {
			out.m[smB.Key] = &SM{Key: smB.Key, Cur: st, Possible: smB.Possible, Pool: out}
		}
	})
	return out
}

func joinOne(policy Policy, owner Owner, a, b State) State {
	if policy != nil {
		if fn := policy.MergeFunc(owner); fn != nil {
			return fn(a, b)
		}
	}
	return a
}

func unmatchedOne(policy Policy, owner Owner, sm *SM) (State, bool) {
	if policy != nil {
		if fn := policy.UnmatchedFunc(owner); fn != nil {
			return fn(sm)
		}
	}
	return nil, false
}

func mergePossible(a, b []State) []State {
	out := append([]State{}, a...)
	for _, st := range b {
		out = addPossible(out, st)
	}
	return out
}
