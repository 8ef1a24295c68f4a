// Package merge implements the merge/unmatched-state policy: a
// per-checker-owner table of merge_func/unmatched_state/pre_merge_hook
// callbacks that internal/state.Merge consults while joining two strees at
// a control-flow branch. Checkers register their hooks at init time.
package merge

import "smatchgo/internal/state"

// mergedState is the default join result, "merged", produced when no
// owner-specific merge_func is registered.
type mergedState struct{}

func (mergedState) String() string { return "merged" }

// undefinedState is the default result of unmatched_state when no
// owner-specific hook is registered.
type undefinedState struct{}

func (undefinedState) String() string { return "undefined" }

// Merged and Undefined are the two default sentinel states.
var (
	Merged    state.State = mergedState{}
	Undefined state.State = undefinedState{}
)

// MergeFunc joins two states seen on both sides of a branch into one.
type MergeFunc func(a, b state.State) state.State

// UnmatchedFunc decides what becomes of a key seen on only one side of a
// join. Returning ok==false drops the key (used by owners that want no
// "undefined" placeholder at all, e.g. pure bookkeeping owners).
type UnmatchedFunc func(sm *state.SM) (state.State, bool)

// PreMergeHook lets a checker mutate the "other" side's state based on
// pairing with cur before the merge itself runs, e.g.
// nullifying a refcount fact if the sibling path already released it.
type PreMergeHook func(cur, other state.State) state.State

// Registry is the process-wide table of per-owner merge policy hooks,
// written only by the driver and by checkers running under its
// supervision, so it carries no locking.
type Registry struct {
	mergeFuncs     map[state.Owner]MergeFunc
	unmatchedFuncs map[state.Owner]UnmatchedFunc
	preMergeHooks  map[state.Owner][]PreMergeHook
}

// NewRegistry returns an empty policy table.
func NewRegistry() *Registry {
	return &Registry{
		mergeFuncs:     make(map[state.Owner]MergeFunc),
		unmatchedFuncs: make(map[state.Owner]UnmatchedFunc),
		preMergeHooks:  make(map[state.Owner][]PreMergeHook),
	}
}

// RegisterMergeFunc sets owner's merge_func, replacing any previous one.
func (r *Registry) RegisterMergeFunc(owner state.Owner, fn MergeFunc) {
	r.mergeFuncs[owner] = fn
}

// RegisterUnmatchedState sets owner's unmatched_state hook.
func (r *Registry) RegisterUnmatchedState(owner state.Owner, fn UnmatchedFunc) {
	r.unmatchedFuncs[owner] = fn
}

// RegisterPreMergeHook appends a pre_merge_hook for owner; hooks run in
// registration order before the merge_func itself.
func (r *Registry) RegisterPreMergeHook(owner state.Owner, fn PreMergeHook) {
	r.preMergeHooks[owner] = append(r.preMergeHooks[owner], fn)
}

// MergeFunc implements state.Policy.
func (r *Registry) MergeFunc(owner state.Owner) func(a, b state.State) state.State {
	hooks := r.preMergeHooks[owner]
	custom, hasCustom := r.mergeFuncs[owner]
	return func(a, b state.State) state.State {
		other := b
		for _, h := range hooks {
			other = h(a, other)
		}
		if hasCustom {
			return custom(a, other)
		}
		return Merged
	}
}

// UnmatchedFunc implements state.Policy. The default behavior is to keep
// the key with the Undefined sentinel unless an owner explicitly
// registered its own hook.
func (r *Registry) UnmatchedFunc(owner state.Owner) func(sm *state.SM) (state.State, bool) {
	if fn, ok := r.unmatchedFuncs[owner]; ok {
		return func(sm *state.SM) (state.State, bool) { return fn(sm) }
	}
	return func(sm *state.SM) (state.State, bool) { return Undefined, true }
}
