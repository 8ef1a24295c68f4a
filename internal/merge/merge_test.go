package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smatchgo/internal/state"
)

type numState int

func (n numState) String() string { return "num" }

func TestDefaultMergeFuncYieldsMerged(t *testing.T) {
	r := NewRegistry()
	fn := r.MergeFunc(1)
	got := fn(numState(1), numState(2))
	assert.Equal(t, Merged, got)
}

func TestRegisteredMergeFuncOverridesDefault(t *testing.T) {
	r := NewRegistry()
	r.RegisterMergeFunc(1, func(a, b state.State) state.State {
		if a.(numState) > b.(numState) {
			return a
		}
		return b
	})
	fn := r.MergeFunc(1)
	assert.Equal(t, numState(5), fn(numState(5), numState(2)))
}

func TestDefaultUnmatchedYieldsUndefined(t *testing.T) {
	r := NewRegistry()
	fn := r.UnmatchedFunc(1)
	got, ok := fn(&state.SM{Cur: numState(1)})
	require.True(t, ok)
	assert.Equal(t, Undefined, got)
}

func TestPreMergeHookMutatesOtherSideBeforeJoin(t *testing.T) {
	r := NewRegistry()
	r.RegisterPreMergeHook(1, func(cur, other state.State) state.State {
		if cur == numState(0) {
			return numState(0)
		}
		return other
	})
	r.RegisterMergeFunc(1, func(a, b state.State) state.State { return b })

	fn := r.MergeFunc(1)
	got := fn(numState(0), numState(9))
	assert.Equal(t, numState(0), got, "pre-merge hook should have zeroed the other side")
}
