package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strState string

func (s strState) String() string { return string(s) }

func TestSetIsPersistent(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	t0 := New()
	t1 := t0.Set(k, strState("allocated"))

	_, ok := t0.Get(k)
	assert.False(t, ok, "the original stree must be unaffected by Set")

	sm, ok := t1.Get(k)
	require.True(t, ok)
	assert.Equal(t, strState("allocated"), sm.Cur)
}

func TestDeleteIsPersistent(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	t0 := New().Set(k, strState("freed"))
	t1 := t0.Delete(k)

	_, stillThere := t0.Get(k)
	assert.True(t, stillThere)
	_, gone := t1.Get(k)
	assert.False(t, gone)
}

func TestForEachOwnerFiltersByOwner(t *testing.T) {
	t0 := New().
		Set(Key{Owner: 1, Name: "a"}, strState("x")).
		Set(Key{Owner: 2, Name: "b"}, strState("y"))

	var names []string
	t0.ForEachOwner(1, func(sm *SM) { names = append(names, sm.Key.Name) })
	assert.Equal(t, []string{"a"}, names)
}

type lastWins struct{}

func (lastWins) MergeFunc(owner Owner) func(a, b State) State {
	return func(a, b State) State { return b }
}
func (lastWins) UnmatchedFunc(owner Owner) func(sm *SM) (State, bool) {
	return func(sm *SM) (State, bool) { return nil, false }
}

func TestMergeMatchedKeyUsesPolicy(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	a := New().Set(k, strState("one"))
	b := New().Set(k, strState("two"))

	merged := Merge(lastWins{}, a, b)
	sm, ok := merged.Get(k)
	require.True(t, ok)
	assert.Equal(t, strState("two"), sm.Cur)
	assert.True(t, sm.Merged)
}

func TestMergeUnmatchedKeyDroppedByDefaultPolicy(t *testing.T) {
	k := Key{Owner: 1, Name: "only_in_a"}
	a := New().Set(k, strState("one"))
	b := New()

	merged := Merge(lastWins{}, a, b)
	_, ok := merged.Get(k)
	assert.False(t, ok, "a key present on only one side with no unmatched hook is dropped")
}

type keepSide struct{}

func (keepSide) MergeFunc(owner Owner) func(a, b State) State { return nil }
func (keepSide) UnmatchedFunc(owner Owner) func(sm *SM) (State, bool) {
	return func(sm *SM) (State, bool) { return sm.Cur, true }
}

func TestMergeUnmatchedKeyKeptWhenPolicyOptsIn(t *testing.T) {
	k := Key{Owner: 1, Name: "only_in_a"}
	a := New().Set(k, strState("one"))
	b := New()

	merged := Merge(keepSide{}, a, b)
	sm, ok := merged.Get(k)
	require.True(t, ok)
	assert.Equal(t, strState("one"), sm.Cur)
}

// mergeEqual compares two strees structurally: same keys, state-equal
// values by String (merge equality holds up to pointer identity of the
// enclosed states).
func mergeEqual(a, b *Stree) bool {
	if a.Len() != b.Len() {
		return false
	}
	same := true
	a.ForEach(func(sm *SM) {
		other, ok := b.Get(sm.Key)
		if !ok || other.Cur.String() != sm.Cur.String() {
			same = false
		}
	})
	return same
}

type nameJoin struct{}

func (nameJoin) MergeFunc(owner Owner) func(a, b State) State {
	return func(a, b State) State {
		if a.String() == b.String() {
			return a
		}
		// Order-insensitive join label, so commutativity is observable.
		x, y := a.String(), b.String()
		if x > y {
			x, y = y, x
		}
		return strState(x + "|" + y)
	}
}
func (nameJoin) UnmatchedFunc(owner Owner) func(sm *SM) (State, bool) {
	return func(sm *SM) (State, bool) { return sm.Cur, true }
}

func TestMergeCommutes(t *testing.T) {
	kx := Key{Owner: 1, Name: "x"}
	ky := Key{Owner: 1, Name: "y"}
	kz := Key{Owner: 2, Name: "z"}
	a := New().Set(kx, strState("locked")).Set(ky, strState("one"))
	b := New().Set(kx, strState("unlocked")).Set(kz, strState("extra"))

	ab := Merge(nameJoin{}, a, b)
	ba := Merge(nameJoin{}, b, a)
	assert.True(t, mergeEqual(ab, ba))
}

func TestMergeIsIdempotent(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	a := New().Set(k, strState("locked")).Set(Key{Owner: 3, Name: "q"}, strState("v"))

	aa := Merge(nameJoin{}, a, a)
	assert.True(t, mergeEqual(a, aa))
}

func TestPossibleAccumulatesDistinctStates(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	a := New().Set(k, strState("allocated"))
	b := a.Set(k, strState("freed"))

	sm, ok := b.Get(k)
	require.True(t, ok)
	assert.Len(t, sm.Possible, 2, "both states ever held should be recorded")
}

func TestMergePossibleUnionsBothSides(t *testing.T) {
	k := Key{Owner: 1, Name: "x"}
	a := New().Set(k, strState("one"))
	b := New().Set(k, strState("two"))

	merged := Merge(nameJoin{}, a, b)
	sm, ok := merged.Get(k)
	require.True(t, ok)
	assert.Len(t, sm.Possible, 2)
}
