package sval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smatchgo/internal/ctype"
)

func i(v int64) Sval { return Int(ctype.Int, v) }

func TestCanonicityMergesAdjacent(t *testing.T) {
	rl := Union(Alloc(i(0), i(5)), Alloc(i(6), i(10)))
	require.Len(t, rl.Interval, 1, "adjacent intervals must merge into one")
	assert.Equal(t, int64(0), rl.Interval[0].Min.Int64())
	assert.Equal(t, int64(10), rl.Interval[0].Max.Int64())
}

func TestCanonicityKeepsDisjointSeparate(t *testing.T) {
	rl := Union(Alloc(i(0), i(5)), Alloc(i(10), i(20)))
	require.Len(t, rl.Interval, 2)
	for idx := 0; idx+1 < len(rl.Interval); idx++ {
		assert.Less(t, rl.Interval[idx].Max.Int64(), rl.Interval[idx+1].Min.Int64()-1)
	}
}

func TestIntersect(t *testing.T) {
	a := Alloc(i(0), i(10))
	b := Alloc(i(5), i(15))
	got := Intersect(a, b)
	require.Len(t, got.Interval, 1)
	assert.Equal(t, int64(5), got.Interval[0].Min.Int64())
	assert.Equal(t, int64(10), got.Interval[0].Max.Int64())
}

func TestIntersectEmpty(t *testing.T) {
	a := Alloc(i(0), i(5))
	b := Alloc(i(10), i(20))
	assert.True(t, Intersect(a, b).IsEmpty())
}

func TestRemoveMiddle(t *testing.T) {
	a := Alloc(i(0), i(10))
	got := Remove(a, Single(i(5)))
	require.Len(t, got.Interval, 2)
	assert.Equal(t, int64(0), got.Interval[0].Min.Int64())
	assert.Equal(t, int64(4), got.Interval[0].Max.Int64())
	assert.Equal(t, int64(6), got.Interval[1].Min.Int64())
	assert.Equal(t, int64(10), got.Interval[1].Max.Int64())
}

func TestRemoveWhole(t *testing.T) {
	a := Alloc(i(0), i(10))
	got := Remove(a, Alloc(i(0), i(10)))
	assert.True(t, got.IsEmpty())
}

func TestIsWhole(t *testing.T) {
	assert.True(t, Whole(ctype.Int).IsWhole())
	assert.False(t, Alloc(i(0), i(10)).IsWhole())
}

func TestCastSignedToUnsignedSplitsAtZero(t *testing.T) {
	rl := Alloc(Int(ctype.Int, -5), Int(ctype.Int, 5))
	got := Cast(ctype.UnsignedInt, rl)
	require.Len(t, got.Interval, 2, "a range spanning zero must split when cast signed->unsigned")
	// First interval: [0..5] (was non-negative half)
	assert.Equal(t, uint64(0), got.Interval[0].Min.Uint64())
	assert.Equal(t, uint64(5), got.Interval[0].Max.Uint64())
	// Second interval: the wrapped negative half, starting near UINT_MAX-4.
	assert.Equal(t, uint64(0xfffffffb), got.Interval[1].Min.Uint64())
	assert.Equal(t, uint64(0xffffffff), got.Interval[1].Max.Uint64())
}

func TestCastRoundTripWidening(t *testing.T) {
	// Widening a range and casting back down within the same bounds
	// returns the same range-list (an int range that fits in char both
	// ways).
	rl := Alloc(Int(ctype.Char, -10), Int(ctype.Char, 10))
	widened := Cast(ctype.Int, rl)
	back := Cast(ctype.Char, widened)
	require.Equal(t, len(rl.Interval), len(back.Interval))
	assert.Equal(t, rl.Interval[0].Min.Int64(), back.Interval[0].Min.Int64())
	assert.Equal(t, rl.Interval[0].Max.Int64(), back.Interval[0].Max.Int64())
}

func TestCastNarrowingOutOfRangeYieldsWhole(t *testing.T) {
	rl := Alloc(Int(ctype.Int, -1000), Int(ctype.Int, 1000))
	got := Cast(ctype.Char, rl)
	assert.True(t, got.IsWhole(), "a range that does not fit the narrower type collapses to the whole range")
}

func TestContains(t *testing.T) {
	rl := Union(Alloc(i(0), i(5)), Alloc(i(20), i(30)))
	assert.True(t, rl.Contains(i(3)))
	assert.True(t, rl.Contains(i(25)))
	assert.False(t, rl.Contains(i(10)))
}

// Cast round-trip property: for T wider than U,
// cast(T, cast(U, cast(T, rl))) == cast(T, cast(U, rl)).
func TestCastRoundTripProperty(t *testing.T) {
	cases := []RangeList{
		Alloc(Int(ctype.Int, -10), Int(ctype.Int, 10)),
		Alloc(Int(ctype.Int, -1000), Int(ctype.Int, 1000)),
		Single(Int(ctype.Int, 0)),
		Union(Alloc(i(1), i(5)), Alloc(i(200), i(300))),
		Whole(ctype.Int),
	}
	for _, rl := range cases {
		viaT := Cast(ctype.Int, Cast(ctype.Char, Cast(ctype.Int, rl)))
		direct := Cast(ctype.Int, Cast(ctype.Char, rl))
		assert.Equal(t, direct.String(), viaT.String(), "input %s", rl.String())
	}
}

// Canonicity: every interval ends strictly below the next interval's min
// minus one.
func TestCanonicityInvariantHolds(t *testing.T) {
	rl := Union(Union(Alloc(i(5), i(9)), Alloc(i(0), i(3))), Single(i(4)))
	for idx := 0; idx+1 < len(rl.Interval); idx++ {
		hi := rl.Interval[idx].Max.Int64()
		lo := rl.Interval[idx+1].Min.Int64()
		assert.Less(t, hi, lo-1)
	}
	// 0-3, 4, 5-9 all abut: the canonical form is a single interval.
	assert.Len(t, rl.Interval, 1)
	assert.Equal(t, "0-9", rl.String())
}
