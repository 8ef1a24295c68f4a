package sval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"smatchgo/internal/ctype"
)

// Interval is an inclusive [Min..Max] bound; both ends share one type.
type Interval struct {
	Min, Max Sval
}

// RangeList is an ordered sequence of disjoint, non-adjacent intervals,
// canonicalized so that for all i<j, interval i ends strictly below
// min_j-1. Every RangeList operation in
// this package returns a canonical result.
type RangeList struct {
	Type     ctype.Type
	Interval []Interval
}

func empty(t ctype.Type) RangeList { return RangeList{Type: t} }

// Empty returns the empty range-list of type t.
func Empty(t ctype.Type) RangeList { return empty(t) }

// Single returns a one-value range-list.
func Single(v Sval) RangeList {
	return RangeList{Type: v.Type, Interval: []Interval{{Min: v, Max: v}}}
}

// Alloc builds the range-list [min..max].
func Alloc(min, max Sval) RangeList {
	if min.Type == nil {
		min.Type = max.Type
	}
	return RangeList{Type: min.Type, Interval: []Interval{{Min: min, Max: max}}}
}

// Whole returns the range-list covering every value representable in t,
// the evaluator's fallback for an expression it cannot determine.
func Whole(t ctype.Type) RangeList {
	if t.Signed() {
		w := t.Bits()
		if w <= 0 || w > 64 {
			w = 64
		}
		min := -(int64(1) << uint(w-1))
		max := int64(1)<<uint(w-1) - 1
		return Alloc(Int(t, min), Int(t, max))
	}
	w := t.Bits()
	if w <= 0 || w > 64 {
		w = 64
	}
	var max uint64
	if w >= 64 {
		max = ^uint64(0)
	} else {
		max = uint64(1)<<uint(w) - 1
	}
	return Alloc(Uint(t, 0), Uint(t, max))
}

// IsEmpty reports whether rl contains no values.
func (rl RangeList) IsEmpty() bool { return len(rl.Interval) == 0 }

// IsWhole reports whether rl is exactly the whole range of its type.
func (rl RangeList) IsWhole() bool {
	if rl.Type == nil || len(rl.Interval) != 1 {
		return false
	}
	w := Whole(rl.Type)
	return rl.Interval[0].Min.Cmp(w.Interval[0].Min) == 0 &&
		rl.Interval[0].Max.Cmp(w.Interval[0].Max) == 0
}

// Min returns the smallest value in rl, ok=false if rl is empty.
func (rl RangeList) Min() (Sval, bool) {
	if rl.IsEmpty() {
		return Sval{}, false
	}
	return rl.Interval[0].Min, true
}

// Max returns the largest value in rl, ok=false if rl is empty.
func (rl RangeList) Max() (Sval, bool) {
	if rl.IsEmpty() {
		return Sval{}, false
	}
	return rl.Interval[len(rl.Interval)-1].Max, true
}

// Contains reports whether v falls inside any interval of rl.
func (rl RangeList) Contains(v Sval) bool {
	for _, iv := range rl.Interval {
		if iv.Min.Cmp(v) <= 0 && v.Cmp(iv.Max) <= 0 {
			return true
		}
	}
	return false
}

func adjacent(signed bool, width int, aMax, bMin Sval) bool {
	// true when bMin == aMax+1, i.e. the intervals abut and should merge.
	if signed {
		a := aMax.Int64()
		b := bMin.Int64()
		if a == maxSigned(width) {
			return false
		}
		return a+1 == b
	}
	a := aMax.Uint64()
	b := bMin.Uint64()
	if a == maxUnsigned(width) {
		return false
	}
	return a+1 == b
}

func maxSigned(width int) int64 {
	if width <= 0 || width >= 64 {
		width = 64
	}
	return int64(1)<<uint(width-1) - 1
}

func maxUnsigned(width int) uint64 {
	if width <= 0 || width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<uint(width) - 1
}

// canon sorts and merges overlapping/adjacent intervals.
func canon(t ctype.Type, ivs []Interval) RangeList {
	if len(ivs) == 0 {
		return empty(t)
	}
	signed := t.Signed()
	width := t.Bits()
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Min.Cmp(ivs[j].Min) < 0 })
	out := make([]Interval, 0, len(ivs))
	cur := ivs[0]
	for _, iv := range ivs[1:] {
		if iv.Min.Cmp(cur.Max) <= 0 || adjacent(signed, width, cur.Max, iv.Min) {
			if iv.Max.Cmp(cur.Max) > 0 {
				cur.Max = iv.Max
			}
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	out = append(out, cur)
	return RangeList{Type: t, Interval: out}
}

// Union returns the canonical union of a and b (must share a type).
func Union(a, b RangeList) RangeList {
	t := a.Type
	if t == nil {
		t = b.Type
	}
	all := append(append([]Interval{}, a.Interval...), b.Interval...)
	return canon(t, all)
}

func ivIntersect(signed bool, a, b Interval) (Interval, bool) {
	var lo Sval
	if a.Min.Cmp(b.Min) >= 0 {
		lo = a.Min
	} else {
		lo = b.Min
	}
	var hi Sval
	if a.Max.Cmp(b.Max) <= 0 {
		hi = a.Max
	} else {
		hi = b.Max
	}
	if lo.Cmp(hi) > 0 {
		return Interval{}, false
	}
	return Interval{Min: lo, Max: hi}, true
}

// Intersect returns the canonical intersection of a and b.
func Intersect(a, b RangeList) RangeList {
	t := a.Type
	if t == nil {
		t = b.Type
	}
	var out []Interval
	for _, x := range a.Interval {
		for _, y := range b.Interval {
			if iv, ok := ivIntersect(t.Signed(), x, y); ok {
				out = append(out, iv)
			}
		}
	}
	return canon(t, out)
}

func decSval(v Sval) Sval {
	if v.Signed() {
		return Int(v.Type, v.Int64()-1)
	}
	return Uint(v.Type, v.Uint64()-1)
}

func incSval(v Sval) Sval {
	if v.Signed() {
		return Int(v.Type, v.Int64()+1)
	}
	return Uint(v.Type, v.Uint64()+1)
}

// Remove subtracts b from a, returning a canonical
// result.
func Remove(a, b RangeList) RangeList {
	t := a.Type
	cur := []Interval{}
	cur = append(cur, a.Interval...)
	for _, rem := range b.Interval {
		var next []Interval
		for _, iv := range cur {
			if rem.Max.Cmp(iv.Min) < 0 || rem.Min.Cmp(iv.Max) > 0 {
				next = append(next, iv)
				continue
			}
			if rem.Min.Cmp(iv.Min) > 0 {
				next = append(next, Interval{Min: iv.Min, Max: decSval(rem.Min)})
			}
			if rem.Max.Cmp(iv.Max) < 0 {
				next = append(next, Interval{Min: incSval(rem.Max), Max: iv.Max})
			}
		}
		cur = next
	}
	return canon(t, cur)
}

// Cast converts rl to type t (sign/zero-extend when widening). A negative
// signed range cast to a wider-or-equal unsigned type is split at zero. A
// narrowing cast, or an unsigned-to-signed cast of equal width, carries rl
// over exactly when every value fits in t and otherwise returns the whole
// range of t; no wrapped (two-interval) result is computed for truncated
// values.
func Cast(t ctype.Type, rl RangeList) RangeList {
	if rl.IsEmpty() {
		return empty(t)
	}
	srcWidth := rl.Type.Bits()
	dstWidth := t.Bits()
	if srcWidth <= 0 {
		srcWidth = 64
	}
	if dstWidth <= 0 {
		dstWidth = 64
	}

	if dstWidth >= srcWidth && rl.Type.Signed() == t.Signed() {
		// Pure widening with unchanged signedness: values are preserved
		// exactly, just relabeled under the new type.
		out := make([]Interval, len(rl.Interval))
		for i, iv := range rl.Interval {
			out[i] = Interval{Min: recast(iv.Min, t), Max: recast(iv.Max, t)}
		}
		return canon(t, out)
	}

	if dstWidth >= srcWidth && rl.Type.Signed() && !t.Signed() {
		// Signed -> wider-or-equal unsigned: split any interval spanning
		// zero so the negative half maps to its two's-complement value
		// instead of silently becoming a huge positive range via a single
		// naive cast.
		var out []Interval
		zero := Int(rl.Type, 0)
		for _, iv := range rl.Interval {
			if iv.Min.Cmp(zero) >= 0 {
				out = append(out, Interval{Min: recast(iv.Min, t), Max: recast(iv.Max, t)})
				continue
			}
			if iv.Max.Cmp(zero) < 0 {
				out = append(out, Interval{Min: recast(iv.Min, t), Max: recast(iv.Max, t)})
				continue
			}
			// spans zero: [min..-1] U [0..max]
			out = append(out, Interval{Min: recast(iv.Min, t), Max: recast(decSval(zero), t)})
			out = append(out, Interval{Min: recast(zero, t), Max: recast(iv.Max, t)})
		}
		return canon(t, out)
	}

	if dstWidth >= srcWidth && !rl.Type.Signed() && t.Signed() {
		// Unsigned -> wider signed: unsigned values are always non-negative
		// so they carry over directly under the wider signed type.
		out := make([]Interval, len(rl.Interval))
		for i, iv := range rl.Interval {
			out[i] = Interval{Min: recast(iv.Min, t), Max: recast(iv.Max, t)}
		}
		return canon(t, out)
	}

	// Narrowing (dstWidth < srcWidth), or same-width signedness flip: fall
	// back to the whole destination range when any interval in rl does not
	// fit untruncated. When every interval fits within the destination type's representable
	// values we instead carry it over exactly, which is the common case
	// (e.g. casting a range known to be 0..10 from int to char).
	dst := Whole(t)
	dstMin, _ := dst.Min()
	dstMax, _ := dst.Max()
	var out []Interval
	allFit := true
	for _, iv := range rl.Interval {
		lo := recast(iv.Min, rl.Type)
		hi := recast(iv.Max, rl.Type)
		if !fitsWithin(lo, dstMin, dstMax, t) || !fitsWithin(hi, dstMin, dstMax, t) {
			allFit = false
			break
		}
		out = append(out, Interval{Min: recast(iv.Min, t), Max: recast(iv.Max, t)})
	}
	if !allFit {
		return dst
	}
	return canon(t, out)
}

// fitsWithin reports whether v's numeric value, read under v's own type,
// lies within [lo..hi], the bounds of type t.
func fitsWithin(v, lo, hi Sval, t ctype.Type) bool {
	if v.Signed() {
		n := v.Int64()
		if t.Signed() {
			return lo.Int64() <= n && n <= hi.Int64()
		}
		return n >= 0 && uint64(n) <= hi.Uint64()
	}
	u := v.Uint64()
	if t.Signed() {
		return u <= uint64(hi.Int64())
	}
	return u <= hi.Uint64()
}

// recast relabels v's raw bits under type t without changing the numeric
// value's interpretation basis (used internally once a cast direction has
// already been decided safe by the caller).
func recast(v Sval, t ctype.Type) Sval {
	if v.Signed() {
		return Int(t, v.Int64())
	}
	return Uint(t, v.Uint64())
}

// ParseRL reads back the textual form String produces ("empty", "4", "0-7",
// "-5--1,1-5", ...) under type t. This is how range-lists stored as text in
// the fact database's return_ranges/value columns come back to life
// on the consuming side of a two-pass run.
func ParseRL(t ctype.Type, s string) (RangeList, error) {
	if s == "" || s == "empty" {
		return empty(t), nil
	}
	if s == "whole" {
		return Whole(t), nil
	}
	var ivs []Interval
	for _, part := range strings.Split(s, ",") {
		lo, hi, err := parseBounds(t, part)
		if err != nil {
			return RangeList{}, err
		}
		ivs = append(ivs, Interval{Min: lo, Max: hi})
	}
	return canon(t, ivs), nil
}

func parseBounds(t ctype.Type, part string) (Sval, Sval, error) {
	// The '-' range separator is the first '-' preceded by a digit, so
	// negative bounds ("-5--1") parse unambiguously.
	sep := -1
	for i := 1; i < len(part); i++ {
		if part[i] == '-' && part[i-1] >= '0' && part[i-1] <= '9' {
			sep = i
			break
		}
	}
	if sep < 0 {
		v, err := parseSval(t, part)
		return v, v, err
	}
	lo, err := parseSval(t, part[:sep])
	if err != nil {
		return Sval{}, Sval{}, err
	}
	hi, err := parseSval(t, part[sep+1:])
	return lo, hi, err
}

func parseSval(t ctype.Type, s string) (Sval, error) {
	if t.Signed() {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Sval{}, fmt.Errorf("sval: bad range bound %q: %w", s, err)
		}
		return Int(t, v), nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Sval{}, fmt.Errorf("sval: bad range bound %q: %w", s, err)
	}
	return Uint(t, v), nil
}

func (rl RangeList) String() string {
	if rl.IsEmpty() {
		return "empty"
	}
	parts := make([]string, len(rl.Interval))
	for i, iv := range rl.Interval {
		if iv.Min.Cmp(iv.Max) == 0 {
			parts[i] = iv.Min.String()
		} else {
			parts[i] = iv.Min.String() + "-" + iv.Max.String()
		}
	}
	return strings.Join(parts, ",")
}
