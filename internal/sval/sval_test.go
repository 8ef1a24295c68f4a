package sval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smatchgo/internal/ctype"
)

func TestBinopSignedOverflow(t *testing.T) {
	a := Int(ctype.Char, 120)
	b := Int(ctype.Char, 10)
	res := Binop(a, OpAdd, b, ctype.Char)
	assert.True(t, res.Overflow, "120+10 should overflow a signed 8-bit char")
}

func TestBinopUnsignedOverflow(t *testing.T) {
	a := Uint(ctype.UnsignedChar, 250)
	b := Uint(ctype.UnsignedChar, 10)
	res := Binop(a, OpAdd, b, ctype.UnsignedChar)
	assert.True(t, res.Overflow)
	assert.Equal(t, uint64(4), res.Value.Uint64())
}

func TestBinopNoOverflow(t *testing.T) {
	a := Int(ctype.Int, 2)
	b := Int(ctype.Int, 3)
	res := Binop(a, OpMul, b, ctype.Int)
	require.False(t, res.Overflow)
	assert.Equal(t, int64(6), res.Value.Int64())
}

func TestDivByZeroReportsOverflow(t *testing.T) {
	a := Int(ctype.Int, 10)
	b := Int(ctype.Int, 0)
	res := Binop(a, OpDiv, b, ctype.Int)
	assert.True(t, res.Overflow)
}

func TestCmpSigned(t *testing.T) {
	a := Int(ctype.Int, -1)
	b := Int(ctype.Int, 1)
	assert.Equal(t, -1, a.Cmp(b))
}

func TestCmpUnsigned(t *testing.T) {
	// The same bit pattern as signed -1 should compare as a large positive
	// value once reinterpreted as unsigned.
	a := Uint(ctype.UnsignedInt, uint64(Int(ctype.Int, -1).Bits))
	b := Uint(ctype.UnsignedInt, 1)
	assert.Equal(t, 1, a.Cmp(b))
}
