package ctype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSizes(t *testing.T) {
	assert.Equal(t, 1, ByteSize(Char))
	assert.Equal(t, 4, ByteSize(Int))
	assert.Equal(t, 8, ByteSize(Long))
	assert.Equal(t, 8, ByteSize(&PointerType{Elem: Int}))
	assert.Equal(t, 16, ByteSize(&ArrayType{Elem: Int, Len: 4}))
	assert.Equal(t, 0, ByteSize(Void))
}

func TestRegistryResolvesBuiltins(t *testing.T) {
	r := NewRegistry()
	got, ok := r.Lookup("unsigned int")
	require.True(t, ok)
	assert.Same(t, Type(UnsignedInt), got)

	_, ok = r.Lookup("quadword")
	assert.False(t, ok)
}

func TestRegistryStructLookupIsKindScoped(t *testing.T) {
	r := NewRegistry()
	st := &StructType{Name: "req", Fields: []Field{{Name: "len", Type: Int}}}
	r.AddStruct(st)

	got, ok := r.Struct("req", false)
	require.True(t, ok)
	assert.Same(t, st, got)

	_, ok = r.Struct("req", true)
	assert.False(t, ok, "a struct must not resolve as a union of the same name")
}

func TestFieldByName(t *testing.T) {
	st := &StructType{Name: "req", Fields: []Field{
		{Name: "len", Type: Int, Offset: 0},
		{Name: "buf", Type: &PointerType{Elem: Char}, Offset: 8},
	}}
	f, ok := st.FieldByName("buf")
	require.True(t, ok)
	assert.Equal(t, 8, f.Offset)

	_, ok = st.FieldByName("cap")
	assert.False(t, ok)
}

func TestIsPointerish(t *testing.T) {
	assert.True(t, IsPointerish(&PointerType{Elem: Int}))
	assert.True(t, IsPointerish(&ArrayType{Elem: Int, Len: 4}))
	assert.False(t, IsPointerish(Int))
}
