// Package ctype models the C type system that the range algebra (internal/sval)
// and the expression evaluator (internal/eval) need: integer widths and
// signedness, pointer types, and struct/union layouts.
package ctype

import "fmt"

// Kind identifies the shape of a Type.
type Kind int

const (
	KindInt Kind = iota
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindVoid
	KindFunc
)

// Type is satisfied by every C type the engine reasons about. It is
// deliberately small: the engine only ever needs a type's bit width,
// signedness, and what it points to or contains.
type Type interface {
	Kind() Kind
	String() string
	// Bits is the storage width in bits. 0 for void/array/struct/union
	// types whose width is not a single scalar (ByteSize reports byte size);
	// function types report 64, the width of a function pointer.
	Bits() int
	Signed() bool
}

// IntType covers char/short/int/long/long long in their plain/signed/unsigned
// forms, plus _Bool (Bits==1).
type IntType struct {
	Name   string
	Width  int // bits: 1, 8, 16, 32, 64
	Signed_ bool
}

func (t *IntType) Kind() Kind    { return KindInt }
func (t *IntType) Bits() int     { return t.Width }
func (t *IntType) Signed() bool  { return t.Signed_ }
func (t *IntType) String() string { return t.Name }

// PointerType is a pointer to another type. The engine treats all
// pointers as a single machine width (64 bits) regardless of target.
type PointerType struct {
	Elem Type
}

func (t *PointerType) Kind() Kind    { return KindPointer }
func (t *PointerType) Bits() int     { return 64 }
func (t *PointerType) Signed() bool  { return false }
func (t *PointerType) String() string {
	if t.Elem == nil {
		return "void *"
	}
	return fmt.Sprintf("%s *", t.Elem.String())
}

// ArrayType is a fixed-extent array of Elem. Len < 0 means the extent is
// unknown (e.g. an incomplete array type, or a flexible array member).
type ArrayType struct {
	Elem Type
	Len  int
}

func (t *ArrayType) Kind() Kind   { return KindArray }
func (t *ArrayType) Bits() int    { return 0 }
func (t *ArrayType) Signed() bool { return false }
func (t *ArrayType) String() string {
	if t.Len < 0 {
		return fmt.Sprintf("%s[]", t.Elem.String())
	}
	return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
}

// ByteSize returns the size in bytes of any type with a defined extent.
// Struct/union byte sizes come from their registered field layout.
func ByteSize(t Type) int {
	switch tt := t.(type) {
	case *IntType:
		return (tt.Width + 7) / 8
	case *PointerType:
		return 8
	case *ArrayType:
		if tt.Len < 0 {
			return 0
		}
		return tt.Len * ByteSize(tt.Elem)
	case *StructType:
		return tt.ByteSize
	case *VoidType:
		return 0
	default:
		return 0
	}
}

// VoidType is the incomplete void type.
type VoidType struct{}

func (t *VoidType) Kind() Kind    { return KindVoid }
func (t *VoidType) Bits() int     { return 0 }
func (t *VoidType) Signed() bool  { return false }
func (t *VoidType) String() string { return "void" }

// Field is one member of a struct/union.
type Field struct {
	Name   string
	Type   Type
	Offset int // byte offset within the aggregate
}

// StructType is a struct or union declaration. Unions reuse StructType with
// Union set true; every field has Offset 0 in that case.
type StructType struct {
	Name     string
	Union    bool
	Fields   []Field
	ByteSize int
}

func (t *StructType) Kind() Kind {
	if t.Union {
		return KindUnion
	}
	return KindStruct
}
func (t *StructType) Bits() int    { return 0 }
func (t *StructType) Signed() bool { return false }
func (t *StructType) String() string {
	if t.Union {
		return fmt.Sprintf("union %s", t.Name)
	}
	return fmt.Sprintf("struct %s", t.Name)
}

// FieldByName looks up a member by name, returning ok=false when absent.
func (t *StructType) FieldByName(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FuncType is a function type, used for function-pointer members (the
// function_ptr fact table) and for call-site signature checks.
type FuncType struct {
	Params   []Type
	Return   Type
	Variadic bool
}

func (t *FuncType) Kind() Kind    { return KindFunc }
func (t *FuncType) Bits() int     { return 64 } // function pointers are machine-width
func (t *FuncType) Signed() bool  { return false }
func (t *FuncType) String() string { return "function" }

// Standard C integer types, matching a typical LP64 target: the profile
// (internal/profile) never changes these, only the allocator/free function
// names visible to checkers.
var (
	Bool              = &IntType{Name: "_Bool", Width: 1, Signed_: false}
	Char              = &IntType{Name: "char", Width: 8, Signed_: true}
	UnsignedChar      = &IntType{Name: "unsigned char", Width: 8, Signed_: false}
	Short             = &IntType{Name: "short", Width: 16, Signed_: true}
	UnsignedShort     = &IntType{Name: "unsigned short", Width: 16, Signed_: false}
	Int               = &IntType{Name: "int", Width: 32, Signed_: true}
	UnsignedInt       = &IntType{Name: "unsigned int", Width: 32, Signed_: false}
	Long              = &IntType{Name: "long", Width: 64, Signed_: true}
	UnsignedLong      = &IntType{Name: "unsigned long", Width: 64, Signed_: false}
	LongLong          = &IntType{Name: "long long", Width: 64, Signed_: true}
	UnsignedLongLong  = &IntType{Name: "unsigned long long", Width: 64, Signed_: false}
	Void              = &VoidType{}
)

// IsPointerish reports whether t is a pointer or decays to one (arrays in
// most expression contexts); used by the Condition Engine's pointer-truthy
// narrowing rule.
func IsPointerish(t Type) bool {
	switch t.(type) {
	case *PointerType, *ArrayType:
		return true
	default:
		return false
	}
}
