package ctype

// Registry tracks the types visible while analyzing one translation
// unit: the fixed builtin integer family plus struct/union declarations
// registered through AddStruct.
type Registry struct {
	builtins map[string]Type
	structs  map[string]*StructType
}

// NewRegistry returns a registry preloaded with the standard C integer
// family and void.
func NewRegistry() *Registry {
	r := &Registry{
		builtins: make(map[string]Type),
		structs:  make(map[string]*StructType),
	}
	for _, t := range []Type{
		Bool, Char, UnsignedChar, Short, UnsignedShort,
		Int, UnsignedInt, Long, UnsignedLong, LongLong, UnsignedLongLong, Void,
	} {
		r.builtins[t.String()] = t
	}
	return r
}

// Lookup resolves a builtin type name (e.g. "unsigned int").
func (r *Registry) Lookup(name string) (Type, bool) {
	t, ok := r.builtins[name]
	return t, ok
}

// AddStruct registers a struct/union declaration so later member-access
// expressions can resolve
// field offsets and types.
func (r *Registry) AddStruct(st *StructType) {
	key := st.Name
	if st.Union {
		key = "union " + key
	} else {
		key = "struct " + key
	}
	r.structs[key] = st
}

// Struct looks up a previously registered struct/union by its bare name
// (without the "struct"/"union" keyword) and kind.
func (r *Registry) Struct(name string, union bool) (*StructType, bool) {
	key := "struct " + name
	if union {
		key = "union " + name
	}
	st, ok := r.structs[key]
	return st, ok
}
