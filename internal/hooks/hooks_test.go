package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smatchgo/internal/ctype"
	"smatchgo/internal/sval"
)

func TestDispatchFiresInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	var order []int
	r.Register(Assignment, func(any) { order = append(order, 1) })
	r.Register(Assignment, func(any) { order = append(order, 2) })

	r.Dispatch(Assignment, nil)
	assert.Equal(t, []int{1, 2}, order)
}

func TestFnHookMatchesOnlyItsName(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.RegisterFnHook("malloc", func(payload any, cookie any) { got = append(got, "malloc:"+cookie.(string)) }, "tag")
	r.RegisterFnHook("free", func(payload any, cookie any) { got = append(got, "free") }, nil)

	r.DispatchFnHooks("malloc", nil)
	assert.Equal(t, []string{"malloc:tag"}, got)
}

func TestParamKeyHookMatchesExactTuple(t *testing.T) {
	r := NewRegistry()
	fired := false
	r.RegisterParamKeyHook("memcpy", 2, "$", func(any, any) { fired = true }, nil)

	r.DispatchParamKeyHooks("memcpy", 1, "$", nil)
	assert.False(t, fired, "wrong param index must not match")

	r.DispatchParamKeyHooks("memcpy", 2, "$", nil)
	assert.True(t, fired)
}

func TestReturnImpliesMatchesRange(t *testing.T) {
	r := NewRegistry()
	var matched bool
	r.RegisterReturnImplies("is_error", sval.Int(ctype.Int, 1), sval.Int(ctype.Int, 1), func(any, any) { matched = true }, nil)

	r.DispatchReturnImplies("is_error", sval.Int(ctype.Int, 0), nil)
	assert.False(t, matched)

	r.DispatchReturnImplies("is_error", sval.Int(ctype.Int, 1), nil)
	assert.True(t, matched)
}
