// Package hooks implements the hook registry: the dispatch table checkers
// register against at init time and the control-flow walker fires into as
// it processes a function. Event hooks, per-function-name call hooks,
// parameter-key hooks, return-implies hooks, caller-info hooks,
// return-states hooks, and split-return callbacks all live here.
package hooks

import "smatchgo/internal/sval"

// Event is one of the fixed, enumerated walk event identifiers.
type Event int

const (
	FuncDef Event = iota
	AfterDef
	Declaration
	Assignment
	AssignmentAfter
	Binop
	Condition
	Preloop
	Stmt
	StmtAfter
	Deref
	Op
	Sym
	FunctionCall
	FunctionCallAfterDB
	CallAssignment
	Return
	InlineFnStart
	InlineFnEnd
	EndFunc
	AfterFunc
	Base
	EndFile
)

// Fn is a generic hook callback; payload's concrete type is event-specific
// and documented alongside each dispatch site in internal/walk and
// internal/eval.
type Fn func(payload any)

// FnHook is a per-function-name call hook together with the opaque cookie
// it was registered with; the cookie is handed back on every dispatch.
type FnHook struct {
	Fn     func(payload any, cookie any)
	Cookie any
}

type paramKeyID struct {
	fname string
	param int
	key   string
}

// ReturnImpliesHook fires for calls whose callee's return value is known to
// fall in [Low, High], letting a checker set state at the call site purely
// from the return value range.
type ReturnImpliesHook struct {
	Low, High sval.Sval
	Fn        func(payload any, cookie any)
	Cookie    any
}

// Registry is the process-wide hook table, written only by the driver and
// by checkers running under its supervision.
type Registry struct {
	events            map[Event][]Fn
	fnHooks           map[string][]FnHook
	paramKeyHooks     map[paramKeyID][]FnHook
	returnStates      map[string][]Fn
	returnImplies     map[string][]ReturnImpliesHook
	callerInfo        map[string][]Fn
	returnImpliesFact map[string][]Fn
	splitReturn       []func(payload any)
}

// NewRegistry returns an empty hook table.
func NewRegistry() *Registry {
	return &Registry{
		events:            make(map[Event][]Fn),
		fnHooks:           make(map[string][]FnHook),
		paramKeyHooks:     make(map[paramKeyID][]FnHook),
		returnStates:      make(map[string][]Fn),
		returnImplies:     make(map[string][]ReturnImpliesHook),
		callerInfo:        make(map[string][]Fn),
		returnImpliesFact: make(map[string][]Fn),
	}
}

// Register subscribes fn to event, appended after any previously
// registered handler for the same event.
func (r *Registry) Register(event Event, fn Fn) {
	r.events[event] = append(r.events[event], fn)
}

// Dispatch fires every hook registered for event, in registration order.
func (r *Registry) Dispatch(event Event, payload any) {
	for _, fn := range r.events[event] {
		fn(payload)
	}
}

// RegisterFnHook subscribes fn to calls whose callee is named fname.
func (r *Registry) RegisterFnHook(fname string, fn func(payload any, cookie any), cookie any) {
	r.fnHooks[fname] = append(r.fnHooks[fname], FnHook{Fn: fn, Cookie: cookie})
}

// DispatchFnHooks fires every hook registered for fname, in registration
// order, once per call site.
func (r *Registry) DispatchFnHooks(fname string, payload any) {
	for _, h := range r.fnHooks[fname] {
		h.Fn(payload, h.Cookie)
	}
}

// RegisterParamKeyHook subscribes fn to calls to fname where parameter
// index param's key-resolved value matches key.
func (r *Registry) RegisterParamKeyHook(fname string, param int, key string, fn func(payload any, cookie any), cookie any) {
	id := paramKeyID{fname: fname, param: param, key: key}
	r.paramKeyHooks[id] = append(r.paramKeyHooks[id], FnHook{Fn: fn, Cookie: cookie})
}

// DispatchParamKeyHooks fires every hook registered for (fname, param,
// key).
func (r *Registry) DispatchParamKeyHooks(fname string, param int, key string, payload any) {
	id := paramKeyID{fname: fname, param: param, key: key}
	for _, h := range r.paramKeyHooks[id] {
		h.Fn(payload, h.Cookie)
	}
}

// RegisterReturnStatesHook subscribes fn to the "all return states"
// callback under typeTag. The evaluator dispatches it at each call site,
// once per return_states fact of the callee whose type is typeTag, with an
// *eval.ReturnStatesPayload.
func (r *Registry) RegisterReturnStatesHook(typeTag string, fn Fn) {
	r.returnStates[typeTag] = append(r.returnStates[typeTag], fn)
}

// DispatchReturnStates fires every "all return states" hook under typeTag.
func (r *Registry) DispatchReturnStates(typeTag string, payload any) {
	for _, fn := range r.returnStates[typeTag] {
		fn(payload)
	}
}

// RegisterReturnImplies subscribes fn to calls to fname whose known return
// range falls within [low, high].
func (r *Registry) RegisterReturnImplies(fname string, low, high sval.Sval, fn func(payload any, cookie any), cookie any) {
	r.returnImplies[fname] = append(r.returnImplies[fname], ReturnImpliesHook{Low: low, High: high, Fn: fn, Cookie: cookie})
}

// DispatchReturnImplies fires every return-implies hook registered for
// fname whose range contains ret.
func (r *Registry) DispatchReturnImplies(fname string, ret sval.Sval, payload any) {
	for _, h := range r.returnImplies[fname] {
		if ret.Cmp(h.Low) >= 0 && ret.Cmp(h.High) <= 0 {
			h.Fn(payload, h.Cookie)
		}
	}
}

// RegisterCallerInfo subscribes fn to caller_info facts of the given type
// tag, dispatched once per stored fact while the driver derives a
// function's initial stree.
func (r *Registry) RegisterCallerInfo(typeTag string, fn Fn) {
	r.callerInfo[typeTag] = append(r.callerInfo[typeTag], fn)
}

// DispatchCallerInfo fires every caller-info hook registered under typeTag.
func (r *Registry) DispatchCallerInfo(typeTag string, payload any) {
	for _, fn := range r.callerInfo[typeTag] {
		fn(payload)
	}
}

// RegisterReturnImpliesFact subscribes fn to stored return_implies facts of
// the given type tag, dispatched when a call's return value is known to
// fall within a stored fact's range.
func (r *Registry) RegisterReturnImpliesFact(typeTag string, fn Fn) {
	r.returnImpliesFact[typeTag] = append(r.returnImpliesFact[typeTag], fn)
}

// DispatchReturnImpliesFact fires every stored-fact return-implies hook
// registered under typeTag.
func (r *Registry) DispatchReturnImpliesFact(typeTag string, payload any) {
	for _, fn := range r.returnImpliesFact[typeTag] {
		fn(payload)
	}
}

// RegisterSplitReturn subscribes fn to the split-return callback, invoked
// once per distinct return-value grouping a function produces.
func (r *Registry) RegisterSplitReturn(fn func(payload any)) {
	r.splitReturn = append(r.splitReturn, fn)
}

// DispatchSplitReturn fires every split-return hook.
func (r *Registry) DispatchSplitReturn(payload any) {
	for _, fn := range r.splitReturn {
		fn(payload)
	}
}
