// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"fmt"
	"runtime/cgo"
	"unsafe"
)

// #include "lua.h"
// #include "lauxlib.h"
//
// int moonbind_lua_callback(lua_State *L);
// int moonbind_lua_gchandle(lua_State *L);
import "C"

// A Function is a callback for Lua function calls implemented in Go.
// The function receives its arguments from Lua in its stack in direct
// order (the first argument is pushed first), so when the function
// starts, [State.Top] returns the number of arguments received. To
// return values, the function pushes them in direct order and returns
// their count; any other value left below the results is discarded by
// Lua.
//
// A non-nil error becomes a Lua error raised at the call site, with
// the string result of its Error method as the error object. A panic
// inside the function is caught before the Go frame returns to C and
// raised the same way, so it never unwinds through foreign frames.
type Function func(l *State) (int, error)

// pcall invokes f, converting a panic into an error so that nothing
// unwinds across the cgo boundary.
func (f Function) pcall(l *State) (nResults int, err error) {
	defer func() {
		if v := recover(); v != nil {
			nResults = 0
			switch v := v.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("%v", v)
			}
		}
	}()
	return f(l)
}

// A Continuation finishes a call that was suspended by [State.YieldK].
// status is [StatusYield] when the coroutine is resumed after a yield,
// or an error status when the continuation runs as part of error
// handling. A continuation returns results exactly as a [Function]
// does, and may itself call [State.YieldK].
type Continuation func(l *State, status ThreadStatus) (int, error)

func (k Continuation) pcall(l *State, status ThreadStatus) (nResults int, err error) {
	defer func() {
		if v := recover(); v != nil {
			nResults = 0
			switch v := v.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = fmt.Errorf("%v", v)
			}
		}
	}()
	return k(l, status)
}

// Sentinel results from the Go side of the trampoline. The C wrapper
// performs lua_error and lua_yieldk itself, after the Go frame has
// returned, because both unwind with longjmp.
const (
	callbackRaise = -1
	callbackYield = -2
)

// PushClosure pushes a Go closure onto the stack. n is how many
// upvalues this function will have, popped off the top of the stack.
// (When there are multiple upvalues, the first value is pushed first.)
// If n is negative or greater than 254, then PushClosure panics.
//
// Under the hood, PushClosure uses the first Lua upvalue to store a
// reference to the Go function. [UpvalueIndex] already compensates for
// this, so the first upvalue pushed here is accessed with
// UpvalueIndex(1). No assumptions should be made about the content of
// the hidden upvalue, but PushClosure is guaranteed to use exactly
// one.
func (l *State) PushClosure(n int, f Function) {
	if n < 0 || n > 254 {
		panic("invalid upvalue count")
	}
	if f == nil {
		panic("nil lua.Function")
	}
	l.checkElems(n)
	l.init()

	l.pushHandle(cgo.NewHandle(f))
	l.Insert(-n - 1)
	C.lua_pushcclosure(l.ptr, C.lua_CFunction(C.moonbind_lua_callback), C.int(n+1))
	l.top -= n
}

// Yield suspends the running coroutine, returning n values from the
// top of the stack to the [State.Resume] that restarted it. The
// calling [Function] must immediately return the result of Yield as
// its result count; there is no way to continue the function after the
// coroutine is resumed (use [State.YieldK] for that). Yield panics if
// the thread cannot yield, for example when called across a C call
// with no continuation support or outside any coroutine.
func (l *State) Yield(n int) int {
	return l.YieldK(n, nil)
}

// YieldK suspends the running coroutine like [State.Yield] and
// arranges for cont to run, on this same thread, when the coroutine is
// resumed. The values passed to the resume appear as the top stack
// values seen by cont. The calling [Function] must immediately return
// the result of YieldK as its result count.
func (l *State) YieldK(n int, cont Continuation) int {
	if l.ptr == nil {
		panic("yield on uninitialized State")
	}
	if C.lua_isyieldable(l.ptr) == 0 {
		panic("attempt to yield from outside a coroutine")
	}
	l.checkElems(n)
	if l.yieldPending {
		panic("yield already pending")
	}
	l.yieldPending = true
	l.yieldN = n
	if cont != nil {
		l.yieldCtx = uintptr(cgo.NewHandle(cont))
	} else {
		l.yieldCtx = 0
	}
	return callbackYield
}

// PushGoValue pushes a Go userdata onto the stack. If v is nil, a nil
// will be pushed instead. The value can be retrieved later with
// [State.ToGoValue].
//
// PushGoValue creates a userdata with a metatable that has a __gc
// method to clean up the reference to the Go value when it is
// garbage-collected by Lua. If the metatable is tampered with, then
// the Go value can be leaked. The metatable has the __metatable field
// set to false, so it cannot be accessed through Lua's getmetatable
// function in the basic library, but it is still accessible through
// the Go/C API and debug interfaces.
func (l *State) PushGoValue(v any) {
	if v == nil {
		l.PushNil()
	} else {
		l.init()
		l.pushHandle(cgo.NewHandle(v))
	}
}

// ToGoValue converts the Lua value at the given index to a Go value.
// The Lua value must be a userdata previously created by
// [State.PushGoValue]; otherwise the function returns nil.
func (l *State) ToGoValue(idx int) any {
	if l.ptr == nil {
		return nil
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	handlePtr := l.testHandle(idx)
	if handlePtr == nil || *handlePtr == 0 {
		return nil
	}
	return handlePtr.Value()
}

const handleMetatableName = "runtime/cgo.Handle"

func (l *State) pushHandle(handle cgo.Handle) {
	if !l.CheckStack(3) {
		panic("stack overflow")
	}
	ptr := (*cgo.Handle)(C.lua_newuserdata(l.ptr, C.size_t(unsafe.Sizeof(cgo.Handle(0)))))
	*ptr = handle
	l.top++
	if NewMetatable(l, handleMetatableName) {
		C.lua_pushcclosure(l.ptr, C.lua_CFunction(C.moonbind_lua_gchandle), 0)
		l.top++
		l.RawSetField(-2, "__gc") // metatable.__gc = moonbind_lua_gchandle
		// Prevent access of metatable from Lua.
		// The basic library's getmetatable function obeys this metafield.
		l.PushBoolean(false)
		l.RawSetField(-2, "__metatable") // metatable.__metatable = false
	}
	l.SetMetatable(-2)
}

func (l *State) testHandle(idx int) *cgo.Handle {
	p := C.lua_touserdata(l.ptr, C.int(idx))
	if p == nil {
		return nil
	}
	if !l.metatable(idx) {
		return nil
	}
	tp := Metatable(l, handleMetatableName)
	// The cgo.Handle metatable is created lazily, so only trust the
	// pointer when the named metatable exists and matches. Anything
	// else is an unknown userdata we must not dereference.
	ok := tp == TypeTable && l.RawEqual(-1, -2)
	l.Pop(2)
	if !ok {
		return nil
	}
	return (*cgo.Handle)(p)
}
