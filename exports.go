// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"runtime/cgo"
	"unsafe"
)

// #include <stdlib.h>
// #include <stddef.h>
// #include <stdint.h>
// #include "lua.h"
//
// void moonbind_lua_pushstring(lua_State *L, _GoString_ s);
import "C"

//export moonbind_lua_readercb
func moonbind_lua_readercb(l *C.lua_State, data unsafe.Pointer, size *C.size_t) *C.char {
	r := (*cgo.Handle)(data).Value().(*reader)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(r.buf)), readerBufferSize)
	n, _ := r.r.Read(buf)
	*size = C.size_t(n)
	return r.buf
}

//export moonbind_lua_gocb
func moonbind_lua_gocb(l *C.lua_State, yctx *C.uintptr_t, yn *C.int) C.int {
	state := stateForCallback(l)
	ptr := (*cgo.Handle)(C.lua_touserdata(l, upvalueIndex(1)))
	f := ptr.Value().(Function)
	results, err := f.pcall(state)
	return finishCallback(state, results, err, yctx, yn)
}

//export moonbind_lua_kcb
func moonbind_lua_kcb(l *C.lua_State, status C.int, ctx C.uintptr_t, yctx *C.uintptr_t, yn *C.int) C.int {
	state := stateForCallback(l)
	h := cgo.Handle(ctx)
	k := h.Value().(Continuation)
	h.Delete()
	results, err := k.pcall(state, decodeStatus(status))
	return finishCallback(state, results, err, yctx, yn)
}

// finishCallback translates the outcome of a Go callback into the
// sentinel protocol the C trampoline understands. The Go frame must
// return normally in every case; the trampoline performs lua_error or
// lua_yieldk on its side of the boundary.
func finishCallback(state *State, results int, err error, yctx *C.uintptr_t, yn *C.int) C.int {
	if err != nil {
		state.abandonYield()
		C.moonbind_lua_pushstring(state.ptr, err.Error())
		return callbackRaise
	}
	if results == callbackYield && state.yieldPending {
		n, ctx := state.takeYield()
		*yn = C.int(n)
		*yctx = C.uintptr_t(ctx)
		return callbackYield
	}
	state.abandonYield()
	if results < 0 {
		return 0
	}
	return C.int(results)
}

//export moonbind_lua_gchandle
func moonbind_lua_gchandle(l *C.lua_State) C.int {
	ptr := (*cgo.Handle)(C.lua_touserdata(l, 1))
	ptr.Delete()
	return 0
}

// upvalueIndex returns the pseudo-index that represents the i-th upvalue
// of the running function.
// i must be in the range [1,256].
func upvalueIndex(i C.int) C.int {
	return C.LUA_REGISTRYINDEX - i
}
