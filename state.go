// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"io"
	"os"
	"runtime/cgo"
	"unsafe"
)

// #cgo pkg-config: lua5.3
// #cgo unix CFLAGS: -DLUA_USE_POSIX
// #include <stdlib.h>
// #include <stddef.h>
// #include <stdint.h>
// #include "lua.h"
// #include "lauxlib.h"
// #include "lualib.h"
//
// char *moonbind_lua_readercb(lua_State *L, void *data, size_t *size);
// int moonbind_lua_gocb(lua_State *L, uintptr_t *yctx, int *yn);
// int moonbind_lua_kcb(lua_State *L, int status, uintptr_t ctx, uintptr_t *yctx, int *yn);
// int moonbind_lua_gchandle(lua_State *L);
//
// int moonbind_lua_continuek(lua_State *L, int status, lua_KContext ctx) {
//   uintptr_t yctx = 0;
//   int yn = 0;
//   int nresults = moonbind_lua_kcb(L, status, (uintptr_t)ctx, &yctx, &yn);
//   if (nresults == -1) {
//     return lua_error(L);
//   }
//   if (nresults == -2) {
//     if (yctx == 0) {
//       return lua_yield(L, yn);
//     }
//     return lua_yieldk(L, yn, (lua_KContext)yctx, moonbind_lua_continuek);
//   }
//   return nresults;
// }
//
// int moonbind_lua_callback(lua_State *L) {
//   uintptr_t yctx = 0;
//   int yn = 0;
//   int nresults = moonbind_lua_gocb(L, &yctx, &yn);
//   if (nresults == -1) {
//     return lua_error(L);
//   }
//   if (nresults == -2) {
//     if (yctx == 0) {
//       return lua_yield(L, yn);
//     }
//     return lua_yieldk(L, yn, (lua_KContext)yctx, moonbind_lua_continuek);
//   }
//   return nresults;
// }
//
// void moonbind_lua_pushstring(lua_State *L, _GoString_ s) {
//   lua_pushlstring(L, _GoStringPtr(s), _GoStringLen(s));
// }
//
// struct moonbind_readstring {
//   _GoString_ s;
//   int done;
// };
//
// static const char *moonbind_lua_readstring(lua_State *L, void *data, size_t *size) {
//   struct moonbind_readstring *rs = (struct moonbind_readstring *)(data);
//   if (rs->done) {
//     *size = 0;
//     return NULL;
//   }
//   *size = _GoStringLen(rs->s);
//   rs->done = 1;
//   return _GoStringPtr(rs->s);
// }
//
// int moonbind_lua_loadstring(lua_State *L, _GoString_ s, const char *chunkname, const char *mode) {
//   struct moonbind_readstring data = {s, 0};
//   return lua_load(L, moonbind_lua_readstring, &data, chunkname, mode);
// }
//
// static int moonbind_lua_gettablecb(lua_State *L) {
//   lua_gettable(L, 1);
//   return 1;
// }
//
// int moonbind_lua_gettable(lua_State *L, int index, int msgh, int *tp) {
//   index = lua_absindex(L, index);
//   msgh = msgh != 0 ? lua_absindex(L, msgh) : 0;
//   lua_pushcfunction(L, moonbind_lua_gettablecb);
//   lua_pushvalue(L, index);
//   lua_rotate(L, -3, -1);
//   int ret = lua_pcall(L, 2, 1, msgh);
//   if (tp != NULL) {
//     *tp = ret == LUA_OK ? lua_type(L, -1) : LUA_TNIL;
//   }
//   return ret;
// }
//
// static int moonbind_lua_settablecb(lua_State *L) {
//   lua_settable(L, 1);
//   return 0;
// }
//
// int moonbind_lua_settable(lua_State *L, int index, int msgh) {
//   index = lua_absindex(L, index);
//   msgh = msgh != 0 ? lua_absindex(L, msgh) : 0;
//   lua_pushcfunction(L, moonbind_lua_settablecb);
//   lua_pushvalue(L, index);
//   lua_rotate(L, -4, -2);
//   return lua_pcall(L, 3, 0, msgh);
// }
//
// static int moonbind_lua_lencb(lua_State *L) {
//   lua_len(L, 1);
//   return 1;
// }
//
// int moonbind_lua_len(lua_State *L, int index, int msgh) {
//   index = lua_absindex(L, index);
//   msgh = msgh != 0 ? lua_absindex(L, msgh) : 0;
//   lua_pushcfunction(L, moonbind_lua_lencb);
//   lua_pushvalue(L, index);
//   return lua_pcall(L, 1, 1, msgh);
// }
//
// void moonbind_lua_pushlightuserdata(lua_State *L, uint64_t p) {
//   lua_pushlightuserdata(L, (void *)p);
// }
//
// const char *moonbind_lua_ident_copyright = LUA_COPYRIGHT;
// const char *moonbind_lua_ident_major = LUA_VERSION_MAJOR;
// const char *moonbind_lua_ident_minor = LUA_VERSION_MINOR;
import "C"

// Version identity of the linked interpreter.
var (
	// Copyright is the runtime's copyright notice, suitable for banners.
	Copyright = C.GoString(C.moonbind_lua_ident_copyright)

	VersionMajor = C.GoString(C.moonbind_lua_ident_major)
	VersionMinor = C.GoString(C.moonbind_lua_ident_minor)
)

// State represents a handle to a Lua execution thread.
//
// The zero value is an owned handle to a fresh interpreter with a
// single main thread, an empty stack, and an empty environment; the
// interpreter is allocated lazily on first use. Handles obtained
// inside a [Function] callback or from [State.NewThread] are borrowed:
// they alias an interpreter whose teardown belongs elsewhere, and
// closing them panics.
//
// Methods that take stack indices panic if the index is outside the
// acceptable range, before the index can reach C. Use
// [State.CheckStack] to guarantee headroom beyond the minimum the
// runtime grants every fresh thread and callback.
type State struct {
	ptr      *C.lua_State
	top      int
	cap      int
	borrowed bool
	closed   bool

	// Pending cooperative yield, recorded by Yield/YieldK and consumed
	// by the trampoline after the Go frame returns.
	yieldPending bool
	yieldN       int
	yieldCtx     uintptr
}

// takeYield consumes a pending yield recorded by [State.YieldK],
// handing its parameters to the trampoline. Ownership of the
// continuation handle moves to the runtime, which releases it when the
// continuation fires.
func (l *State) takeYield() (n int, ctx uintptr) {
	n, ctx = l.yieldN, l.yieldCtx
	l.yieldPending = false
	l.yieldN = 0
	l.yieldCtx = 0
	return n, ctx
}

// abandonYield discards a pending yield that will never reach the
// runtime, releasing the continuation handle so it does not leak.
func (l *State) abandonYield() {
	if !l.yieldPending {
		return
	}
	if l.yieldCtx != 0 {
		cgo.Handle(l.yieldCtx).Delete()
	}
	l.yieldPending = false
	l.yieldN = 0
	l.yieldCtx = 0
}

// stateForCallback returns a borrowed State for the raw thread pointer
// the runtime supplied to a callback. It must run before anything else
// touches the pointer so that the shadowed top is accurate.
func stateForCallback(ptr *C.lua_State) *State {
	l := &State{
		ptr:      ptr,
		top:      int(C.lua_gettop(ptr)),
		borrowed: true,
	}
	l.cap = l.top + C.LUA_MINSTACK
	return l
}

func (l *State) init() {
	if l.ptr == nil {
		if l.closed {
			panic("lua: use of closed State")
		}
		l.ptr = C.luaL_newstate()
		if l.ptr == nil {
			panic("lua: cannot allocate interpreter")
		}
		l.cap = C.LUA_MINSTACK
	}
}

// Close releases the interpreter owned by l. Exactly one Close must
// happen per owned root State; closing a borrowed State or closing the
// same State twice is a programmer error and panics.
func (l *State) Close() error {
	if l.borrowed {
		panic("lua: close of borrowed State")
	}
	if l.closed {
		panic("lua: State closed twice")
	}
	if l.ptr != nil {
		dropExtra(l.ptr)
		C.lua_close(l.ptr)
	}
	*l = State{closed: true}
	return nil
}

// NewThread creates a new cooperative thread (coroutine) sharing l's
// global environment, pushes it onto l's stack, and returns a borrowed
// handle to it. The thread is owned by the interpreter's garbage
// collector: keep it on a stack or pin it with [State.Ref] while in
// use. If l holds attached extra data at spawn time, the new thread
// shares it by reference.
func (l *State) NewThread() *State {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	ptr := C.lua_newthread(l.ptr)
	l.top++
	t := &State{
		ptr:      ptr,
		borrowed: true,
		cap:      C.LUA_MINSTACK,
	}
	shareExtra(l.ptr, ptr)
	return t
}

// PushThread pushes the thread represented by l onto its own stack and
// reports whether it is the interpreter's main thread.
func (l *State) PushThread() bool {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	isMain := C.lua_pushthread(l.ptr) == 1
	l.top++
	return isMain
}

// ToThread returns a borrowed handle to the thread at the given index,
// or nil if the value there is not a thread.
func (l *State) ToThread(idx int) *State {
	if l.ptr == nil {
		return nil
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	ptr := C.lua_tothread(l.ptr, C.int(idx))
	if ptr == nil {
		return nil
	}
	t := &State{
		ptr:      ptr,
		top:      int(C.lua_gettop(ptr)),
		borrowed: true,
	}
	t.cap = t.top + C.LUA_MINSTACK
	return t
}

// Resume starts or continues the coroutine l. To start a coroutine,
// push the function to run and its arguments, then call Resume with
// the argument count; to continue one, push only the values that
// [State.Yield] should return inside the coroutine. from is the
// thread performing the resume (nil for the host).
//
// Resume returns [StatusOK] when the coroutine finishes and
// [StatusYield] when it suspends; in both cases the yielded or
// returned values are on l's stack. Any other status is also returned
// as an error carrying the message left on the stack.
func (l *State) Resume(from *State, nArgs int) (ThreadStatus, error) {
	if nArgs < 0 {
		panic("negative arguments")
	}
	l.init()
	l.checkElems(nArgs)
	var fromPtr *C.lua_State
	if from != nil {
		fromPtr = from.ptr
	}
	ret := C.lua_resume(l.ptr, fromPtr, C.int(nArgs))
	l.top = int(C.lua_gettop(l.ptr))
	l.cap = max(l.cap, l.top+C.LUA_MINSTACK)
	status := decodeStatus(ret)
	if status.IsError() {
		return status, fmt.Errorf("lua: resume: %w", l.newError(ret))
	}
	return status, nil
}

// Status returns the status of the thread l: [StatusOK] for a normal
// thread, [StatusYield] for a suspended coroutine, or the error status
// that stopped it.
func (l *State) Status() ThreadStatus {
	if l.ptr == nil {
		return StatusOK
	}
	return decodeStatus(C.lua_status(l.ptr))
}

// IsYieldable reports whether the running function can yield, that is,
// whether l is a coroutine that is not inside a non-yieldable C call.
func (l *State) IsYieldable() bool {
	if l.ptr == nil {
		return false
	}
	return C.lua_isyieldable(l.ptr) != 0
}

// XMove exchanges values between threads of the same interpreter: it
// pops n values from l's stack and pushes them onto to's stack.
func (l *State) XMove(to *State, n int) {
	l.checkElems(n)
	if to.ptr == nil {
		panic("lua: XMove to uninitialized State")
	}
	if to.top+n > to.cap {
		panic("stack overflow")
	}
	C.lua_xmove(l.ptr, to.ptr, C.int(n))
	l.top -= n
	to.top += n
}

// Call calls a value in protected mode.
//
// Push the function (or callable object), then its arguments in direct
// order, then invoke Call with the argument count. On return the
// function and arguments have been popped and nResults results pushed
// (all of them when nResults is [MultipleReturns]).
//
// On failure Call pops the function and arguments, pushes a single
// error object, and returns an error. If msgHandler is nonzero it is
// the stack index of a message handler to run over the error object
// before the stack unwinds (it cannot be a pseudo-index).
func (l *State) Call(nArgs, nResults, msgHandler int) error {
	if nArgs < 0 {
		panic("negative arguments")
	}
	toPop := 1 + nArgs
	l.checkElems(toPop)
	newTop := -1
	if nResults != MultipleReturns {
		if nResults < 0 {
			panic("negative results")
		}
		newTop = l.top - toPop + nResults
		if newTop > l.cap {
			panic("stack overflow")
		}
	}
	msgHandler = l.checkMessageHandler(msgHandler)

	ret := C.lua_pcallk(l.ptr, C.int(nArgs), C.int(nResults), C.int(msgHandler), 0, nil)
	if ret != C.LUA_OK {
		l.top -= toPop - 1
		return fmt.Errorf("lua: call: %w", l.newError(ret))
	}
	if newTop >= 0 {
		l.top = newTop
	} else {
		l.top = int(C.lua_gettop(l.ptr))
		l.cap = max(l.cap, l.top)
	}
	return nil
}

// MultipleReturns requests all results from [State.Call].
const MultipleReturns int = C.LUA_MULTRET

// Load loads a chunk from r without running it. If there are no
// errors, Load pushes the compiled chunk as a function on top of the
// stack. Otherwise, it pushes an error message and returns an error
// carrying the same message.
//
// chunkName names the chunk for error messages and debug information.
// mode controls whether text ("t"), binary ("b"), or both ("bt") are
// accepted.
func (l *State) Load(r io.Reader, chunkName string, mode string) error {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}

	modeC, err := loadMode(mode)
	if err != nil {
		l.PushString(err.Error())
		return fmt.Errorf("lua: load %s: %v", formatChunkName(chunkName), err)
	}

	rr := newReader(r)
	defer rr.free()
	handle := cgo.NewHandle(rr)
	defer handle.Delete()

	chunkNameC := C.CString(chunkName)
	defer C.free(unsafe.Pointer(chunkNameC))

	ret := C.lua_load(l.ptr, C.lua_Reader(C.moonbind_lua_readercb), unsafe.Pointer(&handle), chunkNameC, modeC)
	l.top++
	if ret != C.LUA_OK {
		return fmt.Errorf("lua: load %s: %w", formatChunkName(chunkName), l.newError(ret))
	}
	return nil
}

// LoadString is [State.Load] for an in-memory string, avoiding the
// reader callback round-trips.
func (l *State) LoadString(s string, chunkName string, mode string) error {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}

	modeC, err := loadMode(mode)
	if err != nil {
		l.PushString(err.Error())
		return fmt.Errorf("lua: load %s: %v", formatChunkName(chunkName), err)
	}

	chunkNameC := C.CString(chunkName)
	defer C.free(unsafe.Pointer(chunkNameC))

	ret := C.moonbind_lua_loadstring(l.ptr, s, chunkNameC, modeC)
	l.top++
	if ret != C.LUA_OK {
		return fmt.Errorf("lua: load %s: %w", formatChunkName(chunkName), l.newError(ret))
	}
	return nil
}

// DoString loads the source text as a chunk and runs it in protected
// mode, leaving any results on the stack.
func (l *State) DoString(s string, chunkName string) error {
	if err := l.LoadString(s, chunkName, "t"); err != nil {
		return err
	}
	return l.Call(0, MultipleReturns, 0)
}

// DoFile loads the named file as a chunk and runs it in protected
// mode, leaving any results on the stack. A file that cannot be
// opened pushes an error message and surfaces as an error with
// [StatusFileError].
func (l *State) DoFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		msg := fmt.Sprintf("cannot open %s", path)
		l.PushString(msg)
		return fmt.Errorf("lua: dofile: %w", &luaError{status: StatusFileError, msg: msg})
	}
	err = l.Load(f, "@"+path, "bt")
	f.Close()
	if err != nil {
		return err
	}
	return l.Call(0, MultipleReturns, 0)
}

func formatChunkName(chunkName string) string {
	if len(chunkName) == 0 || (chunkName[0] != '@' && chunkName[0] != '=') {
		return "(string)"
	}
	return chunkName[1:]
}

func loadMode(mode string) (*C.char, error) {
	const modeCStrings = "bt\x00t\x00b\x00"
	switch mode {
	case "bt":
		return (*C.char)(unsafe.Pointer(unsafe.StringData(modeCStrings))), nil
	case "t":
		return (*C.char)(unsafe.Pointer(unsafe.StringData(modeCStrings[3:]))), nil
	case "b":
		return (*C.char)(unsafe.Pointer(unsafe.StringData(modeCStrings[5:]))), nil
	default:
		return nil, fmt.Errorf("unknown load mode %q", mode)
	}
}

// Version returns the version number of the linked runtime.
func Version(l *State) float64 {
	l.init()
	return float64(*C.lua_version(l.ptr))
}

const readerBufferSize = 4096

type reader struct {
	r   io.Reader
	buf *C.char
}

func newReader(r io.Reader) *reader {
	return &reader{
		r:   r,
		buf: (*C.char)(C.calloc(readerBufferSize, C.size_t(unsafe.Sizeof(C.char(0))))),
	}
}

func (r *reader) free() {
	if r.buf != nil {
		C.free(unsafe.Pointer(r.buf))
		r.buf = nil
	}
}
