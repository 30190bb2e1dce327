// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"sync"
	"unsafe"
)

// #include "lua.h"
import "C"

// extras maps a raw thread pointer to its attached data box. The map
// lives outside the State so that callbacks, which see only the raw
// pointer, can recover the box regardless of which Go wrapper they
// were handed.
var extras sync.Map // unsafe.Pointer -> *extraBox

// extraBox is the single attachment slot of a thread. Threads that
// share their parent's attachment share the box by pointer.
type extraBox struct {
	main unsafe.Pointer // owning interpreter, for cleanup on Close

	mu    sync.Mutex
	value any
}

// mainPtr returns the raw pointer of the interpreter's main thread.
// It needs one stack slot beyond whatever the caller has reserved.
func mainPtr(ptr *C.lua_State) unsafe.Pointer {
	if C.lua_checkstack(ptr, 1) == 0 {
		panic("stack overflow")
	}
	C.lua_rawgeti(ptr, C.LUA_REGISTRYINDEX, C.LUA_RIDX_MAINTHREAD)
	main := C.lua_tothread(ptr, -1)
	C.lua_settop(ptr, -2)
	return unsafe.Pointer(main)
}

func (l *State) loadExtraBox() *extraBox {
	l.init()
	key := unsafe.Pointer(l.ptr)
	if box, ok := extras.Load(key); ok {
		return box.(*extraBox)
	}
	box, _ := extras.LoadOrStore(key, &extraBox{main: mainPtr(l.ptr)})
	return box.(*extraBox)
}

// AttachExtra associates v with the thread l and returns the value
// previously attached, if any. The attachment is a single type-erased
// slot per thread: a second AttachExtra replaces the first. The slot
// is guarded by a lock, so concurrent access from Go code observing
// different wrappers of the same thread is safe, although the
// interpreter itself must still be confined to one goroutine at a
// time.
func (l *State) AttachExtra(v any) (prev any) {
	box := l.loadExtraBox()
	box.mu.Lock()
	defer box.mu.Unlock()
	prev = box.value
	box.value = v
	return prev
}

// DetachExtra removes and returns the value attached to the thread l,
// or nil when nothing is attached.
func (l *State) DetachExtra() (prev any) {
	box := l.loadExtraBox()
	box.mu.Lock()
	defer box.mu.Unlock()
	prev = box.value
	box.value = nil
	return prev
}

// Extra returns the value attached to the thread l, or nil when
// nothing is attached.
func (l *State) Extra() any {
	box := l.loadExtraBox()
	box.mu.Lock()
	defer box.mu.Unlock()
	return box.value
}

// ExtraAs returns the attached value downcast to T. ok is false when
// nothing is attached or the attachment is not a T.
func ExtraAs[T any](l *State) (v T, ok bool) {
	x := l.Extra()
	if x == nil {
		return v, false
	}
	v, ok = x.(T)
	return v, ok
}

// shareExtra makes child share parent's attachment box when the parent
// has a value attached at spawn time. A box that exists but holds
// nothing (materialized by a read, or emptied by DetachExtra) is not
// shared, so the child gets its own box lazily, invisible to the
// parent.
func shareExtra(parent, child *C.lua_State) {
	box, ok := extras.Load(unsafe.Pointer(parent))
	if !ok {
		return
	}
	b := box.(*extraBox)
	b.mu.Lock()
	attached := b.value != nil
	b.mu.Unlock()
	if attached {
		extras.Store(unsafe.Pointer(child), b)
	}
}

// dropExtra releases every attachment box owned by the interpreter
// whose main thread is ptr. Called once, from Close.
func dropExtra(ptr *C.lua_State) {
	main := mainPtr(ptr)
	extras.Range(func(key, value any) bool {
		if value.(*extraBox).main == main {
			extras.Delete(key)
		}
		return true
	})
}
