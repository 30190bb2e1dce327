// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

// #include "lua.h"
// #include "lauxlib.h"
import "C"

// A Reference is a unique integer key to a Lua value stored in a
// reference table, as returned by [State.Ref]. References keep values
// alive across stack unwinds and are stable for the lifetime of the
// interpreter or until released with [State.Unref].
type Reference C.int

const (
	// RefNil is the reference returned by [State.Ref] when the popped
	// value was nil. It can be passed to [State.PushRef] and
	// [State.Unref] like any other reference.
	RefNil Reference = C.LUA_REFNIL
	// NoRef is a sentinel guaranteed to differ from any reference
	// [State.Ref] returns. It is useful as an "unset" marker.
	NoRef Reference = C.LUA_NOREF
)

// IsNil reports whether the reference was created from a nil value.
func (ref Reference) IsNil() bool { return ref == RefNil }

// IsNoRef reports whether the reference is the unset sentinel.
func (ref Reference) IsNoRef() bool { return ref == NoRef }

// Ref pops the value on the top of the stack, stores it into the
// table at index t, and returns its [Reference]. Popping nil returns
// [RefNil] without touching the table. The usual reference table is
// the registry ([RegistryIndex]).
func (l *State) Ref(t int) Reference {
	l.checkElems(1)
	if !l.isAcceptableIndex(t) {
		panic("unacceptable index")
	}
	ref := Reference(C.luaL_ref(l.ptr, C.int(t)))
	l.top--
	return ref
}

// Unref releases the reference ref from the table at index t, allowing
// the referred value to be collected and the reference slot to be
// reused. Unref of [RefNil] or [NoRef] has no effect.
func (l *State) Unref(t int, ref Reference) {
	if l.ptr == nil {
		return
	}
	if !l.isAcceptableIndex(t) {
		panic("unacceptable index")
	}
	C.luaL_unref(l.ptr, C.int(t), C.int(ref))
}

// PushRef pushes the value referred to by ref in the table at index t
// and returns the type of the pushed value. Pushing [NoRef] or a
// released reference pushes nil.
func (l *State) PushRef(t int, ref Reference) Type {
	return l.RawIndex(t, int64(ref))
}
