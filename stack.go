// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
)

// #include <stdint.h>
// #include "lua.h"
// #include "lauxlib.h"
//
// void moonbind_lua_pushstring(lua_State *L, _GoString_ s);
// void moonbind_lua_pushlightuserdata(lua_State *L, uint64_t p);
import "C"

// RegistryIndex is the pseudo-index of the registry, a predefined
// table any Go or C code can use to store Lua values it needs to keep.
const RegistryIndex int = C.LUA_REGISTRYINDEX

// Predefined keys in the registry.
const (
	// RegistryIndexMainThread is the registry index holding the main
	// thread of the interpreter.
	RegistryIndexMainThread int64 = C.LUA_RIDX_MAINTHREAD
	// RegistryIndexGlobals is the registry index holding the global
	// environment.
	RegistryIndexGlobals int64 = C.LUA_RIDX_GLOBALS

	// LoadedTable is the registry key of the table of loaded modules.
	LoadedTable = C.LUA_LOADED_TABLE
	// PreloadTable is the registry key of the table of preload loaders.
	PreloadTable = C.LUA_PRELOAD_TABLE
)

// GName is the name of the global environment table.
const GName = "_G"

// Type is the decoded dynamic type of a stack slot.
type Type C.int

// TypeNone is returned by [State.Type] for a non-valid but acceptable
// index.
const TypeNone Type = C.LUA_TNONE

// Value types.
const (
	TypeNil           Type = C.LUA_TNIL
	TypeBoolean       Type = C.LUA_TBOOLEAN
	TypeLightUserdata Type = C.LUA_TLIGHTUSERDATA
	TypeNumber        Type = C.LUA_TNUMBER
	TypeString        Type = C.LUA_TSTRING
	TypeTable         Type = C.LUA_TTABLE
	TypeFunction      Type = C.LUA_TFUNCTION
	TypeUserdata      Type = C.LUA_TUSERDATA
	TypeThread        Type = C.LUA_TTHREAD
)

// decodeType maps a raw tag from the runtime onto a [Type]. The
// mapping is total over the tags the linked runtime can produce; any
// other value indicates a header/library mismatch and fails closed.
func decodeType(tp C.int) Type {
	switch tp {
	case C.LUA_TNONE, C.LUA_TNIL, C.LUA_TBOOLEAN, C.LUA_TLIGHTUSERDATA,
		C.LUA_TNUMBER, C.LUA_TSTRING, C.LUA_TTABLE, C.LUA_TFUNCTION,
		C.LUA_TUSERDATA, C.LUA_TTHREAD:
		return Type(tp)
	default:
		panic(fmt.Sprintf("lua: unknown type tag %d", int(tp)))
	}
}

// String returns the name of the type encoded by tp.
func (tp Type) String() string {
	switch tp {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeLightUserdata, TypeUserdata:
		return "userdata"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	case TypeThread:
		return "thread"
	default:
		return fmt.Sprintf("lua.Type(%d)", C.int(tp))
	}
}

func isPseudo(i int) bool {
	return i <= RegistryIndex
}

const goClosureUpvalueIndex = C.LUA_REGISTRYINDEX - 1

// UpvalueIndex returns the pseudo-index of the i-th upvalue of the
// running function. UpvalueIndex panics if i is outside [1, 255].
func UpvalueIndex(i int) int {
	if i < 1 || i > 255 {
		panic("invalid upvalue index")
	}
	return C.LUA_REGISTRYINDEX - (i + 1)
}

// AbsIndex converts the acceptable index idx into an equivalent
// absolute index, one that does not depend on the stack size.
// Resolution happens against the live top at call time; absolute
// indices obtained before a mutating operation stay valid across it,
// relative ones do not. AbsIndex panics if idx is not acceptable.
func (l *State) AbsIndex(idx int) int {
	switch {
	case isPseudo(idx):
		return idx
	case idx == 0 || idx < -l.top || idx > l.cap:
		panic("unacceptable index")
	case idx < 0:
		return l.top + idx + 1
	default:
		return idx
	}
}

func (l *State) isValidIndex(idx int) bool {
	if idx == goClosureUpvalueIndex {
		// The first upvalue carries the Go closure handle and is not
		// for callers.
		return false
	}
	if isPseudo(idx) {
		return true
	}
	if idx < 0 {
		idx = -idx
	}
	return 1 <= idx && idx <= l.top
}

func (l *State) isAcceptableIndex(idx int) bool {
	return l.isValidIndex(idx) || l.top <= idx && idx <= l.cap
}

func (l *State) checkElems(n int) {
	if l.top < n {
		panic("not enough elements in the stack")
	}
}

func (l *State) checkMessageHandler(msgHandler int) int {
	switch {
	case msgHandler == 0:
		return 0
	case isPseudo(msgHandler):
		panic("pseudo-indexed message handler")
	case 1 <= msgHandler && msgHandler <= l.top:
		return msgHandler
	case -l.top <= msgHandler && msgHandler <= -1:
		return l.top + msgHandler + 1
	default:
		panic("invalid message handler index")
	}
}

// Top returns the index of the top element in the stack, which is also
// the number of elements in the stack (0 means empty).
func (l *State) Top() int {
	return l.top
}

// SetTop accepts any index, or 0, and sets the stack top to it. New
// slots are filled with nil when growing; 0 empties the stack.
func (l *State) SetTop(idx int) {
	// lua_settop can raise errors only for to-be-closed slots, which
	// this package never marks.
	switch {
	case isPseudo(idx):
		panic("pseudo-index invalid for top")
	case idx == 0:
		if l.ptr != nil {
			C.lua_settop(l.ptr, 0)
			l.top = 0
		}
		return
	case idx < 0:
		idx += l.top + 1
		if idx < 0 {
			panic("stack underflow")
		}
	case idx > l.cap:
		panic("stack overflow")
	}
	l.init()

	C.lua_settop(l.ptr, C.int(idx))
	l.top = idx
}

// Pop pops n elements from the stack.
func (l *State) Pop(n int) {
	l.SetTop(-n - 1)
}

// PushValue pushes a copy of the element at the given index.
func (l *State) PushValue(idx int) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_pushvalue(l.ptr, C.int(idx))
	l.top++
}

// Rotate rotates the stack elements between the valid index idx and
// the top: n positions toward the top when n is positive, -n toward
// the bottom when negative. Rotate panics if |n| exceeds the size of
// the rotated slice. Pseudo-indices are not actual stack positions
// and are rejected.
func (l *State) Rotate(idx, n int) {
	l.init()
	if !l.isValidIndex(idx) || isPseudo(idx) {
		panic("invalid index")
	}
	idx = l.AbsIndex(idx)
	absN := n
	if n < 0 {
		absN = -n
	}
	if absN > l.top-idx+1 {
		panic("invalid rotation")
	}
	C.lua_rotate(l.ptr, C.int(idx), C.int(n))
}

// Insert moves the top element into the given valid index, shifting up
// the elements above it to open space.
func (l *State) Insert(idx int) {
	l.Rotate(idx, 1)
}

// Remove removes the element at the given valid index, shifting down
// the elements above it to fill the gap.
func (l *State) Remove(idx int) {
	l.Rotate(idx, -1)
	l.Pop(1)
}

// Copy copies the element at fromIdx into the valid index toIdx,
// replacing the value there without disturbing other slots.
func (l *State) Copy(fromIdx, toIdx int) {
	l.init()
	if !l.isAcceptableIndex(fromIdx) || !l.isAcceptableIndex(toIdx) {
		panic("unacceptable index")
	}
	C.lua_copy(l.ptr, C.int(fromIdx), C.int(toIdx))
}

// Replace moves the top element into the given valid index and pops
// it, replacing the value at that index.
func (l *State) Replace(idx int) {
	l.Copy(-1, idx)
	l.Pop(1)
}

// CheckStack ensures the stack has room for at least n extra elements.
// It reports false when the runtime refuses to grow the stack, either
// because it would exceed the fixed maximum or because allocation
// failed; callers must treat false as an error rather than push
// anyway. The stack is never shrunk.
func (l *State) CheckStack(n int) bool {
	if l.top+n <= l.cap {
		return true
	}
	l.init()
	ok := C.lua_checkstack(l.ptr, C.int(n)) != 0
	if ok {
		l.cap = max(l.cap, l.top+n)
	}
	return ok
}

// IsNumber reports if the value at the given index is a number or a
// string convertible to a number.
func (l *State) IsNumber(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_isnumber(l.ptr, C.int(idx)) != 0
}

// IsString reports if the value at the given index is a string or a
// number (always convertible to a string).
func (l *State) IsString(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_isstring(l.ptr, C.int(idx)) != 0
}

// IsNativeFunction reports if the value at the given index is a
// function implemented in C or Go rather than in Lua.
func (l *State) IsNativeFunction(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_iscfunction(l.ptr, C.int(idx)) != 0
}

// IsInteger reports if the value at the given index is a number
// represented as an integer.
func (l *State) IsInteger(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_isinteger(l.ptr, C.int(idx)) != 0
}

// IsUserdata reports if the value at the given index is a userdata,
// full or light.
func (l *State) IsUserdata(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_isuserdata(l.ptr, C.int(idx)) != 0
}

// Type returns the type of the value at the given valid index, or
// [TypeNone] for a non-valid but acceptable index.
func (l *State) Type(idx int) Type {
	if l.ptr == nil {
		return TypeNone
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return decodeType(C.lua_type(l.ptr, C.int(idx)))
}

// IsFunction reports if the value at the given index is a function
// (Lua, C, or Go).
func (l *State) IsFunction(idx int) bool {
	return l.Type(idx) == TypeFunction
}

// IsTable reports if the value at the given index is a table.
func (l *State) IsTable(idx int) bool {
	return l.Type(idx) == TypeTable
}

// IsNil reports if the value at the given index is nil.
func (l *State) IsNil(idx int) bool {
	return l.Type(idx) == TypeNil
}

// IsBoolean reports if the value at the given index is a boolean.
func (l *State) IsBoolean(idx int) bool {
	return l.Type(idx) == TypeBoolean
}

// IsThread reports if the value at the given index is a thread.
func (l *State) IsThread(idx int) bool {
	return l.Type(idx) == TypeThread
}

// IsNone reports if the index is not valid.
func (l *State) IsNone(idx int) bool {
	return l.Type(idx) == TypeNone
}

// IsNoneOrNil reports if the index is not valid or holds nil.
func (l *State) IsNoneOrNil(idx int) bool {
	tp := l.Type(idx)
	return tp == TypeNone || tp == TypeNil
}

// ToNumber converts the value at the given index to a floating point
// number. The value must be a number or a string convertible to one;
// otherwise ToNumber returns (0, false).
func (l *State) ToNumber(idx int) (n float64, ok bool) {
	if l.ptr == nil {
		return 0, false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	var isNum C.int
	n = float64(C.lua_tonumberx(l.ptr, C.int(idx), &isNum))
	return n, isNum != 0
}

// ToInteger converts the value at the given index to a signed 64-bit
// integer. This is the lenient accessor: a float with an exact integer
// value and a string convertible to an integer both succeed. Use
// [State.IsInteger] (or [Read]) when the slot must already be an
// integer. On failure ToInteger returns (0, false).
func (l *State) ToInteger(idx int) (n int64, ok bool) {
	if l.ptr == nil {
		return 0, false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	var isNum C.int
	n = int64(C.lua_tointegerx(l.ptr, C.int(idx), &isNum))
	return n, isNum != 0
}

// ToBoolean converts the value at the given index to a boolean. As in
// Lua, every value other than false and nil tests true.
func (l *State) ToBoolean(idx int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return C.lua_toboolean(l.ptr, C.int(idx)) != 0
}

// ToString converts the value at the given index to a Go string. The
// value must be a string or a number; otherwise ToString returns
// ("", false). If the value is a number, the slot itself is changed to
// a string, which confuses [State.Next] during table traversal.
func (l *State) ToString(idx int) (s string, ok bool) {
	if l.ptr == nil {
		return "", false
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	var n C.size_t
	ptr := C.lua_tolstring(l.ptr, C.int(idx), &n)
	if ptr == nil {
		return "", false
	}
	return C.GoStringN(ptr, C.int(n)), true
}

// RawLen returns the raw length of the value at the given index: the
// string length for strings, the result of '#' without metamethods
// for tables, the block size for userdata, and 0 for anything else.
func (l *State) RawLen(idx int) uint64 {
	if l.ptr == nil {
		return 0
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return uint64(C.lua_rawlen(l.ptr, C.int(idx)))
}

// ToPointer converts the value at the given index to a generic pointer
// and returns its numeric address, or 0 for values without identity.
// Distinct objects give distinct addresses; the result is useful only
// for hashing and debug output.
func (l *State) ToPointer(idx int) uintptr {
	if l.ptr == nil {
		return 0
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return uintptr(C.lua_topointer(l.ptr, C.int(idx)))
}

// RawEqual reports whether the values at the two indices are
// primitively equal, without invoking the __eq metamethod.
func (l *State) RawEqual(idx1, idx2 int) bool {
	if l.ptr == nil {
		return false
	}
	if !l.isAcceptableIndex(idx1) || !l.isAcceptableIndex(idx2) {
		panic("unacceptable index")
	}
	return C.lua_rawequal(l.ptr, C.int(idx1), C.int(idx2)) != 0
}

// PushNil pushes a nil value onto the stack.
func (l *State) PushNil() {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_pushnil(l.ptr)
	l.top++
}

// PushNumber pushes a floating point number onto the stack.
func (l *State) PushNumber(n float64) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_pushnumber(l.ptr, C.lua_Number(n))
	l.top++
}

// PushInteger pushes an integer onto the stack.
func (l *State) PushInteger(n int64) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_pushinteger(l.ptr, C.lua_Integer(n))
	l.top++
}

// PushString pushes a string onto the stack. The interpreter makes its
// own copy; s may contain NUL bytes.
func (l *State) PushString(s string) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.moonbind_lua_pushstring(l.ptr, s)
	l.top++
}

// PushBoolean pushes a boolean onto the stack.
func (l *State) PushBoolean(b bool) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	i := C.int(0)
	if b {
		i = 1
	}
	C.lua_pushboolean(l.ptr, i)
	l.top++
}

// PushLightUserdata pushes a light userdata onto the stack.
//
// A light userdata is a bare pointer value: it has no metatable, is
// never collected, and compares equal to any light userdata with the
// same address.
func (l *State) PushLightUserdata(p uintptr) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.moonbind_lua_pushlightuserdata(l.ptr, C.uint64_t(p))
	l.top++
}
