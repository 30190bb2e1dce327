// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
)

// #include "lua.h"
//
// int moonbind_lua_gettable(lua_State *L, int index, int msgh, int *tp);
// int moonbind_lua_settable(lua_State *L, int index, int msgh);
// int moonbind_lua_len(lua_State *L, int index, int msgh);
import "C"

// Global pushes onto the stack the value of the global with the given
// name and returns the type of that value.
//
// As in Lua, this function may trigger a metamethod on the globals
// table for the "index" event. If the metamethod raises an error,
// Global catches it, pushes a single value on the stack (the error
// object), and returns an error with [TypeNil].
//
// If msgHandler is 0, then the error object left on the stack is
// exactly the original error object. Otherwise, msgHandler is the
// stack index of a message handler (this index cannot be a
// pseudo-index); in case of runtime errors, the handler is called
// with the error object and its return value will be the object left
// on the stack. Typically the message handler adds debug information
// such as a stack traceback, which cannot be gathered after Global
// returns, since by then the stack has unwound.
func (l *State) Global(name string, msgHandler int) (Type, error) {
	l.init()
	msgHandler = l.checkMessageHandler(msgHandler)
	l.RawIndex(RegistryIndex, RegistryIndexGlobals)
	tp, err := l.Field(-1, name, msgHandler)
	l.Remove(-2) // remove the globals table
	return tp, err
}

// Table pushes onto the stack the value t[k], where t is the value at
// the given index and k is the value on the top of the stack, and
// returns the type of the pushed value. This function pops the key
// from the stack, pushing the resulting value in its place.
//
// As in Lua, this function may trigger a metamethod for the "index"
// event. If there is any error, Table catches it, pushes a single
// value on the stack (the error object), and returns an error with
// [TypeNil]. Table always removes the key from the stack. See
// [State.Global] for the meaning of msgHandler.
func (l *State) Table(idx, msgHandler int) (Type, error) {
	l.checkElems(1)
	if !l.CheckStack(2) { // gettable needs 2 additional stack slots
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	msgHandler = l.checkMessageHandler(msgHandler)
	var tp C.int
	ret := C.moonbind_lua_gettable(l.ptr, C.int(idx), C.int(msgHandler), &tp)
	if ret != C.LUA_OK {
		return TypeNil, fmt.Errorf("lua: table lookup: %w", l.newError(ret))
	}
	return decodeType(tp), nil
}

// Field pushes onto the stack the value t[k], where t is the value at
// the given index. See [State.Table] for further information.
func (l *State) Field(idx int, k string, msgHandler int) (Type, error) {
	l.init()
	if !l.CheckStack(3) { // gettable needs 2 additional stack slots
		panic("stack overflow")
	}
	idx = l.AbsIndex(idx)
	msgHandler = l.checkMessageHandler(msgHandler)
	l.PushString(k)
	var tp C.int
	ret := C.moonbind_lua_gettable(l.ptr, C.int(idx), C.int(msgHandler), &tp)
	if ret != C.LUA_OK {
		return TypeNil, fmt.Errorf("lua: get field %q: %w", k, l.newError(ret))
	}
	return decodeType(tp), nil
}

// Index pushes onto the stack the value t[n], where t is the value at
// the given index. See [State.Table] for further information.
func (l *State) Index(idx int, n int64, msgHandler int) (Type, error) {
	l.init()
	if !l.CheckStack(3) {
		panic("stack overflow")
	}
	idx = l.AbsIndex(idx)
	msgHandler = l.checkMessageHandler(msgHandler)
	l.PushInteger(n)
	var tp C.int
	ret := C.moonbind_lua_gettable(l.ptr, C.int(idx), C.int(msgHandler), &tp)
	if ret != C.LUA_OK {
		return TypeNil, fmt.Errorf("lua: get index %d: %w", n, l.newError(ret))
	}
	return decodeType(tp), nil
}

// RawGet pushes onto the stack t[k], where t is the table at the given
// index and k is the value on the top of the stack. This function pops
// the key from the stack, pushing the resulting value in its place.
// The access is raw, that is, it does not use the __index metavalue.
func (l *State) RawGet(idx int) Type {
	l.checkElems(1)
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return decodeType(C.lua_rawget(l.ptr, C.int(idx)))
}

// RawIndex pushes onto the stack the value t[n], where t is the table
// at the given index, and returns the type of the pushed value. The
// access is raw.
func (l *State) RawIndex(idx int, n int64) Type {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	tp := decodeType(C.lua_rawgeti(l.ptr, C.int(idx), C.lua_Integer(n)))
	l.top++
	return tp
}

// RawField pushes onto the stack t[k], where t is the table at the
// given index. The access is raw.
func (l *State) RawField(idx int, k string) Type {
	idx = l.AbsIndex(idx)
	l.PushString(k)
	return l.RawGet(idx)
}

// CreateTable creates a new empty table and pushes it onto the stack.
// nArr is a hint for how many elements the table will have as a
// sequence; nRec is a hint for how many other elements the table will
// have. Lua may use these hints to preallocate memory for the table.
func (l *State) CreateTable(nArr, nRec int) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_createtable(l.ptr, C.int(nArr), C.int(nRec))
	l.top++
}

// NewUserdata creates and pushes on the stack a new full userdata. The
// userdata has a single associated Lua value, its user value, accessed
// and modified with [State.UserValue] and [State.SetUserValue]. Go
// code that needs to associate Go state with a userdata should store
// it in the user value or keep it behind a [Reference]; the raw memory
// block is not exposed.
func (l *State) NewUserdata() {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_newuserdata(l.ptr, 0)
	l.top++
}

// Metatable reports whether the value at the given index has a
// metatable and if so, pushes that metatable onto the stack.
func (l *State) Metatable(idx int) bool {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	return l.metatable(idx)
}

func (l *State) metatable(idx int) bool {
	ok := C.lua_getmetatable(l.ptr, C.int(idx)) != 0
	if ok {
		l.top++
	}
	return ok
}

// UserValue pushes onto the stack the user value associated with the
// full userdata at the given index and returns the type of the pushed
// value. If the value at the index is not a full userdata, pushes nil
// and returns [TypeNil].
func (l *State) UserValue(idx int) Type {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	if !l.IsUserdata(idx) || l.Type(idx) == TypeLightUserdata {
		l.PushNil()
		return TypeNil
	}
	tp := decodeType(C.lua_getuservalue(l.ptr, C.int(idx)))
	l.top++
	return tp
}

// SetGlobal pops a value from the stack and sets it as the new value
// of the global with the given name.
//
// As in Lua, this function may trigger a metamethod on the globals
// table for the "newindex" event. If there is any error, SetGlobal
// catches it, pushes a single value on the stack (the error object),
// and returns an error. SetGlobal always removes the value from the
// stack. See [State.Global] for the meaning of msgHandler.
func (l *State) SetGlobal(name string, msgHandler int) error {
	l.checkElems(1)
	if msgHandler != 0 {
		msgHandler = l.AbsIndex(msgHandler)
	}
	l.RawIndex(RegistryIndex, RegistryIndexGlobals)
	l.Rotate(-2, 1) // swap globals table with value
	err := l.SetField(-2, name, msgHandler)
	if err != nil {
		l.Remove(-2) // remove the globals table, keeping the error object
		return err
	}
	l.Pop(1) // remove the globals table
	return nil
}

// SetTable does the equivalent to t[k] = v, where t is the value at
// the given index, v is the value on the top of the stack, and k is
// the value just below the top. This function pops both the key and
// the value from the stack.
//
// As in Lua, this function may trigger a metamethod for the "newindex"
// event. If there is any error, SetTable catches it, pushes a single
// value on the stack (the error object), and returns an error.
// SetTable always removes the key and value from the stack. See
// [State.Global] for the meaning of msgHandler.
func (l *State) SetTable(idx, msgHandler int) error {
	l.checkElems(2)
	if !l.CheckStack(2) { // settable needs 2 additional stack slots
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) || msgHandler != 0 && !l.isAcceptableIndex(msgHandler) {
		panic("unacceptable index")
	}
	ret := C.moonbind_lua_settable(l.ptr, C.int(idx), C.int(msgHandler))
	if ret != C.LUA_OK {
		l.top--
		return fmt.Errorf("lua: set table field: %w", l.newError(ret))
	}
	l.top -= 2
	return nil
}

// SetField does the equivalent to t[k] = v, where t is the value at
// the given index, v is the value on the top of the stack, and k is
// the given string. This function pops the value from the stack. See
// [State.SetTable] for more information.
func (l *State) SetField(idx int, k string, msgHandler int) error {
	l.checkElems(1)
	if !l.CheckStack(3) { // settable needs 2 additional stack slots
		panic("stack overflow")
	}

	idx = l.AbsIndex(idx)
	if msgHandler != 0 {
		msgHandler = l.AbsIndex(msgHandler)
	}

	l.PushString(k)
	l.Rotate(-2, 1)
	ret := C.moonbind_lua_settable(l.ptr, C.int(idx), C.int(msgHandler))
	if ret != C.LUA_OK {
		l.top--
		return fmt.Errorf("lua: set field %q: %w", k, l.newError(ret))
	}
	l.top -= 2
	return nil
}

// SetIndex does the equivalent to t[n] = v, where t is the value at
// the given index and v is the value on the top of the stack. This
// function pops the value from the stack. See [State.SetTable] for
// more information.
func (l *State) SetIndex(idx int, n int64, msgHandler int) error {
	l.checkElems(1)
	if !l.CheckStack(3) {
		panic("stack overflow")
	}

	idx = l.AbsIndex(idx)
	if msgHandler != 0 {
		msgHandler = l.AbsIndex(msgHandler)
	}

	l.PushInteger(n)
	l.Rotate(-2, 1)
	ret := C.moonbind_lua_settable(l.ptr, C.int(idx), C.int(msgHandler))
	if ret != C.LUA_OK {
		l.top--
		return fmt.Errorf("lua: set index %d: %w", n, l.newError(ret))
	}
	l.top -= 2
	return nil
}

// RawSet does the equivalent to t[k] = v, where t is the table at the
// given index, v is the value on the top of the stack, and k is the
// value just below the top. This function pops both the key and the
// value from the stack. The assignment is raw, that is, it does not
// use the __newindex metavalue.
func (l *State) RawSet(idx int) {
	l.checkElems(2)
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	C.lua_rawset(l.ptr, C.int(idx))
	l.top -= 2
}

// RawSetIndex does the equivalent of t[n] = v, where t is the table at
// the given index and v is the value on the top of the stack. This
// function pops the value from the stack. The assignment is raw.
func (l *State) RawSetIndex(idx int, n int64) {
	l.checkElems(1)
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	C.lua_rawseti(l.ptr, C.int(idx), C.lua_Integer(n))
	l.top--
}

// RawSetField does the equivalent to t[k] = v, where t is the table at
// the given index and v is the value on the top of the stack. This
// function pops the value from the stack. The assignment is raw.
func (l *State) RawSetField(idx int, k string) {
	idx = l.AbsIndex(idx)
	l.PushString(k)
	l.Rotate(-2, 1)
	l.RawSet(idx)
}

// SetMetatable pops a table or nil from the stack and sets that value
// as the new metatable for the value at the given index. (nil means no
// metatable.)
func (l *State) SetMetatable(objIndex int) {
	l.checkElems(1)
	if !l.isAcceptableIndex(objIndex) {
		panic("unacceptable index")
	}
	C.lua_setmetatable(l.ptr, C.int(objIndex))
	l.top--
}

// SetUserValue pops a value from the stack and sets it as the new user
// value associated to the full userdata at the given index, reporting
// whether the value at the index is a full userdata.
func (l *State) SetUserValue(idx int) bool {
	l.checkElems(1)
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	if !l.IsUserdata(idx) || l.Type(idx) == TypeLightUserdata {
		l.Pop(1)
		return false
	}
	C.lua_setuservalue(l.ptr, C.int(idx))
	l.top--
	return true
}

// Next pops a key from the stack, and pushes a key-value pair from the
// table at the given index, the "next" pair after the given key. If
// there are no more elements in the table, then Next returns false and
// pushes nothing.
//
// While traversing a table, avoid calling [State.ToString] directly on
// a key, unless you know that the key is actually a string. Recall
// that [State.ToString] may change the value at the given index; this
// confuses the next call to Next.
//
// The behavior of this function is undefined if the given key is
// neither nil nor present in the table.
func (l *State) Next(idx int) bool {
	l.checkElems(1)
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	ok := C.lua_next(l.ptr, C.int(idx)) != 0
	if ok {
		l.top++
	} else {
		l.top--
	}
	return ok
}

// Len returns the length of the value at the given index, equivalent
// to the '#' operator in Lua. This may trigger the __len metamethod;
// if the metamethod raises an error or the result is not an integer,
// Len catches it and returns it as a Go value. Unlike most operations,
// Len pops the error object, leaving the stack unchanged either way.
// See [State.Global] for the meaning of msgHandler.
func (l *State) Len(idx, msgHandler int) (int64, error) {
	l.init()
	if !l.CheckStack(2) {
		panic("stack overflow")
	}
	if !l.isAcceptableIndex(idx) {
		panic("unacceptable index")
	}
	msgHandler = l.checkMessageHandler(msgHandler)
	ret := C.moonbind_lua_len(l.ptr, C.int(idx), C.int(msgHandler))
	l.top++
	if ret != C.LUA_OK {
		err := fmt.Errorf("lua: length: %w", l.newError(ret))
		l.Pop(1)
		return 0, err
	}
	n, ok := l.ToInteger(-1)
	l.Pop(1)
	if !ok {
		return 0, fmt.Errorf("lua: length: object length is not an integer")
	}
	return n, nil
}
