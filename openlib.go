// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// #include "lua.h"
// #include "lualib.h"
import "C"

// Standard library names.
const (
	CoroutineLibraryName = C.LUA_COLIBNAME
	TableLibraryName     = C.LUA_TABLIBNAME
	IOLibraryName        = C.LUA_IOLIBNAME
	OSLibraryName        = C.LUA_OSLIBNAME
	StringLibraryName    = C.LUA_STRLIBNAME
	UTF8LibraryName      = C.LUA_UTF8LIBNAME
	MathLibraryName      = C.LUA_MATHLIBNAME
	DebugLibraryName     = C.LUA_DBLIBNAME
	PackageLibraryName   = C.LUA_LOADLIBNAME
)

// pushCFunction pushes a function implemented in C. Such functions run
// without re-entering Go, so a subsequent protected [State.Call]
// contains any error they raise.
func (l *State) pushCFunction(f C.lua_CFunction) {
	l.init()
	if l.top >= l.cap {
		panic("stack overflow")
	}
	C.lua_pushcclosure(l.ptr, f, 0)
	l.top++
}

// PushOpenBase pushes the loader of the basic library.
func (l *State) PushOpenBase() { l.pushCFunction(C.lua_CFunction(C.luaopen_base)) }

// PushOpenCoroutine pushes the loader of the coroutine library.
func (l *State) PushOpenCoroutine() { l.pushCFunction(C.lua_CFunction(C.luaopen_coroutine)) }

// PushOpenTable pushes the loader of the table library.
func (l *State) PushOpenTable() { l.pushCFunction(C.lua_CFunction(C.luaopen_table)) }

// PushOpenIO pushes the loader of the io library.
func (l *State) PushOpenIO() { l.pushCFunction(C.lua_CFunction(C.luaopen_io)) }

// PushOpenOS pushes the loader of the os library.
func (l *State) PushOpenOS() { l.pushCFunction(C.lua_CFunction(C.luaopen_os)) }

// PushOpenString pushes the loader of the string library.
func (l *State) PushOpenString() { l.pushCFunction(C.lua_CFunction(C.luaopen_string)) }

// PushOpenUTF8 pushes the loader of the utf8 library.
func (l *State) PushOpenUTF8() { l.pushCFunction(C.lua_CFunction(C.luaopen_utf8)) }

// PushOpenMath pushes the loader of the math library.
func (l *State) PushOpenMath() { l.pushCFunction(C.lua_CFunction(C.luaopen_math)) }

// PushOpenDebug pushes the loader of the debug library.
func (l *State) PushOpenDebug() { l.pushCFunction(C.lua_CFunction(C.luaopen_debug)) }

// PushOpenPackage pushes the loader of the package library.
func (l *State) PushOpenPackage() { l.pushCFunction(C.lua_CFunction(C.luaopen_package)) }

// OpenLibraries loads all the standard libraries into l and stores
// each of them under its usual global name, equivalent to calling
// require on every library. Errors raised by a loader are caught and
// returned.
func (l *State) OpenLibraries() error {
	libs := []struct {
		name string
		f    C.lua_CFunction
	}{
		{GName, C.lua_CFunction(C.luaopen_base)},
		{PackageLibraryName, C.lua_CFunction(C.luaopen_package)},
		{CoroutineLibraryName, C.lua_CFunction(C.luaopen_coroutine)},
		{TableLibraryName, C.lua_CFunction(C.luaopen_table)},
		{IOLibraryName, C.lua_CFunction(C.luaopen_io)},
		{OSLibraryName, C.lua_CFunction(C.luaopen_os)},
		{StringLibraryName, C.lua_CFunction(C.luaopen_string)},
		{MathLibraryName, C.lua_CFunction(C.luaopen_math)},
		{UTF8LibraryName, C.lua_CFunction(C.luaopen_utf8)},
		{DebugLibraryName, C.lua_CFunction(C.luaopen_debug)},
	}
	for _, lib := range libs {
		if err := l.requireC(lib.name, lib.f, true); err != nil {
			return fmt.Errorf("lua: open libraries: %w", err)
		}
		l.Pop(1) // remove module from the stack
	}
	return nil
}

// requireC is [Require] for loaders implemented in C, calling the
// loader in protected mode without a Go frame in between. Leaves a
// copy of the module on the stack.
func (l *State) requireC(modName string, openf C.lua_CFunction, global bool) error {
	if _, err := Subtable(l, RegistryIndex, LoadedTable); err != nil {
		return fmt.Errorf("require %q: %w", modName, err)
	}
	l.RawField(-1, modName)
	if !l.ToBoolean(-1) {
		l.Pop(1) // remove field
		l.pushCFunction(openf)
		l.PushString(modName)
		if err := l.Call(1, 1, 0); err != nil {
			return fmt.Errorf("require %q: %w", modName, err)
		}
		l.PushValue(-1)
		l.RawSetField(-3, modName)
	}
	l.Remove(-2) // remove LOADED table
	if global {
		l.PushValue(-1) // copy of module
		if err := l.SetGlobal(modName, 0); err != nil {
			return fmt.Errorf("require %q: %w", modName, err)
		}
	}
	return nil
}
