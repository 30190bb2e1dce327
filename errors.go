// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

// #include "lua.h"
// #include "lauxlib.h"
import "C"

import (
	"errors"
	"fmt"
)

// ThreadStatus is the status of a thread as reported by [State.Status]
// and returned from [State.Resume].
type ThreadStatus C.int

const (
	// StatusOK means the thread finished normally or has not started.
	StatusOK ThreadStatus = C.LUA_OK
	// StatusYield means the thread is suspended in a yield.
	StatusYield ThreadStatus = C.LUA_YIELD
	// StatusRuntimeError means the thread raised an error while
	// running.
	StatusRuntimeError ThreadStatus = C.LUA_ERRRUN
	// StatusSyntaxError means a chunk failed to compile.
	StatusSyntaxError ThreadStatus = C.LUA_ERRSYNTAX
	// StatusMemoryError means memory allocation failed. The message
	// for such errors is produced without allocating.
	StatusMemoryError ThreadStatus = C.LUA_ERRMEM
	// StatusGCError means an error was raised while running a __gc
	// metamethod.
	StatusGCError ThreadStatus = C.LUA_ERRGCMM
	// StatusMessageHandlerError means an error occurred while running
	// the message handler of a protected call.
	StatusMessageHandlerError ThreadStatus = C.LUA_ERRERR
	// StatusFileError means a file could not be opened or read.
	StatusFileError ThreadStatus = C.LUA_ERRFILE
)

// decodeStatus maps a raw status code from the runtime onto a
// [ThreadStatus], failing closed on values the linked runtime should
// never produce.
func decodeStatus(code C.int) ThreadStatus {
	switch code {
	case C.LUA_OK, C.LUA_YIELD, C.LUA_ERRRUN, C.LUA_ERRSYNTAX,
		C.LUA_ERRMEM, C.LUA_ERRGCMM, C.LUA_ERRERR, C.LUA_ERRFILE:
		return ThreadStatus(code)
	default:
		panic(fmt.Sprintf("lua: unknown status code %d", int(code)))
	}
}

// IsError reports whether the status represents a raised error rather
// than normal completion or suspension.
func (ts ThreadStatus) IsError() bool {
	return ts != StatusOK && ts != StatusYield
}

// String returns a short name for the status.
func (ts ThreadStatus) String() string {
	switch ts {
	case StatusOK:
		return "ok"
	case StatusYield:
		return "yield"
	case StatusRuntimeError:
		return "runtime error"
	case StatusSyntaxError:
		return "syntax error"
	case StatusMemoryError:
		return "memory allocation error"
	case StatusGCError:
		return "error in __gc metamethod"
	case StatusMessageHandlerError:
		return "error while running message handler"
	case StatusFileError:
		return "file error"
	default:
		return fmt.Sprintf("lua.ThreadStatus(%d)", C.int(ts))
	}
}

// luaError is an error raised inside the interpreter and caught by a
// protected call. The error value itself stays on the Lua side; only
// its string rendering crosses into Go.
type luaError struct {
	status ThreadStatus
	msg    string
}

// newError wraps the error object on the top of the stack together
// with the status code of the failed call. The object itself stays on
// the stack for callers that want to inspect it.
func (l *State) newError(code C.int) error {
	e := &luaError{status: decodeStatus(code)}
	e.msg, _ = l.ToString(-1)
	return e
}

func (e *luaError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.status.String()
}

func unwrapError(err error) error {
	var e *luaError
	if errors.As(err, &e) {
		return e
	}
	return err
}

// StatusOf returns the thread status recorded in an error returned by
// this package, or [StatusRuntimeError] for any other error value.
func StatusOf(err error) ThreadStatus {
	var e *luaError
	if errors.As(err, &e) {
		return e.status
	}
	return StatusRuntimeError
}

// IsSyntax reports whether the error indicates a chunk that failed to
// parse. Line editors use this to distinguish an incomplete statement
// from a malformed one.
func IsSyntax(err error) bool {
	return StatusOf(err) == StatusSyntaxError
}

// ArgError describes a rejected function argument. Arg is the
// 1-based position of the offending argument.
type ArgError struct {
	Arg int
	Msg string

	where string
}

// NewArgError returns an error for the argument at the given position
// of the function running in l. When l is executing a chunk, the
// error message names the chunk and line.
func NewArgError(l *State, arg int, msg string) *ArgError {
	return &ArgError{Arg: arg, Msg: msg, where: Where(l, 1)}
}

// NewTypeError returns an [ArgError] reporting that the argument at
// the given index of l has the wrong type.
func NewTypeError(l *State, arg int, tname string) *ArgError {
	typeArg := ""
	if field := Metafield(l, arg, "__name"); field != TypeNil {
		if field == TypeString {
			typeArg, _ = l.ToString(-1)
		}
		l.Pop(1)
	}
	if typeArg == "" {
		if tp := l.Type(arg); tp == TypeLightUserdata {
			typeArg = "light userdata"
		} else {
			typeArg = tp.String()
		}
	}
	return NewArgError(l, arg, fmt.Sprintf("%s expected, got %s", tname, typeArg))
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%sbad argument #%d (%s)", e.where, e.Arg, e.Msg)
}
