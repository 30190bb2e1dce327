// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

// Package lua provides safe Go bindings for the Lua 5.3 virtual machine.
//
// The package links against the system Lua 5.3 library, discovered
// through pkg-config. Install the development package for your platform
// (lua5.3 on Debian-based systems, lua on Homebrew) before building.
//
// # Stack discipline
//
// Lua exchanges every value with its host through an explicit operand
// stack. A [State] mirrors the stack's height and capacity on the Go
// side so that an out-of-range index is caught with a Go panic before
// it can reach C, where it would be undefined behavior. Methods that
// accept stack indices follow the Lua convention: positive indices
// count from the bottom of the current frame, negative indices count
// from the top, and a small set of reserved negative values
// ([RegistryIndex], [UpvalueIndex]) are pseudo-indices.
//
// # Errors
//
// Failures reported by the interpreter (syntax errors, runtime errors
// raised by scripts, memory errors) are returned as ordinary Go error
// values carrying a [ThreadStatus]; the error object itself is left on
// the stack per the Lua convention. Misuse of this package's own API
// (closing a borrowed State, indexing outside the stack) is a
// programmer error and panics.
//
// # Concurrency
//
// An interpreter and every State aliasing it (sub-threads included)
// must be confined to one goroutine at a time; the wrapper adds no
// locking of its own. The only suspension points are the cooperative
// [State.Yield] and [State.Resume] pair.
package lua
