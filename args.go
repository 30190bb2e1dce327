// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import "fmt"

// UnpackArgs binds the trailing len(dests) stack values of l to the
// given destinations, in order: the deepest bound slot fills the first
// destination. Each destination must be a pointer to a [Scalar] type,
// or a pointer to such a pointer for an optional argument (a nil slot
// stores a nil pointer).
//
// If fewer than len(dests) values are on the stack, UnpackArgs returns
// an [ArgError] for the first missing position with a message stating
// how many arguments were expected. If a value does not convert to its
// destination's type under the [Read] rules, UnpackArgs stops at the
// first failure and returns an [ArgError] naming that position and the
// expected type; earlier destinations keep their converted values and
// later ones are untouched.
//
// UnpackArgs never changes the stack depth: bound values stay in
// place, on success and on failure alike.
func UnpackArgs(l *State, dests ...any) error {
	n := len(dests)
	if l.Top() < n {
		return NewArgError(l, l.Top()+1, fmt.Sprintf("%d argument(s) expected", n))
	}
	base := l.Top() - n
	for i, dest := range dests {
		l.PushValue(base + i + 1)
		ok, tname := readInto(l, dest)
		l.Pop(1)
		if !ok {
			return NewTypeError(l, base+i+1, tname)
		}
	}
	return nil
}

// readInto converts the top of the stack into dest, reporting the
// expected type name on mismatch.
func readInto(l *State, dest any) (ok bool, tname string) {
	switch dest := dest.(type) {
	case *bool:
		v, ok := Read[bool](l)
		if ok {
			*dest = v
		}
		return ok, "boolean"
	case *string:
		v, ok := Read[string](l)
		if ok {
			*dest = v
		}
		return ok, "string"
	case *int:
		v, ok := Read[int](l)
		if ok {
			*dest = v
		}
		return ok, "integer"
	case *int64:
		v, ok := Read[int64](l)
		if ok {
			*dest = v
		}
		return ok, "integer"
	case *uint64:
		v, ok := Read[uint64](l)
		if ok {
			*dest = v
		}
		return ok, "integer"
	case *float64:
		v, ok := Read[float64](l)
		if ok {
			*dest = v
		}
		return ok, "number"
	case **bool:
		v, ok := ReadOptional[bool](l)
		if ok {
			*dest = v
		}
		return ok, "boolean or nil"
	case **string:
		v, ok := ReadOptional[string](l)
		if ok {
			*dest = v
		}
		return ok, "string or nil"
	case **int:
		v, ok := ReadOptional[int](l)
		if ok {
			*dest = v
		}
		return ok, "integer or nil"
	case **int64:
		v, ok := ReadOptional[int64](l)
		if ok {
			*dest = v
		}
		return ok, "integer or nil"
	case **uint64:
		v, ok := ReadOptional[uint64](l)
		if ok {
			*dest = v
		}
		return ok, "integer or nil"
	case **float64:
		v, ok := ReadOptional[float64](l)
		if ok {
			*dest = v
		}
		return ok, "number or nil"
	default:
		panic(fmt.Sprintf("lua: unsupported argument destination %T", dest))
	}
}
