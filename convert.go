// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"fmt"
	"math"
)

// Integer is the Go representation of a Lua integer.
type Integer = int64

// Number is the Go representation of a Lua float.
type Number = float64

// Scalar is the set of Go types with a direct Lua representation,
// usable as type arguments to [Push] and [Read].
type Scalar interface {
	bool |
		string |
		int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// ErrOutOfRange is reported by [Push] when an unsigned value does not
// fit in a Lua integer.
var ErrOutOfRange = fmt.Errorf("lua: value out of range")

// Push converts v to its Lua representation and pushes it onto the
// stack. Booleans, strings, floats, and signed integers always
// succeed. Unsigned values larger than [math.MaxInt64] do not fit in a
// Lua integer and are rejected with [ErrOutOfRange] rather than pushed
// wrapped around; nothing is pushed on error.
func Push[T Scalar](l *State, v T) error {
	switch v := any(v).(type) {
	case bool:
		l.PushBoolean(v)
	case string:
		l.PushString(v)
	case int:
		l.PushInteger(int64(v))
	case int8:
		l.PushInteger(int64(v))
	case int16:
		l.PushInteger(int64(v))
	case int32:
		l.PushInteger(int64(v))
	case int64:
		l.PushInteger(v)
	case uint:
		if uint64(v) > math.MaxInt64 {
			return fmt.Errorf("%w: %d", ErrOutOfRange, v)
		}
		l.PushInteger(int64(v))
	case uint8:
		l.PushInteger(int64(v))
	case uint16:
		l.PushInteger(int64(v))
	case uint32:
		l.PushInteger(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return fmt.Errorf("%w: %d", ErrOutOfRange, v)
		}
		l.PushInteger(int64(v))
	case float32:
		l.PushNumber(float64(v))
	case float64:
		l.PushNumber(v)
	}
	return nil
}

// Read inspects the value on the top of the stack and converts it to
// T, reporting ok = false when the slot's type does not match. The
// stack is never modified: a mismatch leaves the slot in place, and no
// coercion that would mutate the slot (such as number-to-string) is
// performed.
//
// Strings are read only from string-typed slots. Integer destinations
// require the slot to hold an integer; a float with an integral value
// does not match (use [State.ToInteger] for the lenient conversion).
// Float destinations accept any number. Unsigned destinations
// additionally reject negative values, and destinations narrower than
// 64 bits reject values that do not fit.
func Read[T Scalar](l *State) (v T, ok bool) {
	l.checkElems(1)
	switch any(v).(type) {
	case bool:
		if l.Type(-1) != TypeBoolean {
			return v, false
		}
		return any(l.ToBoolean(-1)).(T), true
	case string:
		if l.Type(-1) != TypeString {
			return v, false
		}
		s, _ := l.ToString(-1)
		return any(s).(T), true
	case int:
		n, ok := l.readStrictInteger(math.MinInt, math.MaxInt)
		return any(int(n)).(T), ok
	case int8:
		n, ok := l.readStrictInteger(math.MinInt8, math.MaxInt8)
		return any(int8(n)).(T), ok
	case int16:
		n, ok := l.readStrictInteger(math.MinInt16, math.MaxInt16)
		return any(int16(n)).(T), ok
	case int32:
		n, ok := l.readStrictInteger(math.MinInt32, math.MaxInt32)
		return any(int32(n)).(T), ok
	case int64:
		n, ok := l.readStrictInteger(math.MinInt64, math.MaxInt64)
		return any(n).(T), ok
	case uint:
		n, ok := l.readStrictInteger(0, math.MaxInt64)
		return any(uint(n)).(T), ok
	case uint8:
		n, ok := l.readStrictInteger(0, math.MaxUint8)
		return any(uint8(n)).(T), ok
	case uint16:
		n, ok := l.readStrictInteger(0, math.MaxUint16)
		return any(uint16(n)).(T), ok
	case uint32:
		n, ok := l.readStrictInteger(0, math.MaxUint32)
		return any(uint32(n)).(T), ok
	case uint64:
		n, ok := l.readStrictInteger(0, math.MaxInt64)
		return any(uint64(n)).(T), ok
	case float32:
		f, ok := l.readStrictNumber()
		return any(float32(f)).(T), ok
	case float64:
		f, ok := l.readStrictNumber()
		return any(f).(T), ok
	}
	return v, false
}

// readStrictInteger reads the top of the stack as an integer in
// [lo, hi] without any coercion.
func (l *State) readStrictInteger(lo, hi int64) (int64, bool) {
	if !l.IsInteger(-1) {
		return 0, false
	}
	n, _ := l.ToInteger(-1)
	if n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// readStrictNumber reads the top of the stack as a float. Integers
// widen to float; strings do not match.
func (l *State) readStrictNumber() (float64, bool) {
	if l.Type(-1) != TypeNumber {
		return 0, false
	}
	return l.ToNumber(-1)
}

// PushOptional pushes *p, or nil when p itself is nil.
func PushOptional[T Scalar](l *State, p *T) error {
	if p == nil {
		l.PushNil()
		return nil
	}
	return Push(l, *p)
}

// ReadOptional reads the top of the stack like [Read], mapping a nil
// slot to a nil pointer. ok is false only for a present value of the
// wrong type.
func ReadOptional[T Scalar](l *State) (p *T, ok bool) {
	l.checkElems(1)
	if l.IsNil(-1) {
		return nil, true
	}
	v, ok := Read[T](l)
	if !ok {
		return nil, false
	}
	return &v, true
}
