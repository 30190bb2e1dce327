// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"math"
	"testing"
)

func TestPushRoundTrip(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	if err := Push(state, int64(-7)); err != nil {
		t.Fatal(err)
	}
	if got, ok := Read[int64](state); got != -7 || !ok {
		t.Errorf("Read[int64] = %d, %t; want -7, true", got, ok)
	}
	state.Pop(1)

	if err := Push(state, "hello"); err != nil {
		t.Fatal(err)
	}
	if got, ok := Read[string](state); got != "hello" || !ok {
		t.Errorf(`Read[string] = %q, %t; want "hello", true`, got, ok)
	}
	state.Pop(1)

	if err := Push(state, true); err != nil {
		t.Fatal(err)
	}
	if got, ok := Read[bool](state); !got || !ok {
		t.Errorf("Read[bool] = %t, %t; want true, true", got, ok)
	}
	state.Pop(1)

	if err := Push(state, 0.5); err != nil {
		t.Fatal(err)
	}
	if got, ok := Read[float64](state); got != 0.5 || !ok {
		t.Errorf("Read[float64] = %g, %t; want 0.5, true", got, ok)
	}
	state.Pop(1)

	if state.Top() != 0 {
		t.Errorf("state.Top() = %d; want 0", state.Top())
	}
}

func TestPushUint64OutOfRange(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	err := Push(state, uint64(math.MaxInt64)+1)
	if err == nil {
		t.Fatal("Push did not return an error")
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("error = %v; want ErrOutOfRange", err)
	}
	if state.Top() != 0 {
		t.Errorf("state.Top() = %d after failed push; want 0", state.Top())
	}

	// The boundary value itself fits.
	if err := Push(state, uint64(math.MaxInt64)); err != nil {
		t.Fatal(err)
	}
	if got, ok := Read[int64](state); got != math.MaxInt64 || !ok {
		t.Errorf("Read[int64] = %d, %t; want %d, true", got, ok, int64(math.MaxInt64))
	}
}

func TestReadMismatchLeavesSlot(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(42)
	if s, ok := Read[string](state); ok {
		t.Errorf("Read[string] of number = %q, true; want false", s)
	}
	// A failed read must not mutate the slot.
	if tp := state.Type(-1); tp != TypeNumber {
		t.Errorf("slot type after failed read = %v; want %v", tp, TypeNumber)
	}
	if !state.IsInteger(-1) {
		t.Error("slot is no longer an integer after failed read")
	}
	if state.Top() != 1 {
		t.Errorf("state.Top() = %d; want 1", state.Top())
	}
}

func TestReadIntegerIsStrict(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushNumber(3.0)
	if n, ok := Read[int64](state); ok {
		t.Errorf("Read[int64] of float = %d, true; want false", n)
	}
	// The lenient accessor still converts.
	if n, ok := state.ToInteger(-1); n != 3 || !ok {
		t.Errorf("state.ToInteger(-1) = %d, %t; want 3, true", n, ok)
	}
	state.Pop(1)

	state.PushString("42")
	if n, ok := Read[int64](state); ok {
		t.Errorf("Read[int64] of string = %d, true; want false", n)
	}
}

func TestReadFloatAcceptsInteger(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(8)
	if got, ok := Read[float64](state); got != 8 || !ok {
		t.Errorf("Read[float64] = %g, %t; want 8, true", got, ok)
	}
}

func TestReadNarrowing(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(300)
	if n, ok := Read[int8](state); ok {
		t.Errorf("Read[int8] of 300 = %d, true; want false", n)
	}
	if n, ok := Read[uint8](state); ok {
		t.Errorf("Read[uint8] of 300 = %d, true; want false", n)
	}
	if n, ok := Read[int16](state); n != 300 || !ok {
		t.Errorf("Read[int16] of 300 = %d, %t; want 300, true", n, ok)
	}
	state.Pop(1)

	state.PushInteger(-1)
	if n, ok := Read[uint64](state); ok {
		t.Errorf("Read[uint64] of -1 = %d, true; want false", n)
	}
}

func TestOptional(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	if err := PushOptional[int64](state, nil); err != nil {
		t.Fatal(err)
	}
	if !state.IsNil(-1) {
		t.Errorf("top of stack is %v; want nil", state.Type(-1))
	}
	if p, ok := ReadOptional[int64](state); p != nil || !ok {
		t.Errorf("ReadOptional[int64] of nil = %v, %t; want nil, true", p, ok)
	}
	state.Pop(1)

	v := int64(9)
	if err := PushOptional(state, &v); err != nil {
		t.Fatal(err)
	}
	if p, ok := ReadOptional[int64](state); p == nil || *p != 9 || !ok {
		t.Errorf("ReadOptional[int64] = %v, %t; want &9, true", p, ok)
	}
	state.Pop(1)

	state.PushString("nope")
	if p, ok := ReadOptional[int64](state); ok {
		t.Errorf("ReadOptional[int64] of string = %v, true; want false", p)
	}
}
