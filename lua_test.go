// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import (
	"errors"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	const source = "return 2 + 2"
	if err := state.Load(strings.NewReader(source), source, "t"); err != nil {
		t.Fatal(err)
	}
	if err := state.Call(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	if !state.IsNumber(-1) {
		t.Fatalf("top of stack is %v; want number", state.Type(-1))
	}
	const want = int64(4)
	if got, ok := state.ToInteger(-1); got != want || !ok {
		t.Errorf("state.ToInteger(-1) = %d, %t; want %d, true", got, ok, want)
	}
}

func TestLoadString(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	const source = "return 2 + 2"
	if err := state.LoadString(source, source, "t"); err != nil {
		t.Fatal(err)
	}
	if err := state.Call(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	const want = int64(4)
	if got, ok := state.ToInteger(-1); got != want || !ok {
		t.Errorf("state.ToInteger(-1) = %d, %t; want %d, true", got, ok, want)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	err := state.LoadString("return return", "=(load)", "t")
	if err == nil {
		t.Fatal("LoadString did not return an error")
	}
	if !IsSyntax(err) {
		t.Errorf("IsSyntax(%v) = false; want true", err)
	}
	if got := StatusOf(err); got != StatusSyntaxError {
		t.Errorf("StatusOf(%v) = %v; want %v", err, got, StatusSyntaxError)
	}
	// The error message stays on the stack.
	if state.Top() != 1 {
		t.Fatalf("state.Top() = %d after failed load; want 1", state.Top())
	}
	if msg, ok := state.ToString(-1); !ok || msg == "" {
		t.Errorf("state.ToString(-1) = %q, %t; want non-empty message, true", msg, ok)
	}
}

func TestPushClosure(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	const want = 42
	state.PushClosure(0, func(l *State) (int, error) {
		l.PushInteger(want)
		return 1, nil
	})
	if err := state.Call(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got, ok := state.ToInteger(-1); got != want || !ok {
		t.Errorf("function returned %d, %t; want %d, true", got, ok, want)
	}
}

func TestPushClosureUpvalues(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(40)
	state.PushInteger(2)
	state.PushClosure(2, func(l *State) (int, error) {
		a, _ := l.ToInteger(UpvalueIndex(1))
		b, _ := l.ToInteger(UpvalueIndex(2))
		l.PushInteger(a + b)
		return 1, nil
	})
	if err := state.Call(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got, ok := state.ToInteger(-1); got != 42 || !ok {
		t.Errorf("closure returned %d, %t; want 42, true", got, ok)
	}
}

func TestCallbackError(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushClosure(0, func(l *State) (int, error) {
		return 0, errors.New("bad mojo")
	})
	err := state.Call(0, 0, 0)
	if err == nil {
		t.Fatal("Call did not return an error")
	}
	if got := err.Error(); !strings.Contains(got, "bad mojo") {
		t.Errorf("error = %q; want to contain %q", got, "bad mojo")
	}
	// Call pushes the error object after removing the function.
	if state.Top() != 1 {
		t.Fatalf("state.Top() = %d after failed call; want 1", state.Top())
	}
	if msg, ok := state.ToString(-1); !ok || !strings.Contains(msg, "bad mojo") {
		t.Errorf("state.ToString(-1) = %q, %t; want to contain %q, true", msg, ok, "bad mojo")
	}
}

func TestCallbackPanic(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushClosure(0, func(l *State) (int, error) {
		panic("contained")
	})
	err := state.Call(0, 0, 0)
	if err == nil {
		t.Fatal("Call did not return an error")
	}
	if got := err.Error(); !strings.Contains(got, "contained") {
		t.Errorf("error = %q; want to contain %q", got, "contained")
	}
	state.Pop(1) // remove the error object

	// The interpreter must remain usable.
	if err := state.DoString("return 1 + 1", "=(test)"); err != nil {
		t.Fatal(err)
	}
	if got, ok := state.ToInteger(-1); got != 2 || !ok {
		t.Errorf("state.ToInteger(-1) = %d, %t; want 2, true", got, ok)
	}
}

func TestMetamethodErrorIsValue(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()
	if err := state.OpenLibraries(); err != nil {
		t.Fatal(err)
	}
	const chunk = `t = setmetatable({}, {__index = function() error("boom") end})`
	if err := state.DoString(chunk, "=(test)"); err != nil {
		t.Fatal(err)
	}

	if _, err := state.Global("t", 0); err != nil {
		t.Fatal(err)
	}
	top := state.Top()
	_, err := state.Field(-1, "missing", 0)
	if err == nil {
		t.Fatal("Field did not return an error")
	}
	if got := err.Error(); !strings.Contains(got, "boom") {
		t.Errorf("error = %q; want to contain %q", got, "boom")
	}
	// The raised value replaces the key on the stack.
	if state.Top() != top+1 {
		t.Fatalf("state.Top() = %d after failed lookup; want %d", state.Top(), top+1)
	}
	if msg, ok := state.ToString(-1); !ok || !strings.Contains(msg, "boom") {
		t.Errorf("error object = %q, %t; want to contain %q, true", msg, ok, "boom")
	}
}

func TestAbsIndex(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(10)
	state.PushInteger(20)
	state.PushInteger(30)

	tests := []struct {
		idx  int
		want int
	}{
		{-1, 3},
		{-3, 1},
		{1, 1},
		{3, 3},
		{RegistryIndex, RegistryIndex},
	}
	for _, test := range tests {
		got := state.AbsIndex(test.idx)
		if got != test.want {
			t.Errorf("state.AbsIndex(%d) = %d; want %d", test.idx, got, test.want)
		}
		// Absolute indices are fixed points.
		if got2 := state.AbsIndex(got); got2 != got {
			t.Errorf("state.AbsIndex(%d) = %d; want %d", got, got2, got)
		}
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()
	state.PushInteger(1)

	defer func() {
		if recover() == nil {
			t.Error("Type with out-of-range index did not panic")
		}
	}()
	state.Type(100)
}

func TestRotate(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	for i := int64(1); i <= 5; i++ {
		state.PushInteger(i)
	}
	state.Rotate(2, 1)
	want := []int64{1, 5, 2, 3, 4}
	for i, w := range want {
		got, ok := state.ToInteger(i + 1)
		if got != w || !ok {
			t.Errorf("stack[%d] = %d, %t; want %d, true", i+1, got, ok, w)
		}
	}
}

func TestTableRoundTrip(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.CreateTable(0, 1)
	state.PushString("world")
	if err := state.SetField(-2, "hello", 0); err != nil {
		t.Fatal(err)
	}
	if tp, err := state.Field(-1, "hello", 0); err != nil {
		t.Fatal(err)
	} else if tp != TypeString {
		t.Errorf("field type = %v; want %v", tp, TypeString)
	}
	if got, ok := state.ToString(-1); got != "world" || !ok {
		t.Errorf(`t.hello = %q, %t; want "world", true`, got, ok)
	}
}

func TestGlobals(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushInteger(42)
	if err := state.SetGlobal("answer", 0); err != nil {
		t.Fatal(err)
	}
	if state.Top() != 0 {
		t.Errorf("state.Top() = %d after SetGlobal; want 0", state.Top())
	}
	if tp, err := state.Global("answer", 0); err != nil {
		t.Fatal(err)
	} else if tp != TypeNumber {
		t.Errorf("global type = %v; want %v", tp, TypeNumber)
	}
	if got, ok := state.ToInteger(-1); got != 42 || !ok {
		t.Errorf("answer = %d, %t; want 42, true", got, ok)
	}
}

func TestRef(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushString("pinned")
	ref := state.Ref(RegistryIndex)
	if ref.IsNil() || ref.IsNoRef() {
		t.Fatalf("Ref returned sentinel %d", ref)
	}
	if state.Top() != 0 {
		t.Errorf("state.Top() = %d after Ref; want 0", state.Top())
	}

	if tp := state.PushRef(RegistryIndex, ref); tp != TypeString {
		t.Errorf("PushRef type = %v; want %v", tp, TypeString)
	}
	if got, ok := state.ToString(-1); got != "pinned" || !ok {
		t.Errorf(`referenced value = %q, %t; want "pinned", true`, got, ok)
	}
	state.Pop(1)

	state.Unref(RegistryIndex, ref)

	state.PushNil()
	if ref := state.Ref(RegistryIndex); !ref.IsNil() {
		t.Errorf("Ref of nil = %d; want RefNil", ref)
	}
}

func TestDoFileMissing(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	err := state.DoFile("testdata/no-such-file.lua")
	if err == nil {
		t.Fatal("DoFile did not return an error")
	}
	if got := StatusOf(err); got != StatusFileError {
		t.Errorf("StatusOf(%v) = %v; want %v", err, got, StatusFileError)
	}
	if state.Top() != 1 {
		t.Errorf("state.Top() = %d after failed DoFile; want 1", state.Top())
	}
}

func TestCloseBorrowed(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()
	co := state.NewThread()

	defer func() {
		if recover() == nil {
			t.Error("Close of borrowed State did not panic")
		}
	}()
	co.Close()
}

func TestCloseTwice(t *testing.T) {
	state := new(State)
	state.PushInteger(1)
	if err := state.Close(); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("second Close did not panic")
		}
	}()
	state.Close()
}

func TestUseAfterClose(t *testing.T) {
	state := new(State)
	state.PushInteger(1)
	if err := state.Close(); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if recover() == nil {
			t.Error("push on closed State did not panic")
		}
	}()
	state.PushInteger(2)
}

func TestOpenLibraries(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()
	if err := state.OpenLibraries(); err != nil {
		t.Fatal(err)
	}
	if err := state.DoString(`return ("%d"):format(7)`, "=(test)"); err != nil {
		t.Fatal(err)
	}
	if got, ok := state.ToString(-1); got != "7" || !ok {
		t.Errorf(`formatted = %q, %t; want "7", true`, got, ok)
	}
}

func TestToStringDoesNotCoerce(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.PushBoolean(true)
	if s, ok := state.ToString(-1); ok {
		t.Errorf("state.ToString(-1) = %q, true; want false", s)
	}
}
