// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua

import "testing"

type testConfig struct {
	name string
}

func TestExtra(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	if got := state.Extra(); got != nil {
		t.Errorf("state.Extra() = %v; want nil", got)
	}

	cfg := &testConfig{name: "first"}
	if prev := state.AttachExtra(cfg); prev != nil {
		t.Errorf("AttachExtra returned %v; want nil", prev)
	}
	if got, ok := ExtraAs[*testConfig](state); got != cfg || !ok {
		t.Errorf("ExtraAs[*testConfig] = %v, %t; want %v, true", got, ok, cfg)
	}
	if _, ok := ExtraAs[string](state); ok {
		t.Error("ExtraAs[string] matched a *testConfig attachment")
	}

	// Attach over an existing value returns the previous one.
	cfg2 := &testConfig{name: "second"}
	if prev := state.AttachExtra(cfg2); prev != cfg {
		t.Errorf("AttachExtra returned %v; want %v", prev, cfg)
	}

	if prev := state.DetachExtra(); prev != cfg2 {
		t.Errorf("DetachExtra returned %v; want %v", prev, cfg2)
	}
	if got := state.Extra(); got != nil {
		t.Errorf("state.Extra() = %v after detach; want nil", got)
	}
}

func TestExtraThreadIsolation(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	// A thread spawned from a bare parent keeps its own slot.
	co := state.NewThread()
	co.AttachExtra("thread only")
	if got := state.Extra(); got != nil {
		t.Errorf("root sees %v; want nil", got)
	}
	state.AttachExtra("root only")
	if got := co.Extra(); got != "thread only" {
		t.Errorf("thread sees %v; want %q", got, "thread only")
	}
}

func TestExtraThreadSharing(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	// A thread spawned while the parent holds a slot shares it.
	state.AttachExtra("shared")
	co := state.NewThread()
	if got := co.Extra(); got != "shared" {
		t.Errorf("thread sees %v; want %q", got, "shared")
	}
	co.AttachExtra("updated")
	if got := state.Extra(); got != "updated" {
		t.Errorf("root sees %v; want %q", got, "updated")
	}
}

func TestExtraThreadNotSharedAfterRead(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	// A read on an empty slot must not make a later spawn share it.
	if got := state.Extra(); got != nil {
		t.Fatalf("state.Extra() = %v; want nil", got)
	}
	co := state.NewThread()
	co.AttachExtra("thread only")
	if got := state.Extra(); got != nil {
		t.Errorf("root sees %v after read-before-spawn; want nil", got)
	}
}

func TestExtraThreadNotSharedAfterDetach(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	// Detaching empties the slot, so a later spawn is isolated again.
	state.AttachExtra("temporary")
	if prev := state.DetachExtra(); prev != "temporary" {
		t.Fatalf("DetachExtra returned %v; want %q", prev, "temporary")
	}
	co := state.NewThread()
	co.AttachExtra("thread only")
	if got := state.Extra(); got != nil {
		t.Errorf("root sees %v after detach-before-spawn; want nil", got)
	}
}

func TestExtraVisibleInCallback(t *testing.T) {
	state := new(State)
	defer func() {
		if err := state.Close(); err != nil {
			t.Error("Close:", err)
		}
	}()

	state.AttachExtra(&testConfig{name: "callback"})
	state.PushClosure(0, func(l *State) (int, error) {
		cfg, ok := ExtraAs[*testConfig](l)
		if !ok {
			l.PushNil()
			return 1, nil
		}
		l.PushString(cfg.name)
		return 1, nil
	})
	if err := state.Call(0, 1, 0); err != nil {
		t.Fatal(err)
	}
	if got, ok := state.ToString(-1); got != "callback" || !ok {
		t.Errorf(`callback saw %q, %t; want "callback", true`, got, ok)
	}
}
