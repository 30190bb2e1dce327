// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package lua_test

import (
	"fmt"
	"log"

	"github.com/moonbind/lua"
)

func Example() {
	// Create an execution environment
	// and make the standard libraries available.
	state := new(lua.State)
	defer state.Close()
	if err := state.OpenLibraries(); err != nil {
		log.Fatal(err)
	}

	// Load Lua code as a chunk/function and run it.
	const luaSource = `return ("Hello, %s!"):format("World")`
	if err := state.DoString(luaSource, "=(example)"); err != nil {
		log.Fatal(err)
	}
	greeting, _ := state.ToString(-1)
	fmt.Println(greeting)
	// Output:
	// Hello, World!
}

func ExampleState_PushClosure() {
	state := new(lua.State)
	defer state.Close()

	// Expose a Go function to Lua.
	state.PushClosure(0, func(l *lua.State) (int, error) {
		var a, b int64
		if err := lua.UnpackArgs(l, &a, &b); err != nil {
			return 0, err
		}
		l.PushInteger(a + b)
		return 1, nil
	})
	if err := state.SetGlobal("add", 0); err != nil {
		log.Fatal(err)
	}

	if err := state.DoString("return add(40, 2)", "=(example)"); err != nil {
		log.Fatal(err)
	}
	sum, _ := state.ToInteger(-1)
	fmt.Println(sum)
	// Output:
	// 42
}

func ExampleState_AttachExtra() {
	state := new(lua.State)
	defer state.Close()

	type appContext struct {
		greeting string
	}
	state.AttachExtra(&appContext{greeting: "howdy"})

	state.PushClosure(0, func(l *lua.State) (int, error) {
		ctx, ok := lua.ExtraAs[*appContext](l)
		if !ok {
			return 0, fmt.Errorf("no application context attached")
		}
		l.PushString(ctx.greeting)
		return 1, nil
	})
	if err := state.Call(0, 1, 0); err != nil {
		log.Fatal(err)
	}
	greeting, _ := state.ToString(-1)
	fmt.Println(greeting)
	// Output:
	// howdy
}
