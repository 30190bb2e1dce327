// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

// moonlua is a standalone Lua interpreter.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"zombiezen.com/go/log"

	"github.com/moonbind/lua"
)

type interpreterOptions struct {
	exprArgs    []exprArg
	interactive bool
	showVersion bool
	noEnv       bool
	scriptArgs  []string
}

func main() {
	rootCommand := &cobra.Command{
		Use:                   "moonlua [options] [script [args]]",
		Short:                 "standalone Lua interpreter",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ArbitraryArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(interpreterOptions)
	rootCommand.Flags().VarP(exprArgFlag{'e', &opts.exprArgs}, "execute", "e", "execute string `stat`")
	rootCommand.Flags().VarP(exprArgFlag{'l', &opts.exprArgs}, "library", "l", "for `g=mod`, require library 'mod' into global 'g'")
	rootCommand.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "enter interactive mode after executing script")
	rootCommand.Flags().BoolVarP(&opts.showVersion, "version", "v", false, "show version information")
	rootCommand.Flags().BoolVarP(&opts.noEnv, "no-env", "E", false, "ignore environment variables")
	showDebug := rootCommand.Flags().Bool("debug", false, "show debugging output")
	rootCommand.Flags().SetInterspersed(false)

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		return nil
	}
	rootCommand.RunE = func(cmd *cobra.Command, args []string) error {
		opts.scriptArgs = args
		return run(cmd.Context(), opts)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *interpreterOptions) error {
	if opts.showVersion || opts.interactive {
		fmt.Println(lua.Copyright)
	}

	l := new(lua.State)
	defer l.Close()
	if opts.noEnv {
		l.PushBoolean(true)
		l.RawSetField(lua.RegistryIndex, "LUA_NOENV")
	}
	if err := l.OpenLibraries(); err != nil {
		return err
	}

	script := 0
	if len(opts.scriptArgs) > 0 {
		script = len(os.Args) - len(opts.scriptArgs)
	}
	if err := createArgTable(l, os.Args, script); err != nil {
		return err
	}

	if !opts.noEnv {
		if err := handleInit(l); err != nil {
			return err
		}
	}
	for _, arg := range opts.exprArgs {
		switch arg.c {
		case 'e':
			if err := doString(l, arg.val, "=(command line)"); err != nil {
				log.Errorf(ctx, "%v", err)
			}
		case 'l':
			if err := doLibrary(l, arg.val); err != nil {
				log.Errorf(ctx, "%v", err)
			}
		default:
			panic("unreachable")
		}
	}
	if len(opts.scriptArgs) > 0 {
		if err := handleScript(l, opts.scriptArgs); err != nil {
			return err
		}
	}
	if opts.interactive {
		return doREPL(l)
	}
	hasE := false
	for _, arg := range opts.exprArgs {
		if arg.c == 'e' {
			hasE = true
			break
		}
	}
	if len(opts.scriptArgs) == 0 && !opts.showVersion && !hasE {
		// No active option.
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Println(lua.Copyright)
			return doREPL(l)
		}
		return handleScript(l, []string{"-"})
	}
	return nil
}

func handleInit(l *lua.State) error {
	name := fmt.Sprintf("=LUA_INIT_%s_%s", lua.VersionMajor, lua.VersionMinor)
	init, ok := os.LookupEnv(name[1:])
	if !ok {
		name = "=LUA_INIT"
		init, ok = os.LookupEnv(name[1:])
		if !ok {
			return nil
		}
	}
	if filename, ok := strings.CutPrefix(init, "@"); ok {
		return doFile(l, filename)
	}
	return doString(l, init, name)
}

func handleScript(l *lua.State, args []string) error {
	var r io.ReadCloser
	name := args[0]
	if name == "-" {
		r = io.NopCloser(os.Stdin)
		name = "=stdin"
	} else {
		var err error
		r, err = os.Open(name)
		if err != nil {
			return err
		}
		name = "@" + name
	}
	err := l.Load(r, name, "bt")
	r.Close()
	if err != nil {
		return err
	}

	nArgs, err := pushArgs(l)
	if err != nil {
		return err
	}
	return doCall(l, nArgs, 0)
}

func pushArgs(l *lua.State) (int, error) {
	if tp, err := l.Global("arg", 0); err != nil {
		return 0, err
	} else if tp != lua.TypeTable {
		return 0, fmt.Errorf("'arg' (%v) is not a table", tp)
	}
	argIndex := l.AbsIndex(-1)
	n, err := l.Len(argIndex, 0)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt || !l.CheckStack(int(n)+3) {
		return 0, fmt.Errorf("too many arguments (%d) to script", n)
	}
	for i := int64(1); i <= n; i++ {
		l.RawIndex(argIndex, i)
	}
	l.Remove(argIndex)
	return int(n), nil
}

func doLibrary(l *lua.State, globname string) error {
	globname, modname, ok := strings.Cut(globname, "=")
	if !ok {
		modname = globname
	}
	if _, err := l.Global("require", 0); err != nil {
		return err
	}
	l.PushString(modname)
	if err := doCall(l, 1, 1); err != nil {
		return err
	}
	return l.SetGlobal(globname, 0)
}

func doString(l *lua.State, s string, chunkName string) error {
	if err := l.LoadString(s, chunkName, "t"); err != nil {
		l.Pop(1)
		return err
	}
	return doCall(l, 0, 0)
}

func doFile(l *lua.State, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	err = l.Load(f, "@"+name, "bt")
	f.Close()
	if err != nil {
		l.Pop(1)
		return err
	}
	return doCall(l, 0, 0)
}

// doCall runs the function on top of the stack in protected mode with
// a message handler inserted below it.
func doCall(l *lua.State, nArgs, nResults int) error {
	base := l.Top() - nArgs
	l.PushClosure(0, msgHandler)
	l.Insert(base)
	err := l.Call(nArgs, nResults, base)
	if err != nil {
		l.Pop(1)
	}
	l.Remove(base)
	return err
}

func msgHandler(l *lua.State) (int, error) {
	msg, ok := l.ToString(1)
	if !ok {
		if called, err := lua.CallMeta(l, 1, "__tostring"); called && err == nil && l.IsString(-1) {
			// Already pushed onto stack and it's a string.
			return 1, nil
		}
		msg = fmt.Sprintf("(error object is a %v value)", l.Type(1))
	}
	l.PushString(msg)
	return 1, nil
}

func createArgTable(l *lua.State, args []string, script int) error {
	nArg := len(args) - (script + 1)
	l.CreateTable(nArg, script+1)
	for i, arg := range args {
		l.PushString(arg)
		l.RawSetIndex(-2, int64(i-script))
	}
	if err := l.SetGlobal("arg", 0); err != nil {
		return fmt.Errorf("create arg table: %v", err)
	}
	return nil
}

type exprArg struct {
	c   byte
	val string
}

// exprArgFlag appends to a shared slice so that -e and -l options run
// in the order they were given on the command line.
type exprArgFlag struct {
	c     byte
	slice *[]exprArg
}

func (f exprArgFlag) String() string {
	if f.slice == nil {
		return ""
	}
	first := true
	sb := new(strings.Builder)
	for _, arg := range *f.slice {
		if arg.c != f.c {
			continue
		}
		if first {
			first = false
		} else {
			sb.WriteString(",")
		}
		sb.WriteString(arg.val)
	}
	return sb.String()
}

func (f exprArgFlag) Set(s string) error {
	*f.slice = append(*f.slice, exprArg{
		c:   f.c,
		val: s,
	})
	return nil
}

func (f exprArgFlag) Type() string {
	return "string"
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "moonlua: ", log.StdFlags, nil),
		})
	})
}
