// Copyright 2025 The moonbind Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moonbind/lua"
)

func doREPL(l *lua.State) error {
	s := bufio.NewScanner(os.Stdin)
	for {
		if err := loadLine(l, s); errors.As(err, new(inputError)) {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		} else if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := doCall(l, 0, lua.MultipleReturns); err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		printResults(l, "")
	}
}

func printResults(l *lua.State, errPrefix string) {
	n := l.Top()
	if n == 0 {
		return
	}
	if !l.CheckStack(20) {
		fmt.Fprintf(os.Stderr, "%stoo many results (%d) to print\n", errPrefix, n)
		return
	}
	if _, err := l.Global("print", 0); err != nil {
		fmt.Fprintf(os.Stderr, "%s%v\n", errPrefix, err)
		return
	}
	l.Insert(1)
	if err := l.Call(n, 0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "%serror calling 'print' (%v)\n", errPrefix, err)
		return
	}
}

// loadLine reads a line and tries to compile it as an expression or
// statement, reading continuation lines while the chunk is incomplete.
func loadLine(l *lua.State, s *bufio.Scanner) error {
	l.SetTop(0)
	line, err := readLine(l, s, true)
	if err != nil {
		return err
	}
	if err := addReturn(l, line); err == nil {
		return nil
	}
	for {
		err := l.LoadString(line, "=stdin", "t")
		if err == nil {
			return nil
		}
		l.Pop(1) // pop error message
		if !isIncomplete(err) {
			return err
		}
		newLine, err := readLine(l, s, false)
		if err != nil {
			return err
		}
		line += "\n" + newLine
	}
}

func readLine(l *lua.State, s *bufio.Scanner, firstLine bool) (string, error) {
	p, err := prompt(l, firstLine)
	if err != nil {
		return "", inputError{fmt.Errorf("read line: %v", err)}
	}
	os.Stdout.WriteString(p)
	if !s.Scan() {
		err := s.Err()
		if err == nil {
			err = io.EOF
		}
		return "", inputError{fmt.Errorf("read line: %w", err)}
	}
	line := s.Text()
	if firstLine && strings.HasPrefix(line, "=") {
		line = "return " + line[1:]
	}
	return line, nil
}

type inputError struct {
	err error
}

func (e inputError) Error() string {
	return e.err.Error()
}

func (e inputError) Unwrap() error {
	return e.err
}

func prompt(l *lua.State, firstLine bool) (string, error) {
	if firstLine {
		if tp, err := l.Global("_PROMPT", 0); err != nil {
			l.Pop(1)
			return "", err
		} else if tp == lua.TypeNil {
			l.Pop(1)
			return "> ", nil
		}
	} else {
		if tp, err := l.Global("_PROMPT2", 0); err != nil {
			l.Pop(1)
			return "", err
		} else if tp == lua.TypeNil {
			l.Pop(1)
			return ">> ", nil
		}
	}
	p, err := lua.ToString(l, -1)
	l.Pop(1)
	if err != nil {
		return "", fmt.Errorf("custom prompt: %v", err)
	}
	return p, nil
}

func addReturn(l *lua.State, line string) error {
	retLine := "return " + line + ";"
	if err := l.LoadString(retLine, "=stdin", "t"); err != nil {
		l.Pop(1)
		return err
	}
	return nil
}

func isIncomplete(err error) bool {
	if err == nil {
		return false
	}
	return lua.IsSyntax(err) && strings.Contains(err.Error(), "<eof>")
}
