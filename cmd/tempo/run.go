/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/expr"
	"github.com/Comcast/tempo/script"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util"

	"github.com/peterh/liner"
)

const historyFile = ".tempo_history"

// engine is a script context running on its own Loop.
type engine struct {
	cfg    *Config
	loop   *sched.Loop
	script *script.Context
}

func newEngine(ctx context.Context, cfg *Config) (*engine, error) {
	r, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	l := sched.NewLoop(cfg.MaxTimers, util.Logger)
	go func() {
		if err := l.Run(ctx); err != nil {
			util.Logger.Error().Err(err).Msg("loop")
		}
	}()
	if !l.Wait(5 * time.Second) {
		return nil, errors.New("loop didn't start")
	}

	s := script.NewContext("tempo", r, l)
	s.Location = cfg.Location
	s.OperatorMode = cfg.operatorMode
	s.MaxBlockTime = cfg.MaxBlockTime
	s.MaxRunTime = cfg.MaxRunTime

	consts := make(map[string]core.Value)
	rss, err := cfg.ReadRules()
	if err != nil {
		return nil, err
	}
	for _, rs := range rss {
		for name, v := range rs.ConstantValues() {
			consts[name] = v
		}
	}
	s.Constants = consts

	return &engine{
		cfg:    cfg,
		loop:   l,
		script: s,
	}, nil
}

// expression evaluates an expression on the Loop.
func (e *engine) expression(ctx context.Context, code string) (core.Value, error) {
	var v core.Value
	err := e.loop.Do(ctx, func() {
		c := expr.NewContext("tempo", e.script.Registry, e.loop)
		c.Location = e.script.Location
		c.OperatorMode = e.script.OperatorMode
		c.Values = func(name string) (core.Value, bool) {
			v, have := e.script.Constants[name]
			return v, have
		}
		c.SetCode(code)
		v = c.EvaluateSynchronously(core.Unspecific)
	})
	return v, err
}

// run executes a script on the Loop and waits for its result.
func (e *engine) run(ctx context.Context, code string, mode core.EvalMode) (core.Value, error) {
	result := make(chan core.Value, 1)
	var err error
	if doErr := e.loop.Do(ctx, func() {
		e.script.SetCode(code)
		err = e.script.Execute(mode, func(v core.Value) {
			result <- v
		})
	}); doErr != nil {
		return core.Value{}, doErr
	}
	if err != nil {
		return core.Value{}, err
	}

	select {
	case <-ctx.Done():
		return core.Value{}, ctx.Err()
	case v := <-result:
		return v, nil
	}
}

func display(v core.Value) string {
	if v.IsString() {
		return v.StringValue()
	}
	return v.String()
}

// runOnce evaluates an expression or runs a script and prints the
// result.  An error result is an error.
func runOnce(ctx context.Context, cfg *Config, code string, isExpression bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	var v core.Value
	if isExpression {
		v, err = e.expression(ctx, code)
	} else {
		v, err = e.run(ctx, code, core.Script)
	}
	if err != nil {
		return err
	}
	if v.IsError() {
		return v.Err()
	}
	fmt.Println(display(v))
	return nil
}

// runREPL reads scripts from the terminal.  Variables persist between
// lines.
func runREPL(ctx context.Context, cfg *Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	names := e.script.Registry.Names()
	ln.SetCompleter(func(line string) []string {
		i := strings.LastIndexAny(line, " \t(+-*/,;=<>!&|") + 1
		var acc []string
		for _, name := range names {
			if strings.HasPrefix(name, strings.ToLower(line[i:])) {
				acc = append(acc, line[:i]+name+"(")
			}
		}
		return acc
	})

	fmt.Println("tempo (:quit to exit, :funcs to list builtins)")
	for {
		line, err := ln.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ":quit":
			return nil
		case ":funcs":
			fmt.Println(strings.Join(names, " "))
			continue
		}
		ln.AppendHistory(line)

		v, err := e.run(ctx, line, core.Script|core.KeepVars)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		fmt.Println(display(v))
	}
}
