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

// Package script runs scripts: statements with local variables,
// if/else, while, try/catch and return, on top of the expression
// language.
//
// Unlike expressions, scripts may call asynchronous builtins such as
// delay().  A Thread then stops and continues when the builtin
// finishes.  All calls into a Context, including Scheduler
// callbacks, must happen on one goroutine (see sched.Loop).
package script

import (
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/expr"
	"github.com/Comcast/tempo/util"

	"github.com/rs/zerolog"
)

var (
	// DefaultMaxBlockTime is the default for Context.MaxBlockTime.
	DefaultMaxBlockTime = 50 * time.Millisecond

	// SyncRunTime limits the total run time of synchronous
	// executions.
	SyncRunTime = 10 * time.Second
)

type queued struct {
	mode core.EvalMode
	done func(core.Value)
}

// Context is a script with its local variables and running threads.
//
// Name lookup goes from local variables to the Constants of this
// context and of its Main contexts, then to host variables, and
// finally to weekday names.  Functions come from the Registry, and
// then from the Functions of this context and its Main contexts.
type Context struct {
	Name string

	Registry *builtins.Registry

	// Main is the enclosing context.  Its constants and functions
	// are visible here, its variables are not.  A Child starts with
	// Main's host Values.
	Main *Context

	Constants map[string]core.Value
	Values    expr.ValueLookup
	Functions expr.FunctionLookup

	Sched        core.Scheduler
	Location     *builtins.GeoLocation
	OperatorMode core.OperatorMode

	MaxBlockTime time.Duration

	// MaxRunTime limits asynchronous executions.  Zero means no
	// limit.
	MaxRunTime time.Duration

	// OnResult gets the results of TriggerEvaluation.
	OnResult expr.ResultHandler

	Log zerolog.Logger

	code      string
	locals    map[string]core.Value
	threads   []*Thread
	queue     []*queued
	holdQueue bool
	logOffset int
}

// NewContext makes a Context with the given registry and scheduler.
func NewContext(name string, r *builtins.Registry, s core.Scheduler) *Context {
	return &Context{
		Name:         name,
		Registry:     r,
		Sched:        s,
		MaxBlockTime: DefaultMaxBlockTime,
		Log:          util.Logger.With().Str("script", name).Logger(),
		locals:       make(map[string]core.Value),
	}
}

// Child makes a context that has c as its Main.
func (c *Context) Child(name string) *Context {
	x := NewContext(name, c.Registry, c.Sched)
	x.Main = c
	x.Location = c.Location
	x.OperatorMode = c.OperatorMode
	x.Values = c.Values
	x.MaxBlockTime = c.MaxBlockTime
	x.MaxRunTime = c.MaxRunTime
	x.Log = c.Log.With().Str("child", name).Logger()
	return x
}

// sub is the context for eval().
func (c *Context) sub(code string, args []core.Value) *Context {
	s := c.Child(c.Name + "/eval")
	s.Log = c.Log
	s.logOffset = c.logOffset
	s.code = code
	s.locals = expr.ArgLocals(args)
	return s
}

// Code returns the script.
func (c *Context) Code() string {
	return c.code
}

// SetCode sets the script and reports whether it changed.  Running
// threads continue with the code they started with.
func (c *Context) SetCode(code string) bool {
	if code == c.code {
		return false
	}
	c.code = code
	return true
}

// Running reports whether any thread is running.
func (c *Context) Running() bool {
	return len(c.threads) > 0
}

// Threads returns the number of running threads.
func (c *Context) Threads() int {
	return len(c.threads)
}

// Queued returns the number of executions waiting to start.
func (c *Context) Queued() int {
	return len(c.queue)
}

// Variable returns a local variable.
func (c *Context) Variable(name string) (core.Value, bool) {
	v, have := c.locals[name]
	return v, have
}

// SetVariable creates or sets a local variable.
func (c *Context) SetVariable(name string, v core.Value) {
	c.locals[name] = v
}

// ClearVariables removes all local variables.
func (c *Context) ClearVariables() {
	c.locals = make(map[string]core.Value)
}

func (c *Context) declare(name string) {
	if _, have := c.locals[name]; !have {
		c.locals[name] = core.NullValue("uninitialized variable")
	}
}

// assign sets a local variable.  Unless declare is true, the variable
// must exist.
func (c *Context) assign(name string, v core.Value, declare bool) bool {
	if _, have := c.locals[name]; !have && !declare {
		return false
	}
	c.locals[name] = v
	return true
}

func (c *Context) constant(name string) (core.Value, bool) {
	for x := c; x != nil; x = x.Main {
		if v, have := x.Constants[name]; have {
			return v, true
		}
	}
	return core.Value{}, false
}

func (c *Context) lookup(name string) core.Value {
	if v, have := core.Reserved(name); have {
		return v
	}
	if v, have := c.locals[name]; have {
		return v
	}
	if v, have := c.constant(name); have {
		return v
	}
	if c.Values != nil {
		if v, have := c.Values(name); have {
			return v
		}
	}
	if v, have := core.Weekday(name); have {
		return v
	}
	return core.ErrorValue(core.NotFound, "no variable named '%s'", name)
}

func (c *Context) function(name string) *builtins.Descriptor {
	if d := c.Registry.Lookup(name); d != nil {
		return d
	}
	for x := c; x != nil; x = x.Main {
		if x.Functions == nil {
			continue
		}
		if d := x.Functions(name); d != nil {
			return d
		}
	}
	return nil
}

// Execute runs the script.  done, which may be nil, gets the result
// when the execution terminates, which can happen before Execute
// returns.
//
// If the context is already running, the modifiers of mode decide:
// core.Concurrently runs another thread, core.StopRunning aborts the
// running ones first, and core.Queue starts this execution when the
// running ones are done.  Without any of these, Execute fails with a
// Busy error.
func (c *Context) Execute(mode core.EvalMode, done func(core.Value)) error {
	if _, err := c.execute(mode, done); err != nil {
		return err
	}
	return nil
}

func (c *Context) execute(mode core.EvalMode, done func(core.Value)) (*Thread, *core.Error) {
	if mode.Base() == core.Unspecific {
		mode = mode.WithBase(core.Script)
	}
	if len(c.threads) > 0 {
		switch {
		case mode.Has(core.Concurrently):
		case mode.Has(core.StopRunning):
			c.holdQueue = true
			c.abortRunning(core.ErrorValue(core.Aborted, "Aborted by another script starting"))
			c.holdQueue = false
		case mode.Has(core.Queue):
			c.queue = append(c.queue, &queued{
				mode: mode,
				done: done,
			})
			return nil, nil
		default:
			return nil, core.NewError(core.Busy, "Already busy executing script")
		}
	}
	return c.start(mode, done), nil
}

func (c *Context) start(mode core.EvalMode, done func(core.Value)) *Thread {
	if !mode.Has(core.KeepVars) && len(c.threads) == 0 {
		c.ClearVariables()
	}
	if c.code == "" {
		if done != nil {
			done(core.NullValue("no script"))
		}
		return nil
	}
	t := newThread(c, c.code, mode, done)
	if mode.Has(core.Synchronously) && (t.MaxRunTime == 0 || t.MaxRunTime > SyncRunTime) {
		t.MaxRunTime = SyncRunTime
	}
	c.threads = append(c.threads, t)
	t.run()
	return t
}

// EvaluateSynchronously runs the script and returns its result.
// Asynchronous builtins fail with AsyncNotAllowed.
func (c *Context) EvaluateSynchronously(mode core.EvalMode) core.Value {
	var (
		result   core.Value
		finished bool
	)
	mode = (mode | core.Synchronously) &^ core.Queue
	t, err := c.execute(mode, func(v core.Value) {
		result, finished = v, true
	})
	if err != nil {
		return core.FromError(err)
	}
	if !finished && t != nil {
		t.Abort(core.ErrorValue(core.Internal, "synchronous execution did not finish"))
	}
	return result
}

// TriggerEvaluation runs the script and delivers the result to
// OnResult.
func (c *Context) TriggerEvaluation(mode core.EvalMode) error {
	return c.Execute(mode, func(v core.Value) {
		if c.OnResult != nil {
			c.OnResult(v, mode)
		}
	})
}

// SyntaxCheck parses the script without running anything.
func (c *Context) SyntaxCheck() core.Value {
	return c.EvaluateSynchronously(core.SyntaxCheck)
}

// Abort aborts running threads (with core.StopRunning) and queued
// executions (with core.Queue).  The threads terminate with the given
// result, or an Aborted error if that's null.
func (c *Context) Abort(flags core.EvalMode, result core.Value) {
	if flags.Has(core.Queue) {
		q := c.queue
		c.queue = nil
		for _, x := range q {
			if x.done != nil {
				x.done(core.ErrorValue(core.Aborted, "Removed queued execution before it could start"))
			}
		}
	}
	if flags.Has(core.StopRunning) {
		c.abortRunning(result)
	}
}

func (c *Context) abortRunning(result core.Value) {
	ts := make([]*Thread, len(c.threads))
	copy(ts, c.threads)
	for _, t := range ts {
		t.Abort(result)
	}
}

// detach removes a terminated thread.
func (c *Context) detach(t *Thread) {
	for i, x := range c.threads {
		if x == t {
			c.threads = append(c.threads[:i], c.threads[i+1:]...)
			return
		}
	}
}

// startQueued starts the next queued execution once nothing runs.
func (c *Context) startQueued() {
	if c.holdQueue || len(c.threads) > 0 || len(c.queue) == 0 {
		return
	}
	x := c.queue[0]
	c.queue = c.queue[1:]
	c.start(x.mode, x.done)
}
