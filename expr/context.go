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

// Package expr evaluates expressions.
//
// A Context holds the code of one expression plus the hooks that
// connect it to its host: a Registry of builtins, a ValueLookup for
// host variables, and a FunctionLookup for host functions.
// Evaluation is synchronous and recursive.  Builtins that can only
// finish later are rejected with an AsyncNotAllowed error.
//
// A TimedContext also keeps frozen sub-results and asks its Scheduler
// to re-evaluate the expression when one of them expires.
package expr

import (
	"strconv"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/util"

	"github.com/rs/zerolog"
)

// ValueLookup resolves a host variable.  It returns false if there's
// no such variable.
type ValueLookup func(name string) (core.Value, bool)

// FunctionLookup resolves a host function that isn't in the
// Registry.  It returns nil if there's no such function.
type FunctionLookup func(name string) *builtins.Descriptor

// ResultHandler receives the results of evaluations that weren't
// requested synchronously, such as scheduled re-evaluations.
type ResultHandler func(v core.Value, mode core.EvalMode)

// Context is an expression and what's needed to evaluate it.
//
// A Context isn't safe for concurrent use.
type Context struct {
	// Name shows up in logs.
	Name string

	Registry  *builtins.Registry
	Values    ValueLookup
	Functions FunctionLookup

	// Locals are checked before host variables.  eval() puts its
	// arguments here.
	Locals map[string]core.Value

	Sched core.Scheduler

	// Location enables sunrise() and friends.
	Location *builtins.GeoLocation

	OperatorMode core.OperatorMode

	// OnResult gets results of evaluations not requested
	// synchronously.
	OnResult ResultHandler

	Log zerolog.Logger

	code       string
	mode       core.EvalMode
	logOffset  int
	evaluating bool
}

// NewContext makes a Context with the given registry and scheduler.
func NewContext(name string, r *builtins.Registry, s core.Scheduler) *Context {
	return &Context{
		Name:     name,
		Registry: r,
		Sched:    s,
		Log:      util.Logger.With().Str("context", name).Logger(),
	}
}

// Code returns the expression.
func (c *Context) Code() string {
	return c.code
}

// SetCode sets the expression and reports whether it changed.
func (c *Context) SetCode(code string) bool {
	if code == c.code {
		return false
	}
	c.code = code
	return true
}

// Evaluating is true while an evaluation is in progress.
func (c *Context) Evaluating() bool {
	return c.evaluating
}

// Evaluate evaluates the expression.
func (c *Context) Evaluate(mode core.EvalMode) core.Value {
	return c.evaluate(c, mode)
}

// EvaluateSynchronously is Evaluate with the Synchronously flag.
func (c *Context) EvaluateSynchronously(mode core.EvalMode) core.Value {
	return c.Evaluate(mode | core.Synchronously)
}

// TriggerEvaluation evaluates and delivers the result to OnResult.
func (c *Context) TriggerEvaluation(mode core.EvalMode) error {
	if c.evaluating {
		return core.NewError(core.CyclicReference, "cyclic reference in expression")
	}
	v := c.Evaluate(mode)
	if c.OnResult != nil {
		c.OnResult(v, mode)
	}
	return nil
}

// evaluate runs the evaluator with the given Env, which is either c
// itself or a TimedContext that embeds c.
func (c *Context) evaluate(env builtins.Env, mode core.EvalMode) core.Value {
	if c.evaluating {
		return core.ErrorValue(core.CyclicReference, "cyclic reference in expression")
	}
	if c.code == "" {
		return core.NullValue("no expression")
	}
	c.evaluating = true
	c.mode = mode | core.Synchronously
	defer func() {
		c.evaluating = false
	}()

	e := &evaluator{
		ctx: c,
		env: env,
		cur: c.cursor(c.code),
	}
	v := e.evaluate()
	if v.IsError() {
		c.Log.Debug().Str("code", c.code).Int("pos", v.Pos).Msg(v.String())
	} else {
		c.Log.Debug().Str("code", c.code).Msgf("result %s", v)
	}
	return v
}

func (c *Context) cursor(code string) *core.Cursor {
	cur := core.NewCursor(code)
	cur.Mode = c.OperatorMode
	if c.Sched != nil {
		cur.Now = c.Sched.Now
	}
	return cur
}

// Lookup resolves a variable name: reserved words, then Locals, then
// host variables, and finally weekday names such as "mon".
func (c *Context) Lookup(name string) core.Value {
	if v, have := core.Reserved(name); have {
		return v
	}
	if v, have := c.Locals[name]; have {
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

// Function finds a builtin in the Registry or via Functions.
func (c *Context) Function(name string) *builtins.Descriptor {
	if d := c.Registry.Lookup(name); d != nil {
		return d
	}
	if c.Functions != nil {
		return c.Functions(name)
	}
	return nil
}

// sub makes a context for eval() that shares everything but the code
// and the locals.
func (c *Context) sub(code string, args []core.Value) *Context {
	s := &Context{
		Name:         c.Name + "/eval",
		Registry:     c.Registry,
		Values:       c.Values,
		Functions:    c.Functions,
		Sched:        c.Sched,
		Location:     c.Location,
		OperatorMode: c.OperatorMode,
		Log:          c.Log,
		code:         code,
		logOffset:    c.logOffset,
	}
	s.Locals = ArgLocals(args)
	return s
}

// ArgLocals names the values arg1, arg2, ...
func ArgLocals(args []core.Value) map[string]core.Value {
	locals := make(map[string]core.Value, len(args))
	for i, a := range args {
		locals[argName(i)] = a
	}
	return locals
}

func argName(i int) string {
	return "arg" + strconv.Itoa(i+1)
}

// The rest implements builtins.Env.

func (c *Context) Scheduler() core.Scheduler {
	return c.Sched
}

func (c *Context) Mode() core.EvalMode {
	return c.mode
}

func (c *Context) Geo() *builtins.GeoLocation {
	return c.Location
}

func (c *Context) Logger() *zerolog.Logger {
	return &c.Log
}

func (c *Context) LogLevelOffset() int {
	return c.logOffset
}

func (c *Context) SetLogLevelOffset(offset int) {
	c.logOffset = offset
}

func (c *Context) GetFrozen(v *core.Value) *core.FrozenResult {
	return nil
}

func (c *Context) NewFreeze(existing *core.FrozenResult, v core.Value, until time.Time, update bool) *core.FrozenResult {
	return nil
}

func (c *Context) Unfreeze(pos int) bool {
	return false
}

func (c *Context) UpdateNextEval(t time.Time) {
}

// Eval evaluates code in a fresh context with the args as arg1,
// arg2, ...  Errors become null so that a broken eval() doesn't break
// the expression that calls it.
func (c *Context) Eval(code string, args []core.Value, done func(core.Value)) {
	v := c.sub(code, args).Evaluate(c.mode)
	if !v.IsOk() && !v.IsNull() {
		v = core.NullValue("eval() error: " + v.Err().Error() + " -> undefined")
	}
	done(v)
}
