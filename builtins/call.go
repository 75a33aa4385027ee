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

package builtins

import (
	"time"

	"github.com/Comcast/tempo/core"

	"github.com/rs/zerolog"
)

// GeoLocation is used for sunrise and friends.
type GeoLocation struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Env is what a builtin sees of the evaluation that called it.
//
// The freeze methods only have an effect in timed contexts.
// Elsewhere GetFrozen returns nil and the others do nothing.
type Env interface {
	Scheduler() core.Scheduler
	Mode() core.EvalMode
	Geo() *GeoLocation

	Logger() *zerolog.Logger
	LogLevelOffset() int
	SetLogLevelOffset(offset int)

	// GetFrozen looks up the frozen result at v.Pos.  On a hit, v
	// is replaced by the frozen value.
	GetFrozen(v *core.Value) *core.FrozenResult

	// NewFreeze creates or updates the frozen result at v.Pos.
	NewFreeze(existing *core.FrozenResult, v core.Value, until time.Time, update bool) *core.FrozenResult

	Unfreeze(pos int) bool

	// UpdateNextEval asks for a re-evaluation no later than t.
	UpdateNextEval(t time.Time)

	// Eval runs code with the args available as arg1, arg2, ...
	// and calls done with the result.
	Eval(code string, args []core.Value, done func(core.Value))
}

// Call is one invocation of a builtin.
type Call struct {
	Env  Env
	Fn   *Descriptor
	Args []core.Value

	// Pos is the source position of the function name.
	Pos int

	done     func(core.Value)
	abort    func()
	finished bool
}

// Invoke checks the arguments and runs the function.  done is called
// exactly once, perhaps before Invoke returns.  The returned Call is
// nil if the function wasn't started.
func Invoke(env Env, fn *Descriptor, args []core.Value, pos int, done func(core.Value)) *Call {
	if fn.Async && env.Mode().Has(core.Synchronously) {
		done(core.FromError(core.Errorf(core.AsyncNotAllowed, pos,
			"builtin function '%s' cannot be used in synchronous evaluation", fn.Name)))
		return nil
	}
	if v, ok := fn.CheckArgs(args); !ok {
		if v.IsNull() {
			v = v.At(pos)
		} else if e := v.Err(); e.Pos < 0 {
			v = core.FromError(core.Errorf(e.Kind, pos, "%s", e.Msg))
		}
		done(v)
		return nil
	}
	c := &Call{
		Env:  env,
		Fn:   fn,
		Args: args,
		Pos:  pos,
		done: done,
	}
	fn.Impl(c)
	return c
}

// NumArgs is the number of arguments given.
func (c *Call) NumArgs() int {
	return len(c.Args)
}

// Has reports whether argument i was given.
func (c *Call) Has(i int) bool {
	return i < len(c.Args)
}

// Arg returns argument i, or null if not given.
func (c *Call) Arg(i int) core.Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return core.NullValue("missing argument")
}

// ArgPos is the source position of argument i (or of the call).
func (c *Call) ArgPos(i int) int {
	if i < len(c.Args) {
		return c.Args[i].Pos
	}
	return c.Pos
}

// Now is the Scheduler's current time.
func (c *Call) Now() time.Time {
	return c.Env.Scheduler().Now()
}

// Finish delivers the result.  Only the first call has an effect.
func (c *Call) Finish(v core.Value) {
	if c.finished {
		return
	}
	c.finished = true
	c.abort = nil
	c.done(v)
}

// Finished reports whether Finish has been called.
func (c *Call) Finished() bool {
	return c.finished
}

// SetAbort registers a function that cancels the pending operation
// of an asynchronous builtin.
func (c *Call) SetAbort(f func()) {
	c.abort = f
}

// Abort cancels the call (if it's still running) and finishes it with
// the given result or, if that's null, an Aborted error.
func (c *Call) Abort(result core.Value) {
	if c.finished {
		return
	}
	if f := c.abort; f != nil {
		c.abort = nil
		f()
	}
	if result.IsNull() {
		result = core.FromError(core.Errorf(core.Aborted, c.Pos, "builtin function '%s' aborted", c.Fn.Name))
	}
	c.Finish(result)
}
