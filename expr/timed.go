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

package expr

import (
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
)

// TimedContext is a Context whose builtins can freeze results and
// request re-evaluation.
//
// Frozen results are keyed by the source position of the builtin's
// first argument.  When the earliest deadline of an evaluation
// arrives, the Scheduler calls back and the expression is evaluated
// again in Timed mode, with the result going to OnResult.
type TimedContext struct {
	*Context

	frozen   map[int]*core.FrozenResult
	nextEval time.Time
	cancel   func()
}

// NewTimedContext makes a TimedContext with the given registry and
// scheduler.
func NewTimedContext(name string, r *builtins.Registry, s core.Scheduler) *TimedContext {
	return &TimedContext{
		Context: NewContext(name, r, s),
		frozen:  make(map[int]*core.FrozenResult),
	}
}

// SetCode sets the expression.  A changed expression drops all frozen
// results and the pending re-evaluation.
func (t *TimedContext) SetCode(code string) bool {
	if !t.Context.SetCode(code) {
		return false
	}
	t.ReleaseState()
	return true
}

// ReleaseState drops frozen results and cancels a pending
// re-evaluation.
func (t *TimedContext) ReleaseState() {
	t.frozen = make(map[int]*core.FrozenResult)
	t.ScheduleReEvaluation(core.Never)
}

// NextEval is the time of the pending re-evaluation (or Never).
func (t *TimedContext) NextEval() time.Time {
	return t.nextEval
}

// Frozen returns the frozen result at the given position.
func (t *TimedContext) Frozen(pos int) (*core.FrozenResult, bool) {
	f, have := t.frozen[pos]
	return f, have
}

// Evaluate evaluates the expression now and schedules the next
// evaluation if some builtin asked for one.
func (t *TimedContext) Evaluate(mode core.EvalMode) core.Value {
	return t.EvaluateNow(mode, true)
}

// EvaluateSynchronously is Evaluate with the Synchronously flag.
// With scheduleReEval false, a requested re-evaluation is not armed.
func (t *TimedContext) EvaluateSynchronously(mode core.EvalMode, scheduleReEval bool) core.Value {
	return t.EvaluateNow(mode|core.Synchronously, scheduleReEval)
}

// EvaluateNow evaluates, then drops expired frozen results, and
// finally (if schedule is true) arms the re-evaluation timer for the
// earliest deadline.
func (t *TimedContext) EvaluateNow(mode core.EvalMode, schedule bool) core.Value {
	if t.evaluating {
		return core.ErrorValue(core.CyclicReference, "cyclic reference in expression")
	}
	t.nextEval = core.Never
	v := t.Context.evaluate(t, mode)

	for pos, f := range t.frozen {
		if core.IsNever(f.Until) {
			delete(t.frozen, pos)
			continue
		}
		t.UpdateNextEval(f.Until)
	}

	if schedule {
		t.ScheduleReEvaluation(t.nextEval)
	}
	return v
}

// TriggerEvaluation evaluates and delivers the result to OnResult.
func (t *TimedContext) TriggerEvaluation(mode core.EvalMode) error {
	if t.evaluating {
		return core.NewError(core.CyclicReference, "cyclic reference in expression")
	}
	v := t.Evaluate(mode)
	if t.OnResult != nil {
		t.OnResult(v, mode)
	}
	return nil
}

// ScheduleReEvaluation replaces any pending re-evaluation with one at
// the given time.  Never just cancels.
func (t *TimedContext) ScheduleReEvaluation(at time.Time) {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.nextEval = at
	if core.IsNever(at) || t.Sched == nil {
		return
	}
	t.Log.Debug().Time("at", at).Msg("re-evaluation scheduled")
	t.cancel = core.At(t.Sched, at, func() {
		t.cancel = nil
		if err := t.TriggerEvaluation(core.Timed); err != nil {
			t.Log.Error().Err(err).Msg("timed re-evaluation")
		}
	})
}

// The rest overrides the freeze methods of builtins.Env.

func (t *TimedContext) GetFrozen(v *core.Value) *core.FrozenResult {
	f, have := t.frozen[v.Pos]
	if !have {
		return nil
	}
	*v = f.Value.At(v.Pos)
	if !core.IsNever(f.Until) && !f.Frozen(t.Sched.Now()) {
		// Expired.  Unless renewed during this evaluation, it's
		// removed afterwards.
		f.Until = core.Never
	}
	return f
}

func (t *TimedContext) NewFreeze(existing *core.FrozenResult, v core.Value, until time.Time, update bool) *core.FrozenResult {
	if existing == nil {
		existing = &core.FrozenResult{
			Value: v,
			Until: until,
		}
		t.frozen[v.Pos] = existing
		return existing
	}
	if !existing.Frozen(t.Sched.Now()) || update || core.IsNever(until) {
		existing.Value = v
		existing.Until = until
	}
	return existing
}

func (t *TimedContext) Unfreeze(pos int) bool {
	_, have := t.frozen[pos]
	delete(t.frozen, pos)
	return have
}

func (t *TimedContext) UpdateNextEval(at time.Time) {
	if core.IsNever(at) || at.Equal(core.Infinite) {
		return
	}
	if core.IsNever(t.nextEval) || at.Before(t.nextEval) {
		t.nextEval = at
	}
}
