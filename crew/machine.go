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

package crew

import (
	"fmt"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/expr"
	"github.com/Comcast/tempo/script"
)

// Machine is a rule with its trigger and action contexts.
type Machine struct {
	Rule    *Rule
	Trigger *expr.TimedContext
	Action  *script.Context

	// Fired counts how often the action was started.
	Fired int

	// LastResult is the result of the latest action.
	LastResult core.Value

	crew *Crew
	last bool
}

func newMachine(c *Crew, r *Rule) *Machine {
	t := expr.NewTimedContext(r.Name, c.registry, c.sched)
	t.Log = c.Log.With().Str("trigger", r.Name).Logger()
	t.Location = c.Main.Location
	t.OperatorMode = c.Main.OperatorMode
	t.Values = c.triggerValue
	t.Functions = c.hostFunction

	m := &Machine{
		Rule:    r,
		Trigger: t,
		Action:  c.Main.Child(r.Name),
		crew:    c,
	}
	t.OnResult = m.triggered
	return m
}

// check parses the rule's code without running it.
func (m *Machine) check(r *Rule) error {
	c := m.crew
	t := expr.NewContext(r.Name, c.registry, c.sched)
	t.Log = m.Trigger.Log
	t.OperatorMode = c.Main.OperatorMode
	t.SetCode(r.Trigger)
	if v := t.Evaluate(core.SyntaxCheck); v.IsError() {
		return fmt.Errorf("trigger: %w", v.Err())
	}

	a := c.Main.Child(r.Name)
	a.Log = m.Action.Log
	a.SetCode(r.Action)
	if v := a.SyntaxCheck(); v.IsError() {
		return fmt.Errorf("action: %w", v.Err())
	}
	return nil
}

func (m *Machine) update(r *Rule) error {
	if err := m.check(r); err != nil {
		return err
	}
	m.Rule = r
	if m.Trigger.SetCode(r.Trigger) {
		m.last = false
	}
	m.Action.SetCode(r.Action)
	if m.crew.started {
		m.evaluate(core.Initial)
	}
	return nil
}

func (m *Machine) evaluate(mode core.EvalMode) {
	if err := m.Trigger.TriggerEvaluation(mode); err != nil {
		m.Trigger.Log.Error().Err(err).Msg("evaluation")
	}
}

// triggered gets every trigger result, including those of scheduled
// re-evaluations.
func (m *Machine) triggered(v core.Value, mode core.EvalMode) {
	if v.IsError() && v.ErrorKind() != core.NotFound {
		m.Trigger.Log.Warn().Str("mode", mode.String()).Msgf("trigger: %s", v)
	}
	on := v.IsOk() && v.BoolValue()
	fire := on && (!m.last || m.Rule.Mode == Always)
	m.last = on
	if !fire {
		return
	}
	m.Fired++
	m.Trigger.Log.Debug().Str("mode", mode.String()).Msg("firing")
	if err := m.Action.Execute(m.Rule.ExecMode(), m.done); err != nil {
		m.Action.Log.Warn().Err(err).Msg("not started")
	}
}

func (m *Machine) done(v core.Value) {
	m.LastResult = v
	if v.IsError() {
		m.Action.Log.Warn().Msgf("action: %s", v)
	} else {
		m.Action.Log.Debug().Msgf("action: %s", v)
	}
	if m.crew.OnAction != nil {
		m.crew.OnAction(m.Rule.Name, v)
	}
}

func (m *Machine) stop() {
	m.Trigger.ReleaseState()
	m.Action.Abort(core.StopAll, core.Value{})
}
