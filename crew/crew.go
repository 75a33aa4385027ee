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

// Package crew hosts a set of rules.
//
// A rule's trigger is a timed expression.  When it becomes true, the
// rule's action script runs.  Incoming messages update the crew's
// host variables and re-evaluate every trigger.  Actions can emit
// messages and read and write persistent global variables.
//
// A Crew isn't safe for concurrent use.  Couplings should deliver
// messages on the Scheduler's goroutine (see sched.Loop).
package crew

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/script"
	"github.com/Comcast/tempo/storage"
	"github.com/Comcast/tempo/util"

	"github.com/rs/zerolog"
)

// Message is something emitted by an action.
type Message struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Conf provides some basic Crew parameters.
type Conf struct {
	Location     *builtins.GeoLocation `json:"location,omitempty" yaml:"location,omitempty"`
	OperatorMode core.OperatorMode     `json:"-" yaml:"-"`
	MaxBlockTime time.Duration         `json:"maxBlockTime,omitempty" yaml:"maxBlockTime,omitempty"`
	MaxRunTime   time.Duration         `json:"maxRunTime,omitempty" yaml:"maxRunTime,omitempty"`
}

// Crew is a set of rules with their host variables.
type Crew struct {
	Id string

	// Main holds the constants and host functions that all actions
	// see.
	Main *script.Context

	// Storage keeps global variables.  The default keeps them in
	// memory.
	Storage storage.Storage

	// OnEmit gets emitted messages.
	OnEmit func(*Message)

	// OnAction gets the result of every action.
	OnAction func(rule string, v core.Value)

	Log zerolog.Logger

	registry  *builtins.Registry
	sched     core.Scheduler
	vars      map[string]core.Value
	machines  map[string]*Machine
	order     []string
	functions map[string]*builtins.Descriptor
	ctx       context.Context
	started   bool
}

// NewCrew makes an empty crew.
func NewCrew(id string, r *builtins.Registry, s core.Scheduler, conf *Conf) *Crew {
	c := &Crew{
		Id:       id,
		Log:      util.Logger.With().Str("crew", id).Logger(),
		registry: r,
		sched:    s,
		vars:     make(map[string]core.Value),
		machines: make(map[string]*Machine),
		ctx:      context.Background(),
		Storage:  storage.NewMemory(),
	}
	c.functions = c.hostFunctions()
	c.Main = script.NewContext(id, r, s)
	c.Main.Log = c.Log
	c.Main.Constants = make(map[string]core.Value)
	c.Main.Values = c.variable
	c.Main.Functions = c.hostFunction
	if conf != nil {
		c.Main.Location = conf.Location
		c.Main.OperatorMode = conf.OperatorMode
		if conf.MaxBlockTime > 0 {
			c.Main.MaxBlockTime = conf.MaxBlockTime
		}
		c.Main.MaxRunTime = conf.MaxRunTime
	}
	return c
}

// Start checks the storage and evaluates every trigger for the first
// time.
func (c *Crew) Start(ctx context.Context) error {
	vs, err := c.Storage.GetCrew(ctx, c.Id)
	if err != nil {
		return err
	}
	c.Log.Info().Int("globals", len(vs)).Int("rules", len(c.order)).Msg("starting")
	c.ctx = ctx
	c.started = true
	for _, name := range c.order {
		c.machines[name].evaluate(core.Initial)
	}
	return nil
}

// Stop aborts running actions and cancels scheduled evaluations.
func (c *Crew) Stop() {
	c.started = false
	for _, name := range c.order {
		c.machines[name].stop()
	}
}

// SetConstants replaces the constants.
func (c *Crew) SetConstants(m map[string]core.Value) {
	c.Main.Constants = m
}

// SetRuleSet adds the rules and constants of the rule set.
func (c *Crew) SetRuleSet(rs *RuleSet) error {
	for name, v := range rs.ConstantValues() {
		c.Main.Constants[name] = v
	}
	for _, r := range rs.Rules {
		if err := c.SetRule(r); err != nil {
			return err
		}
	}
	return nil
}

// SetRule creates or updates a rule.  The code is checked first, and
// a rule with bad code is not installed.
func (c *Crew) SetRule(r *Rule) error {
	if err := r.Check(); err != nil {
		return err
	}
	m, have := c.machines[r.Name]
	if !have {
		m = newMachine(c, r)
	}
	if err := m.update(r); err != nil {
		return fmt.Errorf("rule '%s': %w", r.Name, err)
	}
	if !have {
		c.machines[r.Name] = m
		c.order = append(c.order, r.Name)
	}
	return nil
}

// RemRule removes a rule.  Its running actions are aborted.
func (c *Crew) RemRule(name string) bool {
	m, have := c.machines[name]
	if !have {
		return false
	}
	m.stop()
	delete(c.machines, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Machine returns the rule with the given name.
func (c *Crew) Machine(name string) (*Machine, bool) {
	m, have := c.machines[name]
	return m, have
}

// Rules returns the names of the rules in the order they were added.
func (c *Crew) Rules() []string {
	return append([]string(nil), c.order...)
}

// Variable returns a host variable.
func (c *Crew) Variable(name string) (core.Value, bool) {
	v, have := c.vars[name]
	return v, have
}

func (c *Crew) variable(name string) (core.Value, bool) {
	return c.Variable(name)
}

// triggerValue resolves names in triggers, which don't have a Main.
func (c *Crew) triggerValue(name string) (core.Value, bool) {
	if v, have := c.Main.Constants[name]; have {
		return v, true
	}
	return c.Variable(name)
}

// SetVariable sets a host variable without evaluating triggers.
func (c *Crew) SetVariable(name string, v core.Value) {
	c.vars[name] = v
}

// Variables returns the sorted names of the host variables.
func (c *Crew) Variables() []string {
	acc := make([]string, 0, len(c.vars))
	for name := range c.vars {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// ProcessMsg merges the top-level fields of a JSON object into the
// host variables and then evaluates every trigger.  Other messages
// are rejected.
func (c *Crew) ProcessMsg(ctx context.Context, msg interface{}) error {
	m, is := msg.(map[string]interface{})
	if !is {
		return fmt.Errorf("message %s isn't an object", util.JS(msg))
	}
	c.Log.Debug().Str("msg", util.JS(msg)).Msg("ProcessMsg")
	for name, x := range m {
		c.vars[name] = FromInterface(x)
	}
	for _, name := range c.order {
		if m, have := c.machines[name]; have {
			m.evaluate(core.ExternalTrigger)
		}
	}
	return nil
}

func (c *Crew) emit(topic string, v core.Value) {
	msg := &Message{
		Topic:   topic,
		Payload: ToInterface(v),
	}
	c.Log.Debug().Str("topic", topic).Str("payload", util.JS(msg.Payload)).Msg("emit")
	if c.OnEmit != nil {
		c.OnEmit(msg)
	}
}
