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

package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/sched"

	"github.com/rs/zerolog"
)

// RuleAnalysis is what Analyze found for one rule.
type RuleAnalysis struct {
	Rule    *crew.Rule `json:"-"`
	Name    string     `json:"name"`
	Trigger *Usage     `json:"trigger"`
	Action  *Usage     `json:"action"`
}

// Inputs are the host variables the rule's trigger depends on.
func (ra *RuleAnalysis) Inputs(constants map[string]bool) []string {
	var acc []string
	for _, name := range ra.Trigger.Names {
		if !constants[name] {
			acc = append(acc, name)
		}
	}
	return acc
}

// RuleSetAnalysis summarizes a rule set.
type RuleSetAnalysis struct {
	Rules []*RuleAnalysis `json:"rules"`

	Constants []string `json:"constants,omitempty"`

	// HostVariables are names used by triggers or actions that
	// aren't constants or declared locals.  They should arrive in
	// messages.
	HostVariables []string `json:"hostVariables,omitempty"`

	Topics           []string `json:"topics,omitempty"`
	Globals          []string `json:"globals,omitempty"`
	UnknownFunctions []string `json:"unknownFunctions,omitempty"`

	Errors []string `json:"errors,omitempty"`

	constants map[string]bool
}

// Analyze checks every rule's code and gathers what the rules refer
// to.
func Analyze(rs *crew.RuleSet, r *builtins.Registry) *RuleSetAnalysis {
	a := &RuleSetAnalysis{
		Errors:    make([]string, 0, 8),
		constants: make(map[string]bool, len(rs.Constants)),
	}

	for name := range rs.Constants {
		a.constants[name] = true
	}
	a.Constants = sorted(a.constants)

	// A scratch crew does the syntax checking.
	scratch := crew.NewCrew("analysis", r, sched.NewManual(time.Now()), nil)
	scratch.Log = zerolog.Nop()
	scratch.Main.Log = scratch.Log

	known := make(map[string]bool)
	for _, d := range crew.HostFunctions() {
		known[strings.ToLower(d.Name)] = true
	}

	vars, topics, globals, unknown := make(map[string]bool), make(map[string]bool), make(map[string]bool), make(map[string]bool)
	for _, rule := range rs.Rules {
		if err := scratch.SetRule(rule); err != nil {
			a.Errors = append(a.Errors, err.Error())
		}

		ra := &RuleAnalysis{
			Rule:    rule,
			Name:    rule.Name,
			Trigger: Scan(rule.Trigger),
			Action:  Scan(rule.Action),
		}
		a.Rules = append(a.Rules, ra)

		for _, name := range ra.Trigger.Calls {
			d := r.Lookup(name)
			if d != nil && d.Async {
				a.Errors = append(a.Errors, fmt.Sprintf("rule '%s': trigger calls asynchronous function '%s'", rule.Name, name))
			}
		}

		for _, u := range []*Usage{ra.Trigger, ra.Action} {
			for _, name := range u.Names {
				if !a.constants[name] {
					vars[name] = true
				}
			}
			for _, name := range u.Calls {
				if r.Lookup(name) == nil && !known[name] {
					unknown[name] = true
				}
			}
			for _, topic := range u.Topics {
				topics[topic] = true
			}
			for _, name := range u.Globals {
				globals[name] = true
			}
		}
	}

	a.HostVariables = sorted(vars)
	a.Topics = sorted(topics)
	a.Globals = sorted(globals)
	a.UnknownFunctions = sorted(unknown)

	for _, name := range a.UnknownFunctions {
		msg := fmt.Sprintf("unknown function '%s'", name)
		if s := r.Suggest(name); s != "" {
			msg += fmt.Sprintf(" (did you mean '%s'?)", s)
		}
		a.Errors = append(a.Errors, msg)
	}

	return a
}
