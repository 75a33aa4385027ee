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
	"io/ioutil"

	"github.com/Comcast/tempo/core"

	"github.com/jsccast/yaml"
)

// Rule modes.
const (
	// Edge runs the action when the trigger becomes true.
	Edge = "edge"

	// Always runs the action whenever the trigger evaluates to
	// true.
	Always = "always"
)

// Concurrency settings say what happens when a rule fires while its
// action is still running.
var Concurrency = map[string]core.EvalMode{
	"stop":       core.StopRunning,
	"queue":      core.Queue,
	"concurrent": core.Concurrently,
	"single":     0,
}

// Rule is a trigger expression and an action script.
type Rule struct {
	Name    string `json:"name" yaml:"name"`
	Trigger string `json:"trigger" yaml:"trigger"`
	Action  string `json:"action" yaml:"action"`

	// Mode is Edge (the default) or Always.
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Concurrency is a key of Concurrency.  The default is
	// "stop".
	Concurrency string `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// Check validates the rule's fields (but not its code).
func (r *Rule) Check() error {
	if r.Name == "" {
		return fmt.Errorf("rule without a name")
	}
	if r.Trigger == "" {
		return fmt.Errorf("rule '%s' has no trigger", r.Name)
	}
	switch r.Mode {
	case "", Edge, Always:
	default:
		return fmt.Errorf("rule '%s' has unknown mode '%s'", r.Name, r.Mode)
	}
	if _, have := Concurrency[r.Concurrency]; !have && r.Concurrency != "" {
		return fmt.Errorf("rule '%s' has unknown concurrency '%s'", r.Name, r.Concurrency)
	}
	return nil
}

// ExecMode is the mode for running the rule's action.
func (r *Rule) ExecMode() core.EvalMode {
	mode := core.Script
	if r.Concurrency == "" {
		return mode | core.StopRunning
	}
	return mode | Concurrency[r.Concurrency]
}

// RuleSet is the content of a rules file.
type RuleSet struct {
	// Constants are visible to all triggers and actions.
	Constants map[string]interface{} `json:"constants,omitempty" yaml:"constants,omitempty"`

	Rules []*Rule `json:"rules" yaml:"rules"`
}

// ParseRules parses YAML (or JSON).
func ParseRules(bs []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(bs, &rs); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if err := r.Check(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate rule '%s'", r.Name)
		}
		seen[r.Name] = true
	}
	return &rs, nil
}

// ReadRules reads and parses a rules file.
func ReadRules(filename string) (*RuleSet, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	rs, err := ParseRules(bs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return rs, nil
}

// ConstantValues converts the constants.
func (rs *RuleSet) ConstantValues() map[string]core.Value {
	acc := make(map[string]core.Value, len(rs.Constants))
	for name, x := range rs.Constants {
		acc[name] = FromInterface(x)
	}
	return acc
}
