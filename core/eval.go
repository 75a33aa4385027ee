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

package core

import (
	"strings"
	"time"
)

// EvalMode is the reason for an evaluation plus modifier flags.
type EvalMode uint16

const (
	Unspecific EvalMode = iota
	Initial
	ExternalTrigger
	Timed
	Script
	SyntaxCheck

	// ModeMask selects the basic mode.
	ModeMask EvalMode = 0xFF
)

// Modifiers.
const (
	// Synchronously forbids suspending.
	Synchronously EvalMode = 0x100 << iota

	// StopRunning aborts running threads before starting.
	StopRunning

	// Queue starts after running threads have terminated.
	Queue

	// Concurrently starts alongside running threads.
	Concurrently

	// KeepVars doesn't clear the local variables.
	KeepVars

	StopAll = StopRunning | Queue
)

// Base returns the mode without modifiers.
func (m EvalMode) Base() EvalMode {
	return m & ModeMask
}

// Has reports whether all of the given modifier bits are set.
func (m EvalMode) Has(flags EvalMode) bool {
	return m&flags == flags
}

// WithBase replaces the basic mode and keeps modifiers.
func (m EvalMode) WithBase(base EvalMode) EvalMode {
	return m&^ModeMask | base&ModeMask
}

func (m EvalMode) String() string {
	var acc string
	switch m.Base() {
	case Initial:
		acc = "initial"
	case ExternalTrigger:
		acc = "externaltrigger"
	case Timed:
		acc = "timed"
	case Script:
		acc = "script"
	case SyntaxCheck:
		acc = "syntaxcheck"
	default:
		acc = "unspecific"
	}
	for _, f := range []struct {
		flag EvalMode
		name string
	}{
		{Synchronously, "synchronously"},
		{StopRunning, "stoprunning"},
		{Queue, "queue"},
		{Concurrently, "concurrently"},
		{KeepVars, "keepvars"},
	} {
		if m.Has(f.flag) {
			acc += "+" + f.name
		}
	}
	return acc
}

// Never is the zero time.  As a freeze deadline it means "expired".
var Never = time.Time{}

// Infinite is a deadline that never passes.
var Infinite = time.Unix(1<<62, 0)

// IsNever is true for the zero time.
func IsNever(t time.Time) bool {
	return t.IsZero()
}

// FrozenResult pins a value until a deadline.
type FrozenResult struct {
	Value Value
	Until time.Time
}

// Frozen is true while the deadline hasn't passed.
func (f *FrozenResult) Frozen(now time.Time) bool {
	if f.Until.Equal(Infinite) {
		return true
	}
	return !IsNever(f.Until) && f.Until.After(now)
}

// Scheduler provides the clock and one-shot timers.
//
// Implementations must call f on the goroutine that runs evaluation.
type Scheduler interface {
	Now() time.Time

	// After calls f once after d.  The returned function cancels
	// the call if it hasn't happened yet.
	After(d time.Duration, f func()) (cancel func())
}

// At arranges for f to be called at t via s.
func At(s Scheduler, t time.Time, f func()) func() {
	return s.After(t.Sub(s.Now()), f)
}

var reserved = map[string]Value{
	"true":      Bool(true),
	"yes":       Bool(true),
	"false":     Bool(false),
	"no":        Bool(false),
	"null":      NullValue(""),
	"undefined": NullValue(""),
}

// Reserved returns the value of a reserved word such as "true" or
// "null".
func Reserved(name string) (Value, bool) {
	v, have := reserved[strings.ToLower(name)]
	return v, have
}

var weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Weekday returns 0 (sunday) through 6 for three-letter weekday
// names.
func Weekday(name string) (Value, bool) {
	for i, d := range weekdays {
		if strings.EqualFold(d, name) {
			return Number(float64(i)), true
		}
	}
	return Value{}, false
}

// Keywords can't be used as names of variables.
var Keywords = []string{"var", "let", "if", "else", "while", "break", "continue", "return", "try", "catch"}

// IsKeyword is true for statement keywords and reserved words.
func IsKeyword(name string) bool {
	if _, have := Reserved(name); have {
		return true
	}
	for _, k := range Keywords {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
