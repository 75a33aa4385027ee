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

// Package builtins provides the registry of functions that scripts
// and expressions can call.
//
// A function is described by a Descriptor, which gives its name,
// argument types, and implementation.  A Registry is an immutable
// table of Descriptors built once (see NewRegistry) and then shared by
// all evaluation contexts.
//
// An implementation receives a Call.  Synchronous functions call
// Call.Finish before returning.  Asynchronous functions (Async: true)
// may return first and Finish later from the Scheduler's goroutine.
// They should register an abort hook with Call.SetAbort.
package builtins

import (
	"sort"
	"strings"

	"github.com/Comcast/tempo/core"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// TypeInfo is a mask of acceptable argument (or result) types plus
// attribute flags.
type TypeInfo uint16

const (
	Null TypeInfo = 1 << iota
	Error
	Numeric
	Text
	JSON
	Executable

	// Optional arguments can be omitted.
	Optional

	// Multiple means the argument descriptor also applies to
	// all further arguments.
	Multiple

	// ExactType rejects values that are not of the declared type
	// instead of converting them.
	ExactType

	// UndefRes makes the function return null (without being
	// called) when the argument is null or, with ExactType, of
	// the wrong type.
	UndefRes

	Value   = Numeric | Text | JSON
	Any     = Value | Null | Error
	Scalar  = Numeric | Text
	typeMsk = Null | Error | Numeric | Text | JSON | Executable
)

func (ti TypeInfo) String() string {
	var names []string
	for _, t := range []struct {
		bit  TypeInfo
		name string
	}{
		{Numeric, "numeric"},
		{Text, "text"},
		{JSON, "json"},
		{Executable, "executable"},
		{Error, "error"},
		{Null, "undefined"},
	} {
		if ti&t.bit != 0 {
			names = append(names, t.name)
		}
	}
	if len(names) == 0 {
		return "nothing"
	}
	return strings.Join(names, " or ")
}

// Arg describes an argument.
type Arg struct {
	Name  string
	Types TypeInfo
}

// Descriptor describes a builtin function.
type Descriptor struct {
	Name    string
	Returns TypeInfo
	Args    []Arg
	Async   bool

	// Doc is markdown for the function reference.
	Doc string

	Impl func(*Call)
}

// CheckArgs checks the given arguments against the descriptor.
//
// If the call should not proceed, CheckArgs returns false and the
// value that is the result of the call: a Syntax error for missing,
// surplus, or mistyped arguments, the argument itself if it's an
// error the function doesn't accept, or null for UndefRes
// arguments.
func (d *Descriptor) CheckArgs(args []core.Value) (core.Value, bool) {
	n := len(args)
	if n > len(d.Args) && (len(d.Args) == 0 || d.Args[len(d.Args)-1].Types&Multiple == 0) {
		return core.ErrorValue(core.Syntax, "too many arguments for '%s'", d.Name), false
	}
	for i := n; i < len(d.Args); i++ {
		if d.Args[i].Types&Optional == 0 {
			return core.ErrorValue(core.Syntax, "missing argument %d (%s) in call to '%s'", i+1, d.Args[i].Name, d.Name), false
		}
	}
	for i, a := range args {
		ai := d.Args[len(d.Args)-1]
		if i < len(d.Args) {
			ai = d.Args[i]
		}
		switch {
		case a.IsError():
			if ai.Types&Error == 0 {
				return a, false
			}
		case a.IsNull():
			if ai.Types&Null == 0 && ai.Types&UndefRes != 0 {
				return core.NullValue("undefined argument"), false
			}
		case ai.Types&ExactType != 0:
			if (a.IsNumber() && ai.Types&Numeric == 0) || (a.IsString() && ai.Types&(Text|JSON) == 0) {
				if ai.Types&UndefRes != 0 {
					return core.NullValue("argument type mismatch"), false
				}
				return core.FromError(core.Errorf(core.Syntax, a.Pos,
					"expected %s for argument %d in call to '%s'", ai.Types&typeMsk, i+1, d.Name)), false
			}
		}
	}
	return core.Value{}, true
}

// Registry is an immutable name to Descriptor table.  Names are case
// insensitive.
type Registry struct {
	fns   map[string]*Descriptor
	names []string
}

// NewRegistry makes a Registry from sets of Descriptors.  Later
// definitions override earlier ones with the same name.
func NewRegistry(sets ...[]*Descriptor) *Registry {
	r := &Registry{
		fns: make(map[string]*Descriptor, 128),
	}
	for _, set := range sets {
		for _, d := range set {
			r.fns[strings.ToLower(d.Name)] = d
		}
	}
	r.names = make([]string, 0, len(r.fns))
	for name := range r.fns {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// With returns a new Registry that has this registry's functions
// plus the given ones.
func (r *Registry) With(sets ...[]*Descriptor) *Registry {
	return NewRegistry(append([][]*Descriptor{r.Descriptors()}, sets...)...)
}

// Lookup finds a Descriptor (or returns nil).
func (r *Registry) Lookup(name string) *Descriptor {
	if r == nil {
		return nil
	}
	return r.fns[strings.ToLower(name)]
}

// Names returns the sorted function names.
func (r *Registry) Names() []string {
	return r.names
}

// Descriptors returns all Descriptors sorted by name.
func (r *Registry) Descriptors() []*Descriptor {
	acc := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		acc = append(acc, r.fns[name])
	}
	return acc
}

// Suggest returns the name of a function that is probably what was
// meant by the given unknown name, or "".
func (r *Registry) Suggest(name string) string {
	if r == nil || len(r.names) == 0 {
		return ""
	}
	name = strings.ToLower(name)
	best, dist := "", 3
	for _, candidate := range r.names {
		if d := fuzzy.LevenshteinDistance(name, candidate); d < dist {
			best, dist = candidate, d
		}
	}
	if best != "" {
		return best
	}
	if ranks := fuzzy.RankFindNormalizedFold(name, r.names); 0 < len(ranks) {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	return ""
}

// UnknownFunction makes the NotFound error for calls to a function
// that doesn't exist.
func (r *Registry) UnknownFunction(name string, nargs int) core.Value {
	if s := r.Suggest(name); s != "" {
		return core.ErrorValue(core.NotFound, "Unknown function '%s' with %d arguments (did you mean '%s'?)", name, nargs, s)
	}
	return core.ErrorValue(core.NotFound, "Unknown function '%s' with %d arguments", name, nargs)
}
