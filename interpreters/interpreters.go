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

// Package interpreters assembles builtin registries from named sets
// of functions.
package interpreters

import (
	"fmt"
	"sort"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/interpreters/goja"
)

// Sets returns the named builtin sets.  The "js" set uses the given
// interpreter, or a new one if that's nil.
func Sets(js *goja.Interpreter) map[string][]*builtins.Descriptor {
	if js == nil {
		js = goja.NewInterpreter()
	}
	return map[string][]*builtins.Descriptor{
		"standard": builtins.Standard(),
		"calendar": builtins.Calendar(),
		"timed":    builtins.Timed(),
		"async":    builtins.Async(),
		"js":       js.Builtins(),
	}
}

// SetNames returns the sorted names of the sets.
func SetNames() []string {
	var acc []string
	for name := range Sets(nil) {
		acc = append(acc, name)
	}
	sort.Strings(acc)
	return acc
}

// Registry makes a registry from the named sets.  No names means all
// of them.
func Registry(js *goja.Interpreter, names ...string) (*builtins.Registry, error) {
	sets := Sets(js)
	if len(names) == 0 {
		names = SetNames()
	}
	acc := make([][]*builtins.Descriptor, 0, len(names))
	for _, name := range names {
		set, have := sets[name]
		if !have {
			return nil, fmt.Errorf("unknown builtin set '%s'", name)
		}
		acc = append(acc, set)
	}
	return builtins.NewRegistry(acc...), nil
}

// Standard returns a registry with every builtin.
func Standard() *builtins.Registry {
	r, err := Registry(nil)
	if err != nil {
		panic(err)
	}
	return r
}
