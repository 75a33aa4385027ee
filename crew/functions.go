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
	"strings"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/storage"
)

// HostFunctions returns the descriptors of the functions a crew adds
// to its registry.  Their implementations need a crew, so these are
// only good for documentation.
func HostFunctions() []*builtins.Descriptor {
	c := &Crew{}
	return c.hostFunctions().descriptors()
}

type functions map[string]*builtins.Descriptor

func (fs functions) descriptors() []*builtins.Descriptor {
	acc := make([]*builtins.Descriptor, 0, len(fs))
	for _, name := range []string{"emit", "global", "setglobal", "delglobal"} {
		acc = append(acc, fs[name])
	}
	return acc
}

func (c *Crew) hostFunction(name string) *builtins.Descriptor {
	return c.functions[strings.ToLower(name)]
}

func (c *Crew) hostFunctions() functions {
	return functions{
		"emit": {
			Name:    "emit",
			Returns: builtins.Any,
			Args: []builtins.Arg{
				{Name: "topic", Types: builtins.Text},
				{Name: "payload", Types: builtins.Any | builtins.Optional},
			},
			Doc: "Emits a message with the given topic and payload.  A payload that is JSON text is sent as JSON.",
			Impl: func(call *builtins.Call) {
				c.emit(call.Arg(0).StringValue(), call.Arg(1))
				call.Finish(call.Arg(1))
			},
		},
		"global": {
			Name:    "global",
			Returns: builtins.Value | builtins.Null | builtins.Error,
			Args:    []builtins.Arg{{Name: "name", Types: builtins.Text}},
			Doc:     "Returns the persistent global variable `name`.",
			Impl: func(call *builtins.Call) {
				name := call.Arg(0).StringValue()
				v, err := c.Storage.Get(c.ctx, c.Id, name)
				switch {
				case err == storage.NotFound:
					v = core.NullValue("no global variable '" + name + "'")
				case err != nil:
					v = core.FromError(core.Errorf(core.User, call.Pos, "global: %s", err))
				}
				call.Finish(v)
			},
		},
		"setglobal": {
			Name:    "setglobal",
			Returns: builtins.Value | builtins.Null | builtins.Error,
			Args: []builtins.Arg{
				{Name: "name", Types: builtins.Text},
				{Name: "value", Types: builtins.Value | builtins.Null},
			},
			Doc: "Sets the persistent global variable `name` and returns `value`.",
			Impl: func(call *builtins.Call) {
				c.writeGlobal(call, &storage.Variable{
					Name:  call.Arg(0).StringValue(),
					Value: call.Arg(1),
				})
			},
		},
		"delglobal": {
			Name:    "delglobal",
			Returns: builtins.Null | builtins.Error,
			Args:    []builtins.Arg{{Name: "name", Types: builtins.Text}},
			Doc:     "Removes the persistent global variable `name`.",
			Impl: func(call *builtins.Call) {
				c.writeGlobal(call, &storage.Variable{
					Name:    call.Arg(0).StringValue(),
					Deleted: true,
				})
			},
		},
	}
}

func (c *Crew) writeGlobal(call *builtins.Call, v *storage.Variable) {
	if err := c.Storage.WriteState(c.ctx, c.Id, []*storage.Variable{v}); err != nil {
		call.Finish(core.FromError(core.Errorf(core.User, call.Pos, "%s: %s", call.Fn.Name, err)))
		return
	}
	if v.Deleted {
		call.Finish(core.NullValue("deleted"))
		return
	}
	call.Finish(v.Value)
}
