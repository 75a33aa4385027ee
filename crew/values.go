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
	"encoding/json"
	"strings"

	"github.com/Comcast/tempo/core"
)

// FromInterface converts decoded JSON or YAML data.  Booleans become
// 1 or 0, and objects and arrays become their JSON text.
func FromInterface(x interface{}) core.Value {
	switch vv := x.(type) {
	case nil:
		return core.NullValue("null")
	case bool:
		return core.Bool(vv)
	case int:
		return core.Number(float64(vv))
	case int64:
		return core.Number(float64(vv))
	case float64:
		return core.Number(vv)
	case string:
		return core.String(vv)
	default:
		js, err := json.Marshal(&x)
		if err != nil {
			return core.ErrorValue(core.User, "can't convert %T: %s", x, err)
		}
		return core.String(string(js))
	}
}

// ToInterface is roughly the inverse of FromInterface.  A string that
// holds a JSON object or array is parsed.  Errors become their
// message.
func ToInterface(v core.Value) interface{} {
	switch {
	case v.IsNumber():
		return v.NumberValue()
	case v.IsString():
		s := v.StringValue()
		if t := strings.TrimSpace(s); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			var x interface{}
			if err := json.Unmarshal([]byte(t), &x); err == nil {
				return x
			}
		}
		return s
	case v.IsError():
		return map[string]interface{}{
			"error": v.Err().Msg,
		}
	default:
		return nil
	}
}
