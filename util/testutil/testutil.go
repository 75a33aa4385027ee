/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package testutil has a few helpers for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Dwimjs, when given a string or bytes, tries to parse that data as
// JSON.  When given anything else (or something that isn't JSON),
// just returns what's given.
//
// See https://en.wikipedia.org/wiki/DWIM.
func Dwimjs(x interface{}) interface{} {
	switch vv := x.(type) {
	case []byte:
		return Dwimjs(string(vv))
	case string:
		var v interface{}
		if err := json.Unmarshal([]byte(vv), &v); err != nil {
			return vv
		}
		return v
	default:
		return x
	}
}

// Near reports whether a and b differ by at most tolerance.
func Near(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// Epoch is a fixed local time that tests can start their clocks at:
// Tuesday, 1 June 2021, 10:00.
var Epoch = time.Date(2021, 6, 1, 10, 0, 0, 0, time.Local)

// Quiet is a logger that discards everything.
var Quiet = zerolog.Nop()
