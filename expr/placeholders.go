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

package expr

import (
	"strings"

	"github.com/Comcast/tempo/core"
)

// NullText replaces placeholders whose expressions have no value.
var NullText = "null"

// SubstitutePlaceholders replaces each "@{expression}" in s with the
// value of the expression evaluated in a copy of c.
//
// Expressions without a valid value are replaced by NullText.  The
// returned error is the first one encountered.
func (c *Context) SubstitutePlaceholders(s string) (string, error) {
	var (
		b     strings.Builder
		first error
		sub   *Context
	)
	for {
		p := strings.Index(s, "@{")
		if p < 0 {
			break
		}
		e := strings.IndexByte(s[p+2:], '}')
		if e < 0 {
			if first == nil {
				first = core.NewError(core.Syntax, "unterminated placeholder: %s", s[p:])
			}
			break
		}
		b.WriteString(s[:p])

		if sub == nil {
			sub = c.sub("", nil)
			sub.Locals = c.Locals
		}
		sub.code = s[p+2 : p+2+e]
		v := sub.Evaluate(core.Unspecific | core.Synchronously)
		if v.IsOk() {
			b.WriteString(v.StringValue())
		} else {
			b.WriteString(NullText)
			if first == nil && v.IsError() {
				first = v.Err()
			}
		}
		s = s[p+2+e+1:]
	}
	b.WriteString(s)
	return b.String(), first
}
