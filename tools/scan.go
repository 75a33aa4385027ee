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

// Package tools has utilities for looking at rule sets and builtin
// registries: a static analysis, Graphviz and Mermaid renderings, and
// an HTML function reference.
package tools

import (
	"sort"
	"strings"

	"github.com/Comcast/tempo/core"
)

// Usage is what a piece of code refers to.  Names are found
// lexically, so the results are approximate.
type Usage struct {
	// Names are referenced names that aren't keywords, weekdays,
	// or declared by the code itself.
	Names []string `json:"names,omitempty"`

	// Calls are the (lower-case) names of called functions.
	Calls []string `json:"calls,omitempty"`

	// Declared are names introduced by 'var' or 'catch as'.
	Declared []string `json:"declared,omitempty"`

	// Topics are literal first arguments of emit().
	Topics []string `json:"topics,omitempty"`

	// Globals are literal first arguments of global(),
	// setglobal(), and delglobal().
	Globals []string `json:"globals,omitempty"`
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

// Scan finds the Usage of the given code.
func Scan(src string) *Usage {
	var (
		c        = core.NewCursor(src)
		names    = make(map[string]bool)
		calls    = make(map[string]bool)
		declared = make(map[string]bool)
		topics   = make(map[string]bool)
		globals  = make(map[string]bool)

		declaring bool
		prev      string
	)

	for {
		c.SkipNonCode()
		if c.EOT() {
			break
		}
		ch := c.C()
		switch {
		case ch == '"' || ch == '\'':
			if v := c.ParseStringLiteral(); v.IsError() {
				c.Next()
			}
		case c.AtNumber():
			if v := c.ParseNumericLiteral(); v.IsError() {
				c.Next()
			}
		case isLetter(ch):
			id, _ := c.ParseIdentifier()
			lower := strings.ToLower(id)
			last := prev
			prev = lower
			switch {
			case declaring:
				declared[id] = true
				declaring = false
			case lower == "var" || (lower == "as" && last == "catch"):
				declaring = true
			case core.IsKeyword(id):
			default:
				here := c.Pos
				c.SkipNonCode()
				if !c.NextIf('(') {
					c.Pos = here
					if _, weekday := core.Weekday(id); !weekday && !declared[id] {
						names[id] = true
					}
					continue
				}
				calls[lower] = true
				c.SkipNonCode()
				if ch := c.C(); ch != '"' && ch != '\'' {
					continue
				}
				v := c.ParseStringLiteral()
				if v.IsError() {
					continue
				}
				switch lower {
				case "emit":
					topics[v.StringValue()] = true
				case "global", "setglobal", "delglobal":
					globals[v.StringValue()] = true
				}
			}
		default:
			c.Next()
		}
	}

	return &Usage{
		Names:    sorted(names),
		Calls:    sorted(calls),
		Declared: sorted(declared),
		Topics:   sorted(topics),
		Globals:  sorted(globals),
	}
}

// sorted returns the sorted keys of the map.
func sorted(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	acc := make([]string, 0, len(m))
	for key := range m {
		acc = append(acc, key)
	}
	sort.Strings(acc)
	return acc
}
