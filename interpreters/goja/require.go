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

package goja

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// InlineRequires replaces top-level require("name") statements with
// the source of the named libraries.
//
// Goja can't combine compiled programs, so the libraries are inlined
// as source.  The result can still be compiled once and cached.
func InlineRequires(ctx context.Context, src string, provider func(context.Context, string) (string, error)) (string, error) {
	if !strings.Contains(src, "require") {
		return src, nil
	}

	p, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return "", err
	}

	type required struct {
		from, to int
		name     string
	}

	var requires []required

	for _, s := range p.Body {
		exps, is := s.(*ast.ExpressionStatement)
		if !is {
			continue
		}

		call, is := exps.Expression.(*ast.CallExpression)
		if !is {
			continue
		}

		id, is := call.Callee.(*ast.Identifier)
		if !is || id.Name != "require" {
			continue
		}
		if len(call.ArgumentList) != 1 {
			return "", fmt.Errorf("bad require args: %#v", call.ArgumentList)
		}

		lit, is := call.ArgumentList[0].(*ast.StringLiteral)
		if !is {
			return "", fmt.Errorf("bad require arg: %#v", call.ArgumentList[0])
		}

		// Positions are 1-based.
		requires = append(requires, required{
			from: int(exps.Idx0()) - 1,
			to:   int(exps.Idx1()) - 1,
			name: string(lit.Value),
		})
	}

	if len(requires) == 0 {
		return src, nil
	}

	var b strings.Builder
	at := 0
	for _, r := range requires {
		lib, err := provider(ctx, r.name)
		if err != nil {
			return "", err
		}
		b.WriteString(src[at:r.from])
		b.WriteString(lib)
		b.WriteString("\n")
		at = r.to
	}
	b.WriteString(src[at:])

	return b.String(), nil
}
