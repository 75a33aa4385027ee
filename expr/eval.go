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
	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
)

// MaxDepth limits the nesting of sub-expressions.
var MaxDepth = 200

// evaluator is one recursive descent over an expression.
type evaluator struct {
	ctx   *Context
	env   builtins.Env
	cur   *core.Cursor
	depth int
}

// fatal is true for errors that end the evaluation at once.
func fatal(v core.Value) bool {
	return v.IsError() && v.ErrorKind().Fatal()
}

func (e *evaluator) noExec() bool {
	return e.ctx.mode.Base() == core.SyntaxCheck
}

func (e *evaluator) syntax(format string, args ...interface{}) core.Value {
	return core.FromError(core.Errorf(core.Syntax, e.cur.Pos, format, args...))
}

// evaluate evaluates the whole text.
func (e *evaluator) evaluate() core.Value {
	v := e.expression(0)
	if fatal(v) {
		return v
	}
	e.cur.SkipNonCode()
	if !e.cur.EOT() {
		return e.syntax("trailing garbage: '%s'", e.cur.Display(20))
	}
	return v
}

// expression evaluates operators with a precedence higher than floor.
func (e *evaluator) expression(floor int) core.Value {
	e.depth++
	defer func() {
		e.depth--
	}()
	if e.depth > MaxDepth {
		return e.syntax("expression nested too deeply")
	}

	cur := e.cur
	cur.SkipNonCode()
	start := cur.Pos

	unary := cur.ParseOperator()
	switch unary {
	case core.OpNone, core.OpSubtract, core.OpNot:
	case core.OpAdd:
		unary = core.OpNone
	default:
		cur.Pos = start
		return e.syntax("invalid unary operator")
	}

	var v core.Value
	if cur.NextIf('(') {
		v = e.expression(0)
		if fatal(v) {
			return v
		}
		cur.SkipNonCode()
		if !cur.NextIf(')') {
			return e.syntax("missing ')'")
		}
		v = v.At(start)
	} else {
		v = e.term()
		if fatal(v) {
			return v
		}
	}
	if unary != core.OpNone {
		v = core.ApplyUnary(unary, v)
	}

	for {
		at := cur.Pos
		op := cur.ParseOperator()
		if op == core.OpAssign {
			cur.Pos = at
			return e.syntax("nested assignment not allowed")
		}
		if op == core.OpNone || op.Precedence() <= floor {
			cur.Pos = at
			return v
		}
		if op == core.OpNot {
			cur.Pos = at
			return e.syntax("NOT operator not allowed here")
		}
		r := e.expression(op.Precedence())
		if fatal(r) {
			return r
		}
		if !e.noExec() {
			v = core.Apply(op, v, r)
		}
	}
}

// term evaluates a literal, a variable, or a function call.
func (e *evaluator) term() core.Value {
	cur := e.cur
	start := cur.Pos
	switch ch := cur.C(); {
	case cur.EOT():
		return e.syntax("missing term")
	case ch == '"' || ch == '\'':
		return cur.ParseStringLiteral()
	case ch == '{' || ch == '[':
		return cur.ParseJSONLiteral()
	case cur.AtNumber():
		return cur.ParseNumericLiteral()
	}

	name, ok := cur.ParseIdentifier()
	if !ok {
		return e.syntax("missing term")
	}
	cur.SkipNonCode()
	if cur.NextIf('(') {
		return e.call(name, start)
	}
	if e.noExec() {
		return core.NullValue("").At(start)
	}
	return e.ctx.Lookup(name).At(start)
}

// call collects the arguments of a function call and runs it.  The
// cursor is just after the opening parenthesis.
func (e *evaluator) call(name string, pos int) core.Value {
	cur := e.cur
	var args []core.Value
	for {
		cur.SkipNonCode()
		if cur.NextIf(')') {
			break
		}
		if len(args) > 0 && !cur.NextIf(',') {
			return e.syntax("missing comma or closing ')'")
		}
		a := e.expression(0)
		if fatal(a) {
			return a
		}
		args = append(args, a)
	}
	if e.noExec() {
		return core.NullValue("").At(pos)
	}

	fn := e.ctx.Function(name)
	if fn == nil {
		return e.ctx.Registry.UnknownFunction(name, len(args)).At(pos)
	}

	var (
		result   core.Value
		finished bool
	)
	c := builtins.Invoke(e.env, fn, args, pos, func(v core.Value) {
		result, finished = v, true
	})
	if !finished {
		if c != nil {
			c.Abort(core.Value{})
		}
		return core.FromError(core.Errorf(core.AsyncNotAllowed, pos,
			"builtin function '%s' did not finish synchronously", fn.Name))
	}
	if result.IsError() && result.Err().Pos >= 0 {
		return result
	}
	return result.At(pos)
}
