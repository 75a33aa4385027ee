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
	"fmt"
	"strings"
)

// Operator is an operator tag.  The low four bits hold the
// precedence; higher precedence binds tighter.
type Operator uint16

const (
	OpNone       Operator = 0x006
	OpNot        Operator = 0x016
	OpMultiply   Operator = 0x025
	OpDivide     Operator = 0x035
	OpModulo     Operator = 0x045
	OpAdd        Operator = 0x054
	OpSubtract   Operator = 0x064
	OpEqual      Operator = 0x073
	OpNotEqual   Operator = 0x083
	OpLess       Operator = 0x093
	OpGreater    Operator = 0x0A3
	OpLeq        Operator = 0x0B3
	OpGeq        Operator = 0x0C3
	OpAnd        Operator = 0x0D2
	OpOr         Operator = 0x0E2
	OpAssign     Operator = 0x0F0
	OpAssignOrEq Operator = 0x103
)

// Precedence of the operator.
func (op Operator) Precedence() int {
	return int(op & 0x0F)
}

var opNames = map[Operator]string{
	OpNone:       "none",
	OpNot:        "!",
	OpMultiply:   "*",
	OpDivide:     "/",
	OpModulo:     "%",
	OpAdd:        "+",
	OpSubtract:   "-",
	OpEqual:      "==",
	OpNotEqual:   "!=",
	OpLess:       "<",
	OpGreater:    ">",
	OpLeq:        "<=",
	OpGeq:        ">=",
	OpAnd:        "&&",
	OpOr:         "||",
	OpAssign:     ":=",
	OpAssignOrEq: "=",
}

func (op Operator) String() string {
	if s, have := opNames[op]; have {
		return s
	}
	return fmt.Sprintf("Operator(%#x)", uint16(op))
}

// IsAssignment is true for operators that assign in statement
// position.
func (op Operator) IsAssignment() bool {
	return op == OpAssign || op == OpAssignOrEq
}

// OperatorMode determines what a single "=" means.
type OperatorMode int

const (
	// Flexible: "=" assigns in statement position and compares
	// everywhere else.
	Flexible OperatorMode = iota

	// C: "=" always assigns.
	C

	// Pascal: "=" always compares and ":=" assigns.
	Pascal
)

func (m OperatorMode) String() string {
	switch m {
	case C:
		return "c"
	case Pascal:
		return "pascal"
	}
	return "flexible"
}

// ParseOperatorMode accepts "flexible", "c", and "pascal".
func ParseOperatorMode(s string) (OperatorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flexible":
		return Flexible, nil
	case "c":
		return C, nil
	case "pascal":
		return Pascal, nil
	}
	return Flexible, fmt.Errorf("unknown operator mode '%s'", s)
}

// Apply combines two operands with a binary operator.
//
// Equality operators handle null and errors themselves.  For all the
// other operators, a hard error on the left wins, then one on the
// right; combinations involving null give null.
func Apply(op Operator, l, r Value) Value {
	var v Value
	switch op {
	case OpEqual, OpAssignOrEq:
		v = Bool(l.Equal(r))
	case OpNotEqual:
		v = Bool(!l.Equal(r))
	default:
		switch {
		case l.IsOk() && r.IsOk():
			v = applyDefined(op, l, r)
		case l.IsError():
			return l
		case r.IsError():
			v = r
		default:
			v = NullValue("operation between undefined values")
		}
	}
	return v.At(l.Pos)
}

func applyDefined(op Operator, l, r Value) Value {
	switch op {
	case OpMultiply:
		return l.Mul(r)
	case OpDivide:
		return l.Div(r)
	case OpModulo:
		return l.Mod(r)
	case OpAdd:
		return l.Add(r)
	case OpSubtract:
		return l.Sub(r)
	case OpLess:
		return Bool(l.Less(r))
	case OpGreater:
		return Bool(l.Greater(r))
	case OpLeq:
		return Bool(l.LessEq(r))
	case OpGeq:
		return Bool(l.GreaterEq(r))
	case OpAnd:
		return l.And(r)
	case OpOr:
		return l.Or(r)
	}
	return ErrorValue(Syntax, "invalid binary operator '%s'", op)
}

// ApplyUnary applies "-" or "!" to a defined value.  Null and errors
// pass through.
func ApplyUnary(op Operator, v Value) Value {
	if !v.IsOk() {
		return v
	}
	switch op {
	case OpSubtract:
		return v.Negate().At(v.Pos)
	case OpNot:
		return v.Not().At(v.Pos)
	}
	return v
}
