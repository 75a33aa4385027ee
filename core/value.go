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
	"math"
	"strconv"
	"time"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindNumber
	kindString
	kindError
)

// Value is the result of evaluating an expression or a part of one.
//
// A Value is a number, a string, an error, or null.  The zero Value
// is null.
//
// Pos is the source offset where the (sub)expression that produced
// the value starts.  It's the key for frozen results and has no
// influence on comparisons.
type Value struct {
	kind valueKind
	num  float64
	str  string
	err  *Error

	Pos int
}

// Number makes a numeric Value.
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Bool makes a numeric Value that's 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Number(1)
	}
	return Number(0)
}

// String makes a string Value.
func String(s string) Value {
	return Value{kind: kindString, str: s}
}

// NullValue makes a null Value.  The annotation (optional) says why
// there's no value.
func NullValue(annotation string) Value {
	return Value{kind: kindNull, str: annotation}
}

// ErrorValue makes an error Value.
//
// ErrorValue(Null, ...) gives an annotated null.
func ErrorValue(kind ErrorKind, format string, args ...interface{}) Value {
	return FromError(NewError(kind, format, args...))
}

// FromError wraps an *Error in a Value, which takes the error's
// position if it has one.
func FromError(e *Error) Value {
	v := Value{kind: kindError, err: e}
	switch e.Kind {
	case OK:
		v = Value{}
	case Null:
		v = NullValue(e.Msg)
	}
	if e.Pos >= 0 {
		v.Pos = e.Pos
	}
	return v
}

// At returns a copy of the Value with the given position.
func (v Value) At(pos int) Value {
	v.Pos = pos
	return v
}

// IsOk is true when the value is a number or a string.
func (v Value) IsOk() bool {
	return v.kind == kindNumber || v.kind == kindString
}

// IsNull is true for null (undefined) values.
func (v Value) IsNull() bool {
	return v.kind == kindNull
}

// ValueOk is true for everything that's not a hard error.
func (v Value) ValueOk() bool {
	return v.kind != kindError
}

// IsError is true for hard errors (not null).
func (v Value) IsError() bool {
	return v.kind == kindError
}

// IsString is true for string values.
func (v Value) IsString() bool {
	return v.kind == kindString
}

// IsNumber is true for numeric values.
func (v Value) IsNumber() bool {
	return v.kind == kindNumber
}

// ErrorKind returns OK for numbers and strings, Null for null, and
// the error's kind otherwise.
func (v Value) ErrorKind() ErrorKind {
	switch v.kind {
	case kindNull:
		return Null
	case kindError:
		return v.err.Kind
	}
	return OK
}

// Err returns the error (or null annotation) carried by the value.
// Err is nil for numbers and strings.
func (v Value) Err() *Error {
	switch v.kind {
	case kindNull:
		msg := v.str
		if msg == "" {
			msg = "undefined"
		}
		return &Error{Kind: Null, Msg: msg, Pos: v.Pos}
	case kindError:
		return v.err
	}
	return nil
}

// NumberValue returns the numeric value.  Strings are parsed with the
// literal grammar (numbers, hex, times, dates).  Anything else is 0.
func (v Value) NumberValue() float64 {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindString:
		f, err := ParseNumber(v.str, time.Now())
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// IntValue truncates NumberValue.
func (v Value) IntValue() int64 {
	return int64(v.NumberValue())
}

// BoolValue is NumberValue() != 0.
func (v Value) BoolValue() bool {
	return v.NumberValue() != 0
}

// StringValue returns the string value.  Numbers are formatted; null
// and errors give "".
func (v Value) StringValue() string {
	switch v.kind {
	case kindNumber:
		return FormatNumber(v.num)
	case kindString:
		return v.str
	}
	return ""
}

// String is a diagnostic representation.
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return FormatNumber(v.num)
	case kindString:
		return strconv.Quote(v.str)
	case kindNull:
		if v.str == "" {
			return "undefined"
		}
		return "undefined (" + v.str + ")"
	}
	return "error " + v.err.Kind.String() + ": " + v.err.Msg
}

// FormatNumber gives integral values without a fraction or exponent
// and everything else in the shortest representation that parses
// back to the same float.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal implements "==".
//
// Null equals null, and no other error equals anything.  A string on
// the left compares as a string, otherwise the comparison is numeric.
func (v Value) Equal(o Value) bool {
	if !v.IsOk() || !o.IsOk() {
		return v.IsNull() && o.IsNull()
	}
	if v.IsString() {
		return v.str == o.StringValue()
	}
	return v.num == o.NumberValue()
}

// Less implements "<".  Errors and nulls are unordered.
func (v Value) Less(o Value) bool {
	if !v.IsOk() || !o.IsOk() {
		return false
	}
	if v.IsString() {
		return v.str < o.StringValue()
	}
	return v.num < o.NumberValue()
}

func ordered(v, o Value) bool {
	return v.IsOk() && o.IsOk()
}

// Greater is !(v < o) && !(v == o).
func (v Value) Greater(o Value) bool {
	return ordered(v, o) && !v.Less(o) && !v.Equal(o)
}

// LessEq is v == o || v < o.
func (v Value) LessEq(o Value) bool {
	return ordered(v, o) && (v.Equal(o) || v.Less(o))
}

// GreaterEq is !(v < o).
func (v Value) GreaterEq(o Value) bool {
	return ordered(v, o) && !v.Less(o)
}

// Add adds numbers and concatenates when either side is a string.
func (v Value) Add(o Value) Value {
	if v.IsString() || o.IsString() {
		return String(v.StringValue() + o.StringValue())
	}
	return Number(v.NumberValue() + o.NumberValue())
}

func (v Value) Sub(o Value) Value {
	return Number(v.NumberValue() - o.NumberValue())
}

func (v Value) Mul(o Value) Value {
	return Number(v.NumberValue() * o.NumberValue())
}

// Div yields a DivisionByZero error for a zero divisor.
func (v Value) Div(o Value) Value {
	d := o.NumberValue()
	if d == 0 {
		return ErrorValue(DivisionByZero, "division by zero")
	}
	return Number(v.NumberValue() / d)
}

// Mod is the remainder of a truncating division, so fractions work:
// 5.5 % 2 is 1.5.
func (v Value) Mod(o Value) Value {
	d := o.NumberValue()
	if d == 0 {
		return ErrorValue(DivisionByZero, "modulo by zero")
	}
	a := v.NumberValue()
	return Number(a - d*float64(int64(a/d)))
}

func (v Value) And(o Value) Value {
	return Bool(v.BoolValue() && o.BoolValue())
}

func (v Value) Or(o Value) Value {
	return Bool(v.BoolValue() || o.BoolValue())
}

// Negate is unary minus.
func (v Value) Negate() Value {
	return Number(-v.NumberValue())
}

// Not is unary "!".
func (v Value) Not() Value {
	return Bool(!v.BoolValue())
}
