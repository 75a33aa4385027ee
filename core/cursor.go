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
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Cursor is a read position in source text.
//
// All the Parse methods either succeed and advance Pos, or return an
// error Value and leave Pos at the offending spot.
type Cursor struct {
	Src string
	Pos int

	// Mode says what a single "=" is.
	Mode OperatorMode

	// Now provides the current time for date literals.  Defaults
	// to time.Now.
	Now func() time.Time
}

// NewCursor makes a Cursor at the start of src.
func NewCursor(src string) *Cursor {
	return &Cursor{
		Src: src,
	}
}

// EOT is true at the end of the text.
func (c *Cursor) EOT() bool {
	return c.Pos >= len(c.Src)
}

// C returns the current character (or 0 at EOT).
func (c *Cursor) C() byte {
	return c.CAt(0)
}

// CAt returns the character at the given offset from the current
// position (or 0).
func (c *Cursor) CAt(offset int) byte {
	i := c.Pos + offset
	if i < 0 || i >= len(c.Src) {
		return 0
	}
	return c.Src[i]
}

// Next advances one character.
func (c *Cursor) Next() bool {
	if c.EOT() {
		return false
	}
	c.Pos++
	return true
}

// Advance moves n characters, stopping at EOT.
func (c *Cursor) Advance(n int) {
	c.Pos += n
	if c.Pos > len(c.Src) {
		c.Pos = len(c.Src)
	}
}

// NextIf advances past ch if it's the current character.
func (c *Cursor) NextIf(ch byte) bool {
	if c.C() == ch && !c.EOT() {
		c.Pos++
		return true
	}
	return false
}

// Rest is the source text from the current position on.
func (c *Cursor) Rest() string {
	if c.EOT() {
		return ""
	}
	return c.Src[c.Pos:]
}

func (c *Cursor) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isAlpha(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// AtNumber is true if a numeric literal starts here.
func (c *Cursor) AtNumber() bool {
	return isDigit(c.C()) || (c.C() == '.' && isDigit(c.CAt(1)))
}

// SkipWhiteSpace skips spaces, tabs, CRs and LFs.
func (c *Cursor) SkipWhiteSpace() {
	for !c.EOT() && isSpace(c.C()) {
		c.Pos++
	}
}

// SkipNonCode skips white space and comments until neither is left.
func (c *Cursor) SkipNonCode() {
	for {
		c.SkipWhiteSpace()
		switch {
		case c.C() == '/' && c.CAt(1) == '/':
			c.Advance(2)
			for !c.EOT() && c.C() != '\n' {
				c.Pos++
			}
		case c.C() == '/' && c.CAt(1) == '*':
			c.Advance(2)
			for !c.EOT() && !(c.C() == '*' && c.CAt(1) == '/') {
				c.Pos++
			}
			c.Advance(2)
		default:
			return
		}
	}
}

// ParseIdentifier reads a letter followed by letters, digits, and
// underscores.
func (c *Cursor) ParseIdentifier() (string, bool) {
	if !isAlpha(c.C()) {
		return "", false
	}
	start := c.Pos
	for !c.EOT() && (isAlpha(c.C()) || isDigit(c.C()) || c.C() == '_') {
		c.Pos++
	}
	return c.Src[start:c.Pos], true
}

// CheckForIdentifier consumes the given word (case-insensitive) if
// it's the next identifier.
func (c *Cursor) CheckForIdentifier(word string) bool {
	start := c.Pos
	if id, ok := c.ParseIdentifier(); ok && strings.EqualFold(id, word) {
		return true
	}
	c.Pos = start
	return false
}

// ParseOperator reads an operator, skipping non-code before and
// after.  Returns OpNone (and doesn't advance) if there isn't one.
func (c *Cursor) ParseOperator() Operator {
	c.SkipNonCode()
	op := OpNone
	n := 1
	switch c.C() {
	case ':':
		if c.CAt(1) == '=' {
			op, n = OpAssign, 2
		}
	case '=':
		if c.CAt(1) == '=' {
			op, n = OpEqual, 2
		} else {
			switch c.Mode {
			case C:
				op = OpAssign
			case Pascal:
				op = OpEqual
			default:
				op = OpAssignOrEq
			}
		}
	case '*':
		op = OpMultiply
	case '/':
		op = OpDivide
	case '%':
		op = OpModulo
	case '+':
		op = OpAdd
	case '-':
		op = OpSubtract
	case '&':
		op = OpAnd
		if c.CAt(1) == '&' {
			n = 2
		}
	case '|':
		op = OpOr
		if c.CAt(1) == '|' {
			n = 2
		}
	case '<':
		switch c.CAt(1) {
		case '=':
			op, n = OpLeq, 2
		case '>':
			op, n = OpNotEqual, 2
		default:
			op = OpLess
		}
	case '>':
		if c.CAt(1) == '=' {
			op, n = OpGeq, 2
		} else {
			op = OpGreater
		}
	case '!':
		if c.CAt(1) == '=' {
			op, n = OpNotEqual, 2
		} else {
			op = OpNot
		}
	}
	if op != OpNone {
		c.Advance(n)
		c.SkipNonCode()
	}
	return op
}

// ParseNumericLiteral reads a number, a time (hh:mm[:ss], in
// seconds), or a date (dd.monthname or dd.mm., as zero-based day of
// the current year).
func (c *Cursor) ParseNumericLiteral() Value {
	f, n, err := parseLiteral(c.Rest(), c.now())
	if err != nil {
		err.Pos = c.Pos
		return FromError(err)
	}
	v := Number(f).At(c.Pos)
	c.Advance(n)
	return v
}

// ParseStringLiteral reads a double-quoted string with \n, \r, \t,
// and \xHH escapes or a single-quoted string where only '' is
// special.
func (c *Cursor) ParseStringLiteral() Value {
	start := c.Pos
	delim := c.C()
	if delim != '"' && delim != '\'' {
		return FromError(Errorf(Syntax, c.Pos, "invalid string literal"))
	}
	c.Next()
	var buf bytes.Buffer
	for {
		if c.EOT() {
			return FromError(Errorf(Syntax, c.Pos, "unterminated string, missing %c delimiter", delim))
		}
		ch := c.C()
		if ch == delim {
			if delim == '\'' && c.CAt(1) == delim {
				buf.WriteByte(delim)
				c.Advance(2)
				continue
			}
			break
		}
		if delim == '"' && ch == '\\' {
			c.Next()
			if c.EOT() {
				return FromError(Errorf(Syntax, c.Pos, "incomplete \\-escape"))
			}
			ch = c.C()
			switch ch {
			case 'n':
				ch = '\n'
			case 'r':
				ch = '\r'
			case 't':
				ch = '\t'
			case 'x':
				var h byte
				for i := 0; i < 2 && isHex(c.CAt(1)); i++ {
					c.Next()
					h = h<<4 | hexVal(c.C())
				}
				ch = h
			}
		}
		buf.WriteByte(ch)
		c.Next()
	}
	c.Next()
	return String(buf.String()).At(start)
}

// ParseJSONLiteral reads a JSON object or array and returns its
// compact text.
func (c *Cursor) ParseJSONLiteral() Value {
	start := c.Pos
	if ch := c.C(); ch != '{' && ch != '[' {
		return FromError(Errorf(Syntax, c.Pos, "invalid JSON literal"))
	}
	dec := json.NewDecoder(strings.NewReader(c.Rest()))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return FromError(Errorf(Syntax, c.Pos, "invalid JSON literal: %s", err))
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return FromError(Errorf(Syntax, c.Pos, "invalid JSON literal: %s", err))
	}
	c.Advance(int(dec.InputOffset()))
	return String(buf.String()).At(start)
}

// Line returns the one-based line and column of the current position.
func (c *Cursor) Line() (int, int) {
	line, col := 1, 1
	for i := 0; i < c.Pos && i < len(c.Src); i++ {
		if c.Src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Display shows up to n characters of code at the current position,
// for logging.
func (c *Cursor) Display(n int) string {
	s := c.Rest()
	if len(s) > n {
		s = s[:n] + "..."
	}
	return strings.ReplaceAll(s, "\n", "\\n")
}

func isHex(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func hexVal(ch byte) byte {
	switch {
	case isDigit(ch):
		return ch - '0'
	case 'a' <= ch && ch <= 'f':
		return ch - 'a' + 10
	}
	return ch - 'A' + 10
}
