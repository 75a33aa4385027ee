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

package builtins

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/Comcast/tempo/core"

	"github.com/rs/zerolog"
)

func args(as ...Arg) []Arg {
	return as
}

func ret(c *Call, v core.Value) {
	c.Finish(v)
}

func num(c *Call, f float64) {
	c.Finish(core.Number(f))
}

// Standard returns the value, numeric, string, error, meta, and
// logging functions.
func Standard() []*Descriptor {
	return []*Descriptor{
		{
			Name:    "ifvalid",
			Returns: Any,
			Args:    args(Arg{"value", Any}, Arg{"alternative", Any}),
			Doc:     "Returns `value` if it's a valid value, `alternative` otherwise.",
			Impl: func(c *Call) {
				if c.Arg(0).IsOk() {
					ret(c, c.Arg(0))
					return
				}
				ret(c, c.Arg(1))
			},
		},
		{
			Name:    "isvalid",
			Returns: Numeric,
			Args:    args(Arg{"value", Any}),
			Doc:     "Returns true if `value` is neither undefined nor an error.",
			Impl: func(c *Call) {
				ret(c, core.Bool(c.Arg(0).IsOk()))
			},
		},
		{
			Name:    "if",
			Returns: Any,
			Args:    args(Arg{"condition", Value | Null}, Arg{"then", Any}, Arg{"else", Any}),
			Doc:     "Returns `then` if `condition` is true, `else` otherwise.",
			Impl: func(c *Call) {
				if c.Arg(0).BoolValue() {
					ret(c, c.Arg(1))
					return
				}
				ret(c, c.Arg(2))
			},
		},
		{
			Name:    "abs",
			Returns: Numeric | Null,
			Args:    args(Arg{"number", Scalar | UndefRes}),
			Doc:     "Absolute value.",
			Impl: func(c *Call) {
				num(c, math.Abs(c.Arg(0).NumberValue()))
			},
		},
		{
			Name:    "int",
			Returns: Numeric | Null,
			Args:    args(Arg{"number", Scalar | UndefRes}),
			Doc:     "Integer part (truncated towards zero).",
			Impl: func(c *Call) {
				num(c, math.Trunc(c.Arg(0).NumberValue()))
			},
		},
		{
			Name:    "frac",
			Returns: Numeric | Null,
			Args:    args(Arg{"number", Scalar | UndefRes}),
			Doc:     "Fractional part, with the sign of the argument.",
			Impl: func(c *Call) {
				f := c.Arg(0).NumberValue()
				num(c, f-math.Trunc(f))
			},
		},
		{
			Name:    "round",
			Returns: Numeric | Null,
			Args:    args(Arg{"number", Scalar | UndefRes}, Arg{"precision", Scalar | Optional}),
			Doc:     "Rounds to the nearest integer or, with `precision`, to the nearest multiple of `precision`.",
			Impl: func(c *Call) {
				f := c.Arg(0).NumberValue()
				if p := c.Arg(1).NumberValue(); c.Has(1) && p != 0 {
					num(c, math.Round(f/p)*p)
					return
				}
				num(c, math.Round(f))
			},
		},
		{
			Name:    "random",
			Returns: Numeric,
			Args:    args(Arg{"from", Scalar}, Arg{"to", Scalar}),
			Doc:     "Random number in the range `from` (inclusive) to `to` (exclusive).",
			Impl: func(c *Call) {
				a, b := c.Arg(0).NumberValue(), c.Arg(1).NumberValue()
				num(c, a+rand.Float64()*(b-a))
			},
		},
		{
			Name:    "min",
			Returns: Scalar | Null,
			Args:    args(Arg{"a", Scalar | UndefRes}, Arg{"b", Scalar | UndefRes}),
			Doc:     "The smaller of `a` and `b`.",
			Impl: func(c *Call) {
				if c.Arg(1).Less(c.Arg(0)) {
					ret(c, c.Arg(1))
					return
				}
				ret(c, c.Arg(0))
			},
		},
		{
			Name:    "max",
			Returns: Scalar | Null,
			Args:    args(Arg{"a", Scalar | UndefRes}, Arg{"b", Scalar | UndefRes}),
			Doc:     "The larger of `a` and `b`.",
			Impl: func(c *Call) {
				if c.Arg(0).Less(c.Arg(1)) {
					ret(c, c.Arg(1))
					return
				}
				ret(c, c.Arg(0))
			},
		},
		{
			Name:    "limited",
			Returns: Numeric | Null,
			Args:    args(Arg{"value", Scalar | UndefRes}, Arg{"min", Scalar}, Arg{"max", Scalar}),
			Doc:     "`value` limited to the range `min`..`max`.",
			Impl: func(c *Call) {
				f := c.Arg(0).NumberValue()
				num(c, math.Max(c.Arg(1).NumberValue(), math.Min(c.Arg(2).NumberValue(), f)))
			},
		},
		{
			Name:    "cyclic",
			Returns: Numeric | Null,
			Args:    args(Arg{"value", Scalar | UndefRes}, Arg{"min", Scalar}, Arg{"max", Scalar}),
			Doc:     "`value` wrapped around into the range `min` (inclusive) to `max` (exclusive).",
			Impl: func(c *Call) {
				num(c, Cyclic(c.Arg(0).NumberValue(), c.Arg(1).NumberValue(), c.Arg(2).NumberValue()))
			},
		},
		{
			Name:    "string",
			Returns: Text,
			Args:    args(Arg{"value", Any}),
			Doc:     "Converts to a string.  Undefined gives \"undefined\".",
			Impl: func(c *Call) {
				if c.Arg(0).IsNull() {
					ret(c, core.String("undefined"))
					return
				}
				ret(c, core.String(c.Arg(0).StringValue()))
			},
		},
		{
			Name:    "number",
			Returns: Numeric | Null,
			Args:    args(Arg{"value", Scalar | UndefRes}),
			Doc:     "Converts to a number.  Strings are parsed as numbers, times (hh:mm:ss) or dates (dd.mm.).",
			Impl: func(c *Call) {
				num(c, c.Arg(0).NumberValue())
			},
		},
		{
			Name:    "strlen",
			Returns: Numeric | Null,
			Args:    args(Arg{"string", Scalar | UndefRes}),
			Doc:     "Length of the string in bytes.",
			Impl: func(c *Call) {
				num(c, float64(len(c.Arg(0).StringValue())))
			},
		},
		{
			Name:    "substr",
			Returns: Text | Null,
			Args:    args(Arg{"string", Scalar | UndefRes}, Arg{"from", Scalar}, Arg{"count", Scalar | Optional}),
			Doc:     "Part of `string` starting at `from` with at most `count` bytes (or up to the end).",
			Impl: func(c *Call) {
				s := c.Arg(0).StringValue()
				from := clamp(int(c.Arg(1).IntValue()), 0, len(s))
				n := len(s) - from
				if c.Has(2) {
					n = clamp(int(c.Arg(2).IntValue()), 0, n)
				}
				ret(c, core.String(s[from:from+n]))
			},
		},
		{
			Name:    "find",
			Returns: Numeric | Null,
			Args:    args(Arg{"haystack", Scalar | UndefRes}, Arg{"needle", Scalar}, Arg{"from", Scalar | Optional}),
			Doc:     "Position of `needle` in `haystack` (searching from `from`), undefined if not found.",
			Impl: func(c *Call) {
				s := c.Arg(0).StringValue()
				from := clamp(int(c.Arg(2).IntValue()), 0, len(s))
				i := strings.Index(s[from:], c.Arg(1).StringValue())
				if i < 0 {
					ret(c, core.NullValue("not found"))
					return
				}
				num(c, float64(from+i))
			},
		},
		{
			Name:    "format",
			Returns: Text,
			Args:    args(Arg{"format", Text}, Arg{"value", Any | Multiple | Optional}),
			Doc:     "Formats values with C-style `%d %u %x %X %e %E %g %G %f %s` specs.",
			Impl: func(c *Call) {
				s, err := Format(c.Arg(0).StringValue(), c.Args[1:])
				if err != nil {
					ret(c, core.FromError(core.Errorf(core.Syntax, c.ArgPos(0), "%s", err)))
					return
				}
				ret(c, core.String(s))
			},
		},
		{
			Name:    "error",
			Returns: Error,
			Args:    args(Arg{"message", Any}),
			Doc:     "Makes a user error with the given message.",
			Impl:    userError,
		},
		{
			Name:    "throw",
			Returns: Error,
			Args:    args(Arg{"value", Any}),
			Doc:     "Throws a user error (or the given error).",
			Impl:    userError,
		},
		{
			Name:    "errordomain",
			Returns: Text | Null,
			Args:    args(Arg{"error", Any}),
			Doc:     "Domain of an error, undefined if not an error.",
			Impl: func(c *Call) {
				if c.Arg(0).IsOk() {
					ret(c, core.NullValue("not error"))
					return
				}
				ret(c, core.String(core.ErrorDomain))
			},
		},
		{
			Name:    "errorcode",
			Returns: Numeric | Null,
			Args:    args(Arg{"error", Any}),
			Doc:     "Numeric kind of an error, undefined if not an error.",
			Impl: func(c *Call) {
				if c.Arg(0).IsOk() {
					ret(c, core.NullValue("not error"))
					return
				}
				num(c, float64(c.Arg(0).ErrorKind()))
			},
		},
		{
			Name:    "errormessage",
			Returns: Text | Null,
			Args:    args(Arg{"error", Any}),
			Doc:     "Message of an error, undefined if not an error.",
			Impl: func(c *Call) {
				if c.Arg(0).IsOk() {
					ret(c, core.NullValue("not error"))
					return
				}
				ret(c, core.String(c.Arg(0).Err().Msg))
			},
		},
		{
			Name:    "eval",
			Returns: Any,
			Args:    args(Arg{"code", Text}, Arg{"arg", Any | Multiple | Optional}),
			Doc:     "Evaluates `code`.  Further arguments are available to the code as `arg1`, `arg2`, ...",
			Impl: func(c *Call) {
				c.Env.Eval(c.Arg(0).StringValue(), c.Args[1:], c.Finish)
			},
		},
		{
			Name:    "log",
			Returns: Text,
			Args:    args(Arg{"level_or_message", Any}, Arg{"message", Any | Optional}),
			Doc:     "Logs `message` at the given syslog-style `level` (0..7, default 6) and returns it.",
			Impl: func(c *Call) {
				level, msg := 6, c.Arg(0)
				if c.Has(1) {
					level, msg = int(c.Arg(0).IntValue()), c.Arg(1)
				}
				text := msg.StringValue()
				if !msg.IsOk() {
					text = msg.String()
				}
				lvl := ZerologLevel(level + c.Env.LogLevelOffset())
				c.Env.Logger().WithLevel(lvl).Str("source", "script").Msg(text)
				ret(c, core.String(text))
			},
		},
		{
			Name:    "loglevel",
			Returns: Numeric,
			Args:    args(Arg{"level", Scalar | Optional}),
			Doc:     "Returns the current log level (0..7) and sets a new one if given.",
			Impl: func(c *Call) {
				old := SyslogLevel(zerolog.GlobalLevel())
				if c.Has(0) {
					zerolog.SetGlobalLevel(ZerologLevel(int(c.Arg(0).IntValue())))
				}
				num(c, float64(old))
			},
		},
		{
			Name:    "logleveloffset",
			Returns: Numeric,
			Args:    args(Arg{"offset", Scalar | Optional}),
			Doc:     "Returns the log level offset of this context and sets a new one if given.",
			Impl: func(c *Call) {
				old := c.Env.LogLevelOffset()
				if c.Has(0) {
					c.Env.SetLogLevelOffset(int(c.Arg(0).IntValue()))
				}
				num(c, float64(old))
			},
		},
	}
}

func userError(c *Call) {
	v := c.Arg(0)
	if v.IsError() {
		ret(c, v)
		return
	}
	ret(c, core.FromError(core.Errorf(core.User, c.Pos, "%s", v.StringValue())))
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// Cyclic wraps x into [a, b).
func Cyclic(x, a, b float64) float64 {
	span := b - a
	if span <= 0 {
		return a
	}
	r := math.Mod(x-a, span)
	if r < 0 {
		r += span
	}
	return a + r
}

// ZerologLevel maps syslog-style levels (0 emergency .. 7 debug).
func ZerologLevel(level int) zerolog.Level {
	switch {
	case level <= 3:
		return zerolog.ErrorLevel
	case level == 4:
		return zerolog.WarnLevel
	case level <= 6:
		return zerolog.InfoLevel
	}
	return zerolog.DebugLevel
}

// SyslogLevel maps zerolog levels to syslog-style levels.
func SyslogLevel(l zerolog.Level) int {
	switch l {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return 7
	case zerolog.InfoLevel:
		return 6
	case zerolog.WarnLevel:
		return 4
	case zerolog.ErrorLevel:
		return 3
	case zerolog.FatalLevel:
		return 2
	case zerolog.PanicLevel:
		return 1
	}
	return 0
}

// Format renders values with a printf-style format that may only use
// %d, %u, %x, %X (integers), %e, %E, %g, %G, %f (floats), and %s,
// with flags, width, and precision.
func Format(format string, vals []core.Value) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			b.WriteByte(ch)
			continue
		}
		if i+1 < len(format) && format[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("+-0123456789. #", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			return "", fmt.Errorf("invalid format string, only basic %%duxXeEgGfs specs allowed")
		}
		prefix := format[i:j]
		var v core.Value
		if next < len(vals) {
			v = vals[next]
		}
		next++
		switch conv := format[j]; conv {
		case 'd', 'u':
			fmt.Fprintf(&b, prefix+"d", v.IntValue())
		case 'x', 'X':
			fmt.Fprintf(&b, prefix+string(conv), v.IntValue())
		case 'e', 'E', 'g', 'G', 'f':
			fmt.Fprintf(&b, prefix+string(conv), v.NumberValue())
		case 's':
			fmt.Fprintf(&b, prefix+"s", v.StringValue())
		default:
			return "", fmt.Errorf("invalid format string, only basic %%duxXeEgGfs specs allowed")
		}
		i = j
	}
	return b.String(), nil
}
