package builtins

import (
	"testing"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/util/testutil"
)

func TestStandard(t *testing.T) {
	e := newTestEnv(testEpoch)
	null := core.NullValue("")
	tests := []struct {
		name string
		fn   string
		args []core.Value
		want core.Value
	}{
		{"ifvalid ok", "ifvalid", []core.Value{n(1), n(2)}, n(1)},
		{"ifvalid null", "ifvalid", []core.Value{null, n(2)}, n(2)},
		{"isvalid", "isvalid", []core.Value{null}, n(0)},
		{"if", "if", []core.Value{n(0), s("a"), s("b")}, s("b")},
		{"abs", "abs", []core.Value{n(-3)}, n(3)},
		{"abs string", "abs", []core.Value{s("-3")}, n(3)},
		{"int", "int", []core.Value{n(-3.7)}, n(-3)},
		{"frac", "frac", []core.Value{n(2.5)}, n(0.5)},
		{"round", "round", []core.Value{n(2.5)}, n(3)},
		{"round precision", "round", []core.Value{n(17), n(5)}, n(15)},
		{"min", "min", []core.Value{n(3), n(2)}, n(2)},
		{"max", "max", []core.Value{n(3), n(2)}, n(3)},
		{"limited", "limited", []core.Value{n(12), n(0), n(10)}, n(10)},
		{"cyclic", "cyclic", []core.Value{n(370), n(0), n(360)}, n(10)},
		{"cyclic negative", "cyclic", []core.Value{n(-10), n(0), n(360)}, n(350)},
		{"string", "string", []core.Value{n(42)}, s("42")},
		{"string null", "string", []core.Value{null}, s("undefined")},
		{"number", "number", []core.Value{s("33 gugus")}, n(33)},
		{"number time", "number", []core.Value{s("12:35")}, n(45300)},
		{"strlen", "strlen", []core.Value{s("hello")}, n(5)},
		{"substr", "substr", []core.Value{s("hello"), n(1), n(3)}, s("ell")},
		{"substr tail", "substr", []core.Value{s("hello"), n(3)}, s("lo")},
		{"substr beyond", "substr", []core.Value{s("hello"), n(10)}, s("")},
		{"find", "find", []core.Value{s("hello"), s("l")}, n(2)},
		{"find from", "find", []core.Value{s("hello"), s("l"), n(3)}, n(3)},
		{"format", "format", []core.Value{s("%03d|%.2f|%s"), n(7)}, s("007|0.00|")},
		{"errordomain", "errordomain", []core.Value{core.ErrorValue(core.User, "x")}, s(core.ErrorDomain)},
		{"errorcode", "errorcode", []core.Value{core.ErrorValue(core.User, "x")}, n(float64(core.User))},
		{"errormessage", "errormessage", []core.Value{core.ErrorValue(core.User, "x")}, s("x")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.call(tc.fn, tc.args...)
			if !got.IsOk() || !got.Equal(tc.want) || got.IsString() != tc.want.IsString() {
				t.Fatalf("got %v, wanted %v", got, tc.want)
			}
		})
	}
}

func TestStandardUndefined(t *testing.T) {
	e := newTestEnv(testEpoch)
	for _, tc := range []struct {
		fn   string
		args []core.Value
	}{
		{"abs", []core.Value{core.NullValue("")}},
		{"find", []core.Value{s("hello"), s("z")}},
		{"errorcode", []core.Value{n(1)}},
	} {
		if got := e.call(tc.fn, tc.args...); !got.IsNull() {
			t.Fatalf("%s: got %v", tc.fn, got)
		}
	}
}

func TestStandardErrors(t *testing.T) {
	e := newTestEnv(testEpoch)

	v := e.call("error", s("broken"))
	if v.ErrorKind() != core.User || v.Err().Msg != "broken" {
		t.Fatal(v)
	}

	v = e.call("abs", core.ErrorValue(core.DivisionByZero, "division by zero"))
	if v.ErrorKind() != core.DivisionByZero {
		t.Fatal(v)
	}

	v = e.call("format", s("%q"), n(1))
	if v.ErrorKind() != core.Syntax {
		t.Fatal(v)
	}
}

func TestRandom(t *testing.T) {
	e := newTestEnv(testEpoch)
	for i := 0; i < 100; i++ {
		f := e.call("random", n(5), n(6)).NumberValue()
		if f < 5 || 6 <= f {
			t.Fatal(f)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		format string
		vals   []core.Value
		want   string
	}{
		{"plain", nil, "plain"},
		{"100%%", nil, "100%"},
		{"%d", []core.Value{n(42.9)}, "42"},
		{"%x/%X", []core.Value{n(255), n(255)}, "ff/FF"},
		{"%5.1f", []core.Value{n(3.14159)}, "  3.1"},
		{"%-4s|", []core.Value{s("ab")}, "ab  |"},
		{"%+d", []core.Value{n(5)}, "+5"},
		{"%e", []core.Value{n(1234.5)}, "1.234500e+03"},
	}
	for _, tc := range tests {
		got, err := Format(tc.format, tc.vals)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, wanted %q", tc.format, got, tc.want)
		}
	}

	for _, bad := range []string{"%", "%5", "%q", "%v"} {
		if _, err := Format(bad, nil); err == nil {
			t.Fatalf("%q should fail", bad)
		}
	}
}

func TestLogLevels(t *testing.T) {
	for level := 0; level <= 7; level++ {
		l := ZerologLevel(level)
		back := SyslogLevel(l)
		if ZerologLevel(back) != l {
			t.Fatalf("level %d -> %v -> %d", level, l, back)
		}
	}
}

func TestLog(t *testing.T) {
	e := newTestEnv(testEpoch)
	e.logger = testutil.Quiet
	if got := e.call("log", n(3), s("hi")); got.StringValue() != "hi" {
		t.Fatal(got)
	}
	if got := e.call("logleveloffset", n(2)); got.NumberValue() != 0 {
		t.Fatal(got)
	}
	if e.offset != 2 {
		t.Fatal(e.offset)
	}
}

func TestCyclic(t *testing.T) {
	if got := Cyclic(5, 0, 0); got != 0 {
		t.Fatal(got)
	}
	if got := Cyclic(-1, 1, 4); got != 2 {
		t.Fatal(got)
	}
}
