package core

import (
	"math"
	"testing"
)

func TestValueZeroIsNull(t *testing.T) {
	var v Value
	if !v.IsNull() {
		t.Fatal("zero value isn't null")
	}
	if v.IsOk() || !v.ValueOk() || v.IsError() {
		t.Fatal("null predicates")
	}
	if v.NumberValue() != 0 || v.StringValue() != "" {
		t.Fatal("null accessors")
	}
}

func TestValueErrorAccessors(t *testing.T) {
	v := ErrorValue(DivisionByZero, "division by zero")
	if v.ValueOk() || !v.IsError() {
		t.Fatal("error predicates")
	}
	if v.NumberValue() != 0 || v.StringValue() != "" {
		t.Fatal("error accessors")
	}
	if v.ErrorKind() != DivisionByZero {
		t.Fatal(v.ErrorKind())
	}
	if ErrorValue(Null, "nothing").ErrorKind() != Null {
		t.Fatal("annotated null")
	}
}

func TestValueEquality(t *testing.T) {
	null := NullValue("")
	n42 := Number(42)
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"null == null", null.Equal(NullValue("other")), true},
		{"null == 42", null.Equal(n42), false},
		{"42 == null", n42.Equal(null), false},
		{"null != 42", !null.Equal(n42), true},
		{"78 == '78'", Number(78).Equal(String("78")), true},
		{"78 == '78.00'", Number(78).Equal(String("78.00")), true},
		{"'78' == '78.00'", String("78").Equal(String("78.00")), false},
		{"error == error", ErrorValue(User, "x").Equal(ErrorValue(User, "x")), false},
		{"null < 42", null.Less(n42), false},
		{"42 > null", n42.Greater(null), false},
		{"'a' < 'b'", String("a").Less(String("b")), true},
		{"10 < '9'", Number(10).Less(String("9")), false},
		{"5 >= 5", Number(5).GreaterEq(Number(5)), true},
		{"4 <= 5", Number(4).LessEq(Number(5)), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got %v", tc.got)
			}
		})
	}
}

func TestValueArithmetic(t *testing.T) {
	if v := Number(78).Div(Number(0)); v.ErrorKind() != DivisionByZero {
		t.Fatal(v)
	}
	if v := Number(5).Mod(Number(0)); v.ErrorKind() != DivisionByZero {
		t.Fatal(v)
	}
	if v := Number(5.5).Mod(Number(2)); v.NumberValue() != 1.5 {
		t.Fatal(v)
	}
	if v := Number(-7).Mod(Number(3)); v.NumberValue() != -1 {
		t.Fatal(v)
	}
	if v := String("a").Add(Number(1)); v.StringValue() != "a1" {
		t.Fatal(v)
	}
	if v := Number(1).Add(String("a")); v.StringValue() != "1a" {
		t.Fatal(v)
	}
	if v := Number(1).Add(Number(2)); !v.IsNumber() || v.NumberValue() != 3 {
		t.Fatal(v)
	}
}

func TestValueApply(t *testing.T) {
	if v := Apply(OpAdd, NullValue(""), Number(1)); !v.IsNull() {
		t.Fatal(v)
	}
	if v := Apply(OpAdd, ErrorValue(User, "left"), ErrorValue(User, "right")); v.Err().Msg != "left" {
		t.Fatal(v)
	}
	if v := Apply(OpAdd, Number(1), ErrorValue(User, "right")); v.Err().Msg != "right" {
		t.Fatal(v)
	}
	if v := Apply(OpEqual, NullValue(""), NullValue("")); !v.BoolValue() {
		t.Fatal(v)
	}
	if v := Apply(OpNotEqual, NullValue(""), Number(42)); !v.BoolValue() {
		t.Fatal(v)
	}
	if v := Apply(OpMultiply, Number(6), Number(7)).At(3); v.Pos != 3 || v.NumberValue() != 42 {
		t.Fatal(v)
	}
}

func TestValueStringRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1, -1, 42, 78.42, 1.0 / 3, 1e21, -2.5e-7, 1700000000, 0x33} {
		s := Number(f).StringValue()
		got := String(s).NumberValue()
		if math.Abs(got-f) > 1e-9*math.Max(1, math.Abs(f)) {
			t.Fatalf("%v -> %q -> %v", f, s, got)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	for f, want := range map[float64]string{
		33:         "33",
		78.42:      "78.42",
		-3:         "-3",
		1700000000: "1700000000",
		0.5:        "0.5",
	} {
		if got := FormatNumber(f); got != want {
			t.Fatalf("%v: %q != %q", f, got, want)
		}
	}
}

func TestFatalKinds(t *testing.T) {
	for _, k := range []ErrorKind{Syntax, Aborted, Timeout, AsyncNotAllowed, Internal} {
		if !k.Fatal() {
			t.Fatal(k)
		}
	}
	for _, k := range []ErrorKind{Null, DivisionByZero, CyclicReference, Busy, NotFound, User} {
		if k.Fatal() {
			t.Fatal(k)
		}
	}
}
