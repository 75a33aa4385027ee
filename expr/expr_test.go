package expr

import (
	"strings"
	"testing"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"
)

var registry = builtins.NewRegistry(builtins.All())

func newContext(code string) *Context {
	c := NewContext("test", registry, sched.NewManual(testutil.Epoch))
	c.Log = testutil.Quiet
	c.SetCode(code)
	return c
}

func eval(code string) core.Value {
	return newContext(code).EvaluateSynchronously(core.Unspecific)
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		code string
		want core.Value
	}{
		{"12*3+7", core.Number(43)},
		{"12*(3+7)", core.Number(120)},
		{"12/3-7", core.Number(-3)},
		{"1+2*3-4", core.Number(3)},
		{"10-4-3", core.Number(3)},
		{"2*3%4", core.Number(2)},
		{"-3+5", core.Number(2)},
		{"-(3+5)", core.Number(-8)},
		{"!0", core.Number(1)},
		{"!(1 && 0)", core.Number(1)},
		{"+4", core.Number(4)},
		{"1 < 2 && 3 > 2", core.Number(1)},
		{"1 + 2 == 3", core.Number(1)},
		{"1 + 2 = 3", core.Number(1)},
		{"3 <> 3", core.Number(0)},
		{"3 != 4", core.Number(1)},
		{"2 <= 2 & 2 >= 3", core.Number(0)},
		{"0 | 1", core.Number(1)},
		{"78 == '78'", core.Number(1)},
		{"78 == '78.00'", core.Number(1)},
		{"'78' == '78.00'", core.Number(0)},
		{"null == undefined", core.Number(1)},
		{"null == 42", core.Number(0)},
		{"42 == null", core.Number(0)},
		{"null != 42", core.Number(1)},
		{"true + yes + no", core.Number(2)},
		{"'abc' + 1", core.String("abc1")},
		{"1 + 'abc'", core.String("1abc")},
		{"\"\\tHello\\nWorld, \\\"double quoted\\\"\"", core.String("\tHello\nWorld, \"double quoted\"")},
		{"'He said ''hi'''", core.String("He said 'hi'")},
		{"12:35", core.Number(45300)},
		{"14:57:42", core.Number(53862)},
		{"0x1F + 1", core.Number(32)},
		{"mon + sat", core.Number(7)},
		{"/* comment */ 1 + // another\n 2", core.Number(3)},
		{"{\"a\": [1, 2]}", core.String(`{"a":[1,2]}`)},
		{"strlen('hello') * 2", core.Number(10)},
		{"max(3, min(10, 7))", core.Number(7)},
		{"ABS(-2)", core.Number(2)},
		{"if(1 > 2, 'yes', 'no')", core.String("no")},
		{"substr('hello', 1)", core.String("ello")},
		{"eval('arg1 * arg2', 6, 7)", core.Number(42)},
		{"ifvalid(nonsense, 5)", core.Number(5)},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			got := eval(tc.code)
			if !got.IsOk() || !got.Equal(tc.want) || got.IsString() != tc.want.IsString() {
				t.Fatalf("got %v, wanted %v", got, tc.want)
			}
		})
	}
}

func TestExpressionDates(t *testing.T) {
	// The literals resolve against the current year, so compare
	// them with each other.
	if got := eval("19.Feb == 19.2."); !got.BoolValue() {
		t.Fatal(got)
	}
	if got := eval("19.feb"); got.NumberValue() != 49 {
		t.Fatal(got)
	}
}

func TestExpressionErrors(t *testing.T) {
	tests := []struct {
		code string
		kind core.ErrorKind
		msg  string
	}{
		{"78 / 0", core.DivisionByZero, "division by zero"},
		{"(78 / 0) + 1", core.DivisionByZero, ""},
		{"1 +", core.Syntax, "missing term"},
		{"(1 + 2", core.Syntax, "missing ')'"},
		{"1 + 2)", core.Syntax, "trailing garbage: ')'"},
		{"* 3", core.Syntax, "invalid unary operator"},
		{"3 ! 4", core.Syntax, "NOT operator not allowed here"},
		{"x := 4", core.Syntax, "nested assignment not allowed"},
		{"'abc", core.Syntax, ""},
		{"12:x", core.Syntax, ""},
		{"nosuchthing", core.NotFound, "no variable named 'nosuchthing'"},
		{"nosuchfunc(1)", core.NotFound, ""},
		{"abs(1, 2)", core.Syntax, "too many arguments for 'abs'"},
		{"substr('x')", core.Syntax, "missing argument 2 (from) in call to 'substr'"},
		{"max(1 2)", core.Syntax, "missing comma or closing ')'"},
		{"delay(1)", core.AsyncNotAllowed, ""},
		{"error('oops')", core.User, "oops"},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			got := eval(tc.code)
			if got.ErrorKind() != tc.kind {
				t.Fatalf("got %v", got)
			}
			if tc.msg != "" && got.Err().Msg != tc.msg {
				t.Fatalf("message %q", got.Err().Msg)
			}
		})
	}
}

func TestExpressionNull(t *testing.T) {
	for _, code := range []string{"null + 1", "1 * undefined", "abs(null)", "find('abc', 'x')"} {
		if got := eval(code); !got.IsNull() {
			t.Fatalf("%s: got %v", code, got)
		}
	}
}

func TestErrorPosition(t *testing.T) {
	got := eval("1 + (2 * ")
	if got.ErrorKind() != core.Syntax || got.Pos != len("1 + (2 * ") {
		t.Fatal(got, got.Pos)
	}
}

func TestOperatorModes(t *testing.T) {
	c := newContext("1 = 1")
	c.OperatorMode = core.C
	if got := c.EvaluateSynchronously(core.Unspecific); got.ErrorKind() != core.Syntax {
		t.Fatalf("C mode: %v", got)
	}

	c = newContext("1 = 1")
	c.OperatorMode = core.Pascal
	if got := c.EvaluateSynchronously(core.Unspecific); !got.BoolValue() {
		t.Fatalf("Pascal mode: %v", got)
	}
}

func TestLookups(t *testing.T) {
	c := newContext("temp * 2 + offset(1)")
	c.Values = func(name string) (core.Value, bool) {
		if name == "temp" {
			return core.Number(21), true
		}
		return core.Value{}, false
	}
	c.Functions = func(name string) *builtins.Descriptor {
		if name != "offset" {
			return nil
		}
		return &builtins.Descriptor{
			Name: "offset",
			Args: []builtins.Arg{{Name: "x", Types: builtins.Numeric}},
			Impl: func(call *builtins.Call) {
				call.Finish(core.Number(call.Arg(0).NumberValue() + 100))
			},
		}
	}
	if got := c.EvaluateSynchronously(core.Unspecific); got.NumberValue() != 143 {
		t.Fatal(got)
	}
}

func TestCyclicReference(t *testing.T) {
	c := newContext("self + 1")
	c.Values = func(name string) (core.Value, bool) {
		if name == "self" {
			return c.EvaluateSynchronously(core.Unspecific), true
		}
		return core.Value{}, false
	}
	got := c.EvaluateSynchronously(core.Unspecific)
	if got.ErrorKind() != core.CyclicReference {
		t.Fatal(got)
	}
	if c.Evaluating() {
		t.Fatal("still evaluating")
	}
	if err := c.TriggerEvaluation(core.ExternalTrigger); err != nil {
		t.Fatal(err)
	}
}

func TestSyntaxCheck(t *testing.T) {
	called := false
	c := newContext("sideeffect(1) + 2")
	c.Functions = func(name string) *builtins.Descriptor {
		return &builtins.Descriptor{
			Name: name,
			Args: []builtins.Arg{{Name: "x", Types: builtins.Any}},
			Impl: func(call *builtins.Call) {
				called = true
				call.Finish(core.Number(1))
			},
		}
	}
	if got := c.Evaluate(core.SyntaxCheck); got.IsError() {
		t.Fatal(got)
	}
	if called {
		t.Fatal("syntax check called a function")
	}

	c.SetCode("sideeffect(1 +) + 2")
	if got := c.Evaluate(core.SyntaxCheck); got.ErrorKind() != core.Syntax {
		t.Fatal(got)
	}
}

func TestEvalErrorIsNull(t *testing.T) {
	got := eval("eval('1 +')")
	if !got.IsNull() || !strings.Contains(got.Err().Msg, "eval() error") {
		t.Fatal(got)
	}
}

func TestTriggerEvaluation(t *testing.T) {
	c := newContext("6 * 7")
	var got core.Value
	var mode core.EvalMode
	c.OnResult = func(v core.Value, m core.EvalMode) {
		got, mode = v, m
	}
	if err := c.TriggerEvaluation(core.ExternalTrigger); err != nil {
		t.Fatal(err)
	}
	if got.NumberValue() != 42 || mode != core.ExternalTrigger {
		t.Fatal(got, mode)
	}
}

func TestSetCode(t *testing.T) {
	c := newContext("1")
	if c.SetCode("1") {
		t.Fatal("same code reported as changed")
	}
	if !c.SetCode("2") {
		t.Fatal("changed code not reported")
	}
	if got := newContext("").EvaluateSynchronously(core.Unspecific); !got.IsNull() {
		t.Fatal(got)
	}
}

func TestSubstitutePlaceholders(t *testing.T) {
	c := newContext("")
	c.Values = func(name string) (core.Value, bool) {
		if name == "room" {
			return core.String("kitchen"), true
		}
		return core.Value{}, false
	}
	got, err := c.SubstitutePlaceholders("@{room}: @{20 + 1.5} degrees, @{null}, @{nope}")
	if want := "kitchen: 21.5 degrees, null, null"; got != want {
		t.Fatalf("got %q", got)
	}
	if core.KindOf(err) != core.NotFound {
		t.Fatal(err)
	}

	got, err = c.SubstitutePlaceholders("plain @{1")
	if got != "plain @{1" || core.KindOf(err) != core.Syntax {
		t.Fatal(got, err)
	}
}
