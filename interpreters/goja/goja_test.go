package goja

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/expr"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"
)

func TestExecSimple(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := NewInterpreter()
	x, err := i.Exec(ctx, `var likes = "chips"; likes + "!"`, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s, is := x.(string); !is || s != "chips!" {
		t.Fatalf("got %#v", x)
	}
}

func TestExecArgs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := NewInterpreter()
	x, err := i.Exec(ctx, `args[0] * args[1]`, []interface{}{6.0, 7.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := FromJS(x); v.NumberValue() != 42 {
		t.Fatalf("got %#v", x)
	}
}

func TestExecTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	i := NewInterpreter()
	i.Testing = true
	if _, err := i.Exec(ctx, `for (;;) { sleep(10); }`, nil, nil); err != Interrupted {
		t.Fatalf("surprised by %v", err)
	}
}

func TestExecError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := NewInterpreter()
	if _, err := i.Exec(ctx, `likes + tacos;`, nil, nil); err == nil {
		t.Fatal("didn't protest")
	}
	if _, err := i.Exec(ctx, `_.cronNext("bad")`, nil, nil); err == nil {
		t.Fatal("didn't protest")
	}
}

func TestExecCronNext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := NewInterpreter()
	x, err := i.Exec(ctx, `_.cronNext("* 0 * * *")`, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, is := x.(string)
	if !is {
		t.Fatalf("got %#v", x)
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		t.Fatal(err)
	}
}

func TestCompileCache(t *testing.T) {
	ctx := context.Background()
	i := NewInterpreter()
	p, err := i.Compile(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	q, err := i.Compile(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if p != q {
		t.Fatal("not cached")
	}
}

func TestRequire(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	i := NewInterpreter()
	i.Provider = MakeMapLibraryProvider(map[string]string{
		"square": "function square(x) { return x * x; }",
	})
	x, err := i.Exec(ctx, "require('square');\nsquare(args[0])", []interface{}{3.0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v := FromJS(x); v.NumberValue() != 9 {
		t.Fatalf("got %#v", x)
	}

	if _, err = i.Exec(ctx, "require('cube'); 1", nil, nil); err == nil {
		t.Fatal("unknown library accepted")
	}
}

func TestInlineRequiresNone(t *testing.T) {
	src := "var x = 1; x"
	got, err := InlineRequires(context.Background(), src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != src {
		t.Fatal(got)
	}
}

func TestConversions(t *testing.T) {
	if v := FromJS(nil); !v.IsNull() {
		t.Fatal(v)
	}
	if v := FromJS(true); v.NumberValue() != 1 {
		t.Fatal(v)
	}
	if v := FromJS(map[string]interface{}{"a": int64(1)}); v.StringValue() != `{"a":1}` {
		t.Fatal(v)
	}
	if x, is := ToJS(core.String(`{"b":2}`)).(map[string]interface{}); !is || x["b"] != 2.0 {
		t.Fatalf("%#v", x)
	}
	if x := ToJS(core.String("plain")); x != "plain" {
		t.Fatalf("%#v", x)
	}
	if x := ToJS(core.NullValue("")); x != nil {
		t.Fatalf("%#v", x)
	}
}

func eval(code string) core.Value {
	r := builtins.NewRegistry(builtins.All(), NewInterpreter().Builtins())
	c := expr.NewContext("js", r, sched.NewManual(testutil.Epoch))
	c.Log = testutil.Quiet
	c.SetCode(code)
	return c.EvaluateSynchronously(core.Unspecific)
}

func TestBuiltin(t *testing.T) {
	tests := []struct {
		code string
		want core.Value
	}{
		{"js('args[0] + 1', 41)", core.Number(42)},
		{"js('args.length', 1, 2, 3)", core.Number(3)},
		{"js('\"x\" + args[0].b', '{\"b\": 2}')", core.String("x2")},
		{"js('({a: 1})')", core.String(`{"a":1}`)},
		{"js('1 < 2') + 1", core.Number(2)},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			got := eval(tc.code)
			if !got.IsOk() || !got.Equal(tc.want) || got.IsString() != tc.want.IsString() {
				t.Fatalf("got %v, wanted %v", got, tc.want)
			}
		})
	}

	if got := eval("js('undefined')"); !got.IsNull() {
		t.Fatal(got)
	}
	got := eval("js('nope()')")
	if got.ErrorKind() != core.User || !strings.HasPrefix(got.Err().Msg, "js: ") {
		t.Fatal(got)
	}
}
