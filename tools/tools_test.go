package tools

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/crew"
)

var registry = builtins.NewRegistry(builtins.All())

const rules = `
constants:
  limit: 20
rules:
  - name: hot
    trigger: temp > limit
    action: |
      var msg = 'hot ' + temp;
      setglobal('alarms', ifvalid(global('alarms'), 0) + 1);
      emit('alarm', msg)
  - name: typo
    trigger: strln(room) > 3
    action: emit('x', 1)
  - name: slow
    trigger: delay(1)
    action: "1"
`

func analyze(t *testing.T) *RuleSetAnalysis {
	rs, err := crew.ParseRules([]byte(rules))
	if err != nil {
		t.Fatal(err)
	}
	return Analyze(rs, registry)
}

func TestScan(t *testing.T) {
	u := Scan(`var x = 1; try { y(2) } catch as e { log(e) }; // w
is_weekday(mon) && z && x > "q"`)
	if !reflect.DeepEqual(u.Names, []string{"z"}) {
		t.Fatal(u.Names)
	}
	if !reflect.DeepEqual(u.Calls, []string{"is_weekday", "log", "y"}) {
		t.Fatal(u.Calls)
	}
	if !reflect.DeepEqual(u.Declared, []string{"e", "x"}) {
		t.Fatal(u.Declared)
	}
}

func TestAnalyze(t *testing.T) {
	a := analyze(t)

	if !reflect.DeepEqual(a.Constants, []string{"limit"}) {
		t.Fatal(a.Constants)
	}
	if !reflect.DeepEqual(a.HostVariables, []string{"room", "temp"}) {
		t.Fatal(a.HostVariables)
	}
	if !reflect.DeepEqual(a.Topics, []string{"alarm", "x"}) {
		t.Fatal(a.Topics)
	}
	if !reflect.DeepEqual(a.Globals, []string{"alarms"}) {
		t.Fatal(a.Globals)
	}
	if !reflect.DeepEqual(a.UnknownFunctions, []string{"strln"}) {
		t.Fatal(a.UnknownFunctions)
	}

	var suggested, async bool
	for _, msg := range a.Errors {
		if strings.Contains(msg, "did you mean 'strlen'") {
			suggested = true
		}
		if strings.Contains(msg, "asynchronous function 'delay'") {
			async = true
		}
	}
	if !suggested || !async {
		t.Fatal(a.Errors)
	}
}

func TestDot(t *testing.T) {
	var out bytes.Buffer
	if err := Dot(analyze(t), &out, "hot"); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	for _, want := range []string{
		`"v:temp" -> "r:hot"`,
		`"r:hot" -> "t:alarm" [label="emit"]`,
		`"r:hot" -> "g:alarms"`,
		`trigger: temp &gt; limit`,
		`color="red"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("no %s in\n%s", want, s)
		}
	}
	if strings.Contains(s, `"v:limit"`) {
		t.Fatal("constant drawn as a variable")
	}
}

func TestMermaid(t *testing.T) {
	var out bytes.Buffer
	if err := Mermaid(analyze(t), &out, nil); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.HasPrefix(s, "graph LR\n") || !strings.Contains(s, "-- emit -->") {
		t.Fatal(s)
	}
}

func TestSignature(t *testing.T) {
	d := &builtins.Descriptor{
		Name: "round",
		Args: []builtins.Arg{
			{Name: "x", Types: builtins.Numeric},
			{Name: "precision", Types: builtins.Numeric | builtins.Optional},
		},
	}
	if got := Signature(d); got != "round(x: numeric[, precision: numeric])" {
		t.Fatal(got)
	}
}

func TestRenderBuiltinPage(t *testing.T) {
	sets := map[string][]*builtins.Descriptor{
		"host": crew.HostFunctions(),
	}
	var out bytes.Buffer
	if err := RenderBuiltinPage("Functions", []string{"host"}, sets, &out, nil); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.Contains(s, `id="emit"`) || !strings.Contains(s, "<code>name</code>") {
		t.Fatal(s)
	}

	if err := RenderBuiltinPage("Functions", []string{"guest"}, sets, &out, nil); err == nil {
		t.Fatal("unknown section accepted")
	}
}
