package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/tempo/core"
)

func writeTemp(t *testing.T, name, content string) string {
	filename := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestReadConfig(t *testing.T) {
	filename := writeTemp(t, "tempo.yaml", `
crew: house
operatorMode: pascal
maxBlockTime: 20ms
builtins: [standard, timed]
constants:
  limit: 3
run:
  linger: 2s
`)
	cfg, err := ReadConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crew != "house" || cfg.operatorMode != core.Pascal || cfg.MaxBlockTime != 20*time.Millisecond {
		t.Fatalf("%#v", cfg)
	}
	if cfg.Run.Linger != 2*time.Second || !cfg.Run.HaltOnInputEOF {
		t.Fatalf("%#v", cfg.Run)
	}
	r, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	if r.Lookup("strlen") == nil || r.Lookup("js") != nil {
		t.Fatal(r.Names())
	}

	for _, bad := range []string{
		"operatorMode: basic\n",
		"nonsense: 1\n",
		"constants: {x: [1, 2]}\n",
	} {
		if _, err := ReadConfig(writeTemp(t, "bad.yaml", bad)); err == nil {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestEngine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Constants = map[string]interface{}{"limit": 20}
	if err := cfg.check(); err != nil {
		t.Fatal(err)
	}
	e, err := newEngine(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}

	v, err := e.expression(ctx, "limit * 2 + 2")
	if err != nil || v.NumberValue() != 42 {
		t.Fatal(v, err)
	}

	v, err = e.run(ctx, "var x = limit; delay(0.01); x + 1", core.Script)
	if err != nil || v.NumberValue() != 21 {
		t.Fatal(v, err)
	}

	if v, _ = e.run(ctx, "var y = 7", core.Script|core.KeepVars); !v.IsOk() {
		t.Fatal(v)
	}
	if v, _ = e.run(ctx, "y * 6", core.Script|core.KeepVars); v.NumberValue() != 42 {
		t.Fatal(v)
	}
}

func TestCouplings(t *testing.T) {
	if _, err := makeCouplings("carrier-pigeon", nil); err == nil {
		t.Fatal("unknown io accepted")
	}
	cs, err := makeCouplings("std", []string{"-tags"})
	if err != nil {
		t.Fatal(err)
	}
	if cs == nil {
		t.Fatal("no couplings")
	}
	for _, name := range []string{"std", "mqtt", "ws"} {
		if couplingFlags(name) == nil {
			t.Fatal(name)
		}
	}
}

func TestDisplay(t *testing.T) {
	if s := display(core.String("hi")); s != "hi" {
		t.Fatal(s)
	}
	if s := display(core.Number(1.5)); s != "1.5" {
		t.Fatal(s)
	}
}
