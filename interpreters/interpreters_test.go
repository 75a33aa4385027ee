package interpreters

import (
	"testing"
)

func TestStandard(t *testing.T) {
	r := Standard()
	for _, name := range []string{"js", "delay", "is_weekday", "cronnext", "strlen"} {
		if r.Lookup(name) == nil {
			t.Fatalf("no %s", name)
		}
	}
}

func TestRegistry(t *testing.T) {
	r, err := Registry(nil, "standard")
	if err != nil {
		t.Fatal(err)
	}
	if r.Lookup("strlen") == nil {
		t.Fatal("no strlen")
	}
	if r.Lookup("js") != nil {
		t.Fatal("js without asking")
	}
	if _, err = Registry(nil, "nonsense"); err == nil {
		t.Fatal("unknown set accepted")
	}
}
