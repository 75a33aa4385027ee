package storage

import (
	"context"
	"testing"

	"github.com/Comcast/tempo/core"
)

func TestEncoding(t *testing.T) {
	for _, v := range []core.Value{core.Number(1.5), core.String("tacos"), core.String(""), core.NullValue("")} {
		js, err := Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Decode(js)
		if err != nil {
			t.Fatal(err)
		}
		if got.IsNull() != v.IsNull() || got.IsString() != v.IsString() || !got.Equal(v) {
			t.Fatalf("%v became %v", v, got)
		}
	}
	if _, err := Encode(core.ErrorValue(core.User, "no")); err == nil {
		t.Fatal("encoded an error")
	}
	if _, err := Decode([]byte(`{"a":1}`)); err == nil {
		t.Fatal("decoded an object")
	}
}

func TestMemory(t *testing.T) {
	var s Storage = NewMemory()
	ctx := context.Background()

	if err := s.MakeCrew(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	if err := s.MakeCrew(ctx, "c"); err == nil {
		t.Fatal("made crew twice")
	}
	if err := s.WriteState(ctx, "c", []*Variable{{Name: "x", Value: core.Number(1)}}); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "c", "x"); err != nil || v.NumberValue() != 1 {
		t.Fatal(v, err)
	}
	if err := s.WriteState(ctx, "c", []*Variable{{Name: "x", Deleted: true}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "c", "x"); err != NotFound {
		t.Fatal(err)
	}
	if vs, err := s.GetCrew(ctx, "c"); err != nil || len(vs) != 0 {
		t.Fatal(vs, err)
	}
}
