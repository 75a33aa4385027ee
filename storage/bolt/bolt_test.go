package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/storage"
)

func TestImpl(t *testing.T) {
	// Just confirm that this code compiles.
	var _ storage.Storage = &Storage{}
}

func TestBasics(t *testing.T) {
	crew := "simpsons"

	s, err := NewStorage(filepath.Join(t.TempDir(), "storage.db"))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if err := s.Close(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	if err := s.MakeCrew(ctx, crew); err != nil {
		t.Fatal(err)
	}

	vs := []*storage.Variable{
		{Name: "likes", Value: core.String("tacos")},
		{Name: "count", Value: core.Number(3)},
	}
	if err := s.WriteState(ctx, crew, vs); err != nil {
		t.Fatal(err)
	}

	if v, err := s.Get(ctx, crew, "likes"); err != nil || v.StringValue() != "tacos" {
		t.Fatal(v, err)
	}
	if v, err := s.Get(ctx, crew, "count"); err != nil || !v.IsNumber() || v.NumberValue() != 3 {
		t.Fatal(v, err)
	}
	if _, err := s.Get(ctx, crew, "nope"); err != storage.NotFound {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "flanders", "likes"); err != storage.NotFound {
		t.Fatal(err)
	}

	vs = []*storage.Variable{
		{Name: "likes", Deleted: true},
		{Name: "count", Value: core.Number(4)},
	}
	if err := s.WriteState(ctx, crew, vs); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCrew(ctx, crew)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "count" || got[0].Value.NumberValue() != 4 {
		t.Fatalf("got %v", got)
	}

	if err := s.WriteState(ctx, crew, []*storage.Variable{{Name: "bad", Value: core.ErrorValue(core.User, "x")}}); err == nil {
		t.Fatal("stored an error")
	}

	if err := s.RemCrew(ctx, crew); err != nil {
		t.Fatal(err)
	}
	if got, err = s.GetCrew(ctx, crew); err != nil || got != nil {
		t.Fatal(got, err)
	}
}
