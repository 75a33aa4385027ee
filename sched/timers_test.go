package sched

import (
	"sync"
	"testing"
	"time"
)

func TestTimersOrder(t *testing.T) {
	ts := NewTimers(10)
	defer ts.Stop()

	var (
		mu    sync.Mutex
		heard []string
		done  = make(chan bool, 10)
	)
	f := func(t *Timer) {
		mu.Lock()
		heard = append(heard, t.Id)
		mu.Unlock()
		done <- true
	}

	add := func(id string, d time.Duration) {
		if err := ts.Add(&Timer{Id: id, At: time.Now().Add(d), F: f}); err != nil {
			t.Fatal(err)
		}
	}

	add("3", 300*time.Millisecond)
	add("2", 200*time.Millisecond)
	add("1", 100*time.Millisecond)
	if err := ts.Rem("2"); err != nil {
		t.Fatal(err)
	}
	add("4", 400*time.Millisecond)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timers didn't fire")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"1", "3", "4"}
	if len(heard) != len(want) {
		t.Fatalf("heard %v", heard)
	}
	for i, id := range want {
		if heard[i] != id {
			t.Fatalf("heard %v instead of %v", heard, want)
		}
	}
}

func TestTimersErrors(t *testing.T) {
	ts := NewTimers(1)
	noop := func(*Timer) {}
	at := time.Now().Add(time.Hour)

	if err := ts.Add(&Timer{Id: "a", At: at, F: noop}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(&Timer{Id: "b", At: at, F: noop}); err != TooMany {
		t.Fatalf("expected TooMany, not %v", err)
	}
	if err := ts.Rem("b"); err != NotFound {
		t.Fatalf("expected NotFound, not %v", err)
	}
	if next, ok := ts.Next(); !ok || !next.Equal(at) {
		t.Fatalf("next %v %v", next, ok)
	}

	ts.Stop()
	if n := ts.Len(); n != 0 {
		t.Fatalf("%d timers left", n)
	}
	if err := ts.Add(&Timer{Id: "a", At: at, F: noop}); err != NotRunning {
		t.Fatalf("expected NotRunning, not %v", err)
	}
}

func TestTimersIdExists(t *testing.T) {
	ts := NewTimers(10)
	defer ts.Stop()
	noop := func(*Timer) {}
	at := time.Now().Add(time.Hour)
	ts.Add(&Timer{Id: "a", At: at, F: noop})
	if err := ts.Add(&Timer{Id: "a", At: at, F: noop}); err != IdExists {
		t.Fatalf("expected IdExists, not %v", err)
	}
}
