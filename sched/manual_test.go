package sched

import (
	"testing"
	"time"
)

func TestManual(t *testing.T) {
	start := time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var heard []time.Time
	record := func() {
		heard = append(heard, m.Now())
	}

	m.After(2*time.Second, record)
	m.After(time.Second, func() {
		record()
		m.After(500*time.Millisecond, record)
	})
	cancel := m.After(1500*time.Millisecond, record)
	cancel()

	if n := m.Advance(10 * time.Second); n != 3 {
		t.Fatalf("ran %d callbacks", n)
	}
	want := []time.Duration{time.Second, 1500 * time.Millisecond, 2 * time.Second}
	for i, d := range want {
		if !heard[i].Equal(start.Add(d)) {
			t.Fatalf("callback %d at %v", i, heard[i].Sub(start))
		}
	}
	if !m.Now().Equal(start.Add(10 * time.Second)) {
		t.Fatalf("clock at %v", m.Now())
	}
	if m.Pending() != 0 {
		t.Fatal(m.Pending())
	}
}

func TestManualFlush(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	ran := false
	m.After(0, func() { ran = true })
	m.After(time.Minute, func() {})
	if n := m.Flush(); n != 1 || !ran {
		t.Fatal(n, ran)
	}
	if next, ok := m.Next(); !ok || !next.Equal(time.Unix(60, 0)) {
		t.Fatal(next, ok)
	}
}
