package expr

import (
	"testing"
	"time"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"
)

func newTimed(code string, start time.Time) (*TimedContext, *sched.Manual) {
	clock := sched.NewManual(start)
	t := NewTimedContext("timed", registry, clock)
	t.Log = testutil.Quiet
	t.SetCode(code)
	return t, clock
}

func TestTimedIsTime(t *testing.T) {
	noon := time.Date(2021, 6, 1, 12, 0, 0, 0, time.Local)
	c, clock := newTimed("is_time(12:00)", noon.Add(-time.Minute))

	var results []bool
	c.OnResult = func(v core.Value, mode core.EvalMode) {
		if mode != core.Timed {
			t.Fatalf("mode %v", mode)
		}
		results = append(results, v.BoolValue())
	}

	if c.Evaluate(core.Initial).BoolValue() {
		t.Fatal("true before noon")
	}
	if !c.NextEval().Equal(noon) {
		t.Fatalf("next eval %v", c.NextEval())
	}

	// The scheduled re-evaluation at noon is true and asks for
	// another one when the tolerance window closes.
	clock.AdvanceTo(noon)
	if len(results) != 1 || !results[0] {
		t.Fatalf("results %v", results)
	}
	if want := noon.Add(5 * time.Second); !c.NextEval().Equal(want) {
		t.Fatalf("next eval %v", c.NextEval())
	}

	// Within the window the result is stable.
	clock.AdvanceTo(noon.Add(2 * time.Second))
	for i := 0; i < 3; i++ {
		if !c.Evaluate(core.ExternalTrigger).BoolValue() {
			t.Fatal("unstable within the window")
		}
		if want := noon.Add(5 * time.Second); !c.NextEval().Equal(want) {
			t.Fatalf("next eval %v", c.NextEval())
		}
	}

	// After the window it's false until tomorrow.
	clock.AdvanceTo(noon.Add(5 * time.Second))
	if len(results) != 2 || results[1] {
		t.Fatalf("results %v", results)
	}
	if want := noon.AddDate(0, 0, 1); !c.NextEval().Equal(want) {
		t.Fatalf("next eval %v", c.NextEval())
	}
}

func TestTimedNextEvalMinimum(t *testing.T) {
	for _, tt := range []struct {
		start, want time.Time
	}{
		// Both are ahead, so the earlier one wins.
		{testutil.Epoch, time.Date(2021, 6, 1, 10, 30, 0, 0, time.Local)},
		// 10:30 has passed and waits until tomorrow.
		{testutil.Epoch.Add(45 * time.Minute), time.Date(2021, 6, 1, 11, 0, 0, 0, time.Local)},
	} {
		c, _ := newTimed("after_time(11:00) || after_time(10:30)", tt.start)
		c.Evaluate(core.Initial)
		if !c.NextEval().Equal(tt.want) {
			t.Fatalf("from %v: next eval %v, wanted %v", tt.start, c.NextEval(), tt.want)
		}
	}
}

func TestTimedEvery(t *testing.T) {
	c, clock := newTimed("every(10)", testutil.Epoch)
	count := 0
	c.OnResult = func(v core.Value, mode core.EvalMode) {
		if v.BoolValue() {
			count++
		}
	}
	c.Evaluate(core.Initial)
	clock.Advance(time.Minute)
	if count != 6 {
		t.Fatalf("triggered %d times", count)
	}
}

func TestTimedSetCodeReleases(t *testing.T) {
	c, clock := newTimed("is_weekday(1,2,3,4,5)", testutil.Epoch)
	c.Evaluate(core.Initial)
	if _, have := c.Frozen(len("is_weekday(")); !have {
		t.Fatal("nothing frozen")
	}
	if clock.Pending() != 1 {
		t.Fatalf("%d timers", clock.Pending())
	}

	if !c.SetCode("1") {
		t.Fatal("not changed")
	}
	if _, have := c.Frozen(len("is_weekday(")); have {
		t.Fatal("frozen result survived SetCode")
	}
	if clock.Pending() != 0 {
		t.Fatalf("%d timers", clock.Pending())
	}
	if !core.IsNever(c.NextEval()) {
		t.Fatal(c.NextEval())
	}
}

func TestTimedTestLater(t *testing.T) {
	c, clock := newTimed("testlater(30, 'done')", testutil.Epoch)
	var got core.Value
	c.OnResult = func(v core.Value, mode core.EvalMode) {
		got = v
	}
	if v := c.Evaluate(core.ExternalTrigger); !v.IsNull() {
		t.Fatal(v)
	}
	clock.Advance(30 * time.Second)
	if got.StringValue() != "done" {
		t.Fatal(got)
	}
	if _, have := c.Frozen(len("testlater(")); have {
		t.Fatal("expired freeze kept")
	}
	if !core.IsNever(c.NextEval()) {
		t.Fatal(c.NextEval())
	}
}

func TestTimedUnfreeze(t *testing.T) {
	c, _ := newTimed("every(60)", testutil.Epoch)
	c.Evaluate(core.Initial)
	if !c.Unfreeze(len("every(")) {
		t.Fatal("nothing to unfreeze")
	}
	if c.Unfreeze(len("every(")) {
		t.Fatal("unfroze twice")
	}
}

func TestTimedCyclic(t *testing.T) {
	c, _ := newTimed("x", testutil.Epoch)
	var inner error
	c.Values = func(name string) (core.Value, bool) {
		inner = c.TriggerEvaluation(core.ExternalTrigger)
		return core.Number(1), true
	}
	c.Evaluate(core.ExternalTrigger)
	if core.KindOf(inner) != core.CyclicReference {
		t.Fatal(inner)
	}
}
