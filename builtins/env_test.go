package builtins

import (
	"time"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"

	"github.com/rs/zerolog"
)

// testEnv is a minimal timed Env.
type testEnv struct {
	clock    *sched.Manual
	mode     core.EvalMode
	geo      *GeoLocation
	logger   zerolog.Logger
	offset   int
	frozen   map[int]*core.FrozenResult
	nextEval time.Time
}

func newTestEnv(start time.Time) *testEnv {
	return &testEnv{
		clock:  sched.NewManual(start),
		mode:   core.Timed,
		logger: testutil.Quiet,
		frozen: make(map[int]*core.FrozenResult),
	}
}

func (e *testEnv) Scheduler() core.Scheduler    { return e.clock }
func (e *testEnv) Mode() core.EvalMode            { return e.mode }
func (e *testEnv) Geo() *GeoLocation              { return e.geo }
func (e *testEnv) Logger() *zerolog.Logger        { return &e.logger }
func (e *testEnv) LogLevelOffset() int            { return e.offset }
func (e *testEnv) SetLogLevelOffset(offset int)   { e.offset = offset }
func (e *testEnv) Eval(string, []core.Value, func(core.Value)) {}

func (e *testEnv) Unfreeze(pos int) bool {
	_, have := e.frozen[pos]
	delete(e.frozen, pos)
	return have
}

func (e *testEnv) GetFrozen(v *core.Value) *core.FrozenResult {
	f, have := e.frozen[v.Pos]
	if !have {
		return nil
	}
	*v = f.Value.At(v.Pos)
	return f
}

func (e *testEnv) NewFreeze(existing *core.FrozenResult, v core.Value, until time.Time, update bool) *core.FrozenResult {
	if existing == nil {
		existing = &core.FrozenResult{Value: v, Until: until}
		e.frozen[v.Pos] = existing
	} else if update || core.IsNever(until) || !existing.Frozen(e.clock.Now()) {
		existing.Value = v
		existing.Until = until
	}
	e.UpdateNextEval(existing.Until)
	return existing
}

func (e *testEnv) UpdateNextEval(t time.Time) {
	if core.IsNever(t) || t.Equal(core.Infinite) {
		return
	}
	if core.IsNever(e.nextEval) || t.Before(e.nextEval) {
		e.nextEval = t
	}
}

// call runs a builtin by name with arguments at positions 10, 20, ...
func (e *testEnv) call(name string, args ...core.Value) core.Value {
	fn := NewRegistry(All()).Lookup(name)
	if fn == nil {
		panic("no builtin " + name)
	}
	for i := range args {
		args[i] = args[i].At(10 * (i + 1))
	}
	var result core.Value
	got := false
	Invoke(e, fn, args, 0, func(v core.Value) {
		result, got = v, true
	})
	if !got {
		return core.NullValue("not finished")
	}
	return result
}

func n(f float64) core.Value {
	return core.Number(f)
}

func s(str string) core.Value {
	return core.String(str)
}

var cest = time.FixedZone("CEST", 2*3600)

// testEpoch is Tuesday, 1 June 2021, 10:00 CEST.
var testEpoch = time.Date(2021, 6, 1, 10, 0, 0, 0, cest)
