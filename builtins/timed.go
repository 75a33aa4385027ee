/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package builtins

import (
	"math"
	"time"

	"github.com/Comcast/tempo/core"
)

const (
	// IsTimeTolerance is how long is_time() stays true after the
	// target time.
	IsTimeTolerance = 5 * time.Second

	// MinRetrigger is the shortest retrigger interval of
	// testlater().
	MinRetrigger = 10 * time.Second

	// MinEvery is the shortest interval of every().
	MinEvery = 500 * time.Millisecond
)

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func midnight(t time.Time, days int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, t.Location())
}

// Timed returns the functions that freeze results and request
// re-evaluation.  They're meant for trigger expressions evaluated in
// timed contexts.
func Timed() []*Descriptor {
	return []*Descriptor{
		{
			Name:    "is_weekday",
			Returns: Numeric,
			Args:    args(Arg{"weekday", Scalar | Multiple}),
			Doc:     "True if today is one of the given weekdays (0 or 7 = sunday, 1 = monday, ...).",
			Impl:    isWeekday,
		},
		{
			Name:    "after_time",
			Returns: Numeric,
			Args:    args(Arg{"time_or_hours", Scalar}, Arg{"minutes", Scalar | Optional}, Arg{"seconds", Scalar | Optional}),
			Doc:     "True after the given time of day (seconds since midnight, or hours and minutes).",
			Impl: func(c *Call) {
				timeCheck(c, false)
			},
		},
		{
			Name:    "is_time",
			Returns: Numeric,
			Args:    args(Arg{"time_or_hours", Scalar}, Arg{"minutes", Scalar | Optional}, Arg{"seconds", Scalar | Optional}),
			Doc:     "True for a few seconds after the given time of day (seconds since midnight, or hours and minutes).",
			Impl: func(c *Call) {
				timeCheck(c, true)
			},
		},
		{
			Name:    "initial",
			Returns: Numeric,
			Doc:     "True if this is the initial evaluation.",
			Impl: func(c *Call) {
				ret(c, core.Bool(c.Env.Mode().Base() == core.Initial))
			},
		},
		{
			Name:    "testlater",
			Returns: Any,
			Args:    args(Arg{"seconds", Scalar}, Arg{"test", Any}, Arg{"retrigger", Scalar | Optional}),
			Doc: "Undefined until `seconds` after a non-timed evaluation, then the value of `test`. " +
				"With `retrigger`, a true `test` starts another period.",
			Impl: testLater,
		},
		{
			Name:    "every",
			Returns: Numeric,
			Args:    args(Arg{"interval", Scalar}, Arg{"syncoffset", Scalar | Optional}),
			Doc: "True once every `interval` seconds.  With `syncoffset`, the periods are aligned " +
				"to wall clock time plus the offset.",
			Impl: every,
		},
		{
			Name:    "between_dates",
			Returns: Numeric,
			Args:    args(Arg{"from", Scalar}, Arg{"to", Scalar}),
			Doc:     "True between two dates given as days of the year (such as `1.Dec`), wrapping around the new year.",
			Impl:    betweenDates,
		},
	}
}

func isWeekday(c *Call) {
	now := c.Now()
	res := core.NullValue("").At(c.ArgPos(0))
	frozen := c.Env.GetFrozen(&res)
	if frozen == nil || !frozen.Frozen(now) {
		today := int(now.Weekday())
		is := false
		for _, a := range c.Args {
			w := int(a.IntValue())
			if w == 7 {
				w = 0
			}
			if w == today {
				is = true
				break
			}
		}
		res = core.Bool(is).At(c.ArgPos(0))
		c.Env.NewFreeze(frozen, res, midnight(now, 1), false)
	}
	ret(c, core.Bool(res.BoolValue()))
}

func timeCheck(c *Call, isTime bool) {
	now := c.Now()
	secs := c.Arg(0).NumberValue()
	if c.Has(1) {
		secs = (secs*60+c.Arg(1).NumberValue())*60 + c.Arg(2).NumberValue()
	}
	v := core.Number(secs).At(c.ArgPos(0))
	frozen := c.Env.GetFrozen(&v)
	secs = v.NumberValue()

	daySecs := float64(now.Hour()*3600 + now.Minute()*60 + now.Second())
	met := daySecs >= secs
	target := midnight(now, 0).Add(seconds(secs))
	res := met
	if isTime && met && daySecs < secs+IsTimeTolerance.Seconds() {
		c.Env.NewFreeze(frozen, v, target.Add(IsTimeTolerance), false)
	} else {
		if met {
			target = midnight(now, 1).Add(seconds(secs))
			if isTime {
				res = false
			}
		}
		c.Env.NewFreeze(frozen, v, target, false)
	}
	ret(c, core.Bool(res))
}

func testLater(c *Call) {
	now := c.Now()
	secs := c.Arg(0).NumberValue()
	retrigger := c.Arg(2).BoolValue()
	if retrigger && secs < MinRetrigger.Seconds() {
		secs = MinRetrigger.Seconds()
	}
	v := core.Number(secs).At(c.ArgPos(0))
	frozen := c.Env.GetFrozen(&v)
	mode := c.Env.Mode().Base()
	if mode != core.Timed {
		if mode != core.Initial || retrigger {
			c.Env.NewFreeze(frozen, v, now.Add(seconds(secs)), true)
		}
	} else if frozen != nil && !frozen.Frozen(now) {
		test := c.Arg(1)
		if retrigger && test.BoolValue() {
			c.Env.NewFreeze(frozen, v, now.Add(seconds(secs)), false)
		}
		ret(c, test)
		return
	}
	ret(c, core.NullValue("testlater() not yet ready"))
}

func every(c *Call) {
	now := c.Now()
	interval := c.Arg(0).NumberValue()
	if interval < MinEvery.Seconds() {
		interval = MinEvery.Seconds()
	}
	v := core.Number(interval).At(c.ArgPos(0))
	frozen := c.Env.GetFrozen(&v)
	triggered := false
	if frozen == nil || !frozen.Frozen(now) {
		triggered = frozen != nil
		next := now.Add(seconds(interval))
		if c.Has(1) {
			offset := c.Arg(1).NumberValue()
			periods := math.Floor((EpochTime(now)-offset)/interval) + 1
			next = FromEpoch(periods*interval+offset, now.Location())
		}
		c.Env.NewFreeze(frozen, v, next, true)
	}
	ret(c, core.Bool(triggered))
}

// InDateRange reports whether yearday is in [from, to], wrapping
// around the end of the year when from > to, and the number of days
// until that changes.
func InDateRange(yearday, from, to, daysInYear int) (bool, int) {
	in := yearday >= from && yearday <= to
	if from > to {
		in = yearday >= from || yearday <= to
	}
	next := daysInYear
	for _, boundary := range []int{from, to + 1} {
		d := ((boundary-yearday)%daysInYear + daysInYear) % daysInYear
		if d > 0 && d < next {
			next = d
		}
	}
	return in, next
}

func betweenDates(c *Call) {
	now := c.Now()
	y := now.Year()
	daysInYear := time.Date(y, 12, 31, 12, 0, 0, 0, now.Location()).YearDay()
	in, days := InDateRange(now.YearDay()-1, int(c.Arg(0).IntValue()), int(c.Arg(1).IntValue()), daysInYear)
	c.Env.UpdateNextEval(midnight(now, days))
	ret(c, core.Bool(in))
}
