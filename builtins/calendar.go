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
	"strings"
	"time"

	"github.com/Comcast/tempo/core"

	"github.com/goodsign/monday"
	"github.com/gorhill/cronexpr"
)

const secondsPerDay = 24 * 60 * 60

// EpochTime converts a time to fractional unix seconds.
func EpochTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromEpoch converts fractional unix seconds to a time in loc.
func FromEpoch(secs float64, loc *time.Location) time.Time {
	whole := math.Floor(secs)
	return time.Unix(int64(whole), int64((secs-whole)*1e9)).In(loc)
}

// callTime is the optional epoch argument i or now.
func callTime(c *Call, i int) time.Time {
	now := c.Now()
	if c.Has(i) {
		return FromEpoch(c.Arg(i).NumberValue(), now.Location())
	}
	return now
}

func timePart(name, doc string, f func(t time.Time) float64) *Descriptor {
	return &Descriptor{
		Name:    name,
		Returns: Numeric,
		Args:    args(Arg{"epochtime", Scalar | Optional}),
		Doc:     doc + "  Uses the current time unless `epochtime` is given.",
		Impl: func(c *Call) {
			num(c, f(callTime(c, 0)))
		},
	}
}

func sunPart(name, doc string, f func(p SunParams) float64) *Descriptor {
	return &Descriptor{
		Name:    name,
		Returns: Numeric | Null,
		Args:    args(Arg{"epochtime", Scalar | Optional}),
		Doc:     doc + "  In seconds since midnight; needs a geolocation.",
		Impl: func(c *Call) {
			g := c.Env.Geo()
			if g == nil {
				ret(c, core.NullValue("no geolocation information available"))
				return
			}
			num(c, f(Sun(callTime(c, 0), *g))*3600)
		},
	}
}

// Calendar returns the time-of-day, date, sun, and cron functions.
func Calendar() []*Descriptor {
	return []*Descriptor{
		{
			Name:    "epochtime",
			Returns: Numeric,
			Doc:     "Current unix time in seconds.",
			Impl: func(c *Call) {
				num(c, EpochTime(c.Now()))
			},
		},
		{
			Name:    "epochdays",
			Returns: Numeric,
			Doc:     "Current unix time in days.",
			Impl: func(c *Call) {
				num(c, EpochTime(c.Now())/secondsPerDay)
			},
		},
		timePart("timeofday", "Seconds since local midnight.", func(t time.Time) float64 {
			return float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
		}),
		timePart("hour", "Hour (0..23).", func(t time.Time) float64 { return float64(t.Hour()) }),
		timePart("minute", "Minute (0..59).", func(t time.Time) float64 { return float64(t.Minute()) }),
		timePart("second", "Second (0..59).", func(t time.Time) float64 { return float64(t.Second()) }),
		timePart("year", "Year.", func(t time.Time) float64 { return float64(t.Year()) }),
		timePart("month", "Month (1..12).", func(t time.Time) float64 { return float64(t.Month()) }),
		timePart("day", "Day of the month (1..31).", func(t time.Time) float64 { return float64(t.Day()) }),
		timePart("weekday", "Day of the week (0=sunday..6).", func(t time.Time) float64 { return float64(t.Weekday()) }),
		timePart("yearday", "Day of the year (0..365).", func(t time.Time) float64 { return float64(t.YearDay() - 1) }),
		sunPart("sunrise", "Time of sunrise.", func(p SunParams) float64 { return p.Sunrise }),
		sunPart("sunset", "Time of sunset.", func(p SunParams) float64 { return p.Sunset }),
		sunPart("dawn", "Start of civil twilight in the morning.", func(p SunParams) float64 { return p.Dawn }),
		sunPart("dusk", "End of civil twilight in the evening.", func(p SunParams) float64 { return p.Dusk }),
		{
			Name:    "cronnext",
			Returns: Numeric | Null,
			Args:    args(Arg{"cronexpr", Text}, Arg{"epochtime", Scalar | Optional}),
			Doc:     "Next unix time matching the cron expression (after now or `epochtime`).",
			Impl: func(c *Call) {
				expr, err := cronexpr.Parse(c.Arg(0).StringValue())
				if err != nil {
					ret(c, core.FromError(core.Errorf(core.User, c.ArgPos(0), "invalid cron expression: %s", err)))
					return
				}
				next := expr.Next(callTime(c, 1))
				if next.IsZero() {
					ret(c, core.NullValue("no next time"))
					return
				}
				num(c, EpochTime(next))
			},
		},
		{
			Name:    "formattime",
			Returns: Text,
			Args:    args(Arg{"time", Scalar | Optional}, Arg{"format", Text | Optional}, Arg{"locale", Text | Optional}),
			Doc: "Formats a unix time (or, for values less than a day, a time of day) with " +
				"strftime-style `%Y %y %m %d %e %H %I %M %S %p %j %a %A %b %B %z %Z %%` and an optional locale such as `de_DE`.",
			Impl: func(c *Call) {
				now := c.Now()
				t := now
				fmtStr := "%Y-%m-%d %H:%M:%S"
				if c.Has(0) {
					secs := c.Arg(0).NumberValue()
					if secs < secondsPerDay {
						t = FromEpoch(secs, time.UTC)
						fmtStr = "%H:%M:%S"
					} else {
						t = FromEpoch(secs, now.Location())
					}
				}
				if c.Has(1) {
					fmtStr = c.Arg(1).StringValue()
				}
				var locale monday.Locale = monday.LocaleEnUS
				if c.Has(2) {
					locale = monday.Locale(c.Arg(2).StringValue())
				}
				ret(c, core.String(Strftime(t, fmtStr, locale)))
			},
		},
	}
}

var strftimeLayouts = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'j': "002",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'z': "-0700",
	'Z': "MST",
}

// Strftime formats t with strftime-style directives.  Names of days
// and months are localized.
func Strftime(t time.Time, format string, locale monday.Locale) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' || i+1 >= len(format) {
			b.WriteByte(ch)
			continue
		}
		i++
		if layout, have := strftimeLayouts[format[i]]; have {
			b.WriteString(monday.Format(t, layout, locale))
			continue
		}
		if format[i] != '%' {
			b.WriteByte('%')
		}
		b.WriteByte(format[i])
	}
	return b.String()
}
