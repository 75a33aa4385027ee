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
)

const (
	rads = math.Pi / 180
	degs = 180 / math.Pi

	sunDiameter     = 0.53
	airRefraction   = 34.0 / 60.0
	twilightDegrees = 6.0
)

// SunParams are times of day in fractional hours, local time.
type SunParams struct {
	Sunrise   float64
	Sunset    float64
	Noon      float64
	Dawn      float64
	Dusk      float64
	DayLength float64
}

// daysSince2000 is the number of days relative to J2000.0 at hour h.
// The integer divisions are intentional.
func daysSince2000(y, m, d int, h float64) float64 {
	n := -7*(y+(m+9)/12)/4 + 275*m/9 + d
	n += y * 367
	return float64(n) - 730531.5 + h/24
}

// rangeRad normalizes an angle to [0, 2*pi).
func rangeRad(x float64) float64 {
	b := x / (2 * math.Pi)
	a := 2 * math.Pi * (b - math.Trunc(b))
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// hourAngle computes the sun's hour angle at the given elevation
// correction (radians) for a declination.
func hourAngle(lat, declination, correction float64) float64 {
	if lat < 0 {
		correction = -correction
	}
	fo := math.Tan(declination+correction) * math.Tan(lat*rads)
	if fo > 0.99999 {
		fo = 1
	}
	return math.Asin(fo) + math.Pi/2
}

// Sun computes sunrise, sunset, and twilight for the date of t in t's
// location.
func Sun(t time.Time, g GeoLocation) SunParams {
	_, offset := t.Zone()
	tz := float64(offset) / 3600
	y, m, day := t.Date()

	d := daysSince2000(y, int(m), day, 12)

	l := rangeRad(280.461*rads + .9856474*rads*d)
	anomaly := rangeRad(357.528*rads + .9856003*rads*d)
	lambda := rangeRad(l + 1.915*rads*math.Sin(anomaly) + .02*rads*math.Sin(2*anomaly))
	obliq := 23.439*rads - .0000004*rads*d
	alpha := math.Atan2(math.Cos(obliq)*math.Sin(lambda), math.Cos(lambda))
	delta := math.Asin(math.Sin(obliq) * math.Sin(lambda))

	ll := l - alpha
	if l < math.Pi {
		ll += 2 * math.Pi
	}
	equation := 1440 * (1 - ll/math.Pi/2)

	ha := hourAngle(g.Latitude, delta, rads*(0.5*sunDiameter+airRefraction))
	hb := hourAngle(g.Latitude, delta, rads*twilightDegrees)
	twilight := 12 * (hb - ha) / math.Pi

	dayLength := degs * ha / 7.5
	if dayLength < 0.0001 {
		dayLength = 0
	}

	base := tz - g.Longitude/15 + equation/60
	p := SunParams{
		Sunrise:   12 - 12*ha/math.Pi + base,
		Sunset:    12 + 12*ha/math.Pi + base,
		DayLength: dayLength,
	}
	p.Noon = p.Sunrise + 12*ha/math.Pi
	if p.Noon > 24 {
		p.Noon -= 24
	}
	if p.Sunrise > 24 {
		p.Sunrise -= 24
	}
	if p.Sunset > 24 {
		p.Sunset -= 24
	}
	p.Dawn = p.Sunrise - twilight
	p.Dusk = p.Sunset + twilight
	return p
}
