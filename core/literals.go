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

package core

import (
	"strconv"
	"strings"
	"time"
)

var monthNames = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// ParseNumber parses the leading number, time, or date in s (after
// optional white space).  Trailing text is ignored.
func ParseNumber(s string, now time.Time) (float64, error) {
	s = strings.TrimLeft(s, " \t\r\n")
	f, _, err := parseLiteral(s, now)
	if err != nil {
		return 0, err
	}
	return f, nil
}

// parseLiteral parses a numeric, time, or date literal at the start
// of s.  Returns the value and the number of bytes consumed.
func parseLiteral(s string, now time.Time) (float64, int, *Error) {
	num, o := scanFloat(s)
	if o == 0 {
		return 0, 0, NewError(Syntax, "invalid number, time or date")
	}
	if o >= len(s) {
		return num, o, nil
	}

	if s[o] == ':' {
		t, i := scanFloat(s[o+1:])
		if i == 0 {
			return 0, 0, NewError(Syntax, "invalid time specification - use hh:mm or hh:mm:ss")
		}
		o += i + 1
		num = (num*60 + t) * 60
		if o < len(s) && s[o] == ':' {
			t, i = scanFloat(s[o+1:])
			if i == 0 {
				return 0, 0, NewError(Syntax, "Time specification has invalid seconds - use hh:mm:ss")
			}
			o += i + 1
			num += t
		}
		return num, o, nil
	}

	d, m := -1, -1
	switch {
	case s[o-1] == '.' && isAlpha(s[o]):
		for i, name := range monthNames {
			if len(s) >= o+3 && strings.EqualFold(s[o:o+3], name) {
				m = i + 1
				d = int(num)
				break
			}
		}
		if d < 0 {
			return 0, 0, NewError(Syntax, "Invalid date specification - use dd.monthname")
		}
		o += 3
	case s[o] == '.':
		var ok bool
		if d, m, o, ok = scanDayMonth(s); !ok {
			return 0, 0, NewError(Syntax, "Invalid date specification - use dd.mm.")
		}
	}
	if d >= 0 {
		num = float64(Yearday(now, m, d))
	}
	return num, o, nil
}

// Yearday returns the zero-based day of the year in now's year for
// the given month and day.  Out-of-range days roll over like
// mktime.
func Yearday(now time.Time, month, day int) int {
	// Noon avoids DST surprises near midnight.
	t := time.Date(now.Year(), time.Month(month), day, 12, 0, 0, 0, now.Location())
	return t.YearDay() - 1
}

// scanDayMonth reads "dd.mm." at the start of s.
func scanDayMonth(s string) (int, int, int, bool) {
	d, o := scanDigits(s)
	if o == 0 || o >= len(s) || s[o] != '.' {
		return 0, 0, 0, false
	}
	o++
	m, i := scanDigits(s[o:])
	if i == 0 {
		return 0, 0, 0, false
	}
	o += i
	if o >= len(s) || s[o] != '.' {
		return 0, 0, 0, false
	}
	return d, m, o + 1, true
}

func scanDigits(s string) (int, int) {
	n, i := 0, 0
	for i < len(s) && isDigit(s[i]) {
		n = n*10 + int(s[i]-'0')
		i++
	}
	return n, i
}

// scanFloat reads the longest floating point number (with optional
// sign and exponent) or 0x-prefixed hex integer at the start of s.
// Returns the number of bytes consumed, which is 0 if there's no
// number.
func scanFloat(s string) (float64, int) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if i+2 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') && isHex(s[i+2]) {
		j := i + 2
		for j < len(s) && isHex(s[j]) {
			j++
		}
		n, err := strconv.ParseUint(s[i+2:j], 16, 64)
		if err != nil {
			return 0, 0
		}
		f := float64(n)
		if s[0] == '-' {
			f = -f
		}
		return f, j
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:i], "."), 64)
	if err != nil {
		return 0, 0
	}
	return f, i
}
