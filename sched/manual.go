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

package sched

import (
	"sort"
	"sync"
	"time"
)

type manualTimer struct {
	at time.Time
	f  func()
}

// Manual is a core.Scheduler with a clock that only moves when told
// to.  Timer callbacks run in Advance (or Flush) on the caller's
// goroutine.
type Manual struct {
	sync.Mutex
	now     time.Time
	pending []*manualTimer
}

// NewManual makes a Manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{
		now: start,
	}
}

func (m *Manual) Now() time.Time {
	m.Lock()
	defer m.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, f func()) func() {
	m.Lock()
	defer m.Unlock()
	t := &manualTimer{
		at: m.now.Add(d),
		f:  f,
	}
	m.pending = append(m.pending, t)
	sort.SliceStable(m.pending, func(i, j int) bool {
		return m.pending[i].at.Before(m.pending[j].at)
	})
	return func() {
		m.Lock()
		defer m.Unlock()
		for i, x := range m.pending {
			if x == t {
				m.pending = append(m.pending[:i], m.pending[i+1:]...)
				return
			}
		}
	}
}

// Pending is the number of timers that haven't fired.
func (m *Manual) Pending() int {
	m.Lock()
	defer m.Unlock()
	return len(m.pending)
}

// Next returns the time of the soonest pending timer.
func (m *Manual) Next() (time.Time, bool) {
	m.Lock()
	defer m.Unlock()
	if len(m.pending) == 0 {
		return time.Time{}, false
	}
	return m.pending[0].at, true
}

// Advance moves the clock forward by d, running due timers in order.
// The clock is set to each timer's time before its callback runs.
// Timers added by callbacks run too if they are due.  Returns the
// number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.Lock()
	end := m.now.Add(d)
	m.Unlock()
	return m.AdvanceTo(end)
}

// AdvanceTo is Advance with an absolute time.
func (m *Manual) AdvanceTo(end time.Time) int {
	n := 0
	for {
		m.Lock()
		if len(m.pending) == 0 || m.pending[0].at.After(end) {
			if m.now.Before(end) {
				m.now = end
			}
			m.Unlock()
			return n
		}
		t := m.pending[0]
		m.pending = m.pending[1:]
		if m.now.Before(t.at) {
			m.now = t.at
		}
		m.Unlock()
		t.f()
		n++
	}
}

// Flush runs the callbacks that are due now, such as those scheduled
// with a zero delay.
func (m *Manual) Flush() int {
	return m.Advance(0)
}
