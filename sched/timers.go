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

// Package sched provides the clocks and timers that drive
// evaluations.
//
// Timers keeps pending one-shot timers in a backlog ordered by
// trigger time.  Only one time.Timer exists at any point in time: it
// waits for the head of the backlog.  When the head changes, that
// timer is replaced.  This approach is fine for a few hundred timers.
//
// Loop serializes all engine work on one goroutine and implements
// core.Scheduler on top of Timers.  Manual is a virtual clock for
// tests.
package sched

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/tempo/util"
)

var (
	NotFound       = errors.New("not found")
	TooMany        = errors.New("too many")
	IdExists       = errors.New("id exists")
	NotRunning     = errors.New("not running")
	AlreadyRunning = errors.New("already running")
)

// Timer represents some work to be done in the future.
type Timer struct {
	// Id is a unique identifier across all timers managed by a
	// given Timers instance.
	Id string `json:"id"`

	// F is called (in its own goroutine) when the timer fires.
	F func(*Timer) `json:"-"`

	// At is the desired time to execute F.
	At time.Time `json:"time"`

	// Executed is written when F is executed.
	Executed time.Time `json:"executed"`
}

// Timers is a managed set of Timer instances.
type Timers struct {
	Max int `json:"max"`

	sync.Mutex
	backlog []*Timer
	timer   *time.Timer
	stopped bool
}

// NewTimers makes a new instance with the given maximum number of
// pending timers.
func NewTimers(max int) *Timers {
	initial := max / 4
	if initial < 8 {
		initial = 8
	}
	return &Timers{
		Max:     max,
		backlog: make([]*Timer, 0, initial),
	}
}

// Add adds the given timer.
func (ts *Timers) Add(t *Timer) error {
	ts.Lock()
	defer ts.Unlock()

	if ts.stopped {
		return NotRunning
	}
	if len(ts.backlog) >= ts.Max {
		return TooMany
	}
	for _, x := range ts.backlog {
		if x.Id == t.Id {
			return IdExists
		}
	}

	i := sort.Search(len(ts.backlog), func(i int) bool {
		return ts.backlog[i].At.After(t.At)
	})
	ts.backlog = append(ts.backlog, nil)
	copy(ts.backlog[i+1:], ts.backlog[i:])
	ts.backlog[i] = t
	util.Logf("timers add %s at %d", t.Id, i)

	if i == 0 {
		ts.reset()
	}
	return nil
}

// Rem removes the timer with the given id.
func (ts *Timers) Rem(id string) error {
	ts.Lock()
	defer ts.Unlock()

	for i, t := range ts.backlog {
		if t.Id != id {
			continue
		}
		copy(ts.backlog[i:], ts.backlog[i+1:])
		ts.backlog[len(ts.backlog)-1] = nil
		ts.backlog = ts.backlog[:len(ts.backlog)-1]
		util.Logf("timers rem %s at %d", id, i)
		if i == 0 {
			ts.reset()
		}
		return nil
	}
	return NotFound
}

// Len is the number of pending timers.
func (ts *Timers) Len() int {
	ts.Lock()
	defer ts.Unlock()
	return len(ts.backlog)
}

// Next returns the soonest pending timer's time.
func (ts *Timers) Next() (time.Time, bool) {
	ts.Lock()
	defer ts.Unlock()
	if len(ts.backlog) == 0 {
		return time.Time{}, false
	}
	return ts.backlog[0].At, true
}

// Stop drops all pending timers.  Subsequent Adds fail with
// NotRunning.
func (ts *Timers) Stop() {
	ts.Lock()
	defer ts.Unlock()
	ts.stopped = true
	ts.backlog = ts.backlog[:0]
	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
}

// reset replaces the internal timer with one that waits for the head
// of the backlog.  Caller must hold the lock.
func (ts *Timers) reset() {
	if ts.timer != nil {
		ts.timer.Stop()
		ts.timer = nil
	}
	if len(ts.backlog) == 0 {
		return
	}
	d := time.Until(ts.backlog[0].At)
	ts.timer = time.AfterFunc(d, ts.fire)
}

// fire runs every timer that is due.  A stale internal timer might
// call fire early, in which case nothing is due and the head timer
// gets rearmed.
func (ts *Timers) fire() {
	ts.Lock()
	now := time.Now()
	n := 0
	for n < len(ts.backlog) && !ts.backlog[n].At.After(now) {
		n++
	}
	due := make([]*Timer, n)
	copy(due, ts.backlog[:n])
	for i := 0; i < n; i++ {
		ts.backlog[i] = nil
	}
	ts.backlog = ts.backlog[n:]
	ts.reset()
	ts.Unlock()

	for _, t := range due {
		t.Executed = now
		go t.F(t)
	}
}
