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
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	notRunning = int64(iota)
	running
)

// Loop runs posted functions one at a time on the goroutine that
// calls Run.  Timer callbacks requested via After are posted to the
// Loop, so everything that touches evaluation contexts happens on
// that one goroutine.
//
// Post, After, and Do are safe to call from any goroutine.
type Loop struct {
	Timers *Timers
	Logger zerolog.Logger

	sync.Mutex
	queue   []func()
	signal  chan struct{}
	ready   chan bool
	running int64
	seq     uint64
}

// NewLoop makes a Loop that allows the given maximum number of
// pending timers.
func NewLoop(maxTimers int, logger zerolog.Logger) *Loop {
	return &Loop{
		Timers: NewTimers(maxTimers),
		Logger: logger,
		signal: make(chan struct{}, 1),
		ready:  make(chan bool, 1),
	}
}

// Now is the wall clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// After arranges for f to be run on the Loop after d.
func (l *Loop) After(d time.Duration, f func()) func() {
	var cancelled int32
	run := func() {
		if atomic.LoadInt32(&cancelled) == 0 {
			f()
		}
	}

	if d <= 0 {
		l.Post(run)
		return func() {
			atomic.StoreInt32(&cancelled, 1)
		}
	}

	id := "t" + strconv.FormatUint(atomic.AddUint64(&l.seq, 1), 10)
	err := l.Timers.Add(&Timer{
		Id: id,
		At: time.Now().Add(d),
		F: func(*Timer) {
			l.Post(run)
		},
	})
	if err != nil {
		l.Logger.Error().Err(err).Str("timer", id).Dur("in", d).Msg("can't add timer")
	}
	return func() {
		atomic.StoreInt32(&cancelled, 1)
		l.Timers.Rem(id)
	}
}

// Post queues f to be run on the Loop.
func (l *Loop) Post(f func()) {
	l.Lock()
	l.queue = append(l.queue, f)
	l.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Do runs f on the Loop and waits for it to return.  Calling Do from
// the Loop's own goroutine deadlocks.
func (l *Loop) Do(ctx context.Context, f func()) error {
	if !l.IsRunning() {
		return NotRunning
	}
	done := make(chan struct{})
	l.Post(func() {
		f()
		close(done)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning tries to report whether Run is currently executing.
func (l *Loop) IsRunning() bool {
	return atomic.LoadInt64(&l.running) == running
}

// Wait waits until the Loop is running.
func (l *Loop) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-l.ready:
		return true
	}
}

// Run processes posted functions until the context is done.
func (l *Loop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt64(&l.running, notRunning, running) {
		return AlreadyRunning
	}
	defer atomic.StoreInt64(&l.running, notRunning)
	defer l.Timers.Stop()

	l.ready <- true
	l.Logger.Debug().Msg("loop running")
	for {
		for {
			l.Lock()
			if len(l.queue) == 0 {
				l.Unlock()
				break
			}
			f := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.Unlock()
			l.run(f)
		}
		select {
		case <-ctx.Done():
			l.Logger.Debug().Msg("loop done")
			return nil
		case <-l.signal:
		}
	}
}

func (l *Loop) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Logger.Error().Interface("panic", r).Msg("loop recovered")
		}
	}()
	f()
}
