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

package sio

import (
	"context"
	"errors"
	"time"

	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/sched"
)

// LoopStartTimeout is how long Run waits for its Loop to start.
var LoopStartTimeout = 5 * time.Second

// Conf controls Run.
type Conf struct {
	// HaltOnInputEOF makes Run return once the Couplings report
	// that their input is exhausted.
	HaltOnInputEOF bool `yaml:"haltOnInputEOF,omitempty"`

	// Linger is how long Run keeps going after input EOF (when
	// HaltOnInputEOF) so that pending actions can finish.
	Linger time.Duration `yaml:"linger,omitempty"`

	// StopTimeout bounds the final crew shutdown.
	StopTimeout time.Duration `yaml:"stopTimeout,omitempty"`
}

// DefaultConf is used when Run gets a nil Conf.
var DefaultConf = &Conf{
	HaltOnInputEOF: true,
	Linger:         time.Second,
	StopTimeout:    time.Second,
}

// Run starts the Loop, the Couplings, and the crew.  Incoming
// messages are given to the crew on the Loop's goroutine, and the
// crew's emitted messages go to the Couplings.
//
// The crew should have been made with the Loop as its Scheduler.
//
// Run returns when the context is done or, if requested, after the
// input is exhausted.
func Run(ctx context.Context, c *crew.Crew, l *sched.Loop, cs Couplings, conf *Conf) error {
	if conf == nil {
		conf = DefaultConf
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := cs.Start(ctx); err != nil {
		return err
	}

	in, out, done, err := cs.IO(ctx)
	if err != nil {
		return err
	}

	c.OnEmit = func(m *crew.Message) {
		select {
		case <-ctx.Done():
			c.Log.Warn().Str("topic", m.Topic).Msg("dropping emitted message")
		case out <- m:
		}
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- l.Run(ctx)
	}()
	if !l.Wait(LoopStartTimeout) {
		return errors.New("loop didn't start")
	}

	var startErr error
	if err := l.Do(ctx, func() { startErr = c.Start(ctx) }); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	var linger <-chan time.Time

LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case <-linger:
			break LOOP
		case <-done:
			c.Log.Info().Msg("input done")
			done = nil
			if conf.HaltOnInputEOF {
				linger = time.After(conf.Linger)
			}
		case msg := <-in:
			l.Post(func() {
				if err := c.ProcessMsg(ctx, msg); err != nil {
					c.Log.Warn().Err(err).Msg("ProcessMsg")
				}
			})
		}
	}

	timeout := conf.StopTimeout
	if timeout <= 0 {
		timeout = DefaultConf.StopTimeout
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	if err := l.Do(stopCtx, c.Stop); err != nil {
		c.Log.Warn().Err(err).Msg("crew stop")
	}

	cancel()
	<-loopDone

	return cs.Stop(stopCtx)
}
