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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/util"

	"github.com/rs/zerolog"
)

// Stdio is a fairly simple Couplings that reads JSON messages, one
// per line, from stdin and writes emitted messages to stdout.
//
// Lines that start with '#' and blank lines are ignored.  A line
// containing only "quit" ends the input.
type Stdio struct {
	// In is coupled to crew input.
	In io.Reader

	// Out is coupled to crew output.
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("input",
	// "emit").
	Tags bool

	// PadTags adds some padding to tags.
	PadTags bool

	// InputEOF will be closed on EOF from stdin.
	InputEOF chan bool

	Log zerolog.Logger

	// wg tracks the output goroutine.  The input goroutine can
	// block on a read that never returns.
	wg sync.WaitGroup
	mu sync.Mutex
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
		InputEOF:    make(chan bool),
		Log:         util.Logger,
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop waits until output is complete or was terminated via the IO
// context.
func (s *Stdio) Stop(ctx context.Context) error {
	s.wg.Wait()
	return nil
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 10s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}

	s.mu.Lock()
	fmt.Fprintf(s.Out, format, args...)
	s.mu.Unlock()
}

// IO returns channels for reading from stdin and writing to stdout.
func (s *Stdio) IO(ctx context.Context) (chan interface{}, chan *crew.Message, chan bool, error) {
	in := make(chan interface{})
	done := make(chan bool)
	out := make(chan *crew.Message)

	go func() {
		stdin := bufio.NewReader(s.In)
		for {
			line, err := stdin.ReadString('\n')
			if err != nil && err != io.EOF {
				s.Log.Error().Err(err).Msg("stdin")
				return
			}
			eof := err == io.EOF
			if strings.TrimSpace(line) == "quit" {
				eof = true
				line = ""
			}
			if line != "" {
				if msg, ok := s.parse(ctx, line); ok {
					select {
					case <-ctx.Done():
						return
					case in <- msg:
					}
				}
			}
			if eof {
				close(done)
				if s.InputEOF != nil {
					close(s.InputEOF)
				}
				s.Log.Debug().Msg("stdio input done")
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-out:
				if m == nil {
					return
				}
				s.printf("emit", "%s\n", JS(m))
			}
		}
	}()

	return in, out, done, nil
}

// parse handles one input line.
func (s *Stdio) parse(ctx context.Context, line string) (interface{}, bool) {
	if s.EchoInput {
		if strings.HasSuffix(line, "\n") {
			s.printf("input", "%s", line)
		} else {
			s.printf("input", "%s\n", line)
		}
	}
	if strings.HasPrefix(line, "#") || len(strings.TrimSpace(line)) == 0 {
		return nil, false
	}
	if s.ShellExpand {
		var err error
		if line, err = ShellExpand(ctx, line); err != nil {
			s.Log.Warn().Err(err).Msg("shell expansion")
			return nil, false
		}
	}
	var msg interface{}
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		s.Log.Warn().Err(err).Str("line", strings.TrimSpace(line)).Msg("bad input")
		return nil, false
	}
	return msg, true
}
