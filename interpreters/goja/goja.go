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

// Package goja provides the js() builtin, which runs ECMAScript with
// Goja.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"github.com/rs/zerolog"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Exec if the execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)

	// DefaultTimeout limits each js() call.
	DefaultTimeout = time.Second

	// MaxCached is the number of compiled programs an Interpreter
	// keeps.
	MaxCached = 256
)

// LibraryProvider resolves a library name used in require().
type LibraryProvider func(ctx context.Context, name string) (string, error)

// Interpreter runs ECMAScript for the js() builtin.
type Interpreter struct {
	// Timeout limits each execution.  Zero means DefaultTimeout.
	Timeout time.Duration

	// Testing exposes sleep().
	Testing bool

	// Provider resolves require()d libraries.  If nil, require()
	// fails.
	Provider LibraryProvider

	sync.Mutex
	programs map[string]*goja.Program
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		programs: make(map[string]*goja.Program),
	}
}

// MakeFileLibraryProvider resolves "file://" names relative to dir and
// fetches "http://" and "https://" names.
func MakeFileLibraryProvider(dir string) LibraryProvider {
	return func(ctx context.Context, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			filename := filepath.Clean("/" + parts[1])
			bs, err := ioutil.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			req, err := http.NewRequest("GET", name, nil)
			if err != nil {
				return "", err
			}
			resp, err := http.DefaultClient.Do(req.WithContext(ctx))
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("library fetch status %s %d", resp.Status, resp.StatusCode)
			}
			bs, err := ioutil.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

// MakeMapLibraryProvider serves libraries from a map.
func MakeMapLibraryProvider(srcs map[string]string) LibraryProvider {
	return func(ctx context.Context, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

func (i *Interpreter) provide(ctx context.Context, name string) (string, error) {
	if i.Provider == nil {
		return "", fmt.Errorf("no library provider for '%s'", name)
	}
	return i.Provider(ctx, name)
}

// Compile inlines require()d libraries and compiles the result.
// Compiled programs are cached by source.
func (i *Interpreter) Compile(ctx context.Context, src string) (*goja.Program, error) {
	i.Lock()
	p, have := i.programs[src]
	i.Unlock()
	if have {
		return p, nil
	}

	code, err := InlineRequires(ctx, src, i.provide)
	if err != nil {
		return nil, err
	}
	if p, err = goja.Compile("", code, false); err != nil {
		return nil, err
	}

	i.Lock()
	if len(i.programs) >= MaxCached {
		i.programs = make(map[string]*goja.Program)
	}
	i.programs[src] = p
	i.Unlock()
	return p, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

func export(x interface{}) interface{} {
	if v, is := x.(goja.Value); is {
		return v.Export()
	}
	return x
}

// Exec runs the code and returns the exported value of its last
// expression statement.
//
// The runtime has args, the given arguments, and _, which offers
//
//    log(x): log x (as JSON) at info level.
//    cronNext(expr): the next time (RFC3339) matching the cron expression.
//    esc(s): URL query-escape the given string.
//
// With Testing, sleep(ms) sleeps for the given number of
// milliseconds.
func (i *Interpreter) Exec(ctx context.Context, src string, args []interface{}, logger *zerolog.Logger) (interface{}, error) {
	p, err := i.Compile(ctx, src)
	if err != nil {
		return nil, err
	}

	o := goja.New()
	if args == nil {
		args = []interface{}{}
	}
	o.Set("args", args)

	env := map[string]interface{}{}
	o.Set("_", env)

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["cronNext"] = func(x interface{}) interface{} {
		cronExpr, is := export(x).(string)
		if !is {
			protest(o, "not a string")
		}
		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["esc"] = func(x interface{}) interface{} {
		s, is := export(x).(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	env["log"] = func(x interface{}) interface{} {
		x = export(x)
		if logger == nil {
			return x
		}
		js, err := json.Marshal(&x)
		if err != nil {
			logger.Warn().Err(err).Msg("js log")
		} else {
			logger.Info().RawJSON("js", js).Msg("js log")
		}
		return x
	}

	// Make sure the interrupting goroutine terminates when
	// RunProgram returns.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If cancel() comes after RunProgram returns, the
		// interrupt has no effect.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := runProgram(o, p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}

func runProgram(o *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s", r)
		}
	}()
	return o.RunProgram(p)
}

// ToJS converts an engine value for use as an argument.  Strings
// that hold JSON objects or arrays become objects or arrays.
func ToJS(v core.Value) interface{} {
	switch {
	case v.IsNumber():
		return v.NumberValue()
	case v.IsString():
		s := v.StringValue()
		if t := strings.TrimSpace(s); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			var x interface{}
			if err := json.Unmarshal([]byte(t), &x); err == nil {
				return x
			}
		}
		return s
	default:
		return nil
	}
}

// FromJS converts an exported Goja value.  Booleans become 1 or 0.
// Objects and arrays become their JSON text.
func FromJS(x interface{}) core.Value {
	switch vv := x.(type) {
	case nil:
		return core.NullValue("undefined")
	case bool:
		return core.Bool(vv)
	case int64:
		return core.Number(float64(vv))
	case float64:
		if math.IsNaN(vv) {
			return core.NullValue("NaN")
		}
		return core.Number(vv)
	case string:
		return core.String(vv)
	default:
		js, err := json.Marshal(&x)
		if err != nil {
			return core.ErrorValue(core.User, "can't convert %T: %s", x, err)
		}
		return core.String(string(js))
	}
}

// Builtins returns the js() function.
func (i *Interpreter) Builtins() []*builtins.Descriptor {
	return []*builtins.Descriptor{
		{
			Name:    "js",
			Returns: builtins.Value | builtins.Null | builtins.Error,
			Args: []builtins.Arg{
				{Name: "code", Types: builtins.Text},
				{Name: "args", Types: builtins.Value | builtins.Null | builtins.Optional | builtins.Multiple},
			},
			Doc:  "Runs ECMAScript `code` with the other arguments in the array `args` and returns the value of the last expression.",
			Impl: i.call,
		},
	}
}

func (i *Interpreter) call(c *builtins.Call) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := make([]interface{}, 0, len(c.Args)-1)
	for _, a := range c.Args[1:] {
		args = append(args, ToJS(a))
	}

	x, err := i.Exec(ctx, c.Arg(0).StringValue(), args, c.Env.Logger())
	switch {
	case err == Interrupted:
		c.Finish(core.FromError(core.Errorf(core.Timeout, c.Pos, "js: %s", err)))
	case err != nil:
		c.Finish(core.FromError(core.Errorf(core.User, c.Pos, "js: %s", err)))
	default:
		c.Finish(FromJS(x))
	}
}
