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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/interpreters"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/sio"
	"github.com/Comcast/tempo/storage/bolt"
	"github.com/Comcast/tempo/tools"
	"github.com/Comcast/tempo/util"
)

// NewStdCouplings makes a sio.Stdio from the args.  With nil args,
// just returns the FlagSet (for usage).
func NewStdCouplings(args []string) (*sio.Stdio, *flag.FlagSet, error) {
	s := sio.NewStdio(false)
	fs := flag.NewFlagSet("std", flag.ContinueOnError)
	fs.BoolVar(&s.ShellExpand, "sh", false, "Expand <<shell commands>> in input")
	fs.BoolVar(&s.Timestamps, "ts", false, "Print timestamps")
	fs.BoolVar(&s.EchoInput, "echo", false, "Echo input")
	fs.BoolVar(&s.Tags, "tags", false, "Tag output lines")
	fs.BoolVar(&s.PadTags, "pad-tags", false, "Pad tags")
	if args == nil {
		return nil, fs, nil
	}
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return s, fs, nil
}

func couplingFlags(name string) *flag.FlagSet {
	var fs *flag.FlagSet
	switch name {
	case "std":
		_, fs, _ = NewStdCouplings(nil)
	case "mqtt", "mq":
		_, fs, _ = sio.NewMQTTCouplings(nil)
	case "ws":
		_, fs, _ = sio.NewWebSocketCouplings(nil)
	}
	return fs
}

func makeCouplings(name string, args []string) (sio.Couplings, error) {
	if args == nil {
		args = []string{}
	}
	var (
		cs  sio.Couplings
		err error
	)
	switch name {
	case "std":
		cs, _, err = NewStdCouplings(args)
	case "mqtt", "mq":
		cs, _, err = sio.NewMQTTCouplings(args)
	case "ws":
		cs, _, err = sio.NewWebSocketCouplings(args)
	default:
		err = fmt.Errorf("unknown io: '%s'", name)
	}
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// host runs the configured rules over the named coupling until the
// context is done (or input ends).
func host(ctx context.Context, cfg *Config, coupling string, args []string) error {
	cs, err := makeCouplings(coupling, args)
	if err != nil {
		return err
	}

	r, err := cfg.Registry()
	if err != nil {
		return err
	}

	l := sched.NewLoop(cfg.MaxTimers, util.Logger)
	c := crew.NewCrew(cfg.Crew, r, l, cfg.CrewConf())

	if cfg.Storage != "" {
		s, err := bolt.NewStorage(cfg.Storage)
		if err != nil {
			return err
		}
		if err = s.Open(ctx); err != nil {
			return err
		}
		defer s.Close(context.Background())
		c.Storage = s
	}

	rss, err := cfg.ReadRules()
	if err != nil {
		return err
	}
	for _, rs := range rss {
		if err = c.SetRuleSet(rs); err != nil {
			return err
		}
	}

	c.OnAction = func(rule string, v core.Value) {
		c.Log.Debug().Str("rule", rule).Str("result", v.String()).Msg("action done")
	}

	return sio.Run(ctx, c, l, cs, &cfg.Run)
}

func analyzeRules(cfg *Config, show bool, dotFile, mermaidFile string) error {
	r, err := cfg.Registry()
	if err != nil {
		return err
	}
	rss, err := cfg.ReadRules()
	if err != nil {
		return err
	}
	all := &crew.RuleSet{
		Constants: make(map[string]interface{}),
	}
	for _, rs := range rss {
		for name, x := range rs.Constants {
			all.Constants[name] = x
		}
		all.Rules = append(all.Rules, rs.Rules...)
	}

	a := tools.Analyze(all, r)
	if show {
		fmt.Println(sio.JSON(a))
	}
	if dotFile != "" {
		if err = writeFile(dotFile, func(f *os.File) error { return tools.Dot(a, f, "") }); err != nil {
			return err
		}
	}
	if mermaidFile != "" {
		if err = writeFile(mermaidFile, func(f *os.File) error { return tools.Mermaid(a, f, nil) }); err != nil {
			return err
		}
	}
	if len(a.Errors) > 0 {
		return fmt.Errorf("%d problems in rules", len(a.Errors))
	}
	return nil
}

func writeDocs(cfg *Config, filename string) error {
	sets := interpreters.Sets(cfg.Interpreter())
	sets["host"] = crew.HostFunctions()
	sections := make([]string, 0, len(sets))
	for name := range sets {
		sections = append(sections, name)
	}
	sort.Strings(sections)
	return writeFile(filename, func(f *os.File) error {
		return tools.RenderBuiltinPage("tempo functions", sections, sets, f, nil)
	})
}

func writeFile(filename string, write func(*os.File) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err = write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
