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

// Package main is the tempo command.
//
// It evaluates an expression (-e) or runs a script (-s) once, runs a
// REPL (-repl), or hosts a crew of rules over a coupling (-io).  It
// can also analyze rule files and render the builtin reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Comcast/tempo/util"
)

func main() {
	var (
		configFile = flag.String("config", "", "Optional YAML config file")
		expression = flag.String("e", "", "Evaluate this expression and exit")
		scriptFile = flag.String("s", "", "Run this script file (- for stdin) and exit")
		repl       = flag.Bool("repl", false, "Run a read-eval-print loop")
		coupling   = flag.String("io", "", `Host the rules over this IO: "std", "mqtt", or "ws"`)
		rules      = flag.String("rules", "", "Comma-separated rule files (added to the config's)")
		analyze    = flag.Bool("analyze", false, "Analyze the rules and exit")
		dot        = flag.String("dot", "", "Write a Graphviz rendering of the rules to this file")
		mermaid    = flag.String("mermaid", "", "Write a Mermaid rendering of the rules to this file")
		docs       = flag.String("docs", "", "Write the builtin function reference (HTML) to this file")
		logLevel   = flag.String("log-level", "", "Log level (overrides the config's)")
		help       = flag.Bool("h", false, "Get usage")
	)

	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}

	cfg, err := ReadConfig(*configFile)
	if err != nil {
		fatal(err)
	}
	if *rules != "" {
		cfg.Rules = append(cfg.Rules, strings.Split(*rules, ",")...)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err = util.SetLevel(cfg.LogLevel); err != nil {
		fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case *expression != "":
		err = runOnce(ctx, cfg, *expression, true)
	case *scriptFile != "":
		var bs []byte
		if *scriptFile == "-" {
			bs, err = ioutil.ReadAll(os.Stdin)
		} else {
			bs, err = ioutil.ReadFile(*scriptFile)
		}
		if err == nil {
			err = runOnce(ctx, cfg, string(bs), false)
		}
	case *repl:
		err = runREPL(ctx, cfg)
	case *docs != "":
		err = writeDocs(cfg, *docs)
	case *analyze || *dot != "" || *mermaid != "":
		err = analyzeRules(cfg, *analyze, *dot, *mermaid)
	case *coupling != "":
		err = host(ctx, cfg, *coupling, flag.Args())
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: tempo [flags] [coupling flags]\n\n")
	flag.PrintDefaults()

	for _, name := range []string{"std", "mqtt", "ws"} {
		fmt.Fprintf(os.Stderr, "\n-io %s:\n\n", name)
		if fs := couplingFlags(name); fs != nil {
			fs.PrintDefaults()
		}
	}
}

func fatal(err error) {
	util.Logger.Error().Err(err).Msg("tempo")
	os.Exit(1)
}
