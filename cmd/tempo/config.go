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
	"fmt"
	"io/ioutil"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/interpreters"
	"github.com/Comcast/tempo/interpreters/goja"
	"github.com/Comcast/tempo/script"
	"github.com/Comcast/tempo/sio"

	"gopkg.in/yaml.v2"
)

// Config is the optional YAML configuration file.
type Config struct {
	// Crew is the crew id, which is also the storage bucket for
	// globals.
	Crew string `yaml:"crew"`

	LogLevel string `yaml:"logLevel"`

	// OperatorMode is "flexible", "c", or "pascal".
	OperatorMode string `yaml:"operatorMode"`

	Location *builtins.GeoLocation `yaml:"location"`

	MaxBlockTime time.Duration `yaml:"maxBlockTime"`
	MaxRunTime   time.Duration `yaml:"maxRunTime"`
	MaxTimers    int           `yaml:"maxTimers"`

	// Builtins names the builtin sets.  Empty means all of them.
	Builtins []string `yaml:"builtins"`

	// JSLibs is a directory of libraries for require() in js().
	JSLibs    string        `yaml:"jsLibs"`
	JSTimeout time.Duration `yaml:"jsTimeout"`

	// Storage is a bbolt file for globals.  Empty means globals
	// are kept in memory.
	Storage string `yaml:"storage"`

	Rules     []string               `yaml:"rules"`
	Constants map[string]interface{} `yaml:"constants"`

	Run sio.Conf `yaml:"run"`

	operatorMode core.OperatorMode
}

// DefaultConfig is the configuration without a config file.
func DefaultConfig() *Config {
	return &Config{
		Crew:         "tempo",
		LogLevel:     "info",
		MaxBlockTime: script.DefaultMaxBlockTime,
		MaxTimers:    1024,
		JSTimeout:    goja.DefaultTimeout,
		Run:          *sio.DefaultConf,
	}
}

// ReadConfig reads a YAML file on top of the DefaultConfig.
func ReadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if filename != "" {
		bs, err := ioutil.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err = yaml.UnmarshalStrict(bs, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", filename, err)
		}
	}
	return cfg, cfg.check()
}

func (cfg *Config) check() error {
	mode, err := core.ParseOperatorMode(cfg.OperatorMode)
	if err != nil {
		return err
	}
	cfg.operatorMode = mode
	if cfg.MaxTimers <= 0 {
		return fmt.Errorf("maxTimers %d isn't positive", cfg.MaxTimers)
	}
	for name, x := range cfg.Constants {
		switch x.(type) {
		case nil, bool, int, float64, string:
		default:
			return fmt.Errorf("constant '%s' isn't a scalar", name)
		}
	}
	return nil
}

// Registry makes the builtin registry.
func (cfg *Config) Registry() (*builtins.Registry, error) {
	return interpreters.Registry(cfg.Interpreter(), cfg.Builtins...)
}

// Interpreter makes the interpreter for js().
func (cfg *Config) Interpreter() *goja.Interpreter {
	i := goja.NewInterpreter()
	i.Timeout = cfg.JSTimeout
	if cfg.JSLibs != "" {
		i.Provider = goja.MakeFileLibraryProvider(cfg.JSLibs)
	}
	return i
}

// CrewConf gives the engine parameters for a crew.
func (cfg *Config) CrewConf() *crew.Conf {
	return &crew.Conf{
		Location:     cfg.Location,
		OperatorMode: cfg.operatorMode,
		MaxBlockTime: cfg.MaxBlockTime,
		MaxRunTime:   cfg.MaxRunTime,
	}
}

// ReadRules reads the rule files (and the configured constants).
func (cfg *Config) ReadRules() ([]*crew.RuleSet, error) {
	acc := []*crew.RuleSet{{Constants: cfg.Constants}}
	for _, filename := range cfg.Rules {
		rs, err := crew.ReadRules(filename)
		if err != nil {
			return nil, err
		}
		acc = append(acc, rs)
	}
	return acc, nil
}
