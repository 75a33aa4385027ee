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

// Package util has logging and JSON helpers.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process logger.  Evaluation contexts use it unless
// they are given their own.
var Logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}).With().Timestamp().Logger()

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf logs at debug level.
var Logging = false

// Logf is a silly utility function that logs if Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	Logger.Debug().Msgf(format, args...)
}

// SetLevel parses a zerolog level name ("debug", "info", ...) and
// makes it the global level.
func SetLevel(name string) error {
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}
