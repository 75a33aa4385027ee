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

// Package core has the pieces that expressions and scripts share.
//
// A Value is a number, a string, null (with an optional reason), or
// an error.  Errors carry an ErrorKind, and fatal kinds stop an
// evaluation while the others propagate as values.  A Cursor scans
// source text: identifiers, operators, and numeric, time, date,
// string, and JSON literals.
//
// EvalMode says why an evaluation happens (initial, external trigger,
// timed, script, or syntax check) plus modifiers such as
// Synchronously and StopRunning.  A Scheduler provides the clock and
// timers that timed contexts and asynchronous builtins use.
package core
