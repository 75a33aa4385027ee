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

// Package sio couples a crew to the outside world.
//
// A Couplings implementation delivers in-bound messages (usually JSON
// objects) and consumes the messages that actions emit.  Run wires a
// Couplings to a crew running on a sched.Loop.
package sio

import (
	"context"

	"github.com/Comcast/tempo/crew"
)

// Couplings provide channels for message input and emitted message
// output.
//
// For example, an implementation could couple a crew to an MQTT
// broker.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the input and output channels.  The done channel
	// is closed when the input is exhausted.
	IO(context.Context) (in chan interface{}, out chan *crew.Message, done chan bool, err error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}
