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
	"encoding/json"
	"flag"
	"net/url"

	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/util"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketCouplings is a Couplings that dials a WebSocket server.
// Each text frame is a JSON message, and each emitted message is
// written as a JSON {"topic","payload"} frame.
type WebSocketCouplings struct {
	URL string

	Log zerolog.Logger

	in   chan interface{}
	out  chan *crew.Message
	done chan bool
	conn *websocket.Conn
}

// NewWebSocketCouplings parses the args.  With nil args, just
// returns the FlagSet (for usage).
func NewWebSocketCouplings(args []string) (*WebSocketCouplings, *flag.FlagSet, error) {
	c := &WebSocketCouplings{
		Log: util.Logger.With().Str("couplings", "ws").Logger(),
	}
	fs := flag.NewFlagSet("ws", flag.ContinueOnError)
	fs.StringVar(&c.URL, "url", "ws://localhost:8080", "Target URL for WebSocket server")
	if args == nil {
		return nil, fs, nil
	}
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return c, fs, nil
}

// Start creates the WebSocket session and starts processing it.
func (c *WebSocketCouplings) Start(ctx context.Context) error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	c.in = make(chan interface{})
	c.out = make(chan *crew.Message)
	c.done = make(chan bool)

	c.Log.Info().Str("url", u.String()).Msg("connecting")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go c.readLoop(ctx)
	go c.writeLoop(ctx)

	return nil
}

func (c *WebSocketCouplings) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		_, bs, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.Log.Warn().Err(err).Msg("ReadMessage")
			}
			return
		}
		if len(bs) == 0 {
			continue
		}

		var msg interface{}
		if err = json.Unmarshal(bs, &msg); err != nil {
			c.Log.Warn().Err(err).Str("frame", string(bs)).Msg("Unmarshal")
			continue
		}

		select {
		case <-ctx.Done():
			return
		case c.in <- msg:
		}
	}
}

func (c *WebSocketCouplings) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.out:
			js, err := json.Marshal(m)
			if err != nil {
				c.Log.Error().Err(err).Str("topic", m.Topic).Msg("Marshal")
				continue
			}
			if err = c.conn.WriteMessage(websocket.TextMessage, js); err != nil {
				c.Log.Error().Err(err).Msg("WriteMessage")
				return
			}
		}
	}
}

// IO just returns the channels that Start() initialized.  The done
// channel is closed when the server hangs up.
func (c *WebSocketCouplings) IO(ctx context.Context) (chan interface{}, chan *crew.Message, chan bool, error) {
	return c.in, c.out, c.done, nil
}

// Stop terminates the WebSocket connection.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	c.Log.Info().Msg("disconnecting")
	return c.conn.Close()
}
