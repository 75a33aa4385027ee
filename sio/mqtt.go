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
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/util"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTCouplings is a Couplings for an MQTT client.
//
// In-bound payloads are parsed as JSON.  An emitted message is
// published to its topic, which can carry a QoS suffix (TOPIC:QOS).
type MQTTCouplings struct {
	Client               mqtt.Client
	Quiesce              uint
	SubTopics            string
	InjectTopic          bool
	WrapWithTopic        bool
	DefaultOutboundTopic string

	InTimeout time.Duration

	Log zerolog.Logger

	ctx      context.Context
	incoming chan interface{}
	outbound chan *crew.Message
	done     chan bool
}

// NewMQTTCouplings parses the args, which follow mosquitto_sub's
// conventions, and makes a client.
//
// With nil args, just returns the FlagSet (for usage).
func NewMQTTCouplings(args []string) (*MQTTCouplings, *flag.FlagSet, error) {
	var (
		fs = flag.NewFlagSet("mqtt", flag.ContinueOnError)

		broker      = fs.String("h", "tcp://localhost", "Broker hostname")
		clientId    = fs.String("i", "", "Client id")
		port        = fs.Int("p", 1883, "Broker port")
		keepAlive   = fs.Int("k", 10, "Keep-alive in seconds")
		userName    = fs.String("u", "", "Username")
		password    = fs.String("P", "", "Password")
		willTopic   = fs.String("will-topic", "", "Optional will topic")
		willPayload = fs.String("will-payload", "", "Optional will message")
		willQoS     = fs.Int("will-qos", 0, "Optional will QoS")
		willRetain  = fs.Bool("will-retain", false, "Optional will retention")
		reconnect   = fs.Bool("reconnect", false, "Automatically attempt to reconnect")
		clean       = fs.Bool("c", true, "Clean session")
		quiesce     = fs.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)")

		certFilename = fs.String("cert", "", "Optional cert filename")
		keyFilename  = fs.String("key", "", "Optional key filename")
		insecure     = fs.Bool("insecure", false, "Skip broker cert checking")
		caFilename   = fs.String("cafile", "", "Optional CA cert filename")
		caPath       = fs.String("capath", "", "Optional directory for the CA cert file")

		subTopics = fs.String("t", "", "subscription topic(s), comma-separated, each TOPIC[:QOS]")

		injectTopic          = fs.Bool("inject-topic", true, "put topic in map of incoming messages")
		wrapWithTopic        = fs.Bool("wrap-with-topic", false, "wrap non-maps in a map along with the topic")
		defaultOutboundTopic = fs.String("def-outbound-topic", "misc", "Default out-bound message topic")
		inTimeout            = fs.Duration("in-timeout", time.Second, "timeout for in-bound queuing")
	)

	if args == nil {
		return nil, fs, nil
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	mqtt.ERROR = log.New(os.Stderr, "mqtt.error ", 0)

	opts := mqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("%s:%d", *broker, *port))
	opts.SetClientID(*clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*keepAlive))

	opts.Username = *userName
	opts.Password = *password
	opts.AutoReconnect = *reconnect
	opts.CleanSession = *clean

	if *willTopic != "" {
		if *willPayload == "" {
			return nil, fs, errors.New("will topic without payload")
		}
		opts.WillEnabled = true
		opts.WillTopic = *willTopic
		opts.WillPayload = []byte(*willPayload)
		opts.WillRetained = *willRetain
		opts.WillQos = byte(*willQoS)
	}

	logger := util.Logger.With().Str("couplings", "mqtt").Logger()

	tlsConf := &tls.Config{
		InsecureSkipVerify: *insecure,
	}

	if *caFilename != "" {
		rootCAs, _ := x509.SystemCertPool()
		if rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		filename := filepath.Join(*caPath, *caFilename)
		certs, err := ioutil.ReadFile(filename)
		if err != nil {
			return nil, fs, fmt.Errorf("couldn't read '%s': %w", filename, err)
		}
		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			logger.Warn().Str("file", filename).Msg("no certs appended, using system certs only")
		}
		tlsConf.RootCAs = rootCAs
	}

	if *keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*certFilename, *keyFilename)
		if err != nil {
			return nil, fs, err
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("connection lost")
	}

	c := &MQTTCouplings{
		Quiesce:              uint(*quiesce),
		SubTopics:            *subTopics,
		InjectTopic:          *injectTopic,
		WrapWithTopic:        *wrapWithTopic,
		DefaultOutboundTopic: *defaultOutboundTopic,
		InTimeout:            *inTimeout,
		Log:                  logger,

		ctx:      context.Background(),
		incoming: make(chan interface{}),
		outbound: make(chan *crew.Message),
		done:     make(chan bool),
	}

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		c.inHandler(c.ctx, msg.Topic(), msg.Payload())
	}

	c.Client = mqtt.NewClient(opts)

	return c, fs, nil
}

// inbound turns a payload into a crew message.
func (c *MQTTCouplings) inbound(topic string, payload []byte) interface{} {
	var x interface{}
	if err := json.Unmarshal(payload, &x); err != nil {
		c.Log.Warn().Str("topic", topic).Msg("couldn't JSON-parse payload")
		x = string(payload)
	}
	if m, is := x.(map[string]interface{}); is {
		if c.InjectTopic {
			m["topic"] = topic
		}
		return m
	}
	if c.WrapWithTopic {
		x = map[string]interface{}{
			"topic":   topic,
			"payload": x,
		}
	}
	return x
}

// inHandler handles messages sent to us from the MQTT broker due to
// our subscriptions.
func (c *MQTTCouplings) inHandler(ctx context.Context, topic string, payload []byte) {
	c.Log.Debug().Str("topic", topic).Bytes("payload", payload).Msg("incoming")

	x := c.inbound(topic, payload)

	to := time.NewTimer(c.InTimeout)
	defer to.Stop()

	select {
	case <-ctx.Done():
		c.Log.Warn().Msg("not forwarding due to ctx.Done()")
	case c.incoming <- x:
	case <-to.C:
		c.Log.Warn().Str("topic", topic).Msg("not forwarding due to stall")
	}
}

// Start creates the MQTT session.
func (c *MQTTCouplings) Start(ctx context.Context) error {
	c.ctx = ctx
	c.Log.Info().Msg("connecting to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		c.Log.Info().Str("topic", topic).Uint8("qos", qos).Msg("subscribing")
		if t := c.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	return nil
}

// IO starts a loop to publish emitted messages.
func (c *MQTTCouplings) IO(ctx context.Context) (chan interface{}, chan *crew.Message, chan bool, error) {
	go c.outLoop(ctx)
	return c.incoming, c.outbound, c.done, nil
}

// publication gives the topic, QoS, and payload for an emitted
// message.
func (c *MQTTCouplings) publication(m *crew.Message) (string, byte, []byte, error) {
	t := m.Topic
	if t == "" {
		t = c.DefaultOutboundTopic
	}
	topic, qos := parseTopic(t)
	js, err := json.Marshal(m.Payload)
	return topic, qos, js, err
}

// outLoop forwards messages outbound from the crew to the MQTT
// broker.
func (c *MQTTCouplings) outLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.outbound:
			topic, qos, js, err := c.publication(m)
			if err != nil {
				c.Log.Error().Err(err).Str("topic", topic).Msg("marshal")
				continue
			}
			token := c.Client.Publish(topic, qos, false, js)
			token.Wait()
			if err = token.Error(); err != nil {
				c.Log.Error().Err(err).Str("topic", topic).Str("payload", JShort(m.Payload)).Msg("publish")
			}
		}
	}
}

// Stop terminates the MQTT session.
func (c *MQTTCouplings) Stop(ctx context.Context) error {
	c.Log.Info().Msg("disconnecting")
	c.Client.Disconnect(c.Quiesce)
	close(c.done)
	return nil
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 8)
	if err != nil || 2 < n {
		return s, 0
	}
	return s[:i], byte(n)
}
