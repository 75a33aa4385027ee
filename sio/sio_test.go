package sio

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/crew"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"

	"github.com/gorilla/websocket"
)

const bigRules = `
rules:
  - name: big
    trigger: x > 1
    action: emit('big', x)
`

func newCrew(t *testing.T) (*crew.Crew, *sched.Loop) {
	l := sched.NewLoop(100, testutil.Quiet)
	c := crew.NewCrew("test", builtins.NewRegistry(builtins.All()), l, nil)
	c.Log = testutil.Quiet
	c.Main.Log = testutil.Quiet
	rs, err := crew.ParseRules([]byte(bigRules))
	if err != nil {
		t.Fatal(err)
	}
	if err = c.SetRuleSet(rs); err != nil {
		t.Fatal(err)
	}
	return c, l
}

func TestStdio(t *testing.T) {
	c, l := newCrew(t)

	var out bytes.Buffer
	s := &Stdio{
		In:  strings.NewReader("# comment\n{\"x\": 1}\n\nnot json\n{\"x\": 5}\n"),
		Out: &out,
		Log: testutil.Quiet,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conf := &Conf{
		HaltOnInputEOF: true,
		Linger:         100 * time.Millisecond,
	}
	if err := Run(ctx, c, l, s, conf); err != nil {
		t.Fatal(err)
	}

	if got := out.String(); got != `{"topic":"big","payload":5}`+"\n" {
		t.Fatalf("got %q", got)
	}
	if v, _ := c.Variable("x"); v.NumberValue() != 5 {
		t.Fatal(v)
	}
}

func TestStdioTags(t *testing.T) {
	var out bytes.Buffer
	s := &Stdio{
		Out:  &out,
		Tags: true,
	}
	s.printf("emit", "%d\n", 1)
	if got := out.String(); got != "emit 1\n" {
		t.Fatalf("got %q", got)
	}
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in    string
		topic string
		qos   byte
	}{
		{"a/b", "a/b", 0},
		{"a/b:1", "a/b", 1},
		{" a/b:2 ", "a/b", 2},
		{"a/b:9", "a/b:9", 0},
		{"", "", 0},
	}
	for _, tc := range tests {
		topic, qos := parseTopic(tc.in)
		if topic != tc.topic || qos != tc.qos {
			t.Fatalf("%q: got %q %d", tc.in, topic, qos)
		}
	}
}

func TestMQTTMessages(t *testing.T) {
	c, fs, err := NewMQTTCouplings([]string{"-t", "a:1,b", "-wrap-with-topic"})
	if err != nil {
		t.Fatal(err)
	}
	if fs.Lookup("def-outbound-topic") == nil || c.SubTopics != "a:1,b" {
		t.Fatal(c.SubTopics)
	}
	c.Log = testutil.Quiet

	x := c.inbound("here", []byte(`{"x": 1}`))
	if m, is := x.(map[string]interface{}); !is || m["topic"] != "here" || m["x"] != 1.0 {
		t.Fatalf("%#v", x)
	}
	x = c.inbound("here", []byte(`42`))
	if m, is := x.(map[string]interface{}); !is || m["payload"] != 42.0 {
		t.Fatalf("%#v", x)
	}

	topic, qos, js, err := c.publication(&crew.Message{Topic: "out:1", Payload: "hi"})
	if err != nil || topic != "out" || qos != 1 || string(js) != `"hi"` {
		t.Fatal(topic, qos, string(js), err)
	}
	if topic, _, _, _ = c.publication(&crew.Message{}); topic != "misc" {
		t.Fatal(topic)
	}
}

func TestWebSocket(t *testing.T) {
	var upgrader websocket.Upgrader
	heard := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err = conn.WriteMessage(websocket.TextMessage, []byte(`{"x": 7}`)); err != nil {
			return
		}
		_, bs, err := conn.ReadMessage()
		if err != nil {
			return
		}
		heard <- string(bs)
		conn.ReadMessage()
	}))
	defer srv.Close()

	ws, _, err := NewWebSocketCouplings([]string{"-url", "ws" + strings.TrimPrefix(srv.URL, "http")})
	if err != nil {
		t.Fatal(err)
	}
	ws.Log = testutil.Quiet

	c, l := newCrew(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan error, 1)
	go func() {
		ran <- Run(ctx, c, l, ws, &Conf{})
	}()

	select {
	case got := <-heard:
		if got != `{"topic":"big","payload":7}` {
			t.Fatal(got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server heard nothing")
	}

	cancel()
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("Run didn't return")
	}
}
