package script

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/tempo/core"
	"github.com/Comcast/tempo/sched"
	"github.com/Comcast/tempo/util/testutil"
)

func newLoop(t *testing.T) *sched.Loop {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	l := sched.NewLoop(16, testutil.Quiet)
	go l.Run(ctx)
	if !l.Wait(time.Second) {
		t.Fatal("loop didn't start")
	}
	return l
}

// start runs code on the Loop and returns where the result will show
// up.
func start(t *testing.T, l *sched.Loop, c *Context, code string) chan core.Value {
	result := make(chan core.Value, 1)
	var err error
	if doErr := l.Do(context.Background(), func() {
		c.SetCode(code)
		err = c.Execute(core.Script, func(v core.Value) {
			result <- v
		})
	}); doErr != nil {
		t.Fatal(doErr)
	}
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func await(t *testing.T, result chan core.Value) core.Value {
	select {
	case v := <-result:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}
	return core.Value{}
}

func TestGetURL(t *testing.T) {
	requests := make(chan *http.Request, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/temp":
			fmt.Fprint(w, `{"temp":21}`)
		case "/slow":
			requests <- r
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := newLoop(t)
	c := NewContext("fetch", registry, l)
	c.Log = testutil.Quiet

	got := await(t, start(t, l, c, fmt.Sprintf("return geturl('%s/temp')", srv.URL)))
	if got.StringValue() != `{"temp":21}` {
		t.Fatal(got)
	}

	got = await(t, start(t, l, c, fmt.Sprintf("return geturl('%s/nothing')", srv.URL)))
	if got.ErrorKind() != core.User || !strings.Contains(got.Err().Msg, "404") {
		t.Fatal(got)
	}

	// The script can catch a failed fetch.
	got = await(t, start(t, l, c, fmt.Sprintf("try { return geturl('%s/nothing') } catch { return 'offline' }", srv.URL)))
	if got.StringValue() != "offline" {
		t.Fatal(got)
	}

	then := time.Now()
	got = await(t, start(t, l, c, fmt.Sprintf("return geturl('%s/slow', 0.1)", srv.URL)))
	if got.ErrorKind() != core.User {
		t.Fatal(got)
	}
	if elapsed := time.Since(then); 3*time.Second < elapsed {
		t.Fatalf("timeout took %v", elapsed)
	}
	<-requests
}

func TestGetURLAbort(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	l := newLoop(t)
	c := NewContext("fetch", registry, l)
	c.Log = testutil.Quiet

	result := start(t, l, c, fmt.Sprintf("return geturl('%s/slow')", srv.URL))
	var r *http.Request
	select {
	case r = <-requests:
	case <-time.After(5 * time.Second):
		t.Fatal("no request")
	}

	if err := l.Do(context.Background(), func() {
		c.Abort(core.StopRunning, core.Value{})
	}); err != nil {
		t.Fatal(err)
	}
	if got := await(t, result); got.ErrorKind() != core.Aborted {
		t.Fatal(got)
	}

	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("request not cancelled")
	}
}
