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

package builtins

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/Comcast/tempo/core"

	"golang.org/x/net/publicsuffix"
)

// DefaultURLTimeout is the geturl() timeout when none is given.
var DefaultURLTimeout = 30 * time.Second

// MaxURLBody limits how much of a response geturl() reads.
var MaxURLBody int64 = 1 << 20

var httpClient = newHTTPClient()

func newHTTPClient() *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		panic(err)
	}
	return &http.Client{Jar: jar}
}

// Async returns the functions that finish later.  They can't be used
// in synchronous evaluations.
func Async() []*Descriptor {
	return []*Descriptor{
		{
			Name:    "delay",
			Returns: Null,
			Args:    args(Arg{"seconds", Scalar}),
			Async:   true,
			Doc:     "Waits for the given number of seconds.",
			Impl: func(c *Call) {
				d := seconds(c.Arg(0).NumberValue())
				cancel := c.Env.Scheduler().After(d, func() {
					c.Finish(core.NullValue("delayed"))
				})
				c.SetAbort(cancel)
			},
		},
		{
			Name:    "geturl",
			Returns: Text | Error,
			Args:    args(Arg{"url", Text}, Arg{"timeout", Scalar | Optional}),
			Async:   true,
			Doc:     "Fetches the URL with HTTP GET and returns the body.  The default timeout is 30 seconds.",
			Impl:    getURL,
		},
	}
}

func getURL(c *Call) {
	timeout := DefaultURLTimeout
	if c.Has(1) {
		timeout = seconds(c.Arg(1).NumberValue())
	}
	url := c.Arg(0).StringValue()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	c.SetAbort(cancel)

	c.Env.Logger().Debug().Str("url", url).Msg("geturl")
	sched := c.Env.Scheduler()
	pos := c.Pos
	go func() {
		defer cancel()
		body, err := fetch(ctx, url)
		var v core.Value
		if err != nil {
			v = core.FromError(core.Errorf(core.User, pos, "%s", err))
		} else {
			v = core.String(body)
		}
		sched.After(0, func() {
			c.Finish(v)
		})
	}()
}

func fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	bs, err := ioutil.ReadAll(io.LimitReader(resp.Body, MaxURLBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return "", fmt.Errorf("HTTP status %d from %s", resp.StatusCode, url)
	}
	return string(bs), nil
}

// All returns every builtin of this package.
func All() []*Descriptor {
	var acc []*Descriptor
	for _, set := range [][]*Descriptor{Standard(), Calendar(), Timed(), Async()} {
		acc = append(acc, set...)
	}
	return acc
}
