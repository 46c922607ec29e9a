// Copyright 2018-2024 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package httpclient wraps http.Client for the typed remote-service clients.
// The wrapper forces context-carrying requests and injects the caller's
// bearer token on every outgoing call.
package httpclient

import (
	"errors"
	"net/http"
	"time"
)

// New returns a client built from the given options.
func New(opts ...Option) *Client {
	options := newOptions(opts...)

	var rt http.RoundTripper = http.DefaultTransport
	if options.RoundTripper != nil {
		rt = options.RoundTripper
	}

	httpClient := &http.Client{
		Timeout:   options.Timeout,
		Transport: &injectTransport{rt: rt, token: options.Token},
	}

	return &Client{c: httpClient}
}

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Timeout      time.Duration
	RoundTripper http.RoundTripper
	Token        string
}

// newOptions initializes the available default options.
func newOptions(opts ...Option) Options {
	opt := Options{
		Timeout: 60 * time.Second,
	}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Timeout provides a function to set the timeout option.
func Timeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

// RoundTripper provides a function to set a custom RoundTripper.
func RoundTripper(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.RoundTripper = rt
	}
}

// Token provides a function to set the bearer token attached to every
// request.
func Token(t string) Option {
	return func(o *Options) {
		o.Token = t
	}
}

// Client wraps a http.Client but only exposes the Do method
// to force consumers to always create a request with http.NewRequestWithContext()
type Client struct {
	c *http.Client
}

// Do sends the request.
func (c *Client) Do(r *http.Request) (*http.Response, error) {
	// bail out early if context is not set
	if r.Context() == nil {
		return nil, errors.New("error: request must have a context")
	}
	return c.c.Do(r)
}

type injectTransport struct {
	rt    http.RoundTripper
	token string
}

func (t injectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.token != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}

	return t.rt.RoundTrip(r)
}
