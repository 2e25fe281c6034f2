// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package lock

import (
	"time"

	"github.com/tochemey/shardmesh/log"
)

// Options holds the settings shared by lock backends
type Options struct {
	logger log.Logger
	ttl    time.Duration
}

// Logger returns the configured logger
func (o *Options) Logger() log.Logger {
	return o.logger
}

// TTL returns the lease lifetime
func (o *Options) TTL() time.Duration {
	return o.ttl
}

// RenewInterval returns how often a lease is renewed, a third of its TTL
func (o *Options) RenewInterval() time.Duration {
	return o.ttl / 3
}

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Options)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Options)

// Apply applies the options
func (f OptionFunc) Apply(o *Options) {
	f(o)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(o *Options) {
		o.logger = logger
	})
}

// WithTTL sets the lease lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return OptionFunc(func(o *Options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	})
}

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) *Options {
	o := &Options{
		logger: log.DefaultLogger,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt.Apply(o)
	}
	return o
}
