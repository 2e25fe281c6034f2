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

package membership

import (
	"time"

	"github.com/tochemey/shardmesh/log"
)

// DefaultCheckPeriod is how often pollers re-read membership without change events
const DefaultCheckPeriod = 10 * time.Second

// Options holds the settings shared by membership watchers
type Options struct {
	logger      log.Logger
	checkPeriod time.Duration
}

// Logger returns the configured logger
func (o *Options) Logger() log.Logger {
	return o.logger
}

// CheckPeriod returns the unconditional re-read period
func (o *Options) CheckPeriod() time.Duration {
	return o.checkPeriod
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

// WithCheckPeriod sets the unconditional re-read period of polling watchers
func WithCheckPeriod(period time.Duration) Option {
	return OptionFunc(func(o *Options) {
		if period > 0 {
			o.checkPeriod = period
		}
	})
}

// NewOptions applies opts over the defaults. Backends use it to share option handling.
func NewOptions(opts ...Option) *Options {
	return newOptions(opts...)
}

func newOptions(opts ...Option) *Options {
	o := &Options{
		logger:      log.DefaultLogger,
		checkPeriod: DefaultCheckPeriod,
	}
	for _, opt := range opts {
		opt.Apply(o)
	}
	return o
}
