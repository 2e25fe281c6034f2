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

package host

import (
	"github.com/tochemey/shardmesh/dispatch"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/telemetry"
	"github.com/tochemey/shardmesh/worker"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Host)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Host)

// Apply applies the option
func (f OptionFunc) Apply(h *Host) {
	f(h)
}

// WithLogger sets the logger, overriding the log section of the configuration
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(h *Host) {
		h.logger = logger
	})
}

// WithTelemetry sets the telemetry, overriding the telemetry section of the configuration
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(h *Host) {
		h.telemetry = tel
	})
}

// WithLocker uses locker instead of the configured lock backend.
// The host does not close a locker it did not build.
func WithLocker(locker lock.Locker) Option {
	return OptionFunc(func(h *Host) {
		h.locker = locker
	})
}

// WithWatcher uses watcher instead of the configured membership backend.
// The host starts and stops it with its own lifecycle.
func WithWatcher(watcher membership.Service) Option {
	return OptionFunc(func(h *Host) {
		h.watcher = watcher
	})
}

// WithShardFunc runs fn for every shard of the scheme with the given id owned by the node
func WithShardFunc(scheme string, fn worker.Func) Option {
	return OptionFunc(func(h *Host) {
		h.funcs[scheme] = fn
	})
}

// WithDialer enables the peer channel pool of the host
func WithDialer(dialer dispatch.Dialer) Option {
	return OptionFunc(func(h *Host) {
		h.dialer = dialer
	})
}

// WithRouterOptions configures the call router
func WithRouterOptions(opts ...dispatch.RouterOption) Option {
	return OptionFunc(func(h *Host) {
		h.routerOptions = append(h.routerOptions, opts...)
	})
}
