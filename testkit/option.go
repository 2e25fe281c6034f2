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

package testkit

import (
	"os"

	"github.com/tochemey/shardmesh/config"
	"github.com/tochemey/shardmesh/host"
	"github.com/tochemey/shardmesh/log"
)

// Option is the interface that applies a MultiNodes option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(m *MultiNodes)
}

// enforce compilation error
var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(m *MultiNodes)

func (f OptionFunc) Apply(m *MultiNodes) {
	f(m)
}

// WithLogging sets the logger of every node
func WithLogging(level log.Level) Option {
	return OptionFunc(func(m *MultiNodes) {
		m.logger = log.NewZap(level, os.Stderr)
	})
}

// WithSchemes sets the schemes every node is configured with
func WithSchemes(schemes ...config.Scheme) Option {
	return OptionFunc(func(m *MultiNodes) {
		m.schemes = schemes
	})
}

// WithWorker overrides the worker settings of every node
func WithWorker(worker config.Worker) Option {
	return OptionFunc(func(m *MultiNodes) {
		m.worker = worker
	})
}

// WithNATSLocks makes every node take its shard leases from a NATS key-value
// bucket served by an embedded server instead of the shared in-memory locker.
func WithNATSLocks() Option {
	return OptionFunc(func(m *MultiNodes) {
		m.natsLocks = true
	})
}

// WithHostOptions adds options to every node host
func WithHostOptions(opts ...host.Option) Option {
	return OptionFunc(func(m *MultiNodes) {
		m.hostOptions = append(m.hostOptions, opts...)
	})
}
