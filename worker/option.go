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

package worker

import (
	"time"

	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/telemetry"
)

const (
	// DefaultRepeatDelay is the pause between two successful runs of a shard
	DefaultRepeatDelay = 50 * time.Millisecond
	// DefaultJitter is the ratio applied to the repeat delay
	DefaultJitter = 0.25
	// DefaultMinRetryDelay is the delay after the first failure of a shard run
	DefaultMinRetryDelay = 100 * time.Millisecond
	// DefaultMaxRetryDelay caps the retry delay of a failing shard
	DefaultMaxRetryDelay = 5 * time.Second
	// DefaultReleaseTimeout bounds the release of a lease
	DefaultReleaseTimeout = 5 * time.Second
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Worker)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Worker)

// Apply applies the option
func (f OptionFunc) Apply(w *Worker) {
	f(w)
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(w *Worker) {
		w.logger = logger
	})
}

// WithKeyPrefix sets the prefix of the shard lock keys
func WithKeyPrefix(prefix string) Option {
	return OptionFunc(func(w *Worker) {
		w.keyPrefix = prefix
	})
}

// WithRepeatDelay sets the pause between successful runs and its jitter ratio
func WithRepeatDelay(delay time.Duration, jitter float64) Option {
	return OptionFunc(func(w *Worker) {
		w.repeatDelay = delay
		w.jitter = jitter
	})
}

// WithRetryDelays sets the bounds of the exponential retry delay of failing shards
func WithRetryDelays(minDelay, maxDelay time.Duration) Option {
	return OptionFunc(func(w *Worker) {
		w.minRetryDelay = minDelay
		w.maxRetryDelay = maxDelay
	})
}

// WithReleaseTimeout bounds the release of a lease after a run
func WithReleaseTimeout(timeout time.Duration) Option {
	return OptionFunc(func(w *Worker) {
		w.releaseTimeout = timeout
	})
}

// WithTelemetry sets the telemetry used for metrics and run spans
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return OptionFunc(func(w *Worker) {
		w.telemetry = tel
	})
}
