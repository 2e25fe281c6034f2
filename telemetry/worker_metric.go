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

package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// WorkerMetric groups the instruments describing shard worker activity.
//
// Instruments:
//   - shardworker.shards.owned      (Int64ObservableGauge)
//   - shardworker.acquisitions      (Int64Counter)
//   - shardworker.lease.losses      (Int64Counter)
//   - shardworker.failures          (Int64Counter)
//   - shardworker.run.duration      (Float64Histogram, unit "ms")
type WorkerMetric struct {
	ownedShards  metric.Int64ObservableGauge
	acquisitions metric.Int64Counter
	leaseLosses  metric.Int64Counter
	failures     metric.Int64Counter
	runDuration  metric.Float64Histogram
}

// NewWorkerMetric creates the shard worker instruments using meter.
// It returns an error if any instrument cannot be created.
func NewWorkerMetric(meter metric.Meter) (*WorkerMetric, error) {
	var instruments WorkerMetric
	var err error

	if instruments.ownedShards, err = meter.Int64ObservableGauge(
		"shardworker.shards.owned",
		metric.WithDescription("Number of shards currently run by the worker"),
	); err != nil {
		return nil, err
	}

	if instruments.acquisitions, err = meter.Int64Counter(
		"shardworker.acquisitions",
		metric.WithDescription("Total number of shard leases acquired"),
	); err != nil {
		return nil, err
	}

	if instruments.leaseLosses, err = meter.Int64Counter(
		"shardworker.lease.losses",
		metric.WithDescription("Total number of shard leases revoked while running"),
	); err != nil {
		return nil, err
	}

	if instruments.failures, err = meter.Int64Counter(
		"shardworker.failures",
		metric.WithDescription("Total number of failed shard runs"),
	); err != nil {
		return nil, err
	}

	if instruments.runDuration, err = meter.Float64Histogram(
		"shardworker.run.duration",
		metric.WithDescription("Duration of shard runs in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return &instruments, nil
}

// OwnedShards returns the gauge of owned shards.
//
// Use with Meter.RegisterCallback to observe the current value periodically.
func (x *WorkerMetric) OwnedShards() metric.Int64ObservableGauge {
	return x.ownedShards
}

// Acquisitions returns the counter of granted shard leases
func (x *WorkerMetric) Acquisitions() metric.Int64Counter {
	return x.acquisitions
}

// LeaseLosses returns the counter of revoked shard leases
func (x *WorkerMetric) LeaseLosses() metric.Int64Counter {
	return x.leaseLosses
}

// Failures returns the counter of failed shard runs
func (x *WorkerMetric) Failures() metric.Int64Counter {
	return x.failures
}

// RunDuration returns the histogram of shard run durations
func (x *WorkerMetric) RunDuration() metric.Float64Histogram {
	return x.runDuration
}
