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

// Package telemetry carries the OpenTelemetry instruments of the mesh.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const scope = "github.com/tochemey/shardmesh"

// Telemetry holds the tracer and meter shard workers report through
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
}

// Option configures a Telemetry
type Option func(*Telemetry)

// WithTracerProvider replaces the global tracer provider
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(t *Telemetry) { t.tracerProvider = provider }
}

// WithMeterProvider replaces the global meter provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(t *Telemetry) { t.meterProvider = provider }
}

// Disabled records nothing
func Disabled() Option {
	return func(t *Telemetry) {
		t.tracerProvider = tracenoop.NewTracerProvider()
		t.meterProvider = metricnoop.NewMeterProvider()
	}
}

// New creates a Telemetry over the global OpenTelemetry providers
// unless options replace them
func New(opts ...Option) *Telemetry {
	t := &Telemetry{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tracer = t.tracerProvider.Tracer(scope, trace.WithInstrumentationVersion(Version()))
	t.meter = t.meterProvider.Meter(scope, metric.WithInstrumentationVersion(Version()))
	return t
}

// Tracer returns the mesh tracer
func (t *Telemetry) Tracer() trace.Tracer {
	return t.tracer
}

// Meter returns the mesh meter
func (t *Telemetry) Meter() metric.Meter {
	return t.meter
}
