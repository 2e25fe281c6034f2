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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTelemetry(t *testing.T) {
	t.Run("With the global providers", func(t *testing.T) {
		tel := New()
		assert.Equal(t, otel.GetTracerProvider().Tracer(scope, trace.WithInstrumentationVersion(Version())), tel.Tracer())
		assert.Equal(t, otel.GetMeterProvider().Meter(scope, metric.WithInstrumentationVersion(Version())), tel.Meter())
	})
	t.Run("With explicit providers", func(t *testing.T) {
		tracerProvider := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tracerProvider.Shutdown(context.Background()) })
		meterProvider := noop.NewMeterProvider()

		tel := New(WithTracerProvider(tracerProvider), WithMeterProvider(meterProvider))
		assert.Same(t, tracerProvider, tel.tracerProvider)
		assert.Equal(t, meterProvider, tel.meterProvider)

		_, span := tel.Tracer().Start(context.Background(), "probe")
		assert.True(t, span.SpanContext().IsValid())
		span.End()
	})
	t.Run("With telemetry disabled", func(t *testing.T) {
		tel := New(WithTracerProvider(sdktrace.NewTracerProvider()), Disabled())
		_, span := tel.Tracer().Start(context.Background(), "probe")
		assert.False(t, span.SpanContext().IsValid())
		span.End()
		assert.Equal(t, noop.NewMeterProvider(), tel.meterProvider)
	})
}

func TestWorkerMetric(t *testing.T) {
	t.Run("With a noop meter", func(t *testing.T) {
		instruments, err := NewWorkerMetric(noop.NewMeterProvider().Meter("test"))
		require.NoError(t, err)
		require.NotNil(t, instruments.OwnedShards())
		require.NotNil(t, instruments.Acquisitions())
		require.NotNil(t, instruments.LeaseLosses())
		require.NotNil(t, instruments.Failures())
		require.NotNil(t, instruments.RunDuration())
	})

	errBoom := errors.New("boom")
	for _, name := range []string{
		"shardworker.shards.owned",
		"shardworker.acquisitions",
		"shardworker.lease.losses",
		"shardworker.failures",
		"shardworker.run.duration",
	} {
		t.Run("With "+name+" failing", func(t *testing.T) {
			meter := failingMeter{Meter: noop.NewMeterProvider().Meter("test"), name: name, err: errBoom}
			instruments, err := NewWorkerMetric(meter)
			require.ErrorIs(t, err, errBoom)
			require.Nil(t, instruments)
		})
	}
}

// failingMeter fails the creation of the instrument called name
type failingMeter struct {
	metric.Meter
	name string
	err  error
}

func (m failingMeter) Int64Counter(name string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == m.name {
		return nil, m.err
	}
	return m.Meter.Int64Counter(name, opts...)
}

func (m failingMeter) Int64ObservableGauge(name string, opts ...metric.Int64ObservableGaugeOption) (metric.Int64ObservableGauge, error) {
	if name == m.name {
		return nil, m.err
	}
	return m.Meter.Int64ObservableGauge(name, opts...)
}

func (m failingMeter) Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == m.name {
		return nil, m.err
	}
	return m.Meter.Float64Histogram(name, opts...)
}
