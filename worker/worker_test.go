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
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/lock/memory"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
	"github.com/tochemey/shardmesh/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var backend = shard.MustScheme("Backend", 10)

// fastOptions keeps test runs short
func fastOptions(opts ...Option) []Option {
	return append([]Option{
		WithLogger(log.DiscardLogger),
		WithRepeatDelay(time.Millisecond, 0),
		WithRetryDelays(10*time.Millisecond, 40*time.Millisecond),
	}, opts...)
}

// runs counts the runs of every shard
type runs struct {
	mu     sync.Mutex
	counts map[int]int
}

func newRuns() *runs {
	return &runs{counts: make(map[int]int)}
}

func (r *runs) record(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[index]++
}

func (r *runs) count(index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[index]
}

// logSink collects the entries written by a zap logger
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNew(t *testing.T) {
	watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
	locker := memory.NewLocker()
	fn := func(context.Context, int) error { return nil }

	t.Run("With a sentinel scheme", func(t *testing.T) {
		_, err := New(shard.None, watcher, locker, fn)
		require.ErrorIs(t, err, gerrors.ErrInvalidScheme)
		_, err = New(shard.Undefined, watcher, locker, fn)
		require.ErrorIs(t, err, gerrors.ErrInvalidScheme)
	})
	t.Run("With a missing collaborator", func(t *testing.T) {
		_, err := New(backend, nil, locker, fn)
		require.Error(t, err)
		_, err = New(backend, watcher, nil, fn)
		require.Error(t, err)
		_, err = New(backend, watcher, locker, nil)
		require.Error(t, err)
	})
	t.Run("With invalid retry delays", func(t *testing.T) {
		_, err := New(backend, watcher, locker, fn, WithRetryDelays(time.Second, time.Millisecond))
		require.Error(t, err)
		_, err = New(backend, watcher, locker, fn, WithRetryDelays(0, time.Second))
		require.Error(t, err)
	})
	t.Run("With defaults", func(t *testing.T) {
		worker, err := New(backend, watcher, locker, fn)
		require.NoError(t, err)
		assert.Equal(t, backend, worker.Scheme())
		assert.Equal(t, DefaultRepeatDelay, worker.repeatDelay)
		assert.Equal(t, DefaultMinRetryDelay, worker.minRetryDelay)
		assert.Equal(t, DefaultMaxRetryDelay, worker.maxRetryDelay)
		assert.Equal(t, lock.DefaultKeyPrefix, worker.keyPrefix)
		assert.Empty(t, worker.OwnedShards())
	})
}

func TestWorker(t *testing.T) {
	t.Run("With a single node owning every shard", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		counter := newRuns()

		worker, err := New(backend, watcher, locker, func(_ context.Context, index int) error {
			counter.record(index)
			return nil
		}, fastOptions(WithKeyPrefix("test"))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))
		require.ErrorIs(t, worker.Start(t.Context()), gerrors.ErrWorkerStarted)

		all := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		require.Eventually(t, func() bool { return slices.Equal(worker.OwnedShards(), all) }, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool {
			for _, index := range all {
				if counter.count(index) < 3 {
					return false
				}
			}
			return true
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, worker.Stop(t.Context()))
		assert.Empty(t, worker.OwnedShards())
		assert.Empty(t, locker.Held())
		require.ErrorIs(t, worker.Stop(t.Context()), gerrors.ErrWorkerNotStarted)

		// the lock key carries the prefix, the scheme and the index
		lease, err := locker.Lock(t.Context(), lock.Key("test", backend, 3), "probe")
		require.NoError(t, err)
		require.NoError(t, lease.Release(t.Context()))
	})
	t.Run("With shards annotated by the holder node", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		key := lock.Key(lock.DefaultKeyPrefix, backend, 5)

		holding := make(chan struct{}, backend.ShardCount())
		worker, err := New(backend, watcher, locker, func(ctx context.Context, _ int) error {
			holding <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		}, fastOptions()...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		require.Eventually(t, func() bool {
			holder, ok := locker.Holder(key)
			return ok && holder == "a"
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, worker.Stop(t.Context()))
		assert.Empty(t, locker.Held())
	})
	t.Run("With shards moving between nodes", func(t *testing.T) {
		locker := memory.NewLocker()
		a, b := mesh.NewNode("a", ""), mesh.NewNode("b", "")
		watcherA := membership.NewStatic(a, []*mesh.Node{b})
		watcherB := membership.NewStatic(b, []*mesh.Node{a})

		fn := func(context.Context, int) error { return nil }
		workerA, err := New(backend, watcherA, locker, fn, fastOptions()...)
		require.NoError(t, err)
		workerB, err := New(backend, watcherB, locker, fn, fastOptions()...)
		require.NoError(t, err)

		require.NoError(t, workerA.Start(t.Context()))
		require.NoError(t, workerB.Start(t.Context()))

		shardMap := mesh.NewShardMap(backend, []*mesh.Node{a, b})
		require.Eventually(t, func() bool {
			return slices.Equal(workerA.OwnedShards(), shardMap.ShardsOf("a")) &&
				slices.Equal(workerB.OwnedShards(), shardMap.ShardsOf("b"))
		}, 2*time.Second, 10*time.Millisecond)

		// b leaves: a takes every shard over
		watcherA.Leave("b")
		require.NoError(t, workerB.Stop(t.Context()))
		require.Eventually(t, func() bool {
			return len(workerA.OwnedShards()) == backend.ShardCount()
		}, 2*time.Second, 10*time.Millisecond)

		// a loses its own node: it stops everything
		watcherA.SetNodes(b)
		require.Eventually(t, func() bool {
			return len(workerA.OwnedShards()) == 0 && len(locker.Held()) == 0
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, workerA.Stop(t.Context()))
	})
	t.Run("With exclusive shard runs under membership churn", func(t *testing.T) {
		locker := memory.NewLocker()
		nodes := []*mesh.Node{mesh.NewNode("a", ""), mesh.NewNode("b", ""), mesh.NewNode("c", "")}

		var active [10]atomic.Int32
		violations := atomic.NewInt32(0)
		total := atomic.NewInt64(0)
		fn := func(ctx context.Context, index int) error {
			if active[index].Inc() > 1 {
				violations.Inc()
			}
			defer active[index].Dec()
			total.Inc()

			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Millisecond):
			}
			return nil
		}

		watchers := make([]*membership.Static, len(nodes))
		workers := make([]*Worker, len(nodes))
		for i, node := range nodes {
			watchers[i] = membership.NewStatic(node, nodes)
			worker, err := New(backend, watchers[i], locker, fn, fastOptions()...)
			require.NoError(t, err)
			require.NoError(t, worker.Start(t.Context()))
			workers[i] = worker
		}

		// every node sees its own, independently changing, view of the mesh
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			for _, watcher := range watchers {
				view := []*mesh.Node{watcher.Self()}
				for _, node := range nodes {
					if node != watcher.Self() && rand.IntN(2) == 0 {
						view = append(view, node)
					}
				}
				watcher.SetNodes(view...)
			}
			time.Sleep(5 * time.Millisecond)
		}

		for _, worker := range workers {
			require.NoError(t, worker.Stop(t.Context()))
		}
		assert.Zero(t, violations.Load())
		assert.Positive(t, total.Load())
		assert.Empty(t, locker.Held())
	})
	t.Run("With a failing shard backing off", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		scheme := shard.MustScheme("Single", 1)

		var mu sync.Mutex
		var calls []time.Time
		worker, err := New(scheme, watcher, locker, func(context.Context, int) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, time.Now())
			return errors.New("boom")
		}, fastOptions(WithRetryDelays(20*time.Millisecond, 80*time.Millisecond))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(calls) >= 5
		}, 3*time.Second, 10*time.Millisecond)
		require.NoError(t, worker.Stop(t.Context()))

		mu.Lock()
		defer mu.Unlock()
		expected := []time.Duration{20, 40, 80, 80}
		for i, minimum := range expected {
			assert.GreaterOrEqual(t, calls[i+1].Sub(calls[i]), minimum*time.Millisecond, "retry %d", i+1)
		}
	})
	t.Run("With a success resetting the failure counter", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		scheme := shard.MustScheme("Single", 1)

		var mu sync.Mutex
		var calls []time.Time
		worker, err := New(scheme, watcher, locker, func(context.Context, int) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, time.Now())
			// fail five times, succeed once, then fail again
			if len(calls) == 6 {
				return nil
			}
			return errors.New("boom")
		}, fastOptions(WithRetryDelays(20*time.Millisecond, 5*time.Second))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(calls) >= 8
		}, 5*time.Second, 10*time.Millisecond)
		require.NoError(t, worker.Stop(t.Context()))

		mu.Lock()
		defer mu.Unlock()
		// the failure after the success waits the first retry delay, not the sixth
		assert.Less(t, calls[7].Sub(calls[6]), 300*time.Millisecond)
	})
	t.Run("With a revoked lease", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		scheme := shard.MustScheme("Single", 1)
		key := lock.Key(lock.DefaultKeyPrefix, scheme, 0)

		starts := atomic.NewInt32(0)
		causes := make(chan error, 4)
		worker, err := New(scheme, watcher, locker, func(ctx context.Context, _ int) error {
			starts.Inc()
			<-ctx.Done()
			causes <- context.Cause(ctx)
			return ctx.Err()
		}, fastOptions(WithRetryDelays(time.Minute, time.Hour))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		require.Eventually(t, func() bool { return starts.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
		require.True(t, locker.Revoke(key))

		select {
		case cause := <-causes:
			require.ErrorIs(t, cause, gerrors.ErrLeaseLost)
		case <-time.After(2 * time.Second):
			require.Fail(t, "the shard run was not interrupted")
		}

		// the shard is acquired again right away, without the failure backoff
		require.Eventually(t, func() bool { return starts.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, worker.Stop(t.Context()))
		require.ErrorIs(t, <-causes, context.Canceled)
		assert.Empty(t, locker.Held())
	})
	t.Run("With a disposed watcher", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		worker, err := New(backend, watcher, locker, func(ctx context.Context, _ int) error {
			<-ctx.Done()
			return nil
		}, fastOptions()...)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- worker.Run(t.Context()) }()
		require.Eventually(t, func() bool { return len(locker.Held()) == backend.ShardCount() }, 2*time.Second, 10*time.Millisecond)
		require.ErrorIs(t, worker.Run(t.Context()), gerrors.ErrWorkerStarted)

		require.NoError(t, watcher.Stop(t.Context()))
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			require.Fail(t, "the worker did not stop")
		}
		assert.Empty(t, locker.Held())
		assert.Empty(t, worker.OwnedShards())
	})
	t.Run("With transient watcher errors", func(t *testing.T) {
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		worker, err := New(backend, watcher, locker, func(context.Context, int) error { return nil }, fastOptions()...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		for i := range 3 {
			watcher.Fail(fmt.Errorf("transient %d", i))
		}
		watcher.Join(mesh.NewNode("b", ""))

		shardMap := mesh.NewShardMap(backend, watcher.State().Nodes())
		require.Eventually(t, func() bool {
			return slices.Equal(worker.OwnedShards(), shardMap.ShardsOf("a"))
		}, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, worker.Stop(t.Context()))
	})
	t.Run("With lease acquisitions and watcher errors logged at the default level", func(t *testing.T) {
		sink := new(logSink)
		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		worker, err := New(backend, watcher, locker, func(context.Context, int) error { return nil },
			fastOptions(WithLogger(log.NewZap(log.InfoLevel, sink)))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))

		require.Eventually(t, func() bool {
			return strings.Contains(sink.String(), "shard lease acquired")
		}, 2*time.Second, 10*time.Millisecond)

		watcher.Fail(errors.New("backend unreachable"))
		require.Eventually(t, func() bool {
			return strings.Contains(sink.String(), "membership watcher error: backend unreachable")
		}, 2*time.Second, 10*time.Millisecond)
		assert.Contains(t, sink.String(), `"level":"error"`)
		require.NoError(t, worker.Stop(t.Context()))
	})
	t.Run("With metrics", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

		locker := memory.NewLocker()
		watcher := membership.NewStatic(mesh.NewNode("a", ""), nil)
		fails := atomic.NewBool(true)
		worker, err := New(backend, watcher, locker, func(context.Context, int) error {
			if fails.CompareAndSwap(true, false) {
				return errors.New("boom")
			}
			return nil
		}, fastOptions(WithTelemetry(telemetry.New(telemetry.WithMeterProvider(provider))))...)
		require.NoError(t, err)
		require.NoError(t, worker.Start(t.Context()))
		require.Eventually(t, func() bool { return locker.Grants() > 20 }, 2*time.Second, 10*time.Millisecond)

		var data metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(t.Context(), &data))
		require.NoError(t, worker.Stop(t.Context()))

		assert.Positive(t, sumOf(data, "shardworker.acquisitions"))
		assert.EqualValues(t, 1, sumOf(data, "shardworker.failures"))
		assert.EqualValues(t, backend.ShardCount(), gaugeOf(data, "shardworker.shards.owned"))
	})
}

func sumOf(data metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				for _, point := range sum.DataPoints {
					total += point.Value
				}
			}
		}
	}
	return total
}

func gaugeOf(data metricdata.ResourceMetrics, name string) int64 {
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			if gauge, ok := m.Data.(metricdata.Gauge[int64]); ok && m.Name == name && len(gauge.DataPoints) > 0 {
				return gauge.DataPoints[0].Value
			}
		}
	}
	return 0
}
