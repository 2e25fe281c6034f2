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
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"go.uber.org/goleak"

	"github.com/tochemey/shardmesh/config"
	"github.com/tochemey/shardmesh/dispatch"
	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/lock/memory"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
	"github.com/tochemey/shardmesh/telemetry"
	"github.com/tochemey/shardmesh/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(endpoint string) *config.Config {
	cfg := config.Default()
	cfg.Node.Endpoint = endpoint
	cfg.Schemes = []config.Scheme{{ID: "Backend", Shards: 10}}
	cfg.Worker.RepeatDelay = time.Millisecond
	cfg.Worker.Jitter = 0
	cfg.Worker.MinRetryDelay = 10 * time.Millisecond
	cfg.Worker.MaxRetryDelay = 40 * time.Millisecond
	cfg.Telemetry.Disabled = true
	return cfg
}

// shardSet records the shards a node is running
type shardSet struct {
	mu     sync.Mutex
	active map[int]bool
}

func newShardSet() *shardSet {
	return &shardSet{active: make(map[int]bool)}
}

func (s *shardSet) run(ctx context.Context, index int) error {
	s.mu.Lock()
	s.active[index] = true
	s.mu.Unlock()
	<-ctx.Done()
	s.mu.Lock()
	delete(s.active, index)
	s.mu.Unlock()
	return nil
}

func (s *shardSet) indexes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.active))
	for index := range s.active {
		out = append(out, index)
	}
	slices.Sort(out)
	return out
}

// brokenMeterProvider hands out meters that refuse callbacks, which makes worker runs fail
type brokenMeterProvider struct{ noop.MeterProvider }

func (brokenMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter { return brokenMeter{} }

type brokenMeter struct{ noop.Meter }

func (brokenMeter) RegisterCallback(metric.Callback, ...metric.Observable) (metric.Registration, error) {
	return nil, errors.New("meter unavailable")
}

type testChannel struct {
	name   string
	closed *atomic.Bool
}

func (c *testChannel) PeerName() string { return c.name }
func (c *testChannel) Close() error {
	c.closed.Store(true)
	return nil
}

func TestNew(t *testing.T) {
	t.Run("Without config", func(t *testing.T) {
		_, err := New(nil)
		require.Error(t, err)
	})
	t.Run("With an invalid config", func(t *testing.T) {
		_, err := New(config.Default())
		require.Error(t, err)
	})
	t.Run("With a shard function for an unknown scheme", func(t *testing.T) {
		_, err := New(testConfig("127.0.0.1:7001"),
			WithLogger(log.DiscardLogger),
			WithShardFunc("Search", newShardSet().run))
		require.ErrorIs(t, err, gerrors.ErrUndefinedScheme)
	})
	t.Run("With a static membership from config", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:7001")
		cfg.Node.ID = "a"
		cfg.Membership.Peers = []config.Peer{{ID: "b", Endpoint: "127.0.0.1:7002"}}

		h, err := New(cfg, WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		assert.Equal(t, mesh.NodeID("a"), h.Self().ID())
		assert.Equal(t, []mesh.NodeID{"a", "b"}, h.State().NodeIDs())
		assert.False(t, h.Started())
		assert.NotNil(t, h.Router())
	})
	t.Run("With a log file", func(t *testing.T) {
		cfg := testConfig("127.0.0.1:7001")
		cfg.Log.File = filepath.Join(t.TempDir(), "node.log")

		h, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, h.Logger())
		assert.FileExists(t, cfg.Log.File)
		require.NoError(t, h.Logger().Flush())
		h.closeLogFile()
	})
}

func TestHost(t *testing.T) {
	t.Run("Runs every shard on a single node", func(t *testing.T) {
		ctx := context.Background()
		self := mesh.NewNode("a", "127.0.0.1:7001")
		shards := newShardSet()

		h, err := New(testConfig(self.Endpoint()),
			WithLogger(log.DiscardLogger),
			WithWatcher(membership.NewStatic(self, nil)),
			WithLocker(memory.NewLocker()))
		require.NoError(t, err)
		require.NoError(t, h.Handle("Backend", shards.run))
		require.ErrorIs(t, h.Handle("Search", shards.run), gerrors.ErrUndefinedScheme)

		require.NoError(t, h.Start(ctx))
		assert.True(t, h.Started())
		require.ErrorIs(t, h.Start(ctx), gerrors.ErrHostStarted)
		require.ErrorIs(t, h.Handle("Backend", shards.run), gerrors.ErrHostStarted)

		assert.Eventually(t, func() bool {
			return len(shards.indexes()) == 10
		}, 5*time.Second, 10*time.Millisecond)

		w, ok := h.Worker("Backend")
		require.True(t, ok)
		assert.Len(t, w.OwnedShards(), 10)

		target, err := h.Target(42, "Backend")
		require.NoError(t, err)
		assert.True(t, target.IsLocal)
		assert.Equal(t, 2, target.Shard.Index())

		method := dispatch.NewMethod("Chat", "GetMessages", reflect.TypeFor[int]())
		routed, err := h.Route(method, []any{42}, "Backend")
		require.NoError(t, err)
		assert.Equal(t, target.PeerName(), routed.PeerName())

		_, err = h.Channel(ctx, method, []any{42}, "Backend")
		require.ErrorIs(t, err, gerrors.ErrNoDialer)

		require.NoError(t, h.Stop(ctx))
		assert.Empty(t, shards.indexes())
		require.ErrorIs(t, h.Stop(ctx), gerrors.ErrHostNotStarted)
		require.ErrorIs(t, h.Start(ctx), gerrors.ErrHostStopped)
	})
	t.Run("Splits the shards between two nodes", func(t *testing.T) {
		ctx := context.Background()
		a := mesh.NewNode("a", "127.0.0.1:7001")
		b := mesh.NewNode("b", "127.0.0.1:7002")
		locker := memory.NewLocker()

		shardsA, shardsB := newShardSet(), newShardSet()
		hostA, err := New(testConfig(a.Endpoint()),
			WithLogger(log.DiscardLogger),
			WithWatcher(membership.NewStatic(a, []*mesh.Node{b})),
			WithLocker(locker),
			WithShardFunc("Backend", shardsA.run))
		require.NoError(t, err)
		hostB, err := New(testConfig(b.Endpoint()),
			WithLogger(log.DiscardLogger),
			WithWatcher(membership.NewStatic(b, []*mesh.Node{a})),
			WithLocker(locker),
			WithShardFunc("Backend", shardsB.run))
		require.NoError(t, err)

		require.NoError(t, hostA.Start(ctx))
		require.NoError(t, hostB.Start(ctx))

		assert.Eventually(t, func() bool {
			return len(shardsA.indexes())+len(shardsB.indexes()) == 10
		}, 5*time.Second, 10*time.Millisecond)

		owned := append(shardsA.indexes(), shardsB.indexes()...)
		slices.Sort(owned)
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, owned)

		shardMap := hostA.State().ShardMap(hostA.Catalog().MustGet("Backend"))
		for _, index := range shardsA.indexes() {
			owner, ok := shardMap.Owner(index)
			require.True(t, ok)
			assert.Equal(t, a.ID(), owner.ID())
		}

		require.NoError(t, hostA.Stop(ctx))
		require.NoError(t, hostB.Stop(ctx))
		assert.Empty(t, locker.Held())
		require.NoError(t, locker.Close(ctx))
	})
	t.Run("Pools peer channels", func(t *testing.T) {
		ctx := context.Background()
		a := mesh.NewNode("a", "127.0.0.1:7001")
		b := mesh.NewNode("b", "127.0.0.1:7002")
		watcher := membership.NewStatic(a, []*mesh.Node{b})

		var channels []*testChannel
		var mu sync.Mutex
		dialer := dispatch.DialerFunc(func(_ context.Context, target mesh.Target) (dispatch.Channel, error) {
			mu.Lock()
			defer mu.Unlock()
			channel := &testChannel{name: target.PeerName(), closed: atomic.NewBool(false)}
			channels = append(channels, channel)
			return channel, nil
		})

		h, err := New(testConfig(a.Endpoint()),
			WithLogger(log.DiscardLogger),
			WithWatcher(watcher),
			WithLocker(memory.NewLocker()),
			WithDialer(dialer))
		require.NoError(t, err)

		method := dispatch.NewMethod("Chat", "GetMessages", reflect.TypeFor[int]())
		_, err = h.Channel(ctx, method, []any{1}, "Backend")
		require.ErrorIs(t, err, gerrors.ErrHostNotStarted)

		require.NoError(t, h.Start(ctx))

		// find a key owned by b so that removing b evicts its channel
		scheme := h.Catalog().MustGet("Backend")
		var key int
		for key = 0; key < 100; key++ {
			target, err := h.Target(key, scheme.ID())
			require.NoError(t, err)
			if target.NodeRef.ID == b.ID() {
				break
			}
		}

		channel, err := h.Channel(ctx, method, []any{key}, "Backend")
		require.NoError(t, err)
		again, err := h.Channel(ctx, method, []any{key}, "Backend")
		require.NoError(t, err)
		assert.Same(t, channel, again)

		watcher.Leave(b.ID())
		assert.Eventually(t, func() bool {
			return channel.(*testChannel).closed.Load()
		}, 5*time.Second, 10*time.Millisecond)

		require.NoError(t, h.Stop(ctx))
		mu.Lock()
		defer mu.Unlock()
		for _, c := range channels {
			assert.True(t, c.closed.Load())
		}
	})
	t.Run("Tears down when a worker cannot start", func(t *testing.T) {
		ctx := context.Background()
		self := mesh.NewNode("a", "127.0.0.1:7001")
		watcher := membership.NewStatic(self, nil)

		h, err := New(testConfig(self.Endpoint()),
			WithLogger(log.DiscardLogger),
			WithWatcher(watcher),
			WithLocker(memory.NewLocker()),
			WithShardFunc("Backend", nil))
		require.NoError(t, err)

		err = h.Start(ctx)
		require.Error(t, err)
		assert.False(t, h.Started())

		_, err = watcher.Subscribe().Next(ctx)
		assert.True(t, errors.Is(err, gerrors.ErrWatcherDisposed))
	})
	t.Run("Stops every worker when one of them fails", func(t *testing.T) {
		ctx := context.Background()
		locker := memory.NewLocker()
		t.Cleanup(func() { _ = locker.Close(ctx) })
		watcher := membership.NewStatic(mesh.NewNode("a", "127.0.0.1:7001"), nil)

		slow, err := worker.New(shard.MustScheme("Slow", 1), watcher, locker,
			func(ctx context.Context, _ int) error {
				<-ctx.Done()
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			worker.WithLogger(log.DiscardLogger),
			worker.WithTelemetry(telemetry.New(telemetry.Disabled())))
		require.NoError(t, err)
		broken, err := worker.New(shard.MustScheme("Broken", 1), watcher, locker,
			func(context.Context, int) error { return nil },
			worker.WithLogger(log.DiscardLogger),
			worker.WithTelemetry(telemetry.New(telemetry.Disabled(), telemetry.WithMeterProvider(brokenMeterProvider{}))))
		require.NoError(t, err)

		require.NoError(t, slow.Start(ctx))
		require.Eventually(t, func() bool { return len(locker.Held()) == 1 }, 2*time.Second, 10*time.Millisecond)
		require.NoError(t, broken.Start(ctx))

		h := &Host{workers: map[string]*worker.Worker{"Slow": slow, "Broken": broken}}
		err = h.stopWorkers(ctx)
		require.ErrorContains(t, err, "meter unavailable")
		assert.Empty(t, locker.Held())
		assert.Empty(t, slow.OwnedShards())
	})
}
