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

// Package testkit runs several mesh nodes in one process.
//
// Every node gets a static membership watcher that MultiNodes keeps in sync
// as nodes start and stop, and leases from a locker shared by the whole mesh.
package testkit

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"
	"go.uber.org/atomic"

	"github.com/tochemey/shardmesh/config"
	"github.com/tochemey/shardmesh/host"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/lock/memory"
	lnats "github.com/tochemey/shardmesh/lock/nats"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/worker"
)

const hostAddr = "127.0.0.1"

// MultiNodes is an in-process mesh of test nodes
type MultiNodes struct {
	gt          *testing.T
	logger      log.Logger
	schemes     []config.Scheme
	worker      config.Worker
	natsLocks   bool
	hostOptions []host.Option

	mu      sync.Mutex
	nodes   []*TestNode
	locker  *memory.Locker
	server  *natsserver.Server
	started *atomic.Bool
}

// NewMultiNodes creates a MultiNodes. Nodes default to one Backend scheme of
// ten shards and worker delays short enough for tests.
func NewMultiNodes(t *testing.T, opts ...Option) *MultiNodes {
	m := &MultiNodes{
		gt:      t,
		logger:  log.DiscardLogger,
		schemes: []config.Scheme{{ID: "Backend", Shards: 10}},
		worker: config.Worker{
			KeyPrefix:      lock.DefaultKeyPrefix,
			RepeatDelay:    time.Millisecond,
			MinRetryDelay:  10 * time.Millisecond,
			MaxRetryDelay:  100 * time.Millisecond,
			ReleaseTimeout: time.Second,
		},
		started: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt.Apply(m)
	}
	return m
}

// Start prepares the shared lock service. It must be called before StartNode.
func (m *MultiNodes) Start() {
	// no-op when already started
	if m.started.Load() {
		return
	}

	if m.natsLocks {
		serv, err := natsserver.NewServer(&natsserver.Options{
			Host:      hostAddr,
			Port:      -1,
			JetStream: true,
			StoreDir:  m.gt.TempDir(),
			NoLog:     true,
		})
		require.NoError(m.gt, err)

		ready := make(chan bool)
		go func() {
			ready <- true
			serv.Start()
		}()
		<-ready

		if !serv.ReadyForConnections(2 * time.Second) {
			m.gt.Fatalf("nats-io server failed to start")
		}
		m.server = serv
	} else {
		m.locker = memory.NewLocker()
	}

	m.started.Store(true)
}

// Stop stops every node then the shared lock service
func (m *MultiNodes) Stop() {
	// no-op when already stopped
	if !m.started.Load() {
		return
	}

	ctx := context.Background()
	for _, node := range m.Nodes() {
		m.StopNode(ctx, node.ID())
	}

	if m.locker != nil {
		require.NoError(m.gt, m.locker.Close(ctx))
		m.locker = nil
	}
	if m.server != nil {
		m.server.Shutdown()
		m.server.WaitForShutdown()
		m.server = nil
	}
	m.started.Store(false)
}

// StartNode starts a node handling the given schemes and announces it to the running nodes.
// The shard functions are wrapped so that TestNode.Running reports them.
func (m *MultiNodes) StartNode(ctx context.Context, id string, fns map[string]worker.Func) *TestNode {
	require.True(m.gt, m.started.Load(), "multi-nodes must be started before starting a node")

	m.mu.Lock()
	defer m.mu.Unlock()

	require.False(m.gt, slices.ContainsFunc(m.nodes, func(n *TestNode) bool { return n.ID() == mesh.NodeID(id) }),
		"node %s already started", id)

	endpoint := net.JoinHostPort(hostAddr, strconv.Itoa(dynaport.Get(1)[0]))
	self := mesh.NewNode(mesh.NodeID(id), endpoint)

	peers := make([]*mesh.Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		peers = append(peers, node.Node())
	}
	watcher := membership.NewStatic(self, peers, membership.WithLogger(m.logger))
	node := newTestNode(m.gt, self, watcher)

	locker := lock.Locker(m.locker)
	if m.server != nil {
		natsLocker, err := lnats.NewLocker(&lnats.Config{
			URL:          m.server.ClientURL(),
			PollInterval: 50 * time.Millisecond,
		}, lock.WithLogger(m.logger), lock.WithTTL(3*time.Second))
		require.NoError(m.gt, err)
		locker = natsLocker
		node.locker = natsLocker
	}

	cfg := config.Default()
	cfg.Node.ID = id
	cfg.Node.Endpoint = endpoint
	cfg.Schemes = m.schemes
	cfg.Worker = m.worker
	cfg.Telemetry.Disabled = true

	options := append([]host.Option{
		host.WithLogger(m.logger),
		host.WithWatcher(watcher),
		host.WithLocker(locker),
	}, m.hostOptions...)
	for scheme, fn := range fns {
		options = append(options, host.WithShardFunc(scheme, node.track(scheme, fn)))
	}

	h, err := host.New(cfg, options...)
	require.NoError(m.gt, err)
	require.NoError(m.gt, h.Start(ctx))
	node.host = h

	for _, peer := range m.nodes {
		peer.Watcher().Join(self)
	}
	m.nodes = append(m.nodes, node)
	return node
}

// StopNode stops the node with the given id, which releases its leases,
// then removes it from the membership of the remaining nodes.
func (m *MultiNodes) StopNode(ctx context.Context, id mesh.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	position := slices.IndexFunc(m.nodes, func(n *TestNode) bool { return n.ID() == id })
	require.GreaterOrEqual(m.gt, position, 0, "node %s is not started", id)
	node := m.nodes[position]
	m.nodes = slices.Delete(m.nodes, position, position+1)

	err := errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(func() error { return node.host.Stop(ctx) }).
		AddErrorFn(func() error {
			if node.locker == nil {
				return nil
			}
			return node.locker.Close(ctx)
		}).
		Error()
	require.NoError(m.gt, err, "failed to stop node %s", id)

	for _, peer := range m.nodes {
		peer.Watcher().Leave(id)
	}
}

// Node returns the running node with the given id
func (m *MultiNodes) Node(id mesh.NodeID) (*TestNode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	position := slices.IndexFunc(m.nodes, func(n *TestNode) bool { return n.ID() == id })
	if position < 0 {
		return nil, false
	}
	return m.nodes[position], true
}

// Nodes returns the running nodes in start order
func (m *MultiNodes) Nodes() []*TestNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.nodes)
}

// Locker returns the shared in-memory locker, nil with NATS locks
func (m *MultiNodes) Locker() *memory.Locker {
	return m.locker
}

// AwaitBalanced waits until every node sees the whole mesh and runs exactly
// the shards of scheme the rendezvous map assigns to it.
func (m *MultiNodes) AwaitBalanced(scheme string, timeout time.Duration) {
	m.gt.Helper()
	require.Eventually(m.gt, func() bool {
		return m.balanced(scheme) == nil
	}, timeout, 20*time.Millisecond, "scheme %s is not balanced", scheme)
}

func (m *MultiNodes) balanced(scheme string) error {
	nodes := m.Nodes()
	for _, node := range nodes {
		state := node.Host().State()
		if state.Len() != len(nodes) {
			return fmt.Errorf("node %s sees %d nodes", node.ID(), state.Len())
		}

		s, err := node.Host().Catalog().Lookup(scheme)
		if err != nil {
			return err
		}
		want := state.ShardMap(s).ShardsOf(node.ID())
		if got := node.Running(scheme); !slices.Equal(want, got) {
			return fmt.Errorf("node %s runs %v, owns %v", node.ID(), got, want)
		}
	}
	return nil
}
