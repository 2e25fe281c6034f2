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

// Package discovery builds mesh states by polling a peer discovery provider.
//
// Peers found by a discovery.Directory keep the id they registered with.
// Other providers only return addresses, so their peers are identified by
// address and the own node should use its advertised address as id,
// otherwise other members compute shard maps over a different id.
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"go.uber.org/atomic"

	sd "github.com/tochemey/shardmesh/discovery"
	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
)

const (
	maxRetries   = 3
	initialDelay = 100 * time.Millisecond
)

// Watcher polls a discovery provider and publishes the resulting node sets
type Watcher struct {
	mu       sync.Mutex
	provider sd.Provider
	self     *mesh.Node
	stream   *membership.Stream
	logger   log.Logger
	period   time.Duration
	started  *atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
}

// enforce compilation error
var _ membership.Service = (*Watcher)(nil)

// New creates a Watcher over provider. Until Start, the published state only holds self.
func New(provider sd.Provider, self *mesh.Node, opts ...membership.Option) *Watcher {
	options := membership.NewOptions(opts...)
	_, directory := provider.(sd.Directory)
	if !directory && string(self.ID()) != self.Endpoint() {
		options.Logger().Warnf("node id %s differs from its endpoint %s: peers will not recognize it", self.ID(), self.Endpoint())
	}
	return &Watcher{
		provider: provider,
		self:     self,
		stream:   membership.NewStream(self, self),
		logger:   options.Logger(),
		period:   options.CheckPeriod(),
		started:  atomic.NewBool(false),
	}
}

// Self returns the own node
func (w *Watcher) Self() *mesh.Node {
	return w.self
}

// State returns the latest state
func (w *Watcher) State() *mesh.State {
	return w.stream.Current()
}

// Subscribe returns a new subscription
func (w *Watcher) Subscribe() *membership.Subscription {
	return w.stream.Subscribe()
}

// Start registers the own node, publishes the first peer list
// and keeps polling the provider every check period
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started.Load() {
		return gerrors.ErrWatcherStarted
	}

	if err := w.provider.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize %s discovery: %w", w.provider.ID(), err)
	}

	if err := w.provider.Register(); err != nil {
		return fmt.Errorf("failed to register on %s discovery: %w", w.provider.ID(), err)
	}

	retrier := retry.NewRetrier(maxRetries, initialDelay, time.Second)
	if err := retrier.RunContext(ctx, func(context.Context) error {
		return w.poll()
	}); err != nil {
		_ = w.provider.Deregister()
		return fmt.Errorf("failed to discover peers: %w", err)
	}

	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	w.started.Store(true)
	go w.loop()

	w.logger.Infof("%s discovery watcher started for node %s", w.provider.ID(), w.self)
	return nil
}

// Stop deregisters the own node and disposes the state stream
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started.CompareAndSwap(true, false) {
		w.stream.Close()
		return nil
	}

	close(w.stop)
	<-w.stopped
	w.stream.Close()

	return errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(w.provider.Deregister).
		AddErrorFn(w.provider.Close).
		Error()
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.poll(); err != nil {
				w.logger.Warnf("failed to discover peers with %s: %v", w.provider.ID(), err)
				w.stream.Fail(err)
			}
		}
	}
}

// poll fetches the peer list and publishes it with the own node
func (w *Watcher) poll() error {
	if directory, ok := w.provider.(sd.Directory); ok {
		return w.pollMembers(directory)
	}

	peers, err := w.provider.DiscoverPeers()
	if err != nil {
		return err
	}

	addresses := goset.NewThreadUnsafeSet(peers...)
	addresses.Remove(w.self.Endpoint())

	nodes := make([]*mesh.Node, 0, addresses.Cardinality()+1)
	nodes = append(nodes, w.self)
	for _, address := range addresses.ToSlice() {
		nodes = append(nodes, mesh.NewNode(mesh.NodeID(address), address))
	}

	membership.Apply(w.stream, w.logger, nodes)
	return nil
}

func (w *Watcher) pollMembers(directory sd.Directory) error {
	members, err := directory.DiscoverMembers()
	if err != nil {
		return err
	}

	nodes := make([]*mesh.Node, 0, len(members)+1)
	nodes = append(nodes, w.self)
	for _, member := range members {
		if member.ID == string(w.self.ID()) {
			continue
		}
		nodes = append(nodes, mesh.NewNode(mesh.NodeID(member.ID), member.Endpoint, mesh.WithMeta(member.Meta)))
	}

	membership.Apply(w.stream, w.logger, nodes)
	return nil
}
