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

// Package zookeeper builds mesh states from ephemeral member nodes kept in ZooKeeper.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	zkutil "github.com/tochemey/shardmesh/internal/zookeeper"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
)

// Watcher registers the own node as an ephemeral child of the root node
// and publishes the registered children. A member that loses its session
// registers again once the client has a new one.
type Watcher struct {
	mu      sync.Mutex
	config  *Config
	self    *mesh.Node
	stream  *membership.Stream
	logger  log.Logger
	period  time.Duration
	conn    *zk.Conn
	session <-chan zk.Event
	started *atomic.Bool
	stop    chan struct{}
	stopped chan struct{}
}

// enforce compilation error
var _ membership.Service = (*Watcher)(nil)

// New creates a Watcher. Until Start, the published state only holds self.
func New(config *Config, self *mesh.Node, opts ...membership.Option) *Watcher {
	options := membership.NewOptions(opts...)
	return &Watcher{
		config:  config,
		self:    self,
		stream:  membership.NewStream(self, self),
		logger:  options.Logger(),
		period:  options.CheckPeriod(),
		started: atomic.NewBool(false),
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

// Start connects to the ensemble, registers the own node and publishes the first state
func (w *Watcher) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started.Load() {
		return gerrors.ErrWatcherStarted
	}

	w.config.Sanitize()
	if err := w.config.Validate(); err != nil {
		return fmt.Errorf("zookeeper membership config is invalid: %w", err)
	}

	conn, session, err := zkutil.Connect(w.config.Servers, w.config.SessionTimeout, w.config.ConnectTimeout, w.logger)
	if err != nil {
		return err
	}
	w.conn = conn
	w.session = session

	if err := zkutil.EnsurePath(conn, w.config.Root); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create %s: %w", w.config.Root, err)
	}

	watch, err := w.sync()
	if err != nil {
		conn.Close()
		return err
	}

	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	w.started.Store(true)
	go w.loop(watch)

	w.logger.Infof("zookeeper membership watcher started for node %s", w.self)
	return nil
}

// Stop deletes the registration, closes the session and disposes the state stream
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

	err := w.conn.Delete(w.path(), -1)
	w.conn.Close()
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to deregister node %s: %w", w.self.ID(), err)
	}
	return nil
}

// register creates the own member node unless the current session already owns it.
// A node left behind by an expired session of this member is replaced.
func (w *Watcher) register() error {
	exists, stat, err := w.conn.Exists(w.path())
	if err != nil {
		return err
	}

	if exists {
		if stat.EphemeralOwner == w.conn.SessionID() {
			return nil
		}
		if err := w.conn.Delete(w.path(), stat.Version); err != nil && !errors.Is(err, zk.ErrNoNode) {
			return err
		}
	}

	payload, err := membership.Encode(w.self)
	if err != nil {
		return err
	}

	if _, err := w.conn.Create(w.path(), payload, zk.FlagEphemeral, zkutil.ACL); err != nil {
		return fmt.Errorf("failed to register node %s: %w", w.self.ID(), err)
	}
	w.logger.Debugf("node %s registered under %s", w.self.ID(), w.config.Root)
	return nil
}

// sync registers the own node, lists the members and publishes them.
// It returns the watch on the children of the root node.
func (w *Watcher) sync() (<-chan zk.Event, error) {
	if err := w.register(); err != nil {
		return nil, err
	}

	children, _, watch, err := w.conn.ChildrenW(w.config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	nodes := make([]*mesh.Node, 0, len(children)+1)
	nodes = append(nodes, w.self)
	for _, child := range children {
		data, _, err := w.conn.Get(path.Join(w.config.Root, child))
		if err != nil {
			// the member left between the listing and the read
			if errors.Is(err, zk.ErrNoNode) {
				continue
			}
			return nil, err
		}

		node, err := membership.Decode(data)
		if err != nil {
			w.logger.Warnf("skipping member %s: %v", child, err)
			continue
		}
		nodes = append(nodes, node)
	}

	membership.Apply(w.stream, w.logger, nodes)
	return watch, nil
}

// loop syncs on every children change, every new session and every check period
func (w *Watcher) loop(watch <-chan zk.Event) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	resync := func() {
		next, err := w.sync()
		if err != nil {
			w.logger.Warnf("zookeeper membership error: %v", err)
			w.stream.Fail(err)
			return
		}
		watch = next
	}

	for {
		select {
		case <-w.stop:
			return
		case <-watch:
			// a fired watch is single use
			watch = nil
			resync()
		case event, ok := <-w.session:
			if !ok {
				w.session = nil
				continue
			}
			switch event.State {
			case zk.StateExpired:
				w.logger.Warnf("zookeeper session of node %s expired", w.self.ID())
				w.stream.Fail(zk.ErrSessionExpired)
			case zk.StateHasSession:
				resync()
			}
		case <-ticker.C:
			if watch == nil {
				resync()
				continue
			}
			if err := w.register(); err != nil {
				w.logger.Warnf("zookeeper membership error: %v", err)
				w.stream.Fail(err)
			}
		}
	}
}

func (w *Watcher) path() string {
	return path.Join(w.config.Root, string(w.self.ID()))
}
