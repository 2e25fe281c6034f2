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

// Package memberlist builds mesh states from a gossip cluster based on hashicorp/memberlist.
//
// Every member gossips its encoded node as memberlist node meta, so the node
// id, endpoint and metadata are known to all members without a registry.
package memberlist

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/hashicorp/memberlist"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/internal/tcp"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
)

// Watcher joins a gossip cluster and publishes its live members
type Watcher struct {
	mu      sync.Mutex
	config  *Config
	self    *mesh.Node
	stream  *membership.Stream
	logger  log.Logger
	period  time.Duration
	list    *memberlist.Memberlist
	events  *events
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

// Address returns the advertised gossip address once started
func (w *Watcher) Address() string {
	if !w.started.Load() {
		return ""
	}
	local := w.list.LocalNode()
	return net.JoinHostPort(local.Addr.String(), strconv.Itoa(int(local.Port)))
}

// Start creates the gossip member, joins the seeds and publishes the first state
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started.Load() {
		return gerrors.ErrWatcherStarted
	}

	w.config.Sanitize()
	if err := w.config.Validate(); err != nil {
		return fmt.Errorf("memberlist config is invalid: %w", err)
	}

	meta, err := membership.Encode(w.self)
	if err != nil {
		return err
	}
	if len(meta) > memberlist.MetaMaxSize {
		return fmt.Errorf("node %s metadata exceeds %d bytes", w.self.ID(), memberlist.MetaMaxSize)
	}

	advertise := w.config.AdvertiseAddr
	if advertise == "" {
		if advertise, err = tcp.AdvertiseIP(w.config.BindAddr); err != nil {
			return err
		}
	}

	w.events = newEvents()
	mconfig := memberlist.DefaultLANConfig()
	mconfig.Name = string(w.self.ID())
	mconfig.BindAddr = w.config.BindAddr
	mconfig.BindPort = w.config.BindPort
	mconfig.AdvertiseAddr = advertise
	mconfig.AdvertisePort = w.config.AdvertisePort
	mconfig.Delegate = &delegate{meta: meta}
	mconfig.Events = w.events
	mconfig.LogOutput = newLogWriter(w.logger)

	if err := w.initProvider(); err != nil {
		return err
	}

	list, err := memberlist.Create(mconfig)
	if err != nil {
		return errorschain.New(errorschain.ReturnAll()).
			AddError(fmt.Errorf("failed to create memberlist: %w", err)).
			AddErrorFn(w.closeProvider).
			Error()
	}
	w.list = list

	if err := w.join(ctx); err != nil {
		return errorschain.New(errorschain.ReturnAll()).
			AddError(err).
			AddErrorFn(list.Shutdown).
			AddErrorFn(w.closeProvider).
			Error()
	}

	w.refresh()
	w.stop = make(chan struct{})
	w.stopped = make(chan struct{})
	w.started.Store(true)
	go w.loop()

	w.logger.Infof("memberlist watcher of node %s started on %s", w.self.ID(), w.Address())
	return nil
}

// Stop leaves the gossip cluster and disposes the state stream
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
		AddError(w.list.Leave(w.config.LeaveTimeout)).
		AddErrorFn(w.list.Shutdown).
		AddErrorFn(w.closeProvider).
		Error()
}

// join contacts the seeds until one of them answers or the join timeout elapses.
// A node without seeds starts a new cluster.
func (w *Watcher) join(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.config.JoinTimeout)
	defer cancel()

	retrier := retry.NewRetrier(w.config.joinAttempts(), w.config.JoinRetryInterval, w.config.JoinRetryInterval)
	return retrier.RunContext(ctx, func(context.Context) error {
		seeds, err := w.seeds()
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			return nil
		}

		joined, err := w.list.Join(seeds)
		if joined == 0 {
			return fmt.Errorf("node %s failed to join %v: %w", w.self.ID(), seeds, err)
		}
		w.logger.Infof("node %s joined %d of %v", w.self.ID(), joined, seeds)
		return nil
	})
}

// seeds returns the configured seeds plus the provider peers, without the own address
func (w *Watcher) seeds() ([]string, error) {
	seeds := slices.Clone(w.config.Seeds)
	if w.config.Provider != nil {
		peers, err := w.config.Provider.DiscoverPeers()
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, peers...)
	}

	local := w.list.LocalNode()
	own := net.JoinHostPort(local.Addr.String(), strconv.Itoa(int(local.Port)))
	seeds = slices.DeleteFunc(seeds, func(seed string) bool { return seed == own })
	slices.Sort(seeds)
	return slices.Compact(seeds), nil
}

func (w *Watcher) initProvider() error {
	if w.config.Provider == nil {
		return nil
	}
	return errorschain.New(errorschain.ReturnFirst()).
		AddErrorFn(w.config.Provider.Initialize).
		AddErrorFn(w.config.Provider.Register).
		Error()
}

func (w *Watcher) closeProvider() error {
	if w.config.Provider == nil {
		return nil
	}
	return errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(w.config.Provider.Deregister).
		AddErrorFn(w.config.Provider.Close).
		Error()
}

// loop refreshes the state on every membership event and every check period
func (w *Watcher) loop() {
	defer close(w.stopped)

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-w.events.ch:
			w.refresh()
		case <-ticker.C:
			w.refresh()
		}
	}
}

// refresh publishes the live members of the gossip cluster
func (w *Watcher) refresh() {
	members := w.list.Members()
	nodes := make([]*mesh.Node, 0, len(members))
	nodes = append(nodes, w.self)
	for _, member := range members {
		if member.Name == string(w.self.ID()) {
			continue
		}

		node, err := membership.Decode(member.Meta)
		if err != nil {
			w.logger.Warnf("skipping member %s: %v", member.Name, err)
			continue
		}
		if string(node.ID()) != member.Name {
			w.logger.Warnf("skipping member %s: it advertises node id %s", member.Name, node.ID())
			continue
		}
		nodes = append(nodes, node)
	}
	membership.Apply(w.stream, w.logger, nodes)
}
