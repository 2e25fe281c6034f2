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

package etcd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
)

// Watcher registers the own node under a leased etcd key and rebuilds
// the mesh state from the keys found under the member prefix.
// The registration is renewed by an etcd session; when the session expires
// the node registers again with a new one.
type Watcher struct {
	mu      sync.Mutex
	config  *Config
	self    *mesh.Node
	stream  *membership.Stream
	options *membership.Options
	logger  log.Logger

	client    *clientv3.Client
	sessionMu sync.Mutex
	session   *concurrency.Session
	cancel    context.CancelFunc
	stopped   chan struct{}
	started   *atomic.Bool
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
		options: options,
		logger:  options.Logger(),
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

// Start connects to etcd, registers the own node and watches the member prefix
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started.Load() {
		return gerrors.ErrWatcherStarted
	}

	w.config.Sanitize()
	if err := w.config.Validate(); err != nil {
		return fmt.Errorf("etcd membership config is invalid: %w", err)
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   w.config.Endpoints,
		DialTimeout: w.config.DialTimeout,
		TLS:         w.config.TLS,
		Username:    w.config.Username,
		Password:    w.config.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to create etcd client: %w", err)
	}

	session, err := w.register(ctx, client)
	if err != nil {
		return errors.Join(err, client.Close())
	}

	revision, err := w.sync(ctx, client)
	if err != nil {
		return errors.Join(err, session.Close(), client.Close())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	w.client = client
	w.session = session
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.started.Store(true)

	go w.run(runCtx, revision)

	w.logger.Infof("etcd membership watcher started for node %s", w.self)
	return nil
}

// Stop revokes the registration and disposes the state stream
func (w *Watcher) Stop(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started.CompareAndSwap(true, false) {
		w.stream.Close()
		return nil
	}

	w.cancel()
	<-w.stopped
	w.stream.Close()

	return errorschain.New(errorschain.ReturnAll()).
		AddErrorFn(w.currentSession().Close).
		AddErrorFn(w.client.Close).
		Error()
}

// register creates a session and puts the own node under its lease
func (w *Watcher) register(ctx context.Context, client *clientv3.Client) (*concurrency.Session, error) {
	ttl := int(math.Ceil(w.config.TTL.Seconds()))
	session, err := concurrency.NewSession(client, concurrency.WithTTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	payload, err := membership.Encode(w.self)
	if err != nil {
		return nil, errors.Join(err, session.Close())
	}

	if _, err := client.Put(ctx, w.key(), string(payload), clientv3.WithLease(session.Lease())); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to register node %s: %w", w.self.ID(), err), session.Close())
	}
	return session, nil
}

// sync lists the members and publishes them. It returns the revision of the listing.
func (w *Watcher) sync(ctx context.Context, client *clientv3.Client) (int64, error) {
	resp, err := client.Get(ctx, w.config.Prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	nodes := make([]*mesh.Node, 0, len(resp.Kvs)+1)
	nodes = append(nodes, w.self)
	for _, kv := range resp.Kvs {
		node, err := membership.Decode(kv.Value)
		if err != nil {
			w.logger.Warnf("skipping member %s: %v", kv.Key, err)
			continue
		}
		nodes = append(nodes, node)
	}

	membership.Apply(w.stream, w.logger, nodes)
	return resp.Header.Revision, nil
}

// run follows the member prefix until ctx is canceled
func (w *Watcher) run(ctx context.Context, revision int64) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.options.CheckPeriod())
	defer ticker.Stop()

	watchCh := w.client.Watch(clientv3.WithRequireLeader(ctx), w.config.Prefix, clientv3.WithPrefix(), clientv3.WithRev(revision+1))
	for {
		select {
		case <-ctx.Done():
			return

		case <-w.currentSession().Done():
			w.logger.Warnf("etcd session of node %s expired, registering again", w.self.ID())
			session, err := w.register(ctx, w.client)
			if err != nil {
				w.fail(ctx, err)
				// back off until the next check
				select {
				case <-ctx.Done():
				case <-ticker.C:
				}
				continue
			}
			expired := w.currentSession()
			w.setSession(session)
			_ = expired.Close()

		case resp, ok := <-watchCh:
			if !ok || resp.Err() != nil {
				if ok {
					w.fail(ctx, resp.Err())
				}
				rev, err := w.sync(ctx, w.client)
				if err != nil {
					w.fail(ctx, err)
					rev = revision
				}
				revision = rev
				watchCh = w.client.Watch(clientv3.WithRequireLeader(ctx), w.config.Prefix, clientv3.WithPrefix(), clientv3.WithRev(revision+1))
				continue
			}
			if len(resp.Events) == 0 {
				continue
			}
			if rev, err := w.sync(ctx, w.client); err != nil {
				w.fail(ctx, err)
			} else {
				revision = rev
			}

		case <-ticker.C:
			if rev, err := w.sync(ctx, w.client); err != nil {
				w.fail(ctx, err)
			} else {
				revision = rev
			}
		}
	}
}

// fail reports a transient error unless the watcher is stopping
func (w *Watcher) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Warnf("etcd membership error: %v", err)
	w.stream.Fail(err)
}

func (w *Watcher) key() string {
	return w.config.Prefix + string(w.self.ID())
}

func (w *Watcher) currentSession() *concurrency.Session {
	w.sessionMu.Lock()
	defer w.sessionMu.Unlock()
	return w.session
}

func (w *Watcher) setSession(session *concurrency.Session) {
	w.sessionMu.Lock()
	defer w.sessionMu.Unlock()
	w.session = session
}
