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

package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/internal/xsync"
	zkutil "github.com/tochemey/shardmesh/internal/zookeeper"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
)

// Locker grants shard locks with the ZooKeeper lock recipe: every contender
// creates an ephemeral sequential node under the key and the lowest sequence
// holds the lock. The session, kept alive by the client, is the lease; the
// lease is lost when its node disappears or the session expires.
type Locker struct {
	conn   *zk.Conn
	config *Config
	logger log.Logger
	leases *xsync.Map[*lease, struct{}]
	closed *atomic.Bool
	mu     sync.Mutex
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker connects to the ensemble and creates a Locker.
// The lock TTL is used as the session timeout.
func NewLocker(config *Config, opts ...lock.Option) (*Locker, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("zookeeper lock config is invalid: %w", err)
	}

	options := lock.NewOptions(opts...)
	conn, _, err := zkutil.Connect(config.Servers, options.TTL(), config.ConnectTimeout, options.Logger())
	if err != nil {
		return nil, err
	}

	if err := zkutil.EnsurePath(conn, config.Root); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create %s: %w", config.Root, err)
	}

	return &Locker{
		conn:   conn,
		config: config,
		logger: options.Logger(),
		leases: xsync.NewMap[*lease, struct{}](),
		closed: atomic.NewBool(false),
	}, nil
}

// Lock implements lock.Locker
func (l *Locker) Lock(ctx context.Context, key, annotation string) (lock.Lease, error) {
	if l.closed.Load() {
		return nil, gerrors.ErrLockerClosed
	}

	dir := path.Join(l.config.Root, key)
	if err := zkutil.EnsurePath(l.conn, dir); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	node, err := l.conn.CreateProtectedEphemeralSequential(dir+"/lock-", []byte(annotation), zkutil.ACL)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue for lock %s: %w", key, err)
	}

	if err := l.await(ctx, dir, path.Base(node)); err != nil {
		_ = l.conn.Delete(node, -1)
		return nil, err
	}

	granted := &lease{
		locker:   l,
		key:      key,
		node:     node,
		lost:     lock.NewSignal(),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		released: atomic.NewBool(false),
	}
	go granted.watch()

	l.leases.Set(granted, struct{}{})
	l.logger.Debugf("zookeeper lock %s granted (node=%s)", key, node)
	return granted, nil
}

// await blocks until name has the lowest sequence under dir
func (l *Locker) await(ctx context.Context, dir, name string) error {
	seq, err := zkutil.Sequence(name)
	if err != nil {
		return err
	}

	for {
		children, _, err := l.conn.Children(dir)
		if err != nil {
			return err
		}

		predecessor, previous := "", -1
		for _, child := range children {
			other, err := zkutil.Sequence(child)
			if err != nil {
				continue
			}
			if other < seq && other > previous {
				predecessor, previous = child, other
			}
		}

		if predecessor == "" {
			return nil
		}

		exists, _, events, err := l.conn.ExistsW(dir + "/" + predecessor)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-events:
			if event.Err != nil {
				return event.Err
			}
		}
	}
}

// Close implements lock.Locker
func (l *Locker) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	chain := errorschain.New(errorschain.ReturnAll())
	for _, granted := range l.leases.Keys() {
		chain = chain.AddError(granted.Release(ctx))
	}
	err := chain.Error()
	l.conn.Close()
	return err
}

type lease struct {
	locker   *Locker
	key      string
	node     string
	lost     *lock.Signal
	stop     chan struct{}
	stopped  chan struct{}
	released *atomic.Bool
}

var _ lock.Lease = (*lease)(nil)

func (x *lease) Key() string {
	return x.key
}

func (x *lease) Lost() <-chan struct{} {
	return x.lost.Done()
}

func (x *lease) Release(context.Context) error {
	if !x.released.CompareAndSwap(false, true) {
		return nil
	}
	close(x.stop)
	<-x.stopped
	x.locker.leases.Delete(x)

	if x.lost.Fired() {
		return nil
	}
	if err := x.locker.conn.Delete(x.node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return fmt.Errorf("failed to release lock %s: %w", x.key, err)
	}
	return nil
}

// watch fires the loss signal when the lock node goes away
func (x *lease) watch() {
	defer close(x.stopped)
	for {
		exists, _, events, err := x.locker.conn.ExistsW(x.node)
		if err != nil || !exists {
			x.lost.Fire()
			return
		}

		select {
		case <-x.stop:
			return
		case event := <-events:
			switch {
			case event.Type == zk.EventNodeDeleted,
				event.Type == zk.EventNotWatching,
				event.State == zk.StateExpired:
				x.lost.Fire()
				return
			}
		}
	}
}
