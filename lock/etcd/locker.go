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

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
)

// Locker grants shard locks with etcd mutexes.
// Each lease owns an etcd session whose lease keeps the lock key alive;
// the lease is lost when the session can no longer be kept alive.
type Locker struct {
	client     *clientv3.Client
	ownsClient bool
	ttl        int
	logger     log.Logger
	leases     *xsync.Map[*lease, struct{}]
	closed     *atomic.Bool
	mu         sync.Mutex
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker connects to etcd and creates a Locker
func NewLocker(ctx context.Context, config *Config, opts ...lock.Option) (*Locker, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	statusCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	if _, err := client.Status(statusCtx, config.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			return nil, errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	locker := FromClient(client, opts...)
	locker.ownsClient = true
	return locker, nil
}

// FromClient creates a Locker over an existing client. The client is not closed by Close.
func FromClient(client *clientv3.Client, opts ...lock.Option) *Locker {
	options := lock.NewOptions(opts...)
	return &Locker{
		client: client,
		ttl:    int(math.Ceil(options.TTL().Seconds())),
		logger: options.Logger(),
		leases: xsync.NewMap[*lease, struct{}](),
		closed: atomic.NewBool(false),
	}
}

// Lock implements lock.Locker
func (l *Locker) Lock(ctx context.Context, key, annotation string) (lock.Lease, error) {
	if l.closed.Load() {
		return nil, gerrors.ErrLockerClosed
	}

	session, err := concurrency.NewSession(l.client, concurrency.WithTTL(l.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}

	mutex := concurrency.NewMutex(session, "/"+key)
	if err := mutex.Lock(ctx); err != nil {
		_ = session.Close()
		return nil, err
	}

	// the mutex key carries the annotation while it is owned
	resp, err := l.client.Txn(ctx).
		If(mutex.IsOwner()).
		Then(clientv3.OpPut(mutex.Key(), annotation, clientv3.WithLease(session.Lease()))).
		Commit()
	switch {
	case err != nil:
		_ = mutex.Unlock(l.client.Ctx())
		_ = session.Close()
		return nil, fmt.Errorf("failed to annotate lock %s: %w", key, err)
	case !resp.Succeeded:
		_ = session.Close()
		return nil, fmt.Errorf("lock %s: %w", key, gerrors.ErrLeaseLost)
	}

	granted := &lease{
		locker:   l,
		key:      key,
		session:  session,
		mutex:    mutex,
		lost:     lock.NewSignal(),
		stop:     make(chan struct{}),
		released: atomic.NewBool(false),
	}
	l.leases.Set(granted, struct{}{})
	go granted.watch()
	l.logger.Debugf("etcd lock %s granted (lease=%x)", key, session.Lease())
	return granted, nil
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
	if l.ownsClient {
		chain = chain.AddError(l.client.Close())
	}
	return chain.Error()
}

type lease struct {
	locker   *Locker
	key      string
	session  *concurrency.Session
	mutex    *concurrency.Mutex
	lost     *lock.Signal
	stop     chan struct{}
	released *atomic.Bool
}

var _ lock.Lease = (*lease)(nil)

func (x *lease) Key() string {
	return x.key
}

// Lost fires when the session lease expires, is revoked or cannot be kept alive
func (x *lease) Lost() <-chan struct{} {
	return x.lost.Done()
}

// watch reports the end of the session unless the lease was released first
func (x *lease) watch() {
	select {
	case <-x.session.Done():
		if !x.released.Load() {
			x.locker.logger.Warnf("etcd lock %s lost", x.key)
			x.lost.Fire()
		}
	case <-x.stop:
	}
}

func (x *lease) Release(ctx context.Context) error {
	if !x.released.CompareAndSwap(false, true) {
		return nil
	}
	close(x.stop)
	x.locker.leases.Delete(x)

	chain := errorschain.New(errorschain.ReturnAll())
	select {
	case <-x.session.Done():
	default:
		if err := x.mutex.Unlock(ctx); err != nil && !errors.Is(err, concurrency.ErrLockReleased) {
			chain = chain.AddError(err)
		}
	}
	return chain.AddError(x.session.Close()).Error()
}
