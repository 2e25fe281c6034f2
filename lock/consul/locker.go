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

package consul

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
)

// Locker grants shard locks with Consul session locks.
// The Consul client renews each session; the lease is lost when the
// session is invalidated or the lock key is taken away.
type Locker struct {
	client *api.Client
	config *Config
	ttl    string
	logger log.Logger
	leases *xsync.Map[*lease, struct{}]
	closed *atomic.Bool
	mu     sync.Mutex
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker connects to the Consul agent and creates a Locker
func NewLocker(config *Config, opts ...lock.Option) (*Locker, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul lock config is invalid: %w", err)
	}

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect to consul: %w", err)
	}

	options := lock.NewOptions(opts...)
	return &Locker{
		client: client,
		config: config,
		ttl:    max(options.TTL(), minimumSessionTTL).String(),
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

	handle, err := l.client.LockOpts(&api.LockOptions{
		Key:            key,
		Value:          []byte(annotation),
		SessionName:    l.config.SessionName,
		SessionTTL:     l.ttl,
		LockWaitTime:   l.config.WaitTime,
		LockDelay:      l.config.LockDelay,
		MonitorRetries: defaultMonitorRetry,
	})
	if err != nil {
		return nil, err
	}

	stopCh := make(chan struct{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			close(stopCh)
		case <-done:
		}
	}()

	lost, err := handle.Lock(stopCh)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	case lost == nil:
		return nil, ctx.Err()
	}

	granted := &lease{
		locker:   l,
		key:      key,
		handle:   handle,
		lost:     lock.NewSignal(),
		stop:     make(chan struct{}),
		released: atomic.NewBool(false),
	}
	l.leases.Set(granted, struct{}{})
	go granted.watch(lost)
	l.logger.Debugf("consul lock %s granted", key)
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
	return chain.Error()
}

type lease struct {
	locker   *Locker
	key      string
	handle   *api.Lock
	lost     *lock.Signal
	stop     chan struct{}
	released *atomic.Bool
}

var _ lock.Lease = (*lease)(nil)

func (x *lease) Key() string {
	return x.key
}

func (x *lease) Lost() <-chan struct{} {
	return x.lost.Done()
}

// watch forwards the loss of the lock handle, unless the lease was released first
func (x *lease) watch(lost <-chan struct{}) {
	select {
	case <-lost:
		if !x.released.Load() {
			x.locker.logger.Warnf("consul lock %s lost", x.key)
			x.lost.Fire()
		}
	case <-x.stop:
	}
}

func (x *lease) Release(context.Context) error {
	if !x.released.CompareAndSwap(false, true) {
		return nil
	}
	close(x.stop)
	x.locker.leases.Delete(x)
	if err := x.handle.Unlock(); err != nil && !errors.Is(err, api.ErrLockNotHeld) {
		return fmt.Errorf("failed to release lock %s: %w", x.key, err)
	}
	return nil
}
