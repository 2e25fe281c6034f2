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

package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
)

const (
	maxRetries   = 3
	initialDelay = 50 * time.Millisecond
)

var (
	// renewScript extends the key expiry when the caller still owns it
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	// releaseScript deletes the key when the caller still owns it and notifies waiters
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	redis.call("PUBLISH", ARGV[2], KEYS[1])
	return 1
end
return 0`)
)

// Locker grants shard locks as Redis keys set with NX and an expiry.
// A lease owns its key through a random token stored in the value and renews
// the expiry every third of the TTL. The lease is lost when a renewal finds
// the key gone or owned by someone else, or when renewals keep failing.
type Locker struct {
	client     *redis.Client
	ownsClient bool
	config     *Config
	ttl        time.Duration
	renewEvery time.Duration
	logger     log.Logger
	leases     *xsync.Map[*lease, struct{}]
	closed     *atomic.Bool
	mu         sync.Mutex
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker connects to Redis and creates a Locker
func NewLocker(ctx context.Context, config *Config, opts ...lock.Option) (*Locker, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("redis lock config is invalid: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:      config.Addr,
		Username:  config.Username,
		Password:  config.Password,
		DB:        config.DB,
		TLSConfig: config.TLS,
	})

	retrier := retry.NewRetrier(maxRetries, initialDelay, time.Second)
	if err := retrier.RunContext(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	locker := FromClient(client, config, opts...)
	locker.ownsClient = true
	return locker, nil
}

// FromClient creates a Locker over an existing client. The client is not closed by Close.
func FromClient(client *redis.Client, config *Config, opts ...lock.Option) *Locker {
	config.Sanitize()
	options := lock.NewOptions(opts...)
	return &Locker{
		client:     client,
		config:     config,
		ttl:        options.TTL(),
		renewEvery: options.RenewInterval(),
		logger:     options.Logger(),
		leases:     xsync.NewMap[*lease, struct{}](),
		closed:     atomic.NewBool(false),
	}
}

// Lock implements lock.Locker
func (l *Locker) Lock(ctx context.Context, key, annotation string) (lock.Lease, error) {
	if l.closed.Load() {
		return nil, gerrors.ErrLockerClosed
	}

	// subscribe first so that a release between two attempts is not missed
	subscriber := l.client.Subscribe(ctx, releaseChannel(key))
	defer subscriber.Close()
	if _, err := subscriber.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s releases: %w", key, err)
	}
	released := subscriber.Channel()

	value := fmt.Sprintf("%s/%s", annotation, uuid.NewString())
	timer := time.NewTimer(0)
	defer timer.Stop()

	retrier := retry.NewRetrier(maxRetries, initialDelay, l.config.PollInterval)
	for {
		var acquired bool
		err := retrier.RunContext(ctx, func(ctx context.Context) error {
			ok, err := l.client.SetNX(ctx, key, value, l.ttl).Result()
			acquired = ok
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if acquired {
			break
		}

		timer.Reset(l.config.PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-released:
		case <-timer.C:
		}
	}

	granted := &lease{
		locker:   l,
		key:      key,
		value:    value,
		lost:     lock.NewSignal(),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		released: atomic.NewBool(false),
	}
	go granted.renew()

	l.leases.Set(granted, struct{}{})
	l.logger.Debugf("redis lock %s granted", key)
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

func releaseChannel(key string) string {
	return key + ":released"
}

type lease struct {
	locker   *Locker
	key      string
	value    string
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

func (x *lease) Release(ctx context.Context) error {
	if !x.released.CompareAndSwap(false, true) {
		return nil
	}
	close(x.stop)
	<-x.stopped
	x.locker.leases.Delete(x)

	if x.lost.Fired() {
		return nil
	}

	err := releaseScript.Run(ctx, x.locker.client, []string{x.key}, x.value, releaseChannel(x.key)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", x.key, err)
	}
	return nil
}

// renew extends the key expiry until the lease is released or lost
func (x *lease) renew() {
	defer close(x.stopped)

	ticker := time.NewTicker(x.locker.renewEvery)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-x.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ttl := x.locker.ttl.Milliseconds()
	for {
		select {
		case <-x.stop:
			return
		case <-ticker.C:
		}

		var owned bool
		retrier := retry.NewRetrier(maxRetries, initialDelay, x.locker.renewEvery)
		err := retrier.RunContext(ctx, func(ctx context.Context) error {
			result, err := renewScript.Run(ctx, x.locker.client, []string{x.key}, x.value, ttl).Int64()
			owned = result == 1
			return err
		})

		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			x.locker.logger.Warnf("redis lock %s renewal failed: %v", x.key, err)
			x.lost.Fire()
			return
		case !owned:
			x.locker.logger.Warnf("redis lock %s is no longer owned", x.key)
			x.lost.Fire()
			return
		}
	}
}
