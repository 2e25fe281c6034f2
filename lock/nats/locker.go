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

package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
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

// Locker grants shard locks as entries of a JetStream key-value bucket.
// A lock is created only when its key has no live value and is renewed with
// revision-checked updates. The bucket max age expires entries that are not
// renewed. The lease is lost when a renewal finds a newer revision.
type Locker struct {
	conn       *nats.Conn
	kv         nats.KeyValue
	config     *Config
	renewEvery time.Duration
	logger     log.Logger
	leases     *xsync.Map[*lease, struct{}]
	closed     *atomic.Bool
	mu         sync.Mutex
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker connects to NATS, opens or creates the lock bucket and creates a Locker
func NewLocker(config *Config, opts ...lock.Option) (*Locker, error) {
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("nats lock config is invalid: %w", err)
	}

	options := lock.NewOptions(opts...)
	conn, err := nats.Connect(config.URL,
		nats.Name("shardmesh-locker"),
		nats.Timeout(config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open jetstream: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      config.Bucket,
			Description: "shard worker locks",
			TTL:         options.TTL(),
			Replicas:    config.Replicas,
		})
		// another locker may have created it meanwhile
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			kv, err = js.KeyValue(config.Bucket)
		}
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open bucket %s: %w", config.Bucket, err)
	}

	return &Locker{
		conn:       conn,
		kv:         kv,
		config:     config,
		renewEvery: options.RenewInterval(),
		logger:     options.Logger(),
		leases:     xsync.NewMap[*lease, struct{}](),
		closed:     atomic.NewBool(false),
	}, nil
}

// Lock implements lock.Locker
func (l *Locker) Lock(ctx context.Context, key, annotation string) (lock.Lease, error) {
	if l.closed.Load() {
		return nil, gerrors.ErrLockerClosed
	}

	entryKey := encodeKey(key)
	watcher, err := l.kv.Watch(entryKey, nats.UpdatesOnly(), nats.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to watch lock %s: %w", key, err)
	}
	defer func() { _ = watcher.Stop() }()

	value := []byte(fmt.Sprintf("%s/%s", annotation, uuid.NewString()))
	timer := time.NewTimer(l.config.PollInterval)
	defer timer.Stop()

	var revision uint64
	for {
		revision, err = l.kv.Create(entryKey, value)
		if err == nil {
			break
		}
		if !isRevisionConflict(err) {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		timer.Reset(l.config.PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-watcher.Updates():
		case <-timer.C:
		}
	}

	granted := &lease{
		locker:   l,
		key:      key,
		entryKey: entryKey,
		value:    value,
		revision: revision,
		lost:     lock.NewSignal(),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		released: atomic.NewBool(false),
	}
	go granted.renew()

	l.leases.Set(granted, struct{}{})
	l.logger.Debugf("nats lock %s granted (revision=%d)", key, revision)
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
	err := chain.Error()
	l.conn.Close()
	return err
}

// encodeKey escapes the characters a bucket key cannot hold
func encodeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '/', r == '_', r == '.':
			b.WriteRune(r)
		default:
			for _, c := range []byte(string(r)) {
				fmt.Fprintf(&b, "=%02X", c)
			}
		}
	}
	return strings.Trim(b.String(), ".")
}

type lease struct {
	locker   *Locker
	key      string
	entryKey string
	value    []byte
	mu       sync.Mutex
	revision uint64
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

	x.mu.Lock()
	revision := x.revision
	x.mu.Unlock()

	err := x.locker.kv.Delete(x.entryKey, nats.LastRevision(revision))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to release lock %s: %w", x.key, err)
	}
	return nil
}

// renew updates the entry until the lease is released or lost
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

	for {
		select {
		case <-x.stop:
			return
		case <-ticker.C:
		}

		retrier := retry.NewRetrier(maxRetries, initialDelay, x.locker.renewEvery)
		err := retrier.RunContext(ctx, func(context.Context) error {
			x.mu.Lock()
			defer x.mu.Unlock()
			revision, err := x.locker.kv.Update(x.entryKey, x.value, x.revision)
			if err != nil {
				if isRevisionConflict(err) {
					return retry.Stop(err)
				}
				return err
			}
			x.revision = revision
			return nil
		})

		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			x.locker.logger.Warnf("nats lock %s renewal failed: %v", x.key, err)
			x.lost.Fire()
			return
		}
	}
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr != nil && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}
