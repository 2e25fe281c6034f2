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

package memory

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/lock"
)

// Locker is an in-process lock service.
// It backs single-process deployments and simulated clusters in tests,
// where Revoke plays the part of a lock service revoking a lease.
type Locker struct {
	mu      sync.Mutex
	holders map[string]*lease
	waiters map[string]chan struct{}
	closed  bool
	grants  *atomic.Int64
}

// enforce compilation error
var _ lock.Locker = (*Locker)(nil)

// NewLocker creates a Locker
func NewLocker() *Locker {
	return &Locker{
		holders: make(map[string]*lease),
		waiters: make(map[string]chan struct{}),
		grants:  atomic.NewInt64(0),
	}
}

// Lock implements lock.Locker
func (l *Locker) Lock(ctx context.Context, key, annotation string) (lock.Lease, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, gerrors.ErrLockerClosed
		}

		if err := ctx.Err(); err != nil {
			l.mu.Unlock()
			return nil, err
		}

		if _, held := l.holders[key]; !held {
			granted := &lease{
				locker:     l,
				key:        key,
				annotation: annotation,
				lost:       lock.NewSignal(),
			}
			l.holders[key] = granted
			l.grants.Inc()
			l.mu.Unlock()
			return granted, nil
		}

		released, ok := l.waiters[key]
		if !ok {
			released = make(chan struct{})
			l.waiters[key] = released
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-released:
		}
	}
}

// Revoke takes the lock on key away from its holder and fires the lease loss signal.
// It reports whether the key was held.
func (l *Locker) Revoke(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[key]
	if !ok {
		return false
	}
	l.remove(holder)
	holder.lost.Fire()
	return true
}

// Holder returns the annotation of the current holder of key
func (l *Locker) Holder(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if holder, ok := l.holders[key]; ok {
		return holder.annotation, true
	}
	return "", false
}

// Held returns the keys currently locked
func (l *Locker) Held() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.holders))
	for key := range l.holders {
		keys = append(keys, key)
	}
	return keys
}

// Grants returns the number of leases granted so far
func (l *Locker) Grants() int64 {
	return l.grants.Load()
}

// Close implements lock.Locker. Outstanding leases are lost.
func (l *Locker) Close(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for _, holder := range l.holders {
		l.remove(holder)
		holder.lost.Fire()
	}
	for key, released := range l.waiters {
		close(released)
		delete(l.waiters, key)
	}
	return nil
}

// remove drops holder and wakes the waiters of its key. It must be called with mu held.
func (l *Locker) remove(holder *lease) {
	if l.holders[holder.key] != holder {
		return
	}
	delete(l.holders, holder.key)
	if released, ok := l.waiters[holder.key]; ok {
		close(released)
		delete(l.waiters, holder.key)
	}
}

type lease struct {
	locker     *Locker
	key        string
	annotation string
	lost       *lock.Signal
}

var _ lock.Lease = (*lease)(nil)

func (x *lease) Key() string {
	return x.key
}

func (x *lease) Lost() <-chan struct{} {
	return x.lost.Done()
}

func (x *lease) Release(context.Context) error {
	x.locker.mu.Lock()
	defer x.locker.mu.Unlock()
	x.locker.remove(x)
	return nil
}
