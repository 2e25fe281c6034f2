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

package lock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tochemey/shardmesh/shard"
)

const (
	// DefaultKeyPrefix is the prefix of shard lock keys
	DefaultKeyPrefix = "shard-worker"
	// DefaultTTL is the lifetime of a lease that is not renewed
	DefaultTTL = 15 * time.Second
)

// Locker grants leased, cluster-wide exclusive locks.
// At most one lease per key is outstanding across the cluster at any time.
type Locker interface {
	// Lock blocks until the lock on key is granted or ctx is done.
	// The annotation is stored with the lock for diagnostics, usually the holder node id.
	Lock(ctx context.Context, key, annotation string) (Lease, error)
	// Close releases every lease granted by the locker and frees its resources
	Close(ctx context.Context) error
}

// Lease is a granted lock. The locker renews it until it is released.
type Lease interface {
	// Key returns the locked key
	Key() string
	// Lost is closed when the lock service revokes the lease
	// or the lease cannot be renewed anymore. It is not closed by Release.
	Lost() <-chan struct{}
	// Release gives the lock back. It is idempotent.
	Release(ctx context.Context) error
}

// Key returns the lock key of a shard: "<prefix>/<scheme>/<index>"
func Key(prefix string, scheme shard.Scheme, index int) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return strings.Join([]string{prefix, scheme.ID(), strconv.Itoa(index)}, "/")
}

// ParseKey splits a key built with Key
func ParseKey(key string) (prefix, scheme string, index int, err error) {
	cut := strings.LastIndex(key, "/")
	if cut < 0 {
		return "", "", 0, fmt.Errorf("invalid shard lock key %q", key)
	}
	index, err = strconv.Atoi(key[cut+1:])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid shard lock key %q: %w", key, err)
	}
	prefix, scheme, ok := strings.Cut(key[:cut], "/")
	if !ok || scheme == "" {
		return "", "", 0, fmt.Errorf("invalid shard lock key %q", key)
	}
	return prefix, scheme, index, nil
}

// Signal is a one-shot broadcast used by backends to report lease loss
type Signal struct {
	once sync.Once
	done chan struct{}
}

// NewSignal creates a Signal
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire closes the signal channel. Only the first call has an effect.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.done) })
}

// Done returns the signal channel
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether Fire has been called
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
