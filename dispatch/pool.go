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

package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/errorschain"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/mesh"
)

// Channel is a logical transport channel to a peer
type Channel interface {
	// PeerName returns the peer name the channel was opened for
	PeerName() string
	// Close releases the channel
	Close() error
}

// Dialer opens channels to online targets
type Dialer interface {
	Dial(ctx context.Context, target mesh.Target) (Channel, error)
}

var _ Dialer = DialerFunc(nil)

// DialerFunc implements the Dialer interface.
type DialerFunc func(ctx context.Context, target mesh.Target) (Channel, error)

// Dial calls f
func (f DialerFunc) Dial(ctx context.Context, target mesh.Target) (Channel, error) {
	return f(ctx, target)
}

type pooled struct {
	channel    Channel
	ref        mesh.Ref
	node       mesh.NodeID
	generation uint64
}

// Pool keeps one channel per peer name.
//
// A channel is reused as long as its target resolves to the same node.
// When a newer state generation moves the target to another node, the
// channel is closed and a new one is dialed.
type Pool struct {
	dialer Dialer
	logger log.Logger

	mu       sync.Mutex
	channels map[string]*pooled
	closed   bool
	group    singleflight.Group
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithPoolLogger sets the logger
func WithPoolLogger(logger log.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool creates a Pool dialing with dialer
func NewPool(dialer Dialer, opts ...PoolOption) *Pool {
	pool := &Pool{
		dialer:   dialer,
		logger:   log.DefaultLogger,
		channels: make(map[string]*pooled),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Channel returns the channel of target, dialing it when missing or when the target moved.
// An offline target fails with ErrNoOwner or ErrNodeNotFound. A target resolved against an
// older generation than the pooled channel and pointing to another node fails with ErrStaleTarget.
func (p *Pool) Channel(ctx context.Context, target mesh.Target) (Channel, error) {
	if err := target.RequireOnline(); err != nil {
		return nil, err
	}

	name := target.PeerName()
	if channel, ok, err := p.reuse(name, target); ok || err != nil {
		return channel, err
	}

	result, err, _ := p.group.Do(name, func() (any, error) {
		if channel, ok, err := p.reuse(name, target); ok || err != nil {
			return channel, err
		}

		channel, err := p.dialer.Dial(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", name, err)
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = channel.Close()
			return nil, gerrors.ErrPoolClosed
		}
		previous := p.channels[name]
		p.channels[name] = &pooled{
			channel:    channel,
			ref:        target.Ref,
			node:       target.Node.ID(),
			generation: target.Generation,
		}
		p.mu.Unlock()

		if previous != nil {
			p.logger.Infof("peer %s moved from %s to %s", name, previous.node, target.Node.ID())
			p.closeChannel(name, previous.channel)
		}
		return channel, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(Channel), nil
}

// reuse returns the pooled channel when it still serves target
func (p *Pool) reuse(name string, target mesh.Target) (Channel, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, gerrors.ErrPoolClosed
	}

	entry, ok := p.channels[name]
	if !ok {
		return nil, false, nil
	}

	if entry.node == target.Node.ID() {
		if target.Generation > entry.generation {
			entry.generation = target.Generation
		}
		return entry.channel, true, nil
	}

	if target.Generation < entry.generation {
		return nil, false, fmt.Errorf("%s (gen=%d < %d): %w", name, target.Generation, entry.generation, gerrors.ErrStaleTarget)
	}
	return nil, false, nil
}

// Prune closes the channels whose ref no longer resolves to the same node in state
// and returns their peer names.
func (p *Pool) Prune(state *mesh.State, self *mesh.Node) []string {
	p.mu.Lock()
	evicted := make(map[string]Channel)
	for name, entry := range p.channels {
		target, err := mesh.Resolve(entry.ref, state, self)
		if err == nil && !target.IsOffline() && target.Node.ID() == entry.node {
			entry.generation = max(entry.generation, target.Generation)
			continue
		}
		evicted[name] = entry.channel
		delete(p.channels, name)
	}
	p.mu.Unlock()

	names := make([]string, 0, len(evicted))
	for name, channel := range evicted {
		p.closeChannel(name, channel)
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invalidate closes and drops the channel of the given peer name
func (p *Pool) Invalidate(peerName string) bool {
	p.mu.Lock()
	entry, ok := p.channels[peerName]
	delete(p.channels, peerName)
	p.mu.Unlock()

	if ok {
		p.closeChannel(peerName, entry.channel)
	}
	return ok
}

// Len returns the number of pooled channels
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

// Close closes every pooled channel. Further calls to Channel fail with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	channels := p.channels
	p.channels = make(map[string]*pooled)
	p.mu.Unlock()

	chain := errorschain.New(errorschain.ReturnAll())
	for _, entry := range channels {
		chain = chain.AddError(entry.channel.Close())
	}
	return chain.Error()
}

func (p *Pool) closeChannel(name string, channel Channel) {
	if err := channel.Close(); err != nil {
		p.logger.Warnf("failed to close channel %s: %v", name, err)
	}
}
