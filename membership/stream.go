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

package membership

import (
	"context"
	"sync"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/mesh"
)

// Stream publishes immutable mesh states with increasing generations.
// Subscribers pull the latest state, so a slow subscriber never blocks
// publishers and only ever observes monotonic generations.
type Stream struct {
	mu      sync.Mutex
	self    *mesh.Node
	current *mesh.State
	changed chan struct{}
	errs    []error
	errBase int
	closed  bool
}

// maxPendingErrors bounds the transient errors kept for lagging subscriptions
const maxPendingErrors = 64

// NewStream creates a Stream whose first state, generation 1, holds nodes.
// When self is not nil, nodes sharing its id are replaced by self.
func NewStream(self *mesh.Node, nodes ...*mesh.Node) *Stream {
	stream := &Stream{
		self:    self,
		changed: make(chan struct{}),
	}
	stream.current = mesh.NewState(1, stream.intern(nodes)...)
	return stream
}

// Current returns the latest state
func (s *Stream) Current() *mesh.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Publish replaces the node set. A new state is produced only when the node ids differ
// from the current state; the boolean reports whether that happened.
func (s *Stream) Publish(nodes []*mesh.Node) (*mesh.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.current, false
	}

	next := mesh.NewState(s.current.Generation()+1, s.intern(nodes)...)
	if next.SameNodes(s.current) {
		return s.current, false
	}

	s.current = next
	s.notify()
	return next, true
}

// Fail delivers a transient error to every active subscription, once
func (s *Stream) Fail(err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.errs = append(s.errs, err)
	if dropped := len(s.errs) - maxPendingErrors; dropped > 0 {
		s.errs = s.errs[dropped:]
		s.errBase += dropped
	}
	s.notify()
}

// Close disposes the stream. Pending and future Next calls return ErrWatcherDisposed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.notify()
}

// Subscribe creates a subscription starting before the current state
func (s *Stream) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Subscription{stream: s, errSeq: s.errBase + len(s.errs)}
}

// notify wakes every waiter. It must be called with mu held.
func (s *Stream) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// intern reuses the node pointers of the current state so that a node keeps
// its identity across generations. It must be called with mu held.
func (s *Stream) intern(nodes []*mesh.Node) []*mesh.Node {
	out := make([]*mesh.Node, 0, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		if s.self != nil && node.ID() == s.self.ID() {
			out = append(out, s.self)
			continue
		}
		if s.current != nil {
			if existing, ok := s.current.Node(node.ID()); ok && existing.Endpoint() == node.Endpoint() {
				out = append(out, existing)
				continue
			}
		}
		out = append(out, node)
	}
	return out
}

// Subscription is a cursor over a Stream. It is not safe for concurrent use.
type Subscription struct {
	stream     *Stream
	generation uint64
	errSeq     int
}

// Next blocks until a state newer than the last one returned is available.
// The first call returns the current state. It returns a transient error
// published with Stream.Fail, ErrWatcherDisposed once the stream is closed,
// or the context error.
func (sub *Subscription) Next(ctx context.Context) (*mesh.State, error) {
	for {
		s := sub.stream
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, gerrors.ErrWatcherDisposed
		}

		sub.errSeq = max(sub.errSeq, s.errBase)
		if pending := sub.errSeq - s.errBase; pending < len(s.errs) {
			err := s.errs[pending]
			sub.errSeq++
			s.mu.Unlock()
			return nil, err
		}

		current := s.current
		changed := s.changed
		s.mu.Unlock()

		if current.Generation() > sub.generation {
			sub.generation = current.Generation()
			return current, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}
