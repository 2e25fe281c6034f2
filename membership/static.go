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
	"slices"
	"sync"

	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/mesh"
)

// Static is a Watcher over a node set managed by the caller.
// It backs fixed deployments and simulated clusters in tests.
type Static struct {
	mu     sync.Mutex
	self   *mesh.Node
	nodes  []*mesh.Node
	stream *Stream
	logger log.Logger
}

// enforce compilation error
var _ Service = (*Static)(nil)

// NewStatic creates a Static watcher whose initial state holds self and peers
func NewStatic(self *mesh.Node, peers []*mesh.Node, opts ...Option) *Static {
	config := newOptions(opts...)
	nodes := append([]*mesh.Node{self}, peers...)
	return &Static{
		self:   self,
		nodes:  nodes,
		stream: NewStream(self, nodes...),
		logger: config.logger,
	}
}

// Self returns the own node
func (s *Static) Self() *mesh.Node {
	return s.self
}

// State returns the latest state
func (s *Static) State() *mesh.State {
	return s.stream.Current()
}

// Subscribe returns a new subscription
func (s *Static) Subscribe() *Subscription {
	return s.stream.Subscribe()
}

// Start is a no-op; the initial state is published at construction
func (s *Static) Start(context.Context) error {
	return nil
}

// Stop disposes the state stream
func (s *Static) Stop(context.Context) error {
	s.stream.Close()
	return nil
}

// SetNodes replaces the whole node set. self is not added implicitly.
func (s *Static) SetNodes(nodes ...*mesh.Node) *mesh.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = slices.Clone(nodes)
	return s.publish()
}

// Join adds a node to the set
func (s *Static) Join(node *mesh.Node) *mesh.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, node)
	return s.publish()
}

// Leave removes the node with the given id from the set
func (s *Static) Leave(id mesh.NodeID) *mesh.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = slices.DeleteFunc(s.nodes, func(n *mesh.Node) bool { return n.ID() == id })
	return s.publish()
}

// Fail delivers a transient error to subscribers
func (s *Static) Fail(err error) {
	s.stream.Fail(err)
}

func (s *Static) publish() *mesh.State {
	return Apply(s.stream, s.logger, s.nodes)
}
