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

package testkit

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tochemey/shardmesh/host"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/membership"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/worker"
)

// TestNode is a mesh node started by MultiNodes
type TestNode struct {
	node     *mesh.Node
	host     *host.Host
	watcher  *membership.Static
	locker   lock.Locker
	testingT *testing.T

	mu      sync.Mutex
	running map[string]map[int]int
}

func newTestNode(t *testing.T, node *mesh.Node, watcher *membership.Static) *TestNode {
	return &TestNode{
		node:     node,
		watcher:  watcher,
		testingT: t,
		running:  make(map[string]map[int]int),
	}
}

// ID returns the node id
func (x *TestNode) ID() mesh.NodeID {
	return x.node.ID()
}

// Node returns the mesh node
func (x *TestNode) Node() *mesh.Node {
	return x.node
}

// Host returns the host of the node
func (x *TestNode) Host() *host.Host {
	return x.host
}

// Watcher returns the membership watcher of the node
func (x *TestNode) Watcher() *membership.Static {
	return x.watcher
}

// OwnedShards returns the shards of scheme the node worker runs a loop for
func (x *TestNode) OwnedShards(scheme string) []int {
	w, ok := x.host.Worker(scheme)
	if !ok {
		return nil
	}
	return w.OwnedShards()
}

// Running returns the shards of scheme whose function is executing on the node
func (x *TestNode) Running(scheme string) []int {
	x.mu.Lock()
	defer x.mu.Unlock()
	indexes := make([]int, 0, len(x.running[scheme]))
	for index, count := range x.running[scheme] {
		if count > 0 {
			indexes = append(indexes, index)
		}
	}
	slices.Sort(indexes)
	return indexes
}

// Target resolves value under scheme from the node point of view
func (x *TestNode) Target(value any, scheme string) mesh.Target {
	target, err := x.host.Target(value, scheme)
	require.NoError(x.testingT, err)
	return target
}

// track wraps fn so that Running reports its executions
func (x *TestNode) track(scheme string, fn worker.Func) worker.Func {
	return func(ctx context.Context, index int) error {
		x.enter(scheme, index, 1)
		defer x.enter(scheme, index, -1)
		return fn(ctx, index)
	}
}

func (x *TestNode) enter(scheme string, index, delta int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	counts, ok := x.running[scheme]
	if !ok {
		counts = make(map[int]int)
		x.running[scheme] = counts
	}
	counts[index] += delta
}
