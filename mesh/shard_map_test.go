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

package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/shardmesh/shard"
)

var backend = shard.MustScheme("Backend", 10)

func nodes(ids ...NodeID) []*Node {
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = NewNode(id, "")
	}
	return out
}

func TestShardMap(t *testing.T) {
	t.Run("With deterministic assignment", func(t *testing.T) {
		first := NewShardMap(backend, nodes("a", "b", "c"))
		second := NewShardMap(backend, nodes("c", "a", "b"))
		assert.True(t, first.Equal(second))
		assert.Equal(t, first.OwnerIDs(), second.OwnerIDs())
		assert.Equal(t, 10, first.Len())
	})
	t.Run("With an empty node set", func(t *testing.T) {
		m := NewShardMap(backend, nil)
		for index := range backend.ShardCount() {
			_, ok := m.Owner(index)
			assert.False(t, ok)
			assert.Equal(t, -1, m.OwnerIndex(index))
		}
		assert.Nil(t, m.ShardsOf("a"))
	})
	t.Run("With a single node", func(t *testing.T) {
		m := NewShardMap(backend, nodes("a"))
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, m.ShardsOf("a"))
	})
	t.Run("With out of range indices", func(t *testing.T) {
		m := NewShardMap(backend, nodes("a"))
		_, ok := m.Owner(-1)
		assert.False(t, ok)
		_, ok = m.Owner(10)
		assert.False(t, ok)
	})
	t.Run("With shards partitioned across nodes", func(t *testing.T) {
		m := NewShardMap(backend, nodes("a", "b", "c", "d", "e"))
		seen := make(map[int]NodeID)
		for _, node := range m.Nodes() {
			for _, index := range m.ShardsOf(node.ID()) {
				_, dup := seen[index]
				require.False(t, dup)
				seen[index] = node.ID()
			}
		}
		assert.Len(t, seen, 10)
	})
	t.Run("With one node removed from five", func(t *testing.T) {
		before := NewShardMap(backend, nodes("a", "b", "c", "d", "e")).OwnerIDs()
		after := NewShardMap(backend, nodes("a", "b", "d", "e")).OwnerIDs()
		for index := range before {
			if before[index] == "c" {
				assert.NotEqual(t, NodeID("c"), after[index])
				continue
			}
			assert.Equal(t, before[index], after[index], "shard %d moved", index)
		}
	})
	t.Run("With one node added to three", func(t *testing.T) {
		before := NewShardMap(backend, nodes("A", "B", "C")).OwnerIDs()
		after := NewShardMap(backend, nodes("A", "B", "C", "D")).OwnerIDs()
		for index := range before {
			if before[index] != after[index] {
				// a moved shard can only move to the new node
				assert.Equal(t, NodeID("D"), after[index])
			}
		}
	})
	t.Run("With duplicate node ids", func(t *testing.T) {
		first := NewNode("a", "first")
		m := NewShardMap(backend, []*Node{first, NewNode("a", "second"), nil})
		require.Len(t, m.Nodes(), 1)
		assert.Same(t, first, m.Nodes()[0])
	})
	t.Run("With a sentinel scheme", func(t *testing.T) {
		m := NewShardMap(shard.None, nodes("a"))
		assert.Zero(t, m.Len())
	})
}

func TestEndToEndBackendRouting(t *testing.T) {
	state := NewState(1, nodes("A", "B", "C")...)
	ref := ShardRef(backend, 42)

	target, err := Resolve(ref, state, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, target.Shard.Index())
	require.False(t, target.IsOffline())
	assert.Contains(t, []NodeID{"A", "B", "C"}, target.NodeRef.ID)

	again, err := Resolve(ref, NewState(2, nodes("C", "B", "A")...), nil)
	require.NoError(t, err)
	assert.Equal(t, target.NodeRef, again.NodeRef)

	grown := NewState(3, nodes("A", "B", "C", "D")...)
	before := state.ShardMap(backend).OwnerIDs()
	after := grown.ShardMap(backend).OwnerIDs()
	moved := 0
	for index := range before {
		if before[index] != after[index] {
			moved++
		}
	}
	assert.Less(t, moved, backend.ShardCount())
}
