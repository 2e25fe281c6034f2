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
	"slices"
	"strings"

	"github.com/tochemey/shardmesh/internal/hrw"
	"github.com/tochemey/shardmesh/shard"
)

// ShardMap assigns every shard index of a scheme to one node using rendezvous hashing.
// It is a pure function of the scheme and the node set.
type ShardMap struct {
	scheme shard.Scheme
	nodes  []*Node
	owners []int
}

// NewShardMap computes the shard map of scheme over nodes.
// Nodes are ordered by id so that ties resolve the same way everywhere.
// An empty node set yields a map where no shard has an owner.
func NewShardMap(scheme shard.Scheme, nodes []*Node) *ShardMap {
	sorted := sortedNodes(nodes)
	seeds := make([]uint64, len(sorted))
	for i, node := range sorted {
		seeds[i] = node.HashSeed()
	}

	return &ShardMap{
		scheme: scheme,
		nodes:  sorted,
		owners: hrw.Owners(seeds, scheme.ShardCount(), hrw.Seed(scheme.ID())),
	}
}

// Scheme returns the scheme of the map
func (m *ShardMap) Scheme() shard.Scheme {
	return m.scheme
}

// Nodes returns the candidate nodes ordered by id
func (m *ShardMap) Nodes() []*Node {
	return slices.Clone(m.nodes)
}

// Len returns the number of shards of the map
func (m *ShardMap) Len() int {
	return len(m.owners)
}

// OwnerIndex returns the position of the owner of index in Nodes,
// or -1 when the shard has no owner or index is out of range.
func (m *ShardMap) OwnerIndex(index int) int {
	if index < 0 || index >= len(m.owners) {
		return hrw.NoOwner
	}
	return m.owners[index]
}

// Owner returns the node owning index
func (m *ShardMap) Owner(index int) (*Node, bool) {
	position := m.OwnerIndex(index)
	if position == hrw.NoOwner {
		return nil, false
	}
	return m.nodes[position], true
}

// ShardsOf returns the shard indices owned by the node with the given id, in ascending order
func (m *ShardMap) ShardsOf(id NodeID) []int {
	position := slices.IndexFunc(m.nodes, func(n *Node) bool { return n.ID() == id })
	if position < 0 {
		return nil
	}

	shards := make([]int, 0, len(m.owners)/len(m.nodes)+1)
	for index, owner := range m.owners {
		if owner == position {
			shards = append(shards, index)
		}
	}
	return shards
}

// OwnerIDs returns the owner id of every shard index. Shards without owner get an empty id.
func (m *ShardMap) OwnerIDs() []NodeID {
	ids := make([]NodeID, len(m.owners))
	for index, owner := range m.owners {
		if owner != hrw.NoOwner {
			ids[index] = m.nodes[owner].ID()
		}
	}
	return ids
}

// Equal reports whether both maps assign every shard to the same node id
func (m *ShardMap) Equal(other *ShardMap) bool {
	if other == nil {
		return false
	}
	return m.scheme == other.scheme && slices.Equal(m.OwnerIDs(), other.OwnerIDs())
}

func sortedNodes(nodes []*Node) []*Node {
	sorted := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		if node != nil {
			sorted = append(sorted, node)
		}
	}
	slices.SortStableFunc(sorted, func(a, b *Node) int {
		return strings.Compare(string(a.ID()), string(b.ID()))
	})
	return slices.CompactFunc(sorted, func(a, b *Node) bool { return a.ID() == b.ID() })
}
