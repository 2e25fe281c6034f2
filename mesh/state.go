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
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/shard"
)

// State is an immutable snapshot of the live nodes of the mesh.
// A new State with a higher generation replaces the previous one on every
// membership change. Shard maps are computed lazily and cached per scheme.
type State struct {
	generation uint64
	nodes      []*Node
	byID       map[NodeID]*Node
	maps       *xsync.Map[shard.Scheme, *ShardMap]
}

// NewState creates a State. Nodes are ordered by id and duplicate ids keep the first node.
func NewState(generation uint64, nodes ...*Node) *State {
	sorted := sortedNodes(nodes)
	byID := make(map[NodeID]*Node, len(sorted))
	for _, node := range sorted {
		byID[node.ID()] = node
	}
	return &State{
		generation: generation,
		nodes:      sorted,
		byID:       byID,
		maps:       xsync.NewMap[shard.Scheme, *ShardMap](),
	}
}

// Generation returns the monotonic generation of the state
func (s *State) Generation() uint64 {
	return s.generation
}

// Nodes returns the nodes ordered by id
func (s *State) Nodes() []*Node {
	return slices.Clone(s.nodes)
}

// NodeIDs returns the node ids ordered
func (s *State) NodeIDs() []NodeID {
	ids := make([]NodeID, len(s.nodes))
	for i, node := range s.nodes {
		ids[i] = node.ID()
	}
	return ids
}

// Len returns the number of nodes
func (s *State) Len() int {
	return len(s.nodes)
}

// Node returns the node with the given id
func (s *State) Node(id NodeID) (*Node, bool) {
	node, ok := s.byID[id]
	return node, ok
}

// ShardMap returns the cached shard map of scheme, computing it on first use.
// Sentinel schemes yield an empty map.
func (s *State) ShardMap(scheme shard.Scheme) *ShardMap {
	if m, ok := s.maps.Get(scheme); ok {
		return m
	}
	m, _ := s.maps.GetOrSet(scheme, NewShardMap(scheme, s.nodes))
	return m
}

// SameNodes reports whether both states hold the same node ids
func (s *State) SameNodes(other *State) bool {
	if other == nil {
		return len(s.nodes) == 0
	}
	return slices.Equal(s.NodeIDs(), other.NodeIDs())
}

// Diff returns the node ids added and removed going from prev to s
func (s *State) Diff(prev *State) (added, removed []NodeID) {
	current := mapset.NewThreadUnsafeSet(s.NodeIDs()...)
	previous := mapset.NewThreadUnsafeSet[NodeID]()
	if prev != nil {
		previous.Append(prev.NodeIDs()...)
	}

	added = current.Difference(previous).ToSlice()
	removed = previous.Difference(current).ToSlice()
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// String returns "gen=<generation> [a, b, c]"
func (s *State) String() string {
	names := make([]string, len(s.nodes))
	for i, node := range s.nodes {
		names[i] = node.String()
	}
	return fmt.Sprintf("gen=%d [%s]", s.generation, strings.Join(names, ", "))
}
