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
	"maps"

	"github.com/tochemey/shardmesh/internal/hrw"
)

// NodeID identifies a mesh node across the cluster
type NodeID string

// String returns the id as string
func (id NodeID) String() string {
	return string(id)
}

// Node is one live cluster member as observed by a membership watcher.
// Nodes are immutable once created. Two states built from the same
// membership event share the same *Node values, which is what makes
// Target.IsLocal an identity comparison.
type Node struct {
	id       NodeID
	endpoint string
	seed     uint64
	meta     map[string]string
}

// NodeOption configures a Node
type NodeOption func(*Node)

// WithMeta attaches metadata to the node
func WithMeta(meta map[string]string) NodeOption {
	return func(n *Node) {
		n.meta = maps.Clone(meta)
	}
}

// NewNode creates a Node. The hash seed is derived from the id only,
// so every observer computes the same shard assignment.
func NewNode(id NodeID, endpoint string, opts ...NodeOption) *Node {
	node := &Node{
		id:       id,
		endpoint: endpoint,
		seed:     hrw.Seed(string(id)),
	}
	for _, opt := range opts {
		opt(node)
	}
	return node
}

// ID returns the node id
func (n *Node) ID() NodeID {
	return n.id
}

// Endpoint returns the node transport endpoint
func (n *Node) Endpoint() string {
	return n.endpoint
}

// HashSeed returns the rendezvous hash seed of the node
func (n *Node) HashSeed() uint64 {
	return n.seed
}

// Meta returns the metadata value stored under key
func (n *Node) Meta(key string) (string, bool) {
	value, ok := n.meta[key]
	return value, ok
}

// Metadata returns a copy of the node metadata
func (n *Node) Metadata() map[string]string {
	return maps.Clone(n.meta)
}

// Ref returns a ref addressing this node directly
func (n *Node) Ref() NodeRef {
	return NodeRef{ID: n.id}
}

// String returns "id@endpoint"
func (n *Node) String() string {
	if n == nil {
		return "<offline>"
	}
	if n.endpoint == "" {
		return string(n.id)
	}
	return fmt.Sprintf("%s@%s", n.id, n.endpoint)
}

// NodeRef addresses a node directly, independently of sharding
type NodeRef struct {
	ID NodeID
}

// IsNone reports whether the ref is empty
func (r NodeRef) IsNone() bool {
	return r.ID == ""
}

// PeerName returns the transport peer name of the node
func (r NodeRef) PeerName() string {
	return "@node-" + string(r.ID)
}

// String returns the node id
func (r NodeRef) String() string {
	return string(r.ID)
}
