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

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/shard"
)

// NoRef is the empty ref
var NoRef = Ref{}

// Ref is a tagged union over a shard ref, a node ref or nothing.
// At most one branch is set; use the constructors to build one.
type Ref struct {
	shard shard.Ref
	node  NodeRef
}

// ShardRef returns a ref to the shard owning key under scheme
func ShardRef(scheme shard.Scheme, key int) Ref {
	return FromShard(shard.NewRef(scheme, key))
}

// FromShard wraps a shard ref. A ref on the None scheme yields NoRef.
func FromShard(ref shard.Ref) Ref {
	if ref.IsNone() {
		return NoRef
	}
	return Ref{shard: ref}
}

// ToNode returns a ref addressing the node with the given id
func ToNode(id NodeID) Ref {
	return Ref{node: NodeRef{ID: id}}
}

// IsNone reports whether neither branch is set
func (r Ref) IsNone() bool {
	return !r.IsShard() && !r.IsNode()
}

// IsShard reports whether the ref names a shard
func (r Ref) IsShard() bool {
	return !r.shard.IsNone()
}

// IsNode reports whether the ref names a node
func (r Ref) IsNode() bool {
	return !r.node.IsNone()
}

// Shard returns the shard branch
func (r Ref) Shard() (shard.Ref, bool) {
	return r.shard, r.IsShard()
}

// Node returns the node branch
func (r Ref) Node() (NodeRef, bool) {
	return r.node, r.IsNode()
}

// Normalize reduces a shard ref to its canonical (scheme, index) form.
// Node refs and NoRef are returned unchanged.
func (r Ref) Normalize() Ref {
	if !r.IsShard() || !r.shard.Scheme.IsValid() {
		return r
	}
	return Ref{shard: r.shard.Normalize()}
}

// WithSchemeIfUndefined binds a shard ref built on shard.Undefined to scheme
func (r Ref) WithSchemeIfUndefined(scheme shard.Scheme) Ref {
	if !r.IsShard() {
		return r
	}
	return Ref{shard: r.shard.WithSchemeIfUndefined(scheme)}
}

// RequireValid fails for NoRef and for shard refs on sentinel schemes
func (r Ref) RequireValid() (Ref, error) {
	switch {
	case r.IsNode():
		return r, nil
	case r.IsShard():
		if _, err := r.shard.RequireValid(); err != nil {
			return NoRef, err
		}
		return r, nil
	default:
		return NoRef, gerrors.ErrInvalidRef
	}
}

// PeerName returns "@node-<id>" or "@shard-<scheme>-<index>".
// It returns an empty string for NoRef.
func (r Ref) PeerName() string {
	switch {
	case r.IsNode():
		return r.node.PeerName()
	case r.IsShard():
		return fmt.Sprintf("@shard-%s-%d", r.shard.Scheme, r.shard.Index())
	default:
		return ""
	}
}

// String returns a human readable form of the ref
func (r Ref) String() string {
	switch {
	case r.IsNode():
		return "node:" + r.node.String()
	case r.IsShard():
		return "shard:" + r.shard.String()
	default:
		return "none"
	}
}
