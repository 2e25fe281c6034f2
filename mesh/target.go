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

// Target is a Ref resolved against one State from the point of view of one node.
// It must be recomputed when the state generation changes; use IsStale to detect it.
type Target struct {
	// Ref is the normalized ref the target was resolved from
	Ref Ref
	// Shard is the normalized shard ref, zero for node refs
	Shard shard.Ref
	// NodeRef is the node the ref resolves to. It is empty for a shard without owner.
	NodeRef NodeRef
	// Node is the live node, nil when offline
	Node *Node
	// IsLocal is true when Node is the resolving process own node
	IsLocal bool
	// Generation is the generation of the state used for resolution
	Generation uint64
}

// Resolve binds ref against state. self is the own node of the caller; a nil self never matches.
// A nil state behaves as an empty state.
func Resolve(ref Ref, state *State, self *Node) (Target, error) {
	ref, err := ref.RequireValid()
	if err != nil {
		return Target{}, err
	}

	if state == nil {
		state = NewState(0)
	}

	target := Target{
		Ref:        ref.Normalize(),
		Generation: state.Generation(),
	}

	if nodeRef, ok := ref.Node(); ok {
		target.NodeRef = nodeRef
		target.Node, _ = state.Node(nodeRef.ID)
	} else {
		shardRef, _ := target.Ref.Shard()
		target.Shard = shardRef
		if owner, ok := state.ShardMap(shardRef.Scheme).Owner(shardRef.Index()); ok {
			target.Node = owner
			target.NodeRef = owner.Ref()
		}
	}

	target.IsLocal = target.Node != nil && target.Node == self
	return target, nil
}

// MustResolve is like Resolve but panics on error
func MustResolve(ref Ref, state *State, self *Node) Target {
	target, err := Resolve(ref, state, self)
	if err != nil {
		panic(err)
	}
	return target
}

// IsOffline reports whether no live node was found
func (t Target) IsOffline() bool {
	return t.Node == nil
}

// IsStale reports whether the target was resolved against an older or different state
func (t Target) IsStale(state *State) bool {
	return state == nil || state.Generation() != t.Generation
}

// RequireOnline returns ErrNoOwner or ErrNodeNotFound when the target is offline
func (t Target) RequireOnline() error {
	if !t.IsOffline() {
		return nil
	}
	if t.Ref.IsShard() {
		return fmt.Errorf("%s: %w", t.Shard, gerrors.ErrNoOwner)
	}
	return gerrors.NewErrNodeNotFound(t.NodeRef.String())
}

// PeerName returns the transport peer name of the target
func (t Target) PeerName() string {
	return t.Ref.PeerName()
}

// String returns a human readable form of the target
func (t Target) String() string {
	return fmt.Sprintf("%s -> %s (gen=%d, local=%t)", t.Ref, t.Node, t.Generation, t.IsLocal)
}
