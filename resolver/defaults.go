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

package resolver

import (
	"fmt"
	"math"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/hash"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
)

// IndexRegistry resolves values to raw shard keys
type IndexRegistry = Registry[int]

// RefRegistry resolves values to mesh refs, which may also address a node directly
type RefRegistry = Registry[mesh.Ref]

// NewIndexRegistry creates an IndexRegistry holding the default handlers:
//   - struct{} resolves to shard 0
//   - integers resolve to themselves, folded like hashes beyond the 32-bit range
//   - strings resolve to their stable hash
//   - shard.Ref resolves to its key and mesh.Ref to its shard key
//
// nil values resolve to shard 0 unless WithNullHandler is given.
func NewIndexRegistry(opts ...Option[int]) *IndexRegistry {
	registry := New(func(key int, scheme shard.Scheme) mesh.Ref {
		return mesh.ShardRef(scheme, key)
	}, append([]Option[int]{WithNullHandler(Shard0)}, opts...)...)

	registerIndexDefaults(registry)
	Register(registry, func(ref shard.Ref, scheme shard.Scheme) (int, error) {
		return ref.WithSchemeIfUndefined(scheme).Index(), nil
	})
	Register(registry, func(ref mesh.Ref, scheme shard.Scheme) (int, error) {
		shardRef, ok := ref.Shard()
		if !ok {
			return 0, fmt.Errorf("%w: %s has no shard key", gerrors.ErrInvalidRef, ref)
		}
		return shardRef.WithSchemeIfUndefined(scheme).Index(), nil
	})
	return registry
}

// NewRefRegistry creates a RefRegistry holding the defaults of NewIndexRegistry,
// lifted to shard refs, plus:
//   - struct{} resolves to a random shard instead of shard 0
//   - mesh.NodeID resolves to a node ref
//   - shard.Ref and mesh.Ref resolve to themselves
//
// nil values resolve to shard 0 unless WithNullHandler is given.
func NewRefRegistry(opts ...Option[mesh.Ref]) *RefRegistry {
	registry := New(func(ref mesh.Ref, _ shard.Scheme) mesh.Ref {
		return ref
	}, append([]Option[mesh.Ref]{WithNullHandler(FromIndex(Shard0))}, opts...)...)

	indexes := New[int](nil)
	registerIndexDefaults(indexes)
	for typ, handler := range indexes.exact {
		registry.exact[typ] = FromIndex(handler)
	}

	Register(registry, func(_ struct{}, scheme shard.Scheme) (mesh.Ref, error) {
		return FromIndex(Random)(nil, scheme)
	})
	Register(registry, func(id mesh.NodeID, _ shard.Scheme) (mesh.Ref, error) {
		return mesh.ToNode(id), nil
	})
	Register(registry, func(ref shard.Ref, _ shard.Scheme) (mesh.Ref, error) {
		return mesh.FromShard(ref), nil
	})
	Register(registry, func(ref mesh.Ref, _ shard.Scheme) (mesh.Ref, error) {
		return ref, nil
	})
	return registry
}

func registerIndexDefaults(registry *IndexRegistry) {
	hasher := hash.DefaultHasher()

	Register(registry, func(_ struct{}, scheme shard.Scheme) (int, error) {
		return Shard0(nil, scheme)
	})
	Register(registry, func(s string, _ shard.Scheme) (int, error) {
		return hash.StringKey(hasher, s), nil
	})
	registerInteger[int](registry)
	registerInteger[int8](registry)
	registerInteger[int16](registry)
	registerInteger[int32](registry)
	registerInteger[int64](registry)
	registerInteger[uint](registry)
	registerInteger[uint8](registry)
	registerInteger[uint16](registry)
	registerInteger[uint32](registry)
	registerInteger[uint64](registry)
}

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func registerInteger[T integer](registry *IndexRegistry) {
	Register(registry, func(key T, _ shard.Scheme) (int, error) {
		return integerKey(key), nil
	})
}

// integerKey keeps keys of the int32 range and folds wider ones,
// so that 32-bit and 64-bit nodes agree on the shard key.
func integerKey[T integer](key T) int {
	if key < 0 {
		wide := int64(key)
		if wide >= math.MinInt32 {
			return int(wide)
		}
		return hash.Fold(uint64(wide))
	}
	wide := uint64(key)
	if wide <= math.MaxInt32 {
		return int(wide)
	}
	return hash.Fold(wide)
}
