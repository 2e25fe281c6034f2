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
	"errors"
	"math"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/hash"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
)

var backend = shard.MustScheme("Backend", 10)

type orderID string

type tenantKey struct {
	Tenant string
	ID     int
}

func (k tenantKey) ShardKey() any { return k.Tenant }

type loopKey struct{}

func (k loopKey) ShardKey() any { return loopKey{} }

type pingKey struct{}

func (pingKey) ShardKey() any { return pongKey{} }

type pongKey struct{}

func (pongKey) ShardKey() any { return pingKey{} }

type tenantRef struct{ Tenant string }

func (r *tenantRef) ShardKey() any { return r.Tenant }

type keyed interface{ Slot() int }

type account struct{ slot int }

func (a account) Slot() int { return a.slot }

func TestIndexRegistry(t *testing.T) {
	t.Run("With integer keys", func(t *testing.T) {
		registry := NewIndexRegistry()

		ref, err := registry.ShardRef(42, backend)
		require.NoError(t, err)
		assert.Equal(t, 2, ref.Index())
		assert.Equal(t, 2, ref.Key)

		ref, err = registry.ShardRef(int64(-1), backend)
		require.NoError(t, err)
		assert.Equal(t, 9, ref.Index())

		key, err := registry.Resolve(uint8(17), backend)
		require.NoError(t, err)
		assert.Equal(t, 17, key)
	})
	t.Run("With string keys", func(t *testing.T) {
		key, err := NewIndexRegistry().Resolve("tenant-1", backend)
		require.NoError(t, err)
		assert.Equal(t, hash.StringKey(hash.DefaultHasher(), "tenant-1"), key)

		other, err := NewIndexRegistry().Resolve("tenant-1", backend)
		require.NoError(t, err)
		assert.Equal(t, key, other)
	})
	t.Run("With a named scalar type", func(t *testing.T) {
		registry := NewIndexRegistry()
		key, err := registry.Resolve(orderID("o-7"), backend)
		require.NoError(t, err)
		want, err := registry.Resolve("o-7", backend)
		require.NoError(t, err)
		assert.Equal(t, want, key)
	})
	t.Run("With a key source", func(t *testing.T) {
		registry := NewIndexRegistry()
		key, err := registry.Resolve(tenantKey{Tenant: "acme", ID: 3}, backend)
		require.NoError(t, err)
		want, err := registry.Resolve("acme", backend)
		require.NoError(t, err)
		assert.Equal(t, want, key)
	})
	t.Run("With a key source behind a pointer receiver", func(t *testing.T) {
		registry := NewIndexRegistry(WithNullHandler(Always(6)))
		key, err := registry.Resolve(&tenantRef{Tenant: "acme"}, backend)
		require.NoError(t, err)
		want, err := registry.Resolve("acme", backend)
		require.NoError(t, err)
		assert.Equal(t, want, key)

		key, err = registry.Resolve((*tenantRef)(nil), backend)
		require.NoError(t, err)
		assert.Equal(t, 6, key)

		key, err = NewIndexRegistry().Resolve((*tenantKey)(nil), backend)
		require.NoError(t, err)
		assert.Zero(t, key)
	})
	t.Run("With a key source returning itself", func(t *testing.T) {
		_, err := NewIndexRegistry().Resolve(loopKey{}, backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
	})
	t.Run("With key sources referring to each other", func(t *testing.T) {
		_, err := NewIndexRegistry().Resolve(pingKey{}, backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)

		_, err = NewRefRegistry().Resolve(pongKey{}, backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
	})
	t.Run("With pointers", func(t *testing.T) {
		registry := NewIndexRegistry(WithNullHandler(Always(4)))
		value := 13
		key, err := registry.Resolve(&value, backend)
		require.NoError(t, err)
		assert.Equal(t, 13, key)

		var missing *int
		key, err = registry.Resolve(missing, backend)
		require.NoError(t, err)
		assert.Equal(t, 4, key)

		_, err = registry.Resolve(new(float64), backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
	})
	t.Run("With nil", func(t *testing.T) {
		key, err := NewIndexRegistry().Resolve(nil, backend)
		require.NoError(t, err)
		assert.Zero(t, key)

		registry := New[int](nil)
		_, err = registry.Resolve(nil, backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)

		registry.SetNullHandler(Always(5))
		key, err = registry.Resolve(nil, backend)
		require.NoError(t, err)
		assert.Equal(t, 5, key)
	})
	t.Run("With the empty key", func(t *testing.T) {
		registry := NewIndexRegistry()
		for range 50 {
			key, err := registry.Resolve(struct{}{}, backend)
			require.NoError(t, err)
			assert.Zero(t, key)
		}
		key, err := NewIndexRegistry().Resolve(struct{}{}, backend)
		require.NoError(t, err)
		assert.Zero(t, key)
	})
	t.Run("With keys beyond the 32-bit range", func(t *testing.T) {
		registry := NewIndexRegistry()
		wide := []struct {
			value any
			want  int
		}{
			{value: int64(math.MaxInt32), want: math.MaxInt32},
			{value: int64(math.MinInt32), want: math.MinInt32},
			{value: int64(1) << 40, want: hash.Fold(1 << 40)},
			{value: int64(math.MinInt64), want: hash.Fold(1 << 63)},
			{value: uint32(3_000_000_000), want: hash.Fold(3_000_000_000)},
			{value: uint64(math.MaxUint64), want: hash.Fold(math.MaxUint64)},
		}
		for _, tc := range wide {
			key, err := registry.Resolve(tc.value, backend)
			require.NoError(t, err)
			assert.Equal(t, tc.want, key, "%T(%v)", tc.value, tc.value)
			assert.GreaterOrEqual(t, key, math.MinInt32)
			assert.LessOrEqual(t, key, math.MaxInt32)
		}
	})
	t.Run("With an unregistered type", func(t *testing.T) {
		registry := NewIndexRegistry()
		_, err := registry.Resolve(struct{ X float64 }{X: 1}, backend)
		require.Error(t, err)

		var notFound *gerrors.ResolverNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, reflect.TypeFor[struct{ X float64 }](), notFound.Type)
		assert.False(t, registry.Has(reflect.TypeFor[struct{ X float64 }]()))
		assert.True(t, registry.Has(reflect.TypeFor[orderID]()))
	})
	t.Run("With re-registration", func(t *testing.T) {
		registry := NewIndexRegistry()
		_, err := registry.Resolve(orderID("o-1"), backend)
		require.NoError(t, err)

		Register(registry, func(string, shard.Scheme) (int, error) { return 7, nil })
		key, err := registry.Resolve(orderID("o-1"), backend)
		require.NoError(t, err)
		assert.Equal(t, 7, key)

		Unregister[string](registry)
		_, err = registry.Resolve("o-1", backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
		_, err = registry.Resolve(orderID("o-1"), backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
	})
	t.Run("With an interface handler", func(t *testing.T) {
		registry := NewIndexRegistry()
		RegisterInterface(registry, func(k keyed, _ shard.Scheme) (int, error) { return k.Slot(), nil })

		key, err := registry.Resolve(account{slot: 8}, backend)
		require.NoError(t, err)
		assert.Equal(t, 8, key)

		RegisterInterface(registry, func(k keyed, _ shard.Scheme) (int, error) { return k.Slot() + 1, nil })
		key, err = registry.Resolve(account{slot: 8}, backend)
		require.NoError(t, err)
		assert.Equal(t, 9, key)

		Unregister[keyed](registry)
		_, err = registry.Resolve(account{slot: 8}, backend)
		require.ErrorIs(t, err, gerrors.ErrResolverNotFound)

		assert.Panics(t, func() {
			RegisterInterface(registry, func(account, shard.Scheme) (int, error) { return 0, nil })
		})
	})
	t.Run("With mesh refs", func(t *testing.T) {
		registry := NewIndexRegistry()
		key, err := registry.Resolve(mesh.ShardRef(backend, 23), backend)
		require.NoError(t, err)
		assert.Equal(t, 3, key)

		_, err = registry.Resolve(mesh.ToNode("a"), backend)
		require.ErrorIs(t, err, gerrors.ErrInvalidRef)

		key, err = registry.Resolve(shard.NewRef(shard.Undefined, 15), backend)
		require.NoError(t, err)
		assert.Equal(t, 5, key)
	})
	t.Run("With a batch of key shapes", func(t *testing.T) {
		registry := NewIndexRegistry()
		value := 99
		keys := []any{"plain", tenantKey{Tenant: "t", ID: 1}, &value, (*int)(nil), orderID("x"), int32(-5)}
		for _, key := range keys {
			ref, err := registry.ShardRef(key, backend)
			require.NoError(t, err)
			assert.True(t, ref.IsNormalized())
		}
	})
	t.Run("With concurrent registration and resolution", func(t *testing.T) {
		registry := NewIndexRegistry()
		eg := new(errgroup.Group)
		for i := range 32 {
			eg.Go(func() error {
				if i%8 == 0 {
					Register(registry, func(k account, _ shard.Scheme) (int, error) { return k.slot, nil })
				}
				if _, err := registry.Resolve(orderID(strconv.Itoa(i)), backend); err != nil {
					return err
				}
				_, err := registry.ShardRef(i, backend)
				return err
			})
		}
		require.NoError(t, eg.Wait())

		key, err := registry.Resolve(account{slot: 6}, backend)
		require.NoError(t, err)
		assert.Equal(t, 6, key)
	})
}

func TestRefRegistry(t *testing.T) {
	a := mesh.NewNode("a", "127.0.0.1:4001")
	b := mesh.NewNode("b", "127.0.0.1:4002")
	c := mesh.NewNode("c", "127.0.0.1:4003")
	state := mesh.NewState(1, a, b, c)

	t.Run("With shard keys", func(t *testing.T) {
		registry := NewRefRegistry()
		ref, err := registry.ResolveRef(42, backend)
		require.NoError(t, err)
		shardRef, ok := ref.Shard()
		require.True(t, ok)
		assert.Equal(t, 2, shardRef.Key)

		target, err := registry.Target(42, backend, state, a)
		require.NoError(t, err)
		assert.False(t, target.IsOffline())
		assert.Equal(t, state.ShardMap(backend).OwnerIDs()[2], target.NodeRef.ID)
	})
	t.Run("With node ids", func(t *testing.T) {
		registry := NewRefRegistry()
		ref, err := registry.ResolveRef(mesh.NodeID("b"), backend)
		require.NoError(t, err)
		assert.True(t, ref.IsNode())

		target, err := registry.Target(mesh.NodeID("b"), backend, state, b)
		require.NoError(t, err)
		assert.Same(t, b, target.Node)
		assert.True(t, target.IsLocal)

		_, err = registry.ShardRef(mesh.NodeID("b"), backend)
		require.ErrorIs(t, err, gerrors.ErrInvalidRef)
	})
	t.Run("With the empty key", func(t *testing.T) {
		registry := NewRefRegistry()
		for range 20 {
			ref, err := registry.ShardRef(struct{}{}, backend)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, ref.Index(), 0)
			assert.Less(t, ref.Index(), backend.ShardCount())
		}
		_, err := registry.Resolve(struct{}{}, shard.None)
		require.ErrorIs(t, err, gerrors.ErrInvalidScheme)
	})
	t.Run("With refs resolving to themselves", func(t *testing.T) {
		registry := NewRefRegistry()
		ref, err := registry.ResolveRef(shard.NewRef(shard.Undefined, 17), backend)
		require.NoError(t, err)
		assert.Equal(t, mesh.ShardRef(backend, 7), ref)

		ref, err = registry.ResolveRef(mesh.ToNode("c"), backend)
		require.NoError(t, err)
		assert.Equal(t, mesh.ToNode("c"), ref)
	})
	t.Run("With parity with the index registry", func(t *testing.T) {
		refs := NewRefRegistry()
		indexes := NewIndexRegistry()
		for _, key := range []any{"tenant", orderID("o"), tenantKey{Tenant: "x"}, 12345, nil} {
			want, err := indexes.ResolveRef(key, backend)
			require.NoError(t, err)
			got, err := refs.ResolveRef(key, backend)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})
	t.Run("With an overridden handler", func(t *testing.T) {
		registry := NewRefRegistry()
		Register(registry, FromIndexFunc(func(k tenantKey, _ shard.Scheme) (int, error) { return k.ID, nil }))
		ref, err := registry.ResolveRef(tenantKey{Tenant: "x", ID: 4}, backend)
		require.NoError(t, err)
		assert.Equal(t, mesh.ShardRef(backend, 4), ref)
	})
}

func TestHandlers(t *testing.T) {
	key, err := Shard0("anything", backend)
	require.NoError(t, err)
	assert.Zero(t, key)

	key, err = Always(3)(nil, backend)
	require.NoError(t, err)
	assert.Equal(t, 3, key)

	_, err = NotFound[int]()(3.14, backend)
	var notFound *gerrors.ResolverNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, reflect.TypeFor[float64](), notFound.Type)

	_, err = FromIndex(NotFound[int]())(3.14, backend)
	require.ErrorIs(t, err, gerrors.ErrResolverNotFound)
}
