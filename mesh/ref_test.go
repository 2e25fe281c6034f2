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

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/shard"
)

func TestRef(t *testing.T) {
	t.Run("With NoRef", func(t *testing.T) {
		assert.True(t, NoRef.IsNone())
		assert.False(t, NoRef.IsShard())
		assert.False(t, NoRef.IsNode())
		assert.Empty(t, NoRef.PeerName())
		assert.Equal(t, "none", NoRef.String())
		_, err := NoRef.RequireValid()
		assert.ErrorIs(t, err, gerrors.ErrInvalidRef)
		assert.True(t, FromShard(shard.NewRef(shard.None, 3)).IsNone())
	})
	t.Run("With a shard ref", func(t *testing.T) {
		ref := ShardRef(backend, -1)
		require.True(t, ref.IsShard())
		assert.False(t, ref.IsNode())

		normalized := ref.Normalize()
		shardRef, ok := normalized.Shard()
		require.True(t, ok)
		assert.Equal(t, 9, shardRef.Key)
		assert.Equal(t, normalized, normalized.Normalize())
		assert.Equal(t, "@shard-Backend-9", ref.PeerName())
		assert.Equal(t, "shard:Backend/9", ref.String())

		_, ok = ref.Node()
		assert.False(t, ok)
	})
	t.Run("With a node ref", func(t *testing.T) {
		ref := ToNode("a")
		require.True(t, ref.IsNode())
		assert.Equal(t, ref, ref.Normalize())
		assert.Equal(t, ref, ref.WithSchemeIfUndefined(backend))
		assert.Equal(t, "@node-a", ref.PeerName())
		assert.Equal(t, "node:a", ref.String())
		nodeRef, ok := ref.Node()
		require.True(t, ok)
		assert.Equal(t, NodeID("a"), nodeRef.ID)
	})
	t.Run("With an undefined scheme", func(t *testing.T) {
		ref := ShardRef(shard.Undefined, 42)
		assert.Equal(t, ref, ref.Normalize())
		_, err := ref.RequireValid()
		assert.ErrorIs(t, err, gerrors.ErrInvalidScheme)

		bound := ref.WithSchemeIfUndefined(backend)
		shardRef, _ := bound.Normalize().Shard()
		assert.Equal(t, 2, shardRef.Key)

		other := shard.MustScheme("Frontend", 3)
		assert.Equal(t, bound, bound.WithSchemeIfUndefined(other))
	})
}
