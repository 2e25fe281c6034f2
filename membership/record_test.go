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

package membership

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/mesh"
)

func TestRecord(t *testing.T) {
	t.Run("With a node round trip", func(t *testing.T) {
		node := mesh.NewNode("a", "10.0.0.1:9000", mesh.WithMeta(map[string]string{"zone": "eu"}))
		payload, err := Encode(node)
		require.NoError(t, err)

		decoded, err := Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, node.ID(), decoded.ID())
		assert.Equal(t, node.Endpoint(), decoded.Endpoint())
		assert.Equal(t, node.HashSeed(), decoded.HashSeed())
		assert.Equal(t, node.Metadata(), decoded.Metadata())
	})
	t.Run("With an invalid payload", func(t *testing.T) {
		_, err := Decode([]byte("{"))
		require.Error(t, err)
	})
	t.Run("With an empty id", func(t *testing.T) {
		_, err := Decode([]byte(`{"id":"","endpoint":"10.0.0.1:9000"}`))
		require.Error(t, err)
	})
	t.Run("Apply publishes changes only", func(t *testing.T) {
		self := mesh.NewNode("a", "")
		stream := NewStream(self, self)

		state := Apply(stream, log.DiscardLogger, []*mesh.Node{self, mesh.NewNode("b", "")})
		assert.EqualValues(t, 2, state.Generation())
		assert.Equal(t, []mesh.NodeID{"a", "b"}, state.NodeIDs())

		same := Apply(stream, log.DiscardLogger, []*mesh.Node{mesh.NewNode("b", ""), self})
		assert.Same(t, state, same)
	})
}
