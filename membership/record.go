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
	"encoding/json"
	"fmt"

	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/mesh"
)

// record is the form under which registry based watchers store a node
type record struct {
	ID       string            `json:"id"`
	Endpoint string            `json:"endpoint"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Encode returns the registry payload of node
func Encode(node *mesh.Node) ([]byte, error) {
	return json.Marshal(record{
		ID:       string(node.ID()),
		Endpoint: node.Endpoint(),
		Meta:     node.Metadata(),
	})
}

// Decode rebuilds a node from a registry payload
func Decode(data []byte) (*mesh.Node, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode mesh node: %w", err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("failed to decode mesh node: empty id")
	}
	return mesh.NewNode(mesh.NodeID(r.ID), r.Endpoint, mesh.WithMeta(r.Meta)), nil
}

// Apply publishes nodes on stream and logs the membership change, if any
func Apply(stream *Stream, logger log.Logger, nodes []*mesh.Node) *mesh.State {
	prev := stream.Current()
	state, changed := stream.Publish(nodes)
	if changed {
		added, removed := state.Diff(prev)
		logger.With("generation", state.Generation()).
			Infof("mesh state changed: added=%v removed=%v", added, removed)
	}
	return state
}
