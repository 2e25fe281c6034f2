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

// Package static discovers the peers listed in the configuration.
package static

import (
	"slices"

	"github.com/tochemey/shardmesh/discovery"
)

// Discovery returns a fixed list of peers
type Discovery struct {
	discovery.Lifecycle
	config *Config
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates a Discovery
func NewDiscovery(config *Config) *Discovery {
	if config == nil {
		config = new(Config)
	}
	return &Discovery{config: config}
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderStatic
}

// Initialize validates the configured hosts
func (d *Discovery) Initialize() error {
	return d.Lifecycle.Initialize(d.config.Validate)
}

// DiscoverPeers returns a copy of the configured hosts
func (d *Discovery) DiscoverPeers() ([]string, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}
	return slices.Clone(d.config.Hosts), nil
}
