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

package broadcast

import (
	"sync"

	"github.com/tochemey/shardmesh/discovery"
)

// Discovery finds peers through UDP announcements on the local network
type Discovery struct {
	config      *Config
	announcer   *announcer
	mu          sync.Mutex
	initialized bool
	registered  bool
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates a broadcast discovery provider
func NewDiscovery(config *Config) *Discovery {
	return &Discovery{config: config}
}

// ID returns the provider identifier.
func (d *Discovery) ID() string {
	return discovery.ProviderBroadcast
}

// Initialize validates the configuration. Must be called before Register.
func (d *Discovery) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return discovery.ErrAlreadyInitialized
	}
	if d.config == nil {
		return discovery.ErrInvalidConfig
	}
	d.config.Sanitize()
	if err := d.config.Validate(); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// Register starts announcing this node and listening for peers
func (d *Discovery) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return discovery.ErrNotInitialized
	}
	if d.registered {
		return discovery.ErrAlreadyRegistered
	}
	announcer := newAnnouncer(d.config)
	if err := announcer.start(); err != nil {
		return err
	}
	d.announcer = announcer
	d.registered = true
	return nil
}

// Deregister stops the announcements
func (d *Discovery) Deregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.registered {
		return discovery.ErrNotRegistered
	}
	d.announcer.stop()
	d.announcer = nil
	d.registered = false
	return nil
}

// DiscoverPeers returns the peers heard from recently, excluding this node
func (d *Discovery) DiscoverPeers() ([]string, error) {
	d.mu.Lock()
	if !d.registered {
		d.mu.Unlock()
		return nil, discovery.ErrNotRegistered
	}
	announcer := d.announcer
	d.mu.Unlock()
	return announcer.livePeers(), nil
}

// Close stops the announcements when still registered
func (d *Discovery) Close() error {
	_ = d.Deregister()
	return nil
}
