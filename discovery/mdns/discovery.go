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

package mdns

import (
	"context"
	"fmt"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/grandcat/zeroconf"
	"go.uber.org/atomic"

	"github.com/tochemey/shardmesh/discovery"
)

const (
	txtNode       = "node="
	txtMetaPrefix = "meta."
)

// Discovery announces the local node with multicast DNS and browses for
// the other announcements of the same service type
type Discovery struct {
	mu          sync.Mutex
	config      *Config
	server      *zeroconf.Server
	initialized *atomic.Bool
	registered  *atomic.Bool
}

var _ discovery.Directory = (*Discovery)(nil)

// NewDiscovery creates a Discovery
func NewDiscovery(config *Config) *Discovery {
	if config == nil {
		config = new(Config)
	}
	return &Discovery{
		config:      config,
		initialized: atomic.NewBool(false),
		registered:  atomic.NewBool(false),
	}
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderMDNS
}

// Initialize validates the configuration
func (d *Discovery) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	d.config.Sanitize()
	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("invalid mdns discovery config: %w", err)
	}

	d.initialized.Store(true)
	return nil
}

// Register starts answering queries for the local node
func (d *Discovery) Register() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if d.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	server, err := zeroconf.Register(d.config.Instance, d.config.Service, d.config.Domain, d.config.Port, d.txt(), nil)
	if err != nil {
		return fmt.Errorf("failed to announce node %s: %w", d.config.NodeID, err)
	}

	d.server = server
	d.registered.Store(true)
	return nil
}

// Deregister stops the announcement
func (d *Discovery) Deregister() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if !d.registered.Load() {
		return discovery.ErrNotRegistered
	}

	d.server.Shutdown()
	d.server = nil
	d.registered.Store(false)
	return nil
}

// DiscoverMembers browses the network for the service type and returns
// one member per announced node, the local node excluded. Announcements
// without a node record are identified by their first address.
// It blocks for the browse timeout.
func (d *Discovery) DiscoverMembers() ([]discovery.Member, error) {
	if !d.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}
	if !d.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns resolver: %w", err)
	}

	// the resolver shuts down with the browse context
	ctx, cancel := context.WithTimeout(context.Background(), d.config.BrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, d.config.Service, d.config.Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse %s: %w", d.config.Service, err)
	}

	seen := goset.NewThreadUnsafeSet(d.config.NodeID)
	var members []discovery.Member
	for entry := range entries {
		addresses := d.addresses(entry)
		if len(addresses) == 0 {
			continue
		}

		id, meta := parseTXT(entry.Text)
		if id == "" {
			id = addresses[0]
		}
		if !seen.Add(id) {
			continue
		}
		members = append(members, discovery.Member{ID: id, Endpoint: addresses[0], Meta: meta})
	}

	slices.SortFunc(members, func(a, b discovery.Member) int {
		return strings.Compare(a.ID, b.ID)
	})
	return members, nil
}

// DiscoverPeers returns the endpoints of the announced nodes
func (d *Discovery) DiscoverPeers() ([]string, error) {
	members, err := d.DiscoverMembers()
	if err != nil {
		return nil, err
	}
	peers := make([]string, len(members))
	for i, member := range members {
		peers[i] = member.Endpoint
	}
	return peers, nil
}

// Close stops the announcement when still registered
func (d *Discovery) Close() error {
	if d.registered.Load() {
		_ = d.Deregister()
	}
	d.initialized.Store(false)
	return nil
}

func (d *Discovery) addresses(entry *zeroconf.ServiceEntry) []string {
	if entry.Service != d.config.Service || entry.Domain != d.config.Domain {
		return nil
	}

	port := strconv.Itoa(entry.Port)
	var addresses []string
	for _, ip := range entry.AddrIPv4 {
		addresses = append(addresses, net.JoinHostPort(ip.String(), port))
	}
	if d.config.IPv6 {
		for _, ip := range entry.AddrIPv6 {
			addresses = append(addresses, net.JoinHostPort(ip.String(), port))
		}
	}
	return addresses
}

func (d *Discovery) txt() []string {
	records := []string{txtNode + d.config.NodeID}
	for _, key := range slices.Sorted(maps.Keys(d.config.Meta)) {
		records = append(records, txtMetaPrefix+key+"="+d.config.Meta[key])
	}
	return records
}

func parseTXT(records []string) (string, map[string]string) {
	var id string
	var meta map[string]string
	for _, record := range records {
		if value, ok := strings.CutPrefix(record, txtNode); ok {
			id = value
			continue
		}
		if entry, ok := strings.CutPrefix(record, txtMetaPrefix); ok {
			key, value, _ := strings.Cut(entry, "=")
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[key] = value
		}
	}
	return id, meta
}
