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

// Package dnssd discovers peers by resolving a domain name.
package dnssd

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"

	goset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/shardmesh/discovery"
)

// Resolver looks up the addresses of a host
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Discovery resolves the configured domain name and pairs every address
// with the mesh port. The DNS records are maintained outside of the process.
type Discovery struct {
	discovery.Lifecycle
	config   *Config
	resolver Resolver
}

var _ discovery.Provider = (*Discovery)(nil)

// NewDiscovery creates a Discovery. A nil resolver uses net.DefaultResolver.
func NewDiscovery(config *Config, resolver Resolver) *Discovery {
	if config == nil {
		config = new(Config)
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Discovery{config: config, resolver: resolver}
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderDNSSD
}

// Initialize validates the configuration
func (d *Discovery) Initialize() error {
	return d.Lifecycle.Initialize(func() error {
		d.config.Sanitize()
		return d.config.Validate()
	})
}

// DiscoverPeers resolves the domain name, sorted
func (d *Discovery) DiscoverPeers() ([]string, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	network := "ip"
	if d.config.IPv6 {
		network = "ip6"
	}
	ips, err := d.resolver.LookupIP(ctx, network, d.config.DomainName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", d.config.DomainName, err)
	}

	port := strconv.Itoa(d.config.Port)
	peers := goset.NewThreadUnsafeSet[string]()
	for _, ip := range ips {
		peers.Add(net.JoinHostPort(ip.String(), port))
	}

	sorted := peers.ToSlice()
	slices.Sort(sorted)
	return sorted, nil
}
