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

package consul

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	goset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	"github.com/tochemey/shardmesh/discovery"
)

// Discovery registers the local node as an instance of a Consul service
// and reads the other instances back from the health endpoint.
type Discovery struct {
	mu          sync.RWMutex
	config      *Config
	client      *api.Client
	host        string
	port        int
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
func (x *Discovery) ID() string {
	return discovery.ProviderConsul
}

// Initialize validates the configuration and checks the agent has a leader
func (x *Discovery) Initialize() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.initialized.Load() {
		return discovery.ErrAlreadyInitialized
	}

	x.config.Sanitize()
	if err := x.config.Validate(); err != nil {
		return fmt.Errorf("invalid consul discovery config: %w", err)
	}

	host, port, err := net.SplitHostPort(x.config.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid consul discovery config: %w", err)
	}
	if x.port, err = strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid consul discovery config: %w", err)
	}
	x.host = host

	clientConfig := api.DefaultConfig()
	clientConfig.Address = x.config.Address
	clientConfig.Datacenter = x.config.Datacenter
	clientConfig.Token = x.config.Token
	clientConfig.HttpClient = &http.Client{Timeout: x.config.Timeout}
	client, err := api.NewClient(clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create consul client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), x.config.Timeout)
	defer cancel()
	leader, err := client.Status().LeaderWithQueryOptions(new(api.QueryOptions).WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to reach consul at %s: %w", x.config.Address, err)
	}
	if leader == "" {
		return fmt.Errorf("consul at %s has no leader", x.config.Address)
	}

	x.client = client
	x.initialized.Store(true)
	return nil
}

// Register adds the local node instance, checked over TCP on its endpoint
func (x *Discovery) Register() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if x.registered.Load() {
		return discovery.ErrAlreadyRegistered
	}

	registration := &api.AgentServiceRegistration{
		ID:      x.config.NodeID,
		Name:    x.config.ServiceName,
		Address: x.host,
		Port:    x.port,
		Meta:    maps.Clone(x.config.Meta),
		Check: &api.AgentServiceCheck{
			TCP:                            x.config.Endpoint,
			Interval:                       x.config.CheckInterval.String(),
			Timeout:                        x.config.CheckTimeout.String(),
			DeregisterCriticalServiceAfter: x.config.DeregisterAfter.String(),
		},
	}

	if err := x.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register node %s: %w", x.config.NodeID, err)
	}

	x.registered.Store(true)
	return nil
}

// Deregister removes the local node instance
func (x *Discovery) Deregister() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.initialized.Load() {
		return discovery.ErrNotInitialized
	}
	if !x.registered.Load() {
		return discovery.ErrNotRegistered
	}

	if err := x.client.Agent().ServiceDeregister(x.config.NodeID); err != nil {
		return fmt.Errorf("failed to deregister node %s: %w", x.config.NodeID, err)
	}

	x.registered.Store(false)
	return nil
}

// DiscoverMembers lists the other instances of the service, sorted by id
func (x *Discovery) DiscoverMembers() ([]discovery.Member, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.initialized.Load() {
		return nil, discovery.ErrNotInitialized
	}
	if !x.registered.Load() {
		return nil, discovery.ErrNotRegistered
	}

	ctx, cancel := context.WithTimeout(context.Background(), x.config.Timeout)
	defer cancel()
	opts := &api.QueryOptions{
		Datacenter: x.config.Datacenter,
		AllowStale: x.config.AllowStale,
	}

	entries, _, err := x.client.Health().Service(x.config.ServiceName, "", x.config.OnlyPassing, opts.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s instances: %w", x.config.ServiceName, err)
	}

	seen := goset.NewThreadUnsafeSet(x.config.NodeID)
	members := make([]discovery.Member, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Service == nil {
			continue
		}
		service := entry.Service
		if !seen.Add(service.ID) {
			continue
		}

		address := service.Address
		if address == "" && entry.Node != nil {
			address = entry.Node.Address
		}
		if address == "" || service.Port <= 0 {
			continue
		}

		members = append(members, discovery.Member{
			ID:       service.ID,
			Endpoint: net.JoinHostPort(address, strconv.Itoa(service.Port)),
			Meta:     maps.Clone(service.Meta),
		})
	}

	slices.SortFunc(members, func(a, b discovery.Member) int {
		return strings.Compare(a.ID, b.ID)
	})
	return members, nil
}

// DiscoverPeers returns the endpoints of the other instances
func (x *Discovery) DiscoverPeers() ([]string, error) {
	members, err := x.DiscoverMembers()
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(members))
	for _, member := range members {
		peers = append(peers, member.Endpoint)
	}
	return peers, nil
}

// Close drops the client. The instance stays registered until Deregister.
func (x *Discovery) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.client = nil
	x.initialized.Store(false)
	x.registered.Store(false)
	return nil
}
