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
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultAddress         = "127.0.0.1:8500"
	defaultTimeout         = 10 * time.Second
	defaultCheckInterval   = 10 * time.Second
	defaultCheckTimeout    = 3 * time.Second
	defaultDeregisterAfter = time.Minute
)

// Config configures the Consul discovery provider.
// Every mesh node registers one service instance whose id is the node id.
type Config struct {
	// Address is the Consul agent HTTP address
	Address    string
	Datacenter string
	Token      string
	// Timeout bounds every call made to the agent
	Timeout time.Duration
	// ServiceName is the service every node of the mesh registers under
	ServiceName string
	// NodeID is the id of the local node. It defaults to Endpoint.
	NodeID string
	// Endpoint is the host:port advertised for the local node
	Endpoint string
	// Meta is published as service metadata. Keys are restricted by Consul
	// to letters, digits, dashes and underscores.
	Meta map[string]string
	// OnlyPassing drops the instances whose TCP check is not passing
	OnlyPassing bool
	// AllowStale lets any Consul server answer the catalog reads
	AllowStale bool
	// CheckInterval and CheckTimeout drive the TCP check on Endpoint
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	// DeregisterAfter removes an instance whose check stayed critical that long.
	// Consul ignores values under a minute.
	DeregisterAfter time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills in the defaults
func (c *Config) Sanitize() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.NodeID == "" {
		c.NodeID = c.Endpoint
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = defaultCheckTimeout
	}
	if c.DeregisterAfter <= 0 {
		c.DeregisterAfter = defaultDeregisterAfter
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("address", c.Address)).
		AddValidator(validation.NewEmptyStringValidator("service_name", c.ServiceName)).
		AddValidator(validation.NewEndpointValidator("endpoint", c.Endpoint)).
		AddValidator(validation.NewEmptyStringValidator("node_id", c.NodeID)).
		AddValidator(validation.NewDurationRangeValidator("check_timeout", c.CheckTimeout, "check_interval", c.CheckInterval)).
		Validate()
}
