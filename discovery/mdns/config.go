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
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultService       = "_shardmesh._tcp"
	defaultDomain        = "local."
	defaultBrowseTimeout = 2 * time.Second
)

// Config configures the mDNS provider
type Config struct {
	// NodeID is published in the TXT record of the announcement
	NodeID string
	// Meta entries are published in the TXT record as meta.<key>=<value>
	Meta map[string]string
	// Instance is the instance name announced on the network. Defaults to NodeID.
	Instance string
	// Service is the DNS-SD service type every node browses
	Service string
	Domain  string
	// Port is the port announced for the node
	Port int
	// IPv6 includes the IPv6 addresses of the answers
	IPv6 bool
	// BrowseTimeout bounds one browse of the network
	BrowseTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills in the defaults
func (c *Config) Sanitize() {
	if c.Instance == "" {
		c.Instance = c.NodeID
	}
	if c.Service == "" {
		c.Service = defaultService
	}
	if c.Domain == "" {
		c.Domain = defaultDomain
	}
	if c.BrowseTimeout <= 0 {
		c.BrowseTimeout = defaultBrowseTimeout
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("node_id", c.NodeID)).
		AddValidator(validation.NewEmptyStringValidator("instance", c.Instance)).
		AddValidator(validation.NewEmptyStringValidator("service", c.Service)).
		AddValidator(validation.NewEmptyStringValidator("domain", c.Domain)).
		AddAssertion(c.Port > 0 && c.Port <= 65535, "the [port] must be between 1 and 65535").
		Validate()
}
