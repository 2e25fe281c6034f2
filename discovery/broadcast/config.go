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
	"net"
	"time"

	"github.com/tochemey/shardmesh/discovery"
	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultPort          = 7947
	defaultInterval      = 5 * time.Second
	peerExpiryMultiplier = 3
)

// Config holds the configuration of the broadcast provider.
// Nodes announce themselves on a UDP port and learn about each other
// without any directory service.
type Config struct {
	// ClusterName scopes the announcements. Only nodes with the same name
	// discover each other.
	ClusterName string
	// SelfAddress is the host:port advertised for this node
	SelfAddress string
	// Port is the UDP port of the announcements. Defaults to 7947.
	Port int
	// Interval is how often this node announces itself. Defaults to 5s.
	// Peers not heard from within three intervals are dropped.
	Interval time.Duration
	// Address is the destination of the announcements.
	// Defaults to the limited broadcast address 255.255.255.255.
	// A multicast address makes the provider join that group instead.
	Address net.IP
	// Interface is the network interface used to join a multicast group.
	// Empty means the system default.
	Interface string
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if len(c.Address) == 0 {
		c.Address = net.IPv4bcast
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return discovery.ErrInvalidConfig
	}
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("ClusterName", c.ClusterName)).
		AddValidator(validation.NewEndpointValidator("self_address", c.SelfAddress)).
		AddAssertion(c.Address.To4() != nil, "Address must be an IPv4 address").
		Validate()
}

func (c *Config) peerExpiry() time.Duration {
	return peerExpiryMultiplier * c.Interval
}

func (c *Config) multicast() bool {
	return c.Address.IsMulticast()
}
