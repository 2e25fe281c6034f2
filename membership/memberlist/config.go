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

package memberlist

import (
	"net"
	"strconv"
	"time"

	sd "github.com/tochemey/shardmesh/discovery"
	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultBindAddr          = "0.0.0.0"
	defaultBindPort          = 7946
	defaultJoinTimeout       = 5 * time.Second
	defaultJoinRetryInterval = 200 * time.Millisecond
	defaultLeaveTimeout      = 3 * time.Second
)

// Config holds the gossip settings of the memberlist watcher
type Config struct {
	// BindAddr is the address gossip listens on
	BindAddr string
	// BindPort is the gossip port, for both UDP and TCP
	BindPort int
	// AdvertiseAddr is the address other members reach this node at.
	// It defaults to a private address of the host when BindAddr is a wildcard.
	AdvertiseAddr string
	// AdvertisePort defaults to BindPort
	AdvertisePort int
	// Seeds are the gossip addresses joined on start
	Seeds []string
	// Provider, when set, is registered with on start and queried for additional seeds
	Provider sd.Provider
	// JoinTimeout bounds the whole join attempt
	JoinTimeout time.Duration
	// JoinRetryInterval is the pause between join attempts
	JoinRetryInterval time.Duration
	// LeaveTimeout bounds the leave broadcast on stop
	LeaveTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.BindAddr == "" {
		c.BindAddr = defaultBindAddr
	}
	if c.BindPort == 0 {
		c.BindPort = defaultBindPort
	}
	if c.AdvertisePort == 0 {
		c.AdvertisePort = c.BindPort
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = defaultJoinTimeout
	}
	if c.JoinRetryInterval <= 0 {
		c.JoinRetryInterval = defaultJoinRetryInterval
	}
	if c.LeaveTimeout <= 0 {
		c.LeaveTimeout = defaultLeaveTimeout
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewEndpointValidator("bind", net.JoinHostPort(c.BindAddr, strconv.Itoa(c.BindPort)))).
		AddAssertion(c.AdvertisePort > 0 && c.AdvertisePort <= 65535, "AdvertisePort is invalid").
		AddValidator(validation.NewDurationRangeValidator("JoinRetryInterval", c.JoinRetryInterval, "JoinTimeout", c.JoinTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("LeaveTimeout", c.LeaveTimeout))
	for _, seed := range c.Seeds {
		chain = chain.AddValidator(validation.NewEndpointValidator("seeds", seed))
	}
	return chain.Validate()
}

// joinAttempts returns how many joins fit in the join timeout
func (c *Config) joinAttempts() int {
	return max(1, int(c.JoinTimeout/c.JoinRetryInterval))
}
