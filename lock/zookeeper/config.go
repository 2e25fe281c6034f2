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

package zookeeper

import (
	"strings"
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultRoot           = "/shardmesh/locks"
	defaultConnectTimeout = 10 * time.Second
)

// Config holds the ZooKeeper ensemble settings
type Config struct {
	// Servers lists the ensemble members as host:port
	Servers []string
	// Root is the node under which lock nodes are created
	Root string
	// ConnectTimeout bounds the wait for the first session
	ConnectTimeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.Root == "" {
		c.Root = defaultRoot
	}
	c.Root = "/" + strings.Trim(c.Root, "/")
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(len(c.Servers) > 0, "Servers must not be empty")
	for _, server := range c.Servers {
		chain = chain.AddValidator(validation.NewEndpointValidator("servers", server))
	}
	return chain.Validate()
}
