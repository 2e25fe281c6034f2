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

package dnssd

import (
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const defaultLookupTimeout = 5 * time.Second

// Config configures the DNS provider
type Config struct {
	// DomainName is resolved to the addresses of the nodes,
	// typically a headless service name
	DomainName string
	// Port is the mesh port every node listens on
	Port int
	// IPv6 looks up AAAA records only
	IPv6 bool
	// Timeout bounds one lookup
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize fills in the defaults
func (c *Config) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultLookupTimeout
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("domain_name", c.DomainName)).
		AddAssertion(c.Port > 0 && c.Port <= 65535, "the [port] must be between 1 and 65535").
		Validate()
}
