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

package redis

import (
	"crypto/tls"
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const defaultPollInterval = 500 * time.Millisecond

// Config holds the Redis connection settings
type Config struct {
	// Addr is the host:port address of the Redis server
	Addr string
	// Username for Redis ACL authentication (optional)
	Username string
	// Password for Redis authentication (optional)
	Password string
	// DB is the database to select
	DB int
	// TLS configuration (optional)
	TLS *tls.Config
	// PollInterval bounds the wait between two acquisition attempts
	// when no release notification is received
	PollInterval time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Addr", c.Addr)).
		AddValidator(validation.NewEndpointValidator("addr", c.Addr)).
		AddAssertion(c.DB >= 0, "DB must not be negative").
		Validate()
}
