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
	defaultAddress      = "127.0.0.1:8500"
	defaultWaitTime     = time.Second
	defaultLockDelay    = time.Second
	minimumSessionTTL   = 10 * time.Second
	defaultSessionName  = "shardmesh"
	defaultMonitorRetry = 3
)

// Config holds the Consul connection and session settings
type Config struct {
	// Address is the address of the Consul agent to connect to.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the Consul datacenter to use.
	// If empty, the agent's default datacenter is used.
	Datacenter string
	// Token is the Consul ACL token used for authenticated requests.
	Token string
	// SessionName names the sessions created for locks
	SessionName string
	// WaitTime bounds each blocking query while waiting for a lock.
	// It is also the latency of giving up a wait on cancellation.
	WaitTime time.Duration
	// LockDelay is the time a key stays unlockable after its session is invalidated
	LockDelay time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.SessionName == "" {
		c.SessionName = defaultSessionName
	}
	if c.WaitTime <= 0 {
		c.WaitTime = defaultWaitTime
	}
	if c.LockDelay <= 0 {
		c.LockDelay = defaultLockDelay
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Address", c.Address)).
		AddValidator(validation.NewPositiveDurationValidator("WaitTime", c.WaitTime)).
		Validate()
}
