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

package nats

import (
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const (
	defaultBucket         = "shardmesh-locks"
	defaultPollInterval   = 500 * time.Millisecond
	defaultConnectTimeout = 5 * time.Second
)

// Config holds the NATS connection and bucket settings
type Config struct {
	// URL is the NATS server URL, for instance nats://127.0.0.1:4222
	URL string
	// Bucket is the JetStream key-value bucket holding the locks.
	// It is created with the lock TTL as max age when missing.
	Bucket string
	// Replicas is the number of bucket replicas when the bucket is created
	Replicas int
	// ConnectTimeout bounds the connection to the server
	ConnectTimeout time.Duration
	// PollInterval bounds the wait between two acquisition attempts
	// when no release is observed
	PollInterval time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (c *Config) Sanitize() {
	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("URL", c.URL)).
		AddValidator(validation.NewEmptyStringValidator("Bucket", c.Bucket)).
		Validate()
}
