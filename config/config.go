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

// Package config loads the description of a mesh node from YAML.
//
// A description names the node, the shard schemes it serves, the tuning of
// its shard workers, the lock service granting shard leases and the
// membership backend observing the other nodes.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/tochemey/shardmesh/internal/validation"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/shard"
	"github.com/tochemey/shardmesh/worker"
)

// lock backends
const (
	LockMemory    = "memory"
	LockEtcd      = "etcd"
	LockConsul    = "consul"
	LockRedis     = "redis"
	LockNATS      = "nats"
	LockZookeeper = "zookeeper"
)

// membership backends
const (
	MembershipStatic     = "static"
	MembershipEtcd       = "etcd"
	MembershipMemberlist = "memberlist"
	MembershipZookeeper  = "zookeeper"
	MembershipDiscovery  = "discovery"
)

var (
	lockBackends       = []string{LockMemory, LockEtcd, LockConsul, LockRedis, LockNATS, LockZookeeper}
	membershipBackends = []string{MembershipStatic, MembershipEtcd, MembershipMemberlist, MembershipZookeeper, MembershipDiscovery}
)

// Config describes a mesh node
type Config struct {
	Node       Node       `yaml:"node"`
	Log        Log        `yaml:"log"`
	Schemes    []Scheme   `yaml:"schemes"`
	Worker     Worker     `yaml:"worker"`
	Lock       Lock       `yaml:"lock"`
	Membership Membership `yaml:"membership"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Node identifies the local node
type Node struct {
	// ID must be unique in the mesh. Defaults to the endpoint.
	ID string `yaml:"id"`
	// Endpoint is the host:port peers use to reach the node
	Endpoint string            `yaml:"endpoint"`
	Meta     map[string]string `yaml:"meta"`
}

// Log configures the node logger
type Log struct {
	// Level is one of debug, info, warning, error. Defaults to info.
	Level string `yaml:"level"`
	// File, when set, receives the log entries instead of stdout
	File string `yaml:"file"`
}

// Scheme declares a shard scheme
type Scheme struct {
	ID     string `yaml:"id"`
	Shards int    `yaml:"shards"`
}

// Worker tunes the shard workers
type Worker struct {
	KeyPrefix      string        `yaml:"key_prefix"`
	RepeatDelay    time.Duration `yaml:"repeat_delay"`
	Jitter         float64       `yaml:"jitter"`
	MinRetryDelay  time.Duration `yaml:"min_retry_delay"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay"`
	ReleaseTimeout time.Duration `yaml:"release_timeout"`
}

// Telemetry toggles the OpenTelemetry instrumentation of the node
type Telemetry struct {
	// Disabled turns metrics and spans into no-ops
	Disabled bool `yaml:"disabled"`
}

// Default returns a sanitized empty description: no scheme, in-memory locks
// and static membership. The node endpoint still has to be set.
func Default() *Config {
	config := new(Config)
	config.Sanitize()
	return config
}

// Load reads and parses the YAML file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML description, fills in defaults and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	config := new(Config)
	if err := yaml.UnmarshalWithOptions(data, config, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Sanitize fills in the defaults
func (c *Config) Sanitize() {
	c.Node.ID = strings.TrimSpace(c.Node.ID)
	c.Node.Endpoint = strings.TrimSpace(c.Node.Endpoint)
	if c.Node.ID == "" {
		c.Node.ID = c.Node.Endpoint
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = log.InfoLevel.String()
	}

	c.Worker.sanitize()
	c.Lock.sanitize()
	c.Membership.sanitize()
}

// Validate checks the description
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("node.id", c.Node.ID)).
		AddValidator(validation.NewEndpointValidator("node.endpoint", c.Node.Endpoint)).
		AddAssertion(log.ParseLevel(c.Log.Level) != log.InvalidLevel, fmt.Sprintf("log level %q is invalid", c.Log.Level)).
		AddValidator(validation.ValidatorFunc(c.validateSchemes)).
		AddValidator(&c.Worker).
		AddValidator(&c.Lock).
		AddValidator(&c.Membership)
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Catalog builds the catalog of the declared schemes
func (c *Config) Catalog() (*shard.Catalog, error) {
	schemes := make([]shard.Scheme, 0, len(c.Schemes))
	for _, declared := range c.Schemes {
		scheme, err := shard.NewScheme(declared.ID, declared.Shards)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, scheme)
	}
	return shard.NewCatalog(schemes...)
}

func (c *Config) validateSchemes() error {
	_, err := c.Catalog()
	return err
}

func (w *Worker) sanitize() {
	w.KeyPrefix = strings.Trim(strings.TrimSpace(w.KeyPrefix), "/")
	if w.KeyPrefix == "" {
		w.KeyPrefix = lock.DefaultKeyPrefix
	}
	if w.RepeatDelay <= 0 {
		w.RepeatDelay = worker.DefaultRepeatDelay
	}
	if w.Jitter <= 0 {
		w.Jitter = worker.DefaultJitter
	}
	if w.MinRetryDelay <= 0 {
		w.MinRetryDelay = worker.DefaultMinRetryDelay
	}
	if w.MaxRetryDelay <= 0 {
		w.MaxRetryDelay = worker.DefaultMaxRetryDelay
	}
	if w.ReleaseTimeout <= 0 {
		w.ReleaseTimeout = worker.DefaultReleaseTimeout
	}
}

// Validate checks the worker tuning
func (w *Worker) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(!strings.Contains(w.KeyPrefix, " "), "worker.key_prefix must not contain spaces").
		AddAssertion(w.Jitter < 1, "worker.jitter must be lower than 1").
		AddValidator(validation.NewDurationRangeValidator("worker.min_retry_delay", w.MinRetryDelay, "worker.max_retry_delay", w.MaxRetryDelay)).
		Validate()
}

// Options returns the worker options matching the tuning
func (w *Worker) Options() []worker.Option {
	return []worker.Option{
		worker.WithKeyPrefix(w.KeyPrefix),
		worker.WithRepeatDelay(w.RepeatDelay, w.Jitter),
		worker.WithRetryDelays(w.MinRetryDelay, w.MaxRetryDelay),
		worker.WithReleaseTimeout(w.ReleaseTimeout),
	}
}

func oneOf(field, value string, allowed []string) validation.Validator {
	return validation.NewAssertion(slices.Contains(allowed, value),
		fmt.Sprintf("%s %q is not one of %s", field, value, strings.Join(allowed, ", ")))
}
