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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
	"github.com/tochemey/shardmesh/lock"
)

// Lock selects and configures the lock service granting shard leases
type Lock struct {
	// Backend is one of memory, etcd, consul, redis, nats, zookeeper. Defaults to memory.
	Backend string `yaml:"backend"`
	// TTL is the lifetime of a lease that is no longer renewed
	TTL time.Duration `yaml:"ttl"`

	Etcd      *Etcd      `yaml:"etcd"`
	Consul    *Consul    `yaml:"consul"`
	Redis     *Redis     `yaml:"redis"`
	NATS      *NATS      `yaml:"nats"`
	Zookeeper *Zookeeper `yaml:"zookeeper"`
}

// Etcd configures an etcd client
type Etcd struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TLS         *TLS          `yaml:"tls"`
}

// TLS points at the PEM files of a TLS client. Empty fields are skipped.
type TLS struct {
	CAFile     string `yaml:"ca_file"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	ServerName string `yaml:"server_name"`
}

// Consul configures a Consul agent client
type Consul struct {
	Address    string        `yaml:"address"`
	Datacenter string        `yaml:"datacenter"`
	Token      string        `yaml:"token"`
	WaitTime   time.Duration `yaml:"wait_time"`
	LockDelay  time.Duration `yaml:"lock_delay"`
}

// Redis configures a Redis client
type Redis struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PollInterval time.Duration `yaml:"poll_interval"`
	TLS          *TLS          `yaml:"tls"`
}

// NATS configures a NATS JetStream client
type NATS struct {
	URL            string        `yaml:"url"`
	Bucket         string        `yaml:"bucket"`
	Replicas       int           `yaml:"replicas"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// Zookeeper configures a ZooKeeper ensemble client
type Zookeeper struct {
	Servers        []string      `yaml:"servers"`
	Root           string        `yaml:"root"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (l *Lock) sanitize() {
	l.Backend = strings.ToLower(strings.TrimSpace(l.Backend))
	if l.Backend == "" {
		l.Backend = LockMemory
	}
	if l.TTL <= 0 {
		l.TTL = lock.DefaultTTL
	}
}

// Validate checks that the selected backend is known and configured
func (l *Lock) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(oneOf("lock.backend", l.Backend, lockBackends)).
		AddValidator(validation.NewPositiveDurationValidator("lock.ttl", l.TTL)).
		AddValidator(validation.ValidatorFunc(l.validateSection)).
		AddValidator(validation.ValidatorFunc(l.validateTLS)).
		Validate()
}

func (l *Lock) validateTLS() error {
	switch {
	case l.Backend == LockEtcd:
		return l.Etcd.TLS.Validate()
	case l.Backend == LockRedis:
		return l.Redis.TLS.Validate()
	}
	return nil
}

// Validate checks that a client certificate comes with its key
func (t *TLS) Validate() error {
	if t == nil {
		return nil
	}
	return validation.NewAssertion((t.CertFile == "") == (t.KeyFile == ""),
		"tls.cert_file and tls.key_file must be set together").Validate()
}

func (l *Lock) validateSection() error {
	var configured bool
	switch l.Backend {
	case LockMemory:
		return nil
	case LockEtcd:
		configured = l.Etcd != nil
	case LockConsul:
		configured = l.Consul != nil
	case LockRedis:
		configured = l.Redis != nil
	case LockNATS:
		configured = l.NATS != nil
	case LockZookeeper:
		configured = l.Zookeeper != nil
	}
	if !configured {
		return fmt.Errorf("lock.%s section is required by lock backend %s", l.Backend, l.Backend)
	}
	return nil
}
