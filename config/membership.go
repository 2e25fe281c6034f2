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
	"net"
	"strings"
	"time"

	sd "github.com/tochemey/shardmesh/discovery"
	"github.com/tochemey/shardmesh/internal/validation"
	"github.com/tochemey/shardmesh/membership"
)

var discoveryProviders = []string{
	sd.ProviderStatic,
	sd.ProviderDNSSD,
	sd.ProviderConsul,
	sd.ProviderKubernetes,
	sd.ProviderMDNS,
	sd.ProviderBroadcast,
}

// Membership selects and configures how the node observes its peers
type Membership struct {
	// Backend is one of static, etcd, memberlist, zookeeper, discovery. Defaults to static.
	Backend string `yaml:"backend"`
	// CheckPeriod is how often polling backends re-read the membership
	CheckPeriod time.Duration `yaml:"check_period"`
	// Peers is the fixed peer list of the static backend
	Peers []Peer `yaml:"peers"`

	Etcd       *EtcdMembership `yaml:"etcd"`
	Memberlist *Memberlist     `yaml:"memberlist"`
	Zookeeper  *Zookeeper      `yaml:"zookeeper"`
	// Discovery drives the discovery backend. With the memberlist backend it provides extra seeds.
	Discovery *Discovery `yaml:"discovery"`
}

// Peer is a statically known node
type Peer struct {
	ID       string            `yaml:"id"`
	Endpoint string            `yaml:"endpoint"`
	Meta     map[string]string `yaml:"meta"`
}

// EtcdMembership registers members under a leased etcd prefix
type EtcdMembership struct {
	Etcd   `yaml:",inline"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

// Memberlist configures the gossip backend
type Memberlist struct {
	BindAddr          string        `yaml:"bind_addr"`
	BindPort          int           `yaml:"bind_port"`
	AdvertiseAddr     string        `yaml:"advertise_addr"`
	AdvertisePort     int           `yaml:"advertise_port"`
	Seeds             []string      `yaml:"seeds"`
	JoinTimeout       time.Duration `yaml:"join_timeout"`
	JoinRetryInterval time.Duration `yaml:"join_retry_interval"`
	LeaveTimeout      time.Duration `yaml:"leave_timeout"`
}

// Discovery selects a peer discovery provider
type Discovery struct {
	// Provider is one of static, dns-sd, consul, kubernetes, mdns, broadcast
	Provider string `yaml:"provider"`
	// Hosts is the peer list of the static provider
	Hosts      []string             `yaml:"hosts"`
	DNS        *DNSDiscovery        `yaml:"dns"`
	Consul     *ConsulDiscovery     `yaml:"consul"`
	Kubernetes *KubernetesDiscovery `yaml:"kubernetes"`
	MDNS       *MDNSDiscovery       `yaml:"mdns"`
	Broadcast  *BroadcastDiscovery  `yaml:"broadcast"`
}

// DNSDiscovery looks peers up by domain name
type DNSDiscovery struct {
	DomainName string        `yaml:"domain_name"`
	Port       int           `yaml:"port"`
	IPv6       bool          `yaml:"ipv6"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ConsulDiscovery registers the node as a Consul service and lists its healthy instances
type ConsulDiscovery struct {
	Address     string        `yaml:"address"`
	Datacenter  string        `yaml:"datacenter"`
	Token       string        `yaml:"token"`
	ServiceName string        `yaml:"service_name"`
	Timeout     time.Duration `yaml:"timeout"`
	OnlyPassing bool          `yaml:"only_passing"`
	AllowStale  bool          `yaml:"allow_stale"`
}

// KubernetesDiscovery lists the pods matching a label selector
type KubernetesDiscovery struct {
	Namespace string            `yaml:"namespace"`
	PodLabels map[string]string `yaml:"pod_labels"`
	PortName  string            `yaml:"port_name"`
	Timeout   time.Duration     `yaml:"timeout"`
}

// MDNSDiscovery browses a multicast DNS service
type MDNSDiscovery struct {
	Instance      string        `yaml:"instance"`
	Service       string        `yaml:"service"`
	Domain        string        `yaml:"domain"`
	Port          int           `yaml:"port"`
	IPv6          bool          `yaml:"ipv6"`
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
}

// BroadcastDiscovery announces the node over UDP broadcast or multicast
type BroadcastDiscovery struct {
	ClusterName string        `yaml:"cluster_name"`
	Port        int           `yaml:"port"`
	Interval    time.Duration `yaml:"interval"`
	Address     string        `yaml:"address"`
	Interface   string        `yaml:"interface"`
}

func (m *Membership) sanitize() {
	m.Backend = strings.ToLower(strings.TrimSpace(m.Backend))
	if m.Backend == "" {
		m.Backend = MembershipStatic
	}
	if m.CheckPeriod <= 0 {
		m.CheckPeriod = membership.DefaultCheckPeriod
	}
	for i := range m.Peers {
		m.Peers[i].Endpoint = strings.TrimSpace(m.Peers[i].Endpoint)
		if strings.TrimSpace(m.Peers[i].ID) == "" {
			m.Peers[i].ID = m.Peers[i].Endpoint
		}
	}
	if m.Discovery != nil {
		m.Discovery.Provider = strings.ToLower(strings.TrimSpace(m.Discovery.Provider))
	}
}

// Validate checks that the selected backend is known and configured
func (m *Membership) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddValidator(oneOf("membership.backend", m.Backend, membershipBackends)).
		AddValidator(validation.ValidatorFunc(m.validateSection))
	for _, peer := range m.Peers {
		chain = chain.AddValidator(validation.NewEndpointValidator("membership.peers.endpoint", peer.Endpoint))
	}
	if m.Discovery != nil {
		chain = chain.AddValidator(m.Discovery)
	}
	return chain.Validate()
}

func (m *Membership) validateSection() error {
	var configured bool
	switch m.Backend {
	case MembershipStatic:
		return nil
	case MembershipEtcd:
		configured = m.Etcd != nil
	case MembershipMemberlist:
		configured = m.Memberlist != nil
	case MembershipZookeeper:
		configured = m.Zookeeper != nil
	case MembershipDiscovery:
		configured = m.Discovery != nil
	}
	if !configured {
		return fmt.Errorf("membership.%s section is required by membership backend %s", m.Backend, m.Backend)
	}
	if m.Backend == MembershipEtcd {
		return m.Etcd.TLS.Validate()
	}
	return nil
}

// Validate checks that the selected provider is known and configured
func (d *Discovery) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(oneOf("membership.discovery.provider", d.Provider, discoveryProviders)).
		AddValidator(validation.ValidatorFunc(d.validateSection)).
		Validate()
}

func (d *Discovery) validateSection() error {
	var configured bool
	switch d.Provider {
	case sd.ProviderStatic:
		configured = len(d.Hosts) > 0
	case sd.ProviderDNSSD:
		configured = d.DNS != nil
	case sd.ProviderConsul:
		configured = d.Consul != nil
	case sd.ProviderKubernetes:
		configured = d.Kubernetes != nil
	case sd.ProviderMDNS:
		configured = d.MDNS != nil
	case sd.ProviderBroadcast:
		if d.Broadcast != nil && d.Broadcast.Address != "" && net.ParseIP(d.Broadcast.Address) == nil {
			return fmt.Errorf("membership.discovery.broadcast.address %q is not an IP", d.Broadcast.Address)
		}
		configured = d.Broadcast != nil
	}
	if !configured {
		return fmt.Errorf("membership.discovery section is missing the %s provider settings", d.Provider)
	}
	return nil
}
