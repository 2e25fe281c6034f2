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

package host

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/tochemey/shardmesh/config"
	sd "github.com/tochemey/shardmesh/discovery"
	"github.com/tochemey/shardmesh/discovery/broadcast"
	dconsul "github.com/tochemey/shardmesh/discovery/consul"
	"github.com/tochemey/shardmesh/discovery/dnssd"
	"github.com/tochemey/shardmesh/discovery/kubernetes"
	"github.com/tochemey/shardmesh/discovery/mdns"
	"github.com/tochemey/shardmesh/discovery/static"
	"github.com/tochemey/shardmesh/lock"
	lconsul "github.com/tochemey/shardmesh/lock/consul"
	letcd "github.com/tochemey/shardmesh/lock/etcd"
	"github.com/tochemey/shardmesh/lock/memory"
	lnats "github.com/tochemey/shardmesh/lock/nats"
	lredis "github.com/tochemey/shardmesh/lock/redis"
	lzookeeper "github.com/tochemey/shardmesh/lock/zookeeper"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/membership"
	mdiscovery "github.com/tochemey/shardmesh/membership/discovery"
	metcd "github.com/tochemey/shardmesh/membership/etcd"
	"github.com/tochemey/shardmesh/membership/memberlist"
	mzookeeper "github.com/tochemey/shardmesh/membership/zookeeper"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/secureconn"
)

// newLocker builds the lock service selected by the configuration
func newLocker(ctx context.Context, cfg config.Lock, logger log.Logger) (lock.Locker, error) {
	opts := []lock.Option{lock.WithLogger(logger), lock.WithTTL(cfg.TTL)}

	switch cfg.Backend {
	case config.LockMemory:
		return memory.NewLocker(), nil
	case config.LockEtcd:
		tlsConfig, err := clientTLS(cfg.Etcd.TLS)
		if err != nil {
			return nil, err
		}
		return granted(letcd.NewLocker(ctx, &letcd.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
			TLS:         tlsConfig,
		}, opts...))
	case config.LockConsul:
		return granted(lconsul.NewLocker(&lconsul.Config{
			Address:    cfg.Consul.Address,
			Datacenter: cfg.Consul.Datacenter,
			Token:      cfg.Consul.Token,
			WaitTime:   cfg.Consul.WaitTime,
			LockDelay:  cfg.Consul.LockDelay,
		}, opts...))
	case config.LockRedis:
		tlsConfig, err := clientTLS(cfg.Redis.TLS)
		if err != nil {
			return nil, err
		}
		return granted(lredis.NewLocker(ctx, &lredis.Config{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			TLS:          tlsConfig,
			PollInterval: cfg.Redis.PollInterval,
		}, opts...))
	case config.LockNATS:
		return granted(lnats.NewLocker(&lnats.Config{
			URL:            cfg.NATS.URL,
			Bucket:         cfg.NATS.Bucket,
			Replicas:       cfg.NATS.Replicas,
			ConnectTimeout: cfg.NATS.ConnectTimeout,
			PollInterval:   cfg.NATS.PollInterval,
		}, opts...))
	case config.LockZookeeper:
		return granted(lzookeeper.NewLocker(&lzookeeper.Config{
			Servers:        cfg.Zookeeper.Servers,
			Root:           cfg.Zookeeper.Root,
			ConnectTimeout: cfg.Zookeeper.ConnectTimeout,
		}, opts...))
	default:
		return nil, fmt.Errorf("unsupported lock backend %q", cfg.Backend)
	}
}

// granted drops the typed nil a failed constructor returns
func granted[L lock.Locker](locker L, err error) (lock.Locker, error) {
	if err != nil {
		return nil, err
	}
	return locker, nil
}

// clientTLS loads the TLS client configuration of a backend, nil when cfg is nil
func clientTLS(cfg *config.TLS) (*tls.Config, error) {
	if cfg == nil {
		return nil, nil
	}
	conn, err := secureconn.LoadFiles(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS settings: %w", err)
	}
	return conn.WithServerName(cfg.ServerName).SecureClient(), nil
}

// newWatcher builds the membership watcher selected by the configuration
func newWatcher(cfg config.Membership, self *mesh.Node, logger log.Logger) (membership.Service, error) {
	opts := []membership.Option{membership.WithLogger(logger), membership.WithCheckPeriod(cfg.CheckPeriod)}

	switch cfg.Backend {
	case config.MembershipStatic:
		peers := make([]*mesh.Node, 0, len(cfg.Peers))
		for _, peer := range cfg.Peers {
			peers = append(peers, mesh.NewNode(mesh.NodeID(peer.ID), peer.Endpoint, mesh.WithMeta(peer.Meta)))
		}
		return membership.NewStatic(self, peers, opts...), nil
	case config.MembershipEtcd:
		tlsConfig, err := clientTLS(cfg.Etcd.TLS)
		if err != nil {
			return nil, err
		}
		return metcd.New(&metcd.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: cfg.Etcd.DialTimeout,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
			TLS:         tlsConfig,
			Prefix:      cfg.Etcd.Prefix,
			TTL:         cfg.Etcd.TTL,
		}, self, opts...), nil
	case config.MembershipMemberlist:
		var provider sd.Provider
		if cfg.Discovery != nil {
			var err error
			if provider, err = newProvider(cfg.Discovery, self); err != nil {
				return nil, err
			}
		}
		return memberlist.New(&memberlist.Config{
			BindAddr:          cfg.Memberlist.BindAddr,
			BindPort:          cfg.Memberlist.BindPort,
			AdvertiseAddr:     cfg.Memberlist.AdvertiseAddr,
			AdvertisePort:     cfg.Memberlist.AdvertisePort,
			Seeds:             cfg.Memberlist.Seeds,
			Provider:          provider,
			JoinTimeout:       cfg.Memberlist.JoinTimeout,
			JoinRetryInterval: cfg.Memberlist.JoinRetryInterval,
			LeaveTimeout:      cfg.Memberlist.LeaveTimeout,
		}, self, opts...), nil
	case config.MembershipZookeeper:
		return mzookeeper.New(&mzookeeper.Config{
			Servers:        cfg.Zookeeper.Servers,
			Root:           cfg.Zookeeper.Root,
			SessionTimeout: cfg.Zookeeper.SessionTimeout,
			ConnectTimeout: cfg.Zookeeper.ConnectTimeout,
		}, self, opts...), nil
	case config.MembershipDiscovery:
		provider, err := newProvider(cfg.Discovery, self)
		if err != nil {
			return nil, err
		}
		return mdiscovery.New(provider, self, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported membership backend %q", cfg.Backend)
	}
}

// newProvider builds the discovery provider selected by the configuration.
// Providers advertising this node use the host and port of its endpoint.
func newProvider(cfg *config.Discovery, self *mesh.Node) (sd.Provider, error) {
	_, portStr, err := net.SplitHostPort(self.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("invalid node endpoint %q: %w", self.Endpoint(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid node endpoint %q: %w", self.Endpoint(), err)
	}

	switch cfg.Provider {
	case sd.ProviderStatic:
		return static.NewDiscovery(&static.Config{Hosts: cfg.Hosts}), nil
	case sd.ProviderDNSSD:
		return dnssd.NewDiscovery(&dnssd.Config{
			DomainName: cfg.DNS.DomainName,
			Port:       cfg.DNS.Port,
			IPv6:       cfg.DNS.IPv6,
			Timeout:    cfg.DNS.Timeout,
		}, nil), nil
	case sd.ProviderConsul:
		return dconsul.NewDiscovery(&dconsul.Config{
			Address:     cfg.Consul.Address,
			Datacenter:  cfg.Consul.Datacenter,
			Token:       cfg.Consul.Token,
			Timeout:     cfg.Consul.Timeout,
			ServiceName: cfg.Consul.ServiceName,
			NodeID:      string(self.ID()),
			Endpoint:    self.Endpoint(),
			Meta:        self.Metadata(),
			OnlyPassing: cfg.Consul.OnlyPassing,
			AllowStale:  cfg.Consul.AllowStale,
		}), nil
	case sd.ProviderKubernetes:
		return kubernetes.NewDiscovery(&kubernetes.Config{
			Namespace: cfg.Kubernetes.Namespace,
			PodLabels: cfg.Kubernetes.PodLabels,
			PortName:  cfg.Kubernetes.PortName,
			Timeout:   cfg.Kubernetes.Timeout,
		}), nil
	case sd.ProviderMDNS:
		if cfg.MDNS.Port > 0 {
			port = cfg.MDNS.Port
		}
		return mdns.NewDiscovery(&mdns.Config{
			NodeID:        string(self.ID()),
			Meta:          self.Metadata(),
			Instance:      cfg.MDNS.Instance,
			Service:       cfg.MDNS.Service,
			Domain:        cfg.MDNS.Domain,
			Port:          port,
			IPv6:          cfg.MDNS.IPv6,
			BrowseTimeout: cfg.MDNS.BrowseTimeout,
		}), nil
	case sd.ProviderBroadcast:
		return broadcast.NewDiscovery(&broadcast.Config{
			ClusterName: cfg.Broadcast.ClusterName,
			SelfAddress: self.Endpoint(),
			Port:        cfg.Broadcast.Port,
			Interval:    cfg.Broadcast.Interval,
			Address:     net.ParseIP(cfg.Broadcast.Address),
			Interface:   cfg.Broadcast.Interface,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported discovery provider %q", cfg.Provider)
	}
}
