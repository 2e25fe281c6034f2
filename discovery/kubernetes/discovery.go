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

// Package kubernetes discovers the ready pods of a mesh through the API server.
package kubernetes

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/tochemey/shardmesh/discovery"
)

// Member metadata keys
const (
	MetaNamespace = "k8s_namespace"
	MetaHost      = "k8s_node"
)

// Discovery lists the pods matching the configured labels. Every ready pod
// is a member identified by its name, so mesh nodes should use their pod
// name as node id.
type Discovery struct {
	discovery.Lifecycle
	config *Config
	client kubernetes.Interface
}

var _ discovery.Directory = (*Discovery)(nil)

// Option configures a Discovery
type Option func(*Discovery)

// WithClient replaces the in-cluster client
func WithClient(client kubernetes.Interface) Option {
	return func(d *Discovery) { d.client = client }
}

// NewDiscovery creates a Discovery
func NewDiscovery(config *Config, opts ...Option) *Discovery {
	if config == nil {
		config = new(Config)
	}
	d := &Discovery{config: config}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the discovery provider id
func (d *Discovery) ID() string {
	return discovery.ProviderKubernetes
}

// Initialize validates the configuration and builds the in-cluster client
// unless one was given
func (d *Discovery) Initialize() error {
	return d.Lifecycle.Initialize(func() error {
		d.config.Sanitize()
		if err := d.config.Validate(); err != nil {
			return fmt.Errorf("invalid kubernetes discovery config: %w", err)
		}
		if d.client != nil {
			return nil
		}

		restConfig, err := rest.InClusterConfig()
		if err != nil {
			return fmt.Errorf("failed to load the in-cluster config: %w", err)
		}
		client, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return fmt.Errorf("failed to create the kubernetes client: %w", err)
		}
		d.client = client
		return nil
	})
}

// DiscoverMembers returns the ready pods exposing the mesh port, sorted by name
func (d *Discovery) DiscoverMembers() ([]discovery.Member, error) {
	if err := d.Ready(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	pods, err := d.client.CoreV1().Pods(d.config.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(d.config.PodLabels).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", d.config.Namespace, err)
	}

	members := make([]discovery.Member, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		if !isReady(pod) {
			continue
		}
		port, ok := containerPort(pod, d.config.PortName)
		if !ok {
			continue
		}
		members = append(members, discovery.Member{
			ID:       pod.Name,
			Endpoint: net.JoinHostPort(pod.Status.PodIP, strconv.Itoa(int(port))),
			Meta: map[string]string{
				MetaNamespace: pod.Namespace,
				MetaHost:      pod.Spec.NodeName,
			},
		})
	}

	slices.SortFunc(members, func(a, b discovery.Member) int {
		return strings.Compare(a.ID, b.ID)
	})
	return members, nil
}

// DiscoverPeers returns the endpoints of the ready pods
func (d *Discovery) DiscoverPeers() ([]string, error) {
	members, err := d.DiscoverMembers()
	if err != nil {
		return nil, err
	}
	peers := make([]string, len(members))
	for i, member := range members {
		peers[i] = member.Endpoint
	}
	return peers, nil
}

func containerPort(pod *corev1.Pod, name string) (int32, bool) {
	for _, container := range pod.Spec.Containers {
		for _, port := range container.Ports {
			if port.Name == name {
				return port.ContainerPort, true
			}
		}
	}
	return 0, false
}

// isReady accepts running pods with an ip whose ready condition, when present, is true
func isReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning || pod.DeletionTimestamp != nil || pod.Status.PodIP == "" {
		return false
	}
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return true
}
