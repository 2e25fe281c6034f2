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

// Package discovery defines peer discovery providers.
//
// A provider registers the local node in some directory and lists the
// addresses of its peers. Providers whose directory also stores the node id
// and metadata implement Directory, so peers keep their configured identity.
// The discovery membership watcher polls a provider and turns its answer
// into mesh states.
package discovery

const (
	ProviderStatic     = "static"
	ProviderDNSSD      = "dns-sd"
	ProviderConsul     = "consul"
	ProviderKubernetes = "kubernetes"
	ProviderMDNS       = "mdns"
	ProviderBroadcast  = "broadcast"
)

// Provider discovers the peers of the local node
type Provider interface {
	// ID returns the discovery name
	ID() string
	// Initialize creates the clients the provider needs
	Initialize() error
	// Register advertises the local node
	Register() error
	// Deregister withdraws the local node
	Deregister() error
	// DiscoverPeers returns the addresses, as host:port, of the known peers.
	// The address of the local node may or may not be part of the result.
	DiscoverPeers() ([]string, error)
	// Close releases the provider resources
	Close() error
}

// Member is a peer as recorded by a Directory
type Member struct {
	ID       string
	Endpoint string
	Meta     map[string]string
}

// Directory is a Provider that records node identities
type Directory interface {
	Provider
	// DiscoverMembers returns the registered peers. The local node may or
	// may not be part of the result.
	DiscoverMembers() ([]Member, error)
}
