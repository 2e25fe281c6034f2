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

// Package tcp resolves the address gossip based membership advertises.
package tcp

import (
	"errors"
	"fmt"
	"net"

	"github.com/hashicorp/go-sockaddr"
)

// AdvertiseIP returns the ip peers should dial to reach a process bound to host.
// A concrete host is resolved as is. A wildcard or empty host is replaced by
// a private interface address, or a public one when the machine has none.
func AdvertiseIP(host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() {
		return ip.String(), nil
	}

	if host != "" && net.ParseIP(host) == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return "", fmt.Errorf("failed to resolve bind host %q: %w", host, err)
		}
		if len(ips) == 0 {
			return "", fmt.Errorf("bind host %q resolves to no address", host)
		}
		return ips[0].String(), nil
	}

	address, err := interfaceIP()
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(address)
	if ip == nil {
		return "", fmt.Errorf("interface address %q is not an ip", address)
	}
	return ip.String(), nil
}

func interfaceIP() (string, error) {
	private, err := sockaddr.GetPrivateIP()
	if err != nil {
		return "", fmt.Errorf("failed to list private interface addresses: %w", err)
	}
	if private != "" {
		return private, nil
	}

	public, err := sockaddr.GetPublicIP()
	if err != nil {
		return "", fmt.Errorf("failed to list public interface addresses: %w", err)
	}
	if public == "" {
		return "", errors.New("no interface address to advertise, set an explicit bind address")
	}
	return public, nil
}
