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

package broadcast

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/net/ipv4"

	"github.com/tochemey/shardmesh/internal/xsync"
)

const (
	protocolVersion = "shardmesh-v1"
	protocolSep     = "|"
	maxPacketSize   = 512
	readTimeout     = 100 * time.Millisecond
)

var (
	protocolVersionBytes = []byte(protocolVersion)
	protocolSepBytes     = []byte(protocolSep)
)

// announcer sends this node announcement and records the announcements of others.
// Packets are "<version>|<cluster>|<host:port>".
type announcer struct {
	config  *Config
	cluster []byte
	packet  []byte
	conn    *net.UDPConn
	target  *net.UDPAddr

	// address -> last seen, unix nano
	peers   *xsync.Map[string, *atomic.Int64]
	stopped *atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAnnouncer(config *Config) *announcer {
	return &announcer{
		config:  config,
		cluster: []byte(config.ClusterName),
		packet:  encodePacket(config.ClusterName, config.SelfAddress),
		peers:   xsync.NewMap[string, *atomic.Int64](),
		stopped: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
}

// start binds the announcement port and begins sending and receiving.
// The same socket sends and receives.
func (a *announcer) start() error {
	conn, err := listenUDP(&net.UDPAddr{IP: net.IPv4zero, Port: a.config.Port})
	if err != nil {
		return fmt.Errorf("failed to bind announcement port %d: %w", a.config.Port, err)
	}

	if a.config.multicast() {
		err = joinGroup(conn, a.config.Address, a.config.Interface)
	} else {
		err = enableBroadcast(conn)
	}
	if err != nil {
		_ = conn.Close()
		return err
	}

	a.conn = conn
	a.target = &net.UDPAddr{IP: a.config.Address, Port: a.config.Port}

	a.wg.Add(2)
	go a.sendLoop()
	go a.recvLoop()
	return nil
}

// stop closes the connection and waits for the loops to exit
func (a *announcer) stop() {
	if !a.stopped.CompareAndSwap(false, true) {
		return
	}
	close(a.done)
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.wg.Wait()
}

// livePeers returns the addresses heard from within the expiry window, excluding self
func (a *announcer) livePeers() []string {
	expiry := time.Now().Add(-a.config.peerExpiry()).UnixNano()
	out := make([]string, 0, a.peers.Len())
	a.peers.Range(func(address string, lastSeen *atomic.Int64) {
		if address != a.config.SelfAddress && lastSeen.Load() > expiry {
			out = append(out, address)
		}
	})
	return out
}

func (a *announcer) sendLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	// announce right away so peers do not wait a full interval
	_, _ = a.conn.WriteToUDP(a.packet, a.target)
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			_, _ = a.conn.WriteToUDP(a.packet, a.target)
		}
	}
}

func (a *announcer) recvLoop() {
	defer a.wg.Done()
	buf := make([]byte, maxPacketSize)
	for {
		select {
		case <-a.done:
			return
		default:
		}

		_ = a.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, _, err := a.conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if a.stopped.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		a.handlePacket(buf[:n])
	}
}

func (a *announcer) handlePacket(data []byte) {
	parts := bytes.SplitN(data, protocolSepBytes, 3)
	if len(parts) != 3 || !bytes.Equal(parts[0], protocolVersionBytes) || !bytes.Equal(parts[1], a.cluster) {
		return
	}

	address := string(bytes.TrimSpace(parts[2]))
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return
	}

	now := time.Now().UnixNano()
	if lastSeen, ok := a.peers.Get(address); ok {
		lastSeen.Store(now)
		return
	}
	a.peers.Set(address, atomic.NewInt64(now))
}

func encodePacket(cluster, address string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(protocolVersion) + len(cluster) + len(address) + 2)
	buf.WriteString(protocolVersion)
	buf.WriteString(protocolSep)
	buf.WriteString(cluster)
	buf.WriteString(protocolSep)
	buf.WriteString(address)
	return buf.Bytes()
}

// joinGroup subscribes conn to a multicast group and loops our own packets back
func joinGroup(conn *net.UDPConn, group net.IP, name string) error {
	var ifi *net.Interface
	if name != "" {
		found, err := net.InterfaceByName(name)
		if err != nil {
			return fmt.Errorf("unknown interface %s: %w", name, err)
		}
		ifi = found
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.JoinGroup(ifi, &net.UDPAddr{IP: group}); err != nil {
		return fmt.Errorf("failed to join multicast group %s: %w", group, err)
	}
	return pconn.SetMulticastLoopback(true)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
