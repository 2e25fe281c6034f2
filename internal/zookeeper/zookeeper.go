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

// Package zookeeper holds the connection helpers shared by the ZooKeeper lock and membership backends.
package zookeeper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/tochemey/shardmesh/log"
)

// ACL is the access list of every node created by shardmesh
var ACL = zk.WorldACL(zk.PermAll)

// Connect opens a session on servers and waits until it is established
func Connect(servers []string, sessionTimeout, connectTimeout time.Duration, logger log.Logger) (*zk.Conn, <-chan zk.Event, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(printer{logger}))
	if err != nil {
		return nil, nil, fmt.Errorf("zk connect: %w", err)
	}

	deadline := time.NewTimer(connectTimeout)
	defer deadline.Stop()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil, nil, errors.New("zk: connection closed")
			}
			if event.State == zk.StateHasSession {
				return conn, events, nil
			}
		case <-deadline.C:
			state := conn.State()
			conn.Close()
			return nil, nil, fmt.Errorf("zk: no session after %s, state=%v", connectTimeout, state)
		}
	}
}

// EnsurePath creates every missing node of path
func EnsurePath(conn *zk.Conn, path string) error {
	current := ""
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		current += "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := conn.Create(current, nil, 0, ACL); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}

// Sequence returns the sequence number ZooKeeper appends to sequential nodes
func Sequence(name string) (int, error) {
	cut := strings.LastIndex(name, "-")
	if cut < 0 {
		return 0, fmt.Errorf("zk: %q is not a sequential node", name)
	}
	return strconv.Atoi(name[cut+1:])
}

type printer struct {
	logger log.Logger
}

func (p printer) Printf(format string, args ...any) {
	p.logger.Debugf(format, args...)
}
