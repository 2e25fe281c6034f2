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

package zookeeper

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/lock"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/shard"
)

func TestLocker(t *testing.T) {
	server := startZookeeper(t)
	key := lock.Key("", shard.MustScheme("Backend", 10), 4)

	newLocker := func(t *testing.T) *Locker {
		t.Helper()
		locker, err := NewLocker(&Config{Servers: []string{server}},
			lock.WithLogger(log.DiscardLogger),
			lock.WithTTL(4*time.Second))
		require.NoError(t, err)
		t.Cleanup(func() { _ = locker.Close(context.Background()) })
		return locker
	}

	t.Run("With an invalid config", func(t *testing.T) {
		_, err := NewLocker(&Config{})
		require.Error(t, err)
	})
	t.Run("With exclusive grants", func(t *testing.T) {
		ctx := t.Context()
		first := newLocker(t)
		second := newLocker(t)

		granted, err := first.Lock(ctx, key, "node-a")
		require.NoError(t, err)
		assert.Equal(t, key, granted.Key())

		data, _, err := first.conn.Get(granted.(*lease).node)
		require.NoError(t, err)
		assert.Equal(t, "node-a", string(data))

		timeout, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_, err = second.Lock(timeout, key, "node-b")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// the abandoned contender leaves no node behind
		children, _, err := first.conn.Children(path.Join(first.config.Root, key))
		require.NoError(t, err)
		assert.Len(t, children, 1)

		waiting := make(chan error, 1)
		go func() {
			next, err := second.Lock(ctx, key, "node-b")
			if err == nil {
				err = next.Release(ctx)
			}
			waiting <- err
		}()

		time.Sleep(100 * time.Millisecond)
		require.NoError(t, granted.Release(ctx))
		require.NoError(t, granted.Release(ctx))

		select {
		case err := <-waiting:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter was not granted")
		}
	})
	t.Run("With a deleted node", func(t *testing.T) {
		ctx := t.Context()
		locker := newLocker(t)
		other := newLocker(t)

		granted, err := locker.Lock(ctx, key, "node-a")
		require.NoError(t, err)
		require.NoError(t, other.conn.Delete(granted.(*lease).node, -1))

		select {
		case <-granted.Lost():
		case <-time.After(5 * time.Second):
			t.Fatal("lease loss not reported")
		}
		require.NoError(t, granted.Release(ctx))

		next, err := other.Lock(ctx, key, "node-b")
		require.NoError(t, err)
		require.NoError(t, next.Release(ctx))
	})
	t.Run("With Close", func(t *testing.T) {
		ctx := t.Context()
		locker := newLocker(t)

		_, err := locker.Lock(ctx, key, "node-a")
		require.NoError(t, err)
		require.NoError(t, locker.Close(ctx))
		require.NoError(t, locker.Close(ctx))

		_, err = locker.Lock(ctx, key, "node-a")
		require.ErrorIs(t, err, gerrors.ErrLockerClosed)

		other := newLocker(t)
		next, err := other.Lock(ctx, key, "node-b")
		require.NoError(t, err)
		require.NoError(t, next.Release(ctx))
	})
}

func startZookeeper(t *testing.T) string {
	t.Helper()
	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "zookeeper:3.9",
			ExposedPorts: []string{"2181/tcp"},
			WaitingFor:   wait.ForListeningPort("2181/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.PortEndpoint(ctx, "2181/tcp", "")
	require.NoError(t, err)
	return endpoint
}
