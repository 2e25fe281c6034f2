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

package redis

import (
	"context"
	"strings"
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
	addr := startRedis(t)
	key := lock.Key("", shard.MustScheme("Backend", 10), 6)

	newLocker := func(t *testing.T) *Locker {
		t.Helper()
		locker, err := NewLocker(t.Context(), &Config{Addr: addr, PollInterval: 100 * time.Millisecond},
			lock.WithLogger(log.DiscardLogger),
			lock.WithTTL(900*time.Millisecond))
		require.NoError(t, err)
		t.Cleanup(func() { _ = locker.Close(context.Background()) })
		return locker
	}

	t.Run("With an invalid config", func(t *testing.T) {
		_, err := NewLocker(t.Context(), &Config{Addr: "redis"})
		require.Error(t, err)
	})
	t.Run("With exclusive grants", func(t *testing.T) {
		ctx := t.Context()
		first := newLocker(t)
		second := newLocker(t)

		granted, err := first.Lock(ctx, key, "node-a")
		require.NoError(t, err)
		assert.Equal(t, key, granted.Key())

		value, err := first.client.Get(ctx, key).Result()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(value, "node-a/"))

		// the lease outlives its TTL while renewed
		timeout, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err = second.Lock(timeout, key, "node-b")
		require.ErrorIs(t, err, context.DeadlineExceeded)

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
	t.Run("With a stolen key", func(t *testing.T) {
		ctx := t.Context()
		locker := newLocker(t)

		granted, err := locker.Lock(ctx, key, "node-a")
		require.NoError(t, err)
		require.NoError(t, locker.client.Set(ctx, key, "intruder", 0).Err())

		select {
		case <-granted.Lost():
		case <-time.After(5 * time.Second):
			t.Fatal("lease loss not reported")
		}
		require.NoError(t, granted.Release(ctx))

		value, err := locker.client.Get(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, "intruder", value)
		require.NoError(t, locker.client.Del(ctx, key).Err())
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

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(container))
	})

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	return endpoint
}
