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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	gerrors "github.com/tochemey/shardmesh/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocker(t *testing.T) {
	t.Run("With exclusive grants", func(t *testing.T) {
		locker := NewLocker()
		ctx := t.Context()

		first, err := locker.Lock(ctx, "shard-worker/Backend/1", "a")
		require.NoError(t, err)
		assert.Equal(t, "shard-worker/Backend/1", first.Key())

		holder, ok := locker.Holder("shard-worker/Backend/1")
		require.True(t, ok)
		assert.Equal(t, "a", holder)

		timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(timeout, "shard-worker/Backend/1", "b")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		other, err := locker.Lock(ctx, "shard-worker/Backend/2", "b")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"shard-worker/Backend/1", "shard-worker/Backend/2"}, locker.Held())
		require.NoError(t, other.Release(ctx))
		require.NoError(t, first.Release(ctx))
		require.NoError(t, first.Release(ctx))
		assert.Empty(t, locker.Held())
		assert.EqualValues(t, 2, locker.Grants())
	})
	t.Run("With a waiter granted on release", func(t *testing.T) {
		locker := NewLocker()
		ctx := t.Context()

		first, err := locker.Lock(ctx, "k", "a")
		require.NoError(t, err)

		granted := make(chan error, 1)
		go func() {
			lease, err := locker.Lock(ctx, "k", "b")
			if err == nil {
				err = lease.Release(ctx)
			}
			granted <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, first.Release(ctx))
		select {
		case err := <-granted:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter was not granted")
		}

		select {
		case <-first.Lost():
			t.Fatal("release must not fire the loss signal")
		default:
		}
	})
	t.Run("With Revoke", func(t *testing.T) {
		locker := NewLocker()
		ctx := t.Context()

		lease, err := locker.Lock(ctx, "k", "a")
		require.NoError(t, err)
		assert.True(t, locker.Revoke("k"))
		assert.False(t, locker.Revoke("k"))

		select {
		case <-lease.Lost():
		case <-time.After(time.Second):
			t.Fatal("loss signal not fired")
		}

		next, err := locker.Lock(ctx, "k", "b")
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))

		holder, ok := locker.Holder("k")
		require.True(t, ok)
		assert.Equal(t, "b", holder)
		require.NoError(t, next.Release(ctx))
	})
	t.Run("With Close", func(t *testing.T) {
		locker := NewLocker()
		ctx := t.Context()

		lease, err := locker.Lock(ctx, "k", "a")
		require.NoError(t, err)

		waiting := make(chan error, 1)
		go func() {
			_, err := locker.Lock(ctx, "k", "b")
			waiting <- err
		}()
		time.Sleep(20 * time.Millisecond)

		require.NoError(t, locker.Close(ctx))
		require.NoError(t, locker.Close(ctx))
		<-lease.Lost()

		select {
		case err := <-waiting:
			require.ErrorIs(t, err, gerrors.ErrLockerClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not woken on close")
		}

		_, err = locker.Lock(ctx, "other", "a")
		require.ErrorIs(t, err, gerrors.ErrLockerClosed)
	})
}
