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

package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	limit := 5 * time.Second

	assert.Equal(t, base, backoffDelay(base, limit, 1))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, limit, 2))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, limit, 3))
	assert.Equal(t, limit, backoffDelay(base, limit, 7))
	assert.Equal(t, limit, backoffDelay(base, limit, 1000))

	previous := time.Duration(0)
	for failures := 1; failures < 64; failures++ {
		delay := backoffDelay(base, limit, failures)
		assert.GreaterOrEqual(t, delay, previous)
		assert.LessOrEqual(t, delay, limit)
		previous = delay
	}
}

func TestJitterDuration(t *testing.T) {
	base := 50 * time.Millisecond
	for range 1000 {
		delay := jitterDuration(base, DefaultJitter)
		assert.GreaterOrEqual(t, delay, base*3/4)
		assert.LessOrEqual(t, delay, base*5/4)
	}
	assert.Equal(t, base, jitterDuration(base, 0))
	assert.Equal(t, time.Duration(0), jitterDuration(0, DefaultJitter))
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(t.Context(), time.Millisecond))
	assert.True(t, sleep(t.Context(), 0))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.False(t, sleep(ctx, 0))
}
