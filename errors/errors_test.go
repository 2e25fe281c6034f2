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

package errors

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatID string

func TestErrors(t *testing.T) {
	err := errors.New("something went wrong")
	internalErr := NewInternalError(err)
	require.Error(t, internalErr)
	require.EqualError(t, internalErr, "internal error: something went wrong")
	assert.ErrorIs(t, internalErr.Unwrap(), err)

	panicErr := NewPanicError(err)
	require.EqualError(t, panicErr, "panic: something went wrong")
	assert.ErrorIs(t, panicErr, err)

	require.EqualError(t, NewErrUndefinedScheme("Backend"), "scheme=(Backend) shard scheme is not defined")
	assert.ErrorIs(t, NewErrNodeNotFound("a"), ErrNodeNotFound)
	assert.ErrorIs(t, NewErrInvalidScheme("none"), ErrInvalidScheme)
}

func TestResolverNotFoundError(t *testing.T) {
	t.Run("With a concrete type", func(t *testing.T) {
		err := NewResolverNotFoundError(reflect.TypeFor[chatID]())
		require.EqualError(t, err, "resolver not found for type errors.chatID")
		assert.ErrorIs(t, err, ErrResolverNotFound)
	})
	t.Run("With a wrapped error", func(t *testing.T) {
		err := fmt.Errorf("routing: %w", NewResolverNotFoundError(reflect.TypeFor[int]()))
		var target *ResolverNotFoundError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, reflect.TypeFor[int](), target.Type)
	})
	t.Run("With a nil type", func(t *testing.T) {
		err := NewResolverNotFoundError(nil)
		require.EqualError(t, err, "resolver not found for type <nil>")
	})
}
