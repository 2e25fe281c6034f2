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

package resolver

import (
	"math/rand/v2"
	"reflect"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
)

// Handler resolves a value to R under a given scheme.
// The value passed to a handler is never nil, except for the null handler.
// Handlers must be pure: the same value and scheme always give the same result.
type Handler[R any] func(value any, scheme shard.Scheme) (R, error)

// KeySource is implemented by domain types whose shard key is another value,
// for instance a composite id that shards by its tenant.
// The returned key is resolved again through the registry.
type KeySource interface {
	ShardKey() any
}

// Always returns a handler resolving every value to key
func Always(key int) Handler[int] {
	return func(any, shard.Scheme) (int, error) {
		return key, nil
	}
}

// Shard0 resolves every value to the first shard.
// It is the default null handler.
var Shard0 = Always(0)

// Random resolves every value to a random shard of the scheme.
// It is only suitable for keys that carry no affinity.
func Random(_ any, scheme shard.Scheme) (int, error) {
	if err := scheme.RequireValid(); err != nil {
		return 0, err
	}
	return rand.IntN(scheme.ShardCount()), nil //nolint:gosec
}

// NotFound returns a handler that always fails with a ResolverNotFoundError.
// Registering it shadows a resolver that would otherwise be derived.
func NotFound[R any]() Handler[R] {
	return func(value any, _ shard.Scheme) (R, error) {
		var zero R
		return zero, gerrors.NewResolverNotFoundError(reflect.TypeOf(value))
	}
}

// FromIndex lifts an index handler into a ref handler
func FromIndex(handler Handler[int]) Handler[mesh.Ref] {
	return func(value any, scheme shard.Scheme) (mesh.Ref, error) {
		key, err := handler(value, scheme)
		if err != nil {
			return mesh.NoRef, err
		}
		return mesh.ShardRef(scheme, key), nil
	}
}

// FromIndexFunc lifts a typed index resolver into a typed ref resolver, ready for Register
func FromIndexFunc[T any](fn func(value T, scheme shard.Scheme) (int, error)) func(T, shard.Scheme) (mesh.Ref, error) {
	return func(value T, scheme shard.Scheme) (mesh.Ref, error) {
		key, err := fn(value, scheme)
		if err != nil {
			return mesh.NoRef, err
		}
		return mesh.ShardRef(scheme, key), nil
	}
}
