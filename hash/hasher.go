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

// Package hash turns arbitrary routing keys into shard keys.
package hash

import "github.com/zeebo/xxh3"

// Hasher produces a 64-bit hash of a key
type Hasher interface {
	HashCode(key []byte) uint64
}

// HasherFunc adapts a function into a Hasher
type HasherFunc func(key []byte) uint64

// HashCode calls f
func (f HasherFunc) HashCode(key []byte) uint64 {
	return f(key)
}

// DefaultHasher returns the XXH3 hasher. Its output is stable across
// processes and platforms, which shard keys depend on.
func DefaultHasher() Hasher {
	return HasherFunc(xxh3.Hash)
}

// Fold reduces a 64-bit hash to a 32-bit signed shard key.
// The result does not depend on the platform int size.
func Fold(h uint64) int {
	return int(int32(uint32(h ^ (h >> 32))))
}

// StringKey hashes s into a shard key with hasher
func StringKey(hasher Hasher, s string) int {
	return Fold(hasher.HashCode([]byte(s)))
}
