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

package shard

import (
	"fmt"

	gerrors "github.com/tochemey/shardmesh/errors"
)

const (
	noneID      = "none"
	undefinedID = "undefined"
)

var (
	// None is the sentinel scheme used where no sharding applies
	None = Scheme{id: noneID}
	// Undefined is the sentinel scheme of a ref built before its scheme is known.
	// See Ref.WithSchemeIfUndefined.
	Undefined = Scheme{id: undefinedID}
)

// Scheme is a named shard space with a fixed shard count.
// Schemes are immutable values and compare by id and count.
type Scheme struct {
	id         string
	shardCount int
}

// NewScheme creates a Scheme. The id must not be empty nor one of the
// sentinel ids and the shard count must be positive.
func NewScheme(id string, shardCount int) (Scheme, error) {
	switch {
	case id == "" || id == noneID || id == undefinedID:
		return Scheme{}, fmt.Errorf("%w: reserved or empty id %q", gerrors.ErrInvalidScheme, id)
	case shardCount <= 0:
		return Scheme{}, fmt.Errorf("%w: scheme %q shard count must be positive, got %d", gerrors.ErrInvalidScheme, id, shardCount)
	}
	return Scheme{id: id, shardCount: shardCount}, nil
}

// MustScheme is like NewScheme but panics on error.
// It is meant for package-level scheme declarations.
func MustScheme(id string, shardCount int) Scheme {
	scheme, err := NewScheme(id, shardCount)
	if err != nil {
		panic(err)
	}
	return scheme
}

// ID returns the scheme id
func (s Scheme) ID() string {
	return s.id
}

// ShardCount returns the number of shards of the scheme
func (s Scheme) ShardCount() int {
	return s.shardCount
}

// IsNone reports whether s is the None sentinel
func (s Scheme) IsNone() bool {
	return s.id == noneID || s.id == ""
}

// IsUndefined reports whether s is the Undefined sentinel
func (s Scheme) IsUndefined() bool {
	return s.id == undefinedID
}

// IsValid reports whether s is a concrete scheme with shards
func (s Scheme) IsValid() bool {
	return !s.IsNone() && !s.IsUndefined() && s.shardCount > 0
}

// RequireValid returns a validation error when s is a sentinel
func (s Scheme) RequireValid() error {
	if !s.IsValid() {
		return gerrors.NewErrInvalidScheme(s.String())
	}
	return nil
}

// Index maps any integer key into [0, ShardCount).
// Negative keys wrap around: Index(-1) on a 10-shard scheme is 9.
// It returns 0 for sentinel schemes.
func (s Scheme) Index(key int) int {
	n := s.shardCount
	if n <= 0 {
		return 0
	}
	return ((key % n) + n) % n
}

// String returns the scheme id
func (s Scheme) String() string {
	if s.id == "" {
		return noneID
	}
	return s.id
}
