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
)

// Ref names the shard owning integer Key under Scheme.
// A normalized ref carries the shard index itself as its key.
type Ref struct {
	Scheme Scheme
	Key    int
}

// NewRef creates a Ref
func NewRef(scheme Scheme, key int) Ref {
	return Ref{Scheme: scheme, Key: key}
}

// Index returns the shard index of the ref
func (r Ref) Index() int {
	return r.Scheme.Index(r.Key)
}

// Normalize returns a ref whose key is its own shard index. It is idempotent.
func (r Ref) Normalize() Ref {
	return Ref{Scheme: r.Scheme, Key: r.Index()}
}

// IsNormalized reports whether the key already is a shard index
func (r Ref) IsNormalized() bool {
	return r.Key >= 0 && r.Key < r.Scheme.ShardCount()
}

// WithSchemeIfUndefined binds a ref built against Undefined to scheme.
// A ref already bound to a concrete scheme is returned unchanged.
func (r Ref) WithSchemeIfUndefined(scheme Scheme) Ref {
	if !r.Scheme.IsUndefined() {
		return r
	}
	return Ref{Scheme: scheme, Key: r.Key}
}

// RequireValid returns the ref when its scheme is concrete
func (r Ref) RequireValid() (Ref, error) {
	if err := r.Scheme.RequireValid(); err != nil {
		return Ref{}, err
	}
	return r, nil
}

// IsNone reports whether the ref points nowhere
func (r Ref) IsNone() bool {
	return r.Scheme.IsNone()
}

// String returns "<scheme>/<index>" for bound refs and "<scheme>:<key>" otherwise
func (r Ref) String() string {
	if r.Scheme.IsValid() {
		return fmt.Sprintf("%s/%d", r.Scheme, r.Index())
	}
	return fmt.Sprintf("%s:%d", r.Scheme, r.Key)
}
