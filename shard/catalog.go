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
	"slices"
	"strings"

	gerrors "github.com/tochemey/shardmesh/errors"
)

// Catalog is the immutable set of schemes known to a process.
// It is built once by the composition root and shared by reference.
type Catalog struct {
	schemes map[string]Scheme
	ordered []Scheme
}

// NewCatalog creates a Catalog. Every scheme must be valid and ids must be unique.
func NewCatalog(schemes ...Scheme) (*Catalog, error) {
	catalog := &Catalog{
		schemes: make(map[string]Scheme, len(schemes)),
		ordered: make([]Scheme, 0, len(schemes)),
	}

	for _, scheme := range schemes {
		if err := scheme.RequireValid(); err != nil {
			return nil, err
		}
		if _, ok := catalog.schemes[scheme.ID()]; ok {
			return nil, fmt.Errorf("scheme=(%s) %w", scheme.ID(), gerrors.ErrDuplicateScheme)
		}
		catalog.schemes[scheme.ID()] = scheme
		catalog.ordered = append(catalog.ordered, scheme)
	}

	slices.SortFunc(catalog.ordered, func(a, b Scheme) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return catalog, nil
}

// Get returns the scheme registered under id.
// The sentinel ids resolve to their sentinel schemes.
func (c *Catalog) Get(id string) (Scheme, bool) {
	switch id {
	case noneID:
		return None, true
	case undefinedID:
		return Undefined, true
	}
	scheme, ok := c.schemes[id]
	return scheme, ok
}

// Lookup is like Get but returns ErrUndefinedScheme on miss
func (c *Catalog) Lookup(id string) (Scheme, error) {
	scheme, ok := c.Get(id)
	if !ok {
		return Scheme{}, gerrors.NewErrUndefinedScheme(id)
	}
	return scheme, nil
}

// MustGet is like Lookup but panics on miss
func (c *Catalog) MustGet(id string) Scheme {
	scheme, err := c.Lookup(id)
	if err != nil {
		panic(err)
	}
	return scheme
}

// Schemes returns the concrete schemes sorted by id
func (c *Catalog) Schemes() []Scheme {
	return slices.Clone(c.ordered)
}

// Len returns the number of concrete schemes
func (c *Catalog) Len() int {
	return len(c.ordered)
}
