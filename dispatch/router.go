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

package dispatch

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/log"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
)

// Resolver turns a shard key into a mesh ref.
// Both resolver.IndexRegistry and resolver.RefRegistry implement it.
type Resolver interface {
	ResolveRef(value any, scheme shard.Scheme) (mesh.Ref, error)
}

// Router routes remote calls to the mesh ref owning their shard key.
//
// The key extractor of a method is built once, by the first provider handling
// the method, and memoized by method full name. Providers registered with
// WithProvider are consulted in registration order before the default one,
// which reads the first argument that is not a context.Context.
// A Router is safe for concurrent use.
type Router struct {
	resolver   Resolver
	providers  []Provider
	extractors *xsync.Map[string, KeyExtractor]
	group      singleflight.Group
	logger     log.Logger
}

// RouterOption configures a Router
type RouterOption interface {
	Apply(*Router)
}

var _ RouterOption = RouterOptionFunc(nil)

// RouterOptionFunc implements the RouterOption interface.
type RouterOptionFunc func(*Router)

// Apply applies the option
func (f RouterOptionFunc) Apply(r *Router) {
	f(r)
}

// WithProvider adds a key extractor provider
func WithProvider(provider Provider) RouterOption {
	return RouterOptionFunc(func(r *Router) {
		r.providers = append(r.providers, provider)
	})
}

// WithExtractor overrides the key extractor of the method with the given full name
func WithExtractor(fullName string, extractor KeyExtractor) RouterOption {
	return WithProvider(ForMethod(fullName, extractor))
}

// WithRouterLogger sets the logger
func WithRouterLogger(logger log.Logger) RouterOption {
	return RouterOptionFunc(func(r *Router) {
		r.logger = logger
	})
}

// NewRouter creates a Router resolving shard keys with resolver
func NewRouter(resolver Resolver, opts ...RouterOption) *Router {
	router := &Router{
		resolver:   resolver,
		extractors: xsync.NewMap[string, KeyExtractor](),
		logger:     log.DefaultLogger,
	}
	for _, opt := range opts {
		opt.Apply(router)
	}
	router.providers = append(router.providers, defaultProvider{})
	return router
}

// Extractor returns the memoized key extractor of method
func (r *Router) Extractor(method *Method) (KeyExtractor, error) {
	if err := method.validate(); err != nil {
		return nil, err
	}

	name := method.FullName()
	if extractor, ok := r.extractors.Get(name); ok {
		return extractor, nil
	}

	result, _, _ := r.group.Do(name, func() (any, error) {
		if extractor, ok := r.extractors.Get(name); ok {
			return extractor, nil
		}
		for _, provider := range r.providers {
			if extractor, ok := provider.Extractor(method); ok && extractor != nil {
				r.extractors.Set(name, extractor)
				r.logger.Debugf("key extractor of %s built", name)
				return extractor, nil
			}
		}
		return nil, nil
	})
	return result.(KeyExtractor), nil
}

// Key returns the shard key of a call
func (r *Router) Key(method *Method, args []any) (any, error) {
	extractor, err := r.Extractor(method)
	if err != nil {
		return nil, err
	}
	return extractor(args)
}

// Route returns the normalized mesh ref handling a call of method with args under scheme
func (r *Router) Route(method *Method, args []any, scheme shard.Scheme) (mesh.Ref, error) {
	key, err := r.Key(method, args)
	if err != nil {
		return mesh.NoRef, err
	}

	ref, err := r.resolver.ResolveRef(key, scheme)
	if err != nil {
		return mesh.NoRef, fmt.Errorf("failed to route %s: %w", method.FullName(), err)
	}

	ref, err = ref.WithSchemeIfUndefined(scheme).RequireValid()
	if err != nil {
		return mesh.NoRef, fmt.Errorf("failed to route %s: %w", method.FullName(), err)
	}
	return ref.Normalize(), nil
}

// Target routes a call and binds the resulting ref against state from the point of view of self
func (r *Router) Target(method *Method, args []any, scheme shard.Scheme, state *mesh.State, self *mesh.Node) (mesh.Target, error) {
	ref, err := r.Route(method, args, scheme)
	if err != nil {
		return mesh.Target{}, err
	}
	return mesh.Resolve(ref, state, self)
}

// Forget drops the memoized extractor of the method with the given full name
func (r *Router) Forget(fullName string) {
	r.extractors.Delete(fullName)
}
