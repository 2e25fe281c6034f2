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
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"

	gerrors "github.com/tochemey/shardmesh/errors"
	"github.com/tochemey/shardmesh/internal/xsync"
	"github.com/tochemey/shardmesh/mesh"
	"github.com/tochemey/shardmesh/shard"
)

var keySourceType = reflect.TypeFor[KeySource]()

// maxKeySourceDepth bounds the ShardKey hops of a single resolution
const maxKeySourceDepth = 16

// scalarTypes maps a scalar kind to its predeclared type.
// A named type of that kind falls back to the predeclared type handler.
var scalarTypes = map[reflect.Kind]reflect.Type{
	reflect.String:  reflect.TypeFor[string](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
}

type matcher[R any] struct {
	iface   reflect.Type
	handler Handler[R]
}

type resolved[R any] struct {
	typ     reflect.Type
	handler Handler[R]
}

// Registry maps value types to handlers producing R.
//
// Lookup for a value type walks, in order:
//   - the handler registered for the exact type
//   - handlers registered for interfaces the type implements, in registration order
//   - the KeySource capability, resolving the returned key again
//   - for a pointer type, the handler of the pointed type; a nil pointer resolves as nil
//   - for a named scalar type, the handler of its predeclared type
//
// The walk runs once per type; its result is cached until the next registration.
// A Registry is safe for concurrent use.
type Registry[R any] struct {
	mu       sync.RWMutex
	exact    map[reflect.Type]Handler[R]
	matchers []matcher[R]
	null     Handler[R]
	version  uint64

	lift  func(R, shard.Scheme) mesh.Ref
	cache *xsync.Map[reflect.Type, Handler[R]]
	group singleflight.Group
}

// New creates an empty Registry. lift turns a resolved R into a mesh ref.
func New[R any](lift func(R, shard.Scheme) mesh.Ref, opts ...Option[R]) *Registry[R] {
	registry := &Registry[R]{
		exact: make(map[reflect.Type]Handler[R]),
		lift:  lift,
		cache: xsync.NewMap[reflect.Type, Handler[R]](),
	}
	for _, opt := range opts {
		opt.Apply(registry)
	}
	return registry
}

// Register associates fn with the type T. When T is an interface type the handler
// applies to every type implementing it. A previous registration for T is replaced.
func Register[T any, R any](registry *Registry[R], fn func(value T, scheme shard.Scheme) (R, error)) {
	handler := func(value any, scheme shard.Scheme) (R, error) {
		return fn(value.(T), scheme)
	}
	registry.set(reflect.TypeFor[T](), handler)
}

// RegisterInterface is like Register for an interface type T. It panics when T is not an interface.
func RegisterInterface[T any, R any](registry *Registry[R], fn func(value T, scheme shard.Scheme) (R, error)) {
	if reflect.TypeFor[T]().Kind() != reflect.Interface {
		panic(fmt.Sprintf("resolver: %s is not an interface", reflect.TypeFor[T]()))
	}
	Register(registry, fn)
}

// Unregister removes the handler registered for T, if any
func Unregister[T any, R any](registry *Registry[R]) {
	typ := reflect.TypeFor[T]()

	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.exact, typ)
	for i, m := range registry.matchers {
		if m.iface == typ {
			registry.matchers = append(registry.matchers[:i:i], registry.matchers[i+1:]...)
			break
		}
	}
	registry.invalidate()
}

// SetNullHandler sets the handler used for nil values
func (r *Registry[R]) SetNullHandler(handler Handler[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.null = handler
	r.invalidate()
}

// Resolve resolves value under scheme
func (r *Registry[R]) Resolve(value any, scheme shard.Scheme) (R, error) {
	if value == nil {
		return r.resolveNull(scheme)
	}

	handler, err := r.handlerOf(reflect.TypeOf(value))
	if err != nil {
		var zero R
		return zero, err
	}
	return handler(value, scheme)
}

// MustResolve is like Resolve but panics on error
func (r *Registry[R]) MustResolve(value any, scheme shard.Scheme) R {
	result, err := r.Resolve(value, scheme)
	if err != nil {
		panic(err)
	}
	return result
}

// ResolveRef resolves value to a mesh ref. A shard ref built against
// Undefined is bound to scheme and normalized.
func (r *Registry[R]) ResolveRef(value any, scheme shard.Scheme) (mesh.Ref, error) {
	result, err := r.Resolve(value, scheme)
	if err != nil {
		return mesh.NoRef, err
	}
	return r.lift(result, scheme).WithSchemeIfUndefined(scheme).Normalize(), nil
}

// ShardRef resolves value to a normalized shard ref under scheme.
// It fails when value resolves to a node.
func (r *Registry[R]) ShardRef(value any, scheme shard.Scheme) (shard.Ref, error) {
	ref, err := r.ResolveRef(value, scheme)
	if err != nil {
		return shard.Ref{}, err
	}
	shardRef, ok := ref.Shard()
	if !ok {
		return shard.Ref{}, fmt.Errorf("%w: %s is not a shard ref", gerrors.ErrInvalidRef, ref)
	}
	return shardRef, nil
}

// Target resolves value and binds the result to the owner found in state
func (r *Registry[R]) Target(value any, scheme shard.Scheme, state *mesh.State, self *mesh.Node) (mesh.Target, error) {
	ref, err := r.ResolveRef(value, scheme)
	if err != nil {
		return mesh.Target{}, err
	}
	return mesh.Resolve(ref, state, self)
}

// Has reports whether values of type typ can be resolved
func (r *Registry[R]) Has(typ reflect.Type) bool {
	_, err := r.handlerOf(typ)
	return err == nil
}

func (r *Registry[R]) set(typ reflect.Type, handler Handler[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.invalidate()

	if typ.Kind() != reflect.Interface {
		r.exact[typ] = handler
		return
	}
	for i := range r.matchers {
		if r.matchers[i].iface == typ {
			r.matchers[i].handler = handler
			return
		}
	}
	r.matchers = append(r.matchers, matcher[R]{iface: typ, handler: handler})
}

// invalidate drops cached lookups. It must be called with mu held.
func (r *Registry[R]) invalidate() {
	r.version++
	r.cache.Reset()
}

func (r *Registry[R]) resolveNull(scheme shard.Scheme) (R, error) {
	r.mu.RLock()
	null := r.null
	r.mu.RUnlock()
	if null == nil {
		var zero R
		return zero, gerrors.NewResolverNotFoundError(nil)
	}
	return null(nil, scheme)
}

func (r *Registry[R]) handlerOf(typ reflect.Type) (Handler[R], error) {
	if handler, ok := r.cache.Get(typ); ok {
		return handler, nil
	}

	key := typ.PkgPath() + ":" + typ.String()
	result, err, _ := r.group.Do(key, func() (any, error) {
		handler, err := r.lookup(typ)
		if err != nil {
			return nil, err
		}
		return resolved[R]{typ: typ, handler: handler}, nil
	})
	if err != nil {
		return nil, err
	}

	// two distinct types may share a key
	if res := result.(resolved[R]); res.typ == typ {
		return res.handler, nil
	}
	return r.lookup(typ)
}

// lookup walks the resolution chain for typ and caches the result
func (r *Registry[R]) lookup(typ reflect.Type) (Handler[R], error) {
	r.mu.RLock()
	version := r.version
	handler := r.find(typ)
	r.mu.RUnlock()

	if handler == nil {
		handler = r.derive(typ)
	}
	if handler == nil {
		return nil, gerrors.NewResolverNotFoundError(typ)
	}

	r.mu.RLock()
	if r.version == version {
		r.cache.Set(typ, handler)
	}
	r.mu.RUnlock()
	return handler, nil
}

// find returns the exact or interface handler for typ. It must be called with mu held.
func (r *Registry[R]) find(typ reflect.Type) Handler[R] {
	if handler, ok := r.exact[typ]; ok {
		return handler
	}
	for _, m := range r.matchers {
		if typ.Implements(m.iface) {
			return m.handler
		}
	}
	return nil
}

// derive synthesizes a handler for a type with no registered handler
func (r *Registry[R]) derive(typ reflect.Type) Handler[R] {
	if typ.Implements(keySourceType) {
		return func(value any, scheme shard.Scheme) (R, error) {
			return r.resolveSource(typ, value, scheme)
		}
	}

	if typ.Kind() == reflect.Pointer {
		elem, err := r.handlerOf(typ.Elem())
		if err != nil {
			return nil
		}
		return func(value any, scheme shard.Scheme) (R, error) {
			pointer := reflect.ValueOf(value)
			if pointer.IsNil() {
				return r.resolveNull(scheme)
			}
			return elem(pointer.Elem().Interface(), scheme)
		}
	}

	base, ok := scalarTypes[typ.Kind()]
	if !ok || base == typ {
		return nil
	}

	r.mu.RLock()
	handler := r.exact[base]
	r.mu.RUnlock()
	if handler == nil {
		return nil
	}
	return func(value any, scheme shard.Scheme) (R, error) {
		return handler(reflect.ValueOf(value).Convert(base).Interface(), scheme)
	}
}

// resolveSource follows ShardKey until it reaches a key with a handler of its own.
// A nil pointer resolves as nil. Chains longer than maxKeySourceDepth are treated as cycles.
func (r *Registry[R]) resolveSource(typ reflect.Type, value any, scheme shard.Scheme) (R, error) {
	for range maxKeySourceDepth {
		if isNil(value) {
			return r.resolveNull(scheme)
		}
		source, ok := value.(KeySource)
		if !ok {
			return r.Resolve(value, scheme)
		}

		value = source.ShardKey()
		if value == nil {
			return r.resolveNull(scheme)
		}
		r.mu.RLock()
		handler := r.find(reflect.TypeOf(value))
		r.mu.RUnlock()
		if handler != nil {
			return handler(value, scheme)
		}
	}

	var zero R
	return zero, gerrors.NewResolverNotFoundError(typ)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
