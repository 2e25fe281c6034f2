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
)

var (
	// ErrInvalidScheme is returned when a shard scheme is the none/undefined sentinel
	// or carries a non-positive shard count while a concrete scheme is required.
	ErrInvalidScheme = errors.New("invalid shard scheme")

	// ErrUndefinedScheme is returned when a scheme lookup by id fails.
	ErrUndefinedScheme = errors.New("shard scheme is not defined")

	// ErrDuplicateScheme is returned when a catalog is built with two schemes sharing the same id.
	ErrDuplicateScheme = errors.New("shard scheme is already defined")

	// ErrResolverNotFound is returned when no resolver can handle a given key type.
	// Use errors.As with *ResolverNotFoundError to get the offending type.
	ErrResolverNotFound = errors.New("resolver not found")

	// ErrLeaseLost is the cause attached to a shard run context when the lock service revokes the lease.
	ErrLeaseLost = errors.New("lease lost")

	// ErrLockerClosed is returned when a lock is requested from a closed locker.
	ErrLockerClosed = errors.New("locker is closed")

	// ErrWatcherDisposed is returned by a state subscription once its membership watcher has been stopped.
	ErrWatcherDisposed = errors.New("membership watcher is disposed")

	// ErrWatcherStarted is returned when starting a membership watcher twice.
	ErrWatcherStarted = errors.New("membership watcher already started")

	// ErrNodeNotFound is returned when a node id cannot be found in a mesh state.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOwner is returned when a shard has no live owner in a mesh state.
	ErrNoOwner = errors.New("shard has no owner")

	// ErrInvalidRef is returned when a mesh ref names neither a shard nor a node.
	ErrInvalidRef = errors.New("invalid mesh ref")

	// ErrWorkerStarted is returned when starting a worker twice.
	ErrWorkerStarted = errors.New("shard worker already started")

	// ErrWorkerNotStarted is returned when stopping a worker that is not running.
	ErrWorkerNotStarted = errors.New("shard worker is not started")

	// ErrHostNotStarted is returned when a host operation requires a started host.
	ErrHostNotStarted = errors.New("host is not started")

	// ErrHostStarted is returned when a host is started twice or configured after start.
	ErrHostStarted = errors.New("host already started")

	// ErrHostStopped is returned when a stopped host is started again.
	ErrHostStopped = errors.New("host is stopped")

	// ErrNoDialer is returned when a peer channel is requested from a host without dialer.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNoArguments is returned by the first-argument key extractor when a call has no argument.
	ErrNoArguments = errors.New("method call has no argument")

	// ErrUndefinedMethod is returned when a call is routed without a method definition.
	ErrUndefinedMethod = errors.New("method is not defined")

	// ErrStaleTarget is returned when a target resolved against an older state would replace a newer channel.
	ErrStaleTarget = errors.New("target is stale")

	// ErrPoolClosed is returned when a channel is requested from a closed pool.
	ErrPoolClosed = errors.New("channel pool is closed")
)

// NewErrUndefinedScheme formats an ErrUndefinedScheme with the given scheme id.
func NewErrUndefinedScheme(id string) error {
	return fmt.Errorf("scheme=(%s) %w", id, ErrUndefinedScheme)
}

// NewErrNodeNotFound formats an ErrNodeNotFound with the given node id.
func NewErrNodeNotFound(id string) error {
	return fmt.Errorf("node=(%s) %w", id, ErrNodeNotFound)
}

// NewErrInvalidScheme formats an ErrInvalidScheme with the given scheme id.
func NewErrInvalidScheme(id string) error {
	return fmt.Errorf("scheme=(%s) %w", id, ErrInvalidScheme)
}

// ResolverNotFoundError is returned when a value type has no registered,
// derivable or lifted resolver. It is a configuration defect.
type ResolverNotFoundError struct {
	Type reflect.Type
}

// enforce compilation error
var _ error = (*ResolverNotFoundError)(nil)

// NewResolverNotFoundError creates an instance of ResolverNotFoundError
func NewResolverNotFoundError(t reflect.Type) *ResolverNotFoundError {
	return &ResolverNotFoundError{Type: t}
}

// Error implements the standard error interface
func (e *ResolverNotFoundError) Error() string {
	return fmt.Sprintf("resolver not found for type %s", typeName(e.Type))
}

// Is reports whether target is ErrResolverNotFound
func (e *ResolverNotFoundError) Is(target error) bool {
	return target == ErrResolverNotFound
}

// InternalError defines an error that is explicit to the application
type InternalError struct {
	err error
}

// enforce compilation error
var _ error = (*InternalError)(nil)

// NewInternalError returns an intance of InternalError
func NewInternalError(err error) *InternalError {
	return &InternalError{
		err: fmt.Errorf("internal error: %w", err),
	}
}

// Error implements the standard error interface
func (i *InternalError) Error() string {
	return i.err.Error()
}

func (i *InternalError) Unwrap() error {
	return i.err
}

// PanicError wraps a panic recovered from a shard run
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
