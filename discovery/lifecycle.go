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

package discovery

import "sync"

// Lifecycle enforces the Initialize, Register, Deregister order of a
// Provider for implementations whose directory is managed elsewhere
type Lifecycle struct {
	mu          sync.RWMutex
	initialized bool
	registered  bool
}

// Initialize runs setup once and marks the provider initialized when it succeeds
func (l *Lifecycle) Initialize(setup func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return ErrAlreadyInitialized
	}
	if err := setup(); err != nil {
		return err
	}
	l.initialized = true
	return nil
}

// Register marks the provider registered
func (l *Lifecycle) Register() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	if l.registered {
		return ErrAlreadyRegistered
	}
	l.registered = true
	return nil
}

// Deregister marks the provider not registered
func (l *Lifecycle) Deregister() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	if !l.registered {
		return ErrNotRegistered
	}
	l.registered = false
	return nil
}

// Ready returns nil once the provider is initialized and registered
func (l *Lifecycle) Ready() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case !l.initialized:
		return ErrNotInitialized
	case !l.registered:
		return ErrNotRegistered
	default:
		return nil
	}
}

// Close resets the lifecycle
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = false
	l.registered = false
	return nil
}
