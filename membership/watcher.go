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

package membership

import (
	"context"

	"github.com/tochemey/shardmesh/mesh"
)

// Watcher exposes the own node of the process and the stream of mesh states.
type Watcher interface {
	// Self returns the node of this process. It is the same pointer as the
	// one found in published states, so locality checks compare identity.
	Self() *mesh.Node
	// State returns the latest published state
	State() *mesh.State
	// Subscribe returns a subscription delivering the current state first,
	// then every newer state. Intermediate states may be skipped.
	Subscribe() *Subscription
}

// Service is a Watcher with a lifecycle
type Service interface {
	Watcher
	// Start joins the membership and begins publishing states
	Start(ctx context.Context) error
	// Stop leaves the membership. Subscriptions then fail with ErrWatcherDisposed.
	Stop(ctx context.Context) error
}
