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

package memberlist

import (
	"github.com/hashicorp/memberlist"
)

// delegate gossips the encoded own node as memberlist node meta
type delegate struct {
	meta []byte
}

var _ memberlist.Delegate = (*delegate)(nil)

// NodeMeta is used to retrieve meta-data about the current node
// when broadcasting an alive message.
func (d *delegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return nil
	}
	return d.meta
}

// NotifyMsg is called when a user-data message is received.
func (d *delegate) NotifyMsg([]byte) {}

// GetBroadcasts is called when user data messages can be broadcast.
func (d *delegate) GetBroadcasts(int, int) [][]byte { return nil }

// LocalState is used for a TCP Push/Pull.
func (d *delegate) LocalState(bool) []byte { return nil }

// MergeRemoteState is invoked after a TCP Push/Pull.
func (d *delegate) MergeRemoteState([]byte, bool) {}

// events coalesces membership notifications into a single pending signal.
// The watcher re-reads the member list on every signal, so no event is lost.
type events struct {
	ch chan struct{}
}

var _ memberlist.EventDelegate = (*events)(nil)

func newEvents() *events {
	return &events{ch: make(chan struct{}, 1)}
}

// NotifyJoin is invoked when a node is detected to have joined.
func (e *events) NotifyJoin(*memberlist.Node) { e.signal() }

// NotifyLeave is invoked when a node is detected to have left.
func (e *events) NotifyLeave(*memberlist.Node) { e.signal() }

// NotifyUpdate is invoked when a node is detected to have updated its metadata.
func (e *events) NotifyUpdate(*memberlist.Node) { e.signal() }

func (e *events) signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}
