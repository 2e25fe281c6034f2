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

// Option configures a Registry
type Option[R any] interface {
	// Apply sets the Option value of a Registry.
	Apply(*Registry[R])
}

var _ Option[int] = OptionFunc[int](nil)

// OptionFunc implements the Option interface.
type OptionFunc[R any] func(*Registry[R])

// Apply applies the option to the registry
func (f OptionFunc[R]) Apply(r *Registry[R]) {
	f(r)
}

// WithNullHandler sets the handler used to resolve nil values
func WithNullHandler[R any](handler Handler[R]) Option[R] {
	return OptionFunc[R](func(r *Registry[R]) {
		r.null = handler
	})
}
