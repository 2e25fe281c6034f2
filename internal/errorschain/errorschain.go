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

// Package errorschain sequences setup and teardown steps that may fail.
package errorschain

import "go.uber.org/multierr"

// Chain holds steps run in insertion order by Error.
// In ReturnFirst mode the steps after the first failure are skipped.
type Chain struct {
	stopOnError bool
	steps       []func() error
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// ReturnFirst makes the chain stop at its first error
func ReturnFirst() ChainOption {
	return func(c *Chain) { c.stopOnError = true }
}

// ReturnAll makes the chain run every step and combine their errors.
// This is the default.
func ReturnAll() ChainOption {
	return func(c *Chain) { c.stopOnError = false }
}

// New creates an empty Chain
func New(opts ...ChainOption) *Chain {
	c := new(Chain)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddError appends a step that reports err
func (c *Chain) AddError(err error) *Chain {
	if err == nil {
		return c
	}
	return c.AddErrorFn(func() error { return err })
}

// AddErrorFn appends fn. Nil functions are ignored.
func (c *Chain) AddErrorFn(fn func() error) *Chain {
	if fn != nil {
		c.steps = append(c.steps, fn)
	}
	return c
}

// AddErrorFns appends fns in order
func (c *Chain) AddErrorFns(fns ...func() error) *Chain {
	for _, fn := range fns {
		c.AddErrorFn(fn)
	}
	return c
}

// Error runs the steps and returns the outcome
func (c *Chain) Error() (err error) {
	for _, step := range c.steps {
		stepErr := step()
		if stepErr == nil {
			continue
		}
		if c.stopOnError {
			return stepErr
		}
		err = multierr.Append(err, stepErr)
	}
	return err
}
