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

	gerrors "github.com/tochemey/shardmesh/errors"
)

// KeyExtractor returns the shard key carried by the arguments of a call
type KeyExtractor func(args []any) (any, error)

// Provider builds the key extractor of a method. It returns false when it does not handle the method.
type Provider interface {
	Extractor(method *Method) (KeyExtractor, bool)
}

var _ Provider = ProviderFunc(nil)

// ProviderFunc implements the Provider interface.
type ProviderFunc func(method *Method) (KeyExtractor, bool)

// Extractor calls f
func (f ProviderFunc) Extractor(method *Method) (KeyExtractor, bool) {
	return f(method)
}

// Argument returns an extractor picking the argument at position
func Argument(position int) KeyExtractor {
	return func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, gerrors.ErrNoArguments
		}
		if position < 0 || position >= len(args) {
			return nil, fmt.Errorf("shard key argument %d out of %d arguments", position, len(args))
		}
		return args[position], nil
	}
}

// Constant returns an extractor ignoring the arguments
func Constant(key any) KeyExtractor {
	return func([]any) (any, error) {
		return key, nil
	}
}

// ForMethod returns a provider applying extractor to the method with the given full name
func ForMethod(fullName string, extractor KeyExtractor) Provider {
	return ProviderFunc(func(method *Method) (KeyExtractor, bool) {
		if method.FullName() != fullName {
			return nil, false
		}
		return extractor, true
	})
}

// defaultProvider reads the first non-context argument
type defaultProvider struct{}

func (defaultProvider) Extractor(method *Method) (KeyExtractor, bool) {
	position := method.KeyParam()
	if position < 0 {
		return func([]any) (any, error) {
			return nil, fmt.Errorf("%s: %w", method.FullName(), gerrors.ErrNoArguments)
		}, true
	}
	return Argument(position), true
}
