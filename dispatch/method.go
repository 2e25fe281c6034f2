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
	"context"
	"fmt"
	"reflect"
	"strings"

	gerrors "github.com/tochemey/shardmesh/errors"
)

var contextType = reflect.TypeFor[context.Context]()

// Method describes a remote method: its service, its name and the types of its parameters.
// The parameter shape of a method never changes, so everything derived from it is computed once.
type Method struct {
	service string
	name    string
	params  []reflect.Type
}

// NewMethod creates a method definition
func NewMethod(service, name string, params ...reflect.Type) *Method {
	return &Method{
		service: strings.TrimSpace(service),
		name:    strings.TrimSpace(name),
		params:  params,
	}
}

// MethodOf builds a method definition from the signature of fn.
// fn must be a func value; its receiver, if any, must be bound.
func MethodOf(service, name string, fn any) (*Method, error) {
	typ := reflect.TypeOf(fn)
	if typ == nil || typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("method %s.%s: %T is not a function", service, name, fn)
	}

	params := make([]reflect.Type, typ.NumIn())
	for i := range params {
		params[i] = typ.In(i)
	}
	return NewMethod(service, name, params...), nil
}

// Service returns the service name
func (m *Method) Service() string {
	return m.service
}

// Name returns the method name
func (m *Method) Name() string {
	return m.name
}

// FullName returns "<service>/<name>"
func (m *Method) FullName() string {
	return m.service + "/" + m.name
}

// Params returns the parameter types
func (m *Method) Params() []reflect.Type {
	return m.params
}

// KeyParam returns the position of the parameter carrying the shard key:
// the first parameter that is not a context.Context. It returns -1 when the
// method has no such parameter, and 0 when parameters are not declared.
func (m *Method) KeyParam() int {
	if len(m.params) == 0 {
		return 0
	}
	for i, param := range m.params {
		if param == nil || !param.Implements(contextType) {
			return i
		}
	}
	return -1
}

func (m *Method) String() string {
	return m.FullName()
}

func (m *Method) validate() error {
	if m == nil || m.name == "" {
		return gerrors.ErrUndefinedMethod
	}
	return nil
}
