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

package kubernetes

import (
	"time"

	"github.com/tochemey/shardmesh/internal/validation"
)

const defaultTimeout = 10 * time.Second

// Config represents the kubernetes provider configuration
type Config struct {
	// Namespace is the namespace of the mesh pods
	Namespace string
	// PodLabels selects the mesh pods
	PodLabels map[string]string
	// PortName is the name of the container port advertised for every pod
	PortName string
	// Timeout bounds a pod listing
	Timeout time.Duration
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets the default values
func (x *Config) Sanitize() {
	if x.Timeout <= 0 {
		x.Timeout = defaultTimeout
	}
}

// Validate checks whether the given discovery configuration is valid
func (x *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Namespace", x.Namespace)).
		AddValidator(validation.NewEmptyStringValidator("PortName", x.PortName)).
		AddAssertion(len(x.PodLabels) > 0, "PodLabels are required").
		Validate()
}
