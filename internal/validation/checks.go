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

package validation

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// NewAssertion returns a check failing with message when ok is false
func NewAssertion(ok bool, message string) Validator {
	return ValidatorFunc(func() error {
		if ok {
			return nil
		}
		return errors.New(message)
	})
}

// NewEmptyStringValidator fails when value is blank
func NewEmptyStringValidator(field, value string) Validator {
	return ValidatorFunc(func() error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("the [%s] is required", field)
		}
		return nil
	})
}

// NewPositiveDurationValidator fails when value is zero or negative
func NewPositiveDurationValidator(field string, value time.Duration) Validator {
	return ValidatorFunc(func() error {
		if value <= 0 {
			return fmt.Errorf("the [%s] must be positive, got %s", field, value)
		}
		return nil
	})
}

// NewDurationRangeValidator fails when min is greater than max
func NewDurationRangeValidator(minField string, min time.Duration, maxField string, max time.Duration) Validator {
	return ValidatorFunc(func() error {
		if min > max {
			return fmt.Errorf("the [%s] (%s) must not exceed the [%s] (%s)", minField, min, maxField, max)
		}
		return nil
	})
}

// NewEndpointValidator fails when address is not a host:port pair.
// Port zero is accepted since listeners use it to pick a free port.
func NewEndpointValidator(field, address string) Validator {
	return ValidatorFunc(func() error {
		host, port, err := net.SplitHostPort(strings.TrimSpace(address))
		if err != nil {
			return fmt.Errorf("the [%s] %q is not a host:port endpoint: %w", field, address, err)
		}
		if host == "" {
			return fmt.Errorf("the [%s] %q has no host", field, address)
		}
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("the [%s] %q has an invalid port: %w", field, address, err)
		}
		return nil
	})
}
