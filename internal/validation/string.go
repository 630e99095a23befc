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
	"fmt"
	"regexp"
	"strings"
	"time"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type emptyStringValidator struct {
	fieldName  string
	fieldValue string
}

// NewEmptyStringValidator fails when the value is blank
func NewEmptyStringValidator(fieldName, fieldValue string) Validator {
	return &emptyStringValidator{fieldName: fieldName, fieldValue: fieldValue}
}

// Validate implements Validator
func (v emptyStringValidator) Validate() error {
	if strings.TrimSpace(v.fieldValue) == "" {
		return fmt.Errorf("the [%s] is required", v.fieldName)
	}
	return nil
}

type segmentValidator struct {
	fieldName  string
	fieldValue string
}

// NewSegmentValidator fails when the value cannot be used as a single
// coordination store path segment (tenant, application, instance and job names).
func NewSegmentValidator(fieldName, fieldValue string) Validator {
	return &segmentValidator{fieldName: fieldName, fieldValue: fieldValue}
}

// Validate implements Validator
func (v segmentValidator) Validate() error {
	if !segmentPattern.MatchString(v.fieldValue) {
		return fmt.Errorf("the [%s] is invalid: %q must match %s", v.fieldName, v.fieldValue, segmentPattern.String())
	}
	return nil
}

type positiveDurationValidator struct {
	fieldName string
	duration  time.Duration
}

// NewPositiveDurationValidator fails when the duration is zero or negative
func NewPositiveDurationValidator(fieldName string, duration time.Duration) Validator {
	return &positiveDurationValidator{fieldName: fieldName, duration: duration}
}

// Validate implements Validator
func (v positiveDurationValidator) Validate() error {
	if v.duration <= 0 {
		return fmt.Errorf("the [%s] must be positive, but was %s", v.fieldName, v.duration)
	}
	return nil
}
