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

// Package application identifies applications and owns, per tenant, the
// pointer from an application to its active session and the lock guarding it.
package application

import (
	"fmt"
	"strings"

	"github.com/tochemey/configserver/internal/validation"
)

// DefaultInstance is the instance name used when none is given
const DefaultInstance = "default"

// ID identifies an application instance of a tenant
type ID struct {
	Tenant      string
	Application string
	Instance    string
}

// NewID creates an ID. An empty instance means DefaultInstance.
func NewID(tenant, application, instance string) ID {
	if instance == "" {
		instance = DefaultInstance
	}
	return ID{Tenant: tenant, Application: application, Instance: instance}
}

// ParseID parses the serialized form tenant:application:instance
func ParseID(value string) (ID, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return ID{}, fmt.Errorf("application id %q must be on the form tenant:application:instance", value)
	}
	id := ID{Tenant: parts[0], Application: parts[1], Instance: parts[2]}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// Validate checks that every part can be used in a store path
func (id ID) Validate() error {
	return validation.New(validation.AllErrors()).
		AddValidator(validation.NewSegmentValidator("Tenant", id.Tenant)).
		AddValidator(validation.NewSegmentValidator("Application", id.Application)).
		AddValidator(validation.NewSegmentValidator("Instance", id.Instance)).
		Validate()
}

// SerializedForm returns tenant:application:instance
func (id ID) SerializedForm() string {
	return id.Tenant + ":" + id.Application + ":" + id.Instance
}

// String implements fmt.Stringer
func (id ID) String() string {
	return id.SerializedForm()
}

// ShortString returns tenant.application, suffixed with the instance when it is not the default
func (id ID) ShortString() string {
	if id.Instance == DefaultInstance {
		return id.Tenant + "." + id.Application
	}
	return id.Tenant + "." + id.Application + "." + id.Instance
}
