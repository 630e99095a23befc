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

// Package flags holds cluster-wide feature flags.
//
// Flag values live in the coordination store as protojson encoded
// google.protobuf.Value documents, one node per flag, and are read through a
// Source. Readers tolerate stale values: flags are operational controls,
// never a correctness mechanism.
package flags

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// ID identifies a flag
type ID string

const (
	// InactiveMaintenanceJobs lists the maintenance jobs that must not run
	InactiveMaintenanceJobs ID = "inactive-maintenance-jobs"
	// DistributeApplicationPackage enables the application package maintainer
	DistributeApplicationPackage ID = "configserver-distribute-application-package"
)

// Source resolves flag values
type Source interface {
	// Value returns the current value of id and whether it is set
	Value(id ID) (*structpb.Value, bool)
}

// BooleanFlag is a flag holding a boolean
type BooleanFlag struct {
	id           ID
	defaultValue bool
}

// NewBooleanFlag creates a boolean flag
func NewBooleanFlag(id ID, defaultValue bool) BooleanFlag {
	return BooleanFlag{id: id, defaultValue: defaultValue}
}

// ID returns the flag id
func (f BooleanFlag) ID() ID { return f.id }

// Value reads the flag from source. A missing or non boolean value yields the default.
func (f BooleanFlag) Value(source Source) bool {
	value, ok := source.Value(f.id)
	if !ok {
		return f.defaultValue
	}
	b, ok := value.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return f.defaultValue
	}
	return b.BoolValue
}

// ListFlag is a flag holding a list of strings
type ListFlag struct {
	id ID
}

// NewListFlag creates a string list flag
func NewListFlag(id ID) ListFlag {
	return ListFlag{id: id}
}

// ID returns the flag id
func (f ListFlag) ID() ID { return f.id }

// Value reads the flag from source. Non string elements are skipped and a
// missing value yields an empty list.
func (f ListFlag) Value(source Source) []string {
	value, ok := source.Value(f.id)
	if !ok {
		return nil
	}
	list := value.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}

// Static is a fixed in-memory Source
type Static map[ID]*structpb.Value

var _ Source = Static(nil)

// Value implements Source
func (s Static) Value(id ID) (*structpb.Value, bool) {
	v, ok := s[id]
	return v, ok
}
