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

// Package tenant groups the per-tenant repositories of the config server.
package tenant

import (
	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/session"
)

// Tenant is the set of repositories owned by one tenant
type Tenant struct {
	// Name is the tenant name
	Name string
	// Sessions is the session repository of the tenant
	Sessions *session.Repository
	// Applications holds the active session pointers and application locks
	Applications *application.Repository
	// Store is the coordination store the repositories write to
	Store coordination.Store
}

// Path returns the root node of the tenant
func (t *Tenant) Path() string {
	return application.TenantPath(t.Name)
}
