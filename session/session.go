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

// Package session implements configuration sessions: one staged attempt to
// (re)configure an application, from creation through prepare to activation.
//
// Every session field lives at its own path below
// /config/v2/tenants/<tenant>/sessions/<id>, so each can be updated atomically
// and independently. The store is the source of truth; the Repository keeps
// a read-mostly cache that is never used for conflict detection.
package session

import (
	"fmt"
	"time"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/filedistribution"
)

// Session is a snapshot of a session as read from the store
type Session struct {
	Tenant                string
	ID                    int64
	Status                Status
	ApplicationID         application.ID
	CreateTime            time.Time
	ActiveSessionAtCreate int64
	PackageReference      filedistribution.FileReference
	Version               string
	DockerImageRepository string
	AthenzDomain          string
	AllocatedHosts        []string
}

// IsNewerThan reports whether s was created after sessionID.
// Session ids are allocated monotonically per tenant.
func (s *Session) IsNewerThan(sessionID int64) bool {
	return s.ID > sessionID
}

// Generation returns the config generation served once s is active
func (s *Session) Generation() int64 {
	return s.ID
}

// String implements fmt.Stringer
func (s *Session) String() string {
	return fmt.Sprintf("Session,id=%d", s.ID)
}
