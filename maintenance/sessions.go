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

package maintenance

import (
	"context"

	"github.com/tochemey/configserver/session"
	"github.com/tochemey/configserver/tenant"
)

// activeSession is the active session of one application
type activeSession struct {
	tenant  *tenant.Tenant
	session *session.Session
}

// activeSessions returns the active session of every application of every tenant
func activeSessions(ctx context.Context, tenants *tenant.Repository) ([]activeSession, error) {
	all, err := tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	var active []activeSession
	for _, t := range all {
		ids, err := t.Applications.ActiveApplications(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			current, ok, err := t.Sessions.ActiveSession(ctx, id)
			if err != nil {
				return nil, err
			}
			if ok {
				active = append(active, activeSession{tenant: t, session: current})
			}
		}
	}
	return active, nil
}
