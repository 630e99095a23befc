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

package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/log"
)

// LockTimeout bounds the wait for an application lock. The lock is only held
// for short critical sections such as an activation.
const LockTimeout = time.Minute

// TenantPath returns the root node of tenant
func TenantPath(tenant string) string {
	return coordination.Join("config", "v2", "tenants", tenant)
}

// Repository stores, for the applications of one tenant, the id of their
// active session under /config/v2/tenants/<tenant>/applications/<id>.
// An existing node with no data is an application without an active session.
type Repository struct {
	tenant string
	store  coordination.Store
	logger log.Logger
}

// NewRepository creates the application Repository of tenant
func NewRepository(tenant string, store coordination.Store, logger log.Logger) *Repository {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Repository{tenant: tenant, store: store, logger: logger}
}

// Path returns the node holding the active session of id
func (r *Repository) Path(id ID) string {
	return coordination.Join(TenantPath(r.tenant), "applications", id.SerializedForm())
}

// LockPath returns the lock path of id
func (r *Repository) LockPath(id ID) string {
	return coordination.Join(TenantPath(r.tenant), "locks", id.SerializedForm())
}

// List returns every application known to the tenant, sorted
func (r *Repository) List(ctx context.Context) ([]ID, error) {
	names, err := r.store.Children(ctx, coordination.Join(TenantPath(r.tenant), "applications"))
	if err != nil {
		return nil, err
	}

	ids := make([]ID, 0, len(names))
	for _, name := range names {
		id, err := ParseID(name)
		if err != nil {
			r.logger.Warnf("ignoring application node %q of tenant %s: %v", name, r.tenant, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ActiveApplications returns the applications that have an active session
func (r *Repository) ActiveApplications(ctx context.Context) ([]ID, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]ID, 0, len(ids))
	for _, id := range ids {
		_, ok, err := r.ActiveSessionOf(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			active = append(active, id)
		}
	}
	return active, nil
}

// Exists reports whether id has an application node
func (r *Repository) Exists(ctx context.Context, id ID) (bool, error) {
	return r.store.Exists(ctx, r.Path(id))
}

// ActiveSessionOf returns the active session of id. The second result is
// false when the application is unknown or has no active session.
func (r *Repository) ActiveSessionOf(ctx context.Context, id ID) (int64, bool, error) {
	node, err := r.store.Get(ctx, r.Path(id))
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}

	if len(node.Data) == 0 {
		return 0, false, nil
	}

	sessionID, err := strconv.ParseInt(string(node.Data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid active session of %s: %w", id, err)
	}
	return sessionID, true, nil
}

// RequireActiveSessionOf returns the active session of id or ErrApplicationNotFound
func (r *Repository) RequireActiveSessionOf(ctx context.Context, id ID) (int64, error) {
	sessionID, ok, err := r.ActiveSessionOf(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("application '%s' has no active session: %w", id, gerrors.ErrApplicationNotFound)
	}
	return sessionID, nil
}

// PutTransaction returns the operations making sessionID the active session of id
func (r *Repository) PutTransaction(id ID, sessionID int64) *coordination.Transaction {
	return coordination.NewTransaction().Put(r.Path(id), []byte(strconv.FormatInt(sessionID, 10)))
}

// DeleteTransaction returns the operations removing id
func (r *Repository) DeleteTransaction(id ID) *coordination.Transaction {
	return coordination.NewTransaction().Delete(r.Path(id))
}

// CreateApplication creates the node of id, with no active session, unless it exists
func (r *Repository) CreateApplication(ctx context.Context, id ID) error {
	lock, err := r.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer r.release(ctx, lock)

	err = r.store.Commit(ctx, coordination.NewTransaction().Absent(r.Path(id)).Put(r.Path(id), nil))
	if errors.Is(err, gerrors.ErrTransactionConflict) {
		return nil
	}
	return err
}

// Lock takes the lock of id, waiting at most LockTimeout
func (r *Repository) Lock(ctx context.Context, id ID) (coordination.Lock, error) {
	return r.LockWithin(ctx, id, LockTimeout)
}

// LockWithin takes the lock of id, waiting at most timeout
func (r *Repository) LockWithin(ctx context.Context, id ID, timeout time.Duration) (coordination.Lock, error) {
	return r.store.Lock(ctx, r.LockPath(id), timeout)
}

// AwaitActiveSession blocks until sessionID is the active session of id or ctx is done
func (r *Repository) AwaitActiveSession(ctx context.Context, id ID, sessionID int64) error {
	events, err := r.store.Watch(ctx, r.Path(id))
	if err != nil {
		return err
	}

	// the pointer may have been written before the watch started
	active, ok, err := r.ActiveSessionOf(ctx, id)
	if err != nil {
		return err
	}
	if ok && active == sessionID {
		return nil
	}

	want := strconv.FormatInt(sessionID, 10)
	for {
		select {
		case event, open := <-events:
			if !open {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("watch of %s closed", r.Path(id))
			}
			if event.Type == coordination.EventPut && event.Path == r.Path(id) && string(event.Data) == want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Repository) release(ctx context.Context, lock coordination.Lock) {
	if err := lock.Release(ctx); err != nil {
		r.logger.Warnf("failed to release lock %s: %v", lock.Path(), err)
	}
}
