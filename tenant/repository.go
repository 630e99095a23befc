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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/internal/validation"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/session"
)

// RootPath is the parent node of every tenant
const RootPath = "/config/v2/tenants"

// Repository creates and looks up tenants. Tenant values are kept for the life
// of the Repository so the session caches survive between lookups.
type Repository struct {
	store          coordination.Store
	logger         log.Logger
	sessionOptions []session.Option

	mu      sync.Mutex
	tenants map[string]*Tenant
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSessionOptions sets the options applied to every tenant session repository
func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Repository) {
		r.sessionOptions = append(r.sessionOptions, opts...)
	}
}

// NewRepository creates a tenant Repository on store
func NewRepository(store coordination.Store, opts ...Option) *Repository {
	repository := &Repository{
		store:   store,
		logger:  log.DefaultLogger,
		tenants: make(map[string]*Tenant),
	}
	for _, opt := range opts {
		opt(repository)
	}
	return repository
}

// Create adds tenant name. Creating an existing tenant is a no-op.
func (r *Repository) Create(ctx context.Context, name string) (*Tenant, error) {
	if err := validation.NewSegmentValidator("tenant", name).Validate(); err != nil {
		return nil, gerrors.NewValidationError(err)
	}

	path := application.TenantPath(name)
	err := r.store.Commit(ctx, coordination.NewTransaction().Absent(path).Put(path, nil))
	switch {
	case err == nil:
		r.logger.Infof("Created tenant %s", name)
	case errors.Is(err, gerrors.ErrTransactionConflict):
	default:
		return nil, fmt.Errorf("failed to create tenant %s: %w", name, err)
	}
	return r.tenant(name), nil
}

// Get returns tenant name or ErrTenantNotFound
func (r *Repository) Get(ctx context.Context, name string) (*Tenant, error) {
	exists, err := r.store.Exists(ctx, application.TenantPath(name))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("tenant '%s': %w", name, gerrors.ErrTenantNotFound)
	}
	return r.tenant(name), nil
}

// Names returns the sorted tenant names
func (r *Repository) Names(ctx context.Context) ([]string, error) {
	return r.store.Children(ctx, RootPath)
}

// List returns every tenant, sorted by name
func (r *Repository) List(ctx context.Context) ([]*Tenant, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}
	tenants := make([]*Tenant, 0, len(names))
	for _, name := range names {
		tenants = append(tenants, r.tenant(name))
	}
	return tenants, nil
}

// Delete removes tenant name with all its sessions and applications
func (r *Repository) Delete(ctx context.Context, name string) error {
	if _, err := r.Get(ctx, name); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, application.TenantPath(name)); err != nil {
		return fmt.Errorf("failed to delete tenant %s: %w", name, err)
	}

	r.mu.Lock()
	delete(r.tenants, name)
	r.mu.Unlock()
	r.logger.Infof("Deleted tenant %s", name)
	return nil
}

func (r *Repository) tenant(name string) *Tenant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenant, ok := r.tenants[name]; ok {
		return tenant
	}

	logger := r.logger.With("tenant", name)
	applications := application.NewRepository(name, r.store, logger)
	opts := append([]session.Option{session.WithLogger(r.logger)}, r.sessionOptions...)
	tenant := &Tenant{
		Name:         name,
		Store:        r.store,
		Applications: applications,
		Sessions:     session.NewRepository(name, r.store, applications, opts...),
	}
	r.tenants[name] = tenant
	return tenant
}
