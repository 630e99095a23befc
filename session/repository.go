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

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/flowchartsman/retry"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/filedistribution"
	"github.com/tochemey/configserver/log"
)

const (
	maxAllocationAttempts = 25
	readConcurrency       = 8
)

// CreateParams describe a new session
type CreateParams struct {
	ApplicationID         application.ID
	PackageReference      filedistribution.FileReference
	Version               string
	DockerImageRepository string
	AthenzDomain          string
}

// PrepareOptions tune a prepare
type PrepareOptions struct {
	// Validate turns package validation on
	Validate bool
	// Bootstrap is set for deployments made by the config server at startup
	Bootstrap bool
}

// Repository is the catalog of the sessions of one tenant
type Repository struct {
	tenant       string
	store        coordination.Store
	applications *application.Repository
	packages     PackageSource
	builder      ModelBuilder
	logger       log.Logger

	mu     sync.RWMutex
	cache  map[int64]*Session
	models map[int64]Model
	local  mapset.Set[int64]
}

// Option configures a Repository
type Option func(*Repository)

// WithModelBuilder sets the model builder used by Prepare
func WithModelBuilder(builder ModelBuilder) Option {
	return func(r *Repository) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithPackageSource sets where application packages are read from
func WithPackageSource(packages PackageSource) Option {
	return func(r *Repository) {
		r.packages = packages
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRepository creates the session Repository of tenant
func NewRepository(tenant string, store coordination.Store, applications *application.Repository, opts ...Option) *Repository {
	repository := &Repository{
		tenant:       tenant,
		store:        store,
		applications: applications,
		builder:      PackageModelBuilder{},
		logger:       log.DefaultLogger,
		cache:        make(map[int64]*Session),
		models:       make(map[int64]Model),
		local:        mapset.NewSet[int64](),
	}
	for _, opt := range opts {
		opt(repository)
	}
	repository.logger = repository.logger.With("tenant", tenant)
	return repository
}

// Tenant returns the tenant name
func (r *Repository) Tenant() string {
	return r.tenant
}

// Client returns the field client of sessionID
func (r *Repository) Client(sessionID int64) *Client {
	return NewClient(r.store, r.tenant, sessionID)
}

// CreateSession allocates the next session id and stores the session in
// status NEW. The session active for the application at this point is recorded
// as its activeSessionAtCreate. Store failures surface as ResourceExhaustedError.
func (r *Repository) CreateSession(ctx context.Context, params CreateParams, now time.Time) (*Session, error) {
	if err := params.ApplicationID.Validate(); err != nil {
		return nil, gerrors.NewValidationError(err)
	}
	if _, err := filedistribution.ParseFileReference(params.PackageReference.String()); err != nil {
		return nil, gerrors.NewValidationError(err)
	}

	sessionID, err := r.nextSessionID(ctx)
	if err != nil {
		return nil, gerrors.NewResourceExhaustedError(fmt.Errorf("failed to allocate a session id: %w", err))
	}

	activeSessionAtCreate, _, err := r.applications.ActiveSessionOf(ctx, params.ApplicationID)
	if err != nil {
		return nil, gerrors.NewResourceExhaustedError(err)
	}

	client := r.Client(sessionID)
	txn := client.CreateTransaction(params.ApplicationID, params.PackageReference, now, activeSessionAtCreate)
	if params.Version != "" {
		txn.Put(client.fieldPath(versionField), []byte(params.Version))
	}
	if params.DockerImageRepository != "" {
		txn.Put(client.fieldPath(dockerImageRepositoryField), []byte(params.DockerImageRepository))
	}
	if params.AthenzDomain != "" {
		txn.Put(client.fieldPath(athenzDomainField), []byte(params.AthenzDomain))
	}

	if err := r.store.Commit(ctx, txn); err != nil {
		return nil, gerrors.NewResourceExhaustedError(fmt.Errorf("failed to create session %d: %w", sessionID, err))
	}

	session := &Session{
		Tenant:                r.tenant,
		ID:                    sessionID,
		Status:                StatusNew,
		ApplicationID:         params.ApplicationID,
		CreateTime:            time.Unix(now.Unix(), 0).UTC(),
		ActiveSessionAtCreate: activeSessionAtCreate,
		PackageReference:      params.PackageReference,
		Version:               params.Version,
		DockerImageRepository: params.DockerImageRepository,
		AthenzDomain:          params.AthenzDomain,
	}

	r.local.Add(sessionID)
	r.remember(session)
	r.logFor(params.ApplicationID).Infof("Created session %d (active session at create: %d)", sessionID, activeSessionAtCreate)
	return session, nil
}

// Prepare builds and validates the model of sessionID and moves it to PREPARE.
// Preparing a session that is already prepared writes nothing and returns the
// same model.
func (r *Repository) Prepare(ctx context.Context, sessionID int64, opts PrepareOptions) (Model, error) {
	client := r.Client(sessionID)
	status, version, err := client.ReadStatusVersion(ctx)
	if err != nil {
		if errors.Is(err, gerrors.ErrSessionNotFound) {
			return nil, err
		}
		return nil, gerrors.NewInternalError(err)
	}

	switch status {
	case StatusNew, StatusPrepare:
	case StatusActivate:
		return nil, fmt.Errorf("session %d: %w", sessionID, gerrors.ErrSessionAlreadyActive)
	default:
		return nil, fmt.Errorf("session %d is %s and cannot be prepared", sessionID, status)
	}

	if model, ok := r.model(sessionID); ok && status == StatusPrepare {
		return model, nil
	}

	session, err := r.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	model, err := r.build(ctx, session, opts)
	if err != nil {
		return nil, err
	}

	if status == StatusPrepare {
		// prepared by another server: the model is rebuilt, nothing is written
		r.rememberModel(sessionID, model)
		return model, nil
	}

	hosts, err := client.AllocatedHostsTransaction(model.Hosts())
	if err != nil {
		return nil, gerrors.NewInternalError(err)
	}

	txn := coordination.NewTransaction().
		VersionEquals(client.StatusPath(), version).
		Add(hosts).
		Add(client.StatusTransaction(StatusPrepare))
	if err := r.store.Commit(ctx, txn); err != nil {
		return nil, gerrors.NewInternalError(fmt.Errorf("failed to prepare session %d: %w", sessionID, err))
	}

	if err := r.applications.CreateApplication(ctx, session.ApplicationID); err != nil {
		return nil, gerrors.NewInternalError(err)
	}

	session.Status = StatusPrepare
	session.AllocatedHosts = model.Hosts()
	r.remember(session)
	r.rememberModel(sessionID, model)
	r.logFor(session.ApplicationID).Infof("Session %d prepared", sessionID)
	return model, nil
}

// Get reads sessionID from the store
func (r *Repository) Get(ctx context.Context, sessionID int64) (*Session, error) {
	client := r.Client(sessionID)
	status, err := client.ReadStatus(ctx)
	if err != nil {
		return nil, err
	}

	session := &Session{Tenant: r.tenant, ID: sessionID, Status: status}
	if session.ApplicationID, err = client.ReadApplicationID(ctx); err != nil {
		return nil, fmt.Errorf("failed to read application id of session %d: %w", sessionID, err)
	}
	if session.CreateTime, err = client.ReadCreateTime(ctx); err != nil {
		return nil, err
	}
	if session.ActiveSessionAtCreate, err = client.ReadActiveSessionAtCreate(ctx); err != nil {
		return nil, err
	}
	if session.PackageReference, err = client.ReadPackageReference(ctx); err != nil {
		return nil, fmt.Errorf("failed to read package reference of session %d: %w", sessionID, err)
	}
	if session.Version, err = client.ReadVersion(ctx); err != nil {
		return nil, err
	}
	if session.DockerImageRepository, _, err = client.ReadDockerImageRepository(ctx); err != nil {
		return nil, err
	}
	if session.AthenzDomain, _, err = client.ReadAthenzDomain(ctx); err != nil {
		return nil, err
	}
	if session.AllocatedHosts, err = client.ReadAllocatedHosts(ctx); err != nil {
		return nil, err
	}

	r.remember(session)
	return session, nil
}

// List reads every session of the tenant, ordered by id, and refreshes the cache
func (r *Repository) List(ctx context.Context) ([]*Session, error) {
	names, err := r.store.Children(ctx, SessionsPath(r.tenant))
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	sessions := make([]*Session, 0, len(names))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(readConcurrency)
	for _, name := range names {
		sessionID, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		eg.Go(func() error {
			session, err := r.Get(ctx, sessionID)
			if err != nil {
				// a session being created or removed has no status node
				if errors.Is(err, gerrors.ErrSessionNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			sessions = append(sessions, session)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// Cached returns the sessions read so far, ordered by id. It may be stale.
func (r *Repository) Cached() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.cache))
	for _, session := range r.cache {
		copied := *session
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions
}

// ActiveSession returns the active session of id. The second result is false
// when the application has no active session.
func (r *Repository) ActiveSession(ctx context.Context, id application.ID) (*Session, bool, error) {
	sessionID, ok, err := r.applications.ActiveSessionOf(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}

	session, err := r.Get(ctx, sessionID)
	if err != nil {
		// the application may have been removed in between
		if errors.Is(err, gerrors.ErrSessionNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return session, true, nil
}

// ActivateTransaction returns the operations marking sessionID active
func (r *Repository) ActivateTransaction(sessionID int64) *coordination.Transaction {
	return r.Client(sessionID).StatusTransaction(StatusActivate)
}

// DeactivateTransaction returns the operations marking sessionID deactivated
func (r *Repository) DeactivateTransaction(sessionID int64) *coordination.Transaction {
	return r.Client(sessionID).StatusTransaction(StatusDeactivate)
}

// WaitUntilActivated blocks until sessionID is in status ACTIVATE or ctx is done
func (r *Repository) WaitUntilActivated(ctx context.Context, sessionID int64) error {
	client := r.Client(sessionID)
	events, err := r.store.Watch(ctx, client.StatusPath())
	if err != nil {
		return err
	}

	status, err := client.ReadStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusActivate {
		r.markStatus(sessionID, status)
		return nil
	}

	for {
		select {
		case event, open := <-events:
			if !open {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("watch of session %d closed", sessionID)
			}
			if event.Type == coordination.EventPut && ParseStatus(string(event.Data)) == StatusActivate {
				r.markStatus(sessionID, StatusActivate)
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// HasLocalSession reports whether sessionID has a local copy on this server
func (r *Repository) HasLocalSession(sessionID int64) bool {
	return r.local.Contains(sessionID)
}

// CreateLocalSessionFromDistributedPackage registers a local copy of a session
// created on another server, once its package has been distributed here.
func (r *Repository) CreateLocalSessionFromDistributedPackage(ctx context.Context, sessionID int64) error {
	if r.HasLocalSession(sessionID) {
		return nil
	}

	session, err := r.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if r.packages == nil {
		return fmt.Errorf("no package source to create local session %d from", sessionID)
	}
	if _, err := r.packages.Read(session.PackageReference); err != nil {
		return fmt.Errorf("application package of session %d is not available: %w", sessionID, err)
	}

	r.local.Add(sessionID)
	r.logFor(session.ApplicationID).Infof("Created local session %d from distributed application package %s", sessionID, session.PackageReference)
	return nil
}

// LocalSessions returns the ids of the local sessions
func (r *Repository) LocalSessions() []int64 {
	return mapset.Sorted(r.local)
}

func (r *Repository) build(ctx context.Context, session *Session, opts PrepareOptions) (Model, error) {
	if r.packages == nil {
		return nil, gerrors.NewInternalError(fmt.Errorf("no package source to prepare session %d from", session.ID))
	}

	content, err := r.packages.Read(session.PackageReference)
	if err != nil {
		return nil, gerrors.NewInternalError(fmt.Errorf("failed to read application package of session %d: %w", session.ID, err))
	}

	model, err := r.builder.Build(ctx, ApplicationPackage{
		ApplicationID:         session.ApplicationID,
		Reference:             session.PackageReference,
		Content:               content,
		Version:               session.Version,
		DockerImageRepository: session.DockerImageRepository,
		AthenzDomain:          session.AthenzDomain,
	}, BuildOptions{Validate: opts.Validate, Bootstrap: opts.Bootstrap})
	if err != nil {
		return nil, err
	}
	return model, nil
}

func (r *Repository) nextSessionID(ctx context.Context) (int64, error) {
	counterPath := coordination.Join(application.TenantPath(r.tenant), "sessionCounter")

	var (
		next    int64
		failure error
	)

	// only a lost compare-and-swap is retried; any other failure ends the loop
	retrier := retry.NewRetrier(maxAllocationAttempts, 5*time.Millisecond, 100*time.Millisecond)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		failure = nil
		current, version, err := r.readCounter(ctx, counterPath)
		if err != nil {
			failure = err
			return nil
		}

		next = current + 1
		txn := coordination.NewTransaction()
		if version == 0 {
			txn.Absent(counterPath)
		} else {
			txn.VersionEquals(counterPath, version)
		}
		txn.Put(counterPath, []byte(strconv.FormatInt(next, 10)))
		err = r.store.Commit(ctx, txn)
		if errors.Is(err, gerrors.ErrTransactionConflict) {
			return err
		}
		failure = err
		return nil
	})
	if err != nil {
		return 0, err
	}
	if failure != nil {
		return 0, failure
	}
	return next, nil
}

func (r *Repository) readCounter(ctx context.Context, path string) (int64, int64, error) {
	node, err := r.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	value, err := strconv.ParseInt(string(node.Data), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid session counter: %w", err)
	}
	return value, node.Version, nil
}

func (r *Repository) remember(session *Session) {
	copied := *session
	r.mu.Lock()
	r.cache[session.ID] = &copied
	r.mu.Unlock()
}

func (r *Repository) markStatus(sessionID int64, status Status) {
	r.mu.Lock()
	if session, ok := r.cache[sessionID]; ok {
		session.Status = status
	}
	r.mu.Unlock()
}

func (r *Repository) model(sessionID int64) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.models[sessionID]
	return model, ok
}

func (r *Repository) rememberModel(sessionID int64, model Model) {
	r.mu.Lock()
	r.models[sessionID] = model
	r.mu.Unlock()
}

func (r *Repository) logFor(id application.ID) log.Logger {
	return r.logger.With("application", id.ShortString())
}
