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

// Package deployment implements the prepare and activate steps of a deployment.
//
// Activation makes one session the active session of its application. It runs
// under the application lock and commits the status swap, the active session
// pointer and the host allocation in one transaction, so an application never
// has zero or two active sessions.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/internal/metric"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/session"
	"github.com/tochemey/configserver/tenant"
)

// DefaultTimeout is the total time allowed for a deployment
const DefaultTimeout = 5 * time.Minute

// Deployment prepares and activates one session.
// A Deployment is meant to be used by a single goroutine.
type Deployment struct {
	id          string
	tenant      *tenant.Tenant
	sessionID   int64
	prepared    bool
	validate    bool
	bootstrap   bool
	force       bool
	timeout     time.Duration
	clock       Clock
	provisioner HostProvisioner
	metrics     *metric.DeploymentMetric
	logger      log.Logger
	model       session.Model
}

// Unprepared creates a Deployment of a session that still has to be prepared
func Unprepared(t *tenant.Tenant, sessionID int64, opts ...Option) *Deployment {
	return newDeployment(t, sessionID, false, opts...)
}

// Prepared creates a Deployment of a session that was prepared already
func Prepared(t *tenant.Tenant, sessionID int64, opts ...Option) *Deployment {
	return newDeployment(t, sessionID, true, opts...)
}

func newDeployment(t *tenant.Tenant, sessionID int64, prepared bool, opts ...Option) *Deployment {
	deployment := &Deployment{
		id:        uuid.NewString(),
		tenant:    t,
		sessionID: sessionID,
		prepared:  prepared,
		validate:  true,
		timeout:   DefaultTimeout,
		clock:     time.Now,
		logger:    log.DefaultLogger,
	}
	for _, opt := range opts {
		opt.Apply(deployment)
	}
	deployment.logger = deployment.logger.With("tenant", t.Name, "session", sessionID, "deployment", deployment.id)
	return deployment
}

// ID returns the correlation id of the deployment
func (d *Deployment) ID() string {
	return d.id
}

// SessionID returns the session deployed
func (d *Deployment) SessionID() int64 {
	return d.sessionID
}

// Model returns the model built by Prepare, nil before
func (d *Deployment) Model() session.Model {
	return d.model
}

// Prepare builds and validates the model of the session and moves it to PREPARE.
// Preparing twice is a no-op.
func (d *Deployment) Prepare(ctx context.Context) error {
	if d.prepared && d.model != nil {
		return nil
	}

	start := d.clock()
	model, err := d.tenant.Sessions.Prepare(ctx, d.sessionID, session.PrepareOptions{
		Validate:  d.validate,
		Bootstrap: d.bootstrap,
	})
	if err != nil {
		return err
	}

	d.model = model
	d.prepared = true
	if d.metrics != nil {
		d.metrics.RecordPrepare(ctx, d.tenant.Name, d.clock().Sub(start))
	}
	return nil
}

// Activate makes the session the active session of its application and returns
// the config generation it serves. When the commit succeeded but the activation
// was not observed within the timeout budget, the generation is returned
// together with a TimeoutError.
func (d *Deployment) Activate(ctx context.Context) (int64, error) {
	budget := NewTimeoutBudget(d.clock, d.timeout)

	if !d.prepared {
		if err := d.Prepare(ctx); err != nil {
			return 0, err
		}
	}

	sessions := d.tenant.Sessions
	applications := d.tenant.Applications

	current, err := sessions.Get(ctx, d.sessionID)
	if err != nil {
		return 0, err
	}
	if err := validateSessionStatus(current); err != nil {
		return 0, err
	}
	if err := budget.Check(fmt.Sprintf("activate session %d", d.sessionID)); err != nil {
		return 0, err
	}

	id := current.ApplicationID
	lock, err := applications.LockWithin(ctx, id, budget.TimeLeft())
	if err != nil {
		if errors.Is(err, gerrors.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, gerrors.NewTimeoutError(fmt.Sprintf("activate session %d", d.sessionID), err)
		}
		return 0, gerrors.NewInternalError(err)
	}
	release := func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warnf("failed to release lock %s: %v", lock.Path(), err)
		}
	}
	// every exit path gives the lock up, Release is idempotent
	defer release()

	activeID, hasActive, err := applications.ActiveSessionOf(ctx, id)
	if err != nil {
		return 0, gerrors.NewInternalError(err)
	}

	if hasActive {
		if err := d.checkConflicts(ctx, current, activeID); err != nil {
			return 0, err
		}
	}

	txn := coordination.NewTransaction().
		LockHeld(lock).
		Add(sessions.ActivateTransaction(current.ID)).
		Add(applications.PutTransaction(id, current.ID))

	if hasActive && activeID != current.ID {
		exists, err := sessions.Client(activeID).Exists(ctx)
		if err != nil {
			return 0, gerrors.NewInternalError(err)
		}
		// a pointer to a removed session has nothing left to deactivate
		if exists {
			txn.Add(sessions.DeactivateTransaction(activeID))
		}
	}

	if d.provisioner != nil {
		hosts := current.AllocatedHosts
		if d.model != nil {
			hosts = d.model.Hosts()
		}
		if err := d.provisioner.Activate(txn, id, hosts); err != nil {
			return 0, gerrors.NewInternalError(fmt.Errorf("failed to activate hosts of %s: %w", id, err))
		}
	}

	if err := d.tenant.Store.Commit(ctx, txn); err != nil {
		return 0, gerrors.NewInternalError(fmt.Errorf("failed to activate session %d: %w", current.ID, err))
	}
	release()

	waitCtx, cancel := budget.WithDeadline(ctx)
	defer cancel()
	if err := applications.AwaitActiveSession(waitCtx, id, current.ID); err != nil {
		d.logger.Warnf("Session %d was committed but its activation was not observed within %s", current.ID, budget.Timeout())
		return current.Generation(), gerrors.NewTimeoutError(fmt.Sprintf("observe activation of session %d", current.ID), err)
	}

	previous := "none"
	if hasActive {
		previous = fmt.Sprintf("%d", activeID)
	}
	d.logger.Infof("Session %d activated successfully using %s. Config generation %d. Based on previous active session %s",
		current.ID, d.provisionerName(), current.Generation(), previous)

	if d.metrics != nil {
		d.metrics.RecordActivate(ctx, d.tenant.Name, budget.Elapsed())
	}
	return current.Generation(), nil
}

// Restart restarts the hosts of the application of the session matched by filter
func (d *Deployment) Restart(ctx context.Context, filter HostFilter) error {
	if d.provisioner == nil {
		return gerrors.ErrNoHostProvisioner
	}

	current, err := d.tenant.Sessions.Get(ctx, d.sessionID)
	if err != nil {
		return err
	}

	if err := d.provisioner.Restart(ctx, current.ApplicationID, filter); err != nil {
		return err
	}
	d.logger.Infof("Restarted %s of %s", filter, current.ApplicationID)
	return nil
}

// checkConflicts refuses the activation of current when the active session
// changed since current was created, or when current is older than it.
// It runs under the application lock, before any write.
func (d *Deployment) checkConflicts(ctx context.Context, current *session.Session, activeID int64) error {
	if conflict := d.checkIfActiveHasChanged(current, activeID); conflict != nil {
		d.recordConflict(ctx, conflict)
		return conflict
	}
	if current.ID < activeID {
		err := gerrors.NewOlderGenerationError(current.ID, activeID)
		d.recordConflict(ctx, err)
		return err
	}
	return nil
}

func (d *Deployment) checkIfActiveHasChanged(current *session.Session, activeID int64) *gerrors.ActivationConflictError {
	atCreate := current.ActiveSessionAtCreate
	// no active session when current was created
	if atCreate == 0 {
		return nil
	}

	if activeID > atCreate && activeID != current.ID {
		err := gerrors.NewStaleSessionError(current.ID, activeID, atCreate)
		if !d.force {
			return err
		}
		d.logger.Warnf("%s (Continuing because of force.)", err.Error())
	}
	return nil
}

func (d *Deployment) recordConflict(ctx context.Context, err *gerrors.ActivationConflictError) {
	if d.metrics != nil {
		d.metrics.RecordConflict(ctx, d.tenant.Name, err.Reason.String())
	}
}

func (d *Deployment) provisionerName() string {
	if d.provisioner == nil {
		return "no host provisioner"
	}
	return fmt.Sprintf("%T", d.provisioner)
}

func validateSessionStatus(current *session.Session) error {
	switch current.Status {
	case session.StatusNew:
		return fmt.Errorf("session %d: %w", current.ID, gerrors.ErrSessionNotPrepared)
	case session.StatusActivate:
		return fmt.Errorf("session %d: %w", current.ID, gerrors.ErrSessionAlreadyActive)
	default:
		return nil
	}
}
