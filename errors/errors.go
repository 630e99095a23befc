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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrActivationConflict is matched by every ActivationConflictError.
	ErrActivationConflict = errors.New("activation conflict")

	// ErrTimeout is matched by every TimeoutError.
	ErrTimeout = errors.New("timeout")

	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("invalid application package")

	// ErrInternal is matched by every InternalError.
	ErrInternal = errors.New("internal error")

	// ErrResourceExhausted is matched by every ResourceExhaustedError.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrLockTimeout is returned when a distributed lock could not be acquired
	// within its bounded wait. For maintenance jobs this is the expected outcome
	// when another process is running the same job.
	ErrLockTimeout = errors.New("timed out acquiring lock")

	// ErrLockNotHeld is returned when releasing or using a lock that is no longer owned.
	ErrLockNotHeld = errors.New("lock is not held")

	// ErrNodeNotFound is returned when reading a path that does not exist in the coordination store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTransactionConflict is returned when a transaction check failed and nothing was written.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrStoreClosed is returned when using a coordination store after Close.
	ErrStoreClosed = errors.New("coordination store is closed")

	// ErrSessionNotFound is returned when a session id is unknown to the tenant.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotPrepared is returned when activating a session still in NEW.
	ErrSessionNotPrepared = errors.New("session is not prepared")

	// ErrSessionAlreadyActive is returned when activating a session that is already active.
	ErrSessionAlreadyActive = errors.New("session is already active")

	// ErrApplicationNotFound is returned when an application has no active session pointer.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrTenantNotFound is returned when a tenant does not exist.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrNoHostProvisioner is returned by Restart when no host provisioner is configured.
	ErrNoHostProvisioner = errors.New("no host provisioner configured")

	// ErrMaintainerClosed is returned when starting a maintainer after Close.
	ErrMaintainerClosed = errors.New("maintainer is closed")

	// ErrJobNotFound is returned when running an unknown maintenance job on demand.
	ErrJobNotFound = errors.New("maintenance job not found")

	// ErrInvalidInterval is returned when a maintenance interval is zero or negative.
	ErrInvalidInterval = errors.New("interval must be positive")

	// ErrFileReferenceNotFound is returned when a file reference is not present locally.
	ErrFileReferenceNotFound = errors.New("file reference not found")
)

// NewErrSessionNotFound returns ErrSessionNotFound annotated with the session id
func NewErrSessionNotFound(sessionID int64) error {
	return fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
}

// NewErrNodeNotFound returns ErrNodeNotFound annotated with the path
func NewErrNodeNotFound(path string) error {
	return fmt.Errorf("%s: %w", path, ErrNodeNotFound)
}

// NewErrLockTimeout returns ErrLockTimeout annotated with the lock path and wait
func NewErrLockTimeout(path string, timeout fmt.Stringer) error {
	return fmt.Errorf("%w %s after %s", ErrLockTimeout, path, timeout)
}

// ConflictReason tells why an activation was refused
type ConflictReason int

const (
	// StaleActiveSession means the active session changed after the session was created.
	// Retrying with a fresh session, or forcing, resolves it.
	StaleActiveSession ConflictReason = iota
	// OlderGeneration means the session is older than the active one.
	// This is never overridable.
	OlderGeneration
)

// String returns the reason name
func (r ConflictReason) String() string {
	switch r {
	case StaleActiveSession:
		return "stale active session"
	case OlderGeneration:
		return "older generation"
	default:
		return "unknown"
	}
}

// ActivationConflictError is returned when a session cannot be activated
// because of the currently active session.
type ActivationConflictError struct {
	// Reason tells which rule refused the activation
	Reason ConflictReason
	// SessionID is the session that was being activated
	SessionID int64
	// ActiveSessionID is the session active at activation time
	ActiveSessionID int64
	// ActiveSessionAtCreate is the session that was active when SessionID was created
	ActiveSessionAtCreate int64
}

// enforce compilation error
var _ error = (*ActivationConflictError)(nil)

// NewStaleSessionError creates an ActivationConflictError for a session whose
// active session changed since its creation
func NewStaleSessionError(sessionID, activeSessionID, activeSessionAtCreate int64) *ActivationConflictError {
	return &ActivationConflictError{
		Reason:                StaleActiveSession,
		SessionID:             sessionID,
		ActiveSessionID:       activeSessionID,
		ActiveSessionAtCreate: activeSessionAtCreate,
	}
}

// NewOlderGenerationError creates an ActivationConflictError for a session older
// than the active one
func NewOlderGenerationError(sessionID, activeSessionID int64) *ActivationConflictError {
	return &ActivationConflictError{
		Reason:          OlderGeneration,
		SessionID:       sessionID,
		ActiveSessionID: activeSessionID,
	}
}

// Error implements the standard error interface
func (e *ActivationConflictError) Error() string {
	if e.Reason == OlderGeneration {
		return fmt.Sprintf("It is not possible to activate session %d, because it is older than current active session (%d)",
			e.SessionID, e.ActiveSessionID)
	}
	return fmt.Sprintf("Cannot activate session %d because the currently active session (%d) has changed since session %d was created (was %d at creation time)",
		e.SessionID, e.ActiveSessionID, e.SessionID, e.ActiveSessionAtCreate)
}

// Is reports whether target is ErrActivationConflict
func (e *ActivationConflictError) Is(target error) bool {
	return target == ErrActivationConflict
}

// TimeoutError is returned when a bounded wait exceeded its budget
type TimeoutError struct {
	op  string
	err error
}

// enforce compilation error
var _ error = (*TimeoutError)(nil)

// NewTimeoutError creates a TimeoutError for the given operation
func NewTimeoutError(op string, err error) *TimeoutError {
	return &TimeoutError{op: op, err: err}
}

// Error implements the standard error interface
func (e *TimeoutError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("timeout exceeded when trying to %s", e.op)
	}
	return fmt.Sprintf("timeout exceeded when trying to %s: %v", e.op, e.err)
}

func (e *TimeoutError) Unwrap() error {
	return e.err
}

// Is reports whether target is ErrTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ValidationError is returned when the application package is invalid.
// It is never retried.
type ValidationError struct {
	err error
}

// enforce compilation error
var _ error = (*ValidationError)(nil)

// NewValidationError creates an instance of ValidationError
func NewValidationError(err error) *ValidationError {
	return &ValidationError{err: err}
}

// Error implements the standard error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid application package: %v", e.err)
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InternalError wraps a coordination store failure
type InternalError struct {
	err error
}

// enforce compilation error
var _ error = (*InternalError)(nil)

// NewInternalError returns an instance of InternalError
func NewInternalError(err error) *InternalError {
	return &InternalError{
		err: fmt.Errorf("internal error: %w", err),
	}
}

// Error implements the standard error interface
func (i *InternalError) Error() string {
	return i.err.Error()
}

func (i *InternalError) Unwrap() error {
	return i.err
}

// Is reports whether target is ErrInternal
func (i *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// ResourceExhaustedError is returned when a session cannot be created
// because the coordination store is unreachable
type ResourceExhaustedError struct {
	err error
}

// enforce compilation error
var _ error = (*ResourceExhaustedError)(nil)

// NewResourceExhaustedError returns an instance of ResourceExhaustedError
func NewResourceExhaustedError(err error) *ResourceExhaustedError {
	return &ResourceExhaustedError{err: err}
}

// Error implements the standard error interface
func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("resource exhausted: %v", e.err)
}

func (e *ResourceExhaustedError) Unwrap() error {
	return e.err
}

// Is reports whether target is ErrResourceExhausted
func (e *ResourceExhaustedError) Is(target error) bool {
	return target == ErrResourceExhausted
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}
