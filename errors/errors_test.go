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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivationConflictError(t *testing.T) {
	t.Run("stale active session", func(t *testing.T) {
		err := NewStaleSessionError(7, 6, 5)
		require.EqualError(t, err,
			"Cannot activate session 7 because the currently active session (6) has changed since session 7 was created (was 5 at creation time)")
		assert.ErrorIs(t, err, ErrActivationConflict)
		assert.Equal(t, "stale active session", err.Reason.String())

		var conflict *ActivationConflictError
		require.True(t, errors.As(fmt.Errorf("activate: %w", err), &conflict))
		assert.Equal(t, int64(6), conflict.ActiveSessionID)
	})

	t.Run("older generation", func(t *testing.T) {
		err := NewOlderGenerationError(3, 6)
		require.EqualError(t, err,
			"It is not possible to activate session 3, because it is older than current active session (6)")
		assert.ErrorIs(t, err, ErrActivationConflict)
		assert.Equal(t, OlderGeneration, err.Reason)
	})
}

func TestTypedErrors(t *testing.T) {
	cause := errors.New("something went wrong")

	internalErr := NewInternalError(cause)
	require.EqualError(t, internalErr, "internal error: something went wrong")
	assert.ErrorIs(t, internalErr, ErrInternal)
	assert.ErrorIs(t, internalErr, cause)

	timeoutErr := NewTimeoutError("activate 'a:b:c'", cause)
	require.EqualError(t, timeoutErr, "timeout exceeded when trying to activate 'a:b:c': something went wrong")
	assert.ErrorIs(t, timeoutErr, ErrTimeout)
	assert.ErrorIs(t, timeoutErr, cause)
	require.EqualError(t, NewTimeoutError("lock", nil), "timeout exceeded when trying to lock")

	validationErr := NewValidationError(cause)
	require.EqualError(t, validationErr, "invalid application package: something went wrong")
	assert.ErrorIs(t, validationErr, ErrValidation)
	assert.NotErrorIs(t, validationErr, ErrInternal)

	exhausted := NewResourceExhaustedError(cause)
	require.EqualError(t, exhausted, "resource exhausted: something went wrong")
	assert.ErrorIs(t, exhausted, ErrResourceExhausted)

	panicErr := NewPanicError(cause)
	require.EqualError(t, panicErr, "panic: something went wrong")
	assert.ErrorIs(t, panicErr, cause)
}

func TestAnnotatedSentinels(t *testing.T) {
	assert.ErrorIs(t, NewErrSessionNotFound(4), ErrSessionNotFound)
	assert.EqualError(t, NewErrSessionNotFound(4), "session 4: session not found")
	assert.ErrorIs(t, NewErrNodeNotFound("/a/b"), ErrNodeNotFound)

	err := NewErrLockTimeout("/configserver/v1/locks/job", time.Second)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.EqualError(t, err, "timed out acquiring lock /configserver/v1/locks/job after 1s")
}
