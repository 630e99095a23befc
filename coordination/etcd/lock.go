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

package etcd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/atomic"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// lock is a held concurrency.Mutex together with the session (lease) backing it.
// Every lock gets its own session: mutexes sharing a session and a prefix
// would treat each other as the same owner.
type lock struct {
	path     string
	session  *concurrency.Session
	mutex    *concurrency.Mutex
	timeout  time.Duration
	released *atomic.Bool
}

var _ coordination.Lock = (*lock)(nil)

// Lock acquires the exclusive lock at path, waiting at most timeout.
// The lock lease expires LockTTL after its holder stops renewing it.
func (s *Store) Lock(ctx context.Context, path string, timeout time.Duration) (coordination.Lock, error) {
	if err := s.ready(path); err != nil {
		return nil, err
	}

	session, err := concurrency.NewSession(s.client,
		concurrency.WithTTL(s.lockTTLSeconds()),
		concurrency.WithContext(s.config.Context))
	if err != nil {
		return nil, fmt.Errorf("coordination/etcd: failed to create lock session: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mutex := concurrency.NewMutex(session, path)
	if err := mutex.Lock(waitCtx); err != nil {
		_ = session.Close()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, gerrors.NewErrLockTimeout(path, timeout)
		}
		return nil, fmt.Errorf("coordination/etcd: failed to acquire lock %s: %w", path, err)
	}

	return &lock{
		path:     path,
		session:  session,
		mutex:    mutex,
		timeout:  s.config.Timeout,
		released: atomic.NewBool(false),
	}, nil
}

// Path returns the lock path
func (l *lock) Path() string {
	return l.path
}

// Release unlocks the mutex and revokes the lease. Subsequent calls are no-ops.
func (l *lock) Release(ctx context.Context) error {
	if l.released.Swap(true) {
		return nil
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	var err error
	if uerr := l.mutex.Unlock(opCtx); uerr != nil {
		err = fmt.Errorf("coordination/etcd: failed to release lock %s: %w", l.path, uerr)
	}
	if cerr := l.session.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("coordination/etcd: failed to close lock session: %w", cerr))
	}
	return err
}
