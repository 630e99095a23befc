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

package boltdb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// lockTable keeps one single-permit semaphore per lock path
type lockTable struct {
	mu     sync.Mutex
	paths  map[string]*semaphore.Weighted
	owners map[string]string
}

func newLockTable() *lockTable {
	return &lockTable{
		paths:  make(map[string]*semaphore.Weighted),
		owners: make(map[string]string),
	}
}

func (t *lockTable) semaphore(path string) *semaphore.Weighted {
	t.mu.Lock()
	defer t.mu.Unlock()
	sem, ok := t.paths[path]
	if !ok {
		sem = semaphore.NewWeighted(1)
		t.paths[path] = sem
	}
	return sem
}

func (t *lockTable) setOwner(path, token string) {
	t.mu.Lock()
	t.owners[path] = token
	t.mu.Unlock()
}

func (t *lockTable) owner(path string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owners[path]
}

func (t *lockTable) clearOwner(path, token string) {
	t.mu.Lock()
	if t.owners[path] == token {
		delete(t.owners, path)
	}
	t.mu.Unlock()
}

// lock is a held path lock
type lock struct {
	table *lockTable
	sem   *semaphore.Weighted
	path  string
	token string
	held  *atomic.Bool
}

var _ coordination.Lock = (*lock)(nil)

// Lock acquires the exclusive lock at path, waiting at most timeout
func (s *Store) Lock(ctx context.Context, path string, timeout time.Duration) (coordination.Lock, error) {
	if err := s.ready(ctx, path); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sem := s.locks.semaphore(path)
	if err := sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, gerrors.NewErrLockTimeout(path, timeout)
		}
		return nil, err
	}

	token := uuid.NewString()
	s.locks.setOwner(path, token)
	return &lock{
		table: s.locks,
		sem:   sem,
		path:  path,
		token: token,
		held:  atomic.NewBool(true),
	}, nil
}

// Path returns the lock path
func (l *lock) Path() string {
	return l.path
}

// Release gives the lock up. Subsequent calls are no-ops.
func (l *lock) Release(context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return nil
	}
	l.table.clearOwner(l.path, l.token)
	l.sem.Release(1)
	return nil
}

func (l *lock) isHeld() bool {
	return l.held.Load() && l.table.owner(l.path) == l.token
}
