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
	"fmt"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/log"
)

const (
	// LockRoot is the parent node of the job locks
	LockRoot = "/configserver/v1/locks"
	// DefaultLockTimeout bounds the wait for a job lock. Another server
	// holding it is the normal case, so the wait is short.
	DefaultLockTimeout = time.Second
)

var inactiveJobs = flags.NewListFlag(flags.InactiveMaintenanceJobs)

// JobControl decides whether jobs may run and keeps the registry of the
// started Maintainers of a process.
type JobControl struct {
	store       coordination.Store
	flags       flags.Source
	lockTimeout time.Duration
	logger      log.Logger

	mu          sync.RWMutex
	maintainers map[string]*Maintainer
}

// JobControlOption configures a JobControl
type JobControlOption func(*JobControl)

// WithLockTimeout sets the wait for job locks
func WithLockTimeout(timeout time.Duration) JobControlOption {
	return func(c *JobControl) {
		if timeout > 0 {
			c.lockTimeout = timeout
		}
	}
}

// WithJobControlLogger sets the logger
func WithJobControlLogger(logger log.Logger) JobControlOption {
	return func(c *JobControl) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewJobControl creates a JobControl locking jobs in store and reading the
// inactive jobs from source
func NewJobControl(store coordination.Store, source flags.Source, opts ...JobControlOption) *JobControl {
	control := &JobControl{
		store:       store,
		flags:       source,
		lockTimeout: DefaultLockTimeout,
		logger:      log.DefaultLogger,
		maintainers: make(map[string]*Maintainer),
	}
	for _, opt := range opts {
		opt(control)
	}
	return control
}

// InactiveJobs returns the jobs disabled cluster wide
func (c *JobControl) InactiveJobs() mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(inactiveJobs.Value(c.flags)...)
}

// IsActive reports whether job may run. The flag is refreshed periodically, a
// change takes effect within one refresh interval.
func (c *JobControl) IsActive(job string) bool {
	return !c.InactiveJobs().Contains(job)
}

// LockPath returns the lock path of job
func LockPath(job string) string {
	return coordination.Join(LockRoot, job)
}

// LockJob takes the cluster wide lock of job. It returns an error matching
// errors.ErrLockTimeout when another process holds it.
func (c *JobControl) LockJob(ctx context.Context, job string) (coordination.Lock, error) {
	return c.store.Lock(ctx, LockPath(job), c.lockTimeout)
}

// Jobs returns the names of the started Maintainers, sorted
func (c *JobControl) Jobs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.maintainers))
	for name := range c.maintainers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run runs one tick of job now, on this process
func (c *JobControl) Run(ctx context.Context, job string) (TickResult, error) {
	c.mu.RLock()
	maintainer, ok := c.maintainers[job]
	c.mu.RUnlock()
	if !ok {
		return TickResult{}, fmt.Errorf("job %s: %w", job, gerrors.ErrJobNotFound)
	}
	return maintainer.Tick(ctx), nil
}

func (c *JobControl) register(maintainer *Maintainer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.maintainers[maintainer.Name()]; ok {
		return fmt.Errorf("maintainer %s is already started", maintainer.Name())
	}
	c.maintainers[maintainer.Name()] = maintainer
	return nil
}

func (c *JobControl) deregister(maintainer *Maintainer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maintainers[maintainer.Name()] == maintainer {
		delete(c.maintainers, maintainer.Name())
	}
}
