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
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	quartzjob "github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/internal/validation"
	"github.com/tochemey/configserver/log"
)

// DefaultCloseTimeout bounds the wait for an in-flight tick on Close
const DefaultCloseTimeout = 30 * time.Second

// Job is the work of a Maintainer
type Job interface {
	// Name returns the job name. It is used as lock path segment and metric attribute.
	Name() string
	// Maintain runs the job once and reports whether it succeeded
	Maintain(ctx context.Context) (bool, error)
}

// NewJob creates a Job from a function
func NewJob(name string, maintain func(ctx context.Context) (bool, error)) Job {
	return funcJob{name: name, maintain: maintain}
}

type funcJob struct {
	name     string
	maintain func(ctx context.Context) (bool, error)
}

func (j funcJob) Name() string                               { return j.name }
func (j funcJob) Maintain(ctx context.Context) (bool, error) { return j.maintain(ctx) }

// JobMetrics receives the outcome of every run
type JobMetrics interface {
	Record(ctx context.Context, job string, success bool, startedAt time.Time, took time.Duration)
}

type noopJobMetrics struct{}

func (noopJobMetrics) Record(context.Context, string, bool, time.Time, time.Duration) {}

// Maintainer runs a Job periodically. Ticks are staggered across the cluster
// hosts and mutually exclusive across processes through the job lock.
type Maintainer struct {
	job              Job
	control          *JobControl
	interval         time.Duration
	hostname         string
	clusterHostnames []string
	closeTimeout     time.Duration
	clock            func() time.Time
	metrics          JobMetrics
	logger           log.Logger

	scheduler quartz.Scheduler
	running   *atomic.Bool
	started   *atomic.Bool

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// MaintainerOption configures a Maintainer
type MaintainerOption func(*Maintainer)

// WithCluster sets the host the Maintainer runs on and the ordered hosts of the cluster
func WithCluster(hostname string, clusterHostnames []string) MaintainerOption {
	return func(m *Maintainer) {
		m.hostname = hostname
		m.clusterHostnames = clusterHostnames
	}
}

// WithJobMetrics sets the metrics sink
func WithJobMetrics(metrics JobMetrics) MaintainerOption {
	return func(m *Maintainer) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithCloseTimeout sets how long Close waits for an in-flight tick
func WithCloseTimeout(timeout time.Duration) MaintainerOption {
	return func(m *Maintainer) {
		if timeout > 0 {
			m.closeTimeout = timeout
		}
	}
}

// WithClock sets the clock
func WithClock(clock func() time.Time) MaintainerOption {
	return func(m *Maintainer) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) MaintainerOption {
	return func(m *Maintainer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMaintainer creates a Maintainer running job every interval
func NewMaintainer(job Job, control *JobControl, interval time.Duration, opts ...MaintainerOption) (*Maintainer, error) {
	if job == nil || control == nil {
		return nil, errors.New("a maintainer needs a job and a job control")
	}

	if err := validation.NewSegmentValidator("job", job.Name()).Validate(); err != nil {
		return nil, gerrors.NewValidationError(err)
	}
	if err := validation.NewPositiveDurationValidator("interval", interval).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", gerrors.ErrInvalidInterval, err)
	}

	maintainer := &Maintainer{
		job:          job,
		control:      control,
		interval:     interval,
		closeTimeout: DefaultCloseTimeout,
		clock:        time.Now,
		metrics:      noopJobMetrics{},
		logger:       log.DefaultLogger,
		running:      atomic.NewBool(false),
		started:      atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(maintainer)
	}
	maintainer.logger = maintainer.logger.With("job", job.Name())
	return maintainer, nil
}

// Name returns the job name
func (m *Maintainer) Name() string {
	return m.job.Name()
}

// Interval returns the tick interval
func (m *Maintainer) Interval() time.Duration {
	return m.interval
}

// InitialDelay returns the delay before the first tick when started now
func (m *Maintainer) InitialDelay() time.Duration {
	return StaggeredDelay(m.interval, m.clock(), m.hostname, m.clusterHostnames)
}

// Start schedules the ticks and registers the Maintainer with its JobControl
func (m *Maintainer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return gerrors.ErrMaintainerClosed
	}
	if m.started.Load() {
		return nil
	}

	if err := m.control.register(m); err != nil {
		return err
	}

	scheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		m.control.deregister(m)
		return fmt.Errorf("failed to create the scheduler of %s: %w", m.Name(), err)
	}

	// ticks must finish their run even when the scheduler stops
	tickCtx := context.WithoutCancel(ctx)
	tick := quartzjob.NewFunctionJob[TickResult](func(context.Context) (TickResult, error) {
		if !m.enter() {
			return TickResult{Outcome: Inactive}, nil
		}
		defer m.inflight.Done()
		return m.Tick(tickCtx), nil
	})

	scheduler.Start(ctx)
	delay := m.InitialDelay()
	detail := quartz.NewJobDetail(tick, quartz.NewJobKey(m.Name()))
	if err := scheduler.ScheduleJob(detail, newStaggeredTrigger(delay, m.interval)); err != nil {
		scheduler.Stop()
		scheduler.Wait(ctx)
		m.control.deregister(m)
		return fmt.Errorf("failed to schedule %s: %w", m.Name(), err)
	}

	m.scheduler = scheduler
	m.started.Store(true)
	m.logger.Infof("%s scheduled every %s, first run in %s", m.Name(), m.interval, delay)
	return nil
}

// Tick runs the job once: it skips when the job is inactive or locked by
// another process, otherwise runs it under the job lock and records the
// outcome. Tick never panics.
func (m *Maintainer) Tick(ctx context.Context) TickResult {
	name := m.Name()
	if !m.control.IsActive(name) {
		return TickResult{Outcome: Inactive}
	}

	// a run longer than the interval makes the next tick overlap it
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Debugf("%s is still running, skipping tick", name)
		return TickResult{Outcome: Busy}
	}
	defer m.running.Store(false)

	lock, err := m.control.LockJob(ctx, name)
	if err != nil {
		if errors.Is(err, gerrors.ErrLockTimeout) {
			m.logger.Debugf("%s is running on another server, skipping tick", name)
			return TickResult{Outcome: LockTimeout}
		}
		m.logger.Warnf("%s failed to take its lock: %v. Will retry in %s", name, err, retryIn(m.interval))
		return TickResult{Outcome: RunFailed, Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warnf("failed to release lock %s: %v", lock.Path(), err)
		}
	}()

	startedAt := m.clock()
	success := false
	defer func() {
		m.metrics.Record(ctx, name, success, startedAt, m.clock().Sub(startedAt))
	}()

	ok, err := m.maintain(ctx)
	if err != nil {
		m.logger.Warnf("%s failed. Will retry in %s: %v", name, retryIn(m.interval), err)
		return TickResult{Outcome: RunFailed, Err: err}
	}
	if !ok {
		return TickResult{Outcome: Unsuccessful}
	}

	success = true
	return TickResult{Outcome: Ok}
}

// Close stops scheduling ticks and waits for an in-flight tick, at most the
// close timeout. A tick still running past it is left to finish on its own.
func (m *Maintainer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	scheduler := m.scheduler
	m.mu.Unlock()

	m.control.deregister(m)

	ctx, cancel := context.WithTimeout(context.Background(), m.closeTimeout)
	defer cancel()

	if scheduler != nil {
		_ = scheduler.Clear()
		scheduler.Stop()
		scheduler.Wait(ctx)
	}

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.started.Store(false)
		return nil
	case <-ctx.Done():
		m.logger.Warnf("%s did not finish within %s, leaving it running", m.Name(), m.closeTimeout)
		return gerrors.NewTimeoutError("close "+m.Name(), ctx.Err())
	}
}

// enter registers an in-flight tick unless the Maintainer is closed
func (m *Maintainer) enter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.inflight.Add(1)
	return true
}

// maintain runs the job and turns a panic into an error
func (m *Maintainer) maintain(ctx context.Context) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debugf("%s panicked: %v\n%s", m.Name(), r, debug.Stack())
			if perr, isErr := r.(error); isErr {
				err = gerrors.NewPanicError(perr)
			} else {
				err = gerrors.NewPanicError(fmt.Errorf("%v", r))
			}
			ok = false
		}
	}()
	return m.job.Maintain(ctx)
}

func retryIn(interval time.Duration) string {
	if interval >= time.Minute {
		return fmt.Sprintf("%d minutes", int64(interval/time.Minute))
	}
	return interval.String()
}
