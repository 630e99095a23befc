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

// Package maintenance runs the periodic jobs of the config server.
//
// Every job runs in a Maintainer. Maintainers of the same job on different
// servers are staggered over the job interval and exclude each other through
// a job lock in the coordination store, so a job normally runs once per
// interval in the whole cluster. A JobControl owns the Maintainers of one
// process and can disable jobs cluster wide through a flag.
package maintenance

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/filedistribution"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/internal/errorschain"
	"github.com/tochemey/configserver/internal/metric"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/tenant"
)

// Intervals are the run intervals of the jobs
type Intervals struct {
	ApplicationPackage time.Duration
	FileDistribution   time.Duration
	OwnershipConfirmer time.Duration
	VersionStatus      time.Duration
}

// DefaultIntervals returns the default job intervals
func DefaultIntervals() Intervals {
	return Intervals{
		ApplicationPackage: time.Minute,
		FileDistribution:   60 * time.Minute,
		OwnershipConfirmer: 12 * time.Hour,
		VersionStatus:      30 * time.Minute,
	}
}

// Dependencies are the collaborators of the jobs
type Dependencies struct {
	Store      coordination.Store
	Tenants    *tenant.Repository
	Flags      flags.Source
	Directory  *filedistribution.Directory
	Downloader filedistribution.Downloader
	// Issues enables the ownership confirmer when set
	Issues OwnershipIssues
	// SystemVersion is the platform version of this server
	SystemVersion string
	// Hostname and ClusterHostnames stagger the jobs
	Hostname         string
	ClusterHostnames []string
	Intervals        Intervals
	// KeepUnusedFileReferences is how long unused packages are kept
	KeepUnusedFileReferences time.Duration
	JobMetrics               JobMetrics
	VersionMetric            *metric.VersionMetric
	Logger                   log.Logger
}

// Maintenance creates, starts and closes the Maintainers of a process
type Maintenance struct {
	control     *JobControl
	maintainers []*Maintainer
	logger      log.Logger
}

// New creates the Maintainers of every job the dependencies allow
func New(deps Dependencies) (*Maintenance, error) {
	if deps.Store == nil || deps.Tenants == nil || deps.Flags == nil || deps.Directory == nil {
		return nil, errors.New("maintenance needs a store, tenants, flags and a file reference directory")
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	intervals := deps.Intervals
	defaults := DefaultIntervals()
	if intervals.ApplicationPackage <= 0 {
		intervals.ApplicationPackage = defaults.ApplicationPackage
	}
	if intervals.FileDistribution <= 0 {
		intervals.FileDistribution = defaults.FileDistribution
	}
	if intervals.OwnershipConfirmer <= 0 {
		intervals.OwnershipConfirmer = defaults.OwnershipConfirmer
	}
	if intervals.VersionStatus <= 0 {
		intervals.VersionStatus = defaults.VersionStatus
	}

	downloader := deps.Downloader
	if downloader == nil {
		downloader = filedistribution.NewPeerDownloader(deps.Directory, nil, filedistribution.WithDownloaderLogger(logger))
	}

	control := NewJobControl(deps.Store, deps.Flags, WithJobControlLogger(logger))
	type scheduled struct {
		job      Job
		interval time.Duration
	}
	jobs := []scheduled{
		{NewApplicationPackageMaintainer(deps.Tenants, deps.Directory, downloader, deps.Flags, logger), intervals.ApplicationPackage},
		{NewFileDistributionMaintainer(deps.Tenants, deps.Directory, deps.KeepUnusedFileReferences, nil, logger), intervals.FileDistribution},
		{NewVersionStatusUpdater(deps.Tenants, deps.Store, deps.SystemVersion, intervals.VersionStatus, deps.VersionMetric, logger), intervals.VersionStatus},
	}
	if deps.Issues != nil {
		jobs = append(jobs, scheduled{NewOwnershipConfirmer(deps.Tenants, deps.Store, deps.Issues, nil, logger), intervals.OwnershipConfirmer})
	}

	maintenance := &Maintenance{control: control, logger: logger}
	for _, j := range jobs {
		maintainer, err := NewMaintainer(j.job, control, j.interval,
			WithCluster(deps.Hostname, deps.ClusterHostnames),
			WithJobMetrics(deps.JobMetrics),
			WithLogger(logger))
		if err != nil {
			return nil, err
		}
		maintenance.maintainers = append(maintenance.maintainers, maintainer)
	}
	return maintenance, nil
}

// JobControl returns the JobControl of the Maintainers
func (m *Maintenance) JobControl() *JobControl {
	return m.control
}

// Maintainers returns the Maintainers
func (m *Maintenance) Maintainers() []*Maintainer {
	return m.maintainers
}

// Start starts every Maintainer. On failure the ones started are closed.
func (m *Maintenance) Start(ctx context.Context) error {
	// the schedulers live as long as ctx, not as long as the group
	var eg errgroup.Group
	for _, maintainer := range m.maintainers {
		eg.Go(func() error {
			return maintainer.Start(ctx)
		})
	}
	if err := eg.Wait(); err != nil {
		_ = m.Close()
		return err
	}
	m.logger.Infof("Started %d maintainers", len(m.maintainers))
	return nil
}

// Close closes every Maintainer and returns the combined errors
func (m *Maintenance) Close() error {
	chain := errorschain.New(errorschain.ReturnAll())
	for _, maintainer := range m.maintainers {
		chain.AddStep(maintainer.Close)
	}
	return chain.Error()
}
