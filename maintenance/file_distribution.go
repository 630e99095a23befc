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
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tochemey/configserver/filedistribution"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/session"
	"github.com/tochemey/configserver/tenant"
)

const (
	// FileDistributionMaintainerName is the job name of the file distribution maintainer
	FileDistributionMaintainerName = "FileDistributionMaintainer"
	// DefaultKeepUnusedFileReferences is how long an unused package is kept
	DefaultKeepUnusedFileReferences = 14 * 24 * time.Hour
)

// FileDistributionMaintainer deletes the packages no live session uses once
// they have been unused for a while.
type FileDistributionMaintainer struct {
	tenants    *tenant.Repository
	directory  *filedistribution.Directory
	keepUnused time.Duration
	clock      func() time.Time
	logger     log.Logger
}

var _ Job = (*FileDistributionMaintainer)(nil)

// NewFileDistributionMaintainer creates the job. A non positive keepUnused
// selects DefaultKeepUnusedFileReferences.
func NewFileDistributionMaintainer(tenants *tenant.Repository, directory *filedistribution.Directory,
	keepUnused time.Duration, clock func() time.Time, logger log.Logger) *FileDistributionMaintainer {
	if keepUnused <= 0 {
		keepUnused = DefaultKeepUnusedFileReferences
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &FileDistributionMaintainer{
		tenants:    tenants,
		directory:  directory,
		keepUnused: keepUnused,
		clock:      clock,
		logger:     logger,
	}
}

// Name implements Job
func (j *FileDistributionMaintainer) Name() string {
	return FileDistributionMaintainerName
}

// Maintain implements Job
func (j *FileDistributionMaintainer) Maintain(ctx context.Context) (bool, error) {
	inUse, err := j.referencesInUse(ctx)
	if err != nil {
		return false, err
	}

	deleted, err := j.directory.DeleteUnused(inUse, j.keepUnused, j.clock())
	if len(deleted) > 0 {
		j.logger.Infof("Deleted %d unused file references", len(deleted))
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// referencesInUse returns the packages of every session that is, or may become, active
func (j *FileDistributionMaintainer) referencesInUse(ctx context.Context) (mapset.Set[filedistribution.FileReference], error) {
	tenants, err := j.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	inUse := mapset.NewThreadUnsafeSet[filedistribution.FileReference]()
	for _, t := range tenants {
		sessions, err := t.Sessions.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range sessions {
			switch s.Status {
			case session.StatusNew, session.StatusPrepare, session.StatusActivate:
				inUse.Add(s.PackageReference)
			}
		}
	}
	return inUse, nil
}
