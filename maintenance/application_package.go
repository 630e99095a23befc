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

	"github.com/tochemey/configserver/filedistribution"
	"github.com/tochemey/configserver/flags"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/tenant"
)

// ApplicationPackageMaintainerName is the job name of the application package maintainer
const ApplicationPackageMaintainerName = "ApplicationPackageMaintainer"

var distributeApplicationPackage = flags.NewBooleanFlag(flags.DistributeApplicationPackage, false)

// ApplicationPackageMaintainer makes sure the packages of the active sessions
// are present on this server, and that each has a local session.
type ApplicationPackageMaintainer struct {
	tenants    *tenant.Repository
	directory  *filedistribution.Directory
	downloader filedistribution.Downloader
	flags      flags.Source
	logger     log.Logger
}

var _ Job = (*ApplicationPackageMaintainer)(nil)

// NewApplicationPackageMaintainer creates the job
func NewApplicationPackageMaintainer(tenants *tenant.Repository, directory *filedistribution.Directory,
	downloader filedistribution.Downloader, source flags.Source, logger log.Logger) *ApplicationPackageMaintainer {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &ApplicationPackageMaintainer{
		tenants:    tenants,
		directory:  directory,
		downloader: downloader,
		flags:      source,
		logger:     logger,
	}
}

// Name implements Job
func (j *ApplicationPackageMaintainer) Name() string {
	return ApplicationPackageMaintainerName
}

// Maintain implements Job. It does nothing unless the distribution flag is on.
func (j *ApplicationPackageMaintainer) Maintain(ctx context.Context) (bool, error) {
	if !distributeApplicationPackage.Value(j.flags) {
		return true, nil
	}

	active, err := activeSessions(ctx, j.tenants)
	if err != nil {
		return false, err
	}

	failures := 0
	for _, a := range active {
		ref := a.session.PackageReference
		present, err := j.directory.Has(ref)
		if err != nil {
			j.logger.Warnf("failed to look up application package %s of %s: %v", ref, a.session.ApplicationID, err)
			failures++
			continue
		}

		if !present {
			j.logger.Infof("Downloading application package %s of %s", ref, a.session.ApplicationID)
			if _, ok := j.downloader.GetFile(ctx, ref); !ok {
				j.logger.Warnf("Failed to download application package %s of %s", ref, a.session.ApplicationID)
				failures++
				continue
			}
		}

		if !a.tenant.Sessions.HasLocalSession(a.session.ID) {
			if err := a.tenant.Sessions.CreateLocalSessionFromDistributedPackage(ctx, a.session.ID); err != nil {
				j.logger.Warnf("Failed to create local session %d of %s: %v", a.session.ID, a.session.ApplicationID, err)
				failures++
			}
		}
	}
	return failures == 0, nil
}
