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

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/tenant"
)

const (
	// OwnershipConfirmerName is the job name of the application ownership confirmer
	OwnershipConfirmerName = "ApplicationOwnershipConfirmer"
	// OwnershipConfirmationAge is the age from which applications need a confirmed owner,
	// and how long a confirmation lasts
	OwnershipConfirmationAge = 90 * 24 * time.Hour
	// OwnershipEscalationAge is how long an issue may stay unanswered before it is escalated
	OwnershipEscalationAge = 7 * 24 * time.Hour
)

// OwnershipConfirmer asks the owners of old applications to confirm they
// still own them. It files issues, escalates unanswered ones and records the
// confirmed owners.
type OwnershipConfirmer struct {
	tenants *tenant.Repository
	issues  OwnershipIssues
	records ownershipStore
	clock   func() time.Time
	logger  log.Logger
}

var _ Job = (*OwnershipConfirmer)(nil)

// NewOwnershipConfirmer creates the job
func NewOwnershipConfirmer(tenants *tenant.Repository, store coordination.Store, issues OwnershipIssues,
	clock func() time.Time, logger log.Logger) *OwnershipConfirmer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &OwnershipConfirmer{
		tenants: tenants,
		issues:  issues,
		records: ownershipStore{store: store},
		clock:   clock,
		logger:  logger,
	}
}

// Name implements Job
func (j *OwnershipConfirmer) Name() string {
	return OwnershipConfirmerName
}

// Ownership returns the ownership record of id
func (j *OwnershipConfirmer) Ownership(ctx context.Context, id application.ID) (Ownership, error) {
	return j.records.read(ctx, id)
}

// Maintain implements Job. Every step runs, whatever the outcome of the others.
func (j *OwnershipConfirmer) Maintain(ctx context.Context) (bool, error) {
	applications, err := j.oldApplications(ctx)
	if err != nil {
		return false, err
	}

	confirmed := j.confirmApplicationOwnerships(ctx, applications)
	responded := j.ensureConfirmationResponses(ctx, applications)
	updated := j.updateConfirmedApplicationOwners(ctx, applications)
	return confirmed && responded && updated, nil
}

// confirmApplicationOwnerships files an issue for every application with no
// open issue and no recent confirmation
func (j *OwnershipConfirmer) confirmApplicationOwnerships(ctx context.Context, applications []application.ID) bool {
	now := j.clock()
	success := true
	for _, id := range applications {
		record, err := j.records.read(ctx, id)
		if err != nil {
			j.logger.Warnf("Failed to read ownership of %s: %v", id, err)
			success = false
			continue
		}
		if record.IssueID != "" || (!record.ConfirmedAt.IsZero() && now.Sub(record.ConfirmedAt) < OwnershipConfirmationAge) {
			continue
		}

		issueID, err := j.issues.File(ctx, id)
		if err != nil {
			j.logger.Warnf("Failed to file ownership issue for %s: %v", id, err)
			success = false
			continue
		}
		record.IssueID = issueID
		record.FiledAt = now
		record.Escalated = false
		if err := j.records.write(ctx, id, record); err != nil {
			j.logger.Warnf("Failed to store ownership issue %s of %s: %v", issueID, id, err)
			success = false
			continue
		}
		j.logger.Infof("Filed ownership issue %s for %s", issueID, id)
	}
	return success
}

// ensureConfirmationResponses escalates the issues left unanswered too long
func (j *OwnershipConfirmer) ensureConfirmationResponses(ctx context.Context, applications []application.ID) bool {
	now := j.clock()
	success := true
	for _, id := range applications {
		record, err := j.records.read(ctx, id)
		if err != nil {
			j.logger.Warnf("Failed to read ownership of %s: %v", id, err)
			success = false
			continue
		}
		if record.IssueID == "" || record.Escalated || now.Sub(record.FiledAt) < OwnershipEscalationAge {
			continue
		}

		if err := j.issues.Escalate(ctx, record.IssueID); err != nil {
			j.logger.Warnf("Failed to escalate ownership issue %s of %s: %v", record.IssueID, id, err)
			success = false
			continue
		}
		record.Escalated = true
		if err := j.records.write(ctx, id, record); err != nil {
			success = false
			continue
		}
		j.logger.Infof("Escalated ownership issue %s of %s", record.IssueID, id)
	}
	return success
}

// updateConfirmedApplicationOwners stores the owners confirmed on open issues
func (j *OwnershipConfirmer) updateConfirmedApplicationOwners(ctx context.Context, applications []application.ID) bool {
	now := j.clock()
	success := true
	for _, id := range applications {
		record, err := j.records.read(ctx, id)
		if err != nil {
			j.logger.Warnf("Failed to read ownership of %s: %v", id, err)
			success = false
			continue
		}
		if record.IssueID == "" {
			continue
		}

		owner, ok, err := j.issues.Owner(ctx, record.IssueID)
		if err != nil {
			j.logger.Warnf("Failed to read ownership issue %s of %s: %v", record.IssueID, id, err)
			success = false
			continue
		}
		if !ok {
			continue
		}

		record = Ownership{Owner: owner, ConfirmedAt: now}
		if err := j.records.write(ctx, id, record); err != nil {
			success = false
			continue
		}
		j.logger.Infof("Owner of %s confirmed as %s", id, owner)
	}
	return success
}

// oldApplications returns the active applications whose first session is
// older than OwnershipConfirmationAge
func (j *OwnershipConfirmer) oldApplications(ctx context.Context) ([]application.ID, error) {
	tenants, err := j.tenants.List(ctx)
	if err != nil {
		return nil, err
	}

	now := j.clock()
	var old []application.ID
	for _, t := range tenants {
		active, err := t.Applications.ActiveApplications(ctx)
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			continue
		}

		sessions, err := t.Sessions.List(ctx)
		if err != nil {
			return nil, err
		}
		created := make(map[application.ID]time.Time, len(active))
		for _, s := range sessions {
			first, ok := created[s.ApplicationID]
			if !ok || s.CreateTime.Before(first) {
				created[s.ApplicationID] = s.CreateTime
			}
		}

		for _, id := range active {
			if first, ok := created[id]; ok && now.Sub(first) >= OwnershipConfirmationAge {
				old = append(old, id)
			}
		}
	}
	return old, nil
}
