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
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/application"
	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
)

// issuesRoot is the parent node of the issues of StoreIssueTracker
const issuesRoot = "/configserver/v1/issues"

// OwnershipIssues is the issue tracker ownership confirmations are filed in
type OwnershipIssues interface {
	// File opens an ownership confirmation issue for id and returns the issue id
	File(ctx context.Context, id application.ID) (string, error)
	// Escalate raises the priority of an unanswered issue
	Escalate(ctx context.Context, issueID string) error
	// Owner returns the owner confirmed on the issue. The second result is
	// false while nobody answered.
	Owner(ctx context.Context, issueID string) (string, bool, error)
}

// StoreIssueTracker keeps ownership issues in the coordination store.
// Operators answer them with Confirm.
type StoreIssueTracker struct {
	store coordination.Store
}

var _ OwnershipIssues = (*StoreIssueTracker)(nil)

// NewStoreIssueTracker creates a StoreIssueTracker
func NewStoreIssueTracker(store coordination.Store) *StoreIssueTracker {
	return &StoreIssueTracker{store: store}
}

// File implements OwnershipIssues
func (t *StoreIssueTracker) File(ctx context.Context, id application.ID) (string, error) {
	issueID := uuid.NewString()
	issue, err := structpb.NewStruct(map[string]any{
		"application": id.SerializedForm(),
		"escalated":   false,
	})
	if err != nil {
		return "", err
	}
	if err := t.write(ctx, issueID, issue); err != nil {
		return "", err
	}
	return issueID, nil
}

// Escalate implements OwnershipIssues
func (t *StoreIssueTracker) Escalate(ctx context.Context, issueID string) error {
	issue, err := t.Issue(ctx, issueID)
	if err != nil {
		return err
	}
	issue.Fields["escalated"] = structpb.NewBoolValue(true)
	return t.write(ctx, issueID, issue)
}

// Owner implements OwnershipIssues
func (t *StoreIssueTracker) Owner(ctx context.Context, issueID string) (string, bool, error) {
	issue, err := t.Issue(ctx, issueID)
	if err != nil {
		return "", false, err
	}
	owner := issue.GetFields()["owner"].GetStringValue()
	return owner, owner != "", nil
}

// Confirm answers issueID with owner
func (t *StoreIssueTracker) Confirm(ctx context.Context, issueID, owner string) error {
	issue, err := t.Issue(ctx, issueID)
	if err != nil {
		return err
	}
	issue.Fields["owner"] = structpb.NewStringValue(owner)
	return t.write(ctx, issueID, issue)
}

// Issue reads issueID
func (t *StoreIssueTracker) Issue(ctx context.Context, issueID string) (*structpb.Struct, error) {
	node, err := t.store.Get(ctx, coordination.Join(issuesRoot, issueID))
	if err != nil {
		return nil, err
	}
	issue := new(structpb.Struct)
	if err := protojson.Unmarshal(node.Data, issue); err != nil {
		return nil, fmt.Errorf("invalid issue %s: %w", issueID, err)
	}
	if issue.Fields == nil {
		issue.Fields = map[string]*structpb.Value{}
	}
	return issue, nil
}

func (t *StoreIssueTracker) write(ctx context.Context, issueID string, issue *structpb.Struct) error {
	data, err := protojson.Marshal(issue)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, coordination.Join(issuesRoot, issueID), data)
}

// ownershipRoot is the parent node of the ownership records
const ownershipRoot = "/configserver/v1/ownership"

// Ownership is the ownership state of one application
type Ownership struct {
	// IssueID is the open confirmation issue, empty when none is open
	IssueID string
	// FiledAt is when the open issue was filed
	FiledAt time.Time
	// Escalated tells whether the open issue was escalated
	Escalated bool
	// Owner is the last confirmed owner
	Owner string
	// ConfirmedAt is when Owner was confirmed
	ConfirmedAt time.Time
}

// ownershipStore reads and writes Ownership records
type ownershipStore struct {
	store coordination.Store
}

func ownershipPath(id application.ID) string {
	return coordination.Join(ownershipRoot, id.SerializedForm())
}

func (s ownershipStore) read(ctx context.Context, id application.ID) (Ownership, error) {
	node, err := s.store.Get(ctx, ownershipPath(id))
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return Ownership{}, nil
		}
		return Ownership{}, err
	}

	record := new(structpb.Struct)
	if err := protojson.Unmarshal(node.Data, record); err != nil {
		return Ownership{}, fmt.Errorf("invalid ownership of %s: %w", id, err)
	}
	fields := record.GetFields()
	return Ownership{
		IssueID:     fields["issueId"].GetStringValue(),
		FiledAt:     unixTime(fields["filedAt"].GetNumberValue()),
		Escalated:   fields["escalated"].GetBoolValue(),
		Owner:       fields["owner"].GetStringValue(),
		ConfirmedAt: unixTime(fields["confirmedAt"].GetNumberValue()),
	}, nil
}

func (s ownershipStore) write(ctx context.Context, id application.ID, ownership Ownership) error {
	record, err := structpb.NewStruct(map[string]any{
		"issueId":     ownership.IssueID,
		"filedAt":     epochSeconds(ownership.FiledAt),
		"escalated":   ownership.Escalated,
		"owner":       ownership.Owner,
		"confirmedAt": epochSeconds(ownership.ConfirmedAt),
	})
	if err != nil {
		return err
	}
	data, err := protojson.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, ownershipPath(id), data)
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix())
}

func unixTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(int64(seconds), 0).UTC()
}
