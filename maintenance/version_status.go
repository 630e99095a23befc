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

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/configserver/coordination"
	gerrors "github.com/tochemey/configserver/errors"
	"github.com/tochemey/configserver/internal/metric"
	"github.com/tochemey/configserver/log"
	"github.com/tochemey/configserver/tenant"
)

const (
	// VersionStatusUpdaterName is the job name of the version status updater
	VersionStatusUpdaterName = "VersionStatusUpdater"
	// VersionStatusPath is where the version status is stored
	VersionStatusPath = "/configserver/v1/versionStatus"
)

// Confidence tells how well the system version is rolled out
type Confidence string

const (
	// ConfidenceLow means less than half of the applications run the system version
	ConfidenceLow Confidence = "low"
	// ConfidenceNormal means at least half of the applications run it
	ConfidenceNormal Confidence = "normal"
	// ConfidenceHigh means nearly every application runs it
	ConfidenceHigh Confidence = "high"
)

// VersionStatus is the platform versions in use by the active sessions
type VersionStatus struct {
	SystemVersion string
	Confidence    Confidence
	// Versions maps a platform version to the number of applications on it
	Versions map[string]int64
	UpdatedAt time.Time
}

// VersionStatusUpdater computes the versions in use and stores the status
type VersionStatusUpdater struct {
	tenants       *tenant.Repository
	store         coordination.Store
	systemVersion string
	interval      time.Duration
	metrics       *metric.VersionMetric
	clock         func() time.Time
	logger        log.Logger
}

var _ Job = (*VersionStatusUpdater)(nil)

// NewVersionStatusUpdater creates the job. interval is only used in log messages.
func NewVersionStatusUpdater(tenants *tenant.Repository, store coordination.Store, systemVersion string,
	interval time.Duration, metrics *metric.VersionMetric, logger log.Logger) *VersionStatusUpdater {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &VersionStatusUpdater{
		tenants:       tenants,
		store:         store,
		systemVersion: systemVersion,
		interval:      interval,
		metrics:       metrics,
		clock:         time.Now,
		logger:        logger,
	}
}

// Name implements Job
func (j *VersionStatusUpdater) Name() string {
	return VersionStatusUpdaterName
}

// Maintain implements Job
func (j *VersionStatusUpdater) Maintain(ctx context.Context) (bool, error) {
	status, err := j.compute(ctx)
	if err == nil {
		err = writeVersionStatus(ctx, j.store, status)
	}
	if err != nil {
		j.logger.Warnf("Failed to compute version status: %v. Retrying in %s", err, j.interval)
		return false, nil
	}

	if j.metrics != nil {
		j.metrics.RecordSystemVersion(ctx, status.SystemVersion, string(status.Confidence))
		for version, count := range status.Versions {
			j.metrics.RecordInUse(ctx, version, count)
		}
	}
	return true, nil
}

func (j *VersionStatusUpdater) compute(ctx context.Context) (*VersionStatus, error) {
	active, err := activeSessions(ctx, j.tenants)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]int64)
	for _, a := range active {
		if a.session.Version == "" {
			continue
		}
		versions[a.session.Version]++
	}

	return &VersionStatus{
		SystemVersion: j.systemVersion,
		Confidence:    confidence(versions, j.systemVersion),
		Versions:      versions,
		UpdatedAt:     j.clock().UTC().Truncate(time.Second),
	}, nil
}

// confidence grades the share of applications on the system version
func confidence(versions map[string]int64, systemVersion string) Confidence {
	var total int64
	for _, count := range versions {
		total += count
	}
	if total == 0 {
		return ConfidenceNormal
	}

	share := float64(versions[systemVersion]) / float64(total)
	switch {
	case share >= 0.9:
		return ConfidenceHigh
	case share >= 0.5:
		return ConfidenceNormal
	default:
		return ConfidenceLow
	}
}

// ReadVersionStatus reads the last stored version status
func ReadVersionStatus(ctx context.Context, store coordination.Store) (*VersionStatus, bool, error) {
	node, err := store.Get(ctx, VersionStatusPath)
	if err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	record := new(structpb.Struct)
	if err := protojson.Unmarshal(node.Data, record); err != nil {
		return nil, false, fmt.Errorf("invalid version status: %w", err)
	}
	fields := record.GetFields()
	status := &VersionStatus{
		SystemVersion: fields["systemVersion"].GetStringValue(),
		Confidence:    Confidence(fields["confidence"].GetStringValue()),
		Versions:      make(map[string]int64),
		UpdatedAt:     time.Unix(int64(fields["updatedAt"].GetNumberValue()), 0).UTC(),
	}
	for version, count := range fields["versions"].GetStructValue().GetFields() {
		status.Versions[version] = int64(count.GetNumberValue())
	}
	return status, true, nil
}

func writeVersionStatus(ctx context.Context, store coordination.Store, status *VersionStatus) error {
	versions := make(map[string]any, len(status.Versions))
	for version, count := range status.Versions {
		versions[version] = count
	}

	record, err := structpb.NewStruct(map[string]any{
		"systemVersion": status.SystemVersion,
		"confidence":    string(status.Confidence),
		"versions":      versions,
		"updatedAt":     status.UpdatedAt.Unix(),
	})
	if err != nil {
		return err
	}
	data, err := protojson.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, VersionStatusPath, data)
}
