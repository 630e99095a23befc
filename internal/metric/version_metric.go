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

package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	versionKey    = attribute.Key("version")
	confidenceKey = attribute.Key("confidence")
)

// VersionMetric reports the platform versions in use
type VersionMetric struct {
	systemVersion metric.Int64Gauge
	inUse         metric.Int64Gauge
}

// NewVersionMetric creates the version instruments on meter
func NewVersionMetric(meter metric.Meter) (*VersionMetric, error) {
	versionMetric := new(VersionMetric)
	var err error

	if versionMetric.systemVersion, err = meter.Int64Gauge(
		"configserver.system_version",
		metric.WithDescription("Always 1, the system version and its confidence are attributes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create systemVersion instrument, %w", err)
	}

	if versionMetric.inUse, err = meter.Int64Gauge(
		"configserver.platform_versions",
		metric.WithDescription("Number of active sessions per platform version"),
	); err != nil {
		return nil, fmt.Errorf("failed to create inUse instrument, %w", err)
	}

	return versionMetric, nil
}

// RecordSystemVersion reports the computed system version
func (m *VersionMetric) RecordSystemVersion(ctx context.Context, version, confidence string) {
	m.systemVersion.Record(ctx, 1, metric.WithAttributes(versionKey.String(version), confidenceKey.String(confidence)))
}

// RecordInUse reports how many active sessions run version
func (m *VersionMetric) RecordInUse(ctx context.Context, version string, count int64) {
	m.inUse.Record(ctx, count, metric.WithAttributes(versionKey.String(version)))
}
