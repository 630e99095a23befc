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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	tenantKey = attribute.Key("tenant")
	reasonKey = attribute.Key("reason")
)

// DeploymentMetric defines the deployment instrumentation
type DeploymentMetric struct {
	// prepare wall time in milliseconds
	prepareDuration metric.Float64Histogram
	// activate wall time in milliseconds, lock wait included
	activateDuration metric.Float64Histogram
	// rejected activations by conflict reason
	conflicts metric.Int64Counter
}

// NewDeploymentMetric creates the deployment instruments on meter
func NewDeploymentMetric(meter metric.Meter) (*DeploymentMetric, error) {
	deploymentMetric := new(DeploymentMetric)
	var err error

	if deploymentMetric.prepareDuration, err = meter.Float64Histogram(
		"deployment.prepare.duration",
		metric.WithDescription("Duration of session prepare"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create prepareDuration instrument, %w", err)
	}

	if deploymentMetric.activateDuration, err = meter.Float64Histogram(
		"deployment.activate.duration",
		metric.WithDescription("Duration of session activation"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create activateDuration instrument, %w", err)
	}

	if deploymentMetric.conflicts, err = meter.Int64Counter(
		"deployment.activate.conflicts",
		metric.WithDescription("Total number of rejected activations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create conflicts instrument, %w", err)
	}

	return deploymentMetric, nil
}

// RecordPrepare records the duration of a prepare for tenant
func (m *DeploymentMetric) RecordPrepare(ctx context.Context, tenant string, took time.Duration) {
	m.prepareDuration.Record(ctx, millis(took), metric.WithAttributes(tenantKey.String(tenant)))
}

// RecordActivate records the duration of an activation for tenant
func (m *DeploymentMetric) RecordActivate(ctx context.Context, tenant string, took time.Duration) {
	m.activateDuration.Record(ctx, millis(took), metric.WithAttributes(tenantKey.String(tenant)))
}

// RecordConflict counts a rejected activation
func (m *DeploymentMetric) RecordConflict(ctx context.Context, tenant, reason string) {
	m.conflicts.Add(ctx, 1, metric.WithAttributes(tenantKey.String(tenant), reasonKey.String(reason)))
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
