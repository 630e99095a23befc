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
	jobKey     = attribute.Key("job")
	outcomeKey = attribute.Key("outcome")

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// JobMetric defines the maintenance job instrumentation:
//
//   - maintenance.job.runs      (Int64Counter, attributes job and outcome)
//   - maintenance.job.last_run  (Int64Gauge, unix seconds, attribute job)
//   - maintenance.job.duration  (Float64Histogram, unit "ms", attribute job)
type JobMetric struct {
	runs     metric.Int64Counter
	lastRun  metric.Int64Gauge
	duration metric.Float64Histogram
}

// NewJobMetric creates the job instruments on meter
func NewJobMetric(meter metric.Meter) (*JobMetric, error) {
	jobMetric := new(JobMetric)
	var err error

	if jobMetric.runs, err = meter.Int64Counter(
		"maintenance.job.runs",
		metric.WithDescription("Total number of maintenance job runs by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs instrument, %w", err)
	}

	if jobMetric.lastRun, err = meter.Int64Gauge(
		"maintenance.job.last_run",
		metric.WithDescription("Unix time of the last maintenance job run"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create lastRun instrument, %w", err)
	}

	if jobMetric.duration, err = meter.Float64Histogram(
		"maintenance.job.duration",
		metric.WithDescription("Duration of maintenance job runs"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create duration instrument, %w", err)
	}

	return jobMetric, nil
}

// Record forwards the outcome of one run of job
func (m *JobMetric) Record(ctx context.Context, job string, success bool, startedAt time.Time, took time.Duration) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(jobKey.String(job), outcomeKey.String(outcome)))
	m.lastRun.Record(ctx, startedAt.Unix(), metric.WithAttributes(jobKey.String(job)))
	m.duration.Record(ctx, float64(took)/float64(time.Millisecond), metric.WithAttributes(jobKey.String(job)))
}
