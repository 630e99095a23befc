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
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestJobMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := New(WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	jobMetric, err := NewJobMetric(provider.Meter())
	require.NoError(t, err)

	ctx := context.Background()
	startedAt := time.Unix(1700000000, 0)
	jobMetric.Record(ctx, "FileDistributionMaintainer", true, startedAt, 20*time.Millisecond)
	jobMetric.Record(ctx, "FileDistributionMaintainer", false, startedAt.Add(time.Minute), 10*time.Millisecond)
	jobMetric.Record(ctx, "FileDistributionMaintainer", true, startedAt.Add(2*time.Minute), 10*time.Millisecond)

	metrics := collect(t, reader)

	runs := find[metricdata.Sum[int64]](t, metrics, "maintenance.job.runs")
	counts := map[string]int64{}
	for _, point := range runs.DataPoints {
		outcome, _ := point.Attributes.Value(outcomeKey)
		counts[outcome.AsString()] = point.Value
	}
	assert.Equal(t, map[string]int64{outcomeSuccess: 2, outcomeFailure: 1}, counts)

	lastRun := find[metricdata.Gauge[int64]](t, metrics, "maintenance.job.last_run")
	require.Len(t, lastRun.DataPoints, 1)
	assert.Equal(t, startedAt.Add(2*time.Minute).Unix(), lastRun.DataPoints[0].Value)

	duration := find[metricdata.Histogram[float64]](t, metrics, "maintenance.job.duration")
	require.Len(t, duration.DataPoints, 1)
	assert.EqualValues(t, 3, duration.DataPoints[0].Count)
	assert.InDelta(t, 40, duration.DataPoints[0].Sum, 0.001)
}

func TestDeploymentMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := New(WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	deploymentMetric, err := NewDeploymentMetric(provider.Meter())
	require.NoError(t, err)

	ctx := context.Background()
	deploymentMetric.RecordPrepare(ctx, "music", time.Second)
	deploymentMetric.RecordActivate(ctx, "music", 2*time.Second)
	deploymentMetric.RecordConflict(ctx, "music", "older-generation")

	metrics := collect(t, reader)

	prepare := find[metricdata.Histogram[float64]](t, metrics, "deployment.prepare.duration")
	assert.InDelta(t, 1000, prepare.DataPoints[0].Sum, 0.001)

	activate := find[metricdata.Histogram[float64]](t, metrics, "deployment.activate.duration")
	assert.InDelta(t, 2000, activate.DataPoints[0].Sum, 0.001)

	conflicts := find[metricdata.Sum[int64]](t, metrics, "deployment.activate.conflicts")
	require.Len(t, conflicts.DataPoints, 1)
	assert.EqualValues(t, 1, conflicts.DataPoints[0].Value)
	reason, ok := conflicts.DataPoints[0].Attributes.Value(reasonKey)
	require.True(t, ok)
	assert.Equal(t, "older-generation", reason.AsString())
}

func TestVersionMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := New(WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	versionMetric, err := NewVersionMetric(provider.Meter())
	require.NoError(t, err)

	ctx := context.Background()
	versionMetric.RecordSystemVersion(ctx, "8.1.2", "high")
	versionMetric.RecordInUse(ctx, "8.1.2", 3)

	metrics := collect(t, reader)

	system := find[metricdata.Gauge[int64]](t, metrics, "configserver.system_version")
	require.Len(t, system.DataPoints, 1)
	assert.True(t, system.DataPoints[0].Attributes.HasValue(confidenceKey))

	inUse := find[metricdata.Gauge[int64]](t, metrics, "configserver.platform_versions")
	assert.EqualValues(t, 3, inUse.DataPoints[0].Value)
	version, _ := inUse.DataPoints[0].Attributes.Value(versionKey)
	assert.Equal(t, attribute.StringValue("8.1.2"), version)
}

func TestInstrumentCreationFailures(t *testing.T) {
	// each constructor must fail whichever instrument breaks
	for _, failing := range []string{
		"maintenance.job.runs", "maintenance.job.last_run", "maintenance.job.duration",
	} {
		_, err := NewJobMetric(&failingMeter{Meter: noop.NewMeterProvider().Meter("test"), failing: failing})
		require.Error(t, err, failing)
	}

	for _, failing := range []string{
		"deployment.prepare.duration", "deployment.activate.duration", "deployment.activate.conflicts",
	} {
		_, err := NewDeploymentMetric(&failingMeter{Meter: noop.NewMeterProvider().Meter("test"), failing: failing})
		require.Error(t, err, failing)
	}

	for _, failing := range []string{"configserver.system_version", "configserver.platform_versions"} {
		_, err := NewVersionMetric(&failingMeter{Meter: noop.NewMeterProvider().Meter("test"), failing: failing})
		require.Error(t, err, failing)
	}
}

func TestPrometheusExporter(t *testing.T) {
	exporter, err := NewPrometheusExporter()
	require.NoError(t, err)

	jobMetric, err := NewJobMetric(New(WithMeterProvider(exporter.MeterProvider())).Meter())
	require.NoError(t, err)
	jobMetric.Record(context.Background(), "VersionStatusUpdater", true, time.Now(), time.Millisecond)

	server := httptest.NewServer(exporter.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "maintenance_job_runs")
	assert.Contains(t, string(body), `job="VersionStatusUpdater"`)

	require.NoError(t, exporter.Shutdown(context.Background()))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var metrics []metricdata.Metrics
	for _, scope := range rm.ScopeMetrics {
		metrics = append(metrics, scope.Metrics...)
	}
	return metrics
}

func find[T any](t *testing.T, metrics []metricdata.Metrics, name string) T {
	t.Helper()
	for _, m := range metrics {
		if m.Name == name {
			data, ok := m.Data.(T)
			require.True(t, ok, "unexpected data type for %s", name)
			return data
		}
	}
	require.FailNow(t, "metric not found", name)
	var zero T
	return zero
}

var errInstrument = errors.New("instrument creation failed")

type failingMeter struct {
	metric.Meter
	failing string
}

func (m *failingMeter) Int64Counter(name string, opts ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == m.failing {
		return nil, errInstrument
	}
	return m.Meter.Int64Counter(name, opts...)
}

func (m *failingMeter) Int64Gauge(name string, opts ...metric.Int64GaugeOption) (metric.Int64Gauge, error) {
	if name == m.failing {
		return nil, errInstrument
	}
	return m.Meter.Int64Gauge(name, opts...)
}

func (m *failingMeter) Float64Histogram(name string, opts ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == m.failing {
		return nil, errInstrument
	}
	return m.Meter.Float64Histogram(name, opts...)
}
