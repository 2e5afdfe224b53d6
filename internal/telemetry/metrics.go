// Package telemetry provides OpenTelemetry instrumentation for the sync client.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/studykit/colsync/sync"

// Media transfer directions
const (
	DirectionUpload   = "upload"
	DirectionDownload = "download"
)

// SyncMetrics holds the OpenTelemetry instruments for sync jobs
type SyncMetrics struct {
	jobDuration    metric.Float64Histogram
	mediaFiles     metric.Int64Counter
	supersededJobs metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	jobDuration, err := meter.Float64Histogram(
		"colsync_job_duration_seconds",
		metric.WithDescription("Duration of sync jobs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	mediaFiles, err := meter.Int64Counter(
		"colsync_media_files_total",
		metric.WithDescription("Media files transferred"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, err
	}

	supersededJobs, err := meter.Int64Counter(
		"colsync_superseded_jobs_total",
		metric.WithDescription("Jobs that started before their predecessor finished"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		jobDuration:    jobDuration,
		mediaFiles:     mediaFiles,
		supersededJobs: supersededJobs,
	}, nil
}

// RecordJobDuration records the duration of a finished job
func (m *SyncMetrics) RecordJobDuration(ctx context.Context, kind, outcome string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	}

	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordMediaFiles adds transferred media files in one direction
func (m *SyncMetrics) RecordMediaFiles(ctx context.Context, direction string, count int) {
	if m == nil || m.mediaFiles == nil || count <= 0 {
		return
	}
	m.mediaFiles.Add(ctx, int64(count), metric.WithAttributes(attribute.String("direction", direction)))
}

// RecordSuperseded counts a job whose predecessor wait timed out
func (m *SyncMetrics) RecordSuperseded(ctx context.Context) {
	if m == nil || m.supersededJobs == nil {
		return
	}
	m.supersededJobs.Add(ctx, 1)
}
