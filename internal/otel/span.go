// Package otel provides OpenTelemetry span helpers for sync jobs.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by every sync span
const (
	AttrJobID           = attribute.Key("sync.job_id")
	AttrJobKind         = attribute.Key("sync.kind")
	AttrPhase           = attribute.Key("sync.phase")
	AttrOutcome         = attribute.Key("sync.outcome")
	AttrResolution      = attribute.Key("sync.resolution")
	AttrHostNum         = attribute.Key("sync.host_num")
	AttrRecordCount     = attribute.Key("sync.record_count")
	AttrMediaUploaded   = attribute.Key("sync.media.uploaded")
	AttrMediaDownloaded = attribute.Key("sync.media.downloaded")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// The status description stays generic; the error itself is kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

// RecordOutcome tags a span with the outcome kind of a job or phase
func RecordOutcome(span trace.Span, outcome string, failed bool) {
	if span == nil {
		return
	}
	span.SetAttributes(AttrOutcome.String(outcome))
	if failed {
		span.SetStatus(codes.Error, outcome)
	}
}
