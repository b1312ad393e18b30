package logging

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// gcpTraceLogHandler decorates log records with the Google Cloud Logging
// special fields, so log lines group under the active trace in the console.
// https://docs.cloud.google.com/logging/docs/agent/logging/configuration#special-fields
//
// NOTE: The span context is read from the record's context, so callers must
// log through the *Context slog methods for the fields to appear.
type gcpTraceLogHandler struct {
	base    slog.Handler
	project string
}

func NewGCPTraceLogHandler(base slog.Handler, project string) *gcpTraceLogHandler {
	return &gcpTraceLogHandler{base: base, project: project}
}

func (h *gcpTraceLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *gcpTraceLogHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		// Records share their attr backing array, so clone before appending.
		r = r.Clone()
		r.AddAttrs(
			slog.String("logging.googleapis.com/trace", fmt.Sprintf("projects/%s/traces/%s", h.project, sc.TraceID())),
			slog.String("logging.googleapis.com/spanId", sc.SpanID().String()),
			slog.Bool("logging.googleapis.com/trace_sampled", sc.TraceFlags().IsSampled()),
		)
	}
	return h.base.Handle(ctx, r)
}

func (h *gcpTraceLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewGCPTraceLogHandler(h.base.WithAttrs(attrs), h.project)
}

func (h *gcpTraceLogHandler) WithGroup(name string) slog.Handler {
	return NewGCPTraceLogHandler(h.base.WithGroup(name), h.project)
}

var _ slog.Handler = (*gcpTraceLogHandler)(nil)
