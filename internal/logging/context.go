package logging

import (
	"context"
	"log/slog"

	"audiopipe/internal/services"
)

// Standard attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	// FieldEventType is a stable machine-readable event name such as
	// stage_start or job_complete.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)

var contextLookups = []struct {
	key    string
	lookup func(context.Context) (string, bool)
}{
	{FieldJobID, services.JobIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the job, stage and correlation attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, entry := range contextLookups {
		if value, ok := entry.lookup(ctx); ok {
			fields = append(fields, slog.String(entry.key, value))
		}
	}
	return fields
}

// WithContext attaches ContextFields(ctx) to logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}

func WithJob(ctx context.Context, jobID string) context.Context {
	return services.WithJobID(ctx, jobID)
}

func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}
