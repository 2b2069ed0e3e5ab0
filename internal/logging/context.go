package logging

import (
	"context"
	"log/slog"

	"medialog/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for scan run identifiers.
	FieldRunID = "run_id"
	// FieldImage is the standardized key for the image being walked.
	FieldImage = "image"
	// FieldNodePath is the standardized key for a content node's unique path.
	FieldNodePath = "node_path"
	// FieldEngine is the standardized key for identification engine names.
	FieldEngine = "engine"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if image, ok := services.ImageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldImage, image))
	}
	if path, ok := services.NodePathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldNodePath, path))
	}
	if engine, ok := services.EngineFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEngine, engine))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
