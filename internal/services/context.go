package services

import "context"

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	imageKey    contextKey = "image"
	nodePathKey contextKey = "node_path"
	engineKey   contextKey = "engine"
)

// WithRunID annotates context with the scan run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the scan run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithImage annotates context with the name of the image being walked.
// Used for log correlation only; the image itself travels as an explicit argument.
func WithImage(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, imageKey, name)
}

// ImageFromContext returns the image name if present.
func ImageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(imageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithNodePath annotates context with the unique logical path of a content node.
func WithNodePath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, nodePathKey, path)
}

// NodePathFromContext returns the node path if present.
func NodePathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(nodePathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEngine annotates context with the identification engine name.
func WithEngine(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, engineKey, name)
}

// EngineFromContext returns the engine name if present.
func EngineFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(engineKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
