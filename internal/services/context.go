package services

import "context"

type contextKey string

const (
	generationKey contextKey = "generation"
	phaseKey      contextKey = "phase"
	requestIDKey  contextKey = "request_id"
)

// WithGeneration annotates context with the orchestrator generation that owns the request.
func WithGeneration(ctx context.Context, generation uint64) context.Context {
	return context.WithValue(ctx, generationKey, generation)
}

// GenerationFromContext extracts the generation if present.
func GenerationFromContext(ctx context.Context) (uint64, bool) {
	v, ok := ctx.Value(generationKey).(uint64)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}

// WithPhase annotates context with the pipeline phase name.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	return context.WithValue(ctx, phaseKey, phase)
}

// PhaseFromContext returns the phase name if present.
func PhaseFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(phaseKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
