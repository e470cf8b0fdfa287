package services

import "context"

type contextKey string

const (
	candidateIDKey contextKey = "candidate_id"
	stageKey       contextKey = "stage"
	requestIDKey   contextKey = "request_id"
)

// WithCandidateID annotates context with the correlation identifier of the
// candidate file being handled.
func WithCandidateID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, candidateIDKey, id)
}

// CandidateIDFromContext extracts the candidate identifier if present.
func CandidateIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(candidateIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
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
