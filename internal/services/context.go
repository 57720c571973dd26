package services

import "context"

type contextKey string

const (
	depositUUIDKey contextKey = "deposit_uuid"
	stageKey       contextKey = "stage"
	runIDKey       contextKey = "run_id"
)

// WithDepositUUID annotates context with the deposit identifier.
func WithDepositUUID(ctx context.Context, depositUUID string) context.Context {
	if depositUUID == "" {
		return ctx
	}
	return context.WithValue(ctx, depositUUIDKey, depositUUID)
}

// DepositUUIDFromContext extracts the deposit identifier if present.
func DepositUUIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(depositUUIDKey).(string); ok && v != "" {
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
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with a per-sweep correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the sweep correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
