package logging

import (
	"context"
	"log/slog"

	"bindery/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDepositUUID is the standardized structured logging key for deposit identifiers.
	FieldDepositUUID = "deposit_uuid"
	// FieldJournalUUID is the standardized structured logging key for journal identifiers.
	FieldJournalUUID = "journal_uuid"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRunID is the standardized structured logging key for sweep correlation identifiers.
	FieldRunID = "run_id"
	// FieldEventType tags log records for machine filtering (stage_retry, stage_failure, stage_complete).
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if depositUUID, ok := services.DepositUUIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDepositUUID, depositUUID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived
// from the supplied context.
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
