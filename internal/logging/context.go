package logging

import (
	"context"
	"log/slog"

	"transmute/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldFile is the standardized structured logging key for the media file being processed.
	FieldFile = "file"
	// FieldStrategy is the standardized structured logging key for search strategy names.
	FieldStrategy = "strategy"
	// FieldPhase is the standardized structured logging key for search phase names.
	FieldPhase = "phase"
	// FieldCRF is the standardized structured logging key for the trial quality parameter.
	FieldCRF = "crf"
	// FieldTrial is the standardized structured logging key for the 1-based trial index.
	FieldTrial = "trial"
	// FieldSizeBytes is the standardized structured logging key for artifact sizes.
	FieldSizeBytes = "size_bytes"
	// FieldMetric is the standardized structured logging key for quality metric names.
	FieldMetric = "metric"
	// FieldScore is the standardized structured logging key for quality metric readings.
	FieldScore = "score"
	// FieldRunID is the standardized structured logging key for run correlation identifiers.
	FieldRunID = "run_id"
	// FieldOperation is the standardized structured logging key for supervised operation tokens.
	FieldOperation = "operation"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if file, ok := services.FileFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldFile, file))
	}
	if phase, ok := services.PhaseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPhase, phase))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
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
