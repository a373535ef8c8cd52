package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// OutcomeRecorder records latency and result classification per inbound
// call. It is consumed by observability, not part of it: recording must
// never fail a call.
type OutcomeRecorder struct {
	Logger  Logger
	Metrics MetricsRecorder
}

func NewOutcomeRecorder(logger Logger, metrics MetricsRecorder) *OutcomeRecorder {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &OutcomeRecorder{Logger: logger, Metrics: metrics}
}

// Observe classifies one finished operation. The fields map carries
// call-scoped context (platform, routing key, message kind).
func (r *OutcomeRecorder) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if r == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"platform", "routing_key", "kind", "error_code"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	r.recordCounter(ctx, "hookrelay."+operation+".total", 1, tags)
	r.recordHistogram(ctx, "hookrelay."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		r.logWithLevel(ctx, "error", operation+" failed", contextFields)
		return
	}
	r.logWithLevel(ctx, "info", operation+" succeeded", contextFields)
}

func (r *OutcomeRecorder) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if r == nil || r.Logger == nil {
		return
	}
	logger := r.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (r *OutcomeRecorder) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r == nil || r.Metrics == nil {
		return
	}
	r.Metrics.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (r *OutcomeRecorder) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r == nil || r.Metrics == nil {
		return
	}
	r.Metrics.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
