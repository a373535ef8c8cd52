package core

import "context"

// NopMetricsRecorder discards every measurement. It backs OutcomeRecorder
// whenever no metrics sink is wired, so recording call sites never have to
// nil-check their recorder.
type NopMetricsRecorder struct{}

var _ MetricsRecorder = NopMetricsRecorder{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}
