package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureMetrics struct {
	counters   []capturedMetric
	histograms []capturedMetric
}

type capturedMetric struct {
	name string
	tags map[string]string
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, _ int64, tags map[string]string) {
	m.counters = append(m.counters, capturedMetric{name: name, tags: tags})
}

func (m *captureMetrics) ObserveHistogram(_ context.Context, name string, _ float64, tags map[string]string) {
	m.histograms = append(m.histograms, capturedMetric{name: name, tags: tags})
}

func TestOutcomeRecorder_SuccessTags(t *testing.T) {
	metrics := &captureMetrics{}
	recorder := NewOutcomeRecorder(nil, metrics)

	recorder.Observe(context.Background(), time.Now(), "Dispatch", nil, map[string]any{
		"platform":    "github",
		"routing_key": "k1",
		"kind":        "event",
	})

	if len(metrics.counters) != 1 || len(metrics.histograms) != 1 {
		t.Fatalf("expected one counter and one histogram, got %d/%d",
			len(metrics.counters), len(metrics.histograms))
	}
	counter := metrics.counters[0]
	if counter.name != "hookrelay.dispatch.total" {
		t.Fatalf("unexpected counter name %q", counter.name)
	}
	if counter.tags["status"] != "success" || counter.tags["operation"] != "dispatch" {
		t.Fatalf("unexpected tags %v", counter.tags)
	}
	if counter.tags["platform"] != "github" || counter.tags["routing_key"] != "k1" {
		t.Fatalf("expected call context to surface in tags, got %v", counter.tags)
	}
	if metrics.histograms[0].name != "hookrelay.dispatch.duration_ms" {
		t.Fatalf("unexpected histogram name %q", metrics.histograms[0].name)
	}
}

func TestOutcomeRecorder_FailureCarriesErrorCode(t *testing.T) {
	metrics := &captureMetrics{}
	recorder := NewOutcomeRecorder(nil, metrics)

	recorder.Observe(context.Background(), time.Now(), "dispatch", errors.New("boom"), map[string]any{
		"error_code": ErrorSignatureInvalid,
	})

	counter := metrics.counters[0]
	if counter.tags["status"] != "failure" {
		t.Fatalf("expected failure status, got %v", counter.tags)
	}
	if counter.tags["error_code"] != ErrorSignatureInvalid {
		t.Fatalf("expected error_code tag, got %v", counter.tags)
	}
}

func TestOutcomeRecorder_BlankOperationAndNilReceiver(t *testing.T) {
	metrics := &captureMetrics{}
	recorder := NewOutcomeRecorder(nil, metrics)

	recorder.Observe(context.Background(), time.Now(), "   ", nil, nil)
	if metrics.counters[0].tags["operation"] != "unknown" {
		t.Fatalf("expected unknown operation, got %v", metrics.counters[0].tags)
	}

	var nilRecorder *OutcomeRecorder
	nilRecorder.Observe(context.Background(), time.Now(), "dispatch", nil, nil)
}

func TestNewOutcomeRecorder_DefaultsToNopMetrics(t *testing.T) {
	recorder := NewOutcomeRecorder(nil, nil)
	if _, ok := recorder.Metrics.(NopMetricsRecorder); !ok {
		t.Fatalf("expected nop metrics fallback, got %T", recorder.Metrics)
	}
	recorder.Observe(context.Background(), time.Now(), "dispatch", nil, map[string]any{"platform": "github"})
}
