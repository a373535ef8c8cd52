// Package prommetrics exposes the gateway's outcome stream as Prometheus
// counters and histograms.
package prommetrics

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-hookrelay/core"
)

// metricLabels is the full label set every series carries. Tags the caller
// omits become empty label values so one vector serves every operation.
var metricLabels = []string{"operation", "status", "platform", "routing_key", "kind", "error_code"}

type Recorder struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func New() *Recorder {
	return &Recorder{
		registry:   prometheus.NewRegistry(),
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

// Handler serves the recorder's registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	metric := sanitizeName(name)
	if metric == "" {
		return
	}
	r.counterVec(metric).With(labelValues(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metric := sanitizeName(name)
	if metric == "" {
		return
	}
	r.histogramVec(metric).With(labelValues(tags)).Observe(value)
}

func (r *Recorder) counterVec(name string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: "Gateway counter " + name,
	}, metricLabels)
	r.registry.MustRegister(vec)
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogramVec(name string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Gateway histogram " + name,
		Buckets: prometheus.DefBuckets,
	}, metricLabels)
	r.registry.MustRegister(vec)
	r.histograms[name] = vec
	return vec
}

func labelValues(tags map[string]string) prometheus.Labels {
	labels := make(prometheus.Labels, len(metricLabels))
	for _, key := range metricLabels {
		labels[key] = tags[key]
	}
	return labels
}

// sanitizeName maps outcome-stream names like "hookrelay.dispatch.total"
// onto the Prometheus metric grammar.
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*Recorder)(nil)
