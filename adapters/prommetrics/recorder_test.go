package prommetrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-hookrelay/core"
)

func TestIncCounterAccumulatesPerLabelSet(t *testing.T) {
	recorder := New()
	ctx := context.Background()

	tags := map[string]string{
		"operation": "dispatch",
		"status":    "success",
		"platform":  "github",
	}
	recorder.IncCounter(ctx, "hookrelay.dispatch.total", 1, tags)
	recorder.IncCounter(ctx, "hookrelay.dispatch.total", 2, tags)
	recorder.IncCounter(ctx, "hookrelay.dispatch.total", 1, map[string]string{
		"operation": "dispatch",
		"status":    "failure",
	})

	vec := recorder.counterVec("hookrelay_dispatch_total")
	got := testutil.ToFloat64(vec.With(labelValues(tags)))
	if got != 3 {
		t.Fatalf("expected 3 for the success series, got %v", got)
	}
	failure := testutil.ToFloat64(vec.With(labelValues(map[string]string{
		"operation": "dispatch",
		"status":    "failure",
	})))
	if failure != 1 {
		t.Fatalf("expected 1 for the failure series, got %v", failure)
	}
}

func TestIgnoresNonPositiveAndBlankNames(t *testing.T) {
	recorder := New()
	recorder.IncCounter(context.Background(), "hookrelay.dispatch.total", 0, nil)
	recorder.IncCounter(context.Background(), "   ", 5, nil)
	if len(recorder.counters) != 0 {
		t.Fatalf("expected no vectors registered, got %d", len(recorder.counters))
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"hookrelay.dispatch.total":        "hookrelay_dispatch_total",
		"HookRelay.Broadcast.Duration_MS": "hookrelay_broadcast_duration_ms",
		"1weird":                          "_weird",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandlerExposesRecordedSeries(t *testing.T) {
	recorder := New()
	core.NewOutcomeRecorder(nil, recorder).Observe(
		context.Background(),
		time.Now().Add(-5*time.Millisecond),
		"dispatch",
		nil,
		map[string]any{"platform": "github", "routing_key": "k1"},
	)

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, "hookrelay_dispatch_total") {
		t.Fatalf("expected counter in exposition output:\n%s", body)
	}
	if !strings.Contains(body, "hookrelay_dispatch_duration_ms") {
		t.Fatalf("expected histogram in exposition output:\n%s", body)
	}
	if !strings.Contains(body, `platform="github"`) {
		t.Fatal("expected platform label on the recorded series")
	}
}
