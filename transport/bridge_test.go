package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-hookrelay/core"
)

func TestUpstreamBridge_ForwardsIdentityHeaders(t *testing.T) {
	var gotRoutingKey, gotCredential, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRoutingKey = r.Header.Get(headerRoutingKey)
		gotCredential = r.Header.Get(headerAccessCredential)
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	bridge, err := NewUpstreamBridge(upstream.URL + "/sockets")
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/github/k1/ws", nil)
	proxy := core.Proxy{RoutingKey: "k1", Secret: "s1", Platform: "github"}
	if err := bridge.Upgrade(rec, req, proxy, AccessCredential(proxy)); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	if gotRoutingKey != "k1" {
		t.Fatalf("expected routing key header, got %q", gotRoutingKey)
	}
	if gotCredential != AccessCredential(proxy) {
		t.Fatalf("expected derived credential forwarded, got %q", gotCredential)
	}
	if gotPath != "/sockets/github/k1/ws" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
}

func TestNewUpstreamBridge_RejectsBadURLs(t *testing.T) {
	for _, bad := range []string{"", "   ", "not-a-url", "/relative/only"} {
		if _, err := NewUpstreamBridge(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
