package transport

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/goliatone/go-hookrelay/core"
)

const (
	headerRoutingKey       = "X-Hookrelay-Routing-Key"
	headerAccessCredential = "X-Hookrelay-Access-Credential"
)

// UpstreamBridge forwards socket upgrades to a downstream connection
// service. The reverse proxy carries the Upgrade handshake through
// untouched, so the socket survives end to end; the validated record's
// identity and derived credential travel as headers.
type UpstreamBridge struct {
	upstream *url.URL
}

func NewUpstreamBridge(upstream string) (*UpstreamBridge, error) {
	trimmed := strings.TrimSpace(upstream)
	if trimmed == "" {
		return nil, fmt.Errorf("transport: upstream url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("transport: parse upstream url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transport: upstream url %q needs scheme and host", trimmed)
	}
	return &UpstreamBridge{upstream: parsed}, nil
}

func (b *UpstreamBridge) Upgrade(w http.ResponseWriter, r *http.Request, proxy core.Proxy, accessCredential string) error {
	if b == nil || b.upstream == nil {
		return fmt.Errorf("transport: bridge is not configured")
	}
	reverse := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = b.upstream.Scheme
			req.URL.Host = b.upstream.Host
			req.URL.Path = singleJoin(b.upstream.Path, req.URL.Path)
			req.Host = b.upstream.Host
			req.Header.Set(headerRoutingKey, proxy.RoutingKey)
			req.Header.Set(headerAccessCredential, accessCredential)
		},
		// Streamed frames must not sit in a buffer.
		FlushInterval: -1,
	}
	reverse.ServeHTTP(w, r)
	return nil
}

func singleJoin(base, tail string) string {
	base = strings.TrimSuffix(base, "/")
	if tail == "" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(tail, "/") {
		tail = "/" + tail
	}
	return base + tail
}

var _ ConnectionBridge = (*UpstreamBridge)(nil)
