package core

import (
	"context"
	"errors"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	// ErrProxyNotFound is the typed "record absent" result of a routing
	// lookup. It is distinct from a lookup timeout, which surfaces as the
	// store context's deadline error.
	ErrProxyNotFound = errors.New("core: proxy not found")
)

// RoutingStore is the read contract against the routing-record store plus
// the advisory counter increment used by the broadcast path.
type RoutingStore interface {
	Lookup(ctx context.Context, routingKey string) (Proxy, error)
	IncrementEventCount(ctx context.Context, proxyID string) error
}

// BroadcastTarget delivers one canonical event to whatever is listening on
// a routing key. Targets are addressed by name, never by a held connection
// handle. A non-2xx delivery is reported as *DeliveryStatusError.
type BroadcastTarget interface {
	Send(ctx context.Context, routingKey string, event []byte) error
}

// DeliveryStatusError reports a broadcast target answering with a non-2xx
// status. It is retryable by classification.
type DeliveryStatusError struct {
	Status int
}

func (e *DeliveryStatusError) Error() string {
	return fmt.Sprintf("core: broadcast target returned status %d", e.Status)
}

// Adapter is the per-platform protocol unit: classify one inbound body,
// verify its signature, answer its handshake, or transform it into the
// canonical envelope. Adapters are stateless beyond the bound credential
// and must not be shared across routing records.
type Adapter interface {
	Platform() string
	Classify(payload map[string]any) MessageKind
	Verify(rawBody []byte, headers map[string]string) VerificationResult
	RespondToChallenge(payload map[string]any) (ChallengeResponse, error)
	Transform(payload map[string]any, meta RequestMeta) Event
}

// AdapterRegistry builds the adapter for a routing record's declared
// platform, binding the record's credential. A platform the routing layer
// recognizes but the registry cannot build is an explicit error, never a
// silent no-op adapter.
type AdapterRegistry interface {
	Build(proxy Proxy) (Adapter, error)
	Implemented() []string
}

// MetricsRecorder is the sink for the outcome recorder. Implementations
// must tolerate being called from detached background tasks.
type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
