package core

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Proxy is the routing record binding one routing key to a platform and a
// shared credential. It is owned by the routing store; the gateway only
// reads it, except for the advisory event counter incremented in the
// background broadcast path.
type Proxy struct {
	ID               string
	RoutingKey       string
	Platform         string
	Active           bool
	Secret           string
	SkipVerification bool
	EventCount       int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p Proxy) Clone() Proxy {
	return p
}

// Event is the canonical envelope every adapter produces. It is immutable
// after construction and is the unit handed to the broadcast target.
type Event struct {
	ID        string            `json:"id"`
	Platform  string            `json:"platform"`
	Type      string            `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Headers   map[string]string `json:"headers"`
	Payload   json.RawMessage   `json:"payload"`
	Data      map[string]any    `json:"data"`
}

// NewEvent stamps identity and received-at metadata onto a transformed
// payload. Headers and data maps are copied so the envelope cannot alias
// request-owned state.
func NewEvent(platform string, eventType string, receivedAt time.Time, headers map[string]string, payload []byte, data map[string]any) Event {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return Event{
		ID:        uuid.NewString(),
		Platform:  strings.TrimSpace(platform),
		Type:      strings.TrimSpace(eventType),
		Timestamp: receivedAt.UnixMilli(),
		Headers:   cloneStringMap(headers),
		Payload:   append(json.RawMessage(nil), payload...),
		Data:      cloneAnyMap(data),
	}
}

// VerificationResult is the tri-state outcome of signature verification.
// Callers must branch on the exact case; there is deliberately no boolean
// accessor so a disabled verifier can never masquerade as a valid one.
type VerificationResult int

const (
	VerificationNotApplicable VerificationResult = iota
	VerificationValid
	VerificationInvalid
)

func (r VerificationResult) String() string {
	switch r {
	case VerificationValid:
		return "valid"
	case VerificationInvalid:
		return "invalid"
	default:
		return "not_applicable"
	}
}

// MessageKind classifies one inbound body as seen by a platform adapter.
type MessageKind int

const (
	KindEvent MessageKind = iota
	KindHandshake
	KindUnknown
)

func (k MessageKind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	case KindUnknown:
		return "unknown"
	default:
		return "event"
	}
}

// ChallengeResponse answers a platform handshake. PlainToken echoes the
// token with its original JSON type preserved; Signature is lower-case hex.
type ChallengeResponse struct {
	PlainToken any    `json:"plainToken"`
	Signature  string `json:"signature"`
}

// Ack is the minimal positive acknowledgement body returned for event and
// unrecognized-discriminator messages.
type Ack struct {
	Status string `json:"status"`
}

func OKAck() Ack {
	return Ack{Status: "ok"}
}

// RequestMeta carries the transport facts an adapter may fold into the
// canonical event without owning the request itself.
type RequestMeta struct {
	Platform   string
	RoutingKey string
	Headers    map[string]string
	ReceivedAt time.Time
}

// BroadcastTask is the owned copy of everything the detached broadcast task
// needs after the originating request is torn down.
type BroadcastTask struct {
	Proxy      Proxy
	Body       []byte
	Headers    map[string]string
	ReceivedAt time.Time
}

func NewBroadcastTask(proxy Proxy, body []byte, headers map[string]string, receivedAt time.Time) BroadcastTask {
	return BroadcastTask{
		Proxy:      proxy.Clone(),
		Body:       append([]byte(nil), body...),
		Headers:    cloneStringMap(headers),
		ReceivedAt: receivedAt,
	}
}

func cloneStringMap(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	output := make(map[string]string, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func cloneAnyMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}
