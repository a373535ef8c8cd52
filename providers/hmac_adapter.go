package providers

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hookrelay/auth"
	"github.com/goliatone/go-hookrelay/core"
)

// HMACAdapterConfig binds one HMAC-family platform: header names, an
// optional signature prefix, and where the event type lives.
type HMACAdapterConfig struct {
	Platform        string
	Secret          string
	TimestampHeader string
	SignatureHeader string
	SignaturePrefix string
	// EventTypeHeader is consulted first; EventTypeFields are payload keys
	// tried in order when the header is absent.
	EventTypeHeader string
	EventTypeFields []string
}

// HMACAdapter implements the HMAC-SHA256 protocol family. These platforms
// have no handshake: every inbound body is an event.
type HMACAdapter struct {
	config   HMACAdapterConfig
	verifier *auth.HMACVerifier
}

func NewHMACAdapter(cfg HMACAdapterConfig) *HMACAdapter {
	cfg.Platform = strings.TrimSpace(cfg.Platform)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	return &HMACAdapter{
		config: cfg,
		verifier: auth.NewHMACVerifier(auth.HMACVerifierConfig{
			Secret:          cfg.Secret,
			TimestampHeader: cfg.TimestampHeader,
			SignatureHeader: cfg.SignatureHeader,
			SignaturePrefix: cfg.SignaturePrefix,
		}),
	}
}

func (a *HMACAdapter) Platform() string {
	if a == nil {
		return ""
	}
	return a.config.Platform
}

func (a *HMACAdapter) Classify(payload map[string]any) core.MessageKind {
	return core.KindEvent
}

func (a *HMACAdapter) Verify(rawBody []byte, headers map[string]string) core.VerificationResult {
	if a == nil {
		return core.VerificationInvalid
	}
	return a.verifier.Verify(rawBody, headers)
}

func (a *HMACAdapter) RespondToChallenge(payload map[string]any) (core.ChallengeResponse, error) {
	return core.ChallengeResponse{}, goerrors.New(
		"platform does not define a handshake",
		goerrors.CategoryBadInput,
	).WithTextCode(core.ErrorMalformedRequest)
}

func (a *HMACAdapter) Transform(payload map[string]any, meta core.RequestMeta) core.Event {
	eventType := ""
	if a != nil && a.config.EventTypeHeader != "" {
		eventType = auth.HeaderValue(meta.Headers, a.config.EventTypeHeader)
	}
	if eventType == "" && a != nil {
		eventType = firstStringField(payload, a.config.EventTypeFields...)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return core.NewEvent(a.Platform(), eventType, meta.ReceivedAt, meta.Headers, raw, payload)
}

func firstStringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := payload[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

var _ core.Adapter = (*HMACAdapter)(nil)
