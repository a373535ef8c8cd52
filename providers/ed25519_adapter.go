package providers

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hookrelay/auth"
	"github.com/goliatone/go-hookrelay/core"
)

const (
	defaultEventField     = "event"
	defaultChallengeEvent = "endpoint.url_validation"
	defaultPayloadField   = "payload"
	defaultTokenField     = "plainToken"
	defaultEventTsField   = "event_ts"
)

// Ed25519AdapterConfig binds one Ed25519-family platform: header names for
// inbound event verification plus the payload shape of its URL-validation
// handshake.
type Ed25519AdapterConfig struct {
	Platform        string
	Secret          string
	TimestampHeader string
	SignatureHeader string
	EventField      string
	ChallengeEvent  string
	PayloadField    string
	TokenField      string
	EventTsField    string
}

// Ed25519Adapter implements the challenge-handshake protocol family. The
// event discriminator field selects between handshake and event; a body
// without a usable discriminator is unknown and gets acknowledged without
// being broadcast.
type Ed25519Adapter struct {
	config   Ed25519AdapterConfig
	verifier *auth.Ed25519Verifier
}

func NewEd25519Adapter(cfg Ed25519AdapterConfig) *Ed25519Adapter {
	cfg.Platform = strings.TrimSpace(cfg.Platform)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if cfg.EventField == "" {
		cfg.EventField = defaultEventField
	}
	if cfg.ChallengeEvent == "" {
		cfg.ChallengeEvent = defaultChallengeEvent
	}
	if cfg.PayloadField == "" {
		cfg.PayloadField = defaultPayloadField
	}
	if cfg.TokenField == "" {
		cfg.TokenField = defaultTokenField
	}
	if cfg.EventTsField == "" {
		cfg.EventTsField = defaultEventTsField
	}
	return &Ed25519Adapter{
		config: cfg,
		verifier: auth.NewEd25519Verifier(auth.Ed25519VerifierConfig{
			Secret:          cfg.Secret,
			TimestampHeader: cfg.TimestampHeader,
			SignatureHeader: cfg.SignatureHeader,
		}),
	}
}

func (a *Ed25519Adapter) Platform() string {
	if a == nil {
		return ""
	}
	return a.config.Platform
}

func (a *Ed25519Adapter) Classify(payload map[string]any) core.MessageKind {
	if a == nil {
		return core.KindUnknown
	}
	discriminator, ok := payload[a.config.EventField].(string)
	if !ok || strings.TrimSpace(discriminator) == "" {
		return core.KindUnknown
	}
	if discriminator == a.config.ChallengeEvent {
		return core.KindHandshake
	}
	return core.KindEvent
}

func (a *Ed25519Adapter) Verify(rawBody []byte, headers map[string]string) core.VerificationResult {
	if a == nil {
		return core.VerificationInvalid
	}
	return a.verifier.Verify(rawBody, headers)
}

// RespondToChallenge signs `event_ts ++ plainToken` with the key pair
// derived from the record secret and echoes the token with its original
// JSON type intact.
func (a *Ed25519Adapter) RespondToChallenge(payload map[string]any) (core.ChallengeResponse, error) {
	if a == nil || a.config.Secret == "" {
		return core.ChallengeResponse{}, goerrors.New(
			"signing secret is not configured for this routing record",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorServerConfiguration)
	}

	container, _ := payload[a.config.PayloadField].(map[string]any)
	token, present := container[a.config.TokenField]
	tokenText, usable := auth.TokenString(token)
	if !present || !usable || tokenText == "" {
		return core.ChallengeResponse{}, goerrors.New(
			"challenge payload is missing a usable plain token",
			goerrors.CategoryBadInput,
		).WithTextCode(core.ErrorMalformedRequest).WithMetadata(map[string]any{
			"platform": a.config.Platform,
		})
	}

	eventTs, ok := numericField(payload, a.config.EventTsField)
	if !ok {
		return core.ChallengeResponse{}, goerrors.New(
			"challenge payload is missing the event timestamp",
			goerrors.CategoryBadInput,
		).WithTextCode(core.ErrorMalformedRequest).WithMetadata(map[string]any{
			"platform": a.config.Platform,
		})
	}

	signature, err := auth.SignChallenge(a.config.Secret, eventTs, tokenText)
	if err != nil {
		return core.ChallengeResponse{}, goerrors.Wrap(
			err,
			goerrors.CategoryInternal,
			"challenge signing failed",
		).WithTextCode(core.ErrorServerConfiguration)
	}

	return core.ChallengeResponse{PlainToken: token, Signature: signature}, nil
}

func (a *Ed25519Adapter) Transform(payload map[string]any, meta core.RequestMeta) core.Event {
	eventType := ""
	if a != nil {
		eventType = firstStringField(payload, a.config.EventField)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return core.NewEvent(a.Platform(), eventType, meta.ReceivedAt, meta.Headers, raw, payload)
}

func numericField(payload map[string]any, key string) (int64, bool) {
	switch typed := payload[key].(type) {
	case float64:
		return int64(typed), true
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var _ core.Adapter = (*Ed25519Adapter)(nil)
