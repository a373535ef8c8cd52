package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-hookrelay/core"
)

const (
	defaultTimestampHeader = "X-Hook-Timestamp"
	defaultSignatureHeader = "X-Hook-Signature"
)

type HMACVerifierConfig struct {
	Secret          string
	TimestampHeader string
	SignatureHeader string
	// SignaturePrefix is stripped from the header value before decoding,
	// e.g. "sha256=" for GitHub-style headers.
	SignaturePrefix string
}

// HMACVerifier recomputes an HMAC-SHA256 code over the byte-exact message
// `timestamp ++ rawBody` and compares it in constant time to the hex code
// in the platform's signature header. Malformed input is itself invalid;
// this verifier never errors.
type HMACVerifier struct {
	config HMACVerifierConfig
}

func NewHMACVerifier(cfg HMACVerifierConfig) *HMACVerifier {
	if strings.TrimSpace(cfg.TimestampHeader) == "" {
		cfg.TimestampHeader = defaultTimestampHeader
	}
	if strings.TrimSpace(cfg.SignatureHeader) == "" {
		cfg.SignatureHeader = defaultSignatureHeader
	}
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	return &HMACVerifier{config: cfg}
}

func (v *HMACVerifier) Verify(rawBody []byte, headers map[string]string) core.VerificationResult {
	if v == nil || v.config.Secret == "" {
		return core.VerificationNotApplicable
	}
	timestamp := HeaderValue(headers, v.config.TimestampHeader)
	supplied := HeaderValue(headers, v.config.SignatureHeader)
	if timestamp == "" || supplied == "" {
		return core.VerificationInvalid
	}
	if prefix := v.config.SignaturePrefix; prefix != "" {
		supplied = strings.TrimPrefix(supplied, prefix)
	}
	decoded, err := hex.DecodeString(supplied)
	if err != nil {
		return core.VerificationInvalid
	}
	expected := ComputeHMAC(v.config.Secret, timestamp, rawBody)
	if !hmac.Equal(decoded, expected) {
		return core.VerificationInvalid
	}
	return core.VerificationValid
}

// ComputeHMAC builds the shared-secret authentication code over
// `timestamp ++ rawBody`. The operand order is a wire contract.
func ComputeHMAC(secret string, timestamp string, rawBody []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	return mac.Sum(nil)
}

// SignHMAC returns the lower-case hex form of ComputeHMAC. Used by tests
// and by callers deriving per-connection access credentials.
func SignHMAC(secret string, timestamp string, rawBody []byte) string {
	return hex.EncodeToString(ComputeHMAC(secret, timestamp, rawBody))
}

// HeaderValue resolves a header by case-insensitive name from the flat
// header map the transport layer hands the adapters.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
