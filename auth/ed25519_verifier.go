package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-hookrelay/core"
)

const seedLength = 32

// DeriveSeed stretches the tenant secret to a fixed 32-byte signing seed:
// the secret's text bytes are repeated until the buffer reaches 32 bytes,
// then truncated to exactly 32. This repeat-and-truncate derivation is an
// inherited wire-compat constraint of the remote platform, not a KDF;
// changing it breaks the handshake.
func DeriveSeed(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: secret is required for key derivation")
	}
	raw := []byte(secret)
	seed := make([]byte, 0, seedLength)
	for len(seed) < seedLength {
		seed = append(seed, raw...)
	}
	return seed[:seedLength], nil
}

// KeyPair derives the deterministic signing key pair for a secret.
func KeyPair(secret string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	seed, err := DeriveSeed(secret)
	if err != nil {
		return nil, nil, err
	}
	private := ed25519.NewKeyFromSeed(seed)
	public, ok := private.Public().(ed25519.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("auth: unexpected public key type")
	}
	return public, private, nil
}

// SignChallenge signs the byte-exact concatenation `eventTs ++ plainToken`
// and returns the lower-case hex signature. The operand order is the
// remote platform's contract and is deliberately the reverse of the
// inbound event message; do not unify the two.
func SignChallenge(secret string, eventTs int64, plainToken string) (string, error) {
	_, private, err := KeyPair(secret)
	if err != nil {
		return "", err
	}
	message := strconv.FormatInt(eventTs, 10) + plainToken
	signature := ed25519.Sign(private, []byte(message))
	return hex.EncodeToString(signature), nil
}

// SignEvent signs `timestamp ++ rawBody`, the inbound-event direction.
// Exported for tests and for emitting gateway-signed deliveries.
func SignEvent(secret string, timestamp string, rawBody []byte) (string, error) {
	_, private, err := KeyPair(secret)
	if err != nil {
		return "", err
	}
	message := append([]byte(timestamp), rawBody...)
	return hex.EncodeToString(ed25519.Sign(private, message)), nil
}

type Ed25519VerifierConfig struct {
	Secret          string
	TimestampHeader string
	SignatureHeader string
}

// Ed25519Verifier checks an inbound event signature over
// `timestampHeader ++ rawBody` against the hex value in the platform's
// signature header, using the key pair derived from the shared secret. A
// decoded signature that is not exactly 64 bytes is rejected without
// attempting verification.
type Ed25519Verifier struct {
	config Ed25519VerifierConfig
}

func NewEd25519Verifier(cfg Ed25519VerifierConfig) *Ed25519Verifier {
	if strings.TrimSpace(cfg.TimestampHeader) == "" {
		cfg.TimestampHeader = defaultTimestampHeader
	}
	if strings.TrimSpace(cfg.SignatureHeader) == "" {
		cfg.SignatureHeader = defaultSignatureHeader
	}
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	return &Ed25519Verifier{config: cfg}
}

func (v *Ed25519Verifier) Verify(rawBody []byte, headers map[string]string) core.VerificationResult {
	if v == nil || v.config.Secret == "" {
		return core.VerificationNotApplicable
	}
	timestamp := HeaderValue(headers, v.config.TimestampHeader)
	supplied := HeaderValue(headers, v.config.SignatureHeader)
	if timestamp == "" || supplied == "" {
		return core.VerificationInvalid
	}
	decoded, err := hex.DecodeString(supplied)
	if err != nil {
		return core.VerificationInvalid
	}
	if len(decoded) != ed25519.SignatureSize {
		return core.VerificationInvalid
	}
	public, _, err := KeyPair(v.config.Secret)
	if err != nil {
		return core.VerificationInvalid
	}
	message := append([]byte(timestamp), rawBody...)
	if !ed25519.Verify(public, message, decoded) {
		return core.VerificationInvalid
	}
	return core.VerificationValid
}

// TokenString renders a challenge plain token for signing while the echo
// keeps the token's original JSON type. Strings sign as-is; JSON numbers
// sign in their canonical decimal form.
func TokenString(token any) (string, bool) {
	switch typed := token.(type) {
	case string:
		return typed, true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	default:
		return "", false
	}
}
