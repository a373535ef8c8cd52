package zoom

import (
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/providers"
)

const (
	PlatformID      = "zoom"
	TimestampHeader = "X-Zm-Request-Timestamp"
	SignatureHeader = "X-Zm-Signature"
	ChallengeEvent  = "endpoint.url_validation"
)

func New(proxy core.Proxy) (core.Adapter, error) {
	return providers.NewEd25519Adapter(providers.Ed25519AdapterConfig{
		Platform:        PlatformID,
		Secret:          proxy.Secret,
		TimestampHeader: TimestampHeader,
		SignatureHeader: SignatureHeader,
		ChallengeEvent:  ChallengeEvent,
	}), nil
}
