package github

import (
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/providers"
)

const (
	PlatformID      = "github"
	TimestampHeader = "X-Hub-Timestamp"
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
	EventTypeHeader = "X-Github-Event"
)

func New(proxy core.Proxy) (core.Adapter, error) {
	return providers.NewHMACAdapter(providers.HMACAdapterConfig{
		Platform:        PlatformID,
		Secret:          proxy.Secret,
		TimestampHeader: TimestampHeader,
		SignatureHeader: SignatureHeader,
		SignaturePrefix: SignaturePrefix,
		EventTypeHeader: EventTypeHeader,
		EventTypeFields: []string{"action"},
	}), nil
}
