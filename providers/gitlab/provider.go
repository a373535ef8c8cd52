package gitlab

import (
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/providers"
)

const (
	PlatformID      = "gitlab"
	TimestampHeader = "X-Gitlab-Timestamp"
	SignatureHeader = "X-Gitlab-Signature-256"
	EventTypeHeader = "X-Gitlab-Event"
)

func New(proxy core.Proxy) (core.Adapter, error) {
	return providers.NewHMACAdapter(providers.HMACAdapterConfig{
		Platform:        PlatformID,
		Secret:          proxy.Secret,
		TimestampHeader: TimestampHeader,
		SignatureHeader: SignatureHeader,
		EventTypeHeader: EventTypeHeader,
		EventTypeFields: []string{"object_kind", "event_name"},
	}), nil
}
