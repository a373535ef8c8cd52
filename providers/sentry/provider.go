package sentry

import (
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/providers"
)

const (
	PlatformID      = "sentry"
	TimestampHeader = "Sentry-Hook-Timestamp"
	SignatureHeader = "Sentry-Hook-Signature"
	EventTypeHeader = "Sentry-Hook-Resource"
)

func New(proxy core.Proxy) (core.Adapter, error) {
	return providers.NewHMACAdapter(providers.HMACAdapterConfig{
		Platform:        PlatformID,
		Secret:          proxy.Secret,
		TimestampHeader: TimestampHeader,
		SignatureHeader: SignatureHeader,
		EventTypeHeader: EventTypeHeader,
		EventTypeFields: []string{"action"},
	}), nil
}
