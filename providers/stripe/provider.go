package stripe

import (
	"github.com/goliatone/go-hookrelay/core"
	"github.com/goliatone/go-hookrelay/providers"
)

const (
	PlatformID      = "stripe"
	TimestampHeader = "Stripe-Timestamp"
	SignatureHeader = "Stripe-Signature"
)

func New(proxy core.Proxy) (core.Adapter, error) {
	return providers.NewHMACAdapter(providers.HMACAdapterConfig{
		Platform:        PlatformID,
		Secret:          proxy.Secret,
		TimestampHeader: TimestampHeader,
		SignatureHeader: SignatureHeader,
		EventTypeFields: []string{"type"},
	}), nil
}
