package sqlstore

import "github.com/goliatone/go-hookrelay/core"

var (
	_ core.RoutingStore = (*ProxyStore)(nil)
	_ core.RoutingStore = (*CachedProxyStore)(nil)
	_ ProxyWriter       = (*ProxyStore)(nil)
	_ ProxyWriter       = (*CachedProxyStore)(nil)
)
