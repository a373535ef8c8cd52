package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-hookrelay/core"
)

const proxyCacheKeyPrefix = "go-hookrelay::proxy::v1"

// ProxyWriter is the mutation surface the cache decorator must invalidate
// behind.
type ProxyWriter interface {
	Create(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
	Save(ctx context.Context, proxy core.Proxy) (core.Proxy, error)
}

// CachedProxyStore decorates a routing store with read-through caching on
// the hot lookup path. Counter increments pass through uncached: the event
// count is advisory and a stale cached copy of it is acceptable, so the
// increment does not invalidate.
type CachedProxyStore struct {
	base   core.RoutingStore
	writer ProxyWriter
	cache  repositorycache.CacheService
}

func NewCachedProxyStore(base core.RoutingStore, cacheService repositorycache.CacheService) (*CachedProxyStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base proxy store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: proxy cache service is required")
	}
	writer, _ := base.(ProxyWriter)
	return &CachedProxyStore{base: base, writer: writer, cache: cacheService}, nil
}

// ProxyCacheKey is the deterministic cache key contract for routing
// lookups: go-hookrelay::proxy::v1::<routing_key>, key URL-path escaped.
func ProxyCacheKey(routingKey string) (string, error) {
	routingKey = strings.TrimSpace(routingKey)
	if routingKey == "" {
		return "", fmt.Errorf("sqlstore: routing key is required")
	}
	return proxyCacheKeyPrefix + "::" + url.PathEscape(routingKey), nil
}

func (s *CachedProxyStore) Lookup(ctx context.Context, routingKey string) (core.Proxy, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: cached proxy store is not configured")
	}
	cacheKey, err := ProxyCacheKey(routingKey)
	if err != nil {
		return core.Proxy{}, err
	}
	proxy, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Proxy, error) {
		fetched, fetchErr := s.base.Lookup(ctx, routingKey)
		if fetchErr != nil {
			return core.Proxy{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.Proxy{}, err
	}
	return proxy.Clone(), nil
}

func (s *CachedProxyStore) IncrementEventCount(ctx context.Context, proxyID string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached proxy store is not configured")
	}
	return s.base.IncrementEventCount(ctx, proxyID)
}

func (s *CachedProxyStore) Create(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	if s == nil || s.writer == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: cached proxy store has no writable base")
	}
	created, err := s.writer.Create(ctx, proxy)
	if err != nil {
		return core.Proxy{}, err
	}
	s.invalidate(ctx, created.RoutingKey)
	return created, nil
}

func (s *CachedProxyStore) Save(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	if s == nil || s.writer == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: cached proxy store has no writable base")
	}
	// A save may move the record to a new routing key. The key it held
	// before the write must be invalidated too, or lookups on it keep
	// serving the stale cached record until TTL expiry.
	previousKey := ""
	if getter, ok := s.base.(interface {
		Get(ctx context.Context, id string) (core.Proxy, error)
	}); ok && proxy.ID != "" {
		if current, err := getter.Get(ctx, proxy.ID); err == nil {
			previousKey = current.RoutingKey
		}
	}
	saved, err := s.writer.Save(ctx, proxy)
	if err != nil {
		return core.Proxy{}, err
	}
	s.invalidate(ctx, proxy.RoutingKey)
	if saved.RoutingKey != proxy.RoutingKey {
		s.invalidate(ctx, saved.RoutingKey)
	}
	if previousKey != "" && previousKey != proxy.RoutingKey && previousKey != saved.RoutingKey {
		s.invalidate(ctx, previousKey)
	}
	return saved, nil
}

func (s *CachedProxyStore) invalidate(ctx context.Context, routingKey string) {
	cacheKey, err := ProxyCacheKey(routingKey)
	if err != nil {
		return
	}
	_ = s.cache.Delete(ctx, cacheKey)
}
