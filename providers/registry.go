package providers

import (
	"sort"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-hookrelay/core"
)

// Factory builds the adapter for one platform, binding the routing
// record's credential.
type Factory func(proxy core.Proxy) (core.Adapter, error)

// Registry maps platform identifiers to adapter factories. A platform the
// routing layer recognizes but the registry has no factory for fails the
// build with an explicit adapter-creation error.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(platform string, factory Factory) {
	if r == nil || factory == nil {
		return
	}
	platform = normalizePlatform(platform)
	if platform == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[platform] = factory
}

func (r *Registry) Build(proxy core.Proxy) (core.Adapter, error) {
	if r == nil {
		return nil, goerrors.New(
			"adapter registry is not configured",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorServerConfiguration)
	}
	platform := normalizePlatform(proxy.Platform)

	r.mu.RLock()
	factory, ok := r.factories[platform]
	r.mu.RUnlock()

	if !ok {
		return nil, goerrors.New(
			"no adapter is implemented for platform",
			goerrors.CategoryInternal,
		).WithTextCode(core.ErrorAdapterCreateFailed).WithMetadata(map[string]any{
			"platform": platform,
		})
	}

	adapter, err := factory(proxy)
	if err != nil {
		return nil, goerrors.Wrap(
			err,
			goerrors.CategoryInternal,
			"adapter construction failed",
		).WithTextCode(core.ErrorAdapterCreateFailed).WithMetadata(map[string]any{
			"platform": platform,
		})
	}
	return adapter, nil
}

func (r *Registry) Implemented() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]string, 0, len(r.factories))
	for platform := range r.factories {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	return platforms
}

func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

var _ core.AdapterRegistry = (*Registry)(nil)
