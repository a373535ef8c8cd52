package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-hookrelay/core"
)

type proxyRecord struct {
	bun.BaseModel `bun:"table:hook_proxies,alias:hp"`

	ID               string     `bun:"id,pk"`
	RoutingKey       string     `bun:"routing_key,notnull,unique"`
	Platform         string     `bun:"platform,notnull"`
	Active           bool       `bun:"active,notnull"`
	Secret           string     `bun:"secret"`
	SkipVerification bool       `bun:"skip_verification,notnull"`
	EventCount       int64      `bun:"event_count,notnull"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt        *time.Time `bun:"deleted_at,soft_delete"`
}

func (r *proxyRecord) toDomain() core.Proxy {
	if r == nil {
		return core.Proxy{}
	}
	return core.Proxy{
		ID:               strings.TrimSpace(r.ID),
		RoutingKey:       strings.TrimSpace(r.RoutingKey),
		Platform:         strings.TrimSpace(r.Platform),
		Active:           r.Active,
		Secret:           r.Secret,
		SkipVerification: r.SkipVerification,
		EventCount:       r.EventCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newProxyRecord(proxy core.Proxy, now time.Time) *proxyRecord {
	return &proxyRecord{
		ID:               strings.TrimSpace(proxy.ID),
		RoutingKey:       strings.TrimSpace(proxy.RoutingKey),
		Platform:         strings.ToLower(strings.TrimSpace(proxy.Platform)),
		Active:           proxy.Active,
		Secret:           proxy.Secret,
		SkipVerification: proxy.SkipVerification,
		EventCount:       proxy.EventCount,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
