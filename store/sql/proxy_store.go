package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-hookrelay/core"
)

// ProxyStore is the bun-backed routing store. Lookup resolves a routing
// key to its record; the advisory event counter is incremented in place so
// concurrent broadcast tasks never clobber each other's counts.
type ProxyStore struct {
	db   *bun.DB
	repo repository.Repository[*proxyRecord]
}

func (s *ProxyStore) Lookup(ctx context.Context, routingKey string) (core.Proxy, error) {
	if s == nil || s.repo == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: proxy store is not configured")
	}
	routingKey = strings.TrimSpace(routingKey)
	if routingKey == "" {
		return core.Proxy{}, fmt.Errorf("sqlstore: routing key is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("routing_key", "=", routingKey),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Proxy{}, err
	}
	if len(records) == 0 {
		return core.Proxy{}, core.ErrProxyNotFound
	}
	return records[0].toDomain(), nil
}

func (s *ProxyStore) IncrementEventCount(ctx context.Context, proxyID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: proxy store is not configured")
	}
	proxyID = strings.TrimSpace(proxyID)
	if proxyID == "" {
		return fmt.Errorf("sqlstore: proxy id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*proxyRecord)(nil)).
		Set("event_count = event_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", proxyID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrProxyNotFound
	}
	return nil
}

func (s *ProxyStore) Create(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	if s == nil || s.repo == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: proxy store is not configured")
	}
	if strings.TrimSpace(proxy.RoutingKey) == "" {
		return core.Proxy{}, fmt.Errorf("sqlstore: routing key is required")
	}
	if strings.TrimSpace(proxy.Platform) == "" {
		return core.Proxy{}, fmt.Errorf("sqlstore: platform is required")
	}
	if strings.TrimSpace(proxy.ID) == "" {
		proxy.ID = uuid.NewString()
	}
	record := newProxyRecord(proxy, time.Now().UTC())
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Proxy{}, err
	}
	return created.toDomain(), nil
}

func (s *ProxyStore) Save(ctx context.Context, proxy core.Proxy) (core.Proxy, error) {
	if s == nil || s.repo == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: proxy store is not configured")
	}
	trimmedID := strings.TrimSpace(proxy.ID)
	if trimmedID == "" {
		return core.Proxy{}, fmt.Errorf("sqlstore: proxy id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return core.Proxy{}, err
	}
	current.RoutingKey = strings.TrimSpace(proxy.RoutingKey)
	current.Platform = strings.ToLower(strings.TrimSpace(proxy.Platform))
	current.Active = proxy.Active
	current.Secret = proxy.Secret
	current.SkipVerification = proxy.SkipVerification
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	if err != nil {
		return core.Proxy{}, err
	}
	return updated.toDomain(), nil
}

func (s *ProxyStore) Get(ctx context.Context, id string) (core.Proxy, error) {
	if s == nil || s.repo == nil {
		return core.Proxy{}, fmt.Errorf("sqlstore: proxy store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Proxy{}, err
	}
	return record.toDomain(), nil
}
