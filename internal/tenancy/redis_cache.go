package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tendant/sitehost/pkg/domain"
)

const cacheKeyPrefix = "sitehost:tenant:"

// RedisCache stores tenant records as JSON with a fixed TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache creates a cache on top of client.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type cachedTenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *RedisCache) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ct cachedTenant
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, fmt.Errorf("decode cached tenant: %w", err)
	}
	return &domain.Tenant{
		ID:         ct.ID,
		Name:       ct.Name,
		SchemaName: ct.SchemaName,
		CreatedAt:  ct.CreatedAt,
		UpdatedAt:  ct.UpdatedAt,
	}, nil
}

func (c *RedisCache) Set(ctx context.Context, tenant *domain.Tenant) error {
	raw, err := json.Marshal(cachedTenant{
		ID:         tenant.ID,
		Name:       tenant.Name,
		SchemaName: tenant.SchemaName,
		CreatedAt:  tenant.CreatedAt,
		UpdatedAt:  tenant.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(tenant.ID), raw, c.ttl).Err()
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}
