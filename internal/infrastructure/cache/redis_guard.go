package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/config"
)

// TitleKeyPrefix namespaces the guard's keys
const TitleKeyPrefix = "catalogsync:import:title:"

// RedisTitleGuard shares remembered titles between importer processes. The
// key holds the created product as JSON and expires with the title's TTL.
type RedisTitleGuard struct {
	client redis.UniversalClient
	prefix string
}

var _ integration.TitleGuard = (*RedisTitleGuard)(nil)

// DialRedisTitleGuard connects to cfg and checks the server answers
func DialRedisTitleGuard(ctx context.Context, cfg config.RedisConfig) (*RedisTitleGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr(), err)
	}
	return NewRedisTitleGuard(client, ""), nil
}

// NewRedisTitleGuard wraps an existing client. An empty prefix means
// TitleKeyPrefix.
func NewRedisTitleGuard(client redis.UniversalClient, prefix string) *RedisTitleGuard {
	if prefix == "" {
		prefix = TitleKeyPrefix
	}
	return &RedisTitleGuard{client: client, prefix: prefix}
}

func (g *RedisTitleGuard) key(title string) string {
	return g.prefix + title
}

type guardValue struct {
	ID     int64  `json:"id"`
	Handle string `json:"handle"`
	Title  string `json:"title"`
}

// Seen decodes the product stored under the title key
func (g *RedisTitleGuard) Seen(ctx context.Context, title string) (*integration.ProductSummary, error) {
	raw, err := g.client.Get(ctx, g.key(title)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("title guard lookup: %w", err)
	}
	var v guardValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("title guard value for %q: %w", title, err)
	}
	return &integration.ProductSummary{ID: v.ID, Handle: v.Handle, Title: v.Title}, nil
}

// Remember sets the title key with SET NX, so of concurrent importers only
// one sees true
func (g *RedisTitleGuard) Remember(ctx context.Context, title string, product integration.ProductSummary, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(guardValue{ID: product.ID, Handle: product.Handle, Title: product.Title})
	if err != nil {
		return false, fmt.Errorf("title guard value for %q: %w", title, err)
	}
	ok, err := g.client.SetNX(ctx, g.key(title), raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("title guard write: %w", err)
	}
	return ok, nil
}

// Close closes the client
func (g *RedisTitleGuard) Close() error {
	return g.client.Close()
}
