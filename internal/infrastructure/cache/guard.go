// Package cache keeps the recently imported titles of the import API, in
// Redis when configured and in process memory otherwise.
package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/config"
)

const dialTimeout = 5 * time.Second

type guardOptions struct {
	log          *zap.Logger
	requireRedis bool
}

// GuardOption configures OpenTitleGuard
type GuardOption func(*guardOptions)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) GuardOption {
	return func(o *guardOptions) { o.log = log }
}

// RequireRedis makes an unreachable Redis an error instead of degrading to
// the in-memory guard
func RequireRedis() GuardOption {
	return func(o *guardOptions) { o.requireRedis = true }
}

// OpenTitleGuard returns the Redis guard when Redis is enabled and answers,
// otherwise an in-memory guard. Titles held in memory are invisible to other
// importer processes.
func OpenTitleGuard(ctx context.Context, cfg config.RedisConfig, opts ...GuardOption) (integration.TitleGuard, error) {
	o := guardOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		o.log.Info("Redis disabled, import titles are kept in memory")
		return NewMemoryTitleGuard(), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	guard, err := DialRedisTitleGuard(dialCtx, cfg)
	if err == nil {
		o.log.Info("Import titles are kept in Redis", zap.String("addr", cfg.Addr()))
		return guard, nil
	}
	if o.requireRedis {
		return nil, fmt.Errorf("import title guard: %w", err)
	}

	o.log.Warn("Redis unreachable, import titles are kept in memory",
		zap.String("addr", cfg.Addr()),
		zap.Error(err),
	)
	return NewMemoryTitleGuard(), nil
}
