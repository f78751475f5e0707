package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
)

func startRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return config.RedisConfig{Enabled: true, Host: host, Port: port.Int()}
}

func TestRedisTitleGuard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := startRedis(t)
	ctx := context.Background()

	guard, err := cache.OpenTitleGuard(ctx, cfg, cache.RequireRedis())
	require.NoError(t, err)
	defer guard.Close()
	require.IsType(t, &cache.RedisTitleGuard{}, guard)

	t.Run("remembered title is seen by another process", func(t *testing.T) {
		product := integration.ProductSummary{ID: 41, Handle: "linen-shirt", Title: "Linen shirt"}
		fresh, err := guard.Remember(ctx, "Linen shirt", product, time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		other, err := cache.DialRedisTitleGuard(ctx, cfg)
		require.NoError(t, err)
		defer other.Close()

		seen, err := other.Seen(ctx, "Linen shirt")
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, product, *seen)

		fresh, err = other.Remember(ctx, "Linen shirt", integration.ProductSummary{ID: 42}, time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("title expires with its ttl", func(t *testing.T) {
		_, err := guard.Remember(ctx, "Paper lamp", integration.ProductSummary{ID: 43}, time.Second)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			seen, err := guard.Seen(ctx, "Paper lamp")
			return err == nil && seen == nil
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("concurrent importers create once", func(t *testing.T) {
		var mu sync.Mutex
		wins := 0
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fresh, err := guard.Remember(ctx, "Oak desk", integration.ProductSummary{ID: 44}, time.Hour)
				assert.NoError(t, err)
				if fresh {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
