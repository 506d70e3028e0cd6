//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisClient_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := NewRedisClient(RedisConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port()), PoolSize: 2})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, Key("scrape", "1"), []byte("cleaned"), time.Minute))
	require.NoError(t, c.Set(ctx, Key("scrape", "2"), []byte("cleaned"), time.Minute))

	got, err := c.Get(ctx, Key("scrape", "1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("cleaned"), got)

	require.NoError(t, c.DeleteByPrefix(ctx, "scrape:"))
	_, err = c.Get(ctx, Key("scrape", "2"))
	assert.ErrorIs(t, err, ErrCacheMiss)
}
