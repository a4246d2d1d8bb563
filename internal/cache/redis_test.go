package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	c := NewRedisCacheWithClient(client, DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:   mr.Addr(),
		Config: DefaultConfig(),
	})
	require.NoError(t, err)
	assert.NotNil(t, c)
	c.Close()
}

func TestNewRedisCache_ConnectionError(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{
		Addr:   "localhost:99999",
		Config: DefaultConfig(),
	})
	assert.Error(t, err)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	// the prefix is applied to the stored key
	assert.True(t, mr.Exists("smokescreen:key"))
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, err := c.Get(context.Background(), "missing")
	assert.True(t, IsMiss(err))
}

func TestRedisCache_Expiration(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "key")
	assert.True(t, IsMiss(err))
}

func TestRedisCache_DefaultTTL(t *testing.T) {
	c, mr := setupTestRedis(t)

	require.NoError(t, c.Set(context.Background(), "key", []byte("value"), 0))
	assert.Equal(t, DefaultConfig().DefaultTTL, mr.TTL("smokescreen:key"))
}

func TestRedisCache_Clear(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "kept"))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Clear(ctx))

	assert.False(t, mr.Exists("smokescreen:a"))
	assert.False(t, mr.Exists("smokescreen:b"))
	assert.True(t, mr.Exists("other:key"))
}
