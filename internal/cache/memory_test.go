package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_GetSet(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryClient_Eviction(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, Key("scrape", "1"), []byte("x"), 0))
	require.NoError(t, c.Set(ctx, Key("scrape", "2"), []byte("x"), 0))
	require.NoError(t, c.Set(ctx, Key("embed", "1"), []byte("x"), 0))

	require.NoError(t, c.DeleteByPrefix(ctx, "scrape:"))
	assert.Equal(t, 1, c.Len())
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, c, "vec", []float32{1, 2}, 0))
	var got []float32
	require.NoError(t, GetJSON(ctx, c, "vec", &got))
	assert.Equal(t, []float32{1, 2}, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "scrape:1234567-1", Key("scrape", "1234567-1"))
	a := HashKey("embed", "model", "text")
	assert.Equal(t, a, HashKey("embed", "model", "text"))
	assert.NotEqual(t, a, HashKey("embed", "modelt", "ext"))
	assert.Len(t, a, len("embed:")+64)
}

func TestNew(t *testing.T) {
	c, err := New(Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryClient{}, c)
	_ = c.Close()

	_, err = New(Options{Driver: "memcached"})
	assert.Error(t, err)
}
