// Package cache stores scrape results and embeddings between requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Options selects and configures a cache backend.
type Options struct {
	Driver     string // memory or redis
	MaxEntries int
	Redis      RedisConfig
}

// New builds the configured cache backend.
func New(opts Options) (Client, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryClient(opts.MaxEntries), nil
	case "redis":
		return NewRedisClient(opts.Redis)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}

// Key joins namespace and parts with ':'.
func Key(namespace string, parts ...string) string {
	return strings.Join(append([]string{namespace}, parts...), ":")
}

// HashKey keys arbitrarily long content by its SHA-256 digest.
func HashKey(namespace string, content ...string) string {
	h := sha256.New()
	for _, c := range content {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// GetJSON reads key and decodes it into v.
func GetJSON(ctx context.Context, c Client, key string, v interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Client, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}
