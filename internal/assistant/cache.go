package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/salesunifier/internal/core"
)

// mappingKeyPrefix namespaces header mapping entries.
const mappingKeyPrefix = "salesunifier:headers:"

// MappingCache stores assistant header translations by header set, so that
// re-uploading a file with the same layout does not call the assistant again.
type MappingCache interface {
	Get(ctx context.Context, key string) (map[string]string, bool, error)
	Put(ctx context.Context, key string, translations map[string]string) error
}

// CacheKey derives a stable key from a header list. Headers are normalized
// first so composed and decomposed Hangul share an entry.
func CacheKey(headers []string) string {
	h := sha256.New()
	for _, header := range headers {
		h.Write([]byte(core.NormalizeHeader(header)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NopCache never hits.
type NopCache struct{}

// Get implements MappingCache.
func (NopCache) Get(context.Context, string) (map[string]string, bool, error) {
	return nil, false, nil
}

// Put implements MappingCache.
func (NopCache) Put(context.Context, string, map[string]string) error {
	return nil
}

// RedisCache is a Redis-backed MappingCache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Ensure RedisCache implements MappingCache.
var _ MappingCache = (*RedisCache)(nil)

// NewRedisCache constructs a cache whose entries expire after ttl.
// A zero ttl keeps entries until evicted.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached translations for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	raw, err := c.client.Get(ctx, mappingKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get mapping: %w", err)
	}

	var translations map[string]string
	if err := json.Unmarshal(raw, &translations); err != nil {
		return nil, false, fmt.Errorf("decode mapping: %w", err)
	}
	return translations, true, nil
}

// Put stores translations under key with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, key string, translations map[string]string) error {
	raw, err := json.Marshal(translations)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	if err := c.client.Set(ctx, mappingKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set mapping: %w", err)
	}
	return nil
}
