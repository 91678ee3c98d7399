// Package cache provides a Redis read-through cache for vault records.
// Only redacted records are cached; original text never enters Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/vault"
)

// RecordCache caches redacted vault records keyed by record id.
type RecordCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger

	hits   int64
	misses int64
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewRecordCache connects to Redis and verifies the connection.
func NewRecordCache(cfg config.CacheConfig, logger *zap.Logger) (*RecordCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Record cache connected",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("ttl", cfg.DefaultTTL),
		zap.String("key_prefix", cfg.KeyPrefix))

	return &RecordCache{
		client:    client,
		ttl:       cfg.DefaultTTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

func (c *RecordCache) key(id string) string {
	return fmt.Sprintf("%s:record:%s", c.keyPrefix, id)
}

// Get returns the cached redacted record, or nil on a miss. Cache errors
// are logged and reported as misses so the vault stays authoritative.
func (c *RecordCache) Get(ctx context.Context, id string) *vault.MaskedRecord {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil
	}
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Warn("Cache read failed", zap.Error(err))
		return nil
	}

	var rec vault.MaskedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Warn("Cache entry corrupt, ignoring", zap.String("record_id", id))
		return nil
	}

	atomic.AddInt64(&c.hits, 1)
	return &rec
}

// Set stores the redacted view of a record. Failures are logged, never
// surfaced; the cache is best effort.
func (c *RecordCache) Set(ctx context.Context, rec *vault.MaskedRecord) {
	redacted := rec.Redacted()
	data, err := json.Marshal(redacted)
	if err != nil {
		c.logger.Warn("Failed to encode record for cache", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(rec.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}

// Stats returns hit/miss counters.
func (c *RecordCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses

	s := Stats{Hits: hits, Misses: misses}
	if total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Close closes the Redis connection.
func (c *RecordCache) Close() error {
	return c.client.Close()
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if at := strings.LastIndex(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
