package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wedgietracker/ingestion/internal/metrics"
	"wedgietracker/ingestion/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	summaryKey = "wedgie:global_state:summary"

	// optimistic write attempts when another writer touches the key
	maxSetAttempts = 3
)

var errOlderSummary = errors.New("cached summary is newer")

// versionedSummary is the stored form. Version is the state row's updated_at.
type versionedSummary struct {
	Summary models.Summary `json:"summary"`
	Version time.Time      `json:"version"`
}

// Config holds Redis connection settings
type Config struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL time.Duration
}

// RedisCache caches the public global state summary
type RedisCache struct {
	client     *redis.Client
	summaryTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Successfully connected to Redis")

	return NewRedisCacheWithClient(client, cfg.SummaryTTL), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, summaryTTL time.Duration) *RedisCache {
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	return &RedisCache{client: client, summaryTTL: summaryTTL}
}

// GetSummary returns the cached summary, or nil on a miss
func (c *RedisCache) GetSummary(ctx context.Context) (*models.Summary, error) {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("get", time.Since(start).Seconds()) }()

	data, err := c.client.Get(ctx, summaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary from cache: %w", err)
	}

	var v versionedSummary
	if err := json.Unmarshal(data, &v); err != nil || v.Version.IsZero() {
		// a corrupt or unversioned entry behaves like a miss
		metrics.RecordCacheMiss()
		return nil, nil
	}

	metrics.RecordCacheHit()
	return &v.Summary, nil
}

// SetSummary stores the summary built from the state row written at version.
// The write is dropped when the cache already holds a newer version, so a slow
// reader never replaces a summary published by a later commit.
func (c *RedisCache) SetSummary(ctx context.Context, s *models.Summary, version time.Time) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("set", time.Since(start).Seconds()) }()

	data, err := json.Marshal(versionedSummary{Summary: *s, Version: version})
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	write := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, summaryKey).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cached versionedSummary
			if json.Unmarshal(current, &cached) == nil && cached.Version.After(version) {
				return errOlderSummary
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, summaryKey, data, c.summaryTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSetAttempts; attempt++ {
		err = c.client.Watch(ctx, write, summaryKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errOlderSummary):
			log.Debug().Time("version", version).Msg("Skipping summary older than the cached one")
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("failed to write summary to cache: %w", err)
		}
	}
	return fmt.Errorf("failed to write summary to cache: %w", err)
}

// InvalidateSummary drops the cached summary
func (c *RedisCache) InvalidateSummary(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordCacheOperation("delete", time.Since(start).Seconds()) }()

	if err := c.client.Del(ctx, summaryKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}

// Health pings Redis
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
