package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"carinfo-scanner/utils"
)

const pageKeyPrefix = "carinfo:page:"

// PageStore caches fetched page bodies by URL.
type PageStore interface {
	Get(ctx context.Context, url string) (body string, ok bool, err error)
	Set(ctx context.Context, url, body string, ttl time.Duration) error
}

// RedisStore is a PageStore backed by Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis server at redisURL
// (redis://[:password@]host:port/db) and pings it.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, url string) (string, bool, error) {
	body, err := s.client.Get(ctx, pageKeyPrefix+url).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get: %w", err)
	}
	return body, true, nil
}

func (s *RedisStore) Set(ctx context.Context, url, body string, ttl time.Duration) error {
	if err := s.client.Set(ctx, pageKeyPrefix+url, body, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CachedFetcher serves pages from a PageStore and falls back to the wrapped
// Fetcher on a miss. Cache failures are logged and never fail a fetch.
// Only hits are reported to the recorder; wrap next with Recorded to count
// misses.
type CachedFetcher struct {
	next     Fetcher
	store    PageStore
	ttl      time.Duration
	logger   *utils.Logger
	recorder FetchRecorder
}

// NewCachedFetcher wraps next with store.
func NewCachedFetcher(next Fetcher, store PageStore, ttl time.Duration, logger *utils.Logger, recorder FetchRecorder) *CachedFetcher {
	return &CachedFetcher{next: next, store: store, ttl: ttl, logger: logger, recorder: recorder}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, ok, err := c.store.Get(ctx, url)
	switch {
	case err != nil:
		c.logger.Warn("[cache] Lookup failed for %s: %v", url, err)
	case ok:
		c.logger.Debug("[cache] Hit %s", url)
		c.record("cache", nil)
		return body, nil
	}

	body, err = c.next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := c.store.Set(ctx, url, body, c.ttl); err != nil {
		c.logger.Warn("[cache] Store failed for %s: %v", url, err)
	}
	return body, nil
}

func (c *CachedFetcher) record(source string, err error) {
	if c.recorder != nil {
		c.recorder.RecordFetch(source, err)
	}
}
