package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/metrics"
	"github.com/kb-advisor/backend/internal/storage/models"
	"github.com/kb-advisor/backend/pkg/circuitbreaker"
	"github.com/kb-advisor/backend/pkg/logger"
)

const suggestionPrefix = "suggest:"

// Client caches ranked suggestion lists so repeated queries skip the
// retrieval pipeline. All operations go through a circuit breaker so a
// Redis outage degrades to cache-miss behavior instead of failing
// requests.
type Client struct {
	rdb     *redis.Client
	breaker *circuitbreaker.Breaker
	ttl     time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{
		rdb: rdb,
		breaker: circuitbreaker.New("redis-cache", circuitbreaker.Config{
			FailureThreshold: 3,
			SuccessThreshold: 2,
			OpenTimeout:      15 * time.Second,
		}),
		ttl: ttl,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetSuggestions returns the cached result for a query key, or ok=false
// on a miss. Redis failures are logged and reported as misses.
func (c *Client) GetSuggestions(ctx context.Context, key string) ([]models.SolutionSuggestion, bool) {
	var data []byte
	err := c.breaker.Do(func() error {
		var getErr error
		data, getErr = c.rdb.Get(ctx, suggestionPrefix+key).Bytes()
		if getErr == redis.Nil {
			data = nil
			return nil
		}
		return getErr
	})
	if err != nil {
		if err != circuitbreaker.ErrOpen {
			logger.Warn("Suggestion cache read failed", zap.Error(err))
		}
		metrics.CacheMisses.WithLabelValues("suggestion").Inc()
		return nil, false
	}
	if data == nil {
		metrics.CacheMisses.WithLabelValues("suggestion").Inc()
		return nil, false
	}

	var suggestions []models.SolutionSuggestion
	if err := json.Unmarshal(data, &suggestions); err != nil {
		logger.Warn("Suggestion cache entry corrupt", zap.String("key", key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues("suggestion").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("suggestion").Inc()
	logger.Debug("Suggestion cache hit", zap.String("key", key))
	return suggestions, true
}

func (c *Client) SetSuggestions(ctx context.Context, key string, suggestions []models.SolutionSuggestion) {
	data, err := json.Marshal(suggestions)
	if err != nil {
		logger.Warn("Failed to marshal suggestions for cache", zap.Error(err))
		return
	}

	err = c.breaker.Do(func() error {
		return c.rdb.Set(ctx, suggestionPrefix+key, data, c.ttl).Err()
	})
	if err != nil && err != circuitbreaker.ErrOpen {
		logger.Warn("Suggestion cache write failed", zap.Error(err))
	}
}

// Flush drops all cached suggestions. Called after a retrain so stale
// rankings are not served from cache.
func (c *Client) Flush(ctx context.Context) {
	err := c.breaker.Do(func() error {
		iter := c.rdb.Scan(ctx, 0, suggestionPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		return iter.Err()
	})
	if err != nil && err != circuitbreaker.ErrOpen {
		logger.Warn("Suggestion cache flush failed", zap.Error(err))
		return
	}
	logger.Debug("Suggestion cache flushed")
}
