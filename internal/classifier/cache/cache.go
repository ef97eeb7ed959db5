// Package cache memoises classification results in Redis. Keys combine the
// classifier fingerprint with the sorted query features, so a retrained
// corpus or changed truncation points never reads stale predictions.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "knn:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type PredictionCache struct {
	store       Store
	ttl         time.Duration
	fingerprint string
	breaker     *resilience.CircuitBreaker
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

// New builds a cache for the classifier identified by fingerprint. m may be nil.
func New(store Store, ttl time.Duration, fingerprint string, m *metrics.Metrics) *PredictionCache {
	return &PredictionCache{
		store:       store,
		ttl:         ttl,
		fingerprint: fingerprint,
		breaker:     resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{}),
		metrics:     m,
		logger:      slog.Default().With("component", "prediction-cache"),
	}
}

// Get looks up a cached result. Any Redis failure counts as a miss.
func (c *PredictionCache) Get(ctx context.Context, query []index.FeatureID) (classifier.Result, bool) {
	key := c.buildKey(query)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return classifier.Result{}, false
	}
	if data == nil {
		c.miss()
		return classifier.Result{}, false
	}
	var res classifier.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return classifier.Result{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return res, true
}

func (c *PredictionCache) Set(ctx context.Context, query []index.FeatureID, res classifier.Result) {
	key := c.buildKey(query)
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes and stores it.
// Concurrent misses for the same query share one computation. The bool
// reports a cache hit.
func (c *PredictionCache) GetOrCompute(
	ctx context.Context,
	query []index.FeatureID,
	compute func() (classifier.Result, error),
) (classifier.Result, bool, error) {
	if res, ok := c.Get(ctx, query); ok {
		return res, true, nil
	}
	val, err, _ := c.group.Do(c.buildKey(query), func() (any, error) {
		res, err := compute()
		if err != nil {
			return classifier.Result{}, err
		}
		c.Set(ctx, query, res)
		return res, nil
	})
	if err != nil {
		return classifier.Result{}, false, err
	}
	return val.(classifier.Result), false, nil
}

// Invalidate deletes every cached prediction.
func (c *PredictionCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PredictionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PredictionCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *PredictionCache) buildKey(query []index.FeatureID) string {
	b := make([]byte, 0, len(c.fingerprint)+8*len(query))
	b = append(b, c.fingerprint...)
	for _, f := range query {
		b = append(b, ' ')
		b = strconv.AppendInt(b, int64(f), 10)
	}
	hash := sha256.Sum256(b)
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
