package cache

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
	gets atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.gets.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() classifier.Result {
	return classifier.Result{
		Candidates: 2,
		Neighbors:  []classifier.Neighbor{{Doc: 0, Score: 2.0 / 3.0, LabelCount: 1}},
		Labels:     []aggregator.LabelScore{{Label: 10, Score: 2.0 / 3.0}},
		Predicted:  []index.LabelID{10},
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newMemStore()
	m := metrics.New(prometheus.NewRegistry())
	c := New(store, time.Minute, "d2:f4", m)
	query := []index.FeatureID{2, 3}

	computed := 0
	compute := func() (classifier.Result, error) {
		computed++
		return sampleResult(), nil
	}
	first, hit, err := c.GetOrCompute(context.Background(), query, compute)
	if err != nil || hit {
		t.Fatalf("first = hit %v, err %v", hit, err)
	}
	second, hit, err := c.GetOrCompute(context.Background(), query, compute)
	if err != nil || !hit {
		t.Fatalf("second = hit %v, err %v", hit, err)
	}
	if computed != 1 {
		t.Errorf("computed %d times, want 1", computed)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached %+v differs from computed %+v", second, first)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", hits, misses)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("hit metric = %v", got)
	}
	for _, ttl := range store.ttls {
		if ttl != time.Minute {
			t.Errorf("ttl = %v", ttl)
		}
	}
}

func TestKeysDependOnFingerprintAndFeatures(t *testing.T) {
	a := New(newMemStore(), time.Minute, "d2:f4", nil)
	b := New(newMemStore(), time.Minute, "d3:f4", nil)
	q := []index.FeatureID{2, 3}
	if a.buildKey(q) == b.buildKey(q) {
		t.Error("different fingerprints share a key")
	}
	if a.buildKey(q) == a.buildKey([]index.FeatureID{23}) {
		t.Error("feature boundaries are ambiguous")
	}
	if !strings.HasPrefix(a.buildKey(q), keyPrefix) {
		t.Errorf("key %q lacks prefix", a.buildKey(q))
	}
}

func TestComputeErrorIsNotCached(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, "fp", nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), []index.FeatureID{1}, func() (classifier.Result, error) {
		return classifier.Result{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(store.data) != 0 {
		t.Error("failed computation was cached")
	}
}

func TestStoreFailureFallsBackToCompute(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, "fp", nil)
	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), []index.FeatureID{1}, func() (classifier.Result, error) {
			return sampleResult(), nil
		})
		if err != nil || hit || res.Candidates != 2 {
			t.Fatalf("iteration %d: res=%+v hit=%v err=%v", i, res, hit, err)
		}
	}
	// Get and Set both fail until the breaker opens after five failures.
	if got := store.gets.Load(); got >= 10 {
		t.Errorf("store consulted %d times with breaker open", got)
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:1"] = []byte("x")
	c := New(store, time.Minute, "fp", nil)
	c.Set(context.Background(), []index.FeatureID{1}, sampleResult())
	c.Set(context.Background(), []index.FeatureID{2}, sampleResult())
	n, err := c.Invalidate(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Invalidate = %d, %v", n, err)
	}
	if _, ok := store.data["other:1"]; !ok {
		t.Error("foreign key deleted")
	}
}
