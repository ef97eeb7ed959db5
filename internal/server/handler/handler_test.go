package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
)

func trainedClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	b := classifier.NewBuilder(classifier.DefaultOptions(), nil)
	for _, line := range []string{"10 1:1 2:1 3:1", "20 2:1 3:1 4:1"} {
		doc, err := svmlight.ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine: %v", err)
		}
		if _, err := b.Add(doc); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return b.Build()
}

func newServer(t *testing.T, h *Handler) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	h.Routes(mux)
	return mux
}

func post(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) ClassifyResponse {
	t.Helper()
	var resp ClassifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestClassifyLineAndFeatures(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))

	for _, body := range []string{
		`{"line":"99 3:1 2:5"}`,
		`{"features":[3,2,3]}`,
	} {
		rec := post(t, mux, "/api/v1/classify", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d: %s", body, rec.Code, rec.Body)
		}
		resp := decode(t, rec)
		if want := []index.LabelID{10, 20}; !reflect.DeepEqual(resp.Predicted, want) {
			t.Errorf("%s: predicted %v, want %v", body, resp.Predicted, want)
		}
		if len(resp.Neighbors) != 2 || resp.Neighbors[0].Score != 2.0/3.0 {
			t.Errorf("%s: neighbors %+v", body, resp.Neighbors)
		}
	}
}

func TestClassifyQueryIDsIncrease(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))
	for want := 0; want < 3; want++ {
		resp := decode(t, post(t, mux, "/api/v1/classify", `{"features":[1]}`))
		if resp.Query != want {
			t.Errorf("query id = %d, want %d", resp.Query, want)
		}
	}
}

func TestClassifyEmptyQuery(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))
	rec := post(t, mux, "/api/v1/classify", `{"features":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Candidates != 0 || len(resp.Predicted) != 0 {
		t.Errorf("empty query response %+v", resp)
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))
	for _, body := range []string{
		`not json`,
		`{"line":"1 x:1"}`,
		`{"line":"1 2:-1"}`,
		`{"features":[-4]}`,
		`{"line":"1:1","features":[1]}`,
	} {
		if rec := post(t, mux, "/api/v1/classify", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rec.Code)
		}
	}
}

type slowClassifier struct {
	*classifier.Classifier
	release chan struct{}
}

func (s slowClassifier) Classify(queryID int, q []index.FeatureID) classifier.Result {
	<-s.release
	return s.Classifier.Classify(queryID, q)
}

func TestClassifyTimeout(t *testing.T) {
	slow := slowClassifier{Classifier: trainedClassifier(t), release: make(chan struct{})}
	defer close(slow.release)
	mux := newServer(t, New(slow, nil, Config{Timeout: 10 * time.Millisecond}))
	if rec := post(t, mux, "/api/v1/classify", `{"features":[2]}`); rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status %d, want 504", rec.Code)
	}
}

type fakeCache struct {
	mu      sync.Mutex
	results map[string]classifier.Result
	hits    int64
	misses  int64
}

func (f *fakeCache) GetOrCompute(_ context.Context, q []index.FeatureID, compute func() (classifier.Result, error)) (classifier.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, _ := json.Marshal(q)
	if r, ok := f.results[string(key)]; ok {
		f.hits++
		return r, true, nil
	}
	f.misses++
	r, err := compute()
	if err == nil {
		f.results[string(key)] = r
	}
	return r, false, err
}

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.results))
	f.results = map[string]classifier.Result{}
	return n, nil
}

func (f *fakeCache) Stats() (int64, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits, f.misses
}

func TestClassifyUsesCache(t *testing.T) {
	c := &fakeCache{results: map[string]classifier.Result{}}
	mux := newServer(t, New(trainedClassifier(t), c, Config{}))

	first := decode(t, post(t, mux, "/api/v1/classify", `{"features":[2,3]}`))
	second := decode(t, post(t, mux, "/api/v1/classify", `{"line":"3:1 2:1"}`))
	if first.CacheHit || !second.CacheHit {
		t.Errorf("cache hits = %v, %v", first.CacheHit, second.CacheHit)
	}
	if second.Query != 1 {
		t.Errorf("cached response kept stale query id %d", second.Query)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	var stats map[string]any
	json.NewDecoder(rec.Body).Decode(&stats)
	if stats["hits"] != 1.0 || stats["misses"] != 1.0 || stats["hit_rate"] != "50.0%" {
		t.Errorf("stats = %v", stats)
	}

	rec = post(t, mux, "/api/v1/cache/invalidate", "")
	if rec.Code != http.StatusOK {
		t.Errorf("invalidate status %d", rec.Code)
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("stats body %s", rec.Body)
	}
	if rec := post(t, mux, "/api/v1/cache/invalidate", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status %d, want 503", rec.Code)
	}
}

func TestIndexStats(t *testing.T) {
	mux := newServer(t, New(trainedClassifier(t), nil, Config{}))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	var body struct {
		Index   index.Stats    `json:"index"`
		Options map[string]int `json:"options"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Index.Documents != 2 || body.Index.Features != 4 || !body.Index.Frozen {
		t.Errorf("index stats %+v", body.Index)
	}
	if body.Options["top_neighbors"] != 100 {
		t.Errorf("options %v", body.Options)
	}
}
