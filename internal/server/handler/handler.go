// Package handler exposes a trained classifier over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/resilience"
)

type Classifier interface {
	Classify(queryID int, query []index.FeatureID) classifier.Result
	Stats() index.Stats
	Options() classifier.Options
}

type Cache interface {
	GetOrCompute(ctx context.Context, query []index.FeatureID, compute func() (classifier.Result, error)) (classifier.Result, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

type Config struct {
	// Timeout bounds one classification; zero disables it.
	Timeout      time.Duration
	MaxBodyBytes int64
}

type Handler struct {
	classifier Classifier
	cache      Cache
	cfg        Config
	queries    atomic.Int64
	logger     *slog.Logger
}

// New builds a handler. c may be nil when caching is disabled.
func New(clf Classifier, c Cache, cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		classifier: clf,
		cache:      c,
		cfg:        cfg,
		logger:     slog.Default().With("component", "classify-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/classify", h.Classify)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// ClassifyRequest carries either an SVMLight line, whose labels are ignored,
// or a bare list of feature IDs.
type ClassifyRequest struct {
	Line     *string           `json:"line,omitempty"`
	Features []index.FeatureID `json:"features,omitempty"`
}

type ClassifyResponse struct {
	classifier.Result
	CacheHit  bool  `json:"cache_hit"`
	LatencyMs int64 `json:"latency_ms"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ClassifyRequest
	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	query, err := queryFeatures(req)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	queryID := int(h.queries.Add(1) - 1)
	var res classifier.Result
	cacheHit := false
	err = resilience.WithTimeout(ctx, h.cfg.Timeout, "classify", func(context.Context) error {
		compute := func() (classifier.Result, error) {
			return h.classifier.Classify(queryID, query), nil
		}
		var err error
		if h.cache != nil && len(query) > 0 {
			res, cacheHit, err = h.cache.GetOrCompute(ctx, query, compute)
		} else {
			res, err = compute()
		}
		return err
	})
	if err != nil {
		log.Error("classification failed", "query", queryID, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "classification failed")
		return
	}
	res.Query = queryID

	latency := time.Since(start)
	log.Info("query classified",
		"query", queryID,
		"features", len(query),
		"candidates", res.Candidates,
		"predicted", len(res.Predicted),
		"cache_hit", cacheHit,
		"latency", latency,
	)
	h.writeJSON(w, http.StatusOK, ClassifyResponse{Result: res, CacheHit: cacheHit, LatencyMs: latency.Milliseconds()})
}

// queryFeatures returns the sorted distinct feature IDs of the request.
func queryFeatures(req ClassifyRequest) ([]index.FeatureID, error) {
	if req.Line != nil && req.Features != nil {
		return nil, fmt.Errorf("%w: set either line or features, not both", apperrors.ErrInvalidInput)
	}
	if req.Line != nil {
		doc, err := svmlight.ParseLine(*req.Line)
		if err != nil {
			return nil, err
		}
		return doc.FeatureIDs(), nil
	}
	query := slices.Clone(req.Features)
	for _, f := range query {
		if f < 0 {
			return nil, fmt.Errorf("%w: negative feature id %d", apperrors.ErrInvalidInput, f)
		}
	}
	slices.Sort(query)
	return slices.Compact(query), nil
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	opts := h.classifier.Options()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"index": h.classifier.Stats(),
		"options": map[string]int{
			"top_features":    opts.TopFeatures,
			"top_neighbors":   opts.TopNeighbors,
			"vote_window":     opts.VoteWindow,
			"prediction_size": opts.PredictionSize,
		},
		"queries_served": h.queries.Load(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
