// Package classifier wires the corpus index, TF-IDF weights, candidate
// retrieval, ranking and label voting into a two-phase k-NN classifier.
//
// A Builder owns the mutable build phase. Build freezes the index, derives the
// feature weights exactly once and returns a Classifier that only reads shared
// state, so distinct queries may be classified concurrently.
package classifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/ranker"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/retriever"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/tfidf"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
)

// Options are the truncation points of the pipeline.
type Options struct {
	TopFeatures    int
	TopNeighbors   int
	VoteWindow     int
	PredictionSize int
}

func DefaultOptions() Options {
	return Options{TopFeatures: 8, TopNeighbors: 100, VoteWindow: 5, PredictionSize: 3}
}

func OptionsFromConfig(cfg config.KNNConfig) Options {
	return Options{
		TopFeatures:    cfg.TopFeatures,
		TopNeighbors:   cfg.TopNeighbors,
		VoteWindow:     cfg.VoteWindow,
		PredictionSize: cfg.PredictionSize,
	}
}

// Neighbor is a ranked training document.
type Neighbor struct {
	Doc        index.DocIndex `json:"doc"`
	Score      float64        `json:"score"`
	LabelCount int            `json:"label_count"`
}

// Result is everything emitted for one query.
type Result struct {
	Query      int                     `json:"query"`
	Candidates int                     `json:"candidates"`
	Neighbors  []Neighbor              `json:"neighbors"`
	Labels     []aggregator.LabelScore `json:"labels"`
	Predicted  []index.LabelID         `json:"predicted"`
}

// Builder accumulates training documents.
type Builder struct {
	index   *index.CorpusIndex
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder starts a build phase. m may be nil.
func NewBuilder(opts Options, m *metrics.Metrics) *Builder {
	return &Builder{
		index:   index.NewCorpusIndex(),
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "classifier-builder"),
	}
}

// Add indexes one training document. It fails once Build has been called.
func (b *Builder) Add(doc svmlight.Document) (index.DocIndex, error) {
	i, err := b.index.AddDocument(doc.Features, doc.Labels)
	if err != nil {
		return 0, err
	}
	if b.metrics != nil {
		b.metrics.DocsIndexedTotal.Inc()
	}
	return i, nil
}

// Build freezes the index and computes the TF-IDF weights.
func (b *Builder) Build() *Classifier {
	start := time.Now()
	b.index.Freeze()
	weights := tfidf.Compute(b.index.Frequencies(), b.index.DocCount())
	stats := b.index.Stats()
	b.logger.Info("tfidf weights computed",
		"features", len(weights),
		"documents", stats.Documents,
		"elapsed", time.Since(start),
	)
	if b.metrics != nil {
		b.metrics.IndexDocuments.Set(float64(stats.Documents))
		b.metrics.IndexFeatures.Set(float64(stats.Features))
	}
	return &Classifier{
		index:     b.index,
		retriever: retriever.New(b.index, weights, b.opts.TopFeatures),
		opts:      b.opts,
		metrics:   b.metrics,
	}
}

// Classifier answers queries against a frozen corpus.
type Classifier struct {
	index     *index.CorpusIndex
	retriever *retriever.Retriever
	opts      Options
	metrics   *metrics.Metrics
}

// Classify retrieves, ranks and votes for one query. query must be sorted
// ascending; an empty query produces an empty Result.
func (c *Classifier) Classify(queryID int, query []index.FeatureID) Result {
	start := time.Now()
	scores := c.retriever.Retrieve(query)
	top := ranker.TopN(scores, c.opts.TopNeighbors)
	pred := aggregator.Aggregate(top, c.index.Labels, c.opts.VoteWindow, c.opts.PredictionSize)

	neighbors := make([]Neighbor, len(top))
	for i, sd := range top {
		neighbors[i] = Neighbor{
			Doc:        sd.Doc,
			Score:      sd.Score,
			LabelCount: len(c.index.Labels(sd.Doc)),
		}
	}
	res := Result{
		Query:      queryID,
		Candidates: len(scores),
		Neighbors:  neighbors,
		Labels:     pred.Ranked,
		Predicted:  pred.Predicted,
	}
	c.observe(len(query), res, time.Since(start))
	return res
}

// ClassifyDocument classifies a parsed query line; its labels are ignored.
func (c *Classifier) ClassifyDocument(queryID int, doc svmlight.Document) Result {
	return c.Classify(queryID, doc.FeatureIDs())
}

func (c *Classifier) Options() Options {
	return c.opts
}

func (c *Classifier) Stats() index.Stats {
	return c.index.Stats()
}

// Fingerprint identifies the classifier configuration for cache keys.
func (c *Classifier) Fingerprint() string {
	s := c.index.Stats()
	return fmt.Sprintf("d%d:f%d:k%d:n%d:m%d:p%d",
		s.Documents, s.Features,
		c.opts.TopFeatures, c.opts.TopNeighbors, c.opts.VoteWindow, c.opts.PredictionSize,
	)
}

func (c *Classifier) observe(queryLen int, res Result, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "predicted"
	switch {
	case queryLen == 0:
		outcome = "empty"
	case res.Candidates == 0:
		outcome = "no_candidates"
	}
	c.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	c.metrics.QueryLatency.Observe(elapsed.Seconds())
	c.metrics.CandidatePoolSize.Observe(float64(res.Candidates))
	c.metrics.PredictedLabels.Observe(float64(len(res.Predicted)))
}
