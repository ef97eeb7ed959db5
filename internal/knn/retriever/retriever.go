// Package retriever builds the candidate pool for a query. Instead of scanning
// the whole corpus it unions the posting lists of the query's K most important
// features and scores each distinct candidate once against the full query.
// Neighbours that share only low-weight features with the query are missed by
// construction.
package retriever

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/similarity"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/tfidf"
)

// Corpus is the read-only view of a frozen index the retriever needs.
type Corpus interface {
	Postings(f index.FeatureID) index.PostingList
	Features(doc index.DocIndex) []index.FeatureID
}

type Retriever struct {
	corpus  Corpus
	weights tfidf.Weights
	topK    int
}

func New(corpus Corpus, weights tfidf.Weights, topK int) *Retriever {
	return &Retriever{
		corpus:  corpus,
		weights: weights,
		topK:    topK,
	}
}

type weightedFeature struct {
	feature index.FeatureID
	weight  float64
}

// SelectFeatures returns up to K query features ordered by descending weight.
// Unseen features weigh 0 and stay eligible; equal weights keep query order.
func (r *Retriever) SelectFeatures(query []index.FeatureID) []index.FeatureID {
	if len(query) == 0 {
		return nil
	}
	ranked := make([]weightedFeature, len(query))
	for i, f := range query {
		ranked[i] = weightedFeature{feature: f, weight: r.weights.Of(f)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].weight > ranked[j].weight
	})
	k := r.topK
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	selected := make([]index.FeatureID, k)
	for i := 0; i < k; i++ {
		selected[i] = ranked[i].feature
	}
	return selected
}

// Retrieve maps every candidate document to its similarity with the query.
// An empty query yields an empty map.
func (r *Retriever) Retrieve(query []index.FeatureID) map[index.DocIndex]float64 {
	scores := make(map[index.DocIndex]float64)
	for _, f := range r.SelectFeatures(query) {
		for _, doc := range r.corpus.Postings(f) {
			if _, seen := scores[doc]; seen {
				continue
			}
			scores[doc] = similarity.Jaccard(query, r.corpus.Features(doc))
		}
	}
	return scores
}
