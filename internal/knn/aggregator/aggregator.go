// Package aggregator turns the ranked neighbours of a query into label votes.
// Each of the first M neighbours adds its similarity to every label it carries,
// and the best-scoring labels become the prediction.
package aggregator

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/ranker"
)

// LabelScore is the accumulated vote for one label.
type LabelScore struct {
	Label index.LabelID `json:"label"`
	Score float64       `json:"score"`
}

// Prediction holds every voted label, best first, and the final label set in
// ascending label order.
type Prediction struct {
	Ranked    []LabelScore    `json:"ranked"`
	Predicted []index.LabelID `json:"predicted"`
}

// LabelLookup returns the sorted labels of a training document.
type LabelLookup func(doc index.DocIndex) []index.LabelID

// Aggregate votes over the first voteWindow neighbours and keeps the best
// predictionSize labels. Equal scores rank by ascending label ID. A label
// repeated within one neighbour's label list is counted once.
func Aggregate(neighbors []ranker.ScoredDoc, labels LabelLookup, voteWindow, predictionSize int) Prediction {
	if voteWindow > len(neighbors) {
		voteWindow = len(neighbors)
	}
	totals := make(map[index.LabelID]float64)
	for _, n := range neighbors[:max(voteWindow, 0)] {
		prev, first := index.LabelID(0), true
		for _, l := range labels(n.Doc) {
			if !first && l == prev {
				continue
			}
			totals[l] += n.Score
			prev, first = l, false
		}
	}

	ranked := make([]LabelScore, 0, len(totals))
	for l, s := range totals {
		ranked = append(ranked, LabelScore{Label: l, Score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Label < ranked[j].Label
	})

	size := min(max(predictionSize, 0), len(ranked))
	predicted := make([]index.LabelID, size)
	for i := 0; i < size; i++ {
		predicted[i] = ranked[i].Label
	}
	sort.Slice(predicted, func(i, j int) bool { return predicted[i] < predicted[j] })

	return Prediction{Ranked: ranked, Predicted: predicted}
}
