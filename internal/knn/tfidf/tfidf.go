// Package tfidf derives a static importance weight per feature from the
// corpus frequency table. The weight of feature f is
//
//	ln(tf(f) + 1) * ln(N / df(f))
//
// where tf is the summed occurrence count, df the number of training
// documents containing f and N the corpus size.
package tfidf

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
)

// Weights maps a feature to its importance. It is immutable once computed.
type Weights map[index.FeatureID]float64

// Compute derives the weight table. Features with a zero document frequency
// cannot come from a CorpusIndex and are skipped.
func Compute(freqs map[index.FeatureID]index.Frequency, totalDocs int) Weights {
	w := make(Weights, len(freqs))
	for f, freq := range freqs {
		if freq.DocFreq <= 0 {
			continue
		}
		w[f] = weight(freq.TermFreq, freq.DocFreq, totalDocs)
	}
	return w
}

// Of returns the weight of f. Features never seen in training weigh 0.
func (w Weights) Of(f index.FeatureID) float64 {
	return w[f]
}

func weight(termFreq float64, docFreq int, totalDocs int) float64 {
	idf := math.Log(float64(totalDocs) / float64(docFreq))
	return math.Log(termFreq+1) * idf
}
