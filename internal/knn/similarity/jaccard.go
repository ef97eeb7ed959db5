package similarity

import "github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"

// Jaccard returns |A ∩ B| / |A ∪ B| for two ascending feature sequences using
// a single merge walk. Two empty sets score 0.
//
// Inputs are expected to hold unique IDs. Repeated IDs are treated as a
// multiset: equal runs are matched pairwise and each unmatched repeat counts
// toward the union only.
func Jaccard(a, b []index.FeatureID) float64 {
	var inBoth, inEither int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case b[j] < a[i]:
			j++
		default:
			inBoth++
			i++
			j++
		}
		inEither++
	}
	inEither += len(a) - i + len(b) - j
	if inEither == 0 {
		return 0
	}
	return float64(inBoth) / float64(inEither)
}
