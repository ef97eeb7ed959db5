package ranker

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
)

// ScoredDoc is a candidate neighbour with its similarity to the query.
type ScoredDoc struct {
	Doc   index.DocIndex `json:"doc"`
	Score float64        `json:"score"`
}

// TopN returns the n best-scoring candidates, highest score first and equal
// scores by ascending document index. A bounded min-heap keeps the selection
// at O(c log n) for c candidates. n <= 0 returns every candidate. scores is
// not modified.
func TopN(scores map[index.DocIndex]float64, n int) []ScoredDoc {
	if n <= 0 || n >= len(scores) {
		return sortAll(scores)
	}
	h := make(scoredDocHeap, 0, n+1)
	for doc, score := range scores {
		sd := ScoredDoc{Doc: doc, Score: score}
		if h.Len() < n {
			heap.Push(&h, sd)
			continue
		}
		if better(sd, h[0]) {
			h[0] = sd
			heap.Fix(&h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredDoc)
	}
	return result
}

func sortAll(scores map[index.DocIndex]float64) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(scores))
	for doc, score := range scores {
		result = append(result, ScoredDoc{Doc: doc, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		return better(result[i], result[j])
	})
	return result
}

func better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Doc < b.Doc
}

// scoredDocHeap keeps the worst retained candidate at the root.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return better(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
