package index

import (
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
)

// CorpusIndex is the feature-to-document inverted index over the training
// corpus. It is append-only until Freeze is called and read-only afterwards;
// concurrent readers of a frozen index need no further synchronisation.
type CorpusIndex struct {
	mu       sync.Mutex
	features [][]FeatureID
	labels   [][]LabelID
	postings map[FeatureID]PostingList
	freqs    map[FeatureID]Frequency
	labelSet map[LabelID]struct{}
	size     int64
	frozen   bool
	logger   *slog.Logger
}

func NewCorpusIndex() *CorpusIndex {
	return &CorpusIndex{
		postings: make(map[FeatureID]PostingList),
		freqs:    make(map[FeatureID]Frequency),
		labelSet: make(map[LabelID]struct{}),
		logger:   slog.Default().With("component", "corpus-index"),
	}
}

// AddDocument stores a training document and returns its index. features must
// be sorted ascending with unique IDs and labels sorted ascending; both are
// retained as given.
func (c *CorpusIndex) AddDocument(features []FeatureCount, labels []LabelID) (DocIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return 0, fmt.Errorf("adding document %d: %w", len(c.features), apperrors.ErrIndexFrozen)
	}

	doc := DocIndex(len(c.features))
	ids := make([]FeatureID, len(features))
	for i, fc := range features {
		ids[i] = fc.Feature
		c.postings[fc.Feature] = append(c.postings[fc.Feature], doc)
		freq := c.freqs[fc.Feature]
		freq.TermFreq += fc.Count
		freq.DocFreq++
		c.freqs[fc.Feature] = freq
	}
	for _, l := range labels {
		c.labelSet[l] = struct{}{}
	}
	c.features = append(c.features, ids)
	c.labels = append(c.labels, labels)
	c.size += int64(len(ids))
	return doc, nil
}

// Freeze ends the build phase. It is idempotent.
func (c *CorpusIndex) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return
	}
	c.frozen = true
	c.logger.Info("corpus index frozen",
		"documents", len(c.features),
		"features", len(c.postings),
		"postings", c.size,
	)
}

// Frequencies returns a copy of the per-feature frequency table.
func (c *CorpusIndex) Frequencies() map[FeatureID]Frequency {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[FeatureID]Frequency, len(c.freqs))
	for f, freq := range c.freqs {
		out[f] = freq
	}
	return out
}

// The accessors below are lock-free and must only be used once the index is
// frozen.

// Postings returns the documents containing f, or nil for an unseen feature.
// Callers must not modify the returned slice.
func (c *CorpusIndex) Postings(f FeatureID) PostingList {
	return c.postings[f]
}

// Features returns the sorted feature set of a training document.
func (c *CorpusIndex) Features(doc DocIndex) []FeatureID {
	if doc < 0 || int(doc) >= len(c.features) {
		return nil
	}
	return c.features[doc]
}

// Labels returns the sorted label set of a training document.
func (c *CorpusIndex) Labels(doc DocIndex) []LabelID {
	if doc < 0 || int(doc) >= len(c.labels) {
		return nil
	}
	return c.labels[doc]
}

func (c *CorpusIndex) DocCount() int {
	return len(c.features)
}

func (c *CorpusIndex) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Documents: len(c.features),
		Features:  len(c.postings),
		Postings:  c.size,
		Labels:    len(c.labelSet),
		Frozen:    c.frozen,
	}
}
