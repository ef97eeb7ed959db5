package index

// FeatureID identifies a sparse dimension shared by all documents.
type FeatureID int

// LabelID identifies a class. A document carries zero or more labels.
type LabelID int

// DocIndex is the ordinal of a training document in arrival order.
type DocIndex int

// FeatureCount is a feature together with the occurrence weight supplied
// by the input for one document.
type FeatureCount struct {
	Feature FeatureID
	Count   float64
}

// PostingList holds, in ascending order, the documents containing a feature.
type PostingList []DocIndex

// Frequency aggregates a feature's occurrences over the training corpus.
type Frequency struct {
	TermFreq float64
	DocFreq  int
}

// Stats summarises a frozen index.
type Stats struct {
	Documents int   `json:"documents"`
	Features  int   `json:"features"`
	Postings  int64 `json:"postings"`
	Labels    int   `json:"labels"`
	Frozen    bool  `json:"frozen"`
}
