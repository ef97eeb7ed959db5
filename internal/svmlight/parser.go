// Package svmlight parses the multi-label SVMLight text format:
//
//	12,34 5:1 17:3 204:1
//
// Tokens without a colon hold label IDs separated by commas (empty parts from
// a trailing or doubled comma are skipped), tokens of the form feature:value
// are features. Duplicate features
// are merged by summing their values and duplicate labels are collapsed, so
// every Document carries strictly ascending sets.
package svmlight

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
)

// Document is one parsed input line.
type Document struct {
	Labels   []index.LabelID
	Features []index.FeatureCount
}

// FeatureIDs returns the sorted feature IDs without their counts.
func (d Document) FeatureIDs() []index.FeatureID {
	ids := make([]index.FeatureID, len(d.Features))
	for i, fc := range d.Features {
		ids[i] = fc.Feature
	}
	return ids
}

// ParseLine parses a single line. Blank lines yield an empty Document.
func ParseLine(line string) (Document, error) {
	var doc Document
	for _, token := range strings.Fields(line) {
		pos := strings.IndexByte(token, ':')
		if pos < 0 {
			for _, part := range strings.Split(token, ",") {
				if part == "" {
					continue
				}
				l, err := strconv.Atoi(part)
				if err != nil {
					return Document{}, fmt.Errorf("%w: label %q", apperrors.ErrMalformedLine, token)
				}
				doc.Labels = append(doc.Labels, index.LabelID(l))
			}
			continue
		}
		f, err := strconv.Atoi(token[:pos])
		if err != nil || f < 0 {
			return Document{}, fmt.Errorf("%w: feature %q", apperrors.ErrMalformedLine, token)
		}
		v, err := strconv.ParseFloat(token[pos+1:], 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Document{}, fmt.Errorf("%w: value %q", apperrors.ErrMalformedLine, token)
		}
		doc.Features = append(doc.Features, index.FeatureCount{Feature: index.FeatureID(f), Count: v})
	}
	doc.Labels = uniqueLabels(doc.Labels)
	doc.Features = mergeFeatures(doc.Features)
	return doc, nil
}

func uniqueLabels(labels []index.LabelID) []index.LabelID {
	if len(labels) < 2 {
		return labels
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	out := labels[:1]
	for _, l := range labels[1:] {
		if l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return out
}

func mergeFeatures(features []index.FeatureCount) []index.FeatureCount {
	if len(features) < 2 {
		return features
	}
	sort.SliceStable(features, func(i, j int) bool { return features[i].Feature < features[j].Feature })
	out := features[:1]
	for _, fc := range features[1:] {
		last := &out[len(out)-1]
		if fc.Feature == last.Feature {
			last.Count += fc.Count
			continue
		}
		out = append(out, fc)
	}
	return out
}
