package svmlight

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		labels   []index.LabelID
		features []index.FeatureCount
	}{
		{
			name:     "multi label with commas",
			line:     "314523, 165538, 416827 1250536:1 634175:1 805104:1",
			labels:   []index.LabelID{165538, 314523, 416827},
			features: []index.FeatureCount{{Feature: 634175, Count: 1}, {Feature: 805104, Count: 1}, {Feature: 1250536, Count: 1}},
		},
		{
			name:     "single label",
			line:     "7 3:2 1:1",
			labels:   []index.LabelID{7},
			features: []index.FeatureCount{{Feature: 1, Count: 1}, {Feature: 3, Count: 2}},
		},
		{
			name:     "no labels",
			line:     " 2:1 ",
			features: []index.FeatureCount{{Feature: 2, Count: 1}},
		},
		{
			name:     "duplicates collapsed",
			line:     "5 5, 4 9:1 2:0.5 9:2",
			labels:   []index.LabelID{4, 5},
			features: []index.FeatureCount{{Feature: 2, Count: 0.5}, {Feature: 9, Count: 3}},
		},
		{
			name:     "comma separated labels in one token",
			line:     "12,34 5:1 17:3 204:1",
			labels:   []index.LabelID{12, 34},
			features: []index.FeatureCount{{Feature: 5, Count: 1}, {Feature: 17, Count: 3}, {Feature: 204, Count: 1}},
		},
		{
			name:     "trailing and doubled commas",
			line:     "3,,1, 2:1",
			labels:   []index.LabelID{1, 3},
			features: []index.FeatureCount{{Feature: 2, Count: 1}},
		},
		{
			name: "blank",
			line: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine: %v", err)
			}
			if !reflect.DeepEqual(doc.Labels, tt.labels) {
				t.Errorf("labels = %v, want %v", doc.Labels, tt.labels)
			}
			if !reflect.DeepEqual(doc.Features, tt.features) {
				t.Errorf("features = %v, want %v", doc.Features, tt.features)
			}
		})
	}
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{
		"abc 1:1",
		"1 x:1",
		"1 2:y",
		"1 2:-1",
		"1 -2:1",
		"1 :1",
		"1,x 2:1",
	} {
		if _, err := ParseLine(line); !errors.Is(err, apperrors.ErrMalformedLine) {
			t.Errorf("ParseLine(%q) = %v, want ErrMalformedLine", line, err)
		}
	}
}

func TestFeatureIDs(t *testing.T) {
	doc, err := ParseLine("1 4:1 2:3")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := doc.FeatureIDs(), []index.FeatureID{2, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("FeatureIDs = %v, want %v", got, want)
	}
}

func TestReaderEach(t *testing.T) {
	input := "10 1:1 2:1 3:1\n20 2:1 3:1 4:1\n\n30 5:1\n"
	r := NewReader(strings.NewReader(input), 0)

	var got []int
	err := r.Each(context.Background(), func(i int, doc Document) error {
		got = append(got, i)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if want := []int{0, 1, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("ordinals = %v, want %v (blank lines keep their slot)", got, want)
	}
	if r.Line() != 4 {
		t.Errorf("Line = %d, want 4", r.Line())
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after end = %v, want io.EOF", err)
	}
}

func TestReaderReportsLineNumber(t *testing.T) {
	r := NewReader(strings.NewReader("1 1:1\n1 bad\n"), 0)
	err := r.Each(context.Background(), func(int, Document) error { return nil })
	if !errors.Is(err, apperrors.ErrMalformedLine) || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Each = %v, want malformed line 2", err)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	r := NewReader(strings.NewReader(strings.Repeat("1:1 ", 100)), 32)
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Errorf("Next = %v, want buffer error", err)
	}
}

func TestReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewReader(strings.NewReader("1 1:1\n"), 0)
	if err := r.Each(ctx, func(int, Document) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Each = %v, want context.Canceled", err)
	}
}
