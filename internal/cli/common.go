package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
)

const stdio = "-"

// openInput opens path for reading; "-" reads stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == stdio {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

// train runs the build phase over the configured training file and freezes
// the result. m may be nil.
func (a *app) train(ctx context.Context, stdin io.Reader, stderr io.Writer, m *metrics.Metrics) (*classifier.Classifier, error) {
	path := a.cfg.Data.TrainPath
	if path == "" {
		return nil, fmt.Errorf("%w: a training file is required (--train)", apperrors.ErrInvalidInput)
	}
	in, err := openInput(path, stdin)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	b := classifier.NewBuilder(classifier.OptionsFromConfig(a.cfg.KNN), m)
	p := newProgress("training", a.cfg.Data, stderr)
	n, err := b.Train(ctx, svmlight.NewReader(in, a.cfg.Data.MaxLineBytes), p.Update)
	if err != nil {
		return nil, fmt.Errorf("training on %s: %w", path, err)
	}
	p.Finish(n)
	return b.Build(), nil
}

type flagSet interface {
	Changed(name string) bool
}

// override sets dst to v when the flag was given on the command line.
func override[T any](fs flagSet, name string, dst *T, v T) {
	if fs.Changed(name) {
		*dst = v
	}
}
