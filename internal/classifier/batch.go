package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	"golang.org/x/sync/errgroup"
)

// Emitter receives results in query order.
type Emitter interface {
	Emit(ctx context.Context, res Result) error
}

// Progress is notified after every processed document.
type Progress func(processed int)

// Train indexes every document from r and returns the number added.
func (b *Builder) Train(ctx context.Context, r *svmlight.Reader, progress Progress) (int, error) {
	n := 0
	err := r.Each(ctx, func(i int, doc svmlight.Document) error {
		if _, err := b.Add(doc); err != nil {
			return fmt.Errorf("training document %d: %w", i, err)
		}
		n++
		if progress != nil {
			progress(n)
		}
		return nil
	})
	return n, err
}

// RunOptions control query-phase parallelism.
type RunOptions struct {
	Workers   int
	BatchSize int
}

// Run classifies every document from r and emits the results in input order.
// Queries are read in batches of BatchSize and classified by up to Workers
// goroutines; each batch is fully emitted before the next is read.
func (c *Classifier) Run(ctx context.Context, r *svmlight.Reader, opts RunOptions, emit Emitter, progress Progress) (int, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	logger := slog.Default().With("component", "classifier-run")
	start := time.Now()

	type pending struct {
		id  int
		doc svmlight.Document
	}
	batch := make([]pending, 0, opts.BatchSize)
	results := make([]Result, opts.BatchSize)
	processed := 0

	flush := func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = c.ClassifyDocument(batch[i].id, batch[i].doc)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := range batch {
			if err := emit.Emit(ctx, results[i]); err != nil {
				return fmt.Errorf("emitting query %d: %w", batch[i].id, err)
			}
			processed++
			if progress != nil {
				progress(processed)
			}
		}
		batch = batch[:0]
		return nil
	}

	err := r.Each(ctx, func(i int, doc svmlight.Document) error {
		batch = append(batch, pending{id: i, doc: doc})
		if len(batch) == opts.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil && len(batch) > 0 {
		err = flush()
	}
	if err != nil {
		return processed, err
	}
	logger.Info("queries classified",
		"queries", processed,
		"workers", opts.Workers,
		"elapsed", time.Since(start),
	)
	return processed, nil
}
