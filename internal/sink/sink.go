// Package sink delivers classification results to downstream consumers: the
// line-oriented text report, a Kafka topic and a PostgreSQL table. Sinks are
// fed sequentially in query order by classifier.Run.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
)

// Sink consumes results. Close flushes buffered output.
type Sink interface {
	Emit(ctx context.Context, res classifier.Result) error
	Close() error
}

// Multi fans every result out to all sinks and stops at the first error.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, res classifier.Result) error {
	for _, s := range m {
		if err := s.Emit(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bestEffort logs and counts delivery failures instead of returning them.
type bestEffort struct {
	name    string
	sink    Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// BestEffort wraps an auxiliary sink whose failures must not abort a run.
// m may be nil.
func BestEffort(name string, s Sink, m *metrics.Metrics) Sink {
	return &bestEffort{
		name:    name,
		sink:    s,
		metrics: m,
		logger:  slog.Default().With("component", "sink", "sink", name),
	}
}

func (b *bestEffort) Emit(ctx context.Context, res classifier.Result) error {
	if err := b.sink.Emit(ctx, res); err != nil {
		b.logger.Warn("prediction delivery failed", "query", res.Query, "error", err)
		if b.metrics != nil {
			b.metrics.SinkErrorsTotal.WithLabelValues(b.name).Inc()
		}
	}
	return nil
}

func (b *bestEffort) Close() error {
	if err := b.sink.Close(); err != nil {
		return fmt.Errorf("closing %s sink: %w", b.name, err)
	}
	return nil
}
