// Package stream classifies query lines consumed from Kafka and publishes the
// predictions to a second topic.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/kafka"
)

// QueryMessage is the payload expected on the queries topic. When ID is empty
// the message key is used.
type QueryMessage struct {
	ID   string `json:"id"`
	Line string `json:"line"`
}

type Prediction struct {
	ID         string                  `json:"id"`
	Query      int                     `json:"query"`
	Candidates int                     `json:"candidates"`
	Neighbors  []classifier.Neighbor   `json:"neighbors"`
	Labels     []aggregator.LabelScore `json:"labels"`
	Predicted  []index.LabelID         `json:"predicted"`
	Timestamp  time.Time               `json:"timestamp"`
}

type Classifier interface {
	Classify(queryID int, query []index.FeatureID) classifier.Result
}

type Processor struct {
	classifier Classifier
	publisher  sink.Publisher
	seq        atomic.Int64
	now        func() time.Time
	logger     *slog.Logger
}

func NewProcessor(c Classifier, p sink.Publisher) *Processor {
	return &Processor{
		classifier: c,
		publisher:  p,
		now:        time.Now,
		logger:     slog.Default().With("component", "stream-processor"),
	}
}

// Handle is a kafka.MessageHandler. Undecodable or malformed queries are
// skipped; publish failures are returned so the offset stays uncommitted.
func (p *Processor) Handle(ctx context.Context, key []byte, value []byte) error {
	msg, err := kafka.DecodeJSON[QueryMessage](value)
	if err != nil {
		return errors.Join(kafka.ErrSkip, err)
	}
	if msg.ID == "" {
		msg.ID = string(key)
	}
	doc, err := svmlight.ParseLine(msg.Line)
	if err != nil {
		return fmt.Errorf("query %s: %w: %w", msg.ID, kafka.ErrSkip, err)
	}

	queryID := int(p.seq.Add(1) - 1)
	res := p.classifier.Classify(queryID, doc.FeatureIDs())
	err = p.publisher.Publish(ctx, kafka.Event{
		Key: msg.ID,
		Value: Prediction{
			ID:         msg.ID,
			Query:      res.Query,
			Candidates: res.Candidates,
			Neighbors:  res.Neighbors,
			Labels:     res.Labels,
			Predicted:  res.Predicted,
			Timestamp:  p.now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("publishing prediction for %s: %w", msg.ID, err)
	}
	p.logger.Debug("query classified", "id", msg.ID, "predicted", res.Predicted)
	return nil
}

// Processed returns how many queries have been classified.
func (p *Processor) Processed() int64 {
	return p.seq.Load()
}
