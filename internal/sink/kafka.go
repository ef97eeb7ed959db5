package sink

import (
	"context"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/aggregator"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/knn/index"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/kafka"
)

// Publisher is the subset of kafka.Producer the sink uses.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	Close() error
}

// PredictionEvent is the JSON payload published per query.
type PredictionEvent struct {
	RunID      string                  `json:"run_id"`
	Query      int                     `json:"query"`
	Candidates int                     `json:"candidates"`
	Neighbors  []classifier.Neighbor   `json:"neighbors"`
	Labels     []aggregator.LabelScore `json:"labels"`
	Predicted  []index.LabelID         `json:"predicted"`
	Timestamp  time.Time               `json:"timestamp"`
}

// Kafka publishes each result keyed by run and query so that a run's
// predictions for one query land on a stable partition.
type Kafka struct {
	runID     string
	publisher Publisher
	now       func() time.Time
}

func NewKafka(runID string, p Publisher) *Kafka {
	return &Kafka{runID: runID, publisher: p, now: time.Now}
}

func (k *Kafka) Emit(ctx context.Context, res classifier.Result) error {
	return k.publisher.Publish(ctx, kafka.Event{
		Key: k.runID + ":" + strconv.Itoa(res.Query),
		Value: PredictionEvent{
			RunID:      k.runID,
			Query:      res.Query,
			Candidates: res.Candidates,
			Neighbors:  res.Neighbors,
			Labels:     res.Labels,
			Predicted:  res.Predicted,
			Timestamp:  k.now().UTC(),
		},
	})
}

func (k *Kafka) Close() error {
	return k.publisher.Close()
}
