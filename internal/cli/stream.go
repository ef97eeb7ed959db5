package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/stream"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	"github.com/spf13/cobra"
)

func newStreamCommand(a *app) *cobra.Command {
	var trainPath string
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Train on a labelled file and classify queries consumed from Kafka",
		Long: `Stream trains the corpus once, then consumes {"id": ..., "line": ...}
messages from kafka.topics.queries and publishes one prediction per message
to kafka.topics.predictions, keyed by the query id. Malformed queries are
logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd.Flags(), "train", &a.cfg.Data.TrainPath, trainPath)
			return a.runStream(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&trainPath, "train", "", "training file in SVMLight format (- for stdin)")
	return cmd
}

func (a *app) runStream(ctx context.Context, stdin io.Reader, stderr io.Writer) error {
	kcfg := a.cfg.Kafka
	if !kcfg.Enabled || kcfg.Topics.Queries == "" || kcfg.ConsumerGroup == "" {
		return fmt.Errorf("%w: stream mode needs kafka.enabled, a queries topic and a consumer group", apperrors.ErrInvalidInput)
	}

	var m *metrics.Metrics
	if a.cfg.Metrics.Enabled {
		m = a.collectors()
		shutdown := metrics.StartServer(a.cfg.Metrics.Port)
		defer shutdown(context.Background())
	}
	clf, err := a.train(ctx, stdin, stderr, m)
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(kcfg, kcfg.Topics.Predictions)
	defer producer.Close()
	proc := stream.NewProcessor(clf, producer)
	consumer := kafka.NewConsumer(kcfg, kcfg.Topics.Queries, proc.Handle)

	slog.Info("stream worker started",
		"queries_topic", kcfg.Topics.Queries,
		"predictions_topic", kcfg.Topics.Predictions,
		"group", kcfg.ConsumerGroup,
	)
	err = consumer.Start(ctx)
	slog.Info("stream worker stopped", "processed", proc.Processed())
	return err
}
