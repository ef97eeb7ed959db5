package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/svmlight"
	apperrors "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newClassifyCommand(a *app) *cobra.Command {
	var (
		trainPath, testPath, outputPath string
		workers                         int
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Train on a labelled file and predict labels for every test line",
		Long: `Classify reads the training file into the corpus index, then classifies
each line of the test file and writes four records per query:

  SIMILAR <q>,<doc>:<score> ...
  COUNTS <q>,<doc>:<label count> ...
  ALL_KLASSES <q>,<label>:<score> ...
  <q>,<label> <label> ...

Results are written in input order regardless of --workers. With kafka or
postgres enabled in the config, every prediction is also published there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			override(fs, "train", &a.cfg.Data.TrainPath, trainPath)
			override(fs, "test", &a.cfg.Data.TestPath, testPath)
			override(fs, "output", &a.cfg.Data.OutputPath, outputPath)
			override(fs, "workers", &a.cfg.KNN.Workers, workers)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runClassify(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&trainPath, "train", "", "training file in SVMLight format (- for stdin)")
	cmd.Flags().StringVar(&testPath, "test", "", "query file in SVMLight format (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", stdio, "prediction report destination (- for stdout)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "goroutines classifying queries in parallel")
	return cmd
}

func (a *app) runClassify(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	data := a.cfg.Data
	if data.TestPath == "" {
		return fmt.Errorf("%w: a test file is required (--test)", apperrors.ErrInvalidInput)
	}
	if data.TrainPath == stdio && data.TestPath == stdio {
		return fmt.Errorf("%w: training and test data cannot both come from stdin", apperrors.ErrInvalidInput)
	}
	runID := uuid.NewString()
	log := slog.Default().With("component", "classify", "run_id", runID)

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
	stats := clf.Stats()
	log.Info("corpus indexed", "documents", stats.Documents, "features", stats.Features, "labels", stats.Labels)

	sinks, err := a.openSinks(ctx, runID, stdout, m)
	if err != nil {
		return err
	}

	in, err := openInput(data.TestPath, stdin)
	if err != nil {
		sinks.Close()
		return err
	}
	defer in.Close()

	p := newProgress("classifying", data, stderr)
	n, runErr := clf.Run(ctx, svmlight.NewReader(in, data.MaxLineBytes), classifier.RunOptions{
		Workers:   a.cfg.KNN.Workers,
		BatchSize: a.cfg.KNN.BatchSize,
	}, sinks, p.Update)
	closeErr := sinks.Close()
	if runErr != nil {
		return fmt.Errorf("classifying %s: %w", data.TestPath, runErr)
	}
	if closeErr != nil {
		return closeErr
	}
	p.Finish(n)
	return nil
}

// openSinks returns the text report followed by any best-effort sinks the
// config enables.
func (a *app) openSinks(ctx context.Context, runID string, stdout io.Writer, m *metrics.Metrics) (sink.Multi, error) {
	var text *sink.Text
	if path := a.cfg.Data.OutputPath; path == stdio || path == "" {
		text = sink.NewText(stdout)
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		text = sink.NewTextFile(f)
	}
	sinks := sink.Multi{text}

	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.Predictions)
		sinks = append(sinks, sink.BestEffort("kafka", sink.NewKafka(runID, producer), m))
	}
	if a.cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, a.cfg.Postgres)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		store := sink.NewPredictionStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			sinks.Close()
			return nil, err
		}
		pg := sink.NewPostgres(runID, store, a.cfg.KNN.BatchSize)
		sinks = append(sinks, sink.BestEffort("postgres", closeAfter{pg, db}, m))
	}
	return sinks, nil
}

// closeAfter closes a dependency once its sink has flushed.
type closeAfter struct {
	sink.Sink
	dep io.Closer
}

func (c closeAfter) Close() error {
	err := c.Sink.Close()
	if depErr := c.dep.Close(); err == nil {
		err = depErr
	}
	return err
}
