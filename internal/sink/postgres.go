package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/resilience"
	"github.com/lib/pq"
)

// BatchWriter persists a batch of results for one run.
type BatchWriter interface {
	WriteBatch(ctx context.Context, runID string, results []classifier.Result) error
}

// Postgres buffers results and writes them in batches.
type Postgres struct {
	runID     string
	writer    BatchWriter
	batchSize int
	pending   []classifier.Result
}

func NewPostgres(runID string, w BatchWriter, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Postgres{
		runID:     runID,
		writer:    w,
		batchSize: batchSize,
		pending:   make([]classifier.Result, 0, batchSize),
	}
}

func (p *Postgres) Emit(ctx context.Context, res classifier.Result) error {
	p.pending = append(p.pending, res)
	if len(p.pending) < p.batchSize {
		return nil
	}
	return p.flush(ctx)
}

func (p *Postgres) flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}
	err := p.writer.WriteBatch(ctx, p.runID, p.pending)
	p.pending = p.pending[:0]
	return err
}

func (p *Postgres) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.flush(ctx)
}

// PredictionStore writes predictions to PostgreSQL.
//
// It requires a `knn_predictions` table, created by EnsureSchema:
//
//	CREATE TABLE knn_predictions (
//	    run_id      TEXT    NOT NULL,
//	    query_index INTEGER NOT NULL,
//	    candidates  INTEGER NOT NULL,
//	    predicted   INTEGER[] NOT NULL,
//	    labels      JSONB   NOT NULL,
//	    neighbors   JSONB   NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (run_id, query_index)
//	);
type PredictionStore struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func NewPredictionStore(db *postgres.Client) *PredictionStore {
	return &PredictionStore{
		db:     db,
		logger: slog.Default().With("component", "prediction-store"),
	}
}

const createPredictionsTable = `CREATE TABLE IF NOT EXISTS knn_predictions (
	run_id      TEXT    NOT NULL,
	query_index INTEGER NOT NULL,
	candidates  INTEGER NOT NULL,
	predicted   INTEGER[] NOT NULL,
	labels      JSONB   NOT NULL,
	neighbors   JSONB   NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (run_id, query_index)
)`

func (s *PredictionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, createPredictionsTable); err != nil {
		return fmt.Errorf("creating knn_predictions table: %w", err)
	}
	return nil
}

// WriteBatch inserts the batch in one transaction, retrying transient failures.
// Rows already present for (run_id, query_index) are left untouched.
func (s *PredictionStore) WriteBatch(ctx context.Context, runID string, results []classifier.Result) error {
	err := resilience.Retry(ctx, "write-predictions", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO knn_predictions (run_id, query_index, candidates, predicted, labels, neighbors)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (run_id, query_index) DO NOTHING`)
			if err != nil {
				return fmt.Errorf("preparing insert: %w", err)
			}
			defer stmt.Close()
			for _, res := range results {
				labels, err := json.Marshal(res.Labels)
				if err != nil {
					return resilience.Permanent(fmt.Errorf("marshaling labels: %w", err))
				}
				neighbors, err := json.Marshal(res.Neighbors)
				if err != nil {
					return resilience.Permanent(fmt.Errorf("marshaling neighbors: %w", err))
				}
				predicted := make([]int64, len(res.Predicted))
				for i, l := range res.Predicted {
					predicted[i] = int64(l)
				}
				if _, err := stmt.ExecContext(ctx,
					runID, res.Query, res.Candidates, pq.Array(predicted), labels, neighbors,
				); err != nil {
					return fmt.Errorf("inserting query %d: %w", res.Query, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.logger.Debug("prediction batch saved", "run_id", runID, "rows", len(results))
	return nil
}
