// Package cli implements the sparse-knn command line: batch classification
// of an SVMLight test file, an HTTP classification service and a Kafka
// stream worker, all sharing one trained corpus per process.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type app struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config

	// registry receives the metric collectors; nil means the default
	// Prometheus registry that /metrics serves.
	registry prometheus.Registerer
	metrics  *metrics.Metrics
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sparse-knn",
		Short: "Multi-label k-nearest-neighbour classifier for sparse binary vectors",
		Long: `sparse-knn indexes labelled SVMLight documents in an inverted index,
retrieves candidates through the highest TF-IDF features of each query,
ranks them by Jaccard similarity and votes labels from the closest neighbours.

Example usage:
  sparse-knn classify --train train.svm --test test.svm > predictions.txt
  sparse-knn serve --train train.svm --port 8080
  sparse-knn stream --train train.svm --config knn.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if a.logLevel != "" {
				cfg.Logging.Level = a.logLevel
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (defaults are built in)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newClassifyCommand(a),
		newServeCommand(a),
		newStreamCommand(a),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// collectors creates the metric collectors once per process.
func (a *app) collectors() *metrics.Metrics {
	if a.metrics == nil {
		a.metrics = metrics.New(a.registry)
	}
	return a.metrics
}
