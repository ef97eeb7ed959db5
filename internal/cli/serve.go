package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/classifier/cache"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/internal/server/handler"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/sparse-knn/pkg/redis"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		trainPath string
		port      int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Train on a labelled file and serve classifications over HTTP",
		Long: `Serve trains the corpus once and then answers

  POST /api/v1/classify          {"line": "3:1 7:1"} or {"features": [3, 7]}
  GET  /api/v1/index/stats
  GET  /api/v1/cache/stats
  POST /api/v1/cache/invalidate
  GET  /health/live, /health/ready, /metrics

With redis enabled in the config, predictions are cached per corpus.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			override(cmd.Flags(), "train", &a.cfg.Data.TrainPath, trainPath)
			override(cmd.Flags(), "port", &a.cfg.Server.Port, port)
			return a.runServe(cmd.Context(), cmd.InOrStdin(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&trainPath, "train", "", "training file in SVMLight format (- for stdin)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	return cmd
}

func (a *app) runServe(ctx context.Context, stdin io.Reader, stderr io.Writer) error {
	m := a.collectors()
	clf, err := a.train(ctx, stdin, stderr, m)
	if err != nil {
		return err
	}

	checker := health.NewChecker()
	checker.Register("index", indexCheck(clf))

	var predictionCache handler.Cache
	if a.cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(ctx, a.cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, prediction caching disabled", "error", err)
		} else {
			defer rc.Close()
			predictionCache = cache.New(rc, a.cfg.Redis.CacheTTL, clf.Fingerprint(), m)
			checker.Register("redis", health.Ping(rc.Ping, true))
			slog.Info("prediction cache enabled", "addr", a.cfg.Redis.Addr, "ttl", a.cfg.Redis.CacheTTL)
		}
	}

	h := handler.New(clf, predictionCache, handler.Config{
		Timeout:      a.cfg.Server.QueryTimeout,
		MaxBodyBytes: int64(a.cfg.Data.MaxLineBytes) + 1<<10,
	})
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Logging,
			middleware.Recover,
			middleware.Metrics(m),
		),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("classification service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	slog.Info("classification service stopped")
	return nil
}

func indexCheck(clf *classifier.Classifier) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		s := clf.Stats()
		if !s.Frozen {
			return health.ComponentHealth{Status: health.StatusDown, Message: "index still building"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d features", s.Documents, s.Features),
		}
	}
}
