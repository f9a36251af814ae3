// Command analytics aggregates the query events that corpus servers publish
// to Kafka, serves the aggregate over HTTP and snapshots it to PostgreSQL.
//
// Usage:
//
//	analytics [--config corpus.yaml] [--port 8081]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/postgres"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "analytics: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func newCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noStore    bool
	)

	cmd := &cobra.Command{
		Use:           "analytics",
		Short:         "Aggregate corpus query events from Kafka",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Setup(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, port, !noStore)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("CORPUS_CONFIG"), "path to a YAML config file")
	cmd.Flags().IntVarP(&port, "port", "p", 8081, "HTTP listen port")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not snapshot to PostgreSQL")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, port int, persist bool) error {
	log := slog.Default().With("component", "analytics-service")
	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	var (
		snapshots *aggregator.Store
		saved     <-chan struct{}
	)
	saveCtx, stopSaving := context.WithCancel(ctx)
	defer stopSaving()
	if persist {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		snapshots = aggregator.NewStore(db, 0)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return err
		}
		saved = snapshots.StartPeriodicSave(saveCtx, agg, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", health.Pinger(db.Ping))
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.QueryTopic, analytics.HandleEvent(agg))
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Run(ctx)
	}()
	log.Info("consuming query events", "topic", cfg.Kafka.QueryTopic, "group", cfg.Kafka.ConsumerGroup)

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/analytics", agg)
	if snapshots != nil {
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshotsHandler(snapshots))
		mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", latestSnapshotHandler(snapshots))
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("analytics service listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("kafka consumer: %w", err)
		}
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	stopSaving()
	if saved != nil {
		<-saved
	}
	log.Info("analytics service stopped")
	return runErr
}

type snapshotReader interface {
	ListSnapshots(ctx context.Context, limit int) ([]aggregator.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*aggregator.Snapshot, error)
}

func snapshotsHandler(store snapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		snaps, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			logger.FromContext(r.Context()).Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing snapshots failed"})
			return
		}
		if snaps == nil {
			snaps = []aggregator.Snapshot{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
	}
}

// latestSnapshotHandler answers 404 until the first snapshot is saved.
func latestSnapshotHandler(store snapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := store.LatestSnapshot(r.Context())
		if err != nil {
			logger.FromContext(r.Context()).Error("loading latest snapshot failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "loading latest snapshot failed"})
			return
		}
		if snap == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot saved yet"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
