package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/query"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/internal/store"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/resilience"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the corpus and serve the query API over HTTP",
		Long: `Serve loads and indexes the corpus, then answers the HTTP query API.
The listener opens only once the corpus is ready; a load failure exits
with status 1 without ever listening.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.setup(cmd, "")
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, nil)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

// serve runs the server until ctx is cancelled. When ready is non-nil it
// receives the listener address once the server accepts connections.
func serve(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	log := slog.Default().With("component", "serve")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	var queryCache *cache.QueryCache
	if cfg.Cache.Enabled {
		qc, closeRemote, err := newQueryCache(ctx, cfg, m, checker)
		if err != nil {
			return err
		}
		defer closeRemote()
		queryCache = qc
	}

	// Telemetry runs on its own context so events of requests still in
	// flight at shutdown are delivered before the sinks stop.
	telemetryCtx, stopTelemetry := context.WithCancel(context.WithoutCancel(ctx))
	defer stopTelemetry()

	aggregator := analytics.NewAggregator()
	sinks := []analytics.Recorder{aggregator}
	var batch *collector.BatchCollector
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.QueryTopic)
		defer producer.Close()
		batch = collector.NewBatchCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval, m)
		sinks = append(sinks, batch)
	}
	collectorCtx, stopCollector := context.WithCancel(telemetryCtx)
	defer stopCollector()
	events := analytics.NewCollector(0, m, sinks...)
	events.Start(collectorCtx)
	if batch != nil {
		batch.Start(telemetryCtx)
	}

	svc := query.New(query.Options{
		Load:        store.OptionsFromConfig(cfg.Corpus),
		Cache:       queryCache,
		Metrics:     m,
		Recorder:    events,
		SearchLimit: cfg.Search.DefaultLimit,
		TraceLoad:   cfg.Tracing.Enabled,
	})
	checker.Register("corpus", svc.HealthCheck)

	if err := svc.Load(ctx, cfg.Corpus.Root); err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go pruneLimiter(ctx, limiter)
	}

	server := &http.Server{
		Handler: router.New(handler.New(svc, queryCache, cfg.Search), router.Options{
			Analytics:      aggregator,
			Health:         checker,
			Metrics:        m,
			Limiter:        limiter,
			AllowOrigins:   cfg.Server.AllowOrigins,
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", cfg.Server.Port, err)
	}
	log.Info("corpus server listening", "addr", ln.Addr().String(), "root", cfg.Corpus.Root)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}

	stopCollector()
	events.Wait()
	stopTelemetry()
	if batch != nil {
		batch.Close()
	}
	log.Info("corpus server stopped")
	return nil
}

// newQueryCache builds the result cache. With Redis enabled the shared tier
// sits behind a circuit breaker; an unreachable Redis at startup leaves
// the local tier alone and reports the cache as degraded.
func newQueryCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (*cache.QueryCache, func(), error) {
	opts := cache.Options{LocalSize: cfg.Cache.LocalSize, Metrics: m}
	closeRemote := func() {}

	if cfg.Cache.RedisEnabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using the local cache only", "addr", cfg.Redis.Addr, "error", err)
			checker.Register("redis", func(context.Context) health.ComponentHealth {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: "unavailable at startup"}
			})
		} else {
			closeRemote = func() { _ = client.Close() }
			opts.Remote = client
			opts.RemoteTTL = cfg.Redis.CacheTTL
			opts.Breaker = resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{
				OnStateChange: func(name string, _, to resilience.State) {
					if m != nil {
						m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
					}
				},
			})
			checker.Register("redis", health.Pinger(client.Ping))
		}
	}

	qc, err := cache.New(opts)
	if err != nil {
		closeRemote()
		return nil, nil, err
	}
	return qc, closeRemote, nil
}

func pruneLimiter(ctx context.Context, l *middleware.Limiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Prune()
		case <-ctx.Done():
			return
		}
	}
}
