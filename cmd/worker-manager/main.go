// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shadowquery-workers/internal/cache"
	"shadowquery-workers/internal/common/camunda"
	"shadowquery-workers/internal/common/chatgpt"
	"shadowquery-workers/internal/common/config"
	"shadowquery-workers/internal/common/database"
	httpclient "shadowquery-workers/internal/common/http"
	"shadowquery-workers/internal/common/logger"
	"shadowquery-workers/internal/common/metrics"
	"shadowquery-workers/internal/common/observability"
	"shadowquery-workers/internal/extractor"
	"shadowquery-workers/internal/store"

	esq "shadowquery-workers/internal/workers/conversation/extract-shadow-queries"
	er "shadowquery-workers/internal/workers/conversation/export-report"
)

// fetchRateLimit caps outbound conversation fetches per second across all jobs.
const fetchRateLimit = 2

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig: &camunda.RetryConfig{
			MaxRetries: 10,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Report cache (optional) ---
	var reportCache esq.ReportCache
	var redis *database.RedisClient
	if cfg.Cache.Enabled {
		redis = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		reportCache = cache.NewReportCache(redis.Client, cfg.Cache.TTLDuration(), cfg.Cache.KeyPrefix, log)
		zapLog.Info("Redis connected successfully")
	}

	// --- Report archive (optional) ---
	var reportStore esq.ReportStore
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled() {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		repo := store.NewReportRepository(pg.DB)
		if err := repo.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("report schema migration failed", zap.Error(err))
		}
		reportStore = repo
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Conversation fetcher ---
	doer := httpclient.NewClient(
		config.GetDuration(cfg.ChatGPT.Timeout),
		httpclient.WithRetryPolicy(httpclient.RetryPolicy{
			MaxRetries: cfg.ChatGPT.MaxRetries,
			BaseDelay:  config.GetDuration(cfg.ChatGPT.BaseDelay),
			MaxDelay:   config.GetDuration(cfg.ChatGPT.MaxDelay),
		}),
		httpclient.WithRateLimit(fetchRateLimit, fetchRateLimit),
		httpclient.WithRetryHook(func(attempt, statusCode int, wait time.Duration) {
			metrics.FetchRetries.WithLabelValues(strconv.Itoa(statusCode)).Inc()
			log.Warn("retrying conversation fetch", map[string]interface{}{
				"attempt": attempt,
				"status":  statusCode,
				"wait":    wait.String(),
			})
		}),
	)
	fetcher := chatgpt.NewClient(cfg.ChatGPT.BaseURL, cfg.ChatGPT.UserAgent, doer)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	start := func(taskType string, handler camunda.JobHandler) {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		wc := config.GetWorkerConfig(cfg, taskType)
		workers = append(workers, camunda.NewWorker(zeebe.GetClient(), camunda.WorkerOptions{
			TaskType:      taskType,
			Name:          cfg.App.Name,
			MaxJobsActive: wc.MaxJobsActive,
			Timeout:       config.GetDuration(wc.Timeout),
		}, handler, log))
	}

	start(esq.TaskType, esq.NewHandler(esq.ConfigFrom(cfg), esq.Dependencies{
		Fetcher:       fetcher,
		Cache:         reportCache,
		Store:         reportStore,
		Extractor:     extractor.New(log),
		Observability: obs,
	}, log))
	start(er.TaskType, er.NewHandler(er.LoadConfig(), log))

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health and metrics ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status["status"], status["zeebe"], code = "degraded", err.Error(), http.StatusServiceUnavailable
		}
		if redis != nil {
			if err := redis.Ping(r.Context()); err != nil {
				status["status"], status["redis"], code = "degraded", err.Error(), http.StatusServiceUnavailable
			}
		}
		if pg != nil {
			if err := pg.Ping(r.Context()); err != nil {
				status["status"], status["postgres"], code = "degraded", err.Error(), http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLog.Info("health server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLog.Info("shutting down...")
		for _, w := range workers {
			w.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("worker manager stopped with error", zap.Error(err))
		return
	}
	zapLog.Info("worker manager stopped")
}
