package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsoview/maestro-engine/internal/agents"
	"github.com/pulsoview/maestro-engine/internal/alerts"
	"github.com/pulsoview/maestro-engine/internal/api"
	"github.com/pulsoview/maestro-engine/internal/briefing"
	"github.com/pulsoview/maestro-engine/internal/cache"
	"github.com/pulsoview/maestro-engine/internal/cases"
	"github.com/pulsoview/maestro-engine/internal/config"
	"github.com/pulsoview/maestro-engine/internal/intent"
	"github.com/pulsoview/maestro-engine/internal/kpi"
	"github.com/pulsoview/maestro-engine/internal/maestro"
	"github.com/pulsoview/maestro-engine/internal/metrics"
	"github.com/pulsoview/maestro-engine/internal/ratelimit"
	"github.com/pulsoview/maestro-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting maestro-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var remote cache.Provider
	if cfg.Cache.RedisEnabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.Any("error", err))
		} else {
			remote = provider
			defer provider.Close()
		}
	}

	catalog, err := kpi.LoadCatalog(cfg.KPI.CatalogPath)
	if err != nil {
		logger.Error("failed to load indicator catalog", slog.Any("error", err))
		os.Exit(1)
	}
	gateway := kpi.NewHTTPGateway(cfg.KPI.BaseURL, cfg.KPI.QueryPath, cfg.KPI.Timeout)

	vocab, err := intent.LoadVocabulary(cfg.Maestro.VocabularyPath)
	if err != nil {
		logger.Error("failed to load vocabulary pack", slog.Any("error", err))
		os.Exit(1)
	}

	var classifier intent.Classifier
	var modelGate *ratelimit.Bucket
	if cfg.Model.Enabled && cfg.Model.BaseURL != "" {
		classifier = intent.NewHTTPClassifier(cfg.Model.BaseURL, cfg.Model.ClassifyPath, cfg.Model.Timeout)
		modelGate = ratelimit.NewBucket(cfg.Model.RatePerSecond, cfg.Model.Burst)
	}
	resolver := intent.NewResolver(logger, classifier, vocab, modelGate, cfg.Model.Timeout, 7*24*time.Hour)

	registry := agents.NewRegistry(
		agents.NewKPIMapper(logger, gateway, catalog, cfg.Maestro.SigmaThreshold),
		agents.NewPurchasing(logger, gateway, catalog, 0),
	)
	checker := agents.NewChecker(logger, gateway)

	respCache := cache.NewResponseCache(cfg.Cache.Bucket, remote, logger)

	orchestrator := maestro.New(logger, resolver, registry, checker, respCache, maestro.Config{
		AgentTimeout:   cfg.Maestro.AgentTimeout,
		OverallTimeout: cfg.Maestro.OverallTimeout,
		IntentWeight:   cfg.Maestro.IntentWeight,
		CauseWeight:    cfg.Maestro.CauseWeight,
	})

	alertStore := alerts.NewStore()
	alertEngine := alerts.NewEngine(logger, gateway, catalog, alertStore, alerts.Thresholds{
		P0: cfg.Alerts.P0Sigma,
		P1: cfg.Alerts.P1Sigma,
		P2: cfg.Alerts.P2Sigma,
	}, cfg.Alerts.Window)

	caseManager := cases.NewManager(logger, alertStore)

	briefingGen := briefing.NewGenerator(logger, gateway, catalog, alertStore, caseManager, briefing.Config{
		Period: cfg.Briefing.Interval,
		Window: cfg.Alerts.Window,
	})

	limiter := ratelimit.NewPerSubject(func() *ratelimit.Bucket {
		return ratelimit.NewBucket(cfg.RateLimit.RatePerSecond, cfg.RateLimit.Burst)
	}, 10*time.Minute)

	handlers := api.NewHandlers(logger, orchestrator, alertStore, caseManager, briefingGen, limiter)
	server := api.NewServer(cfg.Server, logger, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go alertEngine.Run(ctx, cfg.Alerts.Interval)
	go briefingGen.Run(ctx)
	go func() {
		ticker := time.NewTicker(cfg.Cache.Bucket)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				respCache.Sweep()
			}
		}
	}()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("maestro-engine stopped")
}
