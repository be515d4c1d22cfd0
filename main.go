package main

import (
	"artifact-proxy/circuitbreaker"
	"artifact-proxy/config"
	"artifact-proxy/logger"
	"artifact-proxy/metrics"
	"artifact-proxy/parser"
	"artifact-proxy/proxy"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	fmt.Println(GetBuildInfo())
	fmt.Println()

	cfg, err := config.LoadConfigWithEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	obsLogger, err := logger.NewObservabilityLogger(logger.ObservabilityOptions{
		LogDir: cfg.LogDir,
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer obsLogger.Close()

	if cfg.LokiURL != "" {
		hook := logger.NewLokiHook(cfg.LokiURL, logger.ParseLevel(cfg.LogLevel))
		obsLogger.AddHook(hook)
		defer hook.Close()
		fmt.Printf("✅ Loki logging enabled at %s\n", cfg.LokiURL)
	}

	if err := run(cfg, obsLogger); err != nil {
		obsLogger.Error(logger.ComponentServer, logger.CategoryError, "", "Server stopped with error", map[string]interface{}{"error": err.Error()})
		log.Printf("Server failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, obsLogger *logger.ObservabilityLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseLog := logger.NewFromConfig(ctx, cfg, obsLogger.Logrus())

	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewCollector(registry)
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	health := circuitbreaker.NewHealthManager(circuitbreaker.Config{
		FailureThreshold:   cfg.CircuitBreaker.FailureThreshold,
		BackoffDuration:    cfg.CircuitBreaker.BackoffDuration,
		MaxBackoffDuration: cfg.CircuitBreaker.MaxBackoffDuration,
		ResetTimeout:       cfg.CircuitBreaker.ResetTimeout,
	}, baseLog.WithComponent(logger.ComponentCircuitBreaker))
	health.SetEventLogger(obsLogger)
	health.InitializeEndpoints(cfg.UpstreamEndpoints)

	sessions := proxy.NewSessionStore(proxy.SessionOptions{
		Size:            cfg.SessionCacheSize,
		TTL:             cfg.SessionTTL,
		WorkDir:         cfg.WorkDir,
		ArtifactElement: parser.NewElementFactory(cfg.Placeholder.Tag, cfg.Placeholder.Class),
		Normalize:       cfg.NormalizeFunctionCalls,
	}, collector, baseLog)

	handler := proxy.NewHandler(cfg, sessions, health, collector, obsLogger)
	handler.SetVersion(Version)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(metricsHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second, // streaming chat responses
		IdleTimeout:  60 * time.Second,
	}

	obsLogger.Info(logger.ComponentServer, logger.CategoryRequest, "", "Artifact proxy starting", map[string]interface{}{
		"address":            fmt.Sprintf("http://localhost:%s", cfg.Port),
		"work_dir":           cfg.WorkDir,
		"normalize":          cfg.NormalizeFunctionCalls,
		"upstream_endpoints": len(cfg.UpstreamEndpoints),
		"metrics_enabled":    cfg.MetricsEnabled,
		"version":            GetVersionInfo(),
		"git_commit":         GetGitCommit(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		obsLogger.Info(logger.ComponentServer, logger.CategoryHealth, "", "Artifact proxy shutting down", nil)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
