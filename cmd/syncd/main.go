package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketdeck/syncd/internal/cache"
	"github.com/marketdeck/syncd/internal/config"
	"github.com/marketdeck/syncd/internal/connection"
	"github.com/marketdeck/syncd/internal/feed"
	"github.com/marketdeck/syncd/internal/fetcher"
	"github.com/marketdeck/syncd/internal/notifier"
	"github.com/marketdeck/syncd/internal/poller"
	"github.com/marketdeck/syncd/internal/subscription"
	"github.com/marketdeck/syncd/internal/version"
	"github.com/marketdeck/syncd/internal/watchlist"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real env vars win either way.
	godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.Realtime.WSURL,
		"api_url", cfg.API.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load the persisted watchlist
	watch, err := watchlist.Open(cfg.Watchlist.Path, logger)
	if err != nil {
		logger.Error("failed to load watchlist", "error", err)
		os.Exit(1)
	}
	logger.Info("watchlist loaded", "addresses", watch.Len())

	// Response cache and fallback fetcher
	responseCache := cache.New[[]byte](cfg.Cache.MaxEntries)

	chains := make(map[string]fetcher.Chain, len(cfg.Services))
	for name, svc := range cfg.Services {
		chain := fetcher.Chain{TTL: svc.TTL}
		for _, src := range svc.Sources {
			chain.Sources = append(chain.Sources, fetcher.Source{
				Name:      src.Name,
				BaseURL:   src.BaseURL,
				APIKey:    src.APIKey,
				KeyParam:  src.KeyParam,
				KeyHeader: src.KeyHeader,
			})
		}
		chains[name] = chain
	}

	dataFetcher := fetcher.New(chains, responseCache,
		fetcher.WithLogger(logger),
		fetcher.WithTimeout(cfg.API.Timeout),
	)

	// Pub/sub notifier
	streams := notifier.New(logger)

	// Subscription registry and realtime client. The registry is the
	// manager's topic source, so it is created first and bound after.
	registry := subscription.New(logger)

	connCfg := connection.ManagerConfig{
		URL:               cfg.Realtime.WSURL,
		Endpoint:          cfg.Realtime.Endpoint,
		WriteTimeout:      cfg.Realtime.WriteTimeout,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		Reconnect: connection.ReconnectPolicy{
			BaseDelay:   cfg.Realtime.Reconnect.BaseDelay,
			MaxDelay:    cfg.Realtime.Reconnect.MaxDelay,
			Factor:      cfg.Realtime.Reconnect.Factor,
			MaxAttempts: cfg.Realtime.Reconnect.MaxAttempts,
		},
	}

	client := connection.NewTradingClient(connCfg, registry, cfg.Realtime.SendQueueSize, logger)
	registry.Bind(client)
	defer client.Disconnect()

	// Polling scheduler and feed wiring
	scheduler := poller.New(logger)
	defer scheduler.Destroy()

	dataFeed := feed.New(dataFetcher, streams, scheduler, watch, logger)
	unbind := dataFeed.BindRealtime(client.Manager, streams)
	defer unbind()

	for _, sym := range cfg.Poller.Symbols {
		registry.Subscribe(sym)
	}

	if err := dataFeed.RegisterPollJobs(cfg.Poller); err != nil {
		logger.Error("failed to register poll jobs", "error", err)
		os.Exit(1)
	}
	logger.Info("poll jobs registered", "jobs", scheduler.Jobs())

	// Metrics and health server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(cfg, client, registry, responseCache, watch, scheduler),
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Open the realtime connection last, once consumers are wired.
	logger.Info("connecting to realtime backend")
	client.Connect()

	logger.Info("syncd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("syncd stopped")
}

// createHealthHandler creates the HTTP handler for metrics and health
// checks.
func createHealthHandler(cfg *config.Config, client *connection.TradingClient, registry *subscription.Registry, responseCache *cache.Cache[[]byte], watch *watchlist.Store, scheduler *poller.Scheduler) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(cfg.Metrics.Path, promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		state := client.State()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = map[string]interface{}{
			"state":      state,
			"latency_ms": client.Latency().Milliseconds(),
			"queued":     client.QueueLen(),
		}
		if state != connection.StateConnected {
			health.Status = "degraded"
		}

		stats := responseCache.Stats()
		health.Components["cache"] = map[string]interface{}{
			"entries": responseCache.Len(),
			"hits":    stats.Hits,
			"misses":  stats.Misses,
		}

		health.Components["subscriptions"] = registry.Len()
		health.Components["watchlist"] = watch.Len()
		health.Components["poll_jobs"] = scheduler.Jobs()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		topics := registry.Topics()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":  len(topics),
			"topics": topics,
		})
	})

	return mux
}
