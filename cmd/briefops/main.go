package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/briefops/briefops/internal/archive"
	"github.com/briefops/briefops/internal/config"
	"github.com/briefops/briefops/internal/digest"
	"github.com/briefops/briefops/internal/directory"
	"github.com/briefops/briefops/internal/orchestrator"
	"github.com/briefops/briefops/internal/provider"
	"github.com/briefops/briefops/internal/slack"
	"github.com/briefops/briefops/internal/tools"
	"github.com/briefops/briefops/internal/tracker"
	"github.com/briefops/briefops/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: briefops -config <path>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Get().String(), "environment", cfg.Environment)

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	metrics := orchestrator.MustNewMetrics(promReg)

	// Model providers.
	providers := provider.NewRegistry()
	for name, pc := range cfg.Models.Providers {
		p, err := provider.FromConfig(provider.ProviderConfig{
			ID:      name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			API:     pc.API,
			Models:  pc.Models,
		})
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		if err := providers.Register(p); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		logger.Info("provider registered", "id", name, "api", pc.API)
	}
	router := provider.NewRouter(providers)

	// Redis backs the directory cache and event dedup.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without cache and dedup", "error", err)
		}
	}

	// Client directory.
	var dir directory.Source
	if cfg.Directory.PostgresDSN != "" {
		store, err := directory.OpenStore(cfg.Directory.PostgresDSN)
		if err != nil {
			return fmt.Errorf("directory: %w", err)
		}
		defer func() { _ = store.Close() }()
		dir = store
		if rdb != nil {
			dir = directory.NewCache(store, rdb, cfg.Directory.CacheTTL.Std(), logger)
		}
	}

	// Project tracker.
	var trk *tracker.Client
	if cfg.Tracker.APIToken != "" {
		trk = tracker.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.APIToken, cfg.Tracker.TeamID,
			tracker.WithLogger(logger))
	}

	// Message archive.
	db, err := archive.Open(cfg.Archive.DataDir)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer func() { _ = db.Close() }()
	arc := archive.NewStore(db)

	// Capabilities and the orchestrator.
	capabilities := orchestrator.NewRegistry()
	for _, c := range tools.All(dir, trk, arc) {
		if err := capabilities.Register(c); err != nil {
			return fmt.Errorf("capability %s: %w", c.Name, err)
		}
	}
	logger.Info("capabilities registered", "count", capabilities.Len())

	dispatcher := orchestrator.NewDispatcher(capabilities, logger, metrics)
	agent := orchestrator.New(router, capabilities, dispatcher, orchestrator.Options{
		Model:       cfg.Agent.Model,
		MaxTurns:    cfg.Agent.MaxTurns,
		MaxTokens:   cfg.Agent.MaxTokens,
		Temperature: cfg.Agent.Temperature,
	}, logger, metrics)

	// Slack.
	api := slack.NewClient(cfg.Slack.BotToken, slack.WithLogger(logger))
	identity, err := api.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	logger.Info("slack authenticated", "bot_user_id", identity.UserID, "bot_name", identity.User)

	handler := slack.NewHandler(api, agent, arc, rdb, identity.UserID, logger)
	gateway := slack.NewGateway(api, cfg.Slack.AppToken, handler, logger)

	// Scheduled digests.
	scheduler := digest.NewScheduler(agent, api, logger)
	for _, d := range cfg.Digests {
		if err := scheduler.Add(d); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// Metrics listener.
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return gateway.Run(ctx)
}
