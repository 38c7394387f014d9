package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"solarwatt-bridge/config"
	"solarwatt-bridge/internal/api"
	"solarwatt-bridge/internal/db"
	"solarwatt-bridge/internal/manager"
	"solarwatt-bridge/internal/metrics"
	"solarwatt-bridge/internal/mqttpub"
	"solarwatt-bridge/internal/poller"
	"solarwatt-bridge/internal/store"
)

func main() {
	validate := flag.Bool("validate", false, "probe the appliance, log in once and exit")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}
	logger.Info().Str("path", configPath).Msg("Configuration loaded")

	client, err := manager.NewClient(manager.Config{
		Host:       cfg.Manager.Host,
		Username:   cfg.Manager.Username,
		Password:   cfg.Manager.Password,
		SessionTTL: cfg.Manager.SessionTTL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid appliance configuration")
	}
	defer client.Close()

	if *validate {
		runValidate(client, logger)
		return
	}

	var cacheStore store.Store
	if cfg.Database.DSN != "" {
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize warm-start cache")
		}
		cacheStore = store.NewGormStore(gormDB)
		logger.Info().Str("driver", cfg.Database.Driver).Msg("Warm-start cache initialized")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := poller.NewService(client, cacheStore, cfg.Manager, logger)
	svc.WarmStart(ctx)

	var publisher *mqttpub.Publisher
	if cfg.MQTT.Broker != "" {
		publisher, err = mqttpub.New(cfg.MQTT, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
		}
		defer publisher.Close()
		svc.OnSnapshot(publisher.PublishSnapshot)
	}

	go svc.Run(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewExporter(svc),
	)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(svc, cfg.Manager.NamePrefix)
	router := api.NewRouter(handler, cfg.Server, metricsHandler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("Shutdown signal received, stopping services")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}

func runValidate(client *manager.Client, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Probe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Appliance probe failed")
	}
	if err := client.Validate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Appliance validation failed")
	}
	logger.Info().Msg("Appliance reachable, credentials accepted")
}
