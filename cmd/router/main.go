// Command router serves routing decisions for database, web and file
// requests over HTTP.
//
// Usage:
//
//	router [--config path/to/config.yaml] [--addr :8080]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/service-router/config"
	"github.com/angeloszaimis/service-router/internal/api"
	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/router"
	"github.com/angeloszaimis/service-router/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	addr := pflag.String("addr", "", "listen address, overrides server.address")
	pflag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, logger.Component(log, "metrics"))
	collector.Start(ctx)

	pools, err := buildPools(cfg.Pools)
	if err != nil {
		log.Error("Failed to build pools", slog.Any("err", err))
		os.Exit(1)
	}

	policy, err := createPolicy(cfg.Router)
	if err != nil {
		log.Error("Failed to create selection policy",
			slog.String("strategy", cfg.Router.Strategy),
			slog.Any("err", err))
		os.Exit(1)
	}

	prober := healthcheck.NewProber(healthcheck.NewCache(), cfg.Probe.Timeout,
		logger.Component(log, "healthcheck"), collector)

	r, err := router.New(policy, prober, pools, routerConfig(cfg.Router),
		logger.Component(log, "router"), collector)
	if err != nil {
		log.Error("Failed to create router", slog.Any("err", err))
		os.Exit(1)
	}

	handler := api.New(r, collector, logger.Component(log, "api")).Routes()

	srv, err := httpserver.New(cfg.Server.Address, handler, httpserver.Timeouts{})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Router listening",
		slog.String("address", srv.Addr()),
		slog.String("strategy", policy.Name()),
		slog.String("file_tier", r.FileTierURL()))

	if err := srv.Run(ctx); err != nil {
		log.Error("Router stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("Router stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
