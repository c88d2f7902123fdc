// Command filetier balances uploads over the file servers. The router's
// file_tier_url points here.
//
// Usage:
//
//	filetier [--config path/to/config.yaml] [--addr :8704]
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/service-router/config"
	"github.com/angeloszaimis/service-router/internal/filetier"
	"github.com/angeloszaimis/service-router/internal/healthcheck"
	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/metrics"
	"github.com/angeloszaimis/service-router/internal/pool"
	"github.com/angeloszaimis/service-router/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	addr := pflag.String("addr", "", "listen address, overrides file_tier.address")
	pflag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.FileTier.Address = *addr
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, logger.Component(log, "metrics"))
	collector.Start(ctx)

	files, err := pool.New(pool.File, cfg.Pools.File)
	if err != nil {
		log.Error("Failed to build file pool", slog.Any("err", err))
		os.Exit(1)
	}

	prober := healthcheck.NewProber(healthcheck.NewCache(), cfg.Probe.Timeout,
		logger.Component(log, "healthcheck"), collector)

	balancer, err := filetier.New(files, prober, cfg.FileTier.Staleness,
		logger.Component(log, "filetier"), collector)
	if err != nil {
		log.Error("Failed to create file tier", slog.Any("err", err))
		os.Exit(1)
	}

	go balancer.Watch(ctx, cfg.FileTier.RefreshInterval)

	srv, err := httpserver.New(cfg.FileTier.Address, balancer.Routes(), httpserver.Timeouts{})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("File tier listening",
		slog.String("address", srv.Addr()),
		slog.Int("file_servers", files.Len()))

	if err := srv.Run(ctx); err != nil {
		log.Error("File tier stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("File tier stopped")
}
