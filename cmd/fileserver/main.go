// Command fileserver accepts multipart uploads and stores them on disk. Run
// one per file pool member:
//
//	fileserver --addr :8701
//	fileserver --addr :8702 --dir uploads-2
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/angeloszaimis/service-router/config"
	"github.com/angeloszaimis/service-router/internal/httpserver"
	"github.com/angeloszaimis/service-router/internal/upload"
	"github.com/angeloszaimis/service-router/pkg/logger"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file")
	addr := pflag.String("addr", "", "listen address, overrides upload.address")
	dir := pflag.String("dir", "", "upload directory, overrides upload.dir")
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
		cfg.Upload.Address = *addr
	}
	if *dir != "" {
		cfg.Upload.Dir = *dir
	}

	log := logger.Component(
		logger.New(cfg.Logging.Level, true, cfg.Server.Environment, os.Stdout),
		"fileserver",
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	receiver := upload.NewReceiver(
		upload.NewStore(cfg.Upload.Dir, cfg.Upload.SanitizeFilenames),
		log,
		newLimiter(cfg.Upload),
	)

	srv, err := httpserver.New(cfg.Upload.Address, receiver.Routes(), httpserver.Timeouts{})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("File server listening",
		slog.String("address", srv.Addr()),
		slog.String("dir", cfg.Upload.Dir))

	if err := srv.Run(ctx); err != nil {
		log.Error("File server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("File server stopped")
}

// newLimiter returns nil when rate limiting is off.
func newLimiter(cfg config.UploadConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
}
