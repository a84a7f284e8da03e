package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"copyengine/internal/config"
	"copyengine/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := config.LoadDotEnv("."); err != nil {
		log.Fatalf("load env files: %v", err)
	}
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, store, err := bootstrap(cfg, logger)
	if err != nil {
		logger.Error("bootstrap daemon", logging.Error(err))
		log.Fatalf("bootstrap daemon: %v", err)
	}
	defer store.Close()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		log.Fatalf("run daemon: %v", err)
	}
	logger.Info("copyengined shutting down")
}
