package main

import (
	"fmt"
	"log/slog"

	"copyengine/internal/config"
	"copyengine/internal/daemon"
	"copyengine/internal/jobs"
)

// bootstrap opens the configured job store and wires the daemon around it.
func bootstrap(cfg *config.Config, logger *slog.Logger, opts ...daemon.Option) (*daemon.Daemon, jobs.Store, error) {
	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}
	d, err := daemon.New(cfg, store, logger, opts...)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, store, nil
}
