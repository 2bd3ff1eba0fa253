package main

import (
	"fmt"
	"log/slog"

	"taskbridge/internal/config"
	"taskbridge/internal/secret"
	"taskbridge/internal/store"
)

// openLocalStore opens the database directly with the configured sealing
// key. Admin commands use it so they work without a running server.
func openLocalStore(cfg *config.Config) (*store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}

	sealer, err := secret.LoadSealer(cfg.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load secret key: %w", err)
	}

	slog.Debug("opening database", "path", cfg.DBPath)
	return store.Open(cfg.DBPath, store.WithSealer(sealer))
}
