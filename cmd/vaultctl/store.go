package main

import (
	"context"
	"fmt"
	"time"

	"github.com/wgbowley/PassEM/internal/config"
	"github.com/wgbowley/PassEM/internal/storage"
)

// openStore builds the backend named by cfg.Backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendFile:
		return storage.NewFileStore(cfg.Path), func() {}, nil

	case config.BackendBolt:
		s, err := storage.OpenBoltStore(cfg.Path, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.BackendMongo:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := storage.NewMongoStore(cctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, cfg.Mongo.VaultName)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(dctx)
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
