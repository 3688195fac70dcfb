package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"privatepilot/internal/actions"
	"privatepilot/internal/config"
	"privatepilot/internal/crypto"
	"privatepilot/internal/metrics"
	"privatepilot/internal/pilot"
	"privatepilot/internal/ratelimit"
	"privatepilot/internal/storage"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	store   *storage.Store
	rdb     *redis.Client
	service *pilot.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	catalog, err := actions.Load(cfg.Prompts.File)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	var keyring *crypto.Keyring
	if cfg.Crypto.Enabled() {
		keyring, err = crypto.NewKeyring(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
		if err != nil {
			return nil, fmt.Errorf("init keyring: %w", err)
		}
	}

	if cfg.Storage.Enabled {
		a.store, err = storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, cfg.Storage.AutoMigrate)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	limiter, err := a.limiter(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	svcCfg := pilot.Config{
		Catalog:  catalog,
		Settings: cfg.ProviderSettings(),
		Keyring:  keyring,
		Limiter:  limiter,
		Logger:   log.Logger,
		Metrics:  metrics.Global(),
	}
	if a.store != nil {
		svcCfg.Store = a.store
	}
	a.service = pilot.New(svcCfg)
	return a, nil
}

func (a *app) limiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.Rate.PerHour == 0 {
		return ratelimit.Unlimited{}, nil
	}
	if cfg.Redis.Addr == "" {
		return ratelimit.NewLocal(cfg.Rate.PerHour), nil
	}
	a.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return ratelimit.NewRedis(a.rdb, int64(cfg.Rate.PerHour)), nil
}

func (a *app) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}
}
