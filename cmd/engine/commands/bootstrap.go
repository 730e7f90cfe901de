package commands

import (
	"context"
	"fmt"

	"github.com/ignitex/engine/internal/store"
	"github.com/ignitex/engine/internal/strategyconfig"
	"github.com/ignitex/engine/pkg/config"
	"github.com/ignitex/engine/pkg/database"
	"github.com/ignitex/engine/pkg/logger"
	"github.com/ignitex/engine/pkg/redis"
)

// app is the shared bootstrap every command starts from: env config,
// logger, database, repositories and the strategy YAML.
type app struct {
	cfg      *config.Config
	strategy *strategyconfig.Config
	hash     string
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	store    *store.Store
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	path := cfg.Engine.StrategyFile
	if strategyFile != "" {
		path = strategyFile
	}
	strategy, _, err := strategyconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", path, err)
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rc, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"strategy":      strategy.Meta.StrategyID,
		"strategy_hash": hash[:12],
		"symbols":       len(strategy.Universe.Symbols),
	}).Info("Engine bootstrapped")

	return &app{
		cfg:      cfg,
		strategy: strategy,
		hash:     hash,
		log:      log,
		db:       db,
		redis:    rc,
		store:    st,
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
